package allocation

import (
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/atomic"

	"github.com/NilsFunk/supereight-1/octree"
	"github.com/NilsFunk/supereight-1/rimage"
	"github.com/NilsFunk/supereight-1/transform"
	"github.com/NilsFunk/supereight-1/utils"
)

// denseDownsample is the mask downsampling factor of the dense traversal.
const denseDownsample = 4

// BuildDenseOctantList walks every second measured depth sample from the
// surface out to the camera and records two key streams: allocationList
// receives octants within the near-surface band, frustumList receives the
// coarse explored-empty octants between the band and the camera. At each
// cell the step size halves, down to BlockSide, until the cell reprojects
// fully inside the image (and, for coarse cells, onto complete depth per the
// mask); a block-sized cell is processed even when it does not reproject.
// Unless it has just halved, the step grows
// toward the current ceiling while the parent cell still reprojects. The
// ceiling itself doubles with distance from the surface up to
// maxAllocationSize. Octants that already exist are activated instead of
// emitted. Returns the counts stored in each list; both are capped at the
// list lengths and the consumer must deduplicate.
func BuildDenseOctantList[T any](
	allocationList []octree.Key,
	frustumList []octree.Key,
	oct *octree.Octree[T],
	cameraPose mgl64.Mat4,
	k mgl64.Mat4,
	depth *rimage.DepthMap,
	voxelDim float64,
	band float64,
	doublingRatio int,
	maxAllocationSize int,
) (int, int) {
	invVoxelDim := 1.0 / voxelDim
	invP := cameraPose.Mul4(k.Inv())

	width := depth.Width()
	height := depth.Height()
	mask := rimage.NewDepthMask(depth, denseDownsample)

	size := oct.Size()
	maxLevel := oct.MaxLevel()
	leavesLevel := oct.LeafLevel()
	minAllocationSize := octree.BlockSide
	maxAllocationSize = utils.MaxInt(maxAllocationSize, minAllocationSize)

	allocationReserved := uint32(len(allocationList))
	frustumReserved := uint32(len(frustumList))
	var allocationCount atomic.Uint32
	var frustumCount atomic.Uint32

	cameraPosition := transform.PoseTranslation(cameraPose)

	utils.ParallelForEachRow(height, func(y int) {
		if y%2 != 0 {
			return
		}
		for x := 0; x < width; x += 2 {
			d := depth.GetDepth(x, y)
			if d == 0 {
				continue
			}
			rr := newRay(invP, cameraPosition, x, y, d, band, invVoxelDim)

			currAllocationSize := minAllocationSize
			currAllocationLevel := maxLevel - utils.Log2Int(currAllocationSize)
			currMaxAllocationSize := minAllocationSize

			currNode := snapDown(rr.originV, currAllocationSize)
			stepBase := rr.stepBase()

			// Axis and coordinate of the previous DDA move, used to clamp
			// truncation-induced backtracking after size changes.
			lastMoveAxis := 0
			lastMoveCoord := currNode[0]

			travelled := 0.0
			for {
				if inBounds(currNode, size) {
					lastNode := currNode
					isHalfend := false
					for {
						currNode = snapDownCell(lastNode, currAllocationSize)
						if currAllocationSize > minAllocationSize {
							if !reprojectIntoImage(cameraPose, k, width, height, mask, denseDownsample,
								currNode, voxelDim, currAllocationSize) {
								currAllocationSize /= 2
								currAllocationLevel++
								isHalfend = true
								continue
							}
						} else if !reprojectIntoImage(cameraPose, k, width, height, mask, denseDownsample,
							currNode, voxelDim, currAllocationSize) {
							break
						}
						if 2*currAllocationSize > currMaxAllocationSize || isHalfend {
							break
						}

						tmpSize := 2 * currAllocationSize
						tmpNode := snapDownCell(lastNode, tmpSize)
						if !reprojectIntoImage(cameraPose, k, width, height, mask, denseDownsample,
							tmpNode, voxelDim, tmpSize) {
							break
						}
						currAllocationSize = tmpSize
						currAllocationLevel--
						currNode = tmpNode
					}

					node := oct.FetchOctant(currNode[0], currNode[1], currNode[2], currAllocationLevel)
					if node == nil {
						key := oct.Hash(currNode[0], currNode[1], currNode[2],
							utils.MinInt(currAllocationLevel, leavesLevel))
						if travelled > float64(2*doublingRatio*minAllocationSize) {
							idx := frustumCount.Inc() - 1
							if idx < frustumReserved {
								frustumList[idx] = key
							}
						} else {
							idx := allocationCount.Inc() - 1
							if idx < allocationReserved {
								allocationList[idx] = key
							}
						}
					} else {
						node.SetActive(true)
					}
				}

				if travelled-invVoxelDim*band/2 > float64(doublingRatio*currMaxAllocationSize) &&
					travelled-invVoxelDim*band > 0 &&
					currMaxAllocationSize < maxAllocationSize {
					currMaxAllocationSize *= 2
				}

				// The cell size may have changed while adapting, so the DDA
				// state is rebuilt at the current position every iteration.
				deltaT := rr.deltaT(currAllocationSize)
				tMax := rr.tMax(currNode, currAllocationSize, travelled, deltaT)

				a := minAxis(tMax)
				travelled = tMax[a]
				pos := rr.position(travelled)
				for i := range currNode {
					currNode[i] = int(pos[i])
				}
				currNode[a] += stepBase[a]
				if stepBase[lastMoveAxis]*currNode[lastMoveAxis] < stepBase[lastMoveAxis]*lastMoveCoord {
					currNode[lastMoveAxis] = lastMoveCoord
				}
				lastMoveAxis = a
				lastMoveCoord = currNode[a]

				if rr.distance-travelled <= 0.1 {
					break
				}
			}
		}
	})

	allocationLength := allocationCount.Load()
	if allocationLength >= allocationReserved {
		allocationLength = allocationReserved
	}
	frustumLength := frustumCount.Load()
	if frustumLength >= frustumReserved {
		frustumLength = frustumReserved
	}
	return int(allocationLength), int(frustumLength)
}
