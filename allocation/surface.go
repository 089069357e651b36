package allocation

import (
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/atomic"

	"github.com/NilsFunk/supereight-1/octree"
	"github.com/NilsFunk/supereight-1/rimage"
	"github.com/NilsFunk/supereight-1/transform"
	"github.com/NilsFunk/supereight-1/utils"
)

// BuildOctantList walks a band around every measured depth sample toward the
// camera and records the octants that must be allocated to carry the
// measurement. The allocation size doubles as the walk moves past the surface
// band, so octants get coarser with distance from the surface. Keys are
// written into allocationList at positions claimed from a shared counter;
// at most len(allocationList) keys are stored and the number of stored keys
// is returned. Key order is unspecified and keys may repeat; the consumer
// must deduplicate. Octants that already exist as voxel blocks are activated
// instead of emitted.
func BuildOctantList[T any](
	allocationList []octree.Key,
	oct *octree.Octree[T],
	cameraPose mgl64.Mat4,
	k mgl64.Mat4,
	depth *rimage.DepthMap,
	voxelDim float64,
	band float64,
	doublingRatio int,
	minAllocationSize int,
) int {
	invVoxelDim := 1.0 / voxelDim
	invP := cameraPose.Mul4(k.Inv())

	size := oct.Size()
	maxLevel := oct.MaxLevel()
	leavesLevel := oct.LeafLevel()
	initAllocationSize := octree.BlockSide
	minAllocationSize = utils.MaxInt(minAllocationSize, initAllocationSize)

	reserved := uint32(len(allocationList))
	var voxelCount atomic.Uint32

	cameraPosition := transform.PoseTranslation(cameraPose)

	utils.ParallelForEachRow(depth.Height(), func(y int) {
		for x := 0; x < depth.Width(); x++ {
			d := depth.GetDepth(x, y)
			if d == 0 {
				continue
			}
			rr := newRay(invP, cameraPosition, x, y, d, band, invVoxelDim)

			allocationSize := initAllocationSize
			allocationLevel := maxLevel - utils.Log2Int(allocationSize)

			currNode := snapDown(rr.originV, allocationSize)
			stepBase := rr.stepBase()
			deltaT := rr.deltaT(allocationSize)
			tMax := rr.tMax(currNode, allocationSize, 0, deltaT)

			travelled := 0.0
			for {
				if inBounds(currNode, size) {
					node := oct.FetchOctant(currNode[0], currNode[1], currNode[2], allocationLevel)
					if node == nil {
						key := oct.Hash(currNode[0], currNode[1], currNode[2],
							utils.MinInt(allocationLevel, leavesLevel))
						idx := voxelCount.Inc() - 1
						if idx < reserved {
							allocationList[idx] = key
						}
					} else if allocationLevel >= leavesLevel && node.IsBlock() {
						node.SetActive(true)
					}
				}

				// Double the allocation size once the walk is strictly outside
				// the surface band. The guard compares against the floor
				// parameter, which in effect caps growth at it; see DESIGN.md.
				if travelled-invVoxelDim*band/2 > float64(doublingRatio*allocationSize) &&
					travelled-invVoxelDim*band > 0 &&
					allocationSize < minAllocationSize {
					allocationSize *= 2
					allocationLevel--
					currNode = snapDownCell(currNode, allocationSize)
					deltaT = rr.deltaT(allocationSize)
					tMax = rr.tMax(currNode, allocationSize, travelled, deltaT)
				}

				a := minAxis(tMax)
				travelled = tMax[a]
				currNode[a] += stepBase[a] * allocationSize
				tMax[a] += deltaT[a]

				if rr.distance-travelled <= 0 {
					break
				}
			}
		}
	})

	count := voxelCount.Load()
	if count >= reserved {
		return int(reserved)
	}
	return int(count)
}
