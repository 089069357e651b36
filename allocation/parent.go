package allocation

import (
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/atomic"

	"github.com/NilsFunk/supereight-1/octree"
	"github.com/NilsFunk/supereight-1/rimage"
	"github.com/NilsFunk/supereight-1/transform"
	"github.com/NilsFunk/supereight-1/utils"
)

// BuildParentOctantList walks the same band geometry as BuildOctantList but
// quantises the traversal to the parent of the would-be leaf octant: keys are
// emitted one level coarser, and when the walked cell already exists as a
// voxel block, all eight sibling blocks under its parent are activated.
// Callers that run gradient or up-propagation style operators use this to
// guarantee complete sibling neighbourhoods. At most len(parentList) keys are
// stored; the number stored is returned and the consumer must deduplicate.
func BuildParentOctantList[T any](
	parentList []octree.Key,
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

	reserved := uint32(len(parentList))
	var parentCount atomic.Uint32

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
			parentSize := 2 * allocationSize
			parentLevel := allocationLevel - 1

			currNode := snapDown(rr.originV, parentSize)
			stepBase := rr.stepBase()
			deltaT := rr.deltaT(parentSize)
			tMax := rr.tMax(currNode, parentSize, 0, deltaT)

			travelled := 0.0
			for {
				if inBounds(currNode, size) {
					node := oct.FetchOctant(currNode[0], currNode[1], currNode[2], allocationLevel)
					if node == nil {
						key := oct.Hash(currNode[0], currNode[1], currNode[2], parentLevel)
						idx := parentCount.Inc() - 1
						if idx < reserved {
							parentList[idx] = key
						}
					} else if allocationLevel >= leavesLevel && node.IsBlock() {
						parent := node.Parent()
						for i := 0; i < 8; i++ {
							if sibling := parent.Child(i); sibling != nil && sibling.IsBlock() {
								sibling.SetActive(true)
							}
						}
					}
				}

				// Same doubling rule as the surface-band walk, with the level
				// pair recomputed after the size update.
				if travelled-invVoxelDim*band/2 > float64(doublingRatio*allocationSize) &&
					travelled-invVoxelDim*band > 0 &&
					allocationSize < minAllocationSize {
					allocationSize *= 2
					parentSize = 2 * allocationSize
					allocationLevel--
					parentLevel = allocationLevel - 1

					currNode = snapDownCell(currNode, parentSize)
					deltaT = rr.deltaT(parentSize)
					tMax = rr.tMax(currNode, parentSize, travelled, deltaT)
				}

				a := minAxis(tMax)
				travelled = tMax[a]
				currNode[a] += stepBase[a] * parentSize
				tMax[a] += deltaT[a]

				if rr.distance-travelled <= 0 {
					break
				}
			}
		}
	})

	count := parentCount.Load()
	if count >= reserved {
		return int(reserved)
	}
	return int(count)
}
