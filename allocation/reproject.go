package allocation

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/NilsFunk/supereight-1/octree"
	"github.com/NilsFunk/supereight-1/rimage"
	"github.com/NilsFunk/supereight-1/utils"
)

const cameraNearEpsilon = 1e-4

// reprojectIntoImage reports whether the node cube with the given minimum
// corner (voxel units) and side is visible and data-complete: all eight
// corners must sit in front of the camera and project inside the image with a
// half-pixel margin, and, for nodes larger than a voxel block, the mask cells
// under the projected bounding box must all cover valid depth.
func reprojectIntoImage(
	twc mgl64.Mat4,
	k mgl64.Mat4,
	width, height int,
	mask *rimage.DepthMask,
	downsample int,
	node [3]int,
	voxelDim float64,
	nodeSize int,
) bool {
	isInside := true
	tcw := mgl64.Vec3{-twc.At(0, 3), -twc.At(1, 3), -twc.At(2, 3)}
	rcw := twc.Mat3().Inv()
	k3 := k.Mat3()

	delta := voxelDim * float64(nodeSize)
	deltaC := rcw.Mul3x1(mgl64.Vec3{delta, delta, delta})
	deltaP := k3.Mul3x1(deltaC)
	baseC := rcw.Mul3x1(mgl64.Vec3{
		voxelDim*float64(node[0]) + tcw.X(),
		voxelDim*float64(node[1]) + tcw.Y(),
		voxelDim*float64(node[2]) + tcw.Z(),
	})
	baseP := k3.Mul3x1(baseC)

	var cornersPX, cornersPY [8]float64
	for i := 0; i < 8; i++ {
		var dir mgl64.Vec3
		if i&1 > 0 {
			dir[0] = 1
		}
		if i&2 > 0 {
			dir[1] = 1
		}
		if i&4 > 0 {
			dir[2] = 1
		}
		cornerCZ := baseC.Z() + dir.Z()*deltaC.Z()
		cornerHomo := mgl64.Vec3{
			baseP.X() + dir.X()*deltaP.X(),
			baseP.Y() + dir.Y()*deltaP.Y(),
			baseP.Z() + dir.Z()*deltaP.Z(),
		}

		if cornerCZ < cameraNearEpsilon {
			isInside = false
			continue
		}
		inverseDepth := 1 / cornerHomo.Z()
		px := cornerHomo.X()*inverseDepth + 0.5
		py := cornerHomo.Y()*inverseDepth + 0.5
		cornersPX[i] = px
		cornersPY[i] = py
		if px < 0.5 || px > float64(width)-1.5 ||
			py < 0.5 || py > float64(height)-1.5 {
			isInside = false
		}
	}

	nodeValid := isInside
	if isInside && nodeSize > octree.BlockSide {
		xMin, xMax := bounds(cornersPX)
		yMin, yMax := bounds(cornersPY)
		xLo := utils.MaxInt(xMin/downsample, 0)
		xHi := utils.MinInt(xMax/downsample, mask.Width()-1)
		yLo := utils.MaxInt(yMin/downsample, 0)
		yHi := utils.MinInt(yMax/downsample, mask.Height()-1)
		for y := yLo; y <= yHi; y++ {
			for x := xLo; x <= xHi; x++ {
				if !mask.Get(x, y) {
					nodeValid = false
				}
			}
		}
	}

	return nodeValid
}

// bounds returns the truncated min and max of the given values.
func bounds(vals [8]float64) (int, int) {
	min, max := vals[0], vals[0]
	for i := 1; i < 8; i++ {
		if vals[i] < min {
			min = vals[i]
		} else if vals[i] > max {
			max = vals[i]
		}
	}
	return int(min), int(max)
}
