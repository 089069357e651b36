package allocation

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/NilsFunk/supereight-1/rimage"
	"github.com/NilsFunk/supereight-1/transform"
)

func uniformDepthMap(w, h int, d float64) *rimage.DepthMap {
	dm := rimage.NewEmptyDepthMap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dm.Set(x, y, d)
		}
	}
	return dm
}

func TestReprojectIntoImage(t *testing.T) {
	intrinsics := &transform.PinholeCameraIntrinsics{Width: 32, Height: 32, Fx: 100, Fy: 100, Ppx: 16, Ppy: 16}
	k := intrinsics.ProjectionMatrix()
	// camera centred over the map in x and y, looking along +z
	pose := transform.NewPose(mgl64.Ident3(), r3.Vector{X: 0.16, Y: 0.16, Z: 0})
	mask := rimage.NewDepthMask(uniformDepthMap(32, 32, 0.5), 4)
	voxelDim := 0.005

	t.Run("visible node", func(t *testing.T) {
		ok := reprojectIntoImage(pose, k, 32, 32, mask, 4, [3]int{24, 24, 56}, voxelDim, 8)
		test.That(t, ok, test.ShouldBeTrue)
	})

	t.Run("node touching the camera plane", func(t *testing.T) {
		ok := reprojectIntoImage(pose, k, 32, 32, mask, 4, [3]int{24, 24, 0}, voxelDim, 8)
		test.That(t, ok, test.ShouldBeFalse)
	})

	t.Run("node outside the image", func(t *testing.T) {
		ok := reprojectIntoImage(pose, k, 32, 32, mask, 4, [3]int{0, 0, 56}, voxelDim, 8)
		test.That(t, ok, test.ShouldBeFalse)
	})
}

func TestReprojectIntoImageMask(t *testing.T) {
	// wide field of view so a 16-voxel node fits in the frustum
	intrinsics := &transform.PinholeCameraIntrinsics{Width: 32, Height: 32, Fx: 20, Fy: 20, Ppx: 16, Ppy: 16}
	k := intrinsics.ProjectionMatrix()
	pose := transform.NewPose(mgl64.Ident3(), r3.Vector{X: 0.16, Y: 0.16, Z: 0})
	voxelDim := 0.005
	node := [3]int{16, 16, 48}

	fullMask := rimage.NewDepthMask(uniformDepthMap(32, 32, 0.5), 4)
	test.That(t, reprojectIntoImage(pose, k, 32, 32, fullMask, 4, node, voxelDim, 16), test.ShouldBeTrue)

	// zero the left image half; the node's projection overlaps it
	dm := uniformDepthMap(32, 32, 0.5)
	for y := 0; y < 32; y++ {
		for x := 0; x < 16; x++ {
			dm.Set(x, y, 0)
		}
	}
	halfMask := rimage.NewDepthMask(dm, 4)
	test.That(t, reprojectIntoImage(pose, k, 32, 32, halfMask, 4, node, voxelDim, 16), test.ShouldBeFalse)

	// block-sized nodes skip the mask check
	test.That(t, reprojectIntoImage(pose, k, 32, 32, halfMask, 4, [3]int{24, 24, 56}, voxelDim, 8), test.ShouldBeTrue)
}
