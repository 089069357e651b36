package transform

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// Camera poses are 4x4 rigid transforms mapping camera-frame points into the
// world frame (world <- camera).

// NewPose assembles a rigid transform from a rotation and a translation.
func NewPose(rot mgl64.Mat3, t r3.Vector) mgl64.Mat4 {
	p := mgl64.Ident4()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			p.Set(r, c, rot.At(r, c))
		}
	}
	p.Set(0, 3, t.X)
	p.Set(1, 3, t.Y)
	p.Set(2, 3, t.Z)
	return p
}

// PoseTranslation returns the translation column of a rigid transform, i.e.
// the camera centre in the world frame for a world <- camera pose.
func PoseTranslation(p mgl64.Mat4) r3.Vector {
	return r3.Vector{X: p.At(0, 3), Y: p.At(1, 3), Z: p.At(2, 3)}
}

// PoseRotation returns the rotation block of a rigid transform.
func PoseRotation(p mgl64.Mat4) mgl64.Mat3 {
	return p.Mat3()
}

// PoseInverse inverts a rigid transform.
func PoseInverse(p mgl64.Mat4) mgl64.Mat4 {
	return p.Inv()
}

// TransformPoint applies a 4x4 transform to a 3D point.
func TransformPoint(m mgl64.Mat4, p r3.Vector) r3.Vector {
	v := m.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	return r3.Vector{X: v.X(), Y: v.Y(), Z: v.Z()}
}
