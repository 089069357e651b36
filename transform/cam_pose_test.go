package transform

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestPoseAccessors(t *testing.T) {
	rot := mgl64.Rotate3DZ(math.Pi / 2)
	tr := r3.Vector{X: 1, Y: 2, Z: 3}
	p := NewPose(rot, tr)

	test.That(t, PoseTranslation(p), test.ShouldResemble, tr)
	got := PoseRotation(p)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			test.That(t, got.At(r, c), test.ShouldAlmostEqual, rot.At(r, c))
		}
	}
}

func TestPoseInverse(t *testing.T) {
	p := NewPose(mgl64.Rotate3DY(0.3), r3.Vector{X: -1, Y: 0.5, Z: 2})
	ident := p.Mul4(PoseInverse(p))
	want := mgl64.Ident4()
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			test.That(t, ident.At(r, c), test.ShouldAlmostEqual, want.At(r, c), 1e-12)
		}
	}
}

func TestTransformPoint(t *testing.T) {
	p := NewPose(mgl64.Ident3(), r3.Vector{X: 1, Y: 2, Z: 3})
	got := TransformPoint(p, r3.Vector{X: 0.5, Y: 0, Z: -1})
	test.That(t, got.X, test.ShouldAlmostEqual, 1.5)
	test.That(t, got.Y, test.ShouldAlmostEqual, 2.0)
	test.That(t, got.Z, test.ShouldAlmostEqual, 2.0)

	flip := NewPose(mgl64.Rotate3DZ(math.Pi), r3.Vector{})
	got = TransformPoint(flip, r3.Vector{X: 1, Y: 0, Z: 0})
	test.That(t, got.X, test.ShouldAlmostEqual, -1, 1e-12)
	test.That(t, got.Y, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, got.Z, test.ShouldAlmostEqual, 0, 1e-12)
}
