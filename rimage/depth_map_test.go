package rimage

import (
	"image"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestDepthMapBasics(t *testing.T) {
	dm := NewEmptyDepthMap(4, 3)
	test.That(t, dm.Width(), test.ShouldEqual, 4)
	test.That(t, dm.Height(), test.ShouldEqual, 3)
	test.That(t, dm.HasData(), test.ShouldBeTrue)
	test.That(t, dm.Bounds(), test.ShouldResemble, image.Rect(0, 0, 4, 3))

	dm.Set(2, 1, 1.25)
	test.That(t, dm.GetDepth(2, 1), test.ShouldEqual, 1.25)
	test.That(t, dm.Get(image.Point{2, 1}), test.ShouldEqual, 1.25)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, 0.0)
}

func TestDepthMapMinMax(t *testing.T) {
	dm := NewEmptyDepthMap(3, 3)
	min, max := dm.MinMax()
	test.That(t, min, test.ShouldEqual, 0.0)
	test.That(t, max, test.ShouldEqual, 0.0)

	dm.Set(0, 0, 0.5)
	dm.Set(2, 2, 2.0)
	min, max = dm.MinMax()
	test.That(t, min, test.ShouldEqual, 0.5)
	test.That(t, max, test.ShouldEqual, 2.0)
}

func TestDepthMapRoundTrip(t *testing.T) {
	dm := NewEmptyDepthMap(5, 4)
	for y := 0; y < dm.Height(); y++ {
		for x := 0; x < dm.Width(); x++ {
			dm.Set(x, y, float64(x)*0.1+float64(y))
		}
	}

	for _, name := range []string{"depth.bin", "depth.bin.gz"} {
		t.Run(name, func(t *testing.T) {
			fn := filepath.Join(t.TempDir(), name)
			test.That(t, dm.WriteToFile(fn), test.ShouldBeNil)

			dm2, err := ParseDepthMap(fn)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, dm2.Width(), test.ShouldEqual, dm.Width())
			test.That(t, dm2.Height(), test.ShouldEqual, dm.Height())
			for y := 0; y < dm.Height(); y++ {
				for x := 0; x < dm.Width(); x++ {
					test.That(t, dm2.GetDepth(x, y), test.ShouldEqual, dm.GetDepth(x, y))
				}
			}
		})
	}
}

func TestParseDepthMapMissingFile(t *testing.T) {
	_, err := ParseDepthMap(filepath.Join(t.TempDir(), "missing.bin"))
	test.That(t, err, test.ShouldNotBeNil)
}
