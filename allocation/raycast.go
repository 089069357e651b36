// Package allocation decides which octants of a sparse volumetric map must
// exist to carry a posed depth image. Rays are walked from just behind each
// measured surface point toward the camera with a 3D-DDA whose step adapts to
// the distance from the surface; the traversal emits packed octant keys for
// an external allocator and re-activates octants that already exist.
package allocation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// ray is the per-pixel traversal setup shared by the allocators: an origin
// half a band behind the measured surface, a unit direction toward the
// camera, and the distance budget, all in voxel units.
type ray struct {
	originV   [3]float64
	direction [3]float64
	distance  float64
}

// newRay back-projects the centre of pixel (x, y) with the given depth
// through invP (T_wc * K^-1) and prepares the traversal toward the camera.
func newRay(invP mgl64.Mat4, cameraPosition r3.Vector, x, y int, depth, band, invVoxelDim float64) ray {
	h := invP.Mul4x1(mgl64.Vec4{(float64(x) + 0.5) * depth, (float64(y) + 0.5) * depth, depth, 1})
	worldVertex := r3.Vector{X: h.X(), Y: h.Y(), Z: h.Z()}

	direction := cameraPosition.Sub(worldVertex).Normalize()
	allocationOrigin := worldVertex.Sub(direction.Mul(band * 0.5))
	distance := invVoxelDim * cameraPosition.Sub(allocationOrigin).Norm()

	return ray{
		originV: [3]float64{
			invVoxelDim * allocationOrigin.X,
			invVoxelDim * allocationOrigin.Y,
			invVoxelDim * allocationOrigin.Z,
		},
		direction: [3]float64{direction.X, direction.Y, direction.Z},
		distance:  distance,
	}
}

// stepBase returns the per-axis step signs along the ray.
func (r *ray) stepBase() [3]int {
	var s [3]int
	for a := 0; a < 3; a++ {
		if r.direction[a] < 0 {
			s[a] = -1
		} else {
			s[a] = 1
		}
	}
	return s
}

// position returns the voxel-space position after travelling the given voxel
// distance from the origin.
func (r *ray) position(travelled float64) [3]float64 {
	var p [3]float64
	for a := range p {
		p[a] = r.originV[a] + travelled*r.direction[a]
	}
	return p
}

// deltaT returns the travelled distance needed to cross a cell of the given
// size along each axis. A zero direction component yields +Inf, which
// suppresses advancement along that axis.
func (r *ray) deltaT(size int) [3]float64 {
	var d [3]float64
	for a := range d {
		d[a] = float64(size) / math.Abs(r.direction[a])
	}
	return d
}

// tMax returns, per axis, the travelled distance at which the ray next
// crosses a face of the size-sided cell with minimum corner node, given the
// current travelled distance.
func (r *ray) tMax(node [3]int, size int, travelled float64, deltaT [3]float64) [3]float64 {
	pos := r.position(travelled)
	var t [3]float64
	for a := 0; a < 3; a++ {
		frac := (pos[a] - float64(node[a])) / float64(size)
		if r.direction[a] < 0 {
			t[a] = travelled + frac*deltaT[a]
		} else {
			t[a] = travelled + (1-frac)*deltaT[a]
		}
	}
	return t
}

// minAxis returns the axis whose next face crossing is nearest. +Inf entries
// (axes a degenerate ray does not move along) lose every comparison with a
// finite entry and are never selected while one is finite.
func minAxis(tMax [3]float64) int {
	if tMax[0] < tMax[1] {
		if tMax[0] < tMax[2] {
			return 0
		}
		return 2
	}
	if tMax[1] < tMax[2] {
		return 1
	}
	return 2
}

// snapDown quantises a voxel-space position to the corner of the containing
// size-sided cell.
func snapDown(pos [3]float64, size int) [3]int {
	var n [3]int
	for a := range n {
		n[a] = size * int(math.Floor(pos[a]/float64(size)))
	}
	return n
}

// snapDownCell re-aligns integer cell coordinates to a coarser cell size.
func snapDownCell(node [3]int, size int) [3]int {
	var n [3]int
	for a := range n {
		n[a] = size * (node[a] / size)
	}
	return n
}

func inBounds(node [3]int, size int) bool {
	return node[0] >= 0 && node[1] >= 0 && node[2] >= 0 &&
		node[0] < size && node[1] < size && node[2] < size
}
