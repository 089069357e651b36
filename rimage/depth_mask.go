package rimage

import (
	"image"

	"github.com/NilsFunk/supereight-1/utils"
)

// DepthMask is a downsampled binary view of a depth map. A cell is set iff
// every source pixel it covers has a strictly positive depth, biasing the
// consumers toward conservative allocation.
type DepthMask struct {
	width  int
	height int

	data []bool
}

// NewDepthMask downsamples dm by the given factor. The mask has dimensions
// floor(W/d) x floor(H/d); cells are computed independently in parallel.
func NewDepthMask(dm *DepthMap, downsample int) *DepthMask {
	mask := &DepthMask{
		width:  dm.Width() / downsample,
		height: dm.Height() / downsample,
	}
	mask.data = make([]bool, mask.width*mask.height)
	utils.ParallelForEachPixel(image.Point{mask.width, mask.height}, func(x, y int) {
		cornerX := downsample * x
		cornerY := downsample * y
		dataComplete := true
		for i := 0; i < downsample; i++ {
			for j := 0; j < downsample; j++ {
				if dm.GetDepth(cornerX+j, cornerY+i) == 0 {
					dataComplete = false
				}
			}
		}
		mask.data[x+y*mask.width] = dataComplete
	})
	return mask
}

func (m *DepthMask) Width() int {
	return m.width
}

func (m *DepthMask) Height() int {
	return m.height
}

// Get reports whether the mask cell at (x, y) covers only valid depth.
func (m *DepthMask) Get(x, y int) bool {
	return m.data[x+y*m.width]
}
