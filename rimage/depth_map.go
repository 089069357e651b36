// Package rimage contains depth image representations and the downsampled
// validity mask used to prefilter allocation work.
package rimage

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// DepthMap is a dense depth image. Values are metres; 0 means no measurement.
type DepthMap struct {
	width  int
	height int

	data []float64
}

// NewEmptyDepthMap returns a zeroed depth map of the given dimensions.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]float64, width*height),
	}
}

func (dm *DepthMap) HasData() bool {
	return dm.width > 0 && dm.data != nil
}

func (dm *DepthMap) Width() int {
	return dm.width
}

func (dm *DepthMap) Height() int {
	return dm.height
}

func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

func (dm *DepthMap) Get(p image.Point) float64 {
	return dm.data[p.X+p.Y*dm.width]
}

func (dm *DepthMap) GetDepth(x, y int) float64 {
	return dm.data[x+y*dm.width]
}

func (dm *DepthMap) Set(x, y int, val float64) {
	dm.data[x+y*dm.width] = val
}

// MinMax returns the smallest and largest non-zero depths in the map.
func (dm *DepthMap) MinMax() (float64, float64) {
	min := math.Inf(1)
	max := 0.0
	for _, z := range dm.data {
		if z == 0 {
			continue
		}
		if z < min {
			min = z
		}
		if z > max {
			max = z
		}
	}
	if max == 0 {
		return 0, 0
	}
	return min, max
}

// ParseDepthMap reads a depth map from the given file, decompressing it first
// if the file name ends in .gz.
func ParseDepthMap(fn string) (*DepthMap, error) {
	var f io.Reader

	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}

	if filepath.Ext(fn) == ".gz" {
		f, err = gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
	}

	return ReadDepthMap(bufio.NewReader(f))
}

// ReadDepthMap reads a binary depth map: two little-endian uint64 dimensions
// followed by width*height little-endian float64 metres in row-major order.
func ReadDepthMap(r *bufio.Reader) (*DepthMap, error) {
	var header [16]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, errors.Wrap(err, "error reading depth map header")
	}
	width := int(binary.LittleEndian.Uint64(header[:8]))
	height := int(binary.LittleEndian.Uint64(header[8:]))

	if width <= 0 || width >= 100000 || height <= 0 || height >= 100000 {
		return nil, errors.Errorf("bad width or height for depth map %v %v", width, height)
	}

	dm := NewEmptyDepthMap(width, height)
	buf := make([]byte, 8)
	for i := range dm.data {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.Wrapf(err, "error reading depth map pixel %d", i)
		}
		dm.data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf))
	}

	return dm, nil
}

// WriteToFile writes the depth map to the given file, compressing it if the
// file name ends in .gz.
func (dm *DepthMap) WriteToFile(fn string) error {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer f.Close()

	var gout *gzip.Writer
	var out io.Writer = f

	if filepath.Ext(fn) == ".gz" {
		gout = gzip.NewWriter(f)
		out = gout
		defer gout.Close()
	}

	if err := dm.WriteTo(out); err != nil {
		return err
	}

	if gout != nil {
		if err := gout.Flush(); err != nil {
			return err
		}
	}

	return f.Sync()
}

// WriteTo writes the depth map in the binary format ReadDepthMap expects.
func (dm *DepthMap) WriteTo(out io.Writer) error {
	buf := make([]byte, 8)

	binary.LittleEndian.PutUint64(buf, uint64(dm.width))
	if _, err := out.Write(buf); err != nil {
		return err
	}

	binary.LittleEndian.PutUint64(buf, uint64(dm.height))
	if _, err := out.Write(buf); err != nil {
		return err
	}

	for _, z := range dm.data {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(z))
		if _, err := out.Write(buf); err != nil {
			return err
		}
	}

	return nil
}
