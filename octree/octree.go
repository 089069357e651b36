// Package octree implements a sparse multi-resolution octree of voxel blocks.
// Internal octants subdivide the map cube down to leaf blocks of side
// BlockSide which store per-voxel payload. The tree is read concurrently by
// the allocation traversals and mutated only through Allocate, which must
// never overlap a traversal.
package octree

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/NilsFunk/supereight-1/utils"
)

// BlockSide is the side length in voxels of a leaf voxel block.
const BlockSide = 8

// Octree is a sparse octree over a cube of size^3 voxels spanning dim metres,
// generic over the per-voxel payload type.
type Octree[T any] struct {
	logger    golog.Logger
	size      int
	dim       float64
	maxLevel  int
	leafLevel int
	root      *Node[T]
	initValue func() T
}

// New creates an empty octree over a cube of size^3 voxels spanning dim
// metres. size must be a power of two larger than BlockSide. initValue
// seeds the payload of every voxel in newly created blocks; nil means the
// zero value.
func New[T any](ctx context.Context, size int, dim float64, initValue func() T, logger golog.Logger) (*Octree[T], error) {
	if !utils.IsPowerOfTwo(size) || size <= BlockSide {
		return nil, errors.Errorf("invalid size (%d) for octree, must be a power of two > %d", size, BlockSide)
	}
	if dim <= 0 {
		return nil, errors.Errorf("invalid dimension (%.2f m) for octree", dim)
	}
	if initValue == nil {
		initValue = func() T {
			var zero T
			return zero
		}
	}
	maxLevel := utils.Log2Int(size)
	return &Octree[T]{
		logger:    logger,
		size:      size,
		dim:       dim,
		maxLevel:  maxLevel,
		leafLevel: maxLevel - utils.Log2Int(BlockSide),
		root: &Node[T]{
			nodeType: InternalNode,
			size:     size,
		},
		initValue: initValue,
	}, nil
}

// Size returns the map side length in voxels.
func (o *Octree[T]) Size() int {
	return o.size
}

// Dim returns the map side length in metres.
func (o *Octree[T]) Dim() float64 {
	return o.dim
}

// VoxelDim returns the side length of a single voxel in metres.
func (o *Octree[T]) VoxelDim() float64 {
	return o.dim / float64(o.size)
}

// MaxLevel returns the deepest level of the tree, log2(Size).
func (o *Octree[T]) MaxLevel() int {
	return o.maxLevel
}

// LeafLevel returns the level at which voxel blocks live.
func (o *Octree[T]) LeafLevel() int {
	return o.leafLevel
}

// Root returns the root octant.
func (o *Octree[T]) Root() *Node[T] {
	return o.root
}

// Hash packs (x, y, z, level) into an octant key. The coordinates must be
// aligned to the octant side at level.
func (o *Octree[T]) Hash(x, y, z, level int) Key {
	return NewKey(x, y, z, level)
}

// FetchOctant returns the allocated node at the given level whose cube
// contains (x, y, z). If the path reaches a voxel block above the requested
// level the block is returned. Returns nil if the octant is not allocated or
// the coordinates are outside the map.
func (o *Octree[T]) FetchOctant(x, y, z, level int) *Node[T] {
	if x < 0 || y < 0 || z < 0 || x >= o.size || y >= o.size || z >= o.size {
		return nil
	}
	n := o.root
	for l := 1; l <= level; l++ {
		if n.nodeType == BlockNode {
			return n
		}
		c := n.children[o.childIdx(x, y, z, l)]
		if c == nil {
			return nil
		}
		n = c
	}
	return n
}

// Fetch returns the voxel block containing (x, y, z), or nil.
func (o *Octree[T]) Fetch(x, y, z int) *Node[T] {
	return o.FetchOctant(x, y, z, o.leafLevel)
}

// Allocate inserts the octants named by keys, creating intermediate internal
// nodes as needed. Keys deeper than the leaf level are clamped to it; keys
// outside the map are skipped. When a voxel block is created, its seven
// siblings are materialised as well so that every allocated block sits in a
// complete sibling set. Returns the number of nodes created. Allocate must
// not run concurrently with traversals or other Allocate calls.
func (o *Octree[T]) Allocate(keys []Key) int {
	created := 0
	for _, k := range keys {
		x, y, z := k.Coords()
		if x < 0 || y < 0 || z < 0 || x >= o.size || y >= o.size || z >= o.size {
			continue
		}
		level := utils.MinInt(k.Level(), o.leafLevel)
		created += o.allocateOne(x, y, z, level)
	}
	return created
}

func (o *Octree[T]) allocateOne(x, y, z, level int) int {
	created := 0
	n := o.root
	for l := 1; l <= level; l++ {
		if n.nodeType == BlockNode {
			return created
		}
		idx := o.childIdx(x, y, z, l)
		c := n.children[idx]
		if c == nil {
			if l == o.leafLevel {
				created += o.fillBlockChildren(n)
				c = n.children[idx]
			} else {
				c = o.newInternalChild(n, x, y, z, l)
				created++
			}
		}
		n = c
	}
	return created
}

// childIdx returns which child of a level l-1 node contains (x, y, z).
func (o *Octree[T]) childIdx(x, y, z, l int) int {
	shift := uint(o.maxLevel - l)
	return (x>>shift)&1 | ((y>>shift)&1)<<1 | ((z>>shift)&1)<<2
}

func (o *Octree[T]) newInternalChild(parent *Node[T], x, y, z, l int) *Node[T] {
	side := o.size >> uint(l)
	c := &Node[T]{
		nodeType: InternalNode,
		x:        x &^ (side - 1),
		y:        y &^ (side - 1),
		z:        z &^ (side - 1),
		level:    l,
		size:     side,
		parent:   parent,
	}
	parent.children[o.childIdx(x, y, z, l)] = c
	return c
}

// fillBlockChildren materialises all missing block children of an internal
// node one level above the leaves.
func (o *Octree[T]) fillBlockChildren(parent *Node[T]) int {
	created := 0
	for i := 0; i < 8; i++ {
		if parent.children[i] != nil {
			continue
		}
		b := &Node[T]{
			nodeType: BlockNode,
			x:        parent.x + (i&1)*BlockSide,
			y:        parent.y + (i>>1&1)*BlockSide,
			z:        parent.z + (i>>2&1)*BlockSide,
			level:    o.leafLevel,
			size:     BlockSide,
			parent:   parent,
			data:     make([]T, BlockSide*BlockSide*BlockSide),
		}
		for j := range b.data {
			b.data[j] = o.initValue()
		}
		parent.children[i] = b
		created++
	}
	return created
}

// Set stores a payload value at voxel (x, y, z). Returns false if no block
// contains the voxel.
func (o *Octree[T]) Set(x, y, z int, value T) bool {
	b := o.Fetch(x, y, z)
	if b == nil || !b.IsBlock() {
		if o.logger != nil {
			o.logger.Debugw("set on unallocated voxel, skipping", "x", x, "y", y, "z", z)
		}
		return false
	}
	b.Set(x, y, z, value)
	return true
}

// Get returns the payload value at voxel (x, y, z) and whether a block
// contains the voxel.
func (o *Octree[T]) Get(x, y, z int) (T, bool) {
	b := o.Fetch(x, y, z)
	if b == nil || !b.IsBlock() {
		var zero T
		return zero, false
	}
	return b.Get(x, y, z), true
}
