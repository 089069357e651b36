// Package main is a command that runs the volumetric allocators over a depth
// map file and reports how many octants each strategy would create.
package main

import (
	"context"
	"flag"
	"sort"

	"github.com/edaniels/golog"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/NilsFunk/supereight-1/allocation"
	"github.com/NilsFunk/supereight-1/octree"
	"github.com/NilsFunk/supereight-1/rimage"
	"github.com/NilsFunk/supereight-1/transform"
	"github.com/NilsFunk/supereight-1/utils"
)

var logger = golog.NewDevelopmentLogger("allocate")

func main() {
	mapSize := flag.Int("map-size", 512, "map side length in voxels (power of two)")
	voxelDim := flag.Float64("voxel-dim", 0.005, "voxel side length in metres")
	fx := flag.Float64("fx", 525.0, "focal length x")
	fy := flag.Float64("fy", 525.0, "focal length y")
	band := flag.Float64("band", 0.1, "surface band thickness in metres")
	doublingRatio := flag.Int("doubling-ratio", 1, "band multiples before the step may double")
	allocationSize := flag.Int("allocation-size", 64, "size floor/ceiling handed to the allocators, in voxels")
	reserved := flag.Int("reserved", 1<<20, "key reservation per output list")

	flag.Parse()

	if flag.NArg() < 1 {
		panic("need one arg <depth map file>")
	}

	dm, err := rimage.ParseDepthMap(flag.Arg(0))
	if err != nil {
		panic(err)
	}

	intrinsics := &transform.PinholeCameraIntrinsics{
		Width:  dm.Width(),
		Height: dm.Height(),
		Fx:     *fx,
		Fy:     *fy,
		Ppx:    float64(dm.Width()) / 2,
		Ppy:    float64(dm.Height()) / 2,
	}
	if err := intrinsics.CheckValid(); err != nil {
		panic(err)
	}

	ctx := context.Background()
	oct, err := octree.New[float32](ctx, *mapSize, float64(*mapSize)**voxelDim, nil, logger)
	if err != nil {
		panic(err)
	}

	cameraPose := mgl64.Ident4()
	k := intrinsics.ProjectionMatrix()

	surfaceList := make([]octree.Key, *reserved)
	parentList := make([]octree.Key, *reserved)
	var surfaceCount, parentCount int

	elapsed, err := utils.RunInParallel(ctx, []utils.SimpleFunc{
		func(ctx context.Context) error {
			surfaceCount = allocation.BuildOctantList(surfaceList, oct, cameraPose, k, dm,
				*voxelDim, *band, *doublingRatio, *allocationSize)
			return nil
		},
		func(ctx context.Context) error {
			parentCount = allocation.BuildParentOctantList(parentList, oct, cameraPose, k, dm,
				*voxelDim, *band, *doublingRatio, *allocationSize)
			return nil
		},
	})
	if err != nil {
		panic(err)
	}
	logger.Infow("band allocators done",
		"elapsed", elapsed,
		"surface keys", surfaceCount,
		"parent keys", parentCount,
	)

	denseList := make([]octree.Key, *reserved)
	frustumList := make([]octree.Key, *reserved)
	denseCount, frustumCount := allocation.BuildDenseOctantList(denseList, frustumList, oct,
		cameraPose, k, dm, *voxelDim, *band, *doublingRatio, *allocationSize)
	logger.Infow("dense allocator done", "allocation keys", denseCount, "frustum keys", frustumCount)

	keys := dedup(append(surfaceList[:surfaceCount], denseList[:denseCount]...))
	created := oct.Allocate(keys)
	logger.Infow("allocated", "unique keys", len(keys), "nodes created", created)
}

func dedup(keys []octree.Key) []octree.Key {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := keys[:0]
	var last octree.Key
	for i, k := range keys {
		if i == 0 || k != last {
			out = append(out, k)
		}
		last = k
	}
	return out
}
