package tsdf

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/fusion/rimage"
	"go.viam.com/fusion/utils"
)

// Fuse integrates one camera's undistorted depth map into the volume: one
// sweep over all voxels, projecting each into the camera and folding the
// observed signed distance into the voxel's running weighted average.
func (g *RegularGrid) Fuse(cam PosedDepthCamera, depth *rimage.DepthMap) error {
	return g.FuseMultiple([]PosedDepthCamera{cam}, []*rimage.DepthMap{depth})
}

// FuseMultiple integrates several cameras in a single sweep: each voxel is
// visited once and tested against every camera in order. Because per-voxel
// updates are applied in camera order either way, the result is identical to
// calling Fuse once per camera in the same order.
func (g *RegularGrid) FuseMultiple(cams []PosedDepthCamera, depths []*rimage.DepthMap) error {
	if len(cams) != len(depths) {
		return errors.Errorf("have %d cameras but %d depth maps", len(cams), len(depths))
	}
	if len(cams) == 0 {
		return errors.New("no cameras to fuse")
	}
	for i, d := range depths {
		if d == nil {
			return errors.Errorf("depth map for camera %d is nil", i)
		}
	}

	// Voxel slabs are disjoint, so the sweep parallelizes without locking
	// and stays deterministic.
	utils.ParallelOverRange(g.resZ, func(zStart, zEnd int) {
		for z := zStart; z < zEnd; z++ {
			for y := 0; y < g.resY; y++ {
				for x := 0; x < g.resX; x++ {
					g.fuseVoxel(x, y, z, cams, depths)
				}
			}
		}
	})
	return nil
}

func (g *RegularGrid) fuseVoxel(x, y, z int, cams []PosedDepthCamera, depths []*rimage.DepthMap) {
	center := r3.Vector{X: float64(x) + 0.5, Y: float64(y) + 0.5, Z: float64(z) + 0.5}
	world := g.worldFromGrid.TransformPoint(center)
	idx := g.index(x, y, z)

	for ci := range cams {
		cam := &cams[ci]
		p := cam.CameraFromWorld.TransformPoint(world)
		if p.Z < cam.DepthRange.Min || p.Z > cam.DepthRange.Max {
			continue
		}
		u := int(math.Round((p.X/p.Z)*cam.FocalLength.X + cam.PrincipalPoint.X))
		v := int(math.Round((p.Y/p.Z)*cam.FocalLength.Y + cam.PrincipalPoint.Y))
		dm := depths[ci]
		if !dm.In(u, v) {
			continue
		}
		d := float64(dm.GetDepth(u, v))
		if d <= 0 || !cam.DepthRange.Contains(d) {
			continue
		}

		// Signed distance along the ray: positive in front of the observed
		// surface, negative behind it. Voxels far behind the surface are
		// occluded, not empty, and must not be carved.
		sdf := d - p.Z
		if sdf < -g.maxTSDF {
			continue
		}
		tsdf := utils.ClampF32(float32(sdf), float32(-g.maxTSDF), float32(g.maxTSDF))

		w := g.weight[idx]
		g.dist[idx] = (g.dist[idx]*w + tsdf) / (w + 1)
		if w < maxVoxelWeight {
			g.weight[idx] = w + 1
		}
	}
}
