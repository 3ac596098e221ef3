package tsdf

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/fusion/spatialmath"
	"go.viam.com/fusion/utils"
)

// maxVoxelWeight caps the observation count per voxel so the running average
// stays responsive to new evidence.
const maxVoxelWeight = 100

// RegularGrid is a dense truncated signed distance volume. Each voxel stores
// a distance to the nearest observed surface (world units, clamped to
// ±maxTSDF) and an observation weight; weight zero means unobserved. Voxel
// (x, y, z) is centered at grid coordinates (x+0.5, y+0.5, z+0.5).
type RegularGrid struct {
	resX, resY, resZ int
	worldFromGrid    spatialmath.SimilarityTransform
	gridFromWorld    spatialmath.SimilarityTransform
	maxTSDF          float64

	dist   []float32
	weight []float32
}

var _ Volume = (*RegularGrid)(nil)

// NewRegularGrid allocates an empty volume with the given resolution, placed
// in the world by worldFromGrid. maxTSDF is the truncation distance in world
// units and must be positive.
func NewRegularGrid(resolution [3]int, worldFromGrid spatialmath.SimilarityTransform, maxTSDF float64) (*RegularGrid, error) {
	for _, r := range resolution {
		if r <= 0 {
			return nil, errors.Errorf("grid resolution must be positive, got %v", resolution)
		}
	}
	if maxTSDF <= 0 {
		return nil, errors.Errorf("max TSDF magnitude must be positive, got %v", maxTSDF)
	}
	n := resolution[0] * resolution[1] * resolution[2]
	return &RegularGrid{
		resX:          resolution[0],
		resY:          resolution[1],
		resZ:          resolution[2],
		worldFromGrid: worldFromGrid,
		gridFromWorld: worldFromGrid.Invert(),
		maxTSDF:       maxTSDF,
		dist:          make([]float32, n),
		weight:        make([]float32, n),
	}, nil
}

// Resolution returns the voxel counts along each axis.
func (g *RegularGrid) Resolution() [3]int {
	return [3]int{g.resX, g.resY, g.resZ}
}

// WorldFromGrid returns the transform placing the grid in the world.
func (g *RegularGrid) WorldFromGrid() spatialmath.SimilarityTransform {
	return g.worldFromGrid
}

// BoundingBox returns the grid extent in grid coordinates. Compose with
// WorldFromGrid to frame the volume in the world.
func (g *RegularGrid) BoundingBox() spatialmath.Box3 {
	return spatialmath.NewBox3(
		r3.Vector{},
		r3.Vector{X: float64(g.resX), Y: float64(g.resY), Z: float64(g.resZ)},
	)
}

// VoxelSizeWorld returns the world-space edge length of one voxel.
func (g *RegularGrid) VoxelSizeWorld() float64 {
	return g.worldFromGrid.Scale()
}

// Reset clears all accumulated evidence, returning the volume to its
// unobserved state.
func (g *RegularGrid) Reset() {
	for i := range g.dist {
		g.dist[i] = 0
		g.weight[i] = 0
	}
}

func (g *RegularGrid) index(x, y, z int) int {
	return (z*g.resY+y)*g.resX + x
}

// sample trilinearly interpolates the signed distance at continuous grid
// coordinates. It reports false if any contributing voxel is out of bounds
// or unobserved.
func (g *RegularGrid) sample(p r3.Vector) (float64, bool) {
	fx := p.X - 0.5
	fy := p.Y - 0.5
	fz := p.Z - 0.5
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	z0 := int(math.Floor(fz))
	if x0 < 0 || y0 < 0 || z0 < 0 || x0+1 >= g.resX || y0+1 >= g.resY || z0+1 >= g.resZ {
		return 0, false
	}
	tx := fx - float64(x0)
	ty := fy - float64(y0)
	tz := fz - float64(z0)

	var c [2][2][2]float64
	for dz := 0; dz < 2; dz++ {
		for dy := 0; dy < 2; dy++ {
			for dx := 0; dx < 2; dx++ {
				i := g.index(x0+dx, y0+dy, z0+dz)
				if g.weight[i] <= 0 {
					return 0, false
				}
				c[dz][dy][dx] = float64(g.dist[i])
			}
		}
	}
	c00 := utils.Lerp(c[0][0][0], c[0][0][1], tx)
	c01 := utils.Lerp(c[0][1][0], c[0][1][1], tx)
	c10 := utils.Lerp(c[1][0][0], c[1][0][1], tx)
	c11 := utils.Lerp(c[1][1][0], c[1][1][1], tx)
	c0 := utils.Lerp(c00, c01, ty)
	c1 := utils.Lerp(c10, c11, ty)
	return utils.Lerp(c0, c1, tz), true
}

// gradient estimates the signed distance gradient at continuous grid
// coordinates by central differences, returned as a world-space direction.
func (g *RegularGrid) gradient(p r3.Vector) (r3.Vector, bool) {
	const h = 0.5
	xp, okxp := g.sample(r3.Vector{X: p.X + h, Y: p.Y, Z: p.Z})
	xm, okxm := g.sample(r3.Vector{X: p.X - h, Y: p.Y, Z: p.Z})
	yp, okyp := g.sample(r3.Vector{X: p.X, Y: p.Y + h, Z: p.Z})
	ym, okym := g.sample(r3.Vector{X: p.X, Y: p.Y - h, Z: p.Z})
	zp, okzp := g.sample(r3.Vector{X: p.X, Y: p.Y, Z: p.Z + h})
	zm, okzm := g.sample(r3.Vector{X: p.X, Y: p.Y, Z: p.Z - h})
	if !(okxp && okxm && okyp && okym && okzp && okzm) {
		return r3.Vector{}, false
	}
	grad := r3.Vector{X: xp - xm, Y: yp - ym, Z: zp - zm}
	if grad.Norm() == 0 {
		return r3.Vector{}, false
	}
	// Uniform scale preserves direction, so rotation alone maps the gradient
	// into the world frame.
	return g.worldFromGrid.RotateVector(grad).Normalize(), true
}
