package tsdf

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/fusion/rimage"
	"go.viam.com/fusion/utils"
)

// Raycast marches fixed-size steps (half a voxel) along each output pixel's
// ray, looking for the first front-facing zero crossing of the signed
// distance field within the viewpoint's depth range. Hits produce a
// world-space position and normal; everything else stays invalid.
func (g *RegularGrid) Raycast(cam PosedDepthCamera, points, normals *rimage.PointMap) error {
	return g.raycast(cam, points, normals, false)
}

// AdaptiveRaycast is Raycast with step sizes scaled by the sampled distance
// value: far from the surface the ray advances nearly a full truncation
// distance per step, near it the step shrinks, and the final crossing is
// refined by bisection. The output contract is identical to Raycast.
func (g *RegularGrid) AdaptiveRaycast(cam PosedDepthCamera, points, normals *rimage.PointMap) error {
	return g.raycast(cam, points, normals, true)
}

func (g *RegularGrid) raycast(cam PosedDepthCamera, points, normals *rimage.PointMap, adaptive bool) error {
	if points == nil || normals == nil {
		return errors.New("raycast output buffers cannot be nil")
	}
	if points.Width() != normals.Width() || points.Height() != normals.Height() {
		return errors.Errorf("position buffer (%d, %d) and normal buffer (%d, %d) must share a resolution",
			points.Width(), points.Height(), normals.Width(), normals.Height())
	}

	worldFromCamera := cam.CameraFromWorld.Invert()
	originGrid := g.gridFromWorld.TransformPoint(worldFromCamera.Translation())
	boundsMax := r3.Vector{X: float64(g.resX), Y: float64(g.resY), Z: float64(g.resZ)}
	scale := g.worldFromGrid.Scale()
	truncGrid := g.maxTSDF / scale

	width, height := points.Width(), points.Height()
	utils.ParallelOverRange(height, func(rowStart, rowEnd int) {
		for v := rowStart; v < rowEnd; v++ {
			for u := 0; u < width; u++ {
				// Rays are parametrized by camera depth: dirCam has unit Z,
				// so t is the Z distance in front of the viewpoint.
				dirCam := r3.Vector{
					X: (float64(u) - cam.PrincipalPoint.X) / cam.FocalLength.X,
					Y: (float64(v) - cam.PrincipalPoint.Y) / cam.FocalLength.Y,
					Z: 1,
				}
				dirWorld := worldFromCamera.RotateVector(dirCam)
				dirGrid := g.gridFromWorld.TransformVector(dirWorld)

				pos, norm, ok := g.marchRay(originGrid, dirGrid, dirWorld, cam.DepthRange.Min, cam.DepthRange.Max, boundsMax, truncGrid, scale, adaptive)
				if ok {
					points.Set(u, v, pos)
					normals.Set(u, v, norm)
				} else {
					points.SetInvalid(u, v)
					normals.SetInvalid(u, v)
				}
			}
		}
	})
	return nil
}

// marchRay walks one ray through the grid and returns the world-space hit
// position and normal, if any. originGrid and dirGrid are in grid
// coordinates; t spans camera depth between tNear and tFar.
func (g *RegularGrid) marchRay(
	originGrid, dirGrid, dirWorld r3.Vector,
	tNear, tFar float64,
	boundsMax r3.Vector,
	truncGrid, scale float64,
	adaptive bool,
) (r3.Vector, r3.Vector, bool) {
	tEnter, tExit, ok := rayBoxSpan(originGrid, dirGrid, boundsMax)
	if !ok {
		return r3.Vector{}, r3.Vector{}, false
	}
	t0 := math.Max(tEnter, tNear)
	t1 := math.Min(tExit, tFar)
	if t0 > t1 {
		return r3.Vector{}, r3.Vector{}, false
	}

	gridPerT := dirGrid.Norm()
	if gridPerT == 0 {
		return r3.Vector{}, r3.Vector{}, false
	}
	// Fixed-step mode advances half a voxel per sample.
	fixedStep := 0.5 / gridPerT

	prevValid := false
	var prevD, prevT float64
	for t := t0; t <= t1; {
		p := originGrid.Add(dirGrid.Mul(t))
		d, sampled := g.sample(p)
		if !sampled {
			prevValid = false
			t += fixedStep
			continue
		}
		if d <= 0 && prevValid && prevD > 0 {
			tHit := prevT + (t-prevT)*prevD/(prevD-d)
			if adaptive {
				tHit = g.refineCrossing(originGrid, dirGrid, prevT, t, prevD, d)
			}
			pHit := originGrid.Add(dirGrid.Mul(tHit))
			world := g.worldFromGrid.TransformPoint(pHit)
			norm, okn := g.gradient(pHit)
			if !okn {
				norm = dirWorld.Mul(-1).Normalize()
			}
			return world, norm, true
		}
		prevValid, prevD, prevT = true, d, t

		step := fixedStep
		if adaptive && d > 0 {
			// The truncated distance is a conservative bound on how far the
			// surface can be; step most of it, clamped to [half voxel, one
			// truncation band].
			stepGrid := utils.Clamp(0.75*d/scale, 0.5, truncGrid)
			step = stepGrid / gridPerT
		}
		t += step
	}
	return r3.Vector{}, r3.Vector{}, false
}

// refineCrossing bisects the zero crossing bracketed by [tLo, tHi].
func (g *RegularGrid) refineCrossing(origin, dir r3.Vector, tLo, tHi, dLo, dHi float64) float64 {
	for i := 0; i < 8; i++ {
		tMid := (tLo + tHi) / 2
		dMid, ok := g.sample(origin.Add(dir.Mul(tMid)))
		if !ok {
			break
		}
		if dMid > 0 {
			tLo, dLo = tMid, dMid
		} else {
			tHi, dHi = tMid, dMid
		}
	}
	if dLo == dHi {
		return (tLo + tHi) / 2
	}
	return tLo + (tHi-tLo)*dLo/(dLo-dHi)
}

// rayBoxSpan intersects the ray origin + t*dir with the axis-aligned box
// [0, max] using the slab method, returning the entry and exit t.
func rayBoxSpan(origin, dir, max r3.Vector) (float64, float64, bool) {
	tMin := math.Inf(-1)
	tMax := math.Inf(1)
	o := [3]float64{origin.X, origin.Y, origin.Z}
	d := [3]float64{dir.X, dir.Y, dir.Z}
	hi := [3]float64{max.X, max.Y, max.Z}
	for a := 0; a < 3; a++ {
		if math.Abs(d[a]) < 1e-12 {
			if o[a] < 0 || o[a] > hi[a] {
				return 0, 0, false
			}
			continue
		}
		ta := (0 - o[a]) / d[a]
		tb := (hi[a] - o[a]) / d[a]
		if ta > tb {
			ta, tb = tb, ta
		}
		tMin = math.Max(tMin, ta)
		tMax = math.Min(tMax, tb)
	}
	if tMin > tMax {
		return 0, 0, false
	}
	return tMin, tMax, true
}
