package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/fusion/rimage"
)

// UndistortionMap is a dense field of remap coordinates, one entry per depth
// pixel: entry (u, v) holds the source pixel in the raw (distorted) frame
// whose sample belongs at (u, v) in the undistorted frame. It is precomputed
// once from calibration and read-only afterward.
type UndistortionMap struct {
	width  int
	height int
	remap  []r2.Point
}

// NewUndistortionMap evaluates the distortion model over the full sensor
// resolution and returns the resulting remap field. A nil distorter yields
// the identity map.
func NewUndistortionMap(intrinsics *PinholeCameraIntrinsics, distorter Distorter) (*UndistortionMap, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	um := &UndistortionMap{
		width:  intrinsics.Width,
		height: intrinsics.Height,
		remap:  make([]r2.Point, intrinsics.Width*intrinsics.Height),
	}
	for v := 0; v < intrinsics.Height; v++ {
		for u := 0; u < intrinsics.Width; u++ {
			x, y := float64(u), float64(v)
			if distorter != nil {
				nx := (x - intrinsics.Ppx) / intrinsics.Fx
				ny := (y - intrinsics.Ppy) / intrinsics.Fy
				nx, ny = distorter.Transform(nx, ny)
				x = nx*intrinsics.Fx + intrinsics.Ppx
				y = ny*intrinsics.Fy + intrinsics.Ppy
			}
			um.remap[v*intrinsics.Width+u] = r2.Point{X: x, Y: y}
		}
	}
	return um, nil
}

// Width returns the number of columns.
func (um *UndistortionMap) Width() int {
	return um.width
}

// Height returns the number of rows.
func (um *UndistortionMap) Height() int {
	return um.height
}

// Lookup returns the raw-frame source coordinates for undistorted pixel (u, v).
func (um *UndistortionMap) Lookup(u, v int) r2.Point {
	return um.remap[v*um.width+u]
}

// Undistort fills dst with the undistorted contents of src using a
// precomputed remap, discarding samples outside the valid depth range. It is
// a pure transform: no state, no side effects beyond writing dst. A nearest
// neighbor lookup interpolates between depth pixels; remapped coordinates
// falling outside the raw frame become invalid samples. src, dst, and the
// map must share one resolution.
func Undistort(dst, src *rimage.DepthMap, um *UndistortionMap, depthRange DepthRange) error {
	if src.Width() != um.width || src.Height() != um.height {
		return errors.Errorf("raw depth resolution (%d, %d) does not match undistortion map (%d, %d)",
			src.Width(), src.Height(), um.width, um.height)
	}
	if dst.Width() != um.width || dst.Height() != um.height {
		return errors.Errorf("output depth resolution (%d, %d) does not match undistortion map (%d, %d)",
			dst.Width(), dst.Height(), um.width, um.height)
	}
	for v := 0; v < um.height; v++ {
		for u := 0; u < um.width; u++ {
			p := um.remap[v*um.width+u]
			x := int(math.Round(p.X))
			y := int(math.Round(p.Y))
			var d float32
			if src.In(x, y) {
				d = src.GetDepth(x, y)
				if !depthRange.Contains(float64(d)) {
					d = 0
				}
			}
			dst.Set(u, v, d)
		}
	}
	return nil
}
