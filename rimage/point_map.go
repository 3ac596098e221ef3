package rimage

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// PointMap is a dense 2D field of 3D samples with a per-pixel validity flag.
// Raycasting fills one with world-space surface positions and another with
// surface normals; pixels whose ray found no surface stay invalid.
type PointMap struct {
	width  int
	height int
	points []r3.Vector
	valid  []bool
}

// NewPointMap returns an all-invalid point map with the given resolution.
func NewPointMap(width, height int) (*PointMap, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("point map resolution must be positive, got (%d, %d)", width, height)
	}
	return &PointMap{
		width:  width,
		height: height,
		points: make([]r3.Vector, width*height),
		valid:  make([]bool, width*height),
	}, nil
}

// Width returns the number of columns.
func (pm *PointMap) Width() int {
	return pm.width
}

// Height returns the number of rows.
func (pm *PointMap) Height() int {
	return pm.height
}

// At returns the sample at (x, y) and whether it is valid.
func (pm *PointMap) At(x, y int) (r3.Vector, bool) {
	i := y*pm.width + x
	return pm.points[i], pm.valid[i]
}

// Set writes a valid sample at (x, y).
func (pm *PointMap) Set(x, y int, pt r3.Vector) {
	i := y*pm.width + x
	pm.points[i] = pt
	pm.valid[i] = true
}

// SetInvalid marks the sample at (x, y) as a miss.
func (pm *PointMap) SetInvalid(x, y int) {
	i := y*pm.width + x
	pm.points[i] = r3.Vector{}
	pm.valid[i] = false
}

// ValidCount returns how many samples are valid.
func (pm *PointMap) ValidCount() int {
	n := 0
	for _, ok := range pm.valid {
		if ok {
			n++
		}
	}
	return n
}
