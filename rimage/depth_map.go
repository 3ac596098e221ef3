// Package rimage defines the dense 2D buffers the fusion pipeline moves depth
// observations through: metric depth maps, capture input buffers, and the
// point/normal maps produced by raycasting.
package rimage

import (
	"github.com/pkg/errors"
)

// DepthMap is a dense 2D grid of metric depth samples. Values are in meters;
// a value of zero (or negative) marks an invalid sample. Storage is row
// major. The resolution is fixed at construction.
type DepthMap struct {
	width  int
	height int
	data   []float32
}

// NewDepthMap returns an all-invalid depth map with the given resolution.
func NewDepthMap(width, height int) (*DepthMap, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("depth map resolution must be positive, got (%d, %d)", width, height)
	}
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]float32, width*height),
	}, nil
}

// Width returns the number of columns.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the number of rows.
func (dm *DepthMap) Height() int {
	return dm.height
}

// In reports whether (x, y) is inside the map.
func (dm *DepthMap) In(x, y int) bool {
	return x >= 0 && x < dm.width && y >= 0 && y < dm.height
}

// GetDepth returns the depth in meters at (x, y).
func (dm *DepthMap) GetDepth(x, y int) float32 {
	return dm.data[y*dm.width+x]
}

// Set writes the depth in meters at (x, y).
func (dm *DepthMap) Set(x, y int, meters float32) {
	dm.data[y*dm.width+x] = meters
}

// Data exposes the underlying row-major sample storage.
func (dm *DepthMap) Data() []float32 {
	return dm.data
}

// Fill sets every sample to the given value.
func (dm *DepthMap) Fill(meters float32) {
	for i := range dm.data {
		dm.data[i] = meters
	}
}

// CopyFrom overwrites dm with the contents of src. The resolutions must
// match; a depth map is never resized after construction.
func (dm *DepthMap) CopyFrom(src *DepthMap) error {
	if src.width != dm.width || src.height != dm.height {
		return errors.Errorf("cannot copy (%d, %d) depth map into (%d, %d) depth map",
			src.width, src.height, dm.width, dm.height)
	}
	copy(dm.data, src.data)
	return nil
}

// Clone returns an independent copy of the depth map.
func (dm *DepthMap) Clone() *DepthMap {
	out := &DepthMap{width: dm.width, height: dm.height, data: make([]float32, len(dm.data))}
	copy(out.data, dm.data)
	return out
}
