package rimage

import (
	"image"
)

// InputBuffer is the capture target for one camera. An external capture
// source writes the latest raw color frame and raw metric depth frame here
// and then notifies the pipeline; the pipeline only ever reads it. The
// buffers are allocated once at the calibrated resolutions and never resized.
type InputBuffer struct {
	Color       *image.NRGBA
	DepthMeters *DepthMap
}

// NewInputBuffer allocates a capture target with the given color and depth
// resolutions.
func NewInputBuffer(colorWidth, colorHeight, depthWidth, depthHeight int) (*InputBuffer, error) {
	depth, err := NewDepthMap(depthWidth, depthHeight)
	if err != nil {
		return nil, err
	}
	return &InputBuffer{
		Color:       image.NewNRGBA(image.Rect(0, 0, colorWidth, colorHeight)),
		DepthMeters: depth,
	}, nil
}
