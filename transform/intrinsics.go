// Package transform holds the geometric calibration of depth cameras: pinhole
// intrinsics, valid depth ranges, lens distortion models, and the precomputed
// undistortion maps the pipeline applies to every raw depth frame.
package transform

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// ErrNoIntrinsics is returned when a camera's intrinsic parameters are not
// available or not usable.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intrinsics are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrapf(ErrNoIntrinsics, msg) //nolint:govet
}

// PinholeCameraIntrinsics holds the parameters necessary to project between
// the 3D camera frame and the 2D image plane of a depth sensor.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("invalid resolution (%d, %d)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("invalid focal length Fx = %v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("invalid focal length Fy = %v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("invalid principal point Ppx = %v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("invalid principal point Ppy = %v", params.Ppy))
	}
	return nil
}

// PixelToPoint transforms a pixel with depth to a 3D point in the camera
// frame. The camera looks down +Z.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	xOverZ := (x - params.Ppx) / params.Fx
	yOverZ := (y - params.Ppy) / params.Fy
	return xOverZ * z, yOverZ * z, z
}

// PointToPixel projects a 3D point in the camera frame to a pixel on the
// image plane. Points at or behind the camera project to (-1, -1) so bounds
// checks filter them out.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z > 0 {
		xPx := math.Round((x/z)*params.Fx + params.Ppx)
		yPx := math.Round((y/z)*params.Fy + params.Ppy)
		return xPx, yPx
	}
	return -1.0, -1.0
}

// Rescaled returns the intrinsics scaled to a different image resolution,
// scaling focal length and principal point aspect-correctly per axis.
func (params *PinholeCameraIntrinsics) Rescaled(width, height int) PinholeCameraIntrinsics {
	sx := float64(width) / float64(params.Width)
	sy := float64(height) / float64(params.Height)
	return PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     params.Fx * sx,
		Fy:     params.Fy * sy,
		Ppx:    params.Ppx * sx,
		Ppy:    params.Ppy * sy,
	}
}

// DepthRange is the interval of depth values, in meters, a sensor reports
// reliably. Samples outside it are discarded.
type DepthRange struct {
	Min float64 `json:"min_meters"`
	Max float64 `json:"max_meters"`
}

// CheckValid checks that the range is ordered and positive.
func (dr DepthRange) CheckValid() error {
	if dr.Min < 0 {
		return errors.Errorf("depth range min must be non-negative, got %v", dr.Min)
	}
	if dr.Min >= dr.Max {
		return errors.Errorf("degenerate depth range [%v, %v]", dr.Min, dr.Max)
	}
	return nil
}

// Contains reports whether a depth sample lies in the valid range.
func (dr DepthRange) Contains(meters float64) bool {
	return meters >= dr.Min && meters <= dr.Max
}

// DepthCameraParameters is the full calibration of one depth camera: its
// projection, its usable depth interval, and its lens distortion model (nil
// means an ideal lens).
type DepthCameraParameters struct {
	Intrinsics PinholeCameraIntrinsics `json:"intrinsics"`
	DepthRange DepthRange              `json:"depth_range"`
	Distortion *BrownConrady           `json:"distortion,omitempty"`
}

// CheckValid checks all calibration fields.
func (params *DepthCameraParameters) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("depth camera parameters do not exist")
	}
	if err := params.Intrinsics.CheckValid(); err != nil {
		return err
	}
	if err := params.DepthRange.CheckValid(); err != nil {
		return err
	}
	if params.Distortion != nil {
		if err := params.Distortion.CheckValid(); err != nil {
			return err
		}
	}
	return nil
}

// NewDepthCameraParametersFromJSONFile reads a DepthCameraParameters from a
// JSON file.
func NewDepthCameraParametersFromJSONFile(jsonPath string) (*DepthCameraParameters, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer goutils.UncheckedErrorFunc(jsonFile.Close)
	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON data")
	}
	params := &DepthCameraParameters{}
	if err := json.Unmarshal(byteValue, params); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	return params, nil
}
