// Package pipeline orchestrates multiple fixed RGB-D cameras fusing into one
// shared volumetric scene: it owns per-camera calibration and buffers, drives
// depth undistortion, sequences fusion into the volume, and extracts raycast
// maps and triangulated meshes on demand.
package pipeline

import (
	"go.viam.com/fusion/spatialmath"
	"go.viam.com/fusion/transform"
	"go.viam.com/fusion/tsdf"
)

// CameraProfile is the immutable per-camera state fixed at pipeline
// construction: calibration, pose, and the precomputed undistortion map.
// There is no online recalibration.
type CameraProfile struct {
	name            string
	params          transform.DepthCameraParameters
	cameraFromWorld spatialmath.Pose
	undistortion    *transform.UndistortionMap
}

// NewCameraProfile validates the calibration, precomputes the undistortion
// map, and returns the profile.
func NewCameraProfile(name string, params transform.DepthCameraParameters, cameraFromWorld spatialmath.Pose) (*CameraProfile, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	var distorter transform.Distorter
	if params.Distortion != nil {
		distorter = params.Distortion
	}
	um, err := transform.NewUndistortionMap(&params.Intrinsics, distorter)
	if err != nil {
		return nil, err
	}
	return &CameraProfile{
		name:            name,
		params:          params,
		cameraFromWorld: cameraFromWorld,
		undistortion:    um,
	}, nil
}

// Name returns the camera's configured name.
func (cp *CameraProfile) Name() string {
	return cp.name
}

// Intrinsics returns the calibrated projection parameters.
func (cp *CameraProfile) Intrinsics() transform.PinholeCameraIntrinsics {
	return cp.params.Intrinsics
}

// DepthRange returns the calibrated valid depth interval.
func (cp *CameraProfile) DepthRange() transform.DepthRange {
	return cp.params.DepthRange
}

// Resolution returns the calibrated depth sensor resolution.
func (cp *CameraProfile) Resolution() (int, int) {
	return cp.params.Intrinsics.Width, cp.params.Intrinsics.Height
}

// CameraFromWorld returns the canonical stored pose.
func (cp *CameraProfile) CameraFromWorld() spatialmath.Pose {
	return cp.cameraFromWorld
}

// WorldFromCamera returns the inverse pose, computed on demand from the
// canonical camera-from-world pose rather than stored redundantly.
func (cp *CameraProfile) WorldFromCamera() spatialmath.Pose {
	return cp.cameraFromWorld.Invert()
}

// UndistortionMap returns the precomputed, read-only remap field.
func (cp *CameraProfile) UndistortionMap() *transform.UndistortionMap {
	return cp.undistortion
}

// DepthCamera reconstructs a full perspective camera description for
// visualization or projection math, derived fresh on every call.
func (cp *CameraProfile) DepthCamera() *transform.PerspectiveCamera {
	return &transform.PerspectiveCamera{
		CameraFromWorld: cp.cameraFromWorld,
		Intrinsics:      cp.params.Intrinsics,
		DepthRange:      cp.params.DepthRange,
	}
}

// posedCamera packs the profile for a fusion sweep.
func (cp *CameraProfile) posedCamera() tsdf.PosedDepthCamera {
	return tsdf.NewPosedDepthCamera(cp.params.Intrinsics, cp.params.DepthRange, cp.cameraFromWorld)
}
