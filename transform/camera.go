package transform

import (
	"go.viam.com/fusion/spatialmath"
)

// PerspectiveCamera is a posed pinhole camera with a usable depth interval.
// It describes both calibrated depth sensors and free (virtual) raycast
// viewpoints.
type PerspectiveCamera struct {
	CameraFromWorld spatialmath.Pose
	Intrinsics      PinholeCameraIntrinsics
	DepthRange      DepthRange
}

// NewPerspectiveCamera returns a camera description after validating it.
func NewPerspectiveCamera(
	cameraFromWorld spatialmath.Pose,
	intrinsics PinholeCameraIntrinsics,
	depthRange DepthRange,
) (*PerspectiveCamera, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	if err := depthRange.CheckValid(); err != nil {
		return nil, err
	}
	return &PerspectiveCamera{
		CameraFromWorld: cameraFromWorld,
		Intrinsics:      intrinsics,
		DepthRange:      depthRange,
	}, nil
}

// WorldFromCamera returns the inverse of the stored camera-from-world pose.
// It is always derived, never stored.
func (pc *PerspectiveCamera) WorldFromCamera() spatialmath.Pose {
	return pc.CameraFromWorld.Invert()
}

// IntrinsicsFor returns the camera's projection rescaled to an output buffer
// of the given resolution.
func (pc *PerspectiveCamera) IntrinsicsFor(width, height int) PinholeCameraIntrinsics {
	return pc.Intrinsics.Rescaled(width, height)
}
