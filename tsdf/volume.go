// Package tsdf implements a truncated signed distance volume: a world-aligned
// voxel grid that accumulates depth observations from posed cameras and can
// be raycast from arbitrary viewpoints or triangulated into a surface mesh.
package tsdf

import (
	"github.com/golang/geo/r2"

	"go.viam.com/fusion/rimage"
	"go.viam.com/fusion/spatialmath"
	"go.viam.com/fusion/transform"
)

// PosedDepthCamera packs the projection, valid depth interval, and pose of
// one depth camera for a fusion or raycast sweep.
type PosedDepthCamera struct {
	FocalLength     r2.Point
	PrincipalPoint  r2.Point
	DepthRange      transform.DepthRange
	CameraFromWorld spatialmath.Pose
}

// NewPosedDepthCamera packs intrinsics, depth range, and pose for a sweep.
func NewPosedDepthCamera(
	intrinsics transform.PinholeCameraIntrinsics,
	depthRange transform.DepthRange,
	cameraFromWorld spatialmath.Pose,
) PosedDepthCamera {
	return PosedDepthCamera{
		FocalLength:     r2.Point{X: intrinsics.Fx, Y: intrinsics.Fy},
		PrincipalPoint:  r2.Point{X: intrinsics.Ppx, Y: intrinsics.Ppy},
		DepthRange:      depthRange,
		CameraFromWorld: cameraFromWorld,
	}
}

// Volume is the shared volumetric accumulator all cameras fuse into. It has
// no camera-specific state: every call carries the full calibration and pose
// of the observing (or viewing) camera. Implementations are not safe for
// concurrent mutation; a single orchestrator sequences all calls.
type Volume interface {
	// Fuse integrates one camera's depth map into the volume.
	Fuse(cam PosedDepthCamera, depth *rimage.DepthMap) error
	// FuseMultiple integrates several cameras in one sweep over the volume.
	// The fused result is identical to calling Fuse once per camera in the
	// same order.
	FuseMultiple(cams []PosedDepthCamera, depths []*rimage.DepthMap) error
	// Raycast marches fixed-size steps along each pixel's ray from the given
	// viewpoint, writing world-space surface positions and normals. Pixels
	// whose ray exits the viewpoint's depth range without crossing the zero
	// level set stay invalid.
	Raycast(cam PosedDepthCamera, points, normals *rimage.PointMap) error
	// AdaptiveRaycast is Raycast with distance-dependent step sizes. Same
	// output contract; may differ in numeric precision and speed.
	AdaptiveRaycast(cam PosedDepthCamera, points, normals *rimage.PointMap) error
	// Triangulate extracts the zero level set as a fresh world-space mesh
	// without mutating the volume.
	Triangulate() *Mesh
	// BoundingBox returns the grid's extent in grid coordinates.
	BoundingBox() spatialmath.Box3
	// WorldFromGrid returns the similarity transform placing the grid in the
	// world.
	WorldFromGrid() spatialmath.SimilarityTransform
	// Reset clears all accumulated evidence.
	Reset()
}
