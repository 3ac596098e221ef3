package pipeline

import (
	"fmt"

	"github.com/edaniels/golog"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"go.viam.com/fusion/rimage"
	"go.viam.com/fusion/spatialmath"
	"go.viam.com/fusion/transform"
	"go.viam.com/fusion/tsdf"
)

// Options tune pipeline behavior that is not part of camera calibration.
type Options struct {
	// AdaptiveRaycast selects variable-step raycasting. Both strategies
	// honor the same output contract.
	AdaptiveRaycast bool
}

// MultiCameraPipeline fuses depth observations from N fixed cameras into one
// shared volume and renders free viewpoints from it. All methods must be
// called from a single control thread: the pipeline holds no locks and
// serializes every call into the volume itself.
type MultiCameraPipeline struct {
	opts   Options
	logger golog.Logger

	profiles []*CameraProfile
	volume   tsdf.Volume

	// Per-camera buffers, allocated once at the calibrated resolutions and
	// never resized. Each slot is owned exclusively by its camera.
	inputBuffers     []*rimage.InputBuffer
	rawDepth         []*rimage.DepthMap
	undistortedDepth []*rimage.DepthMap
}

// New builds a pipeline and its shared volume from a validated Config.
func New(cfg Config, logger golog.Logger) (*MultiCameraPipeline, error) {
	if err := cfg.CheckValid(); err != nil {
		return nil, err
	}
	profiles := make([]*CameraProfile, 0, len(cfg.Cameras))
	colorRes := make([][2]int, 0, len(cfg.Cameras))
	for i, cc := range cfg.Cameras {
		pose, err := cc.CameraFromWorld.ParseConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "camera %d", i)
		}
		name := cc.Name
		if name == "" {
			name = fmt.Sprintf("camera-%d", i)
		}
		profile, err := NewCameraProfile(name, cc.Parameters, pose)
		if err != nil {
			return nil, errors.Wrapf(err, "camera %d (%q)", i, name)
		}
		profiles = append(profiles, profile)
		cw, ch := cc.ColorWidth, cc.ColorHeight
		if cw == 0 || ch == 0 {
			cw, ch = cc.Parameters.Intrinsics.Width, cc.Parameters.Intrinsics.Height
		}
		colorRes = append(colorRes, [2]int{cw, ch})
	}
	worldFromGrid, err := cfg.Grid.WorldFromGrid.ParseConfig()
	if err != nil {
		return nil, err
	}
	volume, err := tsdf.NewRegularGrid(cfg.Grid.Resolution, worldFromGrid, cfg.Grid.MaxTSDFMeters)
	if err != nil {
		return nil, err
	}
	return newFromProfiles(profiles, colorRes, volume, Options{AdaptiveRaycast: cfg.AdaptiveRaycast}, logger)
}

// NewFromParameters builds a pipeline from in-memory calibrations and poses.
// The two lists must have the same nonzero length.
func NewFromParameters(
	cameraParams []transform.DepthCameraParameters,
	posesCameraFromWorld []spatialmath.Pose,
	gridResolution [3]int,
	worldFromGrid spatialmath.SimilarityTransform,
	maxTSDFMeters float64,
	opts Options,
	logger golog.Logger,
) (*MultiCameraPipeline, error) {
	if len(cameraParams) == 0 {
		return nil, errors.New("pipeline needs at least one camera")
	}
	if len(cameraParams) != len(posesCameraFromWorld) {
		return nil, errors.Errorf("have %d camera calibrations but %d poses",
			len(cameraParams), len(posesCameraFromWorld))
	}
	profiles := make([]*CameraProfile, 0, len(cameraParams))
	colorRes := make([][2]int, 0, len(cameraParams))
	for i, params := range cameraParams {
		profile, err := NewCameraProfile(fmt.Sprintf("camera-%d", i), params, posesCameraFromWorld[i])
		if err != nil {
			return nil, errors.Wrapf(err, "camera %d", i)
		}
		profiles = append(profiles, profile)
		colorRes = append(colorRes, [2]int{params.Intrinsics.Width, params.Intrinsics.Height})
	}
	volume, err := tsdf.NewRegularGrid(gridResolution, worldFromGrid, maxTSDFMeters)
	if err != nil {
		return nil, err
	}
	return newFromProfiles(profiles, colorRes, volume, opts, logger)
}

func newFromProfiles(
	profiles []*CameraProfile,
	colorRes [][2]int,
	volume tsdf.Volume,
	opts Options,
	logger golog.Logger,
) (*MultiCameraPipeline, error) {
	p := &MultiCameraPipeline{
		opts:     opts,
		logger:   logger,
		profiles: profiles,
		volume:   volume,
	}
	for i, profile := range profiles {
		w, h := profile.Resolution()
		input, err := rimage.NewInputBuffer(colorRes[i][0], colorRes[i][1], w, h)
		if err != nil {
			return nil, errors.Wrapf(err, "camera %d (%q)", i, profile.Name())
		}
		raw, err := rimage.NewDepthMap(w, h)
		if err != nil {
			return nil, errors.Wrapf(err, "camera %d (%q)", i, profile.Name())
		}
		undistorted, err := rimage.NewDepthMap(w, h)
		if err != nil {
			return nil, errors.Wrapf(err, "camera %d (%q)", i, profile.Name())
		}
		p.inputBuffers = append(p.inputBuffers, input)
		p.rawDepth = append(p.rawDepth, raw)
		p.undistortedDepth = append(p.undistortedDepth, undistorted)
	}
	logger.Debugf("pipeline ready with %d cameras", len(profiles))
	return p, nil
}

// NumCameras returns the number of cameras, fixed at construction.
func (p *MultiCameraPipeline) NumCameras() int {
	return len(p.profiles)
}

func (p *MultiCameraPipeline) checkCameraIndex(i int) error {
	if i < 0 || i >= len(p.profiles) {
		return errors.Errorf("camera index %d out of range [0, %d)", i, len(p.profiles))
	}
	return nil
}

// CameraParameters returns camera i's immutable profile.
func (p *MultiCameraPipeline) CameraParameters(i int) (*CameraProfile, error) {
	if err := p.checkCameraIndex(i); err != nil {
		return nil, err
	}
	return p.profiles[i], nil
}

// InputBuffer exposes the externally writable capture target for camera i.
// The pipeline never originates frames; a capture source writes here and
// then calls NotifyInputUpdated.
func (p *MultiCameraPipeline) InputBuffer(i int) (*rimage.InputBuffer, error) {
	if err := p.checkCameraIndex(i); err != nil {
		return nil, err
	}
	return p.inputBuffers[i], nil
}

// UndistortedDepthMap returns the latest undistorted depth for camera i,
// read-only by convention.
func (p *MultiCameraPipeline) UndistortedDepthMap(i int) (*rimage.DepthMap, error) {
	if err := p.checkCameraIndex(i); err != nil {
		return nil, err
	}
	return p.undistortedDepth[i], nil
}

// DepthCamera reconstructs camera i's full perspective description, derived
// fresh from the stored profile.
func (p *MultiCameraPipeline) DepthCamera(i int) (*transform.PerspectiveCamera, error) {
	if err := p.checkCameraIndex(i); err != nil {
		return nil, err
	}
	return p.profiles[i].DepthCamera(), nil
}

// NotifyInputUpdated snapshots camera i's raw depth out of its input buffer
// and undistorts it. Only camera i's pipeline-owned state changes; the
// volume is untouched. The changed flags are accepted for future use; the
// refresh and undistortion run unconditionally, matching the sensors this
// was built for where depth updates dominate.
func (p *MultiCameraPipeline) NotifyInputUpdated(i int, colorUpdated, depthUpdated bool) error {
	if err := p.checkCameraIndex(i); err != nil {
		return err
	}
	if err := p.rawDepth[i].CopyFrom(p.inputBuffers[i].DepthMeters); err != nil {
		return errors.Wrapf(err, "refreshing raw depth for camera %d", i)
	}
	profile := p.profiles[i]
	return transform.Undistort(p.undistortedDepth[i], p.rawDepth[i], profile.undistortion, profile.params.DepthRange)
}

// Fuse integrates every camera's most recently undistorted frame into the
// shared volume, one sweep per camera. Frames are used as-is with no
// cross-camera time alignment: mixing frames from different instants is a
// known limitation of the latest-available policy. If fusing camera k fails,
// cameras 0..k-1 stay fused; fusion is accumulate-only with no rollback.
func (p *MultiCameraPipeline) Fuse() error {
	for i, profile := range p.profiles {
		if err := p.volume.Fuse(profile.posedCamera(), p.undistortedDepth[i]); err != nil {
			return errors.Wrapf(err, "fusing camera %d (%q)", i, profile.Name())
		}
	}
	return nil
}

// FuseMultiple integrates all cameras in one batched sweep over the volume.
// The fused result is identical to Fuse given identical inputs; the batched
// sweep touches each voxel once instead of once per camera.
func (p *MultiCameraPipeline) FuseMultiple() error {
	cams := make([]tsdf.PosedDepthCamera, 0, len(p.profiles))
	for _, profile := range p.profiles {
		cams = append(cams, profile.posedCamera())
	}
	return p.volume.FuseMultiple(cams, p.undistortedDepth)
}

// Raycast renders the volume from an arbitrary viewpoint into the
// caller-owned position and normal buffers, which must share a resolution.
// The viewpoint's intrinsics are rescaled to the buffer resolution. The
// strategy (fixed or adaptive step) comes from the pipeline options; both
// leave pixels invalid when the ray finds no surface.
func (p *MultiCameraPipeline) Raycast(viewpoint *transform.PerspectiveCamera, points, normals *rimage.PointMap) error {
	if viewpoint == nil {
		return errors.New("raycast viewpoint cannot be nil")
	}
	if points == nil || normals == nil {
		return errors.New("raycast output buffers cannot be nil")
	}
	intrinsics := viewpoint.IntrinsicsFor(points.Width(), points.Height())
	cam := tsdf.NewPosedDepthCamera(intrinsics, viewpoint.DepthRange, viewpoint.CameraFromWorld)
	if p.opts.AdaptiveRaycast {
		return p.volume.AdaptiveRaycast(cam, points, normals)
	}
	return p.volume.Raycast(cam, points, normals)
}

// Triangulate extracts the volume's surface as a fresh world-space mesh and
// applies outputFromWorld to it: the full affine transform to positions, the
// normal-preserving rule to normals. The volume is not mutated and the
// pipeline keeps no reference to the returned mesh.
func (p *MultiCameraPipeline) Triangulate(outputFromWorld mgl64.Mat4) *tsdf.Mesh {
	mesh := p.volume.Triangulate()
	mesh.Transform(outputFromWorld)
	return mesh
}

// GridBoundingBox returns the volume's extent in grid coordinates, for
// framing by visualization layers.
func (p *MultiCameraPipeline) GridBoundingBox() spatialmath.Box3 {
	return p.volume.BoundingBox()
}

// WorldFromGridTransform returns the transform placing the volume grid in
// the world.
func (p *MultiCameraPipeline) WorldFromGridTransform() spatialmath.SimilarityTransform {
	return p.volume.WorldFromGrid()
}

// Reset clears the shared volume to its unfused state. Camera buffers and
// calibration are untouched.
func (p *MultiCameraPipeline) Reset() {
	p.logger.Debug("resetting volume")
	p.volume.Reset()
}
