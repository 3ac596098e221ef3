package pipeline

import (
	"math"
	"testing"

	"github.com/edaniels/golog"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/fusion/rimage"
	"go.viam.com/fusion/spatialmath"
	"go.viam.com/fusion/transform"
)

// The pipeline test scene mirrors the volume tests: low-resolution depth
// cameras looking down +Z at a plane one meter out, fused into a 32^3 grid of
// 5cm voxels covering [-0.8, 0.8] x [-0.8, 0.8] x [0.2, 1.8].
const (
	testVoxelSize = 0.05
	testMaxTSDF   = 0.15
	testPlaneZ    = 1.0
)

var testGridResolution = [3]int{32, 32, 32}

func testCameraParams() transform.DepthCameraParameters {
	return transform.DepthCameraParameters{
		Intrinsics: transform.PinholeCameraIntrinsics{
			Width:  40,
			Height: 30,
			Fx:     30,
			Fy:     30,
			Ppx:    20,
			Ppy:    15,
		},
		DepthRange: transform.DepthRange{Min: 0.2, Max: 3.0},
	}
}

func testWorldFromGrid(t *testing.T) spatialmath.SimilarityTransform {
	t.Helper()
	st, err := spatialmath.NewScaleTranslateTransform(testVoxelSize, r3.Vector{X: -0.8, Y: -0.8, Z: 0.2})
	test.That(t, err, test.ShouldBeNil)
	return st
}

func newTestPipeline(t *testing.T, poses []spatialmath.Pose, opts Options) *MultiCameraPipeline {
	t.Helper()
	params := make([]transform.DepthCameraParameters, len(poses))
	for i := range params {
		params[i] = testCameraParams()
	}
	p, err := NewFromParameters(
		params, poses, testGridResolution, testWorldFromGrid(t), testMaxTSDF, opts,
		golog.NewTestLogger(t),
	)
	test.That(t, err, test.ShouldBeNil)
	return p
}

// feedPlane fills camera i's input depth with a constant-depth frame and
// notifies the pipeline.
func feedPlane(t *testing.T, p *MultiCameraPipeline, i int, depth float32) {
	t.Helper()
	input, err := p.InputBuffer(i)
	test.That(t, err, test.ShouldBeNil)
	input.DepthMeters.Fill(depth)
	test.That(t, p.NotifyInputUpdated(i, false, true), test.ShouldBeNil)
}

func TestNewFromParametersValidation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	wfg := testWorldFromGrid(t)
	params := testCameraParams()
	pose := spatialmath.NewZeroPose()

	_, err := NewFromParameters(nil, nil, testGridResolution, wfg, testMaxTSDF, Options{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "at least one camera")

	_, err = NewFromParameters(
		[]transform.DepthCameraParameters{params, params},
		[]spatialmath.Pose{pose},
		testGridResolution, wfg, testMaxTSDF, Options{}, logger,
	)
	test.That(t, err, test.ShouldNotBeNil)

	badParams := params
	badParams.DepthRange = transform.DepthRange{Min: 2, Max: 1}
	_, err = NewFromParameters(
		[]transform.DepthCameraParameters{badParams},
		[]spatialmath.Pose{pose},
		testGridResolution, wfg, testMaxTSDF, Options{}, logger,
	)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "camera 0")

	_, err = NewFromParameters(
		[]transform.DepthCameraParameters{params},
		[]spatialmath.Pose{pose},
		[3]int{0, 32, 32}, wfg, testMaxTSDF, Options{}, logger,
	)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewFromParameters(
		[]transform.DepthCameraParameters{params},
		[]spatialmath.Pose{pose},
		testGridResolution, wfg, 0, Options{}, logger,
	)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestAccessorBounds(t *testing.T) {
	p := newTestPipeline(t, []spatialmath.Pose{spatialmath.NewZeroPose()}, Options{})
	test.That(t, p.NumCameras(), test.ShouldEqual, 1)

	for _, i := range []int{-1, 1, 42} {
		_, err := p.CameraParameters(i)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "out of range")
		_, err = p.InputBuffer(i)
		test.That(t, err, test.ShouldNotBeNil)
		_, err = p.UndistortedDepthMap(i)
		test.That(t, err, test.ShouldNotBeNil)
		_, err = p.DepthCamera(i)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, p.NotifyInputUpdated(i, true, true), test.ShouldNotBeNil)
	}

	profile, err := p.CameraParameters(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, profile.Name(), test.ShouldEqual, "camera-0")
	w, h := profile.Resolution()
	test.That(t, w, test.ShouldEqual, 40)
	test.That(t, h, test.ShouldEqual, 30)
}

func TestNotifyInputUpdated(t *testing.T) {
	p := newTestPipeline(t, []spatialmath.Pose{spatialmath.NewZeroPose()}, Options{})

	input, err := p.InputBuffer(0)
	test.That(t, err, test.ShouldBeNil)
	input.DepthMeters.Fill(1.25)
	// One pixel beyond the usable range and one below it drop to invalid.
	input.DepthMeters.Set(3, 4, 5.0)
	input.DepthMeters.Set(6, 7, 0.05)

	test.That(t, p.NotifyInputUpdated(0, false, true), test.ShouldBeNil)

	undistorted, err := p.UndistortedDepthMap(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, undistorted.GetDepth(0, 0), test.ShouldEqual, float32(1.25))
	test.That(t, undistorted.GetDepth(3, 4), test.ShouldEqual, float32(0))
	test.That(t, undistorted.GetDepth(6, 7), test.ShouldEqual, float32(0))

	// A later capture replaces the snapshot; the buffers keep their fixed
	// resolution throughout.
	input.DepthMeters.Fill(0.9)
	test.That(t, p.NotifyInputUpdated(0, false, true), test.ShouldBeNil)
	test.That(t, undistorted.GetDepth(3, 4), test.ShouldEqual, float32(0.9))
	test.That(t, undistorted.Width(), test.ShouldEqual, 40)
	test.That(t, undistorted.Height(), test.ShouldEqual, 30)
}

func TestPipelinePlaneEndToEnd(t *testing.T) {
	p := newTestPipeline(t, []spatialmath.Pose{spatialmath.NewZeroPose()}, Options{})
	feedPlane(t, p, 0, testPlaneZ)
	test.That(t, p.Fuse(), test.ShouldBeNil)

	mesh := p.Triangulate(mgl64.Ident4())
	test.That(t, mesh.TriangleCount(), test.ShouldBeGreaterThan, 0)
	for _, pos := range mesh.Positions {
		test.That(t, math.Abs(pos.Z-testPlaneZ), test.ShouldBeLessThan, 1e-3)
	}

	// Render the volume back from the sensor's own viewpoint.
	viewpoint, err := p.DepthCamera(0)
	test.That(t, err, test.ShouldBeNil)
	points, err := rimage.NewPointMap(40, 30)
	test.That(t, err, test.ShouldBeNil)
	normals, err := rimage.NewPointMap(40, 30)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Raycast(viewpoint, points, normals), test.ShouldBeNil)

	pt, ok := points.At(20, 15)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, math.Abs(pt.Z-testPlaneZ), test.ShouldBeLessThan, 1e-3)
	n, ok := normals.At(20, 15)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, n.Dot(r3.Vector{Z: -1}), test.ShouldBeGreaterThan, 0.99)
}

func TestPipelineFuseEquivalence(t *testing.T) {
	poses := []spatialmath.Pose{
		spatialmath.NewZeroPose(),
		spatialmath.NewPose(spatialmath.NewZeroPose().Rotation(), r3.Vector{X: -0.1}),
	}

	sequential := newTestPipeline(t, poses, Options{})
	batched := newTestPipeline(t, poses, Options{})
	for i := range poses {
		depth := float32(testPlaneZ + 0.2*float64(i))
		feedPlane(t, sequential, i, depth)
		feedPlane(t, batched, i, depth)
	}
	test.That(t, sequential.Fuse(), test.ShouldBeNil)
	test.That(t, batched.FuseMultiple(), test.ShouldBeNil)

	seqMesh := sequential.Triangulate(mgl64.Ident4())
	batMesh := batched.Triangulate(mgl64.Ident4())
	test.That(t, batMesh.Positions, test.ShouldResemble, seqMesh.Positions)
	test.That(t, batMesh.Normals, test.ShouldResemble, seqMesh.Normals)
}

func TestPipelineThreeCameraMerge(t *testing.T) {
	// Three viewpoints spread along X, all seeing the same wall.
	poses := []spatialmath.Pose{
		spatialmath.NewPose(spatialmath.NewZeroPose().Rotation(), r3.Vector{X: 0.3}),
		spatialmath.NewZeroPose(),
		spatialmath.NewPose(spatialmath.NewZeroPose().Rotation(), r3.Vector{X: -0.3}),
	}
	p := newTestPipeline(t, poses, Options{})
	for i := range poses {
		feedPlane(t, p, i, testPlaneZ)
	}
	test.That(t, p.FuseMultiple(), test.ShouldBeNil)

	mesh := p.Triangulate(mgl64.Ident4())
	test.That(t, mesh.TriangleCount(), test.ShouldBeGreaterThan, 0)
	minX, maxX := math.Inf(1), math.Inf(-1)
	for _, pos := range mesh.Positions {
		test.That(t, math.Abs(pos.Z-testPlaneZ), test.ShouldBeLessThan, 1e-3)
		minX = math.Min(minX, pos.X)
		maxX = math.Max(maxX, pos.X)
	}
	// The merged surface is wider than any single camera's footprint at
	// this depth (one camera covers about [-2/3, 2/3] in X).
	test.That(t, maxX-minX, test.ShouldBeGreaterThan, 1.4)
}

func TestPipelineTriangulateProjection(t *testing.T) {
	p := newTestPipeline(t, []spatialmath.Pose{spatialmath.NewZeroPose()}, Options{})
	feedPlane(t, p, 0, testPlaneZ)
	test.That(t, p.Fuse(), test.ShouldBeNil)

	outputFromWorld := spatialmath.NewPoseFromAxisAngle(r3.Vector{X: 1}, math.Pi/2, r3.Vector{Z: -0.5})
	reference := p.Triangulate(mgl64.Ident4())
	projected := p.Triangulate(outputFromWorld.Matrix())
	test.That(t, projected.VertexCount(), test.ShouldEqual, reference.VertexCount())
	for i, pos := range reference.Positions {
		want := outputFromWorld.TransformPoint(pos)
		test.That(t, projected.Positions[i].Sub(want).Norm(), test.ShouldBeLessThan, 1e-9)
	}
}

func TestPipelineReset(t *testing.T) {
	p := newTestPipeline(t, []spatialmath.Pose{spatialmath.NewZeroPose()}, Options{})
	feedPlane(t, p, 0, testPlaneZ)
	test.That(t, p.Fuse(), test.ShouldBeNil)
	test.That(t, p.Triangulate(mgl64.Ident4()).TriangleCount(), test.ShouldBeGreaterThan, 0)

	p.Reset()
	test.That(t, p.Triangulate(mgl64.Ident4()).TriangleCount(), test.ShouldEqual, 0)

	// Calibration and buffers survive a reset; fusing again rebuilds the
	// surface from the retained frames.
	test.That(t, p.Fuse(), test.ShouldBeNil)
	test.That(t, p.Triangulate(mgl64.Ident4()).TriangleCount(), test.ShouldBeGreaterThan, 0)
}

func TestPipelineRaycastRescaledViewpoint(t *testing.T) {
	p := newTestPipeline(t, []spatialmath.Pose{spatialmath.NewZeroPose()}, Options{})
	feedPlane(t, p, 0, testPlaneZ)
	test.That(t, p.Fuse(), test.ShouldBeNil)

	viewpoint, err := p.DepthCamera(0)
	test.That(t, err, test.ShouldBeNil)
	// Half-resolution buffers: intrinsics rescale to match.
	points, err := rimage.NewPointMap(20, 15)
	test.That(t, err, test.ShouldBeNil)
	normals, err := rimage.NewPointMap(20, 15)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Raycast(viewpoint, points, normals), test.ShouldBeNil)

	pt, ok := points.At(10, 7)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, math.Abs(pt.Z-testPlaneZ), test.ShouldBeLessThan, 1e-3)
}

func TestPipelineRaycastAdaptiveOption(t *testing.T) {
	p := newTestPipeline(t, []spatialmath.Pose{spatialmath.NewZeroPose()}, Options{AdaptiveRaycast: true})
	feedPlane(t, p, 0, testPlaneZ)
	test.That(t, p.Fuse(), test.ShouldBeNil)

	viewpoint, err := p.DepthCamera(0)
	test.That(t, err, test.ShouldBeNil)
	points, err := rimage.NewPointMap(40, 30)
	test.That(t, err, test.ShouldBeNil)
	normals, err := rimage.NewPointMap(40, 30)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Raycast(viewpoint, points, normals), test.ShouldBeNil)

	pt, ok := points.At(20, 15)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, math.Abs(pt.Z-testPlaneZ), test.ShouldBeLessThan, 1e-3)
}

func TestPipelineRaycastArgValidation(t *testing.T) {
	p := newTestPipeline(t, []spatialmath.Pose{spatialmath.NewZeroPose()}, Options{})
	viewpoint, err := p.DepthCamera(0)
	test.That(t, err, test.ShouldBeNil)
	points, err := rimage.NewPointMap(40, 30)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, p.Raycast(nil, points, points), test.ShouldNotBeNil)
	test.That(t, p.Raycast(viewpoint, nil, points), test.ShouldNotBeNil)
	test.That(t, p.Raycast(viewpoint, points, nil), test.ShouldNotBeNil)
}

func TestPipelineGeometryAccessors(t *testing.T) {
	p := newTestPipeline(t, []spatialmath.Pose{spatialmath.NewZeroPose()}, Options{})
	bbox := p.GridBoundingBox()
	test.That(t, bbox.Max, test.ShouldResemble, r3.Vector{X: 32, Y: 32, Z: 32})

	worldCorner := p.WorldFromGridTransform().TransformPoint(bbox.Min)
	test.That(t, worldCorner.Sub(r3.Vector{X: -0.8, Y: -0.8, Z: 0.2}).Norm(), test.ShouldAlmostEqual, 0, 1e-9)
}
