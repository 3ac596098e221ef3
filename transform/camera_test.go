package transform

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/fusion/spatialmath"
)

func TestPerspectiveCamera(t *testing.T) {
	pose := spatialmath.NewPoseFromAxisAngle(r3.Vector{Y: 1}, math.Pi/4, r3.Vector{X: 1, Z: -2})
	cam, err := NewPerspectiveCamera(pose, testIntrinsics, DepthRange{Min: 0.2, Max: 3})
	test.That(t, err, test.ShouldBeNil)

	// WorldFromCamera is derived, never stored.
	identity := spatialmath.Compose(cam.WorldFromCamera(), cam.CameraFromWorld)
	test.That(t, identity.AlmostEqual(spatialmath.NewZeroPose(), 1e-9), test.ShouldBeTrue)

	half := cam.IntrinsicsFor(320, 240)
	test.That(t, half.Fx, test.ShouldAlmostEqual, testIntrinsics.Fx/2)

	_, err = NewPerspectiveCamera(pose, PinholeCameraIntrinsics{}, DepthRange{Min: 0.2, Max: 3})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewPerspectiveCamera(pose, testIntrinsics, DepthRange{Min: 3, Max: 0.2})
	test.That(t, err, test.ShouldNotBeNil)
}
