// Package spatialmath defines the spatial mathematical operations needed to
// move between camera, world, and volume grid coordinate frames.
package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform in 3D space, represented as a unit rotation
// quaternion and a translation. The zero value is not valid; use NewPose or
// NewZeroPose.
type Pose struct {
	rotation    quat.Number
	translation r3.Vector
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return Pose{rotation: quat.Number{Real: 1}}
}

// NewPose returns a pose with the given rotation and translation. The
// rotation quaternion is normalized.
func NewPose(rotation quat.Number, translation r3.Vector) Pose {
	return Pose{rotation: normalize(rotation), translation: translation}
}

// NewPoseFromAxisAngle returns the pose rotating by theta radians about the
// given axis and then translating.
func NewPoseFromAxisAngle(axis r3.Vector, theta float64, translation r3.Vector) Pose {
	axis = axis.Normalize()
	s := math.Sin(theta / 2)
	return Pose{
		rotation:    quat.Number{Real: math.Cos(theta / 2), Imag: s * axis.X, Jmag: s * axis.Y, Kmag: s * axis.Z},
		translation: translation,
	}
}

// Rotation returns the pose's unit rotation quaternion.
func (p Pose) Rotation() quat.Number {
	return p.rotation
}

// Translation returns the pose's translation.
func (p Pose) Translation() r3.Vector {
	return p.translation
}

// TransformPoint applies the full rigid transform to a point.
func (p Pose) TransformPoint(pt r3.Vector) r3.Vector {
	return rotateVector(p.rotation, pt).Add(p.translation)
}

// RotateVector applies only the rotational part to a direction vector.
func (p Pose) RotateVector(v r3.Vector) r3.Vector {
	return rotateVector(p.rotation, v)
}

// Invert returns the algebraic inverse, such that
// p.Invert().TransformPoint(p.TransformPoint(x)) == x.
func (p Pose) Invert() Pose {
	rInv := quat.Conj(p.rotation)
	return Pose{
		rotation:    rInv,
		translation: rotateVector(rInv, p.translation).Mul(-1),
	}
}

// Compose returns the pose equivalent to applying b first and then a, so
// Compose(a, b).TransformPoint(x) == a.TransformPoint(b.TransformPoint(x)).
func Compose(a, b Pose) Pose {
	return Pose{
		rotation:    normalize(quat.Mul(a.rotation, b.rotation)),
		translation: a.TransformPoint(b.translation),
	}
}

// Matrix returns the pose as a 4x4 homogeneous transform matrix.
func (p Pose) Matrix() mgl64.Mat4 {
	m := mgl64.Ident4()
	setRotationBlock(&m, p.rotation, 1)
	m.Set(0, 3, p.translation.X)
	m.Set(1, 3, p.translation.Y)
	m.Set(2, 3, p.translation.Z)
	return m
}

// AlmostEqual reports whether two poses agree to within epsilon in both
// rotation (accounting for double cover) and translation.
func (p Pose) AlmostEqual(q Pose, epsilon float64) bool {
	if p.translation.Sub(q.translation).Norm() > epsilon {
		return false
	}
	d := quat.Mul(p.rotation, quat.Conj(q.rotation))
	return math.Abs(math.Abs(d.Real)-1) < epsilon
}

func rotateVector(q quat.Number, v r3.Vector) r3.Vector {
	qv := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, qv), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

func normalize(q quat.Number) quat.Number {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// setRotationBlock writes the upper-left 3x3 of m from the unit quaternion q
// scaled by s.
func setRotationBlock(m *mgl64.Mat4, q quat.Number, s float64) {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	m.Set(0, 0, s*(1-2*(y*y+z*z)))
	m.Set(0, 1, s*2*(x*y-w*z))
	m.Set(0, 2, s*2*(x*z+w*y))
	m.Set(1, 0, s*2*(x*y+w*z))
	m.Set(1, 1, s*(1-2*(x*x+z*z)))
	m.Set(1, 2, s*2*(y*z-w*x))
	m.Set(2, 0, s*2*(x*z-w*y))
	m.Set(2, 1, s*2*(y*z+w*x))
	m.Set(2, 2, s*(1-2*(x*x+y*y)))
}
