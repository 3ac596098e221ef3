package spatialmath

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

// SimilarityTransform is a rigid transform with a uniform positive scale,
// used to place an integer-indexed volume grid in the world:
// p' = R*(s*p) + t.
type SimilarityTransform struct {
	rotation    quat.Number
	translation r3.Vector
	scale       float64
}

// NewSimilarityTransform returns a similarity transform from a rotation, a
// translation, and a uniform scale. The scale must be positive.
func NewSimilarityTransform(rotation quat.Number, translation r3.Vector, scale float64) (SimilarityTransform, error) {
	if scale <= 0 {
		return SimilarityTransform{}, errors.Errorf("similarity transform scale must be positive, got %v", scale)
	}
	return SimilarityTransform{rotation: normalize(rotation), translation: translation, scale: scale}, nil
}

// NewScaleTranslateTransform returns an axis-aligned similarity transform
// (identity rotation).
func NewScaleTranslateTransform(scale float64, translation r3.Vector) (SimilarityTransform, error) {
	return NewSimilarityTransform(quat.Number{Real: 1}, translation, scale)
}

// Rotation returns the rotational part.
func (st SimilarityTransform) Rotation() quat.Number {
	return st.rotation
}

// Translation returns the translational part.
func (st SimilarityTransform) Translation() r3.Vector {
	return st.translation
}

// Scale returns the uniform scale factor.
func (st SimilarityTransform) Scale() float64 {
	return st.scale
}

// TransformPoint applies the full transform to a point.
func (st SimilarityTransform) TransformPoint(pt r3.Vector) r3.Vector {
	return rotateVector(st.rotation, pt.Mul(st.scale)).Add(st.translation)
}

// TransformVector applies only the linear part (rotation and scale) to a
// direction vector.
func (st SimilarityTransform) TransformVector(v r3.Vector) r3.Vector {
	return rotateVector(st.rotation, v.Mul(st.scale))
}

// RotateVector applies only the rotation, preserving vector length.
func (st SimilarityTransform) RotateVector(v r3.Vector) r3.Vector {
	return rotateVector(st.rotation, v)
}

// Invert returns the algebraic inverse.
func (st SimilarityTransform) Invert() SimilarityTransform {
	rInv := quat.Conj(st.rotation)
	sInv := 1 / st.scale
	return SimilarityTransform{
		rotation:    rInv,
		translation: rotateVector(rInv, st.translation).Mul(-sInv),
		scale:       sInv,
	}
}

// Matrix returns the transform as a 4x4 homogeneous matrix.
func (st SimilarityTransform) Matrix() mgl64.Mat4 {
	m := mgl64.Ident4()
	setRotationBlock(&m, st.rotation, st.scale)
	m.Set(0, 3, st.translation.X)
	m.Set(1, 3, st.translation.Y)
	m.Set(2, 3, st.translation.Z)
	return m
}
