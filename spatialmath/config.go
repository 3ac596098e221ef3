package spatialmath

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

// QuaternionConfig is the JSON form of a rotation quaternion.
type QuaternionConfig struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// TranslationConfig is the JSON form of a translation vector.
type TranslationConfig struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PoseConfig is the JSON form of a rigid transform.
type PoseConfig struct {
	Quaternion  QuaternionConfig  `json:"quaternion"`
	Translation TranslationConfig `json:"translation"`
}

// SimilarityConfig is the JSON form of a similarity transform.
type SimilarityConfig struct {
	Quaternion  QuaternionConfig  `json:"quaternion"`
	Translation TranslationConfig `json:"translation"`
	Scale       float64           `json:"scale"`
}

// ParseConfig turns a PoseConfig into a Pose. A zero quaternion is a
// configuration error.
func (cfg PoseConfig) ParseConfig() (Pose, error) {
	q := quat.Number{Real: cfg.Quaternion.W, Imag: cfg.Quaternion.X, Jmag: cfg.Quaternion.Y, Kmag: cfg.Quaternion.Z}
	if q.Real == 0 && q.Imag == 0 && q.Jmag == 0 && q.Kmag == 0 {
		return Pose{}, errors.New("pose quaternion cannot be all zeroes")
	}
	return NewPose(q, r3.Vector{X: cfg.Translation.X, Y: cfg.Translation.Y, Z: cfg.Translation.Z}), nil
}

// ParseConfig turns a SimilarityConfig into a SimilarityTransform.
func (cfg SimilarityConfig) ParseConfig() (SimilarityTransform, error) {
	q := quat.Number{Real: cfg.Quaternion.W, Imag: cfg.Quaternion.X, Jmag: cfg.Quaternion.Y, Kmag: cfg.Quaternion.Z}
	if q.Real == 0 && q.Imag == 0 && q.Jmag == 0 && q.Kmag == 0 {
		return SimilarityTransform{}, errors.New("similarity quaternion cannot be all zeroes")
	}
	return NewSimilarityTransform(
		q,
		r3.Vector{X: cfg.Translation.X, Y: cfg.Translation.Y, Z: cfg.Translation.Z},
		cfg.Scale,
	)
}
