package model

import (
	"errors"
	"fmt"
	"math"
)

// Scaler kinds accepted in the persisted artifact.
const (
	ScalerMinMax   = "minmax"
	ScalerStandard = "standard"
)

// ScalerParams is the persisted form of a fitted scaler. MinMax scalers use
// DataMin, DataMax and FeatureRange; standard scalers use Mean and Scale.
type ScalerParams struct {
	Kind         string     `json:"kind"`
	DataMin      float64    `json:"data_min,omitempty"`
	DataMax      float64    `json:"data_max,omitempty"`
	FeatureRange [2]float64 `json:"feature_range,omitempty"`
	Mean         float64    `json:"mean,omitempty"`
	Scale        float64    `json:"scale,omitempty"`
}

// Scaler is an affine normalization with parameters fixed at load time.
// Its parameters cannot change after construction.
type Scaler struct {
	kind   string
	factor float64
	offset float64
}

// NewScaler builds a Scaler from fitted parameters.
func NewScaler(p ScalerParams) (*Scaler, error) {
	var factor, offset float64
	switch p.Kind {
	case ScalerMinMax:
		span := p.DataMax - p.DataMin
		lo, hi := p.FeatureRange[0], p.FeatureRange[1]
		if lo == 0 && hi == 0 {
			hi = 1
		}
		if span <= 0 || hi <= lo {
			return nil, fmt.Errorf("%w: minmax scaler needs data_max > data_min and a non-empty feature range", ErrIncompatibleArtifact)
		}
		factor = (hi - lo) / span
		offset = lo - p.DataMin*factor
	case ScalerStandard:
		if p.Scale == 0 {
			return nil, fmt.Errorf("%w: standard scaler has zero scale", ErrIncompatibleArtifact)
		}
		factor = 1 / p.Scale
		offset = -p.Mean / p.Scale
	default:
		return nil, fmt.Errorf("%w: unknown scaler kind %q", ErrIncompatibleArtifact, p.Kind)
	}
	if !finite(factor) || !finite(offset) {
		return nil, fmt.Errorf("%w: scaler parameters are not finite", ErrIncompatibleArtifact)
	}
	return &Scaler{kind: p.Kind, factor: factor, offset: offset}, nil
}

// Kind reports the scaler family.
func (s *Scaler) Kind() string { return s.kind }

// Transform normalizes values into the model's input space.
func (s *Scaler) Transform(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v*s.factor + s.offset
	}
	return out
}

// InverseTransform maps model outputs back to physical units.
func (s *Scaler) InverseTransform(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - s.offset) / s.factor
	}
	return out
}

// ErrIncompatibleArtifact marks an artifact that decoded but cannot be used.
var ErrIncompatibleArtifact = errors.New("incompatible model artifact")

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
