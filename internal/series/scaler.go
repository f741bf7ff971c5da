package series

import (
	"gonum.org/v1/gonum/floats"
)

// Scaler maps values into [0,1] using bounds fitted once over a series.
type Scaler struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FitScaler fits min/max bounds over values. An empty input yields the
// identity-like scaler {0, 1}.
func FitScaler(values []float64) Scaler {
	if len(values) == 0 {
		return Scaler{Min: 0, Max: 1}
	}
	return Scaler{Min: floats.Min(values), Max: floats.Max(values)}
}

// span treats a constant series as unit range so it maps to 0.
func (s Scaler) span() float64 {
	r := s.Max - s.Min
	if r == 0 {
		return 1
	}
	return r
}

func (s Scaler) Transform(v float64) float64 {
	return (v - s.Min) / s.span()
}

func (s Scaler) Inverse(v float64) float64 {
	return v*s.span() + s.Min
}

func (s Scaler) TransformAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Transform(v)
	}
	return out
}

func (s Scaler) InverseAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Inverse(v)
	}
	return out
}
