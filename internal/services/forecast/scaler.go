package forecast

import "math"

// MinMaxScaler maps values into [0, 1] using the fitted range. The fitted
// bounds are persisted alongside sequence-model weights so predictions can be
// destandardized with the same range the model was trained on.
type MinMaxScaler struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Fit records the min/max of values.
func (s *MinMaxScaler) Fit(values []float64) {
	s.Min = math.Inf(1)
	s.Max = math.Inf(-1)
	for _, v := range values {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
}

// Transform scales a single value. A degenerate (zero-width) range maps to 0.
func (s *MinMaxScaler) Transform(v float64) float64 {
	r := s.Max - s.Min
	if r == 0 {
		return 0
	}
	return (v - s.Min) / r
}

// Inverse maps a scaled value back to the original range.
func (s *MinMaxScaler) Inverse(v float64) float64 {
	return v*(s.Max-s.Min) + s.Min
}

// TransformAll scales a slice.
func (s *MinMaxScaler) TransformAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Transform(v)
	}
	return out
}

// standardScaler centers to zero mean and unit variance within one rolling
// window. Not persisted.
type standardScaler struct {
	mean, std float64
}

func (s *standardScaler) Fit(values []float64) {
	for _, v := range values {
		s.mean += v
	}
	s.mean /= float64(len(values))
	var sum float64
	for _, v := range values {
		d := v - s.mean
		sum += d * d
	}
	s.std = math.Sqrt(sum / float64(len(values)))
}

func (s *standardScaler) Transform(v float64) float64 {
	if s.std == 0 {
		return 0
	}
	return (v - s.mean) / s.std
}

func (s *standardScaler) Inverse(v float64) float64 {
	return v*s.std + s.mean
}
