package forecast

// RepeatLast is the flat fallback: the series' last value repeated for the
// full horizon.
func RepeatLast(last float64, horizon int) []float64 {
	out := make([]float64, horizon)
	for i := range out {
		out[i] = last
	}
	return out
}
