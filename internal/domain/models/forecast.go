package models

import "time"

// ModelKind identifies one of the forecasting strategies.
type ModelKind string

const (
	KindStatistical     ModelKind = "statistical"
	KindSequence        ModelKind = "sequence"
	KindRollingRegress  ModelKind = "rolling_regression"
	KindContextWeighted ModelKind = "context_weighted"
)

// AllModelKinds lists every strategy in ensemble order.
func AllModelKinds() []ModelKind {
	return []ModelKind{KindStatistical, KindSequence, KindRollingRegress, KindContextWeighted}
}

// IsValidModelKind returns true if k names a known strategy.
func IsValidModelKind(k ModelKind) bool {
	switch k {
	case KindStatistical, KindSequence, KindRollingRegress, KindContextWeighted:
		return true
	default:
		return false
	}
}

// SeriesPoint is one observation of a time-ordered price series.
type SeriesPoint struct {
	Timestamp time.Time
	Price     float64
}

// PriceSeries is a time-ascending price series with unique timestamps.
type PriceSeries []SeriesPoint

// Values extracts the price column.
func (s PriceSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Price
	}
	return out
}

// Last returns the final observed price, or 0 for an empty series.
func (s PriceSeries) Last() float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].Price
}

// Forecast is the orchestrator's response: horizon predictions plus the
// label of the strategy that produced them.
type Forecast struct {
	Symbol    string
	Values    []float64
	Strategy  string
	Weights   map[ModelKind]float64
	Timestamp time.Time
	// Warnings lists non-fatal failures (persistence, individual
	// forecasters) encountered while producing the forecast.
	Warnings []string
}

// PendingForecast is a forecast awaiting ground truth, scored later by the
// evaluation sweep.
type PendingForecast struct {
	ID          string      `json:"id"`
	Symbol      string      `json:"symbol"`
	ModelKind   ModelKind   `json:"model_kind"`
	Values      []float64   `json:"values"`
	Timestamps  []time.Time `json:"timestamps"`
	GeneratedAt time.Time   `json:"generated_at"`
}
