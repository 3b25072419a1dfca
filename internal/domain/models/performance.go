package models

import "time"

// MetricSet is the fixed set of error statistics computed for one
// prediction/actual pairing. MAPE is nil when any actual is exactly zero.
type MetricSet struct {
	MAE               float64  `json:"mae"`
	RMSE              float64  `json:"rmse"`
	MAPE              *float64 `json:"mape,omitempty"`
	Bias              float64  `json:"bias"`
	StdError          float64  `json:"std_error"`
	MaxError          float64  `json:"max_error"`
	MinError          float64  `json:"min_error"`
	MedianAbsError    float64  `json:"median_absolute_error"`
	RSquared          float64  `json:"r_squared"`
	DirectionAccuracy float64  `json:"direction_accuracy"`
	TheilsU           float64  `json:"theils_u"`
	ErrorTrend        float64  `json:"error_trend"`
}

// PerformanceRecord is one immutable evaluation event. Append-only: never
// updated or deleted once written.
type PerformanceRecord struct {
	Symbol            string    `json:"symbol"`
	ModelKind         ModelKind `json:"model_kind"`
	Timestamp         time.Time `json:"timestamp"`
	ForecastTimestamp time.Time `json:"forecast_timestamp"`
	Metrics           MetricSet `json:"metrics"`
	Predictions       []float64 `json:"predictions"`
	Actuals           []float64 `json:"actuals"`
}

// ModelSummary is one entry of a per-symbol performance summary.
type ModelSummary struct {
	RecentMetrics    *MetricSet `json:"recent_metrics,omitempty"`
	TotalEvaluations int        `json:"total_evaluations"`
	LastEvaluation   time.Time  `json:"last_evaluation"`
	Trend            string     `json:"trend"` // improving | stable | degrading | insufficient_data
}
