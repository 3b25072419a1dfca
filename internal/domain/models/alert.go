package models

import "time"

// AlertType classifies the threshold a PerformanceRecord crossed.
type AlertType string

const (
	AlertHighError         AlertType = "high_error"
	AlertHighRelativeError AlertType = "high_relative_error"
	AlertHighBias          AlertType = "high_bias"
)

// Alert is raised by monitoring when a metric crosses its threshold.
// Mutated exactly once, by resolve; never auto-expires.
type Alert struct {
	ID          string     `json:"id"`
	Symbol      string     `json:"symbol"`
	ModelKind   ModelKind  `json:"model_kind"`
	AlertType   AlertType  `json:"alert_type"`
	Message     string     `json:"message"`
	Severity    string     `json:"severity"`
	Threshold   float64    `json:"threshold"`
	ActualValue float64    `json:"actual_value"`
	Timestamp   time.Time  `json:"timestamp"`
	IsResolved  bool       `json:"is_resolved"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}
