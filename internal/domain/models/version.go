package models

import "time"

// TrainingProvenance records what data a model version was trained on.
type TrainingProvenance struct {
	Symbol     string    `json:"symbol"`
	DataPoints int       `json:"data_points"`
	RangeStart time.Time `json:"range_start"`
	RangeEnd   time.Time `json:"range_end"`
}

// ModelVersion is one trained artifact tracked by the registry. The registry
// owns the authoritative record; serialized weights live in the artifact
// store, addressed by VersionID.
type ModelVersion struct {
	VersionID   string             `json:"version_id"`
	ModelKind   ModelKind          `json:"model_kind"`
	Symbol      string             `json:"symbol"`
	Hyperparams map[string]string  `json:"hyperparams,omitempty"`
	Metrics     *MetricSet         `json:"metrics,omitempty"`
	Provenance  TrainingProvenance `json:"provenance"`
	CreatedAt   time.Time          `json:"created_at"`
	IsActive    bool               `json:"is_active"`
}
