package models

// Requests for forecasting HTTP endpoints. Defined in domain for consistency and reuse.

type ForecastRequest struct {
	Symbol   string    `query:"symbol" json:"symbol" validate:"required"`
	Horizon  int       `query:"horizon" json:"horizon" default:"24" validate:"gte=1,lte=500"`
	Prices   []float64 `json:"prices,omitempty" validate:"omitempty,min=2"`
	Ensemble *bool     `query:"ensemble" json:"ensemble,omitempty"`
	N        int       `query:"n" json:"n" default:"600" validate:"gte=1,lte=5000"`
}

type PerformanceSummaryRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required"`
	Days   int    `query:"days" json:"days" default:"30" validate:"gte=1,lte=365"`
}

type AlertsRequest struct {
	Symbol   string `query:"symbol" json:"symbol"`
	Severity string `query:"severity" json:"severity" validate:"omitempty,oneof=info warning critical"`
}

type ResolveAlertRequest struct {
	ID string `param:"id" json:"id" validate:"required"`
}

type ListVersionsRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required"`
}
