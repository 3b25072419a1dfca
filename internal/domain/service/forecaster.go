package service

import (
	"context"

	"FinCast/internal/domain/models"
)

// Forecaster is the common contract of every forecasting strategy: produce
// horizon predicted values from a time-ascending price series.
type Forecaster interface {
	Kind() models.ModelKind
	Forecast(ctx context.Context, symbol string, series models.PriceSeries, horizon int) ([]float64, error)
}

// Trainable is implemented by forecasters with a persisted artifact that can
// be retrained from scratch on the full series.
type Trainable interface {
	// Retrain trains from scratch and registers a new active version.
	// Returns the new version id.
	Retrain(ctx context.Context, symbol string, series models.PriceSeries) (string, error)
}

// IncrementalUpdater is implemented by forecasters that can fine-tune an
// existing version on a short fresh batch.
type IncrementalUpdater interface {
	// IncrementalUpdate fine-tunes the given version on batch and registers
	// the result as a new active version. On failure no new version is
	// created and the original stays active.
	IncrementalUpdate(ctx context.Context, symbol string, batch models.PriceSeries, versionID string) (string, error)
}
