package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/services/evaluation"
	applogger "FinCast/pkg/logger"
)

const (
	contextSize      = 50
	contextPredSteps = 10
	contextTrendTail = 10
)

// ContextForecaster produces a lightweight attention-like forecast: for each
// sliding context it takes an exponentially recency-weighted average of the
// context values plus a short-horizon trend term scaled by the number of
// steps ahead. Realized accuracy is fed back into the performance store.
type ContextForecaster struct {
	store domrepo.PerformanceStore
	size  int
	l     *applogger.Logger
}

func NewContextForecaster(store domrepo.PerformanceStore, l *applogger.Logger) *ContextForecaster {
	return &ContextForecaster{store: store, size: contextSize, l: l}
}

func (f *ContextForecaster) Kind() models.ModelKind { return models.KindContextWeighted }

func (f *ContextForecaster) Forecast(ctx context.Context, symbol string, series models.PriceSeries, horizon int) ([]float64, error) {
	if len(series) < f.size {
		return nil, fmt.Errorf("context %s: %d points, context %d: %w",
			symbol, len(series), f.size, domrepo.ErrNotAvailable)
	}

	values := series.Values()
	weights := recencyWeights(f.size)

	var predictions, preds, acts []float64
	for i := 0; i+f.size < len(values); i++ {
		window := values[i : i+f.size]

		var weighted float64
		for j, v := range window {
			weighted += v * weights[j]
		}
		trend := evaluation.Slope(window[len(window)-contextTrendTail:])
		p := weighted + trend*contextPredSteps

		predictions = append(predictions, p)
		preds = append(preds, p)
		acts = append(acts, values[i+f.size])
	}
	if len(predictions) == 0 {
		return nil, fmt.Errorf("context %s: no full context ahead of an observation: %w",
			symbol, domrepo.ErrNotAvailable)
	}

	if m := evaluation.Compute(preds, acts); m != nil {
		rec := &models.PerformanceRecord{
			Symbol:            symbol,
			ModelKind:         models.KindContextWeighted,
			Timestamp:         time.Now().UTC(),
			ForecastTimestamp: series[len(series)-1].Timestamp,
			Metrics:           *m,
			Predictions:       preds,
			Actuals:           acts,
		}
		if err := f.store.Append(ctx, rec); err != nil {
			f.l.Warn("context: accuracy feedback not persisted",
				applogger.String("symbol", symbol),
				applogger.Error(err))
		}
	}

	return capTail(predictions, contextPredSteps, horizon), nil
}

// recencyWeights returns normalized exp(linspace(0,1,n)) so the newest
// context points dominate the average.
func recencyWeights(n int) []float64 {
	w := make([]float64, n)
	var sum float64
	for i := range w {
		w[i] = math.Exp(float64(i) / float64(n-1))
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}
