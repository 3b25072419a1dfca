package forecast

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/services/evaluation"
	applogger "FinCast/pkg/logger"
)

const (
	rollingWindowSize = 100
	rollingStepSize   = 10
	rollingKeep       = 10
	rollingLR         = 0.01
	rollingEpochs     = 50
)

// RollingForecaster slides a fixed window across the series, fits a linear
// regressor against the position index inside each standardized window, and
// predicts one step past it. Windows with a known subsequent actual also
// feed a realized-error record into the performance store.
type RollingForecaster struct {
	store      domrepo.PerformanceStore
	windowSize int
	stepSize   int
	l          *applogger.Logger
}

func NewRollingForecaster(store domrepo.PerformanceStore, l *applogger.Logger) *RollingForecaster {
	return &RollingForecaster{
		store:      store,
		windowSize: rollingWindowSize,
		stepSize:   rollingStepSize,
		l:          l,
	}
}

func (f *RollingForecaster) Kind() models.ModelKind { return models.KindRollingRegress }

// Forecast returns the most recent sweep predictions, capped at the horizon.
// The output may be shorter than horizon; the ensemble drops the model from
// the steps it did not reach. Series shorter than the window size are not
// forecastable by this strategy.
func (f *RollingForecaster) Forecast(ctx context.Context, symbol string, series models.PriceSeries, horizon int) ([]float64, error) {
	if len(series) < f.windowSize {
		return nil, fmt.Errorf("rolling %s: %d points, window %d: %w",
			symbol, len(series), f.windowSize, domrepo.ErrNotAvailable)
	}

	values := series.Values()
	var predictions []float64
	var preds, acts []float64

	for i := 0; i+f.windowSize < len(values); i += f.stepSize {
		window := values[i : i+f.windowSize]

		var sc standardScaler
		sc.Fit(window)
		scaled := make([]float64, len(window))
		for j, v := range window {
			scaled[j] = sc.Transform(v)
		}

		slope, intercept := sgdLinearFit(scaled, rollingLR, rollingEpochs)
		next := sc.Inverse(slope*float64(len(scaled)) + intercept)
		predictions = append(predictions, next)

		preds = append(preds, next)
		acts = append(acts, values[i+f.windowSize])
	}

	if len(preds) > 0 {
		if m := evaluation.Compute(preds, acts); m != nil {
			rec := &models.PerformanceRecord{
				Symbol:            symbol,
				ModelKind:         models.KindRollingRegress,
				Timestamp:         time.Now().UTC(),
				ForecastTimestamp: series[len(series)-1].Timestamp,
				Metrics:           *m,
				Predictions:       preds,
				Actuals:           acts,
			}
			if err := f.store.Append(ctx, rec); err != nil {
				f.l.Warn("rolling: performance record not persisted",
					applogger.String("symbol", symbol),
					applogger.Error(err))
			}
		}
	}

	return capTail(predictions, rollingKeep, horizon), nil
}

// capTail keeps the newest min(keep, horizon) predictions without padding.
func capTail(preds []float64, keep, horizon int) []float64 {
	if horizon < keep {
		keep = horizon
	}
	if len(preds) > keep {
		preds = preds[len(preds)-keep:]
	}
	return preds
}

// sgdLinearFit runs plain stochastic gradient descent for y = slope*x + b
// over the index positions, with a decaying learning rate.
func sgdLinearFit(y []float64, lr float64, epochs int) (slope, intercept float64) {
	n := float64(len(y))
	if n == 0 {
		return 0, 0
	}
	for e := 0; e < epochs; e++ {
		step := lr / (1 + 0.1*float64(e))
		for i, target := range y {
			x := float64(i)
			err := slope*x + intercept - target
			slope -= step * err * x / n
			intercept -= step * err / n
		}
	}
	return slope, intercept
}
