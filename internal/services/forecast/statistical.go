package forecast

import (
	"context"
	"fmt"
	"math"

	"FinCast/internal/domain/models"
	applogger "FinCast/pkg/logger"
)

// StatisticalForecaster fits a fixed-order ARIMA(1,1,1) model per call.
// Nothing is persisted; short, degenerate, or non-convergent series degrade
// to repeating the last observed value for the full horizon.
type StatisticalForecaster struct {
	l *applogger.Logger
}

func NewStatisticalForecaster(l *applogger.Logger) *StatisticalForecaster {
	return &StatisticalForecaster{l: l}
}

func (f *StatisticalForecaster) Kind() models.ModelKind { return models.KindStatistical }

const statMinPoints = 10

// Forecast differences the series once, fits AR and MA coefficients on the
// centered differences, and integrates horizon steps ahead.
func (f *StatisticalForecaster) Forecast(ctx context.Context, symbol string, series models.PriceSeries, horizon int) ([]float64, error) {
	_ = ctx
	values := series.Values()
	if len(values) == 0 {
		return nil, fmt.Errorf("statistical: empty series for %s", symbol)
	}
	if len(values) < statMinPoints {
		f.l.Warn("statistical: series too short, repeating last value",
			applogger.String("symbol", symbol),
			applogger.Int("points", len(values)))
		return RepeatLast(values[len(values)-1], horizon), nil
	}

	diffs := make([]float64, len(values)-1)
	var drift float64
	for i := 1; i < len(values); i++ {
		diffs[i-1] = values[i] - values[i-1]
		drift += diffs[i-1]
	}
	drift /= float64(len(diffs))

	centered := make([]float64, len(diffs))
	var variance float64
	for i, d := range diffs {
		centered[i] = d - drift
		variance += centered[i] * centered[i]
	}
	if variance == 0 {
		f.l.Warn("statistical: degenerate differences, repeating last value",
			applogger.String("symbol", symbol))
		return RepeatLast(values[len(values)-1], horizon), nil
	}

	phi := clampCoef(autocorr(centered, variance), 0.99)

	// One-step residuals under the AR term give the MA coefficient.
	resid := make([]float64, len(centered))
	var residVar float64
	for i := 1; i < len(centered); i++ {
		resid[i] = centered[i] - phi*centered[i-1]
		residVar += resid[i] * resid[i]
	}
	var theta float64
	if residVar > 0 {
		theta = clampCoef(autocorr(resid, residVar), 0.9)
	}

	out := make([]float64, horizon)
	level := values[len(values)-1]
	z := centered[len(centered)-1]
	e := resid[len(resid)-1]
	for k := 0; k < horizon; k++ {
		z = phi*z + theta*e
		e = 0 // innovations are zero in expectation beyond one step
		level += drift + z
		if math.IsNaN(level) || math.IsInf(level, 0) {
			f.l.Warn("statistical: forecast diverged, repeating last value",
				applogger.String("symbol", symbol))
			return RepeatLast(values[len(values)-1], horizon), nil
		}
		out[k] = level
	}
	return out, nil
}

// autocorr computes the lag-1 autocorrelation given the zero-lag sum of
// squares.
func autocorr(values []float64, sumSq float64) float64 {
	var num float64
	for i := 1; i < len(values); i++ {
		num += values[i] * values[i-1]
	}
	return num / sumSq
}

func clampCoef(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
