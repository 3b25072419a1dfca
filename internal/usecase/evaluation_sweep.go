package usecase

import (
	"context"
	"time"

	drepo "FinCast/internal/domain/repository"
	applogger "FinCast/pkg/logger"
)

// EvaluationSweep periodically scores pending forecasts whose horizon has
// fully elapsed against realized prices. It only reads the tick store and
// writes PerformanceRecords/Alerts through the monitor; it never touches
// model versions.
type EvaluationSweep struct {
	ledger   drepo.ForecastLedger
	ticks    drepo.TickStorage
	monitor  *Monitor
	interval time.Duration
	l        *applogger.Logger
}

func NewEvaluationSweep(
	ledger drepo.ForecastLedger,
	ticks drepo.TickStorage,
	monitor *Monitor,
	interval time.Duration,
	l *applogger.Logger,
) *EvaluationSweep {
	if interval <= 0 {
		interval = time.Hour
	}
	return &EvaluationSweep{ledger: ledger, ticks: ticks, monitor: monitor, interval: interval, l: l}
}

// Start launches the sweep loop. It stops when ctx is cancelled.
func (s *EvaluationSweep) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.l.Info("evaluation sweep started", applogger.Duration("interval", s.interval))
		for {
			select {
			case <-ctx.Done():
				s.l.Info("evaluation sweep stopped")
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce processes every due pending forecast. Forecasts with no realized
// data yet stay in the ledger for the next pass.
func (s *EvaluationSweep) RunOnce(ctx context.Context) {
	due, err := s.ledger.ListDue(ctx, time.Now())
	if err != nil {
		s.l.Error("sweep: list due forecasts", applogger.Error(err))
		return
	}
	for _, pf := range due {
		if len(pf.Timestamps) == 0 || len(pf.Values) == 0 {
			_ = s.ledger.Remove(ctx, pf.ID)
			continue
		}
		from := pf.Timestamps[0]
		to := pf.Timestamps[len(pf.Timestamps)-1]
		series, err := s.ticks.Series(ctx, pf.Symbol, from, to, len(pf.Values))
		if err != nil {
			s.l.Warn("sweep: series fetch failed",
				applogger.String("symbol", pf.Symbol),
				applogger.Error(err))
			continue
		}
		if len(series) == 0 {
			// ground truth not landed yet
			continue
		}

		n := len(series)
		if n > len(pf.Values) {
			n = len(pf.Values)
		}
		actuals := series.Values()[:n]
		predictions := pf.Values[:n]

		logged, err := s.monitor.LogPredictionMetrics(ctx, pf.Symbol, pf.ModelKind, predictions, actuals, pf.GeneratedAt)
		if err != nil {
			s.l.Error("sweep: log metrics",
				applogger.String("symbol", pf.Symbol),
				applogger.String("forecast_id", pf.ID),
				applogger.Error(err))
			continue
		}
		if err := s.ledger.Remove(ctx, pf.ID); err != nil {
			s.l.Warn("sweep: ledger remove",
				applogger.String("forecast_id", pf.ID),
				applogger.Error(err))
		}
		if logged {
			s.l.Debug("sweep: forecast scored",
				applogger.String("symbol", pf.Symbol),
				applogger.String("kind", string(pf.ModelKind)),
				applogger.Int("points", n))
		}
	}
}
