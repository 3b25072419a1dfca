package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"FinCast/internal/domain/models"
	drepo "FinCast/internal/domain/repository"
	"FinCast/internal/services/evaluation"
	applogger "FinCast/pkg/logger"
)

// Performance trend labels.
const (
	TrendImproving    = "improving"
	TrendStable       = "stable"
	TrendDegrading    = "degrading"
	TrendInsufficient = "insufficient_data"
)

const (
	trendMinRecords = 5
	trendWindow     = 10
	trendDeadband   = 0.01
)

// MonitorConfig holds the alert thresholds.
type MonitorConfig struct {
	AlertRMSE float64 // absolute error ceiling
	AlertMAPE float64 // relative error ceiling, percent
	AlertBias float64 // absolute systematic bias ceiling
}

// DefaultMonitorConfig mirrors the production defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{AlertRMSE: 10.0, AlertMAPE: 15.0, AlertBias: 5.0}
}

// Monitor evaluates realized forecasts, appends immutable performance
// records, and raises threshold alerts. Every evaluation that crosses a
// threshold raises a fresh alert; duplicates are expected and resolved
// operationally.
type Monitor struct {
	store   drepo.PerformanceStore
	alerts  drepo.AlertStore
	metrics drepo.Metrics
	cfg     MonitorConfig
	l       *applogger.Logger
}

func NewMonitor(
	store drepo.PerformanceStore,
	alerts drepo.AlertStore,
	metrics drepo.Metrics,
	cfg MonitorConfig,
	l *applogger.Logger,
) *Monitor {
	if cfg.AlertRMSE == 0 {
		cfg = DefaultMonitorConfig()
	}
	return &Monitor{store: store, alerts: alerts, metrics: metrics, cfg: cfg, l: l}
}

// LogPredictionMetrics scores predictions against realized actuals, persists
// the record, and checks alert thresholds. Returns false (no error) when the
// pairing is unusable for metric computation.
func (m *Monitor) LogPredictionMetrics(ctx context.Context, symbol string, kind models.ModelKind, predictions, actuals []float64, forecastTS time.Time) (bool, error) {
	metrics := evaluation.Compute(predictions, actuals)
	if metrics == nil {
		return false, nil
	}

	rec := &models.PerformanceRecord{
		Symbol:            symbol,
		ModelKind:         kind,
		Timestamp:         time.Now().UTC(),
		ForecastTimestamp: forecastTS,
		Metrics:           *metrics,
		Predictions:       predictions,
		Actuals:           actuals,
	}
	if err := m.store.Append(ctx, rec); err != nil {
		return false, fmt.Errorf("log metrics %s/%s: %w", symbol, kind, err)
	}
	m.metrics.RecordModelRMSE(symbol, string(kind), metrics.RMSE)

	if err := m.checkAlerts(ctx, symbol, kind, metrics); err != nil {
		// Alerts are advisory: the record itself is already durable.
		m.l.Error("alert check failed",
			applogger.String("symbol", symbol),
			applogger.String("kind", string(kind)),
			applogger.Error(err))
	}

	m.l.Info("metrics logged",
		applogger.String("symbol", symbol),
		applogger.String("kind", string(kind)),
		applogger.Any("mae", metrics.MAE),
		applogger.Any("rmse", metrics.RMSE))
	return true, nil
}

func (m *Monitor) checkAlerts(ctx context.Context, symbol string, kind models.ModelKind, metrics *models.MetricSet) error {
	var pending []*models.Alert

	if metrics.RMSE > m.cfg.AlertRMSE {
		pending = append(pending, &models.Alert{
			Symbol:      symbol,
			ModelKind:   kind,
			AlertType:   models.AlertHighError,
			Message:     fmt.Sprintf("High RMSE (%.2f) detected for %s", metrics.RMSE, symbol),
			Severity:    "warning",
			Threshold:   m.cfg.AlertRMSE,
			ActualValue: metrics.RMSE,
		})
	}
	if metrics.MAPE != nil && *metrics.MAPE > m.cfg.AlertMAPE {
		pending = append(pending, &models.Alert{
			Symbol:      symbol,
			ModelKind:   kind,
			AlertType:   models.AlertHighRelativeError,
			Message:     fmt.Sprintf("High MAPE (%.1f%%) detected for %s", *metrics.MAPE, symbol),
			Severity:    "warning",
			Threshold:   m.cfg.AlertMAPE,
			ActualValue: *metrics.MAPE,
		})
	}
	if math.Abs(metrics.Bias) > m.cfg.AlertBias {
		pending = append(pending, &models.Alert{
			Symbol:      symbol,
			ModelKind:   kind,
			AlertType:   models.AlertHighBias,
			Message:     fmt.Sprintf("Significant bias (%.2f) detected for %s", metrics.Bias, symbol),
			Severity:    "warning",
			Threshold:   m.cfg.AlertBias,
			ActualValue: metrics.Bias,
		})
	}

	for _, a := range pending {
		if err := m.alerts.Create(ctx, a); err != nil {
			return err
		}
		m.metrics.RecordAlert(string(a.AlertType))
	}
	return nil
}

// GetPerformanceSummary aggregates the last `days` of records per model kind.
func (m *Monitor) GetPerformanceSummary(ctx context.Context, symbol string, days int) (map[models.ModelKind]*models.ModelSummary, error) {
	since := time.Now().AddDate(0, 0, -days)
	records, err := m.store.Query(ctx, symbol, "", since)
	if err != nil {
		return nil, fmt.Errorf("performance summary %s: %w", symbol, err)
	}

	byKind := make(map[models.ModelKind][]*models.PerformanceRecord)
	for _, r := range records {
		byKind[r.ModelKind] = append(byKind[r.ModelKind], r)
	}

	summary := make(map[models.ModelKind]*models.ModelSummary, len(byKind))
	for kind, list := range byKind {
		last := list[len(list)-1]
		recent := last.Metrics
		summary[kind] = &models.ModelSummary{
			RecentMetrics:    &recent,
			TotalEvaluations: len(list),
			LastEvaluation:   last.Timestamp,
			Trend:            performanceTrend(list),
		}
	}
	return summary, nil
}

// performanceTrend labels the RMSE direction over the recent evaluations.
func performanceTrend(records []*models.PerformanceRecord) string {
	if len(records) < trendMinRecords {
		return TrendInsufficient
	}
	if len(records) > trendWindow {
		records = records[len(records)-trendWindow:]
	}
	rmse := make([]float64, len(records))
	for i, r := range records {
		rmse[i] = r.Metrics.RMSE
	}
	slope := evaluation.Slope(rmse)
	switch {
	case slope < -trendDeadband:
		return TrendImproving
	case slope > trendDeadband:
		return TrendDegrading
	default:
		return TrendStable
	}
}

// GetActiveAlerts lists unresolved alerts, optionally filtered.
func (m *Monitor) GetActiveAlerts(ctx context.Context, symbol, severity string) ([]*models.Alert, error) {
	return m.alerts.ListOpen(ctx, symbol, severity)
}

// ResolveAlert marks an alert resolved. Returns false for an unknown id.
func (m *Monitor) ResolveAlert(ctx context.Context, id string) (bool, error) {
	ok, err := m.alerts.Resolve(ctx, id)
	if err != nil {
		return false, fmt.Errorf("resolve alert %s: %w", id, err)
	}
	if ok {
		m.l.Info("alert resolved", applogger.String("alert_id", id))
	}
	return ok, nil
}
