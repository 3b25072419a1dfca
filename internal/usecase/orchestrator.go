package usecase

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	drepo "FinCast/internal/domain/repository"
	"FinCast/internal/domain/service"
	applogger "FinCast/pkg/logger"
)

// StrategyEnsemble labels a blended forecast.
const StrategyEnsemble = "adaptive_ensemble"

// OrchestratorConfig tunes ensemble behavior.
type OrchestratorConfig struct {
	Ensemble         bool // blend all strategies vs pick the single best
	WeightWindowDays int  // max age of the performance snapshot used for weights
	WeightSmoothing  int  // records averaged per model for weighting; 1 = latest only
	MinRetrainPoints int  // series length required for a reactive retrain
}

// DefaultOrchestratorConfig mirrors the production defaults.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Ensemble:         true,
		WeightWindowDays: 7,
		WeightSmoothing:  1,
		MinRetrainPoints: 50,
	}
}

// defaultWeights is the fallback when no model has usable performance data.
var defaultWeights = map[models.ModelKind]float64{
	models.KindStatistical: 0.5,
	models.KindSequence:    0.5,
}

// Orchestrator drives one adaptive forecast: reactive retrain check,
// independent per-model generation with failure containment, inverse-RMSE
// weighting, per-step blending, and a fire-and-forget scheduled retrain.
type Orchestrator struct {
	forecasters map[models.ModelKind]service.Forecaster
	policy      *RetrainPolicy
	store       drepo.PerformanceStore
	ledger      drepo.ForecastLedger
	metrics     drepo.Metrics
	cfg         OrchestratorConfig
	l           *applogger.Logger
}

func NewOrchestrator(
	forecasters []service.Forecaster,
	policy *RetrainPolicy,
	store drepo.PerformanceStore,
	ledger drepo.ForecastLedger,
	metrics drepo.Metrics,
	cfg OrchestratorConfig,
	l *applogger.Logger,
) *Orchestrator {
	byKind := make(map[models.ModelKind]service.Forecaster, len(forecasters))
	for _, f := range forecasters {
		byKind[f.Kind()] = f
	}
	if cfg.WeightWindowDays <= 0 {
		cfg = DefaultOrchestratorConfig()
	}
	return &Orchestrator{
		forecasters: byKind,
		policy:      policy,
		store:       store,
		ledger:      ledger,
		metrics:     metrics,
		cfg:         cfg,
		l:           l,
	}
}

// AdaptiveForecast produces horizon predictions for symbol using the
// configured ensemble mode. It always returns a forecast: individual
// failures degrade the result and are listed in Warnings, they never abort
// the call.
func (o *Orchestrator) AdaptiveForecast(ctx context.Context, symbol string, series models.PriceSeries, horizon int) (*models.Forecast, error) {
	return o.ForecastMode(ctx, symbol, series, horizon, o.cfg.Ensemble)
}

// ForecastMode is AdaptiveForecast with an explicit ensemble switch.
func (o *Orchestrator) ForecastMode(ctx context.Context, symbol string, series models.PriceSeries, horizon int, ensemble bool) (*models.Forecast, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("adaptive forecast %s: horizon must be positive", symbol)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("adaptive forecast %s: empty series", symbol)
	}
	start := time.Now()
	var warnings []string

	// Reactive degradation check for the sequence model; retrain
	// synchronously when flagged and enough data exists. Failure is
	// reported, forecasting continues on the prior version.
	warnings = append(warnings, o.checkReactiveRetrain(ctx, symbol, series)...)

	// Generate per model. One model's failure never aborts the ensemble.
	perModel := make(map[models.ModelKind][]float64, len(o.forecasters))
	for kind, f := range o.forecasters {
		values, err := f.Forecast(ctx, symbol, series, horizon)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", kind, err))
			o.metrics.RecordError("forecast_" + string(kind))
			o.l.Warn("forecaster failed, substituting flat fallback",
				applogger.String("symbol", symbol),
				applogger.String("kind", string(kind)),
				applogger.Error(err))
			values = repeatLast(series.Last(), horizon)
		}
		perModel[kind] = values
	}

	var (
		blended  []float64
		strategy string
		weights  map[models.ModelKind]float64
	)
	if ensemble {
		weights = o.computeWeights(ctx, symbol)
		blended = blend(perModel, weights, horizon, series.Last())
		strategy = StrategyEnsemble
	} else {
		kind := o.bestRecentModel(ctx, symbol)
		blended = perModel[kind]
		strategy = string(kind)
		weights = map[models.ModelKind]float64{kind: 1.0}
	}

	if err := o.recordPending(ctx, symbol, strategy, blended, series); err != nil {
		warnings = append(warnings, fmt.Sprintf("pending forecast not recorded: %v", err))
	}

	// Scheduled retrain as a side effect; its outcome never changes the
	// forecast being returned.
	o.scheduleFollowup(symbol, series)

	o.metrics.RecordForecast(strategy, symbol)
	o.metrics.RecordLatency("adaptive_forecast", time.Since(start).Seconds())

	return &models.Forecast{
		Symbol:    symbol,
		Values:    blended,
		Strategy:  strategy,
		Weights:   weights,
		Timestamp: time.Now().UTC(),
		Warnings:  warnings,
	}, nil
}

func (o *Orchestrator) checkReactiveRetrain(ctx context.Context, symbol string, series models.PriceSeries) []string {
	f, ok := o.forecasters[models.KindSequence]
	if !ok {
		return nil
	}
	trainable, ok := f.(service.Trainable)
	if !ok {
		return nil
	}
	degraded, reason, err := o.policy.ShouldRetrainReactive(ctx, symbol, models.KindSequence)
	if err != nil {
		return []string{fmt.Sprintf("reactive check: %v", err)}
	}
	if !degraded || len(series) <= o.cfg.MinRetrainPoints {
		return nil
	}
	o.l.Info("degradation detected, retraining before forecast",
		applogger.String("symbol", symbol),
		applogger.String("reason", reason))
	versionID, err := trainable.Retrain(ctx, symbol, series)
	if err != nil {
		o.metrics.RecordError("reactive_retrain")
		return []string{fmt.Sprintf("reactive retrain: %v", err)}
	}
	o.metrics.RecordRetrain(string(models.KindSequence), TriggerReactive)
	o.l.Info("reactive retrain complete",
		applogger.String("symbol", symbol),
		applogger.String("version", versionID))
	return nil
}

// computeWeights derives inverse-RMSE weights from each model's recent
// performance snapshot. Models without a usable snapshot get zero weight;
// when no model has one, the default weight set applies.
func (o *Orchestrator) computeWeights(ctx context.Context, symbol string) map[models.ModelKind]float64 {
	cutoff := time.Now().AddDate(0, 0, -o.cfg.WeightWindowDays)
	inverse := make(map[models.ModelKind]float64)
	var total float64

	for kind := range o.forecasters {
		rmse, ok := o.recentRMSE(ctx, symbol, kind, cutoff)
		if !ok || rmse <= 0 {
			continue
		}
		inv := 1.0 / rmse
		inverse[kind] = inv
		total += inv
	}
	if total == 0 {
		out := make(map[models.ModelKind]float64, len(defaultWeights))
		for k, w := range defaultWeights {
			out[k] = w
		}
		return out
	}
	weights := make(map[models.ModelKind]float64, len(inverse))
	for kind, inv := range inverse {
		weights[kind] = inv / total
	}
	return weights
}

// recentRMSE returns the model's weighting RMSE: the latest record's value,
// or the mean over the last WeightSmoothing records when smoothing is on.
func (o *Orchestrator) recentRMSE(ctx context.Context, symbol string, kind models.ModelKind, cutoff time.Time) (float64, bool) {
	n := o.cfg.WeightSmoothing
	if n < 1 {
		n = 1
	}
	records, err := o.store.RecentN(ctx, symbol, kind, n)
	if err != nil {
		o.l.Warn("weight lookup failed",
			applogger.String("symbol", symbol),
			applogger.String("kind", string(kind)),
			applogger.Error(err))
		return 0, false
	}
	var sum float64
	var count int
	for _, r := range records {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		sum += r.Metrics.RMSE
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// bestRecentModel picks the kind with the lowest recent RMSE; statistical
// when no model has performance data.
func (o *Orchestrator) bestRecentModel(ctx context.Context, symbol string) models.ModelKind {
	cutoff := time.Now().AddDate(0, 0, -o.cfg.WeightWindowDays)
	best := models.KindStatistical
	bestRMSE := 0.0
	found := false
	for kind := range o.forecasters {
		rmse, ok := o.recentRMSE(ctx, symbol, kind, cutoff)
		if !ok || rmse <= 0 {
			continue
		}
		if !found || rmse < bestRMSE {
			best, bestRMSE, found = kind, rmse, true
		}
	}
	return best
}

// blend combines per-model outputs step by step. A model shorter than the
// horizon drops out of later steps and the divisor shrinks accordingly; a
// step nobody reaches falls back to the last observed value.
func blend(perModel map[models.ModelKind][]float64, weights map[models.ModelKind]float64, horizon int, last float64) []float64 {
	out := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		var num, div float64
		for kind, values := range perModel {
			w := weights[kind]
			if w <= 0 || i >= len(values) {
				continue
			}
			num += w * values[i]
			div += w
		}
		if div == 0 {
			out[i] = last
			continue
		}
		out[i] = num / div
	}
	return out
}

// recordPending books the blended forecast for the evaluation sweep. The
// step interval is inferred from the series tail.
func (o *Orchestrator) recordPending(ctx context.Context, symbol, strategy string, values []float64, series models.PriceSeries) error {
	step := time.Hour
	if len(series) >= 2 {
		if d := series[len(series)-1].Timestamp.Sub(series[len(series)-2].Timestamp); d > 0 {
			step = d
		}
	}
	base := series[len(series)-1].Timestamp
	stamps := make([]time.Time, len(values))
	for i := range values {
		stamps[i] = base.Add(time.Duration(i+1) * step)
	}
	return o.ledger.Put(ctx, &models.PendingForecast{
		Symbol:      symbol,
		ModelKind:   models.ModelKind(strategy),
		Values:      values,
		Timestamps:  stamps,
		GeneratedAt: time.Now().UTC(),
	})
}

func (o *Orchestrator) scheduleFollowup(symbol string, series models.PriceSeries) {
	snapshot := make(models.PriceSeries, len(series))
	copy(snapshot, series)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		for kind, f := range o.forecasters {
			trainable, ok := f.(service.Trainable)
			if !ok {
				continue
			}
			due, err := o.policy.ShouldRetrainScheduled(ctx, symbol, kind)
			if err != nil || !due {
				continue
			}
			if _, err := trainable.Retrain(ctx, symbol, snapshot); err != nil {
				o.metrics.RecordError("scheduled_retrain")
				o.l.Warn("scheduled retrain failed",
					applogger.String("symbol", symbol),
					applogger.String("kind", string(kind)),
					applogger.Error(err))
				continue
			}
			o.metrics.RecordRetrain(string(kind), TriggerScheduled)
		}
	}()
}

func repeatLast(last float64, horizon int) []float64 {
	out := make([]float64, horizon)
	for i := range out {
		out[i] = last
	}
	return out
}
