package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"FinCast/internal/domain/models"
	drepo "FinCast/internal/domain/repository"
	"FinCast/internal/domain/service"
	"FinCast/internal/services/evaluation"
	applogger "FinCast/pkg/logger"
)

// Retrain trigger labels.
const (
	TriggerScheduled = "scheduled"
	TriggerReactive  = "reactive"
)

// PolicyConfig tunes the retraining triggers. Thresholds come from
// configuration, never hard-coded at call sites.
type PolicyConfig struct {
	IntervalDays int     // scheduled retrain cadence
	RMSESlope    float64 // reactive: errors worsening
	BiasSlope    float64 // reactive: systematic drift growing (absolute)
	LookbackDays int     // reactive record window
	MinRecords   int     // reactive minimum sample
	EvalHistoryN int     // records fed into the trend fit
}

// DefaultPolicyConfig mirrors the production defaults.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		IntervalDays: 7,
		RMSESlope:    0.1,
		BiasSlope:    0.05,
		LookbackDays: 30,
		MinRecords:   10,
		EvalHistoryN: 10,
	}
}

// RetrainPolicy decides when a model version must be replaced: on a fixed
// schedule driven by the active version's age, or reactively when recent
// error trends show degradation.
type RetrainPolicy struct {
	registry drepo.VersionRegistry
	store    drepo.PerformanceStore
	cfg      PolicyConfig
	now      func() time.Time
	l        *applogger.Logger
}

func NewRetrainPolicy(
	registry drepo.VersionRegistry,
	store drepo.PerformanceStore,
	cfg PolicyConfig,
	l *applogger.Logger,
) *RetrainPolicy {
	if cfg.MinRecords <= 0 {
		cfg = DefaultPolicyConfig()
	}
	return &RetrainPolicy{registry: registry, store: store, cfg: cfg, now: time.Now, l: l}
}

// ShouldRetrainScheduled reports whether the active version for
// (symbol, kind) is at least IntervalDays old. A missing active version
// counts as due: there is nothing current to serve.
func (p *RetrainPolicy) ShouldRetrainScheduled(ctx context.Context, symbol string, kind models.ModelKind) (bool, error) {
	active, err := p.registry.GetActive(ctx, symbol, kind)
	if errors.Is(err, drepo.ErrNoActiveVersion) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("scheduled check %s/%s: %w", symbol, kind, err)
	}
	age := p.now().Sub(active.CreatedAt)
	return age >= time.Duration(p.cfg.IntervalDays)*24*time.Hour, nil
}

// ShouldRetrainReactive fits a first-degree trend over the RMSE and bias of
// the most recent records inside the lookback window. Fewer than MinRecords
// is no signal: the decision is "do not retrain", not an error.
func (p *RetrainPolicy) ShouldRetrainReactive(ctx context.Context, symbol string, kind models.ModelKind) (bool, string, error) {
	records, err := p.store.RecentN(ctx, symbol, kind, p.cfg.EvalHistoryN)
	if err != nil {
		return false, "", fmt.Errorf("reactive check %s/%s: %w", symbol, kind, err)
	}

	cutoff := p.now().AddDate(0, 0, -p.cfg.LookbackDays)
	recent := records[:0]
	for _, r := range records {
		if r.Timestamp.After(cutoff) {
			recent = append(recent, r)
		}
	}
	if len(recent) < p.cfg.MinRecords {
		p.l.Debug("reactive check: no signal",
			applogger.String("symbol", symbol),
			applogger.String("kind", string(kind)),
			applogger.Int("records", len(recent)),
			applogger.Int("required", p.cfg.MinRecords))
		return false, "", nil
	}

	rmse := make([]float64, len(recent))
	bias := make([]float64, len(recent))
	for i, r := range recent {
		rmse[i] = r.Metrics.RMSE
		bias[i] = r.Metrics.Bias
	}
	rmseSlope := evaluation.Slope(rmse)
	biasSlope := evaluation.Slope(bias)

	switch {
	case rmseSlope > p.cfg.RMSESlope:
		return true, fmt.Sprintf("rmse trend %.4f exceeds %.4f", rmseSlope, p.cfg.RMSESlope), nil
	case math.Abs(biasSlope) > p.cfg.BiasSlope:
		return true, fmt.Sprintf("bias trend %.4f exceeds %.4f", biasSlope, p.cfg.BiasSlope), nil
	default:
		return false, "", nil
	}
}

// CheckAndRetrain runs the scheduled check first, then the reactive one, and
// retrains through the forecaster when either fires. Registering the new
// version resets the active version's age, so a reactive retrain makes the
// same call's scheduled check a no-op on the next pass. Returns the new
// version id and the trigger label, or ("", "") when nothing fired.
func (p *RetrainPolicy) CheckAndRetrain(ctx context.Context, symbol string, series models.PriceSeries, f service.Forecaster) (string, string, error) {
	trainable, ok := f.(service.Trainable)
	if !ok {
		return "", "", nil
	}
	kind := f.Kind()

	due, err := p.ShouldRetrainScheduled(ctx, symbol, kind)
	if err != nil {
		return "", "", err
	}
	trigger := ""
	reason := "interval elapsed"
	if due {
		trigger = TriggerScheduled
	} else {
		degraded, why, rerr := p.ShouldRetrainReactive(ctx, symbol, kind)
		if rerr != nil {
			return "", "", rerr
		}
		if degraded {
			trigger = TriggerReactive
			reason = why
		}
	}
	if trigger == "" {
		return "", "", nil
	}

	p.l.Info("retraining model",
		applogger.String("symbol", symbol),
		applogger.String("kind", string(kind)),
		applogger.String("trigger", trigger),
		applogger.String("reason", reason))

	versionID, err := trainable.Retrain(ctx, symbol, series)
	if err != nil {
		return "", trigger, fmt.Errorf("retrain %s/%s (%s): %w", symbol, kind, trigger, err)
	}
	return versionID, trigger, nil
}
