package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	drepo "FinCast/internal/domain/repository"
	"FinCast/internal/domain/service"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/queue"
)

// RetrainJobType is the queue message type for background retraining.
const RetrainJobType = "model.retrain"

// RetrainPayload asks the worker to re-evaluate retrain triggers for one
// (symbol, kind) pair and retrain if due.
type RetrainPayload struct {
	Symbol       string `json:"symbol"`
	ModelKind    string `json:"model_kind"`
	LookbackDays int    `json:"lookback_days,omitempty"`
	MaxPoints    int    `json:"max_points,omitempty"`
}

// RetrainJob runs retraining off the request path. Callers enqueue the pair
// and keep serving forecasts from the prior active version until the worker
// registers a new one.
type RetrainJob struct {
	forecasters map[models.ModelKind]service.Forecaster
	policy      *RetrainPolicy
	ticks       drepo.TickStorage
	metrics     drepo.Metrics
	l           *applogger.Logger
}

func NewRetrainJob(
	forecasters []service.Forecaster,
	policy *RetrainPolicy,
	ticks drepo.TickStorage,
	metrics drepo.Metrics,
	l *applogger.Logger,
) *RetrainJob {
	byKind := make(map[models.ModelKind]service.Forecaster, len(forecasters))
	for _, f := range forecasters {
		byKind[f.Kind()] = f
	}
	return &RetrainJob{forecasters: byKind, policy: policy, ticks: ticks, metrics: metrics, l: l}
}

func (j *RetrainJob) Name() string { return "model-retrain" }
func (j *RetrainJob) Type() string { return RetrainJobType }

func (j *RetrainJob) Handle(ctx context.Context, payload interface{}) error {
	raw, ok := payload.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("retrain job: payload: %w", err)
		}
		raw = b
	}
	var p RetrainPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("retrain job: decode payload: %w", err)
	}
	kind := models.ModelKind(p.ModelKind)
	f, ok := j.forecasters[kind]
	if !ok {
		return fmt.Errorf("retrain job: unknown model kind %q", p.ModelKind)
	}

	lookback := p.LookbackDays
	if lookback <= 0 {
		lookback = 30
	}
	maxPoints := p.MaxPoints
	if maxPoints <= 0 {
		maxPoints = 5000
	}
	now := time.Now()
	series, err := j.ticks.Series(ctx, p.Symbol, now.AddDate(0, 0, -lookback), now, maxPoints)
	if err != nil {
		return fmt.Errorf("retrain job: load series %s: %w", p.Symbol, err)
	}
	if len(series) == 0 {
		j.l.Warn("retrain job: no data", applogger.String("symbol", p.Symbol))
		return nil
	}

	versionID, trigger, err := j.policy.CheckAndRetrain(ctx, p.Symbol, series, f)
	if err != nil {
		j.metrics.RecordError("retrain_job")
		return err
	}
	if versionID == "" {
		j.l.Debug("retrain job: not due",
			applogger.String("symbol", p.Symbol),
			applogger.String("kind", p.ModelKind))
		return nil
	}
	j.metrics.RecordRetrain(p.ModelKind, trigger)
	j.l.Info("retrain job: new version registered",
		applogger.String("symbol", p.Symbol),
		applogger.String("kind", p.ModelKind),
		applogger.String("version", versionID),
		applogger.String("trigger", trigger))
	return nil
}

var _ queue.Job = (*RetrainJob)(nil)
