package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/services/evaluation"
	applogger "FinCast/pkg/logger"
)

// SequenceConfig tunes the sequence-learning forecaster.
type SequenceConfig struct {
	Lookback        int     // input window steps
	HiddenUnits     int     // recurrent layer width
	TrainEpochs     int     // from-scratch fits during a forecast call
	RetrainEpochs   int     // full scheduled/reactive retrains
	FineTuneEpochs  int     // incremental updates
	ValidationSplit float64 // held-out tail share for fine-tuning
}

// DefaultSequenceConfig mirrors the production defaults.
func DefaultSequenceConfig() SequenceConfig {
	return SequenceConfig{
		Lookback:        24,
		HiddenUnits:     50,
		TrainEpochs:     10,
		RetrainEpochs:   20,
		FineTuneEpochs:  5,
		ValidationSplit: 0.2,
	}
}

// seqArtifact is the serialized form saved per version: network weights plus
// the fitted scaler they were trained with.
type seqArtifact struct {
	Net    *SeqNet      `json:"net"`
	Scaler MinMaxScaler `json:"scaler"`
}

// SequenceForecaster maintains a persisted recurrent model per symbol.
// Forecasting loads the active version's artifact and rolls predictions out
// one step at a time; a missing version triggers training from scratch and
// registration of a new active version.
type SequenceForecaster struct {
	registry  domrepo.VersionRegistry
	artifacts domrepo.ArtifactStore
	cfg       SequenceConfig
	l         *applogger.Logger
}

func NewSequenceForecaster(
	registry domrepo.VersionRegistry,
	artifacts domrepo.ArtifactStore,
	cfg SequenceConfig,
	l *applogger.Logger,
) *SequenceForecaster {
	if cfg.Lookback <= 0 {
		cfg = DefaultSequenceConfig()
	}
	return &SequenceForecaster{registry: registry, artifacts: artifacts, cfg: cfg, l: l}
}

func (f *SequenceForecaster) Kind() models.ModelKind { return models.KindSequence }

// Forecast predicts horizon values via iterative one-step-ahead rollout.
// Series with no more points than the lookback window return the last value
// repeated.
func (f *SequenceForecaster) Forecast(ctx context.Context, symbol string, series models.PriceSeries, horizon int) ([]float64, error) {
	if len(series) <= f.cfg.Lookback {
		f.l.Warn("sequence: series shorter than lookback, repeating last value",
			applogger.String("symbol", symbol),
			applogger.Int("points", len(series)),
			applogger.Int("lookback", f.cfg.Lookback))
		return RepeatLast(series.Last(), horizon), nil
	}

	if active, err := f.registry.GetActive(ctx, symbol, models.KindSequence); err == nil {
		if art, lerr := f.loadArtifact(ctx, active.VersionID); lerr == nil {
			f.l.Debug("sequence: using active version",
				applogger.String("symbol", symbol),
				applogger.String("version", active.VersionID))
			return f.rollout(art, series.Values(), horizon), nil
		} else {
			f.l.Warn("sequence: active version artifact unusable, training from scratch",
				applogger.String("symbol", symbol),
				applogger.String("version", active.VersionID),
				applogger.Error(lerr))
		}
	}

	// No usable model: train from scratch and register.
	art, _, err := f.fit(ctx, symbol, series, f.cfg.TrainEpochs)
	if err != nil {
		return nil, fmt.Errorf("sequence fit %s: %w", symbol, err)
	}
	return f.rollout(art, series.Values(), horizon), nil
}

// Retrain trains from scratch on the full series with the larger epoch
// budget and registers the result as the new active version.
func (f *SequenceForecaster) Retrain(ctx context.Context, symbol string, series models.PriceSeries) (string, error) {
	if len(series) <= f.cfg.Lookback {
		return "", fmt.Errorf("sequence retrain %s: %d points, need more than %d: %w",
			symbol, len(series), f.cfg.Lookback, domrepo.ErrInsufficientData)
	}
	_, versionID, err := f.fit(ctx, symbol, series, f.cfg.RetrainEpochs)
	if err != nil {
		return "", fmt.Errorf("sequence retrain %s: %w", symbol, err)
	}
	return versionID, nil
}

// IncrementalUpdate loads versionID's artifact, fine-tunes on the new batch
// with a held-out validation tail and a reduced epoch budget, and registers
// the result as a new active version. On any failure the original version
// stays active and no new version is created.
func (f *SequenceForecaster) IncrementalUpdate(ctx context.Context, symbol string, batch models.PriceSeries, versionID string) (string, error) {
	prior, err := f.registry.Get(ctx, versionID)
	if err != nil {
		return "", fmt.Errorf("sequence update %s: %w", versionID, err)
	}
	art, err := f.loadArtifact(ctx, versionID)
	if err != nil {
		return "", fmt.Errorf("sequence update %s: %w", versionID, err)
	}

	scaled := art.Scaler.TransformAll(batch.Values())
	windows, targets := buildPairs(scaled, f.cfg.Lookback)
	if len(windows) == 0 {
		return "", fmt.Errorf("sequence update %s: batch of %d forms no training pair: %w",
			symbol, len(batch), domrepo.ErrInsufficientData)
	}

	split := len(windows) - int(float64(len(windows))*f.cfg.ValidationSplit)
	if split < 1 {
		split = 1
	}
	loss := art.Net.Train(windows[:split], targets[:split], f.cfg.FineTuneEpochs, time.Now().UnixNano())
	valLoss := art.Net.Loss(windows[split:], targets[split:])
	f.l.Info("sequence: fine-tuned",
		applogger.String("symbol", symbol),
		applogger.String("base_version", versionID),
		applogger.Int("pairs", len(windows)),
		applogger.Any("train_loss", loss),
		applogger.Any("val_loss", valLoss))

	hp := cloneHyperparams(prior.Hyperparams)
	hp["fine_tuned_from"] = versionID
	hp["epochs"] = strconv.Itoa(f.cfg.FineTuneEpochs)
	return f.register(ctx, symbol, art, prior.Metrics, hp, models.TrainingProvenance{
		Symbol:     symbol,
		DataPoints: len(batch),
		RangeStart: batch[0].Timestamp,
		RangeEnd:   batch[len(batch)-1].Timestamp,
	})
}

// fit trains a fresh network on the series and registers it.
func (f *SequenceForecaster) fit(ctx context.Context, symbol string, series models.PriceSeries, epochs int) (*seqArtifact, string, error) {
	values := series.Values()

	art := &seqArtifact{Net: NewSeqNet(f.cfg.HiddenUnits, time.Now().UnixNano())}
	art.Scaler.Fit(values)
	scaled := art.Scaler.TransformAll(values)

	windows, targets := buildPairs(scaled, f.cfg.Lookback)
	if len(windows) == 0 {
		return nil, "", domrepo.ErrInsufficientData
	}
	loss := art.Net.Train(windows, targets, epochs, time.Now().UnixNano())

	// One-step in-sample metrics are the creation snapshot.
	preds := make([]float64, len(windows))
	acts := make([]float64, len(windows))
	for i := range windows {
		preds[i] = art.Scaler.Inverse(art.Net.Predict(windows[i]))
		acts[i] = art.Scaler.Inverse(targets[i])
	}
	snapshot := evaluation.Compute(preds, acts)

	hp := map[string]string{
		"time_steps": strconv.Itoa(f.cfg.Lookback),
		"units":      strconv.Itoa(f.cfg.HiddenUnits),
		"epochs":     strconv.Itoa(epochs),
		"loss":       strconv.FormatFloat(loss, 'g', -1, 64),
	}
	versionID, err := f.register(ctx, symbol, art, snapshot, hp, models.TrainingProvenance{
		Symbol:     symbol,
		DataPoints: len(series),
		RangeStart: series[0].Timestamp,
		RangeEnd:   series[len(series)-1].Timestamp,
	})
	if err != nil {
		return nil, "", err
	}
	f.l.Info("sequence: trained and registered",
		applogger.String("symbol", symbol),
		applogger.String("version", versionID),
		applogger.Int("pairs", len(windows)))
	return art, versionID, nil
}

// register performs the registry rollover first so the final (possibly
// collision-salted) id is known, then persists the artifact under it. A
// version whose artifact write failed is detected at load time and a fresh
// model is trained in its place.
func (f *SequenceForecaster) register(
	ctx context.Context,
	symbol string,
	art *seqArtifact,
	metrics *models.MetricSet,
	hyperparams map[string]string,
	prov models.TrainingProvenance,
) (string, error) {
	b, err := json.Marshal(art)
	if err != nil {
		return "", fmt.Errorf("marshal artifact: %w", err)
	}

	v := &models.ModelVersion{
		ModelKind:   models.KindSequence,
		Symbol:      symbol,
		Hyperparams: hyperparams,
		Metrics:     metrics,
		Provenance:  prov,
		CreatedAt:   time.Now().UTC(),
		IsActive:    true,
	}
	versionID, err := f.registry.Register(ctx, v)
	if err != nil {
		return "", fmt.Errorf("register version: %w", err)
	}
	if err := f.artifacts.Save(ctx, versionID, b); err != nil {
		return "", fmt.Errorf("save artifact %s: %w", versionID, err)
	}
	return versionID, nil
}

func (f *SequenceForecaster) loadArtifact(ctx context.Context, versionID string) (*seqArtifact, error) {
	b, err := f.artifacts.Load(ctx, versionID)
	if err != nil {
		return nil, err
	}
	var art seqArtifact
	if err := json.Unmarshal(b, &art); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", versionID, err)
	}
	if art.Net == nil || art.Net.HiddenSize == 0 {
		return nil, fmt.Errorf("artifact %s: empty network: %w", versionID, domrepo.ErrArtifactMissing)
	}
	return &art, nil
}

// rollout feeds each predicted step back as input for the next one.
func (f *SequenceForecaster) rollout(art *seqArtifact, values []float64, horizon int) []float64 {
	window := art.Scaler.TransformAll(values[len(values)-f.cfg.Lookback:])
	out := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		p := art.Net.Predict(window)
		out[i] = art.Scaler.Inverse(p)
		window = append(window[1:], p)
	}
	return out
}

// buildPairs slides a lookback window over the scaled series to produce
// overlapping (window, next value) training pairs.
func buildPairs(scaled []float64, lookback int) ([][]float64, []float64) {
	if len(scaled) <= lookback {
		return nil, nil
	}
	n := len(scaled) - lookback
	windows := make([][]float64, 0, n)
	targets := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		w := make([]float64, lookback)
		copy(w, scaled[i:i+lookback])
		windows = append(windows, w)
		targets = append(targets, scaled[i+lookback])
	}
	return windows, targets
}

func cloneHyperparams(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}
