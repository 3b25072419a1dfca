package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/domain/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T, store *memPerfStore, ledger *memLedger, m *nopMetrics, forecasters ...service.Forecaster) *Orchestrator {
	t.Helper()
	policy := NewRetrainPolicy(newMemRegistry(), store, DefaultPolicyConfig(), testLogger(t))
	return NewOrchestrator(forecasters, policy, store, ledger, m, DefaultOrchestratorConfig(), testLogger(t))
}

func TestComputeWeightsInverseRMSE(t *testing.T) {
	store := newMemPerfStore()
	ctx := context.Background()
	for _, r := range perfRecords("BTC", models.KindStatistical, 2.0) {
		require.NoError(t, store.Append(ctx, r))
	}
	for _, r := range perfRecords("BTC", models.KindSequence, 1.0) {
		require.NoError(t, store.Append(ctx, r))
	}

	o := newTestOrchestrator(t, store, newMemLedger(), &nopMetrics{},
		&stubForecaster{kind: models.KindStatistical, out: []float64{1, 1, 1}},
		&stubForecaster{kind: models.KindSequence, out: []float64{2, 2, 2}},
	)

	w := o.computeWeights(ctx, "BTC")
	require.Len(t, w, 2)
	// inverse RMSE: 0.5 and 1.0 normalize to 1/3 and 2/3
	assert.InDelta(t, 1.0/3.0, w[models.KindStatistical], 1e-9)
	assert.InDelta(t, 2.0/3.0, w[models.KindSequence], 1e-9)
}

func TestComputeWeightsDefaultWhenNoHistory(t *testing.T) {
	o := newTestOrchestrator(t, newMemPerfStore(), newMemLedger(), &nopMetrics{},
		&stubForecaster{kind: models.KindStatistical, out: []float64{1}},
		&stubForecaster{kind: models.KindSequence, out: []float64{2}},
	)

	w := o.computeWeights(context.Background(), "BTC")
	assert.Equal(t, 0.5, w[models.KindStatistical])
	assert.Equal(t, 0.5, w[models.KindSequence])
}

func TestBlendEqualWeightsIsMean(t *testing.T) {
	perModel := map[models.ModelKind][]float64{
		models.KindStatistical: {10, 20},
		models.KindSequence:    {30, 40},
	}
	weights := map[models.ModelKind]float64{
		models.KindStatistical: 0.5,
		models.KindSequence:    0.5,
	}
	out := blend(perModel, weights, 2, 99)
	assert.Equal(t, []float64{20, 30}, out)
}

func TestBlendShortModelDropsOut(t *testing.T) {
	perModel := map[models.ModelKind][]float64{
		models.KindStatistical: {10, 20, 30},
		models.KindSequence:    {50}, // only one step long
	}
	weights := map[models.ModelKind]float64{
		models.KindStatistical: 0.5,
		models.KindSequence:    0.5,
	}
	out := blend(perModel, weights, 3, 99)
	assert.Equal(t, []float64{30, 20, 30}, out)
}

func TestBlendFallsBackToLast(t *testing.T) {
	out := blend(map[models.ModelKind][]float64{}, map[models.ModelKind]float64{}, 2, 77)
	assert.Equal(t, []float64{77, 77}, out)
}

func TestForecastModeValidation(t *testing.T) {
	o := newTestOrchestrator(t, newMemPerfStore(), newMemLedger(), &nopMetrics{},
		&stubForecaster{kind: models.KindStatistical, out: []float64{1}},
	)
	series := makeSeries(10, func(i int) float64 { return float64(i) })

	_, err := o.ForecastMode(context.Background(), "BTC", series, 0, true)
	require.Error(t, err)
	_, err = o.ForecastMode(context.Background(), "BTC", nil, 5, true)
	require.Error(t, err)
}

func TestAdaptiveForecastEnsemble(t *testing.T) {
	store := newMemPerfStore()
	ledger := newMemLedger()
	m := &nopMetrics{}
	o := newTestOrchestrator(t, store, ledger, m,
		&stubForecaster{kind: models.KindStatistical, out: []float64{10, 10, 10}},
		&stubForecaster{kind: models.KindSequence, out: []float64{20, 20, 20}},
	)
	series := makeSeries(10, func(i int) float64 { return 100 + float64(i) })

	fc, err := o.AdaptiveForecast(context.Background(), "BTC", series, 3)
	require.NoError(t, err)
	assert.Equal(t, StrategyEnsemble, fc.Strategy)
	assert.Equal(t, []float64{15, 15, 15}, fc.Values)
	assert.Empty(t, fc.Warnings)

	// the blended forecast is booked for the evaluation sweep
	assert.Len(t, ledger.pending, 1)
}

func TestForecastFailureContainment(t *testing.T) {
	o := newTestOrchestrator(t, newMemPerfStore(), newMemLedger(), &nopMetrics{},
		&stubForecaster{kind: models.KindStatistical, err: errors.New("boom")},
		&stubForecaster{kind: models.KindSequence, out: []float64{20, 20}},
	)
	series := makeSeries(10, func(i int) float64 { return 100 + float64(i) })

	fc, err := o.AdaptiveForecast(context.Background(), "BTC", series, 2)
	require.NoError(t, err)
	require.Len(t, fc.Values, 2)
	// failed model substitutes the flat fallback at the series' last price
	assert.Equal(t, []float64{(109.0 + 20.0) / 2, (109.0 + 20.0) / 2}, fc.Values)

	require.NotEmpty(t, fc.Warnings)
	joined := strings.Join(fc.Warnings, "; ")
	assert.Contains(t, joined, "statistical")
	assert.Contains(t, joined, "boom")
}

func TestForecastModeSingleBest(t *testing.T) {
	store := newMemPerfStore()
	ctx := context.Background()
	for _, r := range perfRecords("BTC", models.KindStatistical, 5.0) {
		require.NoError(t, store.Append(ctx, r))
	}
	for _, r := range perfRecords("BTC", models.KindSequence, 1.0) {
		require.NoError(t, store.Append(ctx, r))
	}

	o := newTestOrchestrator(t, store, newMemLedger(), &nopMetrics{},
		&stubForecaster{kind: models.KindStatistical, out: []float64{10, 10}},
		&stubForecaster{kind: models.KindSequence, out: []float64{20, 20}},
	)
	series := makeSeries(10, func(i int) float64 { return 100 + float64(i) })

	fc, err := o.ForecastMode(ctx, "BTC", series, 2, false)
	require.NoError(t, err)
	assert.Equal(t, string(models.KindSequence), fc.Strategy)
	assert.Equal(t, []float64{20, 20}, fc.Values)
	assert.Equal(t, map[models.ModelKind]float64{models.KindSequence: 1.0}, fc.Weights)
}

func TestReactiveRetrainBeforeForecast(t *testing.T) {
	store := newMemPerfStore()
	ctx := context.Background()
	// degrading sequence-model RMSE trend
	rmses := make([]float64, 10)
	for i := range rmses {
		rmses[i] = 1.0 + 0.3*float64(i)
	}
	for _, r := range perfRecords("BTC", models.KindSequence, rmses...) {
		require.NoError(t, store.Append(ctx, r))
	}

	trainable := &stubTrainable{
		stubForecaster: stubForecaster{kind: models.KindSequence, out: []float64{20, 20}},
		retrainID:      "sequence_BTC_2",
	}
	m := &nopMetrics{}
	// fresh active version so only the reactive trigger can fire
	registry := newMemRegistry()
	_, err := registry.Register(ctx, &models.ModelVersion{
		Symbol:    "BTC",
		ModelKind: models.KindSequence,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	policy := NewRetrainPolicy(registry, store, DefaultPolicyConfig(), testLogger(t))
	o := NewOrchestrator([]service.Forecaster{trainable}, policy, store, newMemLedger(), m, DefaultOrchestratorConfig(), testLogger(t))

	// enough points to justify a retrain
	series := makeSeries(60, func(i int) float64 { return 100 + float64(i) })
	fc, ferr := o.AdaptiveForecast(ctx, "BTC", series, 2)
	require.NoError(t, ferr)
	require.NotNil(t, fc)
	assert.Equal(t, 1, trainable.retrainCount())
}
