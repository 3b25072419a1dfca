package usecase

import (
	"context"
	"testing"
	"time"

	"FinCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPolicy(t *testing.T, registry *memRegistry, store *memPerfStore) *RetrainPolicy {
	t.Helper()
	return NewRetrainPolicy(registry, store, DefaultPolicyConfig(), testLogger(t))
}

func TestScheduledDueWithoutActiveVersion(t *testing.T) {
	p := newTestPolicy(t, newMemRegistry(), newMemPerfStore())
	due, err := p.ShouldRetrainScheduled(context.Background(), "BTC", models.KindSequence)
	require.NoError(t, err)
	assert.True(t, due)
}

func TestScheduledAgeThreshold(t *testing.T) {
	registry := newMemRegistry()
	_, err := registry.Register(context.Background(), &models.ModelVersion{
		Symbol:    "BTC",
		ModelKind: models.KindSequence,
		CreatedAt: time.Now().Add(-3 * 24 * time.Hour),
	})
	require.NoError(t, err)

	p := newTestPolicy(t, registry, newMemPerfStore())

	due, err := p.ShouldRetrainScheduled(context.Background(), "BTC", models.KindSequence)
	require.NoError(t, err)
	assert.False(t, due, "3-day-old version is inside the 7-day interval")

	// move the clock 5 days forward: now 8 days old
	p.now = func() time.Time { return time.Now().Add(5 * 24 * time.Hour) }
	due, err = p.ShouldRetrainScheduled(context.Background(), "BTC", models.KindSequence)
	require.NoError(t, err)
	assert.True(t, due)
}

func TestReactiveDegradingRMSE(t *testing.T) {
	store := newMemPerfStore()
	// RMSE climbing 1.0 -> 2.8 in 0.2 steps: slope 0.2 > 0.1
	rmses := make([]float64, 10)
	for i := range rmses {
		rmses[i] = 1.0 + 0.2*float64(i)
	}
	for _, r := range perfRecords("BTC", models.KindSequence, rmses...) {
		require.NoError(t, store.Append(context.Background(), r))
	}

	p := newTestPolicy(t, newMemRegistry(), store)
	degraded, reason, err := p.ShouldRetrainReactive(context.Background(), "BTC", models.KindSequence)
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Contains(t, reason, "rmse trend")
}

func TestReactiveStableRMSE(t *testing.T) {
	store := newMemPerfStore()
	rmses := make([]float64, 10)
	for i := range rmses {
		rmses[i] = 1.5
	}
	for _, r := range perfRecords("BTC", models.KindSequence, rmses...) {
		require.NoError(t, store.Append(context.Background(), r))
	}

	p := newTestPolicy(t, newMemRegistry(), store)
	degraded, reason, err := p.ShouldRetrainReactive(context.Background(), "BTC", models.KindSequence)
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Empty(t, reason)
}

func TestReactiveGrowingBias(t *testing.T) {
	store := newMemPerfStore()
	records := perfRecords("BTC", models.KindSequence, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1)
	for i, r := range records {
		r.Metrics.Bias = -0.1 * float64(i) // drifting negative, |slope| 0.1 > 0.05
		require.NoError(t, store.Append(context.Background(), r))
	}

	p := newTestPolicy(t, newMemRegistry(), store)
	degraded, reason, err := p.ShouldRetrainReactive(context.Background(), "BTC", models.KindSequence)
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Contains(t, reason, "bias trend")
}

func TestReactiveTooFewRecordsIsNoSignal(t *testing.T) {
	store := newMemPerfStore()
	for _, r := range perfRecords("BTC", models.KindSequence, 1, 5, 9) {
		require.NoError(t, store.Append(context.Background(), r))
	}

	p := newTestPolicy(t, newMemRegistry(), store)
	degraded, reason, err := p.ShouldRetrainReactive(context.Background(), "BTC", models.KindSequence)
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Empty(t, reason)
}

func TestCheckAndRetrainSkipsUntrainable(t *testing.T) {
	p := newTestPolicy(t, newMemRegistry(), newMemPerfStore())
	f := &stubForecaster{kind: models.KindStatistical, out: []float64{1}}

	id, trigger, err := p.CheckAndRetrain(context.Background(), "BTC", makeSeries(100, func(i int) float64 { return float64(i) }), f)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Empty(t, trigger)
}

func TestCheckAndRetrainScheduledFires(t *testing.T) {
	p := newTestPolicy(t, newMemRegistry(), newMemPerfStore())
	f := &stubTrainable{
		stubForecaster: stubForecaster{kind: models.KindSequence, out: []float64{1}},
		retrainID:      "sequence_BTC_1",
	}

	id, trigger, err := p.CheckAndRetrain(context.Background(), "BTC", makeSeries(100, func(i int) float64 { return float64(i) }), f)
	require.NoError(t, err)
	assert.Equal(t, "sequence_BTC_1", id)
	assert.Equal(t, TriggerScheduled, trigger)
	assert.Equal(t, 1, f.retrainCount())
}

func TestCheckAndRetrainNothingDue(t *testing.T) {
	registry := newMemRegistry()
	_, err := registry.Register(context.Background(), &models.ModelVersion{
		Symbol:    "BTC",
		ModelKind: models.KindSequence,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	p := newTestPolicy(t, registry, newMemPerfStore())
	f := &stubTrainable{
		stubForecaster: stubForecaster{kind: models.KindSequence, out: []float64{1}},
		retrainID:      "unused",
	}

	id, trigger, err := p.CheckAndRetrain(context.Background(), "BTC", makeSeries(100, func(i int) float64 { return float64(i) }), f)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Empty(t, trigger)
	assert.Zero(t, f.retrainCount())
}
