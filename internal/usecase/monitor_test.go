package usecase

import (
	"context"
	"testing"
	"time"

	"FinCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T, store *memPerfStore, alerts *memAlerts, m *nopMetrics) *Monitor {
	t.Helper()
	return NewMonitor(store, alerts, m, DefaultMonitorConfig(), testLogger(t))
}

func TestLogPredictionMetricsRaisesAlerts(t *testing.T) {
	store := newMemPerfStore()
	alerts := newMemAlerts()
	m := &nopMetrics{}
	mon := newTestMonitor(t, store, alerts, m)
	ctx := context.Background()

	// wildly wrong predictions: RMSE, MAPE, and bias all over threshold
	preds := []float64{100, 100, 100}
	acts := []float64{150, 150, 150}
	ok, err := mon.LogPredictionMetrics(ctx, "BTC", models.KindSequence, preds, acts, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, store.appends)

	open, err := alerts.ListOpen(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, open, 3)
	types := make(map[models.AlertType]bool)
	for _, a := range open {
		types[a.AlertType] = true
		assert.Equal(t, "warning", a.Severity)
		assert.Equal(t, "BTC", a.Symbol)
	}
	assert.True(t, types[models.AlertHighError])
	assert.True(t, types[models.AlertHighRelativeError])
	assert.True(t, types[models.AlertHighBias])
	assert.Equal(t, 3, m.alertCount())
}

func TestLogPredictionMetricsCleanRun(t *testing.T) {
	store := newMemPerfStore()
	alerts := newMemAlerts()
	mon := newTestMonitor(t, store, alerts, &nopMetrics{})
	ctx := context.Background()

	preds := []float64{100, 101, 102}
	acts := []float64{100.5, 101.2, 101.8}
	ok, err := mon.LogPredictionMetrics(ctx, "BTC", models.KindStatistical, preds, acts, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	open, err := alerts.ListOpen(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestLogPredictionMetricsUnusablePairing(t *testing.T) {
	store := newMemPerfStore()
	mon := newTestMonitor(t, store, newMemAlerts(), &nopMetrics{})

	ok, err := mon.LogPredictionMetrics(context.Background(), "BTC", models.KindStatistical, []float64{1, 2}, []float64{1}, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, store.appends)
}

func TestResolveAlert(t *testing.T) {
	alerts := newMemAlerts()
	mon := newTestMonitor(t, newMemPerfStore(), alerts, &nopMetrics{})
	ctx := context.Background()

	a := &models.Alert{Symbol: "BTC", AlertType: models.AlertHighError, Severity: "warning"}
	require.NoError(t, alerts.Create(ctx, a))

	ok, err := mon.ResolveAlert(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mon.ResolveAlert(ctx, "no-such-alert")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPerformanceTrendLabels(t *testing.T) {
	asRecords := func(rmses ...float64) []*models.PerformanceRecord {
		return perfRecords("BTC", models.KindSequence, rmses...)
	}

	assert.Equal(t, TrendInsufficient, performanceTrend(asRecords(1, 2, 3)))
	assert.Equal(t, TrendDegrading, performanceTrend(asRecords(1, 1.5, 2, 2.5, 3, 3.5)))
	assert.Equal(t, TrendImproving, performanceTrend(asRecords(3.5, 3, 2.5, 2, 1.5, 1)))
	assert.Equal(t, TrendStable, performanceTrend(asRecords(2, 2.001, 2, 1.999, 2, 2)))
}

func TestGetPerformanceSummary(t *testing.T) {
	store := newMemPerfStore()
	ctx := context.Background()
	for _, r := range perfRecords("BTC", models.KindSequence, 1, 2, 3, 4, 5, 6) {
		require.NoError(t, store.Append(ctx, r))
	}
	for _, r := range perfRecords("BTC", models.KindStatistical, 2, 2) {
		require.NoError(t, store.Append(ctx, r))
	}

	mon := newTestMonitor(t, store, newMemAlerts(), &nopMetrics{})
	summary, err := mon.GetPerformanceSummary(ctx, "BTC", 7)
	require.NoError(t, err)
	require.Len(t, summary, 2)

	seq := summary[models.KindSequence]
	require.NotNil(t, seq)
	assert.Equal(t, 6, seq.TotalEvaluations)
	assert.Equal(t, TrendDegrading, seq.Trend)
	require.NotNil(t, seq.RecentMetrics)
	assert.Equal(t, 6.0, seq.RecentMetrics.RMSE)

	stat := summary[models.KindStatistical]
	require.NotNil(t, stat)
	assert.Equal(t, 2, stat.TotalEvaluations)
	assert.Equal(t, TrendInsufficient, stat.Trend)
}
