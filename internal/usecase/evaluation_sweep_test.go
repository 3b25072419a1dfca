package usecase

import (
	"context"
	"testing"
	"time"

	"FinCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTicks serves a fixed series regardless of range.
type memTicks struct {
	series models.PriceSeries
}

func (s *memTicks) Init(ctx context.Context) error                        { return nil }
func (s *memTicks) Store(ctx context.Context, t *models.PriceTick) error  { return nil }
func (s *memTicks) StoreBatch(ctx context.Context, ts []*models.PriceTick) error { return nil }
func (s *memTicks) Series(ctx context.Context, symbol string, from, to time.Time, limit int) (models.PriceSeries, error) {
	return s.series, nil
}
func (s *memTicks) Health(ctx context.Context) error { return nil }
func (s *memTicks) Close() error                     { return nil }

func duePending(symbol string, values []float64) *models.PendingForecast {
	past := time.Now().Add(-2 * time.Hour)
	stamps := make([]time.Time, len(values))
	for i := range stamps {
		stamps[i] = past.Add(time.Duration(i) * time.Minute)
	}
	return &models.PendingForecast{
		Symbol:      symbol,
		ModelKind:   models.KindSequence,
		Values:      values,
		Timestamps:  stamps,
		GeneratedAt: past,
	}
}

func TestSweepScoresDueForecast(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	store := newMemPerfStore()
	mon := newTestMonitor(t, store, newMemAlerts(), &nopMetrics{})

	require.NoError(t, ledger.Put(ctx, duePending("BTC", []float64{100, 101, 102})))
	ticks := &memTicks{series: makeSeries(3, func(i int) float64 { return 100.5 + float64(i) })}

	sweep := NewEvaluationSweep(ledger, ticks, mon, time.Hour, testLogger(t))
	sweep.RunOnce(ctx)

	assert.Equal(t, 1, store.appends)
	assert.Empty(t, ledger.pending, "scored forecast leaves the ledger")
}

func TestSweepLeavesForecastWithoutGroundTruth(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	store := newMemPerfStore()
	mon := newTestMonitor(t, store, newMemAlerts(), &nopMetrics{})

	require.NoError(t, ledger.Put(ctx, duePending("BTC", []float64{100, 101})))
	sweep := NewEvaluationSweep(ledger, &memTicks{}, mon, time.Hour, testLogger(t))
	sweep.RunOnce(ctx)

	assert.Zero(t, store.appends)
	assert.Len(t, ledger.pending, 1, "unscored forecast stays for the next pass")
}

func TestSweepDropsEmptyPending(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	mon := newTestMonitor(t, newMemPerfStore(), newMemAlerts(), &nopMetrics{})

	require.NoError(t, ledger.Put(ctx, &models.PendingForecast{Symbol: "BTC", ModelKind: models.KindSequence}))
	sweep := NewEvaluationSweep(ledger, &memTicks{}, mon, time.Hour, testLogger(t))
	sweep.RunOnce(ctx)

	assert.Empty(t, ledger.pending)
}
