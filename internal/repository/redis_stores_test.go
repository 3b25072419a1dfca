package repository

import (
	"context"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	applogger "FinCast/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	return l
}

func TestRegistryRegisterAndGetActive(t *testing.T) {
	ctx := context.Background()
	r := NewRedisVersionRegistry(testRedis(t), testLogger(t))

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := r.Register(ctx, &models.ModelVersion{
		Symbol:    "BTCUSDT",
		ModelKind: models.KindSequence,
		CreatedAt: created,
	})
	require.NoError(t, err)
	assert.Equal(t, "sequence_BTCUSDT_20260301_120000", id)

	active, err := r.GetActive(ctx, "BTCUSDT", models.KindSequence)
	require.NoError(t, err)
	assert.Equal(t, id, active.VersionID)
	assert.True(t, active.IsActive)
}

func TestRegistryRolloverDeactivatesPrior(t *testing.T) {
	ctx := context.Background()
	r := NewRedisVersionRegistry(testRedis(t), testLogger(t))

	first, err := r.Register(ctx, &models.ModelVersion{
		Symbol:    "BTCUSDT",
		ModelKind: models.KindSequence,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	second, err := r.Register(ctx, &models.ModelVersion{
		Symbol:    "BTCUSDT",
		ModelKind: models.KindSequence,
		CreatedAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	active, err := r.GetActive(ctx, "BTCUSDT", models.KindSequence)
	require.NoError(t, err)
	assert.Equal(t, second, active.VersionID)

	prior, err := r.Get(ctx, first)
	require.NoError(t, err)
	assert.False(t, prior.IsActive, "rollover must deactivate the prior version")
}

func TestRegistryIDCollisionSalted(t *testing.T) {
	ctx := context.Background()
	r := NewRedisVersionRegistry(testRedis(t), testLogger(t))

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first, err := r.Register(ctx, &models.ModelVersion{
		Symbol: "BTCUSDT", ModelKind: models.KindSequence, CreatedAt: created,
	})
	require.NoError(t, err)

	// same second, same pair: second id must be salted, both retrievable
	second, err := r.Register(ctx, &models.ModelVersion{
		Symbol: "BTCUSDT", ModelKind: models.KindSequence, CreatedAt: created,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Contains(t, second, first+"_")

	_, err = r.Get(ctx, first)
	require.NoError(t, err)
	_, err = r.Get(ctx, second)
	require.NoError(t, err)
}

func TestRegistryMissLookups(t *testing.T) {
	ctx := context.Background()
	r := NewRedisVersionRegistry(testRedis(t), testLogger(t))

	_, err := r.GetActive(ctx, "BTCUSDT", models.KindSequence)
	assert.ErrorIs(t, err, domrepo.ErrNoActiveVersion)

	_, err = r.Get(ctx, "nope")
	assert.ErrorIs(t, err, domrepo.ErrVersionNotFound)

	_, err = r.Register(ctx, &models.ModelVersion{Symbol: "", ModelKind: models.KindSequence})
	assert.Error(t, err)
	_, err = r.Register(ctx, &models.ModelVersion{Symbol: "BTCUSDT", ModelKind: "mystery"})
	assert.Error(t, err)
}

func TestRegistryListVersionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	r := NewRedisVersionRegistry(testRedis(t), testLogger(t))

	for day := 1; day <= 3; day++ {
		_, err := r.Register(ctx, &models.ModelVersion{
			Symbol:    "BTCUSDT",
			ModelKind: models.KindSequence,
			CreatedAt: time.Date(2026, 3, day, 12, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}

	versions, err := r.ListVersions(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for i := 1; i < len(versions); i++ {
		assert.True(t, versions[i-1].CreatedAt.After(versions[i].CreatedAt))
	}
}

func TestAlertCreateResolveList(t *testing.T) {
	ctx := context.Background()
	s := NewRedisAlertStore(testRedis(t), testLogger(t))

	a := &models.Alert{
		Symbol:      "BTCUSDT",
		ModelKind:   models.KindSequence,
		AlertType:   models.AlertHighError,
		Message:     "High RMSE (12.00) detected for BTCUSDT",
		Severity:    "warning",
		Threshold:   10,
		ActualValue: 12,
	}
	require.NoError(t, s.Create(ctx, a))
	require.NotEmpty(t, a.ID)

	open, err := s.ListOpen(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, a.ID, open[0].ID)

	ok, err := s.Resolve(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// resolving twice still reports success
	ok, err = s.Resolve(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	open, err = s.ListOpen(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestAlertResolveMissing(t *testing.T) {
	s := NewRedisAlertStore(testRedis(t), testLogger(t))
	ok, err := s.Resolve(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAlertListFilters(t *testing.T) {
	ctx := context.Background()
	s := NewRedisAlertStore(testRedis(t), testLogger(t))

	require.NoError(t, s.Create(ctx, &models.Alert{Symbol: "BTCUSDT", AlertType: models.AlertHighError, Severity: "warning"}))
	require.NoError(t, s.Create(ctx, &models.Alert{Symbol: "ETHUSDT", AlertType: models.AlertHighBias, Severity: "critical"}))

	open, err := s.ListOpen(ctx, "BTCUSDT", "")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "BTCUSDT", open[0].Symbol)

	open, err = s.ListOpen(ctx, "", "critical")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "ETHUSDT", open[0].Symbol)
}

func TestLedgerPutListDueRemove(t *testing.T) {
	ctx := context.Background()
	l := NewRedisForecastLedger(testRedis(t))

	base := time.Now().Add(-time.Hour)
	pf := &models.PendingForecast{
		Symbol:      "BTCUSDT",
		ModelKind:   models.KindSequence,
		Values:      []float64{1, 2, 3},
		Timestamps:  []time.Time{base, base.Add(time.Minute), base.Add(2 * time.Minute)},
		GeneratedAt: base,
	}
	require.NoError(t, l.Put(ctx, pf))
	require.NotEmpty(t, pf.ID)

	due, err := l.ListDue(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, pf.ID, due[0].ID)
	assert.Equal(t, pf.Values, due[0].Values)

	require.NoError(t, l.Remove(ctx, pf.ID))
	due, err = l.ListDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestLedgerFutureForecastNotDue(t *testing.T) {
	ctx := context.Background()
	l := NewRedisForecastLedger(testRedis(t))

	future := time.Now().Add(time.Hour)
	require.NoError(t, l.Put(ctx, &models.PendingForecast{
		Symbol:     "BTCUSDT",
		ModelKind:  models.KindSequence,
		Values:     []float64{1},
		Timestamps: []time.Time{future},
	}))

	due, err := l.ListDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestLedgerPutRequiresTimestamps(t *testing.T) {
	l := NewRedisForecastLedger(testRedis(t))
	err := l.Put(context.Background(), &models.PendingForecast{Symbol: "BTCUSDT", Values: []float64{1}})
	assert.Error(t, err)
}
