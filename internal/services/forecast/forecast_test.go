package forecast

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	applogger "FinCast/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	return l
}

func makeSeries(n int, f func(i int) float64) models.PriceSeries {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(models.PriceSeries, n)
	for i := range s {
		s[i] = models.SeriesPoint{Timestamp: base.Add(time.Duration(i) * time.Hour), Price: f(i)}
	}
	return s
}

// fakePerfStore captures appended records in memory.
type fakePerfStore struct {
	records []*models.PerformanceRecord
}

func (s *fakePerfStore) Init(ctx context.Context) error { return nil }
func (s *fakePerfStore) Append(ctx context.Context, rec *models.PerformanceRecord) error {
	s.records = append(s.records, rec)
	return nil
}
func (s *fakePerfStore) Query(ctx context.Context, symbol string, kind models.ModelKind, since time.Time) ([]*models.PerformanceRecord, error) {
	return s.records, nil
}
func (s *fakePerfStore) RecentN(ctx context.Context, symbol string, kind models.ModelKind, n int) ([]*models.PerformanceRecord, error) {
	if len(s.records) > n {
		return s.records[len(s.records)-n:], nil
	}
	return s.records, nil
}
func (s *fakePerfStore) Close() error { return nil }

// fakeRegistry is an in-memory VersionRegistry.
type fakeRegistry struct {
	versions map[string]*models.ModelVersion
	active   map[string]string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		versions: make(map[string]*models.ModelVersion),
		active:   make(map[string]string),
	}
}

func (r *fakeRegistry) Register(ctx context.Context, v *models.ModelVersion) (string, error) {
	id := fmt.Sprintf("%s_%s_%d", v.ModelKind, v.Symbol, len(r.versions)+1)
	v.VersionID = id
	v.IsActive = true
	r.versions[id] = v
	r.active[v.Symbol+"/"+string(v.ModelKind)] = id
	return id, nil
}

func (r *fakeRegistry) GetActive(ctx context.Context, symbol string, kind models.ModelKind) (*models.ModelVersion, error) {
	id, ok := r.active[symbol+"/"+string(kind)]
	if !ok {
		return nil, domrepo.ErrNoActiveVersion
	}
	return r.versions[id], nil
}

func (r *fakeRegistry) Get(ctx context.Context, versionID string) (*models.ModelVersion, error) {
	v, ok := r.versions[versionID]
	if !ok {
		return nil, domrepo.ErrVersionNotFound
	}
	return v, nil
}

func (r *fakeRegistry) ListVersions(ctx context.Context, symbol string) ([]*models.ModelVersion, error) {
	var out []*models.ModelVersion
	for _, v := range r.versions {
		if v.Symbol == symbol {
			out = append(out, v)
		}
	}
	return out, nil
}

// fakeArtifacts is an in-memory ArtifactStore.
type fakeArtifacts struct {
	blobs map[string][]byte
}

func newFakeArtifacts() *fakeArtifacts { return &fakeArtifacts{blobs: make(map[string][]byte)} }

func (a *fakeArtifacts) Save(ctx context.Context, versionID string, artifact []byte) error {
	a.blobs[versionID] = artifact
	return nil
}

func (a *fakeArtifacts) Load(ctx context.Context, versionID string) ([]byte, error) {
	b, ok := a.blobs[versionID]
	if !ok {
		return nil, domrepo.ErrArtifactMissing
	}
	return b, nil
}

func (a *fakeArtifacts) Exists(versionID string) bool {
	_, ok := a.blobs[versionID]
	return ok
}

func assertFinite(t *testing.T, values []float64) {
	t.Helper()
	for i, v := range values {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "value %d not finite: %v", i, v)
	}
}

func TestMinMaxScalerRoundTrip(t *testing.T) {
	var s MinMaxScaler
	values := []float64{10, 20, 15, 30, 25}
	s.Fit(values)

	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 30.0, s.Max)
	assert.Zero(t, s.Transform(10))
	assert.Equal(t, 1.0, s.Transform(30))
	for _, v := range values {
		assert.InDelta(t, v, s.Inverse(s.Transform(v)), 1e-9)
	}
}

func TestStandardScalerRoundTrip(t *testing.T) {
	var s standardScaler
	values := []float64{1, 2, 3, 4, 5}
	s.Fit(values)
	for _, v := range values {
		assert.InDelta(t, v, s.Inverse(s.Transform(v)), 1e-9)
	}
	// mean maps to zero
	assert.InDelta(t, 0, s.Transform(3), 1e-9)
}

func TestRepeatLast(t *testing.T) {
	out := RepeatLast(42.5, 3)
	assert.Equal(t, []float64{42.5, 42.5, 42.5}, out)
}

func TestStatisticalShortSeriesRepeatsLast(t *testing.T) {
	f := NewStatisticalForecaster(testLogger(t))
	out, err := f.Forecast(context.Background(), "BTC", makeSeries(5, func(i int) float64 { return 10 + float64(i) }), 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{14, 14, 14}, out)
}

func TestStatisticalDegenerateSeriesRepeatsLast(t *testing.T) {
	f := NewStatisticalForecaster(testLogger(t))
	// constant differences carry zero variance
	out, err := f.Forecast(context.Background(), "BTC", makeSeries(20, func(i int) float64 { return float64(i) * 2 }), 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{38, 38, 38}, out)
}

func TestStatisticalEmptySeries(t *testing.T) {
	f := NewStatisticalForecaster(testLogger(t))
	_, err := f.Forecast(context.Background(), "BTC", nil, 3)
	require.Error(t, err)
}

func TestStatisticalForecastLength(t *testing.T) {
	f := NewStatisticalForecaster(testLogger(t))
	series := makeSeries(60, func(i int) float64 {
		return 100 + float64(i)*0.5 + 3*math.Sin(float64(i)/4)
	})
	out, err := f.Forecast(context.Background(), "BTC", series, 10)
	require.NoError(t, err)
	require.Len(t, out, 10)
	assertFinite(t, out)
}

func TestRollingShortSeries(t *testing.T) {
	f := NewRollingForecaster(&fakePerfStore{}, testLogger(t))
	_, err := f.Forecast(context.Background(), "BTC", makeSeries(50, func(i int) float64 { return float64(i) }), 5)
	require.ErrorIs(t, err, domrepo.ErrNotAvailable)
}

func TestRollingForecastRecordsPerformance(t *testing.T) {
	store := &fakePerfStore{}
	f := NewRollingForecaster(store, testLogger(t))
	series := makeSeries(160, func(i int) float64 {
		return 50 + float64(i)*0.3 + 2*math.Sin(float64(i)/7)
	})

	out, err := f.Forecast(context.Background(), "BTC", series, 5)
	require.NoError(t, err)
	require.Len(t, out, 5)
	assertFinite(t, out)

	// each call batches its per-window feedback into one record
	require.Len(t, store.records, 1)
	rec := store.records[0]
	assert.Equal(t, models.KindRollingRegress, rec.ModelKind)
	assert.Equal(t, "BTC", rec.Symbol)
	assert.Equal(t, len(rec.Predictions), len(rec.Actuals))
	assert.NotEmpty(t, rec.Predictions)
}

func TestContextShortSeries(t *testing.T) {
	f := NewContextForecaster(&fakePerfStore{}, testLogger(t))
	_, err := f.Forecast(context.Background(), "BTC", makeSeries(30, func(i int) float64 { return float64(i) }), 5)
	require.ErrorIs(t, err, domrepo.ErrNotAvailable)
}

func TestContextForecastLength(t *testing.T) {
	store := &fakePerfStore{}
	f := NewContextForecaster(store, testLogger(t))
	series := makeSeries(120, func(i int) float64 {
		return 200 + float64(i)*0.2 + math.Sin(float64(i)/5)
	})

	out, err := f.Forecast(context.Background(), "BTC", series, 7)
	require.NoError(t, err)
	require.Len(t, out, 7)
	assertFinite(t, out)
	require.Len(t, store.records, 1)
	assert.Equal(t, models.KindContextWeighted, store.records[0].ModelKind)
}

func TestRecencyWeightsNormalized(t *testing.T) {
	w := recencyWeights(50)
	require.Len(t, w, 50)
	var sum float64
	for i, v := range w {
		sum += v
		if i > 0 {
			assert.Greater(t, v, w[i-1], "weights must grow toward the present")
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestCapTail(t *testing.T) {
	// more predictions than the horizon needs: keep the tail
	assert.Equal(t, []float64{3, 4}, capTail([]float64{1, 2, 3, 4}, 10, 2))
	// fewer: return them as-is, never pad
	assert.Equal(t, []float64{1, 2}, capTail([]float64{1, 2}, 10, 4))
	// keep bounds the output even for a large horizon
	assert.Equal(t, []float64{2, 3, 4}, capTail([]float64{1, 2, 3, 4}, 3, 8))
}

func TestRollingLongHorizonOutputStaysShort(t *testing.T) {
	store := &fakePerfStore{}
	f := NewRollingForecaster(store, testLogger(t))
	series := makeSeries(150, func(i int) float64 {
		return 50 + float64(i)*0.3 + 2*math.Sin(float64(i)/7)
	})

	out, err := f.Forecast(context.Background(), "BTC", series, 15)
	require.NoError(t, err)
	// five full windows fit the series; the output stops there
	require.Len(t, out, 5)
	last := series.Last()
	for i, v := range out {
		assert.NotEqual(t, last, v, "step %d must come from the regression, not the last observation", i)
	}
}

func TestContextLongHorizonOutputStaysShort(t *testing.T) {
	f := NewContextForecaster(&fakePerfStore{}, testLogger(t))
	series := makeSeries(120, func(i int) float64 {
		return 200 + float64(i)*0.2 + math.Sin(float64(i)/5)
	})

	out, err := f.Forecast(context.Background(), "BTC", series, 15)
	require.NoError(t, err)
	require.Len(t, out, 10)
	assertFinite(t, out)
}

func TestBuildPairs(t *testing.T) {
	scaled := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
	windows, targets := buildPairs(scaled, 3)
	require.Len(t, windows, 2)
	require.Len(t, targets, 2)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, windows[0])
	assert.Equal(t, 0.4, targets[0])
	assert.Equal(t, []float64{0.2, 0.3, 0.4}, windows[1])
	assert.Equal(t, 0.5, targets[1])

	windows, targets = buildPairs([]float64{0.1, 0.2}, 3)
	assert.Empty(t, windows)
	assert.Empty(t, targets)
}

func TestSequenceShortSeriesRepeatsLast(t *testing.T) {
	f := NewSequenceForecaster(newFakeRegistry(), newFakeArtifacts(), DefaultSequenceConfig(), testLogger(t))
	series := makeSeries(10, func(i int) float64 { return 100 + float64(i) })

	out, err := f.Forecast(context.Background(), "BTC", series, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{109, 109, 109, 109}, out)
}

func TestSequenceForecastTrainsAndRegisters(t *testing.T) {
	registry := newFakeRegistry()
	artifacts := newFakeArtifacts()
	cfg := DefaultSequenceConfig()
	cfg.TrainEpochs = 2 // keep the test fast
	f := NewSequenceForecaster(registry, artifacts, cfg, testLogger(t))

	series := makeSeries(80, func(i int) float64 {
		return 100 + 10*math.Sin(float64(i)/6)
	})
	out, err := f.Forecast(context.Background(), "BTC", series, 5)
	require.NoError(t, err)
	require.Len(t, out, 5)
	assertFinite(t, out)

	active, err := registry.GetActive(context.Background(), "BTC", models.KindSequence)
	require.NoError(t, err)
	assert.True(t, artifacts.Exists(active.VersionID))
	assert.Equal(t, len(series), active.Provenance.DataPoints)
}

func TestSequenceRetrainInsufficientData(t *testing.T) {
	f := NewSequenceForecaster(newFakeRegistry(), newFakeArtifacts(), DefaultSequenceConfig(), testLogger(t))
	_, err := f.Retrain(context.Background(), "BTC", makeSeries(5, func(i int) float64 { return float64(i) }))
	require.ErrorIs(t, err, domrepo.ErrInsufficientData)
}

func TestSequenceIncrementalUpdateProducesNewVersion(t *testing.T) {
	registry := newFakeRegistry()
	artifacts := newFakeArtifacts()
	cfg := DefaultSequenceConfig()
	cfg.TrainEpochs = 2
	cfg.RetrainEpochs = 2
	cfg.FineTuneEpochs = 1
	f := NewSequenceForecaster(registry, artifacts, cfg, testLogger(t))

	series := makeSeries(80, func(i int) float64 {
		return 100 + 10*math.Sin(float64(i)/6)
	})
	baseID, err := f.Retrain(context.Background(), "BTC", series)
	require.NoError(t, err)

	batch := makeSeries(40, func(i int) float64 {
		return 100 + 10*math.Sin(float64(80+i)/6)
	})
	newID, err := f.IncrementalUpdate(context.Background(), "BTC", batch, baseID)
	require.NoError(t, err)
	assert.NotEqual(t, baseID, newID)

	v, err := registry.Get(context.Background(), newID)
	require.NoError(t, err)
	assert.Equal(t, baseID, v.Hyperparams["fine_tuned_from"])
}
