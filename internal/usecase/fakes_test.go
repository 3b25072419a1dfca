package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	applogger "FinCast/pkg/logger"

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

// perfRecords builds one record per RMSE value, timestamped now-ish so they
// fall inside any recent-window cutoff.
func perfRecords(symbol string, kind models.ModelKind, rmses ...float64) []*models.PerformanceRecord {
	out := make([]*models.PerformanceRecord, len(rmses))
	base := time.Now().Add(-time.Duration(len(rmses)) * time.Minute)
	for i, r := range rmses {
		out[i] = &models.PerformanceRecord{
			Symbol:    symbol,
			ModelKind: kind,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Metrics:   models.MetricSet{RMSE: r},
		}
	}
	return out
}

// memPerfStore is an in-memory PerformanceStore keyed by model kind.
type memPerfStore struct {
	mu      sync.Mutex
	byKind  map[models.ModelKind][]*models.PerformanceRecord
	appendErr  error
	appends int
}

func newMemPerfStore() *memPerfStore {
	return &memPerfStore{byKind: make(map[models.ModelKind][]*models.PerformanceRecord)}
}

func (s *memPerfStore) Init(ctx context.Context) error { return nil }

func (s *memPerfStore) Append(ctx context.Context, rec *models.PerformanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appends++
	s.byKind[rec.ModelKind] = append(s.byKind[rec.ModelKind], rec)
	return nil
}

func (s *memPerfStore) Query(ctx context.Context, symbol string, kind models.ModelKind, since time.Time) ([]*models.PerformanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.PerformanceRecord
	for k, list := range s.byKind {
		if kind != "" && k != kind {
			continue
		}
		for _, r := range list {
			if r.Timestamp.After(since) {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (s *memPerfStore) RecentN(ctx context.Context, symbol string, kind models.ModelKind, n int) ([]*models.PerformanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.byKind[kind]
	if len(list) > n {
		list = list[len(list)-n:]
	}
	return list, nil
}

func (s *memPerfStore) Close() error { return nil }

// memRegistry is an in-memory VersionRegistry.
type memRegistry struct {
	mu       sync.Mutex
	versions map[string]*models.ModelVersion
	active   map[string]*models.ModelVersion
	seq      int
}

func newMemRegistry() *memRegistry {
	return &memRegistry{
		versions: make(map[string]*models.ModelVersion),
		active:   make(map[string]*models.ModelVersion),
	}
}

func (r *memRegistry) Register(ctx context.Context, v *models.ModelVersion) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	id := fmt.Sprintf("%s_%s_%d", v.ModelKind, v.Symbol, r.seq)
	v.VersionID = id
	v.IsActive = true
	r.versions[id] = v
	r.active[v.Symbol+"/"+string(v.ModelKind)] = v
	return id, nil
}

func (r *memRegistry) GetActive(ctx context.Context, symbol string, kind models.ModelKind) (*models.ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.active[symbol+"/"+string(kind)]
	if !ok {
		return nil, domrepo.ErrNoActiveVersion
	}
	return v, nil
}

func (r *memRegistry) Get(ctx context.Context, versionID string) (*models.ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.versions[versionID]
	if !ok {
		return nil, domrepo.ErrVersionNotFound
	}
	return v, nil
}

func (r *memRegistry) ListVersions(ctx context.Context, symbol string) ([]*models.ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ModelVersion
	for _, v := range r.versions {
		if v.Symbol == symbol {
			out = append(out, v)
		}
	}
	return out, nil
}

// memAlerts is an in-memory AlertStore.
type memAlerts struct {
	mu     sync.Mutex
	alerts map[string]*models.Alert
	seq    int
}

func newMemAlerts() *memAlerts { return &memAlerts{alerts: make(map[string]*models.Alert)} }

func (a *memAlerts) Create(ctx context.Context, alert *models.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	alert.ID = fmt.Sprintf("alert-%d", a.seq)
	alert.Timestamp = time.Now().UTC()
	a.alerts[alert.ID] = alert
	return nil
}

func (a *memAlerts) Resolve(ctx context.Context, id string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	alert, ok := a.alerts[id]
	if !ok {
		return false, nil
	}
	now := time.Now().UTC()
	alert.IsResolved = true
	alert.ResolvedAt = &now
	return true, nil
}

func (a *memAlerts) ListOpen(ctx context.Context, symbol, severity string) ([]*models.Alert, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*models.Alert
	for _, alert := range a.alerts {
		if alert.IsResolved {
			continue
		}
		if symbol != "" && alert.Symbol != symbol {
			continue
		}
		if severity != "" && alert.Severity != severity {
			continue
		}
		out = append(out, alert)
	}
	return out, nil
}

// memLedger is an in-memory ForecastLedger.
type memLedger struct {
	mu      sync.Mutex
	pending map[string]*models.PendingForecast
	seq     int
}

func newMemLedger() *memLedger { return &memLedger{pending: make(map[string]*models.PendingForecast)} }

func (l *memLedger) Put(ctx context.Context, pf *models.PendingForecast) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	pf.ID = fmt.Sprintf("pf-%d", l.seq)
	l.pending[pf.ID] = pf
	return nil
}

func (l *memLedger) ListDue(ctx context.Context, before time.Time) ([]*models.PendingForecast, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.PendingForecast
	for _, pf := range l.pending {
		if len(pf.Timestamps) == 0 || !pf.Timestamps[len(pf.Timestamps)-1].After(before) {
			out = append(out, pf)
		}
	}
	return out, nil
}

func (l *memLedger) Remove(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.pending, id)
	return nil
}

// nopMetrics counts recorded events.
type nopMetrics struct {
	mu        sync.Mutex
	forecasts int
	retrains  int
	alerts    int
	errors    int
}

func (m *nopMetrics) RecordForecast(strategy, symbol string) {
	m.mu.Lock()
	m.forecasts++
	m.mu.Unlock()
}
func (m *nopMetrics) RecordRetrain(kind, trigger string) {
	m.mu.Lock()
	m.retrains++
	m.mu.Unlock()
}
func (m *nopMetrics) RecordAlert(alertType string) {
	m.mu.Lock()
	m.alerts++
	m.mu.Unlock()
}
func (m *nopMetrics) RecordModelRMSE(symbol, kind string, rmse float64) {}
func (m *nopMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}
func (m *nopMetrics) RecordLatency(op string, seconds float64) {}
func (m *nopMetrics) RecordTick(symbol string, price float64) {}

func (m *nopMetrics) alertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alerts
}

// stubForecaster returns a fixed output or error.
type stubForecaster struct {
	kind models.ModelKind
	out  []float64
	err  error
}

func (f *stubForecaster) Kind() models.ModelKind { return f.kind }

func (f *stubForecaster) Forecast(ctx context.Context, symbol string, series models.PriceSeries, horizon int) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.out) >= horizon {
		return f.out[:horizon], nil
	}
	return f.out, nil
}

// stubTrainable adds Retrain on top of stubForecaster.
type stubTrainable struct {
	stubForecaster
	mu        sync.Mutex
	retrains  int
	retrainID string
	failWith  error
}

func (f *stubTrainable) Retrain(ctx context.Context, symbol string, series models.PriceSeries) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return "", f.failWith
	}
	f.retrains++
	return f.retrainID, nil
}

func (f *stubTrainable) retrainCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retrains
}
