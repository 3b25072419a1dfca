package repository

import (
	"context"
	"time"

	"FinCast/internal/domain/models"
)

// VersionRegistry tracks versioned model artifacts per (symbol, model kind).
// At most one version per pair is active at any time; Register enforces the
// rollover transactionally.
type VersionRegistry interface {
	// Register inserts a new active version and deactivates all prior
	// versions for (v.Symbol, v.ModelKind) as one logical transaction.
	// Returns the (possibly collision-salted) version id.
	Register(ctx context.Context, v *models.ModelVersion) (string, error)
	GetActive(ctx context.Context, symbol string, kind models.ModelKind) (*models.ModelVersion, error)
	Get(ctx context.Context, versionID string) (*models.ModelVersion, error)
	ListVersions(ctx context.Context, symbol string) ([]*models.ModelVersion, error)
}

// PerformanceStore is the append-only log of evaluation records.
type PerformanceStore interface {
	Init(ctx context.Context) error
	Append(ctx context.Context, rec *models.PerformanceRecord) error
	// Query returns records for symbol (optionally filtered by kind; empty
	// kind means all) newer than since, ordered by time ascending.
	Query(ctx context.Context, symbol string, kind models.ModelKind, since time.Time) ([]*models.PerformanceRecord, error)
	// RecentN returns the most recent n records, ordered by time ascending.
	RecentN(ctx context.Context, symbol string, kind models.ModelKind, n int) ([]*models.PerformanceRecord, error)
	Close() error
}

// AlertStore persists alerts; the only mutable entity in the core.
type AlertStore interface {
	Create(ctx context.Context, a *models.Alert) error
	// Resolve marks the alert resolved. Returns false (no error) when the id
	// does not exist.
	Resolve(ctx context.Context, id string) (bool, error)
	ListOpen(ctx context.Context, symbol, severity string) ([]*models.Alert, error)
}

// ArtifactStore holds serialized model weights and scalers addressed by
// version id on durable storage.
type ArtifactStore interface {
	Save(ctx context.Context, versionID string, artifact []byte) error
	Load(ctx context.Context, versionID string) ([]byte, error)
	Exists(versionID string) bool
}

// ForecastLedger keeps forecasts awaiting ground truth for the evaluation
// sweep.
type ForecastLedger interface {
	Put(ctx context.Context, pf *models.PendingForecast) error
	ListDue(ctx context.Context, before time.Time) ([]*models.PendingForecast, error)
	Remove(ctx context.Context, id string) error
}

// TickStream is the live market-data feed (external collaborator).
type TickStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.PriceTick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// HistoryFetcher retrieves historical candles from the market-data provider
// REST API, used to seed tick storage before live ticks accumulate.
type HistoryFetcher interface {
	Candles(ctx context.Context, symbol, resolution string, from, to time.Time) (models.PriceSeries, error)
}

// TickPublisher forwards ticks to the message bus.
type TickPublisher interface {
	Publish(ctx context.Context, t *models.PriceTick) error
	PublishBatch(ctx context.Context, ticks []*models.PriceTick) error
	Close() error
}

// TickStorage persists ticks and serves price series for evaluation.
type TickStorage interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, t *models.PriceTick) error
	StoreBatch(ctx context.Context, ticks []*models.PriceTick) error
	Series(ctx context.Context, symbol string, from, to time.Time, limit int) (models.PriceSeries, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics records operational telemetry.
type Metrics interface {
	RecordForecast(strategy, symbol string)
	RecordRetrain(kind, trigger string)
	RecordAlert(alertType string)
	RecordModelRMSE(symbol, kind string, rmse float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordTick(symbol string, price float64)
}
