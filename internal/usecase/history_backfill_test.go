package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"FinCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedStore captures StoreBatch calls and serves a fixed existing series.
type seedStore struct {
	existing models.PriceSeries
	batches  [][]*models.PriceTick
}

func (s *seedStore) Init(ctx context.Context) error                       { return nil }
func (s *seedStore) Store(ctx context.Context, t *models.PriceTick) error { return nil }
func (s *seedStore) StoreBatch(ctx context.Context, ts []*models.PriceTick) error {
	s.batches = append(s.batches, ts)
	return nil
}
func (s *seedStore) Series(ctx context.Context, symbol string, from, to time.Time, limit int) (models.PriceSeries, error) {
	return s.existing, nil
}
func (s *seedStore) Health(ctx context.Context) error { return nil }
func (s *seedStore) Close() error                     { return nil }

type stubHistory struct {
	series models.PriceSeries
	err    error
	calls  int
}

func (f *stubHistory) Candles(ctx context.Context, symbol, resolution string, from, to time.Time) (models.PriceSeries, error) {
	f.calls++
	return f.series, f.err
}

func TestBackfillSeedsEmptySymbol(t *testing.T) {
	store := &seedStore{}
	fetcher := &stubHistory{series: makeSeries(5, func(i int) float64 { return 100 + float64(i) })}
	b := NewHistoryBackfill(fetcher, store, []string{"BTC"}, 24*time.Hour, testLogger(t))

	require.NoError(t, b.Run(context.Background()))
	require.Len(t, store.batches, 1)
	batch := store.batches[0]
	require.Len(t, batch, 5)
	assert.Equal(t, "BTC", batch[0].Symbol)
	assert.Equal(t, 100.0, batch[0].Price)
	assert.Equal(t, fetcher.series[0].Timestamp.Unix(), batch[0].Timestamp)
}

func TestBackfillSkipsSeededSymbol(t *testing.T) {
	store := &seedStore{existing: makeSeries(120, func(i int) float64 { return float64(i) })}
	fetcher := &stubHistory{series: makeSeries(5, func(i int) float64 { return float64(i) })}
	b := NewHistoryBackfill(fetcher, store, []string{"BTC"}, 24*time.Hour, testLogger(t))

	require.NoError(t, b.Run(context.Background()))
	assert.Zero(t, fetcher.calls)
	assert.Empty(t, store.batches)
}

func TestBackfillWithoutFetcherIsNoop(t *testing.T) {
	store := &seedStore{}
	b := NewHistoryBackfill(nil, store, []string{"BTC"}, 24*time.Hour, testLogger(t))
	require.NoError(t, b.Run(context.Background()))
	assert.Empty(t, store.batches)
}

func TestBackfillFetchFailureSkipsSymbol(t *testing.T) {
	store := &seedStore{}
	fetcher := &stubHistory{err: errors.New("provider down")}
	b := NewHistoryBackfill(fetcher, store, []string{"BTC", "ETH"}, 24*time.Hour, testLogger(t))

	require.NoError(t, b.Run(context.Background()))
	assert.Equal(t, 2, fetcher.calls)
	assert.Empty(t, store.batches)
}
