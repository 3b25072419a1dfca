package usecase

import (
	"context"
	"time"

	"FinCast/internal/domain/models"
	drepo "FinCast/internal/domain/repository"
	applogger "FinCast/pkg/logger"
)

const backfillMinStored = 100

// HistoryBackfill seeds tick storage from the provider's candle history so
// forecasts have a usable series before live ticks accumulate. Symbols that
// already hold enough stored points are skipped.
type HistoryBackfill struct {
	fetcher    drepo.HistoryFetcher
	store      drepo.TickStorage
	symbols    []string
	lookback   time.Duration
	resolution string
	l          *applogger.Logger
}

func NewHistoryBackfill(
	fetcher drepo.HistoryFetcher,
	store drepo.TickStorage,
	symbols []string,
	lookback time.Duration,
	l *applogger.Logger,
) *HistoryBackfill {
	return &HistoryBackfill{
		fetcher:    fetcher,
		store:      store,
		symbols:    symbols,
		lookback:   lookback,
		resolution: "60",
		l:          l,
	}
}

// Run backfills every configured symbol. A nil fetcher (no REST endpoint
// configured) makes it a no-op; per-symbol failures are logged and skipped.
func (b *HistoryBackfill) Run(ctx context.Context) error {
	if b.fetcher == nil {
		b.l.Debug("backfill: no history endpoint configured, skipping")
		return nil
	}
	now := time.Now().UTC()
	from := now.Add(-b.lookback)

	for _, symbol := range b.symbols {
		stored, err := b.store.Series(ctx, symbol, from, now, backfillMinStored)
		if err == nil && len(stored) >= backfillMinStored {
			b.l.Debug("backfill: symbol already seeded",
				applogger.String("symbol", symbol),
				applogger.Int("points", len(stored)))
			continue
		}

		series, err := b.fetcher.Candles(ctx, symbol, b.resolution, from, now)
		if err != nil {
			b.l.Warn("backfill: candle fetch failed",
				applogger.String("symbol", symbol),
				applogger.Error(err))
			continue
		}
		if len(series) == 0 {
			continue
		}

		ticks := make([]*models.PriceTick, len(series))
		for i, p := range series {
			ticks[i] = &models.PriceTick{
				Symbol:    symbol,
				Timestamp: p.Timestamp.Unix(),
				Price:     p.Price,
			}
		}
		if err := b.store.StoreBatch(ctx, ticks); err != nil {
			b.l.Warn("backfill: store failed",
				applogger.String("symbol", symbol),
				applogger.Error(err))
			continue
		}
		b.l.Info("backfill: symbol seeded",
			applogger.String("symbol", symbol),
			applogger.Int("points", len(ticks)))
	}
	return nil
}
