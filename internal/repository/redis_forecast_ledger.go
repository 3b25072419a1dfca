package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
)

// RedisForecastLedger tracks forecasts awaiting ground truth. Entries live in
// a sorted set scored by the last predicted timestamp, so the evaluation
// sweep can pull everything whose horizon has fully elapsed with one range
// query.
//
// Keys:
//
//	fincast:ledger:{id}  PendingForecast document
//	fincast:ledger:due   zset of ids scored by horizon-end unix time
type RedisForecastLedger struct {
	client *redis.Client
}

func NewRedisForecastLedger(client *redis.Client) *RedisForecastLedger {
	return &RedisForecastLedger{client: client}
}

func (l *RedisForecastLedger) Put(ctx context.Context, pf *models.PendingForecast) error {
	if pf.ID == "" {
		pf.ID = uuid.NewString()
	}
	if len(pf.Timestamps) == 0 {
		return fmt.Errorf("pending forecast %s: no horizon timestamps", pf.ID)
	}
	doc, err := json.Marshal(pf)
	if err != nil {
		return fmt.Errorf("marshal pending forecast: %w", err)
	}
	due := pf.Timestamps[len(pf.Timestamps)-1].Unix()

	pipe := l.client.TxPipeline()
	pipe.Set(ctx, ledgerKey(pf.ID), doc, 0)
	pipe.ZAdd(ctx, ledgerDueKey, redis.Z{Score: float64(due), Member: pf.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put pending forecast: %w", err)
	}
	return nil
}

func (l *RedisForecastLedger) ListDue(ctx context.Context, before time.Time) ([]*models.PendingForecast, error) {
	ids, err := l.client.ZRangeByScore(ctx, ledgerDueKey, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(before.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list due forecasts: %w", err)
	}
	out := make([]*models.PendingForecast, 0, len(ids))
	for _, id := range ids {
		doc, err := l.client.Get(ctx, ledgerKey(id)).Result()
		if errors.Is(err, redis.Nil) {
			// orphaned index entry
			l.client.ZRem(ctx, ledgerDueKey, id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get pending forecast %s: %w", id, err)
		}
		var pf models.PendingForecast
		if err := json.Unmarshal([]byte(doc), &pf); err != nil {
			return nil, fmt.Errorf("decode pending forecast %s: %w", id, err)
		}
		out = append(out, &pf)
	}
	return out, nil
}

func (l *RedisForecastLedger) Remove(ctx context.Context, id string) error {
	pipe := l.client.TxPipeline()
	pipe.Del(ctx, ledgerKey(id))
	pipe.ZRem(ctx, ledgerDueKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove pending forecast %s: %w", id, err)
	}
	return nil
}

const ledgerDueKey = "fincast:ledger:due"

func ledgerKey(id string) string { return "fincast:ledger:" + id }

var _ domrepo.ForecastLedger = (*RedisForecastLedger)(nil)
