package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	applogger "FinCast/pkg/logger"
)

// RedisAlertStore persists alerts as JSON documents.
//
// Keys:
//
//	fincast:alert:{id}   full Alert document
//	fincast:alerts:open  set of unresolved alert ids
type RedisAlertStore struct {
	client *redis.Client
	l      *applogger.Logger
}

func NewRedisAlertStore(client *redis.Client, l *applogger.Logger) *RedisAlertStore {
	return &RedisAlertStore{client: client, l: l}
}

func (s *RedisAlertStore) Create(ctx context.Context, a *models.Alert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, alertKey(a.ID), doc, 0)
	pipe.SAdd(ctx, openAlertsKey, a.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	s.l.Warn("alert raised",
		applogger.String("alert_id", a.ID),
		applogger.String("symbol", a.Symbol),
		applogger.String("type", string(a.AlertType)),
		applogger.String("severity", a.Severity),
		applogger.Any("value", a.ActualValue),
		applogger.Any("threshold", a.Threshold))
	return nil
}

// Resolve marks the alert resolved and drops it from the open set. A missing
// id returns (false, nil).
func (s *RedisAlertStore) Resolve(ctx context.Context, id string) (bool, error) {
	doc, err := s.client.Get(ctx, alertKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get alert %s: %w", id, err)
	}

	var a models.Alert
	if err := json.Unmarshal([]byte(doc), &a); err != nil {
		return false, fmt.Errorf("decode alert %s: %w", id, err)
	}
	if a.IsResolved {
		return true, nil
	}
	now := time.Now().UTC()
	a.IsResolved = true
	a.ResolvedAt = &now

	updated, err := json.Marshal(&a)
	if err != nil {
		return false, fmt.Errorf("marshal alert %s: %w", id, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, alertKey(id), updated, 0)
	pipe.SRem(ctx, openAlertsKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("resolve alert %s: %w", id, err)
	}
	return true, nil
}

// ListOpen returns unresolved alerts, newest first, optionally filtered by
// symbol and severity.
func (s *RedisAlertStore) ListOpen(ctx context.Context, symbol, severity string) ([]*models.Alert, error) {
	ids, err := s.client.SMembers(ctx, openAlertsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list open alerts: %w", err)
	}
	out := make([]*models.Alert, 0, len(ids))
	for _, id := range ids {
		doc, err := s.client.Get(ctx, alertKey(id)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get alert %s: %w", id, err)
		}
		var a models.Alert
		if err := json.Unmarshal([]byte(doc), &a); err != nil {
			return nil, fmt.Errorf("decode alert %s: %w", id, err)
		}
		if a.IsResolved {
			continue
		}
		if symbol != "" && a.Symbol != symbol {
			continue
		}
		if severity != "" && a.Severity != severity {
			continue
		}
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

const openAlertsKey = "fincast:alerts:open"

func alertKey(id string) string { return "fincast:alert:" + id }

var _ domrepo.AlertStore = (*RedisAlertStore)(nil)
