package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	applogger "FinCast/pkg/logger"
)

const versionIDTimeLayout = "20060102_150405"

// RedisVersionRegistry stores model versions as JSON documents in Redis.
//
// Keys:
//
//	fincast:version:{id}            full ModelVersion document
//	fincast:active:{symbol}:{kind}  id of the active version
//	fincast:versions:{symbol}       set of all ids for the symbol
type RedisVersionRegistry struct {
	client *redis.Client
	l      *applogger.Logger
}

func NewRedisVersionRegistry(client *redis.Client, l *applogger.Logger) *RedisVersionRegistry {
	return &RedisVersionRegistry{client: client, l: l}
}

// Register assigns v a version id, inserts it as active, and deactivates the
// prior active version for (symbol, kind) in one MULTI/EXEC transaction. An
// id collision (two registrations in the same second) is resolved by salting
// the id with a random fragment; the returned id is authoritative.
func (r *RedisVersionRegistry) Register(ctx context.Context, v *models.ModelVersion) (string, error) {
	if v.Symbol == "" || !models.IsValidModelKind(v.ModelKind) {
		return "", fmt.Errorf("register: invalid symbol %q or kind %q", v.Symbol, v.ModelKind)
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	v.IsActive = true

	id := fmt.Sprintf("%s_%s_%s", v.ModelKind, v.Symbol, v.CreatedAt.Format(versionIDTimeLayout))
	exists, err := r.client.Exists(ctx, versionKey(id)).Result()
	if err != nil {
		return "", fmt.Errorf("register: exists check: %w", err)
	}
	if exists > 0 {
		id = id + "_" + strings.Split(uuid.NewString(), "-")[0]
	}
	v.VersionID = id

	// Fetch the current active version so its document can be flipped
	// inactive inside the same transaction.
	var prior *models.ModelVersion
	priorID, err := r.client.Get(ctx, activeKey(v.Symbol, v.ModelKind)).Result()
	if err == nil && priorID != "" {
		prior, err = r.Get(ctx, priorID)
		if err != nil && !errors.Is(err, domrepo.ErrVersionNotFound) {
			return "", err
		}
	} else if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("register: read active pointer: %w", err)
	}

	doc, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("register: marshal version: %w", err)
	}

	pipe := r.client.TxPipeline()
	if prior != nil {
		prior.IsActive = false
		priorDoc, merr := json.Marshal(prior)
		if merr != nil {
			return "", fmt.Errorf("register: marshal prior version: %w", merr)
		}
		pipe.Set(ctx, versionKey(prior.VersionID), priorDoc, 0)
	}
	pipe.Set(ctx, versionKey(id), doc, 0)
	pipe.Set(ctx, activeKey(v.Symbol, v.ModelKind), id, 0)
	pipe.SAdd(ctx, symbolVersionsKey(v.Symbol), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("register: exec: %w", err)
	}

	r.l.Info("model version registered",
		applogger.String("version", id),
		applogger.String("symbol", v.Symbol),
		applogger.String("kind", string(v.ModelKind)))
	return id, nil
}

func (r *RedisVersionRegistry) GetActive(ctx context.Context, symbol string, kind models.ModelKind) (*models.ModelVersion, error) {
	id, err := r.client.Get(ctx, activeKey(symbol, kind)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("active %s/%s: %w", symbol, kind, domrepo.ErrNoActiveVersion)
	}
	if err != nil {
		return nil, fmt.Errorf("get active pointer: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *RedisVersionRegistry) Get(ctx context.Context, versionID string) (*models.ModelVersion, error) {
	doc, err := r.client.Get(ctx, versionKey(versionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("version %s: %w", versionID, domrepo.ErrVersionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get version %s: %w", versionID, err)
	}
	var v models.ModelVersion
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return nil, fmt.Errorf("decode version %s: %w", versionID, err)
	}
	return &v, nil
}

// ListVersions returns every version for the symbol, newest first.
func (r *RedisVersionRegistry) ListVersions(ctx context.Context, symbol string) ([]*models.ModelVersion, error) {
	ids, err := r.client.SMembers(ctx, symbolVersionsKey(symbol)).Result()
	if err != nil {
		return nil, fmt.Errorf("list versions %s: %w", symbol, err)
	}
	out := make([]*models.ModelVersion, 0, len(ids))
	for _, id := range ids {
		v, err := r.Get(ctx, id)
		if errors.Is(err, domrepo.ErrVersionNotFound) {
			continue // index entry outlived its document
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func versionKey(id string) string { return "fincast:version:" + id }

func activeKey(symbol string, kind models.ModelKind) string {
	return fmt.Sprintf("fincast:active:%s:%s", symbol, kind)
}

func symbolVersionsKey(symbol string) string { return "fincast:versions:" + symbol }

var _ domrepo.VersionRegistry = (*RedisVersionRegistry)(nil)
