package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	pkgch "FinCast/pkg/clickhouse"
	applogger "FinCast/pkg/logger"
)

// CHPerformanceStore implements the append-only PerformanceStore backed by
// ClickHouse. Records are never updated or deleted.
type CHPerformanceStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHPerformanceStore(ch *pkgch.Client) *CHPerformanceStore {
	return &CHPerformanceStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHPerformanceStore) SetLogger(l *applogger.Logger) { s.l = l }

// PerformanceSchema is the idempotent DDL set for the performance log.
var PerformanceSchema = []string{
	`CREATE DATABASE IF NOT EXISTS fincast`,
	`CREATE TABLE IF NOT EXISTS fincast.model_performance (
        ts DateTime,
        forecast_ts DateTime,
        symbol LowCardinality(String),
        model_kind LowCardinality(String),
        mae Float64,
        rmse Float64,
        mape Nullable(Float64),
        bias Float64,
        std_error Float64,
        max_error Float64,
        min_error Float64,
        median_abs_error Float64,
        r_squared Float64,
        direction_accuracy Float64,
        theils_u Float64,
        error_trend Float64,
        predictions Array(Float64),
        actuals Array(Float64)
    ) ENGINE = MergeTree
    PARTITION BY toYYYYMM(ts)
    ORDER BY (symbol, model_kind, ts)`,
}

func (s *CHPerformanceStore) Init(ctx context.Context) error {
	for _, stmt := range PerformanceSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("performance schema: %w", err)
		}
	}
	return nil
}

func (s *CHPerformanceStore) Append(ctx context.Context, rec *models.PerformanceRecord) error {
	const q = `
        INSERT INTO fincast.model_performance
        (ts, forecast_ts, symbol, model_kind, mae, rmse, mape, bias, std_error,
         max_error, min_error, median_abs_error, r_squared, direction_accuracy,
         theils_u, error_trend, predictions, actuals)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	m := rec.Metrics
	_, err := s.db.ExecContext(ctx, q,
		rec.Timestamp,
		rec.ForecastTimestamp,
		rec.Symbol,
		string(rec.ModelKind),
		m.MAE,
		m.RMSE,
		m.MAPE,
		m.Bias,
		m.StdError,
		m.MaxError,
		m.MinError,
		m.MedianAbsError,
		m.RSquared,
		m.DirectionAccuracy,
		m.TheilsU,
		m.ErrorTrend,
		rec.Predictions,
		rec.Actuals,
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse performance append error",
				applogger.String("symbol", rec.Symbol),
				applogger.String("kind", string(rec.ModelKind)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("append performance record: %w", err)
	}
	return nil
}

const performanceColumns = `ts, forecast_ts, symbol, model_kind, mae, rmse, mape, bias,
        std_error, max_error, min_error, median_abs_error, r_squared,
        direction_accuracy, theils_u, error_trend, predictions, actuals`

func (s *CHPerformanceStore) Query(ctx context.Context, symbol string, kind models.ModelKind, since time.Time) ([]*models.PerformanceRecord, error) {
	start := time.Now()
	q := `SELECT ` + performanceColumns + `
        FROM fincast.model_performance
        WHERE symbol = ? AND ts >= ?`
	args := []interface{}{symbol, since}
	if kind != "" {
		q += ` AND model_kind = ?`
		args = append(args, string(kind))
	}
	q += ` ORDER BY ts ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse performance query error",
				applogger.String("symbol", symbol),
				applogger.String("kind", string(kind)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("query performance: %w", err)
	}
	defer rows.Close()

	out, err := scanPerformanceRows(rows)
	if err != nil {
		return nil, err
	}
	if s.l != nil {
		s.l.Debug("clickhouse performance query ok",
			applogger.String("symbol", symbol),
			applogger.String("kind", string(kind)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHPerformanceStore) RecentN(ctx context.Context, symbol string, kind models.ModelKind, n int) ([]*models.PerformanceRecord, error) {
	q := `SELECT ` + performanceColumns + `
        FROM fincast.model_performance
        WHERE symbol = ?`
	args := []interface{}{symbol}
	if kind != "" {
		q += ` AND model_kind = ?`
		args = append(args, string(kind))
	}
	q += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, n)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse performance recent_n error",
				applogger.String("symbol", symbol),
				applogger.String("kind", string(kind)),
				applogger.Int("limit", n),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("recent performance: %w", err)
	}
	defer rows.Close()

	tmp, err := scanPerformanceRows(rows)
	if err != nil {
		return nil, err
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	return tmp, nil
}

func scanPerformanceRows(rows *sql.Rows) ([]*models.PerformanceRecord, error) {
	out := make([]*models.PerformanceRecord, 0, 64)
	for rows.Next() {
		var (
			rec  models.PerformanceRecord
			kind string
		)
		m := &rec.Metrics
		if err := rows.Scan(
			&rec.Timestamp, &rec.ForecastTimestamp, &rec.Symbol, &kind,
			&m.MAE, &m.RMSE, &m.MAPE, &m.Bias, &m.StdError,
			&m.MaxError, &m.MinError, &m.MedianAbsError, &m.RSquared,
			&m.DirectionAccuracy, &m.TheilsU, &m.ErrorTrend,
			&rec.Predictions, &rec.Actuals,
		); err != nil {
			return nil, fmt.Errorf("scan performance record: %w", err)
		}
		rec.ModelKind = models.ModelKind(kind)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHPerformanceStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHPerformanceStore) Close() error {
	return nil // pool owned by pkg client
}

var _ domrepo.PerformanceStore = (*CHPerformanceStore)(nil)
