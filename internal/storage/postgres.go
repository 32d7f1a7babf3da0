package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mure-ai/mure/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS strategy_performance (
    composite_key TEXT PRIMARY KEY,
    strategy_id   TEXT NOT NULL,
    strategy_type TEXT NOT NULL,
    symbol        TEXT NOT NULL,
    regime_type   TEXT NOT NULL DEFAULT '',
    parameters    JSONB NOT NULL DEFAULT '{}',
    metrics       JSONB NOT NULL DEFAULT '{}',
    overall_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    stability     DOUBLE PRECISION NOT NULL DEFAULT 0,
    ts            TIMESTAMPTZ NOT NULL,
    node_id       TEXT NOT NULL DEFAULT '',
    region        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_perf_symbol ON strategy_performance(symbol);
CREATE INDEX IF NOT EXISTS idx_perf_score  ON strategy_performance(overall_score DESC);
`

// PostgresStore is a Postgres-backed local memory for nodes that share a
// database with other infrastructure.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects a pool to dsn and applies the schema.
func NewPostgresStore(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping pool: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: migrate postgres: %w", err)
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// RecordStrategyPerformance upserts the record, keeping the existing row
// when it supersedes the new one.
func (s *PostgresStore) RecordStrategyPerformance(ctx context.Context, rec model.StrategyPerformanceRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	params, err := json.Marshal(rec.Parameters)
	if err != nil {
		return fmt.Errorf("storage: encode parameters: %w", err)
	}
	metrics, err := json.Marshal(rec.Metrics)
	if err != nil {
		return fmt.Errorf("storage: encode metrics: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
INSERT INTO strategy_performance
    (composite_key, strategy_id, strategy_type, symbol, regime_type,
     parameters, metrics, overall_score, stability, ts, node_id, region)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (composite_key) DO UPDATE SET
    strategy_id   = EXCLUDED.strategy_id,
    regime_type   = EXCLUDED.regime_type,
    parameters    = EXCLUDED.parameters,
    metrics       = EXCLUDED.metrics,
    overall_score = EXCLUDED.overall_score,
    stability     = EXCLUDED.stability,
    ts            = EXCLUDED.ts,
    node_id       = EXCLUDED.node_id,
    region        = EXCLUDED.region
WHERE EXCLUDED.overall_score > strategy_performance.overall_score
   OR (EXCLUDED.overall_score = strategy_performance.overall_score
       AND EXCLUDED.ts > strategy_performance.ts)`,
		rec.CompositeKey(), rec.StrategyID, rec.StrategyType, rec.Symbol, rec.RegimeType,
		params, metrics, rec.Metrics.OverallScore, rec.Metrics.Stability(),
		rec.Timestamp.UTC(), rec.NodeID, rec.Region)
	if err != nil {
		return fmt.Errorf("storage: upsert record: %w", err)
	}
	return nil
}

// QueryTopPerformingStrategies returns records matching the query filters.
func (s *PostgresStore) QueryTopPerformingStrategies(ctx context.Context, q model.MemoryQuery) ([]model.StrategyPerformanceRecord, error) {
	sqlQuery := `
SELECT strategy_id, strategy_type, symbol, regime_type, parameters, metrics,
       ts, node_id, region
FROM strategy_performance WHERE TRUE`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q.Symbol != "" {
		sqlQuery += " AND symbol = " + arg(q.Symbol)
	}
	if q.RegimeType != "" {
		sqlQuery += " AND regime_type = " + arg(q.RegimeType)
	}
	if q.StrategyType != "" {
		sqlQuery += " AND strategy_type = " + arg(q.StrategyType)
	}
	if q.MinPerformanceScore > 0 {
		sqlQuery += " AND overall_score >= " + arg(q.MinPerformanceScore)
	}
	if q.NodeID != "" {
		sqlQuery += " AND node_id = " + arg(q.NodeID)
	}
	if q.Region != "" {
		sqlQuery += " AND region = " + arg(q.Region)
	}

	switch q.SortBy {
	case model.SortByRecency:
		sqlQuery += " ORDER BY ts DESC"
	case model.SortByStability:
		sqlQuery += " ORDER BY stability DESC"
	default:
		sqlQuery += " ORDER BY overall_score DESC"
	}
	if q.Limit > 0 {
		sqlQuery += " LIMIT " + arg(q.Limit)
	}

	rows, err := s.pool.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query records: %w", err)
	}
	defer rows.Close()

	var out []model.StrategyPerformanceRecord
	for rows.Next() {
		var (
			rec            model.StrategyPerformanceRecord
			params, metrics []byte
		)
		if err := rows.Scan(&rec.StrategyID, &rec.StrategyType, &rec.Symbol, &rec.RegimeType,
			&params, &metrics, &rec.Timestamp, &rec.NodeID, &rec.Region); err != nil {
			return nil, fmt.Errorf("storage: scan record: %w", err)
		}
		if err := json.Unmarshal(params, &rec.Parameters); err != nil {
			s.logger.Warn("storage: bad parameters json, skipping", "strategy_id", rec.StrategyID, "error", err)
			continue
		}
		if err := json.Unmarshal(metrics, &rec.Metrics); err != nil {
			s.logger.Warn("storage: bad metrics json, skipping", "strategy_id", rec.StrategyID, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// StrategyCount returns the number of stored strategy configurations.
func (s *PostgresStore) StrategyCount(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM strategy_performance`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count records: %w", err)
	}
	return n, nil
}

// DeleteOlderThan removes records whose timestamp predates cutoff.
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM strategy_performance WHERE ts < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("storage: delete expired: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
