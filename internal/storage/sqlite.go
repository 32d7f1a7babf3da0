// Package storage provides the local authoritative strategy-performance
// stores the distributed memory replicates on top of. Each store keeps one
// row per composite key where the best-scoring record wins, matching the
// cross-node conflict-resolution rule.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mure-ai/mure/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS strategy_performance (
    composite_key TEXT PRIMARY KEY,
    strategy_id   TEXT NOT NULL,
    strategy_type TEXT NOT NULL,
    symbol        TEXT NOT NULL,
    regime_type   TEXT NOT NULL DEFAULT '',
    parameters    TEXT NOT NULL DEFAULT '{}',
    metrics       TEXT NOT NULL DEFAULT '{}',
    overall_score REAL NOT NULL DEFAULT 0,
    stability     REAL NOT NULL DEFAULT 0,
    ts            INTEGER NOT NULL,
    node_id       TEXT NOT NULL DEFAULT '',
    region        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_perf_symbol ON strategy_performance(symbol);
CREATE INDEX IF NOT EXISTS idx_perf_score  ON strategy_performance(overall_score);
`

// SQLiteStore is the default embedded local memory.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at path and applies
// the schema.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// RecordStrategyPerformance upserts the record, keeping the existing row
// when it supersedes the new one (higher score, or equal score and newer).
func (s *SQLiteStore) RecordStrategyPerformance(ctx context.Context, rec model.StrategyPerformanceRecord) error {
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

	_, err = s.db.ExecContext(ctx, `
INSERT INTO strategy_performance
    (composite_key, strategy_id, strategy_type, symbol, regime_type,
     parameters, metrics, overall_score, stability, ts, node_id, region)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(composite_key) DO UPDATE SET
    strategy_id   = excluded.strategy_id,
    regime_type   = excluded.regime_type,
    parameters    = excluded.parameters,
    metrics       = excluded.metrics,
    overall_score = excluded.overall_score,
    stability     = excluded.stability,
    ts            = excluded.ts,
    node_id       = excluded.node_id,
    region        = excluded.region
WHERE excluded.overall_score > strategy_performance.overall_score
   OR (excluded.overall_score = strategy_performance.overall_score
       AND excluded.ts > strategy_performance.ts)`,
		rec.CompositeKey(), rec.StrategyID, rec.StrategyType, rec.Symbol, rec.RegimeType,
		string(params), string(metrics), rec.Metrics.OverallScore, rec.Metrics.Stability(),
		rec.Timestamp.UnixMilli(), rec.NodeID, rec.Region)
	if err != nil {
		return fmt.Errorf("storage: upsert record: %w", err)
	}
	return nil
}

// QueryTopPerformingStrategies returns records matching the query filters,
// ordered per the requested sort and truncated to the limit.
func (s *SQLiteStore) QueryTopPerformingStrategies(ctx context.Context, q model.MemoryQuery) ([]model.StrategyPerformanceRecord, error) {
	sqlQuery := `
SELECT strategy_id, strategy_type, symbol, regime_type, parameters, metrics,
       ts, node_id, region
FROM strategy_performance WHERE 1=1`
	var args []any
	if q.Symbol != "" {
		sqlQuery += " AND symbol = ?"
		args = append(args, q.Symbol)
	}
	if q.RegimeType != "" {
		sqlQuery += " AND regime_type = ?"
		args = append(args, q.RegimeType)
	}
	if q.StrategyType != "" {
		sqlQuery += " AND strategy_type = ?"
		args = append(args, q.StrategyType)
	}
	if q.MinPerformanceScore > 0 {
		sqlQuery += " AND overall_score >= ?"
		args = append(args, q.MinPerformanceScore)
	}
	if q.NodeID != "" {
		sqlQuery += " AND node_id = ?"
		args = append(args, q.NodeID)
	}
	if q.Region != "" {
		sqlQuery += " AND region = ?"
		args = append(args, q.Region)
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
		sqlQuery += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query records: %w", err)
	}
	defer rows.Close()

	var out []model.StrategyPerformanceRecord
	for rows.Next() {
		var (
			rec            model.StrategyPerformanceRecord
			params, metrics string
			tsMilli        int64
		)
		if err := rows.Scan(&rec.StrategyID, &rec.StrategyType, &rec.Symbol, &rec.RegimeType,
			&params, &metrics, &tsMilli, &rec.NodeID, &rec.Region); err != nil {
			return nil, fmt.Errorf("storage: scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &rec.Parameters); err != nil {
			s.logger.Warn("storage: bad parameters json, skipping", "strategy_id", rec.StrategyID, "error", err)
			continue
		}
		if err := json.Unmarshal([]byte(metrics), &rec.Metrics); err != nil {
			s.logger.Warn("storage: bad metrics json, skipping", "strategy_id", rec.StrategyID, "error", err)
			continue
		}
		rec.Timestamp = time.UnixMilli(tsMilli)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// StrategyCount returns the number of stored strategy configurations.
func (s *SQLiteStore) StrategyCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM strategy_performance`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count records: %w", err)
	}
	return n, nil
}

// DeleteOlderThan removes records whose timestamp predates cutoff and
// returns the number deleted.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM strategy_performance WHERE ts < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("storage: delete expired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
