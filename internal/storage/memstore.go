package storage

import (
	"context"
	"sync"
	"time"

	"github.com/mure-ai/mure/internal/model"
)

// MemStore is an in-memory local memory. Used by tests and as the
// zero-configuration fallback when no database is wired.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]model.StrategyPerformanceRecord // composite key -> best record
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]model.StrategyPerformanceRecord)}
}

// RecordStrategyPerformance upserts by composite key, keeping the record
// that wins the conflict-resolution rule.
func (s *MemStore) RecordStrategyPerformance(_ context.Context, rec model.StrategyPerformanceRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rec.CompositeKey()
	cur, ok := s.records[key]
	if !ok || rec.Supersedes(cur) {
		s.records[key] = rec
	}
	return nil
}

// QueryTopPerformingStrategies filters, sorts, and truncates in memory.
func (s *MemStore) QueryTopPerformingStrategies(_ context.Context, q model.MemoryQuery) ([]model.StrategyPerformanceRecord, error) {
	s.mu.RLock()
	all := make([]model.StrategyPerformanceRecord, 0, len(s.records))
	for _, r := range s.records {
		all = append(all, r)
	}
	s.mu.RUnlock()

	out := q.Filter(all)
	model.SortRecords(out, q.SortBy)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// StrategyCount returns the number of stored strategy configurations.
func (s *MemStore) StrategyCount(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// DeleteOlderThan removes records whose timestamp predates cutoff.
func (s *MemStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for k, r := range s.records {
		if r.Timestamp.Before(cutoff) {
			delete(s.records, k)
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the in-memory store.
func (s *MemStore) Close() error { return nil }
