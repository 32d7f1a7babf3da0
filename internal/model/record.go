package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// StrategyMetrics holds the performance figures attached to a record.
// OverallScore is the quality signal used for cross-node conflict
// resolution; the rest are informational.
type StrategyMetrics struct {
	OverallScore float64 `json:"overallScore"`
	Sharpe       float64 `json:"sharpe"`
	Drawdown     float64 `json:"drawdown"`
	WinRate      float64 `json:"winRate"`
	PnL          float64 `json:"pnl"`
	TradeCount   int     `json:"tradeCount"`
}

// Stability is the ranking key for the "stability" sort order: a strategy
// that wins often and draws down little ranks high even when its raw score
// is mid-pack.
func (m StrategyMetrics) Stability() float64 {
	dd := m.Drawdown
	if dd < 0 {
		dd = -dd
	}
	if dd > 1 {
		dd = 1
	}
	return m.WinRate * (1 - dd)
}

// StrategyPerformanceRecord is the replicated unit of the alpha memory.
// Records are immutable once created; a logically updated strategy is a new
// record sharing the same composite key.
type StrategyPerformanceRecord struct {
	StrategyID   string            `json:"strategyId"`
	StrategyType string            `json:"strategyType"`
	Symbol       string            `json:"symbol"`
	RegimeType   string            `json:"regimeType"`
	Parameters   map[string]string `json:"parameters,omitempty"`
	Metrics      StrategyMetrics   `json:"metrics"`
	Timestamp    time.Time         `json:"timestamp"`
	NodeID       string            `json:"nodeId"`
	Region       string            `json:"region"`
}

// Validate checks the fields a record cannot be stored without.
func (r StrategyPerformanceRecord) Validate() error {
	if r.StrategyID == "" {
		return fmt.Errorf("model: record strategyId is required")
	}
	if r.StrategyType == "" {
		return fmt.Errorf("model: record strategyType is required")
	}
	if r.Symbol == "" {
		return fmt.Errorf("model: record symbol is required")
	}
	return nil
}

// CompositeKey is the cross-node deduplication unit:
// strategyType:symbol:hash(parameters). Two records with the same key are
// the same logical strategy configuration regardless of origin node.
func (r StrategyPerformanceRecord) CompositeKey() string {
	return r.StrategyType + ":" + r.Symbol + ":" + HashParameters(r.Parameters)
}

// Supersedes reports whether r wins the conflict-resolution rule against
// other: highest overallScore, ties broken by most recent timestamp.
func (r StrategyPerformanceRecord) Supersedes(other StrategyPerformanceRecord) bool {
	if r.Metrics.OverallScore != other.Metrics.OverallScore {
		return r.Metrics.OverallScore > other.Metrics.OverallScore
	}
	return r.Timestamp.After(other.Timestamp)
}

// HashParameters produces a short stable digest of a parameter map.
// Keys are sorted before hashing so digest equality tracks map equality.
func HashParameters(params map[string]string) string {
	if len(params) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
		b.WriteByte(';')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

// DedupRecords collapses records sharing a composite key, keeping the one
// that Supersedes the rest. The result order is unspecified.
func DedupRecords(recs []StrategyPerformanceRecord) []StrategyPerformanceRecord {
	best := make(map[string]StrategyPerformanceRecord, len(recs))
	for _, r := range recs {
		key := r.CompositeKey()
		cur, ok := best[key]
		if !ok || r.Supersedes(cur) {
			best[key] = r
		}
	}
	out := make([]StrategyPerformanceRecord, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	return out
}

// SortRecords orders records per the requested sort key, descending.
// Ties fall back to composite key so the order is deterministic.
func SortRecords(recs []StrategyPerformanceRecord, by SortBy) {
	less := func(a, b StrategyPerformanceRecord) bool {
		switch by {
		case SortByRecency:
			if !a.Timestamp.Equal(b.Timestamp) {
				return a.Timestamp.After(b.Timestamp)
			}
		case SortByStability:
			as, bs := a.Metrics.Stability(), b.Metrics.Stability()
			if as != bs {
				return as > bs
			}
		default: // SortByPerformance
			if a.Metrics.OverallScore != b.Metrics.OverallScore {
				return a.Metrics.OverallScore > b.Metrics.OverallScore
			}
		}
		return a.CompositeKey() < b.CompositeKey()
	}
	sort.SliceStable(recs, func(i, j int) bool { return less(recs[i], recs[j]) })
}

// FormatScore renders a score for log output with stable precision.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 2, 64)
}
