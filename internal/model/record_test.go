package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mure-ai/mure/internal/model"
)

func rec(id string, score float64, ts time.Time) model.StrategyPerformanceRecord {
	return model.StrategyPerformanceRecord{
		StrategyID:   id,
		StrategyType: "momentum",
		Symbol:       "BTC-USD",
		RegimeType:   "trending",
		Parameters:   map[string]string{"lookback": "20", "threshold": "0.5"},
		Metrics:      model.StrategyMetrics{OverallScore: score, WinRate: 0.6, Drawdown: 0.1},
		Timestamp:    ts,
		NodeID:       "node-a",
		Region:       "us",
	}
}

func TestCompositeKeyStable(t *testing.T) {
	now := time.Now()
	a := rec("s1", 50, now)
	b := rec("s2", 90, now.Add(time.Hour))

	// Same type+symbol+parameters means same key, no matter score/id/timestamp.
	assert.Equal(t, a.CompositeKey(), b.CompositeKey())

	// Parameter order must not matter.
	c := a
	c.Parameters = map[string]string{"threshold": "0.5", "lookback": "20"}
	assert.Equal(t, a.CompositeKey(), c.CompositeKey())
}

func TestCompositeKeySensitivity(t *testing.T) {
	now := time.Now()
	base := rec("s1", 50, now)

	bySymbol := base
	bySymbol.Symbol = "ETH-USD"
	assert.NotEqual(t, base.CompositeKey(), bySymbol.CompositeKey())

	byType := base
	byType.StrategyType = "meanrev"
	assert.NotEqual(t, base.CompositeKey(), byType.CompositeKey())

	byParams := base
	byParams.Parameters = map[string]string{"lookback": "21", "threshold": "0.5"}
	assert.NotEqual(t, base.CompositeKey(), byParams.CompositeKey())
}

func TestHashParametersEmpty(t *testing.T) {
	assert.Equal(t, "none", model.HashParameters(nil))
	assert.Equal(t, "none", model.HashParameters(map[string]string{}))
}

func TestDedupRecordsKeepsBestScore(t *testing.T) {
	now := time.Now()
	low := rec("s1", 10, now.Add(time.Hour)) // newer but worse
	high := rec("s2", 90, now)

	// Arrival order must not matter.
	for _, in := range [][]model.StrategyPerformanceRecord{
		{low, high},
		{high, low},
	} {
		out := model.DedupRecords(in)
		require.Len(t, out, 1)
		assert.Equal(t, 90.0, out[0].Metrics.OverallScore)
	}
}

func TestDedupRecordsTieBreaksByRecency(t *testing.T) {
	now := time.Now()
	older := rec("s1", 50, now)
	newer := rec("s2", 50, now.Add(time.Minute))

	out := model.DedupRecords([]model.StrategyPerformanceRecord{older, newer})
	require.Len(t, out, 1)
	assert.Equal(t, "s2", out[0].StrategyID)
}

func TestSortRecordsPerformance(t *testing.T) {
	now := time.Now()
	recs := []model.StrategyPerformanceRecord{
		rec("a", 10, now), rec("b", 90, now), rec("c", 50, now),
	}
	// Distinct symbols so dedup in callers would not collapse them.
	recs[0].Symbol, recs[1].Symbol, recs[2].Symbol = "A", "B", "C"

	model.SortRecords(recs, model.SortByPerformance)
	scores := []float64{recs[0].Metrics.OverallScore, recs[1].Metrics.OverallScore, recs[2].Metrics.OverallScore}
	assert.Equal(t, []float64{90, 50, 10}, scores)
}

func TestSortRecordsRecency(t *testing.T) {
	now := time.Now()
	recs := []model.StrategyPerformanceRecord{
		rec("old", 90, now.Add(-time.Hour)),
		rec("new", 10, now),
	}
	recs[0].Symbol, recs[1].Symbol = "A", "B"

	model.SortRecords(recs, model.SortByRecency)
	assert.Equal(t, "new", recs[0].StrategyID)
}

func TestSortRecordsStability(t *testing.T) {
	now := time.Now()
	steady := rec("steady", 40, now)
	steady.Symbol = "A"
	steady.Metrics.WinRate = 0.9
	steady.Metrics.Drawdown = 0.05

	wild := rec("wild", 95, now)
	wild.Symbol = "B"
	wild.Metrics.WinRate = 0.4
	wild.Metrics.Drawdown = 0.6

	recs := []model.StrategyPerformanceRecord{wild, steady}
	model.SortRecords(recs, model.SortByStability)
	assert.Equal(t, "steady", recs[0].StrategyID)
}

func TestRecordValidate(t *testing.T) {
	r := rec("s1", 50, time.Now())
	require.NoError(t, r.Validate())

	missing := r
	missing.StrategyID = ""
	assert.Error(t, missing.Validate())

	missing = r
	missing.Symbol = ""
	assert.Error(t, missing.Validate())
}

func TestStability(t *testing.T) {
	m := model.StrategyMetrics{WinRate: 0.8, Drawdown: 0.25}
	assert.InDelta(t, 0.6, m.Stability(), 1e-9)

	// Drawdown is clamped to [0, 1].
	m = model.StrategyMetrics{WinRate: 1.0, Drawdown: 3.0}
	assert.Equal(t, 0.0, m.Stability())
}
