package model

// SortBy selects the ranking applied to federated query results.
type SortBy string

const (
	SortByPerformance SortBy = "performance"
	SortByRecency     SortBy = "recency"
	SortByStability   SortBy = "stability"
)

// MemoryQuery is a read request against the distributed alpha memory.
// Zero-valued fields are unset filters. NodeID/Region pin the query to a
// single peer's replica instead of federating across all caches.
type MemoryQuery struct {
	Symbol              string  `json:"symbol,omitempty"`
	RegimeType          string  `json:"regimeType,omitempty"`
	StrategyType        string  `json:"strategyType,omitempty"`
	MinPerformanceScore float64 `json:"minPerformanceScore,omitempty"`
	NodeID              string  `json:"nodeId,omitempty"`
	Region              string  `json:"region,omitempty"`
	Limit               int     `json:"limit,omitempty"`
	SortBy              SortBy  `json:"sortBy,omitempty"`
}

// Matches applies the query's filtering predicates to a record.
func (q MemoryQuery) Matches(r StrategyPerformanceRecord) bool {
	if q.Symbol != "" && r.Symbol != q.Symbol {
		return false
	}
	if q.RegimeType != "" && r.RegimeType != q.RegimeType {
		return false
	}
	if q.StrategyType != "" && r.StrategyType != q.StrategyType {
		return false
	}
	if q.MinPerformanceScore > 0 && r.Metrics.OverallScore < q.MinPerformanceScore {
		return false
	}
	if q.NodeID != "" && r.NodeID != q.NodeID {
		return false
	}
	if q.Region != "" && r.Region != q.Region {
		return false
	}
	return true
}

// Filter returns the subset of recs matching the query's predicates.
func (q MemoryQuery) Filter(recs []StrategyPerformanceRecord) []StrategyPerformanceRecord {
	out := make([]StrategyPerformanceRecord, 0, len(recs))
	for _, r := range recs {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Pinned reports whether the query targets a single remote replica.
// A query pinned to the local node is not considered remote-pinned.
func (q MemoryQuery) Pinned(localNodeID, localRegion string) bool {
	if q.NodeID != "" && q.NodeID != localNodeID {
		return true
	}
	if q.Region != "" && q.Region != localRegion {
		return true
	}
	return false
}
