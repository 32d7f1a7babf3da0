package mure

import "time"

// PeerState is a peer's connection lifecycle state.
type PeerState string

const (
	PeerStateConnecting   PeerState = "connecting"
	PeerStateConnected    PeerState = "connected"
	PeerStateDisconnected PeerState = "disconnected"
)

// Peer is the public view of one swarm peer.
type Peer struct {
	ID              string
	Region          string
	Address         string
	LastSeen        time.Time
	AgentCount      int
	ProtocolVersion string
	State           PeerState
}

// EventType identifies a swarm lifecycle event delivered to hooks.
type EventType string

const (
	EventSwarmJoined      EventType = "joined"
	EventSwarmLeft        EventType = "left"
	EventPeerConnected    EventType = "peer_connected"
	EventPeerDisconnected EventType = "peer_disconnected"
	EventPeerDiscovered   EventType = "peer_discovered"
	EventPeerReconnected  EventType = "peer_reconnected"
)

// Event is one swarm lifecycle notification.
type Event struct {
	Type      EventType
	PeerID    string // empty for joined/left
	Address   string
	Region    string
	PeerCount int
	Timestamp time.Time
}

// StrategyMetrics holds the performance figures attached to a record.
type StrategyMetrics struct {
	OverallScore float64
	Sharpe       float64
	Drawdown     float64
	WinRate      float64
	PnL          float64
	TradeCount   int
}

// StrategyRecord is one strategy-performance observation shared across
// the swarm.
type StrategyRecord struct {
	StrategyID   string
	StrategyType string
	Symbol       string
	RegimeType   string
	Parameters   map[string]string
	Metrics      StrategyMetrics
	Timestamp    time.Time
	NodeID       string
	Region       string
}

// SortOrder selects the ranking applied to query results.
type SortOrder string

const (
	SortByPerformance SortOrder = "performance"
	SortByRecency     SortOrder = "recency"
	SortByStability   SortOrder = "stability"
)

// Query filters and ranks strategy records across the local store and all
// peer replicas. Zero-valued fields are unset filters. NodeID or Region pin
// the query to a single peer's replica.
type Query struct {
	Symbol              string
	RegimeType          string
	StrategyType        string
	MinPerformanceScore float64
	NodeID              string
	Region              string
	Limit               int
	SortBy              SortOrder
}

// CommandType identifies the kind of agent-control instruction.
type CommandType string

const (
	CommandStartAgent  CommandType = "START_AGENT"
	CommandStopAgent   CommandType = "STOP_AGENT"
	CommandSyncGenome  CommandType = "SYNC_GENOME"
	CommandRetireAgent CommandType = "RETIRE_AGENT"
)

// Command is an agent-control instruction propagated across the swarm.
// Leave ID empty to have one assigned at enqueue time.
type Command struct {
	ID           string
	Type         CommandType
	Payload      map[string]any
	Timestamp    time.Time
	SourceNodeID string
}

// AgentStatus is one trading agent's state snapshot, reported to peers
// during coordination.
type AgentStatus struct {
	AgentID      string
	Symbol       string
	StrategyType string
	State        string
	PnL          float64
}

// Status is a point-in-time snapshot of the node's swarm and memory state.
type Status struct {
	NodeID         string
	Region         string
	Joined         bool
	ConnectedPeers int
	KnownPeers     int
	LocalRecords   int
	RemoteRecords  int
	LastSync       time.Time
	Uptime         time.Duration
}

// SyncReport is the outcome of one replication pass.
type SyncReport struct {
	Full        bool
	RecordCount int
	SyncedPeers []string
	Success     bool
	Error       string
	Timestamp   time.Time
}
