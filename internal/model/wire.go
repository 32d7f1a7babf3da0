package model

import "time"

// Wire-level protocol types. These are the JSON bodies carried by the peer
// HTTP transport; field names are part of the coordination contract and
// must stay stable across protocol versions.

// ResponseStatus distinguishes "ran and succeeded" from "ran and failed".
// Transport-level failures never produce a status; they surface as errors.
type ResponseStatus string

const (
	StatusSuccess ResponseStatus = "success"
	StatusError   ResponseStatus = "error"
)

// AgentStatus is one agent's state snapshot carried in a coordination request.
type AgentStatus struct {
	AgentID      string  `json:"agentId"`
	Symbol       string  `json:"symbol,omitempty"`
	StrategyType string  `json:"strategyType,omitempty"`
	State        string  `json:"state"`
	PnL          float64 `json:"pnl,omitempty"`
}

// RuntimeMetrics is the node-level health snapshot carried in a
// coordination request.
type RuntimeMetrics struct {
	AgentCount    int     `json:"agentCount"`
	RecordCount   int     `json:"recordCount"`
	UptimeSeconds float64 `json:"uptimeSeconds,omitempty"`
}

// CoordinationRequest is the body of POST /v1/swarm/coordinate.
type CoordinationRequest struct {
	NodeID         string         `json:"nodeId"`
	Region         string         `json:"region"`
	Timestamp      time.Time      `json:"timestamp"`
	AgentStatuses  []AgentStatus  `json:"agentStatuses,omitempty"`
	RuntimeMetrics RuntimeMetrics `json:"runtimeMetrics"`
	Commands       []AgentCommand `json:"commands,omitempty"`
}

// CoordinationResponse is the reply to a coordination exchange. Peers is the
// responder's view of the mesh; Commands are instructions the responder
// wants propagated.
type CoordinationResponse struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Status          ResponseStatus `json:"status"`
	Timestamp       time.Time      `json:"timestamp"`
	Peers           []PeerInfo     `json:"peers,omitempty"`
	Commands        []AgentCommand `json:"commands,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// SyncOperation classifies one replication pass.
type SyncOperation string

const (
	SyncFull        SyncOperation = "full"
	SyncIncremental SyncOperation = "incremental"
	SyncTargeted    SyncOperation = "targeted"
)

// SyncRequest is the body of POST /v1/memory/sync: the caller pushes its
// outbound records and asks for the responder's records in return.
// Full asks for the responder's comprehensive record set instead of the
// recent slice.
type SyncRequest struct {
	NodeID    string                      `json:"nodeId"`
	Region    string                      `json:"region"`
	Timestamp time.Time                   `json:"timestamp"`
	Full      bool                        `json:"full"`
	Records   []StrategyPerformanceRecord `json:"records,omitempty"`
}

// SyncResponse carries the responder's records back to the caller.
type SyncResponse struct {
	Status  ResponseStatus              `json:"status"`
	Records []StrategyPerformanceRecord `json:"records,omitempty"`
	Error   string                      `json:"error,omitempty"`
}

// PingResponse is the reply to GET /v1/swarm/ping, used as the dial
// liveness probe.
type PingResponse struct {
	NodeID          string `json:"nodeId"`
	Region          string `json:"region"`
	ProtocolVersion string `json:"protocolVersion"`
}

// SyncResult is the local outcome of one replication pass.
type SyncResult struct {
	OperationType SyncOperation `json:"operationType"`
	RecordCount   int           `json:"recordCount"`
	Timestamp     time.Time     `json:"timestamp"`
	SyncedPeers   []string      `json:"syncedPeers"`
	Success       bool          `json:"success"`
	Error         string        `json:"error,omitempty"`
}
