// Package model defines the domain types shared across the swarm
// coordinator, the distributed memory, and the wire protocol.
package model

import (
	"time"
)

// PeerStatus represents the connection lifecycle state of a peer.
type PeerStatus string

const (
	PeerConnecting   PeerStatus = "connecting"
	PeerConnected    PeerStatus = "connected"
	PeerDisconnected PeerStatus = "disconnected"
)

// PeerInfo is one entry in the coordinator's peer registry.
// The registry is the single owner of PeerInfo values; other components
// receive copies and never mutate peer state.
type PeerInfo struct {
	ID              string            `json:"peerId"`
	Region          string            `json:"region"`
	Address         string            `json:"address"`
	LastSeen        time.Time         `json:"lastSeen"`
	AgentCount      int               `json:"agentCount"`
	ProtocolVersion string            `json:"protocolVersion"`
	Status          PeerStatus        `json:"status"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Touch advances LastSeen to ts if ts is newer. LastSeen never moves
// backward, regardless of the order peer reports arrive in.
func (p *PeerInfo) Touch(ts time.Time) {
	if ts.After(p.LastSeen) {
		p.LastSeen = ts
	}
}

// Clone returns a deep copy, so registry internals never leak to callers.
func (p *PeerInfo) Clone() PeerInfo {
	out := *p
	if p.Metadata != nil {
		out.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
