package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CommandType identifies the kind of agent-control instruction.
type CommandType string

const (
	CommandStartAgent  CommandType = "START_AGENT"
	CommandStopAgent   CommandType = "STOP_AGENT"
	CommandSyncGenome  CommandType = "SYNC_GENOME"
	CommandRetireAgent CommandType = "RETIRE_AGENT"
)

// AgentCommand is an agent-control instruction propagated across the swarm.
// Commands are produced locally, buffered until the next coordination cycle,
// and deduplicated by ID as they travel through the mesh.
type AgentCommand struct {
	ID           string         `json:"id"`
	Type         CommandType    `json:"type"`
	Payload      map[string]any `json:"payload,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	SourceNodeID string         `json:"sourceNodeId"`
}

// Normalize assigns the ID, timestamp, and source node if absent.
// Called once at enqueue time so a command's identity is stable from then on.
func (c *AgentCommand) Normalize(sourceNodeID string, now time.Time) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = now
	}
	if c.SourceNodeID == "" {
		c.SourceNodeID = sourceNodeID
	}
}

// Validate checks that the command type is one of the known values.
func (c AgentCommand) Validate() error {
	switch c.Type {
	case CommandStartAgent, CommandStopAgent, CommandSyncGenome, CommandRetireAgent:
		return nil
	default:
		return fmt.Errorf("model: unknown command type %q", c.Type)
	}
}

// DedupCommands returns commands with duplicate IDs removed, keeping the
// first occurrence. Input order is preserved.
func DedupCommands(cmds []AgentCommand) []AgentCommand {
	if len(cmds) < 2 {
		return cmds
	}
	seen := make(map[string]struct{}, len(cmds))
	out := cmds[:0:0]
	for _, c := range cmds {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
