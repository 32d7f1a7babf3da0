package mure

import (
	"context"
	"time"
)

// LocalMemory is a pluggable persistence backend for the node's own
// strategy records. When provided via WithLocalMemory it replaces the
// store selected by MURE_STORE_DRIVER. Uses only public types, so external
// consumers never import internal packages.
type LocalMemory interface {
	RecordStrategyPerformance(ctx context.Context, rec StrategyRecord) error
	QueryTopPerformingStrategies(ctx context.Context, q Query) ([]StrategyRecord, error)
	StrategyCount(ctx context.Context) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// EventHook receives swarm lifecycle notifications. Hooks run on the event
// dispatch goroutine and must not block indefinitely. Failures are
// logged but never propagate to the operation that produced the event.
type EventHook interface {
	OnSwarmEvent(ctx context.Context, ev Event) error
}

// TelemetrySink receives domain telemetry events. When provided via
// WithTelemetrySink it replaces the OTEL-backed sink.
type TelemetrySink interface {
	Emit(ctx context.Context, event string, attrs map[string]any)
}

// StatusProvider supplies the node's agent statuses for coordination
// requests. Record counts are attached automatically.
type StatusProvider func() []AgentStatus

// CommandHandler receives commands arriving from the swarm. Each command is
// delivered at most once regardless of how many peers relay it.
type CommandHandler func(Command)
