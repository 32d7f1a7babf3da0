// Package ratelimit throttles the peer-facing HTTP API. Coordination and
// sync exchanges arrive on a fixed cadence per peer, so a sustained burst
// from one address is a misbehaving or misconfigured node; the limiter
// sheds that load before it reaches the handlers.
package ratelimit

import "context"

// Limiter decides whether a request identified by key should be allowed.
// Implementations must be safe for concurrent use. Errors signal a limiter
// malfunction and are treated as fail-open by callers.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

// NoopLimiter permits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Allow always returns true.
func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
