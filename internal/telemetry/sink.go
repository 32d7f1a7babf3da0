package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Sink receives observability events from the coordinator and the memory.
// Emit is fire-and-forget: no component depends on delivery succeeding, and
// implementations must never block the caller.
type Sink interface {
	Emit(ctx context.Context, event string, attrs map[string]any)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(context.Context, string, map[string]any) {}

// OTELSink counts events on an OpenTelemetry counter per event name and
// mirrors them to the debug log.
type OTELSink struct {
	logger *slog.Logger
	meter  metric.Meter

	mu       sync.Mutex
	counters map[string]metric.Int64Counter
}

// NewOTELSink creates a sink on the given instrumentation scope.
func NewOTELSink(logger *slog.Logger, scope string) *OTELSink {
	return &OTELSink{
		logger:   logger,
		meter:    Meter(scope),
		counters: make(map[string]metric.Int64Counter),
	}
}

// Emit increments the counter named after the event. Counter creation errors
// are logged once and the event is dropped; emission never fails the caller.
func (s *OTELSink) Emit(ctx context.Context, event string, attrs map[string]any) {
	s.logger.Debug("telemetry event", "event", event, "attrs", attrs)

	s.mu.Lock()
	counter, ok := s.counters[event]
	if !ok {
		var err error
		counter, err = s.meter.Int64Counter("mure." + event)
		if err != nil {
			s.mu.Unlock()
			s.logger.Warn("telemetry: counter create failed", "event", event, "error", err)
			return
		}
		s.counters[event] = counter
	}
	s.mu.Unlock()

	counter.Add(ctx, 1, metric.WithAttributes(toAttributes(attrs)...))
}

// toAttributes converts the loosely-typed attr map to OTEL attributes.
// Only the types telemetry events actually carry are mapped; anything else
// is stringified.
func toAttributes(attrs map[string]any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			out = append(out, attribute.String(k, val))
		case int:
			out = append(out, attribute.Int(k, val))
		case int64:
			out = append(out, attribute.Int64(k, val))
		case float64:
			out = append(out, attribute.Float64(k, val))
		case bool:
			out = append(out, attribute.Bool(k, val))
		default:
			out = append(out, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	return out
}
