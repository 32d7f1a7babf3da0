// Package events provides the in-process notification stream for swarm
// lifecycle events. Subscribers receive typed events over buffered channels;
// slow subscribers drop events rather than blocking the publisher.
package events

import (
	"sync"
	"time"
)

// Type identifies a swarm lifecycle event.
type Type string

const (
	SwarmJoined      Type = "joined"
	SwarmLeft        Type = "left"
	PeerConnected    Type = "peer_connected"
	PeerDisconnected Type = "peer_disconnected"
	PeerDiscovered   Type = "peer_discovered"
	PeerReconnected  Type = "peer_reconnected"
)

// Event is one swarm lifecycle notification.
type Event struct {
	Type      Type
	PeerID    string // empty for joined/left
	Address   string
	Region    string
	PeerCount int // connected-peer count at emit time
	Timestamp time.Time
}

// Broker fans out events to all active subscribers.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	closed      bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subscribers: make(map[chan Event]struct{})}
}

// Subscribe returns a channel that receives every published event.
// The caller must call Unsubscribe when done.
func (b *Broker) Subscribe() chan Event {
	ch := make(chan Event, 64) // buffered so a slow reader never blocks publish
	b.mu.Lock()
	if !b.closed {
		b.subscribers[ch] = struct{}{}
	} else {
		close(ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
// Safe to call with a channel that was never subscribed or already removed.
func (b *Broker) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends the event to all subscribers. Subscribers with a full
// buffer are skipped; one slow consumer must not delay the coordinator.
func (b *Broker) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			// Subscriber buffer full, drop this event for them.
		}
	}
}

// Close closes all subscriber channels. Publish becomes a no-op.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subscribers {
		delete(b.subscribers, ch)
		close(ch)
	}
}
