// Package swarm implements the peer coordination layer: the peer registry,
// the connect/reconnect lifecycle, and the periodic coordination exchange
// that gossips peer views and agent commands across the mesh.
package swarm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mure-ai/mure/internal/config"
	"github.com/mure-ai/mure/internal/events"
	"github.com/mure-ai/mure/internal/model"
	"github.com/mure-ai/mure/internal/telemetry"
	"github.com/mure-ai/mure/internal/transport"
)

// seenTTL bounds how long command IDs are remembered for dedup. Commands
// older than this have long since finished propagating.
const seenTTL = 10 * time.Minute

// StatusProvider reports the node's current agent statuses and runtime
// metrics for inclusion in outbound coordination requests.
type StatusProvider func() ([]model.AgentStatus, model.RuntimeMetrics)

// CommandHandler receives commands arriving from peers. Each command is
// delivered at most once per node regardless of how many peers relay it.
type CommandHandler func(model.AgentCommand)

// CoordinationSummary is the outcome of one coordination cycle. Per-peer
// failures are collected here rather than aborting the cycle.
type CoordinationSummary struct {
	PeersContacted   int
	PeersFailed      int
	CommandsSent     int
	CommandsReceived int
	Errors           []error
	Timestamp        time.Time
}

// Coordinator manages swarm membership for one node. All exported methods
// are safe for concurrent use.
type Coordinator struct {
	cfg    config.Config
	logger *slog.Logger
	dialer transport.Dialer
	broker *events.Broker
	sink   telemetry.Sink

	dialGroup singleflight.Group

	mu         sync.Mutex
	joined     bool
	startedAt  time.Time
	registry   map[string]*model.PeerInfo // peerID -> info
	conns      map[string]transport.PeerConn
	addrIndex  map[string]string // address -> peerID
	outbound   []model.AgentCommand
	seen       map[string]time.Time // command ID -> first seen
	reconnects map[string]*time.Timer
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	statusFn  StatusProvider
	commandFn CommandHandler
}

// NewCoordinator creates a coordinator that is not yet part of any swarm.
func NewCoordinator(cfg config.Config, dialer transport.Dialer, broker *events.Broker, sink telemetry.Sink, logger *slog.Logger) *Coordinator {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &Coordinator{
		cfg:        cfg,
		logger:     logger.With("component", "swarm"),
		dialer:     dialer,
		broker:     broker,
		sink:       sink,
		registry:   make(map[string]*model.PeerInfo),
		conns:      make(map[string]transport.PeerConn),
		addrIndex:  make(map[string]string),
		seen:       make(map[string]time.Time),
		reconnects: make(map[string]*time.Timer),
	}
}

// SetStatusProvider installs the callback that supplies agent statuses and
// runtime metrics for outbound requests. Must be called before Join.
func (c *Coordinator) SetStatusProvider(fn StatusProvider) {
	c.mu.Lock()
	c.statusFn = fn
	c.mu.Unlock()
}

// SetCommandHandler installs the callback invoked for each novel command
// received from the swarm. Must be called before Join.
func (c *Coordinator) SetCommandHandler(fn CommandHandler) {
	c.mu.Lock()
	c.commandFn = fn
	c.mu.Unlock()
}

// Joined reports whether the node is currently a swarm member.
func (c *Coordinator) Joined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

// Join makes the node a swarm member, connects to the configured bootstrap
// peers when auto-connect is enabled, and starts the coordination loop.
// Bootstrap dial failures are logged, not returned: the reconnect machinery
// keeps retrying them.
func (c *Coordinator) Join(ctx context.Context) error {
	c.mu.Lock()
	if c.joined {
		c.mu.Unlock()
		return ErrAlreadyJoined
	}
	c.joined = true
	c.startedAt = time.Now()
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.loopCancel = cancel
	c.loopDone = done
	c.mu.Unlock()

	if c.cfg.AutoConnect {
		for _, addr := range c.cfg.BootstrapPeers {
			if _, err := c.ConnectToPeer(ctx, addr); err != nil {
				c.logger.Warn("bootstrap connect failed", "address", addr, "error", err)
				c.scheduleReconnect(addr)
			}
		}
	}

	go c.run(loopCtx, done)

	c.broker.Publish(events.Event{Type: events.SwarmJoined, PeerCount: c.connectedCount()})
	c.sink.Emit(ctx, "swarm_joined", map[string]any{"nodeId": c.cfg.NodeID, "region": c.cfg.Region})
	c.logger.Info("joined swarm", "nodeId", c.cfg.NodeID, "region", c.cfg.Region,
		"bootstrapPeers", len(c.cfg.BootstrapPeers))
	return nil
}

// Leave disconnects from all peers, cancels pending reconnects, and stops
// the coordination loop. The peer registry is retained for a later re-join.
func (c *Coordinator) Leave(ctx context.Context) error {
	c.mu.Lock()
	if !c.joined {
		c.mu.Unlock()
		return ErrNotJoined
	}
	c.joined = false
	cancel := c.loopCancel
	done := c.loopDone
	c.loopCancel = nil
	c.loopDone = nil

	for addr, timer := range c.reconnects {
		timer.Stop()
		delete(c.reconnects, addr)
	}
	conns := c.conns
	c.conns = make(map[string]transport.PeerConn)
	c.addrIndex = make(map[string]string)
	for id := range conns {
		if p, ok := c.registry[id]; ok {
			p.Status = model.PeerDisconnected
		}
	}
	c.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
	}

	for id, conn := range conns {
		if err := conn.Close(); err != nil {
			c.logger.Warn("close peer connection", "peerId", id, "error", err)
		}
	}

	c.broker.Publish(events.Event{Type: events.SwarmLeft})
	c.sink.Emit(ctx, "swarm_left", map[string]any{"nodeId": c.cfg.NodeID})
	c.logger.Info("left swarm", "nodeId", c.cfg.NodeID)
	return nil
}

// ConnectToPeer dials address and registers the peer on success. Concurrent
// connects to the same address collapse into a single dial. Returns the
// peer's ID.
func (c *Coordinator) ConnectToPeer(ctx context.Context, address string) (string, error) {
	v, err, _ := c.dialGroup.Do(address, func() (any, error) {
		return c.connectPeer(ctx, address)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Coordinator) connectPeer(ctx context.Context, address string) (string, error) {
	c.mu.Lock()
	if !c.joined {
		c.mu.Unlock()
		return "", ErrNotJoined
	}
	if id, ok := c.addrIndex[address]; ok {
		c.mu.Unlock()
		return id, nil
	}
	if len(c.conns) >= c.cfg.MaxPeers {
		c.mu.Unlock()
		return "", ErrSwarmFull
	}
	// A known peer at this address surfaces as connecting while the dial
	// is in flight.
	c.markAddressLocked(address, model.PeerDisconnected, model.PeerConnecting)
	c.mu.Unlock()
	defer func() {
		// On success the entry is already connected; this reverts the
		// failure paths.
		c.mu.Lock()
		c.markAddressLocked(address, model.PeerConnecting, model.PeerDisconnected)
		c.mu.Unlock()
	}()

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectionTimeout)
	defer cancel()

	conn, err := c.dialer.Dial(dialCtx, address)
	if err != nil {
		return "", fmt.Errorf("swarm: dial %s: %w", address, err)
	}

	ping, err := conn.Ping(dialCtx)
	if err != nil {
		_ = conn.Close()
		return "", fmt.Errorf("swarm: identify %s: %w", address, err)
	}
	if ping.NodeID == c.cfg.NodeID {
		_ = conn.Close()
		return "", ErrSelfConnect
	}

	c.mu.Lock()
	if !c.joined {
		c.mu.Unlock()
		_ = conn.Close()
		return "", ErrNotJoined
	}
	if _, ok := c.conns[ping.NodeID]; ok {
		// Another dial won the race for this peer.
		c.mu.Unlock()
		_ = conn.Close()
		return ping.NodeID, nil
	}
	if len(c.conns) >= c.cfg.MaxPeers {
		c.mu.Unlock()
		_ = conn.Close()
		return "", ErrSwarmFull
	}

	reconnected := false
	p, known := c.registry[ping.NodeID]
	if !known {
		p = &model.PeerInfo{ID: ping.NodeID}
		c.registry[ping.NodeID] = p
	} else if p.Status == model.PeerDisconnected {
		reconnected = true
	}
	p.Region = ping.Region
	p.Address = address
	p.ProtocolVersion = ping.ProtocolVersion
	p.Status = model.PeerConnected
	p.Touch(time.Now())

	c.conns[ping.NodeID] = conn
	c.addrIndex[address] = ping.NodeID
	if timer, ok := c.reconnects[address]; ok {
		timer.Stop()
		delete(c.reconnects, address)
	}
	count := len(c.conns)
	c.mu.Unlock()

	evType := events.PeerConnected
	emitName := "peer_connected"
	if reconnected {
		evType = events.PeerReconnected
		emitName = "peer_reconnected"
	}
	c.broker.Publish(events.Event{
		Type: evType, PeerID: ping.NodeID, Address: address,
		Region: ping.Region, PeerCount: count,
	})
	c.sink.Emit(ctx, emitName, map[string]any{"peerId": ping.NodeID, "region": ping.Region})
	c.logger.Info("peer connected", "peerId", ping.NodeID, "address", address,
		"region", ping.Region, "reconnected", reconnected)
	return ping.NodeID, nil
}

// DisconnectFromPeer deliberately closes the connection to peerID. No
// reconnect is scheduled; the peer stays in the registry as disconnected.
func (c *Coordinator) DisconnectFromPeer(ctx context.Context, peerID string) error {
	c.mu.Lock()
	conn, ok := c.conns[peerID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("swarm: peer %s is not connected", peerID)
	}
	delete(c.conns, peerID)
	delete(c.addrIndex, conn.Address())
	if p, exists := c.registry[peerID]; exists {
		p.Status = model.PeerDisconnected
	}
	count := len(c.conns)
	c.mu.Unlock()

	err := conn.Close()

	c.broker.Publish(events.Event{
		Type: events.PeerDisconnected, PeerID: peerID,
		Address: conn.Address(), PeerCount: count,
	})
	c.sink.Emit(ctx, "peer_disconnected", map[string]any{"peerId": peerID, "reason": "requested"})
	c.logger.Info("peer disconnected", "peerId", peerID)
	return err
}

// QueueCommand normalizes cmd and buffers it for the next coordination
// cycle. The command's ID is marked as seen so it is never re-delivered to
// this node's own handler.
func (c *Coordinator) QueueCommand(cmd model.AgentCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	cmd.Normalize(c.cfg.NodeID, time.Now())

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.joined {
		return ErrNotJoined
	}
	if _, dup := c.seen[cmd.ID]; dup {
		return nil
	}
	c.seen[cmd.ID] = time.Now()
	c.outbound = append(c.outbound, cmd)
	return nil
}

// CoordinateWithSwarm runs one coordination cycle: it sends the node's
// status and queued commands to every connected peer, merges the peer views
// and commands that come back, and marks unreachable peers disconnected.
// One failing peer never aborts the exchange with the others; failures are
// collected in the returned summary.
func (c *Coordinator) CoordinateWithSwarm(ctx context.Context) (*CoordinationSummary, error) {
	c.mu.Lock()
	if !c.joined {
		c.mu.Unlock()
		return nil, ErrNotJoined
	}

	conns := make(map[string]transport.PeerConn, len(c.conns))
	for id, conn := range c.conns {
		conns[id] = conn
	}
	commands := model.DedupCommands(c.outbound)
	c.outbound = nil

	var statuses []model.AgentStatus
	var metrics model.RuntimeMetrics
	if c.statusFn != nil {
		statuses, metrics = c.statusFn()
	}
	metrics.UptimeSeconds = time.Since(c.startedAt).Seconds()
	c.mu.Unlock()

	req := model.CoordinationRequest{
		NodeID:         c.cfg.NodeID,
		Region:         c.cfg.Region,
		Timestamp:      time.Now(),
		AgentStatuses:  statuses,
		RuntimeMetrics: metrics,
		Commands:       commands,
	}

	summary := &CoordinationSummary{
		PeersContacted: len(conns),
		CommandsSent:   len(commands),
		Timestamp:      req.Timestamp,
	}
	if len(conns) == 0 {
		return summary, nil
	}

	var (
		resMu     sync.Mutex
		responses = make(map[string]*model.CoordinationResponse, len(conns))
		g         errgroup.Group
	)
	for id, conn := range conns {
		g.Go(func() error {
			resp, err := conn.Coordinate(ctx, req)
			resMu.Lock()
			defer resMu.Unlock()
			if err != nil {
				summary.PeersFailed++
				summary.Errors = append(summary.Errors, fmt.Errorf("peer %s: %w", id, err))
				return nil
			}
			responses[id] = resp
			return nil
		})
	}
	_ = g.Wait()

	var inbound []model.AgentCommand
	now := time.Now()

	c.mu.Lock()
	// A cycle completing after Leave must not resurrect registry state or
	// relay stale commands; its results are discarded.
	if c.joined {
		for id := range conns {
			resp, ok := responses[id]
			if !ok {
				continue
			}
			if p, exists := c.registry[id]; exists {
				p.Touch(resp.Timestamp)
				p.Touch(now)
			}
			c.mergePeerViewLocked(ctx, resp.Peers)
			for _, cmd := range resp.Commands {
				if _, dup := c.seen[cmd.ID]; dup {
					continue
				}
				c.seen[cmd.ID] = now
				inbound = append(inbound, cmd)
				// Relay novel commands onward next cycle.
				c.outbound = append(c.outbound, cmd)
			}
		}
	}
	handler := c.commandFn
	stillJoined := c.joined
	c.mu.Unlock()

	// Failed peers leave the connected set and enter the reconnect cycle.
	for _, err := range summary.Errors {
		c.logger.Warn("coordination exchange failed", "error", err)
	}
	if stillJoined {
		for id := range conns {
			if _, ok := responses[id]; !ok {
				c.handlePeerFailure(id)
			}
		}
	}

	summary.CommandsReceived = len(inbound)
	if stillJoined && handler != nil {
		for _, cmd := range inbound {
			handler(cmd)
		}
	}

	event := "swarm_coordination_completed"
	if summary.PeersFailed == summary.PeersContacted && summary.PeersContacted > 0 {
		event = "swarm_coordination_failed"
	}
	c.sink.Emit(ctx, event, map[string]any{
		"peersContacted": summary.PeersContacted,
		"peersFailed":    summary.PeersFailed,
	})
	c.logger.Debug("coordination cycle complete",
		"peersContacted", summary.PeersContacted,
		"peersFailed", summary.PeersFailed,
		"commandsReceived", summary.CommandsReceived)
	return summary, nil
}

// HandleCoordination processes an inbound coordination request from a peer
// and builds the response: this node's peer view plus its queued commands.
func (c *Coordinator) HandleCoordination(ctx context.Context, req model.CoordinationRequest) (*model.CoordinationResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.joined {
		return nil, ErrNotJoined
	}

	now := time.Now()
	if p, ok := c.registry[req.NodeID]; ok {
		p.Touch(req.Timestamp)
		p.Touch(now)
		p.AgentCount = req.RuntimeMetrics.AgentCount
		if p.Region == "" {
			p.Region = req.Region
		}
	}

	var novel []model.AgentCommand
	for _, cmd := range req.Commands {
		if _, dup := c.seen[cmd.ID]; dup {
			continue
		}
		c.seen[cmd.ID] = now
		novel = append(novel, cmd)
		c.outbound = append(c.outbound, cmd)
	}

	resp := &model.CoordinationResponse{
		ProtocolVersion: c.cfg.ProtocolVersion,
		Status:          model.StatusSuccess,
		Timestamp:       now,
		Peers:           c.peerSnapshotLocked(),
		Commands:        append([]model.AgentCommand(nil), c.outbound...),
	}

	if handler := c.commandFn; handler != nil && len(novel) > 0 {
		go func() {
			for _, cmd := range novel {
				handler(cmd)
			}
		}()
	}
	return resp, nil
}

// ConnectedPeers returns copies of all currently connected peers.
func (c *Coordinator) ConnectedPeers() []model.PeerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.PeerInfo, 0, len(c.conns))
	for id := range c.conns {
		if p, ok := c.registry[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out
}

// AllPeers returns copies of every registry entry, connected or not.
func (c *Coordinator) AllPeers() []model.PeerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.PeerInfo, 0, len(c.registry))
	for _, p := range c.registry {
		out = append(out, p.Clone())
	}
	return out
}

// Conn returns the live connection for peerID, if any.
func (c *Coordinator) Conn(peerID string) (transport.PeerConn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.conns[peerID]
	return conn, ok
}

// Connections returns a snapshot of all live peer connections keyed by
// peer ID.
func (c *Coordinator) Connections() map[string]transport.PeerConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]transport.PeerConn, len(c.conns))
	for id, conn := range c.conns {
		out[id] = conn
	}
	return out
}

// Uptime reports how long the node has been a swarm member.
func (c *Coordinator) Uptime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.joined {
		return 0
	}
	return time.Since(c.startedAt)
}

// run is the background coordination loop.
func (c *Coordinator) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.cfg.CoordinationInterval)
	defer ticker.Stop()

	housekeeping := time.NewTicker(time.Minute)
	defer housekeeping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.CoordinateWithSwarm(ctx); err != nil {
				c.logger.Warn("coordination cycle", "error", err)
			}
		case <-housekeeping.C:
			c.pruneSeen()
			c.pruneStalePeers()
		}
	}
}

// handlePeerFailure moves a peer from connected to disconnected and
// schedules a jittered reconnect.
func (c *Coordinator) handlePeerFailure(peerID string) {
	c.mu.Lock()
	conn, ok := c.conns[peerID]
	if !ok {
		c.mu.Unlock()
		return
	}
	address := conn.Address()
	delete(c.conns, peerID)
	delete(c.addrIndex, address)
	if p, exists := c.registry[peerID]; exists {
		p.Status = model.PeerDisconnected
	}
	count := len(c.conns)
	c.mu.Unlock()

	_ = conn.Close()

	c.broker.Publish(events.Event{
		Type: events.PeerDisconnected, PeerID: peerID,
		Address: address, PeerCount: count,
	})
	c.sink.Emit(context.Background(), "peer_disconnected", map[string]any{"peerId": peerID, "reason": "unreachable"})
	c.logger.Warn("peer unreachable", "peerId", peerID, "address", address)

	c.scheduleReconnect(address)
}

// scheduleReconnect arms a one-shot timer that redials address after a
// random delay within the configured reconnect window.
func (c *Coordinator) scheduleReconnect(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.joined {
		return
	}
	if _, pending := c.reconnects[address]; pending {
		return
	}
	delay := reconnectDelay(c.cfg.ReconnectMin, c.cfg.ReconnectMax)
	c.reconnects[address] = time.AfterFunc(delay, func() {
		c.mu.Lock()
		delete(c.reconnects, address)
		joined := c.joined
		c.mu.Unlock()
		if !joined {
			return
		}
		if _, err := c.ConnectToPeer(context.Background(), address); err != nil {
			c.logger.Debug("reconnect attempt failed", "address", address, "error", err)
			c.scheduleReconnect(address)
		}
	})
	c.logger.Debug("reconnect scheduled", "address", address, "delay", delay)
}

// reconnectDelay picks a uniformly random delay in [lo, hi].
func reconnectDelay(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

// mergePeerViewLocked folds a peer's view of the mesh into the registry.
// Newly discovered peers are recorded as disconnected candidates and, when
// auto-connect is on and capacity remains, dialed in the background. Known
// peers have their mutable fields refreshed from any report newer than what
// the registry holds. Caller holds c.mu.
func (c *Coordinator) mergePeerViewLocked(ctx context.Context, peers []model.PeerInfo) {
	var discovered []model.PeerInfo
	for _, p := range peers {
		if p.ID == c.cfg.NodeID {
			continue
		}
		existing, ok := c.registry[p.ID]
		if !ok {
			cp := p.Clone()
			cp.Status = model.PeerDisconnected
			c.registry[p.ID] = &cp
			discovered = append(discovered, cp)
			continue
		}
		fresher := p.LastSeen.After(existing.LastSeen)
		existing.Touch(p.LastSeen)
		if existing.Address == "" {
			existing.Address = p.Address
		}
		if fresher {
			if p.Region != "" {
				existing.Region = p.Region
			}
			existing.AgentCount = p.AgentCount
			if p.Metadata != nil {
				existing.Metadata = p.Clone().Metadata
			}
		}
	}

	capacity := c.cfg.MaxPeers - len(c.conns)
	for _, p := range discovered {
		c.broker.Publish(events.Event{
			Type: events.PeerDiscovered, PeerID: p.ID,
			Address: p.Address, Region: p.Region,
		})
		c.sink.Emit(ctx, "peer_discovered", map[string]any{"peerId": p.ID, "region": p.Region})
		c.logger.Info("peer discovered", "peerId", p.ID, "address", p.Address, "region", p.Region)

		if !c.cfg.AutoConnect || p.Address == "" || capacity <= 0 {
			continue
		}
		capacity--
		addr := p.Address
		go func() {
			if _, err := c.ConnectToPeer(context.Background(), addr); err != nil {
				c.logger.Debug("discovery dial failed", "address", addr, "error", err)
			}
		}()
	}
}

// markAddressLocked moves registry entries for address from one status to
// another. Used to flag a dial in flight and to clear the flag when it
// resolves. Caller holds c.mu.
func (c *Coordinator) markAddressLocked(address string, from, to model.PeerStatus) {
	for _, p := range c.registry {
		if p.Address == address && p.Status == from {
			p.Status = to
		}
	}
}

// peerSnapshotLocked returns copies of all registry entries. Caller holds c.mu.
func (c *Coordinator) peerSnapshotLocked() []model.PeerInfo {
	out := make([]model.PeerInfo, 0, len(c.registry))
	for _, p := range c.registry {
		out = append(out, p.Clone())
	}
	return out
}

// pruneSeen drops command IDs older than the dedup horizon.
func (c *Coordinator) pruneSeen() {
	cutoff := time.Now().Add(-seenTTL)
	c.mu.Lock()
	for id, ts := range c.seen {
		if ts.Before(cutoff) {
			delete(c.seen, id)
		}
	}
	c.mu.Unlock()
}

// pruneStalePeers removes disconnected registry entries that have no pending
// reconnect and have not been seen within the retention window.
func (c *Coordinator) pruneStalePeers() {
	cutoff := time.Now().Add(-c.cfg.PeerRetention)
	c.mu.Lock()
	for id, p := range c.registry {
		if p.Status != model.PeerDisconnected {
			continue
		}
		if _, pending := c.reconnects[p.Address]; pending {
			continue
		}
		if p.LastSeen.Before(cutoff) {
			delete(c.registry, id)
			c.logger.Debug("pruned stale peer", "peerId", id)
		}
	}
	c.mu.Unlock()
}

func (c *Coordinator) connectedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}
