package swarm

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mure-ai/mure/internal/config"
	"github.com/mure-ai/mure/internal/events"
	"github.com/mure-ai/mure/internal/model"
	"github.com/mure-ai/mure/internal/transport"
)

// fakeConn is an in-memory PeerConn whose behavior tests can script.
type fakeConn struct {
	addr string
	ping model.PingResponse

	mu          sync.Mutex
	coordinate  func(model.CoordinationRequest) (*model.CoordinationResponse, error)
	coordinated []model.CoordinationRequest
	closed      bool
}

func (f *fakeConn) Address() string { return f.addr }

func (f *fakeConn) Coordinate(_ context.Context, req model.CoordinationRequest) (*model.CoordinationResponse, error) {
	f.mu.Lock()
	f.coordinated = append(f.coordinated, req)
	fn := f.coordinate
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return &model.CoordinationResponse{
		ProtocolVersion: "1.0",
		Status:          model.StatusSuccess,
		Timestamp:       time.Now(),
	}, nil
}

func (f *fakeConn) Sync(context.Context, model.SyncRequest) (*model.SyncResponse, error) {
	return &model.SyncResponse{Status: model.StatusSuccess}, nil
}

func (f *fakeConn) Ping(context.Context) (*model.PingResponse, error) {
	p := f.ping
	return &p, nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.coordinated)
}

// fakeDialer maps addresses to scripted peers and counts dials.
type fakeDialer struct {
	mu        sync.Mutex
	peers     map[string]model.PingResponse // address -> identity
	dialCount map[string]int
	dialDelay time.Duration
	conns     []*fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		peers:     make(map[string]model.PingResponse),
		dialCount: make(map[string]int),
	}
}

func (d *fakeDialer) addPeer(address, nodeID, region string) {
	d.mu.Lock()
	d.peers[address] = model.PingResponse{NodeID: nodeID, Region: region, ProtocolVersion: "1.0"}
	d.mu.Unlock()
}

func (d *fakeDialer) removePeer(address string) {
	d.mu.Lock()
	delete(d.peers, address)
	d.mu.Unlock()
}

func (d *fakeDialer) Dial(_ context.Context, address string) (transport.PeerConn, error) {
	if d.dialDelay > 0 {
		time.Sleep(d.dialDelay)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialCount[address]++
	ping, ok := d.peers[address]
	if !ok {
		return nil, &transport.Error{Address: address, Message: "connection refused"}
	}
	conn := &fakeConn{addr: address, ping: ping}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dials(address string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dialCount[address]
}

func (d *fakeDialer) lastConn(address string) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.conns) - 1; i >= 0; i-- {
		if d.conns[i].addr == address {
			return d.conns[i]
		}
	}
	return nil
}

func testConfig() config.Config {
	return config.Config{
		NodeID:               "node-a",
		Region:               "us",
		ProtocolVersion:      "1.0",
		AutoConnect:          true,
		MaxPeers:             10,
		ConnectionTimeout:    time.Second,
		CoordinationInterval: time.Hour, // cycles driven manually in tests
		ReconnectMin:         10 * time.Millisecond,
		ReconnectMax:         30 * time.Millisecond,
		PeerRetention:        24 * time.Hour,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestCoordinator(t *testing.T, cfg config.Config, d *fakeDialer) (*Coordinator, *events.Broker) {
	t.Helper()
	broker := events.NewBroker()
	t.Cleanup(broker.Close)
	c := NewCoordinator(cfg, d, broker, nil, testLogger())
	return c, broker
}

func TestJoinLeaveLifecycle(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCoordinator(t, testConfig(), newFakeDialer())

	require.False(t, c.Joined())
	require.ErrorIs(t, c.Leave(ctx), ErrNotJoined)

	require.NoError(t, c.Join(ctx))
	require.True(t, c.Joined())
	require.ErrorIs(t, c.Join(ctx), ErrAlreadyJoined)

	require.NoError(t, c.Leave(ctx))
	require.False(t, c.Joined())
}

func TestOperationsRequireMembership(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCoordinator(t, testConfig(), newFakeDialer())

	_, err := c.ConnectToPeer(ctx, "peer-b:7410")
	require.ErrorIs(t, err, ErrNotJoined)

	_, err = c.CoordinateWithSwarm(ctx)
	require.ErrorIs(t, err, ErrNotJoined)

	err = c.QueueCommand(model.AgentCommand{Type: model.CommandStartAgent})
	require.ErrorIs(t, err, ErrNotJoined)

	_, err = c.HandleCoordination(ctx, model.CoordinationRequest{NodeID: "peer-b"})
	require.ErrorIs(t, err, ErrNotJoined)
}

func TestConnectToPeer(t *testing.T) {
	ctx := context.Background()
	d := newFakeDialer()
	d.addPeer("peer-b:7410", "node-b", "eu")
	c, _ := newTestCoordinator(t, testConfig(), d)
	require.NoError(t, c.Join(ctx))
	defer func() { _ = c.Leave(ctx) }()

	id, err := c.ConnectToPeer(ctx, "peer-b:7410")
	require.NoError(t, err)
	assert.Equal(t, "node-b", id)

	peers := c.ConnectedPeers()
	require.Len(t, peers, 1)
	assert.Equal(t, "node-b", peers[0].ID)
	assert.Equal(t, model.PeerConnected, peers[0].Status)
	assert.Equal(t, "eu", peers[0].Region)

	// Connecting to an already-connected address is a no-op.
	id, err = c.ConnectToPeer(ctx, "peer-b:7410")
	require.NoError(t, err)
	assert.Equal(t, "node-b", id)
	assert.Equal(t, 1, d.dials("peer-b:7410"))
}

func TestConnectToSelfRejected(t *testing.T) {
	ctx := context.Background()
	d := newFakeDialer()
	d.addPeer("self:7410", "node-a", "us")
	c, _ := newTestCoordinator(t, testConfig(), d)
	require.NoError(t, c.Join(ctx))
	defer func() { _ = c.Leave(ctx) }()

	_, err := c.ConnectToPeer(ctx, "self:7410")
	require.ErrorIs(t, err, ErrSelfConnect)
	assert.Empty(t, c.ConnectedPeers())
}

func TestPeerLimit(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxPeers = 2
	d := newFakeDialer()
	d.addPeer("b:1", "node-b", "eu")
	d.addPeer("c:1", "node-c", "ap")
	d.addPeer("d:1", "node-d", "us")
	c, _ := newTestCoordinator(t, cfg, d)
	require.NoError(t, c.Join(ctx))
	defer func() { _ = c.Leave(ctx) }()

	_, err := c.ConnectToPeer(ctx, "b:1")
	require.NoError(t, err)
	_, err = c.ConnectToPeer(ctx, "c:1")
	require.NoError(t, err)
	_, err = c.ConnectToPeer(ctx, "d:1")
	require.ErrorIs(t, err, ErrSwarmFull)
}

func TestConcurrentConnectsCollapse(t *testing.T) {
	ctx := context.Background()
	d := newFakeDialer()
	d.dialDelay = 20 * time.Millisecond
	d.addPeer("peer-b:7410", "node-b", "eu")
	c, _ := newTestCoordinator(t, testConfig(), d)
	require.NoError(t, c.Join(ctx))
	defer func() { _ = c.Leave(ctx) }()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.ConnectToPeer(ctx, "peer-b:7410")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, d.dials("peer-b:7410"))
	assert.Len(t, c.ConnectedPeers(), 1)
}

func TestCoordinationIsolatesFailingPeer(t *testing.T) {
	ctx := context.Background()
	d := newFakeDialer()
	d.addPeer("b:1", "node-b", "eu")
	d.addPeer("c:1", "node-c", "ap")
	d.addPeer("x:1", "node-x", "us")
	cfg := testConfig()
	cfg.ReconnectMin = time.Hour // keep the failed peer down for the assertion
	cfg.ReconnectMax = 2 * time.Hour
	c, _ := newTestCoordinator(t, cfg, d)
	require.NoError(t, c.Join(ctx))
	defer func() { _ = c.Leave(ctx) }()

	for _, addr := range []string{"b:1", "c:1", "x:1"} {
		_, err := c.ConnectToPeer(ctx, addr)
		require.NoError(t, err)
	}
	d.lastConn("x:1").coordinate = func(model.CoordinationRequest) (*model.CoordinationResponse, error) {
		return nil, errors.New("boom")
	}

	summary, err := c.CoordinateWithSwarm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.PeersContacted)
	assert.Equal(t, 1, summary.PeersFailed)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0].Error(), "node-x")

	// Healthy peers were all exchanged with despite the failure.
	assert.Equal(t, 1, d.lastConn("b:1").requestCount())
	assert.Equal(t, 1, d.lastConn("c:1").requestCount())

	// The failed peer left the connected set but stays in the registry.
	require.Len(t, c.ConnectedPeers(), 2)
	var found bool
	for _, p := range c.AllPeers() {
		if p.ID == "node-x" {
			found = true
			assert.Equal(t, model.PeerDisconnected, p.Status)
		}
	}
	assert.True(t, found)
}

func TestCommandsPropagateOncePerCycle(t *testing.T) {
	ctx := context.Background()
	d := newFakeDialer()
	d.addPeer("b:1", "node-b", "eu")
	c, _ := newTestCoordinator(t, testConfig(), d)
	require.NoError(t, c.Join(ctx))
	defer func() { _ = c.Leave(ctx) }()

	_, err := c.ConnectToPeer(ctx, "b:1")
	require.NoError(t, err)

	cmd := model.AgentCommand{ID: "cmd-1", Type: model.CommandStartAgent}
	require.NoError(t, c.QueueCommand(cmd))
	// Re-queueing the same ID is a no-op.
	require.NoError(t, c.QueueCommand(cmd))

	summary, err := c.CoordinateWithSwarm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CommandsSent)

	conn := d.lastConn("b:1")
	require.Equal(t, 1, conn.requestCount())
	conn.mu.Lock()
	sent := conn.coordinated[0].Commands
	conn.mu.Unlock()
	require.Len(t, sent, 1)
	assert.Equal(t, "cmd-1", sent[0].ID)
	assert.Equal(t, "node-a", sent[0].SourceNodeID)

	// The queue drains after a cycle.
	summary, err = c.CoordinateWithSwarm(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.CommandsSent)
}

func TestInboundCommandsDeduplicated(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCoordinator(t, testConfig(), newFakeDialer())

	var delivered atomic.Int32
	c.SetCommandHandler(func(model.AgentCommand) { delivered.Add(1) })
	require.NoError(t, c.Join(ctx))
	defer func() { _ = c.Leave(ctx) }()

	req := model.CoordinationRequest{
		NodeID: "node-b", Region: "eu", Timestamp: time.Now(),
		Commands: []model.AgentCommand{
			{ID: "cmd-7", Type: model.CommandStopAgent, SourceNodeID: "node-b", Timestamp: time.Now()},
		},
	}
	resp, err := c.HandleCoordination(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, resp.Status)

	// Same command relayed again by another peer.
	req.NodeID = "node-c"
	_, err = c.HandleCoordination(ctx, req)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return delivered.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestPeerDiscoveryFromResponses(t *testing.T) {
	ctx := context.Background()
	d := newFakeDialer()
	d.addPeer("b:1", "node-b", "eu")
	c, broker := newTestCoordinator(t, testConfig(), d)
	sub := broker.Subscribe()
	require.NoError(t, c.Join(ctx))
	defer func() { _ = c.Leave(ctx) }()

	_, err := c.ConnectToPeer(ctx, "b:1")
	require.NoError(t, err)

	d.lastConn("b:1").coordinate = func(model.CoordinationRequest) (*model.CoordinationResponse, error) {
		return &model.CoordinationResponse{
			Status:    model.StatusSuccess,
			Timestamp: time.Now(),
			Peers: []model.PeerInfo{
				{ID: "node-a", Address: "self:7410"}, // own entry must be ignored
				{ID: "node-z", Address: "z:1", Region: "ap", LastSeen: time.Now()},
			},
		}, nil
	}

	_, err = c.CoordinateWithSwarm(ctx)
	require.NoError(t, err)

	var ids []string
	for _, p := range c.AllPeers() {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{"node-b", "node-z"}, ids)

	var discovered bool
	deadline := time.After(time.Second)
	for !discovered {
		select {
		case ev := <-sub:
			if ev.Type == events.PeerDiscovered && ev.PeerID == "node-z" {
				discovered = true
			}
		case <-deadline:
			t.Fatal("no peer_discovered event")
		}
	}
}

func TestFailedPeerReconnects(t *testing.T) {
	ctx := context.Background()
	d := newFakeDialer()
	d.addPeer("b:1", "node-b", "eu")
	c, broker := newTestCoordinator(t, testConfig(), d)
	sub := broker.Subscribe()
	require.NoError(t, c.Join(ctx))
	defer func() { _ = c.Leave(ctx) }()

	_, err := c.ConnectToPeer(ctx, "b:1")
	require.NoError(t, err)

	d.lastConn("b:1").coordinate = func(model.CoordinationRequest) (*model.CoordinationResponse, error) {
		return nil, errors.New("connection reset")
	}
	_, err = c.CoordinateWithSwarm(ctx)
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub:
			if ev.Type == events.PeerReconnected && ev.PeerID == "node-b" {
				require.Len(t, c.ConnectedPeers(), 1)
				return
			}
		case <-deadline:
			t.Fatal("peer never reconnected")
		}
	}
}

func TestLeaveCancelsReconnects(t *testing.T) {
	ctx := context.Background()
	d := newFakeDialer()
	d.addPeer("b:1", "node-b", "eu")
	cfg := testConfig()
	cfg.ReconnectMin = 50 * time.Millisecond
	cfg.ReconnectMax = 60 * time.Millisecond
	c, _ := newTestCoordinator(t, cfg, d)
	require.NoError(t, c.Join(ctx))

	_, err := c.ConnectToPeer(ctx, "b:1")
	require.NoError(t, err)

	d.removePeer("b:1") // future dials fail
	d.lastConn("b:1").coordinate = func(model.CoordinationRequest) (*model.CoordinationResponse, error) {
		return nil, errors.New("connection reset")
	}
	_, err = c.CoordinateWithSwarm(ctx)
	require.NoError(t, err)

	dialsBefore := d.dials("b:1")
	require.NoError(t, c.Leave(ctx))

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, dialsBefore, d.dials("b:1"))
}

func TestDisconnectIsDeliberate(t *testing.T) {
	ctx := context.Background()
	d := newFakeDialer()
	d.addPeer("b:1", "node-b", "eu")
	c, _ := newTestCoordinator(t, testConfig(), d)
	require.NoError(t, c.Join(ctx))
	defer func() { _ = c.Leave(ctx) }()

	_, err := c.ConnectToPeer(ctx, "b:1")
	require.NoError(t, err)

	require.NoError(t, c.DisconnectFromPeer(ctx, "node-b"))
	assert.Empty(t, c.ConnectedPeers())

	// No reconnect timer was armed.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, d.dials("b:1"))

	require.Error(t, c.DisconnectFromPeer(ctx, "node-b"))
}

func TestReconnectDelayWithinWindow(t *testing.T) {
	lo, hi := 5*time.Second, 10*time.Second
	for range 200 {
		d := reconnectDelay(lo, hi)
		require.GreaterOrEqual(t, d, lo)
		require.LessOrEqual(t, d, hi)
	}
	assert.Equal(t, lo, reconnectDelay(lo, lo))
}

func TestHandleCoordinationTouchesSender(t *testing.T) {
	ctx := context.Background()
	d := newFakeDialer()
	d.addPeer("b:1", "node-b", "eu")
	c, _ := newTestCoordinator(t, testConfig(), d)
	require.NoError(t, c.Join(ctx))
	defer func() { _ = c.Leave(ctx) }()

	_, err := c.ConnectToPeer(ctx, "b:1")
	require.NoError(t, err)
	before := c.ConnectedPeers()[0].LastSeen

	time.Sleep(5 * time.Millisecond)
	resp, err := c.HandleCoordination(ctx, model.CoordinationRequest{
		NodeID: "node-b", Region: "eu", Timestamp: time.Now(),
		RuntimeMetrics: model.RuntimeMetrics{AgentCount: 3},
	})
	require.NoError(t, err)
	require.Len(t, resp.Peers, 1)

	after := c.ConnectedPeers()[0]
	assert.True(t, after.LastSeen.After(before))
	assert.Equal(t, 3, after.AgentCount)

	// A stale timestamp never moves LastSeen backward.
	_, err = c.HandleCoordination(ctx, model.CoordinationRequest{
		NodeID: "node-b", Region: "eu", Timestamp: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, c.ConnectedPeers()[0].LastSeen.Before(after.LastSeen))
}

// captureSink records emitted telemetry event names.
type captureSink struct {
	mu     sync.Mutex
	events []string
}

func (s *captureSink) Emit(_ context.Context, event string, _ map[string]any) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *captureSink) has(event string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e == event {
			return true
		}
	}
	return false
}

func peerByID(peers []model.PeerInfo, id string) (model.PeerInfo, bool) {
	for _, p := range peers {
		if p.ID == id {
			return p, true
		}
	}
	return model.PeerInfo{}, false
}

func TestDiscoveredPeerAutoDialed(t *testing.T) {
	ctx := context.Background()
	d := newFakeDialer()
	d.addPeer("b:1", "node-b", "eu")
	d.addPeer("z:1", "node-z", "ap")
	c, _ := newTestCoordinator(t, testConfig(), d)
	require.NoError(t, c.Join(ctx))
	defer func() { _ = c.Leave(ctx) }()

	_, err := c.ConnectToPeer(ctx, "b:1")
	require.NoError(t, err)

	d.lastConn("b:1").coordinate = func(model.CoordinationRequest) (*model.CoordinationResponse, error) {
		return &model.CoordinationResponse{
			Status:    model.StatusSuccess,
			Timestamp: time.Now(),
			Peers:     []model.PeerInfo{{ID: "node-z", Address: "z:1", Region: "ap", LastSeen: time.Now()}},
		}, nil
	}
	_, err = c.CoordinateWithSwarm(ctx)
	require.NoError(t, err)

	// The gossiped peer joins the connected set without manual dialing.
	require.Eventually(t, func() bool {
		p, ok := peerByID(c.ConnectedPeers(), "node-z")
		return ok && p.Status == model.PeerConnected
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, d.dials("z:1"))
}

func TestDiscoveryHonorsAutoConnectOff(t *testing.T) {
	ctx := context.Background()
	d := newFakeDialer()
	d.addPeer("b:1", "node-b", "eu")
	d.addPeer("z:1", "node-z", "ap")
	cfg := testConfig()
	cfg.AutoConnect = false
	c, _ := newTestCoordinator(t, cfg, d)
	require.NoError(t, c.Join(ctx))
	defer func() { _ = c.Leave(ctx) }()

	_, err := c.ConnectToPeer(ctx, "b:1")
	require.NoError(t, err)

	d.lastConn("b:1").coordinate = func(model.CoordinationRequest) (*model.CoordinationResponse, error) {
		return &model.CoordinationResponse{
			Status:    model.StatusSuccess,
			Timestamp: time.Now(),
			Peers:     []model.PeerInfo{{ID: "node-z", Address: "z:1", Region: "ap", LastSeen: time.Now()}},
		}, nil
	}
	_, err = c.CoordinateWithSwarm(ctx)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, d.dials("z:1"))
	p, ok := peerByID(c.AllPeers(), "node-z")
	require.True(t, ok)
	assert.Equal(t, model.PeerDisconnected, p.Status)
}

func TestPeerViewRefreshesKnownPeer(t *testing.T) {
	ctx := context.Background()
	d := newFakeDialer()
	d.addPeer("b:1", "node-b", "eu")
	cfg := testConfig()
	cfg.AutoConnect = false // keep the gossiped peer undialed
	c, _ := newTestCoordinator(t, cfg, d)
	require.NoError(t, c.Join(ctx))
	defer func() { _ = c.Leave(ctx) }()

	_, err := c.ConnectToPeer(ctx, "b:1")
	require.NoError(t, err)
	conn := d.lastConn("b:1")

	first := time.Now()
	report := model.PeerInfo{ID: "node-z", Address: "z:1", Region: "ap", AgentCount: 2, LastSeen: first}
	conn.coordinate = func(model.CoordinationRequest) (*model.CoordinationResponse, error) {
		return &model.CoordinationResponse{
			Status: model.StatusSuccess, Timestamp: time.Now(),
			Peers: []model.PeerInfo{report},
		}, nil
	}
	_, err = c.CoordinateWithSwarm(ctx)
	require.NoError(t, err)

	// A fresher report overwrites the mutable fields.
	report = model.PeerInfo{
		ID: "node-z", Address: "z:1", Region: "ap-southeast", AgentCount: 7,
		Metadata: map[string]string{"tier": "gold"}, LastSeen: first.Add(time.Second),
	}
	_, err = c.CoordinateWithSwarm(ctx)
	require.NoError(t, err)

	p, ok := peerByID(c.AllPeers(), "node-z")
	require.True(t, ok)
	assert.Equal(t, "ap-southeast", p.Region)
	assert.Equal(t, 7, p.AgentCount)
	assert.Equal(t, "gold", p.Metadata["tier"])

	// A stale report does not.
	report = model.PeerInfo{ID: "node-z", Address: "z:1", Region: "us", AgentCount: 1, LastSeen: first.Add(-time.Hour)}
	_, err = c.CoordinateWithSwarm(ctx)
	require.NoError(t, err)

	p, ok = peerByID(c.AllPeers(), "node-z")
	require.True(t, ok)
	assert.Equal(t, "ap-southeast", p.Region)
	assert.Equal(t, 7, p.AgentCount)
}

func TestDiscoveryReachesTelemetrySink(t *testing.T) {
	ctx := context.Background()
	d := newFakeDialer()
	d.addPeer("b:1", "node-b", "eu")
	cfg := testConfig()
	cfg.AutoConnect = false
	sink := &captureSink{}
	broker := events.NewBroker()
	t.Cleanup(broker.Close)
	c := NewCoordinator(cfg, d, broker, sink, testLogger())
	require.NoError(t, c.Join(ctx))
	defer func() { _ = c.Leave(ctx) }()

	_, err := c.ConnectToPeer(ctx, "b:1")
	require.NoError(t, err)

	d.lastConn("b:1").coordinate = func(model.CoordinationRequest) (*model.CoordinationResponse, error) {
		return &model.CoordinationResponse{
			Status: model.StatusSuccess, Timestamp: time.Now(),
			Peers: []model.PeerInfo{{ID: "node-z", Address: "z:1", Region: "ap", LastSeen: time.Now()}},
		}, nil
	}
	_, err = c.CoordinateWithSwarm(ctx)
	require.NoError(t, err)

	assert.True(t, sink.has("peer_discovered"))
}

func TestDialInFlightShowsConnecting(t *testing.T) {
	ctx := context.Background()
	d := newFakeDialer()
	d.addPeer("b:1", "node-b", "eu")
	cfg := testConfig()
	cfg.ReconnectMin = 20 * time.Millisecond
	cfg.ReconnectMax = 30 * time.Millisecond
	c, _ := newTestCoordinator(t, cfg, d)
	require.NoError(t, c.Join(ctx))
	defer func() { _ = c.Leave(ctx) }()

	_, err := c.ConnectToPeer(ctx, "b:1")
	require.NoError(t, err)

	d.lastConn("b:1").coordinate = func(model.CoordinationRequest) (*model.CoordinationResponse, error) {
		return nil, errors.New("connection reset")
	}
	d.dialDelay = 100 * time.Millisecond
	_, err = c.CoordinateWithSwarm(ctx)
	require.NoError(t, err)

	// The reconnect dial holds the peer in the connecting state until it
	// resolves.
	require.Eventually(t, func() bool {
		p, ok := peerByID(c.AllPeers(), "node-b")
		return ok && p.Status == model.PeerConnecting
	}, time.Second, 2*time.Millisecond)

	require.Eventually(t, func() bool {
		p, ok := peerByID(c.AllPeers(), "node-b")
		return ok && p.Status == model.PeerConnected
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLeaveDiscardsInFlightCycle(t *testing.T) {
	ctx := context.Background()
	d := newFakeDialer()
	d.addPeer("b:1", "node-b", "eu")
	c, _ := newTestCoordinator(t, testConfig(), d)

	var delivered atomic.Int32
	c.SetCommandHandler(func(model.AgentCommand) { delivered.Add(1) })
	require.NoError(t, c.Join(ctx))

	_, err := c.ConnectToPeer(ctx, "b:1")
	require.NoError(t, err)

	release := make(chan struct{})
	d.lastConn("b:1").coordinate = func(model.CoordinationRequest) (*model.CoordinationResponse, error) {
		<-release
		return &model.CoordinationResponse{
			Status: model.StatusSuccess, Timestamp: time.Now(),
			Peers:  []model.PeerInfo{{ID: "node-z", Address: "z:1", Region: "ap", LastSeen: time.Now()}},
			Commands: []model.AgentCommand{
				{ID: "cmd-late", Type: model.CommandStopAgent, SourceNodeID: "node-b", Timestamp: time.Now()},
			},
		}, nil
	}

	cycleDone := make(chan struct{})
	go func() {
		defer close(cycleDone)
		_, _ = c.CoordinateWithSwarm(ctx)
	}()
	require.Eventually(t, func() bool {
		return d.lastConn("b:1").requestCount() == 1
	}, time.Second, time.Millisecond)

	// Leave while the exchange is parked, then let the response land.
	require.NoError(t, c.Leave(ctx))
	close(release)
	<-cycleDone

	// The late response was discarded wholesale: no registry mutation, no
	// command delivery, nothing queued for relay.
	_, found := peerByID(c.AllPeers(), "node-z")
	assert.False(t, found)
	assert.Zero(t, delivered.Load())
	c.mu.Lock()
	assert.Empty(t, c.outbound)
	c.mu.Unlock()
}
