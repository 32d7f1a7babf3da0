package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mure-ai/mure/internal/config"
	"github.com/mure-ai/mure/internal/events"
	"github.com/mure-ai/mure/internal/memory"
	"github.com/mure-ai/mure/internal/model"
	"github.com/mure-ai/mure/internal/server"
	"github.com/mure-ai/mure/internal/storage"
	"github.com/mure-ai/mure/internal/swarm"
	"github.com/mure-ai/mure/internal/transport"
)

type testNode struct {
	srv   *httptest.Server
	coord *swarm.Coordinator
	mem   *memory.Distributed
	cfg   config.Config
}

func newTestNode(t *testing.T, nodeID, region string) *testNode {
	t.Helper()
	cfg := config.Config{
		NodeID:               nodeID,
		Region:               region,
		ProtocolVersion:      "1.0",
		MaxPeers:             10,
		ConnectionTimeout:    2 * time.Second,
		CoordinationInterval: time.Hour,
		ReconnectMin:         time.Hour,
		ReconnectMax:         2 * time.Hour,
		PeerRetention:        24 * time.Hour,
		SyncInterval:         time.Hour,
		MaxSyncBatchSize:     100,
		RecordTTL:            7 * 24 * time.Hour,
		FullResyncThreshold:  24 * time.Hour,
		MaxRequestBodyBytes:  1 << 20,
	}
	logger := slog.New(slog.DiscardHandler)
	broker := events.NewBroker()
	t.Cleanup(broker.Close)

	coord := swarm.NewCoordinator(cfg, transport.NewHTTPDialer(cfg.ConnectionTimeout), broker, nil, logger)
	mem := memory.NewDistributed(cfg, storage.NewMemStore(), coord, broker, nil, logger)

	srv := httptest.NewServer(server.New(cfg, coord, mem, "test", logger).Handler())
	t.Cleanup(srv.Close)
	return &testNode{srv: srv, coord: coord, mem: mem, cfg: cfg}
}

func (n *testNode) start(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, n.coord.Join(ctx))
	require.NoError(t, n.mem.Start(ctx))
	t.Cleanup(func() {
		_ = n.mem.Stop(context.Background())
		_ = n.coord.Leave(context.Background())
	})
}

func getJSON(t *testing.T, url string, dest any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if dest != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
	}
	return resp
}

func postJSON(t *testing.T, url string, body any, dest any) *http.Response {
	t.Helper()
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(encoded))
	require.NoError(t, err)
	defer resp.Body.Close()
	if dest != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
	}
	return resp
}

func TestPing(t *testing.T) {
	n := newTestNode(t, "node-a", "us")

	var ping model.PingResponse
	resp := getJSON(t, n.srv.URL+"/v1/swarm/ping", &ping)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "node-a", ping.NodeID)
	assert.Equal(t, "us", ping.Region)
	assert.Equal(t, "1.0", ping.ProtocolVersion)
}

func TestHealth(t *testing.T) {
	n := newTestNode(t, "node-a", "us")
	n.start(t)

	var health struct {
		Status string `json:"status"`
		NodeID string `json:"nodeId"`
		Joined bool   `json:"joined"`
	}
	resp := getJSON(t, n.srv.URL+"/health", &health)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "node-a", health.NodeID)
	assert.True(t, health.Joined)
}

func TestCoordinateBeforeJoin(t *testing.T) {
	n := newTestNode(t, "node-a", "us")

	resp := postJSON(t, n.srv.URL+"/v1/swarm/coordinate",
		model.CoordinationRequest{NodeID: "node-b", Region: "eu", Timestamp: time.Now()}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCoordinateRejectsBadBody(t *testing.T) {
	n := newTestNode(t, "node-a", "us")
	n.start(t)

	resp, err := http.Post(n.srv.URL+"/v1/swarm/coordinate", "application/json",
		bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, n.srv.URL+"/v1/swarm/coordinate", model.CoordinationRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSyncBeforeStart(t *testing.T) {
	n := newTestNode(t, "node-a", "us")

	resp := postJSON(t, n.srv.URL+"/v1/memory/sync",
		model.SyncRequest{NodeID: "node-b", Region: "eu", Timestamp: time.Now()}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPeersEmpty(t *testing.T) {
	n := newTestNode(t, "node-a", "us")
	n.start(t)

	var peers struct {
		Peers []model.PeerInfo `json:"peers"`
	}
	resp := getJSON(t, n.srv.URL+"/v1/swarm/peers", &peers)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, peers.Peers)
	assert.Empty(t, peers.Peers)
}

func TestRequestIDHeader(t *testing.T) {
	n := newTestNode(t, "node-a", "us")

	resp := getJSON(t, n.srv.URL+"/v1/swarm/ping", nil)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

// TestTwoNodeExchange drives a full coordination and sync cycle between two
// real nodes over HTTP.
func TestTwoNodeExchange(t *testing.T) {
	ctx := context.Background()
	a := newTestNode(t, "node-a", "us")
	b := newTestNode(t, "node-b", "eu")
	a.start(t)
	b.start(t)

	// A dials B.
	peerID, err := a.coord.ConnectToPeer(ctx, b.srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "node-b", peerID)
	require.Len(t, a.coord.ConnectedPeers(), 1)

	// A coordinates with B; B learns that A exists.
	summary, err := a.coord.CoordinateWithSwarm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PeersContacted)
	assert.Zero(t, summary.PeersFailed)

	// B records a strategy; A syncs and can query it federated.
	require.NoError(t, b.mem.RecordStrategyPerformance(ctx, model.StrategyPerformanceRecord{
		StrategyID:   "s-eu",
		StrategyType: "meanReversion",
		Symbol:       "ETH-USD",
		RegimeType:   "ranging",
		Metrics:      model.StrategyMetrics{OverallScore: 80},
	}))

	result, err := a.mem.SyncWithPeers(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"node-b"}, result.SyncedPeers)

	got, err := a.mem.QueryTopPerformingStrategies(ctx, model.MemoryQuery{Symbol: "ETH-USD"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s-eu", got[0].StrategyID)
	assert.Equal(t, "node-b", got[0].NodeID)

	// Region-pinned query reads B's replica only.
	got, err = a.mem.QueryTopPerformingStrategies(ctx, model.MemoryQuery{Region: "eu"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "node-b", got[0].NodeID)
}

func TestRateLimitSheds(t *testing.T) {
	cfg := config.Config{
		NodeID:               "node-rl",
		Region:               "us-east",
		ProtocolVersion:      "1.0",
		MaxPeers:             10,
		ConnectionTimeout:    2 * time.Second,
		CoordinationInterval: time.Hour,
		ReconnectMin:         time.Hour,
		ReconnectMax:         2 * time.Hour,
		PeerRetention:        24 * time.Hour,
		SyncInterval:         time.Hour,
		MaxSyncBatchSize:     100,
		RecordTTL:            7 * 24 * time.Hour,
		FullResyncThreshold:  24 * time.Hour,
		MaxRequestBodyBytes:  1 << 20,
		RateLimitEnabled:     true,
		RateLimitRPS:         1,
		RateLimitBurst:       3,
	}

	logger := slog.New(slog.DiscardHandler)
	broker := events.NewBroker()
	t.Cleanup(broker.Close)
	coord := swarm.NewCoordinator(cfg, transport.NewHTTPDialer(cfg.ConnectionTimeout), broker, nil, logger)
	mem := memory.NewDistributed(cfg, storage.NewMemStore(), coord, broker, nil, logger)
	s := server.New(cfg, coord, mem, "test", logger)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	for i := 0; i < 3; i++ {
		resp := getJSON(t, srv.URL+"/v1/swarm/ping", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "request %d within burst", i)
	}

	resp, err := http.Get(srv.URL + "/v1/swarm/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "too many requests", body["error"])
}

func TestOpenAPISpecServed(t *testing.T) {
	n := newTestNode(t, "node-api", "us-east")

	resp, err := http.Get(n.srv.URL + "/v1/openapi.yaml")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "/v1/swarm/coordinate")
}

func TestOversizedBodyRejected(t *testing.T) {
	n := newTestNode(t, "node-big", "us-east")
	n.start(t)

	// The configured body limit is 1 MiB; send a bit more.
	big := bytes.Repeat([]byte("a"), (1<<20)+1024)
	resp, err := http.Post(n.srv.URL+"/v1/swarm/coordinate", "application/json", bytes.NewReader(big))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
