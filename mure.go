// Package mure coordinates a swarm of trading nodes and replicates their
// strategy-performance memory. Each App is one node: it joins the mesh,
// exchanges agent statuses and commands with its peers on a fixed cadence,
// and federates strategy records so every node can query what the whole
// swarm has learned.
package mure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/mure-ai/mure/internal/config"
	"github.com/mure-ai/mure/internal/events"
	"github.com/mure-ai/mure/internal/memory"
	"github.com/mure-ai/mure/internal/model"
	"github.com/mure-ai/mure/internal/server"
	"github.com/mure-ai/mure/internal/storage"
	"github.com/mure-ai/mure/internal/swarm"
	"github.com/mure-ai/mure/internal/telemetry"
	"github.com/mure-ai/mure/internal/transport"
)

// Sentinel errors surfaced by App operations.
var (
	// ErrAlreadyJoined is returned by JoinSwarm when the node is a member.
	ErrAlreadyJoined = swarm.ErrAlreadyJoined
	// ErrNotJoined is returned by swarm operations before JoinSwarm.
	ErrNotJoined = swarm.ErrNotJoined
	// ErrSwarmFull is returned when the peer limit is reached.
	ErrSwarmFull = swarm.ErrSwarmFull
	// ErrSelfConnect is returned when a dial reaches this node itself.
	ErrSelfConnect = swarm.ErrSelfConnect
)

// App is one swarm node: coordinator, distributed memory, and the HTTP
// server peers talk to. Construct with New, drive with Run or the
// individual methods, and always Shutdown.
type App struct {
	cfg     config.Config
	logger  *slog.Logger
	version string

	broker *events.Broker
	store  memory.LocalMemory
	coord  *swarm.Coordinator
	mem    *memory.Distributed
	srv    *server.Server

	hooks        []EventHook
	otelShutdown telemetry.Shutdown
}

// New builds an App from environment configuration plus options.
// Options win over environment variables. The returned App is not yet a
// swarm member: call Run (or JoinSwarm) to go live.
func New(ctx context.Context, opts ...Option) (*App, error) {
	var o resolvedOptions
	for _, opt := range opts {
		opt(&o)
	}

	// Best effort; missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := config.Parse()
	if o.nodeID != "" {
		cfg.NodeID = o.nodeID
	}
	if o.region != "" {
		cfg.Region = o.region
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.bootstrapPeers != nil {
		cfg.BootstrapPeers = o.bootstrapPeers
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("node_id", cfg.NodeID, "region", cfg.Region)

	version := o.version
	if version == "" {
		version = "dev"
	}

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("mure: init telemetry: %w", err)
	}

	store, err := openStore(ctx, cfg, o, logger)
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, err
	}

	var sink telemetry.Sink
	if o.telemetrySink != nil {
		sink = sinkAdapter{o.telemetrySink}
	} else {
		sink = telemetry.NewOTELSink(logger, "mure")
	}

	broker := events.NewBroker()
	dialer := transport.NewHTTPDialer(cfg.ConnectionTimeout)
	coord := swarm.NewCoordinator(cfg, dialer, broker, sink, logger)
	mem := memory.NewDistributed(cfg, store, coord, broker, sink, logger)

	app := &App{
		cfg:          cfg,
		logger:       logger,
		version:      version,
		broker:       broker,
		store:        store,
		coord:        coord,
		mem:          mem,
		srv:          server.New(cfg, coord, mem, version, logger),
		hooks:        o.eventHooks,
		otelShutdown: otelShutdown,
	}

	coord.SetStatusProvider(app.statusProvider(o.statusProvider))
	if o.commandHandler != nil {
		handler := o.commandHandler
		coord.SetCommandHandler(func(cmd model.AgentCommand) {
			handler(toPublicCommand(cmd))
		})
	}

	return app, nil
}

// openStore selects the local persistence backend: a caller-provided
// LocalMemory, or the driver named by MURE_STORE_DRIVER.
func openStore(ctx context.Context, cfg config.Config, o resolvedOptions, logger *slog.Logger) (memory.LocalMemory, error) {
	if o.localMemory != nil {
		return &localMemoryAdapter{o.localMemory}, nil
	}
	switch cfg.StoreDriver {
	case "sqlite":
		return storage.NewSQLiteStore(cfg.SQLitePath, logger)
	case "postgres":
		return storage.NewPostgresStore(ctx, cfg.DatabaseURL, logger)
	case "memory":
		return storage.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("mure: unknown store driver %q", cfg.StoreDriver)
	}
}

// statusProvider bridges the public StatusProvider to the coordinator's
// callback, attaching the node's record counts.
func (a *App) statusProvider(fn StatusProvider) swarm.StatusProvider {
	return func() ([]model.AgentStatus, model.RuntimeMetrics) {
		var statuses []model.AgentStatus
		if fn != nil {
			for _, s := range fn() {
				statuses = append(statuses, model.AgentStatus{
					AgentID:      s.AgentID,
					Symbol:       s.Symbol,
					StrategyType: s.StrategyType,
					State:        s.State,
					PnL:          s.PnL,
				})
			}
		}
		local, remote, err := a.mem.Counts(context.Background())
		if err != nil {
			a.logger.Warn("record count for status report failed", "error", err)
		}
		return statuses, model.RuntimeMetrics{
			AgentCount:  len(statuses),
			RecordCount: local + remote,
		}
	}
}

// Run joins the swarm, starts the memory sync loop and the HTTP server, and
// blocks until ctx is cancelled or the server fails. It always performs a
// graceful Shutdown before returning.
func (a *App) Run(ctx context.Context) error {
	if len(a.hooks) > 0 {
		sub := a.broker.Subscribe()
		go a.dispatchHooks(sub)
	}

	if err := a.coord.Join(ctx); err != nil {
		return fmt.Errorf("mure: join swarm: %w", err)
	}
	if err := a.mem.Start(ctx); err != nil {
		return fmt.Errorf("mure: start memory: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	a.logger.Info("node running",
		"port", a.cfg.Port,
		"version", a.version,
		"bootstrap_peers", len(a.cfg.BootstrapPeers),
	)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		runErr = fmt.Errorf("mure: http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("shutdown incomplete", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// dispatchHooks delivers broker events to registered hooks. Hook failures
// are logged and never propagate.
func (a *App) dispatchHooks(sub chan events.Event) {
	for ev := range sub {
		pub := toPublicEvent(ev)
		for _, h := range a.hooks {
			if err := h.OnSwarmEvent(context.Background(), pub); err != nil {
				a.logger.Warn("event hook failed",
					"event", string(pub.Type),
					"peer_id", pub.PeerID,
					"error", err,
				)
			}
		}
	}
}

// Shutdown drains the HTTP server, flushes the replication outbox to
// whichever peers are still reachable, and tears the node down. Safe to
// call after Run has already shut down; phases that already ran are no-ops.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if err := a.srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	// Flush pending records before leaving. Best effort: peers may already
	// be gone.
	if a.coord.Joined() {
		flushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if _, err := a.mem.SyncWithPeers(flushCtx); err != nil && !errors.Is(err, memory.ErrNotStarted) {
			a.logger.Warn("final sync flush failed", "error", err)
		}
		cancel()
	}

	if err := a.mem.Stop(ctx); err != nil && !errors.Is(err, memory.ErrNotStarted) {
		errs = append(errs, fmt.Errorf("memory stop: %w", err))
	}
	if err := a.coord.Leave(ctx); err != nil && !errors.Is(err, swarm.ErrNotJoined) {
		errs = append(errs, fmt.Errorf("swarm leave: %w", err))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}
	a.broker.Close()
	if err := a.otelShutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}

	return errors.Join(errs...)
}

// JoinSwarm makes the node a swarm member and connects to the configured
// bootstrap peers. Use this instead of Run when embedding the App and
// serving its Handler yourself.
func (a *App) JoinSwarm(ctx context.Context) error {
	if err := a.coord.Join(ctx); err != nil {
		return err
	}
	return a.mem.Start(ctx)
}

// LeaveSwarm departs the mesh and stops replication. The peer registry is
// kept, so a later JoinSwarm resumes with the same accumulated peer view.
func (a *App) LeaveSwarm(ctx context.Context) error {
	if err := a.mem.Stop(ctx); err != nil && !errors.Is(err, memory.ErrNotStarted) {
		return err
	}
	return a.coord.Leave(ctx)
}

// ConnectToPeer dials address and adds the peer to the mesh. Returns the
// peer's node ID. Connecting to an already-connected address is a no-op
// returning the existing peer's ID.
func (a *App) ConnectToPeer(ctx context.Context, address string) (string, error) {
	return a.coord.ConnectToPeer(ctx, address)
}

// DisconnectFromPeer deliberately drops the connection to peerID.
// No reconnect is attempted; the peer's replicated records are retained.
func (a *App) DisconnectFromPeer(ctx context.Context, peerID string) error {
	return a.coord.DisconnectFromPeer(ctx, peerID)
}

// CoordinateNow runs one coordination cycle immediately instead of waiting
// for the next scheduled tick.
func (a *App) CoordinateNow(ctx context.Context) error {
	_, err := a.coord.CoordinateWithSwarm(ctx)
	return err
}

// SyncNow runs one replication pass immediately and reports the outcome.
func (a *App) SyncNow(ctx context.Context) (SyncReport, error) {
	res, err := a.mem.SyncWithPeers(ctx)
	if err != nil {
		return SyncReport{}, err
	}
	return SyncReport{
		Full:        res.OperationType == model.SyncFull,
		RecordCount: res.RecordCount,
		SyncedPeers: res.SyncedPeers,
		Success:     res.Success,
		Error:       res.Error,
		Timestamp:   res.Timestamp,
	}, nil
}

// RecordStrategyPerformance stores a strategy observation locally and queues
// it for replication. Node identity fields are stamped automatically.
func (a *App) RecordStrategyPerformance(ctx context.Context, rec StrategyRecord) error {
	return a.mem.RecordStrategyPerformance(ctx, fromPublicRecord(rec))
}

// QueryTopStrategies runs a federated query across the local store and all
// peer replicas, deduplicated and ranked per q.
func (a *App) QueryTopStrategies(ctx context.Context, q Query) ([]StrategyRecord, error) {
	recs, err := a.mem.QueryTopPerformingStrategies(ctx, fromPublicQuery(q))
	if err != nil {
		return nil, err
	}
	out := make([]StrategyRecord, len(recs))
	for i, r := range recs {
		out[i] = toPublicRecord(r)
	}
	return out, nil
}

// QueueCommand buffers an agent-control command for propagation on the next
// coordination cycle.
func (a *App) QueueCommand(cmd Command) error {
	return a.coord.QueueCommand(fromPublicCommand(cmd))
}

// ConnectedPeers returns the peers with a live connection.
func (a *App) ConnectedPeers() []Peer {
	return toPublicPeers(a.coord.ConnectedPeers())
}

// Peers returns every peer the node knows about, connected or not.
func (a *App) Peers() []Peer {
	return toPublicPeers(a.coord.AllPeers())
}

// Status reports the node's current swarm and memory state.
func (a *App) Status(ctx context.Context) Status {
	local, remote, err := a.mem.Counts(ctx)
	if err != nil {
		a.logger.Warn("record count for status failed", "error", err)
	}
	return Status{
		NodeID:         a.cfg.NodeID,
		Region:         a.cfg.Region,
		Joined:         a.coord.Joined(),
		ConnectedPeers: len(a.coord.ConnectedPeers()),
		KnownPeers:     len(a.coord.AllPeers()),
		LocalRecords:   local,
		RemoteRecords:  remote,
		LastSync:       a.mem.LastSyncTime(),
		Uptime:         a.coord.Uptime(),
	}
}

// Handler exposes the node's HTTP API for callers that embed the App in
// their own server instead of calling Run.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// sinkAdapter bridges a public TelemetrySink into the internal Sink.
type sinkAdapter struct {
	sink TelemetrySink
}

func (s sinkAdapter) Emit(ctx context.Context, event string, attrs map[string]any) {
	s.sink.Emit(ctx, event, attrs)
}

// localMemoryAdapter bridges a public LocalMemory into the internal
// persistence contract.
type localMemoryAdapter struct {
	mem LocalMemory
}

func (a *localMemoryAdapter) RecordStrategyPerformance(ctx context.Context, rec model.StrategyPerformanceRecord) error {
	return a.mem.RecordStrategyPerformance(ctx, toPublicRecord(rec))
}

func (a *localMemoryAdapter) QueryTopPerformingStrategies(ctx context.Context, q model.MemoryQuery) ([]model.StrategyPerformanceRecord, error) {
	recs, err := a.mem.QueryTopPerformingStrategies(ctx, toPublicQuery(q))
	if err != nil {
		return nil, err
	}
	out := make([]model.StrategyPerformanceRecord, len(recs))
	for i, r := range recs {
		out[i] = fromPublicRecord(r)
	}
	return out, nil
}

func (a *localMemoryAdapter) StrategyCount(ctx context.Context) (int, error) {
	return a.mem.StrategyCount(ctx)
}

func (a *localMemoryAdapter) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return a.mem.DeleteOlderThan(ctx, cutoff)
}

func (a *localMemoryAdapter) Close() error {
	return a.mem.Close()
}

func toPublicPeers(peers []model.PeerInfo) []Peer {
	out := make([]Peer, len(peers))
	for i, p := range peers {
		out[i] = Peer{
			ID:              p.ID,
			Region:          p.Region,
			Address:         p.Address,
			LastSeen:        p.LastSeen,
			AgentCount:      p.AgentCount,
			ProtocolVersion: p.ProtocolVersion,
			State:           PeerState(p.Status),
		}
	}
	return out
}

func toPublicEvent(ev events.Event) Event {
	return Event{
		Type:      EventType(ev.Type),
		PeerID:    ev.PeerID,
		Address:   ev.Address,
		Region:    ev.Region,
		PeerCount: ev.PeerCount,
		Timestamp: ev.Timestamp,
	}
}

func fromPublicRecord(r StrategyRecord) model.StrategyPerformanceRecord {
	return model.StrategyPerformanceRecord{
		StrategyID:   r.StrategyID,
		StrategyType: r.StrategyType,
		Symbol:       r.Symbol,
		RegimeType:   r.RegimeType,
		Parameters:   r.Parameters,
		Metrics:      model.StrategyMetrics(r.Metrics),
		Timestamp:    r.Timestamp,
		NodeID:       r.NodeID,
		Region:       r.Region,
	}
}

func toPublicRecord(r model.StrategyPerformanceRecord) StrategyRecord {
	return StrategyRecord{
		StrategyID:   r.StrategyID,
		StrategyType: r.StrategyType,
		Symbol:       r.Symbol,
		RegimeType:   r.RegimeType,
		Parameters:   r.Parameters,
		Metrics:      StrategyMetrics(r.Metrics),
		Timestamp:    r.Timestamp,
		NodeID:       r.NodeID,
		Region:       r.Region,
	}
}

func fromPublicQuery(q Query) model.MemoryQuery {
	return model.MemoryQuery{
		Symbol:              q.Symbol,
		RegimeType:          q.RegimeType,
		StrategyType:        q.StrategyType,
		MinPerformanceScore: q.MinPerformanceScore,
		NodeID:              q.NodeID,
		Region:              q.Region,
		Limit:               q.Limit,
		SortBy:              model.SortBy(q.SortBy),
	}
}

func toPublicQuery(q model.MemoryQuery) Query {
	return Query{
		Symbol:              q.Symbol,
		RegimeType:          q.RegimeType,
		StrategyType:        q.StrategyType,
		MinPerformanceScore: q.MinPerformanceScore,
		NodeID:              q.NodeID,
		Region:              q.Region,
		Limit:               q.Limit,
		SortBy:              SortOrder(q.SortBy),
	}
}

func fromPublicCommand(c Command) model.AgentCommand {
	return model.AgentCommand{
		ID:           c.ID,
		Type:         model.CommandType(c.Type),
		Payload:      c.Payload,
		Timestamp:    c.Timestamp,
		SourceNodeID: c.SourceNodeID,
	}
}

func toPublicCommand(c model.AgentCommand) Command {
	return Command{
		ID:           c.ID,
		Type:         CommandType(c.Type),
		Payload:      c.Payload,
		Timestamp:    c.Timestamp,
		SourceNodeID: c.SourceNodeID,
	}
}
