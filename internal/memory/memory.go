// Package memory implements the distributed alpha memory: a local
// strategy-performance store replicated across swarm peers through periodic
// sync exchanges, with federated queries over the local store and the
// per-peer remote caches.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mure-ai/mure/internal/config"
	"github.com/mure-ai/mure/internal/events"
	"github.com/mure-ai/mure/internal/model"
	"github.com/mure-ai/mure/internal/telemetry"
	"github.com/mure-ai/mure/internal/transport"
)

var (
	// ErrNotStarted is returned by operations invoked before Start.
	ErrNotStarted = errors.New("memory: not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("memory: already started")
)

// LocalMemory is the persistence contract for this node's own strategy
// records. The storage package provides SQLite, Postgres, and in-memory
// implementations.
type LocalMemory interface {
	RecordStrategyPerformance(ctx context.Context, rec model.StrategyPerformanceRecord) error
	QueryTopPerformingStrategies(ctx context.Context, q model.MemoryQuery) ([]model.StrategyPerformanceRecord, error)
	StrategyCount(ctx context.Context) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// ConnSource exposes the coordinator's live peer connections to the sync
// machinery.
type ConnSource interface {
	Connections() map[string]transport.PeerConn
}

// Distributed is the replicated alpha memory for one node. Remote records
// live in per-peer caches and are never written to the local store; they are
// retained when a peer disconnects so its knowledge survives the outage.
type Distributed struct {
	cfg    config.Config
	logger *slog.Logger
	store  LocalMemory
	peers  ConnSource
	broker *events.Broker
	sink   telemetry.Sink

	// fastSyncDelay is how long after a peer connects the targeted sync
	// fires, giving the peer's server loop time to settle.
	fastSyncDelay time.Duration

	mu       sync.Mutex
	started  bool
	outbox   map[string]model.StrategyPerformanceRecord // composite key -> pending record
	remote   map[string]map[string]model.StrategyPerformanceRecord
	lastSync time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewDistributed creates a stopped distributed memory over store.
func NewDistributed(cfg config.Config, store LocalMemory, peers ConnSource, broker *events.Broker, sink telemetry.Sink, logger *slog.Logger) *Distributed {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &Distributed{
		cfg:           cfg,
		logger:        logger.With("component", "memory"),
		store:         store,
		peers:         peers,
		broker:        broker,
		sink:          sink,
		fastSyncDelay: time.Second,
		outbox:        make(map[string]model.StrategyPerformanceRecord),
		remote:        make(map[string]map[string]model.StrategyPerformanceRecord),
	}
}

// Start launches the periodic sync loop, the record-expiry janitor, and the
// peer-event watcher that triggers a fast targeted sync when a peer connects.
func (d *Distributed) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.started = true
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d.cancel = cancel
	d.done = done
	d.mu.Unlock()

	sub := d.broker.Subscribe()
	go d.run(loopCtx, done, sub)

	d.logger.Info("distributed memory started",
		"syncInterval", d.cfg.SyncInterval, "recordTtl", d.cfg.RecordTTL)
	return nil
}

// Stop halts the background loops. The local store remains open; closing it
// is the owner's responsibility.
func (d *Distributed) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return ErrNotStarted
	}
	d.started = false
	cancel := d.cancel
	done := d.done
	d.cancel = nil
	d.done = nil
	d.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
	}
	d.logger.Info("distributed memory stopped")
	return nil
}

// RecordStrategyPerformance validates and stores a locally produced record,
// then queues it for replication on the next sync cycle. The local write
// always happens first; replication failure never loses local data.
func (d *Distributed) RecordStrategyPerformance(ctx context.Context, rec model.StrategyPerformanceRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.NodeID == "" {
		rec.NodeID = d.cfg.NodeID
	}
	if rec.Region == "" {
		rec.Region = d.cfg.Region
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return ErrNotStarted
	}
	d.mu.Unlock()

	if err := d.store.RecordStrategyPerformance(ctx, rec); err != nil {
		return fmt.Errorf("memory: local write: %w", err)
	}

	key := rec.CompositeKey()
	d.mu.Lock()
	if cur, ok := d.outbox[key]; !ok || rec.Supersedes(cur) {
		d.outbox[key] = rec
	}
	d.mu.Unlock()

	d.sink.Emit(ctx, "strategy_performance_recorded", map[string]any{
		"strategyType": rec.StrategyType,
		"symbol":       rec.Symbol,
		"overallScore": rec.Metrics.OverallScore,
	})
	d.logger.Debug("strategy performance recorded",
		"strategyId", rec.StrategyID, "symbol", rec.Symbol,
		"score", model.FormatScore(rec.Metrics.OverallScore))
	return nil
}

// SyncWithPeers runs one replication pass against every connected peer.
// A pass is full when the node has never synced or has been out of sync
// longer than the full-resync threshold; otherwise it is incremental and
// ships only the outbox. Per-peer failures are isolated and reported in the
// result rather than aborting the pass.
func (d *Distributed) SyncWithPeers(ctx context.Context) (*model.SyncResult, error) {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil, ErrNotStarted
	}
	full := d.lastSync.IsZero() || time.Since(d.lastSync) > d.cfg.FullResyncThreshold
	outboxSnapshot := make([]model.StrategyPerformanceRecord, 0, len(d.outbox))
	for _, rec := range d.outbox {
		outboxSnapshot = append(outboxSnapshot, rec)
	}
	var relayed []model.StrategyPerformanceRecord
	if full && d.cfg.ReplicateAll {
		// Relay what we know from other nodes too, so knowledge spreads
		// through partially connected meshes.
		for _, cache := range d.remote {
			for _, rec := range cache {
				relayed = append(relayed, rec)
			}
		}
	}
	d.mu.Unlock()

	var batch []model.StrategyPerformanceRecord
	if full {
		own, err := d.store.QueryTopPerformingStrategies(ctx, model.MemoryQuery{NodeID: d.cfg.NodeID})
		if err != nil {
			return nil, fmt.Errorf("memory: load local records: %w", err)
		}
		batch = model.DedupRecords(append(own, relayed...))
	} else {
		batch = outboxSnapshot
	}
	batch = capBatch(batch, d.cfg.MaxSyncBatchSize)

	op := model.SyncIncremental
	if full {
		op = model.SyncFull
	}
	result := &model.SyncResult{
		OperationType: op,
		RecordCount:   len(batch),
		Timestamp:     time.Now(),
		Success:       true,
	}

	conns := d.peers.Connections()
	if len(conns) == 0 {
		// Nothing to send to; the outbox is retained for when peers appear.
		result.RecordCount = 0
		return result, nil
	}

	req := model.SyncRequest{
		NodeID:    d.cfg.NodeID,
		Region:    d.cfg.Region,
		Timestamp: result.Timestamp,
		Full:      full,
		Records:   batch,
	}

	var (
		resMu     sync.Mutex
		responses = make(map[string]*model.SyncResponse, len(conns))
		failures  []string
		g         errgroup.Group
	)
	for id, conn := range conns {
		g.Go(func() error {
			resp, err := conn.Sync(ctx, req)
			resMu.Lock()
			defer resMu.Unlock()
			if err != nil {
				failures = append(failures, fmt.Sprintf("peer %s: %v", id, err))
				return nil
			}
			responses[id] = resp
			return nil
		})
	}
	_ = g.Wait()

	d.mu.Lock()
	for id, resp := range responses {
		d.mergeRemoteLocked(id, resp.Records)
		result.SyncedPeers = append(result.SyncedPeers, id)
	}
	if len(responses) > 0 {
		// Shipped records leave the outbox once at least one peer has them.
		for _, rec := range batch {
			key := rec.CompositeKey()
			if cur, ok := d.outbox[key]; ok && !cur.Supersedes(rec) {
				delete(d.outbox, key)
			}
		}
	}
	if len(failures) == 0 {
		d.lastSync = result.Timestamp
	}
	d.mu.Unlock()

	sort.Strings(result.SyncedPeers)
	if len(failures) > 0 {
		result.Success = false
		result.Error = strings.Join(failures, "; ")
	}

	event := "memory_sync_completed"
	if !result.Success {
		event = "memory_sync_failed"
	}
	d.sink.Emit(ctx, event, map[string]any{
		"operation":   string(op),
		"recordCount": result.RecordCount,
		"peersSynced": len(result.SyncedPeers),
		"peersFailed": len(failures),
	})
	d.logger.Debug("sync pass complete", "operation", op,
		"recordCount", result.RecordCount,
		"peersSynced", len(result.SyncedPeers), "peersFailed", len(failures))
	return result, nil
}

// HandleSync processes an inbound sync request: it folds the sender's
// records into that peer's cache and answers with this node's own records.
func (d *Distributed) HandleSync(ctx context.Context, req model.SyncRequest) (*model.SyncResponse, error) {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil, ErrNotStarted
	}
	d.mergeRemoteLocked(req.NodeID, req.Records)
	d.mu.Unlock()

	q := model.MemoryQuery{NodeID: d.cfg.NodeID, SortBy: model.SortByRecency}
	if !req.Full {
		q.Limit = d.cfg.MaxSyncBatchSize
	}
	records, err := d.store.QueryTopPerformingStrategies(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("memory: load local records: %w", err)
	}
	return &model.SyncResponse{Status: model.StatusSuccess, Records: records}, nil
}

// QueryTopPerformingStrategies federates a query across the local store and
// every remote cache, collapses records sharing a composite key to the
// best-scoring copy, sorts by the requested order, and applies the limit.
// A query pinned to a remote node or region reads only the remote caches.
func (d *Distributed) QueryTopPerformingStrategies(ctx context.Context, q model.MemoryQuery) ([]model.StrategyPerformanceRecord, error) {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil, ErrNotStarted
	}
	var candidates []model.StrategyPerformanceRecord
	for _, cache := range d.remote {
		for _, rec := range cache {
			if q.Matches(rec) {
				candidates = append(candidates, rec)
			}
		}
	}
	pinned := q.Pinned(d.cfg.NodeID, d.cfg.Region)
	d.mu.Unlock()

	if !pinned {
		unlimited := q
		unlimited.Limit = 0
		local, err := d.store.QueryTopPerformingStrategies(ctx, unlimited)
		if err != nil {
			return nil, fmt.Errorf("memory: local query: %w", err)
		}
		candidates = append(candidates, local...)
	}

	out := model.DedupRecords(candidates)
	model.SortRecords(out, q.SortBy)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Counts returns the number of locally stored records and the number of
// records held in remote caches.
func (d *Distributed) Counts(ctx context.Context) (local, remote int, err error) {
	local, err = d.store.StrategyCount(ctx)
	if err != nil {
		return 0, 0, err
	}
	d.mu.Lock()
	for _, cache := range d.remote {
		remote += len(cache)
	}
	d.mu.Unlock()
	return local, remote, nil
}

// LastSyncTime returns when the last fully successful sync pass completed.
// Zero if the node has never synced.
func (d *Distributed) LastSyncTime() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSync
}

// run drives the periodic sync, the expiry janitor, and peer-event handling.
func (d *Distributed) run(ctx context.Context, done chan struct{}, sub chan events.Event) {
	defer close(done)
	defer d.broker.Unsubscribe(sub)

	syncTicker := time.NewTicker(d.cfg.SyncInterval)
	defer syncTicker.Stop()

	janitor := time.NewTicker(time.Hour)
	defer janitor.Stop()

	// Pending fast-sync timers, stopped in one pass when the loop exits.
	var fastSyncs []*time.Timer
	defer func() {
		for _, t := range fastSyncs {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-syncTicker.C:
			if _, err := d.SyncWithPeers(ctx); err != nil {
				d.logger.Warn("sync pass", "error", err)
			}
		case <-janitor.C:
			d.pruneExpired(ctx)
		case ev, ok := <-sub:
			if !ok {
				return
			}
			switch ev.Type {
			case events.PeerConnected, events.PeerReconnected:
				peerID := ev.PeerID
				fastSyncs = append(fastSyncs, time.AfterFunc(d.fastSyncDelay, func() {
					d.syncPeer(ctx, peerID)
				}))
			case events.PeerDisconnected:
				// The peer's cache is retained; its knowledge outlives
				// the connection.
				d.logger.Debug("peer cache retained", "peerId", ev.PeerID)
			}
		}
	}
}

// syncPeer runs a targeted exchange with a single peer, giving a newly
// connected node the local record set without waiting for the next cycle.
func (d *Distributed) syncPeer(ctx context.Context, peerID string) {
	conn, ok := d.peers.Connections()[peerID]
	if !ok {
		return
	}

	records, err := d.store.QueryTopPerformingStrategies(ctx, model.MemoryQuery{
		NodeID: d.cfg.NodeID,
		SortBy: model.SortByRecency,
		Limit:  d.cfg.MaxSyncBatchSize,
	})
	if err != nil {
		d.logger.Warn("targeted sync: load local records", "peerId", peerID, "error", err)
		return
	}

	resp, err := conn.Sync(ctx, model.SyncRequest{
		NodeID:    d.cfg.NodeID,
		Region:    d.cfg.Region,
		Timestamp: time.Now(),
		Full:      true,
		Records:   records,
	})
	if err != nil {
		d.logger.Warn("targeted sync failed", "peerId", peerID, "error", err)
		d.sink.Emit(ctx, "memory_sync_failed", map[string]any{"operation": "targeted", "peerId": peerID})
		return
	}

	d.mu.Lock()
	d.mergeRemoteLocked(peerID, resp.Records)
	d.mu.Unlock()

	d.sink.Emit(ctx, "memory_sync_completed", map[string]any{
		"operation":   string(model.SyncTargeted),
		"peerId":      peerID,
		"recordCount": len(records),
	})
	d.logger.Info("targeted sync complete", "peerId", peerID,
		"sent", len(records), "received", len(resp.Records))
}

// pruneExpired expires remote-cache records past the TTL and trims the
// local store to the same horizon.
func (d *Distributed) pruneExpired(ctx context.Context) {
	cutoff := time.Now().Add(-d.cfg.RecordTTL)

	var pruned int
	d.mu.Lock()
	for peerID, cache := range d.remote {
		for key, rec := range cache {
			if rec.Timestamp.Before(cutoff) {
				delete(cache, key)
				pruned++
			}
		}
		if len(cache) == 0 {
			delete(d.remote, peerID)
		}
	}
	d.mu.Unlock()

	deleted, err := d.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		d.logger.Warn("expire local records", "error", err)
	}
	if pruned > 0 || deleted > 0 {
		d.logger.Info("expired records", "remote", pruned, "local", deleted)
	}
}

// mergeRemoteLocked folds records into the sender's cache, keeping the
// superseding copy per composite key. Records originating from this node
// are skipped. Caller holds d.mu.
func (d *Distributed) mergeRemoteLocked(peerID string, records []model.StrategyPerformanceRecord) {
	if peerID == "" || len(records) == 0 {
		return
	}
	cache, ok := d.remote[peerID]
	if !ok {
		cache = make(map[string]model.StrategyPerformanceRecord, len(records))
		d.remote[peerID] = cache
	}
	for _, rec := range records {
		if rec.NodeID == d.cfg.NodeID {
			continue
		}
		key := rec.CompositeKey()
		if cur, exists := cache[key]; !exists || rec.Supersedes(cur) {
			cache[key] = rec
		}
	}
}

// capBatch limits a sync batch to n records, oldest first so long-queued
// records ship before fresh ones.
func capBatch(recs []model.StrategyPerformanceRecord, n int) []model.StrategyPerformanceRecord {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Timestamp.Before(recs[j].Timestamp)
	})
	if n > 0 && len(recs) > n {
		return recs[:n]
	}
	return recs
}
