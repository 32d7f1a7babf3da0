package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mure-ai/mure/internal/config"
	"github.com/mure-ai/mure/internal/memory"
	"github.com/mure-ai/mure/internal/model"
	"github.com/mure-ai/mure/internal/swarm"
)

type handlers struct {
	cfg     config.Config
	coord   *swarm.Coordinator
	mem     *memory.Distributed
	version string
	logger  *slog.Logger
	started time.Time
}

// handleCoordinate processes one coordination exchange from a peer.
func (h *handlers) handleCoordinate(w http.ResponseWriter, r *http.Request) {
	var req model.CoordinationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.NodeID == "" {
		writeError(w, http.StatusBadRequest, "nodeId is required")
		return
	}

	resp, err := h.coord.HandleCoordination(r.Context(), req)
	if err != nil {
		if errors.Is(err, swarm.ErrNotJoined) {
			writeError(w, http.StatusServiceUnavailable, "node has not joined the swarm")
			return
		}
		h.logger.Error("coordination handler", "error", err, "peerId", req.NodeID)
		writeError(w, http.StatusInternalServerError, "coordination failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSync processes one memory-sync exchange from a peer.
func (h *handlers) handleSync(w http.ResponseWriter, r *http.Request) {
	var req model.SyncRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.NodeID == "" {
		writeError(w, http.StatusBadRequest, "nodeId is required")
		return
	}

	resp, err := h.mem.HandleSync(r.Context(), req)
	if err != nil {
		if errors.Is(err, memory.ErrNotStarted) {
			writeError(w, http.StatusServiceUnavailable, "memory is not started")
			return
		}
		h.logger.Error("sync handler", "error", err, "peerId", req.NodeID)
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePing answers the dial liveness probe with the node's identity.
func (h *handlers) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.PingResponse{
		NodeID:          h.cfg.NodeID,
		Region:          h.cfg.Region,
		ProtocolVersion: h.cfg.ProtocolVersion,
	})
}

type peersResponse struct {
	Peers []model.PeerInfo `json:"peers"`
}

// handlePeers returns the full peer registry, connected or not.
func (h *handlers) handlePeers(w http.ResponseWriter, r *http.Request) {
	peers := h.coord.AllPeers()
	if peers == nil {
		peers = []model.PeerInfo{}
	}
	writeJSON(w, http.StatusOK, peersResponse{Peers: peers})
}

type healthResponse struct {
	Status         string    `json:"status"`
	NodeID         string    `json:"nodeId"`
	Region         string    `json:"region"`
	Version        string    `json:"version"`
	Joined         bool      `json:"joined"`
	ConnectedPeers int       `json:"connectedPeers"`
	LocalRecords   int       `json:"localRecords"`
	RemoteRecords  int       `json:"remoteRecords"`
	UptimeSeconds  float64   `json:"uptimeSeconds"`
	Timestamp      time.Time `json:"timestamp"`
}

// handleHealth reports node liveness and swarm state.
func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	local, remote, err := h.mem.Counts(r.Context())
	if err != nil {
		h.logger.Warn("health: record counts", "error", err)
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		NodeID:         h.cfg.NodeID,
		Region:         h.cfg.Region,
		Version:        h.version,
		Joined:         h.coord.Joined(),
		ConnectedPeers: len(h.coord.ConnectedPeers()),
		LocalRecords:   local,
		RemoteRecords:  remote,
		UptimeSeconds:  time.Since(h.started).Seconds(),
		Timestamp:      time.Now().UTC(),
	})
}
