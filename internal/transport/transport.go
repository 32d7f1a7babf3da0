// Package transport dials swarm peers and exchanges coordination and
// memory-sync messages with them over JSON/HTTP.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mure-ai/mure/internal/model"
)

// PeerConn is an established connection to a single swarm peer.
// All methods are safe for concurrent use.
type PeerConn interface {
	// Address returns the base address this connection was dialed with.
	Address() string

	// Coordinate sends a coordination request and returns the peer's response.
	Coordinate(ctx context.Context, req model.CoordinationRequest) (*model.CoordinationResponse, error)

	// Sync pushes strategy performance records to the peer and returns
	// the records the peer sent back.
	Sync(ctx context.Context, req model.SyncRequest) (*model.SyncResponse, error)

	// Ping checks peer liveness and returns its identity.
	Ping(ctx context.Context) (*model.PingResponse, error)

	// Close releases any resources held by the connection.
	Close() error
}

// Dialer establishes connections to peers by address.
type Dialer interface {
	Dial(ctx context.Context, address string) (PeerConn, error)
}

// Error is a transport-level failure talking to a peer.
type Error struct {
	Address    string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transport: %s returned %d: %s", e.Address, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("transport: %s: %s", e.Address, e.Message)
}

// HTTPDialer dials peers that expose the swarm HTTP endpoints. A single
// underlying http.Client is shared across all connections it creates.
type HTTPDialer struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPDialer creates a dialer whose per-exchange timeout defaults to
// 5 seconds when timeout is zero.
func NewHTTPDialer(timeout time.Duration) *HTTPDialer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPDialer{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Dial verifies the peer at address responds to a ping and returns a
// connection to it. The address may omit the scheme; http is assumed.
func (d *HTTPDialer) Dial(ctx context.Context, address string) (PeerConn, error) {
	if address == "" {
		return nil, &Error{Message: "address is required"}
	}
	base := address
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	base = strings.TrimRight(base, "/")

	conn := &httpPeerConn{
		address: address,
		baseURL: base,
		client:  d.client,
		timeout: d.timeout,
	}
	if _, err := conn.Ping(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

type httpPeerConn struct {
	address string
	baseURL string
	client  *http.Client
	timeout time.Duration
}

func (c *httpPeerConn) Address() string { return c.address }

func (c *httpPeerConn) Coordinate(ctx context.Context, req model.CoordinationRequest) (*model.CoordinationResponse, error) {
	var resp model.CoordinationResponse
	if err := c.post(ctx, "/v1/swarm/coordinate", req, &resp); err != nil {
		return nil, err
	}
	if resp.Status == model.StatusError {
		return nil, &Error{Address: c.address, Message: resp.Error}
	}
	return &resp, nil
}

func (c *httpPeerConn) Sync(ctx context.Context, req model.SyncRequest) (*model.SyncResponse, error) {
	var resp model.SyncResponse
	if err := c.post(ctx, "/v1/memory/sync", req, &resp); err != nil {
		return nil, err
	}
	if resp.Status == model.StatusError {
		return nil, &Error{Address: c.address, Message: resp.Error}
	}
	return &resp, nil
}

func (c *httpPeerConn) Ping(ctx context.Context) (*model.PingResponse, error) {
	var resp model.PingResponse
	if err := c.get(ctx, "/v1/swarm/ping", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpPeerConn) Close() error { return nil }

func (c *httpPeerConn) post(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("transport: marshal request body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("transport: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, dest)
}

func (c *httpPeerConn) get(ctx context.Context, path string, dest any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("transport: create request: %w", err)
	}

	return c.doRequest(req, dest)
}

func (c *httpPeerConn) doRequest(req *http.Request, dest any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Address: c.address, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Address: c.address, Message: "read response body: " + err.Error()}
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(c.address, resp.StatusCode, bodyBytes)
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, dest); err != nil {
		return &Error{Address: c.address, Message: "decode response: " + err.Error()}
	}
	return nil
}

// errorEnvelope is the standard error response body of swarm endpoints.
type errorEnvelope struct {
	Error string `json:"error"`
}

func parseErrorResponse(address string, statusCode int, body []byte) *Error {
	e := &Error{Address: address, StatusCode: statusCode}

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		e.Message = envelope.Error
	} else {
		e.Message = string(body)
	}
	return e
}
