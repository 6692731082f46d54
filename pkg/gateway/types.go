// Package gateway exposes the session operations to UI clients over
// WebSocket and single-shot HTTP JSON-RPC. Clients authenticate with a
// shared secret; WebSocket clients additionally receive broadcast events
// for auto-saves, crash recoveries, and session mutations.
package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// RPCRequest represents a JSON-RPC 2.0 request. Method carries the action
// name (saveSession, getAllSessions, restoreSession, deleteSession,
// updateScrollPosition).
type RPCRequest struct {
	ID      string                 `json:"id"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params,omitempty"`
	JSONRPC string                 `json:"jsonrpc"`
}

// RPCResponse represents a JSON-RPC 2.0 response.
type RPCResponse struct {
	ID      string      `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
	JSONRPC string      `json:"jsonrpc"`
}

// RPCError represents a JSON-RPC 2.0 error. Message is surfaced verbatim
// by calling UIs.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return e.Message
}

// EventMessage represents a server-initiated event.
type EventMessage struct {
	Type      string      `json:"type"`
	Event     string      `json:"event"`
	Seq       int64       `json:"seq,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// AuthChallenge represents an authentication challenge message.
type AuthChallenge struct {
	Event     string `json:"event"`
	Challenge string `json:"challenge"`
}

// AuthResponse represents a client's authentication response.
type AuthResponse struct {
	Method    string `json:"method"`
	Signature string `json:"signature"`
}

// AuthResult represents the result of authentication.
type AuthResult struct {
	Event   string `json:"event"`
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}

// ClientState represents the state of a client connection.
type ClientState int

const (
	StateConnecting ClientState = iota
	StateAuthenticating
	StateAuthenticated
	StateDisconnected
)

// RequestHandler handles one RPC method. Params have already passed schema
// validation when the method declares a schema.
type RequestHandler func(params map[string]interface{}) (interface{}, error)

// RPC error codes.
const (
	ParseError             = -32700
	InvalidRequest         = -32600
	MethodNotFound         = -32601
	InvalidParams          = -32602
	InternalError          = -32603
	AuthenticationRequired = -32001
	SessionNotFound        = -32004
)

// Client represents a connected WebSocket client. Authentication and
// activity state is mutated by the per-client read goroutine and read by
// the broadcaster and registry, so it lives behind the client's own mutex.
type Client struct {
	ID          string
	Conn        *websocket.Conn
	ConnectedAt time.Time
	IPAddress   string

	mu            sync.Mutex
	authenticated bool
	challenge     string
	lastActivity  time.Time
	authAttempts  int
	state         ClientState

	writeMu sync.Mutex
}

func newClient(id string, conn *websocket.Conn, ipAddress string) *Client {
	now := time.Now()
	return &Client{
		ID:           id,
		Conn:         conn,
		ConnectedAt:  now,
		IPAddress:    ipAddress,
		lastActivity: now,
		state:        StateConnecting,
	}
}

// WriteJSON sends a JSON message to the client. Safe for concurrent use;
// gorilla/websocket allows only one concurrent writer per connection.
func (c *Client) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}

// IsAuthenticated reports whether the client passed the challenge.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// State returns the connection state.
func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// beginAuth arms a fresh single-use challenge.
func (c *Client) beginAuth(challenge string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.challenge = challenge
	c.state = StateAuthenticating
}

func (c *Client) challengeValue() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.challenge
}

// failAuth counts a failed attempt and returns the running total.
func (c *Client) failAuth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authAttempts++
	return c.authAttempts
}

func (c *Client) authAttemptCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authAttempts
}

// completeAuth marks the client authenticated and consumes the challenge.
func (c *Client) completeAuth() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticated = true
	c.state = StateAuthenticated
	c.authAttempts = 0
	c.challenge = ""
}

func (c *Client) touchActivity() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = time.Now()
}

// Info returns a point-in-time snapshot for status reporting.
func (c *Client) Info() ClientInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ClientInfo{
		ID:            c.ID,
		Authenticated: c.authenticated,
		ConnectedAt:   c.ConnectedAt,
		LastActivity:  c.lastActivity,
		IPAddress:     c.IPAddress,
	}
}

// ClientInfo represents information about a connected client.
type ClientInfo struct {
	ID            string    `json:"id"`
	Authenticated bool      `json:"authenticated"`
	ConnectedAt   time.Time `json:"connectedAt"`
	LastActivity  time.Time `json:"lastActivity"`
	IPAddress     string    `json:"ipAddress"`
}
