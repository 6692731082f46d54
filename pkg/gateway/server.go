package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/sessionguard/sessionguard/internal/metrics"
)

// secretHeader authenticates single-shot HTTP RPC requests.
const secretHeader = "X-SessionGuard-Secret"

// Server exposes the session actions over WebSocket (/ws) and single-shot
// HTTP JSON-RPC (/rpc), plus /metrics and /healthz.
type Server struct {
	port         int
	sharedSecret string
	server       *http.Server
	upgrader     websocket.Upgrader
	clients      *ClientRegistry
	router       *RPCRouter
	authHandler  *AuthHandler
	broadcaster  *EventBroadcaster
	service      SessionService
	logger       zerolog.Logger

	baseCtx        context.Context
	baseCancel     context.CancelFunc
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// Config holds server configuration.
type Config struct {
	Port         int
	SharedSecret string
	Service      SessionService
	Logger       zerolog.Logger
}

// NewServer creates a gateway server.
func NewServer(cfg Config) (*Server, error) {
	metrics.EnsureRegistered()

	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.SharedSecret == "" {
		return nil, fmt.Errorf("shared secret is required")
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("session service is required")
	}

	clients := NewClientRegistry()
	baseCtx, baseCancel := context.WithCancel(context.Background())

	s := &Server{
		port:         cfg.Port,
		sharedSecret: cfg.SharedSecret,
		clients:      clients,
		router:       NewRPCRouter(),
		authHandler:  NewAuthHandler(cfg.SharedSecret),
		broadcaster:  NewEventBroadcaster(clients, cfg.Logger),
		service:      cfg.Service,
		logger:       cfg.Logger,
		baseCtx:      baseCtx,
		baseCancel:   baseCancel,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Local-only daemon; the shared secret gates access.
				return true
			},
		},
	}

	s.registerSessionMethods()

	return s, nil
}

// Start starts the server. It returns once the listener goroutine is
// running.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/rpc", s.handleRPC)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.server = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler: mux,
	}

	s.logger.Info().Int("port", s.port).Msg("Starting gateway")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Stop gracefully stops the server, waiting briefly for in-flight
// requests.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway")
	s.broadcaster.Broadcast("server.shutdown", map[string]interface{}{
		"message": "Server is shutting down",
	})

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	s.baseCancel()

	for _, client := range s.clients.GetAll() {
		client.Conn.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Gateway stopped")
	return nil
}

// Broadcast sends an event to all authenticated WebSocket clients.
func (s *Server) Broadcast(event string, data interface{}) {
	s.broadcaster.Broadcast(event, data)
}

// ConnectedClients returns information about connected clients.
func (s *Server) ConnectedClients() []ClientInfo {
	return s.clients.ConnectedClients()
}

// requestContext is the parent context for handler work; canceled when the
// server stops.
func (s *Server) requestContext() context.Context {
	return s.baseCtx
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, _ := gonanoid.New()
	client := newClient(clientID, conn, r.RemoteAddr)

	s.clients.Add(client)
	s.logger.Info().Str("client_id", clientID).Str("ip", r.RemoteAddr).Msg("Client connected")

	if err := s.sendAuthChallenge(client); err != nil {
		s.logger.Error().Err(err).Str("client_id", clientID).Msg("Failed to send auth challenge")
		conn.Close()
		s.clients.Remove(clientID)
		return
	}

	go s.handleClient(client)
}

func (s *Server) sendAuthChallenge(client *Client) error {
	challenge, err := s.authHandler.GenerateChallenge()
	if err != nil {
		return err
	}

	client.beginAuth(challenge)

	return client.WriteJSON(AuthChallenge{
		Event:     "auth.challenge",
		Challenge: challenge,
	})
}

func (s *Server) handleClient(client *Client) {
	defer func() {
		client.Conn.Close()
		s.clients.Remove(client.ID)
		s.logger.Info().Str("client_id", client.ID).Msg("Client disconnected")
	}()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error().Err(err).Str("client_id", client.ID).Msg("WebSocket error")
			}
			break
		}

		s.clients.UpdateActivity(client.ID)
		s.handleMessage(client, message)
	}
}

func (s *Server) handleMessage(client *Client, message []byte) {
	var authResp AuthResponse
	if err := json.Unmarshal(message, &authResp); err == nil && authResp.Method == "auth.response" {
		s.handleAuthMessage(client, authResp)
		return
	}

	if !client.IsAuthenticated() {
		s.sendError(client, "", AuthenticationRequired, "Authentication required")
		return
	}

	req, err := s.router.ParseRequest(message)
	if err != nil {
		if rpcErr, ok := err.(*RPCError); ok {
			s.sendError(client, "", rpcErr.Code, rpcErr.Message)
		} else {
			s.sendError(client, "", ParseError, err.Error())
		}
		return
	}

	s.inFlightReqs.Add(1)
	go func() {
		defer s.inFlightReqs.Done()

		response := s.router.RouteRequest(req)
		if err := client.WriteJSON(response); err != nil {
			s.logger.Error().
				Err(err).
				Str("client_id", client.ID).
				Str("request_id", req.ID).
				Msg("Failed to send response")
		}
	}()
}

func (s *Server) handleAuthMessage(client *Client, authResp AuthResponse) {
	result := s.authHandler.HandleAuthResponse(client, authResp.Signature)

	if err := client.WriteJSON(result); err != nil {
		s.logger.Error().Err(err).Str("client_id", client.ID).Msg("Failed to send auth result")
		return
	}

	if !result.Success {
		s.logger.Warn().
			Str("client_id", client.ID).
			Str("reason", result.Message).
			Msg("Authentication failed")

		if client.authAttemptCount() >= 3 {
			client.Conn.Close()
		}
		return
	}

	s.logger.Info().Str("client_id", client.ID).Msg("Client authenticated")
}

// handleRPC handles single-shot HTTP JSON-RPC requests.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.Header.Get(secretHeader) != s.sharedSecret {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	req, err := s.router.ParseRequest(body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(RPCResponse{
			JSONRPC: "2.0",
			Error:   asRPCError(err),
		})
		return
	}

	traceID := r.Header.Get("X-Trace-Id")
	if traceID == "" {
		traceID = uuid.NewString()
	}

	s.logger.Debug().
		Str("trace_id", traceID).
		Str("request_id", req.ID).
		Str("method", req.Method).
		Msg("HTTP RPC request")

	s.inFlightReqs.Add(1)
	resp := s.router.RouteRequest(req)
	s.inFlightReqs.Done()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode RPC response")
	}
}

func (s *Server) sendError(client *Client, requestID string, code int, message string) {
	response := RPCResponse{
		ID:      requestID,
		JSONRPC: "2.0",
		Error: &RPCError{
			Code:    code,
			Message: message,
		},
	}

	if err := client.WriteJSON(response); err != nil {
		s.logger.Error().
			Err(err).
			Str("client_id", client.ID).
			Msg("Failed to send error response")
	}
}
