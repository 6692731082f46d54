package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sessionguard/sessionguard/internal/metrics"
)

// RPCRouter handles method registration, request parsing, schema
// validation, and routing.
type RPCRouter struct {
	mu      sync.RWMutex
	methods map[string]registeredMethod
}

type registeredMethod struct {
	handler RequestHandler
	schema  *paramSchema
}

// NewRPCRouter creates a new RPC router.
func NewRPCRouter() *RPCRouter {
	return &RPCRouter{
		methods: make(map[string]registeredMethod),
	}
}

// RegisterMethod registers an RPC method handler. schemaJSON, when
// non-empty, is a JSON Schema the request params must satisfy.
func (r *RPCRouter) RegisterMethod(name string, schemaJSON string, handler RequestHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	var schema *paramSchema
	if schemaJSON != "" {
		compiled, err := compileParamSchema(schemaJSON)
		if err != nil {
			return fmt.Errorf("invalid schema for method %s: %w", name, err)
		}
		schema = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.methods[name] = registeredMethod{handler: handler, schema: schema}
	return nil
}

// ParseRequest parses and validates a JSON-RPC request envelope.
func (r *RPCRouter) ParseRequest(data []byte) (*RPCRequest, error) {
	var req RPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &RPCError{
			Code:    ParseError,
			Message: "Parse error",
			Data:    err.Error(),
		}
	}

	if req.ID == "" {
		return nil, &RPCError{
			Code:    InvalidRequest,
			Message: "Invalid request: missing id field",
		}
	}
	if req.Method == "" {
		return nil, &RPCError{
			Code:    InvalidRequest,
			Message: "Invalid request: missing method field",
		}
	}
	if req.JSONRPC == "" {
		req.JSONRPC = "2.0"
	}

	return &req, nil
}

// RouteRequest validates params and dispatches to the registered handler.
func (r *RPCRouter) RouteRequest(req *RPCRequest) *RPCResponse {
	if req == nil {
		return errorResponse("", &RPCError{Code: InvalidRequest, Message: "invalid request"})
	}

	r.mu.RLock()
	method, exists := r.methods[req.Method]
	r.mu.RUnlock()

	if !exists {
		metrics.RecordRPCRequest(req.Method, "not_found")
		return errorResponse(req.ID, &RPCError{
			Code:    MethodNotFound,
			Message: fmt.Sprintf("Unknown action: %s", req.Method),
		})
	}

	if method.schema != nil {
		if err := method.schema.validate(req.Params); err != nil {
			metrics.RecordRPCRequest(req.Method, "invalid_params")
			return errorResponse(req.ID, &RPCError{
				Code:    InvalidParams,
				Message: err.Error(),
			})
		}
	}

	result, err := method.handler(req.Params)
	if err != nil {
		metrics.RecordRPCRequest(req.Method, "error")
		return errorResponse(req.ID, asRPCError(err))
	}

	metrics.RecordRPCRequest(req.Method, "ok")
	return &RPCResponse{
		ID:      req.ID,
		JSONRPC: "2.0",
		Result:  result,
	}
}

// HasMethod checks if a method is registered.
func (r *RPCRouter) HasMethod(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.methods[name]
	return exists
}

// Methods returns all registered method names.
func (r *RPCRouter) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	return names
}

// asRPCError passes typed RPC errors through and wraps everything else as
// an internal error whose message the UI shows verbatim.
func asRPCError(err error) *RPCError {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return &RPCError{
		Code:    InternalError,
		Message: err.Error(),
	}
}

func errorResponse(id string, rpcErr *RPCError) *RPCResponse {
	return &RPCResponse{
		ID:      id,
		JSONRPC: "2.0",
		Error:   rpcErr,
	}
}
