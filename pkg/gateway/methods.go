package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sessionguard/sessionguard/pkg/guardian"
	"github.com/sessionguard/sessionguard/pkg/snapshot"
	"github.com/sessionguard/sessionguard/pkg/store"
)

// SessionService is the slice of the coordinator the gateway needs.
type SessionService interface {
	SaveSession(ctx context.Context, name string) (snapshot.SessionRecord, error)
	Sessions(ctx context.Context) []snapshot.SessionRecord
	RestoreSession(ctx context.Context, sessionID string) error
	DeleteSession(ctx context.Context, sessionID string) error
	ReportScrollUpdate(update guardian.ScrollUpdate)
}

// registerSessionMethods wires the session actions into the router.
func (s *Server) registerSessionMethods() {
	// Registration only fails for nil handlers or malformed schemas, both
	// programmer errors caught by the gateway tests.
	_ = s.router.RegisterMethod("saveSession", saveSessionSchema, s.handleSaveSession)
	_ = s.router.RegisterMethod("getAllSessions", emptyParamsSchema, s.handleGetAllSessions)
	_ = s.router.RegisterMethod("restoreSession", sessionIDSchema, s.handleRestoreSession)
	_ = s.router.RegisterMethod("deleteSession", sessionIDSchema, s.handleDeleteSession)
	_ = s.router.RegisterMethod("updateScrollPosition", scrollUpdateSchema, s.handleScrollUpdate)
}

func (s *Server) handleSaveSession(params map[string]interface{}) (interface{}, error) {
	name, _ := params["name"].(string)

	record, err := s.service.SaveSession(s.requestContext(), name)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{"session": record}, nil
}

func (s *Server) handleGetAllSessions(_ map[string]interface{}) (interface{}, error) {
	sessions := s.service.Sessions(s.requestContext())
	return map[string]interface{}{"sessions": sessions}, nil
}

func (s *Server) handleRestoreSession(params map[string]interface{}) (interface{}, error) {
	sessionID, _ := params["sessionId"].(string)

	if err := s.service.RestoreSession(s.requestContext(), sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &RPCError{Code: SessionNotFound, Message: "Session not found"}
		}
		return nil, err
	}

	return map[string]interface{}{}, nil
}

func (s *Server) handleDeleteSession(params map[string]interface{}) (interface{}, error) {
	sessionID, _ := params["sessionId"].(string)

	if err := s.service.DeleteSession(s.requestContext(), sessionID); err != nil {
		return nil, err
	}

	return map[string]interface{}{}, nil
}

func (s *Server) handleScrollUpdate(params map[string]interface{}) (interface{}, error) {
	raw, err := json.Marshal(params["data"])
	if err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "invalid scroll data"}
	}

	var update guardian.ScrollUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "invalid scroll data"}
	}

	s.service.ReportScrollUpdate(update)
	return map[string]interface{}{}, nil
}
