package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionguard/sessionguard/pkg/guardian"
	"github.com/sessionguard/sessionguard/pkg/snapshot"
	"github.com/sessionguard/sessionguard/pkg/store"
)

// fakeService is a canned SessionService.
type fakeService struct {
	saved      []string
	deleted    []string
	restored   []string
	scrolls    []guardian.ScrollUpdate
	restoreErr error
}

func (f *fakeService) SaveSession(_ context.Context, name string) (snapshot.SessionRecord, error) {
	f.saved = append(f.saved, name)
	return snapshot.SessionRecord{ID: "new-id", Name: name, Kind: snapshot.KindManual}, nil
}

func (f *fakeService) Sessions(_ context.Context) []snapshot.SessionRecord {
	return []snapshot.SessionRecord{{ID: "s1", Name: "one"}, {ID: "s2", Name: "two"}}
}

func (f *fakeService) RestoreSession(_ context.Context, sessionID string) error {
	if f.restoreErr != nil {
		return f.restoreErr
	}
	f.restored = append(f.restored, sessionID)
	return nil
}

func (f *fakeService) DeleteSession(_ context.Context, sessionID string) error {
	f.deleted = append(f.deleted, sessionID)
	return nil
}

func (f *fakeService) ReportScrollUpdate(update guardian.ScrollUpdate) {
	f.scrolls = append(f.scrolls, update)
}

const testSecret = "test-shared-secret-0123456789"

func newTestServer(t *testing.T, svc SessionService) *Server {
	t.Helper()

	s, err := NewServer(Config{
		Port:         18391,
		SharedSecret: testSecret,
		Service:      svc,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	return s
}

func postRPC(t *testing.T, s *Server, secret, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-SessionGuard-Secret", secret)
	}

	rec := httptest.NewRecorder()
	s.handleRPC(rec, req)
	return rec
}

func decodeRPC(t *testing.T, rec *httptest.ResponseRecorder) RPCResponse {
	t.Helper()

	var resp RPCResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestNewServerValidation(t *testing.T) {
	t.Run("requires port", func(t *testing.T) {
		_, err := NewServer(Config{SharedSecret: testSecret, Service: &fakeService{}, Logger: zerolog.Nop()})
		assert.Error(t, err)
	})

	t.Run("requires shared secret", func(t *testing.T) {
		_, err := NewServer(Config{Port: 1, Service: &fakeService{}, Logger: zerolog.Nop()})
		assert.Error(t, err)
	})

	t.Run("requires service", func(t *testing.T) {
		_, err := NewServer(Config{Port: 1, SharedSecret: testSecret, Logger: zerolog.Nop()})
		assert.Error(t, err)
	})

	t.Run("registers all session actions", func(t *testing.T) {
		s := newTestServer(t, &fakeService{})
		for _, method := range []string{"saveSession", "getAllSessions", "restoreSession", "deleteSession", "updateScrollPosition"} {
			assert.True(t, s.router.HasMethod(method), method)
		}
	})
}

func TestHandleRPCAuth(t *testing.T) {
	s := newTestServer(t, &fakeService{})

	t.Run("rejects missing secret", func(t *testing.T) {
		rec := postRPC(t, s, "", `{"id":"1","method":"getAllSessions"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		rec := postRPC(t, s, "wrong", `{"id":"1","method":"getAllSessions"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects non-POST", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rpc", nil)
		rec := httptest.NewRecorder()
		s.handleRPC(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestHandleRPCActions(t *testing.T) {
	t.Run("saveSession", func(t *testing.T) {
		svc := &fakeService{}
		s := newTestServer(t, svc)

		rec := postRPC(t, s, testSecret, `{"id":"1","method":"saveSession","params":{"name":"Work"}}`)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeRPC(t, rec)
		require.Nil(t, resp.Error)
		assert.Equal(t, []string{"Work"}, svc.saved)

		result := resp.Result.(map[string]interface{})
		session := result["session"].(map[string]interface{})
		assert.Equal(t, "new-id", session["id"])
	})

	t.Run("getAllSessions", func(t *testing.T) {
		s := newTestServer(t, &fakeService{})

		rec := postRPC(t, s, testSecret, `{"id":"1","method":"getAllSessions"}`)
		resp := decodeRPC(t, rec)
		require.Nil(t, resp.Error)

		result := resp.Result.(map[string]interface{})
		sessions := result["sessions"].([]interface{})
		assert.Len(t, sessions, 2)
	})

	t.Run("restoreSession not found", func(t *testing.T) {
		svc := &fakeService{restoreErr: store.ErrNotFound}
		s := newTestServer(t, svc)

		rec := postRPC(t, s, testSecret, `{"id":"1","method":"restoreSession","params":{"sessionId":"gone"}}`)
		resp := decodeRPC(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, SessionNotFound, resp.Error.Code)
		assert.Equal(t, "Session not found", resp.Error.Message)
	})

	t.Run("deleteSession", func(t *testing.T) {
		svc := &fakeService{}
		s := newTestServer(t, svc)

		rec := postRPC(t, s, testSecret, `{"id":"1","method":"deleteSession","params":{"sessionId":"s1"}}`)
		resp := decodeRPC(t, rec)
		require.Nil(t, resp.Error)
		assert.Equal(t, []string{"s1"}, svc.deleted)
	})

	t.Run("updateScrollPosition", func(t *testing.T) {
		svc := &fakeService{}
		s := newTestServer(t, svc)

		rec := postRPC(t, s, testSecret,
			`{"id":"1","method":"updateScrollPosition","params":{"data":{"url":"https://a.example","scrollX":0,"scrollY":420}}}`)
		resp := decodeRPC(t, rec)
		require.Nil(t, resp.Error)

		require.Len(t, svc.scrolls, 1)
		assert.Equal(t, "https://a.example", svc.scrolls[0].URL)
		assert.Equal(t, 420, svc.scrolls[0].ScrollY)
	})

	t.Run("malformed request body", func(t *testing.T) {
		s := newTestServer(t, &fakeService{})

		rec := postRPC(t, s, testSecret, `{broken`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		resp := decodeRPC(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ParseError, resp.Error.Code)
	})
}
