package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/jasperlabs/jasper-go/internal/metrics"
	"github.com/jasperlabs/jasper-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	result *models.Result
	err    error
	lastID string
}

func (s *stubEngine) HandleMessage(_ context.Context, conversationID, message string) (*models.Result, error) {
	s.lastID = conversationID
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &models.Result{
		ConversationID: "conversation:abc",
		ResponseText:   "echo: " + message,
		Intent:         models.IntentGeneral,
	}, nil
}

type stubLister struct {
	conversations []models.Conversation
	err           error
	lastLimit     int
}

func (s *stubLister) ListConversations(_ context.Context, limit int) ([]models.Conversation, error) {
	s.lastLimit = limit
	return s.conversations, s.err
}

func newTestServer(engine *stubEngine, lister *stubLister) *httptest.Server {
	s := New(engine, lister, metrics.NewCollector(), nil, 0)
	return httptest.NewServer(s.Handler())
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(&stubEngine{}, &stubLister{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestChatEndpoint(t *testing.T) {
	engine := &stubEngine{}
	ts := newTestServer(engine, &stubLister{})
	defer ts.Close()

	body, _ := json.Marshal(map[string]string{
		"conversation_id": "conversation:abc",
		"message":         "make me a workout",
	})
	resp, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "echo: make me a workout", result.ResponseText)
	assert.Equal(t, "conversation:abc", engine.lastID)
}

func TestChatEndpointRejectsBadRequests(t *testing.T) {
	ts := newTestServer(&stubEngine{}, &stubLister{})
	defer ts.Close()

	// Missing message
	resp, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Malformed JSON
	resp, err = http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Wrong method
	resp, err = http.Get(ts.URL + "/api/chat")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestChatEndpointSurfacesEngineFailure(t *testing.T) {
	engine := &stubEngine{err: errors.New("completion service unavailable")}
	ts := newTestServer(engine, &stubLister{})
	defer ts.Close()

	body, _ := json.Marshal(map[string]string{"message": "hi"})
	resp, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var errResp errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Contains(t, errResp.Error, "completion service unavailable")
}

func TestConversationsEndpoint(t *testing.T) {
	lister := &stubLister{conversations: []models.Conversation{{Title: "Meal plan"}}}
	ts := newTestServer(&stubEngine{}, lister)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/conversations?limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, lister.lastLimit)

	var payload struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Len(t, payload.Conversations, 1)
	assert.Equal(t, "Meal plan", payload.Conversations[0].Title)

	// Invalid limit
	resp, err = http.Get(ts.URL + "/api/conversations?limit=-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatsEndpoint(t *testing.T) {
	ts := newTestServer(&stubEngine{}, &stubLister{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap metrics.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)
}

func TestChatWebSocket(t *testing.T) {
	engine := &stubEngine{}
	ts := newTestServer(engine, &stubLister{})
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "hello"}))
	var result models.Result
	require.NoError(t, conn.ReadJSON(&result))
	assert.Equal(t, "echo: hello", result.ResponseText)

	// Empty message gets an error frame, connection stays usable
	require.NoError(t, conn.WriteJSON(map[string]string{"message": ""}))
	var errResp errorResponse
	require.NoError(t, conn.ReadJSON(&errResp))
	assert.NotEmpty(t, errResp.Error)

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "again"}))
	require.NoError(t, conn.ReadJSON(&result))
	assert.Equal(t, "echo: again", result.ResponseText)
}
