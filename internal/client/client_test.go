package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jasperlabs/jasper-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "make a workout", req.Message)

		_ = json.NewEncoder(w).Encode(models.Result{
			ConversationID: "conversation:abc",
			ResponseText:   "Warm Up...",
			Intent:         models.IntentWorkout,
		})
	}))
	defer ts.Close()

	c := New(ts.URL)
	result, err := c.Chat(context.Background(), "", "make a workout")
	require.NoError(t, err)
	assert.Equal(t, "conversation:abc", result.ConversationID)
	assert.Equal(t, models.IntentWorkout, result.Intent)
}

func TestChatServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "completion service unavailable"})
	}))
	defer ts.Close()

	c := New(ts.URL)
	_, err := c.Chat(context.Background(), "", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completion service unavailable")
}

func TestListConversations(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/conversations", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"conversations": []models.Conversation{{Title: "Meal plan"}},
		})
	}))
	defer ts.Close()

	c := New(ts.URL)
	conversations, err := c.ListConversations(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, "Meal plan", conversations[0].Title)
}

func TestHealth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer ts.Close()

	require.NoError(t, New(ts.URL).Health(context.Background()))
}
