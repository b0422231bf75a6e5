// Package client provides an HTTP client for the Jasper server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jasperlabs/jasper-go/internal/metrics"
	"github.com/jasperlabs/jasper-go/internal/models"
)

// Client talks to a remote Jasper server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client. If baseURL is empty, uses JASPER_SERVER_URL env var
// or defaults to localhost:8787. Timeout can be configured via
// JASPER_CLIENT_TIMEOUT (default 5m; generation with corrections is slow).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("JASPER_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8787"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeout := 5 * time.Minute
	if t := os.Getenv("JASPER_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Chat sends one message and returns the engine result.
func (c *Client) Chat(ctx context.Context, conversationID, message string) (*models.Result, error) {
	var result models.Result
	err := c.post(ctx, "/api/chat", chatRequest{
		ConversationID: conversationID,
		Message:        message,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListConversations returns stored conversations, newest first.
func (c *Client) ListConversations(ctx context.Context, limit int) ([]models.Conversation, error) {
	var payload struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	path := fmt.Sprintf("/api/conversations?limit=%d", limit)
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, err
	}
	return payload.Conversations, nil
}

// Stats returns the server's in-memory runtime statistics.
func (c *Client) Stats(ctx context.Context) (*metrics.Snapshot, error) {
	var snap metrics.Snapshot
	if err := c.get(ctx, "/api/stats", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("server error: %s", errResp.Error)
		}
		return fmt.Errorf("server error: %s - %s", resp.Status, string(body))
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// ChatStream holds a WebSocket chat session so consecutive messages reuse
// one connection.
type ChatStream struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// OpenStream dials the server's WebSocket chat endpoint. The connection is
// closed when the context is cancelled.
func (c *Client) OpenStream(ctx context.Context) (*ChatStream, error) {
	wsURL := c.baseURL + "/api/chat/ws"
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	s := &ChatStream{conn: conn}
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return s, nil
}

// Send writes one message and blocks for the result.
func (s *ChatStream) Send(conversationID, message string) (*models.Result, error) {
	if err := s.conn.WriteJSON(chatRequest{ConversationID: conversationID, Message: message}); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	var raw json.RawMessage
	if err := s.conn.ReadJSON(&raw); err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}

	var errResp errorResponse
	if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
		return nil, fmt.Errorf("server error: %s", errResp.Error)
	}

	var result models.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &result, nil
}

// Close shuts the session down. Safe to call more than once.
func (s *ChatStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
