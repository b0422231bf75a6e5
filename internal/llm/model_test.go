package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/tmc/langchaingo/llms"
)

func TestIsFatalAPIError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"credit balance", errors.New("insufficient credit balance"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota exceeded", errors.New("quota exceeded for model"), true},
		{"billing issue", errors.New("billing account inactive"), true},
		{"invalid api key", errors.New("invalid api key"), true},
		{"authentication failed", errors.New("authentication failed"), true},
		{"unauthorized", errors.New("unauthorized request"), true},
		{"401 status", errors.New("HTTP 401: not allowed"), true},
		{"403 status", errors.New("HTTP 403: forbidden"), true},
		{"wrapped error", fmt.Errorf("complete: %w", errors.New("credit balance too low")), true},
		{"404 not fatal", errors.New("HTTP 404: not found"), false},
		{"timeout not fatal", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isFatalAPIError(tt.err)
			if got != tt.fatal {
				t.Errorf("isFatalAPIError(%v) = %v, want %v", tt.err, got, tt.fatal)
			}
		})
	}
}

func TestWrapFatalError(t *testing.T) {
	t.Run("wraps fatal error", func(t *testing.T) {
		err := errors.New("invalid api key provided")
		wrapped := wrapFatalError(err)
		if !errors.Is(wrapped, ErrFatalAPI) {
			t.Errorf("expected wrapped error to match ErrFatalAPI")
		}
	})

	t.Run("passes through non-fatal error", func(t *testing.T) {
		err := errors.New("network timeout")
		result := wrapFatalError(err)
		if errors.Is(result, ErrFatalAPI) {
			t.Errorf("non-fatal error should not be wrapped with ErrFatalAPI")
		}
		if result != err {
			t.Errorf("expected original error returned, got %v", result)
		}
	})

	t.Run("nil error", func(t *testing.T) {
		result := wrapFatalError(nil)
		if result != nil {
			t.Errorf("expected nil, got %v", result)
		}
	})
}

func TestChatMessageType(t *testing.T) {
	tests := []struct {
		role string
		want llms.ChatMessageType
	}{
		{RoleSystem, llms.ChatMessageTypeSystem},
		{RoleAssistant, llms.ChatMessageTypeAI},
		{RoleUser, llms.ChatMessageTypeHuman},
		{"unknown", llms.ChatMessageTypeHuman},
	}
	for _, tt := range tests {
		if got := chatMessageType(tt.role); got != tt.want {
			t.Errorf("chatMessageType(%q) = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestIntFromInfo(t *testing.T) {
	info := map[string]any{
		"PromptTokens":     42,
		"CompletionTokens": int64(17),
		"input_tokens":     float64(9),
	}
	if got := intFromInfo(info, "PromptTokens", "input_tokens"); got != 42 {
		t.Errorf("first key should win, got %d", got)
	}
	if got := intFromInfo(info, "CompletionTokens"); got != 17 {
		t.Errorf("int64 should convert, got %d", got)
	}
	if got := intFromInfo(info, "missing", "input_tokens"); got != 9 {
		t.Errorf("fallback key should be read, got %d", got)
	}
	if got := intFromInfo(info, "missing"); got != 0 {
		t.Errorf("missing keys should report 0, got %d", got)
	}
}
