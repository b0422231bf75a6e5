package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jasperlabs/jasper-go/internal/models"
	"github.com/jasperlabs/jasper-go/internal/rules"
)

// TurnStore is the slice of conversation persistence the pending-request
// machinery needs.
type TurnStore interface {
	ReadRecentTurns(ctx context.Context, conversationID string, limit int) ([]models.Turn, error)
	WriteTurnMetadata(ctx context.Context, turnID string, patch map[string]any) error
}

// PendingManager persists and recovers the per-conversation pending request.
// The pending request rides in turn metadata, so there is no separate state
// table and nothing to garbage-collect: losing it degrades to re-asking the
// clarification question, never to an unsafe answer.
type PendingManager struct {
	store  TurnStore
	table  *rules.Table
	logger *slog.Logger
	window int
}

// NewPendingManager creates a manager scanning up to window turns during
// recovery.
func NewPendingManager(store TurnStore, table *rules.Table, logger *slog.Logger, window int) *PendingManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &PendingManager{store: store, table: table, logger: logger, window: window}
}

// Open attaches a pending request to the assistant turn that asked the
// clarification question. A write failure is logged and swallowed: the
// conversation continues and the question is simply asked again next time.
func (m *PendingManager) Open(ctx context.Context, turnID string, pending models.PendingRequest) {
	patch := map[string]any{models.MetadataKeyPending: pending.ToMetadata()}
	if err := m.store.WriteTurnMetadata(ctx, turnID, patch); err != nil {
		m.logger.Warn("failed to persist pending request",
			"turn", turnID, "family", pending.WidgetFamily, "error", err)
	}
}

// Find scans recent turns newest-first for an open pending request. Malformed
// or consumed metadata is skipped, so a corrupt record can never block the
// conversation. Returns the pending request and the ID of the turn carrying
// it, or nil when the conversation has none.
func (m *PendingManager) Find(ctx context.Context, conversationID string) (*models.PendingRequest, string, error) {
	turns, err := m.store.ReadRecentTurns(ctx, conversationID, m.window)
	if err != nil {
		return nil, "", fmt.Errorf("read turns for pending scan: %w", err)
	}
	for i := len(turns) - 1; i >= 0; i-- {
		turn := turns[i]
		if !turn.IsAssistant() {
			continue
		}
		pending, ok := models.PendingRequestFromMetadata(turn.Metadata)
		if !ok {
			continue
		}
		if !pending.Open() {
			// The newest pending marker decides; a consumed one means the
			// exchange is finished.
			return nil, "", nil
		}
		return pending, models.MustRecordIDString(turn.ID), nil
	}
	return nil, "", nil
}

// Consume marks the pending request answered and returns the merged request
// text that the generation prompt will see. Marking is idempotent and a
// write failure is logged, not surfaced: the merged request is already in
// hand and the worst case is answering the clarification twice.
func (m *PendingManager) Consume(ctx context.Context, turnID string, pending *models.PendingRequest, answer string) string {
	merged := m.mergeAnswer(pending.OriginalRequest, answer)

	pending.Consumed = true
	pending.RecordedAnswer = answer
	patch := map[string]any{models.MetadataKeyPending: pending.ToMetadata()}
	if err := m.store.WriteTurnMetadata(ctx, turnID, patch); err != nil {
		m.logger.Warn("failed to mark pending request consumed",
			"turn", turnID, "error", err)
	}
	return merged
}

// Cancel marks a pending request abandoned without recording an answer.
// Used when a newer request supersedes the exchange.
func (m *PendingManager) Cancel(ctx context.Context, turnID string, pending *models.PendingRequest) {
	pending.Consumed = true
	patch := map[string]any{models.MetadataKeyPending: pending.ToMetadata()}
	if err := m.store.WriteTurnMetadata(ctx, turnID, patch); err != nil {
		m.logger.Warn("failed to cancel pending request",
			"turn", turnID, "error", err)
	}
}

var allergicToRe = regexp.MustCompile(`(?i)allergic to ([a-z]+(?: [a-z]+)*)`)

// mergeAnswer folds the user's answer into the original request so a single
// prompt carries both. The phrasing is fixed so downstream prompts stay
// stable.
func (m *PendingManager) mergeAnswer(original, answer string) string {
	lower := strings.ToLower(strings.TrimSpace(answer))
	normalized := strings.Trim(lower, " .!?,")
	original = closeSentence(original)

	if m.isNegativeAnswer(normalized) {
		return original + " No dietary restrictions apply."
	}

	if match := allergicToRe.FindStringSubmatch(answer); match != nil {
		allergen := strings.ToLower(strings.TrimSpace(match[1]))
		if !strings.Contains(allergen, " ") {
			singular := strings.TrimSuffix(allergen, "s")
			return original + fmt.Sprintf(" Has a %s allergy; %s must be avoided.", singular, allergen)
		}
		return original + fmt.Sprintf(" Has allergies: %s; these must be avoided.", allergen)
	}

	return original + fmt.Sprintf(" Dietary restrictions: %s.", strings.Trim(answer, " .!?,"))
}

// closeSentence terminates the request with a period so the appended answer
// clause reads as its own sentence.
func closeSentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return s
	}
	return s + "."
}

func (m *PendingManager) isNegativeAnswer(normalized string) bool {
	for _, neg := range m.table.NegativeAnswers {
		if normalized == neg {
			return true
		}
		if strings.Contains(neg, " ") && strings.Contains(normalized, neg) {
			return true
		}
	}
	return false
}
