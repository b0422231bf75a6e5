package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jasperlabs/jasper-go/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// CreateConversation creates a new conversation with a short random ID.
func (c *Client) CreateConversation(ctx context.Context, title string) (*models.Conversation, error) {
	id := uuid.New().String()[:8] // Short ID for convenience
	results, err := surrealdb.Query[[]models.Conversation](ctx, c.db, `
		CREATE type::record("conversation", $id) SET title = $title
	`, map[string]any{"id": id, "title": title})
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create conversation: empty result")
	}
	return &(*results)[0].Result[0], nil
}

// GetConversation retrieves a conversation by ID. Returns nil if not found.
func (c *Client) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	results, err := surrealdb.Query[[]models.Conversation](ctx, c.db, `
		SELECT * FROM type::record("conversation", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// ListConversations returns conversations ordered by most recent activity.
func (c *Client) ListConversations(ctx context.Context, limit int) ([]models.Conversation, error) {
	if limit <= 0 {
		limit = 20
	}
	results, err := surrealdb.Query[[]models.Conversation](ctx, c.db, `
		SELECT * FROM conversation ORDER BY updated_at DESC LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []models.Conversation{}, nil
	}
	return (*results)[0].Result, nil
}

// AppendTurn appends a turn to a conversation and bumps its updated_at.
func (c *Client) AppendTurn(
	ctx context.Context,
	conversationID, role, content string,
	metadata map[string]any,
) (*models.Turn, error) {
	id := uuid.New().String()
	results, err := surrealdb.Query[[]models.Turn](ctx, c.db, `
		CREATE type::record("turn", $id) SET
			conversation = type::record("conversation", $conv),
			role = $role,
			content = $content,
			metadata = $metadata
	`, map[string]any{
		"id":       id,
		"conv":     conversationID,
		"role":     role,
		"content":  content,
		"metadata": metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("append turn: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("append turn: empty result")
	}

	// Bump conversation activity; failure here is not fatal for the turn
	if _, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("conversation", $conv) SET updated_at = time::now()
	`, map[string]any{"conv": conversationID}); err != nil {
		c.logger.Warn("failed to touch conversation", "conversation", conversationID, "error", err)
	}

	return &(*results)[0].Result[0], nil
}

// ReadRecentTurns returns the most recent turns of a conversation ordered
// oldest to newest, bounded by limit.
func (c *Client) ReadRecentTurns(ctx context.Context, conversationID string, limit int) ([]models.Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	results, err := surrealdb.Query[[]models.Turn](ctx, c.db, `
		SELECT * FROM turn
		WHERE conversation = type::record("conversation", $conv)
		ORDER BY created_at DESC
		LIMIT $limit
	`, map[string]any{"conv": conversationID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("read recent turns: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []models.Turn{}, nil
	}

	// Query returns newest first; callers want insertion order
	turns := (*results)[0].Result
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// WriteTurnMetadata merges a metadata patch into an existing turn.
func (c *Client) WriteTurnMetadata(ctx context.Context, turnID string, patch map[string]any) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("turn", $id) MERGE { metadata: $patch }
	`, map[string]any{"id": turnID, "patch": patch})
	if err != nil {
		return fmt.Errorf("write turn metadata: %w", wrapQueryError(err))
	}
	return nil
}

// RecordAttendance stores a single attendance entry.
func (c *Client) RecordAttendance(ctx context.Context, student, group string, date time.Time, present bool) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE attendance SET
			student = $student,
			group = $group,
			date = $date,
			present = $present
	`, map[string]any{
		"student": student,
		"group":   group,
		"date":    date,
		"present": present,
	})
	if err != nil {
		return fmt.Errorf("record attendance: %w", wrapQueryError(err))
	}
	return nil
}

// attendanceTotals is the aggregate row for a group.
type attendanceTotals struct {
	Sessions int `json:"sessions"`
	Present  int `json:"present"`
	Students int `json:"students"`
}

// AttendanceSummary aggregates attendance for a group since the given time.
// Returns nil when the group has no records in the period.
func (c *Client) AttendanceSummary(ctx context.Context, group string, since time.Time) (*models.AttendanceSummary, error) {
	totalsResult, err := surrealdb.Query[[]attendanceTotals](ctx, c.db, `
		SELECT
			count() AS sessions,
			count(present = true) AS present,
			count(array::distinct(student)) AS students
		FROM attendance
		WHERE group = $group AND date >= $since
		GROUP ALL
	`, map[string]any{"group": group, "since": since})
	if err != nil {
		return nil, fmt.Errorf("attendance totals: %w", err)
	}
	if totalsResult == nil || len(*totalsResult) == 0 || len((*totalsResult)[0].Result) == 0 {
		return nil, nil
	}
	totals := (*totalsResult)[0].Result[0]
	if totals.Sessions == 0 {
		return nil, nil
	}

	absenteesResult, err := surrealdb.Query[[]models.StudentAbsences](ctx, c.db, `
		SELECT student, count() AS absences FROM attendance
		WHERE group = $group AND date >= $since AND present = false
		GROUP BY student
		ORDER BY absences DESC
		LIMIT 5
	`, map[string]any{"group": group, "since": since})
	if err != nil {
		return nil, fmt.Errorf("attendance absentees: %w", err)
	}

	summary := &models.AttendanceSummary{
		Group:    group,
		Sessions: totals.Sessions,
		Present:  totals.Present,
		Absent:   totals.Sessions - totals.Present,
		Rate:     float64(totals.Present) / float64(totals.Sessions),
		Students: totals.Students,
	}
	if absenteesResult != nil && len(*absenteesResult) > 0 {
		summary.TopAbsentees = (*absenteesResult)[0].Result
	}
	return summary, nil
}

// RecordTokenUsage stores token consumption for a completion call.
func (c *Client) RecordTokenUsage(ctx context.Context, input models.TokenUsageInput) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE token_usage SET
			operation = $operation,
			model = $model,
			input_tokens = $input_tokens,
			output_tokens = $output_tokens
	`, map[string]any{
		"operation":     input.Operation,
		"model":         input.Model,
		"input_tokens":  input.InputTokens,
		"output_tokens": input.OutputTokens,
	})
	if err != nil {
		return fmt.Errorf("record token usage: %w", wrapQueryError(err))
	}
	return nil
}
