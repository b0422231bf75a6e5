// Package engine orchestrates the conversational widget pipeline: classify
// the message, resolve a handler, gather prerequisites over multiple turns,
// generate with bounded auto-correction, and extract a structured widget.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jasperlabs/jasper-go/internal/extract"
	"github.com/jasperlabs/jasper-go/internal/llm"
	"github.com/jasperlabs/jasper-go/internal/metrics"
	"github.com/jasperlabs/jasper-go/internal/models"
	"github.com/jasperlabs/jasper-go/internal/rules"
	"github.com/jasperlabs/jasper-go/internal/validate"
)

// ConversationStore is the persistence surface the engine depends on.
// *db.Client satisfies it.
type ConversationStore interface {
	TurnStore
	CreateConversation(ctx context.Context, title string) (*models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	AppendTurn(ctx context.Context, conversationID, role, content string, metadata map[string]any) (*models.Turn, error)
	AttendanceSummary(ctx context.Context, group string, since time.Time) (*models.AttendanceSummary, error)
}

// Options tunes engine behavior. Zero values fall back to defaults.
type Options struct {
	Table         *rules.Table
	RetryCeiling  int
	ContextWindow int
	// AttendanceGroup is the roster group attendance questions report on.
	AttendanceGroup string
	// AttendancePeriod is how far back attendance summaries look.
	AttendancePeriod time.Duration
}

// Engine handles one user message at a time per conversation.
type Engine struct {
	store      ConversationStore
	classifier *Classifier
	registry   *Registry
	pending    *PendingManager
	retry      *RetryController
	extractor  *extract.Extractor
	collector  *metrics.Collector
	logger     *slog.Logger
	opts       Options
}

// New wires the engine. usage may be nil; logger nil falls back to the
// default logger.
func New(store ConversationStore, completer Completer, collector *metrics.Collector, usage UsageRecorder, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Table == nil {
		opts.Table = rules.Default()
	}
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = 50
	}
	if opts.RetryCeiling < 0 {
		opts.RetryCeiling = 0
	}
	if opts.AttendanceGroup == "" {
		opts.AttendanceGroup = "team"
	}
	if opts.AttendancePeriod <= 0 {
		opts.AttendancePeriod = 30 * 24 * time.Hour
	}

	validator := validate.New(opts.Table)
	return &Engine{
		store:      store,
		classifier: NewClassifier(opts.Table),
		registry:   NewRegistry(),
		pending:    NewPendingManager(store, opts.Table, logger, opts.ContextWindow),
		retry:      NewRetryController(completer, validator, collector, usage, logger, opts.RetryCeiling),
		extractor:  extract.New(opts.Table),
		collector:  collector,
		logger:     logger,
		opts:       opts,
	}
}

// Registry exposes the handler registry, e.g. for capability listings.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// HandleMessage runs the full pipeline for one user message. An empty
// conversation ID starts a new conversation. The only surfaced error paths
// are persistence of the user turn and completion-service failure; everything
// else degrades to a usable response.
func (e *Engine) HandleMessage(ctx context.Context, conversationID, message string) (*models.Result, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("empty message")
	}

	if conversationID == "" {
		conv, err := e.store.CreateConversation(ctx, conversationTitle(message))
		if err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		conversationID = models.MustRecordIDString(conv.ID)
	}

	pending, pendingTurnID, err := e.pending.Find(ctx, conversationID)
	if err != nil {
		// State loss degrades to re-asking the question, never to an
		// unanswered prerequisite.
		e.logger.Warn("pending scan failed, continuing without state",
			"conversation", conversationID, "error", err)
		pending = nil
	}

	intent := e.classifier.Classify(message, Flags{AwaitingAnswer: pending.Open()})
	e.logger.Info("message classified",
		"conversation", conversationID, "intent", intent, "pending", pending.Open())

	if _, err := e.store.AppendTurn(ctx, conversationID, models.RoleUser, message, nil); err != nil {
		return nil, fmt.Errorf("append user turn: %w", err)
	}

	if intent == models.IntentAllergyAnswer && pending.Open() {
		merged := e.pending.Consume(ctx, pendingTurnID, pending, message)
		handler := e.registry.Resolve(models.FamilyIntent(pending.WidgetFamily))
		return e.generate(ctx, conversationID, handler, merged, validate.Context{PrerequisiteSatisfied: true})
	}

	handler := e.registry.Resolve(intent)

	// A newer widget request supersedes an unanswered clarification.
	if pending.Open() && handler.Family != models.FamilyGeneral {
		e.logger.Info("new request cancels pending clarification",
			"conversation", conversationID, "old_family", pending.WidgetFamily, "new_family", handler.Family)
		e.pending.Cancel(ctx, pendingTurnID, pending)
	}

	if handler.DirectCall {
		return e.attendance(ctx, conversationID, handler)
	}

	if handler.Prerequisite != nil && !e.classifier.MentionsAnswerPhrase(message) {
		return e.askPrerequisite(ctx, conversationID, handler, message)
	}
	// Either no prerequisite applies or the request already states the
	// restrictions inline; no exchange needed.
	return e.generate(ctx, conversationID, handler, message, validate.Context{PrerequisiteSatisfied: true})
}

// askPrerequisite opens the information-gathering exchange: ask the
// clarification question and mark the turn with the pending request.
func (e *Engine) askPrerequisite(ctx context.Context, conversationID string, h *Handler, message string) (*models.Result, error) {
	question := h.Prerequisite.Question
	turn, err := e.store.AppendTurn(ctx, conversationID, models.RoleAssistant, question, nil)
	if err != nil {
		return nil, fmt.Errorf("append clarification turn: %w", err)
	}

	e.pending.Open(ctx, models.MustRecordIDString(turn.ID), models.PendingRequest{
		Version:         models.PendingRequestVersion,
		WidgetFamily:    h.Family,
		OriginalRequest: message,
		Awaiting:        h.Prerequisite.Awaiting,
	})

	return &models.Result{
		ConversationID: conversationID,
		ResponseText:   question,
		Intent:         h.Intent,
		Attempts:       0,
	}, nil
}

// generate runs the bounded generation loop and widget extraction for one
// handler, then persists the assistant turn.
func (e *Engine) generate(ctx context.Context, conversationID string, h *Handler, request string, vctx validate.Context) (*models.Result, error) {
	transcript := e.buildTranscript(ctx, conversationID, h, request)

	generated, err := e.retry.Generate(ctx, h, transcript, vctx)
	if err != nil {
		return nil, err
	}

	var widget *models.WidgetPayload
	var turnMeta map[string]any
	if h.Policy != PolicyNone {
		start := time.Now()
		payload := e.extractor.Widget(h.Family, generated.Text, request)
		if e.collector != nil {
			e.collector.RecordTiming(metrics.OpExtract, time.Since(start))
		}
		widget = &payload
		turnMeta = map[string]any{"widget_type": h.Family}
	}

	if _, err := e.store.AppendTurn(ctx, conversationID, models.RoleAssistant, generated.Text, turnMeta); err != nil {
		// The response is already in hand; losing the persisted copy is
		// worth a warning, not a failed request.
		e.logger.Warn("failed to persist assistant turn",
			"conversation", conversationID, "error", err)
	}

	return &models.Result{
		ConversationID: conversationID,
		ResponseText:   generated.Text,
		Widget:         widget,
		Intent:         h.Intent,
		Violations:     generated.Violations,
		Attempts:       generated.Attempts,
	}, nil
}

// buildTranscript assembles system prompt, history window and the effective
// request. A history read failure degrades to a single-turn prompt.
func (e *Engine) buildTranscript(ctx context.Context, conversationID string, h *Handler, request string) []llm.ChatMessage {
	transcript := []llm.ChatMessage{{Role: llm.RoleSystem, Content: h.SystemPrompt}}

	turns, err := e.store.ReadRecentTurns(ctx, conversationID, e.opts.ContextWindow)
	if err != nil {
		e.logger.Warn("failed to read history, generating without context",
			"conversation", conversationID, "error", err)
		turns = nil
	}
	// Drop the just-appended user turn; the effective request replaces it
	// (it may carry merged prerequisite answers).
	if n := len(turns); n > 0 && !turns[n-1].IsAssistant() {
		turns = turns[:n-1]
	}
	for _, turn := range turns {
		role := llm.RoleUser
		if turn.IsAssistant() {
			role = llm.RoleAssistant
		}
		transcript = append(transcript, llm.ChatMessage{Role: role, Content: turn.Content})
	}

	return append(transcript, llm.ChatMessage{Role: llm.RoleUser, Content: request})
}

// attendance answers from the database directly; no model call, no
// validation.
func (e *Engine) attendance(ctx context.Context, conversationID string, h *Handler) (*models.Result, error) {
	since := time.Now().Add(-e.opts.AttendancePeriod)

	start := time.Now()
	summary, err := e.store.AttendanceSummary(ctx, e.opts.AttendanceGroup, since)
	if e.collector != nil {
		e.collector.RecordTiming(metrics.OpDBQuery, time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}

	var text string
	var widget *models.WidgetPayload
	if summary == nil {
		text = fmt.Sprintf("No attendance records found for %q in the last %d days.",
			e.opts.AttendanceGroup, int(e.opts.AttendancePeriod.Hours()/24))
	} else {
		text = formatAttendance(summary, e.opts.AttendancePeriod)
		widget = &models.WidgetPayload{
			WidgetType: h.Family,
			Data: map[string]any{
				"group":    summary.Group,
				"sessions": summary.Sessions,
				"present":  summary.Present,
				"absent":   summary.Absent,
				"rate":     summary.Rate,
				"students": summary.Students,
				"top_absentees": func() []map[string]any {
					out := make([]map[string]any, 0, len(summary.TopAbsentees))
					for _, s := range summary.TopAbsentees {
						out = append(out, map[string]any{"student": s.Student, "absences": s.Absences})
					}
					return out
				}(),
			},
			ExtractionMethod: models.ExtractionDirectCall,
		}
	}

	if _, err := e.store.AppendTurn(ctx, conversationID, models.RoleAssistant, text,
		map[string]any{"widget_type": h.Family}); err != nil {
		e.logger.Warn("failed to persist assistant turn",
			"conversation", conversationID, "error", err)
	}

	return &models.Result{
		ConversationID: conversationID,
		ResponseText:   text,
		Widget:         widget,
		Intent:         h.Intent,
	}, nil
}

func formatAttendance(s *models.AttendanceSummary, period time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Attendance for %q over the last %d days: %d sessions, %d present, %d absent (%.0f%% attendance rate).",
		s.Group, int(period.Hours()/24), s.Sessions, s.Present, s.Absent, s.Rate*100)
	if len(s.TopAbsentees) > 0 {
		b.WriteString(" Most absences:")
		for i, a := range s.TopAbsentees {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, " %s (%d)", a.Student, a.Absences)
		}
		b.WriteString(".")
	}
	return b.String()
}

// conversationTitle derives a short title from the first message.
func conversationTitle(message string) string {
	const max = 60
	title := strings.Join(strings.Fields(message), " ")
	if len(title) > max {
		title = strings.TrimSpace(title[:max]) + "…"
	}
	return title
}
