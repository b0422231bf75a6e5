package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jasperlabs/jasper-go/internal/llm"
	"github.com/jasperlabs/jasper-go/internal/metrics"
	"github.com/jasperlabs/jasper-go/internal/models"
	"github.com/jasperlabs/jasper-go/internal/validate"
)

// Completer is the slice of the completion model the engine depends on.
type Completer interface {
	Complete(ctx context.Context, tier llm.Tier, messages []llm.ChatMessage) (*llm.Completion, error)
	ModelName(tier llm.Tier) string
}

// ErrCompletion marks a completion-service failure. It is the one error the
// engine cannot resolve on its own: there is no substitute for the model text.
var ErrCompletion = errors.New("completion service failed")

// UsageRecorder persists per-call token consumption.
type UsageRecorder interface {
	RecordTokenUsage(ctx context.Context, input models.TokenUsageInput) error
}

// GenerateResult is the outcome of a bounded generation loop.
type GenerateResult struct {
	Text string
	// Violations remaining on the accepted response. Empty on a clean pass.
	Violations []string
	// Attempts is the number of completion calls made.
	Attempts int
}

// RetryController runs generation with bounded auto-correction. A
// forced-policy response failing validation is sent back to the model with
// its violation list; the loop never exceeds ceiling corrections, so one
// request costs at most ceiling+1 completion calls.
type RetryController struct {
	completer Completer
	validator *validate.Validator
	collector *metrics.Collector
	usage     UsageRecorder
	logger    *slog.Logger
	ceiling   int
}

// NewRetryController wires the controller. usage may be nil when token
// accounting is not wanted.
func NewRetryController(completer Completer, validator *validate.Validator, collector *metrics.Collector, usage UsageRecorder, logger *slog.Logger, ceiling int) *RetryController {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryController{
		completer: completer,
		validator: validator,
		collector: collector,
		usage:     usage,
		logger:    logger,
		ceiling:   ceiling,
	}
}

// Generate runs the loop for one handler. transcript must already carry the
// system prompt, history window and the (possibly merged) user request.
// Only forced-policy families get correction calls; advisory families keep
// their first response with the violations recorded. On ceiling exhaustion
// the last response is returned with its residual violations attached.
// A completion-service failure is the only error surfaced.
func (r *RetryController) Generate(ctx context.Context, h *Handler, transcript []llm.ChatMessage, vctx validate.Context) (*GenerateResult, error) {
	corrections := 0
	if h.Policy == PolicyForced {
		corrections = r.ceiling
	}

	messages := make([]llm.ChatMessage, len(transcript))
	copy(messages, transcript)

	attempts := 0

	for {
		op := metrics.OpLLMGenerate
		if attempts > 0 {
			op = metrics.OpLLMCorrection
		}

		start := time.Now()
		completion, err := r.completer.Complete(ctx, h.Tier, messages)
		attempts++
		if err != nil {
			return nil, fmt.Errorf("%w: generate %s (attempt %d): %w", ErrCompletion, h.Family, attempts, err)
		}
		r.record(ctx, op, h.Tier, completion, time.Since(start))

		if h.Policy == PolicyNone {
			return &GenerateResult{Text: completion.Text, Attempts: attempts}, nil
		}

		vstart := time.Now()
		result := r.validator.Validate(h.Family, completion.Text, vctx)
		if r.collector != nil {
			r.collector.RecordTiming(metrics.OpValidate, time.Since(vstart))
		}
		if result.OK {
			return &GenerateResult{Text: completion.Text, Attempts: attempts}, nil
		}

		if attempts > corrections {
			r.logger.Warn("accepting response with violations",
				"family", h.Family, "policy", h.Policy,
				"attempts", attempts, "violations", len(result.Violations))
			return &GenerateResult{
				Text:       completion.Text,
				Violations: result.Violations,
				Attempts:   attempts,
			}, nil
		}

		r.logger.Info("response failed validation, retrying",
			"family", h.Family, "attempt", attempts, "violations", len(result.Violations))
		messages = append(messages,
			llm.ChatMessage{Role: llm.RoleAssistant, Content: completion.Text},
			llm.ChatMessage{Role: llm.RoleUser, Content: correctionMessage(result.Violations)},
		)
	}
}

// correctionMessage turns a violation list into the retry instruction.
func correctionMessage(violations []string) string {
	var b strings.Builder
	b.WriteString("Your previous response did not meet the requirements:\n")
	for _, v := range violations {
		b.WriteString("- ")
		b.WriteString(v)
		b.WriteString("\n")
	}
	b.WriteString("Rewrite the complete response and fix every point above. Output only the corrected response.")
	return b.String()
}

func (r *RetryController) record(ctx context.Context, op string, tier llm.Tier, completion *llm.Completion, elapsed time.Duration) {
	if r.collector != nil {
		r.collector.RecordLLMUsage(op, elapsed,
			int64(completion.InputTokens), int64(completion.OutputTokens))
	}
	if r.usage == nil {
		return
	}
	err := r.usage.RecordTokenUsage(ctx, models.TokenUsageInput{
		Operation:    op,
		Model:        r.completer.ModelName(tier),
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
	})
	if err != nil {
		r.logger.Warn("failed to record token usage", "operation", op, "error", err)
	}
}
