package models

// ExtractionMethod describes how widget data was obtained.
type ExtractionMethod string

const (
	ExtractionTextParse  ExtractionMethod = "text-parse"
	ExtractionDirectCall ExtractionMethod = "direct-call"
	ExtractionNone       ExtractionMethod = "none"
)

// ValidationResult reports structural violations of a generated response.
// It is produced fresh on every validation pass and never persisted.
type ValidationResult struct {
	OK         bool     `json:"ok"`
	Violations []string `json:"violations,omitempty"`
}

// Valid is the canonical passing result.
func Valid() ValidationResult {
	return ValidationResult{OK: true}
}

// Invalid builds a failing result from the detected violations.
func Invalid(violations []string) ValidationResult {
	return ValidationResult{OK: len(violations) == 0, Violations: violations}
}

// WidgetPayload is the structured output handed to the caller for rendering.
// Constructed once per accepted response; immutable afterwards.
type WidgetPayload struct {
	WidgetType       string           `json:"widget_type"`
	Data             map[string]any   `json:"data"`
	ExtractionMethod ExtractionMethod `json:"extraction_method"`
}

// RawTextPayload is the degraded fallback when no structural signal is
// found in a response expected to parse. A degraded widget is preferable
// to no response.
func RawTextPayload(family, text string) WidgetPayload {
	return WidgetPayload{
		WidgetType:       family,
		Data:             map[string]any{"raw_text": text},
		ExtractionMethod: ExtractionTextParse,
	}
}

// Result is the caller-facing outcome of one handled message.
type Result struct {
	ConversationID string         `json:"conversation_id"`
	ResponseText   string         `json:"response"`
	Widget         *WidgetPayload `json:"widget,omitempty"`
	Intent         Intent         `json:"intent"`
	// Violations still present on the accepted response, kept for
	// observability. Empty on a clean pass.
	Violations []string `json:"violations,omitempty"`
	// Attempts is the number of completion-service calls made.
	Attempts int `json:"attempts,omitempty"`
}
