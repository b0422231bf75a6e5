package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation represents a persistent chat session with a teacher.
type Conversation struct {
	ID        surrealmodels.RecordID `json:"id"`
	Title     string                 `json:"title"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Turn is a single message within a conversation. Content is never null;
// the empty string is the canonical "absent" value. Turns are immutable once
// persisted except for metadata enrichment on the current assistant turn.
type Turn struct {
	ID           surrealmodels.RecordID `json:"id"`
	Conversation surrealmodels.RecordID `json:"conversation"`
	Role         string                 `json:"role"`
	Content      string                 `json:"content"`
	Metadata     map[string]any         `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// IsAssistant reports whether the turn was produced by the assistant.
func (t Turn) IsAssistant() bool {
	return t.Role == RoleAssistant
}

// AttendanceRecord is a single attendance entry for a student.
type AttendanceRecord struct {
	ID        surrealmodels.RecordID `json:"id"`
	Student   string                 `json:"student"`
	Group     string                 `json:"group"`
	Date      time.Time              `json:"date"`
	Present   bool                   `json:"present"`
	CreatedAt time.Time              `json:"created_at"`
}

// AttendanceSummary aggregates attendance for a group over a period.
type AttendanceSummary struct {
	Group        string            `json:"group"`
	Sessions     int               `json:"sessions"`
	Present      int               `json:"present"`
	Absent       int               `json:"absent"`
	Rate         float64           `json:"rate"`
	Students     int               `json:"students"`
	TopAbsentees []StudentAbsences `json:"top_absentees,omitempty"`
}

// StudentAbsences counts absences for one student.
type StudentAbsences struct {
	Student  string `json:"student"`
	Absences int    `json:"absences"`
}

// TokenUsageInput records token consumption for a completion call.
type TokenUsageInput struct {
	Operation    string `json:"operation"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}
