package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jasperlabs/jasper-go/internal/llm"
	"github.com/jasperlabs/jasper-go/internal/metrics"
	"github.com/jasperlabs/jasper-go/internal/models"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// fakeStore is an in-memory ConversationStore.
type fakeStore struct {
	fakeTurnStore
	nextConv  int
	nextTurn  int
	summary   *models.AttendanceSummary
	appendErr error
}

func (f *fakeStore) CreateConversation(_ context.Context, title string) (*models.Conversation, error) {
	f.nextConv++
	return &models.Conversation{
		ID:    surrealmodels.RecordID{Table: "conversation", ID: fmt.Sprintf("c%d", f.nextConv)},
		Title: title,
	}, nil
}

func (f *fakeStore) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	return &models.Conversation{ID: surrealmodels.RecordID{Table: "conversation", ID: id}}, nil
}

func (f *fakeStore) AppendTurn(_ context.Context, _, role, content string, metadata map[string]any) (*models.Turn, error) {
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	f.nextTurn++
	id := fmt.Sprintf("t%d", f.nextTurn)
	f.addTurn(id, role, content, metadata)
	return &f.turns[len(f.turns)-1], nil
}

func (f *fakeStore) AttendanceSummary(_ context.Context, _ string, _ time.Time) (*models.AttendanceSummary, error) {
	return f.summary, nil
}

func newEngine(store *fakeStore, completer Completer) *Engine {
	return New(store, completer, metrics.NewCollector(), nil, nil, Options{RetryCeiling: 2})
}

// scriptedMealPlan builds a structurally valid 7-day plan.
func scriptedMealPlan() string {
	var b strings.Builder
	for day := 1; day <= 7; day++ {
		fmt.Fprintf(&b, "## Day %d\n", day)
		for _, meal := range []string{"Breakfast", "Lunch", "Dinner"} {
			fmt.Fprintf(&b, "### %s\n- Rice bowl, 1 bowl, 500 calories\n", meal)
		}
		b.WriteString("Daily total: 1500 calories\n\n")
	}
	return b.String()
}

func TestHandleMessageClarificationFlow(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	completer := &fakeCompleter{responses: []string{scriptedMealPlan()}}
	e := newEngine(store, completer)

	// First message: the engine must ask for restrictions, not generate.
	first, err := e.HandleMessage(ctx, "", "Create a 7-day meal plan for a wrestler")
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if first.ConversationID == "" {
		t.Fatal("engine should create a conversation")
	}
	if completer.calls != 0 {
		t.Errorf("clarification must not call the model, got %d calls", completer.calls)
	}
	if first.Widget != nil {
		t.Error("clarification response should carry no widget")
	}
	if !strings.Contains(strings.ToLower(first.ResponseText), "allerg") {
		t.Errorf("expected a dietary question, got %q", first.ResponseText)
	}
	if first.Intent != models.IntentMealPlan {
		t.Errorf("intent = %q, want meal_plan", first.Intent)
	}

	// Second message: the answer resumes the original request.
	second, err := e.HandleMessage(ctx, first.ConversationID, "I'm allergic to peanuts")
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if completer.calls != 1 {
		t.Fatalf("expected exactly 1 completion call, got %d", completer.calls)
	}

	// The generation prompt sees the merged request, not the bare answer
	transcript := completer.transcripts[0]
	last := transcript[len(transcript)-1]
	if last.Role != llm.RoleUser {
		t.Fatalf("last transcript message should be the user request, got %q", last.Role)
	}
	want := "Create a 7-day meal plan for a wrestler. Has a peanut allergy; peanuts must be avoided."
	if last.Content != want {
		t.Errorf("merged request = %q, want %q", last.Content, want)
	}

	if second.Widget == nil {
		t.Fatal("accepted meal plan should carry a widget")
	}
	if second.Widget.ExtractionMethod != models.ExtractionTextParse {
		t.Errorf("extraction method = %q, want text-parse", second.Widget.ExtractionMethod)
	}
	if _, ok := second.Widget.Data["days"]; !ok {
		t.Error("meal plan widget should carry parsed days")
	}

	// Pending request is consumed; a third short reply is no longer an answer
	pending, _, err := e.pending.Find(ctx, second.ConversationID)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if pending != nil {
		t.Error("pending request should be consumed after generation")
	}
}

func TestHandleMessageInlineRestrictions(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	completer := &fakeCompleter{responses: []string{scriptedMealPlan()}}
	e := newEngine(store, completer)

	result, err := e.HandleMessage(ctx, "", "Meal plan for a wrestler who is allergic to peanuts")
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if completer.calls != 1 {
		t.Errorf("inline restrictions should skip the clarification, got %d calls", completer.calls)
	}
	if result.Widget == nil {
		t.Error("expected a meal plan widget")
	}
}

func TestHandleMessageGeneral(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	completer := &fakeCompleter{responses: []string{"I can build meal plans, lesson plans and workouts."}}
	e := newEngine(store, completer)

	result, err := e.HandleMessage(ctx, "", "hey, what are you able to help me with exactly?")
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if result.Intent != models.IntentGeneral {
		t.Errorf("intent = %q, want general", result.Intent)
	}
	if result.Widget != nil {
		t.Error("general responses carry no widget")
	}
	if completer.calls != 1 {
		t.Errorf("expected 1 completion call, got %d", completer.calls)
	}
}

func TestHandleMessageNewRequestCancelsPending(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	completer := &fakeCompleter{responses: []string{
		"## Warm Up\n- Jog, 5 min\n\n## Workout\n- Squats, 3x10\n\n## Cool Down\n- Stretch, 5 min\n",
	}}
	e := newEngine(store, completer)

	first, err := e.HandleMessage(ctx, "", "Create a 7-day meal plan for a wrestler")
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	// Changing the subject to another family abandons the clarification
	second, err := e.HandleMessage(ctx, first.ConversationID, "actually just make me a workout")
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if second.Intent != models.IntentWorkout {
		t.Errorf("intent = %q, want workout", second.Intent)
	}
	if second.Widget == nil {
		t.Error("expected a workout widget")
	}

	pending, _, err := e.pending.Find(ctx, first.ConversationID)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if pending != nil {
		t.Error("superseded pending request should be cancelled")
	}
}

func TestHandleMessageAttendance(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{summary: &models.AttendanceSummary{
		Group:    "team",
		Sessions: 10,
		Present:  8,
		Absent:   2,
		Rate:     0.8,
		Students: 5,
		TopAbsentees: []models.StudentAbsences{
			{Student: "sam", Absences: 2},
		},
	}}
	completer := &fakeCompleter{}
	e := newEngine(store, completer)

	result, err := e.HandleMessage(ctx, "", "who was absent this month?")
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if completer.calls != 0 {
		t.Errorf("attendance must not call the model, got %d calls", completer.calls)
	}
	if result.Widget == nil {
		t.Fatal("expected an attendance widget")
	}
	if result.Widget.ExtractionMethod != models.ExtractionDirectCall {
		t.Errorf("extraction method = %q, want direct-call", result.Widget.ExtractionMethod)
	}
	if !strings.Contains(result.ResponseText, "sam (2)") {
		t.Errorf("response should name top absentees, got %q", result.ResponseText)
	}

	// No records at all still yields a readable answer
	store.summary = nil
	result, err = e.HandleMessage(ctx, result.ConversationID, "attendance please")
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if result.Widget != nil {
		t.Error("no records means no widget")
	}
	if !strings.Contains(result.ResponseText, "No attendance records") {
		t.Errorf("expected empty-state text, got %q", result.ResponseText)
	}
}

func TestHandleMessageRetryBound(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	// Never valid; forced policy must stop at ceiling+1 calls
	completer := &fakeCompleter{responses: []string{"Sure! I will get right on that."}}
	e := newEngine(store, completer)

	result, err := e.HandleMessage(ctx, "", "meal plan, no allergies here")
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if completer.calls != 3 {
		t.Errorf("completion calls = %d, want ceiling+1 = 3", completer.calls)
	}
	if len(result.Violations) == 0 {
		t.Error("surfaced response should keep its residual violations")
	}
	if result.ResponseText == "" {
		t.Error("even an invalid response must be returned, never dropped")
	}
}

func TestHandleMessageCompletionFailure(t *testing.T) {
	store := &fakeStore{}
	completer := &fakeCompleter{err: errors.New("connection refused")}
	e := newEngine(store, completer)

	if _, err := e.HandleMessage(context.Background(), "", "write me a workout"); err == nil {
		t.Fatal("completion failure must surface")
	}
}

func TestHandleMessageEmpty(t *testing.T) {
	e := newEngine(&fakeStore{}, &fakeCompleter{})
	if _, err := e.HandleMessage(context.Background(), "", "   "); err == nil {
		t.Error("blank message should be rejected")
	}
}

func TestConversationTitle(t *testing.T) {
	if got := conversationTitle("short message"); got != "short message" {
		t.Errorf("title = %q", got)
	}
	long := strings.Repeat("meal plan ", 20)
	title := conversationTitle(long)
	if len(title) > 70 {
		t.Errorf("long titles should be truncated, got %d chars", len(title))
	}
}
