package extract

import (
	"testing"

	"github.com/jasperlabs/jasper-go/internal/models"
	"github.com/jasperlabs/jasper-go/internal/rules"
)

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	return New(rules.Default())
}

const sampleMealPlan = `## Day 1
### Breakfast
- Oatmeal, 1 cup, 300 calories
- Banana, 1 medium, 105 calories
### Lunch
- Chicken wrap, 1 wrap, 450 calories
### Dinner
- Salmon, 6 oz, 350 calories
Daily total: 1205 calories

## Day 2
### Breakfast
- Eggs, 2 large, 140 calories
Daily total: 140 calories
`

func TestExtractMealPlan(t *testing.T) {
	e := newExtractor(t)
	payload := e.Widget(models.FamilyMealPlan, sampleMealPlan, "7-day meal plan")

	if payload.WidgetType != models.FamilyMealPlan {
		t.Errorf("widget type = %q, want %q", payload.WidgetType, models.FamilyMealPlan)
	}
	if payload.ExtractionMethod != models.ExtractionTextParse {
		t.Errorf("extraction method = %q, want text-parse", payload.ExtractionMethod)
	}
	if payload.Data["original_request"] != "7-day meal plan" {
		t.Errorf("original request not carried into payload")
	}

	days, ok := payload.Data["days"].([]map[string]any)
	if !ok {
		t.Fatalf("days missing or mistyped: %T", payload.Data["days"])
	}
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}

	day1 := days[0]
	if day1["day"] != 1 {
		t.Errorf("day number = %v, want 1", day1["day"])
	}
	if day1["total_calories"] != 1205 {
		t.Errorf("total calories = %v, want 1205", day1["total_calories"])
	}
	meals := day1["meals"].([]map[string]any)
	if len(meals) != 3 {
		t.Fatalf("expected 3 meals on day 1, got %d", len(meals))
	}
	if meals[0]["name"] != "Breakfast" {
		t.Errorf("first meal = %v, want Breakfast", meals[0]["name"])
	}
	items := meals[0]["items"].([]map[string]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 breakfast items, got %d", len(items))
	}
	if items[0]["name"] != "Oatmeal" {
		t.Errorf("item name = %v, want Oatmeal", items[0]["name"])
	}
	if items[0]["serving"] != "1 cup" {
		t.Errorf("serving = %v, want '1 cup'", items[0]["serving"])
	}
	if items[0]["calories"] != 300 {
		t.Errorf("calories = %v, want 300", items[0]["calories"])
	}
}

func TestExtractMealPlanHeadingVariants(t *testing.T) {
	e := newExtractor(t)
	text := "**Day 1:**\nBreakfast:\n- Toast, 2 slices, 200 cal\n"
	payload := e.Widget(models.FamilyMealPlan, text, "")

	days, ok := payload.Data["days"].([]map[string]any)
	if !ok || len(days) != 1 {
		t.Fatalf("bold/colon headings should still parse, data: %v", payload.Data)
	}
	meals := days[0]["meals"].([]map[string]any)
	if len(meals) != 1 || meals[0]["name"] != "Breakfast" {
		t.Fatalf("expected one Breakfast meal, got %v", meals)
	}
	items := meals[0]["items"].([]map[string]any)
	if len(items) != 1 || items[0]["calories"] != 200 {
		t.Errorf("'cal' suffix should parse as calories, items: %v", items)
	}
}

func TestExtractMealPlanSkipsHeadingEcho(t *testing.T) {
	e := newExtractor(t)
	// First bullet repeats the meal heading verbatim; it carries no data
	text := "Day 1\nBreakfast\n- Breakfast\n- Oatmeal, 1 cup, 300 calories\n"
	payload := e.Widget(models.FamilyMealPlan, text, "")

	days := payload.Data["days"].([]map[string]any)
	meals := days[0]["meals"].([]map[string]any)
	items := meals[0]["items"].([]map[string]any)
	if len(items) != 1 {
		t.Fatalf("heading echo bullet should be suppressed, items: %v", items)
	}
	if items[0]["name"] != "Oatmeal" {
		t.Errorf("surviving item = %v, want Oatmeal", items[0]["name"])
	}
}

func TestExtractFallsBackToRawText(t *testing.T) {
	e := newExtractor(t)
	text := "I could not structure this as a plan, but here are some ideas."
	payload := e.Widget(models.FamilyMealPlan, text, "meal plan")

	if payload.ExtractionMethod != models.ExtractionTextParse {
		t.Errorf("fallback keeps text-parse method, got %q", payload.ExtractionMethod)
	}
	if payload.Data["raw_text"] != text {
		t.Error("fallback payload should carry the full response text")
	}
	if _, ok := payload.Data["days"]; ok {
		t.Error("fallback payload should not fabricate days")
	}
}

func TestExtractWorkout(t *testing.T) {
	e := newExtractor(t)
	text := `## Warm Up
- Jumping jacks, 2 min
## Workout
- Squats, 3x10
- Push ups: 4 x 12
## Cool Down
- Hamstring stretch, 30 sec
`
	payload := e.Widget(models.FamilyWorkout, text, "leg day")

	sections, ok := payload.Data["sections"].([]map[string]any)
	if !ok || len(sections) != 3 {
		t.Fatalf("expected 3 sections, data: %v", payload.Data)
	}
	if sections[0]["name"] != "Warm Up" {
		t.Errorf("first section = %v, want Warm Up", sections[0]["name"])
	}

	warm := sections[0]["items"].([]map[string]any)
	if warm[0]["duration"] != "2 min" {
		t.Errorf("duration = %v, want '2 min'", warm[0]["duration"])
	}

	main := sections[1]["items"].([]map[string]any)
	if len(main) != 2 {
		t.Fatalf("expected 2 workout items, got %d", len(main))
	}
	if main[0]["sets"] != 3 || main[0]["reps"] != 10 {
		t.Errorf("squats sets/reps = %v/%v, want 3/10", main[0]["sets"], main[0]["reps"])
	}
	if main[1]["sets"] != 4 || main[1]["reps"] != 12 {
		t.Errorf("spaced 'x' should still parse, got %v/%v", main[1]["sets"], main[1]["reps"])
	}
}

func TestExtractLessonPlan(t *testing.T) {
	e := newExtractor(t)
	text := `## Objectives
- Understand equivalent fractions
## Materials
- Fraction strips
## Activities
- Warm-up discussion (10 min)
- Group practice (25 minutes)
## Assessment
- Exit ticket
`
	payload := e.Widget(models.FamilyLessonPlan, text, "fractions lesson")

	sections := payload.Data["sections"].([]map[string]any)
	if len(sections) != 4 {
		t.Fatalf("expected 4 sections, got %d", len(sections))
	}

	var activities []map[string]any
	for _, s := range sections {
		if s["name"] == "Activities" {
			activities = s["items"].([]map[string]any)
		}
	}
	if len(activities) != 2 {
		t.Fatalf("expected 2 activities, got %v", activities)
	}
	if activities[0]["minutes"] != 10 {
		t.Errorf("first activity minutes = %v, want 10", activities[0]["minutes"])
	}
	if activities[1]["minutes"] != 25 {
		t.Errorf("'minutes' spelling should parse, got %v", activities[1]["minutes"])
	}
}

func TestExtractUnknownFamilyIsRawText(t *testing.T) {
	e := newExtractor(t)
	payload := e.Widget(models.FamilyGeneral, "hello", "hi")
	if payload.Data["raw_text"] != "hello" {
		t.Error("families without a parser should degrade to raw text")
	}
}
