package engine

import (
	"github.com/jasperlabs/jasper-go/internal/llm"
	"github.com/jasperlabs/jasper-go/internal/models"
)

// Policy controls what happens when a generated response fails validation.
type Policy string

const (
	// PolicyForced retries until valid or the ceiling is hit, then surfaces
	// the last response with its residual violations. Used for
	// safety-critical families.
	PolicyForced Policy = "forced"
	// PolicyAdvisory records violations and returns the response as-is,
	// without a correction call.
	PolicyAdvisory Policy = "advisory"
	// PolicyNone skips validation entirely.
	PolicyNone Policy = "none"
)

// Prerequisite names information that must be gathered before a family's
// widget may be generated.
type Prerequisite struct {
	Awaiting string
	Question string
}

// Handler describes how one widget family is produced: which model tier and
// system prompt generate it, how strictly it is validated, and whether a
// prerequisite exchange gates it.
type Handler struct {
	Family       string
	Intent       models.Intent
	Policy       Policy
	Tier         llm.Tier
	SystemPrompt string
	Prerequisite *Prerequisite
	// DirectCall families answer from backend data without a model call.
	DirectCall bool
}

// Registry resolves intents to handlers. The handler set is fixed at
// construction; unknown intents fall back to the general handler.
type Registry struct {
	handlers map[models.Intent]*Handler
	fallback *Handler
	order    []models.Intent
}

const mealPlanPrompt = `You are Jasper, an assistant for teachers and coaches.
Produce a complete 7-day meal plan.
Requirements:
- Begin immediately with "Day 1". Never open with an acknowledgment.
- Write out every day from Day 1 through Day 7 in full. Never abbreviate with "repeat the pattern" or similar.
- Each day has Breakfast, Lunch and Dinner sections.
- Every food item is a bullet of the form: name, serving size, calories (e.g. "- Oatmeal, 1 cup, 300 calories").
- End each day with a daily calorie total.
- Honor every dietary restriction in the request without exception.`

const lessonPlanPrompt = `You are Jasper, an assistant for teachers and coaches.
Produce a complete lesson plan.
Requirements:
- Begin immediately with "Objectives". Never open with an acknowledgment.
- Include Objectives, Materials, Activities and Assessment sections.
- Give each activity a time allocation in minutes, e.g. "(15 min)".
- Write every section out in full.`

const workoutPrompt = `You are Jasper, an assistant for teachers and coaches.
Produce a complete workout.
Requirements:
- Begin immediately with "Warm Up". Never open with an acknowledgment.
- Include Warm Up, Workout and Cool Down sections.
- Give each exercise sets and reps (e.g. "3x10") or a duration (e.g. "2 min").
- Write every section out in full.`

const generalPrompt = `You are Jasper, an assistant for teachers and coaches.
You can create meal plans, lesson plans and workouts, and report attendance
summaries. Answer concisely. When the user seems to want one of those,
suggest how to ask for it.`

// NewRegistry builds the fixed handler set.
func NewRegistry() *Registry {
	handlers := []*Handler{
		{
			Family:       models.FamilyMealPlan,
			Intent:       models.IntentMealPlan,
			Policy:       PolicyForced,
			Tier:         llm.TierQuality,
			SystemPrompt: mealPlanPrompt,
			Prerequisite: &Prerequisite{
				Awaiting: "dietary_restrictions",
				Question: "Before I build the meal plan: does the athlete have any allergies or dietary restrictions I should know about?",
			},
		},
		{
			Family:       models.FamilyLessonPlan,
			Intent:       models.IntentLessonPlan,
			Policy:       PolicyAdvisory,
			Tier:         llm.TierQuality,
			SystemPrompt: lessonPlanPrompt,
		},
		{
			Family:       models.FamilyWorkout,
			Intent:       models.IntentWorkout,
			Policy:       PolicyAdvisory,
			Tier:         llm.TierQuality,
			SystemPrompt: workoutPrompt,
		},
		{
			Family:     models.FamilyAttendance,
			Intent:     models.IntentAttendance,
			Policy:     PolicyNone,
			DirectCall: true,
		},
		{
			Family:       models.FamilyGeneral,
			Intent:       models.IntentGeneral,
			Policy:       PolicyNone,
			Tier:         llm.TierFast,
			SystemPrompt: generalPrompt,
		},
	}

	r := &Registry{handlers: make(map[models.Intent]*Handler, len(handlers))}
	for _, h := range handlers {
		r.handlers[h.Intent] = h
		r.order = append(r.order, h.Intent)
		if h.Family == models.FamilyGeneral {
			r.fallback = h
		}
	}
	return r
}

// Resolve returns the handler for an intent, falling back to the general
// handler for anything unregistered.
func (r *Registry) Resolve(intent models.Intent) *Handler {
	if h, ok := r.handlers[intent]; ok {
		return h
	}
	return r.fallback
}

// Intents lists the registered intents in registration order.
func (r *Registry) Intents() []models.Intent {
	out := make([]models.Intent, len(r.order))
	copy(out, r.order)
	return out
}
