package models

// Intent classifies what a user message is asking for. The set is closed;
// intents are derived per message, never stored.
type Intent string

const (
	IntentMealPlan      Intent = "meal_plan"
	IntentLessonPlan    Intent = "lesson_plan"
	IntentWorkout       Intent = "workout"
	IntentAttendance    Intent = "attendance"
	IntentAllergyAnswer Intent = "allergy_answer"
	IntentGeneral       Intent = "general"
)

// Widget families. Each family owns a prompt, validator and extractor.
const (
	FamilyMealPlan   = "meal_plan"
	FamilyLessonPlan = "lesson_plan"
	FamilyWorkout    = "workout"
	FamilyAttendance = "attendance"
	FamilyGeneral    = "general"
)

// FamilyIntent maps a widget family name to its request intent.
func FamilyIntent(family string) Intent {
	switch family {
	case FamilyMealPlan:
		return IntentMealPlan
	case FamilyLessonPlan:
		return IntentLessonPlan
	case FamilyWorkout:
		return IntentWorkout
	case FamilyAttendance:
		return IntentAttendance
	default:
		return IntentGeneral
	}
}
