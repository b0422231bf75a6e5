// Package validate checks generated responses against per-family structural
// contracts. Validators are pure: they report violations as human-readable
// strings and never retry or mutate anything.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jasperlabs/jasper-go/internal/models"
	"github.com/jasperlabs/jasper-go/internal/rules"
)

// Context carries per-request facts the structural predicates need.
type Context struct {
	// PrerequisiteSatisfied reports whether the required information for a
	// safety-critical family (dietary restrictions) has been recorded.
	PrerequisiteSatisfied bool
}

// Validator evaluates family contracts against response text.
type Validator struct {
	table *rules.Table
}

// New creates a validator over the given rule table.
func New(table *rules.Table) *Validator {
	return &Validator{table: table}
}

var calorieRe = regexp.MustCompile(`(?i)\b\d+\s*(k?cal|calories?)\b`)

// Validate runs the family's ordered predicate list against the response
// text. Violations are listed in rule-declaration order.
func (v *Validator) Validate(family, text string, vctx Context) models.ValidationResult {
	switch family {
	case models.FamilyMealPlan:
		return v.validateMealPlan(text, vctx)
	case models.FamilyWorkout:
		return v.validateSections(text, v.table.Workout, "workout")
	case models.FamilyLessonPlan:
		return v.validateSections(text, v.table.LessonPlan, "lesson plan")
	default:
		// Attendance payloads come from a direct backend call and general
		// replies are free-form; neither has a structural contract.
		return models.Valid()
	}
}

func (v *Validator) validateMealPlan(text string, vctx Context) models.ValidationResult {
	if !vctx.PrerequisiteSatisfied {
		// Before restrictions are recorded the only acceptable response is
		// the clarification question itself.
		if v.asksPrerequisite(text) {
			return models.Valid()
		}
		return models.Invalid([]string{
			"response must ask about dietary restrictions before producing a meal plan",
		})
	}

	var violations []string
	violations = append(violations, v.openerViolations(text)...)

	mp := v.table.MealPlan
	if !firstLineHasMarker(text, mp.FirstMarker) {
		violations = append(violations,
			fmt.Sprintf("response must begin with %q", mp.FirstMarker))
	}

	violations = append(violations, v.placeholderViolations(text)...)

	lower := strings.ToLower(text)
	for day := 1; day <= mp.Days; day++ {
		re := regexp.MustCompile(fmt.Sprintf(`(?i)\bday\s*%d\b`, day))
		if !re.MatchString(lower) {
			violations = append(violations, fmt.Sprintf("missing section for Day %d", day))
		}
	}

	if line, ok := firstFoodLineWithoutCalories(text, mp.FirstMarker); ok {
		violations = append(violations,
			fmt.Sprintf("food line missing a calorie figure: %q", line))
	}

	return models.Invalid(violations)
}

func (v *Validator) validateSections(text string, sr rules.SectionRules, label string) models.ValidationResult {
	var violations []string
	violations = append(violations, v.openerViolations(text)...)

	if sr.FirstMarker != "" && !firstLineHasMarker(text, sr.FirstMarker) {
		violations = append(violations,
			fmt.Sprintf("response must begin with %q", sr.FirstMarker))
	}

	violations = append(violations, v.placeholderViolations(text)...)

	lower := strings.ToLower(text)
	for _, section := range sr.Sections {
		if !strings.Contains(lower, strings.ToLower(section)) {
			violations = append(violations,
				fmt.Sprintf("missing %s section %q", label, section))
		}
	}

	return models.Invalid(violations)
}

// openerViolations flags responses that open by acknowledging the request
// instead of performing it.
func (v *Validator) openerViolations(text string) []string {
	line := strings.ToLower(firstContentLine(text))
	for _, opener := range v.table.ForbiddenOpeners {
		if strings.HasPrefix(line, strings.ToLower(opener)) {
			return []string{fmt.Sprintf(
				"response must not open with an acknowledgment (%q); produce the content directly", opener)}
		}
	}
	return nil
}

func (v *Validator) placeholderViolations(text string) []string {
	var violations []string
	lower := strings.ToLower(text)
	for _, phrase := range v.table.PlaceholderPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			violations = append(violations, fmt.Sprintf(
				"response contains placeholder phrase %q; every section must be written out in full", phrase))
		}
	}
	return violations
}

func (v *Validator) asksPrerequisite(text string) bool {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "?") {
		return false
	}
	for _, keyword := range v.table.MealPlan.PrerequisiteKeywords {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// firstContentLine returns the first non-empty line stripped of markdown
// heading and emphasis decorations.
func firstContentLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		cleaned := strings.TrimSpace(line)
		cleaned = strings.Trim(cleaned, "#*_> ")
		if cleaned != "" {
			return cleaned
		}
	}
	return ""
}

func firstLineHasMarker(text, marker string) bool {
	line := strings.ToLower(firstContentLine(text))
	return strings.Contains(line, strings.ToLower(marker))
}

// firstFoodLineWithoutCalories scans bullet lines after the first day marker
// and returns the first one lacking a calorie figure.
func firstFoodLineWithoutCalories(text, firstMarker string) (string, bool) {
	started := false
	markerLower := strings.ToLower(firstMarker)
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !started {
			if strings.Contains(strings.ToLower(trimmed), markerLower) {
				started = true
			}
			continue
		}
		if !isBullet(trimmed) {
			continue
		}
		// Totals lines carry calories too, so the same predicate applies
		if !calorieRe.MatchString(trimmed) {
			return trimmed, true
		}
	}
	return "", false
}

func isBullet(line string) bool {
	return strings.HasPrefix(line, "- ") ||
		strings.HasPrefix(line, "* ") ||
		strings.HasPrefix(line, "• ")
}
