// Package extract parses accepted response text into structured widget
// payloads. Extraction is total: when a response carries no recognizable
// structure the extractor degrades to a raw-text payload instead of failing,
// so the caller always has something to render.
package extract

import (
	"regexp"
	"strings"

	"github.com/jasperlabs/jasper-go/internal/models"
	"github.com/jasperlabs/jasper-go/internal/rules"
)

// Extractor derives widget payloads from response text using the shared
// rule table for family structure.
type Extractor struct {
	table *rules.Table
}

// New creates an extractor over the given rule table.
func New(table *rules.Table) *Extractor {
	return &Extractor{table: table}
}

// Widget parses the response text for the given family. The original user
// request is carried into the payload for rendering context.
func (e *Extractor) Widget(family, text, originalRequest string) models.WidgetPayload {
	var data map[string]any
	switch family {
	case models.FamilyMealPlan:
		data = e.parseMealPlan(text)
	case models.FamilyWorkout:
		data = e.parseSectioned(text, e.table.Workout.Sections, parseWorkoutItem)
	case models.FamilyLessonPlan:
		data = e.parseSectioned(text, e.table.LessonPlan.Sections, parseLessonItem)
	default:
		return models.RawTextPayload(family, text)
	}
	if data == nil {
		return models.RawTextPayload(family, text)
	}
	data["original_request"] = originalRequest
	return models.WidgetPayload{
		WidgetType:       family,
		Data:             data,
		ExtractionMethod: models.ExtractionTextParse,
	}
}

var (
	headingDecorRe = regexp.MustCompile(`^[#>*\s]+|[*:\s]+$`)
	calorieRe      = regexp.MustCompile(`(?i)(\d+)\s*(?:k?cal|calories?)\b`)
)

// cleanHeading strips markdown decoration so "## **Day 1:**" and "Day 1"
// compare equal.
func cleanHeading(line string) string {
	return headingDecorRe.ReplaceAllString(line, "")
}

func isBullet(line string) bool {
	return strings.HasPrefix(line, "- ") ||
		strings.HasPrefix(line, "* ") ||
		strings.HasPrefix(line, "• ")
}

func bulletBody(line string) string {
	return strings.TrimSpace(strings.TrimLeft(line, "-*• "))
}

// matchSection reports which configured section a heading line names, if any.
func matchSection(line string, sections []string) (string, bool) {
	cleaned := strings.ToLower(cleanHeading(line))
	for _, section := range sections {
		if strings.Contains(cleaned, strings.ToLower(section)) {
			return section, true
		}
	}
	return "", false
}
