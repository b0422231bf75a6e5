package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	setsRepsRe = regexp.MustCompile(`(?i)\b(\d+)\s*x\s*(\d+)\b`)
	durationRe = regexp.MustCompile(`(?i)\b(\d+)\s*(min(?:ute)?s?|sec(?:ond)?s?)\b`)
)

type itemParser func(body string) map[string]any

// parseSectioned groups bullet items under the configured section headings.
// Returns nil when none of the sections appear so the caller can fall back
// to a raw-text payload.
func (e *Extractor) parseSectioned(text string, sections []string, parse itemParser) map[string]any {
	var ordered []map[string]any
	var cur map[string]any

	flush := func() {
		if cur != nil {
			ordered = append(ordered, cur)
			cur = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if name, ok := matchSection(trimmed, sections); ok && !isBullet(trimmed) {
			flush()
			cur = map[string]any{"name": name, "items": []map[string]any{}}
			continue
		}

		if isBullet(trimmed) && cur != nil {
			body := bulletBody(trimmed)
			if strings.EqualFold(body, cur["name"].(string)) {
				continue
			}
			items := cur["items"].([]map[string]any)
			cur["items"] = append(items, parse(body))
		}
	}
	flush()

	if len(ordered) == 0 {
		return nil
	}
	return map[string]any{"sections": ordered}
}

// parseWorkoutItem reads an exercise bullet, pulling out sets x reps or a
// duration when present.
func parseWorkoutItem(body string) map[string]any {
	item := map[string]any{}
	name := body
	if idx := strings.IndexAny(body, ",:"); idx >= 0 {
		name = strings.TrimSpace(body[:idx])
	}
	item["name"] = name
	item["description"] = body

	if m := setsRepsRe.FindStringSubmatch(body); m != nil {
		sets, _ := strconv.Atoi(m[1])
		reps, _ := strconv.Atoi(m[2])
		item["sets"] = sets
		item["reps"] = reps
	} else if m := durationRe.FindStringSubmatch(body); m != nil {
		item["duration"] = strings.TrimSpace(m[0])
	}
	return item
}

// parseLessonItem reads an activity bullet, pulling out a parenthesized time
// allocation like "(20 min)" when present.
func parseLessonItem(body string) map[string]any {
	item := map[string]any{"description": body}
	if m := durationRe.FindStringSubmatch(body); m != nil {
		minutes, _ := strconv.Atoi(m[1])
		if strings.HasPrefix(strings.ToLower(m[2]), "min") {
			item["minutes"] = minutes
		}
	}
	return item
}
