package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	dayHeadingRe = regexp.MustCompile(`(?i)^day\s*(\d+)\b`)
	totalLineRe  = regexp.MustCompile(`(?i)total`)
)

// parseMealPlan walks the response line by line, grouping food items under
// meal headings under day headings. Returns nil when no day heading is found
// so the caller can fall back to a raw-text payload.
func (e *Extractor) parseMealPlan(text string) map[string]any {
	var days []map[string]any
	var curDay map[string]any
	var curMeals []map[string]any
	var curMeal map[string]any

	flushMeal := func() {
		if curMeal != nil {
			curMeals = append(curMeals, curMeal)
			curMeal = nil
		}
	}
	flushDay := func() {
		flushMeal()
		if curDay != nil {
			curDay["meals"] = curMeals
			days = append(days, curDay)
			curDay = nil
			curMeals = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		cleaned := cleanHeading(trimmed)

		if m := dayHeadingRe.FindStringSubmatch(cleaned); m != nil {
			flushDay()
			num, _ := strconv.Atoi(m[1])
			curDay = map[string]any{"day": num, "title": "Day " + m[1]}
			continue
		}
		if curDay == nil {
			continue
		}

		if name, ok := matchSection(trimmed, e.table.MealPlan.Meals); ok && !isBullet(trimmed) {
			flushMeal()
			curMeal = map[string]any{"name": name, "items": []map[string]any{}}
			continue
		}

		if totalLineRe.MatchString(cleaned) && !isBullet(trimmed) {
			if cal, ok := firstCalorieFigure(cleaned); ok {
				curDay["total_calories"] = cal
			}
			continue
		}

		if isBullet(trimmed) && curMeal != nil {
			body := bulletBody(trimmed)
			// A bullet that merely repeats the meal heading it sits under
			// carries no data
			if strings.EqualFold(body, curMeal["name"].(string)) {
				continue
			}
			items := curMeal["items"].([]map[string]any)
			curMeal["items"] = append(items, parseFoodItem(body))
		}
	}
	flushDay()

	if len(days) == 0 {
		return nil
	}
	return map[string]any{"days": days}
}

// parseFoodItem splits "Oatmeal, 1 cup, 300 calories" into name, serving and
// calorie fields. Missing pieces are simply omitted.
func parseFoodItem(body string) map[string]any {
	item := map[string]any{}
	parts := strings.Split(body, ",")
	item["name"] = strings.TrimSpace(parts[0])

	var serving []string
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if calorieRe.MatchString(part) {
			continue
		}
		if part != "" {
			serving = append(serving, part)
		}
	}
	if len(serving) > 0 {
		item["serving"] = strings.Join(serving, ", ")
	}
	if cal, ok := firstCalorieFigure(body); ok {
		item["calories"] = cal
	}
	return item
}

func firstCalorieFigure(s string) (int, bool) {
	m := calorieRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	cal, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return cal, true
}
