// Package rules holds the declarative tables driving intent classification
// and response validation. The tables are an explicit configuration object:
// they are parsed once from the embedded rules.yaml and passed to consumers,
// never mutated at runtime.
package rules

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// FamilyRule binds a widget family to its keyword set. Families are evaluated
// in declaration order; the first match wins.
type FamilyRule struct {
	Family   string   `yaml:"family"`
	Keywords []string `yaml:"keywords"`
}

// MealPlanRules configures structural validation for meal plans.
type MealPlanRules struct {
	Days                 int      `yaml:"days"`
	FirstMarker          string   `yaml:"first_marker"`
	Meals                []string `yaml:"meals"`
	PrerequisiteKeywords []string `yaml:"prerequisite_keywords"`
}

// SectionRules configures validation for section-structured plans
// (workouts, lesson plans).
type SectionRules struct {
	FirstMarker string   `yaml:"first_marker"`
	Sections    []string `yaml:"sections"`
}

// Table is the full rule configuration.
type Table struct {
	Families           []FamilyRule  `yaml:"families"`
	AnswerPhrases      []string      `yaml:"answer_phrases"`
	NegativeAnswers    []string      `yaml:"negative_answers"`
	ForbiddenOpeners   []string      `yaml:"forbidden_openers"`
	PlaceholderPhrases []string      `yaml:"placeholder_phrases"`
	MealPlan           MealPlanRules `yaml:"meal_plan"`
	Workout            SectionRules  `yaml:"workout"`
	LessonPlan         SectionRules  `yaml:"lesson_plan"`
}

// Parse loads a rule table from YAML and checks it for the minimum viable
// shape.
func Parse(data []byte) (*Table, error) {
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(table.Families) == 0 {
		return nil, fmt.Errorf("parse rules: no families defined")
	}
	for i, f := range table.Families {
		if f.Family == "" {
			return nil, fmt.Errorf("parse rules: family %d has no name", i)
		}
		if len(f.Keywords) == 0 {
			return nil, fmt.Errorf("parse rules: family %q has no keywords", f.Family)
		}
	}
	if table.MealPlan.Days <= 0 {
		return nil, fmt.Errorf("parse rules: meal_plan.days must be positive")
	}
	return &table, nil
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
	defaultErr   error
)

// Default returns the table parsed from the embedded rules.yaml. The embedded
// file is validated at build time by the package tests, so a parse failure
// here is a programming error.
func Default() *Table {
	defaultOnce.Do(func() {
		defaultTable, defaultErr = Parse(defaultRulesYAML)
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultTable
}
