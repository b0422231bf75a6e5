package engine

import (
	"regexp"
	"strings"

	"github.com/jasperlabs/jasper-go/internal/models"
	"github.com/jasperlabs/jasper-go/internal/rules"
)

// Flags carries conversation state that changes how a message is read.
type Flags struct {
	// AwaitingAnswer is set when the previous assistant turn asked a
	// clarification question that has not been answered yet.
	AwaitingAnswer bool
}

// Classifier maps a user message to an intent using the ordered keyword
// tables. Classification is deterministic: no model call, same input same
// output.
type Classifier struct {
	table *rules.Table
	// Answer phrases match on word boundaries so "nut" does not fire
	// inside "nutrition".
	answerRes []*regexp.Regexp
}

// NewClassifier creates a classifier over the given rule table.
func NewClassifier(table *rules.Table) *Classifier {
	res := make([]*regexp.Regexp, 0, len(table.AnswerPhrases))
	for _, phrase := range table.AnswerPhrases {
		res = append(res, regexp.MustCompile(`\b`+regexp.QuoteMeta(strings.ToLower(phrase))+`s?\b`))
	}
	return &Classifier{table: table, answerRes: res}
}

// Classify resolves the intent of a message. While a clarification question
// is pending, answer-shaped replies short-circuit to the answer intent; a
// message that names another widget family instead starts a new request.
func (c *Classifier) Classify(message string, flags Flags) models.Intent {
	lower := strings.ToLower(strings.TrimSpace(message))

	if flags.AwaitingAnswer && c.isExplicitAnswer(lower) {
		return models.IntentAllergyAnswer
	}

	for _, family := range c.table.Families {
		for _, keyword := range family.Keywords {
			if strings.Contains(lower, keyword) {
				return models.FamilyIntent(family.Family)
			}
		}
	}

	// A short free-form reply while a question is pending is read as the
	// answer, even without a recognized phrase.
	if flags.AwaitingAnswer && wordCount(lower) <= 6 {
		return models.IntentAllergyAnswer
	}

	return models.IntentGeneral
}

// isExplicitAnswer reports whether the message reads as a direct reply to a
// pending dietary question: a negative ("none", "no allergies") or a phrase
// from the answer lexicon ("allergic", "vegetarian").
func (c *Classifier) isExplicitAnswer(lower string) bool {
	normalized := strings.Trim(lower, " .!?,")
	for _, neg := range c.table.NegativeAnswers {
		if normalized == neg {
			return true
		}
		// Multi-word negatives may be embedded in a sentence
		if strings.Contains(neg, " ") && strings.Contains(normalized, neg) {
			return true
		}
	}
	return c.MentionsAnswerPhrase(lower)
}

// MentionsAnswerPhrase reports whether the message names a dietary
// restriction anywhere, e.g. "meal plan for a wrestler allergic to peanuts".
func (c *Classifier) MentionsAnswerPhrase(message string) bool {
	lower := strings.ToLower(message)
	for _, re := range c.answerRes {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
