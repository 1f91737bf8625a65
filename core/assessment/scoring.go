package assessment

import (
	"math"
	"strings"

	"github.com/spist/campus/core"
)

// Score of an attempt.
type Score struct {
	Score      int
	MaxScore   int
	Percentage float64
	Passed     bool
}

// ScoreAnswer grades an answer to q in place. Essay answers are left ungraded.
func ScoreAnswer(q Question, a *Answer) {
	a.PointsEarned = 0
	a.IsCorrect = nil

	switch q.QuestionType {
	case QuestionMultipleChoice, QuestionTrueFalse:
		c, ok := q.choice(a.SelectedChoiceID)
		correct := ok && c.IsCorrect
		a.IsCorrect = &correct
		if correct {
			a.PointsEarned = q.Points
		}

	case QuestionIdentification:
		correct := matchesAny(a.TextAnswer, q.CorrectAnswers)
		a.IsCorrect = &correct
		if correct {
			a.PointsEarned = q.Points
		}

	case QuestionEnumeration:
		expected := q.ExpectedAnswersCount
		if expected <= 0 {
			expected = len(q.CorrectAnswers)
		}
		if expected == 0 {
			correct := false
			a.IsCorrect = &correct
			return
		}
		matched := countMatches(a.EnumerationAnswers, q.CorrectAnswers)
		if matched > expected {
			matched = expected
		}
		correct := matched >= expected
		a.IsCorrect = &correct
		a.PointsEarned = int(math.Floor(float64(q.Points) * float64(matched) / float64(expected)))
	}
}

func answerMatches(given string, ca CorrectAnswer) bool {
	expected := strings.TrimSpace(ca.AnswerText)
	if ca.IsCaseSensitive {
		return given == expected
	}
	return strings.EqualFold(given, expected)
}

func matchesAny(given string, answers []CorrectAnswer) bool {
	given = strings.TrimSpace(given)
	if given == "" {
		return false
	}
	for _, ca := range answers {
		if answerMatches(given, ca) {
			return true
		}
	}
	return false
}

// countMatches counts the distinct given items that match a correct answer, each correct answer
// being matched at most once.
func countMatches(given []string, answers []CorrectAnswer) int {
	used := make([]bool, len(answers))
	seen := make(map[string]bool, len(given))
	matched := 0
	for _, item := range given {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" || seen[key] {
			continue
		}
		seen[key] = true
		for i, ca := range answers {
			if !used[i] && answerMatches(item, ca) {
				used[i] = true
				matched++
				break
			}
		}
	}
	return matched
}

// ScoreAttempt totals the points earned in answers against the questions of an assessment.
func ScoreAttempt(questions []Question, answers []Answer, passingScore int) Score {
	var s Score
	for _, q := range questions {
		s.MaxScore += q.Points
	}
	for _, a := range answers {
		s.Score += a.PointsEarned
	}
	if s.MaxScore > 0 {
		s.Percentage = core.Round(float64(s.Score)/float64(s.MaxScore)*100, 2)
	}
	s.Passed = s.Percentage >= float64(passingScore)
	return s
}

func (s Score) apply(at *Attempt) {
	at.Score = s.Score
	at.MaxScore = s.MaxScore
	at.Percentage = s.Percentage
	at.IsPassed = s.Passed
}

// NeedsGrading reports whether an answer awaits manual grading.
func NeedsGrading(q Question, a Answer) bool {
	return q.QuestionType == QuestionEssay && a.IsCorrect == nil
}
