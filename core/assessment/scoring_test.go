package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mcQuestion() Question {
	return Question{
		ID:           "q1",
		QuestionType: QuestionMultipleChoice,
		Points:       2,
		Choices: []Choice{
			{ID: "c1", ChoiceText: "Manila", IsCorrect: true},
			{ID: "c2", ChoiceText: "Cebu"},
		},
	}
}

func TestScoreAnswer_Choices(t *testing.T) {
	q := mcQuestion()
	tests := []struct {
		name     string
		choiceID string
		correct  bool
		points   int
	}{
		{"correct choice", "c1", true, 2},
		{"wrong choice", "c2", false, 0},
		{"no choice", "", false, 0},
		{"foreign choice", "zz", false, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ans := Answer{SelectedChoiceID: tc.choiceID}
			ScoreAnswer(q, &ans)
			require.NotNil(t, ans.IsCorrect)
			assert.Equal(t, tc.correct, *ans.IsCorrect)
			assert.Equal(t, tc.points, ans.PointsEarned)
		})
	}
}

func TestScoreAnswer_Identification(t *testing.T) {
	q := Question{
		QuestionType: QuestionIdentification,
		Points:       3,
		CorrectAnswers: []CorrectAnswer{
			{AnswerText: "Photosynthesis"},
			{AnswerText: "DNA", IsCaseSensitive: true},
		},
	}
	tests := []struct {
		given   string
		correct bool
	}{
		{"photosynthesis", true},
		{"  PHOTOSYNTHESIS ", true},
		{"DNA", true},
		{"dna", false},
		{"", false},
		{"mitosis", false},
	}
	for _, tc := range tests {
		t.Run(tc.given, func(t *testing.T) {
			ans := Answer{TextAnswer: tc.given}
			ScoreAnswer(q, &ans)
			require.NotNil(t, ans.IsCorrect)
			assert.Equal(t, tc.correct, *ans.IsCorrect)
			if tc.correct {
				assert.Equal(t, 3, ans.PointsEarned)
			} else {
				assert.Zero(t, ans.PointsEarned)
			}
		})
	}
}

func TestScoreAnswer_Enumeration(t *testing.T) {
	q := Question{
		QuestionType:         QuestionEnumeration,
		Points:               4,
		ExpectedAnswersCount: 3,
		CorrectAnswers: []CorrectAnswer{
			{AnswerText: "red"},
			{AnswerText: "green"},
			{AnswerText: "blue"},
		},
	}
	tests := []struct {
		name    string
		given   []string
		correct bool
		points  int
	}{
		{"all", []string{"Red", "green", "BLUE"}, true, 4},
		{"two of three", []string{"red", "blue"}, false, 2},
		{"one of three", []string{"green", "purple"}, false, 1},
		{"duplicates count once", []string{"red", "RED", "red"}, false, 1},
		{"extra items", []string{"red", "green", "blue", "yellow"}, true, 4},
		{"none", nil, false, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ans := Answer{EnumerationAnswers: tc.given}
			ScoreAnswer(q, &ans)
			require.NotNil(t, ans.IsCorrect)
			assert.Equal(t, tc.correct, *ans.IsCorrect)
			assert.Equal(t, tc.points, ans.PointsEarned)
		})
	}

	t.Run("expected count defaults to answers", func(t *testing.T) {
		q := q
		q.ExpectedAnswersCount = 0
		ans := Answer{EnumerationAnswers: []string{"red", "green", "blue"}}
		ScoreAnswer(q, &ans)
		assert.True(t, *ans.IsCorrect)
		assert.Equal(t, 4, ans.PointsEarned)
	})
}

func TestScoreAnswer_EssayUngraded(t *testing.T) {
	q := Question{QuestionType: QuestionEssay, Points: 10}
	ans := Answer{TextAnswer: "An essay", PointsEarned: 7}
	ScoreAnswer(q, &ans)
	assert.Nil(t, ans.IsCorrect)
	assert.Zero(t, ans.PointsEarned)
	assert.True(t, NeedsGrading(q, ans))
}

func TestScoreAttempt(t *testing.T) {
	questions := []Question{{Points: 2}, {Points: 3}, {Points: 1}}

	s := ScoreAttempt(questions, []Answer{{PointsEarned: 2}, {PointsEarned: 2}}, 60)
	assert.Equal(t, 4, s.Score)
	assert.Equal(t, 6, s.MaxScore)
	assert.Equal(t, 66.67, s.Percentage)
	assert.True(t, s.Passed)

	s = ScoreAttempt(questions, []Answer{{PointsEarned: 1}}, 60)
	assert.Equal(t, 16.67, s.Percentage)
	assert.False(t, s.Passed)

	s = ScoreAttempt(nil, nil, 60)
	assert.Zero(t, s.Percentage)
	assert.False(t, s.Passed)
}

func TestApplyQuestionInput(t *testing.T) {
	t.Run("true/false creates choices", func(t *testing.T) {
		q := Question{ID: "q"}
		applyQuestionInput(&q, QuestionInput{QuestionType: QuestionTrueFalse, QuestionText: "?", Points: 1, CorrectAnswer: "false"}, true)
		require.Len(t, q.Choices, 2)
		assert.Equal(t, "True", q.Choices[0].ChoiceText)
		assert.False(t, q.Choices[0].IsCorrect)
		assert.Equal(t, "False", q.Choices[1].ChoiceText)
		assert.True(t, q.Choices[1].IsCorrect)

		ids := []string{q.Choices[0].ID, q.Choices[1].ID}
		applyQuestionInput(&q, QuestionInput{QuestionType: QuestionTrueFalse, QuestionText: "?", Points: 1, CorrectAnswer: "true"}, false)
		assert.Equal(t, ids, []string{q.Choices[0].ID, q.Choices[1].ID})
		assert.True(t, q.Choices[0].IsCorrect)
		assert.False(t, q.Choices[1].IsCorrect)
	})

	t.Run("essay answers are never case sensitive", func(t *testing.T) {
		q := Question{ID: "q"}
		applyQuestionInput(&q, QuestionInput{
			QuestionType: QuestionEssay,
			Answers:      []CorrectAnswerInput{{AnswerText: "Ref", IsCaseSensitive: true}},
		}, true)
		require.Len(t, q.CorrectAnswers, 1)
		assert.False(t, q.CorrectAnswers[0].IsCaseSensitive)
		assert.Equal(t, 1, q.CorrectAnswers[0].Order)
	})

	t.Run("multiple choice edit without choices keeps them", func(t *testing.T) {
		q := mcQuestion()
		q.QuestionType = QuestionMultipleChoice
		applyQuestionInput(&q, QuestionInput{QuestionType: QuestionMultipleChoice, QuestionText: "Capital?", Points: 5}, false)
		assert.Len(t, q.Choices, 2)
		assert.Equal(t, 5, q.Points)
	})
}

func TestBuildAttemptView_DeterministicOrder(t *testing.T) {
	var questions []Question
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		questions = append(questions, Question{ID: id, QuestionType: QuestionIdentification, Points: 1})
	}
	a := Assessment{RandomizeQuestions: true}
	at := Attempt{Seed: 42}

	first := buildAttemptView(a, at, questions, false)
	again := buildAttemptView(a, at, questions, true)
	require.Len(t, first.Questions, 6)
	for i := range first.Questions {
		assert.Equal(t, first.Questions[i].ID, again.Questions[i].ID)
	}
	assert.Equal(t, "a", questions[0].ID, "source slice is left untouched")
}

func TestHideKey(t *testing.T) {
	q := mcQuestion()
	q.Explanation = "because"
	q.CorrectAnswers = []CorrectAnswer{{AnswerText: "x"}}
	hidden := hideKey(q)
	assert.False(t, hidden.Choices[0].IsCorrect)
	assert.Empty(t, hidden.CorrectAnswers)
	assert.Empty(t, hidden.Explanation)
	assert.True(t, q.Choices[0].IsCorrect)
}
