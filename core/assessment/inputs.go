package assessment

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spist/campus/core"
)

const (
	maxEssayReferences  = 5
	defaultPassingScore = 60
)

type AssessmentInput struct {
	Title              string     `json:"title" validate:"required,max=200"`
	Description        string     `json:"description"`
	AssessmentType     string     `json:"assessment_type" validate:"required,oneof=quiz exam"`
	TimeLimit          *int       `json:"time_limit" validate:"omitempty,min=1,max=600"`
	ShowCorrectAnswers *bool      `json:"show_correct_answers"`
	RandomizeQuestions bool       `json:"randomize_questions"`
	RandomizeChoices   bool       `json:"randomize_choices"`
	MaxAttempts        int        `json:"max_attempts" validate:"min=1,max=10"`
	PassingScore       *int       `json:"passing_score" validate:"omitempty,min=0,max=100"`
	AvailableFrom      *time.Time `json:"available_from"`
	AvailableUntil     *time.Time `json:"available_until"`
}

func (in *AssessmentInput) Validate(validate *validator.Validate) error {
	in.Title = core.StripTags(core.CleanString(in.Title))
	in.Description = core.SanitizeHTML(strings.TrimSpace(in.Description))
	if in.AssessmentType == "" {
		in.AssessmentType = TypeQuiz
	}
	if in.MaxAttempts == 0 {
		in.MaxAttempts = 1
	}
	if err := validate.Struct(in); err != nil {
		return err
	}
	if in.AvailableFrom != nil && in.AvailableUntil != nil && !in.AvailableUntil.After(*in.AvailableFrom) {
		return core.NewFieldError("available_until", "must be after available_from")
	}
	return nil
}

func (in AssessmentInput) passingScore() int {
	if in.PassingScore == nil {
		return defaultPassingScore
	}
	return *in.PassingScore
}

type ChoiceInput struct {
	ChoiceText string `json:"choice_text" validate:"required"`
	IsCorrect  bool   `json:"is_correct"`
}

type CorrectAnswerInput struct {
	AnswerText      string `json:"answer_text" validate:"required"`
	IsCaseSensitive bool   `json:"is_case_sensitive"`
}

// QuestionInput adds or edits a question. Which of Choices, Answers and CorrectAnswer is used
// depends on QuestionType.
type QuestionInput struct {
	QuestionType         string               `json:"question_type" validate:"required,oneof=multiple_choice true_false identification enumeration essay"`
	QuestionText         string               `json:"question_text" validate:"required"`
	Points               int                  `json:"points" validate:"min=1,max=100"`
	ExpectedAnswersCount int                  `json:"expected_answers_count" validate:"min=0,max=20"`
	Explanation          string               `json:"explanation"`
	Choices              []ChoiceInput        `json:"choices" validate:"max=10,dive"`
	Answers              []CorrectAnswerInput `json:"answers" validate:"max=20,dive"`
	CorrectAnswer        string               `json:"correct_answer" validate:"omitempty,oneof=true false"`
}

func (in *QuestionInput) Validate(validate *validator.Validate) error {
	in.QuestionText = core.SanitizeHTML(strings.TrimSpace(in.QuestionText))
	in.Explanation = core.StripTags(strings.TrimSpace(in.Explanation))
	in.CorrectAnswer = strings.ToLower(strings.TrimSpace(in.CorrectAnswer))
	if in.Points == 0 {
		in.Points = 1
	}
	for i := range in.Choices {
		in.Choices[i].ChoiceText = core.StripTags(strings.TrimSpace(in.Choices[i].ChoiceText))
	}
	for i := range in.Answers {
		in.Answers[i].AnswerText = strings.TrimSpace(in.Answers[i].AnswerText)
	}
	if err := validate.Struct(in); err != nil {
		return err
	}

	switch in.QuestionType {
	case QuestionMultipleChoice:
		if len(in.Choices) > 0 {
			if len(in.Choices) < 2 {
				return core.NewFieldError("choices", "a multiple choice question needs at least 2 choices")
			}
			if !anyCorrect(in.Choices) {
				return core.NewFieldError("choices", "at least one choice must be correct")
			}
		}
	case QuestionTrueFalse:
		if in.CorrectAnswer == "" {
			in.CorrectAnswer = "true"
		}
	case QuestionEssay:
		if len(in.Answers) > maxEssayReferences {
			return core.NewFieldError("answers", "an essay question takes at most 5 reference answers")
		}
		for i := range in.Answers {
			in.Answers[i].IsCaseSensitive = false
		}
	case QuestionEnumeration:
		if in.ExpectedAnswersCount == 0 {
			in.ExpectedAnswersCount = len(in.Answers)
		}
	}
	if in.ExpectedAnswersCount == 0 {
		in.ExpectedAnswersCount = 1
	}
	return nil
}

func anyCorrect(choices []ChoiceInput) bool {
	for _, c := range choices {
		if c.IsCorrect {
			return true
		}
	}
	return false
}

type AnswerInput struct {
	QuestionID         string   `json:"question_id" validate:"required"`
	SelectedChoiceID   string   `json:"selected_choice_id"`
	TextAnswer         string   `json:"text_answer"`
	EnumerationAnswers []string `json:"enumeration_answers" validate:"max=50"`
}

// Submission holds a student's answers. Saved progress uses the same shape.
type Submission struct {
	Answers         []AnswerInput `json:"answers" validate:"max=500,dive"`
	CurrentQuestion int           `json:"current_question,omitempty"`
}

func (sub *Submission) Validate(validate *validator.Validate) error {
	for i := range sub.Answers {
		a := &sub.Answers[i]
		a.TextAnswer = strings.TrimSpace(a.TextAnswer)
		items := a.EnumerationAnswers[:0]
		for _, item := range a.EnumerationAnswers {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		a.EnumerationAnswers = items
	}
	return validate.Struct(sub)
}

type ViolationInput struct {
	ViolationType string `json:"violation_type" validate:"required,oneof=tab_switch window_blur copy paste right_click fullscreen_exit devtools other"`
	Details       string `json:"details" validate:"max=500"`
}

func (in *ViolationInput) Validate(validate *validator.Validate) error {
	in.Details = core.StripTags(strings.TrimSpace(in.Details))
	return validate.Struct(in)
}

type AnswerGrade struct {
	AnswerID string `json:"answer_id" validate:"required"`
	Points   int    `json:"points" validate:"min=0"`
	Feedback string `json:"feedback"`
}

type GradeInput struct {
	Grades []AnswerGrade `json:"grades" validate:"required,min=1,dive"`
}

func (in *GradeInput) Validate(validate *validator.Validate) error {
	for i := range in.Grades {
		in.Grades[i].Feedback = core.StripTags(strings.TrimSpace(in.Grades[i].Feedback))
	}
	return validate.Struct(in)
}
