package assessment

import (
	"encoding/json"
	"time"
)

// Assessment types
const (
	TypeQuiz = "quiz"
	TypeExam = "exam"
)

// Assessment statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Question types
const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionTrueFalse      = "true_false"
	QuestionIdentification = "identification"
	QuestionEnumeration    = "enumeration"
	QuestionEssay          = "essay"
)

var QuestionTypes = []string{
	QuestionMultipleChoice,
	QuestionTrueFalse,
	QuestionIdentification,
	QuestionEnumeration,
	QuestionEssay,
}

// Violation types
const (
	ViolationTabSwitch      = "tab_switch"
	ViolationWindowBlur     = "window_blur"
	ViolationCopy           = "copy"
	ViolationPaste          = "paste"
	ViolationRightClick     = "right_click"
	ViolationFullscreenExit = "fullscreen_exit"
	ViolationDevtools       = "devtools"
	ViolationOther          = "other"
)

type Assessment struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	AssessmentType     string     `json:"assessment_type"`
	CreatedBy          string     `json:"created_by"`
	TimeLimit          *int       `json:"time_limit"` // minutes
	ShowCorrectAnswers bool       `json:"show_correct_answers"`
	RandomizeQuestions bool       `json:"randomize_questions"`
	RandomizeChoices   bool       `json:"randomize_choices"`
	MaxAttempts        int        `json:"max_attempts"`
	PassingScore       int        `json:"passing_score"`
	Status             string     `json:"status"`
	AvailableFrom      *time.Time `json:"available_from"`
	AvailableUntil     *time.Time `json:"available_until"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	// computed by repositories
	TotalPoints   int `json:"total_points"`
	QuestionCount int `json:"question_count"`
}

// IsAvailable reports whether students can take the assessment at t.
func (a Assessment) IsAvailable(t time.Time) bool {
	if a.Status != StatusPublished {
		return false
	}
	if a.AvailableFrom != nil && t.Before(*a.AvailableFrom) {
		return false
	}
	if a.AvailableUntil != nil && t.After(*a.AvailableUntil) {
		return false
	}
	return true
}

// Deadline returns when an attempt started at startedAt must be submitted, if the assessment is timed.
func (a Assessment) Deadline(startedAt time.Time) (time.Time, bool) {
	if a.TimeLimit == nil || *a.TimeLimit <= 0 {
		return time.Time{}, false
	}
	return startedAt.Add(time.Duration(*a.TimeLimit) * time.Minute), true
}

type Question struct {
	ID                   string          `json:"id"`
	AssessmentID         string          `json:"assessment_id"`
	QuestionType         string          `json:"question_type"`
	QuestionText         string          `json:"question_text"`
	Points               int             `json:"points"`
	Order                int             `json:"order"`
	ExpectedAnswersCount int             `json:"expected_answers_count"`
	Explanation          string          `json:"explanation"`
	Choices              []Choice        `json:"choices"`
	CorrectAnswers       []CorrectAnswer `json:"correct_answers"`
}

func (q Question) HasChoices() bool {
	return q.QuestionType == QuestionMultipleChoice || q.QuestionType == QuestionTrueFalse
}

func (q Question) choice(id string) (Choice, bool) {
	for _, c := range q.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

type Choice struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	ChoiceText string `json:"choice_text"`
	IsCorrect  bool   `json:"is_correct"`
	Order      int    `json:"order"`
}

// CorrectAnswer is an accepted answer of an identification or enumeration question,
// or a reference answer of an essay question.
type CorrectAnswer struct {
	ID              string `json:"id"`
	QuestionID      string `json:"question_id"`
	AnswerText      string `json:"answer_text"`
	IsCaseSensitive bool   `json:"is_case_sensitive"`
	Order           int    `json:"order"`
}

type Attempt struct {
	ID            string          `json:"id"`
	StudentID     string          `json:"student_id"`
	AssessmentID  string          `json:"assessment_id"`
	AttemptNumber int             `json:"attempt_number"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at"`
	Score         int             `json:"score"`
	MaxScore      int             `json:"max_score"`
	Percentage    float64         `json:"percentage"`
	IsCompleted   bool            `json:"is_completed"`
	IsPassed      bool            `json:"is_passed"`
	Violations    int             `json:"violations"`
	Progress      json.RawMessage `json:"progress,omitempty"`
	ProgressSaved *time.Time      `json:"progress_saved"`
	Seed          int64           `json:"-"`
}

type Answer struct {
	ID                 string   `json:"id"`
	AttemptID          string   `json:"attempt_id"`
	QuestionID         string   `json:"question_id"`
	SelectedChoiceID   string   `json:"selected_choice_id"`
	TextAnswer         string   `json:"text_answer"`
	EnumerationAnswers []string `json:"enumeration_answers"`
	IsCorrect          *bool    `json:"is_correct"` // nil until graded
	PointsEarned       int      `json:"points_earned"`
	Feedback           string   `json:"feedback"`
}

type Violation struct {
	ID            string    `json:"id"`
	AttemptID     string    `json:"attempt_id"`
	ViolationType string    `json:"violation_type"`
	Details       string    `json:"details"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Filters

type Filter struct {
	IDs            []string `query:"id"`
	CreatedBy      string   `query:"-"`
	Statuses       []string `query:"status"`
	AssessmentType string   `query:"type"`
	Search         string   `query:"search"`
}

type AttemptFilter struct {
	IDs           []string
	StudentID     string
	AssessmentIDs []string
	CompletedOnly bool
	Since         time.Time
}

// Views

// Detail is an assessment along with its questions, as seen by its author.
type Detail struct {
	Assessment Assessment `json:"assessment"`
	Questions  []Question `json:"questions"`
}

// ChoiceView is a Choice without its correctness.
type ChoiceView struct {
	ID         string `json:"id"`
	ChoiceText string `json:"choice_text"`
}

// QuestionView is a question as shown to a student taking an assessment.
type QuestionView struct {
	ID                   string       `json:"id"`
	QuestionType         string       `json:"question_type"`
	QuestionText         string       `json:"question_text"`
	Points               int          `json:"points"`
	ExpectedAnswersCount int          `json:"expected_answers_count"`
	Choices              []ChoiceView `json:"choices"`
}

type AttemptView struct {
	Assessment Assessment     `json:"assessment"`
	Attempt    Attempt        `json:"attempt"`
	Questions  []QuestionView `json:"questions"`
	Deadline   *time.Time     `json:"deadline"`
	Resumed    bool           `json:"resumed"`
}

type AnswerResult struct {
	Question Question `json:"question"`
	Answer   *Answer  `json:"answer"`
}

// Result is a scored attempt. Questions carry their correct answers only when they may be shown.
type Result struct {
	Assessment Assessment     `json:"assessment"`
	Attempt    Attempt        `json:"attempt"`
	Answers    []AnswerResult `json:"answers"`
}

type AvailableAssessment struct {
	Assessment     Assessment `json:"assessment"`
	AttemptsUsed   int        `json:"attempts_used"`
	BestPercentage *float64   `json:"best_percentage"`
	InProgress     bool       `json:"in_progress"`
	CanAttempt     bool       `json:"can_attempt"`
}

type AttemptSummary struct {
	Attempt     Attempt `json:"attempt"`
	StudentName string  `json:"student_name"`
	Email       string  `json:"email"`
}

type GradingItem struct {
	Attempt         Attempt `json:"attempt"`
	AssessmentTitle string  `json:"assessment_title"`
	StudentName     string  `json:"student_name"`
	PendingAnswers  int     `json:"pending_answers"`
}
