package sqlxrepos

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/assessment"
)

const (
	assessmentSelect = `SELECT a.id, a.title, a.description, a.assessment_type, a.created_by, a.time_limit,
a.show_correct_answers, a.randomize_questions, a.randomize_choices, a.max_attempts, a.passing_score, a.status,
a.available_from, a.available_until, a.created_at, a.updated_at,
(SELECT COALESCE(SUM(q.points), 0) FROM question q WHERE q.assessment_id = a.id) AS total_points,
(SELECT COUNT(*) FROM question q WHERE q.assessment_id = a.id) AS question_count
FROM assessment a`
	questionColumns = "id, assessment_id, question_type, question_text, points, sort_order, expected_answers_count, explanation"
	attemptColumns  = `id, student_id, assessment_id, attempt_number, started_at, completed_at, score, max_score, percentage,
is_completed, is_passed, violations, progress, progress_saved, seed`
	answerColumns = `id, attempt_id, question_id, selected_choice_id, text_answer, enumeration_answers, is_correct,
points_earned, feedback`
)

type (
	assessmentRow struct {
		ID                 string    `db:"id"`
		Title              string    `db:"title"`
		Description        string    `db:"description"`
		AssessmentType     string    `db:"assessment_type"`
		CreatedBy          string    `db:"created_by"`
		TimeLimit          null.Int  `db:"time_limit"`
		ShowCorrectAnswers bool      `db:"show_correct_answers"`
		RandomizeQuestions bool      `db:"randomize_questions"`
		RandomizeChoices   bool      `db:"randomize_choices"`
		MaxAttempts        int       `db:"max_attempts"`
		PassingScore       int       `db:"passing_score"`
		Status             string    `db:"status"`
		AvailableFrom      null.Time `db:"available_from"`
		AvailableUntil     null.Time `db:"available_until"`
		CreatedAt          null.Time `db:"created_at"`
		UpdatedAt          null.Time `db:"updated_at"`
		TotalPoints        int       `db:"total_points"`
		QuestionCount      int       `db:"question_count"`
	}

	questionRow struct {
		ID                   string `db:"id"`
		AssessmentID         string `db:"assessment_id"`
		QuestionType         string `db:"question_type"`
		QuestionText         string `db:"question_text"`
		Points               int    `db:"points"`
		Order                int    `db:"sort_order"`
		ExpectedAnswersCount int    `db:"expected_answers_count"`
		Explanation          string `db:"explanation"`
	}

	choiceRow struct {
		ID         string `db:"id"`
		QuestionID string `db:"question_id"`
		ChoiceText string `db:"choice_text"`
		IsCorrect  bool   `db:"is_correct"`
		Order      int    `db:"sort_order"`
	}

	correctAnswerRow struct {
		ID              string `db:"id"`
		QuestionID      string `db:"question_id"`
		AnswerText      string `db:"answer_text"`
		IsCaseSensitive bool   `db:"is_case_sensitive"`
		Order           int    `db:"sort_order"`
	}

	attemptRow struct {
		ID            string    `db:"id"`
		StudentID     string    `db:"student_id"`
		AssessmentID  string    `db:"assessment_id"`
		AttemptNumber int       `db:"attempt_number"`
		StartedAt     null.Time `db:"started_at"`
		CompletedAt   null.Time `db:"completed_at"`
		Score         int       `db:"score"`
		MaxScore      int       `db:"max_score"`
		Percentage    float64   `db:"percentage"`
		IsCompleted   bool      `db:"is_completed"`
		IsPassed      bool      `db:"is_passed"`
		Violations    int       `db:"violations"`
		Progress      null.JSON `db:"progress"`
		ProgressSaved null.Time `db:"progress_saved"`
		Seed          int64     `db:"seed"`
	}

	answerRow struct {
		ID                 string         `db:"id"`
		AttemptID          string         `db:"attempt_id"`
		QuestionID         string         `db:"question_id"`
		SelectedChoiceID   null.String    `db:"selected_choice_id"`
		TextAnswer         string         `db:"text_answer"`
		EnumerationAnswers pq.StringArray `db:"enumeration_answers"`
		IsCorrect          null.Bool      `db:"is_correct"`
		PointsEarned       int            `db:"points_earned"`
		Feedback           string         `db:"feedback"`
	}
)

type assessmentRepository struct {
	repository
}

var _ assessment.Repository = (*assessmentRepository)(nil)

func NewAssessmentRepository(db *sqlx.DB) *assessmentRepository {
	return &assessmentRepository{repository{db: db}}
}

func (repo assessmentRepository) SaveAssessment(ctx context.Context, a assessment.Assessment, exec ...core.DBExecutor) (assessment.Assessment, error) {
	row := assessmentRow{
		ID:                 a.ID,
		Title:              a.Title,
		Description:        a.Description,
		AssessmentType:     a.AssessmentType,
		CreatedBy:          a.CreatedBy,
		TimeLimit:          null.IntFromPtr(a.TimeLimit),
		ShowCorrectAnswers: a.ShowCorrectAnswers,
		RandomizeQuestions: a.RandomizeQuestions,
		RandomizeChoices:   a.RandomizeChoices,
		MaxAttempts:        a.MaxAttempts,
		PassingScore:       a.PassingScore,
		Status:             a.Status,
		AvailableFrom:      null.TimeFromPtr(a.AvailableFrom),
		AvailableUntil:     null.TimeFromPtr(a.AvailableUntil),
		CreatedAt:          null.TimeFrom(a.CreatedAt.UTC()),
		UpdatedAt:          null.TimeFrom(a.UpdatedAt.UTC()),
	}
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO assessment
		(id, title, description, assessment_type, created_by, time_limit, show_correct_answers, randomize_questions,
		randomize_choices, max_attempts, passing_score, status, available_from, available_until, created_at, updated_at)
		VALUES (:id, :title, :description, :assessment_type, :created_by, :time_limit, :show_correct_answers,
		:randomize_questions, :randomize_choices, :max_attempts, :passing_score, :status, :available_from,
		:available_until, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, description = EXCLUDED.description,
		assessment_type = EXCLUDED.assessment_type, time_limit = EXCLUDED.time_limit,
		show_correct_answers = EXCLUDED.show_correct_answers, randomize_questions = EXCLUDED.randomize_questions,
		randomize_choices = EXCLUDED.randomize_choices, max_attempts = EXCLUDED.max_attempts,
		passing_score = EXCLUDED.passing_score, status = EXCLUDED.status, available_from = EXCLUDED.available_from,
		available_until = EXCLUDED.available_until, updated_at = EXCLUDED.updated_at`, row)
	if err != nil {
		return assessment.Assessment{}, errors.Wrap(err, "saving assessment")
	}
	return repo.GetAssessment(ctx, a.ID, exec...)
}

func (repo assessmentRepository) GetAssessment(ctx context.Context, id string, exec ...core.DBExecutor) (assessment.Assessment, error) {
	list, err := repo.QueryAssessments(ctx, assessment.Filter{IDs: []string{id}}, exec...)
	if err != nil {
		return assessment.Assessment{}, err
	}
	if len(list) == 0 {
		return assessment.Assessment{}, assessment.ErrNotFound
	}
	return list[0], nil
}

func (repo assessmentRepository) QueryAssessments(ctx context.Context, filter assessment.Filter, exec ...core.DBExecutor) ([]assessment.Assessment, error) {
	var w where
	if len(filter.IDs) > 0 {
		w.add("a.id IN (?)", filter.IDs)
	}
	if filter.CreatedBy != "" {
		w.add("a.created_by = ?", filter.CreatedBy)
	}
	if len(filter.Statuses) > 0 {
		w.add("a.status IN (?)", filter.Statuses)
	}
	if filter.AssessmentType != "" {
		w.add("a.assessment_type = ?", filter.AssessmentType)
	}
	if filter.Search != "" {
		w.add("a.title ILIKE ?", "%"+filter.Search+"%")
	}
	q, args, err := bind(assessmentSelect+w.String()+" ORDER BY a.created_at DESC", w.args...)
	if err != nil {
		return nil, err
	}
	var rows []assessmentRow
	if err = sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying assessments")
	}
	list := make([]assessment.Assessment, 0, len(rows))
	for _, row := range rows {
		list = append(list, assessment.Assessment{
			ID:                 row.ID,
			Title:              row.Title,
			Description:        row.Description,
			AssessmentType:     row.AssessmentType,
			CreatedBy:          row.CreatedBy,
			TimeLimit:          row.TimeLimit.Ptr(),
			ShowCorrectAnswers: row.ShowCorrectAnswers,
			RandomizeQuestions: row.RandomizeQuestions,
			RandomizeChoices:   row.RandomizeChoices,
			MaxAttempts:        row.MaxAttempts,
			PassingScore:       row.PassingScore,
			Status:             row.Status,
			AvailableFrom:      row.AvailableFrom.Ptr(),
			AvailableUntil:     row.AvailableUntil.Ptr(),
			CreatedAt:          row.CreatedAt.Time,
			UpdatedAt:          row.UpdatedAt.Time,
			TotalPoints:        row.TotalPoints,
			QuestionCount:      row.QuestionCount,
		})
	}
	return list, nil
}

func (repo assessmentRepository) DeleteAssessment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM assessment WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting assessment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assessment.ErrNotFound
	}
	return nil
}

// Questions

func (repo assessmentRepository) SaveQuestion(ctx context.Context, q assessment.Question, exec ...core.DBExecutor) (assessment.Question, error) {
	exe := repo.getExec(exec)
	row := questionRow{
		ID:                   q.ID,
		AssessmentID:         q.AssessmentID,
		QuestionType:         q.QuestionType,
		QuestionText:         q.QuestionText,
		Points:               q.Points,
		Order:                q.Order,
		ExpectedAnswersCount: q.ExpectedAnswersCount,
		Explanation:          q.Explanation,
	}
	_, err := sqlx.NamedExecContext(ctx, exe, `INSERT INTO question (`+questionColumns+`)
		VALUES (:id, :assessment_id, :question_type, :question_text, :points, :sort_order, :expected_answers_count, :explanation)
		ON CONFLICT (id) DO UPDATE SET question_type = EXCLUDED.question_type, question_text = EXCLUDED.question_text,
		points = EXCLUDED.points, sort_order = EXCLUDED.sort_order,
		expected_answers_count = EXCLUDED.expected_answers_count, explanation = EXCLUDED.explanation`, row)
	if err != nil {
		return assessment.Question{}, errors.Wrap(err, "saving question")
	}

	if _, err = exe.ExecContext(ctx, "DELETE FROM choice WHERE question_id = $1", q.ID); err != nil {
		return assessment.Question{}, errors.Wrap(err, "clearing choices")
	}
	if _, err = exe.ExecContext(ctx, "DELETE FROM correct_answer WHERE question_id = $1", q.ID); err != nil {
		return assessment.Question{}, errors.Wrap(err, "clearing correct answers")
	}
	for _, c := range q.Choices {
		_, err = exe.ExecContext(ctx,
			"INSERT INTO choice (id, question_id, choice_text, is_correct, sort_order) VALUES ($1, $2, $3, $4, $5)",
			c.ID, q.ID, c.ChoiceText, c.IsCorrect, c.Order)
		if err != nil {
			return assessment.Question{}, errors.Wrap(err, "saving choice")
		}
	}
	for _, ca := range q.CorrectAnswers {
		_, err = exe.ExecContext(ctx,
			"INSERT INTO correct_answer (id, question_id, answer_text, is_case_sensitive, sort_order) VALUES ($1, $2, $3, $4, $5)",
			ca.ID, q.ID, ca.AnswerText, ca.IsCaseSensitive, ca.Order)
		if err != nil {
			return assessment.Question{}, errors.Wrap(err, "saving correct answer")
		}
	}
	return repo.GetQuestion(ctx, q.ID, exec...)
}

func (repo assessmentRepository) queryQuestions(ctx context.Context, exec []core.DBExecutor, w where) ([]assessment.Question, error) {
	exe := repo.getExec(exec)

	q, args, err := bind("SELECT "+questionColumns+" FROM question"+w.String()+" ORDER BY sort_order, id", w.args...)
	if err != nil {
		return nil, err
	}
	var rows []questionRow
	if err = sqlx.SelectContext(ctx, exe, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	questions := make([]assessment.Question, 0, len(rows))
	ids := make([]string, 0, len(rows))
	index := make(map[string]int, len(rows))
	for i, row := range rows {
		questions = append(questions, assessment.Question{
			ID:                   row.ID,
			AssessmentID:         row.AssessmentID,
			QuestionType:         row.QuestionType,
			QuestionText:         row.QuestionText,
			Points:               row.Points,
			Order:                row.Order,
			ExpectedAnswersCount: row.ExpectedAnswersCount,
			Explanation:          row.Explanation,
			Choices:              []assessment.Choice{},
			CorrectAnswers:       []assessment.CorrectAnswer{},
		})
		ids = append(ids, row.ID)
		index[row.ID] = i
	}
	if len(ids) == 0 {
		return questions, nil
	}

	q, args, err = bind("SELECT id, question_id, choice_text, is_correct, sort_order FROM choice WHERE question_id IN (?) ORDER BY sort_order, id", ids)
	if err != nil {
		return nil, err
	}
	var choices []choiceRow
	if err = sqlx.SelectContext(ctx, exe, &choices, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying choices")
	}
	for _, c := range choices {
		i := index[c.QuestionID]
		questions[i].Choices = append(questions[i].Choices, assessment.Choice(c))
	}

	q, args, err = bind("SELECT id, question_id, answer_text, is_case_sensitive, sort_order FROM correct_answer WHERE question_id IN (?) ORDER BY sort_order, id", ids)
	if err != nil {
		return nil, err
	}
	var answers []correctAnswerRow
	if err = sqlx.SelectContext(ctx, exe, &answers, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying correct answers")
	}
	for _, ca := range answers {
		i := index[ca.QuestionID]
		questions[i].CorrectAnswers = append(questions[i].CorrectAnswers, assessment.CorrectAnswer(ca))
	}
	return questions, nil
}

func (repo assessmentRepository) GetQuestion(ctx context.Context, id string, exec ...core.DBExecutor) (assessment.Question, error) {
	var w where
	w.add("id = ?", id)
	questions, err := repo.queryQuestions(ctx, exec, w)
	if err != nil {
		return assessment.Question{}, err
	}
	if len(questions) == 0 {
		return assessment.Question{}, assessment.ErrQuestionNotFound
	}
	return questions[0], nil
}

func (repo assessmentRepository) QueryQuestions(ctx context.Context, assessmentID string, exec ...core.DBExecutor) ([]assessment.Question, error) {
	var w where
	w.add("assessment_id = ?", assessmentID)
	return repo.queryQuestions(ctx, exec, w)
}

func (repo assessmentRepository) DeleteQuestion(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM question WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting question")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assessment.ErrQuestionNotFound
	}
	return nil
}

// Attempts

func (repo assessmentRepository) SaveAttempt(ctx context.Context, at assessment.Attempt, exec ...core.DBExecutor) (assessment.Attempt, error) {
	row := attemptRow{
		ID:            at.ID,
		StudentID:     at.StudentID,
		AssessmentID:  at.AssessmentID,
		AttemptNumber: at.AttemptNumber,
		StartedAt:     null.TimeFrom(at.StartedAt.UTC()),
		CompletedAt:   null.TimeFromPtr(at.CompletedAt),
		Score:         at.Score,
		MaxScore:      at.MaxScore,
		Percentage:    at.Percentage,
		IsCompleted:   at.IsCompleted,
		IsPassed:      at.IsPassed,
		Violations:    at.Violations,
		Progress:      null.JSONFrom(at.Progress),
		ProgressSaved: null.TimeFromPtr(at.ProgressSaved),
		Seed:          at.Seed,
	}
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO student_attempt (`+attemptColumns+`)
		VALUES (:id, :student_id, :assessment_id, :attempt_number, :started_at, :completed_at, :score, :max_score,
		:percentage, :is_completed, :is_passed, :violations, :progress, :progress_saved, :seed)
		ON CONFLICT (id) DO UPDATE SET completed_at = EXCLUDED.completed_at, score = EXCLUDED.score,
		max_score = EXCLUDED.max_score, percentage = EXCLUDED.percentage, is_completed = EXCLUDED.is_completed,
		is_passed = EXCLUDED.is_passed, violations = EXCLUDED.violations, progress = EXCLUDED.progress,
		progress_saved = EXCLUDED.progress_saved`, row)
	if err != nil {
		return assessment.Attempt{}, trapUniqueErr(err, assessment.ErrDuplicate, "saving attempt")
	}
	return at, nil
}

func (repo assessmentRepository) fromAttemptRow(row attemptRow) assessment.Attempt {
	at := assessment.Attempt{
		ID:            row.ID,
		StudentID:     row.StudentID,
		AssessmentID:  row.AssessmentID,
		AttemptNumber: row.AttemptNumber,
		StartedAt:     row.StartedAt.Time,
		CompletedAt:   row.CompletedAt.Ptr(),
		Score:         row.Score,
		MaxScore:      row.MaxScore,
		Percentage:    row.Percentage,
		IsCompleted:   row.IsCompleted,
		IsPassed:      row.IsPassed,
		Violations:    row.Violations,
		ProgressSaved: row.ProgressSaved.Ptr(),
		Seed:          row.Seed,
	}
	if row.Progress.Valid {
		at.Progress = json.RawMessage(row.Progress.JSON)
	}
	return at
}

func (repo assessmentRepository) GetAttempt(ctx context.Context, id string, exec ...core.DBExecutor) (assessment.Attempt, error) {
	var row attemptRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, "SELECT "+attemptColumns+" FROM student_attempt WHERE id = $1", id)
	if err != nil {
		return assessment.Attempt{}, trapNoRowsErr(err, assessment.ErrAttemptNotFound, "finding attempt")
	}
	return repo.fromAttemptRow(row), nil
}

func (repo assessmentRepository) QueryAttempts(ctx context.Context, filter assessment.AttemptFilter, exec ...core.DBExecutor) ([]assessment.Attempt, error) {
	var w where
	if len(filter.IDs) > 0 {
		w.add("id IN (?)", filter.IDs)
	}
	if filter.StudentID != "" {
		w.add("student_id = ?", filter.StudentID)
	}
	if len(filter.AssessmentIDs) > 0 {
		w.add("assessment_id IN (?)", filter.AssessmentIDs)
	}
	if filter.CompletedOnly {
		w.add("is_completed")
	}
	if !filter.Since.IsZero() {
		w.add("started_at >= ?", filter.Since.UTC())
	}
	q, args, err := bind("SELECT "+attemptColumns+" FROM student_attempt"+w.String()+" ORDER BY attempt_number, started_at", w.args...)
	if err != nil {
		return nil, err
	}
	var rows []attemptRow
	if err = sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying attempts")
	}
	attempts := make([]assessment.Attempt, 0, len(rows))
	for _, row := range rows {
		attempts = append(attempts, repo.fromAttemptRow(row))
	}
	return attempts, nil
}

// Answers

func (repo assessmentRepository) SaveAnswers(ctx context.Context, answers []assessment.Answer, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	for _, a := range answers {
		enum := a.EnumerationAnswers
		if enum == nil {
			enum = []string{}
		}
		row := answerRow{
			ID:                 a.ID,
			AttemptID:          a.AttemptID,
			QuestionID:         a.QuestionID,
			SelectedChoiceID:   nullID(a.SelectedChoiceID),
			TextAnswer:         a.TextAnswer,
			EnumerationAnswers: enum,
			IsCorrect:          null.BoolFromPtr(a.IsCorrect),
			PointsEarned:       a.PointsEarned,
			Feedback:           a.Feedback,
		}
		_, err := sqlx.NamedExecContext(ctx, exe, `INSERT INTO student_answer (`+answerColumns+`)
			VALUES (:id, :attempt_id, :question_id, :selected_choice_id, :text_answer, :enumeration_answers, :is_correct,
			:points_earned, :feedback)
			ON CONFLICT (attempt_id, question_id) DO UPDATE SET selected_choice_id = EXCLUDED.selected_choice_id,
			text_answer = EXCLUDED.text_answer, enumeration_answers = EXCLUDED.enumeration_answers,
			is_correct = EXCLUDED.is_correct, points_earned = EXCLUDED.points_earned, feedback = EXCLUDED.feedback`, row)
		if err != nil {
			return errors.Wrap(err, "saving answer")
		}
	}
	return nil
}

func (repo assessmentRepository) QueryAnswers(ctx context.Context, attemptIDs []string, exec ...core.DBExecutor) ([]assessment.Answer, error) {
	answers := make([]assessment.Answer, 0)
	if len(attemptIDs) == 0 {
		return answers, nil
	}
	q, args, err := bind(`SELECT sa.id, sa.attempt_id, sa.question_id, sa.selected_choice_id, sa.text_answer,
		sa.enumeration_answers, sa.is_correct, sa.points_earned, sa.feedback
		FROM student_answer sa JOIN question q ON q.id = sa.question_id
		WHERE sa.attempt_id IN (?) ORDER BY q.sort_order, sa.id`, attemptIDs)
	if err != nil {
		return nil, err
	}
	var rows []answerRow
	if err = sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}
	for _, row := range rows {
		answers = append(answers, assessment.Answer{
			ID:                 row.ID,
			AttemptID:          row.AttemptID,
			QuestionID:         row.QuestionID,
			SelectedChoiceID:   row.SelectedChoiceID.String,
			TextAnswer:         row.TextAnswer,
			EnumerationAnswers: row.EnumerationAnswers,
			IsCorrect:          row.IsCorrect.Ptr(),
			PointsEarned:       row.PointsEarned,
			Feedback:           row.Feedback,
		})
	}
	return answers, nil
}

// Violations

func (repo assessmentRepository) CreateViolation(ctx context.Context, v assessment.Violation, exec ...core.DBExecutor) (assessment.Violation, error) {
	_, err := repo.getExec(exec).ExecContext(ctx, `INSERT INTO attempt_violation (id, attempt_id, violation_type, details, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`, v.ID, v.AttemptID, v.ViolationType, v.Details, v.OccurredAt.UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" { // foreign_key_violation
			return assessment.Violation{}, assessment.ErrAttemptNotFound
		}
		return assessment.Violation{}, errors.Wrap(err, "saving violation")
	}
	return v, nil
}

func (repo assessmentRepository) QueryViolations(ctx context.Context, attemptID string, exec ...core.DBExecutor) ([]assessment.Violation, error) {
	rows, err := repo.getExec(exec).QueryxContext(ctx, `SELECT id, attempt_id, violation_type, details, occurred_at
		FROM attempt_violation WHERE attempt_id = $1 ORDER BY occurred_at`, attemptID)
	if err != nil {
		return nil, errors.Wrap(err, "querying violations")
	}
	defer func() { _ = rows.Close() }()

	violations := make([]assessment.Violation, 0)
	for rows.Next() {
		var v assessment.Violation
		if err = rows.Scan(&v.ID, &v.AttemptID, &v.ViolationType, &v.Details, &v.OccurredAt); err != nil {
			return nil, errors.Wrap(err, "scanning violation")
		}
		violations = append(violations, v)
	}
	return violations, errors.Wrap(rows.Err(), "querying violations")
}
