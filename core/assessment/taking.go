package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/user"
)

// Available lists the published assessments a student can currently see, with their attempt stats.
func (svc *service) Available(ctx context.Context, student user.User) ([]AvailableAssessment, error) {
	published, err := svc.repo.QueryAssessments(ctx, Filter{Statuses: []string{StatusPublished}})
	if err != nil {
		return nil, errors.Wrap(err, "querying published assessments")
	}
	now := NowFunc().UTC()
	ids := make([]string, 0, len(published))
	open := make([]Assessment, 0, len(published))
	for _, a := range published {
		if a.IsAvailable(now) && a.QuestionCount > 0 {
			open = append(open, a)
			ids = append(ids, a.ID)
		}
	}
	if len(open) == 0 {
		return []AvailableAssessment{}, nil
	}

	attempts, err := svc.repo.QueryAttempts(ctx, AttemptFilter{StudentID: student.ID, AssessmentIDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying attempts")
	}
	byAssessment := make(map[string][]Attempt)
	for _, at := range attempts {
		byAssessment[at.AssessmentID] = append(byAssessment[at.AssessmentID], at)
	}

	res := make([]AvailableAssessment, 0, len(open))
	for _, a := range open {
		item := AvailableAssessment{Assessment: a}
		for _, at := range byAssessment[a.ID] {
			item.AttemptsUsed++
			if !at.IsCompleted {
				item.InProgress = true
				continue
			}
			if item.BestPercentage == nil || at.Percentage > *item.BestPercentage {
				pct := at.Percentage
				item.BestPercentage = &pct
			}
		}
		item.CanAttempt = item.InProgress || item.AttemptsUsed < a.MaxAttempts
		res = append(res, item)
	}
	return res, nil
}

// Start begins a new attempt, or resumes the one in progress. An in-progress attempt whose time is
// up is submitted with its saved progress first.
func (svc *service) Start(ctx context.Context, student user.User, assessmentID string) (AttemptView, error) {
	if !student.IsStudent() {
		return AttemptView{}, core.ErrForbidden
	}
	a, err := svc.repo.GetAssessment(ctx, assessmentID)
	if err != nil {
		return AttemptView{}, err
	}
	now := NowFunc().UTC()
	if !a.IsAvailable(now) {
		return AttemptView{}, ErrNotAvailable
	}
	questions, err := svc.repo.QueryQuestions(ctx, a.ID)
	if err != nil {
		return AttemptView{}, errors.Wrap(err, "querying questions")
	}
	if len(questions) == 0 {
		return AttemptView{}, ErrNotAvailable
	}

	attempts, err := svc.repo.QueryAttempts(ctx, AttemptFilter{StudentID: student.ID, AssessmentIDs: []string{a.ID}})
	if err != nil {
		return AttemptView{}, errors.Wrap(err, "querying attempts")
	}
	lastNumber := 0
	for _, at := range attempts {
		if at.AttemptNumber > lastNumber {
			lastNumber = at.AttemptNumber
		}
		if at.IsCompleted {
			continue
		}
		if svc.timeUp(a, at, now) {
			if _, err = svc.finalize(ctx, a, at, questions, savedProgress(at)); err != nil {
				return AttemptView{}, errors.Wrap(err, "submitting expired attempt")
			}
			continue
		}
		return buildAttemptView(a, at, questions, true), nil
	}
	if len(attempts) >= a.MaxAttempts {
		return AttemptView{}, ErrMaxAttempts
	}

	at := Attempt{
		ID:            newID(),
		StudentID:     student.ID,
		AssessmentID:  a.ID,
		AttemptNumber: lastNumber + 1,
		StartedAt:     now,
		MaxScore:      totalPoints(questions),
		Seed:          rand.Int63(),
	}
	if at, err = svc.repo.SaveAttempt(ctx, at); err != nil {
		if errors.Cause(err) == ErrDuplicate {
			return AttemptView{}, ErrNotAvailable
		}
		return AttemptView{}, errors.Wrap(err, "saving attempt")
	}
	return buildAttemptView(a, at, questions, false), nil
}

// currentAttempt returns the student's attempt in progress on the assessment.
func (svc *service) currentAttempt(ctx context.Context, student user.User, assessmentID string) (Assessment, Attempt, error) {
	a, err := svc.repo.GetAssessment(ctx, assessmentID)
	if err != nil {
		return Assessment{}, Attempt{}, err
	}
	attempts, err := svc.repo.QueryAttempts(ctx, AttemptFilter{StudentID: student.ID, AssessmentIDs: []string{a.ID}})
	if err != nil {
		return Assessment{}, Attempt{}, errors.Wrap(err, "querying attempts")
	}
	for _, at := range attempts {
		if !at.IsCompleted {
			return a, at, nil
		}
	}
	return Assessment{}, Attempt{}, ErrNoAttemptInProgress
}

func (svc *service) timeUp(a Assessment, at Attempt, now time.Time) bool {
	deadline, ok := a.Deadline(at.StartedAt)
	return ok && now.After(deadline.Add(svc.grace))
}

func (svc *service) SaveProgress(ctx context.Context, student user.User, assessmentID string, sub Submission) (Attempt, error) {
	a, at, err := svc.currentAttempt(ctx, student, assessmentID)
	if err != nil {
		return Attempt{}, err
	}
	now := NowFunc().UTC()
	if svc.timeUp(a, at, now) {
		return Attempt{}, ErrTimeUp
	}
	data, err := json.Marshal(sub)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "encoding progress")
	}
	at.Progress = data
	at.ProgressSaved = &now
	return svc.repo.SaveAttempt(ctx, at)
}

func savedProgress(at Attempt) Submission {
	var sub Submission
	if len(at.Progress) > 0 {
		_ = json.Unmarshal(at.Progress, &sub)
	}
	return sub
}

func (svc *service) TrackViolation(ctx context.Context, student user.User, assessmentID string, in ViolationInput) (Attempt, error) {
	_, at, err := svc.currentAttempt(ctx, student, assessmentID)
	if err != nil {
		return Attempt{}, err
	}
	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		v := Violation{
			ID:            newID(),
			AttemptID:     at.ID,
			ViolationType: in.ViolationType,
			Details:       in.Details,
			OccurredAt:    NowFunc().UTC(),
		}
		if _, err := svc.repo.CreateViolation(ctx, v, exec); err != nil {
			return errors.Wrap(err, "creating violation")
		}
		at.Violations++
		at, err = svc.repo.SaveAttempt(ctx, at, exec)
		return err
	})
	return at, err
}

// Submit scores and completes the attempt in progress. Answers submitted after the time limit and
// its grace period are discarded in favour of the last saved progress.
func (svc *service) Submit(ctx context.Context, student user.User, assessmentID string, sub Submission) (Result, error) {
	a, at, err := svc.currentAttempt(ctx, student, assessmentID)
	if err != nil {
		return Result{}, err
	}
	questions, err := svc.repo.QueryQuestions(ctx, a.ID)
	if err != nil {
		return Result{}, errors.Wrap(err, "querying questions")
	}
	if svc.timeUp(a, at, NowFunc().UTC()) {
		svc.logger.Info(fmt.Sprintf("late submission of attempt %s, scoring saved progress", at.ID))
		sub = savedProgress(at)
	}
	answers, err := svc.finalize(ctx, a, at, questions, sub)
	if err != nil {
		return Result{}, err
	}
	at, err = svc.repo.GetAttempt(ctx, at.ID)
	if err != nil {
		return Result{}, errors.Wrap(err, "reloading attempt")
	}
	return buildResult(a, at, questions, answers, a.ShowCorrectAnswers), nil
}

// finalize records an answer for every question, scores them and completes the attempt.
func (svc *service) finalize(ctx context.Context, a Assessment, at Attempt, questions []Question, sub Submission) ([]Answer, error) {
	given := make(map[string]AnswerInput, len(sub.Answers))
	for _, in := range sub.Answers {
		given[in.QuestionID] = in
	}

	answers := make([]Answer, 0, len(questions))
	for _, q := range questions {
		in := given[q.ID]
		ans := Answer{
			ID:         newID(),
			AttemptID:  at.ID,
			QuestionID: q.ID,
			TextAnswer: in.TextAnswer,
		}
		if _, ok := q.choice(in.SelectedChoiceID); ok {
			ans.SelectedChoiceID = in.SelectedChoiceID
		}
		if q.QuestionType == QuestionEnumeration {
			ans.EnumerationAnswers = in.EnumerationAnswers
		}
		ScoreAnswer(q, &ans)
		if q.QuestionType == QuestionEssay && ans.TextAnswer == "" {
			// nothing to grade
			f := false
			ans.IsCorrect = &f
		}
		answers = append(answers, ans)
	}

	now := NowFunc().UTC()
	at.IsCompleted = true
	at.CompletedAt = &now
	ScoreAttempt(questions, answers, a.PassingScore).apply(&at)

	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.SaveAnswers(ctx, answers, exec); err != nil {
			return errors.Wrap(err, "saving answers")
		}
		_, err := svc.repo.SaveAttempt(ctx, at, exec)
		return errors.Wrap(err, "completing attempt")
	})
	if err != nil {
		return nil, err
	}
	return answers, nil
}

// AttemptResult returns a completed attempt to its student, or any attempt to the assessment's author.
func (svc *service) AttemptResult(ctx context.Context, actor user.User, attemptID string) (Result, error) {
	at, err := svc.repo.GetAttempt(ctx, attemptID)
	if err != nil {
		return Result{}, err
	}
	a, err := svc.repo.GetAssessment(ctx, at.AssessmentID)
	if err != nil {
		return Result{}, errors.Wrap(err, "getting assessment")
	}
	manager := canManage(actor, a)
	if !manager && at.StudentID != actor.ID {
		return Result{}, ErrAttemptNotFound
	}
	if !at.IsCompleted {
		return Result{}, ErrNotSubmitted
	}

	questions, err := svc.repo.QueryQuestions(ctx, a.ID)
	if err != nil {
		return Result{}, errors.Wrap(err, "querying questions")
	}
	answers, err := svc.repo.QueryAnswers(ctx, []string{at.ID})
	if err != nil {
		return Result{}, errors.Wrap(err, "querying answers")
	}
	return buildResult(a, at, questions, answers, manager || a.ShowCorrectAnswers), nil
}

func (svc *service) StudentAttempts(ctx context.Context, student user.User) ([]Attempt, error) {
	return svc.repo.QueryAttempts(ctx, AttemptFilter{StudentID: student.ID})
}

// Views

func totalPoints(questions []Question) int {
	total := 0
	for _, q := range questions {
		total += q.Points
	}
	return total
}

// buildAttemptView hides answer keys and applies the attempt's question and choice order.
// The order is derived from the attempt seed so that a resumed attempt looks the same.
func buildAttemptView(a Assessment, at Attempt, questions []Question, resumed bool) AttemptView {
	rnd := rand.New(rand.NewSource(at.Seed))
	qs := make([]Question, len(questions))
	copy(qs, questions)
	if a.RandomizeQuestions {
		rnd.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
	}

	view := AttemptView{
		Assessment: a,
		Attempt:    at,
		Questions:  make([]QuestionView, 0, len(qs)),
		Resumed:    resumed,
	}
	if deadline, ok := a.Deadline(at.StartedAt); ok {
		view.Deadline = &deadline
	}
	for _, q := range qs {
		qv := QuestionView{
			ID:                   q.ID,
			QuestionType:         q.QuestionType,
			QuestionText:         q.QuestionText,
			Points:               q.Points,
			ExpectedAnswersCount: q.ExpectedAnswersCount,
			Choices:              make([]ChoiceView, 0, len(q.Choices)),
		}
		for _, c := range q.Choices {
			qv.Choices = append(qv.Choices, ChoiceView{ID: c.ID, ChoiceText: c.ChoiceText})
		}
		if a.RandomizeChoices && q.QuestionType == QuestionMultipleChoice {
			rnd.Shuffle(len(qv.Choices), func(i, j int) { qv.Choices[i], qv.Choices[j] = qv.Choices[j], qv.Choices[i] })
		}
		view.Questions = append(view.Questions, qv)
	}
	view.Attempt.Progress = at.Progress
	return view
}

func buildResult(a Assessment, at Attempt, questions []Question, answers []Answer, reveal bool) Result {
	byQuestion := make(map[string]Answer, len(answers))
	for _, ans := range answers {
		byQuestion[ans.QuestionID] = ans
	}
	at.Progress = nil

	res := Result{Assessment: a, Attempt: at, Answers: make([]AnswerResult, 0, len(questions))}
	for _, q := range questions {
		if !reveal {
			q = hideKey(q)
		}
		ar := AnswerResult{Question: q}
		if ans, ok := byQuestion[q.ID]; ok {
			ans := ans
			ar.Answer = &ans
		}
		res.Answers = append(res.Answers, ar)
	}
	return res
}

func hideKey(q Question) Question {
	choices := make([]Choice, len(q.Choices))
	for i, c := range q.Choices {
		c.IsCorrect = false
		choices[i] = c
	}
	q.Choices = choices
	q.CorrectAnswers = nil
	q.Explanation = ""
	return q
}
