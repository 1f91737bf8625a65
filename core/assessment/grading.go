package assessment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/notification"
	"github.com/spist/campus/core/user"
)

// Results returns the completed attempts of an assessment, best score first.
func (svc *service) Results(ctx context.Context, actor user.User, assessmentID string) ([]AttemptSummary, error) {
	a, err := svc.getOwned(ctx, actor, assessmentID)
	if err != nil {
		return nil, err
	}
	attempts, err := svc.repo.QueryAttempts(ctx, AttemptFilter{AssessmentIDs: []string{a.ID}, CompletedOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "querying attempts")
	}
	users, err := svc.usersByID(ctx, studentIDs(attempts))
	if err != nil {
		return nil, err
	}

	res := make([]AttemptSummary, 0, len(attempts))
	for _, at := range attempts {
		at.Progress = nil
		usr := users[at.StudentID]
		res = append(res, AttemptSummary{Attempt: at, StudentName: usr.FullName(), Email: usr.Email})
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Attempt.Percentage > res[j].Attempt.Percentage
	})
	return res, nil
}

func (svc *service) Violations(ctx context.Context, actor user.User, attemptID string) ([]Violation, error) {
	at, err := svc.repo.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if _, err = svc.getOwned(ctx, actor, at.AssessmentID); err != nil {
		if core.IsNotFound(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	return svc.repo.QueryViolations(ctx, at.ID)
}

// GradingQueue lists the completed attempts with essay answers awaiting a grade, oldest first.
func (svc *service) GradingQueue(ctx context.Context, actor user.User) ([]GradingItem, error) {
	assessments, err := svc.List(ctx, actor, Filter{})
	if err != nil {
		return nil, err
	}
	titles := make(map[string]string, len(assessments))
	ids := make([]string, 0, len(assessments))
	for _, a := range assessments {
		titles[a.ID] = a.Title
		ids = append(ids, a.ID)
	}
	if len(ids) == 0 {
		return []GradingItem{}, nil
	}

	attempts, err := svc.repo.QueryAttempts(ctx, AttemptFilter{AssessmentIDs: ids, CompletedOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "querying attempts")
	}
	if len(attempts) == 0 {
		return []GradingItem{}, nil
	}
	attemptIDs := make([]string, 0, len(attempts))
	for _, at := range attempts {
		attemptIDs = append(attemptIDs, at.ID)
	}
	answers, err := svc.repo.QueryAnswers(ctx, attemptIDs)
	if err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}

	questions := make(map[string]Question)
	for _, id := range ids {
		qs, err := svc.repo.QueryQuestions(ctx, id)
		if err != nil {
			return nil, errors.Wrap(err, "querying questions")
		}
		for _, q := range qs {
			questions[q.ID] = q
		}
	}
	pending := make(map[string]int)
	for _, ans := range answers {
		if NeedsGrading(questions[ans.QuestionID], ans) {
			pending[ans.AttemptID]++
		}
	}

	var queued []Attempt
	for _, at := range attempts {
		if pending[at.ID] > 0 {
			queued = append(queued, at)
		}
	}
	users, err := svc.usersByID(ctx, studentIDs(queued))
	if err != nil {
		return nil, err
	}

	items := make([]GradingItem, 0, len(queued))
	for _, at := range queued {
		at.Progress = nil
		items = append(items, GradingItem{
			Attempt:         at,
			AssessmentTitle: titles[at.AssessmentID],
			StudentName:     users[at.StudentID].FullName(),
			PendingAnswers:  pending[at.ID],
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return timeOf(items[i].Attempt).Before(timeOf(items[j].Attempt))
	})
	return items, nil
}

// Grade sets the points and feedback of answers of a completed attempt and rescores it.
func (svc *service) Grade(ctx context.Context, actor user.User, attemptID string, in GradeInput) (Result, error) {
	var (
		a         Assessment
		at        Attempt
		questions []Question
		answers   []Answer
	)
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if at, err = svc.repo.GetAttempt(ctx, attemptID, exec); err != nil {
			return err
		}
		if a, err = svc.getOwned(ctx, actor, at.AssessmentID, exec); err != nil {
			if core.IsNotFound(err) {
				return ErrAttemptNotFound
			}
			return err
		}
		if !at.IsCompleted {
			return ErrNotSubmitted
		}
		if questions, err = svc.repo.QueryQuestions(ctx, a.ID, exec); err != nil {
			return errors.Wrap(err, "querying questions")
		}
		if answers, err = svc.repo.QueryAnswers(ctx, []string{at.ID}, exec); err != nil {
			return errors.Wrap(err, "querying answers")
		}

		qByID := make(map[string]Question, len(questions))
		for _, q := range questions {
			qByID[q.ID] = q
		}
		idx := make(map[string]int, len(answers))
		for i, ans := range answers {
			idx[ans.ID] = i
		}
		for _, g := range in.Grades {
			i, ok := idx[g.AnswerID]
			if !ok {
				return ErrAnswerNotFound
			}
			q := qByID[answers[i].QuestionID]
			if g.Points > q.Points {
				return core.NewFieldError("points", fmt.Sprintf("cannot exceed %d points", q.Points))
			}
			correct := g.Points == q.Points
			answers[i].PointsEarned = g.Points
			answers[i].IsCorrect = &correct
			answers[i].Feedback = g.Feedback
		}

		if err = svc.repo.SaveAnswers(ctx, answers, exec); err != nil {
			return errors.Wrap(err, "saving answers")
		}
		ScoreAttempt(questions, answers, a.PassingScore).apply(&at)
		at, err = svc.repo.SaveAttempt(ctx, at, exec)
		return errors.Wrap(err, "saving attempt")
	})
	if err != nil {
		return Result{}, err
	}

	msg := fmt.Sprintf("Your attempt on %q has been graded: %.2f%%.", a.Title, at.Percentage)
	if _, err := svc.notifSvc.Notify(ctx, at.StudentID, "Assessment graded", msg, notification.TypeInfo); err != nil {
		svc.logger.Error(fmt.Sprintf("notifying graded attempt: %v", err), err)
	}
	return buildResult(a, at, questions, answers, true), nil
}

// ExportGrades returns the completed attempts of an assessment as a table.
func (svc *service) ExportGrades(ctx context.Context, actor user.User, assessmentID string) (*core.Table, error) {
	a, err := svc.getOwned(ctx, actor, assessmentID)
	if err != nil {
		return nil, err
	}
	attempts, err := svc.repo.QueryAttempts(ctx, AttemptFilter{AssessmentIDs: []string{a.ID}, CompletedOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "querying attempts")
	}
	ids := studentIDs(attempts)
	users, err := svc.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	profiles, err := svc.usrSvc.StudentProfiles(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying student profiles")
	}

	table := &core.Table{
		Name: core.CleanString(a.Title) + " grades",
		Headers: []string{
			"Student Name", "Student ID", "Attempt", "Score", "Max Score",
			"Percentage", "Passed", "Violations", "Completed At",
		},
	}
	for _, at := range attempts {
		usr := users[at.StudentID]
		studentID := profiles[at.StudentID].StudentID
		if studentID == "" {
			studentID = "N/A"
		}
		passed := "No"
		if at.IsPassed {
			passed = "Yes"
		}
		table.AddRow(
			usr.FullName(), studentID, at.AttemptNumber, at.Score, at.MaxScore,
			at.Percentage, passed, at.Violations, timeOf(at),
		)
	}
	return table, nil
}

func studentIDs(attempts []Attempt) []string {
	seen := make(map[string]bool, len(attempts))
	ids := make([]string, 0, len(attempts))
	for _, at := range attempts {
		if !seen[at.StudentID] {
			seen[at.StudentID] = true
			ids = append(ids, at.StudentID)
		}
	}
	return ids
}

func timeOf(at Attempt) time.Time {
	if at.CompletedAt != nil {
		return *at.CompletedAt
	}
	return at.StartedAt
}

func (svc *service) usersByID(ctx context.Context, ids []string) (map[string]user.User, error) {
	byID := make(map[string]user.User, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}
	users, err := svc.usrSvc.Query(ctx, &user.QueryFilter{IDs: ids}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	for _, usr := range users {
		byID[usr.ID] = usr
	}
	return byID, nil
}
