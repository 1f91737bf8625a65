package inmemdb

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/assessment"
)

type assessmentRepository struct {
	db *DB
}

var _ assessment.Repository = (*assessmentRepository)(nil)

func NewAssessmentRepository(db *DB) *assessmentRepository {
	return &assessmentRepository{db: db}
}

// withTotals must be called with the lock held.
func (repo *assessmentRepository) withTotals(a assessment.Assessment) assessment.Assessment {
	a.TotalPoints, a.QuestionCount = 0, 0
	for _, q := range repo.db.questions {
		if q.AssessmentID == a.ID {
			a.TotalPoints += q.Points
			a.QuestionCount++
		}
	}
	return a
}

func (repo *assessmentRepository) SaveAssessment(_ context.Context, a assessment.Assessment, _ ...core.DBExecutor) (assessment.Assessment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.assessments[a.ID] = &a
	return repo.withTotals(a), nil
}

func (repo *assessmentRepository) GetAssessment(_ context.Context, id string, _ ...core.DBExecutor) (assessment.Assessment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.assessments[id]; ok {
		return repo.withTotals(*a), nil
	}
	return assessment.Assessment{}, assessment.ErrNotFound
}

func (repo *assessmentRepository) QueryAssessments(_ context.Context, filter assessment.Filter, _ ...core.DBExecutor) ([]assessment.Assessment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	list := make([]assessment.Assessment, 0)
	for _, a := range repo.db.assessments {
		if len(filter.IDs) > 0 && !core.ContainsString(filter.IDs, a.ID) {
			continue
		}
		if filter.CreatedBy != "" && a.CreatedBy != filter.CreatedBy {
			continue
		}
		if len(filter.Statuses) > 0 && !core.ContainsString(filter.Statuses, a.Status) {
			continue
		}
		if filter.AssessmentType != "" && a.AssessmentType != filter.AssessmentType {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(a.Title), search) {
			continue
		}
		list = append(list, repo.withTotals(*a))
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (repo *assessmentRepository) DeleteAssessment(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.assessments[id]; !ok {
		return assessment.ErrNotFound
	}
	delete(repo.db.assessments, id)
	for qid, q := range repo.db.questions {
		if q.AssessmentID == id {
			repo.deleteQuestion(qid)
		}
	}
	for atid, at := range repo.db.attempts {
		if at.AssessmentID == id {
			delete(repo.db.attempts, atid)
			for vid, v := range repo.db.violations {
				if v.AttemptID == atid {
					delete(repo.db.violations, vid)
				}
			}
		}
	}
	for _, di := range repo.db.imports {
		if di.AssessmentID == id {
			di.AssessmentID = ""
		}
	}
	return nil
}

func cloneQuestion(q *assessment.Question) assessment.Question {
	c := *q
	c.Choices = append([]assessment.Choice(nil), q.Choices...)
	c.CorrectAnswers = append([]assessment.CorrectAnswer(nil), q.CorrectAnswers...)
	return c
}

func (repo *assessmentRepository) SaveQuestion(_ context.Context, q assessment.Question, _ ...core.DBExecutor) (assessment.Question, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i := range q.Choices {
		q.Choices[i].QuestionID = q.ID
	}
	for i := range q.CorrectAnswers {
		q.CorrectAnswers[i].QuestionID = q.ID
	}
	saved := cloneQuestion(&q)
	sort.SliceStable(saved.Choices, func(i, j int) bool { return saved.Choices[i].Order < saved.Choices[j].Order })
	sort.SliceStable(saved.CorrectAnswers, func(i, j int) bool { return saved.CorrectAnswers[i].Order < saved.CorrectAnswers[j].Order })
	repo.db.questions[q.ID] = &saved
	return cloneQuestion(&saved), nil
}

func (repo *assessmentRepository) GetQuestion(_ context.Context, id string, _ ...core.DBExecutor) (assessment.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if q, ok := repo.db.questions[id]; ok {
		return cloneQuestion(q), nil
	}
	return assessment.Question{}, assessment.ErrQuestionNotFound
}

func (repo *assessmentRepository) QueryQuestions(_ context.Context, assessmentID string, _ ...core.DBExecutor) ([]assessment.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	questions := make([]assessment.Question, 0)
	for _, q := range repo.db.questions {
		if q.AssessmentID == assessmentID {
			questions = append(questions, cloneQuestion(q))
		}
	}
	sort.SliceStable(questions, func(i, j int) bool {
		if questions[i].Order != questions[j].Order {
			return questions[i].Order < questions[j].Order
		}
		return questions[i].ID < questions[j].ID
	})
	return questions, nil
}

func (repo *assessmentRepository) DeleteQuestion(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.questions[id]; !ok {
		return assessment.ErrQuestionNotFound
	}
	repo.deleteQuestion(id)
	return nil
}

// deleteQuestion must be called with the lock held.
func (repo *assessmentRepository) deleteQuestion(id string) {
	delete(repo.db.questions, id)
	for aid, a := range repo.db.answers {
		if a.QuestionID == id {
			delete(repo.db.answers, aid)
		}
	}
}

func cloneAttempt(at *assessment.Attempt) assessment.Attempt {
	c := *at
	if at.Progress != nil {
		c.Progress = append(json.RawMessage(nil), at.Progress...)
	}
	return c
}

func (repo *assessmentRepository) SaveAttempt(_ context.Context, at assessment.Attempt, _ ...core.DBExecutor) (assessment.Attempt, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.attempts {
		if other.ID != at.ID && other.StudentID == at.StudentID && other.AssessmentID == at.AssessmentID && other.AttemptNumber == at.AttemptNumber {
			return assessment.Attempt{}, assessment.ErrDuplicate
		}
	}
	saved := cloneAttempt(&at)
	repo.db.attempts[at.ID] = &saved
	return cloneAttempt(&saved), nil
}

func (repo *assessmentRepository) GetAttempt(_ context.Context, id string, _ ...core.DBExecutor) (assessment.Attempt, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if at, ok := repo.db.attempts[id]; ok {
		return cloneAttempt(at), nil
	}
	return assessment.Attempt{}, assessment.ErrAttemptNotFound
}

func (repo *assessmentRepository) QueryAttempts(_ context.Context, filter assessment.AttemptFilter, _ ...core.DBExecutor) ([]assessment.Attempt, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	attempts := make([]assessment.Attempt, 0)
	for _, at := range repo.db.attempts {
		if len(filter.IDs) > 0 && !core.ContainsString(filter.IDs, at.ID) {
			continue
		}
		if filter.StudentID != "" && at.StudentID != filter.StudentID {
			continue
		}
		if len(filter.AssessmentIDs) > 0 && !core.ContainsString(filter.AssessmentIDs, at.AssessmentID) {
			continue
		}
		if filter.CompletedOnly && !at.IsCompleted {
			continue
		}
		if !filter.Since.IsZero() && at.StartedAt.Before(filter.Since) {
			continue
		}
		attempts = append(attempts, cloneAttempt(at))
	}
	sort.SliceStable(attempts, func(i, j int) bool {
		if attempts[i].AttemptNumber != attempts[j].AttemptNumber {
			return attempts[i].AttemptNumber < attempts[j].AttemptNumber
		}
		return attempts[i].StartedAt.Before(attempts[j].StartedAt)
	})
	return attempts, nil
}

func cloneAnswer(a *assessment.Answer) assessment.Answer {
	c := *a
	c.EnumerationAnswers = copyStrings(a.EnumerationAnswers)
	if a.IsCorrect != nil {
		ok := *a.IsCorrect
		c.IsCorrect = &ok
	}
	return c
}

func (repo *assessmentRepository) SaveAnswers(_ context.Context, answers []assessment.Answer, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i := range answers {
		a := cloneAnswer(&answers[i])
		for id, existing := range repo.db.answers {
			if existing.AttemptID == a.AttemptID && existing.QuestionID == a.QuestionID && id != a.ID {
				delete(repo.db.answers, id)
				a.ID = id
			}
		}
		repo.db.answers[a.ID] = &a
	}
	return nil
}

func (repo *assessmentRepository) QueryAnswers(_ context.Context, attemptIDs []string, _ ...core.DBExecutor) ([]assessment.Answer, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	answers := make([]assessment.Answer, 0)
	for _, a := range repo.db.answers {
		if core.ContainsString(attemptIDs, a.AttemptID) {
			answers = append(answers, cloneAnswer(a))
		}
	}
	sort.SliceStable(answers, func(i, j int) bool {
		qi, qj := repo.db.questions[answers[i].QuestionID], repo.db.questions[answers[j].QuestionID]
		if qi != nil && qj != nil && qi.Order != qj.Order {
			return qi.Order < qj.Order
		}
		return answers[i].ID < answers[j].ID
	})
	return answers, nil
}

func (repo *assessmentRepository) CreateViolation(_ context.Context, v assessment.Violation, _ ...core.DBExecutor) (assessment.Violation, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.attempts[v.AttemptID]; !ok {
		return assessment.Violation{}, assessment.ErrAttemptNotFound
	}
	repo.db.violations[v.ID] = &v
	return v, nil
}

func (repo *assessmentRepository) QueryViolations(_ context.Context, attemptID string, _ ...core.DBExecutor) ([]assessment.Violation, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	violations := make([]assessment.Violation, 0)
	for _, v := range repo.db.violations {
		if v.AttemptID == attemptID {
			violations = append(violations, *v)
		}
	}
	sort.SliceStable(violations, func(i, j int) bool { return violations[i].OccurredAt.Before(violations[j].OccurredAt) })
	return violations, nil
}
