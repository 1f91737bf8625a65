package inmemdb

import (
	"context"
	"sort"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/analytics"
	"github.com/spist/campus/core/assessment"
	"github.com/spist/campus/core/course"
	"github.com/spist/campus/core/user"
)

type analyticsRepository struct {
	db *DB
}

var _ analytics.Repository = (*analyticsRepository)(nil)

func NewAnalyticsRepository(db *DB) *analyticsRepository {
	return &analyticsRepository{db: db}
}

func (repo *analyticsRepository) CreateActivity(_ context.Context, a analytics.Activity) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.activity = append(repo.db.activity, a)
	return nil
}

func (repo *analyticsRepository) QueryActivity(_ context.Context, filter analytics.ActivityFilter) ([]analytics.Activity, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	list := make([]analytics.Activity, 0)
	for _, a := range repo.db.activity {
		if filter.UserID != "" && a.UserID != filter.UserID {
			continue
		}
		if len(filter.Actions) > 0 && !core.ContainsString(filter.Actions, a.Action) {
			continue
		}
		if !inRange(a.CreatedAt, filter.Since, filter.Until) {
			continue
		}
		if u, ok := repo.db.users[a.UserID]; ok {
			a.Username = u.Username
		}
		list = append(list, a)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if filter.Limit > 0 && len(list) > filter.Limit {
		list = list[:filter.Limit]
	}
	return list, nil
}

func (repo *analyticsRepository) ActionCounts(_ context.Context, p analytics.Period) ([]analytics.ActionCount, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	counts := make(map[string]*analytics.ActionCount)
	users := make(map[string]map[string]bool)
	var order []string
	for _, a := range repo.db.activity {
		if !inRange(a.CreatedAt, p.Start, p.End) {
			continue
		}
		ac, ok := counts[a.Action]
		if !ok {
			ac = &analytics.ActionCount{Action: a.Action}
			counts[a.Action] = ac
			users[a.Action] = make(map[string]bool)
			order = append(order, a.Action)
		}
		ac.Count++
		users[a.Action][a.UserID] = true
	}
	result := make([]analytics.ActionCount, 0, len(order))
	for _, action := range order {
		ac := *counts[action]
		ac.Users = len(users[action])
		result = append(result, ac)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Count > result[j].Count })
	return result, nil
}

func (repo *analyticsRepository) CountActiveUsers(_ context.Context, p analytics.Period) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	seen := make(map[string]bool)
	for _, a := range repo.db.activity {
		if inRange(a.CreatedAt, p.Start, p.End) {
			seen[a.UserID] = true
		}
	}
	return len(seen), nil
}

func (repo *analyticsRepository) Counts(_ context.Context, p analytics.Period) (analytics.Counts, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var c analytics.Counts
	for _, u := range repo.db.users {
		c.TotalUsers++
		if u.Active() && u.IsStudent() {
			c.ActiveStudents++
		}
		if u.Active() && u.IsTeacher() {
			c.ActiveTeachers++
		}
		if inRange(u.CreatedAt, p.Start, p.End) {
			c.NewUsers++
		}
	}

	for _, a := range repo.db.assessments {
		c.TotalAssessments++
		if a.Status == assessment.StatusPublished {
			c.PublishedAssessments++
		}
		if inRange(a.CreatedAt, p.Start, p.End) {
			c.AssessmentsCreated++
			switch a.AssessmentType {
			case assessment.TypeQuiz:
				c.QuizzesCreated++
			case assessment.TypeExam:
				c.ExamsCreated++
			}
		}
	}
	c.TotalQuestions = len(repo.db.questions)
	c.TotalAnswers = len(repo.db.answers)

	var all, quizzes, exams []float64
	for _, at := range repo.db.attempts {
		c.TotalAttempts++
		if inRange(at.StartedAt, p.Start, p.End) {
			c.AttemptsStarted++
		}
		if !at.IsCompleted || at.CompletedAt == nil || !inRange(*at.CompletedAt, p.Start, p.End) {
			continue
		}
		c.AttemptsCompleted++
		all = append(all, at.Percentage)
		if a, ok := repo.db.assessments[at.AssessmentID]; ok {
			switch a.AssessmentType {
			case assessment.TypeQuiz:
				quizzes = append(quizzes, at.Percentage)
			case assessment.TypeExam:
				exams = append(exams, at.Percentage)
			}
		}
	}
	c.AverageScore = analytics.Average(all)
	c.AverageQuizScore = analytics.Average(quizzes)
	c.AverageExamScore = analytics.Average(exams)

	for _, e := range repo.db.enrollments {
		c.TotalEnrollments++
		if e.Status == course.StatusEnrolled {
			c.ActiveEnrollments++
		}
		if inRange(e.EnrolledAt, p.Start, p.End) {
			c.NewEnrollments++
		}
	}
	for _, crs := range repo.db.courses {
		if crs.IsActive {
			c.ActiveCourses++
		}
	}
	c.TotalEvents = len(repo.db.events)
	return c, nil
}

// completedAttempts must be called with the lock held.
func (repo *analyticsRepository) completedAttempts(filter analytics.PerformanceFilter) []*assessment.Attempt {
	var attempts []*assessment.Attempt
	for _, at := range repo.db.attempts {
		if !at.IsCompleted || at.CompletedAt == nil {
			continue
		}
		if !repo.matchAttempt(at, filter) || !inRange(*at.CompletedAt, filter.From, filter.To) {
			continue
		}
		attempts = append(attempts, at)
	}
	return attempts
}

func (repo *analyticsRepository) matchAttempt(at *assessment.Attempt, filter analytics.PerformanceFilter) bool {
	if filter.StudentID != "" && at.StudentID != filter.StudentID {
		return false
	}
	if filter.AssessmentID != "" && at.AssessmentID != filter.AssessmentID {
		return false
	}
	if filter.CreatedBy != "" {
		a, ok := repo.db.assessments[at.AssessmentID]
		if !ok || a.CreatedBy != filter.CreatedBy {
			return false
		}
	}
	return true
}

func (repo *analyticsRepository) StudentPerformance(_ context.Context, filter analytics.PerformanceFilter) ([]analytics.StudentPerformance, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	byStudent := make(map[string]*analytics.StudentPerformance)
	scores := make(map[string][]float64)
	for _, at := range repo.completedAttempts(filter) {
		sp, ok := byStudent[at.StudentID]
		if !ok {
			u, found := repo.db.users[at.StudentID]
			if !found || !u.IsStudent() {
				continue
			}
			sp = &analytics.StudentPerformance{
				StudentID: u.ID,
				FirstName: u.FirstName,
				LastName:  u.LastName,
				Name:      u.Name,
				Email:     u.Email,
			}
			byStudent[at.StudentID] = sp
		}
		sp.TotalAttempts++
		sp.TotalPoints += at.Score
		if at.IsPassed {
			sp.Passed++
		} else {
			sp.Failed++
		}
		scores[at.StudentID] = append(scores[at.StudentID], at.Percentage)
	}

	list := make([]analytics.StudentPerformance, 0, len(byStudent))
	for id, sp := range byStudent {
		if sp.TotalAttempts < filter.MinAttempts {
			continue
		}
		sp.AvgScore = analytics.Average(scores[id])
		list = append(list, *sp)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].AvgScore != list[j].AvgScore {
			return list[i].AvgScore > list[j].AvgScore
		}
		return list[i].StudentID < list[j].StudentID
	})
	if filter.Limit > 0 && len(list) > filter.Limit {
		list = list[:filter.Limit]
	}
	return list, nil
}

func (repo *analyticsRepository) AssessmentPerformance(_ context.Context, filter analytics.PerformanceFilter) ([]analytics.AssessmentPerformance, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	list := make([]analytics.AssessmentPerformance, 0)
	for _, a := range repo.db.assessments {
		if filter.AssessmentID != "" && a.ID != filter.AssessmentID {
			continue
		}
		if filter.CreatedBy != "" && a.CreatedBy != filter.CreatedBy {
			continue
		}
		ap := analytics.AssessmentPerformance{
			AssessmentID:   a.ID,
			Title:          a.Title,
			AssessmentType: a.AssessmentType,
			Status:         a.Status,
		}
		var scores []float64
		for _, at := range repo.db.attempts {
			if at.AssessmentID != a.ID || (filter.StudentID != "" && at.StudentID != filter.StudentID) {
				continue
			}
			when := at.StartedAt
			if at.CompletedAt != nil {
				when = *at.CompletedAt
			}
			if !inRange(when, filter.From, filter.To) {
				continue
			}
			ap.TotalAttempts++
			if at.IsCompleted {
				ap.CompletedAttempts++
				scores = append(scores, at.Percentage)
				if at.IsPassed {
					ap.PassedAttempts++
				}
			}
		}
		ap.AvgScore = analytics.Average(scores)
		list = append(list, ap)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Title < list[j].Title })
	return list, nil
}

// gradedAnswers calls fn for every answer of the completed attempts matching filter.
// It must be called with the lock held.
func (repo *analyticsRepository) gradedAnswers(filter analytics.PerformanceFilter, fn func(q *assessment.Question, a *assessment.Answer)) {
	attempts := make(map[string]bool)
	for _, at := range repo.completedAttempts(filter) {
		attempts[at.ID] = true
	}
	for _, a := range repo.db.answers {
		if !attempts[a.AttemptID] {
			continue
		}
		if q, ok := repo.db.questions[a.QuestionID]; ok {
			fn(q, a)
		}
	}
}

func (repo *analyticsRepository) QuestionPerformance(_ context.Context, filter analytics.PerformanceFilter) ([]analytics.QuestionPerformance, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	byQuestion := make(map[string]*analytics.QuestionPerformance)
	repo.gradedAnswers(filter, func(q *assessment.Question, a *assessment.Answer) {
		qp, ok := byQuestion[q.ID]
		if !ok {
			qp = &analytics.QuestionPerformance{
				QuestionID:   q.ID,
				AssessmentID: q.AssessmentID,
				QuestionText: q.QuestionText,
				QuestionType: q.QuestionType,
			}
			byQuestion[q.ID] = qp
		}
		qp.AttemptCount++
		if a.IsCorrect != nil && *a.IsCorrect {
			qp.CorrectCount++
		}
	})

	list := make([]analytics.QuestionPerformance, 0, len(byQuestion))
	for _, qp := range byQuestion {
		list = append(list, *qp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].QuestionID < list[j].QuestionID })
	return list, nil
}

func (repo *analyticsRepository) GradeDistribution(_ context.Context, filter analytics.PerformanceFilter) (analytics.GradeDistribution, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var gd analytics.GradeDistribution
	for _, at := range repo.completedAttempts(filter) {
		gd.Add(at.Percentage)
	}
	return gd, nil
}

func (repo *analyticsRepository) TypeAccuracy(_ context.Context, filter analytics.PerformanceFilter) ([]analytics.TypeAccuracy, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	byType := make(map[string]*analytics.TypeAccuracy)
	repo.gradedAnswers(filter, func(q *assessment.Question, a *assessment.Answer) {
		ta, ok := byType[q.QuestionType]
		if !ok {
			ta = &analytics.TypeAccuracy{QuestionType: q.QuestionType}
			byType[q.QuestionType] = ta
		}
		ta.TotalAnswers++
		if a.IsCorrect != nil && *a.IsCorrect {
			ta.CorrectAnswers++
		}
	})

	list := make([]analytics.TypeAccuracy, 0, len(byType))
	for _, qt := range assessment.QuestionTypes {
		if ta, ok := byType[qt]; ok {
			list = append(list, *ta)
		}
	}
	return list, nil
}

func (repo *analyticsRepository) TeacherActivity(_ context.Context) ([]analytics.TeacherActivity, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	list := make([]analytics.TeacherActivity, 0)
	for _, u := range repo.db.users {
		if !u.RoleStartsWith(user.RoleTeacher) {
			continue
		}
		ta := analytics.TeacherActivity{TeacherID: u.ID, Name: u.FullName(), Email: u.Email}
		owned := make(map[string]bool)
		for _, a := range repo.db.assessments {
			if a.CreatedBy == u.ID {
				ta.AssessmentsCreated++
				owned[a.ID] = true
			}
		}
		for _, q := range repo.db.questions {
			if owned[q.AssessmentID] {
				ta.TotalQuestions++
			}
		}
		students := make(map[string]bool)
		var scores []float64
		for _, at := range repo.db.attempts {
			if !owned[at.AssessmentID] {
				continue
			}
			students[at.StudentID] = true
			if at.IsCompleted {
				scores = append(scores, at.Percentage)
			}
		}
		ta.StudentsTaught = len(students)
		ta.AvgStudentScore = analytics.Average(scores)
		list = append(list, ta)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}
