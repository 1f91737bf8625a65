package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/user"
)

type repoStub struct {
	Repository
	counts      map[time.Time]Counts
	actions     []ActionCount
	students    []StudentPerformance
	assessments []AssessmentPerformance
	questions   []QuestionPerformance
	teachers    []TeacherActivity
	created     []Activity
	countCalls  int
	lastFilter  PerformanceFilter
}

func (r *repoStub) CreateActivity(_ context.Context, a Activity) error {
	r.created = append(r.created, a)
	return nil
}

func (r *repoStub) QueryActivity(context.Context, ActivityFilter) ([]Activity, error) {
	return r.created, nil
}

func (r *repoStub) ActionCounts(context.Context, Period) ([]ActionCount, error) {
	return r.actions, nil
}

func (r *repoStub) CountActiveUsers(context.Context, Period) (int, error) { return 4, nil }

func (r *repoStub) Counts(_ context.Context, p Period) (Counts, error) {
	r.countCalls++
	return r.counts[p.End], nil
}

func (r *repoStub) StudentPerformance(_ context.Context, f PerformanceFilter) ([]StudentPerformance, error) {
	r.lastFilter = f
	return r.students, nil
}

func (r *repoStub) AssessmentPerformance(context.Context, PerformanceFilter) ([]AssessmentPerformance, error) {
	return append([]AssessmentPerformance(nil), r.assessments...), nil
}

func (r *repoStub) QuestionPerformance(context.Context, PerformanceFilter) ([]QuestionPerformance, error) {
	return append([]QuestionPerformance(nil), r.questions...), nil
}

func (r *repoStub) GradeDistribution(context.Context, PerformanceFilter) (GradeDistribution, error) {
	var gd GradeDistribution
	for _, p := range []float64{95, 85, 61, 10} {
		gd.Add(p)
	}
	return gd, nil
}

func (r *repoStub) TypeAccuracy(context.Context, PerformanceFilter) ([]TypeAccuracy, error) {
	return []TypeAccuracy{{QuestionType: "essay", TotalAnswers: 3, CorrectAnswers: 1}}, nil
}

func (r *repoStub) TeacherActivity(context.Context) ([]TeacherActivity, error) {
	return r.teachers, nil
}

type mapCache map[string][]byte

func (c mapCache) Get(_ context.Context, key string, dst interface{}) (bool, error) {
	data, ok := c[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dst)
}

func (c mapCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	c[key] = data
	return err
}

func (c mapCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c, k)
	}
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

var (
	admin   = user.User{ID: "admin", Roles: []string{user.RoleAdmin}}
	teacher = user.User{ID: "teacher", Roles: []string{user.RoleTeacher}}
	student = user.User{ID: "student", Roles: []string{user.RoleStudent}}
)

func freezeNow(t *testing.T) time.Time {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	NowFunc = func() time.Time { return now }
	t.Cleanup(func() { NowFunc = time.Now })
	return now
}

func TestGrowthPercentage(t *testing.T) {
	tests := []struct {
		prev, curr int
		want       float64
	}{
		{0, 0, 0},
		{0, 7, 100},
		{10, 15, 50},
		{4, 1, -75},
		{3, 4, 33.33},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GrowthPercentage(tt.prev, tt.curr), "%d -> %d", tt.prev, tt.curr)
	}
}

func TestNewPeriod(t *testing.T) {
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	p := NewPeriod(end, 0)
	assert.Equal(t, DefaultPeriodDays, p.Days)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), p.Start)

	prev := NewPeriod(end, 7).Previous()
	assert.Equal(t, time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC), prev.Start)
	assert.Equal(t, time.Date(2024, 3, 24, 0, 0, 0, 0, time.UTC), prev.End)
}

func TestGradeDistribution_Add(t *testing.T) {
	var gd GradeDistribution
	for _, p := range []float64{100, 90, 89.99, 80, 79.5, 70, 69, 60, 59.99, 0} {
		gd.Add(p)
	}
	assert.Equal(t, GradeDistribution{A: 2, B: 2, C: 2, D: 2, F: 2}, gd)
}

func TestService_Dashboard(t *testing.T) {
	now := freezeNow(t)
	period := NewPeriod(now, 30)
	repo := &repoStub{
		counts: map[time.Time]Counts{
			period.End: {
				TotalUsers: 12, ActiveStudents: 8, ActiveTeachers: 2, NewUsers: 6,
				AssessmentsCreated: 4, QuizzesCreated: 3, ExamsCreated: 1,
				AttemptsStarted: 10, AttemptsCompleted: 8, AverageScore: 71.256,
				ActiveCourses: 3, ActiveEnrollments: 10,
			},
			period.Previous().End: {NewUsers: 4, AssessmentsCreated: 0},
		},
		actions:  []ActionCount{{Action: ActionLogin, Count: 9, Users: 4}, {Action: ActionGradeView, Count: 2}},
		students: []StudentPerformance{{StudentID: "s1", AvgScore: 88.888, TotalAttempts: 3}},
	}
	cache := mapCache{}
	svc := NewService(repo, cache, nopLogger{})

	_, err := svc.Dashboard(context.Background(), student, 30)
	assert.Equal(t, core.ErrForbidden, err)

	dash, err := svc.Dashboard(context.Background(), teacher, 30)
	require.NoError(t, err)
	assert.Equal(t, 71.26, dash.SystemMetrics.AverageScore)
	assert.Equal(t, 8, dash.SystemMetrics.CompletedAttempts)
	assert.Equal(t, UserMetrics{ActiveUsers: 4, NewRegistrations: 6, LoginCount: 9}, dash.UserMetrics)
	assert.Equal(t, 80.0, dash.AssessmentMetrics.CompletionRate)
	assert.Equal(t, 2.5, dash.AssessmentMetrics.AvgAttemptsPerAssessment)
	assert.Equal(t, 3.33, dash.CourseMetrics.AvgStudentsPerCourse)
	assert.Equal(t, GrowthTrends{UserGrowth: 50, AssessmentGrowth: 100}, dash.GrowthTrends)
	assert.Equal(t, 3, dash.AssessmentStats.QuizCount)
	require.Len(t, dash.TopStudents, 1)
	assert.Equal(t, 88.89, dash.TopStudents[0].AvgScore)
	assert.Equal(t, topStudentsMin, repo.lastFilter.MinAttempts)
	assert.Equal(t, period.Start, repo.lastFilter.From)
	assert.NotNil(t, dash.RecentActivities)

	// served from cache
	calls := repo.countCalls
	_, err = svc.Dashboard(context.Background(), admin, 30)
	require.NoError(t, err)
	assert.Equal(t, calls, repo.countCalls)
	assert.Contains(t, cache, dashboardKey(30))
}

func TestService_StudentAnalytics(t *testing.T) {
	repo := &repoStub{
		assessments: []AssessmentPerformance{
			{AssessmentID: "easy", TotalAttempts: 4, CompletedAttempts: 4, PassedAttempts: 4, AvgScore: 95},
			{AssessmentID: "none", TotalAttempts: 1},
			{AssessmentID: "hard", TotalAttempts: 4, CompletedAttempts: 2, PassedAttempts: 1, AvgScore: 40.125},
		},
	}
	svc := NewService(repo, mapCache{}, nopLogger{})

	sa, err := svc.StudentAnalytics(context.Background(), teacher, PerformanceFilter{})
	require.NoError(t, err)
	assert.Equal(t, teacher.ID, repo.lastFilter.CreatedBy)
	require.Len(t, sa.AssessmentDifficulty, 2)
	assert.Equal(t, "hard", sa.AssessmentDifficulty[0].AssessmentID)
	assert.Equal(t, 40.13, sa.AssessmentDifficulty[0].AvgScore)
	assert.Equal(t, 50.0, sa.AssessmentDifficulty[0].CompletionRate)
	assert.Equal(t, 50.0, sa.AssessmentDifficulty[0].PassRate)
	assert.Equal(t, GradeDistribution{A: 1, B: 1, D: 1, F: 1}, sa.GradeDistribution)
	assert.Equal(t, 33.33, sa.QuestionTypeAccuracy[0].Accuracy)
	assert.NotNil(t, sa.Students)

	_, err = svc.StudentAnalytics(context.Background(), admin, PerformanceFilter{})
	require.NoError(t, err)
	assert.Empty(t, repo.lastFilter.CreatedBy)
}

func TestService_AssessmentAnalytics(t *testing.T) {
	repo := &repoStub{
		assessments: []AssessmentPerformance{
			{AssessmentID: "a", Status: "published", TotalAttempts: 2, CompletedAttempts: 1},
			{AssessmentID: "b", Status: "draft"},
			{AssessmentID: "c", Status: "published", TotalAttempts: 5, CompletedAttempts: 5, PassedAttempts: 3},
		},
		questions: []QuestionPerformance{
			{QuestionID: "q1", AttemptCount: 4, CorrectCount: 4},
			{QuestionID: "q2", AttemptCount: 4, CorrectCount: 1},
			{QuestionID: "q3"},
		},
	}
	svc := NewService(repo, mapCache{}, nopLogger{})

	aa, err := svc.AssessmentAnalytics(context.Background(), admin)
	require.NoError(t, err)
	require.Len(t, aa.Assessments, 2)
	assert.Equal(t, "c", aa.Assessments[0].AssessmentID)
	assert.Equal(t, 60.0, aa.Assessments[0].PassRate)
	assert.Equal(t, 50.0, aa.Assessments[1].CompletionRate)
	require.Len(t, aa.QuestionDifficulty, 3)
	assert.Equal(t, "q3", aa.QuestionDifficulty[0].QuestionID)
	assert.Equal(t, 25.0, aa.QuestionDifficulty[1].DifficultyScore)
}

func TestService_TeacherAnalytics(t *testing.T) {
	repo := &repoStub{
		teachers: []TeacherActivity{
			{TeacherID: "other", AssessmentsCreated: 1},
			{TeacherID: teacher.ID, AssessmentsCreated: 5, AvgStudentScore: 77.777},
		},
	}
	svc := NewService(repo, mapCache{}, nopLogger{})

	all, err := svc.TeacherAnalytics(context.Background(), admin)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, teacher.ID, all[0].TeacherID)

	own, err := svc.TeacherAnalytics(context.Background(), teacher)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, 77.78, own[0].AvgStudentScore)
}

func TestService_SystemAnalytics(t *testing.T) {
	freezeNow(t)
	repo := &repoStub{
		actions: []ActionCount{{Action: ActionLogin, Count: 1}, {Action: ActionAssessmentStart, Count: 3}},
	}
	svc := NewService(repo, mapCache{}, nopLogger{})

	_, err := svc.SystemAnalytics(context.Background(), teacher, 7)
	assert.Equal(t, core.ErrForbidden, err)

	sa, err := svc.SystemAnalytics(context.Background(), admin, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, sa.Period.Days)
	require.Len(t, sa.Activity, 2)
	assert.Equal(t, "Assessment Started", sa.Activity[0].Label)
}

func TestService_Export(t *testing.T) {
	repo := &repoStub{
		students: []StudentPerformance{{FirstName: "Ana", LastName: "Cruz", Email: "ana@spist.edu", TotalAttempts: 2, AvgScore: 80}},
		teachers: []TeacherActivity{{TeacherID: "t1", Name: "Mr. Reyes"}},
	}
	svc := NewService(repo, mapCache{}, nopLogger{})

	exp, err := svc.Export(context.Background(), admin, "")
	require.NoError(t, err)
	require.NotNil(t, exp.Table)
	require.Len(t, exp.Table.Rows, 1)
	assert.Equal(t, "Ana Cruz", exp.Table.Rows[0][0])

	exp, err = svc.Export(context.Background(), admin, ExportTeacherActivity)
	require.NoError(t, err)
	assert.Len(t, exp.Table.Rows, 1)

	_, err = svc.Export(context.Background(), admin, "grades")
	assert.Equal(t, ErrInvalidExportType, err)

	_, err = svc.Export(context.Background(), student, ExportAssessmentStats)
	assert.Equal(t, core.ErrForbidden, err)
}

func TestService_Log(t *testing.T) {
	freezeNow(t)
	repo := &repoStub{}
	svc := NewService(repo, mapCache{}, nopLogger{})

	svc.Log(context.Background(), student, ActionAssessmentStart, "", map[string]interface{}{"assessment_id": "a1"}, "10.0.0.1", "curl")
	require.Len(t, repo.created, 1)
	a := repo.created[0]
	assert.Equal(t, "Assessment Started", a.Description)
	assert.JSONEq(t, `{"assessment_id":"a1"}`, string(a.Metadata))
	assert.Equal(t, "10.0.0.1", a.IPAddress)
	assert.NotEmpty(t, a.ID)
}
