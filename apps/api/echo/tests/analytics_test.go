package tests

import (
	"context"
	"encoding/csv"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spist/campus/core/analytics"
	"github.com/spist/campus/core/assessment"
	"github.com/spist/campus/core/user"
	"github.com/spist/campus/tests"
)

type graded struct {
	admin    user.User
	teacher  user.User
	other    user.User
	student  user.User
	quiz     assessment.Assessment
	question assessment.Question
}

// newGraded publishes a one question quiz and has a student pass it through the API.
func newGraded(t *testing.T, e *env) graded {
	t.Helper()
	ctx := context.Background()
	g := graded{
		admin:   testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@spist.edu", "", []string{user.RoleAdmin}, true),
		teacher: testutil.CreateUser(t, e.usrRepo, "Teacher", "teacher", "teacher@spist.edu", "", []string{user.RoleTeacher}, true),
		other:   testutil.CreateUser(t, e.usrRepo, "Other", "other", "other@spist.edu", "", []string{user.RoleTeacher}, true),
		student: testutil.CreateStudent(t, e.usrRepo, "Hero", "hero", "2026-0001", user.YearFirst),
	}

	var err error
	g.quiz, err = e.assessSvc.Create(ctx, g.teacher, assessment.AssessmentInput{
		Title: "Quiz 1", AssessmentType: assessment.TypeQuiz, MaxAttempts: 1,
	})
	require.NoError(t, err)
	g.question, err = e.assessSvc.AddQuestion(ctx, g.teacher, g.quiz.ID, assessment.QuestionInput{
		QuestionType: assessment.QuestionTrueFalse, QuestionText: "Go has generics.", Points: 2, CorrectAnswer: "true",
	})
	require.NoError(t, err)
	g.quiz, err = e.assessSvc.Publish(ctx, g.teacher, g.quiz.ID)
	require.NoError(t, err)

	var correct string
	for _, c := range g.question.Choices {
		if c.IsCorrect {
			correct = c.ID
		}
	}
	require.NotEmpty(t, correct)

	token := getToken(t, g.student)
	path := "/v1/assessments/" + g.quiz.ID
	rec := e.do(http.MethodPost, path+"/take", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.do(http.MethodPost, path+"/submit", token, marchallObj(t, assessment.Submission{
		Answers: []assessment.AnswerInput{{QuestionID: g.question.ID, SelectedChoiceID: correct}},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return g
}

func Test_analyticsApi_access(t *testing.T) {
	e := setup(t)
	g := newGraded(t, e)

	studentToken := getToken(t, g.student)
	teacherToken := getToken(t, g.teacher)
	adminToken := getToken(t, g.admin)

	tests := []httpTest{
		{name: "anonymous", path: "/v1/analytics/dashboard", wantCode: http.StatusUnauthorized},
		{name: "student dashboard", path: "/v1/analytics/dashboard", token: studentToken, wantCode: http.StatusForbidden},
		{name: "student export", path: "/v1/analytics/export", token: studentToken, wantCode: http.StatusForbidden},
		{name: "teacher system", path: "/v1/analytics/system", token: teacherToken, wantCode: http.StatusForbidden},
		{name: "teacher dashboard", path: "/v1/analytics/dashboard", token: teacherToken, wantCode: http.StatusOK},
		{name: "admin system", path: "/v1/analytics/system", token: adminToken, wantCode: http.StatusOK},
		{name: "invalid export type", path: "/v1/analytics/export?type=lol", token: adminToken, wantCode: http.StatusBadRequest},
		{name: "invalid export format", path: "/v1/analytics/export?format=pdf", token: adminToken, wantCode: http.StatusBadRequest},
		{name: "invalid date", path: "/v1/analytics/students?from=yesterday", token: adminToken, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodGet, tt.path, tt.token)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_analyticsApi_dashboard(t *testing.T) {
	e := setup(t)
	g := newGraded(t, e)

	rec := e.do(http.MethodGet, "/v1/analytics/dashboard?period=7", getToken(t, g.admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var dash analytics.Dashboard
	unmarshal(t, rec, &dash)

	assert.Equal(t, 7, dash.Period.Days)
	assert.Equal(t, 4, dash.SystemMetrics.TotalUsers)
	assert.Equal(t, 1, dash.SystemMetrics.ActiveStudents)
	assert.Equal(t, 2, dash.SystemMetrics.ActiveTeachers)
	assert.Equal(t, 1, dash.SystemMetrics.PublishedAssessments)
	assert.Equal(t, 1, dash.SystemMetrics.CompletedAttempts)
	assert.Equal(t, 100.0, dash.SystemMetrics.AverageScore)
	assert.Equal(t, 100.0, dash.AssessmentMetrics.CompletionRate)
	assert.Equal(t, 1, dash.AssessmentStats.QuizCount)
	assert.Equal(t, 100.0, dash.GrowthTrends.UserGrowth)

	var actions []string
	for _, a := range dash.RecentActivities {
		actions = append(actions, a.Action)
	}
	assert.Contains(t, actions, analytics.ActionAssessmentStart)
	assert.Contains(t, actions, analytics.ActionAssessmentComplete)

	// the dashboard is cached for the period
	_, err := e.assessSvc.Create(context.Background(), g.teacher, assessment.AssessmentInput{Title: "Quiz 2", MaxAttempts: 1})
	require.NoError(t, err)
	rec = e.do(http.MethodGet, "/v1/analytics/dashboard?period=7", getToken(t, g.teacher))
	var cached analytics.Dashboard
	unmarshal(t, rec, &cached)
	assert.Equal(t, dash.AssessmentMetrics.AssessmentsCreated, cached.AssessmentMetrics.AssessmentsCreated)
}

func Test_analyticsApi_scoping(t *testing.T) {
	e := setup(t)
	g := newGraded(t, e)

	students := func(token string) analytics.StudentAnalytics {
		rec := e.do(http.MethodGet, "/v1/analytics/students", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var sa analytics.StudentAnalytics
		unmarshal(t, rec, &sa)
		return sa
	}

	sa := students(getToken(t, g.teacher))
	require.Len(t, sa.Students, 1)
	assert.Equal(t, g.student.ID, sa.Students[0].StudentID)
	assert.Equal(t, 1, sa.Students[0].TotalAttempts)
	assert.Equal(t, 100.0, sa.Students[0].AvgScore)
	assert.Equal(t, 1, sa.GradeDistribution.A)

	// teachers only see the results of their own assessments
	sa = students(getToken(t, g.other))
	assert.Empty(t, sa.Students)
	assert.Zero(t, sa.GradeDistribution.A)

	rec := e.do(http.MethodGet, "/v1/analytics/assessments", getToken(t, g.teacher))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var aa analytics.AssessmentAnalytics
	unmarshal(t, rec, &aa)
	require.Len(t, aa.Assessments, 1)
	assert.Equal(t, g.quiz.ID, aa.Assessments[0].AssessmentID)
	assert.Equal(t, 100.0, aa.Assessments[0].PassRate)
	require.Len(t, aa.QuestionDifficulty, 1)
	assert.Equal(t, 100.0, aa.QuestionDifficulty[0].DifficultyScore)

	rec = e.do(http.MethodGet, "/v1/analytics/teachers", getToken(t, g.other))
	require.Equal(t, http.StatusOK, rec.Code)
	var teachers []analytics.TeacherActivity
	unmarshal(t, rec, &teachers)
	for _, ta := range teachers {
		assert.Equal(t, g.other.ID, ta.TeacherID)
	}
}

func Test_analyticsApi_export(t *testing.T) {
	e := setup(t)
	g := newGraded(t, e)
	adminToken := getToken(t, g.admin)

	rec := e.do(http.MethodGet, "/v1/analytics/export?type=student_performance&format=csv", adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Student", "Email", "Attempts", "Average Score", "Total Points", "Passed", "Failed"}, rows[0])
	assert.Equal(t, g.student.Email, rows[1][1])

	rec = e.do(http.MethodGet, "/v1/analytics/export?type=assessment_stats&format=json", adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats []analytics.AssessmentPerformance
	unmarshal(t, rec, &stats)
	require.Len(t, stats, 1)
	assert.Equal(t, "Quiz 1", stats[0].Title)

	rec = e.do(http.MethodGet, "/v1/analytics/export?type=teacher_activity&format=xlsx", adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotEmpty(t, rec.Body.Bytes())
}
