package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spist/campus/apps/api/echo"
	"github.com/spist/campus/core/assessment"
	"github.com/spist/campus/core/user"
	"github.com/spist/campus/tests"
)

func Test_assessmentApi_authoring(t *testing.T) {
	e := setup(t)

	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@spist.edu", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teacher", "teacher@spist.edu", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, e.usrRepo, "Other", "other", "other@spist.edu", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateStudent(t, e.usrRepo, "Hero", "hero", "2026-0001", user.YearFirst)
	teacherToken := getToken(t, teacher)

	rec := e.do(http.MethodPost, "/v1/assessments", getToken(t, student), marchallObj(t, assessment.AssessmentInput{Title: "Quiz 1"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(http.MethodPost, "/v1/assessments", getToken(t, admin), marchallObj(t, assessment.AssessmentInput{Title: "Admin quiz"}))
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = e.do(http.MethodPost, "/v1/assessments", teacherToken, []byte(`{"assessment_type": "essay"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, "/v1/assessments", teacherToken, marchallObj(t, assessment.AssessmentInput{Title: "<b>Quiz 1</b>"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var quiz assessment.Assessment
	unmarshal(t, rec, &quiz)
	assert.Equal(t, "Quiz 1", quiz.Title)
	assert.Equal(t, assessment.TypeQuiz, quiz.AssessmentType)
	assert.Equal(t, assessment.StatusDraft, quiz.Status)
	assert.Equal(t, 1, quiz.MaxAttempts)

	path := "/v1/assessments/" + quiz.ID

	rec = e.do(http.MethodPost, path+"/publish", teacherToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, string(marchallObj(t, httpErr{Error: "Cannot publish assessment without questions."})), rec.Body.String())

	tests := []httpTest{
		{
			name: "not the owner", token: getToken(t, other), wantCode: http.StatusNotFound,
			body: marchallObj(t, assessment.QuestionInput{QuestionType: assessment.QuestionTrueFalse, QuestionText: "Go is compiled.", CorrectAnswer: "true"}),
		},
		{
			name: "invalid type", token: teacherToken, wantCode: http.StatusBadRequest,
			body: []byte(`{"question_type": "matching", "question_text": "?"}`),
		},
		{
			name: "single choice", token: teacherToken, wantCode: http.StatusBadRequest,
			body: marchallObj(t, assessment.QuestionInput{
				QuestionType: assessment.QuestionMultipleChoice, QuestionText: "Pick",
				Choices: []assessment.ChoiceInput{{ChoiceText: "only", IsCorrect: true}},
			}),
		},
		{
			name: "no correct choice", token: teacherToken, wantCode: http.StatusBadRequest,
			body: marchallObj(t, assessment.QuestionInput{
				QuestionType: assessment.QuestionMultipleChoice, QuestionText: "Pick",
				Choices: []assessment.ChoiceInput{{ChoiceText: "a"}, {ChoiceText: "b"}},
			}),
		},
		{
			name: "true/false", token: teacherToken, wantCode: http.StatusCreated,
			body: marchallObj(t, assessment.QuestionInput{QuestionType: assessment.QuestionTrueFalse, QuestionText: "Go is compiled.", CorrectAnswer: "TRUE"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, path+"/questions", tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	rec = e.do(http.MethodPost, path+"/publish", teacherToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &quiz)
	assert.Equal(t, assessment.StatusPublished, quiz.Status)
	assert.Equal(t, 1, quiz.QuestionCount)

	// teachers only list their own assessments
	rec = e.do(http.MethodGet, "/v1/assessments", getToken(t, other))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = e.do(http.MethodGet, "/v1/assessments", teacherToken)
	var list []assessment.Assessment
	unmarshal(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, quiz.ID, list[0].ID)

	rec = e.do(http.MethodDelete, path, getToken(t, other))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(http.MethodDelete, path, teacherToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(http.MethodGet, path, teacherToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_assessmentApi_taking(t *testing.T) {
	e := setup(t)

	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teacher", "teacher@spist.edu", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateStudent(t, e.usrRepo, "Hero", "hero", "2026-0001", user.YearFirst)
	teacherToken := getToken(t, teacher)
	studentToken := getToken(t, student)

	passing := 60
	rec := e.do(http.MethodPost, "/v1/assessments", teacherToken, marchallObj(t, assessment.AssessmentInput{
		Title: "Quiz 1", AssessmentType: assessment.TypeQuiz, PassingScore: &passing,
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var quiz assessment.Assessment
	unmarshal(t, rec, &quiz)
	path := "/v1/assessments/" + quiz.ID

	rec = e.do(http.MethodPost, path+"/questions", teacherToken, marchallObj(t, assessment.QuestionInput{
		QuestionType: assessment.QuestionMultipleChoice,
		QuestionText: "Which keyword starts a goroutine?",
		Choices: []assessment.ChoiceInput{
			{ChoiceText: "go", IsCorrect: true},
			{ChoiceText: "async"},
			{ChoiceText: "spawn"},
		},
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var mcq assessment.Question
	unmarshal(t, rec, &mcq)
	require.Len(t, mcq.Choices, 3)

	rec = e.do(http.MethodPost, path+"/questions", teacherToken, marchallObj(t, assessment.QuestionInput{
		QuestionType: assessment.QuestionIdentification,
		QuestionText: "Name the tool that formats Go code.",
		Answers:      []assessment.CorrectAnswerInput{{AnswerText: "gofmt"}},
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var idq assessment.Question
	unmarshal(t, rec, &idq)

	// drafts are not available
	rec = e.do(http.MethodPost, path+"/take", studentToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, path+"/publish", teacherToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(http.MethodGet, "/v1/assessments/available", studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var available []assessment.AvailableAssessment
	unmarshal(t, rec, &available)
	require.Len(t, available, 1)
	assert.True(t, available[0].CanAttempt)
	assert.Zero(t, available[0].AttemptsUsed)

	// staff cannot take assessments
	rec = e.do(http.MethodPost, path+"/take", teacherToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// nothing to save before starting
	rec = e.do(http.MethodPost, path+"/save-progress", studentToken, []byte(`{"answers": []}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, path+"/take", studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view assessment.AttemptView
	unmarshal(t, rec, &view)
	assert.False(t, view.Resumed)
	assert.Equal(t, 1, view.Attempt.AttemptNumber)
	require.Len(t, view.Questions, 2)
	assert.NotContains(t, rec.Body.String(), "is_correct")
	assert.NotContains(t, rec.Body.String(), "gofmt")

	answers := assessment.Submission{Answers: []assessment.AnswerInput{
		{QuestionID: mcq.ID, SelectedChoiceID: mcq.Choices[0].ID},
		{QuestionID: idq.ID, TextAnswer: "go fmt"},
	}}

	rec = e.do(http.MethodPost, path+"/save-progress", studentToken, marchallObj(t, answers))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var saved echoapi.SaveProgressResponse
	unmarshal(t, rec, &saved)
	assert.True(t, saved.Success)
	assert.False(t, saved.SavedAt.IsZero())

	// taking again resumes the attempt
	rec = e.do(http.MethodPost, path+"/take", studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resumed assessment.AttemptView
	unmarshal(t, rec, &resumed)
	assert.True(t, resumed.Resumed)
	assert.Equal(t, view.Attempt.ID, resumed.Attempt.ID)

	violations := []httpTest{
		{name: "unknown type", body: []byte(`{"violation_type": "sneeze"}`), wantCode: http.StatusBadRequest},
		{
			name: "tab switch", body: marchallObj(t, assessment.ViolationInput{ViolationType: "tab_switch"}),
			wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.ViolationResponse{Success: true, Violations: 1}),
		},
		{
			name: "copy", body: marchallObj(t, assessment.ViolationInput{ViolationType: "copy", Details: "<i>ctrl+c</i>"}),
			wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.ViolationResponse{Success: true, Violations: 2}),
		},
	}
	for _, tt := range violations {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, path+"/track-violation", studentToken, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	rec = e.do(http.MethodPost, path+"/submit", studentToken, marchallObj(t, answers))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res assessment.Result
	unmarshal(t, rec, &res)
	assert.True(t, res.Attempt.IsCompleted)
	assert.Equal(t, 1, res.Attempt.Score)
	assert.Equal(t, 2, res.Attempt.MaxScore)
	assert.Equal(t, 50.0, res.Attempt.Percentage)
	assert.False(t, res.Attempt.IsPassed)
	assert.Equal(t, 2, res.Attempt.Violations)

	// a single attempt is allowed
	rec = e.do(http.MethodPost, path+"/take", studentToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, string(marchallObj(t, httpErr{Error: "You have reached the maximum number of attempts."})), rec.Body.String())
	rec = e.do(http.MethodPost, path+"/submit", studentToken, marchallObj(t, answers))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// results
	rec = e.do(http.MethodGet, "/v1/attempts", studentToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var attempts []assessment.Attempt
	unmarshal(t, rec, &attempts)
	require.Len(t, attempts, 1)

	rec = e.do(http.MethodGet, path+"/results", teacherToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summaries []assessment.AttemptSummary
	unmarshal(t, rec, &summaries)
	require.Len(t, summaries, 1)
	assert.Equal(t, student.Email, summaries[0].Email)

	rec = e.do(http.MethodGet, "/v1/attempts/"+res.Attempt.ID+"/violations", teacherToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var vs []assessment.Violation
	unmarshal(t, rec, &vs)
	require.Len(t, vs, 2)

	rec = e.do(http.MethodGet, path+"/export-grades?format=csv", teacherToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "2026-0001")
}
