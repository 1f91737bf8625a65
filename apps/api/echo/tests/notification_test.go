package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spist/campus/apps/api/echo"
	"github.com/spist/campus/core/notification"
	"github.com/spist/campus/core/user"
	"github.com/spist/campus/tests"
)

func Test_notificationApi_inbox(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	student := testutil.CreateStudent(t, e.usrRepo, "Hero", "hero", "2026-0001", user.YearFirst)
	other := testutil.CreateStudent(t, e.usrRepo, "Other", "other", "2026-0002", user.YearFirst)
	studentToken := getToken(t, student)

	first, err := e.notifSvc.Notify(ctx, student.ID, "Enrollment approved", "You are now enrolled.", notification.TypeSuccess)
	require.NoError(t, err)
	_, err = e.notifSvc.Notify(ctx, student.ID, "Quiz graded", "Your quiz has been graded.", notification.TypeInfo)
	require.NoError(t, err)
	theirs, err := e.notifSvc.Notify(ctx, other.ID, "Welcome", "Hello.", notification.TypeWarning)
	require.NoError(t, err)

	count := func() int {
		rec := e.do(http.MethodGet, "/v1/notifications/unread-count", studentToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var res echoapi.CountResponse
		unmarshal(t, rec, &res)
		return res.Count
	}

	rec := e.do(http.MethodGet, "/v1/notifications", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, string(marchallObj(t, errMissingToken)), rec.Body.String())

	rec = e.do(http.MethodGet, "/v1/notifications", studentToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []notification.Notification
	unmarshal(t, rec, &list)
	require.Len(t, list, 2)
	for _, n := range list {
		assert.Equal(t, student.ID, n.UserID)
		assert.False(t, n.IsRead)
	}
	assert.Equal(t, 2, count())

	tests := []httpTest{
		{name: "unknown", path: "/v1/notifications/lol/read", wantCode: http.StatusNotFound},
		{name: "someone else's", path: "/v1/notifications/" + theirs.ID + "/read", wantCode: http.StatusNotFound},
		{name: "own", path: "/v1/notifications/" + first.ID + "/read", wantCode: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, tt.path, studentToken)
			checkCodeAndData(t, tt, rec)
		})
	}
	assert.Equal(t, 1, count())

	rec = e.do(http.MethodGet, "/v1/notifications?unread=true", studentToken)
	unmarshal(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Quiz graded", list[0].Title)

	rec = e.do(http.MethodPost, "/v1/notifications/read-all", studentToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count": 1}`, rec.Body.String())
	assert.Equal(t, 0, count())

	// other inboxes are untouched
	n, err := e.notifSvc.UnreadCount(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func Test_notificationApi_live(t *testing.T) {
	e := setup(t)
	student := testutil.CreateStudent(t, e.usrRepo, "Hero", "hero", "2026-0001", user.YearFirst)

	rec := e.do(http.MethodGet, "/v1/notifications/ws", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// no hub is running in tests
	rec = e.do(http.MethodGet, "/v1/notifications/ws?token="+getToken(t, student), "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error": "live notifications are unavailable"}`, rec.Body.String())
}

func Test_notificationApi_announcements(t *testing.T) {
	e := setup(t)

	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@spist.edu", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teacher", "teacher@spist.edu", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateStudent(t, e.usrRepo, "Hero", "hero", "2026-0001", user.YearFirst)
	adminToken := getToken(t, admin)

	inactive := false
	tests := []httpTest{
		{
			name: "students cannot post", token: getToken(t, student), wantCode: http.StatusForbidden,
			body: marchallObj(t, notification.AnnouncementInput{Title: "Hi", Content: "Hello"}),
		},
		{
			name: "required fields", token: adminToken, body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"title": "this field is required", "content": "this field is required"}),
		},
		{
			name: "invalid audience", token: adminToken, wantCode: http.StatusBadRequest,
			body: marchallObj(t, notification.AnnouncementInput{Title: "Hi", Content: "Hello", Audience: "parents"}),
		},
		{
			name: "everyone", token: adminToken, wantCode: http.StatusCreated,
			body: marchallObj(t, notification.AnnouncementInput{Title: "Enrollment is open", Content: "<p>See the registrar.</p>"}),
		},
		{
			name: "students", token: adminToken, wantCode: http.StatusCreated,
			body: marchallObj(t, notification.AnnouncementInput{Title: "Exam week", Content: "Good luck", Audience: notification.AudienceStudents}),
		},
		{
			name: "teachers", token: adminToken, wantCode: http.StatusCreated,
			body: marchallObj(t, notification.AnnouncementInput{Title: "Grades due", Content: "Friday", Audience: notification.AudienceTeachers}),
		},
		{
			name: "inactive", token: adminToken, wantCode: http.StatusCreated,
			body: marchallObj(t, notification.AnnouncementInput{Title: "Old news", Content: "Gone", IsActive: &inactive}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, "/v1/announcements", tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	titles := func(token, query string) []string {
		rec := e.do(http.MethodGet, "/v1/announcements"+query, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var list []notification.Announcement
		unmarshal(t, rec, &list)
		res := make([]string, 0, len(list))
		for _, a := range list {
			res = append(res, a.Title)
		}
		return res
	}

	assert.ElementsMatch(t, []string{"Enrollment is open", "Exam week"}, titles(getToken(t, student), ""))
	assert.ElementsMatch(t, []string{"Enrollment is open", "Grades due"}, titles(getToken(t, teacher), ""))
	assert.ElementsMatch(t, []string{"Enrollment is open", "Exam week", "Grades due"}, titles(adminToken, ""))
	assert.Len(t, titles(adminToken, "?all=true"), 4)
	// only admins can list everything
	assert.Len(t, titles(getToken(t, student), "?all=true"), 2)

	rec := e.do(http.MethodGet, "/v1/announcements", adminToken)
	var list []notification.Announcement
	unmarshal(t, rec, &list)
	var examWeek notification.Announcement
	for _, a := range list {
		if a.Title == "Exam week" {
			examWeek = a
		}
	}
	require.NotEmpty(t, examWeek.ID)

	rec = e.do(http.MethodPut, "/v1/announcements/"+examWeek.ID, adminToken,
		marchallObj(t, notification.AnnouncementInput{Title: "Exam week", Content: "Cancelled", IsActive: &inactive}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.ElementsMatch(t, []string{"Enrollment is open"}, titles(getToken(t, student), ""))

	rec = e.do(http.MethodPut, "/v1/announcements/lol", adminToken,
		marchallObj(t, notification.AnnouncementInput{Title: "Exam week", Content: "Cancelled"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(http.MethodDelete, "/v1/announcements/"+examWeek.ID, getToken(t, teacher))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(http.MethodDelete, "/v1/announcements/"+examWeek.ID, adminToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, titles(adminToken, "?all=true"), 3)
}
