package tests

import (
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spist/campus/core/calendar"
	"github.com/spist/campus/core/user"
	"github.com/spist/campus/tests"
)

func Test_calendarApi_categories(t *testing.T) {
	e := setup(t)

	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@spist.edu", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teacher", "teacher@spist.edu", "", []string{user.RoleTeacher}, true)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{
			name: "teachers cannot create", method: http.MethodPost, token: getToken(t, teacher),
			body: marchallObj(t, calendar.CategoryInput{Name: "Exams"}), wantCode: http.StatusForbidden,
		},
		{
			name: "invalid color", method: http.MethodPost, token: adminToken,
			body: marchallObj(t, calendar.CategoryInput{Name: "Exams", Color: "red"}), wantCode: http.StatusBadRequest,
		},
		{
			name: "created", method: http.MethodPost, token: adminToken,
			body: marchallObj(t, calendar.CategoryInput{Name: " <b>Exams</b> ", Color: "#ff0000"}), wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(tt.method, "/v1/calendar/categories", tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	rec := e.do(http.MethodGet, "/v1/calendar/categories", getToken(t, teacher))
	require.Equal(t, http.StatusOK, rec.Code)
	var cats []calendar.Category
	unmarshal(t, rec, &cats)
	require.Len(t, cats, 1)
	assert.Equal(t, "Exams", cats[0].Name)
	assert.True(t, cats[0].IsActive)

	inactive := false
	rec = e.do(http.MethodPut, "/v1/calendar/categories/"+cats[0].ID, adminToken,
		marchallObj(t, calendar.CategoryInput{Name: "Exams", IsActive: &inactive}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(http.MethodGet, "/v1/calendar/categories", getToken(t, teacher))
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = e.do(http.MethodDelete, "/v1/calendar/categories/"+cats[0].ID, adminToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func Test_calendarApi_events(t *testing.T) {
	e := setup(t)

	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@spist.edu", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teacher", "teacher@spist.edu", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, e.usrRepo, "Other", "other", "other@spist.edu", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateStudent(t, e.usrRepo, "Hero", "hero", "2026-0001", user.YearFirst)
	teacherToken := getToken(t, teacher)
	studentToken := getToken(t, student)

	rec := e.do(http.MethodPost, "/v1/calendar/categories", getToken(t, admin), marchallObj(t, calendar.CategoryInput{Name: "Exams"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cat calendar.Category
	unmarshal(t, rec, &cat)

	day := time.Now().UTC().AddDate(0, 0, 7)
	date := day.Format("2006-01-02")

	tests := []httpTest{
		{
			name: "students cannot create", token: studentToken, wantCode: http.StatusForbidden,
			body: marchallObj(t, calendar.EventInput{Title: "Party", StartDate: date}),
		},
		{
			name: "required fields", token: teacherToken, body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"title": "this field is required", "start_date": "this field is required",
			}),
		},
		{
			name: "invalid time", token: teacherToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, calendar.EventInput{Title: "Midterms", StartDate: date, StartTime: "25:00"}),
			wantData: marchallObj(t, map[string]string{"start_time": "time must be in the HH:MM format"}),
		},
		{
			name: "end before start", token: teacherToken, wantCode: http.StatusBadRequest,
			body: marchallObj(t, calendar.EventInput{
				Title: "Midterms", StartDate: date, EndDate: day.AddDate(0, 0, -1).Format("2006-01-02"),
			}),
			wantData: marchallObj(t, map[string]string{"end_date": "end date must be on or after the start date"}),
		},
		{
			name: "unknown category", token: teacherToken, wantCode: http.StatusBadRequest,
			body: marchallObj(t, calendar.EventInput{Title: "Midterms", StartDate: date, CategoryID: "0b9bb6f4-3f7a-4f5e-8f36-8f5b3b8d4c11"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, "/v1/calendar/events", tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	create := func(in calendar.EventInput) calendar.Event {
		rec := e.do(http.MethodPost, "/v1/calendar/events", teacherToken, marchallObj(t, in))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var ev calendar.Event
		unmarshal(t, rec, &ev)
		return ev
	}
	midterms := create(calendar.EventInput{
		Title: "Midterms", StartDate: date, StartTime: "08:00", EndTime: "10:00",
		CategoryID: cat.ID, Audience: calendar.AudienceStudents, EventType: calendar.TypeExamination,
	})
	assert.Equal(t, calendar.PriorityMedium, midterms.Priority)
	assert.True(t, midterms.IsPublished)
	require.NotNil(t, midterms.Category)
	meeting := create(calendar.EventInput{Title: "Faculty meeting", StartDate: date, Audience: calendar.AudienceTeachers})
	draft := false
	create(calendar.EventInput{Title: "Draft", StartDate: date, IsPublished: &draft})

	feed := func(token, query string) []calendar.FeedItem {
		rec := e.do(http.MethodGet, "/v1/calendar/events?"+query, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var items []calendar.FeedItem
		unmarshal(t, rec, &items)
		return items
	}
	rng := "start=" + date + "&end=" + date

	rec = e.do(http.MethodGet, "/v1/calendar/events", studentToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, string(marchallObj(t, httpErr{Error: "Start and end dates required"})), rec.Body.String())

	items := feed(studentToken, "start="+date+"T00:00:00Z&end="+date+"T23:59:59Z")
	require.Len(t, items, 1)
	assert.Equal(t, midterms.ID, items[0].ID)
	assert.Equal(t, "/calendar/events/"+midterms.ID, items[0].URL)

	items = feed(teacherToken, rng)
	require.Len(t, items, 1)
	assert.Equal(t, meeting.ID, items[0].ID)

	// audience rules apply to single events too
	rec = e.do(http.MethodGet, "/v1/calendar/events/"+meeting.ID, studentToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(http.MethodGet, "/v1/calendar/events/"+midterms.ID, studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var detail calendar.EventDetail
	unmarshal(t, rec, &detail)
	assert.True(t, detail.IsUpcoming)
	assert.Equal(t, 1, detail.DurationDays)

	rec = e.do(http.MethodGet, "/v1/calendar/events/"+midterms.ID+"/ics", studentToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar"))
	assert.Contains(t, rec.Body.String(), "BEGIN:VEVENT")
	assert.Contains(t, rec.Body.String(), "UID:"+midterms.ID)

	rec = e.do(http.MethodGet, "/v1/calendar/upcoming", studentToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var upcoming []calendar.Event
	unmarshal(t, rec, &upcoming)
	require.Len(t, upcoming, 1)
	assert.Equal(t, midterms.ID, upcoming[0].ID)

	rec = e.do(http.MethodGet, "/v1/calendar/day?date="+date, studentToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var dayEvents []calendar.Event
	unmarshal(t, rec, &dayEvents)
	assert.Len(t, dayEvents, 1)

	rec = e.do(http.MethodGet, "/v1/calendar/day?date=tomorrow", studentToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodGet, "/v1/calendar/month?year="+strconv.Itoa(day.Year())+"&month="+strconv.Itoa(int(day.Month())), studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var month calendar.Month
	unmarshal(t, rec, &month)
	assert.Len(t, month.Weeks, 6)
	assert.Equal(t, day.Month().String(), month.MonthName)

	rec = e.do(http.MethodGet, "/v1/calendar/month?month=13", studentToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// reminders
	rec = e.do(http.MethodPost, "/v1/calendar/events/"+midterms.ID+"/remind", studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reminder calendar.Reminder
	unmarshal(t, rec, &reminder)
	assert.Equal(t, student.ID, reminder.UserID)
	assert.False(t, reminder.IsSent)
	assert.Equal(t, date, reminder.ReminderDate.AddDate(0, 0, 1).Format("2006-01-02"))

	// editing
	body := marchallObj(t, calendar.EventInput{Title: "Midterm exams", StartDate: date, Audience: calendar.AudienceStudents})
	rec = e.do(http.MethodPut, "/v1/calendar/events/"+midterms.ID, getToken(t, other), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(http.MethodPut, "/v1/calendar/events/"+midterms.ID, studentToken, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(http.MethodPut, "/v1/calendar/events/"+midterms.ID, getToken(t, admin), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated calendar.Event
	unmarshal(t, rec, &updated)
	assert.Equal(t, "Midterm exams", updated.Title)
	assert.Equal(t, teacher.ID, updated.CreatedBy)
	assert.Nil(t, updated.Category)

	rec = e.do(http.MethodDelete, "/v1/calendar/events/"+meeting.ID, getToken(t, other))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(http.MethodDelete, "/v1/calendar/events/"+meeting.ID, teacherToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, feed(teacherToken, rng))
}

func Test_calendarApi_settings(t *testing.T) {
	e := setup(t)

	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@spist.edu", "", []string{user.RoleAdmin}, true)
	student := testutil.CreateStudent(t, e.usrRepo, "Hero", "hero", "2026-0001", user.YearFirst)
	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)

	rec := e.do(http.MethodGet, "/v1/calendar/settings", studentToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var settings calendar.Settings
	unmarshal(t, rec, &settings)
	assert.Equal(t, "month", settings.DefaultView)
	assert.Equal(t, calendar.DefaultNotificationTime, settings.NotificationTime)
	assert.Empty(t, settings.HiddenCategories)

	rec = e.do(http.MethodPost, "/v1/calendar/categories", adminToken, marchallObj(t, calendar.CategoryInput{Name: "Sports"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cat calendar.Category
	unmarshal(t, rec, &cat)

	date := time.Now().UTC().AddDate(0, 0, 3).Format("2006-01-02")
	rec = e.do(http.MethodPost, "/v1/calendar/events", adminToken, marchallObj(t, calendar.EventInput{
		Title: "Intramurals", StartDate: date, CategoryID: cat.ID, IsAllDay: true,
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tests := []httpTest{
		{name: "invalid view", body: []byte(`{"default_view": "year"}`), wantCode: http.StatusBadRequest},
		{name: "invalid time", body: []byte(`{"notification_time": "9am"}`), wantCode: http.StatusBadRequest},
		{
			name: "hidden category", wantCode: http.StatusOK,
			body: marchallObj(t, calendar.SettingsInput{DefaultView: "week", HiddenCategories: []string{cat.ID}}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPut, "/v1/calendar/settings", studentToken, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	rec = e.do(http.MethodGet, "/v1/calendar/settings", studentToken)
	unmarshal(t, rec, &settings)
	assert.Equal(t, "week", settings.DefaultView)
	assert.Equal(t, []string{cat.ID}, settings.HiddenCategories)

	// hidden categories are left out unless asked for
	rec = e.do(http.MethodGet, "/v1/calendar/events?start="+date+"&end="+date, studentToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = e.do(http.MethodGet, "/v1/calendar/events?start="+date+"&end="+date+"&categories[]="+cat.ID, studentToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []calendar.FeedItem
	unmarshal(t, rec, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "Intramurals", items[0].Title)

	// other users keep the defaults
	rec = e.do(http.MethodGet, "/v1/calendar/events?start="+date+"&end="+date, adminToken)
	unmarshal(t, rec, &items)
	assert.Len(t, items, 1)
}
