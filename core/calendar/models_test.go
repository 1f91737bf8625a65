package calendar

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spist/campus/core/user"
)

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestEvent_VisibleTo(t *testing.T) {
	admin := Viewer{User: user.User{ID: "a", Roles: []string{user.RoleAdmin}}}
	teacher := Viewer{User: user.User{ID: "t", Roles: []string{user.RoleTeacher}}}
	student := Viewer{User: user.User{ID: "s", Roles: []string{user.RoleStudent}}, YearLevel: 2, CourseIDs: []string{"c1"}}

	tests := []struct {
		name   string
		event  Event
		viewer Viewer
		want   bool
	}{
		{"all", Event{IsPublished: true, Audience: AudienceAll}, student, true},
		{"students to student", Event{IsPublished: true, Audience: AudienceStudents}, student, true},
		{"students to teacher", Event{IsPublished: true, Audience: AudienceStudents}, teacher, false},
		{"teachers to teacher", Event{IsPublished: true, Audience: AudienceTeachers}, teacher, true},
		{"admin to teacher", Event{IsPublished: true, Audience: AudienceAdmin}, teacher, false},
		{"admin to admin", Event{IsPublished: true, Audience: AudienceAdmin}, admin, true},
		{"unpublished to creator", Event{Audience: AudienceAll, CreatedBy: "t"}, teacher, true},
		{"unpublished to admin", Event{Audience: AudienceAll, CreatedBy: "t"}, admin, true},
		{"unpublished to student", Event{Audience: AudienceAll, CreatedBy: "t"}, student, false},
		{"specific without filters", Event{IsPublished: true, Audience: AudienceSpecific}, student, true},
		{"specific year level match", Event{IsPublished: true, Audience: AudienceSpecific, SpecificYearLevels: "1,2"}, student, true},
		{"specific year level miss", Event{IsPublished: true, Audience: AudienceSpecific, SpecificYearLevels: "3, 4"}, student, false},
		{"specific course match", Event{IsPublished: true, Audience: AudienceSpecific, SpecificCourses: []string{"c1", "c9"}}, student, true},
		{"specific course miss", Event{IsPublished: true, Audience: AudienceSpecific, SpecificCourses: []string{"c9"}}, student, false},
		{"specific to teacher", Event{IsPublished: true, Audience: AudienceSpecific}, teacher, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.event.VisibleTo(tc.viewer))
		})
	}
}

func TestEvent_Derived(t *testing.T) {
	e := Event{StartDate: date("2024-03-10"), EndDate: date("2024-03-12")}
	now := time.Date(2024, 3, 11, 15, 0, 0, 0, time.UTC)

	assert.True(t, e.IsToday(now))
	assert.False(t, e.IsUpcoming(now))
	assert.False(t, e.IsPast(now))
	assert.Equal(t, 3, e.DurationDays())

	later := now.AddDate(0, 0, 5)
	assert.True(t, e.IsPast(later))
	earlier := now.AddDate(0, 0, -5)
	assert.True(t, e.IsUpcoming(earlier))

	d := NewEventDetail(e, now)
	assert.True(t, d.IsToday)
	assert.Equal(t, 3, d.DurationDays)
	assert.Equal(t, DefaultColor, e.Color())
}

func TestMonday(t *testing.T) {
	assert.Equal(t, date("2024-02-26"), monday(date("2024-03-01"))) // friday
	assert.Equal(t, date("2024-03-04"), monday(date("2024-03-04"))) // monday
	assert.Equal(t, date("2024-03-04"), monday(date("2024-03-10"))) // sunday
}

func TestReminderDate(t *testing.T) {
	e := Event{StartDate: date("2024-03-10"), NotificationDays: 2}
	s := DefaultSettings("u")
	assert.Equal(t, time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC), reminderDate(e, s))

	s.NotificationTime = "18:30"
	e.NotificationDays = 0
	assert.Equal(t, time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC), reminderDate(e, s))
}

func TestICS(t *testing.T) {
	stamp := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	allDay := Event{ID: "e1", Title: "Foundation Day", StartDate: date("2024-03-10"), EndDate: date("2024-03-11"), IsAllDay: true}
	ics := ICS(allDay, "SPIST", stamp)
	assert.True(t, strings.HasPrefix(ics, "BEGIN:VCALENDAR\r\n"))
	assert.Contains(t, ics, "DTSTART;VALUE=DATE:20240310\r\n")
	assert.Contains(t, ics, "DTEND;VALUE=DATE:20240312\r\n")
	assert.Contains(t, ics, "UID:e1\r\n")

	timed := Event{
		ID: "e2", Title: "Faculty meeting; room change", StartDate: date("2024-03-10"), EndDate: date("2024-03-10"),
		StartTime: "14:00", Location: "Room 101, Main", Description: "<p>Bring <b>notes</b></p>",
	}
	ics = ICS(timed, "SPIST", stamp)
	assert.Contains(t, ics, "DTSTART:20240310T140000Z\r\n")
	assert.Contains(t, ics, "DTEND:20240310T150000Z\r\n")
	assert.Contains(t, ics, `SUMMARY:Faculty meeting\; room change`)
	assert.Contains(t, ics, `LOCATION:Room 101\, Main`)
	assert.Contains(t, ics, "DESCRIPTION:Bring notes\r\n")
	assert.Contains(t, ics, "METHOD:PUBLISH\r\n")

	long := timed
	long.Description = strings.Repeat("Bring your lab notebook and calculator. ", 10)
	ics = ICS(long, "SPIST", stamp)
	for _, line := range strings.Split(strings.TrimRight(ics, "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), 75, line)
	}
	unfolded := strings.ReplaceAll(ics, "\r\n ", "")
	assert.Contains(t, unfolded, "DESCRIPTION:"+strings.TrimSpace(long.Description))
}

func TestReminderMessage(t *testing.T) {
	usr := user.User{ID: "s", Name: "Hero", Email: "hero@spist.edu"}
	e := Event{ID: "e1", Title: "Enrollment deadline", StartDate: date("2024-06-01"), EndDate: date("2024-06-01"), IsAllDay: true}

	msg, err := reminderMessage(usr, e, "Saturday, June 1, 2024", "SPIST")
	require.NoError(t, err)
	assert.Equal(t, "Reminder: Enrollment deadline", msg.Subject)
	require.Len(t, msg.Attachments, 1)

	at := msg.Attachments[0]
	assert.Equal(t, "event.ics", at.Filename)
	assert.Equal(t, "text/calendar; charset=utf-8", at.ContentType)
	content, err := base64.StdEncoding.DecodeString(at.Content.String())
	require.NoError(t, err)
	assert.Contains(t, string(content), "UID:e1\r\n")
	assert.Contains(t, string(content), "SUMMARY:Enrollment deadline\r\n")
}
