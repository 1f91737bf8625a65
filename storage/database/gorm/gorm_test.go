package gormrepos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/spist/campus/core/calendar"
	"github.com/spist/campus/core/notification"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func newEvent(title, start, end, categoryID string) calendar.Event {
	now := time.Now().UTC()
	return calendar.Event{
		ID:              uuid.NewString(),
		Title:           title,
		CategoryID:      categoryID,
		EventType:       calendar.TypeAcademic,
		StartDate:       day(start),
		EndDate:         day(end),
		Audience:        calendar.AudienceAll,
		SpecificCourses: []string{},
		Priority:        calendar.PriorityMedium,
		IsPublished:     true,
		CreatedBy:       uuid.NewString(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestCalendarRepository_Categories(t *testing.T) {
	ctx := context.Background()
	repo := NewCalendarRepository(openTestDB(t))

	exams := calendar.Category{ID: uuid.NewString(), Name: "Exams", Color: "#ff0000", IsActive: true, CreatedAt: time.Now().UTC()}
	holidays := calendar.Category{ID: uuid.NewString(), Name: "Holidays", Color: "#00ff00", IsActive: false, CreatedAt: time.Now().UTC()}
	for _, c := range []calendar.Category{holidays, exams} {
		_, err := repo.SaveCategory(ctx, c)
		require.NoError(t, err)
	}

	all, err := repo.QueryCategories(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Exams", all[0].Name)

	active, err := repo.QueryCategories(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, exams.ID, active[0].ID)

	ev, err := repo.SaveEvent(ctx, newEvent("Finals", "2024-05-10", "2024-05-12", exams.ID))
	require.NoError(t, err)
	require.NotNil(t, ev.Category)
	assert.Equal(t, "#ff0000", ev.Color())

	require.NoError(t, repo.DeleteCategory(ctx, exams.ID))
	assert.Equal(t, calendar.ErrCategoryNotFound, repo.DeleteCategory(ctx, exams.ID))

	got, err := repo.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CategoryID)
	assert.Nil(t, got.Category)

	_, err = repo.GetCategory(ctx, exams.ID)
	assert.Equal(t, calendar.ErrCategoryNotFound, err)
}

func TestCalendarRepository_QueryEvents(t *testing.T) {
	ctx := context.Background()
	repo := NewCalendarRepository(openTestDB(t))

	cat := calendar.Category{ID: uuid.NewString(), Name: "Academic", IsActive: true, CreatedAt: time.Now().UTC()}
	_, err := repo.SaveCategory(ctx, cat)
	require.NoError(t, err)

	early := newEvent("Orientation", "2024-06-01", "2024-06-01", "")
	early.StartTime = "13:00"
	earlier := newEvent("Registration", "2024-06-01", "2024-06-03", cat.ID)
	earlier.StartTime = "08:00"
	draft := newEvent("Draft", "2024-06-15", "2024-06-15", "")
	draft.IsPublished = false
	late := newEvent("Recognition", "2024-07-20", "2024-07-20", cat.ID)
	late.SpecificCourses = []string{"a", "b"}
	for _, e := range []calendar.Event{late, draft, early, earlier} {
		_, err := repo.SaveEvent(ctx, e)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter calendar.EventFilter
		want   []string
	}{
		{"all", calendar.EventFilter{}, []string{"Registration", "Orientation", "Draft", "Recognition"}},
		{"published", calendar.EventFilter{PublishedOnly: true}, []string{"Registration", "Orientation", "Recognition"}},
		{"overlapping range", calendar.EventFilter{From: day("2024-06-02"), To: day("2024-06-30")}, []string{"Registration", "Draft"}},
		{"category", calendar.EventFilter{CategoryIDs: []string{cat.ID}}, []string{"Registration", "Recognition"}},
		{"limit", calendar.EventFilter{Limit: 1}, []string{"Registration"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			events, err := repo.QueryEvents(ctx, tc.filter)
			require.NoError(t, err)
			titles := make([]string, 0, len(events))
			for _, e := range events {
				titles = append(titles, e.Title)
			}
			assert.Equal(t, tc.want, titles)
		})
	}

	got, err := repo.GetEvent(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.SpecificCourses)
	assert.True(t, got.StartDate.Equal(day("2024-07-20")))

	require.NoError(t, repo.DeleteEvent(ctx, late.ID))
	assert.Equal(t, calendar.ErrEventNotFound, repo.DeleteEvent(ctx, late.ID))
	_, err = repo.GetEvent(ctx, late.ID)
	assert.Equal(t, calendar.ErrEventNotFound, err)
}

func TestCalendarRepository_Reminders(t *testing.T) {
	ctx := context.Background()
	repo := NewCalendarRepository(openTestDB(t))

	ev, err := repo.SaveEvent(ctx, newEvent("Midterms", "2024-03-10", "2024-03-10", ""))
	require.NoError(t, err)
	userID := uuid.NewString()
	now := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

	first, err := repo.SaveReminder(ctx, calendar.Reminder{
		ID: uuid.NewString(), EventID: ev.ID, UserID: userID, ReminderDate: now.Add(-time.Hour),
	})
	require.NoError(t, err)

	// a second reminder for the same event and user replaces the first
	second, err := repo.SaveReminder(ctx, calendar.Reminder{
		ID: uuid.NewString(), EventID: ev.ID, UserID: userID, ReminderDate: now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	due, err := repo.QueryDueReminders(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = repo.QueryDueReminders(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)

	sent := due[0]
	sentAt := now.Add(2 * time.Hour)
	sent.IsSent, sent.SentAt = true, &sentAt
	_, err = repo.SaveReminder(ctx, sent)
	require.NoError(t, err)

	due, err = repo.QueryDueReminders(ctx, now.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestCalendarRepository_Settings(t *testing.T) {
	ctx := context.Background()
	repo := NewCalendarRepository(openTestDB(t))
	userID := uuid.NewString()

	_, err := repo.GetSettings(ctx, userID)
	assert.Equal(t, calendar.ErrSettingsNotFound, err)

	s := calendar.DefaultSettings(userID)
	s.DefaultView = "week"
	s.HiddenCategories = []string{"x"}
	_, err = repo.SaveSettings(ctx, s)
	require.NoError(t, err)

	s.ShowWeekends = false
	_, err = repo.SaveSettings(ctx, s)
	require.NoError(t, err)

	got, err := repo.GetSettings(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "week", got.DefaultView)
	assert.False(t, got.ShowWeekends)
	assert.Equal(t, []string{"x"}, got.HiddenCategories)
}

func TestNotificationRepository_Notifications(t *testing.T) {
	ctx := context.Background()
	repo := NewNotificationRepository(openTestDB(t))
	userID, otherID := uuid.NewString(), uuid.NewString()
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	var notifs []notification.Notification
	for i, uid := range []string{userID, userID, userID, otherID} {
		notifs = append(notifs, notification.Notification{
			ID:               uuid.NewString(),
			UserID:           uid,
			Title:            "Graded",
			Message:          "Your quiz was graded",
			NotificationType: notification.TypeInfo,
			CreatedAt:        base.Add(time.Duration(i) * time.Minute),
		})
	}
	require.NoError(t, repo.CreateNotifications(ctx, notifs))
	require.NoError(t, repo.CreateNotifications(ctx, nil))

	list, err := repo.QueryNotifications(ctx, userID, false, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, notifs[2].ID, list[0].ID)

	list, err = repo.QueryNotifications(ctx, userID, false, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	n, err := repo.MarkRead(ctx, userID, notifs[0].ID, notifs[3].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	unread, err := repo.CountUnread(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	n, err = repo.MarkRead(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err = repo.QueryNotifications(ctx, userID, true, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	unread, err = repo.CountUnread(ctx, otherID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestNotificationRepository_Announcements(t *testing.T) {
	ctx := context.Background()
	repo := NewNotificationRepository(openTestDB(t))
	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Hour)
	later := now.Add(time.Hour)

	anns := []notification.Announcement{
		{ID: uuid.NewString(), Title: "Welcome", Audience: notification.AudienceAll, IsActive: true, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: uuid.NewString(), Title: "Old", Audience: notification.AudienceAll, IsActive: true, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: &expired},
		{ID: uuid.NewString(), Title: "Faculty", Audience: notification.AudienceTeachers, IsActive: true, CreatedAt: now.Add(-time.Hour), ExpiresAt: &later},
		{ID: uuid.NewString(), Title: "Hidden", Audience: notification.AudienceStudents, IsActive: false, CreatedAt: now},
	}
	for _, a := range anns {
		_, err := repo.SaveAnnouncement(ctx, a)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter notification.AnnouncementFilter
		want   []string
	}{
		{"all", notification.AnnouncementFilter{}, []string{"Hidden", "Faculty", "Old", "Welcome"}},
		{"live", notification.AnnouncementFilter{LiveAt: now}, []string{"Faculty", "Welcome"}},
		{"live for students", notification.AnnouncementFilter{
			LiveAt: now, Audiences: []string{notification.AudienceAll, notification.AudienceStudents},
		}, []string{"Welcome"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			list, err := repo.QueryAnnouncements(ctx, tc.filter)
			require.NoError(t, err)
			titles := make([]string, 0, len(list))
			for _, a := range list {
				titles = append(titles, a.Title)
			}
			assert.Equal(t, tc.want, titles)
		})
	}

	got, err := repo.GetAnnouncement(ctx, anns[0].ID)
	require.NoError(t, err)
	assert.Empty(t, got.CreatedBy)
	assert.Nil(t, got.ExpiresAt)

	require.NoError(t, repo.DeleteAnnouncement(ctx, anns[0].ID))
	assert.Equal(t, notification.ErrAnnouncementNotFound, repo.DeleteAnnouncement(ctx, anns[0].ID))
	_, err = repo.GetAnnouncement(ctx, anns[0].ID)
	assert.Equal(t, notification.ErrAnnouncementNotFound, err)
}
