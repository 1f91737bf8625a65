package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spist/campus/core/calendar"
)

type categoryModel struct {
	ID          string `gorm:"primaryKey;type:uuid"`
	Name        string `gorm:"size:100;not null"`
	Color       string `gorm:"size:7;not null"`
	Icon        string `gorm:"size:50;not null"`
	Description string `gorm:"not null"`
	IsActive    bool   `gorm:"not null"`
	CreatedAt   time.Time
}

func (categoryModel) TableName() string { return "event_category" }

type eventModel struct {
	ID                 string    `gorm:"primaryKey;type:uuid"`
	Title              string    `gorm:"size:200;not null"`
	Description        string    `gorm:"not null"`
	CategoryID         *string   `gorm:"type:uuid"`
	EventType          string    `gorm:"size:20;not null"`
	StartDate          time.Time `gorm:"type:date;not null"`
	EndDate            time.Time `gorm:"type:date;not null"`
	StartTime          string    `gorm:"size:5;not null"`
	EndTime            string    `gorm:"size:5;not null"`
	IsAllDay           bool      `gorm:"not null"`
	Location           string    `gorm:"size:200;not null"`
	MeetingLink        string    `gorm:"size:500;not null"`
	Audience           string    `gorm:"size:20;not null"`
	SpecificCourses    []string  `gorm:"type:text;serializer:json;not null"`
	SpecificYearLevels string    `gorm:"size:50;not null"`
	Priority           string    `gorm:"size:10;not null"`
	IsPublished        bool      `gorm:"not null"`
	IsRecurring        bool      `gorm:"not null"`
	CreatedBy          string    `gorm:"type:uuid;not null"`
	AssessmentID       *string   `gorm:"type:uuid"`
	SendNotifications  bool      `gorm:"not null"`
	NotificationDays   int       `gorm:"not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (eventModel) TableName() string { return "calendar_event" }

type reminderModel struct {
	ID           string    `gorm:"primaryKey;type:uuid"`
	EventID      string    `gorm:"type:uuid;not null;uniqueIndex:event_reminder_event_id_user_id_key"`
	UserID       string    `gorm:"type:uuid;not null;uniqueIndex:event_reminder_event_id_user_id_key"`
	ReminderDate time.Time `gorm:"not null"`
	IsSent       bool      `gorm:"not null"`
	SentAt       *time.Time
}

func (reminderModel) TableName() string { return "event_reminder" }

type settingsModel struct {
	UserID               string   `gorm:"primaryKey;type:uuid"`
	DefaultView          string   `gorm:"size:10;not null"`
	EmailNotifications   bool     `gorm:"not null"`
	BrowserNotifications bool     `gorm:"not null"`
	NotificationTime     string   `gorm:"size:5;not null"`
	ShowWeekends         bool     `gorm:"not null"`
	StartWeekOnMonday    bool     `gorm:"not null"`
	ShowEventDetails     bool     `gorm:"not null"`
	HiddenCategories     []string `gorm:"type:text;serializer:json;not null"`
}

func (settingsModel) TableName() string { return "user_calendar_settings" }

type calendarRepository struct {
	db *gorm.DB
}

var _ calendar.Repository = (*calendarRepository)(nil)

func NewCalendarRepository(db *gorm.DB) *calendarRepository {
	return &calendarRepository{db: db}
}

func (repo *calendarRepository) SaveCategory(ctx context.Context, c calendar.Category) (calendar.Category, error) {
	m := categoryModel(c)
	if err := repo.db.WithContext(ctx).Save(&m).Error; err != nil {
		return calendar.Category{}, errors.Wrap(err, "saving category")
	}
	return c, nil
}

func (repo *calendarRepository) GetCategory(ctx context.Context, id string) (calendar.Category, error) {
	var m categoryModel
	err := repo.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return calendar.Category{}, calendar.ErrCategoryNotFound
	}
	if err != nil {
		return calendar.Category{}, errors.Wrap(err, "finding category")
	}
	return calendar.Category(m), nil
}

func (repo *calendarRepository) QueryCategories(ctx context.Context, activeOnly bool) ([]calendar.Category, error) {
	q := repo.db.WithContext(ctx).Order("name")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var models []categoryModel
	if err := q.Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	cats := make([]calendar.Category, 0, len(models))
	for _, m := range models {
		cats = append(cats, calendar.Category(m))
	}
	return cats, nil
}

func (repo *calendarRepository) DeleteCategory(ctx context.Context, id string) error {
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&eventModel{}).Where("category_id = ?", id).Update("category_id", nil).Error
		if err != nil {
			return errors.Wrap(err, "detaching events")
		}
		res := tx.Where("id = ?", id).Delete(&categoryModel{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "deleting category")
		}
		if res.RowsAffected == 0 {
			return calendar.ErrCategoryNotFound
		}
		return nil
	})
}

func toEventModel(e calendar.Event) eventModel {
	return eventModel{
		ID:                 e.ID,
		Title:              e.Title,
		Description:        e.Description,
		CategoryID:         nullable(e.CategoryID),
		EventType:          e.EventType,
		StartDate:          e.StartDate.UTC(),
		EndDate:            e.EndDate.UTC(),
		StartTime:          e.StartTime,
		EndTime:            e.EndTime,
		IsAllDay:           e.IsAllDay,
		Location:           e.Location,
		MeetingLink:        e.MeetingLink,
		Audience:           e.Audience,
		SpecificCourses:    nonNil(e.SpecificCourses),
		SpecificYearLevels: e.SpecificYearLevels,
		Priority:           e.Priority,
		IsPublished:        e.IsPublished,
		IsRecurring:        e.IsRecurring,
		CreatedBy:          e.CreatedBy,
		AssessmentID:       nullable(e.AssessmentID),
		SendNotifications:  e.SendNotifications,
		NotificationDays:   e.NotificationDays,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

func (m eventModel) toEvent() calendar.Event {
	return calendar.Event{
		ID:                 m.ID,
		Title:              m.Title,
		Description:        m.Description,
		CategoryID:         deref(m.CategoryID),
		EventType:          m.EventType,
		StartDate:          dateOf(m.StartDate),
		EndDate:            dateOf(m.EndDate),
		StartTime:          m.StartTime,
		EndTime:            m.EndTime,
		IsAllDay:           m.IsAllDay,
		Location:           m.Location,
		MeetingLink:        m.MeetingLink,
		Audience:           m.Audience,
		SpecificCourses:    nonNil(m.SpecificCourses),
		SpecificYearLevels: m.SpecificYearLevels,
		Priority:           m.Priority,
		IsPublished:        m.IsPublished,
		IsRecurring:        m.IsRecurring,
		CreatedBy:          m.CreatedBy,
		AssessmentID:       deref(m.AssessmentID),
		SendNotifications:  m.SendNotifications,
		NotificationDays:   m.NotificationDays,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// dateOf drops the driver's location, keeping the calendar day in UTC.
func dateOf(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

// withCategories attaches the categories of events.
func (repo *calendarRepository) withCategories(ctx context.Context, models []eventModel) ([]calendar.Event, error) {
	var ids []string
	for _, m := range models {
		if m.CategoryID != nil {
			ids = append(ids, *m.CategoryID)
		}
	}
	cats := make(map[string]calendar.Category)
	if len(ids) > 0 {
		var catModels []categoryModel
		if err := repo.db.WithContext(ctx).Where("id IN ?", ids).Find(&catModels).Error; err != nil {
			return nil, errors.Wrap(err, "loading event categories")
		}
		for _, c := range catModels {
			cats[c.ID] = calendar.Category(c)
		}
	}

	events := make([]calendar.Event, 0, len(models))
	for _, m := range models {
		e := m.toEvent()
		if c, ok := cats[e.CategoryID]; ok {
			e.Category = &c
		}
		events = append(events, e)
	}
	return events, nil
}

func (repo *calendarRepository) SaveEvent(ctx context.Context, e calendar.Event) (calendar.Event, error) {
	m := toEventModel(e)
	if err := repo.db.WithContext(ctx).Save(&m).Error; err != nil {
		return calendar.Event{}, errors.Wrap(err, "saving event")
	}
	events, err := repo.withCategories(ctx, []eventModel{m})
	if err != nil {
		return calendar.Event{}, err
	}
	return events[0], nil
}

func (repo *calendarRepository) GetEvent(ctx context.Context, id string) (calendar.Event, error) {
	var m eventModel
	err := repo.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return calendar.Event{}, calendar.ErrEventNotFound
	}
	if err != nil {
		return calendar.Event{}, errors.Wrap(err, "finding event")
	}
	events, err := repo.withCategories(ctx, []eventModel{m})
	if err != nil {
		return calendar.Event{}, err
	}
	return events[0], nil
}

func (repo *calendarRepository) QueryEvents(ctx context.Context, filter calendar.EventFilter) ([]calendar.Event, error) {
	q := repo.db.WithContext(ctx).Order("start_date").Order("start_time")
	if !filter.From.IsZero() {
		q = q.Where("end_date >= ?", dateOf(filter.From))
	}
	if !filter.To.IsZero() {
		q = q.Where("start_date <= ?", dateOf(filter.To))
	}
	if len(filter.CategoryIDs) > 0 {
		q = q.Where("category_id IN ?", filter.CategoryIDs)
	}
	if filter.PublishedOnly {
		q = q.Where("is_published = ?", true)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var models []eventModel
	if err := q.Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "querying events")
	}
	return repo.withCategories(ctx, models)
}

func (repo *calendarRepository) DeleteEvent(ctx context.Context, id string) error {
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&reminderModel{}).Error; err != nil {
			return errors.Wrap(err, "deleting event reminders")
		}
		res := tx.Where("id = ?", id).Delete(&eventModel{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "deleting event")
		}
		if res.RowsAffected == 0 {
			return calendar.ErrEventNotFound
		}
		return nil
	})
}

func (repo *calendarRepository) SaveReminder(ctx context.Context, r calendar.Reminder) (calendar.Reminder, error) {
	m := reminderModel(r)
	var existing reminderModel
	err := repo.db.WithContext(ctx).Where("event_id = ? AND user_id = ?", r.EventID, r.UserID).Limit(1).Find(&existing).Error
	if err != nil {
		return calendar.Reminder{}, errors.Wrap(err, "finding reminder")
	}
	if existing.ID != "" {
		m.ID = existing.ID
		if err = repo.db.WithContext(ctx).Save(&m).Error; err != nil {
			return calendar.Reminder{}, errors.Wrap(err, "updating reminder")
		}
		return calendar.Reminder(m), nil
	}

	err = repo.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reminder_date", "is_sent", "sent_at"}),
	}).Create(&m).Error
	if err != nil {
		return calendar.Reminder{}, errors.Wrap(err, "saving reminder")
	}

	var saved reminderModel
	err = repo.db.WithContext(ctx).Where("event_id = ? AND user_id = ?", r.EventID, r.UserID).First(&saved).Error
	if err != nil {
		return calendar.Reminder{}, errors.Wrap(err, "reloading reminder")
	}
	return calendar.Reminder(saved), nil
}

func (repo *calendarRepository) QueryDueReminders(ctx context.Context, t time.Time) ([]calendar.Reminder, error) {
	var models []reminderModel
	err := repo.db.WithContext(ctx).
		Where("is_sent = ? AND reminder_date <= ?", false, t.UTC()).
		Order("reminder_date").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying due reminders")
	}
	due := make([]calendar.Reminder, 0, len(models))
	for _, m := range models {
		due = append(due, calendar.Reminder(m))
	}
	return due, nil
}

func (repo *calendarRepository) GetSettings(ctx context.Context, userID string) (calendar.Settings, error) {
	var m settingsModel
	err := repo.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return calendar.Settings{}, calendar.ErrSettingsNotFound
	}
	if err != nil {
		return calendar.Settings{}, errors.Wrap(err, "finding calendar settings")
	}
	s := calendar.Settings(m)
	s.HiddenCategories = nonNil(s.HiddenCategories)
	return s, nil
}

func (repo *calendarRepository) SaveSettings(ctx context.Context, s calendar.Settings) (calendar.Settings, error) {
	m := settingsModel(s)
	m.HiddenCategories = nonNil(m.HiddenCategories)
	if err := repo.db.WithContext(ctx).Save(&m).Error; err != nil {
		return calendar.Settings{}, errors.Wrap(err, "saving calendar settings")
	}
	return s, nil
}
