package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/calendar"
)

type calendarRepository struct {
	db *DB
}

var _ calendar.Repository = (*calendarRepository)(nil)

func NewCalendarRepository(db *DB) *calendarRepository {
	return &calendarRepository{db: db}
}

func (repo *calendarRepository) SaveCategory(_ context.Context, c calendar.Category) (calendar.Category, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.categories[c.ID] = &c
	return c, nil
}

func (repo *calendarRepository) GetCategory(_ context.Context, id string) (calendar.Category, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.categories[id]; ok {
		return *c, nil
	}
	return calendar.Category{}, calendar.ErrCategoryNotFound
}

func (repo *calendarRepository) QueryCategories(_ context.Context, activeOnly bool) ([]calendar.Category, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	cats := make([]calendar.Category, 0, len(repo.db.categories))
	for _, c := range repo.db.categories {
		if !activeOnly || c.IsActive {
			cats = append(cats, *c)
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

func (repo *calendarRepository) DeleteCategory(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.categories[id]; !ok {
		return calendar.ErrCategoryNotFound
	}
	delete(repo.db.categories, id)
	for _, e := range repo.db.events {
		if e.CategoryID == id {
			e.CategoryID = ""
		}
	}
	return nil
}

// withCategory must be called with the lock held.
func (repo *calendarRepository) withCategory(e calendar.Event) calendar.Event {
	e.SpecificCourses = copyStrings(e.SpecificCourses)
	e.Category = nil
	if c, ok := repo.db.categories[e.CategoryID]; ok {
		cat := *c
		e.Category = &cat
	}
	return e
}

func (repo *calendarRepository) SaveEvent(_ context.Context, e calendar.Event) (calendar.Event, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	saved := e
	saved.Category = nil
	saved.SpecificCourses = copyStrings(e.SpecificCourses)
	repo.db.events[e.ID] = &saved
	return repo.withCategory(saved), nil
}

func (repo *calendarRepository) GetEvent(_ context.Context, id string) (calendar.Event, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if e, ok := repo.db.events[id]; ok {
		return repo.withCategory(*e), nil
	}
	return calendar.Event{}, calendar.ErrEventNotFound
}

func (repo *calendarRepository) QueryEvents(_ context.Context, filter calendar.EventFilter) ([]calendar.Event, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	events := make([]calendar.Event, 0)
	for _, e := range repo.db.events {
		if !filter.From.IsZero() && e.EndDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.StartDate.After(filter.To) {
			continue
		}
		if len(filter.CategoryIDs) > 0 && !core.ContainsString(filter.CategoryIDs, e.CategoryID) {
			continue
		}
		if filter.PublishedOnly && !e.IsPublished {
			continue
		}
		events = append(events, repo.withCategory(*e))
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].StartDate.Equal(events[j].StartDate) {
			return events[i].StartDate.Before(events[j].StartDate)
		}
		return events[i].StartTime < events[j].StartTime
	})
	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[:filter.Limit]
	}
	return events, nil
}

func (repo *calendarRepository) DeleteEvent(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.events[id]; !ok {
		return calendar.ErrEventNotFound
	}
	delete(repo.db.events, id)
	for rid, r := range repo.db.reminders {
		if r.EventID == id {
			delete(repo.db.reminders, rid)
		}
	}
	return nil
}

func (repo *calendarRepository) SaveReminder(_ context.Context, r calendar.Reminder) (calendar.Reminder, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, existing := range repo.db.reminders {
		if existing.EventID == r.EventID && existing.UserID == r.UserID && id != r.ID {
			delete(repo.db.reminders, id)
			r.ID = id
		}
	}
	repo.db.reminders[r.ID] = &r
	return r, nil
}

func (repo *calendarRepository) QueryDueReminders(_ context.Context, t time.Time) ([]calendar.Reminder, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	due := make([]calendar.Reminder, 0)
	for _, r := range repo.db.reminders {
		if !r.IsSent && !r.ReminderDate.After(t) {
			due = append(due, *r)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].ReminderDate.Before(due[j].ReminderDate) })
	return due, nil
}

func (repo *calendarRepository) GetSettings(_ context.Context, userID string) (calendar.Settings, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.settings[userID]; ok {
		cp := *s
		cp.HiddenCategories = copyStrings(s.HiddenCategories)
		return cp, nil
	}
	return calendar.Settings{}, calendar.ErrSettingsNotFound
}

func (repo *calendarRepository) SaveSettings(_ context.Context, s calendar.Settings) (calendar.Settings, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	saved := s
	saved.HiddenCategories = copyStrings(s.HiddenCategories)
	repo.db.settings[s.UserID] = &saved
	return s, nil
}
