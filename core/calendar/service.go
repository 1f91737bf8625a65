package calendar

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/course"
	"github.com/spist/campus/core/notification"
	"github.com/spist/campus/core/user"
)

var (
	NowFunc = time.Now // mockable

	ErrCategoryNotFound = core.NewNotFoundError("event category")
	ErrEventNotFound    = core.NewNotFoundError("event")
	ErrSettingsNotFound = core.NewNotFoundError("calendar settings")

	ErrDatesRequired  = core.NewValidationError(errors.New("Start and end dates required"))
	ErrInvalidDate    = core.NewValidationError(errors.New("Invalid date format"))
	ErrEventEnded     = core.NewValidationError(errors.New("This event has already ended."))
	ErrRemindersOff   = core.NewValidationError(errors.New("Notifications are disabled for this event."))
	ErrStaffOnlyEvent = core.NewValidationError(errors.New("Only teachers and administrators can create events."))
)

type (
	Repository interface {
		SaveCategory(ctx context.Context, c Category) (Category, error)
		GetCategory(ctx context.Context, id string) (Category, error)
		QueryCategories(ctx context.Context, activeOnly bool) ([]Category, error)
		DeleteCategory(ctx context.Context, id string) error

		// Events are returned with their Category, ordered by start date and time.
		SaveEvent(ctx context.Context, e Event) (Event, error)
		GetEvent(ctx context.Context, id string) (Event, error)
		QueryEvents(ctx context.Context, filter EventFilter) ([]Event, error)
		DeleteEvent(ctx context.Context, id string) error

		// SaveReminder upserts by event and user.
		SaveReminder(ctx context.Context, r Reminder) (Reminder, error)
		// QueryDueReminders returns the unsent reminders due at or before t.
		QueryDueReminders(ctx context.Context, t time.Time) ([]Reminder, error)

		GetSettings(ctx context.Context, userID string) (Settings, error)
		SaveSettings(ctx context.Context, s Settings) (Settings, error)
	}

	ServiceInterface interface {
		Feed(ctx context.Context, usr user.User, start, end string, categoryIDs []string) ([]FeedItem, error)
		Month(ctx context.Context, usr user.User, year, month int) (Month, error)
		Week(ctx context.Context, usr user.User, day time.Time) (Week, error)
		Day(ctx context.Context, usr user.User, day time.Time) ([]Event, error)
		Upcoming(ctx context.Context, usr user.User, limit int) ([]Event, error)

		GetEvent(ctx context.Context, usr user.User, id string) (EventDetail, error)
		CreateEvent(ctx context.Context, actor user.User, in EventInput) (Event, error)
		UpdateEvent(ctx context.Context, actor user.User, id string, in EventInput) (Event, error)
		DeleteEvent(ctx context.Context, actor user.User, id string) error

		ListCategories(ctx context.Context, activeOnly bool) ([]Category, error)
		CreateCategory(ctx context.Context, actor user.User, in CategoryInput) (Category, error)
		UpdateCategory(ctx context.Context, actor user.User, id string, in CategoryInput) (Category, error)
		DeleteCategory(ctx context.Context, actor user.User, id string) error

		GetSettings(ctx context.Context, usr user.User) (Settings, error)
		UpdateSettings(ctx context.Context, usr user.User, in SettingsInput) (Settings, error)

		Remind(ctx context.Context, usr user.User, eventID string) (Reminder, error)
		SendDueReminders(ctx context.Context) (int, error)
	}

	service struct {
		repo     Repository
		usrSvc   user.ServiceInterface
		crsSvc   course.ServiceInterface
		notifSvc notification.ServiceInterface
		mailSvc  core.EmailService
		logger   core.Logger
		conf     *core.Config
	}
)

var _ ServiceInterface = (*service)(nil)

type ServiceDeps struct {
	Repo      Repository
	UserSvc   user.ServiceInterface
	CourseSvc course.ServiceInterface
	NotifSvc  notification.ServiceInterface
	MailSvc   core.EmailService
	Logger    core.Logger
	Conf      *core.Config
}

func NewService(deps ServiceDeps) *service {
	return &service{
		repo:     deps.Repo,
		usrSvc:   deps.UserSvc,
		crsSvc:   deps.CourseSvc,
		notifSvc: deps.NotifSvc,
		mailSvc:  deps.MailSvc,
		logger:   deps.Logger,
		conf:     deps.Conf,
	}
}

func newID() string {
	return uuid.New().String()
}

func today() time.Time {
	return core.TruncateDay(NowFunc().UTC())
}

// viewer resolves the year level and enrolled courses of students.
func (svc *service) viewer(ctx context.Context, usr user.User) (Viewer, error) {
	v := Viewer{User: usr}
	if !usr.IsStudent() {
		return v, nil
	}
	profiles, err := svc.usrSvc.StudentProfiles(ctx, usr.ID)
	if err != nil {
		return v, errors.Wrap(err, "getting student profile")
	}
	v.YearLevel = profiles[usr.ID].YearLevel

	enrollments, err := svc.crsSvc.ListEnrollments(ctx, usr, course.EnrollmentFilter{Statuses: []string{course.StatusEnrolled}})
	if err != nil {
		return v, errors.Wrap(err, "listing enrollments")
	}
	for _, e := range enrollments {
		if e.Offering != nil && !core.ContainsString(v.CourseIDs, e.Offering.CourseID) {
			v.CourseIDs = append(v.CourseIDs, e.Offering.CourseID)
		}
	}
	return v, nil
}

// visibleEvents returns the published events overlapping [from, to] that usr may see. Categories
// hidden in the user's settings are left out unless categoryIDs is given.
func (svc *service) visibleEvents(ctx context.Context, usr user.User, filter EventFilter) ([]Event, error) {
	filter.PublishedOnly = true
	events, err := svc.repo.QueryEvents(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying events")
	}
	v, err := svc.viewer(ctx, usr)
	if err != nil {
		return nil, err
	}
	var hidden []string
	if len(filter.CategoryIDs) == 0 {
		settings, err := svc.GetSettings(ctx, usr)
		if err != nil {
			return nil, err
		}
		hidden = settings.HiddenCategories
	}

	visible := make([]Event, 0, len(events))
	for _, e := range events {
		if e.VisibleTo(v) && !core.ContainsString(hidden, e.CategoryID) {
			visible = append(visible, e)
		}
	}
	return visible, nil
}

// Feed returns the events between two YYYY-MM-DD dates in the shape calendar widgets expect.
func (svc *service) Feed(ctx context.Context, usr user.User, start, end string, categoryIDs []string) ([]FeedItem, error) {
	if start == "" || end == "" {
		return nil, ErrDatesRequired
	}
	from, err := core.ParseDate(start)
	if err != nil {
		return nil, ErrInvalidDate
	}
	to, err := core.ParseDate(end)
	if err != nil {
		return nil, ErrInvalidDate
	}

	events, err := svc.visibleEvents(ctx, usr, EventFilter{From: from, To: to, CategoryIDs: categoryIDs})
	if err != nil {
		return nil, err
	}
	items := make([]FeedItem, 0, len(events))
	for _, e := range events {
		items = append(items, FeedItem{
			ID:          e.ID,
			Title:       e.Title,
			Start:       e.StartDate.Format(core.DateLayout),
			End:         e.EndDate.Format(core.DateLayout),
			Color:       e.Color(),
			Description: e.Description,
			Location:    e.Location,
			Type:        e.EventType,
			Priority:    e.Priority,
			URL:         "/calendar/events/" + e.ID,
		})
	}
	return items, nil
}

func newDay(date time.Time, events []Event, now time.Time) Day {
	d := Day{Date: date.Format(core.DateLayout), Events: []Event{}, IsToday: date.Equal(core.TruncateDay(now))}
	for _, e := range events {
		if e.Covers(date) {
			d.Events = append(d.Events, e)
		}
	}
	return d
}

func monday(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return core.TruncateDay(day).AddDate(0, 0, -offset)
}

// Month returns a 6 week grid starting on the Monday on or before the 1st of the month.
func (svc *service) Month(ctx context.Context, usr user.User, year, month int) (Month, error) {
	if month < 1 || month > 12 || year < 1900 || year > 3000 {
		return Month{}, ErrInvalidDate
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	events, err := svc.visibleEvents(ctx, usr, EventFilter{From: first, To: last})
	if err != nil {
		return Month{}, err
	}

	now := NowFunc().UTC()
	m := Month{Year: year, Month: month, MonthName: first.Month().String()}
	day := monday(first)
	for w := 0; w < 6; w++ {
		week := make([]Day, 0, 7)
		for i := 0; i < 7; i++ {
			d := newDay(day, events, now)
			d.InMonth = day.Month() == first.Month()
			week = append(week, d)
			day = day.AddDate(0, 0, 1)
		}
		m.Weeks = append(m.Weeks, week)
	}
	return m, nil
}

// Week returns Monday to Sunday of the week containing day.
func (svc *service) Week(ctx context.Context, usr user.User, day time.Time) (Week, error) {
	start := monday(day.UTC())
	end := start.AddDate(0, 0, 6)
	events, err := svc.visibleEvents(ctx, usr, EventFilter{From: start, To: end})
	if err != nil {
		return Week{}, err
	}

	now := NowFunc().UTC()
	w := Week{StartDate: start.Format(core.DateLayout), EndDate: end.Format(core.DateLayout)}
	for i := 0; i < 7; i++ {
		d := newDay(start.AddDate(0, 0, i), events, now)
		d.InMonth = true
		w.Days = append(w.Days, d)
	}
	return w, nil
}

// Day returns the events of a day ordered by start time and title.
func (svc *service) Day(ctx context.Context, usr user.User, day time.Time) ([]Event, error) {
	day = core.TruncateDay(day.UTC())
	events, err := svc.visibleEvents(ctx, usr, EventFilter{From: day, To: day})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].StartTime != events[j].StartTime {
			return events[i].StartTime < events[j].StartTime
		}
		return events[i].Title < events[j].Title
	})
	return events, nil
}

// Upcoming returns the next visible events starting today or later.
func (svc *service) Upcoming(ctx context.Context, usr user.User, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = UpcomingLimit
	}
	events, err := svc.repo.QueryEvents(ctx, EventFilter{From: today(), PublishedOnly: true, Limit: limit * 4})
	if err != nil {
		return nil, errors.Wrap(err, "querying events")
	}
	v, err := svc.viewer(ctx, usr)
	if err != nil {
		return nil, err
	}
	res := make([]Event, 0, limit)
	start := today()
	for _, e := range events {
		if len(res) == limit {
			break
		}
		if !e.StartDate.Before(start) && e.VisibleTo(v) {
			res = append(res, e)
		}
	}
	return res, nil
}

// Events

func canEdit(actor user.User, e Event) bool {
	return actor.IsAdmin() || actor.ID == e.CreatedBy
}

func (svc *service) GetEvent(ctx context.Context, usr user.User, id string) (EventDetail, error) {
	e, err := svc.repo.GetEvent(ctx, id)
	if err != nil {
		return EventDetail{}, err
	}
	v, err := svc.viewer(ctx, usr)
	if err != nil {
		return EventDetail{}, err
	}
	if !e.VisibleTo(v) && !canEdit(usr, e) {
		return EventDetail{}, ErrEventNotFound
	}
	return NewEventDetail(e, NowFunc().UTC()), nil
}

func (svc *service) CreateEvent(ctx context.Context, actor user.User, in EventInput) (Event, error) {
	if !actor.IsStaff() {
		return Event{}, ErrStaffOnlyEvent
	}
	now := NowFunc().UTC()
	e := Event{ID: newID(), CreatedBy: actor.ID, CreatedAt: now}
	if err := svc.applyEventInput(ctx, &e, in); err != nil {
		return Event{}, err
	}
	e.UpdatedAt = now
	return svc.repo.SaveEvent(ctx, e)
}

func (svc *service) UpdateEvent(ctx context.Context, actor user.User, id string, in EventInput) (Event, error) {
	e, err := svc.repo.GetEvent(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if !canEdit(actor, e) {
		return Event{}, core.ErrForbidden
	}
	if err = svc.applyEventInput(ctx, &e, in); err != nil {
		return Event{}, err
	}
	e.UpdatedAt = NowFunc().UTC()
	return svc.repo.SaveEvent(ctx, e)
}

func (svc *service) applyEventInput(ctx context.Context, e *Event, in EventInput) error {
	start, end, err := in.dates()
	if err != nil {
		return ErrInvalidDate
	}
	if in.CategoryID != "" {
		cat, err := svc.repo.GetCategory(ctx, in.CategoryID)
		if err != nil {
			if core.IsNotFound(err) {
				return core.NewFieldError("category_id", "unknown category")
			}
			return errors.Wrap(err, "getting category")
		}
		e.Category = &cat
	} else {
		e.Category = nil
	}

	e.Title = in.Title
	e.Description = in.Description
	e.CategoryID = in.CategoryID
	e.EventType = in.EventType
	e.StartDate = start
	e.EndDate = end
	e.StartTime = in.StartTime
	e.EndTime = in.EndTime
	e.IsAllDay = in.IsAllDay
	e.Location = in.Location
	e.MeetingLink = in.MeetingLink
	e.Audience = in.Audience
	e.SpecificCourses = in.SpecificCourses
	if e.SpecificCourses == nil {
		e.SpecificCourses = []string{}
	}
	e.SpecificYearLevels = in.SpecificYearLevels
	e.Priority = in.Priority
	e.IsPublished = in.IsPublished == nil || *in.IsPublished
	e.IsRecurring = in.IsRecurring
	e.AssessmentID = in.AssessmentID
	e.SendNotifications = in.SendNotifications == nil || *in.SendNotifications
	e.NotificationDays = 1
	if in.NotificationDays != nil {
		e.NotificationDays = *in.NotificationDays
	}
	return nil
}

func (svc *service) DeleteEvent(ctx context.Context, actor user.User, id string) error {
	e, err := svc.repo.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if !canEdit(actor, e) {
		return core.ErrForbidden
	}
	return svc.repo.DeleteEvent(ctx, id)
}

// Categories

func (svc *service) ListCategories(ctx context.Context, activeOnly bool) ([]Category, error) {
	return svc.repo.QueryCategories(ctx, activeOnly)
}

func (svc *service) CreateCategory(ctx context.Context, actor user.User, in CategoryInput) (Category, error) {
	if !actor.IsAdmin() {
		return Category{}, core.ErrForbidden
	}
	c := Category{ID: newID(), CreatedAt: NowFunc().UTC()}
	applyCategoryInput(&c, in)
	return svc.repo.SaveCategory(ctx, c)
}

func (svc *service) UpdateCategory(ctx context.Context, actor user.User, id string, in CategoryInput) (Category, error) {
	if !actor.IsAdmin() {
		return Category{}, core.ErrForbidden
	}
	c, err := svc.repo.GetCategory(ctx, id)
	if err != nil {
		return Category{}, err
	}
	applyCategoryInput(&c, in)
	return svc.repo.SaveCategory(ctx, c)
}

func applyCategoryInput(c *Category, in CategoryInput) {
	c.Name = in.Name
	c.Color = in.Color
	c.Icon = in.Icon
	c.Description = in.Description
	c.IsActive = in.IsActive == nil || *in.IsActive
}

func (svc *service) DeleteCategory(ctx context.Context, actor user.User, id string) error {
	if !actor.IsAdmin() {
		return core.ErrForbidden
	}
	return svc.repo.DeleteCategory(ctx, id)
}

// Settings

// GetSettings returns the user's calendar settings, or the defaults when none were saved.
func (svc *service) GetSettings(ctx context.Context, usr user.User) (Settings, error) {
	s, err := svc.repo.GetSettings(ctx, usr.ID)
	if err != nil {
		if errors.Cause(err) == ErrSettingsNotFound {
			return DefaultSettings(usr.ID), nil
		}
		return Settings{}, errors.Wrap(err, "getting calendar settings")
	}
	if s.HiddenCategories == nil {
		s.HiddenCategories = []string{}
	}
	return s, nil
}

func (svc *service) UpdateSettings(ctx context.Context, usr user.User, in SettingsInput) (Settings, error) {
	s := Settings{
		UserID:               usr.ID,
		DefaultView:          in.DefaultView,
		EmailNotifications:   in.EmailNotifications,
		BrowserNotifications: in.BrowserNotifications,
		NotificationTime:     in.NotificationTime,
		ShowWeekends:         in.ShowWeekends,
		StartWeekOnMonday:    in.StartWeekOnMonday,
		ShowEventDetails:     in.ShowEventDetails,
		HiddenCategories:     in.HiddenCategories,
	}
	if s.HiddenCategories == nil {
		s.HiddenCategories = []string{}
	}
	return svc.repo.SaveSettings(ctx, s)
}
