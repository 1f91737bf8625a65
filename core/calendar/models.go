package calendar

import (
	"strconv"
	"strings"
	"time"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/user"
)

// Event types
const (
	TypeAcademic    = "academic"
	TypeExamination = "examination"
	TypeAssessment  = "assessment"
	TypeHoliday     = "holiday"
	TypeMeeting     = "meeting"
	TypeActivity    = "activity"
	TypeDeadline    = "deadline"
	TypeOther       = "other"
)

// Priorities
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Audiences
const (
	AudienceAll      = "all"
	AudienceStudents = "students"
	AudienceTeachers = "teachers"
	AudienceAdmin    = "admin"
	AudienceSpecific = "specific"
)

const (
	DefaultColor            = "#004d40"
	DefaultNotificationTime = "09:00"
	UpcomingLimit           = 5
)

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	Icon        string    `json:"icon"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Event is a calendar event. Dates are days in UTC; times are "HH:MM" or empty.
type Event struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	CategoryID         string    `json:"category_id"`
	EventType          string    `json:"event_type"`
	StartDate          time.Time `json:"start_date"`
	EndDate            time.Time `json:"end_date"`
	StartTime          string    `json:"start_time"`
	EndTime            string    `json:"end_time"`
	IsAllDay           bool      `json:"is_all_day"`
	Location           string    `json:"location"`
	MeetingLink        string    `json:"meeting_link"`
	Audience           string    `json:"audience"`
	SpecificCourses    []string  `json:"specific_courses"`
	SpecificYearLevels string    `json:"specific_year_levels"`
	Priority           string    `json:"priority"`
	IsPublished        bool      `json:"is_published"`
	IsRecurring        bool      `json:"is_recurring"`
	CreatedBy          string    `json:"created_by"`
	AssessmentID       string    `json:"assessment_id"`
	SendNotifications  bool      `json:"send_notifications"`
	NotificationDays   int       `json:"notification_days"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	Category *Category `json:"category,omitempty"`
}

func (e Event) IsToday(now time.Time) bool {
	return e.Covers(now)
}

func (e Event) IsUpcoming(now time.Time) bool {
	return e.StartDate.After(core.TruncateDay(now.UTC()))
}

func (e Event) IsPast(now time.Time) bool {
	return e.EndDate.Before(core.TruncateDay(now.UTC()))
}

func (e Event) DurationDays() int {
	return int(e.EndDate.Sub(e.StartDate).Hours()/24) + 1
}

// Covers reports whether the event takes place on the day of t.
func (e Event) Covers(t time.Time) bool {
	day := core.TruncateDay(t.UTC())
	return !e.StartDate.After(day) && !e.EndDate.Before(day)
}

func (e Event) Color() string {
	if e.Category != nil && e.Category.Color != "" {
		return e.Category.Color
	}
	return DefaultColor
}

func (e Event) yearLevels() []int {
	var levels []int
	for _, s := range core.SplitCSV(e.SpecificYearLevels) {
		if n, err := strconv.Atoi(s); err == nil {
			levels = append(levels, n)
		}
	}
	return levels
}

// Viewer is a user along with what decides the visibility of targeted events.
type Viewer struct {
	User      user.User
	YearLevel int
	CourseIDs []string
}

// VisibleTo reports whether v may see the event.
func (e Event) VisibleTo(v Viewer) bool {
	if !e.IsPublished {
		return v.User.IsAdmin() || v.User.ID == e.CreatedBy
	}
	switch e.Audience {
	case AudienceAll:
		return true
	case AudienceStudents:
		return v.User.IsStudent()
	case AudienceTeachers:
		return v.User.IsTeacher()
	case AudienceAdmin:
		return v.User.IsAdmin()
	case AudienceSpecific:
		if !v.User.IsStudent() {
			return false
		}
		if levels := e.yearLevels(); len(levels) > 0 && !containsInt(levels, v.YearLevel) {
			return false
		}
		if len(e.SpecificCourses) > 0 {
			for _, id := range v.CourseIDs {
				if core.ContainsString(e.SpecificCourses, id) {
					return true
				}
			}
			return false
		}
		return true
	}
	return false
}

func containsInt(s []int, n int) bool {
	for _, v := range s {
		if v == n {
			return true
		}
	}
	return false
}

// EventDetail is an event with its derived flags.
type EventDetail struct {
	Event
	IsToday      bool `json:"is_today"`
	IsUpcoming   bool `json:"is_upcoming"`
	IsPast       bool `json:"is_past"`
	DurationDays int  `json:"duration_days"`
}

func NewEventDetail(e Event, now time.Time) EventDetail {
	return EventDetail{
		Event:        e,
		IsToday:      e.IsToday(now),
		IsUpcoming:   e.IsUpcoming(now),
		IsPast:       e.IsPast(now),
		DurationDays: e.DurationDays(),
	}
}

type Reminder struct {
	ID           string     `json:"id"`
	EventID      string     `json:"event_id"`
	UserID       string     `json:"user_id"`
	ReminderDate time.Time  `json:"reminder_date"`
	IsSent       bool       `json:"is_sent"`
	SentAt       *time.Time `json:"sent_at"`
}

type Settings struct {
	UserID               string   `json:"-"`
	DefaultView          string   `json:"default_view"`
	EmailNotifications   bool     `json:"email_notifications"`
	BrowserNotifications bool     `json:"browser_notifications"`
	NotificationTime     string   `json:"notification_time"`
	ShowWeekends         bool     `json:"show_weekends"`
	StartWeekOnMonday    bool     `json:"start_week_on_monday"`
	ShowEventDetails     bool     `json:"show_event_details"`
	HiddenCategories     []string `json:"hidden_categories"`
}

func DefaultSettings(userID string) Settings {
	return Settings{
		UserID:               userID,
		DefaultView:          "month",
		EmailNotifications:   true,
		BrowserNotifications: true,
		NotificationTime:     DefaultNotificationTime,
		ShowWeekends:         true,
		StartWeekOnMonday:    true,
		ShowEventDetails:     true,
		HiddenCategories:     []string{},
	}
}

// notificationClock returns the hour and minute of the notification time.
func (s Settings) notificationClock() (int, int) {
	parts := strings.SplitN(s.NotificationTime, ":", 2)
	if len(parts) == 2 {
		h, err1 := strconv.Atoi(parts[0])
		m, err2 := strconv.Atoi(parts[1])
		if err1 == nil && err2 == nil {
			return h, m
		}
	}
	return 9, 0
}

type EventFilter struct {
	From          time.Time // events ending on or after
	To            time.Time // events starting on or before
	CategoryIDs   []string
	PublishedOnly bool
	Limit         int
}

// Views

type FeedItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Color       string `json:"color"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	URL         string `json:"url"`
}

type Day struct {
	Date    string  `json:"date"`
	Events  []Event `json:"events"`
	InMonth bool    `json:"in_month"`
	IsToday bool    `json:"is_today"`
}

type Month struct {
	Year      int     `json:"year"`
	Month     int     `json:"month"`
	MonthName string  `json:"month_name"`
	Weeks     [][]Day `json:"weeks"`
}

type Week struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Days      []Day  `json:"days"`
}
