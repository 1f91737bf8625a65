package calendar

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spist/campus/core"
)

type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
	Icon        string `json:"icon" validate:"max=50"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

func (in *CategoryInput) Validate(validate *validator.Validate) error {
	in.Name = core.StripTags(core.CleanString(in.Name))
	in.Description = core.StripTags(strings.TrimSpace(in.Description))
	if in.Color == "" {
		in.Color = DefaultColor
	}
	return validate.Struct(in)
}

type EventInput struct {
	Title              string   `json:"title" validate:"required,max=200"`
	Description        string   `json:"description"`
	CategoryID         string   `json:"category_id" validate:"omitempty,uuid"`
	EventType          string   `json:"event_type" validate:"omitempty,oneof=academic examination assessment holiday meeting activity deadline other"`
	StartDate          string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate            string   `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	StartTime          string   `json:"start_time" validate:"clock"`
	EndTime            string   `json:"end_time" validate:"clock"`
	IsAllDay           bool     `json:"is_all_day"`
	Location           string   `json:"location" validate:"max=200"`
	MeetingLink        string   `json:"meeting_link" validate:"omitempty,url,max=500"`
	Audience           string   `json:"audience" validate:"omitempty,oneof=all students teachers admin specific"`
	SpecificCourses    []string `json:"specific_courses" validate:"omitempty,dive,uuid"`
	SpecificYearLevels string   `json:"specific_year_levels" validate:"max=50"`
	Priority           string   `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	IsPublished        *bool    `json:"is_published"`
	IsRecurring        bool     `json:"is_recurring"`
	AssessmentID       string   `json:"assessment_id" validate:"omitempty,uuid"`
	SendNotifications  *bool    `json:"send_notifications"`
	NotificationDays   *int     `json:"notification_days" validate:"omitempty,min=0,max=30"`
}

func (in *EventInput) Validate(validate *validator.Validate) error {
	in.Title = core.StripTags(core.CleanString(in.Title))
	in.Description = core.SanitizeHTML(strings.TrimSpace(in.Description))
	in.Location = core.StripTags(core.CleanString(in.Location))
	in.StartTime = strings.TrimSpace(in.StartTime)
	in.EndTime = strings.TrimSpace(in.EndTime)
	in.SpecificYearLevels = strings.Join(core.SplitCSV(in.SpecificYearLevels), ",")
	if in.EventType == "" {
		in.EventType = TypeOther
	}
	if in.Audience == "" {
		in.Audience = AudienceAll
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if in.EndDate == "" {
		in.EndDate = in.StartDate
	}
	if in.IsAllDay {
		in.StartTime, in.EndTime = "", ""
	}
	if err := validate.Struct(in); err != nil {
		return err
	}

	start, end, err := in.dates()
	if err != nil {
		return core.NewFieldError("start_date", "invalid date")
	}
	if end.Before(start) {
		return core.NewFieldError("end_date", "end date must be on or after the start date")
	}
	if in.StartDate == in.EndDate && in.StartTime != "" && in.EndTime != "" && in.EndTime < in.StartTime {
		return core.NewFieldError("end_time", "end time must be after the start time")
	}
	return nil
}

func (in EventInput) dates() (start, end time.Time, err error) {
	if start, err = core.ParseDate(in.StartDate); err != nil {
		return
	}
	end = start
	if in.EndDate != "" {
		end, err = core.ParseDate(in.EndDate)
	}
	return
}

type SettingsInput struct {
	DefaultView          string   `json:"default_view" validate:"required,oneof=month week day agenda"`
	EmailNotifications   bool     `json:"email_notifications"`
	BrowserNotifications bool     `json:"browser_notifications"`
	NotificationTime     string   `json:"notification_time" validate:"clock"`
	ShowWeekends         bool     `json:"show_weekends"`
	StartWeekOnMonday    bool     `json:"start_week_on_monday"`
	ShowEventDetails     bool     `json:"show_event_details"`
	HiddenCategories     []string `json:"hidden_categories" validate:"omitempty,dive,uuid"`
}

func (in *SettingsInput) Validate(validate *validator.Validate) error {
	if in.NotificationTime == "" {
		in.NotificationTime = DefaultNotificationTime
	}
	if in.DefaultView == "" {
		in.DefaultView = "month"
	}
	return validate.Struct(in)
}
