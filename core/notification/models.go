package notification

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spist/campus/core"
)

// Notification types
const (
	TypeInfo    = "info"
	TypeSuccess = "success"
	TypeWarning = "warning"
	TypeDanger  = "danger"
)

// Announcement audiences
const (
	AudienceAll      = "all"
	AudienceStudents = "students"
	AudienceTeachers = "teachers"
)

type Notification struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	NotificationType string    `json:"notification_type"`
	IsRead           bool      `json:"is_read"`
	CreatedAt        time.Time `json:"created_at"`
}

type Announcement struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Audience  string     `json:"audience"`
	IsActive  bool       `json:"is_active"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// Live reports whether the announcement is active and not expired at t.
func (a Announcement) Live(t time.Time) bool {
	return a.IsActive && (a.ExpiresAt == nil || a.ExpiresAt.After(t))
}

type AnnouncementInput struct {
	Title     string     `json:"title" validate:"required,max=200"`
	Content   string     `json:"content" validate:"required"`
	Audience  string     `json:"audience" validate:"omitempty,oneof=all students teachers"`
	IsActive  *bool      `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (in *AnnouncementInput) Validate(validate *validator.Validate) error {
	in.Title = core.StripTags(core.CleanString(in.Title))
	in.Content = core.SanitizeHTML(in.Content)
	if in.Audience == "" {
		in.Audience = AudienceAll
	}
	return validate.Struct(in)
}

type AnnouncementFilter struct {
	LiveAt    time.Time
	Audiences []string
}

// Message is what is pushed to connected clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
