package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/user"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("notification")
	ErrAnnouncementNotFound = core.NewNotFoundError("announcement")
)

type (
	Repository interface {
		CreateNotifications(ctx context.Context, notifs []Notification) error
		QueryNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error)
		CountUnread(ctx context.Context, userID string) (int, error)
		// MarkRead marks the given notifications of the user as read, or all of them when ids is empty.
		MarkRead(ctx context.Context, userID string, ids ...string) (int, error)

		SaveAnnouncement(ctx context.Context, a Announcement) (Announcement, error)
		GetAnnouncement(ctx context.Context, id string) (Announcement, error)
		QueryAnnouncements(ctx context.Context, filter AnnouncementFilter) ([]Announcement, error)
		DeleteAnnouncement(ctx context.Context, id string) error
	}

	// Pusher delivers messages to the live connections of a user.
	Pusher interface {
		Push(userID string, msg Message)
	}

	ServiceInterface interface {
		Notify(ctx context.Context, userID, title, message, ntype string) (Notification, error)
		NotifyMany(ctx context.Context, userIDs []string, title, message, ntype string) error
		List(ctx context.Context, usr user.User, unreadOnly bool) ([]Notification, error)
		UnreadCount(ctx context.Context, usr user.User) (int, error)
		MarkRead(ctx context.Context, usr user.User, id string) error
		MarkAllRead(ctx context.Context, usr user.User) (int, error)

		ActiveAnnouncements(ctx context.Context, usr user.User) ([]Announcement, error)
		ListAnnouncements(ctx context.Context) ([]Announcement, error)
		CreateAnnouncement(ctx context.Context, actor user.User, in AnnouncementInput) (Announcement, error)
		UpdateAnnouncement(ctx context.Context, id string, in AnnouncementInput) (Announcement, error)
		DeleteAnnouncement(ctx context.Context, id string) error
	}

	service struct {
		repo   Repository
		pusher Pusher
	}
)

var _ ServiceInterface = (*service)(nil)

const listLimit = 50

func NewService(repo Repository, pusher Pusher) *service {
	return &service{repo: repo, pusher: pusher}
}

func newNotification(userID, title, message, ntype string) Notification {
	if ntype == "" {
		ntype = TypeInfo
	}
	return Notification{
		ID:               uuid.New().String(),
		UserID:           userID,
		Title:            title,
		Message:          message,
		NotificationType: ntype,
		CreatedAt:        time.Now().UTC(),
	}
}

func (svc *service) push(n Notification) {
	if svc.pusher != nil {
		svc.pusher.Push(n.UserID, Message{Type: "notification", Data: n})
	}
}

func (svc *service) Notify(ctx context.Context, userID, title, message, ntype string) (Notification, error) {
	n := newNotification(userID, title, message, ntype)
	if err := svc.repo.CreateNotifications(ctx, []Notification{n}); err != nil {
		return Notification{}, errors.Wrap(err, "creating notification")
	}
	svc.push(n)
	return n, nil
}

func (svc *service) NotifyMany(ctx context.Context, userIDs []string, title, message, ntype string) error {
	if len(userIDs) == 0 {
		return nil
	}
	notifs := make([]Notification, 0, len(userIDs))
	for _, id := range userIDs {
		notifs = append(notifs, newNotification(id, title, message, ntype))
	}
	if err := svc.repo.CreateNotifications(ctx, notifs); err != nil {
		return errors.Wrap(err, "creating notifications")
	}
	for _, n := range notifs {
		svc.push(n)
	}
	return nil
}

func (svc *service) List(ctx context.Context, usr user.User, unreadOnly bool) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, usr.ID, unreadOnly, listLimit)
}

func (svc *service) UnreadCount(ctx context.Context, usr user.User) (int, error) {
	return svc.repo.CountUnread(ctx, usr.ID)
}

func (svc *service) MarkRead(ctx context.Context, usr user.User, id string) error {
	n, err := svc.repo.MarkRead(ctx, usr.ID, id)
	if err != nil {
		return errors.Wrap(err, "marking notification as read")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (svc *service) MarkAllRead(ctx context.Context, usr user.User) (int, error) {
	return svc.repo.MarkRead(ctx, usr.ID)
}

// ActiveAnnouncements returns the live announcements addressed to usr.
func (svc *service) ActiveAnnouncements(ctx context.Context, usr user.User) ([]Announcement, error) {
	audiences := []string{AudienceAll}
	if usr.IsStudent() {
		audiences = append(audiences, AudienceStudents)
	}
	if usr.IsTeacher() {
		audiences = append(audiences, AudienceTeachers)
	}
	if usr.IsAdmin() {
		audiences = []string{AudienceAll, AudienceStudents, AudienceTeachers}
	}
	return svc.repo.QueryAnnouncements(ctx, AnnouncementFilter{LiveAt: time.Now().UTC(), Audiences: audiences})
}

func (svc *service) ListAnnouncements(ctx context.Context) ([]Announcement, error) {
	return svc.repo.QueryAnnouncements(ctx, AnnouncementFilter{})
}

func (svc *service) CreateAnnouncement(ctx context.Context, actor user.User, in AnnouncementInput) (Announcement, error) {
	a := Announcement{
		ID:        uuid.New().String(),
		CreatedBy: actor.ID,
		CreatedAt: time.Now().UTC(),
	}
	applyAnnouncementInput(&a, in)
	return svc.repo.SaveAnnouncement(ctx, a)
}

func (svc *service) UpdateAnnouncement(ctx context.Context, id string, in AnnouncementInput) (Announcement, error) {
	a, err := svc.repo.GetAnnouncement(ctx, id)
	if err != nil {
		return Announcement{}, err
	}
	applyAnnouncementInput(&a, in)
	return svc.repo.SaveAnnouncement(ctx, a)
}

func applyAnnouncementInput(a *Announcement, in AnnouncementInput) {
	a.Title = in.Title
	a.Content = in.Content
	a.Audience = in.Audience
	a.IsActive = in.IsActive == nil || *in.IsActive
	a.ExpiresAt = in.ExpiresAt
}

func (svc *service) DeleteAnnouncement(ctx context.Context, id string) error {
	return svc.repo.DeleteAnnouncement(ctx, id)
}
