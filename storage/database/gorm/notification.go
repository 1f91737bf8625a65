package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/spist/campus/core/notification"
)

type notificationModel struct {
	ID               string `gorm:"primaryKey;type:uuid"`
	UserID           string `gorm:"type:uuid;not null;index"`
	Title            string `gorm:"size:200;not null"`
	Message          string `gorm:"not null"`
	NotificationType string `gorm:"size:10;not null"`
	IsRead           bool   `gorm:"not null"`
	CreatedAt        time.Time
}

func (notificationModel) TableName() string { return "notification" }

type announcementModel struct {
	ID        string  `gorm:"primaryKey;type:uuid"`
	Title     string  `gorm:"size:200;not null"`
	Content   string  `gorm:"not null"`
	Audience  string  `gorm:"size:10;not null"`
	IsActive  bool    `gorm:"not null"`
	CreatedBy *string `gorm:"type:uuid"`
	CreatedAt time.Time
	ExpiresAt *time.Time
}

func (announcementModel) TableName() string { return "system_announcement" }

func (m announcementModel) toAnnouncement() notification.Announcement {
	return notification.Announcement{
		ID:        m.ID,
		Title:     m.Title,
		Content:   m.Content,
		Audience:  m.Audience,
		IsActive:  m.IsActive,
		CreatedBy: deref(m.CreatedBy),
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
	}
}

type notificationRepository struct {
	db *gorm.DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *gorm.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotifications(ctx context.Context, notifs []notification.Notification) error {
	if len(notifs) == 0 {
		return nil
	}
	models := make([]notificationModel, 0, len(notifs))
	for _, n := range notifs {
		models = append(models, notificationModel(n))
	}
	if err := repo.db.WithContext(ctx).CreateInBatches(models, 200).Error; err != nil {
		return errors.Wrap(err, "creating notifications")
	}
	return nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	q := repo.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []notificationModel
	if err := q.Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(models))
	for _, m := range models {
		notifs = append(notifs, notification.Notification(m))
	}
	return notifs, nil
}

func (repo *notificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int64
	err := repo.db.WithContext(ctx).Model(&notificationModel{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	if err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return int(n), nil
}

func (repo *notificationRepository) MarkRead(ctx context.Context, userID string, ids ...string) (int, error) {
	q := repo.db.WithContext(ctx).Model(&notificationModel{}).Where("user_id = ? AND is_read = ?", userID, false)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Update("is_read", true)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "marking notifications read")
	}
	return int(res.RowsAffected), nil
}

func (repo *notificationRepository) SaveAnnouncement(ctx context.Context, a notification.Announcement) (notification.Announcement, error) {
	m := announcementModel{
		ID:        a.ID,
		Title:     a.Title,
		Content:   a.Content,
		Audience:  a.Audience,
		IsActive:  a.IsActive,
		CreatedBy: nullable(a.CreatedBy),
		CreatedAt: a.CreatedAt,
		ExpiresAt: a.ExpiresAt,
	}
	if err := repo.db.WithContext(ctx).Save(&m).Error; err != nil {
		return notification.Announcement{}, errors.Wrap(err, "saving announcement")
	}
	return a, nil
}

func (repo *notificationRepository) GetAnnouncement(ctx context.Context, id string) (notification.Announcement, error) {
	var m announcementModel
	err := repo.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notification.Announcement{}, notification.ErrAnnouncementNotFound
	}
	if err != nil {
		return notification.Announcement{}, errors.Wrap(err, "finding announcement")
	}
	return m.toAnnouncement(), nil
}

func (repo *notificationRepository) QueryAnnouncements(ctx context.Context, filter notification.AnnouncementFilter) ([]notification.Announcement, error) {
	q := repo.db.WithContext(ctx).Order("created_at DESC")
	if !filter.LiveAt.IsZero() {
		q = q.Where("is_active = ? AND (expires_at IS NULL OR expires_at > ?)", true, filter.LiveAt.UTC())
	}
	if len(filter.Audiences) > 0 {
		q = q.Where("audience IN ?", filter.Audiences)
	}
	var models []announcementModel
	if err := q.Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	list := make([]notification.Announcement, 0, len(models))
	for _, m := range models {
		list = append(list, m.toAnnouncement())
	}
	return list, nil
}

func (repo *notificationRepository) DeleteAnnouncement(ctx context.Context, id string) error {
	res := repo.db.WithContext(ctx).Where("id = ?", id).Delete(&announcementModel{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting announcement")
	}
	if res.RowsAffected == 0 {
		return notification.ErrAnnouncementNotFound
	}
	return nil
}
