package inmemdb

import (
	"context"
	"sort"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotifications(_ context.Context, notifs []notification.Notification) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i := range notifs {
		n := notifs[i]
		repo.db.notifications[n.ID] = &n
	}
	return nil
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	notifs := make([]notification.Notification, 0)
	for _, n := range repo.db.notifications {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			notifs = append(notifs, *n)
		}
	}
	sort.SliceStable(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	if limit > 0 && len(notifs) > limit {
		notifs = notifs[:limit]
	}
	return notifs, nil
}

func (repo *notificationRepository) CountUnread(_ context.Context, userID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, notif := range repo.db.notifications {
		if notif.UserID == userID && !notif.IsRead {
			n++
		}
	}
	return n, nil
}

func (repo *notificationRepository) MarkRead(_ context.Context, userID string, ids ...string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, notif := range repo.db.notifications {
		if notif.UserID != userID || notif.IsRead {
			continue
		}
		if len(ids) == 0 || core.ContainsString(ids, notif.ID) {
			notif.IsRead = true
			n++
		}
	}
	return n, nil
}

func (repo *notificationRepository) SaveAnnouncement(_ context.Context, a notification.Announcement) (notification.Announcement, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.announcements[a.ID] = &a
	return a, nil
}

func (repo *notificationRepository) GetAnnouncement(_ context.Context, id string) (notification.Announcement, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.announcements[id]; ok {
		return *a, nil
	}
	return notification.Announcement{}, notification.ErrAnnouncementNotFound
}

func (repo *notificationRepository) QueryAnnouncements(_ context.Context, filter notification.AnnouncementFilter) ([]notification.Announcement, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	list := make([]notification.Announcement, 0)
	for _, a := range repo.db.announcements {
		if !filter.LiveAt.IsZero() && !a.Live(filter.LiveAt) {
			continue
		}
		if len(filter.Audiences) > 0 && !core.ContainsString(filter.Audiences, a.Audience) {
			continue
		}
		list = append(list, *a)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (repo *notificationRepository) DeleteAnnouncement(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.announcements[id]; !ok {
		return notification.ErrAnnouncementNotFound
	}
	delete(repo.db.announcements, id)
	return nil
}
