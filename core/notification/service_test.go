package notification_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spist/campus/core/notification"
	"github.com/spist/campus/core/user"
	inmemdb "github.com/spist/campus/storage/database/inmem"
)

type pusherStub struct {
	mu     sync.Mutex
	pushed map[string][]notification.Message
}

func (p *pusherStub) Push(userID string, msg notification.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pushed == nil {
		p.pushed = make(map[string][]notification.Message)
	}
	p.pushed[userID] = append(p.pushed[userID], msg)
}

func TestService_notify(t *testing.T) {
	ctx := context.Background()
	pusher := &pusherStub{}
	svc := notification.NewService(inmemdb.NewNotificationRepository(inmemdb.Open()), pusher)

	alice := user.User{ID: "alice"}
	bob := user.User{ID: "bob"}

	n, err := svc.Notify(ctx, alice.ID, "Hello", "World", "")
	require.NoError(t, err)
	assert.Equal(t, notification.TypeInfo, n.NotificationType)
	assert.NotEmpty(t, n.ID)

	require.NoError(t, svc.NotifyMany(ctx, []string{alice.ID, bob.ID}, "Exam week", "Good luck", notification.TypeWarning))
	require.NoError(t, svc.NotifyMany(ctx, nil, "Nobody", "Nothing", notification.TypeWarning))

	assert.Len(t, pusher.pushed[alice.ID], 2)
	assert.Len(t, pusher.pushed[bob.ID], 1)
	assert.Equal(t, "notification", pusher.pushed[bob.ID][0].Type)

	count, err := svc.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.Equal(t, notification.ErrNotFound, svc.MarkRead(ctx, bob, n.ID))
	require.NoError(t, svc.MarkRead(ctx, alice, n.ID))

	unread, err := svc.List(ctx, alice, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "Exam week", unread[0].Title)

	marked, err := svc.MarkAllRead(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	all, err := svc.List(ctx, alice, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	count, err = svc.UnreadCount(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestService_ActiveAnnouncements(t *testing.T) {
	ctx := context.Background()
	svc := notification.NewService(inmemdb.NewNotificationRepository(inmemdb.Open()), nil)

	admin := user.User{ID: "admin", Roles: []string{user.RoleAdmin}}
	teacher := user.User{ID: "teacher", Roles: []string{user.RoleTeacher}}
	student := user.User{ID: "student", Roles: []string{user.RoleStudent}}

	inactive := false
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	inputs := []notification.AnnouncementInput{
		{Title: "Everyone", Content: "-", Audience: notification.AudienceAll},
		{Title: "Students", Content: "-", Audience: notification.AudienceStudents, ExpiresAt: &tomorrow},
		{Title: "Teachers", Content: "-", Audience: notification.AudienceTeachers},
		{Title: "Expired", Content: "-", Audience: notification.AudienceAll, ExpiresAt: &yesterday},
		{Title: "Inactive", Content: "-", Audience: notification.AudienceAll, IsActive: &inactive},
	}
	for _, in := range inputs {
		_, err := svc.CreateAnnouncement(ctx, admin, in)
		require.NoError(t, err)
	}

	titles := func(usr user.User) []string {
		list, err := svc.ActiveAnnouncements(ctx, usr)
		require.NoError(t, err)
		res := make([]string, 0, len(list))
		for _, a := range list {
			res = append(res, a.Title)
		}
		return res
	}

	tests := []struct {
		name string
		usr  user.User
		want []string
	}{
		{name: "student", usr: student, want: []string{"Everyone", "Students"}},
		{name: "teacher", usr: teacher, want: []string{"Everyone", "Teachers"}},
		{name: "admin", usr: admin, want: []string{"Everyone", "Students", "Teachers"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, titles(tt.usr))
		})
	}

	all, err := svc.ListAnnouncements(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(inputs))
}
