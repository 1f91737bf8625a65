package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func cloneUser(u *user.User) user.User {
	c := *u
	c.Roles = copyStrings(u.Roles)
	if u.IsActive != nil {
		active := *u.IsActive
		c.IsActive = &active
	}
	return c
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, usr := range repo.db.users {
		if excluded[usr.ID] {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	usr.ID = uuid.New().String()
	repo.db.users[usr.ID] = &usr
	return cloneUser(&usr), nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		if filter == nil || matchUser(*u, filter) {
			users = append(users, cloneUser(u))
		}
	}
	sortUsers(users, ordering)
	return users, nil
}

func matchUser(u user.User, f *user.QueryFilter) bool {
	if len(f.IDs) > 0 && !core.ContainsString(f.IDs, u.ID) {
		return false
	}
	if f.Search != "" {
		s := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(u.Name), s) &&
			!strings.Contains(strings.ToLower(u.Username), s) &&
			!strings.Contains(strings.ToLower(u.Email), s) {
			return false
		}
	}
	if len(f.Roles) > 0 {
		var found bool
		for _, role := range f.Roles {
			if u.RoleStartsWith(role) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.IsActive != nil && u.Active() != *f.IsActive {
		return false
	}
	if !f.CreatedFrom.IsZero() && u.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedTo.IsZero() && u.CreatedAt.After(f.CreatedTo) {
		return false
	}
	return true
}

func sortUsers(users []user.User, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareUsers(users[i], users[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func compareUsers(a, b user.User, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "username":
		return strings.Compare(a.Username, b.Username)
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "is_active":
		return compareBools(a.Active(), b.Active())
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "last_login":
		return a.LastLogin.Compare(b.LastLogin)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	}
	return -1
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return cloneUser(usr), nil
		}
		return user.User{}, user.ErrNotFound
	}

	var match func(u *user.User) bool
	switch {
	case filter.Username != "":
		match = func(u *user.User) bool { return u.Username == filter.Username }
	case filter.Email != "":
		match = func(u *user.User) bool { return u.Email == filter.Email }
	case len(filter.UsernameOrEmail) > 0:
		uname, email := filter.UsernameOrEmail[0], filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 && filter.UsernameOrEmail[1] != "" {
			email = filter.UsernameOrEmail[1]
		}
		match = func(u *user.User) bool {
			return (uname != "" && u.Username == uname) || (email != "" && u.Email == email)
		}
	default:
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.users {
		if match(usr) {
			return cloneUser(usr), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	saved := cloneUser(&usr)
	repo.db.users[usr.ID] = &saved
	return cloneUser(&saved), nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.users[id]; ok {
			delete(repo.db.users, id)
			delete(repo.db.studentProfiles, id)
			delete(repo.db.teacherProfiles, id)
			n++
		}
	}
	return n, nil
}

func (repo *userRepository) GetStudentProfile(_ context.Context, userID string, _ ...core.DBExecutor) (user.StudentProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.studentProfiles[userID]; ok {
		return *p, nil
	}
	return user.StudentProfile{}, user.ErrProfileNotFound
}

func (repo *userRepository) QueryStudentProfiles(_ context.Context, userIDs []string, _ ...core.DBExecutor) ([]user.StudentProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	profiles := make([]user.StudentProfile, 0, len(userIDs))
	for _, id := range userIDs {
		if p, ok := repo.db.studentProfiles[id]; ok {
			profiles = append(profiles, *p)
		}
	}
	return profiles, nil
}

func (repo *userRepository) SaveStudentProfile(_ context.Context, p user.StudentProfile, _ ...core.DBExecutor) (user.StudentProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.studentProfiles {
		if other.UserID != p.UserID && other.StudentID == p.StudentID {
			return user.StudentProfile{}, user.ErrStudentIDExists
		}
	}
	repo.db.studentProfiles[p.UserID] = &p
	return p, nil
}

func (repo *userRepository) GetTeacherProfile(_ context.Context, userID string, _ ...core.DBExecutor) (user.TeacherProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.teacherProfiles[userID]; ok {
		return *p, nil
	}
	return user.TeacherProfile{}, user.ErrProfileNotFound
}

func (repo *userRepository) SaveTeacherProfile(_ context.Context, p user.TeacherProfile, _ ...core.DBExecutor) (user.TeacherProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.teacherProfiles {
		if other.UserID != p.UserID && other.EmployeeID == p.EmployeeID {
			return user.TeacherProfile{}, user.ErrEmployeeIDExists
		}
	}
	repo.db.teacherProfiles[p.UserID] = &p
	return p, nil
}
