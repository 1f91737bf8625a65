package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/user"
)

const userColumns = `id, name, first_name, last_name, username, email, phone, is_active, is_verified,
roles, password_hash, created_at, updated_at, last_login`

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	FirstName    string         `db:"first_name"`
	LastName     string         `db:"last_name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	Phone        string         `db:"phone"`
	IsActive     null.Bool      `db:"is_active"`
	IsVerified   bool           `db:"is_verified"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash null.Bytes     `db:"password_hash"`
	CreatedAt    null.Time      `db:"created_at"`
	UpdatedAt    null.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

type studentProfileRow struct {
	UserID       string    `db:"user_id"`
	StudentID    string    `db:"student_id"`
	Program      string    `db:"program"`
	YearLevel    int       `db:"year_level"`
	DateEnrolled null.Time `db:"date_enrolled"`
}

type teacherProfileRow struct {
	UserID         string    `db:"user_id"`
	EmployeeID     string    `db:"employee_id"`
	Department     string    `db:"department"`
	Specialization string    `db:"specialization"`
	HireDate       null.Time `db:"hire_date"`
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{repository{db: db}}
}

func (repo userRepository) toRow(usr user.User) userRow {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		FirstName:    usr.FirstName,
		LastName:     usr.LastName,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		Phone:        usr.Phone,
		IsActive:     null.BoolFromPtr(usr.IsActive),
		IsVerified:   usr.IsVerified,
		Roles:        roles,
		PasswordHash: null.BytesFrom(usr.PasswordHash),
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) fromRow(row userRow) user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		Username:     row.Username.String,
		Email:        row.Email.String,
		Phone:        row.Phone,
		IsActive:     row.IsActive.Ptr(),
		IsVerified:   row.IsVerified,
		Roles:        row.Roles,
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
		LastLogin:    row.LastLogin.Time,
	}
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	var w where
	w.add("(username = ? OR email = ?)", null.NewString(username, username != ""), null.NewString(email, email != ""))
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		w.add("id NOT IN (?)", ids)
	}

	q, args, err := bind(`SELECT username, email FROM "user"`+w.String()+" LIMIT 1", w.args...)
	if err != nil {
		return err
	}
	var row userRow
	if err = sqlx.GetContext(ctx, repo.getExec(exec), &row, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return errors.Wrap(err, "checking user uniqueness")
	}
	if username != "" && row.Username.String == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	row := repo.toRow(usr)
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO "user" (`+userColumns+`)
		VALUES (:id, :name, :first_name, :last_name, :username, :email, :phone, :is_active, :is_verified,
		:roles, :password_hash, :created_at, :updated_at, :last_login)`, row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	var w where

	if filter != nil {
		if len(filter.IDs) > 0 {
			w.add("id IN (?)", filter.IDs)
		}
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", val, val, val)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			patterns := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				patterns = append(patterns, role+"%")
			}
			w.add("EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE ANY (?))", pq.StringArray(patterns))
		}
		if filter.IsActive != nil {
			if *filter.IsActive {
				w.add("(is_active IS NULL OR is_active)")
			} else {
				w.add("is_active = false")
			}
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	q, args, err := bind(`SELECT `+userColumns+` FROM "user"`+w.String()+orderBy(ordering, "created_at DESC"), w.args...)
	if err != nil {
		return nil, err
	}
	var rows []userRow
	if err = sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.fromRow(row))
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var w where

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Username != "":
		w.add("username = ?", filter.Username)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	case len(filter.UsernameOrEmail) > 0:
		var email string
		uname := filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
		if uname == "" {
			return user.User{}, user.ErrNotFound
		}
		w.add("(username = ? OR email = ?)", uname, email)
	default:
		return user.User{}, user.ErrNotFound
	}

	q, args, err := bind(`SELECT `+userColumns+` FROM "user"`+w.String()+" LIMIT 1", w.args...)
	if err != nil {
		return user.User{}, err
	}
	var row userRow
	if err = sqlx.GetContext(ctx, repo.getExec(exec), &row, q, args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := repo.toRow(usr)
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `UPDATE "user" SET
		name = :name, first_name = :first_name, last_name = :last_name, username = :username, email = :email,
		phone = :phone, is_active = :is_active, is_verified = :is_verified, roles = :roles,
		password_hash = :password_hash, created_at = :created_at, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`, row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := bind(`DELETE FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return 0, err
	}
	res, err := repo.getExec(exec).ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return int(cnt), nil
}

func (repo userRepository) fromStudentRow(row studentProfileRow) user.StudentProfile {
	return user.StudentProfile{
		UserID:       row.UserID,
		StudentID:    row.StudentID,
		Program:      row.Program,
		YearLevel:    row.YearLevel,
		DateEnrolled: row.DateEnrolled.Ptr(),
	}
}

func (repo userRepository) GetStudentProfile(ctx context.Context, userID string, exec ...core.DBExecutor) (user.StudentProfile, error) {
	var row studentProfileRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row,
		`SELECT user_id, student_id, program, year_level, date_enrolled FROM student_profile WHERE user_id = $1`, userID)
	if err != nil {
		return user.StudentProfile{}, trapNoRowsErr(err, user.ErrProfileNotFound, "finding student profile")
	}
	return repo.fromStudentRow(row), nil
}

func (repo userRepository) QueryStudentProfiles(ctx context.Context, userIDs []string, exec ...core.DBExecutor) ([]user.StudentProfile, error) {
	profiles := make([]user.StudentProfile, 0, len(userIDs))
	if len(userIDs) == 0 {
		return profiles, nil
	}
	q, args, err := bind(`SELECT user_id, student_id, program, year_level, date_enrolled FROM student_profile WHERE user_id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	var rows []studentProfileRow
	if err = sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying student profiles")
	}
	for _, row := range rows {
		profiles = append(profiles, repo.fromStudentRow(row))
	}
	return profiles, nil
}

func (repo userRepository) SaveStudentProfile(ctx context.Context, p user.StudentProfile, exec ...core.DBExecutor) (user.StudentProfile, error) {
	row := studentProfileRow{
		UserID:       p.UserID,
		StudentID:    p.StudentID,
		Program:      p.Program,
		YearLevel:    p.YearLevel,
		DateEnrolled: null.TimeFromPtr(p.DateEnrolled),
	}
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO student_profile
		(user_id, student_id, program, year_level, date_enrolled)
		VALUES (:user_id, :student_id, :program, :year_level, :date_enrolled)
		ON CONFLICT (user_id) DO UPDATE SET student_id = EXCLUDED.student_id, program = EXCLUDED.program,
		year_level = EXCLUDED.year_level, date_enrolled = EXCLUDED.date_enrolled`, row)
	if err != nil {
		return user.StudentProfile{}, trapUniqueErr(err, user.ErrStudentIDExists, "saving student profile")
	}
	return p, nil
}

func (repo userRepository) GetTeacherProfile(ctx context.Context, userID string, exec ...core.DBExecutor) (user.TeacherProfile, error) {
	var row teacherProfileRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row,
		`SELECT user_id, employee_id, department, specialization, hire_date FROM teacher_profile WHERE user_id = $1`, userID)
	if err != nil {
		return user.TeacherProfile{}, trapNoRowsErr(err, user.ErrProfileNotFound, "finding teacher profile")
	}
	return user.TeacherProfile{
		UserID:         row.UserID,
		EmployeeID:     row.EmployeeID,
		Department:     row.Department,
		Specialization: row.Specialization,
		HireDate:       row.HireDate.Ptr(),
	}, nil
}

func (repo userRepository) SaveTeacherProfile(ctx context.Context, p user.TeacherProfile, exec ...core.DBExecutor) (user.TeacherProfile, error) {
	row := teacherProfileRow{
		UserID:         p.UserID,
		EmployeeID:     p.EmployeeID,
		Department:     p.Department,
		Specialization: p.Specialization,
		HireDate:       null.TimeFromPtr(p.HireDate),
	}
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO teacher_profile
		(user_id, employee_id, department, specialization, hire_date)
		VALUES (:user_id, :employee_id, :department, :specialization, :hire_date)
		ON CONFLICT (user_id) DO UPDATE SET employee_id = EXCLUDED.employee_id, department = EXCLUDED.department,
		specialization = EXCLUDED.specialization, hire_date = EXCLUDED.hire_date`, row)
	if err != nil {
		return user.TeacherProfile{}, trapUniqueErr(err, user.ErrEmployeeIDExists, "saving teacher profile")
	}
	return p, nil
}
