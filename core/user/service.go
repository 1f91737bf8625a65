package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/spist/campus/core"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("user")
	ErrProfileNotFound   = core.NewNotFoundError("profile")
	ErrEmailExists       = errors.New("a user with this email already exists")
	ErrUsernameExists    = errors.New("a user with this username already exists")
	ErrStudentIDExists   = errors.New("a student with this student ID already exists")
	ErrEmployeeIDExists  = errors.New("a teacher with this employee ID already exists")
	ErrCannotDeleteSelf  = errors.New("you cannot delete your own account")
	errPasswordResetLink = errors.New("invalid password reset link")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		GetStudentProfile(ctx context.Context, userID string, exec ...core.DBExecutor) (StudentProfile, error)
		QueryStudentProfiles(ctx context.Context, userIDs []string, exec ...core.DBExecutor) ([]StudentProfile, error)
		SaveStudentProfile(ctx context.Context, p StudentProfile, exec ...core.DBExecutor) (StudentProfile, error)
		GetTeacherProfile(ctx context.Context, userID string, exec ...core.DBExecutor) (TeacherProfile, error)
		SaveTeacherProfile(ctx context.Context, p TeacherProfile, exec ...core.DBExecutor) (TeacherProfile, error)
	}

	ServiceInterface interface {
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Register(ctx context.Context, su SignUp) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsername(ctx context.Context, uname string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
		GetProfile(ctx context.Context, usr User) (Profile, error)
		UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (Profile, error)
		StudentProfiles(ctx context.Context, userIDs ...string) (map[string]StudentProfile, error)
	}

	service struct {
		repo    Repository
		tx      core.Transactor
		mailSvc core.EmailService
		conf    *core.Config
		tokens  ResetTokens
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, tx core.Transactor, mailSvc core.EmailService, conf *core.Config) *service {
	return &service{
		repo:    repo,
		tx:      tx,
		mailSvc: mailSvc,
		conf:    conf,
		tokens:  NewResetTokens(conf.SecretKey, conf.PasswordResetTimeoutDelta),
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) newUser(nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		FirstName: nu.FirstName,
		LastName:  nu.LastName,
		Username:  nu.Username,
		Email:     nu.Email,
		Phone:     nu.Phone,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return usr, nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	usr, err := svc.newUser(nu)
	if err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Register creates a self signed-up student or teacher along with their profile.
func (svc *service) Register(ctx context.Context, su SignUp) (User, error) {
	switch su.UserType {
	case "student":
		su.Roles = []string{RoleStudent}
	case "teacher":
		su.Roles = []string{RoleTeacher}
	}
	usr, err := svc.newUser(su.NewUser)
	if err != nil {
		return User{}, err
	}

	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		if usr, err = svc.repo.CreateUser(ctx, usr, exec); err != nil {
			return errors.Wrap(err, "creating user")
		}
		if su.UserType == "student" {
			today := core.TruncateDay(time.Now().UTC())
			_, err = svc.repo.SaveStudentProfile(ctx, StudentProfile{
				UserID:       usr.ID,
				StudentID:    su.StudentID,
				Program:      su.Program,
				YearLevel:    su.YearLevel,
				DateEnrolled: &today,
			}, exec)
		} else {
			_, err = svc.repo.SaveTeacherProfile(ctx, TeacherProfile{
				UserID:         usr.ID,
				EmployeeID:     su.EmployeeID,
				Department:     su.Department,
				Specialization: su.Specialization,
			}, exec)
		}
		return svc.trapProfileErr(err)
	})
	if err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *service) trapProfileErr(err error) error {
	switch errors.Cause(err) {
	case nil:
		return nil
	case ErrStudentIDExists:
		return core.NewFieldError("student_id", ErrStudentIDExists.Error())
	case ErrEmployeeIDExists:
		return core.NewFieldError("employee_id", ErrEmployeeIDExists.Error())
	}
	return errors.Wrap(err, "saving profile")
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	ordering = core.CleanOrderings(ordering, "name", "username", "email", "is_active", "created_at", "updated_at", "last_login")
	if ordering == nil {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{uname, uname}})
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user by ID")
	}

	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.FirstName != nil {
		usr.FirstName = core.CleanString(*uu.FirstName)
	}
	if uu.LastName != nil {
		usr.LastName = core.CleanString(*uu.LastName)
	}
	if uu.Phone != nil {
		usr.Phone = core.CleanString(*uu.Phone)
	}
	if uu.IsActive != nil {
		usr.SetActive(*uu.IsActive)
	}
	if uu.IsVerified != nil {
		usr.IsVerified = *uu.IsVerified
	}
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.Password != "" {
		if err = usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteUsersByID(ctx, ids)
	return err
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.Active() {
		return ErrNotFound
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	token := svc.tokens.Make(usr)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.FullName(),
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	id, err := decodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(errPasswordResetLink)
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errPasswordResetLink)
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokens.Check(usr, data.Token); err != nil {
		return core.NewValidationError(fmt.Errorf("%v: %w", errPasswordResetLink, err))
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

func (svc *service) GetProfile(ctx context.Context, usr User) (Profile, error) {
	profile := Profile{User: usr}
	if usr.IsStudent() {
		sp, err := svc.repo.GetStudentProfile(ctx, usr.ID)
		if err != nil && errors.Cause(err) != ErrProfileNotFound {
			return Profile{}, errors.Wrap(err, "finding student profile")
		} else if err == nil {
			profile.Student = &sp
		}
	}
	if usr.IsTeacher() {
		tp, err := svc.repo.GetTeacherProfile(ctx, usr.ID)
		if err != nil && errors.Cause(err) != ErrProfileNotFound {
			return Profile{}, errors.Wrap(err, "finding teacher profile")
		} else if err == nil {
			profile.Teacher = &tp
		}
	}
	return profile, nil
}

// UpdateProfile updates the user's contact info and their student/teacher profile, creating it if needed.
func (svc *service) UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (Profile, error) {
	profile, err := svc.GetProfile(ctx, usr)
	if err != nil {
		return Profile{}, err
	}

	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		if up.FirstName != nil || up.LastName != nil || up.Phone != nil {
			if up.FirstName != nil {
				usr.FirstName = *up.FirstName
			}
			if up.LastName != nil {
				usr.LastName = *up.LastName
			}
			if up.Phone != nil {
				usr.Phone = *up.Phone
			}
			usr.UpdatedAt = time.Now().UTC()
			if usr, err = svc.repo.UpdateUser(ctx, usr, exec); err != nil {
				return errors.Wrap(err, "updating user")
			}
			profile.User = usr
		}

		if usr.IsStudent() {
			sp := StudentProfile{UserID: usr.ID, YearLevel: YearFirst}
			if profile.Student != nil {
				sp = *profile.Student
			}
			if up.StudentID != nil {
				sp.StudentID = *up.StudentID
			}
			if up.Program != nil {
				sp.Program = *up.Program
			}
			if up.YearLevel != nil {
				sp.YearLevel = *up.YearLevel
			}
			if sp.StudentID == "" {
				return core.NewFieldError("student_id", "this field is required")
			}
			if sp, err = svc.repo.SaveStudentProfile(ctx, sp, exec); err != nil {
				return svc.trapProfileErr(err)
			}
			profile.Student = &sp
		}

		if usr.IsTeacher() {
			tp := TeacherProfile{UserID: usr.ID}
			if profile.Teacher != nil {
				tp = *profile.Teacher
			}
			if up.EmployeeID != nil {
				tp.EmployeeID = *up.EmployeeID
			}
			if up.Department != nil {
				tp.Department = *up.Department
			}
			if up.Specialization != nil {
				tp.Specialization = *up.Specialization
			}
			if tp.EmployeeID == "" {
				return core.NewFieldError("employee_id", "this field is required")
			}
			if tp, err = svc.repo.SaveTeacherProfile(ctx, tp, exec); err != nil {
				return svc.trapProfileErr(err)
			}
			profile.Teacher = &tp
		}
		return nil
	})
	if err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// StudentProfiles returns the student profiles of the given users, keyed by user ID.
func (svc *service) StudentProfiles(ctx context.Context, userIDs ...string) (map[string]StudentProfile, error) {
	profiles, err := svc.repo.QueryStudentProfiles(ctx, userIDs)
	if err != nil {
		return nil, errors.Wrap(err, "querying student profiles")
	}
	m := make(map[string]StudentProfile, len(profiles))
	for _, p := range profiles {
		m[p.UserID] = p
	}
	return m, nil
}
