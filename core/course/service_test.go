package course_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/course"
	"github.com/spist/campus/core/notification"
	"github.com/spist/campus/core/user"
	emailsvc "github.com/spist/campus/services/email"
	smssvc "github.com/spist/campus/services/sms"
	inmemdb "github.com/spist/campus/storage/database/inmem"
	"github.com/spist/campus/tests"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func TestGradeFormula(t *testing.T) {
	tests := []struct {
		name           string
		formula        string
		midterm, final float64
		want           float64
		wantErr        bool
	}{
		{name: "default", midterm: 80, final: 71, want: 75.5},
		{name: "weighted", formula: "midterm * 0.4 + final * 0.6", midterm: 80, final: 70, want: 74},
		{name: "rounded", formula: "(midterm + final) / 3", midterm: 50, final: 50, want: 33.33},
		{name: "unknown variable", formula: "midterm + project", wantErr: true},
		{name: "invalid", formula: "midterm +* final", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := course.NewGradeFormula(tt.formula)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			got, err := f.Rate(tt.midterm, tt.final)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fixture struct {
	svc      course.ServiceInterface
	notifSvc notification.ServiceInterface
	usrRepo  user.Repository
	teacher  user.User
	offering course.Offering
}

// newFixture offers one course with a single seat in the current semester.
func newFixture(t *testing.T, openPeriod bool) fixture {
	t.Helper()
	ctx := context.Background()
	conf := core.Conf
	logger := nopLogger{}

	db := inmemdb.Open()
	tx := inmemdb.NewTransactor(db)
	usrRepo := inmemdb.NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(logger, conf)
	notifSvc := notification.NewService(inmemdb.NewNotificationRepository(db), nil)
	svc, err := course.NewService(course.ServiceDeps{
		Repo:     inmemdb.NewCourseRepository(db),
		Tx:       tx,
		UserSvc:  user.NewServiceMock(usrRepo, tx, mailSvc),
		NotifSvc: notifSvc,
		MailSvc:  mailSvc,
		SMSSvc:   smssvc.NewService(logger, conf),
		Logger:   logger,
		Conf:     conf,
	})
	require.NoError(t, err)

	f := fixture{
		svc:      svc,
		notifSvc: notifSvc,
		usrRepo:  usrRepo,
		teacher:  testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@spist.edu", "", []string{user.RoleTeacher}, true),
	}
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@spist.edu", "", []string{user.RoleAdmin}, true)

	crs, err := svc.CreateCourse(ctx, course.CourseInput{Code: "CS101", Title: "Intro to Computing", Units: 3})
	require.NoError(t, err)
	year, err := svc.CreateAcademicYear(ctx, course.AcademicYearInput{YearStart: 2026, IsCurrent: true})
	require.NoError(t, err)
	sem, err := svc.CreateSemester(ctx, course.SemesterInput{
		AcademicYearID: year.ID, Term: "1st", StartDate: "2026-08-01", EndDate: "2026-12-15", IsCurrent: true,
	})
	require.NoError(t, err)
	if openPeriod {
		now := time.Now().UTC()
		_, err = svc.CreatePeriod(ctx, course.EnrollmentPeriodInput{
			Name: "Regular enrollment", SemesterID: sem.ID, StartDate: now.Add(-time.Hour), EndDate: now.Add(24 * time.Hour),
		})
		require.NoError(t, err)
	}
	f.offering, err = svc.CreateOffering(ctx, admin, course.OfferingInput{
		CourseID: crs.ID, SemesterID: sem.ID, Section: "A", InstructorID: f.teacher.ID,
		MaxStudents: 1, Status: course.OfferingOpen,
	})
	require.NoError(t, err)
	return f
}

func TestService_waitlist(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	first := testutil.CreateStudent(t, f.usrRepo, "First", "first", "2026-0001", user.YearFirst)
	second := testutil.CreateStudent(t, f.usrRepo, "Second", "second", "2026-0002", user.YearFirst)

	res, err := f.svc.Enroll(ctx, first, f.offering.ID)
	require.NoError(t, err)
	assert.Equal(t, course.StatusEnrolled, res.Enrollment.Status)
	enrolled := res.Enrollment
	assert.Equal(t, "Successfully enrolled in CS101!", res.Message)

	res, err = f.svc.Enroll(ctx, second, f.offering.ID)
	require.NoError(t, err)
	assert.Equal(t, course.StatusWaitlisted, res.Enrollment.Status)
	waitlisted := res.Enrollment

	// students cannot cancel someone else's enrollment
	_, err = f.svc.CancelEnrollment(ctx, second, enrolled.ID)
	assert.Equal(t, core.ErrForbidden, err)

	dropped, err := f.svc.CancelEnrollment(ctx, first, enrolled.ID)
	require.NoError(t, err)
	assert.Equal(t, course.StatusDropped, dropped.Status)

	// the freed seat goes to the waitlist
	enrollments, err := f.svc.ListEnrollments(ctx, second, course.EnrollmentFilter{})
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, waitlisted.ID, enrollments[0].ID)
	assert.Equal(t, course.StatusEnrolled, enrollments[0].Status)

	unread, err := f.notifSvc.UnreadCount(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestService_SetGrades(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	student := testutil.CreateStudent(t, f.usrRepo, "Hero", "hero", "2026-0001", user.YearFirst)
	res, err := f.svc.Enroll(ctx, student, f.offering.ID)
	require.NoError(t, err)
	require.Equal(t, course.StatusPending, res.Enrollment.Status)
	enrID := res.Enrollment.ID

	grade := func(v float64) *float64 { return &v }

	_, err = f.svc.SetGrades(ctx, f.teacher, enrID, course.GradesInput{FinalGrade: grade(90)})
	assert.Error(t, err, "pending enrollments cannot be graded")

	_, err = f.svc.ApproveEnrollment(ctx, f.teacher, enrID)
	require.NoError(t, err)

	_, err = f.svc.SetGrades(ctx, student, enrID, course.GradesInput{FinalGrade: grade(90)})
	assert.Equal(t, core.ErrForbidden, err)

	_, err = f.svc.SetGrades(ctx, f.teacher, enrID, course.GradesInput{FinalGrade: grade(90)})
	assert.Equal(t, course.ErrMidtermRequired, err)

	enr, err := f.svc.SetGrades(ctx, f.teacher, enrID, course.GradesInput{MidtermGrade: grade(60)})
	require.NoError(t, err)
	assert.Equal(t, course.StatusEnrolled, enr.Status)
	assert.Nil(t, enr.FinalRating)

	enr, err = f.svc.SetGrades(ctx, f.teacher, enrID, course.GradesInput{FinalGrade: grade(70)})
	require.NoError(t, err)
	require.NotNil(t, enr.FinalRating)
	assert.Equal(t, 65.0, *enr.FinalRating)
	assert.Equal(t, course.StatusFailed, enr.Status)

	enr, err = f.svc.SetGrades(ctx, f.teacher, enrID, course.GradesInput{FinalGrade: grade(91)})
	require.NoError(t, err)
	assert.Equal(t, 75.5, *enr.FinalRating)
	assert.Equal(t, course.StatusPassed, enr.Status)
}
