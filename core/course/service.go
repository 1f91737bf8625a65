package course

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/notification"
	"github.com/spist/campus/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrDepartmentNotFound        = core.NewNotFoundError("department")
	ErrAcademicYearNotFound      = core.NewNotFoundError("academic year")
	ErrSemesterNotFound          = core.NewNotFoundError("semester")
	ErrCourseNotFound            = core.NewNotFoundError("course")
	ErrCurriculumNotFound        = core.NewNotFoundError("curriculum")
	ErrCurriculumCourseNotFound  = core.NewNotFoundError("curriculum course")
	ErrOfferingNotFound          = core.NewNotFoundError("course offering")
	ErrEnrollmentNotFound        = core.NewNotFoundError("enrollment")
	ErrStudentCurriculumNotFound = core.NewNotFoundError("student curriculum")
	ErrPeriodNotFound            = core.NewNotFoundError("enrollment period")
	ErrCodeNotFound              = core.NewNotFoundError("enrollment code")

	ErrDuplicate       = errors.New("an item with the same unique fields already exists")
	ErrAlreadyEnrolled = errors.New("You are already enrolled in this course.")
	ErrMidtermRequired = core.NewFieldError("midterm_grade", "a midterm grade is required before the final grade")
)

type (
	Repository interface {
		SaveDepartment(ctx context.Context, d Department, exec ...core.DBExecutor) (Department, error)
		GetDepartment(ctx context.Context, id string, exec ...core.DBExecutor) (Department, error)
		QueryDepartments(ctx context.Context, exec ...core.DBExecutor) ([]Department, error)
		DeleteDepartment(ctx context.Context, id string, exec ...core.DBExecutor) error

		SaveAcademicYear(ctx context.Context, y AcademicYear, exec ...core.DBExecutor) (AcademicYear, error)
		GetAcademicYear(ctx context.Context, id string, exec ...core.DBExecutor) (AcademicYear, error)
		QueryAcademicYears(ctx context.Context, exec ...core.DBExecutor) ([]AcademicYear, error)
		DeleteAcademicYear(ctx context.Context, id string, exec ...core.DBExecutor) error
		ClearCurrentAcademicYear(ctx context.Context, exec ...core.DBExecutor) error

		SaveSemester(ctx context.Context, s Semester, exec ...core.DBExecutor) (Semester, error)
		GetSemester(ctx context.Context, id string, exec ...core.DBExecutor) (Semester, error)
		GetCurrentSemester(ctx context.Context, exec ...core.DBExecutor) (Semester, error)
		// QuerySemesters returns the semesters of an academic year, or all of them when academicYearID is empty.
		QuerySemesters(ctx context.Context, academicYearID string, exec ...core.DBExecutor) ([]Semester, error)
		DeleteSemester(ctx context.Context, id string, exec ...core.DBExecutor) error
		ClearCurrentSemester(ctx context.Context, exec ...core.DBExecutor) error

		SaveCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		QueryCourses(ctx context.Context, filter CourseFilter, exec ...core.DBExecutor) ([]Course, error)
		DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error

		SaveCurriculum(ctx context.Context, c Curriculum, exec ...core.DBExecutor) (Curriculum, error)
		GetCurriculum(ctx context.Context, id string, exec ...core.DBExecutor) (Curriculum, error)
		QueryCurricula(ctx context.Context, exec ...core.DBExecutor) ([]Curriculum, error)
		DeleteCurriculum(ctx context.Context, id string, exec ...core.DBExecutor) error
		SaveCurriculumCourse(ctx context.Context, cc CurriculumCourse, exec ...core.DBExecutor) (CurriculumCourse, error)
		QueryCurriculumCourses(ctx context.Context, filter CurriculumCourseFilter, exec ...core.DBExecutor) ([]CurriculumCourse, error)
		DeleteCurriculumCourse(ctx context.Context, id string, exec ...core.DBExecutor) error

		// Offerings are returned with their EnrolledCount.
		SaveOffering(ctx context.Context, o Offering, exec ...core.DBExecutor) (Offering, error)
		GetOffering(ctx context.Context, id string, exec ...core.DBExecutor) (Offering, error)
		QueryOfferings(ctx context.Context, filter OfferingFilter, exec ...core.DBExecutor) ([]Offering, error)
		DeleteOffering(ctx context.Context, id string, exec ...core.DBExecutor) error

		// SaveEnrollment returns ErrAlreadyEnrolled when the student already has an enrollment in the offering.
		SaveEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) (Enrollment, error)
		FindEnrollment(ctx context.Context, studentID, offeringID string, exec ...core.DBExecutor) (Enrollment, error)
		// QueryEnrollments returns enrollments ordered by enrolled_at, oldest first.
		QueryEnrollments(ctx context.Context, filter EnrollmentFilter, exec ...core.DBExecutor) ([]Enrollment, error)
		CountEnrollments(ctx context.Context, offeringID string, statuses []string, exec ...core.DBExecutor) (int, error)

		SaveStudentCurriculum(ctx context.Context, sc StudentCurriculum, exec ...core.DBExecutor) (StudentCurriculum, error)
		QueryStudentCurricula(ctx context.Context, filter StudentCurriculumFilter, exec ...core.DBExecutor) ([]StudentCurriculum, error)
		DeleteStudentCurriculum(ctx context.Context, id string, exec ...core.DBExecutor) error

		SavePeriod(ctx context.Context, p EnrollmentPeriod, exec ...core.DBExecutor) (EnrollmentPeriod, error)
		GetPeriod(ctx context.Context, id string, exec ...core.DBExecutor) (EnrollmentPeriod, error)
		// QueryPeriods returns periods ordered by priority, or all of them when semesterID is empty.
		QueryPeriods(ctx context.Context, semesterID string, exec ...core.DBExecutor) ([]EnrollmentPeriod, error)
		DeletePeriod(ctx context.Context, id string, exec ...core.DBExecutor) error

		SaveCode(ctx context.Context, c EnrollmentCode, exec ...core.DBExecutor) (EnrollmentCode, error)
		GetCode(ctx context.Context, id string, exec ...core.DBExecutor) (EnrollmentCode, error)
		GetCodeByCode(ctx context.Context, code string, exec ...core.DBExecutor) (EnrollmentCode, error)
		QueryCodes(ctx context.Context, filter CodeFilter, exec ...core.DBExecutor) ([]EnrollmentCode, error)
		CreateCodeUsage(ctx context.Context, u CodeUsage, exec ...core.DBExecutor) (CodeUsage, error)
		HasUsedCode(ctx context.Context, codeID, userID string, exec ...core.DBExecutor) (bool, error)
	}

	ServiceInterface interface {
		// catalog
		CreateDepartment(ctx context.Context, in DepartmentInput) (Department, error)
		UpdateDepartment(ctx context.Context, id string, in DepartmentInput) (Department, error)
		GetDepartment(ctx context.Context, id string) (Department, error)
		ListDepartments(ctx context.Context) ([]Department, error)
		DeleteDepartment(ctx context.Context, id string) error

		CreateAcademicYear(ctx context.Context, in AcademicYearInput) (AcademicYear, error)
		ListAcademicYears(ctx context.Context) ([]AcademicYear, error)
		SetCurrentAcademicYear(ctx context.Context, id string) (AcademicYear, error)
		DeleteAcademicYear(ctx context.Context, id string) error

		CreateSemester(ctx context.Context, in SemesterInput) (Semester, error)
		UpdateSemester(ctx context.Context, id string, in SemesterInput) (Semester, error)
		ListSemesters(ctx context.Context, academicYearID string) ([]Semester, error)
		CurrentSemester(ctx context.Context) (Semester, error)
		SetCurrentSemester(ctx context.Context, id string) (Semester, error)
		DeleteSemester(ctx context.Context, id string) error

		CreateCourse(ctx context.Context, in CourseInput) (Course, error)
		UpdateCourse(ctx context.Context, id string, in CourseInput) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		ListCourses(ctx context.Context, filter CourseFilter) ([]Course, error)
		DeleteCourse(ctx context.Context, id string) error

		CreateCurriculum(ctx context.Context, in CurriculumInput) (Curriculum, error)
		UpdateCurriculum(ctx context.Context, id string, in CurriculumInput) (Curriculum, error)
		GetCurriculum(ctx context.Context, id string) (Curriculum, error)
		ListCurricula(ctx context.Context) ([]Curriculum, error)
		DeleteCurriculum(ctx context.Context, id string) error
		AddCurriculumCourse(ctx context.Context, curriculumID string, in CurriculumCourseInput) (CurriculumCourse, error)
		CurriculumCourses(ctx context.Context, curriculumID string) ([]CurriculumCourse, error)
		RemoveCurriculumCourse(ctx context.Context, curriculumID, id string) error

		CreateOffering(ctx context.Context, actor user.User, in OfferingInput) (Offering, error)
		UpdateOffering(ctx context.Context, actor user.User, id string, in OfferingInput) (Offering, error)
		GetOffering(ctx context.Context, id string) (Offering, error)
		ListOfferings(ctx context.Context, filter OfferingFilter) ([]Offering, error)
		DeleteOffering(ctx context.Context, actor user.User, id string) error

		CreatePeriod(ctx context.Context, in EnrollmentPeriodInput) (EnrollmentPeriod, error)
		UpdatePeriod(ctx context.Context, id string, in EnrollmentPeriodInput) (EnrollmentPeriod, error)
		ListPeriods(ctx context.Context, semesterID string) ([]EnrollmentPeriod, error)
		DeletePeriod(ctx context.Context, id string) error

		AssignCurriculum(ctx context.Context, actor user.User, in StudentCurriculumInput) (StudentCurriculum, error)
		ListStudentCurricula(ctx context.Context, filter StudentCurriculumFilter) ([]StudentCurriculum, error)
		UnassignCurriculum(ctx context.Context, id string) error

		// enrollment
		CheckPrerequisites(ctx context.Context, studentID string, crs Course) ([]string, error)
		Enroll(ctx context.Context, actor user.User, offeringID string) (EnrollResult, error)
		CancelEnrollment(ctx context.Context, actor user.User, enrollmentID string) (Enrollment, error)
		ApproveEnrollment(ctx context.Context, actor user.User, enrollmentID string) (Enrollment, error)
		RejectEnrollment(ctx context.Context, actor user.User, enrollmentID string) (Enrollment, error)
		BulkEnroll(ctx context.Context, actor user.User, in BulkEnrollInput) (BulkEnrollResult, error)
		ListEnrollments(ctx context.Context, actor user.User, filter EnrollmentFilter) ([]Enrollment, error)
		StudentOverview(ctx context.Context, student user.User) (Overview, error)
		OfferingDetail(ctx context.Context, actor user.User, offeringID string) (OfferingDetail, error)
		ClassList(ctx context.Context, actor user.User, offeringID string) ([]ClassListEntry, error)
		DashboardStats(ctx context.Context) (DashboardStats, error)
		SetGrades(ctx context.Context, actor user.User, enrollmentID string, in GradesInput) (Enrollment, error)

		// enrollment codes
		GenerateCodes(ctx context.Context, actor user.User, in GenerateCodesInput) ([]EnrollmentCode, error)
		DeactivateCode(ctx context.Context, actor user.User, id string) (EnrollmentCode, error)
		ListCodes(ctx context.Context, actor user.User, offeringID string) ([]EnrollmentCode, error)
		UseCode(ctx context.Context, actor user.User, code, ip string) (EnrollResult, error)

		// exports
		ExportEnrollments(ctx context.Context, actor user.User, filter EnrollmentFilter) (*core.Table, error)
		ExportClassList(ctx context.Context, actor user.User, offeringID string) (*core.Table, error)
	}

	service struct {
		repo     Repository
		tx       core.Transactor
		usrSvc   user.ServiceInterface
		notifSvc notification.ServiceInterface
		mailSvc  core.EmailService
		smsSvc   core.SMSService
		logger   core.Logger
		formula  *GradeFormula
		conf     *core.Config
	}
)

var _ ServiceInterface = (*service)(nil)

type ServiceDeps struct {
	Repo     Repository
	Tx       core.Transactor
	UserSvc  user.ServiceInterface
	NotifSvc notification.ServiceInterface
	MailSvc  core.EmailService
	SMSSvc   core.SMSService
	Logger   core.Logger
	Conf     *core.Config
}

func NewService(deps ServiceDeps) (*service, error) {
	formula, err := NewGradeFormula(deps.Conf.Grading.CourseGradeFormula)
	if err != nil {
		return nil, errors.Wrap(err, "parsing course grade formula")
	}
	return &service{
		repo:     deps.Repo,
		tx:       deps.Tx,
		usrSvc:   deps.UserSvc,
		notifSvc: deps.NotifSvc,
		mailSvc:  deps.MailSvc,
		smsSvc:   deps.SMSSvc,
		logger:   deps.Logger,
		formula:  formula,
		conf:     deps.Conf,
	}, nil
}

func newID() string {
	return uuid.New().String()
}

func boolOr(b *bool, dflt bool) bool {
	if b == nil {
		return dflt
	}
	return *b
}

// trapDuplicate turns a unique constraint violation into a validation error on field.
func trapDuplicate(err error, field string) error {
	if errors.Cause(err) == ErrDuplicate {
		return core.NewFieldError(field, "this value is already in use")
	}
	return err
}

// Departments

func (svc *service) CreateDepartment(ctx context.Context, in DepartmentInput) (Department, error) {
	d := Department{ID: newID(), CreatedAt: NowFunc().UTC()}
	applyDepartmentInput(&d, in)
	d, err := svc.repo.SaveDepartment(ctx, d)
	return d, trapDuplicate(err, "code")
}

func (svc *service) UpdateDepartment(ctx context.Context, id string, in DepartmentInput) (Department, error) {
	d, err := svc.repo.GetDepartment(ctx, id)
	if err != nil {
		return Department{}, err
	}
	applyDepartmentInput(&d, in)
	d, err = svc.repo.SaveDepartment(ctx, d)
	return d, trapDuplicate(err, "code")
}

func applyDepartmentInput(d *Department, in DepartmentInput) {
	d.Code = in.Code
	d.Name = in.Name
	d.Description = in.Description
	d.HeadID = in.HeadID
	d.IsActive = boolOr(in.IsActive, true)
}

func (svc *service) GetDepartment(ctx context.Context, id string) (Department, error) {
	return svc.repo.GetDepartment(ctx, id)
}

func (svc *service) ListDepartments(ctx context.Context) ([]Department, error) {
	return svc.repo.QueryDepartments(ctx)
}

func (svc *service) DeleteDepartment(ctx context.Context, id string) error {
	return svc.repo.DeleteDepartment(ctx, id)
}

// Academic years & semesters

func (svc *service) CreateAcademicYear(ctx context.Context, in AcademicYearInput) (AcademicYear, error) {
	y := AcademicYear{
		ID:        newID(),
		YearStart: in.YearStart,
		YearEnd:   in.YearStart + 1,
		IsCurrent: in.IsCurrent,
		CreatedAt: NowFunc().UTC(),
	}
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if y.IsCurrent {
			if err = svc.repo.ClearCurrentAcademicYear(ctx, exec); err != nil {
				return errors.Wrap(err, "clearing current academic year")
			}
		}
		y, err = svc.repo.SaveAcademicYear(ctx, y, exec)
		return trapDuplicate(err, "year_start")
	})
	return y, err
}

func (svc *service) ListAcademicYears(ctx context.Context) ([]AcademicYear, error) {
	return svc.repo.QueryAcademicYears(ctx)
}

// SetCurrentAcademicYear makes the given academic year the only current one.
func (svc *service) SetCurrentAcademicYear(ctx context.Context, id string) (AcademicYear, error) {
	var y AcademicYear
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if y, err = svc.repo.GetAcademicYear(ctx, id, exec); err != nil {
			return err
		}
		if err = svc.repo.ClearCurrentAcademicYear(ctx, exec); err != nil {
			return errors.Wrap(err, "clearing current academic year")
		}
		y.IsCurrent = true
		y, err = svc.repo.SaveAcademicYear(ctx, y, exec)
		return err
	})
	return y, err
}

func (svc *service) DeleteAcademicYear(ctx context.Context, id string) error {
	return svc.repo.DeleteAcademicYear(ctx, id)
}

func (svc *service) CreateSemester(ctx context.Context, in SemesterInput) (Semester, error) {
	return svc.saveSemester(ctx, Semester{ID: newID()}, in)
}

func (svc *service) UpdateSemester(ctx context.Context, id string, in SemesterInput) (Semester, error) {
	s, err := svc.repo.GetSemester(ctx, id)
	if err != nil {
		return Semester{}, err
	}
	return svc.saveSemester(ctx, s, in)
}

func (svc *service) saveSemester(ctx context.Context, s Semester, in SemesterInput) (Semester, error) {
	if _, err := svc.repo.GetAcademicYear(ctx, in.AcademicYearID); err != nil {
		if errors.Cause(err) == ErrAcademicYearNotFound {
			return Semester{}, core.NewFieldError("academic_year_id", ErrAcademicYearNotFound.Error())
		}
		return Semester{}, err
	}
	s.AcademicYearID = in.AcademicYearID
	s.Term = in.Term
	s.StartDate = parseDate(in.StartDate)
	s.EndDate = parseDate(in.EndDate)
	s.IsCurrent = in.IsCurrent

	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if s.IsCurrent {
			if err = svc.repo.ClearCurrentSemester(ctx, exec); err != nil {
				return errors.Wrap(err, "clearing current semester")
			}
		}
		s, err = svc.repo.SaveSemester(ctx, s, exec)
		return trapDuplicate(err, "term")
	})
	return s, err
}

func (svc *service) ListSemesters(ctx context.Context, academicYearID string) ([]Semester, error) {
	return svc.repo.QuerySemesters(ctx, academicYearID)
}

func (svc *service) CurrentSemester(ctx context.Context) (Semester, error) {
	return svc.repo.GetCurrentSemester(ctx)
}

// SetCurrentSemester makes the given semester the only current one.
func (svc *service) SetCurrentSemester(ctx context.Context, id string) (Semester, error) {
	var s Semester
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if s, err = svc.repo.GetSemester(ctx, id, exec); err != nil {
			return err
		}
		if err = svc.repo.ClearCurrentSemester(ctx, exec); err != nil {
			return errors.Wrap(err, "clearing current semester")
		}
		s.IsCurrent = true
		s, err = svc.repo.SaveSemester(ctx, s, exec)
		return err
	})
	return s, err
}

func (svc *service) DeleteSemester(ctx context.Context, id string) error {
	return svc.repo.DeleteSemester(ctx, id)
}

// Courses

func (svc *service) CreateCourse(ctx context.Context, in CourseInput) (Course, error) {
	now := NowFunc().UTC()
	return svc.saveCourse(ctx, Course{ID: newID(), CreatedAt: now}, in)
}

func (svc *service) UpdateCourse(ctx context.Context, id string, in CourseInput) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	return svc.saveCourse(ctx, c, in)
}

func (svc *service) saveCourse(ctx context.Context, c Course, in CourseInput) (Course, error) {
	prereqs := make([]string, 0, len(in.Prerequisites))
	for _, id := range in.Prerequisites {
		if id == c.ID {
			return Course{}, core.NewFieldError("prerequisites", "a course cannot be its own prerequisite")
		}
		if !core.ContainsString(prereqs, id) {
			prereqs = append(prereqs, id)
		}
	}
	if len(prereqs) > 0 {
		found, err := svc.repo.QueryCourses(ctx, CourseFilter{IDs: prereqs})
		if err != nil {
			return Course{}, errors.Wrap(err, "querying prerequisites")
		}
		if len(found) != len(prereqs) {
			return Course{}, core.NewFieldError("prerequisites", "unknown prerequisite courses")
		}
	}

	c.Code = in.Code
	c.Title = in.Title
	c.Description = in.Description
	c.Units = in.Units
	c.DepartmentID = in.DepartmentID
	c.CourseType = in.CourseType
	c.Prerequisites = prereqs
	c.IsActive = boolOr(in.IsActive, true)
	c.UpdatedAt = NowFunc().UTC()
	c, err := svc.repo.SaveCourse(ctx, c)
	return c, trapDuplicate(err, "code")
}

func (svc *service) GetCourse(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *service) ListCourses(ctx context.Context, filter CourseFilter) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter)
}

func (svc *service) DeleteCourse(ctx context.Context, id string) error {
	return svc.repo.DeleteCourse(ctx, id)
}

// Curricula

func (svc *service) CreateCurriculum(ctx context.Context, in CurriculumInput) (Curriculum, error) {
	c := Curriculum{ID: newID(), CreatedAt: NowFunc().UTC()}
	applyCurriculumInput(&c, in)
	c, err := svc.repo.SaveCurriculum(ctx, c)
	return c, trapDuplicate(err, "code")
}

func (svc *service) UpdateCurriculum(ctx context.Context, id string, in CurriculumInput) (Curriculum, error) {
	c, err := svc.repo.GetCurriculum(ctx, id)
	if err != nil {
		return Curriculum{}, err
	}
	applyCurriculumInput(&c, in)
	c, err = svc.repo.SaveCurriculum(ctx, c)
	return c, trapDuplicate(err, "code")
}

func applyCurriculumInput(c *Curriculum, in CurriculumInput) {
	c.Code = in.Code
	c.Name = in.Name
	c.DepartmentID = in.DepartmentID
	c.YearIntroduced = in.YearIntroduced
	c.TotalUnits = in.TotalUnits
	c.IsActive = boolOr(in.IsActive, true)
}

func (svc *service) GetCurriculum(ctx context.Context, id string) (Curriculum, error) {
	return svc.repo.GetCurriculum(ctx, id)
}

func (svc *service) ListCurricula(ctx context.Context) ([]Curriculum, error) {
	return svc.repo.QueryCurricula(ctx)
}

func (svc *service) DeleteCurriculum(ctx context.Context, id string) error {
	return svc.repo.DeleteCurriculum(ctx, id)
}

func (svc *service) AddCurriculumCourse(ctx context.Context, curriculumID string, in CurriculumCourseInput) (CurriculumCourse, error) {
	if _, err := svc.repo.GetCurriculum(ctx, curriculumID); err != nil {
		return CurriculumCourse{}, err
	}
	crs, err := svc.repo.GetCourse(ctx, in.CourseID)
	if err != nil {
		if errors.Cause(err) == ErrCourseNotFound {
			return CurriculumCourse{}, core.NewFieldError("course_id", ErrCourseNotFound.Error())
		}
		return CurriculumCourse{}, err
	}
	cc, err := svc.repo.SaveCurriculumCourse(ctx, CurriculumCourse{
		ID:           newID(),
		CurriculumID: curriculumID,
		CourseID:     crs.ID,
		YearLevel:    in.YearLevel,
		Term:         in.Term,
		IsRequired:   boolOr(in.IsRequired, true),
	})
	if err != nil {
		return CurriculumCourse{}, trapDuplicate(err, "course_id")
	}
	cc.Course = &crs
	return cc, nil
}

// CurriculumCourses returns the courses of a curriculum, with their Course attached.
func (svc *service) CurriculumCourses(ctx context.Context, curriculumID string) ([]CurriculumCourse, error) {
	ccs, err := svc.repo.QueryCurriculumCourses(ctx, CurriculumCourseFilter{CurriculumID: curriculumID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(ccs))
	for _, cc := range ccs {
		ids = append(ids, cc.CourseID)
	}
	courses, err := svc.coursesByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range ccs {
		if crs, ok := courses[ccs[i].CourseID]; ok {
			ccs[i].Course = &crs
		}
	}
	return ccs, nil
}

func (svc *service) RemoveCurriculumCourse(ctx context.Context, curriculumID, id string) error {
	ccs, err := svc.repo.QueryCurriculumCourses(ctx, CurriculumCourseFilter{CurriculumID: curriculumID})
	if err != nil {
		return err
	}
	for _, cc := range ccs {
		if cc.ID == id {
			return svc.repo.DeleteCurriculumCourse(ctx, id)
		}
	}
	return ErrCurriculumCourseNotFound
}

func (svc *service) coursesByID(ctx context.Context, ids []string) (map[string]Course, error) {
	courses := make(map[string]Course, len(ids))
	if len(ids) == 0 {
		return courses, nil
	}
	found, err := svc.repo.QueryCourses(ctx, CourseFilter{IDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	for _, crs := range found {
		courses[crs.ID] = crs
	}
	return courses, nil
}

// Offerings

// canManageOffering reports whether actor is an admin or the offering's instructor.
func canManageOffering(actor user.User, o Offering) bool {
	return actor.IsAdmin() || (actor.IsTeacher() && o.InstructorID == actor.ID)
}

func (svc *service) CreateOffering(ctx context.Context, actor user.User, in OfferingInput) (Offering, error) {
	o := Offering{ID: newID(), CreatedAt: NowFunc().UTC()}
	if !actor.IsAdmin() && in.InstructorID == "" {
		in.InstructorID = actor.ID
	}
	return svc.saveOffering(ctx, o, in)
}

func (svc *service) UpdateOffering(ctx context.Context, actor user.User, id string, in OfferingInput) (Offering, error) {
	o, err := svc.repo.GetOffering(ctx, id)
	if err != nil {
		return Offering{}, err
	}
	if !canManageOffering(actor, o) {
		return Offering{}, core.ErrForbidden
	}
	return svc.saveOffering(ctx, o, in)
}

func (svc *service) saveOffering(ctx context.Context, o Offering, in OfferingInput) (Offering, error) {
	crs, err := svc.repo.GetCourse(ctx, in.CourseID)
	if err != nil {
		if errors.Cause(err) == ErrCourseNotFound {
			return Offering{}, core.NewFieldError("course_id", ErrCourseNotFound.Error())
		}
		return Offering{}, err
	}
	if _, err = svc.repo.GetSemester(ctx, in.SemesterID); err != nil {
		if errors.Cause(err) == ErrSemesterNotFound {
			return Offering{}, core.NewFieldError("semester_id", ErrSemesterNotFound.Error())
		}
		return Offering{}, err
	}

	o.CourseID = crs.ID
	o.SemesterID = in.SemesterID
	o.Section = in.Section
	o.InstructorID = in.InstructorID
	o.Schedule = in.Schedule
	o.Room = in.Room
	o.MaxStudents = in.MaxStudents
	o.Status = in.Status
	o.EnrollmentStart = in.EnrollmentStart
	o.EnrollmentEnd = in.EnrollmentEnd
	o.ClassStart = parseDatePtr(in.ClassStart)
	o.ClassEnd = parseDatePtr(in.ClassEnd)

	o, err = svc.repo.SaveOffering(ctx, o)
	if err != nil {
		return Offering{}, trapDuplicate(err, "section")
	}
	o.Course = &crs
	return o, nil
}

func (svc *service) GetOffering(ctx context.Context, id string) (Offering, error) {
	o, err := svc.repo.GetOffering(ctx, id)
	if err != nil {
		return Offering{}, err
	}
	if crs, err := svc.repo.GetCourse(ctx, o.CourseID); err == nil {
		o.Course = &crs
	}
	return o, nil
}

func (svc *service) ListOfferings(ctx context.Context, filter OfferingFilter) ([]Offering, error) {
	offerings, err := svc.repo.QueryOfferings(ctx, filter)
	if err != nil {
		return nil, err
	}
	return svc.attachCourses(ctx, offerings)
}

func (svc *service) attachCourses(ctx context.Context, offerings []Offering) ([]Offering, error) {
	ids := make([]string, 0, len(offerings))
	for _, o := range offerings {
		ids = append(ids, o.CourseID)
	}
	courses, err := svc.coursesByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range offerings {
		if crs, ok := courses[offerings[i].CourseID]; ok {
			offerings[i].Course = &crs
		}
	}
	return offerings, nil
}

func (svc *service) DeleteOffering(ctx context.Context, actor user.User, id string) error {
	o, err := svc.repo.GetOffering(ctx, id)
	if err != nil {
		return err
	}
	if !canManageOffering(actor, o) {
		return core.ErrForbidden
	}
	return svc.repo.DeleteOffering(ctx, id)
}

// Enrollment periods

func (svc *service) CreatePeriod(ctx context.Context, in EnrollmentPeriodInput) (EnrollmentPeriod, error) {
	return svc.savePeriod(ctx, EnrollmentPeriod{ID: newID()}, in)
}

func (svc *service) UpdatePeriod(ctx context.Context, id string, in EnrollmentPeriodInput) (EnrollmentPeriod, error) {
	p, err := svc.repo.GetPeriod(ctx, id)
	if err != nil {
		return EnrollmentPeriod{}, err
	}
	return svc.savePeriod(ctx, p, in)
}

func (svc *service) savePeriod(ctx context.Context, p EnrollmentPeriod, in EnrollmentPeriodInput) (EnrollmentPeriod, error) {
	if _, err := svc.repo.GetSemester(ctx, in.SemesterID); err != nil {
		if errors.Cause(err) == ErrSemesterNotFound {
			return EnrollmentPeriod{}, core.NewFieldError("semester_id", ErrSemesterNotFound.Error())
		}
		return EnrollmentPeriod{}, err
	}
	p.Name = in.Name
	p.SemesterID = in.SemesterID
	p.StudentCategory = in.StudentCategory
	p.YearLevels = in.YearLevels
	p.StartDate = in.StartDate.UTC()
	p.EndDate = in.EndDate.UTC()
	p.IsActive = boolOr(in.IsActive, true)
	p.PriorityOrder = in.PriorityOrder
	return svc.repo.SavePeriod(ctx, p)
}

func (svc *service) ListPeriods(ctx context.Context, semesterID string) ([]EnrollmentPeriod, error) {
	return svc.repo.QueryPeriods(ctx, semesterID)
}

func (svc *service) DeletePeriod(ctx context.Context, id string) error {
	return svc.repo.DeletePeriod(ctx, id)
}

// Student curricula

func (svc *service) AssignCurriculum(ctx context.Context, actor user.User, in StudentCurriculumInput) (StudentCurriculum, error) {
	student, err := svc.usrSvc.GetByID(ctx, in.StudentID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return StudentCurriculum{}, core.NewFieldError("student_id", user.ErrNotFound.Error())
		}
		return StudentCurriculum{}, err
	}
	if !student.IsStudent() {
		return StudentCurriculum{}, core.NewFieldError("student_id", "user is not a student")
	}
	if _, err = svc.repo.GetCurriculum(ctx, in.CurriculumID); err != nil {
		if errors.Cause(err) == ErrCurriculumNotFound {
			return StudentCurriculum{}, core.NewFieldError("curriculum_id", ErrCurriculumNotFound.Error())
		}
		return StudentCurriculum{}, err
	}

	sc := StudentCurriculum{ID: newID()}
	existing, err := svc.repo.QueryStudentCurricula(ctx, StudentCurriculumFilter{StudentID: in.StudentID, CurriculumID: in.CurriculumID})
	if err != nil {
		return StudentCurriculum{}, err
	}
	if len(existing) > 0 {
		sc = existing[0]
	}
	sc.StudentID = in.StudentID
	sc.CurriculumID = in.CurriculumID
	sc.YearStarted = in.YearStarted
	sc.CurrentYearLevel = in.CurrentYearLevel
	sc.IsActive = boolOr(in.IsActive, true)
	sc.AssignedBy = actor.ID
	sc.AssignedAt = NowFunc().UTC()
	return svc.repo.SaveStudentCurriculum(ctx, sc)
}

func (svc *service) ListStudentCurricula(ctx context.Context, filter StudentCurriculumFilter) ([]StudentCurriculum, error) {
	return svc.repo.QueryStudentCurricula(ctx, filter)
}

func (svc *service) UnassignCurriculum(ctx context.Context, id string) error {
	return svc.repo.DeleteStudentCurriculum(ctx, id)
}
