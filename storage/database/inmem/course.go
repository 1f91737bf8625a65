package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

// Departments

func (repo *courseRepository) SaveDepartment(_ context.Context, d course.Department, _ ...core.DBExecutor) (course.Department, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.departments {
		if other.ID != d.ID && strings.EqualFold(other.Code, d.Code) {
			return course.Department{}, course.ErrDuplicate
		}
	}
	repo.db.departments[d.ID] = &d
	return d, nil
}

func (repo *courseRepository) GetDepartment(_ context.Context, id string, _ ...core.DBExecutor) (course.Department, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if d, ok := repo.db.departments[id]; ok {
		return *d, nil
	}
	return course.Department{}, course.ErrDepartmentNotFound
}

func (repo *courseRepository) QueryDepartments(_ context.Context, _ ...core.DBExecutor) ([]course.Department, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	depts := make([]course.Department, 0, len(repo.db.departments))
	for _, d := range repo.db.departments {
		depts = append(depts, *d)
	}
	sort.Slice(depts, func(i, j int) bool { return depts[i].Code < depts[j].Code })
	return depts, nil
}

func (repo *courseRepository) DeleteDepartment(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.departments[id]; !ok {
		return course.ErrDepartmentNotFound
	}
	delete(repo.db.departments, id)
	for _, c := range repo.db.courses {
		if c.DepartmentID == id {
			c.DepartmentID = ""
		}
	}
	for _, c := range repo.db.curricula {
		if c.DepartmentID == id {
			c.DepartmentID = ""
		}
	}
	return nil
}

// Academic years

func (repo *courseRepository) SaveAcademicYear(_ context.Context, y course.AcademicYear, _ ...core.DBExecutor) (course.AcademicYear, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.academicYears {
		if other.ID != y.ID && other.YearStart == y.YearStart {
			return course.AcademicYear{}, course.ErrDuplicate
		}
	}
	repo.db.academicYears[y.ID] = &y
	return y, nil
}

func (repo *courseRepository) GetAcademicYear(_ context.Context, id string, _ ...core.DBExecutor) (course.AcademicYear, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if y, ok := repo.db.academicYears[id]; ok {
		return *y, nil
	}
	return course.AcademicYear{}, course.ErrAcademicYearNotFound
}

func (repo *courseRepository) QueryAcademicYears(_ context.Context, _ ...core.DBExecutor) ([]course.AcademicYear, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	years := make([]course.AcademicYear, 0, len(repo.db.academicYears))
	for _, y := range repo.db.academicYears {
		years = append(years, *y)
	}
	sort.Slice(years, func(i, j int) bool { return years[i].YearStart > years[j].YearStart })
	return years, nil
}

func (repo *courseRepository) DeleteAcademicYear(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.academicYears[id]; !ok {
		return course.ErrAcademicYearNotFound
	}
	delete(repo.db.academicYears, id)
	for sid, s := range repo.db.semesters {
		if s.AcademicYearID == id {
			repo.deleteSemester(sid)
		}
	}
	return nil
}

func (repo *courseRepository) ClearCurrentAcademicYear(_ context.Context, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, y := range repo.db.academicYears {
		y.IsCurrent = false
	}
	return nil
}

// Semesters

func (repo *courseRepository) SaveSemester(_ context.Context, s course.Semester, _ ...core.DBExecutor) (course.Semester, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.semesters {
		if other.ID != s.ID && other.AcademicYearID == s.AcademicYearID && other.Term == s.Term {
			return course.Semester{}, course.ErrDuplicate
		}
	}
	repo.db.semesters[s.ID] = &s
	return s, nil
}

func (repo *courseRepository) GetSemester(_ context.Context, id string, _ ...core.DBExecutor) (course.Semester, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.semesters[id]; ok {
		return *s, nil
	}
	return course.Semester{}, course.ErrSemesterNotFound
}

func (repo *courseRepository) GetCurrentSemester(_ context.Context, _ ...core.DBExecutor) (course.Semester, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, s := range repo.db.semesters {
		if s.IsCurrent {
			return *s, nil
		}
	}
	return course.Semester{}, course.ErrSemesterNotFound
}

func (repo *courseRepository) QuerySemesters(_ context.Context, academicYearID string, _ ...core.DBExecutor) ([]course.Semester, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	sems := make([]course.Semester, 0)
	for _, s := range repo.db.semesters {
		if academicYearID == "" || s.AcademicYearID == academicYearID {
			sems = append(sems, *s)
		}
	}
	sort.Slice(sems, func(i, j int) bool { return sems[i].StartDate.Before(sems[j].StartDate) })
	return sems, nil
}

func (repo *courseRepository) DeleteSemester(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.semesters[id]; !ok {
		return course.ErrSemesterNotFound
	}
	repo.deleteSemester(id)
	return nil
}

// deleteSemester must be called with the lock held.
func (repo *courseRepository) deleteSemester(id string) {
	delete(repo.db.semesters, id)
	for oid, o := range repo.db.offerings {
		if o.SemesterID == id {
			repo.deleteOffering(oid)
		}
	}
	for pid, p := range repo.db.periods {
		if p.SemesterID == id {
			delete(repo.db.periods, pid)
		}
	}
}

func (repo *courseRepository) ClearCurrentSemester(_ context.Context, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, s := range repo.db.semesters {
		s.IsCurrent = false
	}
	return nil
}

// Courses

func cloneCourse(c *course.Course) course.Course {
	cp := *c
	cp.Prerequisites = copyStrings(c.Prerequisites)
	return cp
}

func (repo *courseRepository) SaveCourse(_ context.Context, c course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.courses {
		if other.ID != c.ID && strings.EqualFold(other.Code, c.Code) {
			return course.Course{}, course.ErrDuplicate
		}
	}
	saved := cloneCourse(&c)
	repo.db.courses[c.ID] = &saved
	return cloneCourse(&saved), nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.courses[id]; ok {
		return cloneCourse(c), nil
	}
	return course.Course{}, course.ErrCourseNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.CourseFilter, _ ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	courses := make([]course.Course, 0)
	for _, c := range repo.db.courses {
		if len(filter.IDs) > 0 && !core.ContainsString(filter.IDs, c.ID) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Code), search) && !strings.Contains(strings.ToLower(c.Title), search) {
			continue
		}
		if filter.DepartmentID != "" && c.DepartmentID != filter.DepartmentID {
			continue
		}
		if filter.CourseType != "" && c.CourseType != filter.CourseType {
			continue
		}
		if filter.ActiveOnly && !c.IsActive {
			continue
		}
		courses = append(courses, cloneCourse(c))
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Code < courses[j].Code })
	return courses, nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrCourseNotFound
	}
	delete(repo.db.courses, id)
	for _, c := range repo.db.courses {
		if core.ContainsString(c.Prerequisites, id) {
			kept := c.Prerequisites[:0]
			for _, p := range c.Prerequisites {
				if p != id {
					kept = append(kept, p)
				}
			}
			c.Prerequisites = kept
		}
	}
	for ccid, cc := range repo.db.curriculumCourses {
		if cc.CourseID == id {
			delete(repo.db.curriculumCourses, ccid)
		}
	}
	for oid, o := range repo.db.offerings {
		if o.CourseID == id {
			repo.deleteOffering(oid)
		}
	}
	return nil
}

// Curricula

func (repo *courseRepository) SaveCurriculum(_ context.Context, c course.Curriculum, _ ...core.DBExecutor) (course.Curriculum, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.curricula {
		if other.ID != c.ID && strings.EqualFold(other.Code, c.Code) {
			return course.Curriculum{}, course.ErrDuplicate
		}
	}
	repo.db.curricula[c.ID] = &c
	return c, nil
}

func (repo *courseRepository) GetCurriculum(_ context.Context, id string, _ ...core.DBExecutor) (course.Curriculum, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.curricula[id]; ok {
		return *c, nil
	}
	return course.Curriculum{}, course.ErrCurriculumNotFound
}

func (repo *courseRepository) QueryCurricula(_ context.Context, _ ...core.DBExecutor) ([]course.Curriculum, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	curricula := make([]course.Curriculum, 0, len(repo.db.curricula))
	for _, c := range repo.db.curricula {
		curricula = append(curricula, *c)
	}
	sort.Slice(curricula, func(i, j int) bool { return curricula[i].Code < curricula[j].Code })
	return curricula, nil
}

func (repo *courseRepository) DeleteCurriculum(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.curricula[id]; !ok {
		return course.ErrCurriculumNotFound
	}
	delete(repo.db.curricula, id)
	for ccid, cc := range repo.db.curriculumCourses {
		if cc.CurriculumID == id {
			delete(repo.db.curriculumCourses, ccid)
		}
	}
	for scid, sc := range repo.db.studentCurricula {
		if sc.CurriculumID == id {
			delete(repo.db.studentCurricula, scid)
		}
	}
	return nil
}

func (repo *courseRepository) SaveCurriculumCourse(_ context.Context, cc course.CurriculumCourse, _ ...core.DBExecutor) (course.CurriculumCourse, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.curriculumCourses {
		if other.ID != cc.ID && other.CurriculumID == cc.CurriculumID && other.CourseID == cc.CourseID {
			return course.CurriculumCourse{}, course.ErrDuplicate
		}
	}
	cc.Course = nil
	repo.db.curriculumCourses[cc.ID] = &cc
	return repo.withCourse(cc), nil
}

func (repo *courseRepository) withCourse(cc course.CurriculumCourse) course.CurriculumCourse {
	if c, ok := repo.db.courses[cc.CourseID]; ok {
		crs := cloneCourse(c)
		cc.Course = &crs
	}
	return cc
}

func (repo *courseRepository) QueryCurriculumCourses(_ context.Context, filter course.CurriculumCourseFilter, _ ...core.DBExecutor) ([]course.CurriculumCourse, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ccs := make([]course.CurriculumCourse, 0)
	for _, cc := range repo.db.curriculumCourses {
		if filter.CurriculumID != "" && cc.CurriculumID != filter.CurriculumID {
			continue
		}
		if filter.YearLevel != 0 && cc.YearLevel != filter.YearLevel {
			continue
		}
		if filter.Term != "" && cc.Term != filter.Term {
			continue
		}
		if filter.RequiredOnly && !cc.IsRequired {
			continue
		}
		ccs = append(ccs, repo.withCourse(*cc))
	}
	sort.Slice(ccs, func(i, j int) bool {
		if ccs[i].YearLevel != ccs[j].YearLevel {
			return ccs[i].YearLevel < ccs[j].YearLevel
		}
		if ccs[i].Term != ccs[j].Term {
			return ccs[i].Term < ccs[j].Term
		}
		return courseCode(ccs[i].Course) < courseCode(ccs[j].Course)
	})
	return ccs, nil
}

func courseCode(c *course.Course) string {
	if c == nil {
		return ""
	}
	return c.Code
}

func (repo *courseRepository) DeleteCurriculumCourse(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.curriculumCourses[id]; !ok {
		return course.ErrCurriculumCourseNotFound
	}
	delete(repo.db.curriculumCourses, id)
	return nil
}

// Offerings

// withCount must be called with the lock held.
func (repo *courseRepository) withCount(o course.Offering) course.Offering {
	o.Course = nil
	o.EnrolledCount = 0
	for _, e := range repo.db.enrollments {
		if e.OfferingID == o.ID && e.Status == course.StatusEnrolled {
			o.EnrolledCount++
		}
	}
	return o
}

func (repo *courseRepository) SaveOffering(_ context.Context, o course.Offering, _ ...core.DBExecutor) (course.Offering, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.offerings {
		if other.ID != o.ID && other.CourseID == o.CourseID && other.SemesterID == o.SemesterID && strings.EqualFold(other.Section, o.Section) {
			return course.Offering{}, course.ErrDuplicate
		}
	}
	o = repo.withCount(o)
	repo.db.offerings[o.ID] = &o
	return o, nil
}

func (repo *courseRepository) GetOffering(_ context.Context, id string, _ ...core.DBExecutor) (course.Offering, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if o, ok := repo.db.offerings[id]; ok {
		return repo.withCount(*o), nil
	}
	return course.Offering{}, course.ErrOfferingNotFound
}

func (repo *courseRepository) QueryOfferings(_ context.Context, filter course.OfferingFilter, _ ...core.DBExecutor) ([]course.Offering, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	offerings := make([]course.Offering, 0)
	for _, o := range repo.db.offerings {
		if len(filter.IDs) > 0 && !core.ContainsString(filter.IDs, o.ID) {
			continue
		}
		if filter.SemesterID != "" && o.SemesterID != filter.SemesterID {
			continue
		}
		if len(filter.CourseIDs) > 0 && !core.ContainsString(filter.CourseIDs, o.CourseID) {
			continue
		}
		if filter.InstructorID != "" && o.InstructorID != filter.InstructorID {
			continue
		}
		if len(filter.Statuses) > 0 && !core.ContainsString(filter.Statuses, o.Status) {
			continue
		}
		offerings = append(offerings, repo.withCount(*o))
	}
	sort.Slice(offerings, func(i, j int) bool {
		ci, cj := repo.db.courses[offerings[i].CourseID], repo.db.courses[offerings[j].CourseID]
		if ci != nil && cj != nil && ci.Code != cj.Code {
			return ci.Code < cj.Code
		}
		return offerings[i].Section < offerings[j].Section
	})
	return offerings, nil
}

func (repo *courseRepository) DeleteOffering(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.offerings[id]; !ok {
		return course.ErrOfferingNotFound
	}
	repo.deleteOffering(id)
	return nil
}

// deleteOffering must be called with the lock held.
func (repo *courseRepository) deleteOffering(id string) {
	delete(repo.db.offerings, id)
	for eid, e := range repo.db.enrollments {
		if e.OfferingID == id {
			delete(repo.db.enrollments, eid)
		}
	}
	for cid, c := range repo.db.codes {
		if c.OfferingID == id {
			delete(repo.db.codes, cid)
			for uid, u := range repo.db.codeUsages {
				if u.CodeID == cid {
					delete(repo.db.codeUsages, uid)
				}
			}
		}
	}
}

// Enrollments

func (repo *courseRepository) SaveEnrollment(_ context.Context, e course.Enrollment, _ ...core.DBExecutor) (course.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.enrollments {
		if other.ID != e.ID && other.StudentID == e.StudentID && other.OfferingID == e.OfferingID {
			return course.Enrollment{}, course.ErrAlreadyEnrolled
		}
	}
	e.Offering = nil
	repo.db.enrollments[e.ID] = &e
	return e, nil
}

func (repo *courseRepository) GetEnrollment(_ context.Context, id string, _ ...core.DBExecutor) (course.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if e, ok := repo.db.enrollments[id]; ok {
		return *e, nil
	}
	return course.Enrollment{}, course.ErrEnrollmentNotFound
}

func (repo *courseRepository) FindEnrollment(_ context.Context, studentID, offeringID string, _ ...core.DBExecutor) (course.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, e := range repo.db.enrollments {
		if e.StudentID == studentID && e.OfferingID == offeringID {
			return *e, nil
		}
	}
	return course.Enrollment{}, course.ErrEnrollmentNotFound
}

func (repo *courseRepository) QueryEnrollments(_ context.Context, filter course.EnrollmentFilter, _ ...core.DBExecutor) ([]course.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	enrollments := make([]course.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if len(filter.IDs) > 0 && !core.ContainsString(filter.IDs, e.ID) {
			continue
		}
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if len(filter.OfferingIDs) > 0 && !core.ContainsString(filter.OfferingIDs, e.OfferingID) {
			continue
		}
		if filter.SemesterID != "" {
			if o, ok := repo.db.offerings[e.OfferingID]; !ok || o.SemesterID != filter.SemesterID {
				continue
			}
		}
		if len(filter.Statuses) > 0 && !core.ContainsString(filter.Statuses, e.Status) {
			continue
		}
		enrollments = append(enrollments, *e)
	}
	sort.SliceStable(enrollments, func(i, j int) bool { return enrollments[i].EnrolledAt.Before(enrollments[j].EnrolledAt) })
	return enrollments, nil
}

func (repo *courseRepository) CountEnrollments(_ context.Context, offeringID string, statuses []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, e := range repo.db.enrollments {
		if e.OfferingID == offeringID && (len(statuses) == 0 || core.ContainsString(statuses, e.Status)) {
			n++
		}
	}
	return n, nil
}

// Student curricula

func (repo *courseRepository) SaveStudentCurriculum(_ context.Context, sc course.StudentCurriculum, _ ...core.DBExecutor) (course.StudentCurriculum, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.studentCurricula {
		if other.ID != sc.ID && other.StudentID == sc.StudentID && other.CurriculumID == sc.CurriculumID {
			return course.StudentCurriculum{}, course.ErrDuplicate
		}
	}
	repo.db.studentCurricula[sc.ID] = &sc
	return sc, nil
}

func (repo *courseRepository) QueryStudentCurricula(_ context.Context, filter course.StudentCurriculumFilter, _ ...core.DBExecutor) ([]course.StudentCurriculum, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	scs := make([]course.StudentCurriculum, 0)
	for _, sc := range repo.db.studentCurricula {
		if filter.StudentID != "" && sc.StudentID != filter.StudentID {
			continue
		}
		if filter.CurriculumID != "" && sc.CurriculumID != filter.CurriculumID {
			continue
		}
		if filter.YearLevel != 0 && sc.CurrentYearLevel != filter.YearLevel {
			continue
		}
		if filter.ActiveOnly && !sc.IsActive {
			continue
		}
		scs = append(scs, *sc)
	}
	sort.Slice(scs, func(i, j int) bool { return scs[i].AssignedAt.After(scs[j].AssignedAt) })
	return scs, nil
}

func (repo *courseRepository) DeleteStudentCurriculum(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.studentCurricula[id]; !ok {
		return course.ErrStudentCurriculumNotFound
	}
	delete(repo.db.studentCurricula, id)
	return nil
}

// Enrollment periods

func (repo *courseRepository) SavePeriod(_ context.Context, p course.EnrollmentPeriod, _ ...core.DBExecutor) (course.EnrollmentPeriod, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.periods[p.ID] = &p
	return p, nil
}

func (repo *courseRepository) GetPeriod(_ context.Context, id string, _ ...core.DBExecutor) (course.EnrollmentPeriod, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.periods[id]; ok {
		return *p, nil
	}
	return course.EnrollmentPeriod{}, course.ErrPeriodNotFound
}

func (repo *courseRepository) QueryPeriods(_ context.Context, semesterID string, _ ...core.DBExecutor) ([]course.EnrollmentPeriod, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	periods := make([]course.EnrollmentPeriod, 0)
	for _, p := range repo.db.periods {
		if semesterID == "" || p.SemesterID == semesterID {
			periods = append(periods, *p)
		}
	}
	sort.Slice(periods, func(i, j int) bool {
		if periods[i].PriorityOrder != periods[j].PriorityOrder {
			return periods[i].PriorityOrder < periods[j].PriorityOrder
		}
		return periods[i].StartDate.Before(periods[j].StartDate)
	})
	return periods, nil
}

func (repo *courseRepository) DeletePeriod(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.periods[id]; !ok {
		return course.ErrPeriodNotFound
	}
	delete(repo.db.periods, id)
	return nil
}

// Enrollment codes

func (repo *courseRepository) SaveCode(_ context.Context, c course.EnrollmentCode, _ ...core.DBExecutor) (course.EnrollmentCode, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.codes {
		if other.ID != c.ID && other.Code == c.Code {
			return course.EnrollmentCode{}, course.ErrDuplicate
		}
	}
	repo.db.codes[c.ID] = &c
	return c, nil
}

func (repo *courseRepository) GetCode(_ context.Context, id string, _ ...core.DBExecutor) (course.EnrollmentCode, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.codes[id]; ok {
		return *c, nil
	}
	return course.EnrollmentCode{}, course.ErrCodeNotFound
}

func (repo *courseRepository) GetCodeByCode(_ context.Context, code string, _ ...core.DBExecutor) (course.EnrollmentCode, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, c := range repo.db.codes {
		if c.Code == code {
			return *c, nil
		}
	}
	return course.EnrollmentCode{}, course.ErrCodeNotFound
}

func (repo *courseRepository) QueryCodes(_ context.Context, filter course.CodeFilter, _ ...core.DBExecutor) ([]course.EnrollmentCode, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	codes := make([]course.EnrollmentCode, 0)
	for _, c := range repo.db.codes {
		if len(filter.OfferingIDs) > 0 && !core.ContainsString(filter.OfferingIDs, c.OfferingID) {
			continue
		}
		if filter.CreatedBy != "" && c.CreatedBy != filter.CreatedBy {
			continue
		}
		codes = append(codes, *c)
	}
	sort.SliceStable(codes, func(i, j int) bool { return codes[i].CreatedAt.After(codes[j].CreatedAt) })
	return codes, nil
}

func (repo *courseRepository) CreateCodeUsage(_ context.Context, u course.CodeUsage, _ ...core.DBExecutor) (course.CodeUsage, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.codeUsages {
		if other.CodeID == u.CodeID && other.UserID == u.UserID {
			return course.CodeUsage{}, course.ErrDuplicate
		}
	}
	repo.db.codeUsages[u.ID] = &u
	return u, nil
}

func (repo *courseRepository) HasUsedCode(_ context.Context, codeID, userID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, u := range repo.db.codeUsages {
		if u.CodeID == codeID && u.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}
