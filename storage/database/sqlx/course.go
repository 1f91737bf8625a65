package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/course"
)

func nullID(id string) null.String {
	return null.NewString(id, id != "")
}

type (
	departmentRow struct {
		ID          string      `db:"id"`
		Code        string      `db:"code"`
		Name        string      `db:"name"`
		Description string      `db:"description"`
		HeadID      null.String `db:"head_id"`
		IsActive    bool        `db:"is_active"`
		CreatedAt   null.Time   `db:"created_at"`
	}

	courseRow struct {
		ID           string      `db:"id"`
		Code         string      `db:"code"`
		Title        string      `db:"title"`
		Description  string      `db:"description"`
		Units        int         `db:"units"`
		DepartmentID null.String `db:"department_id"`
		CourseType   string      `db:"course_type"`
		IsActive     bool        `db:"is_active"`
		CreatedAt    null.Time   `db:"created_at"`
		UpdatedAt    null.Time   `db:"updated_at"`
	}

	curriculumRow struct {
		ID             string      `db:"id"`
		Code           string      `db:"code"`
		Name           string      `db:"name"`
		DepartmentID   null.String `db:"department_id"`
		YearIntroduced int         `db:"year_introduced"`
		TotalUnits     int         `db:"total_units"`
		IsActive       bool        `db:"is_active"`
		CreatedAt      null.Time   `db:"created_at"`
	}

	offeringRow struct {
		ID              string      `db:"id"`
		CourseID        string      `db:"course_id"`
		SemesterID      string      `db:"semester_id"`
		Section         string      `db:"section"`
		InstructorID    null.String `db:"instructor_id"`
		Schedule        string      `db:"schedule"`
		Room            string      `db:"room"`
		MaxStudents     int         `db:"max_students"`
		Status          string      `db:"status"`
		EnrollmentStart null.Time   `db:"enrollment_start"`
		EnrollmentEnd   null.Time   `db:"enrollment_end"`
		ClassStart      null.Time   `db:"class_start"`
		ClassEnd        null.Time   `db:"class_end"`
		CreatedAt       null.Time   `db:"created_at"`
		EnrolledCount   int         `db:"enrolled_count"`
	}

	enrollmentRow struct {
		ID             string       `db:"id"`
		StudentID      string       `db:"student_id"`
		OfferingID     string       `db:"offering_id"`
		Status         string       `db:"status"`
		EnrollmentType string       `db:"enrollment_type"`
		MidtermGrade   null.Float64 `db:"midterm_grade"`
		FinalGrade     null.Float64 `db:"final_grade"`
		FinalRating    null.Float64 `db:"final_rating"`
		EnrolledAt     null.Time    `db:"enrolled_at"`
		ApprovedAt     null.Time    `db:"approved_at"`
		ApprovedBy     null.String  `db:"approved_by"`
		UpdatedAt      null.Time    `db:"updated_at"`
	}

	studentCurriculumRow struct {
		ID               string      `db:"id"`
		StudentID        string      `db:"student_id"`
		CurriculumID     string      `db:"curriculum_id"`
		YearStarted      int         `db:"year_started"`
		CurrentYearLevel int         `db:"current_year_level"`
		IsActive         bool        `db:"is_active"`
		AssignedBy       null.String `db:"assigned_by"`
		AssignedAt       null.Time   `db:"assigned_at"`
	}

	codeRow struct {
		ID         string      `db:"id"`
		Code       string      `db:"code"`
		OfferingID string      `db:"offering_id"`
		IsActive   bool        `db:"is_active"`
		MaxUses    int         `db:"max_uses"`
		UsedCount  int         `db:"used_count"`
		ValidFrom  null.Time   `db:"valid_from"`
		ValidUntil null.Time   `db:"valid_until"`
		CreatedBy  null.String `db:"created_by"`
		CreatedAt  null.Time   `db:"created_at"`
		Notes      string      `db:"notes"`
	}

	codeUsageRow struct {
		ID           string      `db:"id"`
		CodeID       string      `db:"code_id"`
		UserID       string      `db:"user_id"`
		EnrollmentID null.String `db:"enrollment_id"`
		UsedAt       null.Time   `db:"used_at"`
		IPAddress    string      `db:"ip_address"`
	}
)

const (
	semesterColumns   = "id, academic_year_id, term, start_date, end_date, is_current"
	courseColumns     = "id, code, title, description, units, department_id, course_type, is_active, created_at, updated_at"
	curriculumColumns = "id, code, name, department_id, year_introduced, total_units, is_active, created_at"
	offeringSelect    = `SELECT o.id, o.course_id, o.semester_id, o.section, o.instructor_id, o.schedule, o.room,
o.max_students, o.status, o.enrollment_start, o.enrollment_end, o.class_start, o.class_end, o.created_at,
(SELECT COUNT(*) FROM student_enrollment e WHERE e.offering_id = o.id AND e.status = 'enrolled') AS enrolled_count
FROM course_offering o JOIN course c ON c.id = o.course_id`
	enrollmentColumns = `id, student_id, offering_id, status, enrollment_type, midterm_grade, final_grade, final_rating,
enrolled_at, approved_at, approved_by, updated_at`
	studentCurriculumColumns = "id, student_id, curriculum_id, year_started, current_year_level, is_active, assigned_by, assigned_at"
	periodColumns            = "id, name, semester_id, student_category, year_levels, start_date, end_date, is_active, priority_order"
	codeColumns              = "id, code, offering_id, is_active, max_uses, used_count, valid_from, valid_until, created_by, created_at, notes"
)

type courseRepository struct {
	repository
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{repository{db: db}}
}

func (repo courseRepository) deleteByID(ctx context.Context, exec []core.DBExecutor, table, id string, notFound error) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting "+table)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound
	}
	return nil
}

// Departments

func (repo courseRepository) SaveDepartment(ctx context.Context, d course.Department, exec ...core.DBExecutor) (course.Department, error) {
	row := departmentRow{
		ID:          d.ID,
		Code:        d.Code,
		Name:        d.Name,
		Description: d.Description,
		HeadID:      nullID(d.HeadID),
		IsActive:    d.IsActive,
		CreatedAt:   null.TimeFrom(d.CreatedAt.UTC()),
	}
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO department
		(id, code, name, description, head_id, is_active, created_at)
		VALUES (:id, :code, :name, :description, :head_id, :is_active, :created_at)
		ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, name = EXCLUDED.name,
		description = EXCLUDED.description, head_id = EXCLUDED.head_id, is_active = EXCLUDED.is_active`, row)
	if err != nil {
		return course.Department{}, trapUniqueErr(err, course.ErrDuplicate, "saving department")
	}
	return d, nil
}

func (repo courseRepository) fromDepartmentRow(row departmentRow) course.Department {
	return course.Department{
		ID:          row.ID,
		Code:        row.Code,
		Name:        row.Name,
		Description: row.Description,
		HeadID:      row.HeadID.String,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt.Time,
	}
}

func (repo courseRepository) GetDepartment(ctx context.Context, id string, exec ...core.DBExecutor) (course.Department, error) {
	var row departmentRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row,
		"SELECT id, code, name, description, head_id, is_active, created_at FROM department WHERE id = $1", id)
	if err != nil {
		return course.Department{}, trapNoRowsErr(err, course.ErrDepartmentNotFound, "finding department")
	}
	return repo.fromDepartmentRow(row), nil
}

func (repo courseRepository) QueryDepartments(ctx context.Context, exec ...core.DBExecutor) ([]course.Department, error) {
	var rows []departmentRow
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows,
		"SELECT id, code, name, description, head_id, is_active, created_at FROM department ORDER BY code")
	if err != nil {
		return nil, errors.Wrap(err, "querying departments")
	}
	depts := make([]course.Department, 0, len(rows))
	for _, row := range rows {
		depts = append(depts, repo.fromDepartmentRow(row))
	}
	return depts, nil
}

func (repo courseRepository) DeleteDepartment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return repo.deleteByID(ctx, exec, "department", id, course.ErrDepartmentNotFound)
}

// Academic years

func (repo courseRepository) SaveAcademicYear(ctx context.Context, y course.AcademicYear, exec ...core.DBExecutor) (course.AcademicYear, error) {
	_, err := repo.getExec(exec).ExecContext(ctx, `INSERT INTO academic_year (id, year_start, year_end, is_current, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET year_start = EXCLUDED.year_start, year_end = EXCLUDED.year_end, is_current = EXCLUDED.is_current`,
		y.ID, y.YearStart, y.YearEnd, y.IsCurrent, y.CreatedAt.UTC())
	if err != nil {
		return course.AcademicYear{}, trapUniqueErr(err, course.ErrDuplicate, "saving academic year")
	}
	return y, nil
}

func (repo courseRepository) GetAcademicYear(ctx context.Context, id string, exec ...core.DBExecutor) (course.AcademicYear, error) {
	var y course.AcademicYear
	err := repo.getExec(exec).QueryRowxContext(ctx,
		"SELECT id, year_start, year_end, is_current, created_at FROM academic_year WHERE id = $1", id).
		Scan(&y.ID, &y.YearStart, &y.YearEnd, &y.IsCurrent, &y.CreatedAt)
	if err != nil {
		return course.AcademicYear{}, trapNoRowsErr(err, course.ErrAcademicYearNotFound, "finding academic year")
	}
	return y, nil
}

func (repo courseRepository) QueryAcademicYears(ctx context.Context, exec ...core.DBExecutor) ([]course.AcademicYear, error) {
	rows, err := repo.getExec(exec).QueryxContext(ctx,
		"SELECT id, year_start, year_end, is_current, created_at FROM academic_year ORDER BY year_start DESC")
	if err != nil {
		return nil, errors.Wrap(err, "querying academic years")
	}
	defer func() { _ = rows.Close() }()

	years := make([]course.AcademicYear, 0)
	for rows.Next() {
		var y course.AcademicYear
		if err = rows.Scan(&y.ID, &y.YearStart, &y.YearEnd, &y.IsCurrent, &y.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning academic year")
		}
		years = append(years, y)
	}
	return years, errors.Wrap(rows.Err(), "querying academic years")
}

func (repo courseRepository) DeleteAcademicYear(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return repo.deleteByID(ctx, exec, "academic_year", id, course.ErrAcademicYearNotFound)
}

func (repo courseRepository) ClearCurrentAcademicYear(ctx context.Context, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, "UPDATE academic_year SET is_current = false WHERE is_current")
	return errors.Wrap(err, "clearing current academic year")
}

// Semesters

func (repo courseRepository) SaveSemester(ctx context.Context, s course.Semester, exec ...core.DBExecutor) (course.Semester, error) {
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO semester (`+semesterColumns+`)
		VALUES (:id, :academic_year_id, :term, :start_date, :end_date, :is_current)
		ON CONFLICT (id) DO UPDATE SET academic_year_id = EXCLUDED.academic_year_id, term = EXCLUDED.term,
		start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date, is_current = EXCLUDED.is_current`,
		map[string]interface{}{
			"id":               s.ID,
			"academic_year_id": s.AcademicYearID,
			"term":             s.Term,
			"start_date":       s.StartDate.UTC(),
			"end_date":         s.EndDate.UTC(),
			"is_current":       s.IsCurrent,
		})
	if err != nil {
		return course.Semester{}, trapUniqueErr(err, course.ErrDuplicate, "saving semester")
	}
	return s, nil
}

func scanSemesters(rows *sqlx.Rows) ([]course.Semester, error) {
	defer func() { _ = rows.Close() }()

	sems := make([]course.Semester, 0)
	for rows.Next() {
		var s course.Semester
		if err := rows.Scan(&s.ID, &s.AcademicYearID, &s.Term, &s.StartDate, &s.EndDate, &s.IsCurrent); err != nil {
			return nil, errors.Wrap(err, "scanning semester")
		}
		sems = append(sems, s)
	}
	return sems, errors.Wrap(rows.Err(), "querying semesters")
}

func (repo courseRepository) getSemester(ctx context.Context, exec []core.DBExecutor, cond string, args ...interface{}) (course.Semester, error) {
	rows, err := repo.getExec(exec).QueryxContext(ctx, "SELECT "+semesterColumns+" FROM semester WHERE "+cond+" LIMIT 1", args...)
	if err != nil {
		return course.Semester{}, errors.Wrap(err, "finding semester")
	}
	sems, err := scanSemesters(rows)
	if err != nil {
		return course.Semester{}, err
	}
	if len(sems) == 0 {
		return course.Semester{}, course.ErrSemesterNotFound
	}
	return sems[0], nil
}

func (repo courseRepository) GetSemester(ctx context.Context, id string, exec ...core.DBExecutor) (course.Semester, error) {
	return repo.getSemester(ctx, exec, "id = $1", id)
}

func (repo courseRepository) GetCurrentSemester(ctx context.Context, exec ...core.DBExecutor) (course.Semester, error) {
	return repo.getSemester(ctx, exec, "is_current")
}

func (repo courseRepository) QuerySemesters(ctx context.Context, academicYearID string, exec ...core.DBExecutor) ([]course.Semester, error) {
	var w where
	if academicYearID != "" {
		w.add("academic_year_id = ?", academicYearID)
	}
	q, args, err := bind("SELECT "+semesterColumns+" FROM semester"+w.String()+" ORDER BY start_date", w.args...)
	if err != nil {
		return nil, err
	}
	rows, err := repo.getExec(exec).QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying semesters")
	}
	return scanSemesters(rows)
}

func (repo courseRepository) DeleteSemester(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return repo.deleteByID(ctx, exec, "semester", id, course.ErrSemesterNotFound)
}

func (repo courseRepository) ClearCurrentSemester(ctx context.Context, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, "UPDATE semester SET is_current = false WHERE is_current")
	return errors.Wrap(err, "clearing current semester")
}

// Courses

func (repo courseRepository) SaveCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	exe := repo.getExec(exec)
	row := courseRow{
		ID:           c.ID,
		Code:         c.Code,
		Title:        c.Title,
		Description:  c.Description,
		Units:        c.Units,
		DepartmentID: nullID(c.DepartmentID),
		CourseType:   c.CourseType,
		IsActive:     c.IsActive,
		CreatedAt:    null.TimeFrom(c.CreatedAt.UTC()),
		UpdatedAt:    null.TimeFrom(c.UpdatedAt.UTC()),
	}
	_, err := sqlx.NamedExecContext(ctx, exe, `INSERT INTO course (`+courseColumns+`)
		VALUES (:id, :code, :title, :description, :units, :department_id, :course_type, :is_active, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, title = EXCLUDED.title, description = EXCLUDED.description,
		units = EXCLUDED.units, department_id = EXCLUDED.department_id, course_type = EXCLUDED.course_type,
		is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at`, row)
	if err != nil {
		return course.Course{}, trapUniqueErr(err, course.ErrDuplicate, "saving course")
	}

	if _, err = exe.ExecContext(ctx, "DELETE FROM course_prerequisite WHERE course_id = $1", c.ID); err != nil {
		return course.Course{}, errors.Wrap(err, "clearing prerequisites")
	}
	for _, pre := range c.Prerequisites {
		_, err = exe.ExecContext(ctx,
			"INSERT INTO course_prerequisite (course_id, prerequisite_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", c.ID, pre)
		if err != nil {
			return course.Course{}, errors.Wrap(err, "saving prerequisite")
		}
	}
	return c, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	courses, err := repo.QueryCourses(ctx, course.CourseFilter{IDs: []string{id}}, exec...)
	if err != nil {
		return course.Course{}, err
	}
	if len(courses) == 0 {
		return course.Course{}, course.ErrCourseNotFound
	}
	return courses[0], nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter course.CourseFilter, exec ...core.DBExecutor) ([]course.Course, error) {
	exe := repo.getExec(exec)

	var w where
	if len(filter.IDs) > 0 {
		w.add("id IN (?)", filter.IDs)
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(code ILIKE ? OR title ILIKE ?)", val, val)
	}
	if filter.DepartmentID != "" {
		w.add("department_id = ?", filter.DepartmentID)
	}
	if filter.CourseType != "" {
		w.add("course_type = ?", filter.CourseType)
	}
	if filter.ActiveOnly {
		w.add("is_active")
	}
	q, args, err := bind("SELECT "+courseColumns+" FROM course"+w.String()+" ORDER BY code", w.args...)
	if err != nil {
		return nil, err
	}
	var rows []courseRow
	if err = sqlx.SelectContext(ctx, exe, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}

	courses := make([]course.Course, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, course.Course{
			ID:            row.ID,
			Code:          row.Code,
			Title:         row.Title,
			Description:   row.Description,
			Units:         row.Units,
			DepartmentID:  row.DepartmentID.String,
			CourseType:    row.CourseType,
			Prerequisites: []string{},
			IsActive:      row.IsActive,
			CreatedAt:     row.CreatedAt.Time,
			UpdatedAt:     row.UpdatedAt.Time,
		})
		ids = append(ids, row.ID)
	}
	if len(ids) == 0 {
		return courses, nil
	}

	q, args, err = bind("SELECT course_id, prerequisite_id FROM course_prerequisite WHERE course_id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	var prereqs []struct {
		CourseID       string `db:"course_id"`
		PrerequisiteID string `db:"prerequisite_id"`
	}
	if err = sqlx.SelectContext(ctx, exe, &prereqs, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying prerequisites")
	}
	byCourse := make(map[string][]string, len(prereqs))
	for _, p := range prereqs {
		byCourse[p.CourseID] = append(byCourse[p.CourseID], p.PrerequisiteID)
	}
	for i := range courses {
		if pre, ok := byCourse[courses[i].ID]; ok {
			courses[i].Prerequisites = pre
		}
	}
	return courses, nil
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return repo.deleteByID(ctx, exec, "course", id, course.ErrCourseNotFound)
}

// Curricula

func (repo courseRepository) SaveCurriculum(ctx context.Context, c course.Curriculum, exec ...core.DBExecutor) (course.Curriculum, error) {
	row := curriculumRow{
		ID:             c.ID,
		Code:           c.Code,
		Name:           c.Name,
		DepartmentID:   nullID(c.DepartmentID),
		YearIntroduced: c.YearIntroduced,
		TotalUnits:     c.TotalUnits,
		IsActive:       c.IsActive,
		CreatedAt:      null.TimeFrom(c.CreatedAt.UTC()),
	}
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO curriculum (`+curriculumColumns+`)
		VALUES (:id, :code, :name, :department_id, :year_introduced, :total_units, :is_active, :created_at)
		ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, name = EXCLUDED.name, department_id = EXCLUDED.department_id,
		year_introduced = EXCLUDED.year_introduced, total_units = EXCLUDED.total_units, is_active = EXCLUDED.is_active`, row)
	if err != nil {
		return course.Curriculum{}, trapUniqueErr(err, course.ErrDuplicate, "saving curriculum")
	}
	return c, nil
}

func (repo courseRepository) queryCurricula(ctx context.Context, exec []core.DBExecutor, w where) ([]course.Curriculum, error) {
	q, args, err := bind("SELECT "+curriculumColumns+" FROM curriculum"+w.String()+" ORDER BY code", w.args...)
	if err != nil {
		return nil, err
	}
	var rows []curriculumRow
	if err = sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying curricula")
	}
	curricula := make([]course.Curriculum, 0, len(rows))
	for _, row := range rows {
		curricula = append(curricula, course.Curriculum{
			ID:             row.ID,
			Code:           row.Code,
			Name:           row.Name,
			DepartmentID:   row.DepartmentID.String,
			YearIntroduced: row.YearIntroduced,
			TotalUnits:     row.TotalUnits,
			IsActive:       row.IsActive,
			CreatedAt:      row.CreatedAt.Time,
		})
	}
	return curricula, nil
}

func (repo courseRepository) GetCurriculum(ctx context.Context, id string, exec ...core.DBExecutor) (course.Curriculum, error) {
	var w where
	w.add("id = ?", id)
	curricula, err := repo.queryCurricula(ctx, exec, w)
	if err != nil {
		return course.Curriculum{}, err
	}
	if len(curricula) == 0 {
		return course.Curriculum{}, course.ErrCurriculumNotFound
	}
	return curricula[0], nil
}

func (repo courseRepository) QueryCurricula(ctx context.Context, exec ...core.DBExecutor) ([]course.Curriculum, error) {
	return repo.queryCurricula(ctx, exec, where{})
}

func (repo courseRepository) DeleteCurriculum(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return repo.deleteByID(ctx, exec, "curriculum", id, course.ErrCurriculumNotFound)
}

func (repo courseRepository) SaveCurriculumCourse(ctx context.Context, cc course.CurriculumCourse, exec ...core.DBExecutor) (course.CurriculumCourse, error) {
	_, err := repo.getExec(exec).ExecContext(ctx, `INSERT INTO curriculum_course
		(id, curriculum_id, course_id, year_level, term, is_required) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET curriculum_id = EXCLUDED.curriculum_id, course_id = EXCLUDED.course_id,
		year_level = EXCLUDED.year_level, term = EXCLUDED.term, is_required = EXCLUDED.is_required`,
		cc.ID, cc.CurriculumID, cc.CourseID, cc.YearLevel, cc.Term, cc.IsRequired)
	if err != nil {
		return course.CurriculumCourse{}, trapUniqueErr(err, course.ErrDuplicate, "saving curriculum course")
	}
	if c, err := repo.GetCourse(ctx, cc.CourseID, exec...); err == nil {
		cc.Course = &c
	}
	return cc, nil
}

func (repo courseRepository) QueryCurriculumCourses(ctx context.Context, filter course.CurriculumCourseFilter, exec ...core.DBExecutor) ([]course.CurriculumCourse, error) {
	exe := repo.getExec(exec)

	var w where
	if filter.CurriculumID != "" {
		w.add("cc.curriculum_id = ?", filter.CurriculumID)
	}
	if filter.YearLevel != 0 {
		w.add("cc.year_level = ?", filter.YearLevel)
	}
	if filter.Term != "" {
		w.add("cc.term = ?", filter.Term)
	}
	if filter.RequiredOnly {
		w.add("cc.is_required")
	}
	q, args, err := bind(`SELECT cc.id, cc.curriculum_id, cc.course_id, cc.year_level, cc.term, cc.is_required
		FROM curriculum_course cc JOIN course c ON c.id = cc.course_id`+w.String()+
		" ORDER BY cc.year_level, cc.term, c.code", w.args...)
	if err != nil {
		return nil, err
	}
	rows, err := exe.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying curriculum courses")
	}
	defer func() { _ = rows.Close() }()

	ccs := make([]course.CurriculumCourse, 0)
	courseIDs := make([]string, 0)
	for rows.Next() {
		var cc course.CurriculumCourse
		if err = rows.Scan(&cc.ID, &cc.CurriculumID, &cc.CourseID, &cc.YearLevel, &cc.Term, &cc.IsRequired); err != nil {
			return nil, errors.Wrap(err, "scanning curriculum course")
		}
		ccs = append(ccs, cc)
		courseIDs = append(courseIDs, cc.CourseID)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "querying curriculum courses")
	}
	if len(courseIDs) == 0 {
		return ccs, nil
	}

	courses, err := repo.QueryCourses(ctx, course.CourseFilter{IDs: courseIDs}, exec...)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]course.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}
	for i := range ccs {
		if c, ok := byID[ccs[i].CourseID]; ok {
			ccs[i].Course = &c
		}
	}
	return ccs, nil
}

func (repo courseRepository) DeleteCurriculumCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return repo.deleteByID(ctx, exec, "curriculum_course", id, course.ErrCurriculumCourseNotFound)
}

// Offerings

func (repo courseRepository) SaveOffering(ctx context.Context, o course.Offering, exec ...core.DBExecutor) (course.Offering, error) {
	row := offeringRow{
		ID:              o.ID,
		CourseID:        o.CourseID,
		SemesterID:      o.SemesterID,
		Section:         o.Section,
		InstructorID:    nullID(o.InstructorID),
		Schedule:        o.Schedule,
		Room:            o.Room,
		MaxStudents:     o.MaxStudents,
		Status:          o.Status,
		EnrollmentStart: null.TimeFromPtr(o.EnrollmentStart),
		EnrollmentEnd:   null.TimeFromPtr(o.EnrollmentEnd),
		ClassStart:      null.TimeFromPtr(o.ClassStart),
		ClassEnd:        null.TimeFromPtr(o.ClassEnd),
		CreatedAt:       null.TimeFrom(o.CreatedAt.UTC()),
	}
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO course_offering
		(id, course_id, semester_id, section, instructor_id, schedule, room, max_students, status,
		enrollment_start, enrollment_end, class_start, class_end, created_at)
		VALUES (:id, :course_id, :semester_id, :section, :instructor_id, :schedule, :room, :max_students, :status,
		:enrollment_start, :enrollment_end, :class_start, :class_end, :created_at)
		ON CONFLICT (id) DO UPDATE SET course_id = EXCLUDED.course_id, semester_id = EXCLUDED.semester_id,
		section = EXCLUDED.section, instructor_id = EXCLUDED.instructor_id, schedule = EXCLUDED.schedule,
		room = EXCLUDED.room, max_students = EXCLUDED.max_students, status = EXCLUDED.status,
		enrollment_start = EXCLUDED.enrollment_start, enrollment_end = EXCLUDED.enrollment_end,
		class_start = EXCLUDED.class_start, class_end = EXCLUDED.class_end`, row)
	if err != nil {
		return course.Offering{}, trapUniqueErr(err, course.ErrDuplicate, "saving offering")
	}
	return repo.GetOffering(ctx, o.ID, exec...)
}

func (repo courseRepository) GetOffering(ctx context.Context, id string, exec ...core.DBExecutor) (course.Offering, error) {
	offerings, err := repo.QueryOfferings(ctx, course.OfferingFilter{IDs: []string{id}}, exec...)
	if err != nil {
		return course.Offering{}, err
	}
	if len(offerings) == 0 {
		return course.Offering{}, course.ErrOfferingNotFound
	}
	return offerings[0], nil
}

func (repo courseRepository) QueryOfferings(ctx context.Context, filter course.OfferingFilter, exec ...core.DBExecutor) ([]course.Offering, error) {
	var w where
	if len(filter.IDs) > 0 {
		w.add("o.id IN (?)", filter.IDs)
	}
	if filter.SemesterID != "" {
		w.add("o.semester_id = ?", filter.SemesterID)
	}
	if len(filter.CourseIDs) > 0 {
		w.add("o.course_id IN (?)", filter.CourseIDs)
	}
	if filter.InstructorID != "" {
		w.add("o.instructor_id = ?", filter.InstructorID)
	}
	if len(filter.Statuses) > 0 {
		w.add("o.status IN (?)", filter.Statuses)
	}
	q, args, err := bind(offeringSelect+w.String()+" ORDER BY c.code, o.section", w.args...)
	if err != nil {
		return nil, err
	}
	var rows []offeringRow
	if err = sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying offerings")
	}
	offerings := make([]course.Offering, 0, len(rows))
	for _, row := range rows {
		offerings = append(offerings, course.Offering{
			ID:              row.ID,
			CourseID:        row.CourseID,
			SemesterID:      row.SemesterID,
			Section:         row.Section,
			InstructorID:    row.InstructorID.String,
			Schedule:        row.Schedule,
			Room:            row.Room,
			MaxStudents:     row.MaxStudents,
			Status:          row.Status,
			EnrollmentStart: row.EnrollmentStart.Ptr(),
			EnrollmentEnd:   row.EnrollmentEnd.Ptr(),
			ClassStart:      row.ClassStart.Ptr(),
			ClassEnd:        row.ClassEnd.Ptr(),
			CreatedAt:       row.CreatedAt.Time,
			EnrolledCount:   row.EnrolledCount,
		})
	}
	return offerings, nil
}

func (repo courseRepository) DeleteOffering(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return repo.deleteByID(ctx, exec, "course_offering", id, course.ErrOfferingNotFound)
}

// Enrollments

func (repo courseRepository) SaveEnrollment(ctx context.Context, e course.Enrollment, exec ...core.DBExecutor) (course.Enrollment, error) {
	row := enrollmentRow{
		ID:             e.ID,
		StudentID:      e.StudentID,
		OfferingID:     e.OfferingID,
		Status:         e.Status,
		EnrollmentType: e.EnrollmentType,
		MidtermGrade:   null.Float64FromPtr(e.MidtermGrade),
		FinalGrade:     null.Float64FromPtr(e.FinalGrade),
		FinalRating:    null.Float64FromPtr(e.FinalRating),
		EnrolledAt:     null.TimeFrom(e.EnrolledAt.UTC()),
		ApprovedAt:     null.TimeFromPtr(e.ApprovedAt),
		ApprovedBy:     nullID(e.ApprovedBy),
		UpdatedAt:      null.TimeFrom(e.UpdatedAt.UTC()),
	}
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO student_enrollment (`+enrollmentColumns+`)
		VALUES (:id, :student_id, :offering_id, :status, :enrollment_type, :midterm_grade, :final_grade, :final_rating,
		:enrolled_at, :approved_at, :approved_by, :updated_at)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, enrollment_type = EXCLUDED.enrollment_type,
		midterm_grade = EXCLUDED.midterm_grade, final_grade = EXCLUDED.final_grade, final_rating = EXCLUDED.final_rating,
		approved_at = EXCLUDED.approved_at, approved_by = EXCLUDED.approved_by, updated_at = EXCLUDED.updated_at`, row)
	if err != nil {
		if isUniqueViolation(err, "") {
			return course.Enrollment{}, course.ErrAlreadyEnrolled
		}
		return course.Enrollment{}, errors.Wrap(err, "saving enrollment")
	}
	return e, nil
}

func (repo courseRepository) fromEnrollmentRow(row enrollmentRow) course.Enrollment {
	return course.Enrollment{
		ID:             row.ID,
		StudentID:      row.StudentID,
		OfferingID:     row.OfferingID,
		Status:         row.Status,
		EnrollmentType: row.EnrollmentType,
		MidtermGrade:   row.MidtermGrade.Ptr(),
		FinalGrade:     row.FinalGrade.Ptr(),
		FinalRating:    row.FinalRating.Ptr(),
		EnrolledAt:     row.EnrolledAt.Time,
		ApprovedAt:     row.ApprovedAt.Ptr(),
		ApprovedBy:     row.ApprovedBy.String,
		UpdatedAt:      row.UpdatedAt.Time,
	}
}

func (repo courseRepository) getEnrollment(ctx context.Context, exec []core.DBExecutor, cond string, args ...interface{}) (course.Enrollment, error) {
	var row enrollmentRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, "SELECT "+enrollmentColumns+" FROM student_enrollment WHERE "+cond, args...)
	if err != nil {
		return course.Enrollment{}, trapNoRowsErr(err, course.ErrEnrollmentNotFound, "finding enrollment")
	}
	return repo.fromEnrollmentRow(row), nil
}

func (repo courseRepository) GetEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) (course.Enrollment, error) {
	return repo.getEnrollment(ctx, exec, "id = $1", id)
}

func (repo courseRepository) FindEnrollment(ctx context.Context, studentID, offeringID string, exec ...core.DBExecutor) (course.Enrollment, error) {
	return repo.getEnrollment(ctx, exec, "student_id = $1 AND offering_id = $2", studentID, offeringID)
}

func (repo courseRepository) QueryEnrollments(ctx context.Context, filter course.EnrollmentFilter, exec ...core.DBExecutor) ([]course.Enrollment, error) {
	var w where
	if len(filter.IDs) > 0 {
		w.add("id IN (?)", filter.IDs)
	}
	if filter.StudentID != "" {
		w.add("student_id = ?", filter.StudentID)
	}
	if len(filter.OfferingIDs) > 0 {
		w.add("offering_id IN (?)", filter.OfferingIDs)
	}
	if filter.SemesterID != "" {
		w.add("offering_id IN (SELECT id FROM course_offering WHERE semester_id = ?)", filter.SemesterID)
	}
	if len(filter.Statuses) > 0 {
		w.add("status IN (?)", filter.Statuses)
	}
	q, args, err := bind("SELECT "+enrollmentColumns+" FROM student_enrollment"+w.String()+" ORDER BY enrolled_at", w.args...)
	if err != nil {
		return nil, err
	}
	var rows []enrollmentRow
	if err = sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]course.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, repo.fromEnrollmentRow(row))
	}
	return enrollments, nil
}

func (repo courseRepository) CountEnrollments(ctx context.Context, offeringID string, statuses []string, exec ...core.DBExecutor) (int, error) {
	var w where
	w.add("offering_id = ?", offeringID)
	if len(statuses) > 0 {
		w.add("status IN (?)", statuses)
	}
	q, args, err := bind("SELECT COUNT(*) FROM student_enrollment"+w.String(), w.args...)
	if err != nil {
		return 0, err
	}
	var n int
	if err = sqlx.GetContext(ctx, repo.getExec(exec), &n, q, args...); err != nil {
		return 0, errors.Wrap(err, "counting enrollments")
	}
	return n, nil
}

// Student curricula

func (repo courseRepository) SaveStudentCurriculum(ctx context.Context, sc course.StudentCurriculum, exec ...core.DBExecutor) (course.StudentCurriculum, error) {
	row := studentCurriculumRow{
		ID:               sc.ID,
		StudentID:        sc.StudentID,
		CurriculumID:     sc.CurriculumID,
		YearStarted:      sc.YearStarted,
		CurrentYearLevel: sc.CurrentYearLevel,
		IsActive:         sc.IsActive,
		AssignedBy:       nullID(sc.AssignedBy),
		AssignedAt:       null.TimeFrom(sc.AssignedAt.UTC()),
	}
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO student_curriculum (`+studentCurriculumColumns+`)
		VALUES (:id, :student_id, :curriculum_id, :year_started, :current_year_level, :is_active, :assigned_by, :assigned_at)
		ON CONFLICT (id) DO UPDATE SET year_started = EXCLUDED.year_started,
		current_year_level = EXCLUDED.current_year_level, is_active = EXCLUDED.is_active`, row)
	if err != nil {
		return course.StudentCurriculum{}, trapUniqueErr(err, course.ErrDuplicate, "saving student curriculum")
	}
	return sc, nil
}

func (repo courseRepository) QueryStudentCurricula(ctx context.Context, filter course.StudentCurriculumFilter, exec ...core.DBExecutor) ([]course.StudentCurriculum, error) {
	var w where
	if filter.StudentID != "" {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.CurriculumID != "" {
		w.add("curriculum_id = ?", filter.CurriculumID)
	}
	if filter.YearLevel != 0 {
		w.add("current_year_level = ?", filter.YearLevel)
	}
	if filter.ActiveOnly {
		w.add("is_active")
	}
	q, args, err := bind("SELECT "+studentCurriculumColumns+" FROM student_curriculum"+w.String()+" ORDER BY assigned_at DESC", w.args...)
	if err != nil {
		return nil, err
	}
	var rows []studentCurriculumRow
	if err = sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying student curricula")
	}
	scs := make([]course.StudentCurriculum, 0, len(rows))
	for _, row := range rows {
		scs = append(scs, course.StudentCurriculum{
			ID:               row.ID,
			StudentID:        row.StudentID,
			CurriculumID:     row.CurriculumID,
			YearStarted:      row.YearStarted,
			CurrentYearLevel: row.CurrentYearLevel,
			IsActive:         row.IsActive,
			AssignedBy:       row.AssignedBy.String,
			AssignedAt:       row.AssignedAt.Time,
		})
	}
	return scs, nil
}

func (repo courseRepository) DeleteStudentCurriculum(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return repo.deleteByID(ctx, exec, "student_curriculum", id, course.ErrStudentCurriculumNotFound)
}

// Enrollment periods

func (repo courseRepository) SavePeriod(ctx context.Context, p course.EnrollmentPeriod, exec ...core.DBExecutor) (course.EnrollmentPeriod, error) {
	_, err := repo.getExec(exec).ExecContext(ctx, `INSERT INTO enrollment_period (`+periodColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, semester_id = EXCLUDED.semester_id,
		student_category = EXCLUDED.student_category, year_levels = EXCLUDED.year_levels, start_date = EXCLUDED.start_date,
		end_date = EXCLUDED.end_date, is_active = EXCLUDED.is_active, priority_order = EXCLUDED.priority_order`,
		p.ID, p.Name, p.SemesterID, p.StudentCategory, p.YearLevels, p.StartDate.UTC(), p.EndDate.UTC(), p.IsActive, p.PriorityOrder)
	if err != nil {
		return course.EnrollmentPeriod{}, errors.Wrap(err, "saving enrollment period")
	}
	return p, nil
}

func (repo courseRepository) queryPeriods(ctx context.Context, exec []core.DBExecutor, w where) ([]course.EnrollmentPeriod, error) {
	q, args, err := bind("SELECT "+periodColumns+" FROM enrollment_period"+w.String()+" ORDER BY priority_order, start_date", w.args...)
	if err != nil {
		return nil, err
	}
	rows, err := repo.getExec(exec).QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollment periods")
	}
	defer func() { _ = rows.Close() }()

	periods := make([]course.EnrollmentPeriod, 0)
	for rows.Next() {
		var p course.EnrollmentPeriod
		err = rows.Scan(&p.ID, &p.Name, &p.SemesterID, &p.StudentCategory, &p.YearLevels, &p.StartDate, &p.EndDate, &p.IsActive, &p.PriorityOrder)
		if err != nil {
			return nil, errors.Wrap(err, "scanning enrollment period")
		}
		periods = append(periods, p)
	}
	return periods, errors.Wrap(rows.Err(), "querying enrollment periods")
}

func (repo courseRepository) GetPeriod(ctx context.Context, id string, exec ...core.DBExecutor) (course.EnrollmentPeriod, error) {
	var w where
	w.add("id = ?", id)
	periods, err := repo.queryPeriods(ctx, exec, w)
	if err != nil {
		return course.EnrollmentPeriod{}, err
	}
	if len(periods) == 0 {
		return course.EnrollmentPeriod{}, course.ErrPeriodNotFound
	}
	return periods[0], nil
}

func (repo courseRepository) QueryPeriods(ctx context.Context, semesterID string, exec ...core.DBExecutor) ([]course.EnrollmentPeriod, error) {
	var w where
	if semesterID != "" {
		w.add("semester_id = ?", semesterID)
	}
	return repo.queryPeriods(ctx, exec, w)
}

func (repo courseRepository) DeletePeriod(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return repo.deleteByID(ctx, exec, "enrollment_period", id, course.ErrPeriodNotFound)
}

// Enrollment codes

func (repo courseRepository) SaveCode(ctx context.Context, c course.EnrollmentCode, exec ...core.DBExecutor) (course.EnrollmentCode, error) {
	row := codeRow{
		ID:         c.ID,
		Code:       c.Code,
		OfferingID: c.OfferingID,
		IsActive:   c.IsActive,
		MaxUses:    c.MaxUses,
		UsedCount:  c.UsedCount,
		ValidFrom:  null.TimeFrom(c.ValidFrom.UTC()),
		ValidUntil: null.TimeFrom(c.ValidUntil.UTC()),
		CreatedBy:  nullID(c.CreatedBy),
		CreatedAt:  null.TimeFrom(c.CreatedAt.UTC()),
		Notes:      c.Notes,
	}
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO enrollment_code (`+codeColumns+`)
		VALUES (:id, :code, :offering_id, :is_active, :max_uses, :used_count, :valid_from, :valid_until,
		:created_by, :created_at, :notes)
		ON CONFLICT (id) DO UPDATE SET is_active = EXCLUDED.is_active, max_uses = EXCLUDED.max_uses,
		used_count = EXCLUDED.used_count, valid_from = EXCLUDED.valid_from, valid_until = EXCLUDED.valid_until,
		notes = EXCLUDED.notes`, row)
	if err != nil {
		return course.EnrollmentCode{}, trapUniqueErr(err, course.ErrDuplicate, "saving enrollment code")
	}
	return c, nil
}

func (repo courseRepository) queryCodes(ctx context.Context, exec []core.DBExecutor, w where) ([]course.EnrollmentCode, error) {
	q, args, err := bind("SELECT "+codeColumns+" FROM enrollment_code"+w.String()+" ORDER BY created_at DESC", w.args...)
	if err != nil {
		return nil, err
	}
	var rows []codeRow
	if err = sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollment codes")
	}
	codes := make([]course.EnrollmentCode, 0, len(rows))
	for _, row := range rows {
		codes = append(codes, course.EnrollmentCode{
			ID:         row.ID,
			Code:       row.Code,
			OfferingID: row.OfferingID,
			IsActive:   row.IsActive,
			MaxUses:    row.MaxUses,
			UsedCount:  row.UsedCount,
			ValidFrom:  row.ValidFrom.Time,
			ValidUntil: row.ValidUntil.Time,
			CreatedBy:  row.CreatedBy.String,
			CreatedAt:  row.CreatedAt.Time,
			Notes:      row.Notes,
		})
	}
	return codes, nil
}

func (repo courseRepository) getCode(ctx context.Context, exec []core.DBExecutor, w where) (course.EnrollmentCode, error) {
	codes, err := repo.queryCodes(ctx, exec, w)
	if err != nil {
		return course.EnrollmentCode{}, err
	}
	if len(codes) == 0 {
		return course.EnrollmentCode{}, course.ErrCodeNotFound
	}
	return codes[0], nil
}

func (repo courseRepository) GetCode(ctx context.Context, id string, exec ...core.DBExecutor) (course.EnrollmentCode, error) {
	var w where
	w.add("id = ?", id)
	return repo.getCode(ctx, exec, w)
}

func (repo courseRepository) GetCodeByCode(ctx context.Context, code string, exec ...core.DBExecutor) (course.EnrollmentCode, error) {
	var w where
	w.add("code = ?", code)
	return repo.getCode(ctx, exec, w)
}

func (repo courseRepository) QueryCodes(ctx context.Context, filter course.CodeFilter, exec ...core.DBExecutor) ([]course.EnrollmentCode, error) {
	var w where
	if len(filter.OfferingIDs) > 0 {
		w.add("offering_id IN (?)", filter.OfferingIDs)
	}
	if filter.CreatedBy != "" {
		w.add("created_by = ?", filter.CreatedBy)
	}
	return repo.queryCodes(ctx, exec, w)
}

func (repo courseRepository) CreateCodeUsage(ctx context.Context, u course.CodeUsage, exec ...core.DBExecutor) (course.CodeUsage, error) {
	row := codeUsageRow{
		ID:           u.ID,
		CodeID:       u.CodeID,
		UserID:       u.UserID,
		EnrollmentID: nullID(u.EnrollmentID),
		UsedAt:       null.TimeFrom(u.UsedAt.UTC()),
		IPAddress:    u.IPAddress,
	}
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO enrollment_code_usage
		(id, code_id, user_id, enrollment_id, used_at, ip_address)
		VALUES (:id, :code_id, :user_id, :enrollment_id, :used_at, :ip_address)`, row)
	if err != nil {
		return course.CodeUsage{}, trapUniqueErr(err, course.ErrDuplicate, "saving code usage")
	}
	return u, nil
}

func (repo courseRepository) HasUsedCode(ctx context.Context, codeID, userID string, exec ...core.DBExecutor) (bool, error) {
	var used bool
	err := sqlx.GetContext(ctx, repo.getExec(exec), &used,
		"SELECT EXISTS (SELECT 1 FROM enrollment_code_usage WHERE code_id = $1 AND user_id = $2)", codeID, userID)
	if err != nil {
		return false, errors.Wrap(err, "checking code usage")
	}
	return used, nil
}
