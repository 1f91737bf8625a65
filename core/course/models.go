package course

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spist/campus/core"
)

// Semester terms
const (
	TermFirst  = "1st"
	TermSecond = "2nd"
	TermSummer = "summer"
)

var termLabels = map[string]string{
	TermFirst:  "1st Semester",
	TermSecond: "2nd Semester",
	TermSummer: "Summer",
}

// Course types
const (
	TypeCore      = "core"
	TypeGeneral   = "general"
	TypeElective  = "elective"
	TypePracticum = "practicum"
	TypeThesis    = "thesis"
)

// Offering statuses
const (
	OfferingPlanning  = "planning"
	OfferingOpen      = "open"
	OfferingClosed    = "closed"
	OfferingOngoing   = "ongoing"
	OfferingCompleted = "completed"
	OfferingCancelled = "cancelled"
)

// Enrollment statuses
const (
	StatusPending    = "pending"
	StatusEnrolled   = "enrolled"
	StatusWaitlisted = "waitlisted"
	StatusDropped    = "dropped"
	StatusFailed     = "failed"
	StatusPassed     = "passed"
	StatusIncomplete = "incomplete"
)

// Enrollment types
const (
	EnrollRegular   = "regular"
	EnrollLate      = "late"
	EnrollCross     = "cross_enrollment"
	EnrollMakeup    = "makeup"
	EnrollOverload  = "overload"
	defaultMaxSeats = 40
)

// Student categories of enrollment periods
const (
	CategoryAll        = "all"
	CategoryRegular    = "regular"
	CategoryIrregular  = "irregular"
	CategoryTransferee = "transferee"
	CategoryNew        = "new"
	CategorySenior     = "senior"
)

type Department struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	HeadID      string    `json:"head_id"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type AcademicYear struct {
	ID        string    `json:"id"`
	YearStart int       `json:"year_start"`
	YearEnd   int       `json:"year_end"`
	IsCurrent bool      `json:"is_current"`
	CreatedAt time.Time `json:"created_at"`
}

func (y AcademicYear) String() string {
	return fmt.Sprintf("%d-%d", y.YearStart, y.YearEnd)
}

type Semester struct {
	ID             string    `json:"id"`
	AcademicYearID string    `json:"academic_year_id"`
	Term           string    `json:"term"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	IsCurrent      bool      `json:"is_current"`
}

func (s Semester) TermLabel() string {
	return termLabels[s.Term]
}

type Course struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Units         int       `json:"units"`
	DepartmentID  string    `json:"department_id"`
	CourseType    string    `json:"course_type"`
	Prerequisites []string  `json:"prerequisites"` // course IDs
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Curriculum struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	DepartmentID   string    `json:"department_id"`
	YearIntroduced int       `json:"year_introduced"`
	TotalUnits     int       `json:"total_units"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// CurriculumCourse places a Course in a Curriculum at a given year level and term.
type CurriculumCourse struct {
	ID           string  `json:"id"`
	CurriculumID string  `json:"curriculum_id"`
	CourseID     string  `json:"course_id"`
	YearLevel    int     `json:"year_level"`
	Term         string  `json:"term"`
	IsRequired   bool    `json:"is_required"`
	Course       *Course `json:"course,omitempty"`
}

type Offering struct {
	ID              string     `json:"id"`
	CourseID        string     `json:"course_id"`
	SemesterID      string     `json:"semester_id"`
	Section         string     `json:"section"`
	InstructorID    string     `json:"instructor_id"`
	Schedule        string     `json:"schedule"`
	Room            string     `json:"room"`
	MaxStudents     int        `json:"max_students"`
	Status          string     `json:"status"`
	EnrollmentStart *time.Time `json:"enrollment_start"`
	EnrollmentEnd   *time.Time `json:"enrollment_end"`
	ClassStart      *time.Time `json:"class_start"`
	ClassEnd        *time.Time `json:"class_end"`
	CreatedAt       time.Time  `json:"created_at"`

	// computed by repositories
	EnrolledCount int     `json:"enrolled_count"`
	Course        *Course `json:"course,omitempty"`
}

func (o Offering) AvailableSlots() int {
	return o.MaxStudents - o.EnrolledCount
}

func (o Offering) IsFull() bool {
	return o.EnrolledCount >= o.MaxStudents
}

type Enrollment struct {
	ID             string     `json:"id"`
	StudentID      string     `json:"student_id"`
	OfferingID     string     `json:"offering_id"`
	Status         string     `json:"status"`
	EnrollmentType string     `json:"enrollment_type"`
	MidtermGrade   *float64   `json:"midterm_grade"`
	FinalGrade     *float64   `json:"final_grade"`
	FinalRating    *float64   `json:"final_rating"`
	EnrolledAt     time.Time  `json:"enrolled_at"`
	ApprovedAt     *time.Time `json:"approved_at"`
	ApprovedBy     string     `json:"approved_by"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Offering *Offering `json:"offering,omitempty"`
}

// Cancellable reports whether the student may still drop the enrollment.
func (e Enrollment) Cancellable() bool {
	return e.Status == StatusPending || e.Status == StatusEnrolled || e.Status == StatusWaitlisted
}

// StudentCurriculum assigns a student to a Curriculum, used by bulk enrollment.
type StudentCurriculum struct {
	ID               string    `json:"id"`
	StudentID        string    `json:"student_id"`
	CurriculumID     string    `json:"curriculum_id"`
	YearStarted      int       `json:"year_started"`
	CurrentYearLevel int       `json:"current_year_level"`
	IsActive         bool      `json:"is_active"`
	AssignedBy       string    `json:"assigned_by"`
	AssignedAt       time.Time `json:"assigned_at"`
}

type EnrollmentPeriod struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	SemesterID      string    `json:"semester_id"`
	StudentCategory string    `json:"student_category"`
	YearLevels      string    `json:"year_levels"` // CSV, empty for all
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	IsActive        bool      `json:"is_active"`
	PriorityOrder   int       `json:"priority_order"`
}

func (p EnrollmentPeriod) IsOpen(now time.Time) bool {
	return p.IsActive && !now.Before(p.StartDate) && !now.After(p.EndDate)
}

// AppliesTo reports whether the period covers students of the given year level.
func (p EnrollmentPeriod) AppliesTo(yearLevel int) bool {
	levels := core.SplitCSV(p.YearLevels)
	if len(levels) == 0 {
		return true
	}
	return core.ContainsString(levels, strconv.Itoa(yearLevel))
}

type EnrollmentCode struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	OfferingID string    `json:"offering_id"`
	IsActive   bool      `json:"is_active"`
	MaxUses    int       `json:"max_uses"`
	UsedCount  int       `json:"used_count"`
	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	Notes      string    `json:"notes"`
}

func (c EnrollmentCode) IsValid(now time.Time) bool {
	return c.IsActive && !now.Before(c.ValidFrom) && !now.After(c.ValidUntil) && c.UsedCount < c.MaxUses
}

type CodeUsage struct {
	ID           string    `json:"id"`
	CodeID       string    `json:"code_id"`
	UserID       string    `json:"user_id"`
	EnrollmentID string    `json:"enrollment_id"`
	UsedAt       time.Time `json:"used_at"`
	IPAddress    string    `json:"ip_address"`
}

// Filters

type CourseFilter struct {
	IDs          []string `query:"id"`
	Search       string   `query:"search"`
	DepartmentID string   `query:"department"`
	CourseType   string   `query:"type"`
	ActiveOnly   bool     `query:"active"`
}

func (f *CourseFilter) Clean() {
	f.Search = core.CleanString(f.Search)
}

type CurriculumCourseFilter struct {
	CurriculumID string
	YearLevel    int
	Term         string
	RequiredOnly bool
}

type OfferingFilter struct {
	IDs          []string `query:"id"`
	SemesterID   string   `query:"semester"`
	CourseIDs    []string `query:"course"`
	InstructorID string   `query:"instructor"`
	Statuses     []string `query:"status"`
}

type EnrollmentFilter struct {
	IDs         []string `query:"id"`
	StudentID   string   `query:"student"`
	OfferingIDs []string `query:"offering"`
	SemesterID  string   `query:"semester"`
	Statuses    []string `query:"status"`
}

type StudentCurriculumFilter struct {
	StudentID    string
	CurriculumID string
	YearLevel    int
	ActiveOnly   bool
}

// Payloads

// EnrollResult is what a student gets back after enrolling.
type EnrollResult struct {
	Enrollment Enrollment `json:"enrollment"`
	Message    string     `json:"message"`
}

type BulkEnrollResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Overview is the enrollment page of a student.
type Overview struct {
	CurrentSemester    *Semester          `json:"current_semester"`
	EnrollmentPeriod   *EnrollmentPeriod  `json:"enrollment_period"`
	Curriculum         *StudentCurriculum `json:"curriculum"`
	Enrollments        []Enrollment       `json:"enrollments"`
	EnrolledCount      int                `json:"enrolled_count"`
	PendingCount       int                `json:"pending_count"`
	WaitlistedCount    int                `json:"waitlisted_count"`
	TotalUnits         int                `json:"total_units"`
	AvailableOfferings []Offering         `json:"available_offerings"`
}

type OfferingDetail struct {
	Offering        Offering `json:"offering"`
	TotalEnrolled   int      `json:"total_enrolled"`
	PendingCount    int      `json:"pending_approvals"`
	WaitlistedCount int      `json:"waitlisted"`
	DroppedCount    int      `json:"dropped_students"`
	CompletionRate  float64  `json:"completion_rate"`
}

// ClassListEntry is an enrolled student of an offering.
type ClassListEntry struct {
	StudentUserID string    `json:"student_user_id"`
	StudentID     string    `json:"student_id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Email         string    `json:"email"`
	EnrolledAt    time.Time `json:"enrolled_at"`
	Status        string    `json:"status"`
}

type DashboardStats struct {
	TotalCourses       int `json:"total_courses"`
	TotalStudents      int `json:"total_students"`
	CurrentEnrollments int `json:"current_enrollments"`
	ActiveOfferings    int `json:"active_offerings"`
}

// normalizeCode upper-cases an enrollment code typed by a student.
func normalizeCode(code string) string {
	return strings.ToUpper(core.CleanString(code))
}

type CodeFilter struct {
	OfferingIDs []string
	CreatedBy   string
}
