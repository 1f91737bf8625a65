package course

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spist/campus/core"
)

type DepartmentInput struct {
	Code        string `json:"code" validate:"required,max=10,alphanum_"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	HeadID      string `json:"head_id" validate:"omitempty,uuid"`
	IsActive    *bool  `json:"is_active"`
}

func (in *DepartmentInput) Validate(validate *validator.Validate) error {
	in.Code = strings.ToUpper(core.CleanString(in.Code))
	in.Name = core.CleanString(in.Name)
	in.Description = core.StripTags(core.CleanString(in.Description))
	return validate.Struct(in)
}

type AcademicYearInput struct {
	YearStart int  `json:"year_start" validate:"required,min=1900,max=3000"`
	IsCurrent bool `json:"is_current"`
}

func (in *AcademicYearInput) Validate(validate *validator.Validate) error {
	return validate.Struct(in)
}

type SemesterInput struct {
	AcademicYearID string `json:"academic_year_id" validate:"required,uuid"`
	Term           string `json:"term" validate:"required,oneof=1st 2nd summer"`
	StartDate      string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate        string `json:"end_date" validate:"required,datetime=2006-01-02"`
	IsCurrent      bool   `json:"is_current"`
}

func (in *SemesterInput) Validate(validate *validator.Validate) error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	if in.EndDate < in.StartDate {
		return core.NewFieldError("end_date", "end date must be after start date")
	}
	return nil
}

type CourseInput struct {
	Code          string   `json:"code" validate:"required,max=20"`
	Title         string   `json:"title" validate:"required,max=200"`
	Description   string   `json:"description"`
	Units         int      `json:"units" validate:"required,min=1,max=6"`
	DepartmentID  string   `json:"department_id" validate:"omitempty,uuid"`
	CourseType    string   `json:"course_type" validate:"omitempty,oneof=core general elective practicum thesis"`
	Prerequisites []string `json:"prerequisites" validate:"omitempty,dive,uuid"`
	IsActive      *bool    `json:"is_active"`
}

func (in *CourseInput) Validate(validate *validator.Validate) error {
	in.Code = strings.ToUpper(core.CleanString(in.Code))
	in.Title = core.CleanString(in.Title)
	in.Description = core.StripTags(core.CleanString(in.Description))
	if in.CourseType == "" {
		in.CourseType = TypeCore
	}
	return validate.Struct(in)
}

type CurriculumInput struct {
	Code           string `json:"code" validate:"required,max=20"`
	Name           string `json:"name" validate:"required,max=200"`
	DepartmentID   string `json:"department_id" validate:"omitempty,uuid"`
	YearIntroduced int    `json:"year_introduced" validate:"required,min=1900,max=3000"`
	TotalUnits     int    `json:"total_units" validate:"min=0"`
	IsActive       *bool  `json:"is_active"`
}

func (in *CurriculumInput) Validate(validate *validator.Validate) error {
	in.Code = strings.ToUpper(core.CleanString(in.Code))
	in.Name = core.CleanString(in.Name)
	return validate.Struct(in)
}

type CurriculumCourseInput struct {
	CourseID   string `json:"course_id" validate:"required,uuid"`
	YearLevel  int    `json:"year_level" validate:"required,min=1,max=5"`
	Term       string `json:"term" validate:"required,oneof=1st 2nd summer"`
	IsRequired *bool  `json:"is_required"`
}

func (in *CurriculumCourseInput) Validate(validate *validator.Validate) error {
	return validate.Struct(in)
}

type OfferingInput struct {
	CourseID        string     `json:"course_id" validate:"required,uuid"`
	SemesterID      string     `json:"semester_id" validate:"required,uuid"`
	Section         string     `json:"section" validate:"required,max=10"`
	InstructorID    string     `json:"instructor_id" validate:"omitempty,uuid"`
	Schedule        string     `json:"schedule" validate:"max=100"`
	Room            string     `json:"room" validate:"max=50"`
	MaxStudents     int        `json:"max_students" validate:"min=0,max=1000"`
	Status          string     `json:"status" validate:"omitempty,oneof=planning open closed ongoing completed cancelled"`
	EnrollmentStart *time.Time `json:"enrollment_start"`
	EnrollmentEnd   *time.Time `json:"enrollment_end"`
	ClassStart      string     `json:"class_start" validate:"omitempty,datetime=2006-01-02"`
	ClassEnd        string     `json:"class_end" validate:"omitempty,datetime=2006-01-02"`
}

func (in *OfferingInput) Validate(validate *validator.Validate) error {
	in.Section = strings.ToUpper(core.CleanString(in.Section))
	in.Schedule = core.CleanString(in.Schedule)
	in.Room = core.CleanString(in.Room)
	if in.MaxStudents == 0 {
		in.MaxStudents = defaultMaxSeats
	}
	if in.Status == "" {
		in.Status = OfferingPlanning
	}
	return validate.Struct(in)
}

type EnrollmentPeriodInput struct {
	Name            string    `json:"name" validate:"required,max=100"`
	SemesterID      string    `json:"semester_id" validate:"required,uuid"`
	StudentCategory string    `json:"student_category" validate:"omitempty,oneof=all regular irregular transferee new senior"`
	YearLevels      string    `json:"year_levels" validate:"max=50"`
	StartDate       time.Time `json:"start_date" validate:"required"`
	EndDate         time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	IsActive        *bool     `json:"is_active"`
	PriorityOrder   int       `json:"priority_order" validate:"min=0"`
}

func (in *EnrollmentPeriodInput) Validate(validate *validator.Validate) error {
	in.Name = core.CleanString(in.Name)
	in.YearLevels = strings.Join(core.SplitCSV(in.YearLevels), ",")
	if in.StudentCategory == "" {
		in.StudentCategory = CategoryAll
	}
	return validate.Struct(in)
}

type StudentCurriculumInput struct {
	StudentID        string `json:"student_id" validate:"required,uuid"`
	CurriculumID     string `json:"curriculum_id" validate:"required,uuid"`
	YearStarted      int    `json:"year_started" validate:"required,min=1900,max=3000"`
	CurrentYearLevel int    `json:"current_year_level" validate:"omitempty,min=1,max=5"`
	IsActive         *bool  `json:"is_active"`
}

func (in *StudentCurriculumInput) Validate(validate *validator.Validate) error {
	if in.CurrentYearLevel == 0 {
		in.CurrentYearLevel = 1
	}
	return validate.Struct(in)
}

type BulkEnrollInput struct {
	CurriculumID   string `json:"curriculum_id" validate:"required,uuid"`
	SemesterID     string `json:"semester_id" validate:"required,uuid"`
	YearLevel      int    `json:"year_level" validate:"required,min=1,max=5"`
	Term           string `json:"term" validate:"required,oneof=1st 2nd summer"`
	EnrollmentType string `json:"enrollment_type" validate:"omitempty,oneof=regular late cross_enrollment makeup overload"`
}

func (in *BulkEnrollInput) Validate(validate *validator.Validate) error {
	if in.EnrollmentType == "" {
		in.EnrollmentType = EnrollRegular
	}
	return validate.Struct(in)
}

type GenerateCodesInput struct {
	OfferingID string `json:"offering_id" validate:"required,uuid"`
	Count      int    `json:"count" validate:"min=1,max=50"`
	ValidHours int    `json:"valid_hours" validate:"min=1,max=8760"`
	MaxUses    int    `json:"max_uses" validate:"min=1,max=1000"`
	Notes      string `json:"notes"`
}

func (in *GenerateCodesInput) Validate(validate *validator.Validate) error {
	if in.Count == 0 {
		in.Count = 1
	}
	if in.ValidHours == 0 {
		in.ValidHours = 24
	}
	if in.MaxUses == 0 {
		in.MaxUses = 1
	}
	in.Notes = core.StripTags(core.CleanString(in.Notes))
	return validate.Struct(in)
}

type RedeemCodeInput struct {
	Code string `json:"code" validate:"required"`
}

func (in *RedeemCodeInput) Validate(validate *validator.Validate) error {
	in.Code = normalizeCode(in.Code)
	if in.Code == "" {
		return core.NewFieldError("code", "Please enter an enrollment code.")
	}
	return validate.Struct(in)
}

// GradesInput sets the midterm and/or final grade. The final grade needs a midterm grade, given in
// the same input or recorded before.
type GradesInput struct {
	MidtermGrade *float64 `json:"midterm_grade" validate:"omitempty,min=0,max=100"`
	FinalGrade   *float64 `json:"final_grade" validate:"omitempty,min=0,max=100"`
}

func (in *GradesInput) Validate(validate *validator.Validate) error {
	return validate.Struct(in)
}

func parseDate(s string) time.Time {
	t, _ := core.ParseDate(s)
	return t
}

func parseDatePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseDate(s)
	return &t
}
