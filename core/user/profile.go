package user

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spist/campus/core"
)

type StudentProfile struct {
	UserID       string     `json:"user_id"`
	StudentID    string     `json:"student_id"`
	Program      string     `json:"program"`
	YearLevel    int        `json:"year_level"`
	DateEnrolled *time.Time `json:"date_enrolled"`
}

func (p StudentProfile) YearLevelLabel() string {
	return YearLevelLabel(p.YearLevel)
}

type TeacherProfile struct {
	UserID         string     `json:"user_id"`
	EmployeeID     string     `json:"employee_id"`
	Department     string     `json:"department"`
	Specialization string     `json:"specialization"`
	HireDate       *time.Time `json:"hire_date"`
}

// Profile is a User along with their student and/or teacher profile.
type Profile struct {
	User    User            `json:"user"`
	Student *StudentProfile `json:"student,omitempty"`
	Teacher *TeacherProfile `json:"teacher,omitempty"`
}

// UpdateProfile defines what information may be provided to modify a Profile.
// StudentID, EmployeeID and YearLevel can only be changed by admins.
type UpdateProfile struct {
	FirstName      *string `json:"first_name" validate:"omitempty,max=75"`
	LastName       *string `json:"last_name" validate:"omitempty,max=75"`
	Phone          *string `json:"phone" validate:"omitempty,max=20"`
	StudentID      *string `json:"student_id" validate:"omitempty,min=1,max=20"`
	Program        *string `json:"program" validate:"omitempty,max=100"`
	YearLevel      *int    `json:"year_level" validate:"omitempty,min=1,max=5"`
	EmployeeID     *string `json:"employee_id" validate:"omitempty,min=1,max=20"`
	Department     *string `json:"department" validate:"omitempty,max=100"`
	Specialization *string `json:"specialization" validate:"omitempty,max=100"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	for _, s := range []*string{up.FirstName, up.LastName, up.Phone, up.StudentID, up.Program, up.EmployeeID, up.Department, up.Specialization} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	return validate.Struct(up)
}

// AdminOnly reports whether the update touches fields reserved to admins.
func (up UpdateProfile) AdminOnly() bool {
	return up.StudentID != nil || up.EmployeeID != nil || up.YearLevel != nil
}
