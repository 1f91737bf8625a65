package course

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/user"
)

var (
	statusLabels = map[string]string{
		StatusPending:    "Pending Approval",
		StatusEnrolled:   "Enrolled",
		StatusWaitlisted: "Waitlisted",
		StatusDropped:    "Dropped",
		StatusFailed:     "Failed",
		StatusPassed:     "Passed",
		StatusIncomplete: "Incomplete",
	}
	enrollTypeLabels = map[string]string{
		EnrollRegular:  "Regular Enrollment",
		EnrollLate:     "Late Enrollment",
		EnrollCross:    "Cross Enrollment",
		EnrollMakeup:   "Make-up Class",
		EnrollOverload: "Overload",
	}
)

// ExportEnrollments exports the enrollments visible to actor. Without a semester filter, the current semester is used.
func (svc *service) ExportEnrollments(ctx context.Context, actor user.User, filter EnrollmentFilter) (*core.Table, error) {
	if filter.SemesterID == "" {
		sem, err := svc.currentSemester(ctx)
		if err != nil {
			return nil, err
		}
		if sem != nil {
			filter.SemesterID = sem.ID
		}
	}
	enrollments, err := svc.ListEnrollments(ctx, actor, filter)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(enrollments))
	semIDs := make(map[string]bool)
	for _, e := range enrollments {
		ids = append(ids, e.StudentID)
		if e.Offering != nil {
			semIDs[e.Offering.SemesterID] = true
		}
	}
	students := map[string]user.User{}
	profiles := map[string]user.StudentProfile{}
	if len(ids) > 0 {
		if students, err = svc.usersByID(ctx, ids); err != nil {
			return nil, err
		}
		if profiles, err = svc.usrSvc.StudentProfiles(ctx, ids...); err != nil {
			return nil, errors.Wrap(err, "querying student profiles")
		}
	}
	semLabels, err := svc.semesterLabels(ctx, semIDs)
	if err != nil {
		return nil, err
	}

	table := &core.Table{
		Name: "enrollments",
		Headers: []string{
			"Student Name", "Student ID", "Course Code", "Course Title",
			"Section", "Semester", "Status", "Enrollment Type", "Enrolled At",
		},
	}
	for _, e := range enrollments {
		studentID := profiles[e.StudentID].StudentID
		if studentID == "" {
			studentID = "N/A"
		}
		var code, title, section, semester string
		if e.Offering != nil {
			section = e.Offering.Section
			semester = semLabels[e.Offering.SemesterID]
			if e.Offering.Course != nil {
				code, title = e.Offering.Course.Code, e.Offering.Course.Title
			}
		}
		table.AddRow(
			students[e.StudentID].FullName(), studentID, code, title,
			section, semester, statusLabels[e.Status], enrollTypeLabels[e.EnrollmentType], e.EnrolledAt,
		)
	}
	return table, nil
}

func (svc *service) semesterLabels(ctx context.Context, ids map[string]bool) (map[string]string, error) {
	labels := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return labels, nil
	}
	years, err := svc.repo.QueryAcademicYears(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying academic years")
	}
	yearLabels := make(map[string]string, len(years))
	for _, y := range years {
		yearLabels[y.ID] = y.String()
	}
	semesters, err := svc.repo.QuerySemesters(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "querying semesters")
	}
	for _, s := range semesters {
		if ids[s.ID] {
			labels[s.ID] = strings.TrimSpace(yearLabels[s.AcademicYearID] + " - " + s.TermLabel())
		}
	}
	return labels, nil
}

// ExportClassList exports the class list of an offering.
func (svc *service) ExportClassList(ctx context.Context, actor user.User, offeringID string) (*core.Table, error) {
	entries, err := svc.ClassList(ctx, actor, offeringID)
	if err != nil {
		return nil, err
	}
	o, err := svc.GetOffering(ctx, offeringID)
	if err != nil {
		return nil, err
	}
	name := "class_list"
	if o.Course != nil {
		name = o.Course.Code + "_" + o.Section + "_class_list"
	}

	table := &core.Table{
		Name:    name,
		Headers: []string{"Student ID", "Last Name", "First Name", "Email", "Enrollment Date", "Status"},
	}
	for _, e := range entries {
		enrolledAt := e.EnrolledAt
		table.AddRow(e.StudentID, e.LastName, e.FirstName, e.Email, fmtDate(&enrolledAt), statusLabels[e.Status])
	}
	return table, nil
}
