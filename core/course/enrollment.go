package course

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/notification"
	"github.com/spist/campus/core/user"
)

var (
	errEnrollmentNotOpen = "Enrollment is not open for this course."
	errNotCancellable    = errors.New("This enrollment cannot be cancelled")
	errNotPending        = errors.New("only pending or waitlisted enrollments can be approved or rejected")
)

// CheckPrerequisites returns the codes of the prerequisites of crs the student has not passed yet.
func (svc *service) CheckPrerequisites(ctx context.Context, studentID string, crs Course) ([]string, error) {
	if len(crs.Prerequisites) == 0 {
		return nil, nil
	}
	passed, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{StudentID: studentID, Statuses: []string{StatusPassed}})
	if err != nil {
		return nil, errors.Wrap(err, "querying passed enrollments")
	}
	offeringIDs := make([]string, 0, len(passed))
	for _, e := range passed {
		offeringIDs = append(offeringIDs, e.OfferingID)
	}
	passedCourses := make(map[string]bool, len(passed))
	if len(offeringIDs) > 0 {
		offerings, err := svc.repo.QueryOfferings(ctx, OfferingFilter{IDs: offeringIDs})
		if err != nil {
			return nil, errors.Wrap(err, "querying passed offerings")
		}
		for _, o := range offerings {
			passedCourses[o.CourseID] = true
		}
	}

	prereqs, err := svc.coursesByID(ctx, crs.Prerequisites)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, id := range crs.Prerequisites {
		if !passedCourses[id] {
			if p, ok := prereqs[id]; ok {
				missing = append(missing, p.Code)
			}
		}
	}
	sort.Strings(missing)
	return missing, nil
}

// openPeriod returns the open enrollment period of the current semester that covers yearLevel, if any.
func (svc *service) openPeriod(ctx context.Context, semesterID string, yearLevel int) (*EnrollmentPeriod, error) {
	periods, err := svc.repo.QueryPeriods(ctx, semesterID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollment periods")
	}
	now := NowFunc().UTC()
	for _, p := range periods {
		if p.IsOpen(now) && (yearLevel == 0 || p.AppliesTo(yearLevel)) {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (svc *service) currentSemester(ctx context.Context, exec ...core.DBExecutor) (*Semester, error) {
	s, err := svc.repo.GetCurrentSemester(ctx, exec...)
	if err != nil {
		if errors.Cause(err) == ErrSemesterNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "getting current semester")
	}
	return &s, nil
}

func (svc *service) studentYearLevel(ctx context.Context, studentID string) int {
	profiles, err := svc.usrSvc.StudentProfiles(ctx, studentID)
	if err != nil {
		return 0
	}
	return profiles[studentID].YearLevel
}

// Enroll enrolls a student in an open offering.
// Outside of an open enrollment period the enrollment awaits approval; when the offering is full the student is waitlisted.
func (svc *service) Enroll(ctx context.Context, actor user.User, offeringID string) (EnrollResult, error) {
	if !actor.IsStudent() {
		return EnrollResult{}, core.ErrForbidden
	}
	offering, err := svc.repo.GetOffering(ctx, offeringID)
	if err != nil {
		return EnrollResult{}, err
	}
	crs, err := svc.repo.GetCourse(ctx, offering.CourseID)
	if err != nil {
		return EnrollResult{}, errors.Wrap(err, "getting course")
	}

	var msgs []string
	if offering.Status != OfferingOpen {
		msgs = append(msgs, errEnrollmentNotOpen)
	}
	if _, err = svc.repo.FindEnrollment(ctx, actor.ID, offering.ID); err == nil {
		msgs = append(msgs, ErrAlreadyEnrolled.Error())
	} else if errors.Cause(err) != ErrEnrollmentNotFound {
		return EnrollResult{}, errors.Wrap(err, "finding enrollment")
	}
	if len(msgs) > 0 {
		return EnrollResult{}, core.NewValidationError(errors.New(strings.Join(msgs, " ")))
	}

	missing, err := svc.CheckPrerequisites(ctx, actor.ID, crs)
	if err != nil {
		return EnrollResult{}, err
	}
	if len(missing) > 0 {
		return EnrollResult{}, core.NewValidationError(fmt.Errorf("Missing prerequisites: %s", strings.Join(missing, ", ")))
	}

	var period *EnrollmentPeriod
	sem, err := svc.currentSemester(ctx)
	if err != nil {
		return EnrollResult{}, err
	}
	if sem != nil {
		if period, err = svc.openPeriod(ctx, sem.ID, svc.studentYearLevel(ctx, actor.ID)); err != nil {
			return EnrollResult{}, err
		}
	}

	now := NowFunc().UTC()
	enr := Enrollment{
		ID:             newID(),
		StudentID:      actor.ID,
		OfferingID:     offering.ID,
		EnrollmentType: EnrollRegular,
		EnrolledAt:     now,
		UpdatedAt:      now,
	}
	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		// seats held by enrolled and pending students
		taken, err := svc.repo.CountEnrollments(ctx, offering.ID, []string{StatusEnrolled, StatusPending}, exec)
		if err != nil {
			return errors.Wrap(err, "counting enrollments")
		}
		switch {
		case period == nil:
			enr.Status = StatusPending
		case taken >= offering.MaxStudents:
			enr.Status = StatusWaitlisted
		default:
			enr.Status = StatusEnrolled
		}
		enr, err = svc.repo.SaveEnrollment(ctx, enr, exec)
		return err
	})
	if err != nil {
		if errors.Cause(err) == ErrAlreadyEnrolled {
			return EnrollResult{}, core.NewValidationError(ErrAlreadyEnrolled)
		}
		return EnrollResult{}, errors.Wrap(err, "creating enrollment")
	}

	var msg string
	switch enr.Status {
	case StatusEnrolled:
		msg = fmt.Sprintf("Successfully enrolled in %s!", crs.Code)
	case StatusWaitlisted:
		msg = fmt.Sprintf("Added to waitlist for %s. You will be notified if a spot opens up.", crs.Code)
	default:
		msg = fmt.Sprintf("Enrollment request submitted for %s. Waiting for approval.", crs.Code)
	}
	offering.Course = &crs
	enr.Offering = &offering
	return EnrollResult{Enrollment: enr, Message: msg}, nil
}

// CancelEnrollment drops an enrollment. A freed seat goes to the earliest waitlisted student.
func (svc *service) CancelEnrollment(ctx context.Context, actor user.User, enrollmentID string) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return Enrollment{}, err
	}
	if enr.StudentID != actor.ID && !actor.IsAdmin() {
		return Enrollment{}, core.ErrForbidden
	}
	if !enr.Cancellable() {
		return Enrollment{}, core.NewValidationError(errNotCancellable)
	}

	var promoted *Enrollment
	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		freesSeat := enr.Status == StatusEnrolled
		enr.Status = StatusDropped
		enr.UpdatedAt = NowFunc().UTC()
		if enr, err = svc.repo.SaveEnrollment(ctx, enr, exec); err != nil {
			return errors.Wrap(err, "dropping enrollment")
		}
		if !freesSeat {
			return nil
		}

		waitlisted, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{
			OfferingIDs: []string{enr.OfferingID},
			Statuses:    []string{StatusWaitlisted},
		}, exec)
		if err != nil {
			return errors.Wrap(err, "querying waitlist")
		}
		if len(waitlisted) == 0 {
			return nil
		}
		next := waitlisted[0]
		next.Status = StatusEnrolled
		next.UpdatedAt = NowFunc().UTC()
		if next, err = svc.repo.SaveEnrollment(ctx, next, exec); err != nil {
			return errors.Wrap(err, "promoting waitlisted enrollment")
		}
		promoted = &next
		return nil
	})
	if err != nil {
		return Enrollment{}, err
	}

	if promoted != nil {
		svc.notifyStatus(ctx, *promoted, "A spot opened up and you have been enrolled.")
	}
	return enr, nil
}

func (svc *service) reviewEnrollment(ctx context.Context, actor user.User, enrollmentID string, approve bool) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return Enrollment{}, err
	}
	offering, err := svc.repo.GetOffering(ctx, enr.OfferingID)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "getting offering")
	}
	if !canManageOffering(actor, offering) {
		return Enrollment{}, core.ErrForbidden
	}
	if enr.Status != StatusPending && enr.Status != StatusWaitlisted {
		return Enrollment{}, core.NewValidationError(errNotPending)
	}

	now := NowFunc().UTC()
	enr.UpdatedAt = now
	if approve {
		enr.Status = StatusEnrolled
		enr.ApprovedAt = &now
		enr.ApprovedBy = actor.ID
	} else {
		enr.Status = StatusDropped
	}
	if enr, err = svc.repo.SaveEnrollment(ctx, enr); err != nil {
		return Enrollment{}, errors.Wrap(err, "saving enrollment")
	}

	if approve {
		svc.notifyStatus(ctx, enr, "Your enrollment has been approved.")
	} else {
		svc.notifyStatus(ctx, enr, "Your enrollment request has been rejected.")
	}
	return enr, nil
}

func (svc *service) ApproveEnrollment(ctx context.Context, actor user.User, enrollmentID string) (Enrollment, error) {
	return svc.reviewEnrollment(ctx, actor, enrollmentID, true)
}

func (svc *service) RejectEnrollment(ctx context.Context, actor user.User, enrollmentID string) (Enrollment, error) {
	return svc.reviewEnrollment(ctx, actor, enrollmentID, false)
}

// notifyStatus tells a student about a change of their enrollment: in-app, by e-mail and by SMS when possible.
// Failures are logged, never returned.
func (svc *service) notifyStatus(ctx context.Context, enr Enrollment, message string) {
	student, err := svc.usrSvc.GetByID(ctx, enr.StudentID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("notifying enrollment status: %v", err), err)
		return
	}
	offering, err := svc.repo.GetOffering(ctx, enr.OfferingID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("notifying enrollment status: %v", err), err)
		return
	}
	crs, err := svc.repo.GetCourse(ctx, offering.CourseID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("notifying enrollment status: %v", err), err)
		return
	}

	title := fmt.Sprintf("%s %s: %s", crs.Code, offering.Section, enr.Status)
	ntype := notification.TypeInfo
	switch enr.Status {
	case StatusEnrolled:
		ntype = notification.TypeSuccess
	case StatusDropped:
		ntype = notification.TypeWarning
	}
	if _, err = svc.notifSvc.Notify(ctx, student.ID, title, message, ntype); err != nil {
		svc.logger.Error(fmt.Sprintf("notifying enrollment status: %v", err), err, student)
	}

	if student.Email != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: student.FullName(), Address: student.Email}},
			Subject:      fmt.Sprintf("Enrollment update for %s", crs.Code),
			TemplateName: "enrollment_status",
			TemplateData: map[string]string{
				"Name":        student.FullName(),
				"CourseCode":  crs.Code,
				"CourseTitle": crs.Title,
				"Section":     offering.Section,
				"Status":      enr.Status,
				"Message":     message,
			},
		})
	}
	if student.Phone != "" && svc.smsSvc != nil {
		body := fmt.Sprintf("%s: %s %s", svc.conf.AppName, crs.Code, message)
		if err = svc.smsSvc.Send(ctx, student.Phone, body); err != nil {
			svc.logger.Warn(fmt.Sprintf("sending enrollment SMS: %v", err), err, student)
		}
	}
}

// BulkEnroll creates pending enrollments for every active student of a curriculum at the given year level,
// in the semester's offerings of the required courses of that level and term.
func (svc *service) BulkEnroll(ctx context.Context, actor user.User, in BulkEnrollInput) (BulkEnrollResult, error) {
	var res BulkEnrollResult
	if _, err := svc.repo.GetCurriculum(ctx, in.CurriculumID); err != nil {
		return res, err
	}
	if _, err := svc.repo.GetSemester(ctx, in.SemesterID); err != nil {
		return res, err
	}

	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		students, err := svc.repo.QueryStudentCurricula(ctx, StudentCurriculumFilter{
			CurriculumID: in.CurriculumID,
			YearLevel:    in.YearLevel,
			ActiveOnly:   true,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "querying student curricula")
		}
		ccs, err := svc.repo.QueryCurriculumCourses(ctx, CurriculumCourseFilter{
			CurriculumID: in.CurriculumID,
			YearLevel:    in.YearLevel,
			Term:         in.Term,
			RequiredOnly: true,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "querying curriculum courses")
		}

		// offering per course
		offerings := make(map[string]string, len(ccs))
		for _, cc := range ccs {
			found, err := svc.repo.QueryOfferings(ctx, OfferingFilter{
				SemesterID: in.SemesterID,
				CourseIDs:  []string{cc.CourseID},
				Statuses:   []string{OfferingOpen, OfferingPlanning},
			}, exec)
			if err != nil {
				return errors.Wrap(err, "querying offerings")
			}
			if len(found) > 0 {
				offerings[cc.CourseID] = found[0].ID
			}
		}

		now := NowFunc().UTC()
		for _, sc := range students {
			for _, cc := range ccs {
				offeringID, ok := offerings[cc.CourseID]
				if !ok {
					res.Skipped++
					continue
				}
				_, err = svc.repo.SaveEnrollment(ctx, Enrollment{
					ID:             newID(),
					StudentID:      sc.StudentID,
					OfferingID:     offeringID,
					Status:         StatusPending,
					EnrollmentType: in.EnrollmentType,
					EnrolledAt:     now,
					ApprovedBy:     actor.ID,
					UpdatedAt:      now,
				}, exec)
				switch errors.Cause(err) {
				case nil:
					res.Created++
				case ErrAlreadyEnrolled:
					res.Skipped++
				default:
					return errors.Wrap(err, "creating enrollment")
				}
			}
		}
		return nil
	})
	if err != nil {
		return BulkEnrollResult{}, err
	}
	return res, nil
}

// ListEnrollments returns the enrollments visible to actor: their own for students,
// those of the offerings they teach for teachers, all of them for admins.
func (svc *service) ListEnrollments(ctx context.Context, actor user.User, filter EnrollmentFilter) ([]Enrollment, error) {
	switch {
	case actor.IsAdmin():
	case actor.IsTeacher():
		taught, err := svc.repo.QueryOfferings(ctx, OfferingFilter{InstructorID: actor.ID, SemesterID: filter.SemesterID})
		if err != nil {
			return nil, errors.Wrap(err, "querying taught offerings")
		}
		allowed := make([]string, 0, len(taught))
		for _, o := range taught {
			if len(filter.OfferingIDs) == 0 || core.ContainsString(filter.OfferingIDs, o.ID) {
				allowed = append(allowed, o.ID)
			}
		}
		if len(allowed) == 0 {
			return []Enrollment{}, nil
		}
		filter.OfferingIDs = allowed
	default:
		filter.StudentID = actor.ID
	}

	enrollments, err := svc.repo.QueryEnrollments(ctx, filter)
	if err != nil {
		return nil, err
	}
	return svc.attachOfferings(ctx, enrollments)
}

func (svc *service) attachOfferings(ctx context.Context, enrollments []Enrollment) ([]Enrollment, error) {
	if len(enrollments) == 0 {
		return enrollments, nil
	}
	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		if !core.ContainsString(ids, e.OfferingID) {
			ids = append(ids, e.OfferingID)
		}
	}
	offerings, err := svc.repo.QueryOfferings(ctx, OfferingFilter{IDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying offerings")
	}
	if offerings, err = svc.attachCourses(ctx, offerings); err != nil {
		return nil, err
	}
	byID := make(map[string]Offering, len(offerings))
	for _, o := range offerings {
		byID[o.ID] = o
	}
	for i := range enrollments {
		if o, ok := byID[enrollments[i].OfferingID]; ok {
			enrollments[i].Offering = &o
		}
	}
	return enrollments, nil
}

// StudentOverview gathers what a student needs to manage their enrollments for the current semester.
func (svc *service) StudentOverview(ctx context.Context, student user.User) (Overview, error) {
	ov := Overview{Enrollments: []Enrollment{}, AvailableOfferings: []Offering{}}
	sem, err := svc.currentSemester(ctx)
	if err != nil {
		return ov, err
	}
	ov.CurrentSemester = sem

	scs, err := svc.repo.QueryStudentCurricula(ctx, StudentCurriculumFilter{StudentID: student.ID, ActiveOnly: true})
	if err != nil {
		return ov, errors.Wrap(err, "querying student curricula")
	}
	if len(scs) > 0 {
		ov.Curriculum = &scs[0]
	}
	if sem == nil {
		return ov, nil
	}

	if ov.EnrollmentPeriod, err = svc.openPeriod(ctx, sem.ID, svc.studentYearLevel(ctx, student.ID)); err != nil {
		return ov, err
	}

	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{StudentID: student.ID, SemesterID: sem.ID})
	if err != nil {
		return ov, errors.Wrap(err, "querying enrollments")
	}
	if ov.Enrollments, err = svc.attachOfferings(ctx, enrollments); err != nil {
		return ov, err
	}
	taken := make(map[string]bool, len(ov.Enrollments))
	for _, e := range ov.Enrollments {
		taken[e.OfferingID] = true
		switch e.Status {
		case StatusEnrolled:
			ov.EnrolledCount++
			if e.Offering != nil && e.Offering.Course != nil {
				ov.TotalUnits += e.Offering.Course.Units
			}
		case StatusPending:
			ov.PendingCount++
		case StatusWaitlisted:
			ov.WaitlistedCount++
		}
	}

	if ov.Curriculum == nil {
		return ov, nil
	}
	ccs, err := svc.repo.QueryCurriculumCourses(ctx, CurriculumCourseFilter{
		CurriculumID: ov.Curriculum.CurriculumID,
		YearLevel:    ov.Curriculum.CurrentYearLevel,
	})
	if err != nil {
		return ov, errors.Wrap(err, "querying curriculum courses")
	}
	inCurriculum := make(map[string]bool, len(ccs))
	for _, cc := range ccs {
		inCurriculum[cc.CourseID] = true
	}

	open, err := svc.ListOfferings(ctx, OfferingFilter{SemesterID: sem.ID, Statuses: []string{OfferingOpen}})
	if err != nil {
		return ov, err
	}
	for _, o := range open {
		if taken[o.ID] || o.Course == nil {
			continue
		}
		if inCurriculum[o.CourseID] || o.Course.CourseType == TypeGeneral || o.Course.CourseType == TypeElective {
			ov.AvailableOfferings = append(ov.AvailableOfferings, o)
		}
	}
	return ov, nil
}

// OfferingDetail returns enrollment statistics of an offering to its instructor or an admin.
// The completion rate is the share of graded (passed or failed) enrollments among the non-dropped ones.
func (svc *service) OfferingDetail(ctx context.Context, actor user.User, offeringID string) (OfferingDetail, error) {
	o, err := svc.GetOffering(ctx, offeringID)
	if err != nil {
		return OfferingDetail{}, err
	}
	if !canManageOffering(actor, o) {
		return OfferingDetail{}, core.ErrForbidden
	}
	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{OfferingIDs: []string{o.ID}})
	if err != nil {
		return OfferingDetail{}, errors.Wrap(err, "querying enrollments")
	}

	detail := OfferingDetail{Offering: o}
	var graded, active int
	for _, e := range enrollments {
		switch e.Status {
		case StatusEnrolled:
			detail.TotalEnrolled++
		case StatusPending:
			detail.PendingCount++
		case StatusWaitlisted:
			detail.WaitlistedCount++
		case StatusDropped:
			detail.DroppedCount++
			continue
		case StatusPassed, StatusFailed:
			graded++
		}
		active++
	}
	if active > 0 {
		detail.CompletionRate = core.Round(float64(graded)/float64(active)*100, 2)
	}
	return detail, nil
}

// ClassList returns the enrolled students of an offering ordered by last then first name.
func (svc *service) ClassList(ctx context.Context, actor user.User, offeringID string) ([]ClassListEntry, error) {
	o, err := svc.repo.GetOffering(ctx, offeringID)
	if err != nil {
		return nil, err
	}
	if !canManageOffering(actor, o) {
		return nil, core.ErrForbidden
	}
	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{
		OfferingIDs: []string{o.ID},
		Statuses:    []string{StatusEnrolled},
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	if len(enrollments) == 0 {
		return []ClassListEntry{}, nil
	}

	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.StudentID)
	}
	students, err := svc.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	profiles, err := svc.usrSvc.StudentProfiles(ctx, ids...)
	if err != nil {
		return nil, err
	}

	entries := make([]ClassListEntry, 0, len(enrollments))
	for _, e := range enrollments {
		usr := students[e.StudentID]
		first, last := usr.SplitName()
		studentID := profiles[e.StudentID].StudentID
		if studentID == "" {
			studentID = usr.Username
		}
		entries = append(entries, ClassListEntry{
			StudentUserID: e.StudentID,
			StudentID:     studentID,
			FirstName:     first,
			LastName:      last,
			Email:         usr.Email,
			EnrolledAt:    e.EnrolledAt,
			Status:        e.Status,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].LastName != entries[j].LastName {
			return entries[i].LastName < entries[j].LastName
		}
		return entries[i].FirstName < entries[j].FirstName
	})
	return entries, nil
}

func (svc *service) usersByID(ctx context.Context, ids []string) (map[string]user.User, error) {
	users, err := svc.usrSvc.Query(ctx, &user.QueryFilter{IDs: ids}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	byID := make(map[string]user.User, len(users))
	for _, usr := range users {
		byID[usr.ID] = usr
	}
	return byID, nil
}

func (svc *service) DashboardStats(ctx context.Context) (DashboardStats, error) {
	var stats DashboardStats
	courses, err := svc.repo.QueryCourses(ctx, CourseFilter{ActiveOnly: true})
	if err != nil {
		return stats, errors.Wrap(err, "querying courses")
	}
	stats.TotalCourses = len(courses)

	students, err := svc.usrSvc.Query(ctx, &user.QueryFilter{Roles: []string{user.RoleStudent}, IsActive: core.BoolPtr(true)}, nil)
	if err != nil {
		return stats, errors.Wrap(err, "querying students")
	}
	stats.TotalStudents = len(students)

	sem, err := svc.currentSemester(ctx)
	if err != nil || sem == nil {
		return stats, err
	}
	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{SemesterID: sem.ID, Statuses: []string{StatusEnrolled}})
	if err != nil {
		return stats, errors.Wrap(err, "querying enrollments")
	}
	stats.CurrentEnrollments = len(enrollments)

	offerings, err := svc.repo.QueryOfferings(ctx, OfferingFilter{
		SemesterID: sem.ID,
		Statuses:   []string{OfferingOpen, OfferingOngoing},
	})
	if err != nil {
		return stats, errors.Wrap(err, "querying offerings")
	}
	stats.ActiveOfferings = len(offerings)
	return stats, nil
}

// SetGrades records the grades of an enrollment. Once the final grade is known, the final rating is
// computed with the configured formula and the enrollment is marked passed or failed. A final grade
// is rejected while no midterm grade is recorded.
func (svc *service) SetGrades(ctx context.Context, actor user.User, enrollmentID string, in GradesInput) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return Enrollment{}, err
	}
	offering, err := svc.repo.GetOffering(ctx, enr.OfferingID)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "getting offering")
	}
	if !canManageOffering(actor, offering) {
		return Enrollment{}, core.ErrForbidden
	}
	if enr.Status == StatusDropped || enr.Status == StatusPending || enr.Status == StatusWaitlisted {
		return Enrollment{}, core.NewValidationError(errors.New("only enrolled students can be graded"))
	}

	if in.MidtermGrade != nil {
		enr.MidtermGrade = in.MidtermGrade
	}
	if in.FinalGrade != nil {
		enr.FinalGrade = in.FinalGrade
	}
	if enr.FinalGrade != nil {
		if enr.MidtermGrade == nil {
			return Enrollment{}, ErrMidtermRequired
		}
		rating, err := svc.formula.Rate(*enr.MidtermGrade, *enr.FinalGrade)
		if err != nil {
			return Enrollment{}, errors.Wrap(err, "computing final rating")
		}
		enr.FinalRating = &rating
		if rating >= svc.conf.Grading.PassingGrade {
			enr.Status = StatusPassed
		} else {
			enr.Status = StatusFailed
		}
	}
	enr.UpdatedAt = NowFunc().UTC()
	return svc.repo.SaveEnrollment(ctx, enr)
}

func fmtDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(core.DateLayout)
}
