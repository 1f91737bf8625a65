package tests

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spist/campus/apps/api/echo"
	"github.com/spist/campus/core/course"
	"github.com/spist/campus/core/user"
	"github.com/spist/campus/tests"
)

type catalog struct {
	admin    user.User
	teacher  user.User
	intro    course.Course
	advanced course.Course
	semester course.Semester
	offering course.Offering
	advOff   course.Offering
}

// newCatalog creates two courses, the second requiring the first, each offered once in an open state.
func newCatalog(t *testing.T, e *env) catalog {
	t.Helper()
	ctx := context.Background()
	c := catalog{
		admin:   testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@spist.edu", "", []string{user.RoleAdmin}, true),
		teacher: testutil.CreateUser(t, e.usrRepo, "Teacher", "teacher", "teacher@spist.edu", "", []string{user.RoleTeacher}, true),
	}

	var err error
	c.intro, err = e.courseSvc.CreateCourse(ctx, course.CourseInput{Code: "CS101", Title: "Intro to Computing", Units: 3})
	require.NoError(t, err)
	c.advanced, err = e.courseSvc.CreateCourse(ctx, course.CourseInput{
		Code: "CS201", Title: "Data Structures", Units: 3, Prerequisites: []string{c.intro.ID},
	})
	require.NoError(t, err)

	year, err := e.courseSvc.CreateAcademicYear(ctx, course.AcademicYearInput{YearStart: 2026})
	require.NoError(t, err)
	c.semester, err = e.courseSvc.CreateSemester(ctx, course.SemesterInput{
		AcademicYearID: year.ID, Term: "1st", StartDate: "2026-08-01", EndDate: "2026-12-15",
	})
	require.NoError(t, err)

	c.offering, err = e.courseSvc.CreateOffering(ctx, c.admin, course.OfferingInput{
		CourseID: c.intro.ID, SemesterID: c.semester.ID, Section: "A", InstructorID: c.teacher.ID,
		MaxStudents: 30, Status: course.OfferingOpen,
	})
	require.NoError(t, err)
	c.advOff, err = e.courseSvc.CreateOffering(ctx, c.admin, course.OfferingInput{
		CourseID: c.advanced.ID, SemesterID: c.semester.ID, Section: "A", InstructorID: c.teacher.ID,
		MaxStudents: 30, Status: course.OfferingOpen,
	})
	require.NoError(t, err)
	return c
}

func Test_courseApi_catalog(t *testing.T) {
	e := setup(t)

	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@spist.edu", "", []string{user.RoleAdmin}, true)
	student := testutil.CreateStudent(t, e.usrRepo, "Hero", "hero", "2026-0001", user.YearFirst)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{
			name: "students cannot create", method: http.MethodPost, path: "/v1/courses", token: getToken(t, student),
			body: marchallObj(t, course.CourseInput{Code: "CS101", Title: "Intro", Units: 3}), wantCode: http.StatusForbidden,
		},
		{
			name: "required fields", method: http.MethodPost, path: "/v1/courses", token: adminToken,
			body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"code": "this field is required", "title": "this field is required", "units": "this field is required",
			}),
		},
		{
			name: "created", method: http.MethodPost, path: "/v1/courses", token: adminToken,
			body: marchallObj(t, course.CourseInput{Code: " cs101 ", Title: "Intro to Computing", Units: 3}), wantCode: http.StatusCreated,
		},
		{
			name: "duplicate code", method: http.MethodPost, path: "/v1/courses", token: adminToken,
			body: marchallObj(t, course.CourseInput{Code: "CS101", Title: "Again", Units: 3}), wantCode: http.StatusBadRequest,
		},
		{
			name: "department", method: http.MethodPost, path: "/v1/departments", token: adminToken,
			body: marchallObj(t, course.DepartmentInput{Code: "ccs", Name: "College of Computer Studies"}), wantCode: http.StatusCreated,
		},
		{name: "unknown course", method: http.MethodGet, path: "/v1/courses/lol", token: adminToken, wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	rec := e.do(http.MethodGet, "/v1/courses", getToken(t, student))
	require.Equal(t, http.StatusOK, rec.Code)
	var courses []course.Course
	unmarshal(t, rec, &courses)
	require.Len(t, courses, 1)
	assert.Equal(t, "CS101", courses[0].Code)

	rec = e.do(http.MethodGet, "/v1/departments", adminToken)
	var deps []course.Department
	unmarshal(t, rec, &deps)
	require.Len(t, deps, 1)
	assert.Equal(t, "CCS", deps[0].Code)
}

func Test_courseApi_enrollment(t *testing.T) {
	e := setup(t)
	c := newCatalog(t, e)

	student := testutil.CreateStudent(t, e.usrRepo, "Hero", "hero", "2026-0001", user.YearFirst)
	studentToken := getToken(t, student)
	adminToken := getToken(t, c.admin)

	// staff cannot enroll
	rec := e.do(http.MethodPost, "/v1/enrollments", adminToken, marchallObj(t, echoapi.EnrollRequest{OfferingID: c.offering.ID}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// prerequisites
	rec = e.do(http.MethodGet, "/v1/enrollments/prerequisites?offering="+c.advOff.ID, studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var prereqs echoapi.PrerequisitesResponse
	unmarshal(t, rec, &prereqs)
	assert.False(t, prereqs.Satisfied)
	assert.Equal(t, []string{"CS101"}, prereqs.Missing)

	rec = e.do(http.MethodPost, "/v1/enrollments", studentToken, marchallObj(t, echoapi.EnrollRequest{OfferingID: c.advOff.ID}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing prerequisites: CS101")

	// no open enrollment period: the request waits for approval
	rec = e.do(http.MethodPost, "/v1/enrollments", studentToken, marchallObj(t, echoapi.EnrollRequest{OfferingID: c.offering.ID}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res course.EnrollResult
	unmarshal(t, rec, &res)
	assert.Equal(t, course.StatusPending, res.Enrollment.Status)
	assert.True(t, strings.HasSuffix(res.Message, "Waiting for approval."))

	rec = e.do(http.MethodPost, "/v1/enrollments", studentToken, marchallObj(t, echoapi.EnrollRequest{OfferingID: c.offering.ID}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), course.ErrAlreadyEnrolled.Error())

	// approval
	enrPath := "/v1/enrollments/" + res.Enrollment.ID
	rec = e.do(http.MethodPost, enrPath+"/approve", studentToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(http.MethodPost, enrPath+"/approve", getToken(t, c.teacher))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var enr course.Enrollment
	unmarshal(t, rec, &enr)
	assert.Equal(t, course.StatusEnrolled, enr.Status)
	assert.Equal(t, c.teacher.ID, enr.ApprovedBy)

	rec = e.do(http.MethodPost, enrPath+"/approve", adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// the student was notified
	rec = e.do(http.MethodGet, "/v1/notifications/unread-count", studentToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var count echoapi.CountResponse
	unmarshal(t, rec, &count)
	assert.Equal(t, 1, count.Count)

	// students only see their own enrollments
	other := testutil.CreateStudent(t, e.usrRepo, "Other", "other", "2026-0002", user.YearFirst)
	rec = e.do(http.MethodGet, "/v1/enrollments", getToken(t, other))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = e.do(http.MethodGet, "/v1/enrollments", studentToken)
	var list []course.Enrollment
	unmarshal(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, enr.ID, list[0].ID)

	// cancellation
	rec = e.do(http.MethodDelete, enrPath, getToken(t, other))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(http.MethodDelete, enrPath, studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &enr)
	assert.Equal(t, course.StatusDropped, enr.Status)
}

func Test_courseApi_enrollmentCodes(t *testing.T) {
	e := setup(t)
	c := newCatalog(t, e)

	student := testutil.CreateStudent(t, e.usrRepo, "Hero", "hero", "2026-0001", user.YearFirst)
	studentToken := getToken(t, student)

	rec := e.do(http.MethodPost, "/v1/offerings/"+c.offering.ID+"/codes", studentToken, []byte(`{}`))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(http.MethodPost, "/v1/offerings/"+c.offering.ID+"/codes", getToken(t, c.teacher), []byte(`{"count": 2}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var codes []course.EnrollmentCode
	unmarshal(t, rec, &codes)
	require.Len(t, codes, 2)
	assert.NotEqual(t, codes[0].Code, codes[1].Code)

	tests := []httpTest{
		{name: "required", body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{name: "unknown code", body: marchallObj(t, course.RedeemCodeInput{Code: "NOPE-NOPE"}), wantCode: http.StatusBadRequest},
		{name: "redeemed", body: marchallObj(t, course.RedeemCodeInput{Code: strings.ToLower(codes[0].Code)}), wantCode: http.StatusCreated},
		{name: "already enrolled", body: marchallObj(t, course.RedeemCodeInput{Code: codes[1].Code}), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, "/v1/enrollment-codes/redeem", studentToken, tt.body)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var res course.EnrollResult
				unmarshal(t, rec, &res)
				assert.Equal(t, course.StatusEnrolled, res.Enrollment.Status)
				assert.Equal(t, c.offering.ID, res.Enrollment.OfferingID)
			}
		})
	}

	// class list export
	rec = e.do(http.MethodGet, "/v1/offerings/"+c.offering.ID+"/class-list?format=csv", getToken(t, c.teacher))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
	assert.Contains(t, rec.Body.String(), "2026-0001")
}
