package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/spist/campus/core/analytics"
	"github.com/spist/campus/core/course"
)

type courseApi struct {
	svc      course.ServiceInterface
	auth     *authenticator
	activity *activityLogger
	validate *validator.Validate
}

func registerCourseAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	activity *activityLogger,
	svc course.ServiceInterface,
	validate *validator.Validate,
) {
	api := courseApi{
		svc:      svc,
		auth:     auth,
		activity: activity,
		validate: validate,
	}
	admin := adminMiddleware()

	// catalog
	dg := g.Group("/departments", jwt)
	dg.GET("", api.listDepartments)
	dg.POST("", api.createDepartment, admin)
	dg.GET("/:id", api.retrieveDepartment)
	dg.PUT("/:id", api.updateDepartment, admin)
	dg.DELETE("/:id", api.destroyDepartment, admin)

	yg := g.Group("/academic-years", jwt)
	yg.GET("", api.listAcademicYears)
	yg.POST("", api.createAcademicYear, admin)
	yg.POST("/:id/set-current", api.setCurrentAcademicYear, admin)
	yg.DELETE("/:id", api.destroyAcademicYear, admin)

	sg := g.Group("/semesters", jwt)
	sg.GET("", api.listSemesters)
	sg.GET("/current", api.currentSemester)
	sg.POST("", api.createSemester, admin)
	sg.PUT("/:id", api.updateSemester, admin)
	sg.POST("/:id/set-current", api.setCurrentSemester, admin)
	sg.DELETE("/:id", api.destroySemester, admin)

	cg := g.Group("/courses", jwt)
	cg.GET("", api.listCourses)
	cg.GET("/dashboard", api.dashboard, staffMiddleware)
	cg.POST("", api.createCourse, admin)
	cg.GET("/:id", api.retrieveCourse)
	cg.PUT("/:id", api.updateCourse, admin)
	cg.DELETE("/:id", api.destroyCourse, admin)

	cug := g.Group("/curricula", jwt)
	cug.GET("", api.listCurricula)
	cug.POST("", api.createCurriculum, admin)
	cug.GET("/:id", api.retrieveCurriculum)
	cug.PUT("/:id", api.updateCurriculum, admin)
	cug.DELETE("/:id", api.destroyCurriculum, admin)
	cug.GET("/:id/courses", api.listCurriculumCourses)
	cug.POST("/:id/courses", api.addCurriculumCourse, admin)
	cug.DELETE("/:id/courses/:ccid", api.removeCurriculumCourse, admin)

	og := g.Group("/offerings", jwt)
	og.GET("", api.listOfferings)
	og.POST("", api.createOffering, staffMiddleware)
	og.GET("/:id", api.retrieveOffering)
	og.PUT("/:id", api.updateOffering, staffMiddleware)
	og.DELETE("/:id", api.destroyOffering, staffMiddleware)
	og.GET("/:id/detail", api.offeringDetail, staffMiddleware)
	og.GET("/:id/class-list", api.classList, staffMiddleware)
	og.GET("/:id/codes", api.listCodes, staffMiddleware)
	og.POST("/:id/codes", api.generateCodes, staffMiddleware)

	pg := g.Group("/enrollment-periods", jwt)
	pg.GET("", api.listPeriods)
	pg.POST("", api.createPeriod, admin)
	pg.PUT("/:id", api.updatePeriod, admin)
	pg.DELETE("/:id", api.destroyPeriod, admin)

	scg := g.Group("/student-curricula", jwt, admin)
	scg.GET("", api.listStudentCurricula)
	scg.POST("", api.assignCurriculum)
	scg.DELETE("/:id", api.unassignCurriculum)

	// enrollment
	eg := g.Group("/enrollments", jwt)
	eg.GET("", api.listEnrollments)
	eg.POST("", api.enroll, studentMiddleware)
	eg.GET("/overview", api.overview, studentMiddleware)
	eg.GET("/prerequisites", api.checkPrerequisites, studentMiddleware)
	eg.GET("/export", api.exportEnrollments, staffMiddleware)
	eg.POST("/bulk", api.bulkEnroll, admin)
	eg.DELETE("/:id", api.cancelEnrollment)
	eg.POST("/:id/approve", api.approveEnrollment, staffMiddleware)
	eg.POST("/:id/reject", api.rejectEnrollment, staffMiddleware)
	eg.PUT("/:id/grades", api.setGrades, staffMiddleware)

	ecg := g.Group("/enrollment-codes", jwt)
	ecg.POST("/redeem", api.redeemCode, studentMiddleware)
	ecg.POST("/:id/deactivate", api.deactivateCode, staffMiddleware)
}

// Departments

func (api *courseApi) listDepartments(ctx echo.Context) error {
	deps, err := api.svc.ListDepartments(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing departments")
	}
	return listJSON(ctx, http.StatusOK, deps)
}

func (api *courseApi) createDepartment(ctx echo.Context) error {
	var data course.DepartmentInput
	if err := bindValid(ctx, api.validate, &data, "DepartmentInput"); err != nil {
		return err
	}
	dep, err := api.svc.CreateDepartment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating department")
	}
	return ctx.JSON(http.StatusCreated, dep)
}

func (api *courseApi) retrieveDepartment(ctx echo.Context) error {
	dep, err := api.svc.GetDepartment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting department")
	}
	return ctx.JSON(http.StatusOK, dep)
}

func (api *courseApi) updateDepartment(ctx echo.Context) error {
	var data course.DepartmentInput
	if err := bindValid(ctx, api.validate, &data, "DepartmentInput"); err != nil {
		return err
	}
	dep, err := api.svc.UpdateDepartment(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating department")
	}
	return ctx.JSON(http.StatusOK, dep)
}

func (api *courseApi) destroyDepartment(ctx echo.Context) error {
	if err := api.svc.DeleteDepartment(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting department")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Academic years & semesters

func (api *courseApi) listAcademicYears(ctx echo.Context) error {
	years, err := api.svc.ListAcademicYears(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing academic years")
	}
	return listJSON(ctx, http.StatusOK, years)
}

func (api *courseApi) createAcademicYear(ctx echo.Context) error {
	var data course.AcademicYearInput
	if err := bindValid(ctx, api.validate, &data, "AcademicYearInput"); err != nil {
		return err
	}
	year, err := api.svc.CreateAcademicYear(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating academic year")
	}
	return ctx.JSON(http.StatusCreated, year)
}

func (api *courseApi) setCurrentAcademicYear(ctx echo.Context) error {
	year, err := api.svc.SetCurrentAcademicYear(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "setting current academic year")
	}
	return ctx.JSON(http.StatusOK, year)
}

func (api *courseApi) destroyAcademicYear(ctx echo.Context) error {
	if err := api.svc.DeleteAcademicYear(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting academic year")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) listSemesters(ctx echo.Context) error {
	sems, err := api.svc.ListSemesters(ctx.Request().Context(), ctx.QueryParam("academic_year"))
	if err != nil {
		return errors.Wrap(err, "listing semesters")
	}
	return listJSON(ctx, http.StatusOK, sems)
}

func (api *courseApi) currentSemester(ctx echo.Context) error {
	sem, err := api.svc.CurrentSemester(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting current semester")
	}
	return ctx.JSON(http.StatusOK, sem)
}

func (api *courseApi) createSemester(ctx echo.Context) error {
	var data course.SemesterInput
	if err := bindValid(ctx, api.validate, &data, "SemesterInput"); err != nil {
		return err
	}
	sem, err := api.svc.CreateSemester(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating semester")
	}
	return ctx.JSON(http.StatusCreated, sem)
}

func (api *courseApi) updateSemester(ctx echo.Context) error {
	var data course.SemesterInput
	if err := bindValid(ctx, api.validate, &data, "SemesterInput"); err != nil {
		return err
	}
	sem, err := api.svc.UpdateSemester(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating semester")
	}
	return ctx.JSON(http.StatusOK, sem)
}

func (api *courseApi) setCurrentSemester(ctx echo.Context) error {
	sem, err := api.svc.SetCurrentSemester(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "setting current semester")
	}
	return ctx.JSON(http.StatusOK, sem)
}

func (api *courseApi) destroySemester(ctx echo.Context) error {
	if err := api.svc.DeleteSemester(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting semester")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Courses

func (api *courseApi) listCourses(ctx echo.Context) error {
	filter := new(course.CourseFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.Clean()

	courses, err := api.svc.ListCourses(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	return listJSON(ctx, http.StatusOK, courses)
}

func (api *courseApi) createCourse(ctx echo.Context) error {
	var data course.CourseInput
	if err := bindValid(ctx, api.validate, &data, "CourseInput"); err != nil {
		return err
	}
	crs, err := api.svc.CreateCourse(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) retrieveCourse(ctx echo.Context) error {
	crs, err := api.svc.GetCourse(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) updateCourse(ctx echo.Context) error {
	var data course.CourseInput
	if err := bindValid(ctx, api.validate, &data, "CourseInput"); err != nil {
		return err
	}
	crs, err := api.svc.UpdateCourse(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroyCourse(ctx echo.Context) error {
	if err := api.svc.DeleteCourse(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) dashboard(ctx echo.Context) error {
	stats, err := api.svc.DashboardStats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting dashboard stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

// Curricula

func (api *courseApi) listCurricula(ctx echo.Context) error {
	list, err := api.svc.ListCurricula(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing curricula")
	}
	return listJSON(ctx, http.StatusOK, list)
}

func (api *courseApi) createCurriculum(ctx echo.Context) error {
	var data course.CurriculumInput
	if err := bindValid(ctx, api.validate, &data, "CurriculumInput"); err != nil {
		return err
	}
	cur, err := api.svc.CreateCurriculum(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating curriculum")
	}
	return ctx.JSON(http.StatusCreated, cur)
}

func (api *courseApi) retrieveCurriculum(ctx echo.Context) error {
	cur, err := api.svc.GetCurriculum(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting curriculum")
	}
	return ctx.JSON(http.StatusOK, cur)
}

func (api *courseApi) updateCurriculum(ctx echo.Context) error {
	var data course.CurriculumInput
	if err := bindValid(ctx, api.validate, &data, "CurriculumInput"); err != nil {
		return err
	}
	cur, err := api.svc.UpdateCurriculum(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating curriculum")
	}
	return ctx.JSON(http.StatusOK, cur)
}

func (api *courseApi) destroyCurriculum(ctx echo.Context) error {
	if err := api.svc.DeleteCurriculum(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting curriculum")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) listCurriculumCourses(ctx echo.Context) error {
	list, err := api.svc.CurriculumCourses(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing curriculum courses")
	}
	return listJSON(ctx, http.StatusOK, list)
}

func (api *courseApi) addCurriculumCourse(ctx echo.Context) error {
	var data course.CurriculumCourseInput
	if err := bindValid(ctx, api.validate, &data, "CurriculumCourseInput"); err != nil {
		return err
	}
	cc, err := api.svc.AddCurriculumCourse(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding curriculum course")
	}
	return ctx.JSON(http.StatusCreated, cc)
}

func (api *courseApi) removeCurriculumCourse(ctx echo.Context) error {
	if err := api.svc.RemoveCurriculumCourse(ctx.Request().Context(), ctx.Param("id"), ctx.Param("ccid")); err != nil {
		return errors.Wrap(err, "removing curriculum course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Offerings

func (api *courseApi) listOfferings(ctx echo.Context) error {
	filter := new(course.OfferingFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Offering{})
	}
	list, err := api.svc.ListOfferings(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "listing offerings")
	}
	return listJSON(ctx, http.StatusOK, list)
}

func (api *courseApi) createOffering(ctx echo.Context) error {
	var data course.OfferingInput
	if err := bindValid(ctx, api.validate, &data, "OfferingInput"); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	off, err := api.svc.CreateOffering(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating offering")
	}
	return ctx.JSON(http.StatusCreated, off)
}

func (api *courseApi) retrieveOffering(ctx echo.Context) error {
	off, err := api.svc.GetOffering(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting offering")
	}
	return ctx.JSON(http.StatusOK, off)
}

func (api *courseApi) updateOffering(ctx echo.Context) error {
	var data course.OfferingInput
	if err := bindValid(ctx, api.validate, &data, "OfferingInput"); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	off, err := api.svc.UpdateOffering(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating offering")
	}
	return ctx.JSON(http.StatusOK, off)
}

func (api *courseApi) destroyOffering(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.DeleteOffering(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting offering")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) offeringDetail(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	detail, err := api.svc.OfferingDetail(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting offering detail")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *courseApi) classList(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if ctx.QueryParam(formatParam) == "" {
		list, err := api.svc.ClassList(ctx.Request().Context(), actor, ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "getting class list")
		}
		return listJSON(ctx, http.StatusOK, list)
	}

	format, err := exportFormat(ctx, false)
	if err != nil {
		return err
	}
	tbl, err := api.svc.ExportClassList(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "exporting class list")
	}
	return sendTable(ctx, tbl, format)
}

// Enrollment periods

func (api *courseApi) listPeriods(ctx echo.Context) error {
	list, err := api.svc.ListPeriods(ctx.Request().Context(), ctx.QueryParam("semester"))
	if err != nil {
		return errors.Wrap(err, "listing enrollment periods")
	}
	return listJSON(ctx, http.StatusOK, list)
}

func (api *courseApi) createPeriod(ctx echo.Context) error {
	var data course.EnrollmentPeriodInput
	if err := bindValid(ctx, api.validate, &data, "EnrollmentPeriodInput"); err != nil {
		return err
	}
	period, err := api.svc.CreatePeriod(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating enrollment period")
	}
	return ctx.JSON(http.StatusCreated, period)
}

func (api *courseApi) updatePeriod(ctx echo.Context) error {
	var data course.EnrollmentPeriodInput
	if err := bindValid(ctx, api.validate, &data, "EnrollmentPeriodInput"); err != nil {
		return err
	}
	period, err := api.svc.UpdatePeriod(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating enrollment period")
	}
	return ctx.JSON(http.StatusOK, period)
}

func (api *courseApi) destroyPeriod(ctx echo.Context) error {
	if err := api.svc.DeletePeriod(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting enrollment period")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Student curricula

func (api *courseApi) listStudentCurricula(ctx echo.Context) error {
	filter := course.StudentCurriculumFilter{
		StudentID:    ctx.QueryParam("student"),
		CurriculumID: ctx.QueryParam("curriculum"),
		YearLevel:    queryInt(ctx, "year_level", 0),
		ActiveOnly:   queryBool(ctx, "active"),
	}
	list, err := api.svc.ListStudentCurricula(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing student curricula")
	}
	return listJSON(ctx, http.StatusOK, list)
}

func (api *courseApi) assignCurriculum(ctx echo.Context) error {
	var data course.StudentCurriculumInput
	if err := bindValid(ctx, api.validate, &data, "StudentCurriculumInput"); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sc, err := api.svc.AssignCurriculum(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "assigning curriculum")
	}
	return ctx.JSON(http.StatusCreated, sc)
}

func (api *courseApi) unassignCurriculum(ctx echo.Context) error {
	if err := api.svc.UnassignCurriculum(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "unassigning curriculum")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Enrollment

func (api *courseApi) listEnrollments(ctx echo.Context) error {
	filter := new(course.EnrollmentFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Enrollment{})
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	list, err := api.svc.ListEnrollments(ctx.Request().Context(), actor, *filter)
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}
	return listJSON(ctx, http.StatusOK, list)
}

func (api *courseApi) exportEnrollments(ctx echo.Context) error {
	filter := new(course.EnrollmentFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to EnrollmentFilter")
	}
	format, err := exportFormat(ctx, false)
	if err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	tbl, err := api.svc.ExportEnrollments(ctx.Request().Context(), actor, *filter)
	if err != nil {
		return errors.Wrap(err, "exporting enrollments")
	}
	return sendTable(ctx, tbl, format)
}

func (api *courseApi) overview(ctx echo.Context) error {
	student, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ov, err := api.svc.StudentOverview(ctx.Request().Context(), student)
	if err != nil {
		return errors.Wrap(err, "getting enrollment overview")
	}
	return ctx.JSON(http.StatusOK, ov)
}

func (api *courseApi) checkPrerequisites(ctx echo.Context) error {
	student, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	rctx := ctx.Request().Context()
	off, err := api.svc.GetOffering(rctx, ctx.QueryParam("offering"))
	if err != nil {
		return errors.Wrap(err, "getting offering")
	}
	crs, err := api.svc.GetCourse(rctx, off.CourseID)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	missing, err := api.svc.CheckPrerequisites(rctx, student.ID, crs)
	if err != nil {
		return errors.Wrap(err, "checking prerequisites")
	}
	if missing == nil {
		missing = []string{}
	}
	return ctx.JSON(http.StatusOK, PrerequisitesResponse{Satisfied: len(missing) == 0, Missing: missing})
}

func (api *courseApi) enroll(ctx echo.Context) error {
	var data EnrollRequest
	if err := bindValid(ctx, api.validate, &data, "EnrollRequest"); err != nil {
		return err
	}
	student, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.Enroll(ctx.Request().Context(), student, data.OfferingID)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	api.activity.log(ctx, student, analytics.ActionCourseEnroll, res.Message,
		map[string]interface{}{"offering_id": data.OfferingID, "status": res.Enrollment.Status})
	return ctx.JSON(http.StatusCreated, res)
}

func (api *courseApi) cancelEnrollment(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	enr, err := api.svc.CancelEnrollment(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "cancelling enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *courseApi) approveEnrollment(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	enr, err := api.svc.ApproveEnrollment(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *courseApi) rejectEnrollment(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	enr, err := api.svc.RejectEnrollment(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "rejecting enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *courseApi) setGrades(ctx echo.Context) error {
	var data course.GradesInput
	if err := bindValid(ctx, api.validate, &data, "GradesInput"); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	enr, err := api.svc.SetGrades(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "setting grades")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *courseApi) bulkEnroll(ctx echo.Context) error {
	var data course.BulkEnrollInput
	if err := bindValid(ctx, api.validate, &data, "BulkEnrollInput"); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.BulkEnroll(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "bulk enrolling")
	}
	return ctx.JSON(http.StatusOK, res)
}

// Enrollment codes

func (api *courseApi) listCodes(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	codes, err := api.svc.ListCodes(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing enrollment codes")
	}
	return listJSON(ctx, http.StatusOK, codes)
}

func (api *courseApi) generateCodes(ctx echo.Context) error {
	var data course.GenerateCodesInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateCodesInput")
	}
	data.OfferingID = ctx.Param("id")
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	codes, err := api.svc.GenerateCodes(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "generating enrollment codes")
	}
	return listJSON(ctx, http.StatusCreated, codes)
}

func (api *courseApi) deactivateCode(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	code, err := api.svc.DeactivateCode(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deactivating enrollment code")
	}
	return ctx.JSON(http.StatusOK, code)
}

func (api *courseApi) redeemCode(ctx echo.Context) error {
	var data course.RedeemCodeInput
	if err := bindValid(ctx, api.validate, &data, "RedeemCodeInput"); err != nil {
		return err
	}
	student, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.UseCode(ctx.Request().Context(), student, data.Code, ctx.RealIP())
	if err != nil {
		return errors.Wrap(err, "redeeming enrollment code")
	}
	api.activity.log(ctx, student, analytics.ActionCourseEnroll, res.Message,
		map[string]interface{}{"offering_id": res.Enrollment.OfferingID, "code": data.Code})
	return ctx.JSON(http.StatusCreated, res)
}

type (
	EnrollRequest struct {
		OfferingID string `json:"offering_id" validate:"required"`
	}

	PrerequisitesResponse struct {
		Satisfied bool     `json:"satisfied"`
		Missing   []string `json:"missing"`
	}
)

func (er *EnrollRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(er)
}
