package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/spist/campus/core/analytics"
	"github.com/spist/campus/core/assessment"
)

type assessmentApi struct {
	svc      assessment.ServiceInterface
	auth     *authenticator
	activity *activityLogger
	validate *validator.Validate
}

func registerAssessmentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	activity *activityLogger,
	svc assessment.ServiceInterface,
	validate *validator.Validate,
) {
	api := assessmentApi{
		svc:      svc,
		auth:     auth,
		activity: activity,
		validate: validate,
	}

	ag := g.Group("/assessments", jwt)
	ag.GET("", api.list, staffMiddleware)
	ag.POST("", api.create, staffMiddleware)
	ag.GET("/available", api.available, studentMiddleware)
	ag.GET("/grading-queue", api.gradingQueue, staffMiddleware)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update, staffMiddleware)
	ag.DELETE("/:id", api.destroy, staffMiddleware)
	ag.POST("/:id/publish", api.publish, staffMiddleware)
	ag.POST("/:id/archive", api.archive, staffMiddleware)
	ag.GET("/:id/questions", api.listQuestions, staffMiddleware)
	ag.POST("/:id/questions", api.addQuestion, staffMiddleware)
	ag.GET("/:id/results", api.results, staffMiddleware)
	ag.GET("/:id/export-grades", api.exportGrades, staffMiddleware)

	// taking
	ag.POST("/:id/take", api.take, studentMiddleware)
	ag.POST("/:id/save-progress", api.saveProgress, studentMiddleware)
	ag.POST("/:id/track-violation", api.trackViolation, studentMiddleware)
	ag.POST("/:id/submit", api.submit, studentMiddleware)

	qg := g.Group("/questions", jwt, staffMiddleware)
	qg.PUT("/:id", api.updateQuestion)
	qg.DELETE("/:id", api.destroyQuestion)

	atg := g.Group("/attempts", jwt)
	atg.GET("", api.myAttempts, studentMiddleware)
	atg.GET("/:id", api.attemptResult)
	atg.GET("/:id/violations", api.violations, staffMiddleware)
	atg.POST("/:id/grade", api.grade, staffMiddleware)
}

// Authoring

func (api *assessmentApi) list(ctx echo.Context) error {
	filter := new(assessment.Filter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []assessment.Assessment{})
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	list, err := api.svc.List(ctx.Request().Context(), actor, *filter)
	if err != nil {
		return errors.Wrap(err, "listing assessments")
	}
	return listJSON(ctx, http.StatusOK, list)
}

func (api *assessmentApi) create(ctx echo.Context) error {
	var data assessment.AssessmentInput
	if err := bindValid(ctx, api.validate, &data, "AssessmentInput"); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	a, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating assessment")
	}
	api.activity.log(ctx, actor, analytics.ActionAssessmentCreate, "Created "+a.AssessmentType+": "+a.Title,
		map[string]interface{}{"assessment_id": a.ID})
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assessmentApi) retrieve(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	detail, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assessment")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *assessmentApi) update(ctx echo.Context) error {
	var data assessment.AssessmentInput
	if err := bindValid(ctx, api.validate, &data, "AssessmentInput"); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	a, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating assessment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assessmentApi) destroy(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assessment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assessmentApi) publish(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	a, err := api.svc.Publish(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "publishing assessment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assessmentApi) archive(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	a, err := api.svc.Archive(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "archiving assessment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assessmentApi) listQuestions(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	detail, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assessment")
	}
	return listJSON(ctx, http.StatusOK, detail.Questions)
}

func (api *assessmentApi) addQuestion(ctx echo.Context) error {
	var data assessment.QuestionInput
	if err := bindValid(ctx, api.validate, &data, "QuestionInput"); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	q, err := api.svc.AddQuestion(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding question")
	}
	api.activity.log(ctx, actor, analytics.ActionQuestionAdd, "Added a "+q.QuestionType+" question",
		map[string]interface{}{"assessment_id": q.AssessmentID, "question_id": q.ID})
	return ctx.JSON(http.StatusCreated, q)
}

func (api *assessmentApi) updateQuestion(ctx echo.Context) error {
	var data assessment.QuestionInput
	if err := bindValid(ctx, api.validate, &data, "QuestionInput"); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	q, err := api.svc.UpdateQuestion(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *assessmentApi) destroyQuestion(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.DeleteQuestion(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Taking

func (api *assessmentApi) available(ctx echo.Context) error {
	student, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	list, err := api.svc.Available(ctx.Request().Context(), student)
	if err != nil {
		return errors.Wrap(err, "listing available assessments")
	}
	return listJSON(ctx, http.StatusOK, list)
}

func (api *assessmentApi) take(ctx echo.Context) error {
	student, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	view, err := api.svc.Start(ctx.Request().Context(), student, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "starting attempt")
	}
	if !view.Resumed {
		api.activity.log(ctx, student, analytics.ActionAssessmentStart, "Started "+view.Assessment.Title,
			map[string]interface{}{"assessment_id": view.Assessment.ID, "attempt_id": view.Attempt.ID})
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *assessmentApi) saveProgress(ctx echo.Context) error {
	var data assessment.Submission
	if err := bindValid(ctx, api.validate, &data, "Submission"); err != nil {
		return err
	}
	student, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if _, err := api.svc.SaveProgress(ctx.Request().Context(), student, ctx.Param("id"), data); err != nil {
		return errors.Wrap(err, "saving progress")
	}
	return ctx.JSON(http.StatusOK, SaveProgressResponse{Success: true, SavedAt: time.Now().UTC()})
}

func (api *assessmentApi) trackViolation(ctx echo.Context) error {
	var data assessment.ViolationInput
	if err := bindValid(ctx, api.validate, &data, "ViolationInput"); err != nil {
		return err
	}
	student, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	at, err := api.svc.TrackViolation(ctx.Request().Context(), student, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "tracking violation")
	}
	return ctx.JSON(http.StatusOK, ViolationResponse{Success: true, Violations: at.Violations})
}

func (api *assessmentApi) submit(ctx echo.Context) error {
	var data assessment.Submission
	if err := bindValid(ctx, api.validate, &data, "Submission"); err != nil {
		return err
	}
	student, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.Submit(ctx.Request().Context(), student, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting attempt")
	}
	api.activity.log(ctx, student, analytics.ActionAssessmentComplete, "Completed "+res.Assessment.Title,
		map[string]interface{}{
			"assessment_id": res.Assessment.ID,
			"attempt_id":    res.Attempt.ID,
			"percentage":    res.Attempt.Percentage,
		})
	return ctx.JSON(http.StatusOK, res)
}

func (api *assessmentApi) myAttempts(ctx echo.Context) error {
	student, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	list, err := api.svc.StudentAttempts(ctx.Request().Context(), student)
	if err != nil {
		return errors.Wrap(err, "listing attempts")
	}
	return listJSON(ctx, http.StatusOK, list)
}

func (api *assessmentApi) attemptResult(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.AttemptResult(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting attempt result")
	}
	if actor.IsStudent() {
		api.activity.log(ctx, actor, analytics.ActionGradeView, "Viewed result of "+res.Assessment.Title,
			map[string]interface{}{"attempt_id": res.Attempt.ID})
	}
	return ctx.JSON(http.StatusOK, res)
}

// Grading

func (api *assessmentApi) results(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	list, err := api.svc.Results(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting results")
	}
	return listJSON(ctx, http.StatusOK, list)
}

func (api *assessmentApi) exportGrades(ctx echo.Context) error {
	format, err := exportFormat(ctx, false)
	if err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	tbl, err := api.svc.ExportGrades(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "exporting grades")
	}
	return sendTable(ctx, tbl, format)
}

func (api *assessmentApi) gradingQueue(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	list, err := api.svc.GradingQueue(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "getting grading queue")
	}
	return listJSON(ctx, http.StatusOK, list)
}

func (api *assessmentApi) violations(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	list, err := api.svc.Violations(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing violations")
	}
	return listJSON(ctx, http.StatusOK, list)
}

func (api *assessmentApi) grade(ctx echo.Context) error {
	var data assessment.GradeInput
	if err := bindValid(ctx, api.validate, &data, "GradeInput"); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.Grade(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading attempt")
	}
	return ctx.JSON(http.StatusOK, res)
}

type (
	SaveProgressResponse struct {
		Success bool      `json:"success"`
		SavedAt time.Time `json:"saved_at"`
	}

	ViolationResponse struct {
		Success    bool `json:"success"`
		Violations int  `json:"violations"`
	}
)
