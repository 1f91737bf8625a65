package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/analytics"
)

const (
	defaultPeriodDays   = 30
	defaultActivityRows = 20
)

type analyticsApi struct {
	svc  analytics.ServiceInterface
	auth *authenticator
}

func registerAnalyticsAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc analytics.ServiceInterface,
) {
	api := analyticsApi{
		svc:  svc,
		auth: auth,
	}

	ag := g.Group("/analytics", jwt, staffMiddleware)
	ag.GET("/dashboard", api.dashboard)
	ag.GET("/activity", api.activity)
	ag.GET("/students", api.students)
	ag.GET("/teachers", api.teachers)
	ag.GET("/assessments", api.assessments)
	ag.GET("/system", api.system, adminMiddleware())
	ag.GET("/export", api.export)
}

func (api *analyticsApi) dashboard(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	dash, err := api.svc.Dashboard(ctx.Request().Context(), actor, queryInt(ctx, "period", defaultPeriodDays))
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *analyticsApi) activity(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	list, err := api.svc.RecentActivity(ctx.Request().Context(), actor, queryInt(ctx, "limit", defaultActivityRows))
	if err != nil {
		return errors.Wrap(err, "getting recent activity")
	}
	return listJSON(ctx, http.StatusOK, list)
}

func (api *analyticsApi) students(ctx echo.Context) error {
	filter := analytics.PerformanceFilter{
		StudentID:    ctx.QueryParam("student"),
		AssessmentID: ctx.QueryParam("assessment"),
		MinAttempts:  queryInt(ctx, "min_attempts", 0),
		Limit:        queryInt(ctx, "limit", 0),
	}
	var err error
	if filter.From, err = optionalDate(ctx, "from"); err != nil {
		return err
	}
	if filter.To, err = optionalDate(ctx, "to"); err != nil {
		return err
	}
	if !filter.To.IsZero() {
		filter.To = filter.To.AddDate(0, 0, 1) // inclusive
	}

	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sa, err := api.svc.StudentAnalytics(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "building student analytics")
	}
	return ctx.JSON(http.StatusOK, sa)
}

func (api *analyticsApi) teachers(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	list, err := api.svc.TeacherAnalytics(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "building teacher analytics")
	}
	return listJSON(ctx, http.StatusOK, list)
}

func (api *analyticsApi) assessments(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	aa, err := api.svc.AssessmentAnalytics(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "building assessment analytics")
	}
	return ctx.JSON(http.StatusOK, aa)
}

func (api *analyticsApi) system(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sa, err := api.svc.SystemAnalytics(ctx.Request().Context(), actor, queryInt(ctx, "period", defaultPeriodDays))
	if err != nil {
		return errors.Wrap(err, "building system analytics")
	}
	return ctx.JSON(http.StatusOK, sa)
}

func (api *analyticsApi) export(ctx echo.Context) error {
	format, err := exportFormat(ctx, true)
	if err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	exp, err := api.svc.Export(ctx.Request().Context(), actor, ctx.QueryParam("type"))
	if err != nil {
		return errors.Wrap(err, "exporting analytics")
	}
	if format == core.ExportJSON {
		return listJSON(ctx, http.StatusOK, exp.Data)
	}
	return sendTable(ctx, exp.Table, format)
}

func optionalDate(ctx echo.Context, name string) (time.Time, error) {
	if ctx.QueryParam(name) == "" {
		return time.Time{}, nil
	}
	return queryDate(ctx, name)
}
