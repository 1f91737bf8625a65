package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/calendar"
)

const defaultUpcomingLimit = 10

type calendarApi struct {
	svc      calendar.ServiceInterface
	auth     *authenticator
	validate *validator.Validate
	appName  string
}

func registerCalendarAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc calendar.ServiceInterface,
	validate *validator.Validate,
) {
	api := calendarApi{
		svc:      svc,
		auth:     auth,
		validate: validate,
		appName:  core.Conf.AppName,
	}

	cg := g.Group("/calendar", jwt)
	cg.GET("/events", api.feed)
	cg.POST("/events", api.createEvent, staffMiddleware)
	cg.GET("/events/:id", api.retrieveEvent)
	cg.GET("/events/:id/ics", api.eventICS)
	cg.PUT("/events/:id", api.updateEvent, staffMiddleware)
	cg.DELETE("/events/:id", api.destroyEvent, staffMiddleware)
	cg.POST("/events/:id/remind", api.remind)

	cg.GET("/month", api.month)
	cg.GET("/week", api.week)
	cg.GET("/day", api.day)
	cg.GET("/upcoming", api.upcoming)

	cg.GET("/categories", api.listCategories)
	cg.POST("/categories", api.createCategory, adminMiddleware())
	cg.PUT("/categories/:id", api.updateCategory, adminMiddleware())
	cg.DELETE("/categories/:id", api.destroyCategory, adminMiddleware())

	cg.GET("/settings", api.retrieveSettings)
	cg.PUT("/settings", api.updateSettings)
}

// feedDate accepts both plain dates and the ISO timestamps sent by calendar widgets.
func feedDate(s string) string {
	if len(s) > len(dateLayout) {
		return s[:len(dateLayout)]
	}
	return s
}

func (api *calendarApi) feed(ctx echo.Context) error {
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	params := ctx.QueryParams()
	categories := append(params["categories[]"], params["categories"]...)

	items, err := api.svc.Feed(ctx.Request().Context(), usr, feedDate(ctx.QueryParam("start")), feedDate(ctx.QueryParam("end")), categories)
	if err != nil {
		return errors.Wrap(err, "getting calendar feed")
	}
	return listJSON(ctx, http.StatusOK, items)
}

func (api *calendarApi) month(ctx echo.Context) error {
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	now := time.Now().UTC()
	year := queryInt(ctx, "year", now.Year())
	month := queryInt(ctx, "month", int(now.Month()))
	if month < 1 || month > 12 {
		return core.NewFieldError("month", "Invalid month")
	}

	m, err := api.svc.Month(ctx.Request().Context(), usr, year, month)
	if err != nil {
		return errors.Wrap(err, "getting month view")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *calendarApi) week(ctx echo.Context) error {
	day, err := queryDate(ctx, "date")
	if err != nil {
		return err
	}
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	w, err := api.svc.Week(ctx.Request().Context(), usr, day)
	if err != nil {
		return errors.Wrap(err, "getting week view")
	}
	return ctx.JSON(http.StatusOK, w)
}

func (api *calendarApi) day(ctx echo.Context) error {
	day, err := queryDate(ctx, "date")
	if err != nil {
		return err
	}
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	events, err := api.svc.Day(ctx.Request().Context(), usr, day)
	if err != nil {
		return errors.Wrap(err, "getting day view")
	}
	return listJSON(ctx, http.StatusOK, events)
}

func (api *calendarApi) upcoming(ctx echo.Context) error {
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	events, err := api.svc.Upcoming(ctx.Request().Context(), usr, queryInt(ctx, "limit", defaultUpcomingLimit))
	if err != nil {
		return errors.Wrap(err, "getting upcoming events")
	}
	return listJSON(ctx, http.StatusOK, events)
}

// Events

func (api *calendarApi) retrieveEvent(ctx echo.Context) error {
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	detail, err := api.svc.GetEvent(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting event")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *calendarApi) eventICS(ctx echo.Context) error {
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	detail, err := api.svc.GetEvent(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting event")
	}
	ics := calendar.ICS(detail.Event, api.appName, time.Now().UTC())
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="event.ics"`)
	return ctx.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(ics))
}

func (api *calendarApi) createEvent(ctx echo.Context) error {
	var data calendar.EventInput
	if err := bindValid(ctx, api.validate, &data, "EventInput"); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	e, err := api.svc.CreateEvent(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating event")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *calendarApi) updateEvent(ctx echo.Context) error {
	var data calendar.EventInput
	if err := bindValid(ctx, api.validate, &data, "EventInput"); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	e, err := api.svc.UpdateEvent(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating event")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *calendarApi) destroyEvent(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.DeleteEvent(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting event")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *calendarApi) remind(ctx echo.Context) error {
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	r, err := api.svc.Remind(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "setting reminder")
	}
	return ctx.JSON(http.StatusOK, r)
}

// Categories

func (api *calendarApi) listCategories(ctx echo.Context) error {
	activeOnly := true
	if claims, err := getContextClaims(ctx); err == nil && claims.IsAdmin {
		activeOnly = queryBool(ctx, "active")
	}
	list, err := api.svc.ListCategories(ctx.Request().Context(), activeOnly)
	if err != nil {
		return errors.Wrap(err, "listing categories")
	}
	return listJSON(ctx, http.StatusOK, list)
}

func (api *calendarApi) createCategory(ctx echo.Context) error {
	var data calendar.CategoryInput
	if err := bindValid(ctx, api.validate, &data, "CategoryInput"); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	c, err := api.svc.CreateCategory(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating category")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *calendarApi) updateCategory(ctx echo.Context) error {
	var data calendar.CategoryInput
	if err := bindValid(ctx, api.validate, &data, "CategoryInput"); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	c, err := api.svc.UpdateCategory(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating category")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *calendarApi) destroyCategory(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.DeleteCategory(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting category")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Settings

func (api *calendarApi) retrieveSettings(ctx echo.Context) error {
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	s, err := api.svc.GetSettings(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "getting calendar settings")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *calendarApi) updateSettings(ctx echo.Context) error {
	var data calendar.SettingsInput
	if err := bindValid(ctx, api.validate, &data, "SettingsInput"); err != nil {
		return err
	}
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	s, err := api.svc.UpdateSettings(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating calendar settings")
	}
	return ctx.JSON(http.StatusOK, s)
}
