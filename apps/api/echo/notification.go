package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/spist/campus/core/notification"
	"github.com/spist/campus/services/realtime"
)

var errHubUnavailable = echo.NewHTTPError(http.StatusServiceUnavailable, "live notifications are unavailable")

type notificationApi struct {
	svc      notification.ServiceInterface
	auth     *authenticator
	hub      *realtime.Hub
	validate *validator.Validate
}

func registerNotificationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc notification.ServiceInterface,
	hub *realtime.Hub,
	validate *validator.Validate,
) {
	api := notificationApi{
		svc:      svc,
		auth:     auth,
		hub:      hub,
		validate: validate,
	}

	// browsers cannot set headers on websocket handshakes
	wsConfig := appJWTConfig
	wsConfig.TokenLookup = "query:token"
	g.GET("/notifications/ws", api.live, middleware.JWTWithConfig(wsConfig))

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.list)
	ng.GET("/unread-count", api.unreadCount)
	ng.POST("/read-all", api.markAllRead)
	ng.POST("/:id/read", api.markRead)

	ag := g.Group("/announcements", jwt)
	ag.GET("", api.listAnnouncements)
	ag.POST("", api.createAnnouncement, adminMiddleware())
	ag.PUT("/:id", api.updateAnnouncement, adminMiddleware())
	ag.DELETE("/:id", api.destroyAnnouncement, adminMiddleware())
}

func (api *notificationApi) list(ctx echo.Context) error {
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	list, err := api.svc.List(ctx.Request().Context(), usr, queryBool(ctx, "unread"))
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	return listJSON(ctx, http.StatusOK, list)
}

func (api *notificationApi) unreadCount(ctx echo.Context) error {
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.UnreadCount(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.MarkRead(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.MarkAllRead(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *notificationApi) live(ctx echo.Context) error {
	if api.hub == nil {
		return errHubUnavailable
	}
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.hub.ServeWS(ctx.Response(), ctx.Request(), usr.ID); err != nil {
		// the upgrader has already answered the client
		ctx.Logger().Warnf("websocket upgrade: %v", err)
	}
	return nil
}

// Announcements

func (api *notificationApi) listAnnouncements(ctx echo.Context) error {
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	rctx := ctx.Request().Context()

	var list []notification.Announcement
	if usr.IsAdmin() && queryBool(ctx, "all") {
		list, err = api.svc.ListAnnouncements(rctx)
	} else {
		list, err = api.svc.ActiveAnnouncements(rctx, usr)
	}
	if err != nil {
		return errors.Wrap(err, "listing announcements")
	}
	return listJSON(ctx, http.StatusOK, list)
}

func (api *notificationApi) createAnnouncement(ctx echo.Context) error {
	var data notification.AnnouncementInput
	if err := bindValid(ctx, api.validate, &data, "AnnouncementInput"); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	a, err := api.svc.CreateAnnouncement(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating announcement")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *notificationApi) updateAnnouncement(ctx echo.Context) error {
	var data notification.AnnouncementInput
	if err := bindValid(ctx, api.validate, &data, "AnnouncementInput"); err != nil {
		return err
	}
	a, err := api.svc.UpdateAnnouncement(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating announcement")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *notificationApi) destroyAnnouncement(ctx echo.Context) error {
	if err := api.svc.DeleteAnnouncement(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	return ctx.NoContent(http.StatusNoContent)
}
