package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/spist/campus/core/analytics"
	"github.com/spist/campus/core/user"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// staffMiddleware lets teachers and admins through.
func staffMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if claims.IsAdmin || claims.IsTeacher {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

func studentMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if claims.IsStudent {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// activityLogger records user actions in the analytics activity log.
type activityLogger struct {
	svc analytics.ServiceInterface
}

func newActivityLogger(svc analytics.ServiceInterface) *activityLogger {
	return &activityLogger{svc: svc}
}

func (al *activityLogger) log(ctx echo.Context, usr user.User, action, description string, meta map[string]interface{}) {
	if al == nil || al.svc == nil {
		return
	}
	req := ctx.Request()
	al.svc.Log(req.Context(), usr, action, description, meta, ctx.RealIP(), req.UserAgent())
}
