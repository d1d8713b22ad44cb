package echoapi

import (
	"github.com/labstack/echo/v4"
)

// roleMiddleware lets through the users holding one of roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// ctxUserOrAdminMiddleware only lets the `:id` user themselves or an admin through.
func ctxUserOrAdminMiddleware(a *auth) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := a.getContextUser(ctx)
			if err != nil {
				return err
			}
			if ctx.Param("id") == ctxUsr.ID || ctxUsr.IsAdmin() {
				return next(ctx)
			}
			return errHttpNotFound
		}
	}
}
