package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/albumforge/backoffice/internal/rbac"
)

// RequirePermission enforces that the authenticated user holds the named
// permission (or the super-admin role). It assumes the route guard already
// stored the user id in the context; a missing id is rejected outright. The
// resolver grant is loaded on first use and then answered from cache.
func RequirePermission(r *rbac.Resolver, name string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, ok := c.Get(CtxUserID).(uint64)
			if !ok || uid == 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			if !r.Loaded(uid) {
				ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
				err := r.Load(ctx, uid)
				cancel()
				if err != nil {
					// Load failure means no proven permission: deny.
					return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
				}
			}
			if !r.Authorized(uid, name) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
