// Package router registers the HTTP routes for the marketing site and the
// admin back-office.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/albumforge/backoffice/internal/config"
	"github.com/albumforge/backoffice/internal/handler"
	"github.com/albumforge/backoffice/internal/middleware"
	"github.com/albumforge/backoffice/internal/rbac"
)

// RegisterRoutes registers routes that need no authentication: the health
// check and the generic error page the route guard redirects to.
func RegisterRoutes(e *echo.Echo, admin *handler.AdminHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/error", admin.ErrorPage)
}

// RegisterAuth registers the session endpoints under /v1/auth plus the
// authenticated /v1/me probe. The handlers read and write cookies through
// the cookie policy, so no extra middleware is needed here.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/logout", a.Logout)
	g.POST("/refresh", a.Refresh)

	e.GET("/v1/me", a.Me)
}

// RegisterAdmin registers the back-office pages. Access control lives in
// the route guard (registered with e.Pre in main); by the time these run,
// the session has been verified and no-store headers attached.
func RegisterAdmin(e *echo.Echo, admin *handler.AdminHandler) {
	e.GET("/admin/login", admin.LoginPage)
	e.GET("/admin/dashboard", admin.Dashboard)
}

// RegisterAPI registers the public API surface and the permission-gated
// admin API. The rate limiter and response cache are Redis-backed and shut
// off gracefully when rdb is nil.
func RegisterAPI(e *echo.Echo, catalog *handler.CatalogHandler, admin *handler.AdminHandler,
	resolver *rbac.Resolver, rdb *redis.Client) {

	api := e.Group("/api", middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	api.GET("/status", handler.Status)
	api.GET("/products", catalog.ListProducts, middleware.NewResponseCache(config.LoadCacheConfig(), rdb))

	adminAPI := api.Group("/admin")
	adminAPI.GET("/analytics", admin.Analytics, middleware.RequirePermission(resolver, "view_analytics"))
}
