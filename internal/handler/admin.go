package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/albumforge/backoffice/internal/middleware"
	"github.com/albumforge/backoffice/internal/rbac"
)

// AdminHandler serves the back-office shell pages. The route guard decides
// who reaches these; the handlers only render. The real pages are a
// client-side bundle, so these endpoints return the minimal documents it
// mounts into.
type AdminHandler struct {
	Resolver *rbac.Resolver
}

func NewAdminHandler(r *rbac.Resolver) *AdminHandler {
	return &AdminHandler{Resolver: r}
}

// LoginPage renders the sign-in form shell. Authenticated users never see
// it; the guard redirects them to the dashboard first.
func (h *AdminHandler) LoginPage(c echo.Context) error {
	return c.HTML(http.StatusOK, `<!DOCTYPE html>
<html><head><title>Back Office — Sign in</title></head>
<body><div id="root" data-page="login"></div></body></html>`)
}

// Dashboard renders the admin dashboard shell. The guard has already
// verified the session and attached no-store headers.
func (h *AdminHandler) Dashboard(c echo.Context) error {
	uid, _ := c.Get(middleware.CtxUserID).(uint64)
	nav := `<nav></nav>`
	// Admin-only navigation is visible to super admins regardless of the
	// flattened permission set.
	if h.Resolver.IsSuperAdmin(uid) || h.Resolver.HasPermission(uid, "manage_users") {
		nav = `<nav data-section="users"></nav>`
	}
	return c.HTML(http.StatusOK, `<!DOCTYPE html>
<html><head><title>Back Office — Dashboard</title></head>
<body>`+nav+`<div id="root" data-page="dashboard"></div></body></html>`)
}

// ErrorPage is the generic error target the guard redirects to when request
// evaluation fails. It intentionally reveals nothing about the failure.
func (h *AdminHandler) ErrorPage(c echo.Context) error {
	return c.HTML(http.StatusOK, `<!DOCTYPE html>
<html><head><title>Something went wrong</title></head>
<body><p>Something went wrong. Please try again.</p></body></html>`)
}

// Analytics is the admin analytics stub behind the view_analytics
// permission.
func (h *AdminHandler) Analytics(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"orders":       echo.Map{"pending": 0, "printed": 0, "shipped": 0},
	})
}
