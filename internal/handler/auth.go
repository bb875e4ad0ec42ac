package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/albumforge/backoffice/internal/auth"
	"github.com/albumforge/backoffice/internal/rbac"
)

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Manager  *auth.Manager
	Provider auth.Provider
	Policy   auth.CookiePolicy
	Resolver *rbac.Resolver
}

func NewAuthHandler(m *auth.Manager, p auth.Provider, policy auth.CookiePolicy, r *rbac.Resolver) *AuthHandler {
	return &AuthHandler{Manager: m, Provider: p, Policy: policy, Resolver: r}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type loginResp struct {
	User      userPart `json:"user"`
	ExpiresAt int64    `json:"expires_at"`
	Remember  bool     `json:"remember"`
}

// Login authenticates and sets the auth cookies. The remember flag controls
// cookie lifetime (30 days vs session-scoped). Provider failures surface
// with the provider's message text so the UI can toast it.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	id, sess, err := h.Manager.SignIn(ctx, c.Response(), req.Email, req.Password, req.Remember)
	if err != nil {
		return h.writeAuthError(c, err)
	}

	// Load the permission grant for this session up front; a failure here is
	// not fatal, capability checks simply stay denied until a later load.
	if lerr := h.Resolver.Load(ctx, id.ID); lerr != nil {
		c.Logger().Warnf("permission load failed for user %d: %v", id.ID, lerr)
	}

	return c.JSON(http.StatusOK, loginResp{
		User:      userPart{ID: id.ID, Email: id.Email, Role: id.Role},
		ExpiresAt: sess.ExpiresAt,
		Remember:  sess.Remember,
	})
}

// Logout tears the requester's session down. The refresh token and identity
// are read from the requester's own cookies so concurrent users can never
// revoke each other's credentials. With ?all=1 the entire auth storage
// namespace is cleared, not just this user's keys. Local teardown always
// happens; a provider failure is still reported.
func (h *AuthHandler) Logout(c echo.Context) error {
	clearAll := c.QueryParam("all") == "1"

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	refresh, _ := h.Policy.Get(c.Request(), auth.RefreshTokenCookie)

	var id *auth.Identity
	if access, ok := h.Policy.Get(c.Request(), auth.AccessTokenCookie); ok {
		if got, err := h.Provider.GetUser(ctx, access); err == nil {
			id = got
		}
	}
	if id != nil {
		h.Resolver.Invalidate(id.ID)
	}

	if err := h.Manager.SignOut(ctx, c.Response(), id, refresh, clearAll); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Refresh rotates the token pair from the refresh cookie and rewrites both
// cookies.
func (h *AuthHandler) Refresh(c echo.Context) error {
	token, ok := h.Policy.Get(c.Request(), auth.RefreshTokenCookie)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Manager.Refresh(ctx, c.Response(), token)
	if err != nil {
		return h.writeAuthError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"expires_at": sess.ExpiresAt, "remember": sess.Remember})
}

// Me returns the authenticated user with their role and permission set.
func (h *AuthHandler) Me(c echo.Context) error {
	token, ok := h.Policy.Get(c.Request(), auth.AccessTokenCookie)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Provider.GetUser(ctx, token)
	if err != nil {
		return h.writeAuthError(c, err)
	}
	if !h.Resolver.Loaded(id.ID) {
		if lerr := h.Resolver.Load(ctx, id.ID); lerr != nil {
			c.Logger().Warnf("permission load failed for user %d: %v", id.ID, lerr)
		}
	}
	role, _ := h.Resolver.Role(id.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"id":          id.ID,
		"email":       id.Email,
		"role":        role,
		"permissions": h.Resolver.Permissions(id.ID),
	})
}

// writeAuthError maps a normalized auth error onto an HTTP response,
// exposing only the provider message.
func (h *AuthHandler) writeAuthError(c echo.Context, err error) error {
	var ae *auth.AuthError
	if errors.As(err, &ae) {
		status := ae.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return c.JSON(status, echo.Map{"error": ae.Message, "code": ae.Code})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authentication failed"})
}
