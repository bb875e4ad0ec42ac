package middleware

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/albumforge/backoffice/internal/auth"
)

// Context keys set by the guard for downstream handlers.
const (
	CtxUserID = "user_id"
)

// Paths the guard never inspects (framework assets and the favicon).
var skipPrefixes = []string{"/_next/static/", "/_next/image"}

// RouteGuard classifies every request (static asset, admin, api, public)
// and enforces the access policy before a response is produced.
type RouteGuard struct {
	secret string
	apiKey string
	policy auth.CookiePolicy
	cache  *SessionCache
}

func NewRouteGuard(secret, apiKey string, policy auth.CookiePolicy, cache *SessionCache) *RouteGuard {
	return &RouteGuard{secret: secret, apiKey: apiKey, policy: policy, cache: cache}
}

// Middleware returns the Echo middleware. Register it with e.Pre so it runs
// before routing: redirects apply to paths whether or not a handler exists.
// Any panic during evaluation fails closed as a redirect to /error, leaking
// neither stack traces nor partial auth state.
func (g *RouteGuard) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					c.Logger().Errorf("route guard panic: %v", r)
					err = c.Redirect(http.StatusFound, "/error")
				}
			}()

			path := c.Request().URL.Path
			if skipGuard(path) {
				return next(c)
			}

			switch {
			case path == "/admin" || path == "/admin/":
				return c.Redirect(http.StatusFound, "/admin/dashboard")

			case path == "/admin/login":
				if _, ok := g.validSession(c); ok {
					// Never show the login page to an authenticated user.
					return c.Redirect(http.StatusFound, "/admin/dashboard")
				}
				return next(c)

			case strings.HasPrefix(path, "/admin/"):
				uid, ok := g.validSession(c)
				if !ok {
					return c.Redirect(http.StatusFound, "/admin/login")
				}
				c.Set(CtxUserID, uid)
				noStore(c.Response().Header())
				return next(c)

			case path == "/api" || strings.HasPrefix(path, "/api/"):
				securityHeaders(c.Response().Header())
				if key := c.Request().Header.Get("x-api-key"); key != "" && !g.validAPIKey(key) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid API key"})
				}
				if uid, ok := g.validSession(c); ok {
					c.Set(CtxUserID, uid)
				}
				return next(c)
			}
			return next(c)
		}
	}
}

func skipGuard(path string) bool {
	if path == "/favicon.ico" {
		return true
	}
	for _, p := range skipPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// validSession reports whether the request carries a live access token,
// consulting the short-TTL probe cache before parsing the JWT.
func (g *RouteGuard) validSession(c echo.Context) (uint64, bool) {
	token, ok := g.policy.Get(c.Request(), auth.AccessTokenCookie)
	if !ok {
		return 0, false
	}
	key := probeKey(token)
	if g.cache != nil {
		if uid, valid, hit := g.cache.Get(key); hit {
			return uid, valid
		}
	}
	uid, valid := g.verifyToken(token)
	if g.cache != nil {
		g.cache.Set(key, uid, valid)
	}
	return uid, valid
}

// verifyToken parses and validates the HS256 access token, returning the
// subject claim. All parse failures read as "no session".
func (g *RouteGuard) verifyToken(raw string) (uint64, bool) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(g.secret), nil
	})
	if err != nil || !tok.Valid {
		return 0, false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, false
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, false
	}
	return uint64(sub), true
}

// validAPIKey compares the presented key against the configured secret in
// constant time. An empty configured secret rejects every presented key.
func (g *RouteGuard) validAPIKey(presented string) bool {
	if g.apiKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(g.apiKey), []byte(presented)) == 1
}

// probeKey derives the cache key from the token, keeping raw token material
// out of the cache map.
func probeKey(token string) string {
	sum := sha1.Sum([]byte(token))
	return hex.EncodeToString(sum[:])
}

// noStore marks authenticated admin pages as uncacheable.
func noStore(h http.Header) {
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

// securityHeaders hardens every API response.
func securityHeaders(h http.Header) {
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
}
