package auth

import (
	"net/http"

	"github.com/albumforge/backoffice/internal/config"
)

// Cookie base names owned by this service. The effective on-wire name is
// always computed by CookiePolicy.Name; never use these literals directly in
// a Set-Cookie or lookup, or reads will silently miss in production where
// the __Secure- prefix applies.
const (
	AccessTokenCookie  = "sb-access-token"
	RefreshTokenCookie = "sb-refresh-token"

	securePrefix = "__Secure-"

	// RememberMaxAge is the lifetime of remembered-session cookies: 30 days.
	RememberMaxAge = 30 * 24 * 60 * 60
)

// CookiePolicy computes the security attributes of every auth cookie from
// the deployment environment. It is a pure value: no I/O, no mutable state.
type CookiePolicy struct {
	Production       bool
	ConfiguredDomain string
}

// NewCookiePolicy derives the policy from the loaded configuration.
func NewCookiePolicy(cfg config.Config) CookiePolicy {
	return CookiePolicy{Production: cfg.IsProduction(), ConfiguredDomain: cfg.CookieDomain}
}

// Secure reports whether cookies must carry the Secure attribute. True only
// in production.
func (p CookiePolicy) Secure() bool { return p.Production }

// Domain returns the cookie domain: the configured domain in production,
// empty (host-only) everywhere else so non-production cookies cannot leak
// across subdomains.
func (p CookiePolicy) Domain() string {
	if p.Production {
		return p.ConfiguredDomain
	}
	return ""
}

// Name returns the effective cookie name for a base name, prepending
// __Secure- whenever secure cookies are required. Every set, get and delete
// path goes through this single function.
func (p CookiePolicy) Name(base string) string {
	if p.Secure() {
		return securePrefix + base
	}
	return base
}

// newCookie builds the shared attribute bundle: HttpOnly, SameSite=Lax,
// Path=/, Secure and Domain per environment.
func (p CookiePolicy) newCookie(base, value string) *http.Cookie {
	return &http.Cookie{
		Name:     p.Name(base),
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   p.Secure(),
		SameSite: http.SameSiteLaxMode,
		Domain:   p.Domain(),
	}
}

// Set writes a cookie with the policy attributes. Remembered sessions get a
// 30-day Max-Age; otherwise the cookie is session-scoped (no Max-Age).
func (p CookiePolicy) Set(w http.ResponseWriter, base, value string, remember bool) {
	ck := p.newCookie(base, value)
	if remember {
		ck.MaxAge = RememberMaxAge
	}
	http.SetCookie(w, ck)
}

// Get reads a cookie by base name, resolving the effective name through the
// policy. Returns the value and whether the cookie was present.
func (p CookiePolicy) Get(r *http.Request, base string) (string, bool) {
	ck, err := r.Cookie(p.Name(base))
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

// Delete expires a cookie. The same attribute bundle is reused so the
// browser matches the cookie being cleared; MaxAge=-1 forces removal.
func (p CookiePolicy) Delete(w http.ResponseWriter, base string) {
	ck := p.newCookie(base, "")
	ck.MaxAge = -1
	http.SetCookie(w, ck)
}
