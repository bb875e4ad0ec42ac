package auth

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/albumforge/backoffice/internal/config"
	"github.com/albumforge/backoffice/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// Identity is the provider's view of an authenticated account.
type Identity struct {
	ID       uint64
	Email    string
	Role     string
	Metadata map[string]string
}

// Session is a live authenticated context: access/refresh token pair, the
// absolute access-token expiry in seconds since epoch, and whether the user
// asked to stay signed in.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
	Remember     bool
}

// ExpiresIn returns how long the session's access token remains valid.
func (s *Session) ExpiresIn(now time.Time) time.Duration {
	return time.Unix(s.ExpiresAt, 0).Sub(now)
}

// Provider is the identity-provider contract consumed by the session
// manager. Implementations return *AuthError for every failure so callers
// can classify by code.
type Provider interface {
	// SignInWithPassword verifies credentials and issues a fresh session.
	SignInWithPassword(ctx context.Context, email, password string) (*Identity, *Session, error)
	// GetSession inspects a token pair and returns the live session it
	// represents, or (nil, nil) when no session exists.
	GetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error)
	// RefreshSession rotates the pair: the presented refresh token is
	// revoked and a new access+refresh pair is issued.
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
	// GetUser resolves the identity behind a valid access token.
	GetUser(ctx context.Context, accessToken string) (*Identity, error)
	// SignOut revokes the refresh token.
	SignOut(ctx context.Context, refreshToken string) error
}

// UserSource and TokenStore are the persistence surfaces the SQL provider
// consumes; the repository package supplies the MySQL implementations.
type UserSource interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

type TokenStore interface {
	Insert(ctx context.Context, userID uint64, tokenHash string, expiresAt time.Time) error
	Lookup(ctx context.Context, tokenHash string) (uint64, error)
	Rotate(ctx context.Context, oldHash string, userID uint64, newHash string, expiresAt time.Time) error
	Revoke(ctx context.Context, tokenHash string) error
}

// SQLProvider implements Provider against the service's own MySQL tables:
// bcrypt password verification, HS256 access JWTs and hashed refresh tokens
// with transactional rotation on refresh.
type SQLProvider struct {
	Cfg    config.Config
	Users  UserSource
	Tokens TokenStore
}

func NewSQLProvider(cfg config.Config, users UserSource, tokens TokenStore) *SQLProvider {
	return &SQLProvider{Cfg: cfg, Users: users, Tokens: tokens}
}

func (p *SQLProvider) SignInWithPassword(ctx context.Context, email, password string) (*Identity, *Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := p.Users.GetByEmail(ctx, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, &AuthError{Message: "invalid credentials", Status: http.StatusUnauthorized, Code: CodeInvalidCredentials}
		}
		return nil, nil, networkErr(err)
	}
	if !u.IsActive {
		return nil, nil, &AuthError{Message: "account disabled", Status: http.StatusForbidden, Code: CodeAccountDisabled}
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, nil, &AuthError{Message: "invalid credentials", Status: http.StatusUnauthorized, Code: CodeInvalidCredentials}
	}

	id := &Identity{ID: u.ID, Email: u.Email, Role: u.RoleName}
	sess, err := p.issueSession(ctx, u.ID, u.RoleName)
	if err != nil {
		return nil, nil, err
	}
	return id, sess, nil
}

func (p *SQLProvider) GetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	if accessToken == "" && refreshToken == "" {
		return nil, nil
	}
	if accessToken != "" {
		// Verify the signature but not expiry: a near-expired or just-expired
		// token still names a session the caller may refresh.
		claims, err := parseClaims(p.Cfg.JWTSecret, accessToken, false)
		if err != nil {
			return nil, &AuthError{Message: "invalid access token", Status: http.StatusUnauthorized, Code: CodeInvalidToken}
		}
		exp, _ := claims["exp"].(float64)
		return &Session{AccessToken: accessToken, RefreshToken: refreshToken, ExpiresAt: int64(exp)}, nil
	}
	// Access token gone but a refresh token remains: the session exists if
	// the hash is still live, with an already-elapsed expiry.
	if _, err := p.Tokens.Lookup(ctx, HashRefreshRaw(refreshToken)); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, networkErr(err)
	}
	return &Session{RefreshToken: refreshToken}, nil
}

func (p *SQLProvider) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, &AuthError{Message: "not authenticated", Status: http.StatusUnauthorized, Code: CodeNotAuthenticated}
	}
	hash := HashRefreshRaw(refreshToken)
	userID, err := p.Tokens.Lookup(ctx, hash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &AuthError{Message: "session expired", Status: http.StatusUnauthorized, Code: CodeSessionExpired}
		}
		return nil, networkErr(err)
	}
	u, err := p.Users.GetByID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &AuthError{Message: "session expired", Status: http.StatusUnauthorized, Code: CodeSessionExpired}
		}
		return nil, networkErr(err)
	}

	access, err := NewAccessToken(p.Cfg.JWTSecret, u.ID, u.RoleName, p.Cfg.AccessTTLMin)
	if err != nil {
		return nil, normalizeErr(err)
	}
	refresh, err := NewRefreshToken(p.Cfg.RefreshTTLDays)
	if err != nil {
		return nil, normalizeErr(err)
	}
	if err := p.Tokens.Rotate(ctx, hash, u.ID, HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		if err == sql.ErrNoRows {
			// A concurrent request rotated this token first; the replayed
			// token no longer names a live session.
			return nil, &AuthError{Message: "session expired", Status: http.StatusUnauthorized, Code: CodeSessionExpired}
		}
		return nil, networkErr(err)
	}
	return &Session{
		AccessToken:  access.Token,
		RefreshToken: refresh.Raw,
		ExpiresAt:    access.Exp.Unix(),
	}, nil
}

func (p *SQLProvider) GetUser(ctx context.Context, accessToken string) (*Identity, error) {
	claims, err := parseClaims(p.Cfg.JWTSecret, accessToken, true)
	if err != nil {
		return nil, &AuthError{Message: "invalid access token", Status: http.StatusUnauthorized, Code: CodeInvalidToken}
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return nil, &AuthError{Message: "invalid access token", Status: http.StatusUnauthorized, Code: CodeInvalidToken}
	}
	u, err := p.Users.GetByID(ctx, uint64(sub))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &AuthError{Message: "not authenticated", Status: http.StatusUnauthorized, Code: CodeNotAuthenticated}
		}
		return nil, networkErr(err)
	}
	return &Identity{ID: u.ID, Email: u.Email, Role: u.RoleName}, nil
}

func (p *SQLProvider) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := p.Tokens.Revoke(ctx, HashRefreshRaw(refreshToken)); err != nil {
		return networkErr(err)
	}
	return nil
}

func (p *SQLProvider) issueSession(ctx context.Context, userID uint64, role string) (*Session, error) {
	access, err := NewAccessToken(p.Cfg.JWTSecret, userID, role, p.Cfg.AccessTTLMin)
	if err != nil {
		return nil, normalizeErr(err)
	}
	refresh, err := NewRefreshToken(p.Cfg.RefreshTTLDays)
	if err != nil {
		return nil, normalizeErr(err)
	}
	if err := p.Tokens.Insert(ctx, userID, HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, networkErr(err)
	}
	return &Session{
		AccessToken:  access.Token,
		RefreshToken: refresh.Raw,
		ExpiresAt:    access.Exp.Unix(),
	}, nil
}

// parseClaims parses an HS256 JWT and returns its claims. When checkExpiry
// is false the signature is still verified but an expired token parses
// successfully.
func parseClaims(secret, raw string, checkExpiry bool) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{}
	if !checkExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, opts...)
	if err != nil || !tok.Valid {
		if err == nil {
			err = jwt.ErrTokenUnverifiable
		}
		return nil, err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
