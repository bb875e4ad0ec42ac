package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider scripts provider behavior for manager tests.
type fakeProvider struct {
	mu sync.Mutex

	signInErrs  []error // consumed one per call before signInOK applies
	signInCalls int

	getSessionFn func(access, refresh string) (*Session, error)

	refreshResult *Session
	refreshErr    error
	refreshCalls  int

	signOutErr   error
	signOutCalls int
	revoked      []string
}

func (f *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*Identity, *Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signInCalls++
	if len(f.signInErrs) > 0 {
		err := f.signInErrs[0]
		f.signInErrs = f.signInErrs[1:]
		return nil, nil, err
	}
	return &Identity{ID: 7, Email: email, Role: "admin"},
		&Session{AccessToken: "access-" + email, RefreshToken: "refresh-" + email,
			ExpiresAt: time.Now().Add(time.Hour).Unix()},
		nil
}

func (f *fakeProvider) GetSession(ctx context.Context, access, refresh string) (*Session, error) {
	f.mu.Lock()
	fn := f.getSessionFn
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(access, refresh)
}

func (f *fakeProvider) RefreshSession(ctx context.Context, refresh string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	return f.refreshResult, f.refreshErr
}

func (f *fakeProvider) GetUser(ctx context.Context, access string) (*Identity, error) {
	return &Identity{ID: 7, Email: "admin@albumforge.example", Role: "admin"}, nil
}

func (f *fakeProvider) SignOut(ctx context.Context, refresh string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	f.revoked = append(f.revoked, refresh)
	return f.signOutErr
}

func newTestManager(p Provider) *Manager {
	m := NewManager(p, CookiePolicy{}, nil, nil)
	m.RetryBackoff = time.Millisecond
	return m
}

func netErr() *AuthError {
	return &AuthError{Message: "timeout", Status: http.StatusServiceUnavailable, Code: CodeNetworkError}
}

func TestSignIn_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	fp := &fakeProvider{signInErrs: []error{netErr(), netErr()}}
	m := newTestManager(fp)
	defer m.StopMonitor()

	rec := httptest.NewRecorder()
	id, sess, err := m.SignIn(context.Background(), rec, "admin@albumforge.example", "pw", true)
	require.NoError(t, err)
	assert.Equal(t, 3, fp.signInCalls)
	assert.Equal(t, uint64(7), id.ID)
	assert.True(t, sess.Remember)

	cks := rec.Result().Cookies()
	require.Len(t, cks, 2)
	for _, ck := range cks {
		assert.Equal(t, RememberMaxAge, ck.MaxAge)
	}
}

func TestSignIn_ExhaustedRetriesPropagate(t *testing.T) {
	t.Parallel()

	fp := &fakeProvider{signInErrs: []error{netErr(), netErr(), netErr()}}
	m := newTestManager(fp)

	rec := httptest.NewRecorder()
	_, _, err := m.SignIn(context.Background(), rec, "a@b.c", "pw", false)
	require.Error(t, err)
	assert.Equal(t, 3, fp.signInCalls)
	assert.Empty(t, rec.Result().Cookies(), "cookies untouched on failure")
}

func TestSignIn_BadCredentialsNotRetried(t *testing.T) {
	t.Parallel()

	fp := &fakeProvider{signInErrs: []error{
		&AuthError{Message: "invalid credentials", Status: http.StatusUnauthorized, Code: CodeInvalidCredentials},
	}}
	m := newTestManager(fp)

	rec := httptest.NewRecorder()
	_, _, err := m.SignIn(context.Background(), rec, "a@b.c", "bad", false)
	require.Error(t, err)
	assert.Equal(t, 1, fp.signInCalls, "non-network errors propagate immediately")
	assert.Empty(t, rec.Result().Cookies())
}

func TestSignIn_SessionScopedCookiesWithoutRemember(t *testing.T) {
	t.Parallel()

	fp := &fakeProvider{}
	m := newTestManager(fp)
	defer m.StopMonitor()

	rec := httptest.NewRecorder()
	_, sess, err := m.SignIn(context.Background(), rec, "a@b.c", "pw", false)
	require.NoError(t, err)
	assert.False(t, sess.Remember)
	for _, ck := range rec.Result().Cookies() {
		assert.Equal(t, 0, ck.MaxAge)
	}
}

func TestTick_RefreshesNearExpiry(t *testing.T) {
	t.Parallel()

	near := &Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(60 * time.Second).Unix()}
	fp := &fakeProvider{
		getSessionFn: func(access, refresh string) (*Session, error) { return near, nil },
		refreshResult: &Session{AccessToken: "a2", RefreshToken: "r2",
			ExpiresAt: time.Now().Add(time.Hour).Unix()},
	}
	m := newTestManager(fp)
	m.session = near

	m.tick(context.Background())
	assert.Equal(t, 1, fp.refreshCalls)
	require.NotNil(t, m.CurrentSession())
	assert.Equal(t, "a2", m.CurrentSession().AccessToken)
}

func TestTick_HealthySessionNotRefreshed(t *testing.T) {
	t.Parallel()

	healthy := &Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour).Unix()}
	fp := &fakeProvider{
		getSessionFn: func(access, refresh string) (*Session, error) { return healthy, nil },
	}
	m := newTestManager(fp)
	m.session = healthy

	m.tick(context.Background())
	assert.Equal(t, 0, fp.refreshCalls)
	assert.NotNil(t, m.CurrentSession())
}

func TestTick_TerminalRefreshErrorTearsDown(t *testing.T) {
	t.Parallel()

	near := &Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(60 * time.Second).Unix()}
	fp := &fakeProvider{
		getSessionFn: func(access, refresh string) (*Session, error) { return near, nil },
		refreshErr:   &AuthError{Message: "session expired", Status: http.StatusUnauthorized, Code: CodeSessionExpired},
	}
	m := newTestManager(fp)
	m.session = near
	m.identity = &Identity{ID: 7}

	m.tick(context.Background())
	assert.Nil(t, m.CurrentSession(), "terminal code clears the session")
	assert.Nil(t, m.CurrentIdentity())
}

func TestTick_TransientRefreshErrorSwallowed(t *testing.T) {
	t.Parallel()

	near := &Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(60 * time.Second).Unix()}
	fp := &fakeProvider{
		getSessionFn: func(access, refresh string) (*Session, error) { return near, nil },
		refreshErr:   netErr(),
	}
	m := newTestManager(fp)
	m.session = near

	m.tick(context.Background())
	assert.NotNil(t, m.CurrentSession(), "transient error leaves session for next tick")
}

func TestTick_MissingSessionClearsState(t *testing.T) {
	t.Parallel()

	fp := &fakeProvider{
		getSessionFn: func(access, refresh string) (*Session, error) { return nil, nil },
	}
	m := newTestManager(fp)
	m.session = &Session{AccessToken: "a", RefreshToken: "r"}

	m.tick(context.Background())
	assert.Nil(t, m.CurrentSession())
}

func TestMonitor_StartStopIdempotent(t *testing.T) {
	t.Parallel()

	m := newTestManager(&fakeProvider{})
	m.StartMonitor()
	m.StartMonitor() // no-op
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	assert.True(t, running)

	m.StopMonitor()
	m.StopMonitor() // no-op
	m.mu.Lock()
	running = m.running
	m.mu.Unlock()
	assert.False(t, running)
}

func TestSignOut_FailSecure(t *testing.T) {
	t.Parallel()

	fp := &fakeProvider{signOutErr: netErr()}
	m := newTestManager(fp)
	m.session = &Session{AccessToken: "a", RefreshToken: "r"}
	m.identity = &Identity{ID: 7}

	rec := httptest.NewRecorder()
	err := m.SignOut(context.Background(), rec, &Identity{ID: 7}, "r", false)
	require.Error(t, err, "provider failure still reported")

	assert.Nil(t, m.CurrentSession(), "local state cleared regardless")
	cks := rec.Result().Cookies()
	require.Len(t, cks, 2, "both cookies force-expired")
	for _, ck := range cks {
		assert.Less(t, ck.MaxAge, 0)
	}
}

func TestSignOut_RevokesOnlyRequesterToken(t *testing.T) {
	t.Parallel()

	fp := &fakeProvider{}
	m := newTestManager(fp)
	defer m.StopMonitor()

	// Two users sign in through the same server process.
	_, _, err := m.SignIn(context.Background(), httptest.NewRecorder(), "alice@albumforge.example", "pw", false)
	require.NoError(t, err)
	_, _, err = m.SignIn(context.Background(), httptest.NewRecorder(), "bob@albumforge.example", "pw", false)
	require.NoError(t, err)

	// Alice signs out with the refresh token from her own cookie. Only her
	// token dies; bob's stays live and keeps being monitored.
	rec := httptest.NewRecorder()
	require.NoError(t, m.SignOut(context.Background(), rec, &Identity{ID: 7}, "refresh-alice@albumforge.example", false))

	assert.Equal(t, []string{"refresh-alice@albumforge.example"}, fp.revoked)
	require.NotNil(t, m.CurrentSession())
	assert.Equal(t, "refresh-bob@albumforge.example", m.CurrentSession().RefreshToken)
}

func TestValidateSession_FalseOnProviderError(t *testing.T) {
	t.Parallel()

	fp := &fakeProvider{
		getSessionFn: func(access, refresh string) (*Session, error) { return nil, netErr() },
	}
	m := newTestManager(fp)
	assert.False(t, m.ValidateSession(context.Background()), "no session at all")

	m.session = &Session{AccessToken: "a", RefreshToken: "r"}
	assert.False(t, m.ValidateSession(context.Background()), "provider error reads as invalid")
}

func TestValidateSession_StaleStateTokenInvalidates(t *testing.T) {
	t.Parallel()

	live := &Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour).Unix()}
	fp := &fakeProvider{
		getSessionFn: func(access, refresh string) (*Session, error) { return live, nil },
	}
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewSessionStore(rdb)
	m := NewManager(fp, CookiePolicy{}, store, nil)
	m.session = live
	m.identity = &Identity{ID: 7}

	state, err := GenerateSessionState()
	require.NoError(t, err)
	require.NoError(t, store.SaveMarker(context.Background(), 7, state, true))
	assert.True(t, m.ValidateSession(context.Background()), "fresh state token passes")

	// A state token stamped 25 hours ago is outside the validity window.
	stale := "1:" + strconv.FormatInt(time.Now().Add(-25*time.Hour).UnixMilli(), 10) +
		":" + strings.Repeat("ab", 32)
	require.NoError(t, mr.Set("auth:state:7", stale))
	assert.False(t, m.ValidateSession(context.Background()), "stale state token invalidates")
}

func TestClose_RevokesEphemeralSessionOnly(t *testing.T) {
	t.Parallel()

	fp := &fakeProvider{}
	m := newTestManager(fp)
	m.session = &Session{AccessToken: "a", RefreshToken: "r", Remember: false}
	m.Close(context.Background())
	assert.Equal(t, 1, fp.signOutCalls, "non-remembered session revoked on shutdown")

	fp2 := &fakeProvider{}
	m2 := newTestManager(fp2)
	m2.session = &Session{AccessToken: "a", RefreshToken: "r", Remember: true}
	m2.Close(context.Background())
	assert.Equal(t, 0, fp2.signOutCalls, "remembered session survives shutdown")
}
