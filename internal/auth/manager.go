package auth

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/albumforge/backoffice/internal/queue"
)

// AuditPublisher receives session lifecycle events. Publish failures are
// logged and ignored; auditing never blocks an auth operation.
type AuditPublisher interface {
	PublishAuthEvent(ctx context.Context, ev queue.AuthAuditEvent) error
}

const (
	defaultMonitorInterval  = time.Minute
	defaultRefreshThreshold = 5 * time.Minute

	signInAttempts = 3
)

// Manager owns the session lifecycle: sign-in (with transient-error retry),
// sign-out (fail-secure teardown), and a background monitor that refreshes
// the token pair before it expires. The monitor handle belongs to the
// instance, so independent managers (and tests) never collide. The in-memory
// session/identity pair is the monitor's state, the most recent sign-in it
// watches for refresh; it is never consulted to identify an HTTP requester,
// whose tokens always come from their own cookies.
type Manager struct {
	provider Provider
	policy   CookiePolicy
	store    *SessionStore
	audit    AuditPublisher

	// Tunables. Adjust before the monitor starts; defaults match the
	// documented behavior (60s ticks, 5-minute refresh threshold, linear
	// 1s backoff between sign-in attempts).
	MonitorInterval  time.Duration
	RefreshThreshold time.Duration
	RetryBackoff     time.Duration
	Now              func() time.Time

	mu       sync.Mutex
	session  *Session
	identity *Identity
	running  bool
	done     chan struct{}
}

// NewManager wires a manager. store and audit may be nil; the corresponding
// side effects become no-ops.
func NewManager(p Provider, policy CookiePolicy, store *SessionStore, audit AuditPublisher) *Manager {
	return &Manager{
		provider:         p,
		policy:           policy,
		store:            store,
		audit:            audit,
		MonitorInterval:  defaultMonitorInterval,
		RefreshThreshold: defaultRefreshThreshold,
		RetryBackoff:     time.Second,
		Now:              time.Now,
	}
}

// SignIn authenticates against the provider and, on success, writes both
// auth cookies through the cookie policy, records the remember marker and
// session-state token, and starts the background monitor. Transient
// (network/timeout) provider failures are retried up to three times with
// linear backoff; all other failures propagate immediately. Cookies are
// never mutated on failure.
func (m *Manager) SignIn(ctx context.Context, w http.ResponseWriter, email, password string, remember bool) (*Identity, *Session, error) {
	var (
		id   *Identity
		sess *Session
		err  error
	)
	for attempt := 1; attempt <= signInAttempts; attempt++ {
		id, sess, err = m.provider.SignInWithPassword(ctx, email, password)
		if err == nil {
			break
		}
		if !IsRetryable(err) || attempt == signInAttempts {
			return nil, nil, normalizeErr(err)
		}
		select {
		case <-ctx.Done():
			return nil, nil, normalizeErr(ctx.Err())
		case <-time.After(m.RetryBackoff * time.Duration(attempt)):
		}
	}

	sess.Remember = remember
	state, err := GenerateSessionState()
	if err != nil {
		return nil, nil, normalizeErr(err)
	}

	m.policy.Set(w, AccessTokenCookie, sess.AccessToken, remember)
	m.policy.Set(w, RefreshTokenCookie, sess.RefreshToken, remember)
	if m.store != nil {
		if serr := m.store.SaveMarker(ctx, id.ID, state, remember); serr != nil {
			log.Printf("auth: save session marker failed: %v", serr)
		}
	}

	m.mu.Lock()
	m.session = sess
	m.identity = id
	m.mu.Unlock()

	m.StartMonitor()
	m.publishAudit(ctx, queue.EventSignedIn, id, remember, "")
	return id, sess, nil
}

// SignOut revokes the presented refresh token with the provider and tears
// down all local material for that requester: cookies and stored markers
// (the whole auth namespace when clearAll is set). The token and identity
// come from the requester's own cookies; the manager's in-memory session may
// belong to a different user and never decides whose credentials die. When
// the revoked token happens to be the monitored one, the monitor state is
// cleared too. Teardown runs even when the provider call fails; the provider
// error is still returned so callers can report it. A sign-out must never
// leave stale credentials behind.
func (m *Manager) SignOut(ctx context.Context, w http.ResponseWriter, id *Identity, refreshToken string, clearAll bool) error {
	var provErr error
	if refreshToken != "" {
		provErr = m.provider.SignOut(ctx, refreshToken)
	}

	m.policy.Delete(w, AccessTokenCookie)
	m.policy.Delete(w, RefreshTokenCookie)

	m.mu.Lock()
	monitored := m.session != nil && m.session.RefreshToken == refreshToken
	if monitored {
		m.session = nil
		m.identity = nil
	}
	m.mu.Unlock()
	if monitored {
		m.StopMonitor()
	}

	if m.store != nil {
		var serr error
		if clearAll {
			serr = m.store.ClearAll(ctx)
		} else if id != nil {
			serr = m.store.ClearAuth(ctx, id.ID)
		}
		if serr != nil {
			log.Printf("auth: clear session store failed: %v", serr)
		}
	}

	m.publishAudit(ctx, queue.EventSignedOut, id, false, "")
	if provErr != nil {
		return normalizeErr(provErr)
	}
	return nil
}

// Refresh rotates the token pair behind a refresh token and rewrites both
// cookies. Used by the refresh endpoint; the monitor rotates in place
// without a response writer.
func (m *Manager) Refresh(ctx context.Context, w http.ResponseWriter, refreshToken string) (*Session, error) {
	sess, err := m.provider.RefreshSession(ctx, refreshToken)
	if err != nil {
		if IsTerminal(err) {
			m.teardownLocal(ctx, err)
		}
		return nil, normalizeErr(err)
	}

	remember := false
	if id, uerr := m.provider.GetUser(ctx, sess.AccessToken); uerr == nil && m.store != nil {
		remember = m.store.Remembered(ctx, id.ID)
	}
	sess.Remember = remember
	m.policy.Set(w, AccessTokenCookie, sess.AccessToken, remember)
	m.policy.Set(w, RefreshTokenCookie, sess.RefreshToken, remember)

	m.mu.Lock()
	if m.session != nil {
		m.session = sess
	}
	m.mu.Unlock()
	return sess, nil
}

// StartMonitor launches the 60-second background refresh loop. Calling it
// while the monitor runs is a no-op.
func (m *Manager) StartMonitor() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.done = make(chan struct{})
	go m.monitor(m.done)
}

// StopMonitor halts the refresh loop. Calling it when nothing runs is a
// no-op.
func (m *Manager) StopMonitor() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.done)
	m.done = nil
}

func (m *Manager) monitor(done <-chan struct{}) {
	ticker := time.NewTicker(m.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.tick(context.Background())
		}
	}
}

// tick runs one monitor pass: verify the session still exists, and refresh
// the pair when expiry is inside the threshold. Terminal provider errors
// tear the session down; anything else is swallowed and retried on the next
// tick, so a transient outage never logs the user out.
func (m *Manager) tick(ctx context.Context) {
	m.mu.Lock()
	sess := m.session
	m.mu.Unlock()
	if sess == nil {
		return
	}

	cur, err := m.provider.GetSession(ctx, sess.AccessToken, sess.RefreshToken)
	if err != nil {
		if IsTerminal(err) {
			m.teardownLocal(ctx, err)
		} else {
			log.Printf("auth: session check failed: %v", err)
		}
		return
	}
	if cur == nil {
		m.teardownLocal(ctx, nil)
		return
	}
	if cur.ExpiresIn(m.Now()) >= m.RefreshThreshold {
		return
	}

	refreshed, err := m.provider.RefreshSession(ctx, sess.RefreshToken)
	if err != nil {
		if IsTerminal(err) {
			m.teardownLocal(ctx, err)
		} else {
			log.Printf("auth: session refresh failed, retrying next tick: %v", err)
		}
		return
	}
	refreshed.Remember = sess.Remember

	m.mu.Lock()
	if m.session != nil {
		m.session = refreshed
	}
	m.mu.Unlock()
}

// teardownLocal clears in-memory and stored session material after a
// terminal refresh failure or a vanished session.
func (m *Manager) teardownLocal(ctx context.Context, cause error) {
	m.mu.Lock()
	id := m.identity
	m.session = nil
	m.identity = nil
	m.mu.Unlock()

	m.StopMonitor()
	if m.store != nil && id != nil {
		if err := m.store.ClearAuth(ctx, id.ID); err != nil {
			log.Printf("auth: clear session store failed: %v", err)
		}
	}
	code := ""
	if ae, ok := cause.(*AuthError); ok {
		code = ae.Code
	}
	m.publishAudit(ctx, queue.EventRefreshFailed, id, false, code)
}

// ValidateSession is a best-effort probe: true only when the provider
// confirms a live, unexpired session and the stored session-state token (if
// one exists) is still inside its validity window. Any provider error reads
// as false.
func (m *Manager) ValidateSession(ctx context.Context) bool {
	m.mu.Lock()
	sess := m.session
	id := m.identity
	m.mu.Unlock()
	if sess == nil {
		return false
	}
	cur, err := m.provider.GetSession(ctx, sess.AccessToken, sess.RefreshToken)
	if err != nil || cur == nil {
		return false
	}
	if m.store != nil && id != nil {
		if state, ok := m.store.State(ctx, id.ID); ok && !ValidateSessionState(state) {
			return false
		}
	}
	return cur.ExpiresIn(m.Now()) > 0
}

// GetUser is a best-effort identity read; nil on any provider error.
func (m *Manager) GetUser(ctx context.Context) *Identity {
	m.mu.Lock()
	sess := m.session
	m.mu.Unlock()
	if sess == nil {
		return nil
	}
	id, err := m.provider.GetUser(ctx, sess.AccessToken)
	if err != nil {
		return nil
	}
	return id
}

// CurrentIdentity returns the identity captured at sign-in, without a
// provider round trip.
func (m *Manager) CurrentIdentity() *Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

// CurrentSession returns the manager's view of the live session.
func (m *Manager) CurrentSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Close stops the monitor and revokes a live non-remembered session,
// ensuring short-lived sign-ins on shared machines do not persist past the
// process. Remembered sessions survive restarts by design.
func (m *Manager) Close(ctx context.Context) {
	m.StopMonitor()
	m.mu.Lock()
	sess := m.session
	id := m.identity
	m.session = nil
	m.identity = nil
	m.mu.Unlock()
	if sess == nil || sess.Remember {
		return
	}
	if err := m.provider.SignOut(ctx, sess.RefreshToken); err != nil {
		log.Printf("auth: revoke ephemeral session failed: %v", err)
	}
	if m.store != nil && id != nil {
		if err := m.store.ClearAuth(ctx, id.ID); err != nil {
			log.Printf("auth: clear session store failed: %v", err)
		}
	}
}

func (m *Manager) publishAudit(ctx context.Context, typ string, id *Identity, remember bool, code string) {
	if m.audit == nil {
		return
	}
	ev := queue.AuthAuditEvent{
		EventID:    uuid.NewString(),
		Type:       typ,
		Remember:   remember,
		Code:       code,
		OccurredAt: m.Now().UTC().Format(time.RFC3339),
	}
	if id != nil {
		ev.UserID = id.ID
		ev.Email = id.Email
	}
	if err := m.audit.PublishAuthEvent(ctx, ev); err != nil {
		log.Printf("auth: audit publish failed: %v", err)
	}
}
