package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore keeps per-user session markers in Redis: the remember flag
// and the session-state token. Remembered sessions persist for the full
// 30-day cookie lifetime; non-remembered ones live in a short-TTL ephemeral
// namespace so nothing outlives the browsing session by much. A nil Redis
// client degrades every operation to a no-op, mirroring how the rate limiter
// and response cache shut off without Redis.
type SessionStore struct {
	rdb    *redis.Client
	prefix string
}

const (
	durableMarkerTTL   = 30 * 24 * time.Hour
	ephemeralMarkerTTL = 12 * time.Hour
)

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb, prefix: "auth"}
}

func (s *SessionStore) rememberKey(userID uint64) string {
	return s.prefix + ":remember:" + strconv.FormatUint(userID, 10)
}

func (s *SessionStore) stateKey(userID uint64) string {
	return s.prefix + ":state:" + strconv.FormatUint(userID, 10)
}

// SaveMarker records the remember flag and session-state token for a user.
// TTL depends on the remember flag.
func (s *SessionStore) SaveMarker(ctx context.Context, userID uint64, state string, remember bool) error {
	if s.rdb == nil {
		return nil
	}
	ttl := ephemeralMarkerTTL
	val := "0"
	if remember {
		ttl = durableMarkerTTL
		val = "1"
	}
	if err := s.rdb.Set(ctx, s.rememberKey(userID), val, ttl).Err(); err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.stateKey(userID), state, ttl).Err()
}

// Remembered reports whether the user's current session was opened with the
// remember flag. Missing marker means not remembered.
func (s *SessionStore) Remembered(ctx context.Context, userID uint64) bool {
	if s.rdb == nil {
		return false
	}
	v, err := s.rdb.Get(ctx, s.rememberKey(userID)).Result()
	return err == nil && v == "1"
}

// State returns the stored session-state token, if any.
func (s *SessionStore) State(ctx context.Context, userID uint64) (string, bool) {
	if s.rdb == nil {
		return "", false
	}
	v, err := s.rdb.Get(ctx, s.stateKey(userID)).Result()
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

// ClearAuth removes the auth-scoped keys for one user.
func (s *SessionStore) ClearAuth(ctx context.Context, userID uint64) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Del(ctx, s.rememberKey(userID), s.stateKey(userID)).Err()
}

// ClearAll removes every key under the store's prefix. Used by the
// clear-everything sign-out variant.
func (s *SessionStore) ClearAll(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.prefix+":*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
