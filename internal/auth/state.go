package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Session-state tokens are opaque continuity markers of the form
// "version:timestampMillis:hash" where hash is the SHA-256 digest of the
// timestamp concatenated with 16 random bytes. They are generated at sign-in
// and considered valid for 24 hours.
const (
	sessionStateVersion = "1"
	sessionStateMaxAge  = 24 * time.Hour

	// Tokens stamped further than this into the future are rejected; small
	// clock skew between instances is tolerated.
	sessionStateMaxSkew = time.Minute
)

// GenerateSessionState returns a fresh session-state token. The random
// component comes from crypto/rand; a predictable source here would make the
// token guessable.
func GenerateSessionState() (string, error) {
	ts := time.Now().UnixMilli()
	nonce, err := randomHex(16)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(strconv.FormatInt(ts, 10) + nonce))
	return fmt.Sprintf("%s:%d:%s", sessionStateVersion, ts, hex.EncodeToString(sum[:])), nil
}

// ValidateSessionState checks a token's shape, version and age. Every
// failure path returns false; the function never panics on malformed input.
func ValidateSessionState(token string) bool {
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return false
	}
	if parts[0] != sessionStateVersion {
		return false
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return false
	}
	if raw, err := hex.DecodeString(parts[2]); err != nil || len(raw) != sha256.Size {
		return false
	}
	age := time.Since(time.UnixMilli(ts))
	if age > sessionStateMaxAge || age < -sessionStateMaxSkew {
		return false
	}
	return true
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
