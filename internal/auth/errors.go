package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// Error codes returned by the identity provider. The terminal codes force an
// immediate local session teardown; everything else is either propagated to
// the caller (sign-in) or swallowed until the next monitor tick (refresh).
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeAccountDisabled    = "account_disabled"
	CodeInvalidToken       = "invalid_token"
	CodeTokenExpired       = "token_expired"
	CodeSessionExpired     = "session_expired"
	CodeNotAuthenticated   = "not_authenticated"
	CodeNetworkError       = "network_error"
)

// AuthError is the normalized error shape for everything the identity
// provider can fail with.
type AuthError struct {
	Message string
	Status  int
	Code    string
}

func (e *AuthError) Error() string { return e.Message }

// terminalCodes mandate session teardown instead of retry.
var terminalCodes = map[string]bool{
	CodeInvalidToken:     true,
	CodeTokenExpired:     true,
	CodeSessionExpired:   true,
	CodeNotAuthenticated: true,
}

// IsTerminal reports whether err carries a code that requires clearing all
// local session material.
func IsTerminal(err error) bool {
	var ae *AuthError
	if errors.As(err, &ae) {
		return terminalCodes[ae.Code]
	}
	return false
}

// IsRetryable classifies an error as transient (network/timeout). Only these
// are retried on the sign-in path; anything else propagates immediately.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code == CodeNetworkError
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// normalizeErr wraps arbitrary provider failures into an *AuthError so
// callers see a single error shape. Known AuthErrors pass through untouched.
func normalizeErr(err error) *AuthError {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	if IsRetryable(err) {
		return &AuthError{Message: err.Error(), Status: http.StatusServiceUnavailable, Code: CodeNetworkError}
	}
	return &AuthError{Message: err.Error(), Status: http.StatusInternalServerError, Code: "internal_error"}
}

// networkErr marks a backend failure as retryable.
func networkErr(err error) *AuthError {
	return &AuthError{Message: "identity backend unavailable: " + err.Error(),
		Status: http.StatusServiceUnavailable, Code: CodeNetworkError}
}
