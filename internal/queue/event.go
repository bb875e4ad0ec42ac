// Package queue defines message payloads exchanged over the message broker.
package queue

// Audit event types published on the auth.audit queue.
const (
	EventSignedIn      = "signed_in"
	EventSignedOut     = "signed_out"
	EventRefreshFailed = "refresh_failed"
)

// AuthAuditEvent records a session lifecycle transition. Downstream
// consumers use it for the back-office audit log without querying the
// primary database.
type AuthAuditEvent struct {
	EventID    string `json:"event_id"`
	Type       string `json:"type"`
	UserID     uint64 `json:"user_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Remember   bool   `json:"remember,omitempty"`
	Code       string `json:"code,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
