package storage

import (
	"context"
	"errors"
	"time"
)

// ErrStateNotFound is returned when a CSRF state record doesn't exist
// or was already consumed
var ErrStateNotFound = errors.New("state not found")

// ErrSessionNotFound is returned when a session doesn't exist
var ErrSessionNotFound = errors.New("session not found")

// ErrWhitelistNotFound is returned when the whitelist record is absent.
// Callers must treat this as "nobody is authorized", never as open access.
var ErrWhitelistNotFound = errors.New("whitelist not found")

// User is the sanitized profile stored in a session and returned by
// verification. Only provider-reported identity fields, nothing internal.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// StateRecord is the short-lived CSRF state minted when an OAuth flow
// starts. It anchors the PKCE code verifier until the callback consumes it.
type StateRecord struct {
	CodeVerifier string    `json:"code_verifier"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SessionRecord is the server-side session. Token is a separate
// high-entropy secret from the session identifier: knowing the identifier
// alone is insufficient to verify.
type SessionRecord struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at the given time.
func (r StateRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Expired reports whether the session is past its expiry at the given time.
func (r SessionRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// StateStore holds CSRF state records with TTL semantics.
type StateStore interface {
	// PutState writes a state record under an opaque state value.
	PutState(ctx context.Context, state string, record StateRecord) error

	// ConsumeState atomically reads and deletes a state record. A given
	// state value succeeds at most once; expired or absent records return
	// ErrStateNotFound.
	ConsumeState(ctx context.Context, state string) (StateRecord, error)
}

// SessionStore holds session records with TTL semantics.
type SessionStore interface {
	PutSession(ctx context.Context, id string, record SessionRecord) error

	// GetSession returns the record even if past ExpiresAt; expiry
	// handling (including cleanup deletion) belongs to the verifier.
	GetSession(ctx context.Context, id string) (SessionRecord, error)

	// DeleteSession removes a session. Deleting an absent session is not
	// an error.
	DeleteSession(ctx context.Context, id string) error
}

// WhitelistStore holds the single record of authorized email addresses.
type WhitelistStore interface {
	// GetWhitelist returns the authorized addresses. An absent record
	// returns ErrWhitelistNotFound.
	GetWhitelist(ctx context.Context) ([]string, error)

	// PutWhitelist replaces the whitelist record.
	PutWhitelist(ctx context.Context, emails []string) error
}

// Store combines all storage capabilities needed by authd.
type Store interface {
	StateStore
	SessionStore
	WhitelistStore

	// CleanupExpired removes state and session records past their expiry
	// and returns how many were deleted. Correctness never depends on it:
	// reads check expiry themselves.
	CleanupExpired(ctx context.Context) (int, error)
}
