// Package session defines the volatile session store backing refresh token
// rotation, password reset tokens, confirmation rate limiting, and pending
// MFA challenges. All state here is keyed with a TTL; expiry is eviction.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the requested key does not exist or has
	// already expired.
	ErrNotFound = errors.New("session: not found")

	// ErrConflict is returned by RotateRefresh when the stored fingerprint no
	// longer matches the expected one, meaning a concurrent rotation won.
	ErrConflict = errors.New("session: rotation conflict")
)

// Store is the session store interface. The Redis driver is the production
// implementation; tests run it against an in-process server.
type Store interface {
	// SaveRefresh stores the refresh token fingerprint for a user+device pair,
	// replacing any previous session for that device.
	SaveRefresh(ctx context.Context, userID, deviceID, fingerprint string, ttl time.Duration) error

	// GetRefresh returns the stored fingerprint for a user+device pair.
	GetRefresh(ctx context.Context, userID, deviceID string) (string, error)

	// RotateRefresh atomically swaps oldFingerprint for newFingerprint,
	// resetting the TTL. It fails with ErrConflict if the stored value is not
	// oldFingerprint, and ErrNotFound if no session exists.
	RotateRefresh(ctx context.Context, userID, deviceID, oldFingerprint, newFingerprint string, ttl time.Duration) error

	// DeleteRefresh removes the session for a single device.
	DeleteRefresh(ctx context.Context, userID, deviceID string) error

	// DeleteAllRefresh removes every device session for a user. Used on
	// password change and account deletion.
	DeleteAllRefresh(ctx context.Context, userID string) error

	// SaveResetToken maps an opaque reset token to an email address.
	SaveResetToken(ctx context.Context, token, email string, ttl time.Duration) error

	// ConsumeResetToken returns the email for a reset token and deletes it in
	// the same operation, so a token can only ever be redeemed once.
	ConsumeResetToken(ctx context.Context, token string) (string, error)

	// SaveConfirmToken maps an opaque email confirmation token to a user id.
	SaveConfirmToken(ctx context.Context, token, userID string, ttl time.Duration) error

	// ConsumeConfirmToken returns the user id for a confirmation token and
	// deletes it, single use like reset tokens.
	ConsumeConfirmToken(ctx context.Context, token string) (string, error)

	// SetConfirmationFlag marks that a confirmation email was just sent.
	// Returns false without writing if a flag is already present.
	SetConfirmationFlag(ctx context.Context, userID string, ttl time.Duration) (bool, error)

	// CreateMFAChallenge stores a pending second-factor login.
	CreateMFAChallenge(ctx context.Context, token, userID string, ttl time.Duration) error

	// GetMFAChallenge returns the pending challenge for a token.
	GetMFAChallenge(ctx context.Context, token string) (userID string, attempts int, err error)

	// IncrementMFAAttempts bumps the failed attempt counter and returns the
	// new count.
	IncrementMFAAttempts(ctx context.Context, token string) (int, error)

	// DeleteMFAChallenge removes a pending challenge.
	DeleteMFAChallenge(ctx context.Context, token string) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close() error
}
