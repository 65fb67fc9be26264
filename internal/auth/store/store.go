package store

import (
	"context"
	"errors"
	"time"

	"github.com/patronhq/patron/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. Durable state only; anything with a TTL lives in the
// session store instead.
type Store interface {
	Users() Users
	Credentials() Credentials
	Plans() Plans

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login and password reset.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	// Returns ErrAlreadyExists on a duplicate email.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// UpdateDisplayName mutates the display_name and bumps updated_at.
	UpdateDisplayName(ctx context.Context, userID string, displayName string) error

	// UpdateTOTPSecret stages a secret during 2FA enrollment.
	UpdateTOTPSecret(ctx context.Context, userID string, secret string) error

	// EnableTOTP marks 2FA active (sets totp_enabled timestamp).
	EnableTOTP(ctx context.Context, userID string) error

	// DisableTOTP clears both the secret and the enabled timestamp.
	DisableTOTP(ctx context.Context, userID string) error

	// ConfirmEmail sets email_confirmed_at.
	ConfirmEmail(ctx context.Context, userID string) error

	// DeleteUser cascades to credentials and plans (per schema).
	DeleteUser(ctx context.Context, userID string) error
}

type Credentials interface {
	// CreateCredential inserts a new API credential.
	CreateCredential(ctx context.Context, c domain.APICredential) error

	// GetCredentialByClientID fetches a credential by its public client id.
	GetCredentialByClientID(ctx context.Context, clientID string) (domain.APICredential, error)

	// ListCredentialsByCreator returns a creator's credentials, newest first.
	ListCredentialsByCreator(ctx context.Context, creatorID string) ([]domain.APICredential, error)

	// RevokeCredential flips is_active=0 and stamps revoked_at.
	RevokeCredential(ctx context.Context, id string) error

	// DeleteRevokedCredentialsBefore is housekeeping for long-revoked rows.
	DeleteRevokedCredentialsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Plans interface {
	// CreatePlan inserts a new subscription plan.
	CreatePlan(ctx context.Context, p domain.Plan) error

	// GetPlanByID fetches a plan by id.
	GetPlanByID(ctx context.Context, id string) (domain.Plan, error)

	// ListPlansByCreator returns a creator's plans ordered by price.
	ListPlansByCreator(ctx context.Context, creatorID string) ([]domain.Plan, error)

	// UpdatePlan mutates name, description, price, currency and interval.
	UpdatePlan(ctx context.Context, p domain.Plan) error

	// DeletePlan removes a plan.
	DeletePlan(ctx context.Context, id string) error
}
