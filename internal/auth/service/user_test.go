package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/patronhq/patron/internal/auth/domain"
	"github.com/patronhq/patron/internal/auth/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.users.Register(ctx, "New@Example.com", "long enough password", "New User")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", u.Email)
	assert.Equal(t, domain.RoleUser, u.Role)

	// A confirmation mail with a token link goes out.
	require.Len(t, f.mails.sent, 1)
	assert.Equal(t, "new@example.com", f.mails.sent[0].To)
	assert.Contains(t, f.mails.sent[0].Body, "confirm-email?token=")

	// Duplicate email.
	_, err = f.users.Register(ctx, "new@example.com", "long enough password", "Other")
	assert.ErrorIs(t, err, ErrEmailTaken)

	// Invalid input.
	_, err = f.users.Register(ctx, "not-an-email", "long enough password", "X")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.users.Register(ctx, "short@example.com", "short", "X")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, domain.RoleUser)

	got, err := f.users.Authenticate(ctx, u.Email, "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	// Email lookup is case-insensitive.
	_, err = f.users.Authenticate(ctx, strings.ToUpper(u.Email), "correct horse battery")
	assert.NoError(t, err)

	// Wrong password and unknown user look identical.
	_, err = f.users.Authenticate(ctx, u.Email, "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.users.Authenticate(ctx, "nobody@example.com", "correct horse battery")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangePasswordRevokesAllSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, domain.RoleUser)

	_, err := f.tokens.Issue(ctx, u, "laptop")
	require.NoError(t, err)
	_, err = f.tokens.Issue(ctx, u, "phone")
	require.NoError(t, err)
	require.Equal(t, 2, f.sessionCount(t, u.ID))

	require.NoError(t, f.users.ChangePassword(ctx, u.ID, "correct horse battery", "a brand new password"))

	// Global logout.
	assert.Equal(t, 0, f.sessionCount(t, u.ID))

	// Old password is dead, new one works.
	_, err = f.users.Authenticate(ctx, u.Email, "correct horse battery")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.users.Authenticate(ctx, u.Email, "a brand new password")
	assert.NoError(t, err)
}

func TestChangePasswordRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, domain.RoleUser)

	// Wrong current password.
	err := f.users.ChangePassword(ctx, u.ID, "wrong", "a brand new password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Same password again.
	err = f.users.ChangePassword(ctx, u.ID, "correct horse battery", "correct horse battery")
	assert.ErrorIs(t, err, ErrPasswordReused)

	// Too short.
	err = f.users.ChangePassword(ctx, u.ID, "correct horse battery", "tiny")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, domain.RoleUser)

	_, err := f.tokens.Issue(ctx, u, "laptop")
	require.NoError(t, err)

	require.NoError(t, f.users.ForgotPassword(ctx, u.Email))
	require.Len(t, f.mails.sent, 1)

	// Pull the token out of the mailed link.
	body := f.mails.sent[0].Body
	idx := strings.Index(body, "token=")
	require.Greater(t, idx, 0)
	token := strings.TrimSpace(strings.Fields(body[idx+len("token="):])[0])

	require.NoError(t, f.users.ResetPassword(ctx, token, "a freshly reset password"))

	// Reset logs out everywhere and replaces the credential.
	assert.Equal(t, 0, f.sessionCount(t, u.ID))
	_, err = f.users.Authenticate(ctx, u.Email, "a freshly reset password")
	assert.NoError(t, err)

	// The token was consumed on first use.
	err = f.users.ResetPassword(ctx, token, "yet another password")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.users.ForgotPassword(ctx, "ghost@example.com"))
	assert.Empty(t, f.mails.sent)
}

func TestResetTokenExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, domain.RoleUser)

	require.NoError(t, f.users.ForgotPassword(ctx, u.Email))
	body := f.mails.sent[0].Body
	i := strings.Index(body, "token=")
	token := strings.TrimSpace(strings.Fields(body[i+len("token="):])[0])

	f.redis.FastForward(16 * time.Minute)

	err := f.users.ResetPassword(ctx, token, "a freshly reset password")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResendConfirmationThrottled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, domain.RoleUser)

	require.NoError(t, f.users.ResendConfirmation(ctx, u.ID))
	require.Len(t, f.mails.sent, 1)

	// Second ask inside the window is refused.
	err := f.users.ResendConfirmation(ctx, u.ID)
	assert.ErrorIs(t, err, ErrResendThrottled)

	f.redis.FastForward(16 * time.Minute)
	require.NoError(t, f.users.ResendConfirmation(ctx, u.ID))
	assert.Len(t, f.mails.sent, 2)
}

func TestConfirmEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, domain.RoleUser)

	require.NoError(t, f.users.ResendConfirmation(ctx, u.ID))
	body := f.mails.sent[0].Body
	i := strings.Index(body, "token=")
	token := strings.TrimSpace(strings.Fields(body[i+len("token="):])[0])

	require.NoError(t, f.users.ConfirmEmail(ctx, token))

	got, err := f.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.EmailConfirmedAt)

	// Already confirmed accounts short-circuit the resend.
	require.NoError(t, f.users.ResendConfirmation(ctx, u.ID))
	assert.Len(t, f.mails.sent, 1)

	// Token is single use.
	err = f.users.ConfirmEmail(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUpdateDisplayName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, domain.RoleUser)

	updated, err := f.users.UpdateDisplayName(ctx, u.ID, "  New Name  ")
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.DisplayName)

	stored, err := f.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", stored.DisplayName)

	_, err = f.users.UpdateDisplayName(ctx, u.ID, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.users.UpdateDisplayName(ctx, "missing", "x")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, domain.RoleUser)

	pair, err := f.tokens.Issue(ctx, u, "")
	require.NoError(t, err)

	require.NoError(t, f.users.DeleteAccount(ctx, u.ID))
	assert.Equal(t, 0, f.sessionCount(t, u.ID))

	_, err = f.tokens.Refresh(ctx, pair.RefreshToken, pair.DeviceID)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
}
