package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/patronhq/patron/internal/auth/domain"
	"github.com/patronhq/patron/internal/auth/session"
	"github.com/patronhq/patron/internal/auth/store"
	"github.com/patronhq/patron/pkg/cryptox"
	"github.com/patronhq/patron/pkg/idx"
	"github.com/patronhq/patron/pkg/slogx"

	mailer "github.com/patronhq/patron/internal/auth/mail"
)

const (
	// MinPasswordLength is the minimum accepted password length.
	MinPasswordLength = 8

	// ResetTokenTTL bounds how long a password reset link stays valid.
	ResetTokenTTL = 15 * time.Minute

	// ConfirmationTTL is both the confirmation token lifetime and the resend
	// rate limit window.
	ConfirmationTTL = 15 * time.Minute
)

var (
	ErrEmailTaken      = errors.New("email_taken")
	ErrPasswordReused  = errors.New("password_reused")
	ErrResendThrottled = errors.New("confirmation_resend_throttled")
	ErrInvalidToken    = errors.New("invalid_token")
	ErrUserNotFound    = errors.New("user_not_found")
)

// UserService manages accounts and their password credential.
type UserService struct {
	Store    store.Store
	Sessions session.Store
	Mailer   mailer.Mailer

	// BaseURL is the public URL prefix used in mailed links.
	BaseURL string
}

// Register creates a new account and sends the confirmation mail. All
// accounts start with the base user role; creator status is an upgrade, not a
// registration choice.
func (s *UserService) Register(ctx context.Context, email, password, displayName string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.User{}, fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if err := validatePassword(password); err != nil {
		return domain.User{}, err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = email[:strings.Index(email, "@")]
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}

	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}

	if err := s.sendConfirmation(ctx, u); err != nil {
		// Account creation already succeeded; the user can ask for a resend.
		l.Error("failed to send confirmation mail", slog.Any("error", err), slog.String("user_id", u.ID))
	}

	l.Info("user registered", slog.String("user_id", u.ID))
	return u, nil
}

// Authenticate verifies the email/password pair. A missing account and a bad
// password are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// ChangePassword replaces the password and logs the user out everywhere. The
// new password must verify against the current hash as different.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}

	if err := cryptox.VerifyPassword(current, u.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	if cryptox.VerifyPassword(next, u.PasswordHash) == nil {
		return ErrPasswordReused
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}

	// Every device session dies with the old password.
	if err := s.Sessions.DeleteAllRefresh(ctx, userID); err != nil {
		l.Error("failed to revoke sessions after password change",
			slog.Any("error", err), slog.String("user_id", userID))
		return err
	}

	l.Info("password changed", slog.String("user_id", userID))
	return nil
}

// ForgotPassword starts the recovery flow. It reports success whether or not
// the address exists, to avoid account enumeration.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	l := slogx.FromContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("password reset requested for unknown email")
			return nil
		}
		return err
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return err
	}
	if err := s.Sessions.SaveResetToken(ctx, token, u.Email, ResetTokenTTL); err != nil {
		return err
	}

	body := fmt.Sprintf(
		"Hi %s,\n\nA password reset was requested for your account."+
			"\n\nReset link (valid for 15 minutes, single use):\n%s/reset-password?token=%s"+
			"\n\nIf you didn't request this, you can ignore this mail.\n",
		u.DisplayName, s.BaseURL, token,
	)
	if err := s.Mailer.Send(ctx, u.Email, "Reset your password", body); err != nil {
		return err
	}

	l.Info("password reset mail sent", slog.String("user_id", u.ID))
	return nil
}

// ResetPassword completes the recovery flow. The token is consumed on first
// use regardless of whether the rest succeeds.
func (s *UserService) ResetPassword(ctx context.Context, token, next string) error {
	l := slogx.FromContext(ctx)

	if err := validatePassword(next); err != nil {
		return err
	}

	email, err := s.Sessions.ConsumeResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}
	if err := s.Sessions.DeleteAllRefresh(ctx, u.ID); err != nil {
		return err
	}

	l.Info("password reset completed", slog.String("user_id", u.ID))
	return nil
}

// ResendConfirmation re-sends the confirmation mail, at most once per window.
func (s *UserService) ResendConfirmation(ctx context.Context, userID string) error {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if u.EmailConfirmedAt != nil {
		return nil
	}

	ok, err := s.Sessions.SetConfirmationFlag(ctx, userID, ConfirmationTTL)
	if err != nil {
		return err
	}
	if !ok {
		return ErrResendThrottled
	}

	return s.sendConfirmation(ctx, u)
}

// ConfirmEmail redeems a confirmation token.
func (s *UserService) ConfirmEmail(ctx context.Context, token string) error {
	userID, err := s.Sessions.ConsumeConfirmToken(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	if err := s.Store.Users().ConfirmEmail(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	return nil
}

// UpdateDisplayName renames the account and returns the updated user.
func (s *UserService) UpdateDisplayName(ctx context.Context, userID, displayName string) (domain.User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return domain.User{}, fmt.Errorf("%w: display name required", ErrValidation)
	}

	if err := s.Store.Users().UpdateDisplayName(ctx, userID, displayName); err != nil {
		return domain.User{}, err
	}
	return s.Store.Users().GetUserByID(ctx, userID)
}

// DeleteAccount removes the user row (credentials and plans cascade) and ends
// every device session.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	l := slogx.FromContext(ctx)

	if err := s.Store.Users().DeleteUser(ctx, userID); err != nil {
		return err
	}
	if err := s.Sessions.DeleteAllRefresh(ctx, userID); err != nil {
		l.Error("failed to revoke sessions after account deletion",
			slog.Any("error", err), slog.String("user_id", userID))
		return err
	}

	l.Info("account deleted", slog.String("user_id", userID))
	return nil
}

func (s *UserService) sendConfirmation(ctx context.Context, u domain.User) error {
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return err
	}
	if err := s.Sessions.SaveConfirmToken(ctx, token, u.ID, ConfirmationTTL); err != nil {
		return err
	}

	body := fmt.Sprintf(
		"Hi %s,\n\nConfirm your email address to finish setting up your account:"+
			"\n%s/confirm-email?token=%s\n\nThe link is valid for 15 minutes.\n",
		u.DisplayName, s.BaseURL, token,
	)
	return s.Mailer.Send(ctx, u.Email, "Confirm your email", body)
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	}
	return nil
}
