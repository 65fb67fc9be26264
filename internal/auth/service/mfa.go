package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/patronhq/patron/internal/auth/domain"
	"github.com/patronhq/patron/internal/auth/session"
	"github.com/patronhq/patron/internal/auth/store"
	"github.com/patronhq/patron/pkg/cryptox"
	"github.com/patronhq/patron/pkg/slogx"
	"github.com/pquerna/otp/totp"
)

const (
	// MaxMFAAttempts is the number of wrong codes allowed per challenge.
	MaxMFAAttempts = 5

	// MFAChallengeTTL bounds how long a pending second-factor login lives.
	MFAChallengeTTL = 5 * time.Minute
)

var (
	ErrMFANotEnabled = errors.New("mfa_not_enabled")
	ErrInvalidOTP    = errors.New("invalid_otp")
)

// MFAService handles TOTP enrollment and the login challenge flow.
type MFAService struct {
	Store    store.Store
	Sessions session.Store
	Tokens   *TokenService

	// Issuer is the name shown in authenticator apps.
	Issuer string
}

// Enroll generates a TOTP secret for the user and returns the otpauth
// provisioning URL. The secret stays inactive until Activate verifies a code.
func (s *MFAService) Enroll(ctx context.Context, userID string) (string, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: u.Email,
	})
	if err != nil {
		return "", err
	}

	if err := s.Store.Users().UpdateTOTPSecret(ctx, userID, key.Secret()); err != nil {
		return "", err
	}
	return key.URL(), nil
}

// Activate turns 2FA on once the user proves they can produce a valid code.
func (s *MFAService) Activate(ctx context.Context, userID, code string) error {
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.TOTPSecret == nil || *u.TOTPSecret == "" {
		return ErrMFANotEnabled
	}
	if !totp.Validate(code, *u.TOTPSecret) {
		return ErrInvalidOTP
	}

	if err := s.Store.Users().EnableTOTP(ctx, userID); err != nil {
		return err
	}
	l.Info("totp enabled", slog.String("user_id", userID))
	return nil
}

// Disable turns 2FA off after re-verifying a code.
func (s *MFAService) Disable(ctx context.Context, userID, code string) error {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.TOTPActive() {
		return ErrMFANotEnabled
	}
	if !totp.Validate(code, *u.TOTPSecret) {
		return ErrInvalidOTP
	}
	return s.Store.Users().DisableTOTP(ctx, userID)
}

// StartChallenge parks a password-verified login behind a second factor and
// returns the challenge token the client must echo back.
func (s *MFAService) StartChallenge(ctx context.Context, userID string) (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}
	if err := s.Sessions.CreateMFAChallenge(ctx, token, userID, MFAChallengeTTL); err != nil {
		return "", err
	}
	return token, nil
}

// CompleteChallenge redeems a challenge with a TOTP code and issues tokens.
// After MaxMFAAttempts wrong codes the challenge is destroyed and the user
// must log in again.
func (s *MFAService) CompleteChallenge(ctx context.Context, challengeToken, code, deviceID string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	userID, attempts, err := s.Sessions.GetMFAChallenge(ctx, challengeToken)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if attempts >= MaxMFAAttempts {
		_ = s.Sessions.DeleteMFAChallenge(ctx, challengeToken)
		l.Warn("mfa challenge exceeded max attempts", slog.String("user_id", userID))
		return nil, ErrTooManyAttempts
	}

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.TOTPActive() {
		_ = s.Sessions.DeleteMFAChallenge(ctx, challengeToken)
		return nil, ErrInvalidCredentials
	}

	if !totp.Validate(code, *u.TOTPSecret) {
		n, err := s.Sessions.IncrementMFAAttempts(ctx, challengeToken)
		if err != nil {
			return nil, ErrInvalidOTP
		}
		l.Warn("mfa validation failed", slog.String("user_id", userID), slog.Int("attempts", n))
		if n >= MaxMFAAttempts {
			_ = s.Sessions.DeleteMFAChallenge(ctx, challengeToken)
			return nil, ErrTooManyAttempts
		}
		return nil, ErrInvalidOTP
	}

	if err := s.Sessions.DeleteMFAChallenge(ctx, challengeToken); err != nil {
		return nil, err
	}
	return s.Tokens.Issue(ctx, u, deviceID)
}
