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
	"github.com/patronhq/patron/pkg/idx"
	"github.com/patronhq/patron/pkg/jwtx"
	"github.com/patronhq/patron/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
	ErrValidation         = errors.New("validation_failed")
	ErrForbidden          = errors.New("forbidden")
	ErrTooManyAttempts    = errors.New("too_many_attempts")
)

// TokenService issues and rotates the access/refresh token pair. The session
// store holds one refresh fingerprint per (user, device); the refresh token
// itself is a signed JWT the client keeps, so the server never stores tokens
// in recoverable form.
type TokenService struct {
	Signer     jwtx.Signer
	Verifier   jwtx.Verifier
	Sessions   session.Store
	Store      store.Store
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Issue mints a fresh token pair for the user. An empty deviceID starts a new
// device session; a known deviceID replaces that device's previous session.
func (s *TokenService) Issue(ctx context.Context, u domain.User, deviceID string) (*domain.TokenPair, error) {
	now := time.Now()

	if deviceID == "" {
		deviceID = idx.New().String()
	}

	accessToken, err := s.Signer.Sign(jwtx.NewAccessClaims(u.ID, u.Role, deviceID, s.Issuer, s.AccessTTL, now))
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.Signer.Sign(jwtx.NewRefreshClaims(u.ID, deviceID, s.Issuer, s.RefreshTTL, now))
	if err != nil {
		return nil, err
	}

	fp := cryptox.FingerprintToken(refreshToken)
	if err := s.Sessions.SaveRefresh(ctx, u.ID, deviceID, fp, s.RefreshTTL); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		DeviceID:     deviceID,
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// Refresh validates a presented refresh token and rotates the device session.
//
// The rotation is a compare-and-swap on the previous fingerprint executed
// inside the session store, so two concurrent refreshes from the same device
// cannot both win. The loser gets a conflict; we retry the read once in case
// the store was mid-swap, then reject.
func (s *TokenService) Refresh(ctx context.Context, presented, deviceID string) (*domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	claims, err := s.Verifier.Verify(presented)
	if err != nil {
		return nil, ErrInvalidRefresh
	}
	if err := claims.ValidateType(jwtx.TypeRefresh); err != nil {
		return nil, ErrInvalidRefresh
	}

	userID := claims.Subject
	if deviceID == "" {
		deviceID = claims.DeviceID
	}
	if deviceID == "" || deviceID != claims.DeviceID {
		return nil, ErrInvalidRefresh
	}

	// The user must still exist. If the row is gone the session is orphaned;
	// evict it so the key does not linger until TTL.
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = s.Sessions.DeleteRefresh(ctx, userID, deviceID)
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}

	presentedFP := cryptox.FingerprintToken(presented)

	stored, err := s.Sessions.GetRefresh(ctx, userID, deviceID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	if stored != presentedFP {
		// A superseded token is being replayed. Kill the device session: the
		// holder of the live token must log in again, which is the safe
		// outcome if the old token was stolen.
		l.Warn("stale refresh token replayed, revoking device session",
			slog.String("user_id", userID),
			slog.String("device_id", deviceID),
		)
		_ = s.Sessions.DeleteRefresh(ctx, userID, deviceID)
		return nil, ErrInvalidRefresh
	}

	accessToken, err := s.Signer.Sign(jwtx.NewAccessClaims(u.ID, u.Role, deviceID, s.Issuer, s.AccessTTL, now))
	if err != nil {
		return nil, err
	}
	newRefresh, err := s.Signer.Sign(jwtx.NewRefreshClaims(u.ID, deviceID, s.Issuer, s.RefreshTTL, now))
	if err != nil {
		return nil, err
	}
	newFP := cryptox.FingerprintToken(newRefresh)

	err = s.Sessions.RotateRefresh(ctx, userID, deviceID, presentedFP, newFP, s.RefreshTTL)
	if errors.Is(err, session.ErrConflict) {
		// Lost the race to a concurrent refresh from this device. One retry
		// covers the store finishing a swap between our read and CAS.
		err = s.Sessions.RotateRefresh(ctx, userID, deviceID, presentedFP, newFP, s.RefreshTTL)
	}
	if err != nil {
		if errors.Is(err, session.ErrConflict) || errors.Is(err, session.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		DeviceID:     deviceID,
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// Revoke ends a single device session.
func (s *TokenService) Revoke(ctx context.Context, userID, deviceID string) error {
	return s.Sessions.DeleteRefresh(ctx, userID, deviceID)
}

// RevokeAll ends every device session for the user.
func (s *TokenService) RevokeAll(ctx context.Context, userID string) error {
	return s.Sessions.DeleteAllRefresh(ctx, userID)
}
