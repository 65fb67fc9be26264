package service

import (
	"context"
	"testing"
	"time"

	"github.com/patronhq/patron/internal/auth/domain"
	"github.com/patronhq/patron/pkg/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueCreatesDeviceSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, domain.RoleUser)

	pair, err := f.tokens.Issue(ctx, u, "")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEmpty(t, pair.DeviceID)

	// Access token carries the role and device claims.
	claims, err := f.tokens.Verifier.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Subject)
	assert.Equal(t, domain.RoleUser, claims.Role)
	assert.Equal(t, pair.DeviceID, claims.DeviceID)
	assert.Equal(t, "access", claims.TokenType)

	// The stored fingerprint matches the issued refresh token.
	fp, err := f.sessions.GetRefresh(ctx, u.ID, pair.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, cryptox.FingerprintToken(pair.RefreshToken), fp)
}

func TestIssueReplacesExistingDeviceSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, domain.RoleUser)

	first, err := f.tokens.Issue(ctx, u, "device-1")
	require.NoError(t, err)
	second, err := f.tokens.Issue(ctx, u, "device-1")
	require.NoError(t, err)

	// Only the newest refresh token survives for the device.
	fp, err := f.sessions.GetRefresh(ctx, u.ID, "device-1")
	require.NoError(t, err)
	assert.Equal(t, cryptox.FingerprintToken(second.RefreshToken), fp)
	assert.NotEqual(t, cryptox.FingerprintToken(first.RefreshToken), fp)
	assert.Equal(t, 1, f.sessionCount(t, u.ID))
}

func TestRefreshRotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, domain.RoleUser)

	pair, err := f.tokens.Issue(ctx, u, "")
	require.NoError(t, err)

	rotated, err := f.tokens.Refresh(ctx, pair.RefreshToken, pair.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, pair.DeviceID, rotated.DeviceID)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The new token is live.
	fp, err := f.sessions.GetRefresh(ctx, u.ID, pair.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, cryptox.FingerprintToken(rotated.RefreshToken), fp)

	// Replaying the superseded token fails and kills the device session.
	_, err = f.tokens.Refresh(ctx, pair.RefreshToken, pair.DeviceID)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
	assert.Equal(t, 0, f.sessionCount(t, u.ID))

	// And now even the rotated token is dead.
	_, err = f.tokens.Refresh(ctx, rotated.RefreshToken, rotated.DeviceID)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestRefreshRejectsGarbage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, domain.RoleUser)

	pair, err := f.tokens.Issue(ctx, u, "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		deviceID string
	}{
		{"not a jwt", "garbage", pair.DeviceID},
		{"access token on refresh endpoint", pair.AccessToken, pair.DeviceID},
		{"wrong device id", pair.RefreshToken, "other-device"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tokens.Refresh(ctx, tt.token, tt.deviceID)
			assert.ErrorIs(t, err, ErrInvalidRefresh)
		})
	}
}

func TestRefreshEvictsOrphanedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, domain.RoleUser)

	pair, err := f.tokens.Issue(ctx, u, "")
	require.NoError(t, err)

	require.NoError(t, f.store.Users().DeleteUser(ctx, u.ID))

	_, err = f.tokens.Refresh(ctx, pair.RefreshToken, pair.DeviceID)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
	assert.Equal(t, 0, f.sessionCount(t, u.ID))
}

func TestRefreshFailsAfterSessionExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, domain.RoleUser)

	f.tokens.RefreshTTL = time.Minute
	pair, err := f.tokens.Issue(ctx, u, "")
	require.NoError(t, err)

	f.redis.FastForward(2 * time.Minute)

	_, err = f.tokens.Refresh(ctx, pair.RefreshToken, pair.DeviceID)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestRevokeSingleDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, domain.RoleUser)

	laptop, err := f.tokens.Issue(ctx, u, "laptop")
	require.NoError(t, err)
	phone, err := f.tokens.Issue(ctx, u, "phone")
	require.NoError(t, err)

	require.NoError(t, f.tokens.Revoke(ctx, u.ID, "laptop"))

	_, err = f.tokens.Refresh(ctx, laptop.RefreshToken, "laptop")
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	// The other device keeps working.
	_, err = f.tokens.Refresh(ctx, phone.RefreshToken, "phone")
	assert.NoError(t, err)
}

func TestRevokeAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, domain.RoleUser)

	_, err := f.tokens.Issue(ctx, u, "laptop")
	require.NoError(t, err)
	_, err = f.tokens.Issue(ctx, u, "phone")
	require.NoError(t, err)
	require.Equal(t, 2, f.sessionCount(t, u.ID))

	require.NoError(t, f.tokens.RevokeAll(ctx, u.ID))
	assert.Equal(t, 0, f.sessionCount(t, u.ID))
}
