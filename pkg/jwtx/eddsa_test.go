package jwtx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) *EdDSASigner {
	t.Helper()
	signer, err := GenerateSignerEdDSA("test-key-1")
	require.NoError(t, err)
	return signer
}

func TestEdDSA_SignVerifyRoundTrip(t *testing.T) {
	signer := newTestSigner(t)

	keys := NewKeySet()
	require.NoError(t, keys.AddSigner(signer))
	verifier := NewVerifierEdDSA(keys, "patron-auth")

	claims := NewAccessClaims("user-1", "creator", "device-1", "patron-auth", time.Minute, time.Now())
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	got, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, "creator", got.Role)
	require.Equal(t, "device-1", got.DeviceID)
	require.Equal(t, TypeAccess, got.TokenType)
}

func TestEdDSA_RejectsUnknownKID(t *testing.T) {
	signer := newTestSigner(t)
	other := newTestSigner(t)

	keys := NewKeySet()
	require.NoError(t, keys.AddSigner(other)) // same kid, different key material

	verifier := NewVerifierEdDSA(keys, "patron-auth")
	claims := NewAccessClaims("user-1", "member", "d", "patron-auth", time.Minute, time.Now())
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.Error(t, err, "signature from a different keypair must not verify")
}

func TestEdDSA_RejectsExpired(t *testing.T) {
	signer := newTestSigner(t)
	keys := NewKeySet()
	require.NoError(t, keys.AddSigner(signer))
	verifier := NewVerifierEdDSA(keys, "patron-auth")

	claims := NewAccessClaims("user-1", "member", "d", "patron-auth", time.Minute, time.Now().Add(-time.Hour))
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.Error(t, err)
}

func TestEdDSA_RejectsWrongIssuer(t *testing.T) {
	signer := newTestSigner(t)
	keys := NewKeySet()
	require.NoError(t, keys.AddSigner(signer))
	verifier := NewVerifierEdDSA(keys, "patron-auth")

	claims := NewAccessClaims("user-1", "member", "d", "someone-else", time.Minute, time.Now())
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, ErrIssuer)
}

func TestSigner_PEMRoundTrip(t *testing.T) {
	signer := newTestSigner(t)

	pemBytes, err := signer.MarshalPKCS8PEM()
	require.NoError(t, err)

	reloaded, err := NewSignerEdDSA("test-key-1", pemBytes)
	require.NoError(t, err)

	claims := NewRefreshClaims("user-1", "device-1", "patron-auth", time.Hour, time.Now())
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	keys := NewKeySet()
	require.NoError(t, keys.AddSigner(reloaded))
	_, err = NewVerifierEdDSA(keys, "patron-auth").Verify(token)
	require.NoError(t, err, "reloaded key should verify tokens from the original")
}
