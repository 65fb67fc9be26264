package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/patronhq/patron/internal/auth/domain"
	"github.com/patronhq/patron/internal/auth/store"
	"github.com/patronhq/patron/pkg/cryptox"
	"github.com/patronhq/patron/pkg/idx"
	"github.com/patronhq/patron/pkg/slogx"
)

// SignatureWindow is how far a request timestamp may drift from server time
// in either direction before the signature is rejected.
const SignatureWindow = 5 * time.Minute

var ErrInvalidSignature = errors.New("invalid_signature")

// CredentialService manages server-to-server API credentials and verifies
// signed requests made with them.
//
// Secrets are sealed with a master key at rest so they can be recovered for
// HMAC verification. They are returned in plaintext exactly once, from
// Create.
type CredentialService struct {
	Store   store.Store
	Secrets *cryptox.SecretBox

	// Now overrides the clock for the signature window check. Nil means
	// time.Now.
	Now func() time.Time
}

func (s *CredentialService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreatedCredential is the one-time creation result carrying the plaintext
// secret.
type CreatedCredential struct {
	Credential   domain.APICredential
	ClientSecret string
}

// Create mints a credential pair for a creator.
func (s *CredentialService) Create(ctx context.Context, creatorID, label string) (*CreatedCredential, error) {
	l := slogx.FromContext(ctx)

	clientID, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, err
	}
	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	sealed, err := s.Secrets.Seal([]byte(secret))
	if err != nil {
		return nil, err
	}

	cred := domain.APICredential{
		ID:        idx.New().String(),
		CreatorID: creatorID,
		ClientID:  clientID,
		SecretEnc: sealed,
		Label:     label,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Store.Credentials().CreateCredential(ctx, cred); err != nil {
		return nil, err
	}

	l.Info("api credential created",
		slog.String("creator_id", creatorID),
		slog.String("credential_id", cred.ID),
	)
	return &CreatedCredential{Credential: cred, ClientSecret: secret}, nil
}

// List returns a creator's credentials. Secrets are never included.
func (s *CredentialService) List(ctx context.Context, creatorID string) ([]domain.APICredential, error) {
	return s.Store.Credentials().ListCredentialsByCreator(ctx, creatorID)
}

// Revoke permanently deactivates a credential. Only the owning creator may
// revoke it; anyone else sees not-found.
func (s *CredentialService) Revoke(ctx context.Context, creatorID, clientID string) error {
	l := slogx.FromContext(ctx)

	cred, err := s.Store.Credentials().GetCredentialByClientID(ctx, clientID)
	if err != nil {
		return err
	}
	if cred.CreatorID != creatorID {
		return store.ErrNotFound
	}
	if err := s.Store.Credentials().RevokeCredential(ctx, cred.ID); err != nil {
		return err
	}

	l.Info("api credential revoked",
		slog.String("creator_id", creatorID),
		slog.String("credential_id", cred.ID),
	)
	return nil
}

// VerifyRequest checks a signed server-to-server request and returns the
// owning creator's ID.
//
// Checks run in a fixed order with the cheapest first: presence, timestamp
// window, credential lookup and active flag, then the HMAC itself. Every
// failure collapses to the same ErrInvalidSignature so a probing caller
// learns nothing about which step rejected it.
func (s *CredentialService) VerifyRequest(
	ctx context.Context,
	clientID, signature, timestamp string,
	method, path string,
	body []byte,
) (string, error) {
	l := slogx.FromContext(ctx)

	if clientID == "" || signature == "" || timestamp == "" {
		return "", ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return "", ErrInvalidSignature
	}
	drift := s.now().Sub(time.Unix(ts, 0))
	if drift > SignatureWindow || drift < -SignatureWindow {
		return "", ErrInvalidSignature
	}

	cred, err := s.Store.Credentials().GetCredentialByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidSignature
		}
		return "", err
	}
	if !cred.IsActive {
		return "", ErrInvalidSignature
	}

	secret, err := s.Secrets.Open(cred.SecretEnc)
	if err != nil {
		l.Error("failed to unseal credential secret",
			slog.Any("error", err), slog.String("credential_id", cred.ID))
		return "", ErrInvalidSignature
	}

	if !cryptox.VerifyRequestSignature(string(secret), signature, ts, method, path, body) {
		return "", ErrInvalidSignature
	}

	return cred.CreatorID, nil
}
