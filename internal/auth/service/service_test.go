package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/patronhq/patron/internal/auth/domain"
	"github.com/patronhq/patron/internal/auth/mail"
	sessredis "github.com/patronhq/patron/internal/auth/session/redis"
	"github.com/patronhq/patron/internal/auth/store"
	"github.com/patronhq/patron/internal/auth/store/drivers/sqlite"
	"github.com/patronhq/patron/pkg/cryptox"
	"github.com/patronhq/patron/pkg/idx"
	"github.com/patronhq/patron/pkg/jwtx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fixture wires real stores (temp sqlite, in-process redis) behind the
// services under test.
type fixture struct {
	store    store.Store
	sessions *sessredis.Store
	redis    *miniredis.Miniredis
	mails    *recordingMailer

	tokens *TokenService
	users  *UserService
	creds  *CredentialService
	plans  *PlanService
	mfa    *MFAService
}

type recordingMailer struct {
	sent []sentMail
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

var _ mail.Mailer = (*recordingMailer)(nil)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations())
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	sessions := sessredis.NewWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = sessions.Close() })

	signer, err := jwtx.GenerateSignerEdDSA("test-key")
	require.NoError(t, err)
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))
	verifier := jwtx.NewVerifierEdDSA(keys, "https://auth.test")

	secrets, err := cryptox.NewSecretBox([]byte("test-master-key"))
	require.NoError(t, err)

	mails := &recordingMailer{}

	tokens := &TokenService{
		Signer:     signer,
		Verifier:   verifier,
		Sessions:   sessions,
		Store:      db,
		Issuer:     "https://auth.test",
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: jwtx.DefaultRefreshTokenTTL,
	}

	return &fixture{
		store:    db,
		sessions: sessions,
		redis:    mr,
		mails:    mails,
		tokens:   tokens,
		users: &UserService{
			Store:    db,
			Sessions: sessions,
			Mailer:   mails,
			BaseURL:  "https://app.test",
		},
		creds: &CredentialService{Store: db, Secrets: secrets},
		plans: &PlanService{Store: db},
		mfa: &MFAService{
			Store:    db,
			Sessions: sessions,
			Tokens:   tokens,
			Issuer:   "patron-test",
		},
	}
}

func (f *fixture) createUser(t *testing.T, role string) domain.User {
	t.Helper()
	hash, err := cryptox.HashPassword("correct horse battery")
	require.NoError(t, err)
	u := domain.User{
		ID:           idx.New().String(),
		Email:        idx.New().String() + "@example.com",
		DisplayName:  "Fixture User",
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(t, f.store.Users().CreateUser(context.Background(), u))
	return u
}

func (f *fixture) sessionCount(t *testing.T, userID string) int {
	t.Helper()
	n := 0
	for _, k := range f.redis.Keys() {
		if len(k) > 3 && k[:3] == "rt:" && containsSegment(k, userID) {
			n++
		}
	}
	return n
}

func containsSegment(key, userID string) bool {
	return key == "rt:"+userID || (len(key) > len("rt:"+userID) && key[:len("rt:"+userID)+1] == "rt:"+userID+":")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
