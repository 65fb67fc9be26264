// Package auth_test drives the assembled auth service over real HTTP. The
// server runs in-process against a temp SQLite database and an embedded Redis
// so the suite needs no external infrastructure.
package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/patronhq/patron/internal/auth/domain"
	authhttp "github.com/patronhq/patron/internal/auth/http"
	"github.com/patronhq/patron/internal/auth/mail"
	"github.com/patronhq/patron/internal/auth/service"
	sessredis "github.com/patronhq/patron/internal/auth/session/redis"
	"github.com/patronhq/patron/internal/auth/store/drivers/sqlite"
	"github.com/patronhq/patron/pkg/cryptox"
	"github.com/patronhq/patron/pkg/idx"
	"github.com/patronhq/patron/pkg/jwtx"
	"github.com/patronhq/patron/pkg/patronsdk"
	"github.com/patronhq/patron/pkg/slogx"
)

const (
	testIssuer   = "https://auth.test"
	testPassword = "correct horse battery"
)

type env struct {
	t      *testing.T
	server *httptest.Server

	store    *sqlite.Store
	redis    *miniredis.Miniredis
	sessions *sessredis.Store
	mails    *recordingMailer
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

func newEnv(t *testing.T) *env {
	t.Helper()

	db, err := sqlite.NewStore(filepath.Join(t.TempDir(), "e2e.db"))
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations())
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	sessions := sessredis.NewWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = sessions.Close() })

	signer, err := jwtx.GenerateSignerEdDSA("e2e-key")
	require.NoError(t, err)
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))
	verifier := jwtx.NewVerifierEdDSA(keys, testIssuer)

	secrets, err := cryptox.NewSecretBox([]byte("e2e-master-key"))
	require.NoError(t, err)

	mails := &recordingMailer{}
	logger := slogx.New(slogx.Config{Service: "auth", Level: "error", Format: "text"})

	tokens := &service.TokenService{
		Signer:     signer,
		Verifier:   verifier,
		Sessions:   sessions,
		Store:      db,
		Issuer:     testIssuer,
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: jwtx.DefaultRefreshTokenTTL,
	}

	router := authhttp.NewRouter(keys, verifier, "e2e", db, sessions, logger)
	router.TokenService = tokens
	router.UserService = &service.UserService{
		Store:    db,
		Sessions: sessions,
		Mailer:   mails,
		BaseURL:  "https://app.test",
	}
	router.CredentialService = &service.CredentialService{Store: db, Secrets: secrets}
	router.PlanService = &service.PlanService{Store: db}
	router.MFAService = &service.MFAService{
		Store:    db,
		Sessions: sessions,
		Tokens:   tokens,
		Issuer:   testIssuer,
	}
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &env{
		t:        t,
		server:   server,
		store:    db,
		redis:    mr,
		sessions: sessions,
		mails:    mails,
	}
}

// do sends one request and decodes the JSON response body into a generic map.
// headers may be nil; a JSON body is marshalled from payload when non-nil.
func (e *env) do(method, path string, headers map[string]string, payload any) (int, map[string]any, *http.Response) {
	e.t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(e.t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(e.t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)

	var decoded map[string]any
	if len(raw) > 0 && strings.HasPrefix(strings.TrimSpace(string(raw)), "{") {
		require.NoError(e.t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded, resp
}

// mobileHeaders returns the header set a mobile client sends.
func mobileHeaders(extra map[string]string) map[string]string {
	h := map[string]string{"x-client-type": "mobile"}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

func bearer(accessToken string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + accessToken}
}

// tokenSet is what a mobile login hands back.
type tokenSet struct {
	Access   string
	Refresh  string
	DeviceID string
}

// register creates an account over the API and returns its user id.
func (e *env) register(email string) string {
	e.t.Helper()

	status, body, _ := e.do(http.MethodPost, "/v1/auth/register", mobileHeaders(nil), map[string]string{
		"email":        email,
		"password":     testPassword,
		"display_name": "Test User",
	})
	require.Equal(e.t, http.StatusCreated, status)
	return body["id"].(string)
}

// login performs a mobile login and returns the issued tokens.
func (e *env) login(email string) tokenSet {
	e.t.Helper()

	status, body, _ := e.do(http.MethodPost, "/v1/auth/login", mobileHeaders(nil), map[string]string{
		"email":    email,
		"password": testPassword,
	})
	require.Equal(e.t, http.StatusOK, status)
	require.NotEmpty(e.t, body["access_token"])
	require.NotEmpty(e.t, body["refresh_token"])
	require.NotEmpty(e.t, body["device_id"])

	return tokenSet{
		Access:   body["access_token"].(string),
		Refresh:  body["refresh_token"].(string),
		DeviceID: body["device_id"].(string),
	}
}

// createCreator seeds a creator-role account directly in the store; the public
// API deliberately has no self-service role upgrade.
func (e *env) createCreator(email string) string {
	e.t.Helper()

	hash, err := cryptox.HashPassword(testPassword)
	require.NoError(e.t, err)

	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		DisplayName:  "Creator",
		PasswordHash: hash,
		Role:         domain.RoleCreator,
	}
	require.NoError(e.t, e.store.Users().CreateUser(context.Background(), u))
	return u.ID
}

// lastMailToken digs the token query parameter out of the most recent mail
// sent to the address.
func (e *env) lastMailToken(to string) string {
	e.t.Helper()

	for i := len(e.mails.sent) - 1; i >= 0; i-- {
		if e.mails.sent[i].To != to {
			continue
		}
		body := e.mails.sent[i].Body
		at := strings.Index(body, "token=")
		require.GreaterOrEqual(e.t, at, 0, "mail to %s carries no token", to)
		token := body[at+len("token="):]
		if end := strings.IndexAny(token, " \r\n"); end >= 0 {
			token = token[:end]
		}
		return token
	}
	e.t.Fatalf("no mail sent to %s", to)
	return ""
}

// sdk returns a client SDK pointed at the in-process server.
func (e *env) sdk() *patronsdk.Client {
	c := patronsdk.NewClient(e.server.URL)
	c.HTTPClient = e.server.Client()
	return c
}

// integration returns a signing SDK client for the credential pair, stamping
// its requests at ts.
func (e *env) integration(clientID, secret string, ts time.Time) *patronsdk.Integration {
	integ := patronsdk.NewIntegration(e.server.URL, clientID, secret)
	integ.HTTPClient = e.server.Client()
	integ.Now = func() time.Time { return ts }
	return integ
}

// signedGet performs an HMAC-signed server-to-server GET through the SDK.
func (e *env) signedGet(path, clientID, secret string, ts time.Time) (int, map[string]any) {
	e.t.Helper()

	resp, err := e.integration(clientID, secret, ts).Do(context.Background(), http.MethodGet, path, nil)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)

	var decoded map[string]any
	if len(raw) > 0 && strings.HasPrefix(strings.TrimSpace(string(raw)), "{") {
		require.NoError(e.t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}
