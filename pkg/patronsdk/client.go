package patronsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// The SDK authenticates as a mobile-style client: tokens travel in bodies and
// headers, never in cookies.
const clientType = "mobile"

// Client performs the unauthenticated operations against the auth service and
// hands out Sessions for everything that needs a user.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Register creates a new account. The account starts unconfirmed; the service
// mails a confirmation link out of band.
func (c *Client) Register(ctx context.Context, email, password, displayName string) (User, error) {
	resp, err := c.postJSON(ctx, "/v1/auth/register", map[string]string{
		"email":        email,
		"password":     password,
		"display_name": displayName,
	})
	if err != nil {
		return User{}, err
	}

	var u User
	if err := decodeJSON(resp, &u, http.StatusCreated); err != nil {
		return User{}, err
	}
	return u, nil
}

// Login exchanges an email/password pair for a Session. Accounts with an
// active second factor return a *MFARequiredError instead; pass its MFAToken
// to CompleteMFA together with a fresh code.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	resp, err := c.postJSON(ctx, "/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	return c.sessionFromResponse(resp)
}

// CompleteMFA finishes a challenged login with a TOTP code.
func (c *Client) CompleteMFA(ctx context.Context, mfaToken, code string) (*Session, error) {
	resp, err := c.postJSON(ctx, "/v1/mfa/complete", map[string]string{
		"mfa_token": mfaToken,
		"code":      code,
	})
	if err != nil {
		return nil, err
	}
	return c.sessionFromResponse(resp)
}

// NewSessionFromTokens rebuilds a Session from previously stored tokens, e.g.
// after an application restart. expiresIn is the remaining access-token
// lifetime; zero forces a refresh on first use.
func (c *Client) NewSessionFromTokens(accessToken, refreshToken, deviceID string, expiresIn time.Duration) *Session {
	return &Session{
		client:       c,
		accessToken:  accessToken,
		refreshToken: refreshToken,
		deviceID:     deviceID,
		expiresAt:    time.Now().Add(expiresIn),
	}
}

func (c *Client) sessionFromResponse(resp *http.Response) (*Session, error) {
	var tokens tokenResponse
	if err := decodeJSON(resp, &tokens, http.StatusOK); err != nil {
		return nil, err
	}
	if tokens.MFARequired {
		return nil, &MFARequiredError{MFAToken: tokens.MFAToken}
	}
	return &Session{
		client:       c,
		accessToken:  tokens.AccessToken,
		refreshToken: tokens.RefreshToken,
		deviceID:     tokens.DeviceID,
		expiresAt:    time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second),
	}, nil
}

// postJSON sends an unauthenticated JSON request with the SDK's client type.
func (c *Client) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-client-type", clientType)

	return c.HTTPClient.Do(req)
}

// decodeJSON checks the status and unmarshals the body into target. Non-matching
// statuses become an *APIError.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	if resp.StatusCode != expectedStatus {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// checkStatusNoContent drains the response and verifies a body-less success.
func checkStatusNoContent(resp *http.Response) error {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return apiError(resp)
	}
	return nil
}
