package patronsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// refreshBuffer refreshes the access token slightly before it actually
// expires so in-flight requests don't race the deadline.
const refreshBuffer = 30 * time.Second

// Session is an authenticated user session. It rotates its own refresh token
// and renews the access token transparently; methods are safe for concurrent
// use.
type Session struct {
	client *Client

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	deviceID     string
	expiresAt    time.Time
}

// AccessToken returns the current access token. It may be expired; callers
// that need a live one should go through the Session methods instead.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token, e.g. for persisting the
// session across restarts.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// DeviceID returns the device id the session is bound to.
func (s *Session) DeviceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceID
}

// Me returns the session's account.
func (s *Session) Me(ctx context.Context) (User, error) {
	resp, err := s.doAuth(ctx, http.MethodGet, "/v1/users/me", nil)
	if err != nil {
		return User{}, err
	}

	var u User
	if err := decodeJSON(resp, &u, http.StatusOK); err != nil {
		return User{}, err
	}
	return u, nil
}

// UpdateDisplayName renames the account.
func (s *Session) UpdateDisplayName(ctx context.Context, displayName string) (User, error) {
	resp, err := s.doAuth(ctx, http.MethodPatch, "/v1/users/me", map[string]string{
		"display_name": displayName,
	})
	if err != nil {
		return User{}, err
	}

	var u User
	if err := decodeJSON(resp, &u, http.StatusOK); err != nil {
		return User{}, err
	}
	return u, nil
}

// Logout ends this device session. The Session is unusable afterwards.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.doAuth(ctx, http.MethodPost, "/v1/auth/logout", nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// LogoutAll ends every device session of the account.
func (s *Session) LogoutAll(ctx context.Context) error {
	resp, err := s.doAuth(ctx, http.MethodPost, "/v1/auth/logout-all", nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// doAuth sends a bearer-authenticated request, refreshing the access token
// first when it is about to expire.
func (s *Session) doAuth(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.client.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-client-type", clientType)

	return s.client.HTTPClient.Do(req)
}

// getValidToken returns an access token with lifetime left, refreshing under
// the write lock if needed. The expiry is re-checked after lock upgrade so
// concurrent callers refresh once.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Until(s.expiresAt) > refreshBuffer {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Until(s.expiresAt) > refreshBuffer {
		return s.accessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", fmt.Errorf("refreshing session: %w", err)
	}
	return s.accessToken, nil
}

// refreshLocked rotates the refresh token. Callers hold the write lock.
func (s *Session) refreshLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.BaseURL+"/v1/auth/refresh", nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-client-type", clientType)
	req.Header.Set("x-refresh-token", s.refreshToken)
	req.Header.Set("x-device-id", s.deviceID)

	resp, err := s.client.HTTPClient.Do(req)
	if err != nil {
		return err
	}

	var tokens tokenResponse
	if err := decodeJSON(resp, &tokens, http.StatusOK); err != nil {
		return err
	}

	s.accessToken = tokens.AccessToken
	s.refreshToken = tokens.RefreshToken
	s.deviceID = tokens.DeviceID
	s.expiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	return nil
}
