package auth_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterLoginRefreshFlow(t *testing.T) {
	e := newEnv(t)

	userID := e.register("alice@example.com")
	ts := e.login("alice@example.com")

	// The access token works against the authenticated surface.
	status, me, _ := e.do(http.MethodGet, "/v1/users/me", bearer(ts.Access), nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, userID, me["id"])
	require.Equal(t, "alice@example.com", me["email"])
	require.Equal(t, "user", me["role"])
	require.Equal(t, false, me["email_confirmed"])

	// Rotate: the device keeps its id, the tokens change.
	status, rotated, _ := e.do(http.MethodPost, "/v1/auth/refresh", mobileHeaders(map[string]string{
		"x-refresh-token": ts.Refresh,
		"x-device-id":     ts.DeviceID,
	}), nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, ts.DeviceID, rotated["device_id"])
	require.NotEqual(t, ts.Refresh, rotated["refresh_token"])

	// Replaying the pre-rotation token is treated as theft: rejected, and the
	// device session dies with it.
	status, _, _ = e.do(http.MethodPost, "/v1/auth/refresh", mobileHeaders(map[string]string{
		"x-refresh-token": ts.Refresh,
		"x-device-id":     ts.DeviceID,
	}), nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, _, _ = e.do(http.MethodPost, "/v1/auth/refresh", mobileHeaders(map[string]string{
		"x-refresh-token": rotated["refresh_token"].(string),
		"x-device-id":     ts.DeviceID,
	}), nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestLogoutEndsDeviceSession(t *testing.T) {
	e := newEnv(t)
	e.register("bob@example.com")
	ts := e.login("bob@example.com")

	status, _, _ := e.do(http.MethodPost, "/v1/auth/logout", mobileHeaders(bearer(ts.Access)), nil)
	require.Equal(t, http.StatusNoContent, status)

	status, _, _ = e.do(http.MethodPost, "/v1/auth/refresh", mobileHeaders(map[string]string{
		"x-refresh-token": ts.Refresh,
		"x-device-id":     ts.DeviceID,
	}), nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestLogoutAllEndsEveryDevice(t *testing.T) {
	e := newEnv(t)
	e.register("carol@example.com")
	first := e.login("carol@example.com")
	second := e.login("carol@example.com")
	require.NotEqual(t, first.DeviceID, second.DeviceID)

	status, _, _ := e.do(http.MethodPost, "/v1/auth/logout-all", mobileHeaders(bearer(second.Access)), nil)
	require.Equal(t, http.StatusNoContent, status)

	for _, ts := range []tokenSet{first, second} {
		status, _, _ = e.do(http.MethodPost, "/v1/auth/refresh", mobileHeaders(map[string]string{
			"x-refresh-token": ts.Refresh,
			"x-device-id":     ts.DeviceID,
		}), nil)
		require.Equal(t, http.StatusUnauthorized, status)
	}
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t)
	e.register("dave@example.com")

	t.Run("duplicate email", func(t *testing.T) {
		status, body, _ := e.do(http.MethodPost, "/v1/auth/register", mobileHeaders(nil), map[string]string{
			"email":    "Dave@Example.com",
			"password": testPassword,
		})
		require.Equal(t, http.StatusConflict, status)
		require.Equal(t, "email_taken", body["error"])
	})

	t.Run("short password", func(t *testing.T) {
		status, _, _ := e.do(http.MethodPost, "/v1/auth/register", mobileHeaders(nil), map[string]string{
			"email":    "short@example.com",
			"password": "tiny",
		})
		require.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("missing client type", func(t *testing.T) {
		status, body, _ := e.do(http.MethodPost, "/v1/auth/register", nil, map[string]string{
			"email":    "typeless@example.com",
			"password": testPassword,
		})
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "invalid_client_type", body["error"])
	})
}

func TestLoginRejectsBadPassword(t *testing.T) {
	e := newEnv(t)
	e.register("eve@example.com")

	status, body, _ := e.do(http.MethodPost, "/v1/auth/login", mobileHeaders(nil), map[string]string{
		"email":    "eve@example.com",
		"password": "wrong password here",
	})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "invalid_credentials", body["error"])
}

func TestWebClientUsesCookies(t *testing.T) {
	e := newEnv(t)
	e.register("fay@example.com")

	webHeaders := map[string]string{"x-client-type": "web"}
	status, body, resp := e.do(http.MethodPost, "/v1/auth/login", webHeaders, map[string]string{
		"email":    "fay@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, status)

	// Tokens never land in the body for web clients.
	require.NotEmpty(t, body["access_token"])
	require.Nil(t, body["refresh_token"])
	require.Nil(t, body["device_id"])

	var refreshCookie, deviceCookie *http.Cookie
	for _, c := range resp.Cookies() {
		switch c.Name {
		case "refreshToken":
			refreshCookie = c
		case "deviceId":
			deviceCookie = c
		}
	}
	require.NotNil(t, refreshCookie)
	require.NotNil(t, deviceCookie)
	require.True(t, refreshCookie.HttpOnly)
	require.True(t, refreshCookie.Secure)

	// Refreshing off the cookies alone works.
	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/v1/auth/refresh", nil)
	require.NoError(t, err)
	req.Header.Set("x-client-type", "web")
	req.AddCookie(refreshCookie)
	req.AddCookie(deviceCookie)

	rotated, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer rotated.Body.Close()
	require.Equal(t, http.StatusOK, rotated.StatusCode)

	var gotNewRefresh bool
	for _, c := range rotated.Cookies() {
		if c.Name == "refreshToken" && c.Value != refreshCookie.Value {
			gotNewRefresh = true
		}
	}
	require.True(t, gotNewRefresh)
}
