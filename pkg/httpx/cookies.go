package httpx

import (
	"net/http"
	"time"
)

// Cookie names used by web clients to carry the refresh credentials. Mobile
// clients use the x-refresh-token / x-device-id headers instead.
const (
	CookieRefreshToken = "refreshToken"
	CookieDeviceID     = "deviceId"
)

// SetSessionCookies attaches the refresh token and device id as httpOnly
// cookies. sameSite=none + secure because the web client is served from a
// different origin than the API.
func SetSessionCookies(w http.ResponseWriter, refreshToken, deviceID string, ttl time.Duration) {
	maxAge := int(ttl.Seconds())
	http.SetCookie(w, &http.Cookie{
		Name:     CookieRefreshToken,
		Value:    refreshToken,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CookieDeviceID,
		Value:    deviceID,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// ClearSessionCookies expires both session cookies.
func ClearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{CookieRefreshToken, CookieDeviceID} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteNoneMode,
		})
	}
}
