package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/patronhq/patron/internal/auth/domain"
	"github.com/patronhq/patron/internal/auth/service"
	"github.com/patronhq/patron/pkg/httpx"
	"github.com/patronhq/patron/pkg/jwtx"
)

// AuthMode selects what credential a route demands.
type AuthMode int

const (
	// AuthNone requires no credential (the policy may still restrict client
	// types).
	AuthNone AuthMode = iota
	// AuthAccess requires a bearer access token.
	AuthAccess
	// AuthRefresh requires a refresh token + device id (cookie or header).
	AuthRefresh
	// AuthHMAC requires a signed server-to-server request.
	AuthHMAC
)

// RoutePolicy declares what a route requires. The zero value is a fully open
// route; anything stricter is opt-in per field.
type RoutePolicy struct {
	// Public marks the route as requiring no checks at all.
	Public bool

	// ClientTypes restricts the declared x-client-type. Empty allows any.
	ClientTypes []string

	// Auth is the credential the route demands.
	Auth AuthMode

	// Roles restricts access-token routes to the listed roles. Empty allows
	// any authenticated role.
	Roles []string
}

// guard enforces a RoutePolicy. Checks run in a fixed order: public
// short-circuit, client type (400), credential (401), role (403). The first
// failure wins and later checks never run.
type guard struct {
	verifier    jwtx.Verifier
	credentials *service.CredentialService
}

func (g *guard) Enforce(policy RoutePolicy) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if policy.Public {
				next.ServeHTTP(w, r)
				return
			}

			clientType := strings.ToLower(r.Header.Get("x-client-type"))
			if len(policy.ClientTypes) > 0 && !slices.Contains(policy.ClientTypes, clientType) {
				httpx.WriteError(w, http.StatusBadRequest,
					"invalid_client_type", "Unsupported or missing x-client-type header.")
				return
			}
			if clientType != "" {
				r = r.WithContext(context.WithValue(r.Context(), httpx.CtxKeyClientType, clientType))
			}

			switch policy.Auth {
			case AuthNone:

			case AuthAccess:
				claims, ok := g.requireAccessToken(w, r)
				if !ok {
					return
				}
				ctx := context.WithValue(r.Context(), httpx.CtxKeyUserID, claims.Subject)
				ctx = context.WithValue(ctx, httpx.CtxKeyRole, claims.Role)
				ctx = context.WithValue(ctx, httpx.CtxKeyDeviceID, claims.DeviceID)
				r = r.WithContext(ctx)

				if len(policy.Roles) > 0 && !slices.Contains(policy.Roles, claims.Role) {
					httpx.WriteError(w, http.StatusForbidden,
						"forbidden", "Your role does not allow this operation.")
					return
				}

			case AuthRefresh:
				token, _ := extractRefresh(r)
				if token == "" {
					httpx.WriteError(w, http.StatusUnauthorized,
						"invalid_credentials", "Missing refresh token.")
					return
				}
				// Token validity is the refresh handler's concern; presence
				// is the gate's.

			case AuthHMAC:
				creatorID, ok := g.requireSignature(w, r)
				if !ok {
					return
				}
				r = r.WithContext(context.WithValue(r.Context(), httpx.CtxKeyCreatorID, creatorID))
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (g *guard) requireAccessToken(w http.ResponseWriter, r *http.Request) (jwtx.Claims, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_credentials", "Missing bearer token.")
		return jwtx.Claims{}, false
	}

	claims, err := g.verifier.Verify(token)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_credentials", "Invalid or expired token.")
		return jwtx.Claims{}, false
	}
	if err := claims.ValidateType(jwtx.TypeAccess); err != nil {
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_credentials", "Invalid or expired token.")
		return jwtx.Claims{}, false
	}
	return claims, true
}

func (g *guard) requireSignature(w http.ResponseWriter, r *http.Request) (string, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_credentials", "Invalid credentials.")
		return "", false
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	creatorID, err := g.credentials.VerifyRequest(
		r.Context(),
		r.Header.Get("x-client-id"),
		r.Header.Get("x-signature"),
		r.Header.Get("x-timestamp"),
		r.Method,
		r.URL.Path,
		body,
	)
	if err != nil {
		// Every verification failure collapses to the same answer so callers
		// cannot probe which check tripped.
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_credentials", "Invalid credentials.")
		return "", false
	}
	return creatorID, true
}

// extractRefresh pulls the refresh token and device id from wherever the
// client put them: web clients use cookies, mobile clients use headers.
// Headers win when both are present.
func extractRefresh(r *http.Request) (token, deviceID string) {
	if t := r.Header.Get("x-refresh-token"); t != "" {
		return t, r.Header.Get("x-device-id")
	}
	if c, err := r.Cookie(httpx.CookieRefreshToken); err == nil {
		token = c.Value
	}
	if c, err := r.Cookie(httpx.CookieDeviceID); err == nil {
		deviceID = c.Value
	}
	return token, deviceID
}

// wantsCookies reports whether the response should carry session cookies.
func wantsCookies(r *http.Request) bool {
	return strings.ToLower(r.Header.Get("x-client-type")) != domain.ClientTypeMobile
}
