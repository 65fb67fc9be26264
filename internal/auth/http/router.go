package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/patronhq/patron/internal/auth/domain"
	"github.com/patronhq/patron/internal/auth/service"
	"github.com/patronhq/patron/internal/auth/session"
	"github.com/patronhq/patron/internal/auth/store"
	"github.com/patronhq/patron/pkg/httpx"
	"github.com/patronhq/patron/pkg/jwtx"
	"github.com/patronhq/patron/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers and declares a
// RoutePolicy per route.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	sessions session.Store

	TokenService      *service.TokenService
	UserService       *service.UserService
	CredentialService *service.CredentialService
	PlanService       *service.PlanService
	MFAService        *service.MFAService
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	sessions session.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		sessions:     sessions,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) ApplyRoutes() {
	gate := &guard{verifier: r.verifier, credentials: r.CredentialService}

	r.registerAuth(gate)
	r.registerPasswords(gate)
	r.registerUsers(gate)
	r.registerMFA(gate)
	r.registerCredentials(gate)
	r.registerPlans(gate)
	r.registerSystem(gate)
}

func (r *Router) registerAuth(gate *guard) {
	h := &AuthHandler{Users: r.UserService, Tokens: r.TokenService, MFA: r.MFAService}

	clientFacing := []string{domain.ClientTypeWeb, domain.ClientTypeMobile}

	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			gate.Enforce(RoutePolicy{ClientTypes: clientFacing, Auth: AuthNone}),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			gate.Enforce(RoutePolicy{ClientTypes: clientFacing, Auth: AuthNone}),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			gate.Enforce(RoutePolicy{ClientTypes: clientFacing, Auth: AuthRefresh}),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			gate.Enforce(RoutePolicy{Auth: AuthAccess}),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout-all",
		httpx.Chain(http.HandlerFunc(h.HandleLogoutAll),
			gate.Enforce(RoutePolicy{Auth: AuthAccess}),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerPasswords(gate *guard) {
	h := &PasswordHandler{Users: r.UserService}

	r.Mux.Handle("POST /v1/auth/password/change",
		httpx.Chain(http.HandlerFunc(h.HandleChange),
			gate.Enforce(RoutePolicy{Auth: AuthAccess}),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/password/forgot",
		httpx.Chain(http.HandlerFunc(h.HandleForgot),
			gate.Enforce(RoutePolicy{Public: true}),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/password/reset",
		httpx.Chain(http.HandlerFunc(h.HandleReset),
			gate.Enforce(RoutePolicy{Public: true}),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/confirm-email",
		httpx.Chain(http.HandlerFunc(h.HandleConfirmEmail),
			gate.Enforce(RoutePolicy{Public: true}),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/confirm-email/resend",
		httpx.Chain(http.HandlerFunc(h.HandleResendConfirmation),
			gate.Enforce(RoutePolicy{Auth: AuthAccess}),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerUsers(gate *guard) {
	h := &UsersHandler{Users: r.UserService}

	r.Mux.Handle("GET /v1/users/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			gate.Enforce(RoutePolicy{Auth: AuthAccess}),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("PATCH /v1/users/me",
		httpx.Chain(http.HandlerFunc(h.HandleUpdate),
			gate.Enforce(RoutePolicy{Auth: AuthAccess}),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("DELETE /v1/users/me",
		httpx.Chain(http.HandlerFunc(h.HandleDelete),
			gate.Enforce(RoutePolicy{Auth: AuthAccess}),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerMFA(gate *guard) {
	h := &MFAHandler{MFA: r.MFAService, Tokens: r.TokenService}

	r.Mux.Handle("POST /v1/mfa/totp/enroll",
		httpx.Chain(http.HandlerFunc(h.HandleEnroll),
			gate.Enforce(RoutePolicy{Auth: AuthAccess}),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	// Strict: each request is a chance to guess a TOTP code.
	r.Mux.Handle("POST /v1/mfa/totp/activate",
		httpx.Chain(http.HandlerFunc(h.HandleActivate),
			gate.Enforce(RoutePolicy{Auth: AuthAccess}),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("DELETE /v1/mfa/totp",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			gate.Enforce(RoutePolicy{Auth: AuthAccess}),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/mfa/complete",
		httpx.Chain(http.HandlerFunc(h.HandleComplete),
			gate.Enforce(RoutePolicy{ClientTypes: []string{domain.ClientTypeWeb, domain.ClientTypeMobile}, Auth: AuthNone}),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerCredentials(gate *guard) {
	h := &CredentialsHandler{Credentials: r.CredentialService, Plans: r.PlanService}

	creatorOnly := []string{domain.RoleCreator, domain.RoleAdmin}

	r.Mux.Handle("POST /v1/credentials",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			gate.Enforce(RoutePolicy{Auth: AuthAccess, Roles: creatorOnly}),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /v1/credentials",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			gate.Enforce(RoutePolicy{Auth: AuthAccess, Roles: creatorOnly}),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("DELETE /v1/credentials/{client_id}",
		httpx.Chain(http.HandlerFunc(h.HandleRevoke),
			gate.Enforce(RoutePolicy{Auth: AuthAccess, Roles: creatorOnly}),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	// Server-to-server: authenticated by request signature, not bearer token.
	r.Mux.Handle("GET /v1/credentials/creator/plans",
		httpx.Chain(http.HandlerFunc(h.HandleCreatorPlans),
			gate.Enforce(RoutePolicy{Auth: AuthHMAC}),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerPlans(gate *guard) {
	h := &PlansHandler{Plans: r.PlanService}

	creatorOnly := []string{domain.RoleCreator, domain.RoleAdmin}

	r.Mux.Handle("POST /v1/plans",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			gate.Enforce(RoutePolicy{Auth: AuthAccess, Roles: creatorOnly}),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /v1/plans",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			gate.Enforce(RoutePolicy{Auth: AuthAccess, Roles: creatorOnly}),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("PUT /v1/plans/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleUpdate),
			gate.Enforce(RoutePolicy{Auth: AuthAccess, Roles: creatorOnly}),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("DELETE /v1/plans/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleDelete),
			gate.Enforce(RoutePolicy{Auth: AuthAccess, Roles: creatorOnly}),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem(gate *guard) {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			gate.Enforce(RoutePolicy{Public: true}),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.sessions, r.keys),
			gate.Enforce(RoutePolicy{Public: true}),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			gate.Enforce(RoutePolicy{Public: true}),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
