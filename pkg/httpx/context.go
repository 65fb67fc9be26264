package httpx

import "context"

type ctxKey string

const (
	// CtxKeyUserID holds the authenticated user's ID (bearer routes).
	CtxKeyUserID ctxKey = "user_id"
	// CtxKeyRole holds the authenticated user's platform role.
	CtxKeyRole ctxKey = "role"
	// CtxKeyDeviceID holds the device session ID from the token claims.
	CtxKeyDeviceID ctxKey = "device_id"
	// CtxKeyCreatorID holds the owning creator's ID (HMAC credential routes).
	CtxKeyCreatorID ctxKey = "creator_id"
	// CtxKeyClientType holds the declared client type ("web" or "mobile").
	CtxKeyClientType ctxKey = "client_type"
)

// UserIDFromCtx returns the authenticated user's ID, or "".
func UserIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(CtxKeyUserID).(string)
	return v
}

// RoleFromCtx returns the authenticated user's role, or "".
func RoleFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(CtxKeyRole).(string)
	return v
}

// DeviceIDFromCtx returns the device session ID, or "".
func DeviceIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(CtxKeyDeviceID).(string)
	return v
}

// CreatorIDFromCtx returns the creator ID derived from a verified HMAC
// credential, or "". Handlers behind the credential guard must scope every
// lookup by this value, never by a client-supplied ID.
func CreatorIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(CtxKeyCreatorID).(string)
	return v
}

// ClientTypeFromCtx returns the declared client type, or "".
func ClientTypeFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(CtxKeyClientType).(string)
	return v
}
