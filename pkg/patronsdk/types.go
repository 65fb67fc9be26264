package patronsdk

import "time"

// User is an account as reported by the service.
type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	DisplayName    string `json:"display_name"`
	Role           string `json:"role"`
	EmailConfirmed bool   `json:"email_confirmed"`
	TOTPEnabled    bool   `json:"totp_enabled"`
}

// Plan is a subscription plan as returned by the signed creator-plans read.
type Plan struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	Interval    string    `json:"interval"`
	CreatedAt   time.Time `json:"created_at"`
}

// tokenResponse covers both answers a login can produce: a token grant or an
// MFA challenge.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	DeviceID     string `json:"device_id"`

	MFARequired bool   `json:"mfa_required"`
	MFAToken    string `json:"mfa_token"`
}
