package domain

import "time"

// Client types a caller may declare. Web clients exchange refresh tokens via
// httpOnly cookies; mobile clients use headers.
const (
	ClientTypeWeb    = "web"
	ClientTypeMobile = "mobile"
)

// TokenPair is the result of a successful issuance or rotation.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	DeviceID     string
	ExpiresIn    time.Duration
}
