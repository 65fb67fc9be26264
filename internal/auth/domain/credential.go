package domain

import "time"

// APICredential is a server-to-server key pair owned by a creator. The
// clientID is public; the secret is stored encrypted and is only ever shown
// in plaintext once, at creation time.
type APICredential struct {
	ID        string
	CreatorID string
	ClientID  string
	SecretEnc []byte // AES-256-GCM sealed secret
	Label     string
	IsActive  bool
	RevokedAt *time.Time
	CreatedAt time.Time
}
