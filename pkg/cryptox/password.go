package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. Tuned for interactive logins per the OWASP
// minimum-recommended configuration.
const (
	memory      = 19 * 1024 // KiB
	iterations  = 2
	parallelism = 1
	keyLength   = 32
	saltLength  = 16
)

// saltMarker separates the digest from its salt in the stored string.
const saltMarker = ";salt="

var ErrHashFormat = errors.New("cryptox: malformed password hash")

// HashPassword derives an Argon2id digest of the password under a fresh
// random salt and encodes both as "digestHex;salt=saltHex". The plaintext
// is never persisted anywhere.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("cryptox: generate salt: %w", err)
	}

	digest := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, keyLength)
	return hex.EncodeToString(digest) + saltMarker + hex.EncodeToString(salt), nil
}

// VerifyPassword re-derives the digest from the candidate password and the
// stored salt and compares in constant time. Returns nil on match.
func VerifyPassword(candidate, stored string) error {
	digestHex, saltHex, ok := strings.Cut(stored, saltMarker)
	if !ok {
		return ErrHashFormat
	}

	expected, err := hex.DecodeString(digestHex)
	if err != nil || len(expected) == 0 {
		return ErrHashFormat
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) == 0 {
		return ErrHashFormat
	}

	computed := argon2.IDKey([]byte(candidate), salt, iterations, memory, parallelism,
		uint32(len(expected))) // #nosec G115 -- digest length is bounded by the encoding

	if subtle.ConstantTimeCompare(computed, expected) != 1 {
		return errors.New("cryptox: password does not match")
	}
	return nil
}
