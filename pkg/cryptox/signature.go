package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Request signatures for server-to-server callers. The caller holds a client
// secret and signs each request with HMAC-SHA256 over a canonical string; the
// server recomputes it from the incoming request and compares.
//
// Canonical string: "{timestamp}|{METHOD}|{path}|{sha256Hex(body)}"
//   - timestamp is unix seconds as supplied in the x-timestamp header
//   - METHOD is upper-cased
//   - path excludes the query string
//   - body is the raw request body; bodyless requests hash the empty string

// CanonicalRequest builds the string that gets signed.
func CanonicalRequest(timestamp int64, method, path string, body []byte) string {
	sum := sha256.Sum256(body)
	return strconv.FormatInt(timestamp, 10) + "|" +
		strings.ToUpper(method) + "|" +
		path + "|" +
		hex.EncodeToString(sum[:])
}

// SignRequest returns the hex HMAC-SHA256 signature of the canonical request
// under secret. Used by tests and by SDK-side callers.
func SignRequest(secret string, timestamp int64, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(CanonicalRequest(timestamp, method, path, body)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyRequestSignature recomputes the signature and compares it to the
// presented one in constant time.
func VerifyRequestSignature(secret, presented string, timestamp int64, method, path string, body []byte) bool {
	expected := SignRequest(secret, timestamp, method, path, body)
	return hmac.Equal([]byte(expected), []byte(presented))
}
