package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

var b64 = base64.RawURLEncoding

var errBadSignature = errors.New("invalid session cookie signature")

// Sign returns the cookie value for id: the id followed by its HMAC-SHA256
// under secret.
func Sign(id string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(id))
	return id + "." + b64.EncodeToString(mac.Sum(nil))
}

// Unsign verifies a cookie value produced by Sign and returns the session id.
func Unsign(value string, secret []byte) (string, error) {
	idx := strings.LastIndexByte(value, '.')
	if idx <= 0 || idx == len(value)-1 {
		return "", errBadSignature
	}
	id, sig := value[:idx], value[idx+1:]
	sigBytes, err := b64.DecodeString(sig)
	if err != nil {
		return "", errBadSignature
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(id))
	if !hmac.Equal(sigBytes, mac.Sum(nil)) {
		return "", errBadSignature
	}
	return id, nil
}
