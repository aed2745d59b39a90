// Package auth mints and verifies the tenant bearer tokens accepted by the
// REST API and the WebSocket endpoint.
//
// A token encodes its tenant and expiry in the clear and carries an
// HMAC-SHA256 signature keyed by the daemon's auth secret:
//
//	m360_<tenant>_<unix_expiry>_<hex(HMAC-SHA256(secret, "<tenant>:<unix_expiry>"))>
//
// The signature is hex so the token stays safe in query strings; the tenant
// may itself contain underscores, which is why parsing works right to left.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const tokenPrefix = "m360_"

// DefaultTokenLifetime is the validity period used when minting without an
// explicit TTL.
const DefaultTokenLifetime = 30 * 24 * time.Hour

// ErrInvalidToken is returned by Verify for any token that fails parsing,
// signature or expiry checks. Callers translate it to 401.
var ErrInvalidToken = errors.New("invalid token")

// Mint creates a bearer token for tenant, valid for lifetime
// (DefaultTokenLifetime when zero).
func Mint(secret, tenant string, lifetime time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("auth secret is empty")
	}
	if tenant == "" || strings.ContainsAny(tenant, " \t\r\n") {
		return "", fmt.Errorf("invalid tenant %q", tenant)
	}
	if lifetime == 0 {
		lifetime = DefaultTokenLifetime
	}
	expiry := time.Now().Add(lifetime).Unix()
	return tokenPrefix + tenant + "_" + strconv.FormatInt(expiry, 10) + "_" + sign(secret, tenant, expiry), nil
}

// Verify checks the token's signature and expiry and returns its tenant.
func Verify(secret, token string) (string, error) {
	rest, ok := strings.CutPrefix(token, tokenPrefix)
	if !ok {
		return "", ErrInvalidToken
	}

	// The signature is hex and the expiry is decimal, so neither contains
	// an underscore; splitting from the right keeps underscores legal in
	// the tenant itself.
	sigAt := strings.LastIndex(rest, "_")
	if sigAt <= 0 {
		return "", ErrInvalidToken
	}
	sig := rest[sigAt+1:]
	rest = rest[:sigAt]

	expAt := strings.LastIndex(rest, "_")
	if expAt <= 0 {
		return "", ErrInvalidToken
	}
	expiry, err := strconv.ParseInt(rest[expAt+1:], 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}
	tenant := rest[:expAt]

	if !hmac.Equal([]byte(sig), []byte(sign(secret, tenant, expiry))) {
		return "", ErrInvalidToken
	}
	if time.Now().Unix() > expiry {
		return "", fmt.Errorf("%w: expired at %d", ErrInvalidToken, expiry)
	}
	return tenant, nil
}

// GenerateSecret returns a fresh random auth secret, base64-encoded.
// Used by `monitor360 setup` to populate the config.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating auth secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func sign(secret, tenant string, expiry int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(tenant + ":" + strconv.FormatInt(expiry, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
