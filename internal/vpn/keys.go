package vpn

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// KeySize is the length in bytes of a WireGuard Curve25519 key.
const KeySize = 32

// Key is a WireGuard key (private or public), base64-encoded in its
// string form. Used by `monitor360 genkey` when preparing tunnel profiles.
type Key [KeySize]byte

// GenerateKey returns a new random private key, clamped per RFC 7748 §5
// so it is a valid Curve25519 scalar.
func GenerateKey() (Key, error) {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		return Key{}, fmt.Errorf("generating random key: %w", err)
	}
	k[0] &= 248  // Clear bits 0, 1, 2
	k[31] &= 127 // Clear bit 7 (MSB)
	k[31] |= 64  // Set bit 6
	return k, nil
}

// Public derives the Curve25519 public key for a private key.
func (k Key) Public() Key {
	var pub Key
	curve25519.ScalarBaseMult((*[KeySize]byte)(&pub), (*[KeySize]byte)(&k))
	return pub
}

// ParseKey decodes a base64-encoded key string.
func ParseKey(s string) (Key, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("decoding base64 key: %w", err)
	}
	if len(b) != KeySize {
		return Key{}, fmt.Errorf("invalid key length: got %d, want %d", len(b), KeySize)
	}
	var k Key
	copy(k[:], b)
	return k, nil
}

// String returns the base64-encoded representation of the key.
func (k Key) String() string {
	return base64.StdEncoding.EncodeToString(k[:])
}

// IsZero reports whether the key is the zero value.
func (k Key) IsZero() bool {
	var zero Key
	return k == zero
}
