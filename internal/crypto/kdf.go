package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeyLength is the master key size in bytes (AES-256).
	KeyLength = 32

	// SaltLength is the vault salt size in bytes.
	SaltLength = 32

	// KDFIterations is the fixed PBKDF2 iteration count. Changing it
	// invalidates every existing vault, so it is not configurable.
	KDFIterations = 100_000
)

// DeriveKey derives the 32-byte master key from a password and salt using
// PBKDF2-SHA256. Deterministic: the same inputs always yield the same key.
// The full iteration count always runs; there is no early exit for a wrong
// password because the caller cannot know it is wrong until decryption.
func DeriveKey(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, KDFIterations, KeyLength, sha256.New)
}

// GenerateSalt returns SaltLength bytes of cryptographically secure random
// data. Generated once at vault creation and never changed afterwards.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// NewAuthToken returns a fresh random bearer token, hex encoded. A new one
// is generated on every server start; tokens never persist across restarts.
func NewAuthToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// EncodeSalt renders a salt for on-disk storage.
func EncodeSalt(b []byte) string {
	return hex.EncodeToString(b)
}

// DecodeSalt parses a salt previously written with EncodeSalt.
func DecodeSalt(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
