package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
)

const (
	ivSize  = 16
	tagSize = 16
	minSize = ivSize + tagSize
)

// ErrIntegrity is returned for every decryption failure: truncated input,
// tag mismatch, wrong key. Callers must not be able to tell a wrong key
// apart from corrupt data.
var ErrIntegrity = errors.New("crypto: decryption failed")

// Encrypt seals plaintext under key with AES-256-GCM and a fresh random
// 16-byte IV per call. Returned layout: [iv||tag||ciphertext].
func Encrypt(plaintext, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	// Seal appends the tag after the ciphertext; the on-disk layout wants
	// it between the IV and the ciphertext.
	sealed := aead.Seal(nil, iv, plaintext, nil)
	ctLen := len(sealed) - tagSize

	out := make([]byte, 0, ivSize+len(sealed))
	out = append(out, iv...)
	out = append(out, sealed[ctLen:]...)
	out = append(out, sealed[:ctLen]...)
	return out, nil
}

// Decrypt opens a blob produced by Encrypt. Any failure surfaces as
// ErrIntegrity.
func Decrypt(blob, key []byte) ([]byte, error) {
	if len(blob) < minSize {
		return nil, ErrIntegrity
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	iv := blob[:ivSize]
	tag := blob[ivSize:minSize]
	ct := blob[minSize:]

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	pt, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return pt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLength {
		return nil, errors.New("crypto: key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, ivSize)
}
