package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	kerrors "github.com/PolarWolf314/locker/internal/errors"

	"github.com/awnumar/memguard"
)

const (
	// KeySize is the length of master keys and derived keys (AES-256).
	KeySize = 32

	// NonceSize is the AES-GCM nonce length.
	NonceSize = 12

	// TagSize is the AES-GCM authentication tag length.
	TagSize = 16

	// Overhead is the number of bytes a sealed record adds to its plaintext.
	Overhead = NonceSize + TagSize
)

// CreateMasterKey generates a new random master key.
func CreateMasterKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	return key, nil
}

// Wrap seals payload under key with AES-256-GCM and a fresh random nonce.
// The result is nonce || ciphertext || tag.
func Wrap(payload, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	envelope := make([]byte, NonceSize, NonceSize+len(payload)+TagSize)
	if _, err := io.ReadFull(rand.Reader, envelope); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aead.Seal(envelope, envelope[:NonceSize], payload, nil), nil
}

// Unwrap opens an envelope produced by Wrap. Any malformed or unauthenticated
// input yields ErrAuthentication and no payload.
func Unwrap(envelope, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(envelope) < Overhead {
		return nil, kerrors.ErrAuthentication
	}

	payload, err := aead.Open(nil, envelope[:NonceSize], envelope[NonceSize:], nil)
	if err != nil {
		return nil, kerrors.ErrAuthentication
	}
	return payload, nil
}

// Zero overwrites key material in place.
func Zero(b []byte) {
	memguard.WipeBytes(b)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", kerrors.ErrInvalidKeyLength, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
