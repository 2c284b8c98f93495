package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	kerrors "github.com/PolarWolf314/locker/internal/errors"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the length of every KDF salt.
	SaltSize = 16

	// DefaultIterations is the PBKDF2 work factor for new vaults.
	DefaultIterations = 600_000

	// VerifierSize is the length of a password verifier.
	VerifierSize = sha256.Size
)

// CreateSalt generates a new random KDF salt.
func CreateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey runs PBKDF2-HMAC-SHA256 over secret and salt. It is deliberately
// slow; callers should not hold locks across it.
func DeriveKey(secret string, salt []byte, iterations int) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", kerrors.ErrInvalidSalt, SaltSize, len(salt))
	}
	if iterations < 1 {
		return nil, fmt.Errorf("iteration count must be positive, got %d", iterations)
	}

	pass := []byte(secret)
	defer Zero(pass)

	return pbkdf2.Key(pass, salt, iterations, KeySize, sha256.New), nil
}

// PasswordVerifier returns the one-way check value stored for a password-derived key.
func PasswordVerifier(derived []byte) []byte {
	sum := sha256.Sum256(derived)
	return sum[:]
}

// CheckVerifier reports whether derived matches a stored verifier.
func CheckVerifier(derived, verifier []byte) bool {
	return subtle.ConstantTimeCompare(PasswordVerifier(derived), verifier) == 1
}

// WrapWithSecret derives a key from secret and salt and wraps masterKey under it.
// It returns the envelope and the derived key; the caller owns (and should zero)
// the derived key.
func WrapWithSecret(masterKey []byte, secret string, salt []byte, iterations int) (envelope, derived []byte, err error) {
	derived, err = DeriveKey(secret, salt, iterations)
	if err != nil {
		return nil, nil, err
	}
	envelope, err = Wrap(masterKey, derived)
	if err != nil {
		Zero(derived)
		return nil, nil, err
	}
	return envelope, derived, nil
}

// UnwrapWithSecret derives a key from secret and salt and opens envelope with it.
func UnwrapWithSecret(envelope []byte, secret string, salt []byte, iterations int) ([]byte, error) {
	derived, err := DeriveKey(secret, salt, iterations)
	if err != nil {
		return nil, err
	}
	defer Zero(derived)

	return Unwrap(envelope, derived)
}
