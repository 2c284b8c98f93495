package secrets

import (
	"fmt"
	"sync"

	kerrors "github.com/PolarWolf314/locker/internal/errors"

	"github.com/awnumar/memguard"
)

// SessionKey holds an unlocked master key in an encrypted memguard enclave.
// The key is decrypted into guarded memory only for the duration of Use.
type SessionKey struct {
	mu      sync.RWMutex
	enclave *memguard.Enclave
}

// NewSessionKey seals key into an enclave. The key slice is wiped.
func NewSessionKey(key []byte) (*SessionKey, error) {
	if len(key) != KeySize {
		Zero(key)
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", kerrors.ErrInvalidKeyLength, KeySize, len(key))
	}
	return &SessionKey{enclave: memguard.NewEnclave(key)}, nil
}

// Use opens the enclave and calls fn with the plaintext key. The key must not
// be retained after fn returns.
func (s *SessionKey) Use(fn func(key []byte) error) error {
	if s == nil {
		return kerrors.ErrVaultLocked
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.enclave == nil {
		return kerrors.ErrVaultLocked
	}

	buf, err := s.enclave.Open()
	if err != nil {
		return fmt.Errorf("failed to open session key: %w", err)
	}
	defer buf.Destroy()

	return fn(buf.Bytes())
}

// Equal reports whether the session key equals other, in constant time.
func (s *SessionKey) Equal(other []byte) bool {
	if s == nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.enclave == nil {
		return false
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return false
	}
	defer buf.Destroy()

	return buf.EqualTo(other)
}

// Destroy drops the enclave. Subsequent calls to Use fail with ErrVaultLocked.
func (s *SessionKey) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.enclave = nil
	s.mu.Unlock()
}
