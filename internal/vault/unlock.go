package vault

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	kerrors "github.com/PolarWolf314/locker/internal/errors"
	"github.com/PolarWolf314/locker/internal/secrets"
	"github.com/PolarWolf314/locker/internal/store"
)

// Setup creates a new vault protected by password and returns the recovery
// token. The token is shown once; only its wrapped master key is stored.
// The vault is left unlocked.
func (v *Vault) Setup(ctx context.Context, password string) (string, error) {
	if err := v.checkPasswordPolicy(password); err != nil {
		return "", err
	}
	if initialized, err := v.IsInitialized(ctx); err != nil {
		return "", err
	} else if initialized {
		return "", kerrors.ErrVaultAlreadyInitialized
	}

	masterKey, err := secrets.CreateMasterKey()
	if err != nil {
		return "", err
	}
	defer secrets.Zero(masterKey)

	token, err := secrets.CreateRecoveryToken()
	if err != nil {
		return "", err
	}

	v.log.Debugf("Deriving keys with %d iterations", v.opts.KDFIterations)
	record, err := newVaultRecord(masterKey, password, token, v.opts.KDFIterations, v.opts.ChunkSize)
	if err != nil {
		return "", err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// Fails with ErrVaultAlreadyInitialized if another setup won the race.
	if err := v.store.CreateVaultRecord(ctx, record); err != nil {
		return "", err
	}

	if err := v.setSession(masterKey); err != nil {
		return "", err
	}

	v.log.Infof("Vault initialized")
	return token, nil
}

// newVaultRecord wraps masterKey under both password and token.
func newVaultRecord(masterKey []byte, password, token string, iterations, chunkSize int) (*store.VaultRecord, error) {
	passwordSalt, err := secrets.CreateSalt()
	if err != nil {
		return nil, err
	}
	tokenSalt, err := secrets.CreateSalt()
	if err != nil {
		return nil, err
	}

	passwordEnvelope, derived, err := secrets.WrapWithSecret(masterKey, password, passwordSalt, iterations)
	if err != nil {
		return nil, err
	}
	verifier := secrets.PasswordVerifier(derived)
	secrets.Zero(derived)

	tokenEnvelope, tokenDerived, err := secrets.WrapWithSecret(masterKey, token, tokenSalt, iterations)
	if err != nil {
		return nil, err
	}
	secrets.Zero(tokenDerived)

	now := time.Now().UTC()
	return &store.VaultRecord{
		Version:          store.CurrentVersion,
		Generation:       1,
		KDFIterations:    iterations,
		ChunkSize:        chunkSize,
		PasswordSalt:     passwordSalt,
		PasswordEnvelope: passwordEnvelope,
		PasswordVerifier: verifier,
		TokenSalt:        tokenSalt,
		TokenEnvelope:    tokenEnvelope,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// UnlockWithPassword opens the password envelope and holds the master key for
// the session. A wrong password yields ErrAuthentication.
func (v *Vault) UnlockWithPassword(ctx context.Context, password string) error {
	record, err := v.store.LoadVaultRecord(ctx)
	if err != nil {
		return err
	}

	// Key derivation is slow; do it before taking the lock.
	masterKey, err := unlockPassword(record, password)
	if err != nil {
		return err
	}
	defer secrets.Zero(masterKey)

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkUnchanged(ctx, record); err != nil {
		return err
	}
	return v.setSession(masterKey)
}

// unlockPassword returns the master key from the password envelope.
func unlockPassword(record *store.VaultRecord, password string) ([]byte, error) {
	derived, err := secrets.DeriveKey(password, record.PasswordSalt, record.KDFIterations)
	if err != nil {
		return nil, err
	}
	defer secrets.Zero(derived)

	if len(record.PasswordVerifier) > 0 && !secrets.CheckVerifier(derived, record.PasswordVerifier) {
		return nil, kerrors.ErrAuthentication
	}
	return secrets.Unwrap(record.PasswordEnvelope, derived)
}

// unlockToken returns the master key from the token envelope.
func unlockToken(record *store.VaultRecord, token string) ([]byte, error) {
	return secrets.UnwrapWithSecret(record.TokenEnvelope, token, record.TokenSalt, record.KDFIterations)
}

// checkUnchanged fails if the vault record was replaced after it was read.
// Must be called with v.mu held.
func (v *Vault) checkUnchanged(ctx context.Context, record *store.VaultRecord) error {
	current, err := v.store.LoadVaultRecord(ctx)
	if err != nil {
		return err
	}
	if current.Generation != record.Generation || !current.UpdatedAt.Equal(record.UpdatedAt) {
		return fmt.Errorf("%w: vault record changed during unlock, try again", kerrors.ErrAuthentication)
	}
	return nil
}

// Recover unlocks the vault with the recovery token and replaces the password
// in the same step. The token envelope and salt are left untouched, so the
// token stays valid.
func (v *Vault) Recover(ctx context.Context, token, newPassword string) error {
	token, err := secrets.NormalizeRecoveryToken(token)
	if err != nil {
		return err
	}
	if err := v.checkPasswordPolicy(newPassword); err != nil {
		return err
	}

	record, err := v.store.LoadVaultRecord(ctx)
	if err != nil {
		return err
	}

	masterKey, err := unlockToken(record, token)
	if err != nil {
		return err
	}
	defer secrets.Zero(masterKey)

	if err := v.resetPassword(ctx, record, masterKey, newPassword); err != nil {
		return err
	}

	v.log.Infof("Password reset with recovery token")
	return nil
}

// ChangePassword re-wraps the master key under newPassword after checking
// oldPassword. Token fields are unchanged.
func (v *Vault) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if err := v.checkPasswordPolicy(newPassword); err != nil {
		return err
	}

	record, err := v.store.LoadVaultRecord(ctx)
	if err != nil {
		return err
	}

	masterKey, err := unlockPassword(record, oldPassword)
	if err != nil {
		return err
	}
	defer secrets.Zero(masterKey)

	if err := v.resetPassword(ctx, record, masterKey, newPassword); err != nil {
		return err
	}

	v.log.Infof("Password changed")
	return nil
}

// resetPassword wraps masterKey under a fresh password salt, then stores the
// result and holds masterKey for the session. The slow derivation runs
// unlocked; the save is refused if record was replaced in the meantime.
func (v *Vault) resetPassword(ctx context.Context, record *store.VaultRecord, masterKey []byte, password string) error {
	salt, err := secrets.CreateSalt()
	if err != nil {
		return err
	}

	envelope, derived, err := secrets.WrapWithSecret(masterKey, password, salt, record.KDFIterations)
	if err != nil {
		return err
	}
	verifier := secrets.PasswordVerifier(derived)
	secrets.Zero(derived)

	updated := record.Clone()
	updated.PasswordSalt = salt
	updated.PasswordEnvelope = envelope
	updated.PasswordVerifier = verifier
	updated.UpdatedAt = time.Now().UTC()

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkUnchanged(ctx, record); err != nil {
		return err
	}
	if err := v.store.SaveVaultRecord(ctx, updated); err != nil {
		return err
	}
	return v.setSession(masterKey)
}

// Details describes the vault's key material for display. Nothing in it is secret.
type Details struct {
	Version       int
	Generation    int
	KDFIterations int
	ChunkSize     int

	PasswordSalt     string
	PasswordEnvelope string
	TokenSalt        string
	TokenEnvelope    string

	Files     int
	TotalSize int64

	Unlocked bool
	Broken   error

	CreatedAt time.Time
	UpdatedAt time.Time
}

// envelopePreviewBytes is how much of each envelope Info shows.
const envelopePreviewBytes = 16

// Info returns the vault's key record metadata.
func (v *Vault) Info(ctx context.Context) (*Details, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	record, err := v.store.LoadVaultRecord(ctx)
	if err != nil {
		return nil, err
	}
	files, err := v.store.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	details := &Details{
		Version:          record.Version,
		Generation:       record.Generation,
		KDFIterations:    record.KDFIterations,
		ChunkSize:        record.ChunkSize,
		PasswordSalt:     hex.EncodeToString(record.PasswordSalt),
		PasswordEnvelope: preview(record.PasswordEnvelope),
		TokenSalt:        hex.EncodeToString(record.TokenSalt),
		TokenEnvelope:    preview(record.TokenEnvelope),
		Files:            len(files),
		Unlocked:         v.session != nil,
		Broken:           v.broken,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}
	for _, f := range files {
		details.TotalSize += f.Size
	}
	return details, nil
}

func preview(b []byte) string {
	if len(b) > envelopePreviewBytes {
		return hex.EncodeToString(b[:envelopePreviewBytes]) + "..."
	}
	return hex.EncodeToString(b)
}
