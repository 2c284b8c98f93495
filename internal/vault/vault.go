package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/PolarWolf314/locker/internal/configs"
	kerrors "github.com/PolarWolf314/locker/internal/errors"
	logger "github.com/PolarWolf314/locker/internal/logging"
	"github.com/PolarWolf314/locker/internal/secrets"
	"github.com/PolarWolf314/locker/internal/store"
)

const (
	// EncryptedFileSuffix is appended to the file ID to form the on-disk name.
	EncryptedFileSuffix = ".secure"

	tempSuffix     = ".tmp"
	rotatingSuffix = ".rotating"
)

// Store is the persistence the vault needs. store.Bolt implements it.
type Store interface {
	LoadVaultRecord(ctx context.Context) (*store.VaultRecord, error)
	CreateVaultRecord(ctx context.Context, record *store.VaultRecord) error
	SaveVaultRecord(ctx context.Context, record *store.VaultRecord) error

	PutFile(ctx context.Context, file *store.FileRecord) error
	GetFile(ctx context.Context, id string) (*store.FileRecord, error)
	ListFiles(ctx context.Context) ([]store.FileRecord, error)
	DeleteFile(ctx context.Context, id string) error
	NextStreamID(ctx context.Context) (uint64, error)

	LoadJournal(ctx context.Context) (*store.RotationJournal, error)
	SaveJournal(ctx context.Context, journal *store.RotationJournal) error
	DeleteJournal(ctx context.Context) error
	CommitRotation(ctx context.Context, record *store.VaultRecord, files []store.FileRecord) error

	Close() error
}

// Options are the tunables of a Vault.
type Options struct {
	StorageDir        string
	KDFIterations     int
	ChunkSize         int
	MinPasswordLength int
	RotationRetries   int
	Parallelism       int
}

// OptionsFromConfig builds Options from a loaded config and its resolved paths.
func OptionsFromConfig(config *configs.Config, settings *configs.Settings) Options {
	return Options{
		StorageDir:        settings.StorageDir,
		KDFIterations:     config.Vault.KDFIterations,
		ChunkSize:         config.Vault.ChunkSize,
		MinPasswordLength: config.Vault.MinPasswordLength,
		RotationRetries:   config.Vault.RotationRetries,
		Parallelism:       config.Vault.Parallelism,
	}
}

// Vault is the key custody and file encryption service for one vault.
//
// Setup, Recover, ChangePassword, Rotate and Reconcile hold the write lock.
// File operations hold the read lock, so none of them overlap a rotation.
type Vault struct {
	mu      sync.RWMutex
	store   Store
	opts    Options
	log     logger.Logger
	session *secrets.SessionKey

	// broken is set when files and the vault record disagree on the key
	// generation. Writes are refused while it is non-nil.
	broken error

	stage stageFunc
}

// New opens the vault backed by st. An interrupted rotation is rolled back or
// completed before New returns.
func New(ctx context.Context, st Store, opts Options, log logger.Logger) (*Vault, error) {
	if opts.StorageDir == "" {
		return nil, fmt.Errorf("%w: storage directory is required", kerrors.ErrInvalidConfig)
	}
	if opts.KDFIterations <= 0 {
		opts.KDFIterations = secrets.DefaultIterations
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = secrets.DefaultChunkSize
	}
	if err := secrets.CheckChunkSize(opts.ChunkSize); err != nil {
		return nil, err
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}

	if err := os.MkdirAll(opts.StorageDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: failed to create storage directory: %v", kerrors.ErrResource, err)
	}

	v := &Vault{store: st, opts: opts, log: log}
	v.stage = v.stageFile

	if err := v.recoverRotation(ctx); err != nil {
		return nil, err
	}
	if err := v.sweepOrphans(ctx); err != nil {
		return nil, err
	}
	if err := v.checkGenerations(ctx); err != nil {
		return nil, err
	}

	return v, nil
}

// Close locks the vault and closes the store.
func (v *Vault) Close() error {
	v.Lock()
	return v.store.Close()
}

// Lock discards the session master key.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.session.Destroy()
	v.session = nil
}

// IsUnlocked reports whether a master key is held for this session.
func (v *Vault) IsUnlocked() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.session != nil
}

// IsInitialized reports whether the vault has been set up.
func (v *Vault) IsInitialized(ctx context.Context) (bool, error) {
	_, err := v.store.LoadVaultRecord(ctx)
	if errors.Is(err, kerrors.ErrVaultNotInitialized) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Broken returns the invariant violation that made the vault read-only, if any.
func (v *Vault) Broken() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.broken
}

func (v *Vault) writable() error {
	return v.broken
}

func (v *Vault) setSession(masterKey []byte) error {
	session, err := secrets.NewSessionKey(masterKey)
	if err != nil {
		return err
	}
	v.session.Destroy()
	v.session = session
	return nil
}

func (v *Vault) storedPath(name string) string {
	return filepath.Join(v.opts.StorageDir, name)
}

func (v *Vault) checkPasswordPolicy(password string) error {
	if len([]rune(password)) < v.opts.MinPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", kerrors.ErrPasswordTooShort, v.opts.MinPasswordLength)
	}
	return nil
}

// checkGenerations rejects a vault record whose chunk size the file format
// cannot hold, and marks the vault read-only if any file is not on the
// record's key generation.
func (v *Vault) checkGenerations(ctx context.Context) error {
	record, err := v.store.LoadVaultRecord(ctx)
	if errors.Is(err, kerrors.ErrVaultNotInitialized) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := secrets.CheckChunkSize(record.ChunkSize); err != nil {
		return fmt.Errorf("%w: vault record is unusable: %v", kerrors.ErrIntegrity, err)
	}

	files, err := v.store.ListFiles(ctx)
	if err != nil {
		return err
	}

	for _, file := range files {
		if file.Generation != record.Generation {
			v.broken = fmt.Errorf("%w: %q is on key generation %d, vault is on %d",
				kerrors.ErrInvariantViolation, file.Name, file.Generation, record.Generation)
			v.log.WarnfAlways("%v", v.broken)
			return nil
		}
	}
	return nil
}

// sweepOrphans removes half-written files left by a process that died while
// adding a file, staged copies with no rotation journal behind them, and
// encrypted files that never got a record.
func (v *Vault) sweepOrphans(ctx context.Context) error {
	entries, err := os.ReadDir(v.opts.StorageDir)
	if err != nil {
		return fmt.Errorf("%w: failed to read storage directory: %v", kerrors.ErrResource, err)
	}

	files, err := v.store.ListFiles(ctx)
	if err != nil {
		return err
	}
	recorded := make(map[string]bool, len(files))
	for _, file := range files {
		recorded[file.StoredName] = true
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isOrphan(name, recorded) {
			continue
		}
		v.log.Debugf("Removing orphaned file %s", name)
		if err := os.Remove(v.storedPath(name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: failed to remove %s: %v", kerrors.ErrResource, name, err)
		}
	}
	return nil
}

func isOrphan(name string, recorded map[string]bool) bool {
	switch {
	case strings.HasSuffix(name, tempSuffix), strings.HasSuffix(name, rotatingSuffix):
		return true
	case strings.HasSuffix(name, EncryptedFileSuffix):
		return !recorded[name]
	}
	return false
}
