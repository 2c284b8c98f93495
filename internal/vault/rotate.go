package vault

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	kerrors "github.com/PolarWolf314/locker/internal/errors"
	"github.com/PolarWolf314/locker/internal/secrets"
	"github.com/PolarWolf314/locker/internal/store"

	"github.com/google/uuid"
)

// RotateOptions carries the credentials a rotation needs. Both unlock paths
// are re-wrapped, so the password and the current recovery token are required
// unless NewToken asks for a fresh token instead.
type RotateOptions struct {
	Password string
	Token    string
	NewToken bool
}

// RotateResult summarizes a completed rotation.
type RotateResult struct {
	Files      int
	Generation int

	// Token is set only when a new recovery token was generated.
	Token string
}

// Rotate replaces the master key. Every file is re-encrypted under the new key
// into a staged copy first; only when all copies are complete are they swapped
// in and the new vault record stored. If anything fails before that point the
// vault is left exactly as it was.
func (v *Vault) Rotate(ctx context.Context, opts RotateOptions) (*RotateResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.writable(); err != nil {
		return nil, err
	}
	if v.session == nil {
		return nil, kerrors.ErrVaultLocked
	}

	if journal, err := v.store.LoadJournal(ctx); err != nil {
		return nil, err
	} else if journal != nil {
		return nil, fmt.Errorf("%w: rotation %s is still pending, reopen the vault to resolve it", kerrors.ErrRotationAborted, journal.ID)
	}

	record, err := v.store.LoadVaultRecord(ctx)
	if err != nil {
		return nil, err
	}

	token, err := v.checkRotationCredentials(record, opts)
	if err != nil {
		return nil, err
	}

	newRecord, newSession, err := v.rewrap(record, opts.Password, token, opts.NewToken)
	if err != nil {
		return nil, err
	}

	files, err := v.store.ListFiles(ctx)
	if err != nil {
		newSession.Destroy()
		return nil, err
	}

	journal := &store.RotationJournal{
		ID:        uuid.New().String(),
		Phase:     store.PhaseStaging,
		StartedAt: time.Now().UTC(),
		NewRecord: newRecord,
		Files:     make([]store.JournalFile, 0, len(files)),
	}
	for _, file := range files {
		streamID, err := v.store.NextStreamID(ctx)
		if err != nil {
			newSession.Destroy()
			return nil, err
		}
		journal.Files = append(journal.Files, store.JournalFile{
			FileID:     file.ID,
			StagedName: file.StoredName + rotatingSuffix,
			StreamID:   streamID,
		})
	}

	if err := v.store.SaveJournal(ctx, journal); err != nil {
		newSession.Destroy()
		return nil, err
	}
	v.log.Debugf("Rotation %s staging %d files", journal.ID, len(files))

	if err := v.stageAll(ctx, record, newRecord, newSession, files, journal.Files); err != nil {
		newSession.Destroy()
		v.rollback(journal)
		return nil, err
	}

	journal.Phase = store.PhaseCommitting
	if err := v.store.SaveJournal(ctx, journal); err != nil {
		newSession.Destroy()
		v.rollback(journal)
		return nil, fmt.Errorf("%w: %w", kerrors.ErrRotationAborted, err)
	}

	// From here on the rotation can only move forward. If the commit fails it
	// is finished on the next open.
	if err := v.commit(context.WithoutCancel(ctx), journal); err != nil {
		newSession.Destroy()
		v.broken = fmt.Errorf("%w: rotation %s did not finish committing (%v); reopen the vault to complete it",
			kerrors.ErrInvariantViolation, journal.ID, err)
		return nil, v.broken
	}

	v.session.Destroy()
	v.session = newSession

	result := &RotateResult{Files: len(files), Generation: newRecord.Generation}
	if opts.NewToken {
		result.Token = token
	}
	v.log.Infof("Rotated master key to generation %d (%d files)", newRecord.Generation, len(files))
	return result, nil
}

// checkRotationCredentials confirms the password and, unless a new token was
// requested, the recovery token both open to the session key. It returns the
// token to wrap the new master key with.
func (v *Vault) checkRotationCredentials(record *store.VaultRecord, opts RotateOptions) (string, error) {
	masterKey, err := unlockPassword(record, opts.Password)
	if err != nil {
		return "", err
	}
	matches := v.session.Equal(masterKey)
	secrets.Zero(masterKey)
	if !matches {
		return "", kerrors.ErrAuthentication
	}

	if opts.NewToken {
		return secrets.CreateRecoveryToken()
	}

	token, err := secrets.NormalizeRecoveryToken(opts.Token)
	if err != nil {
		return "", err
	}
	masterKey, err = unlockToken(record, token)
	if err != nil {
		return "", err
	}
	matches = v.session.Equal(masterKey)
	secrets.Zero(masterKey)
	if !matches {
		return "", kerrors.ErrAuthentication
	}
	return token, nil
}

// rewrap builds the post-rotation vault record around a fresh master key. The
// password gets a new salt. The token keeps its salt unless it is new.
func (v *Vault) rewrap(record *store.VaultRecord, password, token string, newToken bool) (*store.VaultRecord, *secrets.SessionKey, error) {
	masterKey, err := secrets.CreateMasterKey()
	if err != nil {
		return nil, nil, err
	}
	defer secrets.Zero(masterKey)

	iterations := record.KDFIterations
	if v.opts.KDFIterations > iterations {
		iterations = v.opts.KDFIterations
	}

	passwordSalt, err := secrets.CreateSalt()
	if err != nil {
		return nil, nil, err
	}
	passwordEnvelope, derived, err := secrets.WrapWithSecret(masterKey, password, passwordSalt, iterations)
	if err != nil {
		return nil, nil, err
	}
	verifier := secrets.PasswordVerifier(derived)
	secrets.Zero(derived)

	tokenSalt := record.TokenSalt
	if newToken {
		if tokenSalt, err = secrets.CreateSalt(); err != nil {
			return nil, nil, err
		}
	}
	tokenEnvelope, tokenDerived, err := secrets.WrapWithSecret(masterKey, token, tokenSalt, iterations)
	if err != nil {
		return nil, nil, err
	}
	secrets.Zero(tokenDerived)

	newRecord := record.Clone()
	newRecord.Generation = record.Generation + 1
	newRecord.KDFIterations = iterations
	newRecord.ChunkSize = v.opts.ChunkSize
	newRecord.PasswordSalt = passwordSalt
	newRecord.PasswordEnvelope = passwordEnvelope
	newRecord.PasswordVerifier = verifier
	newRecord.TokenSalt = append([]byte(nil), tokenSalt...)
	newRecord.TokenEnvelope = tokenEnvelope
	newRecord.UpdatedAt = time.Now().UTC()

	session, err := secrets.NewSessionKey(masterKey)
	if err != nil {
		return nil, nil, err
	}
	return newRecord, session, nil
}

// stageAll re-encrypts every file into its staged copy.
func (v *Vault) stageAll(ctx context.Context, oldRecord, newRecord *store.VaultRecord, newSession *secrets.SessionKey, files []store.FileRecord, staged []store.JournalFile) error {
	return v.session.Use(func(oldKey []byte) error {
		return newSession.Use(func(newKey []byte) error {
			oldStream, err := secrets.NewStream(oldKey, oldRecord.ChunkSize)
			if err != nil {
				return err
			}
			newStream, err := secrets.NewStream(newKey, newRecord.ChunkSize)
			if err != nil {
				return err
			}

			for i := range files {
				if err := ctx.Err(); err != nil {
					return fmt.Errorf("%w: %w", kerrors.ErrRotationAborted, err)
				}
				if err := v.stageWithRetry(oldStream, newStream, &files[i], staged[i]); err != nil {
					return fmt.Errorf("%w: %q: %w", kerrors.ErrRotationAborted, files[i].Name, err)
				}
			}
			return nil
		})
	})
}

// stageFunc writes the re-encrypted copy of one file.
type stageFunc func(oldStream, newStream *secrets.Stream, file *store.FileRecord, staged store.JournalFile) error

// stageWithRetry retries I/O failures. Integrity failures mean the file is
// corrupt and are returned immediately.
func (v *Vault) stageWithRetry(oldStream, newStream *secrets.Stream, file *store.FileRecord, staged store.JournalFile) error {
	var err error
	for attempt := 0; attempt <= v.opts.RotationRetries; attempt++ {
		if attempt > 0 {
			v.log.Warnf("Retrying %q (attempt %d): %v", file.Name, attempt+1, err)
			if rmErr := os.Remove(v.storedPath(staged.StagedName)); rmErr != nil && !os.IsNotExist(rmErr) {
				return fmt.Errorf("%w: failed to clear staged copy: %v", kerrors.ErrResource, rmErr)
			}
		}
		err = v.stage(oldStream, newStream, file, staged)
		if err == nil || !errors.Is(err, kerrors.ErrResource) || errors.Is(err, kerrors.ErrIntegrity) {
			return err
		}
	}
	return err
}

// stageFile pipes the old-key plaintext straight into the new-key encryption,
// so plaintext is never written to disk.
func (v *Vault) stageFile(oldStream, newStream *secrets.Stream, file *store.FileRecord, staged store.JournalFile) error {
	src, err := os.Open(v.storedPath(file.StoredName))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: ciphertext is missing", kerrors.ErrIntegrity)
		}
		return fmt.Errorf("%w: failed to open ciphertext: %v", kerrors.ErrResource, err)
	}
	defer src.Close()

	pr, pw := io.Pipe()
	var decrypted int64
	var decErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		decrypted, decErr = oldStream.Decrypt(pw, bufio.NewReaderSize(src, secrets.RecordSize(oldStream.ChunkSize())), file.StreamID)
		pw.CloseWithError(decErr)
	}()

	_, err = v.writeEncrypted(v.storedPath(staged.StagedName), "", func(w io.Writer) (int64, error) {
		n, err := newStream.Encrypt(w, pr, staged.StreamID)
		pr.CloseWithError(err)
		<-done
		if decErr != nil {
			return 0, decErr
		}
		if err != nil {
			return 0, err
		}
		if decrypted != file.Size {
			return 0, fmt.Errorf("%w: decrypted to %d bytes, expected %d", kerrors.ErrIntegrity, decrypted, file.Size)
		}
		return n, nil
	})

	// Unblocks the decrypting goroutine if the staged file could not be created.
	pr.Close()
	<-done
	return err
}

// commit swaps staged copies in and stores the new record. It is safe to run
// more than once for the same journal.
func (v *Vault) commit(ctx context.Context, journal *store.RotationJournal) error {
	updated := make([]store.FileRecord, 0, len(journal.Files))
	now := time.Now().UTC()

	for _, staged := range journal.Files {
		file, err := v.store.GetFile(ctx, staged.FileID)
		if errors.Is(err, kerrors.ErrFileNotFound) {
			os.Remove(v.storedPath(staged.StagedName))
			continue
		}
		if err != nil {
			return err
		}

		// A missing staged copy was already renamed by an earlier attempt.
		err = os.Rename(v.storedPath(staged.StagedName), v.storedPath(file.StoredName))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: failed to replace %q: %v", kerrors.ErrResource, file.Name, err)
		}

		file.StreamID = staged.StreamID
		file.Generation = journal.NewRecord.Generation
		file.UpdatedAt = now
		updated = append(updated, *file)
	}

	if err := syncDir(v.opts.StorageDir); err != nil {
		return err
	}
	return v.store.CommitRotation(ctx, journal.NewRecord, updated)
}

// rollback removes staged copies and the journal. Originals were never touched.
func (v *Vault) rollback(journal *store.RotationJournal) {
	for _, staged := range journal.Files {
		if err := os.Remove(v.storedPath(staged.StagedName)); err != nil && !os.IsNotExist(err) {
			v.log.Warnf("Failed to remove staged file %s: %v", staged.StagedName, err)
		}
	}
	if err := v.store.DeleteJournal(context.Background()); err != nil {
		v.log.Warnf("Failed to delete rotation journal %s: %v", journal.ID, err)
	}
}

// recoverRotation finishes or undoes a rotation interrupted by a crash.
// Neither direction needs key material.
func (v *Vault) recoverRotation(ctx context.Context) error {
	journal, err := v.store.LoadJournal(ctx)
	if err != nil || journal == nil {
		return err
	}

	switch journal.Phase {
	case store.PhaseCommitting:
		v.log.WarnfAlways("Completing interrupted key rotation %s", journal.ID)
		if err := v.commit(ctx, journal); err != nil {
			return fmt.Errorf("failed to complete interrupted rotation: %w", err)
		}
	default:
		v.log.WarnfAlways("Rolling back interrupted key rotation %s", journal.ID)
		v.rollback(journal)
	}
	return nil
}

// syncDir flushes directory entries so renames survive a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %v", kerrors.ErrResource, dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("%w: failed to sync %s: %v", kerrors.ErrResource, dir, err)
	}
	return nil
}
