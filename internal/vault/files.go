package vault

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	kerrors "github.com/PolarWolf314/locker/internal/errors"
	"github.com/PolarWolf314/locker/internal/secrets"
	"github.com/PolarWolf314/locker/internal/store"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// AddFile encrypts r into the vault under name. The ciphertext is written to a
// temporary file, synced and renamed before the record is stored, so a failed
// add leaves neither a record nor a file behind.
func (v *Vault) AddFile(ctx context.Context, name string, r io.Reader) (*store.FileRecord, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if err := v.writable(); err != nil {
		return nil, err
	}
	if v.session == nil {
		return nil, kerrors.ErrVaultLocked
	}

	record, err := v.store.LoadVaultRecord(ctx)
	if err != nil {
		return nil, err
	}
	streamID, err := v.store.NextStreamID(ctx)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	file := &store.FileRecord{
		ID:         id,
		Name:       name,
		StoredName: id + EncryptedFileSuffix,
		StreamID:   streamID,
		Generation: record.Generation,
	}

	finalPath := v.storedPath(file.StoredName)
	size, err := v.writeEncrypted(finalPath+tempSuffix, finalPath, func(w io.Writer) (int64, error) {
		var n int64
		err := v.session.Use(func(key []byte) error {
			stream, err := secrets.NewStream(key, record.ChunkSize)
			if err != nil {
				return err
			}
			n, err = stream.Encrypt(w, r, streamID)
			return err
		})
		return n, err
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	file.Size = size
	file.CreatedAt = now
	file.UpdatedAt = now

	if err := v.store.PutFile(ctx, file); err != nil {
		os.Remove(finalPath)
		return nil, err
	}

	v.log.Debugf("Added %s as %s (%d bytes, stream %d)", name, file.StoredName, size, streamID)
	return file, nil
}

// writeEncrypted runs write against tmpPath, syncs it and renames it to
// finalPath. tmpPath is removed on any failure.
func (v *Vault) writeEncrypted(tmpPath, finalPath string, write func(w io.Writer) (int64, error)) (int64, error) {
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create %s: %v", kerrors.ErrResource, tmpPath, err)
	}

	fail := func(err error) (int64, error) {
		f.Close()
		os.Remove(tmpPath)
		return 0, err
	}

	bw := bufio.NewWriterSize(f, secrets.RecordSize(secrets.DefaultChunkSize))
	n, err := write(bw)
	if err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(fmt.Errorf("%w: failed to write %s: %v", kerrors.ErrResource, tmpPath, err))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("%w: failed to sync %s: %v", kerrors.ErrResource, tmpPath, err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: failed to close %s: %v", kerrors.ErrResource, tmpPath, err)
	}

	if finalPath == "" {
		return n, nil
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: failed to rename %s: %v", kerrors.ErrResource, tmpPath, err)
	}
	if err := syncDir(v.opts.StorageDir); err != nil {
		return 0, err
	}
	return n, nil
}

// ExtractFile decrypts the file with the given ID into w. On an integrity
// failure w has received only the chunks that verified.
func (v *Vault) ExtractFile(ctx context.Context, id string, w io.Writer) (*store.FileRecord, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.session == nil {
		return nil, kerrors.ErrVaultLocked
	}

	file, err := v.store.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}
	record, err := v.store.LoadVaultRecord(ctx)
	if err != nil {
		return nil, err
	}

	if err := v.decryptFile(record, file, w); err != nil {
		return nil, err
	}
	return file, nil
}

// decryptFile streams one stored file through the session key into w and
// checks that the plaintext length matches the record.
func (v *Vault) decryptFile(record *store.VaultRecord, file *store.FileRecord, w io.Writer) error {
	src, err := os.Open(v.storedPath(file.StoredName))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: ciphertext for %q is missing", kerrors.ErrIntegrity, file.Name)
		}
		return fmt.Errorf("%w: failed to open %q: %v", kerrors.ErrResource, file.Name, err)
	}
	defer src.Close()

	var n int64
	err = v.session.Use(func(key []byte) error {
		stream, err := secrets.NewStream(key, record.ChunkSize)
		if err != nil {
			return err
		}
		n, err = stream.Decrypt(w, bufio.NewReaderSize(src, secrets.RecordSize(record.ChunkSize)), file.StreamID)
		return err
	})
	if err != nil {
		return fmt.Errorf("%q: %w", file.Name, err)
	}

	// An empty ciphertext decrypts cleanly to nothing, so the length check is
	// what catches truncation to zero records.
	if n != file.Size {
		return fmt.Errorf("%w: %q decrypted to %d bytes, expected %d", kerrors.ErrIntegrity, file.Name, n, file.Size)
	}
	return nil
}

// RemoveFile deletes the record and then the ciphertext.
func (v *Vault) RemoveFile(ctx context.Context, id string) (*store.FileRecord, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if err := v.writable(); err != nil {
		return nil, err
	}

	file, err := v.store.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := v.store.DeleteFile(ctx, id); err != nil {
		return nil, err
	}

	if err := os.Remove(v.storedPath(file.StoredName)); err != nil && !os.IsNotExist(err) {
		// The record is already gone; the next open sweeps the orphan.
		v.log.Warnf("Failed to remove ciphertext %s: %v", file.StoredName, err)
	}
	return file, nil
}

// ListFiles returns every file in the vault, oldest first. It does not need
// the vault to be unlocked.
func (v *Vault) ListFiles(ctx context.Context) ([]store.FileRecord, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.store.ListFiles(ctx)
}

// VerifyResult is the outcome of checking one file.
type VerifyResult struct {
	File store.FileRecord
	Err  error
}

// VerifyFiles decrypts every file to io.Discard, several at a time, and
// reports which ones failed. The returned error is only for failures that
// stopped verification as a whole.
func (v *Vault) VerifyFiles(ctx context.Context) ([]VerifyResult, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.session == nil {
		return nil, kerrors.ErrVaultLocked
	}

	record, err := v.store.LoadVaultRecord(ctx)
	if err != nil {
		return nil, err
	}
	files, err := v.store.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]VerifyResult, len(files))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.opts.Parallelism)
	for i := range files {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := v.decryptFile(record, &files[i], io.Discard)
			if err != nil && !errors.Is(err, kerrors.ErrIntegrity) && !errors.Is(err, kerrors.ErrResource) {
				return err
			}

			mu.Lock()
			results[i] = VerifyResult{File: files[i], Err: err}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// Reconcile re-checks files whose key generation disagrees with the vault
// record. A file that decrypts under the current master key is brought up to
// the current generation. Files that do not are returned, and the vault stays
// read-only while any remain.
func (v *Vault) Reconcile(ctx context.Context) ([]store.FileRecord, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.session == nil {
		return nil, kerrors.ErrVaultLocked
	}

	record, err := v.store.LoadVaultRecord(ctx)
	if err != nil {
		return nil, err
	}
	files, err := v.store.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	var unresolved []store.FileRecord
	for i := range files {
		file := &files[i]
		if file.Generation == record.Generation {
			continue
		}

		if err := v.decryptFile(record, file, io.Discard); err != nil {
			v.log.Warnf("%q does not decrypt under the current key: %v", file.Name, err)
			unresolved = append(unresolved, *file)
			continue
		}

		file.Generation = record.Generation
		file.UpdatedAt = time.Now().UTC()
		if err := v.store.PutFile(ctx, file); err != nil {
			return nil, err
		}
		v.log.Infof("Reconciled %q to generation %d", file.Name, record.Generation)
	}

	if len(unresolved) == 0 {
		v.broken = nil
	}
	return unresolved, nil
}
