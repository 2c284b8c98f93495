package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	kerrors "github.com/PolarWolf314/locker/internal/errors"

	bolt "go.etcd.io/bbolt"
)

// Buckets for storing data in the database.
var (
	metaBucket    = []byte("meta")
	filesBucket   = []byte("files")
	streamsBucket = []byte("streams")

	vaultRecordKey = []byte("vault_record")
	journalKey     = []byte("rotation_journal")
)

// DefaultTimeout is how long Open waits for another process to release the database.
const DefaultTimeout = 2 * time.Second

// Bolt persists vault metadata in a single bbolt database file. Every write is
// one transaction, so readers observe either the old or the new state.
type Bolt struct {
	db   *bolt.DB
	path string
}

// Open opens (creating if necessary) the database at path. The file is locked
// exclusively; if another process holds it, Open fails with ErrVaultBusy after
// timeout.
func Open(path string, timeout time.Duration) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("%w: failed to create database directory: %v", kerrors.ErrResource, err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: timeout})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, kerrors.ErrVaultBusy
		}
		return nil, fmt.Errorf("%w: failed to open database: %v", kerrors.ErrResource, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{metaBucket, filesBucket, streamsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", kerrors.ErrResource, err)
	}

	return &Bolt{db: db, path: path}, nil
}

// Path returns the database file path.
func (b *Bolt) Path() string {
	return b.path
}

// Close releases the database and its file lock.
func (b *Bolt) Close() error {
	return b.db.Close()
}

// LoadVaultRecord returns the vault record, or ErrVaultNotInitialized.
func (b *Bolt) LoadVaultRecord(ctx context.Context) (*VaultRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var record *VaultRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(metaBucket).Get(vaultRecordKey)
		if v == nil {
			return kerrors.ErrVaultNotInitialized
		}
		record = &VaultRecord{}
		return decode(v, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// SaveVaultRecord replaces the vault record.
func (b *Bolt) SaveVaultRecord(ctx context.Context, record *VaultRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(metaBucket), vaultRecordKey, record)
	})
}

// CreateVaultRecord stores the first vault record. It fails with
// ErrVaultAlreadyInitialized if one exists.
func (b *Bolt) CreateVaultRecord(ctx context.Context, record *VaultRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(metaBucket)
		if bucket.Get(vaultRecordKey) != nil {
			return kerrors.ErrVaultAlreadyInitialized
		}
		return put(bucket, vaultRecordKey, record)
	})
}

// PutFile inserts or replaces a file record.
func (b *Bolt) PutFile(ctx context.Context, file *FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(filesBucket), []byte(file.ID), file)
	})
}

// GetFile returns the file record with the given ID, or ErrFileNotFound.
func (b *Bolt) GetFile(ctx context.Context, id string) (*FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var file *FileRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(filesBucket).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, id)
		}
		file = &FileRecord{}
		return decode(v, file)
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// ListFiles returns every file record ordered by creation time.
func (b *Bolt) ListFiles(ctx context.Context) ([]FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var files []FileRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(filesBucket).ForEach(func(_, v []byte) error {
			var file FileRecord
			if err := decode(v, &file); err != nil {
				return err
			}
			files = append(files, file)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].Name < files[j].Name
		}
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})
	return files, nil
}

// DeleteFile removes a file record, or returns ErrFileNotFound.
func (b *Bolt) DeleteFile(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(filesBucket)
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, id)
		}
		return bucket.Delete([]byte(id))
	})
}

// NextStreamID allocates a stream ID that has never been returned before by
// this database.
func (b *Bolt) NextStreamID(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var id uint64
	err := b.update(func(tx *bolt.Tx) error {
		var err error
		id, err = tx.Bucket(streamsBucket).NextSequence()
		return err
	})
	return id, err
}

// LoadJournal returns the pending rotation journal, or nil if there is none.
func (b *Bolt) LoadJournal(ctx context.Context) (*RotationJournal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var journal *RotationJournal
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(metaBucket).Get(journalKey)
		if v == nil {
			return nil
		}
		journal = &RotationJournal{}
		return decode(v, journal)
	})
	if err != nil {
		return nil, err
	}
	return journal, nil
}

// SaveJournal writes the rotation journal.
func (b *Bolt) SaveJournal(ctx context.Context, journal *RotationJournal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(metaBucket), journalKey, journal)
	})
}

// DeleteJournal removes the rotation journal if present.
func (b *Bolt) DeleteJournal(ctx context.Context) error {
	return b.update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Delete(journalKey)
	})
}

// CommitRotation stores the post-rotation vault record and file records and
// deletes the journal, all in one transaction.
func (b *Bolt) CommitRotation(ctx context.Context, record *VaultRecord, files []FileRecord) error {
	return b.update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if err := put(meta, vaultRecordKey, record); err != nil {
			return err
		}

		bucket := tx.Bucket(filesBucket)
		for i := range files {
			if err := put(bucket, []byte(files[i].ID), &files[i]); err != nil {
				return err
			}
		}

		return meta.Delete(journalKey)
	})
}

func (b *Bolt) update(fn func(tx *bolt.Tx) error) error {
	err := b.db.Update(fn)
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %v", kerrors.ErrResource, err)
}

func isDomainError(err error) bool {
	return errors.Is(err, kerrors.ErrVaultAlreadyInitialized) ||
		errors.Is(err, kerrors.ErrFileNotFound) ||
		errors.Is(err, kerrors.ErrVaultNotInitialized)
}

func put(bucket *bolt.Bucket, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return bucket.Put(key, data)
}

func decode(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: corrupted record: %v", kerrors.ErrResource, err)
	}
	return nil
}
