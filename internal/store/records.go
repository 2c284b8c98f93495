package store

import (
	"time"
)

// CurrentVersion is the record layout written by this build.
const CurrentVersion = 1

// VaultRecord holds everything needed to unlock a vault: both wrapped copies
// of the master key and the salts they were derived with.
type VaultRecord struct {
	Version    int `json:"version"`
	Generation int `json:"generation"`

	KDFIterations int `json:"kdf_iterations"`
	ChunkSize     int `json:"chunk_size"`

	PasswordSalt     []byte `json:"password_salt"`
	PasswordEnvelope []byte `json:"password_envelope"`
	PasswordVerifier []byte `json:"password_verifier"`

	TokenSalt     []byte `json:"token_salt"`
	TokenEnvelope []byte `json:"token_envelope"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the record.
func (r *VaultRecord) Clone() *VaultRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.PasswordSalt = cloneBytes(r.PasswordSalt)
	c.PasswordEnvelope = cloneBytes(r.PasswordEnvelope)
	c.PasswordVerifier = cloneBytes(r.PasswordVerifier)
	c.TokenSalt = cloneBytes(r.TokenSalt)
	c.TokenEnvelope = cloneBytes(r.TokenEnvelope)
	return &c
}

// FileRecord describes one encrypted file in the vault storage directory.
type FileRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StoredName string    `json:"stored_name"`
	Size       int64     `json:"size"`
	StreamID   uint64    `json:"stream_id"`
	Generation int       `json:"generation"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// JournalPhase is the progress marker of an in-flight key rotation.
type JournalPhase string

const (
	// PhaseStaging means re-encrypted copies are being written. Recovery rolls back.
	PhaseStaging JournalPhase = "staging"

	// PhaseCommitting means every staged copy is complete. Recovery rolls forward.
	PhaseCommitting JournalPhase = "committing"
)

// JournalFile is one staged file of a rotation.
type JournalFile struct {
	FileID     string `json:"file_id"`
	StagedName string `json:"staged_name"`
	StreamID   uint64 `json:"stream_id"`
}

// RotationJournal is persisted for the duration of a key rotation so that an
// interrupted rotation can be rolled back or completed on the next open.
type RotationJournal struct {
	ID        string        `json:"id"`
	Phase     JournalPhase  `json:"phase"`
	StartedAt time.Time     `json:"started_at"`
	NewRecord *VaultRecord  `json:"new_record"`
	Files     []JournalFile `json:"files"`
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
