package errors

import "errors"

// Cryptographic failures. Callers branch on these with errors.Is.
var (
	// ErrAuthentication indicates an envelope did not open under the derived key:
	// the password or recovery token is wrong.
	ErrAuthentication = errors.New("authentication failed: wrong password or recovery token")

	// ErrIntegrity indicates a stored file failed its chunk authentication.
	// The file is corrupted or has been tampered with.
	ErrIntegrity = errors.New("integrity check failed: file is corrupted or tampered")

	// ErrInvalidKeyLength indicates a key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("invalid key length")

	// ErrInvalidSalt indicates a salt is not 16 bytes.
	ErrInvalidSalt = errors.New("invalid salt length")
)

// Resource and consistency failures.
var (
	// ErrResource indicates an I/O failure (disk full, permission denied, rename
	// failure). The affected operation was aborted without persisting partial state.
	ErrResource = errors.New("storage operation failed")

	// ErrInvariantViolation indicates the vault record and the stored files are
	// on different key generations. The vault refuses writes until reconciled.
	ErrInvariantViolation = errors.New("vault invariant violated: files and key record disagree")

	// ErrRotationAborted indicates a key rotation stopped before commit. The old
	// master key is still authoritative.
	ErrRotationAborted = errors.New("key rotation aborted")
)

// Vault state errors.
var (
	// ErrVaultNotInitialized indicates no vault record exists yet.
	ErrVaultNotInitialized = errors.New("vault has not been initialized")

	// ErrVaultAlreadyInitialized indicates setup was attempted on an existing vault.
	ErrVaultAlreadyInitialized = errors.New("vault has already been initialized")

	// ErrVaultLocked indicates an operation needed the master key but the vault is locked.
	ErrVaultLocked = errors.New("vault is locked")

	// ErrVaultBusy indicates another process holds the vault database.
	ErrVaultBusy = errors.New("vault is in use by another process")
)

// File errors.
var (
	// ErrFileNotFound indicates no file record matches the given reference.
	ErrFileNotFound = errors.New("file not found in vault")

	// ErrAmbiguousFile indicates a name matched more than one file record.
	ErrAmbiguousFile = errors.New("name matches more than one file")

	// ErrNoFilesFound indicates the vault or log has nothing to show.
	ErrNoFilesFound = errors.New("no matching files found")
)

// Input errors.
var (
	// ErrPasswordTooShort indicates the password is below the configured minimum length.
	ErrPasswordTooShort = errors.New("password is too short")

	// ErrPasswordMismatch indicates a password confirmation did not match.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrInvalidToken indicates a recovery token is not in XXXX-XXXX-XXXX-XXXX form.
	ErrInvalidToken = errors.New("invalid recovery token format")

	// ErrInvalidConfig indicates the configuration file holds unusable values.
	ErrInvalidConfig = errors.New("configuration is invalid")

	// ErrInvalidDateFormat indicates a date filter could not be parsed.
	ErrInvalidDateFormat = errors.New("invalid date format")
)
