// Package store persists locker metadata in a bbolt database.
//
// The database holds a single VaultRecord (the wrapped master key and its
// salts), one FileRecord per encrypted file, a monotonic sequence used to
// allocate stream IDs, and, while a key rotation is running, a
// RotationJournal.
//
// Records are JSON-encoded. bbolt holds an exclusive lock on the file, so only
// one process can open a vault at a time.
package store
