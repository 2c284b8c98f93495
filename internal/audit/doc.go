// Package audit provides audit trail logging for locker operations.
//
// Every operation that touches the vault (init, add, extract, remove,
// rotate, recover, passwd, verify) is recorded in an append-only log in the
// data directory. No secrets, plaintext or key material are ever written
// to it; only file names, IDs, counts and outcomes.
//
// # Log Format
//
// The audit log is stored as JSON Lines (one JSON object per line) at:
//
//	<data dir>/audit.jsonl
//
// Each entry contains:
//   - Timestamp (RFC3339 with microseconds, UTC)
//   - OS user and host name
//   - Operation name
//   - Operation-specific details (files, generation, failures)
//
// # Usage
//
//	entry := audit.NewEntry("add")
//	entry.Files = added
//	audit.Log(settings.AuditPath, entry)
//
// # Failure Handling
//
// Audit logging is best-effort. If logging fails (permissions, disk full,
// etc.), the operation continues without error.
//
// # Reading Logs
//
// Use ReadEntries() to parse the audit log for display.
// Malformed entries are silently skipped to handle partial writes.
package audit
