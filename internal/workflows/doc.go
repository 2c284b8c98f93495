// Package workflows provides high-level orchestration for locker commands.
//
// Each workflow handles one command's business logic, independent of CLI
// concerns like flag parsing, prompts, spinners and output formatting. A
// workflow loads the config, opens the database and vault, performs the
// operation and records an audit entry. The vault is locked and the database
// closed before the workflow returns.
//
// # Available Workflows
//
//   - Init: creates a vault and returns the recovery token
//   - Add, Extract, Remove, List: file operations
//   - Rotate: replaces the master key and re-encrypts every file
//   - Recover: resets the password using the recovery token
//   - Passwd: changes the password
//   - Verify: decrypts every file to check its integrity
//   - Reconcile: clears the read-only state after a generation mismatch
//   - Info, Log: vault metadata and the audit trail
//
// # Error Handling
//
// Workflows return typed errors from the internal/errors package, so the CLI
// can pick a message with errors.Is instead of matching strings:
//
//	result, err := workflows.Extract(ctx, opts)
//	if errors.Is(err, kerrors.ErrIntegrity) {
//	    // The file was damaged or tampered with.
//	}
package workflows
