// Package errors provides typed error values for locker.
//
// Using sentinel errors allows callers to handle specific error conditions
// programmatically with errors.Is() rather than string matching. The vault
// core never swallows a cryptographic failure: it wraps one of these values
// and hands it to the caller, which decides what the user sees.
//
// # Error Categories
//
//   - Authentication: the envelope did not open (ErrAuthentication)
//   - Integrity: a file chunk failed verification (ErrIntegrity)
//   - Resource: disk or permission failures (ErrResource)
//   - Invariant: key generations diverged (ErrInvariantViolation)
//   - State and input errors: ErrVaultLocked, ErrFileNotFound, ...
//
// # Usage
//
// Wrap errors with additional context:
//
//	return fmt.Errorf("%w: chunk %d of %s", errors.ErrIntegrity, i, name)
//
// Handle errors in the CLI layer:
//
//	if errors.Is(err, lerrors.ErrAuthentication) {
//	    // Offer the recovery token path
//	}
package errors
