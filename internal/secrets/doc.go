// Package secrets provides the cryptographic primitives of the locker vault.
//
// # Key Custody
//
// A vault is protected by a random 256-bit master key. The master key is never
// written to disk in the clear. Instead it is wrapped twice:
//
//  1. Under a key derived from the user's password (PBKDF2-HMAC-SHA256)
//  2. Under a key derived from a recovery token of the form XXXX-XXXX-XXXX-XXXX
//
// Each derivation uses its own 16-byte salt. Either path unwraps the same
// master key, so a forgotten password can be reset with the recovery token.
//
// Envelopes are AES-256-GCM with a random nonce and no associated data:
//
//	nonce (12) || ciphertext || tag (16)
//
// # File Encryption
//
// Files are encrypted by Stream in 64 KiB chunks. Every chunk becomes one
// record with the same layout as an envelope. Record nonces are derived from a
// per-file stream ID and the chunk index, with the top bit of the index set on
// the final record, so a reordered, truncated or extended file fails to
// decrypt. Decrypt never releases plaintext from a record whose tag did not
// verify.
//
// # Session Keys
//
// Once unlocked, the master key lives in a SessionKey backed by a memguard
// enclave. Call Use to borrow the plaintext key for one operation:
//
//	err := session.Use(func(key []byte) error {
//	    stream, err := secrets.NewStream(key, secrets.DefaultChunkSize)
//	    if err != nil {
//	        return err
//	    }
//	    _, err = stream.Encrypt(dst, src, streamID)
//	    return err
//	})
//
// # Security Considerations
//
//   - Derived keys and temporary key copies are wiped with Zero after use
//   - Unwrap failures are reported as errors.ErrAuthentication
//   - Stream failures are reported as errors.ErrIntegrity
//   - The password verifier is only a fast check; unwrapping is authoritative
package secrets
