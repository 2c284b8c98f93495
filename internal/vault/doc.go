// Package vault is the locker key custody and file encryption service.
//
// A Vault ties a Store (the persisted vault record and file records) to a
// storage directory of encrypted files and, once unlocked, a session master
// key.
//
// # Lifecycle
//
//	v, err := vault.New(ctx, boltStore, opts, log)
//	token, err := v.Setup(ctx, password)          // first run only
//	err = v.UnlockWithPassword(ctx, password)     // later runs
//	file, err := v.AddFile(ctx, "notes.txt", r)
//	_, err = v.ExtractFile(ctx, file.ID, w)
//	v.Lock()
//
// # Recovery
//
// Recover opens the token envelope and sets a new password in the same call.
// The recovery token itself is not changed and can be used again.
//
// # Key Rotation
//
// Rotate replaces the master key. A rotation journal is written to the store
// before any file is touched:
//
//  1. staging: every file is re-encrypted into <name>.rotating
//  2. committing: staged copies are renamed over the originals and the new
//     vault record, file records and journal deletion are stored in one
//     transaction
//
// New inspects the journal. A staging journal is rolled back; a committing
// journal is rolled forward. Either way the vault record and every file end
// up on the same key generation.
//
// If files and the vault record ever disagree on the generation with no
// journal present, the vault refuses writes and Broken reports
// errors.ErrInvariantViolation until Reconcile succeeds.
package vault
