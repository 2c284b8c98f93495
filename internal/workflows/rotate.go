package workflows

import (
	"context"

	"github.com/PolarWolf314/locker/internal/audit"
	"github.com/PolarWolf314/locker/internal/vault"
)

// RotateOptions configures the rotate workflow.
type RotateOptions struct {
	Env

	Password string

	// Token is the current recovery token. Required unless NewToken is set.
	Token string

	// NewToken replaces the recovery token as part of the rotation.
	NewToken bool
}

// RotateResult contains the outcome of a rotate operation.
type RotateResult struct {
	Files      int
	Generation int

	// Token is the new recovery token when one was issued.
	Token string
}

// Rotate replaces the master key and re-encrypts every file under it.
// Either every file and both envelopes move to the new key, or nothing
// changes.
//
// Returns ErrAuthentication if the password or token is wrong.
// Returns ErrRotationAborted if any file could not be re-encrypted.
func Rotate(ctx context.Context, opts RotateOptions) (*RotateResult, error) {
	o, err := openVault(ctx, opts.Env)
	if err != nil {
		return nil, err
	}
	defer o.close()

	if err := o.unlock(ctx, opts.Password); err != nil {
		return nil, err
	}

	entry := audit.NewEntry("rotate")
	entry.NewToken = opts.NewToken

	res, err := o.vault.Rotate(ctx, vault.RotateOptions{
		Password: opts.Password,
		Token:    opts.Token,
		NewToken: opts.NewToken,
	})
	if err != nil {
		entry.Error = err.Error()
		audit.Log(o.settings.AuditPath, entry)
		return nil, err
	}

	entry.FilesCount = res.Files
	entry.Generation = res.Generation
	audit.Log(o.settings.AuditPath, entry)

	return &RotateResult{
		Files:      res.Files,
		Generation: res.Generation,
		Token:      res.Token,
	}, nil
}
