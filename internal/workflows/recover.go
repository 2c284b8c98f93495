package workflows

import (
	"context"

	"github.com/PolarWolf314/locker/internal/audit"
	"github.com/PolarWolf314/locker/internal/secrets"
)

// RecoverOptions configures the recover workflow.
type RecoverOptions struct {
	Env

	// Token is the recovery token, with or without dashes.
	Token string

	NewPassword string
}

// Recover unlocks the vault with the recovery token and sets a new password.
// The token keeps working afterwards.
//
// Returns ErrInvalidToken if the token is malformed.
// Returns ErrAuthentication if the token is wrong.
func Recover(ctx context.Context, opts RecoverOptions) error {
	// Reject a malformed token before the slow parts.
	if _, err := secrets.NormalizeRecoveryToken(opts.Token); err != nil {
		return err
	}

	o, err := openVault(ctx, opts.Env)
	if err != nil {
		return err
	}
	defer o.close()

	entry := audit.NewEntry("recover")
	if err := o.vault.Recover(ctx, opts.Token, opts.NewPassword); err != nil {
		entry.Error = err.Error()
		audit.Log(o.settings.AuditPath, entry)
		return err
	}

	audit.Log(o.settings.AuditPath, entry)
	return nil
}
