package workflows

import (
	"context"

	"github.com/PolarWolf314/locker/internal/audit"
)

// PasswdOptions configures the passwd workflow.
type PasswdOptions struct {
	Env

	OldPassword string
	NewPassword string
}

// Passwd changes the vault password. The recovery token is not affected.
//
// Returns ErrAuthentication if the old password is wrong.
// Returns ErrPasswordTooShort if the new one violates the length policy.
func Passwd(ctx context.Context, opts PasswdOptions) error {
	o, err := openVault(ctx, opts.Env)
	if err != nil {
		return err
	}
	defer o.close()

	entry := audit.NewEntry("passwd")
	if err := o.vault.ChangePassword(ctx, opts.OldPassword, opts.NewPassword); err != nil {
		entry.Error = err.Error()
		audit.Log(o.settings.AuditPath, entry)
		return err
	}

	audit.Log(o.settings.AuditPath, entry)
	return nil
}
