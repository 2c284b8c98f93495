package workflows

import (
	"context"

	"github.com/PolarWolf314/locker/internal/audit"
)

// InitOptions configures the init workflow.
type InitOptions struct {
	Env

	// Password is the new vault password.
	Password string
}

// InitResult contains the outcome of an init operation.
type InitResult struct {
	// Token is the recovery token. It is shown once and never stored.
	Token string

	// DataDir is where the vault was created.
	DataDir string
}

// Init creates a new vault: a fresh master key wrapped under both the
// password and a newly generated recovery token.
//
// Returns ErrVaultAlreadyInitialized if a vault already exists.
// Returns ErrPasswordTooShort if the password violates the length policy.
func Init(ctx context.Context, opts InitOptions) (*InitResult, error) {
	o, err := openVault(ctx, opts.Env)
	if err != nil {
		return nil, err
	}
	defer o.close()

	entry := audit.NewEntry("init")

	token, err := o.vault.Setup(ctx, opts.Password)
	if err != nil {
		return nil, err
	}

	entry.Generation = 1
	audit.Log(o.settings.AuditPath, entry)

	return &InitResult{
		Token:   token,
		DataDir: o.settings.DataDir,
	}, nil
}
