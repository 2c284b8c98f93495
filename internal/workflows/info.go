package workflows

import (
	"context"

	"github.com/PolarWolf314/locker/internal/configs"
	"github.com/PolarWolf314/locker/internal/vault"
)

// InfoOptions configures the info workflow.
type InfoOptions struct {
	Env
}

// InfoResult describes the vault and where it lives.
type InfoResult struct {
	Details  *vault.Details
	Settings *configs.Settings
}

// Info reports the vault's key record metadata: salts, envelope prefixes,
// key generation and KDF parameters. No password is needed and nothing
// secret is returned.
//
// Returns ErrVaultNotInitialized if no vault exists.
func Info(ctx context.Context, opts InfoOptions) (*InfoResult, error) {
	o, err := openVault(ctx, opts.Env)
	if err != nil {
		return nil, err
	}
	defer o.close()

	details, err := o.vault.Info(ctx)
	if err != nil {
		return nil, err
	}

	return &InfoResult{Details: details, Settings: o.settings}, nil
}
