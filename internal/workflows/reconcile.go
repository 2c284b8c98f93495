package workflows

import (
	"context"

	"github.com/PolarWolf314/locker/internal/audit"
	"github.com/PolarWolf314/locker/internal/store"
)

// ReconcileOptions configures the reconcile workflow.
type ReconcileOptions struct {
	Env

	Password string
}

// ReconcileResult contains the outcome of a reconcile operation.
type ReconcileResult struct {
	// Unresolved lists files that still do not decrypt under the current key.
	Unresolved []store.FileRecord

	// Writable reports whether the vault accepts writes again.
	Writable bool
}

// Reconcile re-checks files whose key generation disagrees with the vault
// record, clearing the read-only state once all of them decrypt. Nothing is
// deleted; unresolved files can be removed explicitly afterwards.
func Reconcile(ctx context.Context, opts ReconcileOptions) (*ReconcileResult, error) {
	o, err := openVault(ctx, opts.Env)
	if err != nil {
		return nil, err
	}
	defer o.close()

	if err := o.unlock(ctx, opts.Password); err != nil {
		return nil, err
	}

	unresolved, err := o.vault.Reconcile(ctx)
	if err != nil {
		return nil, err
	}

	entry := audit.NewEntry("reconcile")
	for _, f := range unresolved {
		entry.Failed = append(entry.Failed, f.Name)
	}
	audit.Log(o.settings.AuditPath, entry)

	return &ReconcileResult{
		Unresolved: unresolved,
		Writable:   o.vault.Broken() == nil,
	}, nil
}
