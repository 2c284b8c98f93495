package workflows

import (
	"context"

	"github.com/PolarWolf314/locker/internal/audit"
	"github.com/PolarWolf314/locker/internal/store"
)

// RemoveOptions configures the remove workflow.
type RemoveOptions struct {
	Env

	Password string

	// Queries identify the files to remove (ID, name, or unique prefix).
	Queries []string

	// DryRun resolves the files without removing them.
	DryRun bool
}

// RemoveResult contains the outcome of a remove operation.
type RemoveResult struct {
	Removed []store.FileRecord
	DryRun  bool
}

// Remove deletes files from the vault. Every query is resolved before
// anything is removed, so a typo in one name removes nothing.
//
// Returns ErrFileNotFound or ErrAmbiguousFile for an unresolvable query.
// Returns ErrInvariantViolation if the vault is read-only.
func Remove(ctx context.Context, opts RemoveOptions) (*RemoveResult, error) {
	o, err := openVault(ctx, opts.Env)
	if err != nil {
		return nil, err
	}
	defer o.close()

	if err := o.unlock(ctx, opts.Password); err != nil {
		return nil, err
	}

	var targets []store.FileRecord
	seen := make(map[string]bool)
	for _, q := range opts.Queries {
		file, err := resolveFile(ctx, o.vault, q)
		if err != nil {
			return nil, err
		}
		if !seen[file.ID] {
			seen[file.ID] = true
			targets = append(targets, *file)
		}
	}

	result := &RemoveResult{DryRun: opts.DryRun}
	if opts.DryRun {
		result.Removed = targets
		return result, nil
	}

	entry := audit.NewEntry("remove")
	defer func() {
		if len(entry.FileIDs) > 0 || entry.Error != "" {
			audit.Log(o.settings.AuditPath, entry)
		}
	}()

	for _, t := range targets {
		file, err := o.vault.RemoveFile(ctx, t.ID)
		if err != nil {
			entry.Error = err.Error()
			return result, err
		}
		o.log.Infof("Removed %s (%s)", file.Name, file.ID)
		result.Removed = append(result.Removed, *file)
		entry.Files = append(entry.Files, file.Name)
		entry.FileIDs = append(entry.FileIDs, file.ID)
	}

	return result, nil
}
