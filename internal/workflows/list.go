package workflows

import (
	"context"

	kerrors "github.com/PolarWolf314/locker/internal/errors"
	"github.com/PolarWolf314/locker/internal/store"
)

// ListOptions configures the list workflow.
type ListOptions struct {
	Env
}

// ListResult contains the files in the vault.
type ListResult struct {
	// Files are ordered oldest first.
	Files []store.FileRecord

	// TotalSize is the plaintext size of all files.
	TotalSize int64
}

// List returns the vault's file listing. No password is needed; file names
// are metadata, not content.
//
// Returns ErrVaultNotInitialized if no vault exists.
func List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	o, err := openVault(ctx, opts.Env)
	if err != nil {
		return nil, err
	}
	defer o.close()

	initialized, err := o.vault.IsInitialized(ctx)
	if err != nil {
		return nil, err
	}
	if !initialized {
		return nil, kerrors.ErrVaultNotInitialized
	}

	files, err := o.vault.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	result := &ListResult{Files: files}
	for _, f := range files {
		result.TotalSize += f.Size
	}
	return result, nil
}
