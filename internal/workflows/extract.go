package workflows

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/PolarWolf314/locker/internal/audit"
	kerrors "github.com/PolarWolf314/locker/internal/errors"
	"github.com/PolarWolf314/locker/internal/store"
	"github.com/PolarWolf314/locker/internal/utils"
)

// ExtractOptions configures the extract workflow.
type ExtractOptions struct {
	Env

	Password string

	// Query is a file ID, a file name, or a unique prefix of either.
	Query string

	// OutputDir is where the plaintext is written. Defaults to the current
	// directory. An existing file is never overwritten; a numbered name is
	// chosen instead.
	OutputDir string

	// Writer, when set, receives the plaintext instead of a file.
	Writer io.Writer
}

// ExtractResult contains the outcome of an extract operation.
type ExtractResult struct {
	File store.FileRecord

	// OutputPath is the file that was written. Empty when Writer was used.
	OutputPath string
}

// Extract decrypts one file out of the vault.
//
// Plaintext goes to a temporary file next to the destination and is renamed
// into place only after every chunk has verified, so a tampered file never
// leaves partial output behind.
//
// Returns ErrFileNotFound or ErrAmbiguousFile if the query does not identify
// exactly one file.
// Returns ErrIntegrity if the ciphertext fails authentication.
func Extract(ctx context.Context, opts ExtractOptions) (*ExtractResult, error) {
	o, err := openVault(ctx, opts.Env)
	if err != nil {
		return nil, err
	}
	defer o.close()

	if err := o.unlock(ctx, opts.Password); err != nil {
		return nil, err
	}

	file, err := resolveFile(ctx, o.vault, opts.Query)
	if err != nil {
		return nil, err
	}

	result := &ExtractResult{File: *file}
	entry := audit.NewEntry("extract")
	entry.Files = []string{file.Name}
	entry.FileIDs = []string{file.ID}

	if opts.Writer != nil {
		_, err = o.vault.ExtractFile(ctx, file.ID, opts.Writer)
	} else {
		result.OutputPath, err = extractToFile(ctx, o, file, opts.OutputDir)
	}
	if err != nil {
		entry.Error = err.Error()
		audit.Log(o.settings.AuditPath, entry)
		return nil, err
	}

	audit.Log(o.settings.AuditPath, entry)
	return result, nil
}

func extractToFile(ctx context.Context, o *opened, file *store.FileRecord, dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("%w: %v", kerrors.ErrResource, err)
	}

	tmp, err := os.CreateTemp(dir, ".locker-extract-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", kerrors.ErrResource, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	_, err = o.vault.ExtractFile(ctx, file.ID, tmp)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("%w: %v", kerrors.ErrResource, closeErr)
	}
	if err != nil {
		return "", err
	}

	// The claimed file is empty and ours, so the rename replaces nothing else.
	outPath, err := utils.ClaimUniqueFile(dir, utils.SanitizeFileName(file.Name))
	if err != nil {
		return "", fmt.Errorf("%w: %v", kerrors.ErrResource, err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("%w: %v", kerrors.ErrResource, err)
	}

	o.log.Infof("Decrypted %s to %s", file.Name, outPath)
	return outPath, nil
}
