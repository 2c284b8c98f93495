package workflows

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/PolarWolf314/locker/internal/audit"
	kerrors "github.com/PolarWolf314/locker/internal/errors"
	"github.com/PolarWolf314/locker/internal/store"
	"github.com/PolarWolf314/locker/internal/utils"

	"golang.org/x/sync/errgroup"
)

// AddOptions configures the add workflow.
type AddOptions struct {
	Env

	Password string

	// Paths are files or, with Recursive, directories to encrypt.
	Paths []string

	Recursive bool

	// RemoveSource deletes each original after it has been stored.
	RemoveSource bool
}

// FileError pairs a path with the reason it could not be processed.
type FileError struct {
	Path string
	Err  error
}

// AddResult contains the outcome of an add operation.
type AddResult struct {
	// Added lists the new vault entries, in the order of the source paths.
	Added []store.FileRecord

	// Sources lists the path each entry in Added came from.
	Sources []string

	// Failed lists the paths that could not be added.
	Failed []FileError
}

// Add encrypts files into the vault. Files are processed in parallel up to
// the configured limit; one failing file does not stop the others.
//
// Returns ErrNoFilesFound if the paths expand to no files.
// Returns ErrAuthentication if the password is wrong.
func Add(ctx context.Context, opts AddOptions) (*AddResult, error) {
	paths, err := utils.CollectFiles(opts.Paths, opts.Recursive)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, kerrors.ErrNoFilesFound
	}

	o, err := openVault(ctx, opts.Env)
	if err != nil {
		return nil, err
	}
	defer o.close()

	if err := o.unlock(ctx, opts.Password); err != nil {
		return nil, err
	}

	// Each goroutine writes only its own index.
	added := make([]*store.FileRecord, len(paths))
	errs := make([]error, len(paths))

	var g errgroup.Group
	g.SetLimit(o.config.Vault.Parallelism)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}

			added[i], errs[i] = addOne(ctx, o, path, opts.RemoveSource)
			return nil
		})
	}
	_ = g.Wait()

	result := &AddResult{}
	entry := audit.NewEntry("add")
	for i, path := range paths {
		if errs[i] != nil {
			o.log.Errorf("Failed to add %s: %v", path, errs[i])
			result.Failed = append(result.Failed, FileError{Path: path, Err: errs[i]})
			entry.Failed = append(entry.Failed, filepath.Base(path))
			continue
		}
		result.Added = append(result.Added, *added[i])
		result.Sources = append(result.Sources, path)
		entry.Files = append(entry.Files, added[i].Name)
		entry.FileIDs = append(entry.FileIDs, added[i].ID)
	}
	if len(result.Added) > 0 || len(result.Failed) > 0 {
		audit.Log(o.settings.AuditPath, entry)
	}

	if len(result.Added) == 0 {
		return result, result.Failed[0].Err
	}
	return result, nil
}

func addOne(ctx context.Context, o *opened, path string, removeSource bool) (*store.FileRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrResource, err)
	}
	defer f.Close()

	file, err := o.vault.AddFile(ctx, filepath.Base(path), f)
	if err != nil {
		return nil, err
	}
	o.log.Infof("Encrypted %s as %s", path, file.ID)

	if removeSource {
		f.Close()
		if err := os.Remove(path); err != nil {
			o.log.WarnfAlways("Stored %s but could not remove the original: %v", path, err)
		}
	}
	return file, nil
}
