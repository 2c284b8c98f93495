package workflows

import (
	"context"

	"github.com/PolarWolf314/locker/internal/audit"
	"github.com/PolarWolf314/locker/internal/vault"
)

// VerifyOptions configures the verify workflow.
type VerifyOptions struct {
	Env

	Password string
}

// VerifyResult contains the outcome of a verify operation.
type VerifyResult struct {
	// Checked is the number of files that were decrypted.
	Checked int

	// Failed lists the files that did not decrypt cleanly.
	Failed []vault.VerifyResult

	// Broken is set when the vault is read-only because key generations
	// disagree. Run reconcile to resolve it.
	Broken error
}

// Verify decrypts every file in the vault without writing plaintext anywhere,
// reporting files whose ciphertext has been damaged or tampered with.
func Verify(ctx context.Context, opts VerifyOptions) (*VerifyResult, error) {
	o, err := openVault(ctx, opts.Env)
	if err != nil {
		return nil, err
	}
	defer o.close()

	if err := o.unlock(ctx, opts.Password); err != nil {
		return nil, err
	}

	results, err := o.vault.VerifyFiles(ctx)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Checked: len(results), Broken: o.vault.Broken()}
	entry := audit.NewEntry("verify")
	entry.FilesCount = len(results)
	for _, r := range results {
		if r.Err != nil {
			o.log.Errorf("%s failed verification: %v", r.File.Name, r.Err)
			result.Failed = append(result.Failed, r)
			entry.Failed = append(entry.Failed, r.File.Name)
		}
	}
	audit.Log(o.settings.AuditPath, entry)

	return result, nil
}
