package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/PolarWolf314/locker/internal/ui"
	"github.com/PolarWolf314/locker/internal/workflows"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Clear the read-only state after a key generation mismatch",
	Long: `Re-checks files whose key generation does not match the vault.

Locker makes the vault read-only when it finds such files, which can happen
if the database and the storage directory were restored from different
backups. Files that decrypt under the current key are brought up to date.
Files that do not are listed and left untouched; remove them explicitly
with 'locker remove' to make the vault writable again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting reconcile command")

		password, err := readPassword("Password: ")
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read password: %v", err)
		}

		s, cleanup := startSpinner("Reconciling files...")
		defer cleanup()

		result, err := workflows.Reconcile(context.Background(), workflows.ReconcileOptions{
			Env:      env(),
			Password: password,
		})
		if err != nil {
			return failWith(s, err)
		}

		if result.Writable {
			s.FinalMSG = ui.Success.Sprint("✓") + " All files match the current key; the vault is writable"
			return nil
		}

		var msg strings.Builder
		msg.WriteString(ui.Error.Sprint("✗") + fmt.Sprintf(" %d file(s) do not decrypt under the current key:\n", len(result.Unresolved)))
		for _, f := range result.Unresolved {
			msg.WriteString("    - " + ui.Highlight.Sprint(f.Name) + " " + ui.Muted.Sprint(f.ID) + "\n")
		}
		msg.WriteString(ui.Info.Sprint("→") + " Remove them with " + ui.Code.Sprint("locker remove <id>") + " to make the vault writable")
		s.FinalMSG = msg.String()
		return nil
	},
}
