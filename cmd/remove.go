package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/PolarWolf314/locker/internal/ui"
	"github.com/PolarWolf314/locker/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	removeForce  bool
	removeDryRun bool
)

func init() {
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "skip confirmation prompt")
	removeCmd.Flags().BoolVar(&removeDryRun, "dry-run", false, "show which files would be removed")
}

// resetRemoveCommandState resets the remove command's global state for testing.
func resetRemoveCommandState() {
	removeForce = false
	removeDryRun = false
}

var removeCmd = &cobra.Command{
	Use:     "remove <file>...",
	Aliases: []string{"rm"},
	Short:   "Delete files from the vault",
	Long: `Deletes files from the vault. This cannot be undone.

Files can be named by ID, name, or a unique prefix of either. All names are
checked before anything is deleted.

Examples:
  locker remove old-notes.txt
  locker remove 3f2a 9b1c --force
  locker remove taxes --dry-run`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting remove command")

		password, err := readPassword("Password: ")
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read password: %v", err)
		}

		if !removeForce && !removeDryRun {
			fmt.Printf("\n%s This permanently deletes %s from the vault.\n", ui.Warning.Sprint("Warning:"), strings.Join(args, ", "))
			if !confirm("Do you want to continue?") {
				fmt.Println(ui.Warning.Sprint("⚠") + " Remove cancelled.")
				return nil
			}
		}

		s, cleanup := startSpinner("Removing files...")
		defer cleanup()

		result, err := workflows.Remove(context.Background(), workflows.RemoveOptions{
			Env:      env(),
			Password: password,
			Queries:  args,
			DryRun:   removeDryRun,
		})
		if err != nil {
			return failWith(s, err)
		}

		var msg strings.Builder
		if result.DryRun {
			msg.WriteString(ui.Info.Sprint("ℹ") + " Would remove:\n")
		} else {
			msg.WriteString(ui.Success.Sprint("✓") + fmt.Sprintf(" Removed %d file(s):\n", len(result.Removed)))
		}
		for _, f := range result.Removed {
			msg.WriteString("    - " + ui.Highlight.Sprint(f.Name) + " " + ui.Muted.Sprint(f.ID) + "\n")
		}
		s.FinalMSG = msg.String()
		return nil
	},
}
