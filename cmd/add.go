package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/PolarWolf314/locker/internal/ui"
	"github.com/PolarWolf314/locker/internal/utils"
	"github.com/PolarWolf314/locker/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	addRecursive    bool
	addRemoveSource bool
)

func init() {
	addCmd.Flags().BoolVarP(&addRecursive, "recursive", "r", false, "add the files inside directories")
	addCmd.Flags().BoolVar(&addRemoveSource, "remove-source", false, "delete each original after it is stored")
}

// resetAddCommandState resets the add command's global state for testing.
func resetAddCommandState() {
	addRecursive = false
	addRemoveSource = false
}

var addCmd = &cobra.Command{
	Use:   "add <path>...",
	Short: "Encrypt files into the vault",
	Long: `Encrypts one or more files into the vault.

Each file is streamed through the cipher in 64 KiB chunks, so large files
never sit in memory. The original is left in place unless --remove-source
is given.

Examples:
  # Add a single file
  locker add taxes-2024.pdf

  # Add a whole directory and delete the originals
  locker add -r ~/scans --remove-source`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting add command")
		Logger.Debugf("Flags: recursive=%t, remove-source=%t", addRecursive, addRemoveSource)

		password, err := readPassword("Password: ")
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read password: %v", err)
		}

		s, cleanup := startSpinner("Encrypting files...")
		defer cleanup()

		result, err := workflows.Add(context.Background(), workflows.AddOptions{
			Env:          env(),
			Password:     password,
			Paths:        args,
			Recursive:    addRecursive,
			RemoveSource: addRemoveSource,
		})
		if err != nil && (result == nil || len(result.Failed) == 0) {
			return failWith(s, err)
		}

		var msg strings.Builder
		if len(result.Added) > 0 {
			msg.WriteString(ui.Success.Sprint("✓") + fmt.Sprintf(" Encrypted %d file(s) into the vault:", len(result.Added)))
			msg.WriteString(utils.FormatPaths(result.Sources))
		}
		for _, f := range result.Failed {
			msg.WriteString(ui.Error.Sprint("✗") + " " + ui.Path.Sprint(f.Path) + ": " + f.Err.Error() + "\n")
		}
		if addRemoveSource && len(result.Added) > 0 {
			msg.WriteString(ui.Info.Sprint("→") + " The originals were removed")
		}
		s.FinalMSG = msg.String()

		if len(result.Failed) > 0 {
			return fmt.Errorf("%d of %d files could not be added", len(result.Failed), len(result.Failed)+len(result.Added))
		}
		return nil
	},
}
