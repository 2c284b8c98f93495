package cmd

import (
	"context"
	"os"

	"github.com/PolarWolf314/locker/internal/ui"
	"github.com/PolarWolf314/locker/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	extractOutputDir string
	extractStdout    bool
)

func init() {
	extractCmd.Flags().StringVarP(&extractOutputDir, "output", "o", ".", "directory to write the file to")
	extractCmd.Flags().BoolVar(&extractStdout, "stdout", false, "write the plaintext to stdout")
}

// resetExtractCommandState resets the extract command's global state for testing.
func resetExtractCommandState() {
	extractOutputDir = "."
	extractStdout = false
}

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Decrypt a file out of the vault",
	Long: `Decrypts a file from the vault.

The file can be named by its ID, its name, or a unique prefix of either.
Every chunk is authenticated before it is written; if the ciphertext has been
tampered with, nothing is left behind in the output directory. Existing files
are never overwritten.

Examples:
  # Extract into the current directory
  locker extract taxes-2024.pdf

  # Extract by ID prefix into another directory
  locker extract 3f2a -o ~/Downloads

  # Stream to another program
  locker extract notes.txt --stdout | less`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting extract command")

		password, err := readPassword("Password: ")
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read password: %v", err)
		}

		opts := workflows.ExtractOptions{
			Env:       env(),
			Password:  password,
			Query:     args[0],
			OutputDir: extractOutputDir,
		}

		// Keep stdout clean for the plaintext.
		out := os.Stdout
		if extractStdout {
			opts.Writer = os.Stdout
			out = os.Stderr
		}

		s, cleanup := startSpinnerTo("Decrypting file...", out)
		defer cleanup()

		result, err := workflows.Extract(context.Background(), opts)
		if err != nil {
			return failWith(s, err)
		}

		if extractStdout {
			return nil
		}
		s.FinalMSG = ui.Success.Sprint("✓") + " Decrypted " + ui.Highlight.Sprint(result.File.Name) +
			" to " + ui.Path.Sprint(result.OutputPath)
		return nil
	},
}
