package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/PolarWolf314/locker/internal/store"
	"github.com/PolarWolf314/locker/internal/ui"
	"github.com/PolarWolf314/locker/internal/utils"
	"github.com/PolarWolf314/locker/internal/workflows"

	"github.com/spf13/cobra"
)

var listJSON bool

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON array")
}

// resetListCommandState resets the list command's global state for testing.
func resetListCommandState() {
	listJSON = false
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the files in the vault",
	Long: `Lists the files in the vault, oldest first.

No password is needed: names and sizes are stored as metadata.

Examples:
  locker list
  locker list --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting list command")

		result, err := workflows.List(context.Background(), workflows.ListOptions{Env: env()})
		if err != nil {
			fmt.Println(formatError(err))
			if isUnexpectedError(err) {
				return err
			}
			return nil
		}

		if listJSON {
			return outputListJSON(result.Files)
		}

		if len(result.Files) == 0 {
			fmt.Println("The vault is empty.")
			fmt.Println(ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("locker add <file>") + " to store a file")
			return nil
		}

		printFileTable(result.Files)
		fmt.Printf("\n%d file(s), %s\n", len(result.Files), ui.FormatSize(result.TotalSize))
		return nil
	},
}

func outputListJSON(files []store.FileRecord) error {
	if files == nil {
		files = []store.FileRecord{}
	}
	data, err := json.MarshalIndent(files, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal files to JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printFileTable(files []store.FileRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSIZE\tADDED")
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			utils.ShortID(f.ID), f.Name, ui.FormatSize(f.Size), f.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
}
