package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/PolarWolf314/locker/internal/configs"
	"github.com/PolarWolf314/locker/internal/ui"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

var configShowJSON bool

func init() {
	configShowCmd.Flags().BoolVar(&configShowJSON, "json", false, "output in JSON format")
}

// resetConfigShowState resets the config show command's global state for testing.
func resetConfigShowState() {
	configShowJSON = false
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Displays the configuration locker will use: the config file merged over the
defaults, and the paths resolved from it.

Examples:
  locker config show
  locker config show --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting config show command")

		path, err := resolveConfigPath()
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to determine config path: %v", err)
		}

		config, err := configs.LoadConfig(path)
		if err != nil {
			fmt.Println(formatError(err))
			return err
		}
		settings, err := configs.ResolveSettings(path, config)
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to resolve paths: %v", err)
		}

		if configShowJSON {
			data, err := json.MarshalIndent(struct {
				Config   *configs.Config   `json:"config"`
				Settings *configs.Settings `json:"settings"`
			}{config, settings}, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal config to JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Println(ui.Muted.Sprint("no config file at " + path + ", showing defaults"))
		} else {
			fmt.Println(ui.Muted.Sprint(path))
		}
		fmt.Println()
		if err := toml.NewEncoder(os.Stdout).Encode(config); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}

		fmt.Println()
		fmt.Println(ui.Info.Sprint("Resolved paths"))
		fmt.Printf("  Database:   %s\n", ui.Path.Sprint(settings.DatabasePath))
		fmt.Printf("  Storage:    %s\n", ui.Path.Sprint(settings.StorageDir))
		fmt.Printf("  Log file:   %s\n", ui.Path.Sprint(settings.LogPath))
		fmt.Printf("  Audit log:  %s\n", ui.Path.Sprint(settings.AuditPath))
		return nil
	},
}
