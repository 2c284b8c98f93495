package cmd

import (
	"fmt"
	"os"

	"github.com/PolarWolf314/locker/internal/configs"
	"github.com/PolarWolf314/locker/internal/ui"

	"github.com/spf13/cobra"
)

var (
	configInitForce   bool
	configInitDataDir string
)

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")
	configInitCmd.Flags().StringVar(&configInitDataDir, "data-dir", "", "where the vault should live")
}

// resetConfigInitState resets the config init command's global state for testing.
func resetConfigInitState() {
	configInitForce = false
	configInitDataDir = ""
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting config init command")

		path, err := resolveConfigPath()
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to determine config path: %v", err)
		}

		if _, err := os.Stat(path); err == nil && !configInitForce {
			fmt.Println(ui.Warning.Sprint("⚠") + " A config file already exists at " + ui.Path.Sprint(path))
			fmt.Println(ui.Info.Sprint("→") + " Use " + ui.Code.Sprint("--force") + " to overwrite it")
			return nil
		}

		config := configs.DefaultConfig()
		config.Vault.DataDir = configInitDataDir

		Logger.Debugf("Writing config to %s", path)
		if err := configs.SaveConfig(path, config); err != nil {
			return Logger.ErrorfAndReturn("Failed to write config: %v", err)
		}

		fmt.Println(ui.Success.Sprint("✓") + " Config written to " + ui.Path.Sprint(path))
		return nil
	},
}

// resolveConfigPath returns --config or the default config path.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return configs.DefaultConfigPath()
}
