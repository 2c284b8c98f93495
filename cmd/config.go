package cmd

import (
	"github.com/spf13/cobra"
)

// ConfigCmd is the top-level config command.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage locker configuration",
	Long: `Provides commands for viewing and creating the locker config file.

The config file lives at <user config dir>/locker/config.toml unless --config
is given. Every setting has a default, so the file is optional.

Examples:
  # Write a config file with the defaults
  locker config init

  # Show the effective configuration
  locker config show`,
}

func init() {
	ConfigCmd.AddCommand(configInitCmd)
	ConfigCmd.AddCommand(configShowCmd)
}

// resetConfigCommandState resets all config command global variables for testing.
func resetConfigCommandState() {
	resetConfigInitState()
	resetConfigShowState()
}
