package cmd

import (
	"fmt"

	logger "github.com/PolarWolf314/locker/internal/logging"
	"github.com/PolarWolf314/locker/internal/ui"
	"github.com/PolarWolf314/locker/internal/workflows"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	verbose       bool
	debug         bool
	configPath    string
	passwordStdin bool
	Logger        logger.Logger

	RootCmd = &cobra.Command{
		Use:   "locker",
		Short: "Locker - a personal encrypted file vault",
		Long: `Locker keeps your files encrypted on disk under a single master key.

The master key is protected twice: by your password and by a recovery token
shown once when the vault is created. Either one unlocks the vault.

Usage:
  locker <command> [flags]

Run 'locker help <command>' for more details on a specific command.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			Logger = logger.Logger{
				Verbose: verbose,
				Debug:   debug,
			}
			Logger.Debugf("Initializing %s command with verbose=%t, debug=%t", cmd.Name(), verbose, debug)
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println()
			banner := figure.NewColorFigure("Locker", "alligator2", "green", true)
			banner.Print()
			fmt.Println()
			fmt.Println("Welcome to Locker! Run " + ui.Code.Sprint("locker --help") + " to see available commands.")
		},
	}
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	RootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is <user config dir>/locker/config.toml)")
	RootCmd.PersistentFlags().BoolVar(&passwordStdin, "password-stdin", false, "read passwords and tokens from stdin, one per line")

	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(addCmd)
	RootCmd.AddCommand(extractCmd)
	RootCmd.AddCommand(listCmd)
	RootCmd.AddCommand(removeCmd)
	RootCmd.AddCommand(rotateCmd)
	RootCmd.AddCommand(recoverCmd)
	RootCmd.AddCommand(passwdCmd)
	RootCmd.AddCommand(verifyCmd)
	RootCmd.AddCommand(reconcileCmd)
	RootCmd.AddCommand(infoCmd)
	RootCmd.AddCommand(logCmd)
	RootCmd.AddCommand(ConfigCmd)
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

// env returns what workflows need from the global flags.
func env() workflows.Env {
	return workflows.Env{ConfigPath: configPath, Log: Logger}
}

// Helper functions for testing

// GetRootCmd returns the RootCmd for testing.
func GetRootCmd() *cobra.Command {
	return RootCmd
}

// ResetGlobalState resets all global variables to their default values for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	configPath = ""
	passwordStdin = false
	resetInitCommandState()
	resetAddCommandState()
	resetExtractCommandState()
	resetListCommandState()
	resetRemoveCommandState()
	resetRotateCommandState()
	resetInfoCommandState()
	resetLogCommandState()
	resetConfigCommandState()
	resetCobraFlagState(RootCmd)
}

// resetCobraFlagState clears Changed on every flag to prevent test pollution.
func resetCobraFlagState(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		flag.Changed = false
	})
	for _, sub := range cmd.Commands() {
		resetCobraFlagState(sub)
	}
}

// SetVerbose sets the verbose flag for testing.
func SetVerbose(v bool) {
	verbose = v
}

// SetDebug sets the debug flag for testing.
func SetDebug(d bool) {
	debug = d
}

// SetLogger sets the logger for testing.
func SetLogger(l logger.Logger) {
	Logger = l
}
