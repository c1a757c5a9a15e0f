// Package commands implements the CLI commands of the syncbox server.
package commands

import (
	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "syncbox",
	Short: "Syncbox - Multi-tenant real-time file synchronization server",
	Long: `Syncbox is a multi-tenant file synchronization server. Clients connect
over a websocket channel and/or an HTTP API, emit file lifecycle events,
and receive broadcasts of other clients' changes within the same store.

Use "syncbox [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: $XDG_CONFIG_HOME/syncbox/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}
