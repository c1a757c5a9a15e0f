package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/syncbox/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("syncbox %s\n", version.String())
	},
}
