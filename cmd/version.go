package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Overridden at build time via -ldflags "-X ...cmd.version=".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applypilot version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("%s %s\n", app, version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
