package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// VERSION is set at build time via -ldflags "-X tickle-go/cmd.VERSION=..."
var VERSION = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tickle version %s\n", VERSION)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
