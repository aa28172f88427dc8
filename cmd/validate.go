package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the sites file",
	RunE: func(cmd *cobra.Command, args []string) error {
		sites, rejections, err := loadSites(nil)

		for _, r := range rejections {
			fmt.Printf("  ❌ %s\n", r)
		}
		if err != nil {
			fmt.Printf("❌ Configuration validation failed: %v\n", err)
			return err
		}

		fmt.Printf("✅ Configuration is valid (%d sites, %d dropped)\n", len(sites), len(rejections))
		for _, site := range sites {
			if err := site.ValidateURL(); err != nil {
				fmt.Printf("  ⚠️  %s: invalid URL: %v\n", site.Name(), err)
				continue
			}
			fmt.Printf("  ✅ %s\n", site.Name())
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
