package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tickle-go/internal/monitor"

	"github.com/spf13/cobra"
)

var wakeDryRun bool

var wakeCmd = &cobra.Command{
	Use:   "wake <site>",
	Short: "Click the wake-up button of one Streamlit app without verifying",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		site, err := findSite(args[0])
		if err != nil {
			return err
		}

		chrome, err := newBrowser(ctx)
		if err != nil {
			return err
		}
		defer chrome.Close()

		siteMonitor, err := monitor.NewSiteMonitor(chrome, settings.MonitorOptions(wakeDryRun), logger)
		if err != nil {
			return exitWith(ExitErrorConfig, err)
		}

		result := siteMonitor.Wake(ctx, site)
		fmt.Printf("%s %-20s %s\n", result.Status.Glyph(), result.Name, result.Status)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(wakeCmd)
	wakeCmd.Flags().BoolVar(&wakeDryRun, "dry-run", false, "Load the site but skip the click")
}
