package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tickle-go/internal/diagnostics"
	"tickle-go/internal/helper"
	"tickle-go/internal/incident"
	"tickle-go/internal/models"
	"tickle-go/internal/monitor"
	"tickle-go/internal/net"
	"tickle-go/internal/net/database"
	"tickle-go/internal/report"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	checkSites     []string
	checkDryRun    bool
	checkNoBrowser bool
	checkProgress  bool
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [site...]",
	Short: "Check the configured sites once and wake up sleeping Streamlit apps",
	Long: `The 'check' command loads every site (or the named ones) in a private
browser context, looks for the expected content and, for Streamlit apps that
are asleep, clicks the wake-up button and checks again.

Results are printed, appended to the report log, stored in the history
database and, on status changes, sent to the configured webhook.

Example:
  tickle check
  tickle check lookout --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sites, _, err := loadSites(append(args, checkSites...))
		if err != nil {
			return err
		}

		if checkNoBrowser {
			results := monitor.Plan(sites)
			at := time.Now()
			printResults(results)
			writeReport(at, results)
			return nil
		}

		chrome, err := newBrowser(ctx)
		if err != nil {
			return err
		}
		defer chrome.Close()

		opts := settings.MonitorOptions(checkDryRun)
		opts.Dumper = diagnostics.NewDumper(settings.DumpDir, logger)

		if checkProgress {
			bar := progressbar.NewOptions(len(sites),
				progressbar.OptionSetDescription("Checking sites"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			opts.OnResult = func(models.Result) { bar.Add(1) }
		}

		siteMonitor, err := monitor.NewSiteMonitor(chrome, opts, logger)
		if err != nil {
			return exitWith(ExitErrorConfig, err)
		}

		results := siteMonitor.CheckAll(ctx, sites)
		at := time.Now()

		printResults(results)
		writeReport(at, results)
		recordHistory(ctx, at, results)

		return nil
	},
}

func printResults(results []models.Result) {
	fmt.Println("\nCheck Results:")
	fmt.Println("----------------------------------------")
	for _, r := range results {
		line := fmt.Sprintf("%s %-20s %s", r.Status.Glyph(), r.Name, r.Status)
		if r.Detail != "" && !r.Status.Healthy() {
			line += fmt.Sprintf(" (%s)", r.Detail)
		}
		fmt.Println(line)
	}
}

func writeReport(at time.Time, results []models.Result) {
	if err := report.NewWriter(settings.ReportFile).Write(at, results); err != nil {
		logger.Error().Err(err).Msg("failed to write report log")
	}
}

// recordHistory stores the run and notifies status changes. Failures are
// logged and never change the outcome of the run.
func recordHistory(ctx context.Context, at time.Time, results []models.Result) {
	db, err := database.InitializeDatabase(settings.Database)
	if err != nil {
		logger.Error().Err(err).Msg("history database unavailable")
		return
	}
	defer db.Close()

	previous := map[string]models.Status{}
	latest, err := db.LatestRecords()
	if err != nil {
		logger.Error().Err(err).Msg("failed to read previous statuses")
	}
	for name, record := range latest {
		previous[name] = record.Status
	}

	runID := helper.GenerateRandomID()
	if err := db.SaveResults(runID, at, results); err != nil {
		logger.Error().Err(err).Msg("failed to save results")
	} else {
		logger.Debug().Str("run", runID).Int("results", len(results)).Msg("results saved")
	}

	events := incident.Detect(previous, results, at)
	if len(events) == 0 {
		return
	}

	notifier := net.NewNotifier(settings.Notify.Webhook.URL, settings.Notify.Webhook.Token, logger)
	if err := notifier.Notify(ctx, events); err != nil {
		logger.Error().Err(err).Msg("failed to send notifications")
	}
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringSliceVar(&checkSites, "site", nil, "Check only this site (repeatable)")
	checkCmd.Flags().BoolVar(&checkDryRun, "dry-run", false, "Check without clicking wake-up buttons")
	checkCmd.Flags().BoolVar(&checkNoBrowser, "no-browser", false, "Only report which sites would be checked")
	checkCmd.Flags().BoolVar(&checkProgress, "progress", false, "Show a progress bar while checking")
}
