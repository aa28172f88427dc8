package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"tickle-go/internal/browser"
	"tickle-go/internal/configuration"
	"tickle-go/internal/models"
	applog "tickle-go/pkg/log"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Constants for exit codes
const (
	ExitSuccess          = 0
	ExitErrorInvalidArgs = 1
	ExitErrorConnection  = 2
	ExitErrorConfig      = 3
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

func exitWith(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

var (
	settings  configuration.Settings
	logger    = zerolog.Nop()
	logCloser io.Closer
	newLogger = applog.New
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tickle",
	Short: "Keep hosted Streamlit dashboards awake",
	Long: `A command-line tool that checks whether hosted dashboards serve their
expected content and wakes up Streamlit apps that were put to sleep.

Each invocation runs once; schedule it with cron or a systemd timer.

Usage: tickle [--config=path/to/sites.json] check`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settingsRequired := cmd.Flags().Changed("settings")
		settings, err = configuration.LoadSettings(configuration.Config.SettingsFile, settingsRequired)
		if err != nil {
			return exitWith(ExitErrorConfig, err)
		}

		if configuration.Config.SitesFile != "" {
			settings.SitesFile = configuration.Config.SitesFile
		}
		if configuration.Config.DBFile != "" {
			settings.Database = configuration.Config.DBFile
		}
		if configuration.Config.LogLevel != "" {
			settings.LogLevel = configuration.Config.LogLevel
		}

		// Ensure sites file is absolute
		if !filepath.IsAbs(settings.SitesFile) {
			if absPath, err := filepath.Abs(settings.SitesFile); err == nil {
				settings.SitesFile = absPath
			}
		}

		logger, logCloser = newLogger(settings.LogFile, settings.LogLevel)
		return nil
	},
}

// execute runs the root command. The log file is closed whether or not the
// command failed.
func execute() error {
	err := rootCmd.Execute()
	closeLog()
	return err
}

func closeLog() {
	if logCloser != nil {
		logCloser.Close()
		logCloser = nil
	}
	logger = zerolog.Nop()
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := execute()
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	os.Exit(ExitErrorInvalidArgs)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configuration.Config.SitesFile, "config", "c", "", "Path to sites file (default from settings, "+configuration.SITES_PATH+")")
	rootCmd.PersistentFlags().StringVar(&configuration.Config.SettingsFile, "settings", configuration.SETTINGS_PATH, "Path to settings file")
	rootCmd.PersistentFlags().StringVarP(&configuration.Config.DBFile, "database", "", "", "Path to history database (default from settings, "+configuration.DB_PATH+")")
	rootCmd.PersistentFlags().StringVar(&configuration.Config.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// loadSites loads the sites file and keeps the ones named in names, in file
// order. Unknown names are an invalid-arguments error.
func loadSites(names []string) ([]models.Site, []configuration.Rejection, error) {
	sites, rejections, err := configuration.LoadSites(settings.SitesFile, logger)
	if err != nil {
		return nil, rejections, exitWith(ExitErrorConfig, fmt.Errorf("%s: %w", settings.SitesFile, err))
	}

	if len(names) == 0 {
		return sites, rejections, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	var selected []models.Site
	for _, site := range sites {
		if wanted[site.Name()] {
			selected = append(selected, site)
			delete(wanted, site.Name())
		}
	}

	for name := range wanted {
		return nil, rejections, exitWith(ExitErrorInvalidArgs, fmt.Errorf("site %q is not configured", name))
	}

	return selected, rejections, nil
}

func findSite(name string) (models.Site, error) {
	sites, _, err := loadSites([]string{name})
	if err != nil {
		return models.Site{}, err
	}
	return sites[0], nil
}

func newBrowser(ctx context.Context) (*browser.Chrome, error) {
	chrome, err := browser.NewChrome(ctx, browser.ChromeOptions{
		Headless:  settings.Browser.Headless,
		NoSandbox: settings.Browser.NoSandbox,
		ExecPath:  settings.Browser.ExecPath,
		UserAgent: settings.Browser.UserAgent,
	}, logger)
	if err != nil {
		return nil, exitWith(ExitErrorConnection, fmt.Errorf("failed to start browser: %w", err))
	}
	return chrome, nil
}
