package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"tickle-go/internal/api"
	"tickle-go/internal/configuration"
	"tickle-go/internal/models"
	"tickle-go/internal/net/database"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the recorded check history over HTTP",
	Long: `Start a read-only API over the history database:

  GET /health
  GET /api/tickle/sites
  GET /api/tickle/reports[?name=<site>&limit=<n>]

It never runs checks; keep scheduling 'tickle check' separately.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.InitializeDatabase(settings.Database)
		if err != nil {
			return exitWith(ExitErrorConnection, err)
		}
		defer db.Close()

		sites, _, err := configuration.LoadSites(settings.SitesFile, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("serving without site list")
			sites = []models.Site{}
		}

		gin.SetMode(gin.ReleaseMode)
		server := api.NewServer(api.ServerConfig{
			Bind:  settings.API.Bind,
			Port:  settings.API.Port,
			Sites: sites,
		}, db, logger)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case err := <-errCh:
			if err != nil {
				return exitWith(ExitErrorConnection, err)
			}
		case <-quit:
			server.Shutdown()
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
