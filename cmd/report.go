package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tickle-go/internal/export"
	"tickle-go/internal/models"
	"tickle-go/internal/net/database"

	"github.com/spf13/cobra"
)

var (
	reportName  string
	reportLimit int
	reportPDF   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate monitoring report",
	Long: `Generate a JSON report of the recorded check history.

Without a name flag, it reports the latest status of every checked site.
With a name flag, it provides the history of that site, newest last.
With --pdf, the report is written as a PDF file instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.InitializeDatabase(settings.Database)
		if err != nil {
			models.Response{
				Message: "failed to initialize sqlite database",
			}.Print()
			return exitWith(ExitErrorConnection, err)
		}
		defer db.Close()

		summaries, err := db.Summaries()
		if err != nil {
			return exitWith(ExitErrorConnection, err)
		}

		var history *models.SiteHistory
		if reportName != "" {
			history, err = db.History(reportName, reportLimit)
			if errors.Is(err, database.ErrNotFound) {
				models.Response{
					Message: "Record not found",
				}.Print()
				return exitWith(ExitErrorInvalidArgs, err)
			}
			if err != nil {
				return exitWith(ExitErrorConnection, err)
			}

			// Reverse record
			for i, j := 0, len(history.Histories)-1; i < j; i, j = i+1, j-1 {
				history.Histories[i], history.Histories[j] = history.Histories[j], history.Histories[i]
			}
		}

		if reportPDF != "" {
			pdfReport := export.Report{GeneratedAt: time.Now(), Summaries: summaries}
			if history != nil {
				pdfReport.Histories = []models.SiteHistory{*history}
			}
			if err := export.WriteFile(reportPDF, pdfReport); err != nil {
				return err
			}
			models.Response{Message: "report written", Data: reportPDF}.Print()
			return nil
		}

		var output []byte
		if history != nil {
			output, err = json.Marshal(history)
		} else {
			output, err = json.Marshal(summaries)
		}
		if err != nil {
			models.Response{
				Message: "Error while encoding result",
			}.Print()
			return err
		}

		fmt.Println(string(output))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportName, "name", "n", "", "Site name")
	reportCmd.Flags().IntVarP(&reportLimit, "limit", "l", 100, "Maximum number of history records")
	reportCmd.Flags().StringVar(&reportPDF, "pdf", "", "Write the report to this PDF file")
}
