package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"tickle-go/internal/models"
	"tickle-go/internal/net/database"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var listFormat string

type siteListing struct {
	models.SiteSpec `yaml:",inline"`
	LastStatus      models.Status `json:"last_status,omitempty" yaml:"last_status,omitempty"`
	LastCheck       *time.Time    `json:"last_check,omitempty" yaml:"last_check,omitempty"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured sites with their last known status",
	RunE: func(cmd *cobra.Command, args []string) error {
		sites, _, err := loadSites(nil)
		if err != nil {
			return err
		}

		listings := make([]siteListing, 0, len(sites))
		latest := lastKnownStatuses()
		for _, site := range sites {
			listing := siteListing{SiteSpec: site.Spec()}
			if record, ok := latest[site.Name()]; ok {
				checkedAt := record.CheckedAt
				listing.LastStatus = record.Status
				listing.LastCheck = &checkedAt
			}
			listings = append(listings, listing)
		}

		switch strings.ToLower(listFormat) {
		case "json":
			data, err := json.MarshalIndent(listings, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
		case "yaml":
			data, err := yaml.Marshal(listings)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
		case "table", "":
			printListingTable(listings, time.Now())
		default:
			return exitWith(ExitErrorInvalidArgs, fmt.Errorf("unknown format %q", listFormat))
		}

		return nil
	},
}

// lastKnownStatuses reads the history database if it already exists.
func lastKnownStatuses() map[string]models.CheckRecord {
	if _, err := os.Stat(settings.Database); err != nil {
		return nil
	}

	db, err := database.InitializeDatabase(settings.Database)
	if err != nil {
		logger.Warn().Err(err).Msg("history database unavailable")
		return nil
	}
	defer db.Close()

	latest, err := db.LatestRecords()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read last statuses")
		return nil
	}
	return latest
}

func printListingTable(listings []siteListing, now time.Time) {
	fmt.Printf("Configured sites (%d):\n", len(listings))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tURL\tFLAGS\tLAST STATUS\tLAST CHECK")
	for _, l := range listings {
		var flags []string
		if l.IsStreamlit {
			flags = append(flags, "streamlit")
		}
		if l.LogRaw {
			flags = append(flags, "debug")
		}

		status, age := "-", "never"
		if l.LastCheck != nil {
			status = fmt.Sprintf("%s %s", l.LastStatus.Glyph(), l.LastStatus)
			age = units.HumanDuration(now.Sub(*l.LastCheck)) + " ago"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.Name, l.URL, strings.Join(flags, ","), status, age)
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "Output format (table, json, yaml)")
}
