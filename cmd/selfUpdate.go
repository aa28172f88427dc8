package cmd

import (
	"errors"
	"fmt"
	"runtime"

	"tickle-go/internal/selfupdate"

	"github.com/spf13/cobra"
)

var (
	updateDryRun bool
	updateForce  bool
)

// selfUpdateCmd represents the self-update command
var selfUpdateCmd = &cobra.Command{
	Use:   "self-update",
	Short: "Update the tickle binary to the latest version",
	Long: `Download the latest tickle release, verify its checksum and replace the
running binary. With --dry-run the release is downloaded and verified but
nothing is replaced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runtime.GOOS != "linux" {
			return exitWith(ExitErrorInvalidArgs, errors.New("self-update is only supported on Linux"))
		}

		updater := selfupdate.New(logger)
		switch err := updater.Run(cmd.Context(), VERSION, updateDryRun, updateForce); {
		case errors.Is(err, selfupdate.ErrUpToDate):
			return nil
		case err != nil:
			return exitWith(ExitErrorConnection, fmt.Errorf("self-update failed: %w", err))
		}

		if !updateDryRun {
			logger.Info().Str("from", VERSION).Msg("tickle updated")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(selfUpdateCmd)
	selfUpdateCmd.Flags().BoolVar(&updateDryRun, "dry-run", false, "Download and verify the release without replacing the binary")
	selfUpdateCmd.Flags().BoolVar(&updateForce, "force", false, "Delete the previous binary without asking")
}
