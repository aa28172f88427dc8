package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"tickle-go/internal/configuration"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initSettingsForce bool

// initSettingsCmd represents the init-settings command
var initSettingsCmd = &cobra.Command{
	Use:   "init-settings [path]",
	Short: "Write a settings file with the default values",
	Long: `This command writes the default settings in YAML format to the settings
path (or the given path). Existing files are kept unless --force is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configuration.Config.SettingsFile
		if len(args) == 1 {
			path = args[0]
		}

		if _, err := os.Stat(path); err == nil && !initSettingsForce {
			return exitWith(ExitErrorInvalidArgs, fmt.Errorf("%s already exists, use --force to overwrite", path))
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return exitWith(ExitErrorConfig, err)
		}

		yamlData, err := settingsYAML(configuration.DefaultSettings())
		if err != nil {
			return fmt.Errorf("error marshalling to YAML: %w", err)
		}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return exitWith(ExitErrorConfig, err)
		}
		if err := os.WriteFile(path, yamlData, 0644); err != nil {
			return exitWith(ExitErrorConfig, fmt.Errorf("error writing YAML file: %w", err))
		}

		fmt.Printf("✅ Settings written to %s\n", path)
		return nil
	},
}

func settingsYAML(s configuration.Settings) ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(s); err != nil {
		return nil, err
	}

	node.HeadComment = "tickle-go settings\n" +
		"Durations accept s, m, h, d and M (30 days) units, e.g. 15s or 1m30s.\n" +
		"Every key can be overridden with a TICKLE_ environment variable,\n" +
		"e.g. TICKLE_TIMEOUTS_NAVIGATION=30s."

	return yaml.Marshal(&node)
}

func init() {
	rootCmd.AddCommand(initSettingsCmd)
	initSettingsCmd.Flags().BoolVar(&initSettingsForce, "force", false, "Overwrite an existing settings file")
}
