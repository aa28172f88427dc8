package configuration

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"tickle-go/internal/helper"
	"tickle-go/internal/monitor"

	"github.com/spf13/viper"
)

const (
	CONFIG_PATH   = "config"
	SETTINGS_PATH = CONFIG_PATH + "/tickle.yml"
	SITES_PATH    = CONFIG_PATH + "/sites.json"
	LOG_PATH      = "logs"
	LOG_FILE      = LOG_PATH + "/uptime.log"
	REPORT_FILE   = LOG_PATH + "/uptime_report.log"
	DUMP_DIR      = LOG_PATH + "/raw_html"
	DB_PATH       = "data/tickle.db"
	ENV_PREFIX    = "TICKLE"
)

// AppConfig holds the paths given on the command line. Empty fields fall
// back to the settings file.
type AppConfig struct {
	SettingsFile string
	SitesFile    string
	DBFile       string
	LogLevel     string
}

var Config AppConfig

type BrowserSettings struct {
	Headless  bool   `mapstructure:"headless" yaml:"headless"`
	NoSandbox bool   `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	ExecPath  string `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
}

// TimeoutSettings are duration strings such as "15s" or "2m".
type TimeoutSettings struct {
	Navigation string `mapstructure:"navigation" yaml:"navigation"`
	Load       string `mapstructure:"load" yaml:"load"`
	Render     string `mapstructure:"render" yaml:"render"`
	FrameIdle  string `mapstructure:"frame_idle" yaml:"frame_idle"`
	Wakeup     string `mapstructure:"wakeup" yaml:"wakeup"`
	Settle     string `mapstructure:"settle" yaml:"settle"`
	Site       string `mapstructure:"site" yaml:"site"`
}

type WebhookSettings struct {
	URL   string `mapstructure:"url" yaml:"url"`
	Token string `mapstructure:"token" yaml:"token"`
}

type NotifySettings struct {
	Webhook WebhookSettings `mapstructure:"webhook" yaml:"webhook"`
}

type APISettings struct {
	Bind string `mapstructure:"bind" yaml:"bind"`
	Port int    `mapstructure:"port" yaml:"port"`
}

type Settings struct {
	SitesFile   string          `mapstructure:"sites_file" yaml:"sites_file"`
	ReportFile  string          `mapstructure:"report_file" yaml:"report_file"`
	LogFile     string          `mapstructure:"log_file" yaml:"log_file"`
	LogLevel    string          `mapstructure:"log_level" yaml:"log_level"`
	Database    string          `mapstructure:"database" yaml:"database"`
	DumpDir     string          `mapstructure:"dump_dir" yaml:"dump_dir"`
	Concurrency int             `mapstructure:"concurrency" yaml:"concurrency"`
	Browser     BrowserSettings `mapstructure:"browser" yaml:"browser"`
	Timeouts    TimeoutSettings `mapstructure:"timeouts" yaml:"timeouts"`
	Notify      NotifySettings  `mapstructure:"notify" yaml:"notify"`
	API         APISettings     `mapstructure:"api" yaml:"api"`
}

func DefaultSettings() Settings {
	return Settings{
		SitesFile:  SITES_PATH,
		ReportFile: REPORT_FILE,
		LogFile:    LOG_FILE,
		LogLevel:   "info",
		Database:   DB_PATH,
		DumpDir:    DUMP_DIR,
		Browser: BrowserSettings{
			Headless: true,
		},
		Timeouts: TimeoutSettings{
			Navigation: "15s",
			Load:       "10s",
			Render:     "3s",
			FrameIdle:  "10s",
			Wakeup:     "5s",
			Settle:     "3s",
			Site:       "2m",
		},
		API: APISettings{
			Bind: "127.0.0.1",
			Port: 8080,
		},
	}
}

// LoadSettings reads the settings file at path and applies TICKLE_*
// environment overrides. A missing file is an error only when required is
// set; otherwise the defaults are used.
func LoadSettings(path string, required bool) (Settings, error) {
	v := viper.New()
	setDefaults(v, DefaultSettings())

	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("log_level", ENV_PREFIX+"_LOG_LEVEL", "LOGLEVEL"); err != nil {
		return Settings{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			if required || !errors.As(err, &pathErr) {
				return Settings{}, fmt.Errorf("failed to read settings %s: %w", path, err)
			}
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings: %w", err)
	}

	return settings, nil
}

func setDefaults(v *viper.Viper, d Settings) {
	v.SetDefault("sites_file", d.SitesFile)
	v.SetDefault("report_file", d.ReportFile)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("database", d.Database)
	v.SetDefault("dump_dir", d.DumpDir)
	v.SetDefault("concurrency", d.Concurrency)

	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("browser.no_sandbox", d.Browser.NoSandbox)
	v.SetDefault("browser.exec_path", d.Browser.ExecPath)
	v.SetDefault("browser.user_agent", d.Browser.UserAgent)

	v.SetDefault("timeouts.navigation", d.Timeouts.Navigation)
	v.SetDefault("timeouts.load", d.Timeouts.Load)
	v.SetDefault("timeouts.render", d.Timeouts.Render)
	v.SetDefault("timeouts.frame_idle", d.Timeouts.FrameIdle)
	v.SetDefault("timeouts.wakeup", d.Timeouts.Wakeup)
	v.SetDefault("timeouts.settle", d.Timeouts.Settle)
	v.SetDefault("timeouts.site", d.Timeouts.Site)

	v.SetDefault("notify.webhook.url", d.Notify.Webhook.URL)
	v.SetDefault("notify.webhook.token", d.Notify.Webhook.Token)

	v.SetDefault("api.bind", d.API.Bind)
	v.SetDefault("api.port", d.API.Port)
}

// MonitorOptions converts the settings into orchestrator options. Duration
// strings that cannot be parsed fall back to the defaults.
func (s Settings) MonitorOptions(dryRun bool) monitor.Options {
	d := DefaultSettings().Timeouts
	t := s.Timeouts

	return monitor.Options{
		DryRun:            dryRun,
		Concurrency:       s.Concurrency,
		NavigationTimeout: helper.ParseDuration(t.Navigation, d.Navigation),
		LoadTimeout:       helper.ParseDuration(t.Load, d.Load),
		RenderDelay:       delay(t.Render, d.Render),
		FrameIdleTimeout:  helper.ParseDuration(t.FrameIdle, d.FrameIdle),
		WakeTimeout:       helper.ParseDuration(t.Wakeup, d.Wakeup),
		SettleDelay:       delay(t.Settle, d.Settle),
		SiteTimeout:       helper.ParseDuration(t.Site, d.Site),
	}
}

// delay parses a wait that may be switched off with "0".
func delay(input, defaultValue string) time.Duration {
	if strings.TrimSpace(input) == "0" {
		return 0
	}
	return helper.ParseDuration(input, defaultValue)
}
