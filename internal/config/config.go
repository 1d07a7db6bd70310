package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppName names the config directory and env prefix
const AppName = "dfox"

// Config holds all application configuration
type Config struct {
	General     GeneralConfig     `mapstructure:"general"`
	UI          UIConfig          `mapstructure:"ui"`
	Debug       DebugConfig       `mapstructure:"debug"`
	History     HistoryConfig     `mapstructure:"history"`
	Connections ConnectionsConfig `mapstructure:"connections"`
	Export      ExportConfig      `mapstructure:"export"`
	Runner      RunnerConfig      `mapstructure:"runner"`
}

type GeneralConfig struct {
	RowLimit       int           `mapstructure:"row_limit"`
	PageSize       int           `mapstructure:"page_size"`
	VisibleColumns int           `mapstructure:"visible_columns"`
	CopyDelimiter  string        `mapstructure:"copy_delimiter"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type UIConfig struct {
	Theme        string `mapstructure:"theme"`
	MouseEnabled bool   `mapstructure:"mouse_enabled"`
}

type DebugConfig struct {
	LogFile string `mapstructure:"log_file"`
	Verbose bool   `mapstructure:"verbose"`
	Buffer  int    `mapstructure:"buffer"`
}

type HistoryConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	MaxEntries        int    `mapstructure:"max_entries"`
	SaveFailedQueries bool   `mapstructure:"save_failed_queries"`
	Path              string `mapstructure:"path"`
}

type ConnectionsConfig struct {
	Remember      bool `mapstructure:"remember"`
	SavePasswords bool `mapstructure:"save_passwords"`
}

type ExportConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
}

type RunnerConfig struct {
	Workers int `mapstructure:"workers"`
	Buffer  int `mapstructure:"buffer"`
}

// GetDefaults returns a Config with all default values. Paths live under dir.
func GetDefaults(dir string) *Config {
	return &Config{
		General: GeneralConfig{
			RowLimit:       1000,
			PageSize:       10,
			VisibleColumns: 8,
			CopyDelimiter:  "\t",
			ConnectTimeout: 10 * time.Second,
		},
		UI: UIConfig{
			Theme:        "default",
			MouseEnabled: false,
		},
		Debug: DebugConfig{
			LogFile: filepath.Join(dir, "dfox-debug.log"),
			Verbose: false,
			Buffer:  200,
		},
		History: HistoryConfig{
			Enabled:           true,
			MaxEntries:        1000,
			SaveFailedQueries: true,
			Path:              filepath.Join(dir, "history.db"),
		},
		Connections: ConnectionsConfig{
			Remember:      true,
			SavePasswords: false,
		},
		Export: ExportConfig{
			Dir:    ".",
			Format: "csv",
		},
		Runner: RunnerConfig{
			Workers: 3,
			Buffer:  16,
		},
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("general.row_limit", d.General.RowLimit)
	v.SetDefault("general.page_size", d.General.PageSize)
	v.SetDefault("general.visible_columns", d.General.VisibleColumns)
	v.SetDefault("general.copy_delimiter", d.General.CopyDelimiter)
	v.SetDefault("general.connect_timeout", d.General.ConnectTimeout)
	v.SetDefault("ui.theme", d.UI.Theme)
	v.SetDefault("ui.mouse_enabled", d.UI.MouseEnabled)
	v.SetDefault("debug.log_file", d.Debug.LogFile)
	v.SetDefault("debug.verbose", d.Debug.Verbose)
	v.SetDefault("debug.buffer", d.Debug.Buffer)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.max_entries", d.History.MaxEntries)
	v.SetDefault("history.save_failed_queries", d.History.SaveFailedQueries)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("connections.remember", d.Connections.Remember)
	v.SetDefault("connections.save_passwords", d.Connections.SavePasswords)
	v.SetDefault("export.dir", d.Export.Dir)
	v.SetDefault("export.format", d.Export.Format)
	v.SetDefault("runner.workers", d.Runner.Workers)
	v.SetDefault("runner.buffer", d.Runner.Buffer)
}

// Load reads configuration. An explicit path must exist; otherwise
// config.yaml is searched in the user config dir, "." and "./config", and
// a missing file leaves the defaults in place. DFOX_ environment variables
// override both.
func Load(path string) (*Config, error) {
	dir, err := GetConfigPath()
	if err != nil {
		dir = "."
	}
	return load(path, dir)
}

func load(path, dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v, GetDefaults(dir))

	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can work with
func (c *Config) Validate() error {
	switch {
	case c.General.RowLimit < 1:
		return fmt.Errorf("general.row_limit must be positive, got %d", c.General.RowLimit)
	case c.General.PageSize < 1:
		return fmt.Errorf("general.page_size must be positive, got %d", c.General.PageSize)
	case c.General.VisibleColumns < 1:
		return fmt.Errorf("general.visible_columns must be positive, got %d", c.General.VisibleColumns)
	case c.General.CopyDelimiter == "":
		return fmt.Errorf("general.copy_delimiter must not be empty")
	case c.Runner.Workers < 1:
		return fmt.Errorf("runner.workers must be positive, got %d", c.Runner.Workers)
	case c.Runner.Buffer < 1:
		return fmt.Errorf("runner.buffer must be positive, got %d", c.Runner.Buffer)
	case c.Debug.Buffer < 1:
		return fmt.Errorf("debug.buffer must be positive, got %d", c.Debug.Buffer)
	}
	return nil
}

// GetConfigPath returns the user config directory path
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, AppName), nil
}
