package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dropfetch/dropfetch/internal/domain"
)

// Config represents the complete configuration for dropfetch
type Config struct {
	// Link is the Dropbox shared folder link to download
	Link string `mapstructure:"link"`

	// SaveDir is the local directory files are written into
	SaveDir string `mapstructure:"save_dir"`

	// Retries is the maximum number of attempts per file
	Retries int `mapstructure:"retries"`

	// FailOnError makes the process exit non-zero when any file
	// could not be downloaded
	FailOnError bool `mapstructure:"fail_on_error"`

	// Auth holds Dropbox credentials
	Auth AuthConfig `mapstructure:"auth"`

	// Log configures the logger
	Log LogConfig `mapstructure:"log"`

	// Journal configures the optional run history database
	Journal JournalConfig `mapstructure:"journal"`
}

// AuthConfig holds Dropbox credentials. Either a static access token
// or an app key/secret pair for the OAuth refresh flow.
type AuthConfig struct {
	AccessToken string `mapstructure:"access_token"`
	AppKey      string `mapstructure:"app_key"`
	AppSecret   string `mapstructure:"app_secret"`
	TokenPath   string `mapstructure:"token_path"`
}

// LogConfig configures log output
type LogConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig configures rotating file output
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// JournalConfig configures the run history database
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// Validate checks if the configuration is complete and consistent
func (c *Config) Validate() error {
	if c.Retries < 1 {
		return fmt.Errorf("%w: retries must be at least 1, got %d", domain.ErrConfigInvalid, c.Retries)
	}

	if c.Link != "" && !strings.HasPrefix(c.Link, "https://") {
		return fmt.Errorf("%w: link must be an https URL", domain.ErrConfigInvalid)
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: invalid log level: %s", domain.ErrConfigInvalid, c.Log.Level)
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: invalid log format: %s", domain.ErrConfigInvalid, c.Log.Format)
	}

	if c.Log.File.Enabled && c.Log.File.Path == "" {
		return fmt.Errorf("%w: log file output enabled without a path", domain.ErrConfigInvalid)
	}

	return nil
}

// HasCredentials reports whether any usable credentials are configured
func (c *Config) HasCredentials() bool {
	return c.Auth.AccessToken != "" || (c.Auth.AppKey != "" && c.Auth.AppSecret != "")
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			if len(path) > 1 && (path[1] == '/' || path[1] == filepath.Separator) {
				path = filepath.Join(home, path[2:])
			} else if len(path) == 1 {
				path = home
			}
		}
	}
	path = os.ExpandEnv(path)
	return filepath.Clean(path)
}
