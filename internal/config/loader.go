package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/dropfetch/dropfetch/internal/domain"
)

// DefaultRetries is the per-file attempt limit when not configured
const DefaultRetries = 5

// DefaultConfigPaths returns the default paths to search for config files
func DefaultConfigPaths() []string {
	paths := []string{
		".",
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "dropfetch"))
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "dropfetch"))
		paths = append(paths, filepath.Join(homeDir, ".dropfetch"))
	}

	return paths
}

// Load reads and parses a configuration file. If path is empty it
// searches the default locations for config.yaml; a missing file is
// not an error since everything can come from flags and environment.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if path != "" {
				return nil, domain.ErrConfigNotFound
			}
			// No config file anywhere, fall through to defaults and env
		} else if os.IsNotExist(err) {
			return nil, domain.ErrConfigNotFound
		} else {
			return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
		}
	}

	return unmarshal(v)
}

// LoadFromString parses configuration from a YAML string
func LoadFromString(yamlContent string) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(strings.NewReader(yamlContent)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	return unmarshal(v)
}

// newViper creates a viper instance with defaults and env binding.
// Every key can be overridden via DROPFETCH_* variables, e.g.
// DROPFETCH_AUTH_ACCESS_TOKEN.
func newViper() *viper.Viper {
	v := viper.New()

	// Defaults double as key registrations: viper only applies env
	// overrides during Unmarshal for keys it already knows about
	v.SetDefault("link", "")
	v.SetDefault("save_dir", "")
	v.SetDefault("retries", DefaultRetries)
	v.SetDefault("fail_on_error", false)
	v.SetDefault("auth.access_token", "")
	v.SetDefault("auth.app_key", "")
	v.SetDefault("auth.app_secret", "")
	v.SetDefault("auth.token_path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", "")
	v.SetDefault("log.file.max_size_mb", 10)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.compress", false)
	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.dir", "")

	v.SetEnvPrefix("DROPFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	if cfg.SaveDir != "" {
		cfg.SaveDir = ExpandPath(cfg.SaveDir)
	}
	if cfg.Auth.TokenPath != "" {
		cfg.Auth.TokenPath = ExpandPath(cfg.Auth.TokenPath)
	}
	if cfg.Journal.Dir != "" {
		cfg.Journal.Dir = ExpandPath(cfg.Journal.Dir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
