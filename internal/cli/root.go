// Package cli wires the cobra command tree for the dropfetch binary.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dropfetch/dropfetch/internal/config"
	"github.com/dropfetch/dropfetch/internal/logger"
)

var cfgPath string

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dropfetch",
		Short: "Download Dropbox shared folders with hash verification",
		Long: `dropfetch downloads the files of a Dropbox shared folder link into a
local directory. Files already present with a matching size and Dropbox
content hash are skipped, so interrupted runs can simply be repeated.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: search standard locations)")

	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newUnlockCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the CLI and returns the process exit code
func Execute() int {
	defer logger.Shutdown()

	if err := NewRootCmd().Execute(); err != nil {
		return 1
	}
	return 0
}

// loadConfig loads the configuration honoring the --config flag
func loadConfig() (*config.Config, error) {
	return config.Load(cfgPath)
}

// initLogger initializes the global logger from the config
func initLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		File: logger.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			MaxBackups: cfg.Log.File.MaxBackups,
			Compress:   cfg.Log.File.Compress,
		},
	})
}

// journalDir resolves the journal directory, defaulting to the user
// config directory
func journalDir(cfg *config.Config) (string, error) {
	if cfg.Journal.Dir != "" {
		return cfg.Journal.Dir, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config dir for journal: %w", err)
	}
	return filepath.Join(configDir, "dropfetch"), nil
}
