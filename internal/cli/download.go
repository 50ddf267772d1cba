package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropfetch/dropfetch/internal/config"
	"github.com/dropfetch/dropfetch/internal/domain"
	"github.com/dropfetch/dropfetch/internal/journal"
	"github.com/dropfetch/dropfetch/internal/lock"
	"github.com/dropfetch/dropfetch/internal/logger"
	"github.com/dropfetch/dropfetch/internal/progress"
	"github.com/dropfetch/dropfetch/internal/remote"
	"github.com/dropfetch/dropfetch/internal/remote/dropbox"
	"github.com/dropfetch/dropfetch/internal/service"
)

func newDownloadCmd() *cobra.Command {
	var (
		link        string
		saveDir     string
		retries     int
		failOnError bool
		accessToken string
		useJournal  bool
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   "download [link]",
		Short: "Download all files of a shared folder link",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// Flags override the config file
			if len(args) > 0 {
				cfg.Link = args[0]
			}
			if cmd.Flags().Changed("link") {
				cfg.Link = link
			}
			if cmd.Flags().Changed("save-dir") {
				cfg.SaveDir = config.ExpandPath(saveDir)
			}
			if cmd.Flags().Changed("retries") {
				cfg.Retries = retries
			}
			if cmd.Flags().Changed("fail-on-error") {
				cfg.FailOnError = failOnError
			}
			if cmd.Flags().Changed("access-token") {
				cfg.Auth.AccessToken = accessToken
			}
			if cmd.Flags().Changed("journal") {
				cfg.Journal.Enabled = useJournal
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if cfg.Link == "" {
				return fmt.Errorf("%w: no shared link given (argument, config, or DROPFETCH_LINK)", domain.ErrConfigInvalid)
			}
			if cfg.SaveDir == "" {
				return fmt.Errorf("%w: no save directory given (--save-dir, config, or DROPFETCH_SAVE_DIR)", domain.ErrConfigInvalid)
			}
			if !cfg.HasCredentials() {
				return domain.ErrMissingCredentials
			}

			if err := initLogger(cfg); err != nil {
				return err
			}

			return runDownload(cmd, cfg, quiet)
		},
	}

	cmd.Flags().StringVar(&link, "link", "", "shared folder link (alternative to the positional argument)")
	cmd.Flags().StringVarP(&saveDir, "save-dir", "d", "", "directory to download into")
	cmd.Flags().IntVar(&retries, "retries", config.DefaultRetries, "maximum attempts per file")
	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "exit non-zero when any file failed")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "Dropbox access token (overrides config)")
	cmd.Flags().BoolVar(&useJournal, "journal", false, "record this run in the history journal")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")

	return cmd
}

func runDownload(cmd *cobra.Command, cfg *config.Config, quiet bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Get()

	runLock, err := lock.New(cfg.SaveDir)
	if err != nil {
		return err
	}
	if err := runLock.Acquire(cfg.Link); err != nil {
		return err
	}
	defer func() {
		if err := runLock.Release(); err != nil {
			log.Warn("failed to release run lock", "error", err)
		}
	}()

	var reporter progress.Reporter = progress.NullReporter{}
	if !quiet {
		reporter = progress.NewConsoleReporter(cmd.OutOrStdout())
	}

	svc, err := newRemoteService(ctx, cfg, reporter)
	if err != nil {
		return err
	}
	defer svc.Close()

	engine := service.NewEngine(svc,
		service.WithReporter(reporter),
		service.WithMaxRetries(cfg.Retries),
	)

	start := time.Now()
	summary, runErr := engine.Run(ctx, cfg.Link, cfg.SaveDir)

	if cfg.Journal.Enabled {
		recordRun(cfg, summary, start, runErr)
	}

	if runErr != nil {
		return runErr
	}

	if summary.Failed > 0 && cfg.FailOnError {
		return fmt.Errorf("%d of %d files failed to download", summary.Failed, summary.Found)
	}
	return nil
}

// newRemoteService builds the Dropbox client, preferring a static
// access token over the OAuth refresh flow
func newRemoteService(ctx context.Context, cfg *config.Config, reporter progress.Reporter) (remote.Service, error) {
	if cfg.Auth.AccessToken != "" {
		return dropbox.NewWithAccessToken(cfg.Auth.AccessToken, dropbox.WithReporter(reporter)), nil
	}

	authn := dropbox.NewAuthenticator(cfg.Auth.AppKey, cfg.Auth.AppSecret, cfg.Auth.TokenPath)
	return dropbox.New(ctx, authn, dropbox.WithReporter(reporter))
}

// recordRun writes the run to the journal; journal problems are
// logged, never fatal
func recordRun(cfg *config.Config, summary domain.RunSummary, start time.Time, runErr error) {
	log := logger.Get()

	dir, err := journalDir(cfg)
	if err != nil {
		log.Warn("journal disabled for this run", "error", err)
		return
	}

	j, err := journal.Open(dir)
	if err != nil {
		log.Warn("failed to open journal", "error", err)
		return
	}
	defer j.Close()

	status := journal.StatusForSummary(summary)
	errText := ""
	if runErr != nil {
		status = "failed"
		errText = runErr.Error()
	}

	record := journal.RunRecord{
		Link:       cfg.Link,
		SaveDir:    cfg.SaveDir,
		StartTime:  start,
		EndTime:    time.Now(),
		Status:     status,
		Found:      summary.Found,
		Skipped:    summary.Skipped,
		Downloaded: summary.Downloaded,
		Failed:     summary.Failed,
		Bytes:      summary.Bytes,
		Error:      errText,
	}

	if _, err := j.RecordRun(record, summary.Failures); err != nil {
		log.Warn("failed to record run in journal", "error", err)
	}
}
