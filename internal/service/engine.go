// Package service orchestrates a download run: paginated listing,
// plan construction, and sequential downloads with bounded retries
// and post-download verification.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dropfetch/dropfetch/internal/core/contenthash"
	"github.com/dropfetch/dropfetch/internal/core/planner"
	"github.com/dropfetch/dropfetch/internal/domain"
	"github.com/dropfetch/dropfetch/internal/logger"
	"github.com/dropfetch/dropfetch/internal/progress"
	"github.com/dropfetch/dropfetch/internal/remote"
)

const (
	// DefaultMaxRetries is the per-file attempt budget
	DefaultMaxRetries = 5

	// DefaultRetryDelay is the fixed pause between attempts on the
	// same file
	DefaultRetryDelay = time.Second
)

// Engine reconciles a remote shared-folder listing with local disk
// and executes the resulting download plan. Entries are processed
// strictly sequentially; each file is fully resolved before the next
// begins.
type Engine struct {
	svc        remote.Service
	planner    *planner.Planner
	reporter   progress.Reporter
	maxRetries int
	retryDelay time.Duration
}

// Option configures an Engine
type Option func(*Engine)

// WithReporter sets the progress reporter
func WithReporter(r progress.Reporter) Option {
	return func(e *Engine) {
		e.reporter = r
	}
}

// WithMaxRetries sets the per-file attempt budget
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

// WithRetryDelay sets the pause between attempts on the same file
func WithRetryDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.retryDelay = d
		}
	}
}

// NewEngine creates an engine on top of a remote storage service
func NewEngine(svc remote.Service, opts ...Option) *Engine {
	e := &Engine{
		svc:        svc,
		planner:    planner.New(),
		reporter:   progress.NullReporter{},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FetchEntries enumerates all entries under the shared link across
// listing pages and returns the download plan: file entries not
// already satisfied at saveDir. Listing-phase errors abort the whole
// run; a folder entry or unknown entry type is fatal, not skipped.
func (e *Engine) FetchEntries(ctx context.Context, link, saveDir string) (*domain.DownloadPlan, error) {
	log := logger.Get()
	log.Debug("fetching entries", "link", link, "save_dir", saveDir)

	var entries []domain.RemoteEntry

	page, err := e.svc.ListFolder(ctx, "", link)
	for {
		if err != nil {
			return nil, fmt.Errorf("listing shared folder: %w", err)
		}

		entries = append(entries, page.Entries...)
		e.reporter.ListingProgress(len(entries))

		if !page.HasMore {
			break
		}
		page, err = e.svc.ListFolderContinue(ctx, page.Cursor)
	}

	plan, err := e.planner.Build(ctx, link, entries, saveDir)
	if err != nil {
		return nil, err
	}

	log.Info("download plan created",
		"found", plan.Stats.TotalFound,
		"to_download", plan.ToDownload(),
		"skipped", plan.Stats.Skipped,
		"bytes", plan.Stats.BytesToDownload,
	)
	e.reporter.SetTotal(plan.ToDownload(), plan.Stats.BytesToDownload)

	return plan, nil
}

// DownloadEntries executes the plan in order. Each entry gets up to
// maxRetries attempts; a file that exhausts its attempts is reported
// and the run moves on. The returned summary always reflects the
// whole run; the error is non-nil only for context cancellation.
func (e *Engine) DownloadEntries(ctx context.Context, plan *domain.DownloadPlan, saveDir string) (domain.RunSummary, error) {
	log := logger.Get()
	summary := domain.RunSummary{
		Found:   plan.Stats.TotalFound,
		Skipped: plan.Stats.Skipped,
	}

	for _, entry := range plan.Entries {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		e.reporter.Start(entry.Name, entry.Size)
		result := e.downloadOne(ctx, plan.Link, entry, saveDir)

		if result.Err != nil {
			if errors.Is(result.Err, context.Canceled) || errors.Is(result.Err, context.DeadlineExceeded) {
				return summary, result.Err
			}
			log.Error("download failed",
				"name", entry.Name,
				"attempts", result.Attempts,
				"error", result.Err,
			)
			e.reporter.Failed(entry.Name, result.Err)
			summary.Failed++
			summary.Failures = append(summary.Failures, result)
			continue
		}

		log.Debug("download verified", "name", entry.Name, "size", entry.Size, "attempts", result.Attempts)
		e.reporter.Complete(entry.Name)
		summary.Downloaded++
		summary.Bytes += entry.Size
	}

	e.reporter.Summary(summary)
	return summary, nil
}

// Run composes the listing and download phases
func (e *Engine) Run(ctx context.Context, link, saveDir string) (domain.RunSummary, error) {
	plan, err := e.FetchEntries(ctx, link, saveDir)
	if err != nil {
		return domain.RunSummary{}, err
	}
	return e.DownloadEntries(ctx, plan, saveDir)
}

// downloadOne fetches and verifies a single entry with bounded
// retries. On a hash mismatch the corrupt file is deleted before the
// next attempt; on final failure no file is left at the destination.
func (e *Engine) downloadOne(ctx context.Context, link string, entry domain.RemoteEntry, saveDir string) domain.FileResult {
	log := logger.Get()
	destPath := filepath.Join(saveDir, entry.Name)
	result := domain.FileResult{Name: entry.Name, Size: entry.Size}

	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		result.Attempts = attempt

		err := e.fetchAndVerify(ctx, link, entry, destPath)
		if err == nil {
			result.Err = nil
			return result
		}
		result.Err = err

		// Whatever failed, do not leave a partial or corrupt file
		// behind for the next attempt (or the next run) to trust
		if rmErr := os.Remove(destPath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn("failed to remove partial file", "path", destPath, "error", rmErr)
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return result
		}

		if attempt == e.maxRetries {
			break
		}

		if errors.Is(err, domain.ErrCredentialExpired) {
			refreshed, refreshErr := e.svc.RefreshAccessTokenIfExpired(ctx)
			if refreshErr != nil {
				// Not fatal: retry with the old credential
				log.Warn("token refresh failed", "error", refreshErr)
			} else if refreshed {
				log.Info("access token refreshed, retrying", "name", entry.Name)
			}
		}

		e.reporter.Retry(entry.Name, attempt, err)
		select {
		case <-ctx.Done():
			result.Err = ctx.Err()
			return result
		case <-time.After(e.retryDelay):
		}
	}

	return result
}

// fetchAndVerify performs one transport fetch followed by a content
// hash check. Both failure classes are returned as plain error values
// for the retry loop to inspect.
func (e *Engine) fetchAndVerify(ctx context.Context, link string, entry domain.RemoteEntry, destPath string) error {
	if err := e.svc.FetchSharedLinkFile(ctx, link, "/"+entry.Name, destPath); err != nil {
		return err
	}

	ok, err := contenthash.VerifyFile(ctx, destPath, entry.ContentHash)
	if err != nil {
		return fmt.Errorf("verifying %s: %w", entry.Name, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", entry.Name, domain.ErrHashMismatch)
	}

	return nil
}
