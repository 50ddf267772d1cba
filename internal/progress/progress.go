// Package progress reports per-file and overall run progress to the
// user. The engine drives a Reporter; the console implementation
// renders single-line carriage-return updates.
package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/dropfetch/dropfetch/internal/domain"
)

// Reporter handles progress reporting for a download run
type Reporter interface {
	// ListingProgress reports entries seen so far during the
	// listing phase
	ListingProgress(totalFound int)

	// SetTotal sets the number of files and bytes in the plan
	SetTotal(totalFiles int, totalBytes int64)

	// Start begins tracking a file transfer
	Start(name string, size int64)

	// Update reports bytes transferred for the current file
	Update(bytesTransferred int64)

	// Complete marks the current transfer as verified and done
	Complete(name string)

	// Retry reports a failed attempt that will be retried
	Retry(name string, attempt int, err error)

	// Failed reports a file that exhausted all retry attempts
	Failed(name string, err error)

	// Summary reports the final run outcome
	Summary(s domain.RunSummary)
}

// ConsoleReporter renders progress to a writer, one line per event,
// overwriting in-progress lines with carriage returns
type ConsoleReporter struct {
	mu          sync.Mutex
	w           io.Writer
	totalFiles  int
	currentFile int
}

// NewConsoleReporter creates a reporter writing to w
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w}
}

func (r *ConsoleReporter) ListingProgress(totalFound int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "Listed %d entries\r", totalFound)
}

func (r *ConsoleReporter) SetTotal(totalFiles int, totalBytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalFiles = totalFiles
	r.currentFile = 0
	fmt.Fprintf(r.w, "Found %d files (%s) to download\n", totalFiles, FormatBytes(totalBytes))
}

func (r *ConsoleReporter) Start(name string, size int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentFile++
	fmt.Fprintf(r.w, "Downloading %d/%d: %s (%s)\r", r.currentFile, r.totalFiles, name, FormatBytes(size))
}

func (r *ConsoleReporter) Update(bytesTransferred int64) {
	// Byte-level updates are not rendered on the console; the
	// per-file line is enough for a sequential tool
}

func (r *ConsoleReporter) Complete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "Downloaded %d/%d: %s\n", r.currentFile, r.totalFiles, name)
}

func (r *ConsoleReporter) Retry(name string, attempt int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "Failed to download %s: %v. Retrying...\r", name, err)
}

func (r *ConsoleReporter) Failed(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "Failed to download %s: %v. Skipping...\n", name, err)
}

func (r *ConsoleReporter) Summary(s domain.RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "Done: %d downloaded, %d skipped, %d failed (%s)\n",
		s.Downloaded, s.Skipped, s.Failed, FormatBytes(s.Bytes))
}

// NullReporter is a no-op reporter
type NullReporter struct{}

func (NullReporter) ListingProgress(totalFound int)              {}
func (NullReporter) SetTotal(totalFiles int, totalBytes int64)   {}
func (NullReporter) Start(name string, size int64)               {}
func (NullReporter) Update(bytesTransferred int64)               {}
func (NullReporter) Complete(name string)                        {}
func (NullReporter) Retry(name string, attempt int, err error)   {}
func (NullReporter) Failed(name string, err error)               {}
func (NullReporter) Summary(s domain.RunSummary)                 {}

// Writer wraps an io.Writer to report write progress
type Writer struct {
	writer      io.Writer
	reporter    Reporter
	transferred int64
}

// NewWriter creates a progress-tracking writer
func NewWriter(w io.Writer, reporter Reporter) *Writer {
	return &Writer{
		writer:   w,
		reporter: reporter,
	}
}

// Write implements io.Writer
func (pw *Writer) Write(p []byte) (n int, err error) {
	n, err = pw.writer.Write(p)
	if n > 0 {
		pw.transferred += int64(n)
		if pw.reporter != nil {
			pw.reporter.Update(pw.transferred)
		}
	}
	return n, err
}

// FormatBytes formats bytes into a human-readable string
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
