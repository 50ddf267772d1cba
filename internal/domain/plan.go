package domain

// DownloadPlan is the ordered set of file entries that must be
// fetched, computed once per run from the full remote listing minus
// entries already satisfied on local disk. Immutable once built.
type DownloadPlan struct {
	// Link is the shared link the plan was built against
	Link string

	// Entries to download, in original listing order
	Entries []RemoteEntry

	// Stats summary for reporting
	Stats PlanStats
}

// PlanStats provides summary statistics for a download plan
type PlanStats struct {
	// TotalFound is the number of file entries across all pages
	TotalFound int

	// Skipped is the number of entries already satisfied locally
	Skipped int

	// BytesToDownload is the total size of entries in the plan
	BytesToDownload int64
}

// ToDownload returns the number of entries in the plan
func (p *DownloadPlan) ToDownload() int {
	return len(p.Entries)
}

// FileResult records the outcome of one file in the download phase
type FileResult struct {
	Name     string
	Size     int64
	Attempts int
	Err      error
}

// RunSummary aggregates the outcome of a whole run
type RunSummary struct {
	Found      int
	Skipped    int
	Downloaded int
	Failed     int
	Bytes      int64

	// Failures holds the per-file results for entries that exhausted
	// all retry attempts
	Failures []FileResult
}
