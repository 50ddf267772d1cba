// Package planner computes the download plan: the remote listing
// minus entries already satisfied on local disk.
package planner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dropfetch/dropfetch/internal/core/contenthash"
	"github.com/dropfetch/dropfetch/internal/domain"
)

// Planner filters remote entries against local disk state
type Planner struct{}

// New creates a planner
func New() *Planner {
	return &Planner{}
}

// Build computes the download plan for a full listing. Entries keep
// their original listing order. A folder entry or an entry of unknown
// type is fatal to the whole plan, not skipped.
func (p *Planner) Build(ctx context.Context, link string, entries []domain.RemoteEntry, saveDir string) (*domain.DownloadPlan, error) {
	plan := &domain.DownloadPlan{
		Link:    link,
		Entries: make([]domain.RemoteEntry, 0, len(entries)),
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		switch entry.Type {
		case domain.EntryTypeFile:
			plan.Stats.TotalFound++

			satisfied, err := p.satisfiedLocally(ctx, entry, saveDir)
			if err != nil {
				return nil, fmt.Errorf("checking local copy of %s: %w", entry.Name, err)
			}
			if satisfied {
				plan.Stats.Skipped++
				continue
			}

			plan.Stats.BytesToDownload += entry.Size
			plan.Entries = append(plan.Entries, entry)

		case domain.EntryTypeFolder:
			return nil, fmt.Errorf("folder %q: %w", entry.Name, domain.ErrFolderNotSupported)

		default:
			return nil, fmt.Errorf("entry %q: %w", entry.Name, domain.ErrUnknownEntryType)
		}
	}

	return plan, nil
}

// satisfiedLocally reports whether saveDir/name already holds the
// entry's exact content: the file must exist, match the remote size,
// and match the remote content hash
func (p *Planner) satisfiedLocally(ctx context.Context, entry domain.RemoteEntry, saveDir string) (bool, error) {
	path := filepath.Join(saveDir, entry.Name)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() || info.Size() != entry.Size {
		return false, nil
	}

	// Size matches; the hash check is the authoritative comparison
	return contenthash.VerifyFile(ctx, path, entry.ContentHash)
}
