// Package remote defines the narrow interface the sync engine uses to
// talk to the remote storage service. Implementations own their
// credential lifecycle internally and return domain-level errors for
// consistent handling.
package remote

import (
	"context"

	"github.com/dropfetch/dropfetch/internal/domain"
)

// Service is the remote storage collaborator consumed by the engine
type Service interface {
	// ListFolder starts a paginated enumeration of the entries under
	// a shared link. Callers iterate with ListFolderContinue until
	// HasMore is false.
	ListFolder(ctx context.Context, path, sharedLink string) (domain.ListingPage, error)

	// ListFolderContinue fetches the next page using the cursor from
	// a previous page
	ListFolderContinue(ctx context.Context, cursor string) (domain.ListingPage, error)

	// FetchSharedLinkFile downloads the file named remotePath under
	// the shared link directly into destPath, overwriting any
	// existing content
	FetchSharedLinkFile(ctx context.Context, sharedLink, remotePath, destPath string) error

	// RefreshAccessTokenIfExpired attempts a credential refresh and
	// reports whether one occurred. A failed refresh is not fatal;
	// the caller simply retries with the old credential.
	RefreshAccessTokenIfExpired(ctx context.Context) (bool, error)

	// Close releases any resources held by the service
	Close() error
}
