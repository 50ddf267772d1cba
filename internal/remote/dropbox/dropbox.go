// Package dropbox implements remote.Service against the Dropbox API
// using the files and sharing namespaces of the official SDK fork.
package dropbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/auth"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/sharing"
	"golang.org/x/oauth2"

	"github.com/dropfetch/dropfetch/internal/domain"
	"github.com/dropfetch/dropfetch/internal/progress"
	"github.com/dropfetch/dropfetch/internal/remote"
)

// Service talks to Dropbox and owns its credential lifecycle. In
// static-token mode refresh is a no-op; with an Authenticator the
// stored token is refreshed and the SDK clients are rebuilt when the
// access token rotates.
type Service struct {
	mu            sync.Mutex
	filesClient   files.Client
	sharingClient sharing.Client
	authn         *Authenticator
	token         *oauth2.Token
	reporter      progress.Reporter
}

// Option configures a Service
type Option func(*Service)

// WithReporter sets a reporter that receives byte-level transfer
// progress during fetches
func WithReporter(r progress.Reporter) Option {
	return func(s *Service) {
		s.reporter = r
	}
}

// NewWithAccessToken creates a service bound to a fixed access token.
// RefreshAccessTokenIfExpired never refreshes in this mode.
func NewWithAccessToken(accessToken string, opts ...Option) *Service {
	s := &Service{
		token:    &oauth2.Token{AccessToken: accessToken},
		reporter: progress.NullReporter{},
	}
	s.rebuildClients()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New creates a service backed by an Authenticator and its stored
// refreshable token
func New(ctx context.Context, authn *Authenticator, opts ...Option) (*Service, error) {
	token, err := authn.Token(ctx)
	if err != nil {
		return nil, err
	}

	s := &Service{
		authn:    authn,
		token:    token,
		reporter: progress.NullReporter{},
	}
	s.rebuildClients()
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// rebuildClients recreates the SDK clients for the current token.
// Caller must hold the mutex unless the service is not yet shared.
func (s *Service) rebuildClients() {
	config := dropbox.Config{
		Token:    s.token.AccessToken,
		LogLevel: dropbox.LogOff,
	}
	s.filesClient = files.New(config)
	s.sharingClient = sharing.New(config)
}

// clients returns the current SDK clients under the lock
func (s *Service) clients() (files.Client, sharing.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filesClient, s.sharingClient
}

// ListFolder starts enumerating the entries under a shared link
func (s *Service) ListFolder(ctx context.Context, path, sharedLink string) (domain.ListingPage, error) {
	if err := ctx.Err(); err != nil {
		return domain.ListingPage{}, err
	}

	arg := files.NewListFolderArg(path)
	arg.SharedLink = files.NewSharedLink(sharedLink)

	fc, _ := s.clients()
	res, err := fc.ListFolder(arg)
	if err != nil {
		return domain.ListingPage{}, mapError(err)
	}

	return listingPageFromResult(res), nil
}

// ListFolderContinue fetches the next page of a listing
func (s *Service) ListFolderContinue(ctx context.Context, cursor string) (domain.ListingPage, error) {
	if err := ctx.Err(); err != nil {
		return domain.ListingPage{}, err
	}

	fc, _ := s.clients()
	res, err := fc.ListFolderContinue(files.NewListFolderContinueArg(cursor))
	if err != nil {
		return domain.ListingPage{}, mapError(err)
	}

	return listingPageFromResult(res), nil
}

// FetchSharedLinkFile downloads one file under the shared link
// directly to destPath, overwriting any existing content
func (s *Service) FetchSharedLinkFile(ctx context.Context, sharedLink, remotePath, destPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !strings.HasPrefix(remotePath, "/") {
		remotePath = "/" + remotePath
	}

	_, sc := s.clients()
	_, content, err := sc.GetSharedLinkFile(&sharing.GetSharedLinkMetadataArg{
		Url:  sharedLink,
		Path: remotePath,
	})
	if err != nil {
		return mapError(err)
	}
	defer content.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}

	_, err = io.Copy(progress.NewWriter(f, s.reporter), content)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", destPath, err)
	}

	return nil
}

// RefreshAccessTokenIfExpired refreshes the stored token when a
// refresh token is available, and reports whether the access token
// actually rotated
func (s *Service) RefreshAccessTokenIfExpired(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.authn == nil || s.token == nil || s.token.RefreshToken == "" {
		return false, nil
	}

	refreshed, err := s.authn.Refresh(ctx, s.token)
	if err != nil {
		return false, err
	}
	if refreshed.AccessToken == s.token.AccessToken {
		return false, nil
	}

	s.token = refreshed
	s.rebuildClients()
	return true, nil
}

// Close releases any resources. The SDK clients hold none.
func (s *Service) Close() error {
	return nil
}

// listingPageFromResult converts an SDK listing result to the domain
// page. Entry types the planner does not support are passed through
// as folders or unknown entries so the listing phase can fail on them.
func listingPageFromResult(res *files.ListFolderResult) domain.ListingPage {
	page := domain.ListingPage{
		Entries: make([]domain.RemoteEntry, 0, len(res.Entries)),
		Cursor:  res.Cursor,
		HasMore: res.HasMore,
	}

	for _, md := range res.Entries {
		switch m := md.(type) {
		case *files.FileMetadata:
			page.Entries = append(page.Entries, domain.RemoteEntry{
				Name:        m.Name,
				Type:        domain.EntryTypeFile,
				Size:        int64(m.Size),
				ContentHash: m.ContentHash,
			})
		case *files.FolderMetadata:
			page.Entries = append(page.Entries, domain.RemoteEntry{
				Name: m.Name,
				Type: domain.EntryTypeFolder,
			})
		default:
			page.Entries = append(page.Entries, domain.RemoteEntry{
				Type: domain.EntryTypeUnknown,
			})
		}
	}

	return page
}

// mapError converts SDK errors to domain errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var authErr auth.AuthAPIError
	if errors.As(err, &authErr) && authErr.AuthError != nil {
		switch authErr.AuthError.Tag {
		case "expired_access_token":
			return fmt.Errorf("%w: %v", domain.ErrCredentialExpired, err)
		case "invalid_access_token":
			return fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
		}
	}

	// Fallback to string matching for errors the SDK does not type
	msg := err.Error()
	switch {
	case strings.Contains(msg, "expired_access_token"):
		return fmt.Errorf("%w: %v", domain.ErrCredentialExpired, err)
	case strings.Contains(msg, "not_found"):
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}

	return err
}

// Compile-time interface check
var _ remote.Service = (*Service)(nil)
