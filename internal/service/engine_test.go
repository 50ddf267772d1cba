package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/dropfetch/dropfetch/internal/core/contenthash"
	"github.com/dropfetch/dropfetch/internal/domain"
)

// fakeService is an in-memory remote.Service. Content is keyed by
// entry name; pages split the listing; failure injection is per-file.
type fakeService struct {
	pages   []domain.ListingPage
	content map[string][]byte

	// failFirst makes the first N fetches of a file fail with a
	// transport error
	failFirst map[string]int

	// corrupt makes every fetch of a file write wrong bytes
	corrupt map[string]bool

	// expireFirst makes the first N fetches of a file fail with a
	// credential-expired error
	expireFirst map[string]int

	fetchCalls   map[string]int
	refreshCalls int
	closed       bool
}

func newFakeService() *fakeService {
	return &fakeService{
		content:     make(map[string][]byte),
		failFirst:   make(map[string]int),
		corrupt:     make(map[string]bool),
		expireFirst: make(map[string]int),
		fetchCalls:  make(map[string]int),
	}
}

func (f *fakeService) ListFolder(ctx context.Context, path, sharedLink string) (domain.ListingPage, error) {
	if len(f.pages) == 0 {
		return domain.ListingPage{}, nil
	}
	return f.pages[0], nil
}

func (f *fakeService) ListFolderContinue(ctx context.Context, cursor string) (domain.ListingPage, error) {
	for i, page := range f.pages[:len(f.pages)-1] {
		if page.Cursor == cursor {
			return f.pages[i+1], nil
		}
	}
	return domain.ListingPage{}, fmt.Errorf("unknown cursor %q", cursor)
}

func (f *fakeService) FetchSharedLinkFile(ctx context.Context, sharedLink, remotePath, destPath string) error {
	name := filepath.Base(remotePath)
	f.fetchCalls[name]++

	if n := f.expireFirst[name]; n > 0 {
		f.expireFirst[name] = n - 1
		return domain.ErrCredentialExpired
	}
	if n := f.failFirst[name]; n > 0 {
		f.failFirst[name] = n - 1
		// Transport errors can leave a partial file behind
		os.WriteFile(destPath, []byte("partial"), 0644)
		return errors.New("connection reset")
	}

	body, ok := f.content[name]
	if !ok {
		return domain.ErrNotFound
	}
	if f.corrupt[name] {
		body = append([]byte("x"), body[1:]...)
	}
	return os.WriteFile(destPath, body, 0644)
}

func (f *fakeService) RefreshAccessTokenIfExpired(ctx context.Context) (bool, error) {
	f.refreshCalls++
	return true, nil
}

func (f *fakeService) Close() error {
	f.closed = true
	return nil
}

// addFile registers a file's content and returns its entry
func (f *fakeService) addFile(t *testing.T, name string, body []byte) domain.RemoteEntry {
	t.Helper()

	h := contenthash.New()
	if _, err := h.Write(body); err != nil {
		t.Fatalf("hash write failed: %v", err)
	}
	hash, err := h.HexDigest()
	if err != nil {
		t.Fatalf("hash digest failed: %v", err)
	}

	f.content[name] = body
	return domain.RemoteEntry{
		Name:        name,
		Type:        domain.EntryTypeFile,
		Size:        int64(len(body)),
		ContentHash: hash,
	}
}

func newTestEngine(svc *fakeService, retries int) *Engine {
	return NewEngine(svc, WithMaxRetries(retries), WithRetryDelay(0))
}

// TestFetchEntriesPaginated verifies multi-page listings are
// accumulated across cursors until HasMore is false
func TestFetchEntriesPaginated(t *testing.T) {
	dir := t.TempDir()
	svc := newFakeService()

	var entries []domain.RemoteEntry
	for i := 0; i < 5; i++ {
		entries = append(entries, svc.addFile(t, fmt.Sprintf("file%d.txt", i), []byte(fmt.Sprintf("content %d", i))))
	}
	svc.pages = []domain.ListingPage{
		{Entries: entries[0:2], Cursor: "page1", HasMore: true},
		{Entries: entries[2:4], Cursor: "page2", HasMore: true},
		{Entries: entries[4:5], HasMore: false},
	}

	plan, err := newTestEngine(svc, 3).FetchEntries(context.Background(), "link", dir)
	if err != nil {
		t.Fatalf("FetchEntries failed: %v", err)
	}

	if plan.ToDownload() != 5 {
		t.Errorf("expected 5 entries in plan, got %d", plan.ToDownload())
	}
	if plan.Stats.TotalFound != 5 {
		t.Errorf("expected 5 found, got %d", plan.Stats.TotalFound)
	}
}

// TestFetchEntriesFolderFatal verifies a folder entry on any page
// aborts the listing phase
func TestFetchEntriesFolderFatal(t *testing.T) {
	dir := t.TempDir()
	svc := newFakeService()
	a := svc.addFile(t, "a.txt", []byte("a"))
	svc.pages = []domain.ListingPage{
		{Entries: []domain.RemoteEntry{a, {Name: "nested", Type: domain.EntryTypeFolder}}, HasMore: false},
	}

	_, err := newTestEngine(svc, 3).FetchEntries(context.Background(), "link", dir)
	if !errors.Is(err, domain.ErrFolderNotSupported) {
		t.Errorf("expected ErrFolderNotSupported, got %v", err)
	}
}

// TestRunSkipsSatisfiedAndDownloadsRest is the end-to-end scenario:
// a correct a.txt already on disk, b.txt fetched on first attempt
func TestRunSkipsSatisfiedAndDownloadsRest(t *testing.T) {
	dir := t.TempDir()
	svc := newFakeService()

	bodyA := []byte("0123456789")           // 10 bytes
	bodyB := []byte("01234567890123456789") // 20 bytes
	a := svc.addFile(t, "a.txt", bodyA)
	b := svc.addFile(t, "b.txt", bodyB)
	svc.pages = []domain.ListingPage{{Entries: []domain.RemoteEntry{a, b}, HasMore: false}}

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), bodyA, 0644); err != nil {
		t.Fatalf("failed to seed local file: %v", err)
	}

	summary, err := newTestEngine(svc, 3).Run(context.Background(), "link", dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Downloaded != 1 || summary.Skipped != 1 || summary.Failed != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if svc.fetchCalls["a.txt"] != 0 {
		t.Errorf("a.txt should not have been fetched, got %d calls", svc.fetchCalls["a.txt"])
	}
	if svc.fetchCalls["b.txt"] != 1 {
		t.Errorf("b.txt should have been fetched once, got %d calls", svc.fetchCalls["b.txt"])
	}

	got, err := os.ReadFile(filepath.Join(dir, "b.txt"))
	if err != nil {
		t.Fatalf("b.txt not written: %v", err)
	}
	if string(got) != string(bodyB) {
		t.Errorf("b.txt content mismatch: %q", got)
	}
}

// TestDownloadRetriesTransportErrors verifies a transient transport
// failure is retried and eventually succeeds
func TestDownloadRetriesTransportErrors(t *testing.T) {
	dir := t.TempDir()
	svc := newFakeService()
	entry := svc.addFile(t, "flaky.bin", []byte("eventually fine"))
	svc.failFirst["flaky.bin"] = 2
	svc.pages = []domain.ListingPage{{Entries: []domain.RemoteEntry{entry}, HasMore: false}}

	summary, err := newTestEngine(svc, 5).Run(context.Background(), "link", dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Downloaded != 1 || summary.Failed != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if svc.fetchCalls["flaky.bin"] != 3 {
		t.Errorf("expected 3 fetch attempts, got %d", svc.fetchCalls["flaky.bin"])
	}
}

// TestDownloadExhaustionLeavesNoFile verifies a file that fails
// verification on every attempt ends with no file at the destination
// and does not abort the rest of the run
func TestDownloadExhaustionLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	svc := newFakeService()
	bad := svc.addFile(t, "bad.bin", []byte("never verifies"))
	good := svc.addFile(t, "good.bin", []byte("fine"))
	svc.corrupt["bad.bin"] = true
	svc.pages = []domain.ListingPage{{Entries: []domain.RemoteEntry{bad, good}, HasMore: false}}

	const retries = 4
	summary, err := newTestEngine(svc, retries).Run(context.Background(), "link", dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Failed != 1 || summary.Downloaded != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if svc.fetchCalls["bad.bin"] != retries {
		t.Errorf("expected %d attempts on bad.bin, got %d", retries, svc.fetchCalls["bad.bin"])
	}
	if _, err := os.Stat(filepath.Join(dir, "bad.bin")); !os.IsNotExist(err) {
		t.Error("expected no file left at bad.bin destination")
	}
	if _, err := os.Stat(filepath.Join(dir, "good.bin")); err != nil {
		t.Errorf("good.bin should have been downloaded: %v", err)
	}

	if len(summary.Failures) != 1 || !errors.Is(summary.Failures[0].Err, domain.ErrHashMismatch) {
		t.Errorf("expected a hash-mismatch failure record, got %+v", summary.Failures)
	}
}

// TestDownloadRefreshesExpiredToken verifies an expired-credential
// failure triggers a refresh attempt before the retry
func TestDownloadRefreshesExpiredToken(t *testing.T) {
	dir := t.TempDir()
	svc := newFakeService()
	entry := svc.addFile(t, "auth.bin", []byte("needs fresh token"))
	svc.expireFirst["auth.bin"] = 1
	svc.pages = []domain.ListingPage{{Entries: []domain.RemoteEntry{entry}, HasMore: false}}

	summary, err := newTestEngine(svc, 3).Run(context.Background(), "link", dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Downloaded != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if svc.refreshCalls != 1 {
		t.Errorf("expected 1 refresh call, got %d", svc.refreshCalls)
	}
}

// TestDownloadOverwritesStalePartial verifies a partial file from a
// failed attempt never survives to the final state
func TestDownloadOverwritesStalePartial(t *testing.T) {
	dir := t.TempDir()
	svc := newFakeService()
	entry := svc.addFile(t, "resume.bin", []byte("full content"))
	svc.failFirst["resume.bin"] = 1
	svc.pages = []domain.ListingPage{{Entries: []domain.RemoteEntry{entry}, HasMore: false}}

	summary, err := newTestEngine(svc, 3).Run(context.Background(), "link", dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Downloaded != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	got, err := os.ReadFile(filepath.Join(dir, "resume.bin"))
	if err != nil {
		t.Fatalf("resume.bin not written: %v", err)
	}
	if string(got) != "full content" {
		t.Errorf("stale partial content survived: %q", got)
	}
}

// TestRunCancellation verifies context cancellation stops the run
func TestRunCancellation(t *testing.T) {
	dir := t.TempDir()
	svc := newFakeService()
	entry := svc.addFile(t, "a.txt", []byte("a"))
	svc.pages = []domain.ListingPage{{Entries: []domain.RemoteEntry{entry}, HasMore: false}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine(svc, 3).Run(ctx, "link", dir)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
