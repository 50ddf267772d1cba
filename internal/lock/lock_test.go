package lock

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dropfetch/dropfetch/internal/testutil"
)

const testLink = "https://www.dropbox.com/sh/abc/def"

func TestNew(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	l, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	expectedPath := filepath.Join(dir, LockFileName)
	if l.lockPath != expectedPath {
		t.Errorf("expected lock path %s, got %s", expectedPath, l.lockPath)
	}

	if l.staleTimeout != DefaultStaleTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultStaleTimeout, l.staleTimeout)
	}
}

func TestNewCreatesSaveDir(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	saveDir := filepath.Join(dir, "nested", "save")
	if _, err := New(saveDir); err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := os.Stat(saveDir); err != nil {
		t.Errorf("save directory was not created: %v", err)
	}
}

func TestAcquireRelease(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	l, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := l.Acquire(testLink); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if _, err := os.Stat(l.lockPath); os.IsNotExist(err) {
		t.Error("lock file does not exist after acquire")
	}

	if !l.IsLocked() {
		t.Error("lock should be held")
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	if _, err := os.Stat(l.lockPath); !os.IsNotExist(err) {
		t.Error("lock file still exists after release")
	}

	if l.IsLocked() {
		t.Error("lock should not be held after release")
	}
}

// Re-acquiring from the same instance must update both the file and
// the in-memory info, otherwise Release reports the lock as stolen
func TestAcquireTwice_SameInstance(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	l, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := l.Acquire(testLink + "/one"); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	if err := l.Acquire(testLink + "/two"); err != nil {
		t.Fatalf("second Acquire by same instance should succeed: %v", err)
	}

	holder, err := l.GetHolder()
	if err != nil {
		t.Fatalf("GetHolder failed: %v", err)
	}
	if holder.Link != testLink+"/two" {
		t.Errorf("expected updated link, got %q", holder.Link)
	}
	if l.info.Link != testLink+"/two" {
		t.Errorf("internal info not updated, got %q", l.info.Link)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release after re-acquire failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, LockFileName)); !os.IsNotExist(err) {
		t.Error("lock file still exists after release")
	}
}

func TestConcurrentAcquire(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	const goroutines = 10
	var wg sync.WaitGroup
	acquired := make([]bool, goroutines)
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			l, err := New(dir)
			if err != nil {
				errs[idx] = err
				return
			}

			err = l.Acquire(testLink)
			if err == nil {
				acquired[idx] = true
				time.Sleep(10 * time.Millisecond)
				l.Release()
			} else {
				errs[idx] = err
			}
		}(i)
	}

	wg.Wait()

	acquireCount := 0
	lockErrorCount := 0
	for i := 0; i < goroutines; i++ {
		if acquired[i] {
			acquireCount++
		}
		if errs[i] != nil && IsLockError(errs[i]) {
			lockErrorCount++
		}
	}

	if acquireCount != 1 {
		t.Errorf("expected exactly 1 acquire, got %d", acquireCount)
	}
	if lockErrorCount != goroutines-1 {
		t.Errorf("expected %d lock errors, got %d", goroutines-1, lockErrorCount)
	}
}

func TestGetHolder(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	l, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := l.GetHolder(); err == nil {
		t.Error("expected error when no lock is held")
	}

	if err := l.Acquire(testLink); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer l.Release()

	holder, err := l.GetHolder()
	if err != nil {
		t.Fatalf("GetHolder failed: %v", err)
	}

	if holder.PID != os.Getpid() {
		t.Errorf("expected PID %d, got %d", os.Getpid(), holder.PID)
	}

	hostname, _ := os.Hostname()
	if holder.Hostname != hostname {
		t.Errorf("expected hostname %s, got %s", hostname, holder.Hostname)
	}

	if holder.Link != testLink {
		t.Errorf("expected link %s, got %s", testLink, holder.Link)
	}

	if time.Since(holder.StartTime) > time.Second {
		t.Error("start time should be recent")
	}
}

func TestForceRelease(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	l, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.Acquire(testLink)

	if err := l.ForceRelease(); err != nil {
		t.Fatalf("ForceRelease failed: %v", err)
	}

	if _, err := os.Stat(l.lockPath); !os.IsNotExist(err) {
		t.Error("lock file should be removed after force release")
	}

	if l.IsLocked() {
		t.Error("lock should not be held after force release")
	}
}

func TestStaleDetection_ProcessDead(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	l, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	hostname, _ := os.Hostname()
	staleInfo := &LockInfo{
		PID:       999999,
		Hostname:  hostname,
		StartTime: time.Now().Add(-time.Hour),
		Link:      testLink,
	}

	if err := l.writeLockInfo(staleInfo); err != nil {
		t.Fatalf("failed to write stale lock info: %v", err)
	}

	if err := l.Acquire(testLink); err != nil {
		t.Fatalf("should acquire over a dead-process lock: %v", err)
	}
	defer l.Release()

	holder, err := l.GetHolder()
	if err != nil {
		t.Fatalf("GetHolder failed: %v", err)
	}
	if holder.PID != os.Getpid() {
		t.Error("expected current process to be holder")
	}
}

// A lock held by a living process never goes stale, regardless of the
// timeout
func TestStaleDetection_LivingProcess(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	l, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	l.SetStaleTimeout(100 * time.Millisecond)

	if err := l.Acquire(testLink); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer l.Release()

	time.Sleep(200 * time.Millisecond)

	if !l.IsLocked() {
		t.Error("lock held by a living process must not be stale")
	}

	l2, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	err = l2.Acquire(testLink)
	if err == nil {
		t.Error("should not acquire a lock held by a living process")
		l2.Release()
	}
	if !IsLockError(err) {
		t.Errorf("expected LockError, got: %v", err)
	}
}

func TestStaleDetection_DifferentHost(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	l, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	l.SetStaleTimeout(100 * time.Millisecond)

	foreignInfo := &LockInfo{
		PID:       12345,
		Hostname:  "foreign-host-" + testutil.RandomString(8),
		StartTime: time.Now().Add(-time.Hour),
		Link:      testLink,
	}

	if err := l.writeLockInfo(foreignInfo); err != nil {
		t.Fatalf("failed to write foreign lock info: %v", err)
	}

	// Process liveness cannot be checked across hosts, so the timeout
	// governs staleness
	if err := l.Acquire(testLink); err != nil {
		t.Fatalf("should acquire over a stale foreign lock: %v", err)
	}
	defer l.Release()
}

func TestLockError(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	l1, _ := New(dir)
	l2, _ := New(dir)

	l1.Acquire(testLink)
	defer l1.Release()

	err := l2.Acquire(testLink)
	if err == nil {
		t.Fatal("expected error when lock is held")
	}

	if !IsLockError(err) {
		t.Errorf("expected LockError, got: %T", err)
	}

	if err.Error() == "" {
		t.Error("error message should not be empty")
	}
}
