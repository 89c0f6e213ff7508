package index

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) trigger(paths []string) {
	r.mu.Lock()
	r.paths = append(r.paths, paths...)
	r.mu.Unlock()
}

func (r *recorder) has(p string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.paths, p)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func startWatch(t *testing.T, root string, suppress func() bool) *recorder {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, root, logger, WatchOptions{Debounce: 50 * time.Millisecond, Suppress: suppress}, rec.trigger)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
	return rec
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_NewFileTriggers(t *testing.T) {
	root := t.TempDir()
	rec := startWatch(t, root, nil)

	_ = os.WriteFile(filepath.Join(root, "new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("new.md")
	}, "new file did not trigger")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	root := t.TempDir()
	rec := startWatch(t, root, nil)

	_ = os.MkdirAll(filepath.Join(root, "subdir"), 0o755)
	time.Sleep(200 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(root, "subdir", "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("subdir/deep.md")
	}, "file in new subdir did not trigger")
}

func TestWatcher_HiddenPathsIgnored(t *testing.T) {
	root := t.TempDir()
	_ = os.MkdirAll(filepath.Join(root, ".tessera-tmp"), 0o755)
	rec := startWatch(t, root, nil)

	_ = os.WriteFile(filepath.Join(root, ".hidden.md"), []byte("h"), 0o644)
	_ = os.WriteFile(filepath.Join(root, ".tessera-tmp", "x.tmp"), []byte("t"), 0o644)
	time.Sleep(300 * time.Millisecond)

	if n := rec.len(); n != 0 {
		t.Errorf("hidden paths triggered %d times", n)
	}
}

func TestWatcher_SuppressedWhileFlagRaised(t *testing.T) {
	root := t.TempDir()
	var raised atomic.Bool
	raised.Store(true)
	rec := startWatch(t, root, raised.Load)

	_ = os.WriteFile(filepath.Join(root, "self.md"), []byte("mine"), 0o644)
	time.Sleep(300 * time.Millisecond)
	if rec.has("self.md") {
		t.Fatal("self write was not suppressed")
	}

	raised.Store(false)
	_ = os.WriteFile(filepath.Join(root, "other.md"), []byte("theirs"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("other.md")
	}, "external write did not trigger once the flag cleared")
}

func TestWatcher_DeleteTriggers(t *testing.T) {
	root := t.TempDir()
	_ = os.WriteFile(filepath.Join(root, "del.md"), []byte("x"), 0o644)
	rec := startWatch(t, root, nil)

	_ = os.Remove(filepath.Join(root, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("del.md")
	}, "delete did not trigger")
}

func TestHiddenPath(t *testing.T) {
	cases := map[string]bool{
		".":               false,
		"a.md":            false,
		"dir/a.md":        false,
		".git/HEAD":       true,
		"dir/.hidden":     true,
		".tessera-tmp/x":  true,
		"notes/v1.2/a.md": false,
	}
	for in, want := range cases {
		if got := hiddenPath(in); got != want {
			t.Errorf("hiddenPath(%q) = %v, want %v", in, got, want)
		}
	}
}
