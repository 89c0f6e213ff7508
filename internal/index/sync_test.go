package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/tessera/internal/apperr"
	"github.com/starford/tessera/internal/backup"
	"github.com/starford/tessera/internal/render"
	"github.com/starford/tessera/internal/storage"
)

func testEngine(t *testing.T, opts ...EngineOption) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bm, err := backup.NewManager(filepath.Join(t.TempDir(), "backups"), root, logger)
	if err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewFS(root, bm, logger)
	if err != nil {
		t.Fatal(err)
	}
	return NewEngine(testDB(t), store, render.Markdown, logger, opts...), root
}

// writeNote writes a file under root with the given age.
func writeNote(t *testing.T, root, rel, content string, age time.Duration) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	mt := time.Now().Add(-age)
	if err := os.Chtimes(abs, mt, mt); err != nil {
		t.Fatal(err)
	}
}

func TestFullResyncIndexesAndRemoves(t *testing.T) {
	e, root := testEngine(t)
	ctx := context.Background()
	writeNote(t, root, "a.md", "# Hello", time.Hour)
	writeNote(t, root, "sub/b.md", "world hello", time.Minute)

	stats, err := e.FullResync(ctx, nil)
	if err != nil {
		t.Fatalf("FullResync: %v", err)
	}
	if stats.Scanned != 2 || stats.Updated != 2 {
		t.Errorf("stats = %+v", stats)
	}
	names, _ := e.DB().List(ctx)
	if diff := cmp.Diff([]string{"sub/b.md", "a.md"}, names); diff != "" {
		t.Errorf("List (-want +got):\n%s", diff)
	}

	_ = os.Remove(filepath.Join(root, "sub", "b.md"))
	writeNote(t, root, "c.md", "third", 0)

	stats, err = e.FullResync(ctx, nil)
	if err != nil {
		t.Fatalf("FullResync: %v", err)
	}
	if stats.Removed != 1 || stats.Updated != 1 {
		t.Errorf("stats = %+v", stats)
	}
	names, _ = e.DB().List(ctx)
	if diff := cmp.Diff([]string{"c.md", "a.md"}, names); diff != "" {
		t.Errorf("List (-want +got):\n%s", diff)
	}
}

func TestFullResyncSkipsUnchanged(t *testing.T) {
	e, root := testEngine(t)
	ctx := context.Background()
	writeNote(t, root, "same.md", "x", time.Hour)

	_, _ = e.FullResync(ctx, nil)
	stats, err := e.FullResync(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Updated != 0 {
		t.Errorf("unchanged file re-indexed: %+v", stats)
	}
}

func TestFullResyncPicksUpNewMtime(t *testing.T) {
	e, root := testEngine(t)
	ctx := context.Background()
	writeNote(t, root, "edit.md", "before", time.Hour)
	_, _ = e.FullResync(ctx, nil)

	writeNote(t, root, "edit.md", "after", 0)
	if _, err := e.FullResync(ctx, nil); err != nil {
		t.Fatal(err)
	}
	row, err := e.DB().Get(ctx, "edit.md")
	if err != nil {
		t.Fatal(err)
	}
	if row.Content != "after" {
		t.Errorf("content = %q, want after", row.Content)
	}
}

func TestHotSetRendersMostRecent(t *testing.T) {
	e, root := testEngine(t, WithHotSet(1))
	ctx := context.Background()
	writeNote(t, root, "new.md", "# New", time.Minute)
	writeNote(t, root, "old.md", "# Old", time.Hour)

	if _, err := e.FullResync(ctx, nil); err != nil {
		t.Fatal(err)
	}
	hot, _ := e.DB().Get(ctx, "new.md")
	cold, _ := e.DB().Get(ctx, "old.md")
	if !hot.Indexed || !strings.Contains(hot.HTML, "<h1>New</h1>") {
		t.Errorf("hot row = %+v", hot)
	}
	if cold.Indexed || cold.HTML != "" {
		t.Errorf("cold row = %+v", cold)
	}

	html, err := e.Rendered(ctx, "old.md")
	if err != nil {
		t.Fatalf("Rendered: %v", err)
	}
	if !strings.Contains(html, "<h1>Old</h1>") {
		t.Errorf("Rendered = %q", html)
	}
	cold, _ = e.DB().Get(ctx, "old.md")
	if !cold.Indexed {
		t.Error("Rendered should cache HTML")
	}
}

func TestFullResyncRendersColdNoteEnteringHotSet(t *testing.T) {
	e, root := testEngine(t, WithHotSet(1))
	ctx := context.Background()
	writeNote(t, root, "a.md", "# A", time.Minute)
	writeNote(t, root, "b.md", "# B", time.Hour)
	_, _ = e.FullResync(ctx, nil)

	_ = os.Remove(filepath.Join(root, "a.md"))
	stats, err := e.FullResync(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Rendered != 1 {
		t.Errorf("stats = %+v", stats)
	}
	row, _ := e.DB().Get(ctx, "b.md")
	if !row.Indexed {
		t.Error("b.md should be rendered once it is the most recent note")
	}
}

func TestProgressCallback(t *testing.T) {
	e, root := testEngine(t)
	for i := range 25 {
		writeNote(t, root, fmt.Sprintf("n%02d.md", i), "x", time.Duration(i)*time.Minute)
	}

	var calls []int
	_, err := e.FullResync(context.Background(), func(done, total int, _ string) {
		if total != 25 {
			t.Errorf("total = %d", total)
		}
		calls = append(calls, done)
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{0, 10, 20, 25}, calls); diff != "" {
		t.Errorf("progress calls (-want +got):\n%s", diff)
	}
}

func TestProgressPanicIsRecovered(t *testing.T) {
	e, root := testEngine(t)
	writeNote(t, root, "p.md", "x", 0)

	_, err := e.FullResync(context.Background(), func(int, int, string) { panic("boom") })
	if err != nil {
		t.Fatalf("FullResync: %v", err)
	}
	if _, err := e.DB().Get(context.Background(), "p.md"); err != nil {
		t.Errorf("note not indexed after panicking callback: %v", err)
	}
}

func TestQuickCheck(t *testing.T) {
	e, root := testEngine(t)
	ctx := context.Background()
	writeNote(t, root, "q.md", "original", time.Hour)
	writeNote(t, root, "r.md", "other", time.Hour)
	_, _ = e.FullResync(ctx, nil)

	ok, err := e.QuickCheck(ctx)
	if err != nil || !ok {
		t.Fatalf("QuickCheck after resync = %v, %v", ok, err)
	}

	writeNote(t, root, "q.md", "modified", time.Hour)
	ok, err = e.QuickCheck(ctx)
	if err != nil || ok {
		t.Fatalf("QuickCheck after external edit = %v, %v; want false", ok, err)
	}

	_, _ = e.FullResync(ctx, nil)
	_ = os.Remove(filepath.Join(root, "r.md"))
	ok, err = e.QuickCheck(ctx)
	if err != nil || ok {
		t.Fatalf("QuickCheck after external delete = %v, %v; want false", ok, err)
	}

	_, _ = e.FullResync(ctx, nil)
	ok, _ = e.QuickCheck(ctx)
	if !ok {
		t.Error("QuickCheck should pass after resync")
	}
}

func TestRecreateRebuildsFromDisk(t *testing.T) {
	e, root := testEngine(t)
	ctx := context.Background()
	writeNote(t, root, "real.md", "real", time.Hour)
	_ = e.DB().Upsert(ctx, Row{Filename: "ghost.md", Content: "stale"})

	stats, err := e.Recreate(ctx, "test", nil)
	if err != nil {
		t.Fatalf("Recreate: %v", err)
	}
	if stats.Scanned != 1 {
		t.Errorf("stats = %+v", stats)
	}
	names, _ := e.DB().List(ctx)
	if diff := cmp.Diff([]string{"real.md"}, names); diff != "" {
		t.Errorf("List (-want +got):\n%s", diff)
	}
}

func TestRecreateBlocksReaders(t *testing.T) {
	e, root := testEngine(t)
	ctx := context.Background()
	for i := range 30 {
		writeNote(t, root, fmt.Sprintf("n%02d.md", i), "body", time.Duration(i)*time.Minute)
	}
	_, _ = e.FullResync(ctx, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				names, err := e.DB().List(ctx)
				if err != nil {
					errs <- err
					return
				}
				if len(names) != 30 {
					errs <- fmt.Errorf("reader saw %d rows mid-rebuild", len(names))
					return
				}
			}
		}()
	}
	if _, err := e.Recreate(ctx, "concurrency test", nil); err != nil {
		t.Fatalf("Recreate: %v", err)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestRecreateFailureWrapsRebuildFailed(t *testing.T) {
	e, root := testEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	writeNote(t, root, "x.md", "x", 0)
	cancel()

	_, err := e.Recreate(ctx, "cancelled", nil)
	if !errors.Is(err, apperr.ErrRebuildFailed) {
		t.Errorf("err = %v, want ErrRebuildFailed", err)
	}
}

func TestEngineUpdateRemoveMove(t *testing.T) {
	e, root := testEngine(t)
	ctx := context.Background()
	writeNote(t, root, "m.md", "# Move me", 0)

	if err := e.Update(ctx, "m.md"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := os.Rename(filepath.Join(root, "m.md"), filepath.Join(root, "moved.md")); err != nil {
		t.Fatal(err)
	}
	if err := e.Move(ctx, "m.md", "moved.md"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	row, err := e.DB().Get(ctx, "moved.md")
	if err != nil || row.Content != "# Move me" || !row.Indexed {
		t.Errorf("moved row = %+v, %v", row, err)
	}
	if err := e.Remove(ctx, "moved.md"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if n, _ := e.DB().Count(ctx); n != 0 {
		t.Errorf("rows = %d after Remove", n)
	}
	if err := e.Update(ctx, "ghost.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Update missing err = %v, want ErrNotFound", err)
	}
}
