// Package testutil provides shared test helpers for setting up notes roots,
// indexes and services.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/tessera/internal/backup"
	"github.com/starford/tessera/internal/index"
	"github.com/starford/tessera/internal/noteservice"
	"github.com/starford/tessera/internal/render"
	"github.com/starford/tessera/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDB creates a temporary SQLite index that is automatically closed.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "tessera-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestNotes creates a temporary notes root with its own backup root.
func TestNotes(t *testing.T) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	bm, err := backup.NewManager(filepath.Join(t.TempDir(), "backups"), root, Logger())
	if err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewFS(root, bm, Logger())
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// TestService wires a Service over a fresh notes root and index. It returns
// the service and the notes root.
func TestService(t *testing.T, opts ...noteservice.Option) (*noteservice.Service, string) {
	t.Helper()
	root, store := TestNotes(t)
	engine := index.NewEngine(TestDB(t), store, render.Markdown, Logger())
	svc := noteservice.NewService(store, store.Backups(), engine, Logger(), opts...)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, root
}

// WriteFile writes a note directly on disk, bypassing the service, and sets
// its modification time to age ago.
func WriteFile(t *testing.T, root, rel, content string, age time.Duration) {
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
