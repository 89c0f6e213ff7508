// Package backup keeps typed, timestamped copies of notes taken before risky
// filesystem operations, and prunes them to a bounded history.
package backup

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/starford/tessera/internal/apperr"
	"github.com/starford/tessera/internal/models"
)

// DefaultKeep is how many backups are retained per (base, kind).
const DefaultKeep = 20

// Errors reported by Create when copying the source fails. Neither is fatal
// by itself: the caller decides whether a missing backup blocks the operation.
var (
	ErrSourceMissing = fmt.Errorf("backup: source missing: %w", apperr.ErrNotFound)
	ErrPermission    = fmt.Errorf("backup: %w", apperr.ErrPermission)
)

// Manager creates, lists and prunes backups for one notes root.
type Manager struct {
	root      string // absolute backup root
	notesRoot string // absolute notes root
	keep      int
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithKeep sets how many backups are retained per (base, kind).
func WithKeep(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.keep = n
		}
	}
}

// WithClock overrides the time source used for backup timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager storing backups under root for notes living
// under notesRoot. root is created if missing.
func NewManager(root, notesRoot string, logger *slog.Logger, opts ...Option) (*Manager, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("backup: resolve root: %w", err)
	}
	absNotes, err := filepath.Abs(notesRoot)
	if err != nil {
		return nil, fmt.Errorf("backup: resolve notes root: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("backup: create root: %w", err)
	}
	m := &Manager{
		root:      absRoot,
		notesRoot: absNotes,
		keep:      DefaultKeep,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Root returns the absolute backup root.
func (m *Manager) Root() string { return m.root }

// dirFor returns the directory backups of kind for the note at rel go to.
// Rollback backups mirror the note's relative directory; every other kind
// is stored flat in the backup root.
func (m *Manager) dirFor(rel string, kind Kind) string {
	if kind == KindRollback {
		return filepath.Join(m.root, filepath.FromSlash(path.Dir(rel)))
	}
	return m.root
}

// Create stores a backup of the note at rel and returns its absolute path.
// With override nil the current file is copied; otherwise override is
// written as the backup content.
func (m *Manager) Create(rel string, kind Kind, override []byte) (string, error) {
	dir := m.dirFor(rel, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("backup: mkdir: %w", err)
	}

	var src io.Reader
	if override != nil {
		src = bytes.NewReader(override)
	} else {
		f, err := os.Open(filepath.Join(m.notesRoot, filepath.FromSlash(rel)))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return "", ErrSourceMissing
		case errors.Is(err, fs.ErrPermission):
			return "", ErrPermission
		case err != nil:
			return "", fmt.Errorf("backup: open source: %w", err)
		}
		defer f.Close()
		src = f
	}

	name := NameFor(rel, kind, m.now().Unix())
	dst := filepath.Join(dir, name.String())
	// Same-second backups bump the timestamp so names stay unique and ordered.
	for {
		if _, err := os.Lstat(dst); errors.Is(err, fs.ErrNotExist) {
			break
		}
		name.Timestamp++
		dst = filepath.Join(dir, name.String())
	}

	if err := atomic.WriteFile(dst, src); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return "", ErrPermission
		}
		return "", fmt.Errorf("backup: write %s: %w", name, err)
	}
	m.logger.Debug("backup: created",
		slog.String("path", rel),
		slog.String("kind", string(kind)),
		slog.String("backup", name.String()))

	m.prune(dir, name)
	return dst, nil
}

// prune deletes all but the newest keep backups in dir sharing n's series.
func (m *Manager) prune(dir string, n Name) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		m.logger.Warn("backup: prune list failed", slog.String("error", err.Error()))
		return
	}
	type item struct {
		name Name
		file string
	}
	var series []item
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		parsed, err := ParseName(e.Name())
		if err != nil || !parsed.SameSeries(n) {
			continue
		}
		series = append(series, item{name: parsed, file: e.Name()})
	}
	if len(series) <= m.keep {
		return
	}
	slices.SortFunc(series, func(a, b item) int {
		return cmp.Or(cmp.Compare(a.name.Timestamp, b.name.Timestamp), strings.Compare(a.file, b.file))
	})
	for _, it := range series[:len(series)-m.keep] {
		if err := os.Remove(filepath.Join(dir, it.file)); err != nil {
			m.logger.Warn("backup: prune failed",
				slog.String("backup", it.file),
				slog.String("error", err.Error()))
		}
	}
}

// List returns the backups of the note at rel, newest first. Version names
// are relative to the backup root and can be passed to Read.
func (m *Manager) List(rel string) ([]models.Version, error) {
	want := NameFor(rel, KindRollback, 0)
	mirror := path.Dir(rel)
	if mirror == "." {
		mirror = ""
	}
	dirs := []string{""}
	if mirror != "" {
		dirs = append(dirs, mirror)
	}

	var out []models.Version
	for _, d := range dirs {
		entries, err := os.ReadDir(filepath.Join(m.root, filepath.FromSlash(d)))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("backup: list: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			n, err := ParseName(e.Name())
			if err != nil || n.Base != want.Base || n.Ext != want.Ext {
				continue
			}
			if n.Kind == KindRollback && d != mirror {
				continue
			}
			if n.Kind != KindRollback && d != "" {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			out = append(out, models.Version{
				Name:      path.Join(d, e.Name()),
				Kind:      string(n.Kind),
				Timestamp: time.Unix(n.Timestamp, 0),
				Size:      info.Size(),
			})
		}
	}
	slices.SortFunc(out, func(a, b models.Version) int {
		return cmp.Or(b.Timestamp.Compare(a.Timestamp), strings.Compare(b.Name, a.Name))
	})
	return out, nil
}

// Path resolves a version name returned by List to an absolute path.
func (m *Manager) Path(name string) (string, error) {
	if name == "" || strings.Contains(name, `\`) || path.IsAbs(name) {
		return "", fmt.Errorf("backup: %w", apperr.ErrInvalidName)
	}
	for seg := range strings.SplitSeq(name, "/") {
		if seg == ".." {
			return "", fmt.Errorf("backup: %w", apperr.ErrPathTraversal)
		}
		if seg == "" || seg == "." {
			return "", fmt.Errorf("backup: %w", apperr.ErrInvalidName)
		}
	}
	if _, err := ParseName(path.Base(name)); err != nil {
		return "", fmt.Errorf("backup: %w", apperr.ErrInvalidName)
	}
	return filepath.Join(m.root, filepath.FromSlash(name)), nil
}

// Read returns the content of the version called name.
func (m *Manager) Read(name string) ([]byte, error) {
	abs, err := m.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("backup: read: %w", apperr.ErrReadFailed)
	}
	return data, nil
}
