package storage

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/starford/tessera/internal/apperr"
	"github.com/starford/tessera/internal/backup"
	"github.com/starford/tessera/internal/models"
)

// TempDirName is the hidden directory under the notes root that holds
// in-flight writes. It shares the notes root's filesystem so the final
// rename is atomic.
const TempDirName = ".tessera-tmp"

// FS implements Provider backed by the local file system.
type FS struct {
	root    string // absolute path to notes directory
	tmpDir  string
	backups *backup.Manager
	logger  *slog.Logger

	// replace moves the finished temp file onto the target.
	replace func(src, dst string) error
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string, backups *backup.Manager, logger *slog.Logger) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	tmp := filepath.Join(abs, TempDirName)
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create temp dir: %w", err)
	}
	return &FS{
		root:    abs,
		tmpDir:  tmp,
		backups: backups,
		logger:  logger,
		replace: atomic.ReplaceFile,
	}, nil
}

// Root returns the absolute notes root.
func (f *FS) Root() string { return f.root }

// Backups returns the backup manager used by the write path.
func (f *FS) Backups() *backup.Manager { return f.backups }

// safePath validates a note identifier and resolves it against the root,
// rejecting any result that escapes it.
func (f *FS) safePath(rel string) (string, error) {
	if err := ValidateName(rel); err != nil {
		return "", err
	}
	abs := filepath.Join(f.root, filepath.FromSlash(rel))
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: %w", apperr.ErrPathTraversal)
	}
	return abs, nil
}

// List walks the notes root and returns every regular, non-hidden file,
// most recently modified first.
func (f *FS) List() ([]models.FileMeta, error) {
	var out []models.FileMeta
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == f.root {
				return walkErr
			}
			f.logger.Warn("storage: walk skipped entry", slog.String("error", walkErr.Error()))
			return nil
		}
		if p == f.root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if ValidateName(rel) != nil {
			f.logger.Debug("storage: skipping unaddressable file", slog.String("path", rel))
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out = append(out, models.FileMeta{
			Path:    rel,
			AbsPath: p,
			ModTime: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	slices.SortFunc(out, func(a, b models.FileMeta) int {
		return cmp.Or(cmp.Compare(b.ModTime, a.ModTime), strings.Compare(a.Path, b.Path))
	})
	return out, nil
}

// Read returns the raw bytes of a note.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, classify(err, apperr.ErrReadFailed))
	}
	return data, nil
}

// Stat returns the note's modification time in unix seconds.
func (f *FS) Stat(path string) (int64, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return 0, fmt.Errorf("storage: stat %s: %w", path, classify(err, apperr.ErrReadFailed))
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("storage: stat %s: %w", path, apperr.ErrInvalidPath)
	}
	return info.ModTime().Unix(), nil
}

// Create creates an empty note using exclusive-create semantics.
func (f *FS) Create(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", classify(err, apperr.ErrWriteFailed))
	}
	file, err := os.OpenFile(abs, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("storage: create %s: %w", path, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("storage: create %s: %w", path, classify(err, apperr.ErrWriteFailed))
	}
	return file.Close()
}

// Delete removes a note after taking a delete-safety backup. Deleting a
// missing note succeeds and reports existed=false.
func (f *FS) Delete(path string) (bool, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Lstat(abs); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if _, err := f.backups.Create(path, backup.KindDelete, nil); err != nil {
		if errors.Is(err, backup.ErrSourceMissing) {
			return false, nil
		}
		return false, fmt.Errorf("storage: delete %s: %w", path, errors.Join(apperr.ErrWriteFailed, err))
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("storage: delete %s: %w", path, classify(err, apperr.ErrWriteFailed))
	}
	return true, nil
}

// Move renames a note within the root. It never overwrites newPath: the
// destination is claimed with a hard link where the filesystem supports it,
// so a concurrent creator cannot be clobbered.
func (f *FS) Move(oldPath, newPath string) error {
	absOld, err := f.safePath(oldPath)
	if err != nil {
		return err
	}
	absNew, err := f.safePath(newPath)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(absOld); err != nil {
		return fmt.Errorf("storage: move %s: %w", oldPath, classify(err, apperr.ErrReadFailed))
	}
	if _, err := os.Lstat(absNew); err == nil {
		return fmt.Errorf("storage: move to %s: %w", newPath, apperr.ErrAlreadyExists)
	}
	if _, err := f.backups.Create(oldPath, backup.KindRename, nil); err != nil {
		f.logger.Warn("storage: rename backup failed",
			slog.String("path", oldPath),
			slog.String("error", err.Error()))
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for move: %w", classify(err, apperr.ErrWriteFailed))
	}

	linkErr := os.Link(absOld, absNew)
	switch {
	case linkErr == nil:
		if err := os.Remove(absOld); err != nil {
			_ = os.Remove(absNew)
			return fmt.Errorf("storage: move %s: %w", oldPath, classify(err, apperr.ErrWriteFailed))
		}
		return nil
	case errors.Is(linkErr, fs.ErrExist):
		return fmt.Errorf("storage: move to %s: %w", newPath, apperr.ErrAlreadyExists)
	}

	// Hard links unsupported here; fall back to a checked rename.
	if _, err := os.Lstat(absNew); err == nil {
		return fmt.Errorf("storage: move to %s: %w", newPath, apperr.ErrAlreadyExists)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: move %s: %w", oldPath, classify(err, apperr.ErrWriteFailed))
	}
	return nil
}

// classify maps an os error onto the apperr taxonomy, using fallback for
// anything that is neither missing nor forbidden.
func classify(err error, fallback error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return apperr.ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return apperr.ErrPermission
	default:
		return fallback
	}
}
