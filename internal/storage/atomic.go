package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	"github.com/starford/tessera/internal/apperr"
	"github.com/starford/tessera/internal/backup"
)

// SafeWrite replaces the content of the note at path. At every instant the
// target holds either its previous content or content, and whenever the
// final state cannot be confirmed a backup of the intended content exists.
//
//  1. An existing target is copied to a rollback backup first.
//  2. content is written and fsynced to a fresh temp file.
//  3. The temp file is renamed onto the target; on failure the rollback
//     backup is copied back.
//  4. The target is re-read and compared byte for byte.
func (f *FS) SafeWrite(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", classify(err, apperr.ErrWriteFailed))
	}

	mode := os.FileMode(0o644)
	var rollback string
	if info, statErr := os.Stat(abs); statErr == nil {
		mode = info.Mode().Perm()
		rollback, err = f.backups.Create(path, backup.KindRollback, nil)
		if err != nil && !errors.Is(err, backup.ErrSourceMissing) {
			return fmt.Errorf("storage: write %s: rollback backup: %w", path, errors.Join(apperr.ErrWriteFailed, err))
		}
	}

	tmp, err := f.writeTemp(path, content, mode)
	if err != nil {
		f.logger.Error("storage: temp write failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		f.failureBackup(path, content)
		return fmt.Errorf("storage: write %s: %w", path, apperr.ErrWriteFailed)
	}

	if err := f.replace(tmp, abs); err != nil {
		f.logger.Error("storage: rename onto target failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		if rollback != "" {
			if rerr := restore(rollback, abs); rerr != nil {
				f.logger.Error("storage: rollback restore failed, manual intervention required",
					slog.String("path", path),
					slog.String("rollback_backup", filepath.Base(rollback)),
					slog.Bool("critical", true),
					slog.String("error", rerr.Error()))
			} else {
				f.logger.Info("storage: restored from rollback backup", slog.String("path", path))
			}
		}
		f.failureBackup(path, content)
		_ = os.Remove(tmp)
		return fmt.Errorf("storage: write %s: %w", path, apperr.ErrWriteFailed)
	}

	got, err := os.ReadFile(abs)
	if err != nil || !bytes.Equal(got, content) {
		f.logger.Error("storage: verification after rename failed", slog.String("path", path))
		f.failureBackup(path, content)
		return fmt.Errorf("storage: write %s: verification: %w", path, apperr.ErrWriteFailed)
	}
	return nil
}

// writeTemp writes content to a uniquely named file in the temp directory.
func (f *FS) writeTemp(rel string, content []byte, mode os.FileMode) (name string, err error) {
	if err := os.MkdirAll(f.tmpDir, 0o755); err != nil {
		return "", err
	}
	name = filepath.Join(f.tmpDir, fmt.Sprintf("%s.%d.tmp", path.Base(rel), time.Now().UnixNano()))
	file, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = file.Close()
			_ = os.Remove(name)
		}
	}()
	if _, err = file.Write(content); err != nil {
		return "", err
	}
	if err = file.Sync(); err != nil {
		return "", err
	}
	if err = file.Close(); err != nil {
		return "", err
	}
	return name, nil
}

// failureBackup preserves content that could not be confirmed on disk.
func (f *FS) failureBackup(rel string, content []byte) {
	p, err := f.backups.Create(rel, backup.KindSaveFailure, content)
	if err != nil {
		f.logger.Error("storage: save-failure backup failed",
			slog.String("path", rel),
			slog.String("error", err.Error()))
		return
	}
	f.logger.Warn("storage: intended content preserved",
		slog.String("path", rel),
		slog.String("backup", filepath.Base(p)))
}

// restore copies the backup at src back onto dst.
func restore(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("rollback backup vanished: %w", err)
		}
		return err
	}
	defer in.Close()
	return atomic.WriteFile(dst, in)
}
