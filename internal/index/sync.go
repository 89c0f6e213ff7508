package index

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/tessera/internal/apperr"
	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/render"
	"github.com/starford/tessera/internal/storage"
)

const (
	DefaultHotSet           = 2000
	DefaultQuickCheckSample = 100

	progressEvery = 10
)

// Progress is called during a resync with the number of files processed so
// far, the total, and the file just handled ("" for the initial call).
type Progress func(done, total int, path string)

// Stats summarises one resync pass.
type Stats struct {
	Scanned  int `json:"scanned"`
	Updated  int `json:"updated"`
	Removed  int `json:"removed"`
	Rendered int `json:"rendered"`
}

// Engine keeps the index faithful to the notes root.
type Engine struct {
	db     *DB
	store  storage.Provider
	render render.Func
	logger *slog.Logger

	hotSet int
	sample int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithHotSet sets how many of the most recent notes get HTML pre-rendered.
func WithHotSet(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.hotSet = n
		}
	}
}

// WithQuickCheckSample sets how many recent notes QuickCheck compares.
func WithQuickCheckSample(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.sample = n
		}
	}
}

// NewEngine creates a consistency engine over db and store.
func NewEngine(db *DB, store storage.Provider, fn render.Func, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		db:     db,
		store:  store,
		render: fn,
		logger: logger,
		hotSet: DefaultHotSet,
		sample: DefaultQuickCheckSample,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// DB returns the index the engine maintains.
func (e *Engine) DB() *DB { return e.db }

// FullResync brings the index up to date with the filesystem:
//   - rows whose file is gone are deleted
//   - rows whose mtime changed are re-read and upserted
//   - the hot set of most recent notes gets rendered HTML
func (e *Engine) FullResync(ctx context.Context, progress Progress) (Stats, error) {
	e.db.rebuild.RLock()
	defer e.db.rebuild.RUnlock()
	return e.resync(ctx, progress)
}

// Recreate drops the index and rebuilds it from the filesystem while holding
// the rebuild lock exclusively. reason is logged.
func (e *Engine) Recreate(ctx context.Context, reason string, progress Progress) (Stats, error) {
	e.db.rebuild.Lock()
	defer e.db.rebuild.Unlock()

	start := time.Now()
	e.logger.Warn("index: rebuild started", slog.String("reason", reason))

	if err := e.db.reset(ctx); err != nil {
		e.logger.Error("index: rebuild failed",
			slog.String("reason", reason),
			slog.String("stage", "reset"),
			slog.String("error", err.Error()))
		return Stats{}, fmt.Errorf("index: recreate: %w", errors.Join(apperr.ErrRebuildFailed, err))
	}
	stats, err := e.resync(ctx, progress)
	if err != nil {
		e.logger.Error("index: rebuild failed",
			slog.String("reason", reason),
			slog.String("stage", "resync"),
			slog.String("error", err.Error()))
		return stats, fmt.Errorf("index: recreate: %w", errors.Join(apperr.ErrRebuildFailed, err))
	}
	e.logger.Info("index: rebuild finished",
		slog.String("reason", reason),
		slog.Int("notes", stats.Scanned),
		slog.Duration("took", time.Since(start)))
	return stats, nil
}

// resync runs one pass. The caller holds the rebuild lock on either side.
func (e *Engine) resync(ctx context.Context, progress Progress) (Stats, error) {
	var stats Stats

	metas, err := e.store.List()
	if err != nil {
		return stats, err
	}
	states, err := loadStates(ctx, e.db.conn)
	if err != nil {
		return stats, err
	}

	tx, err := e.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("index: begin tx: %w", errors.Join(apperr.ErrIndexConnection, err))
	}
	defer tx.Rollback() //nolint:errcheck

	onDisk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		onDisk[m.Path] = struct{}{}
	}
	for name := range states {
		if _, ok := onDisk[name]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE filename = ?`, name); err != nil {
			return stats, queryErr("resync delete", err)
		}
		stats.Removed++
		e.logger.Debug("sync: removed stale", slog.String("path", name))
	}

	total := len(metas)
	e.report(progress, 0, total, "")

	for i, m := range metas {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Scanned++
		hot := i < e.hotSet
		st, known := states[m.Path]

		switch {
		case !known || st.modified != m.ModTime:
			row, ok := e.buildRow(m, hot)
			if !ok {
				break
			}
			if err := upsertRow(ctx, tx, row); err != nil {
				return stats, err
			}
			stats.Updated++
			if row.Indexed {
				stats.Rendered++
			}
		case hot && !st.indexed:
			cur, err := getRow(ctx, tx, m.Path)
			if err != nil {
				return stats, err
			}
			html, err := e.render(cur.Content)
			if err != nil {
				e.logger.Warn("sync: render failed", slog.String("path", m.Path), slog.String("error", err.Error()))
				break
			}
			if err := cacheHTML(ctx, tx, m.Path, html); err != nil {
				return stats, err
			}
			stats.Rendered++
		}

		if done := i + 1; done%progressEvery == 0 || done == total {
			e.report(progress, done, total, m.Path)
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, queryErr("commit resync", err)
	}
	return stats, nil
}

// buildRow reads a file and prepares its row. Files that vanish or cannot
// be read mid-walk are skipped.
func (e *Engine) buildRow(m models.FileMeta, hot bool) (Row, bool) {
	data, err := e.store.Read(m.Path)
	if err != nil {
		e.logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		return Row{}, false
	}
	row := Row{Filename: m.Path, Content: string(data), Modified: m.ModTime}
	if hot {
		html, err := e.render(row.Content)
		if err != nil {
			e.logger.Warn("sync: render failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			row.HTML = html
			row.Indexed = true
		}
	}
	return row, true
}

func (e *Engine) report(progress Progress, done, total int, path string) {
	if progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("sync: progress callback panicked", slog.Any("panic", r))
		}
	}()
	progress(done, total, path)
}

// QuickCheck samples the most recently modified files and reports whether
// the index agrees with them byte for byte (mtime within one second). It
// also compares the number of notes on disk with the number of rows.
func (e *Engine) QuickCheck(ctx context.Context) (bool, error) {
	e.db.rebuild.RLock()
	defer e.db.rebuild.RUnlock()

	metas, err := e.store.List()
	if err != nil {
		return false, err
	}
	var rows int
	if err := e.db.conn.QueryRowContext(ctx, `SELECT count(*) FROM notes`).Scan(&rows); err != nil {
		return false, queryErr("quick check count", err)
	}
	if rows != len(metas) {
		e.logger.Info("sync: row count differs from disk", slog.Int("rows", rows), slog.Int("files", len(metas)))
		return false, nil
	}

	for _, m := range metas[:min(e.sample, len(metas))] {
		row, err := getRow(ctx, e.db.conn, m.Path)
		if errors.Is(err, apperr.ErrNotFound) {
			e.logger.Info("sync: note missing from index", slog.String("path", m.Path))
			return false, nil
		}
		if err != nil {
			return false, err
		}
		data, err := e.store.Read(m.Path)
		if err != nil {
			return false, nil
		}
		if !bytes.Equal(data, []byte(row.Content)) {
			e.logger.Info("sync: content differs", slog.String("path", m.Path))
			return false, nil
		}
		if d := row.Modified - m.ModTime; d > 1 || d < -1 {
			e.logger.Info("sync: mtime differs", slog.String("path", m.Path))
			return false, nil
		}
	}
	return true, nil
}

// Update re-reads a note from disk and upserts it with rendered HTML.
func (e *Engine) Update(ctx context.Context, path string) error {
	mod, err := e.store.Stat(path)
	if err != nil {
		return err
	}
	row, ok := e.buildRow(models.FileMeta{Path: path, ModTime: mod}, true)
	if !ok {
		return fmt.Errorf("index: update %s: %w", path, apperr.ErrReadFailed)
	}
	return e.db.Upsert(ctx, row)
}

// Remove deletes a note's row.
func (e *Engine) Remove(ctx context.Context, path string) error {
	return e.db.Delete(ctx, path)
}

// Move renames a note's row and refreshes it from the new location.
func (e *Engine) Move(ctx context.Context, oldPath, newPath string) error {
	if err := e.db.Rename(ctx, oldPath, newPath); err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
	}
	return e.Update(ctx, newPath)
}

// Rendered returns the cached HTML for path, rendering and caching it on
// first access.
func (e *Engine) Rendered(ctx context.Context, path string) (string, error) {
	row, err := e.db.Get(ctx, path)
	if err != nil {
		return "", err
	}
	if row.Indexed {
		return row.HTML, nil
	}
	html, err := e.render(row.Content)
	if err != nil {
		return "", err
	}
	if err := e.db.CacheHTML(ctx, path, html); err != nil {
		e.logger.Warn("index: cache html failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	return html, nil
}
