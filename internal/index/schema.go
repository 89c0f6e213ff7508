// Package index is the derived, rebuildable SQLite cache of the notes root:
// one row per note holding content, a rendered-HTML cache and the file's
// modification time. The filesystem is always authoritative.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/tessera/internal/apperr"
)

// ErrDuplicateFilenames is returned by Open when the notes table holds more
// than one row for a filename, a symptom of earlier corruption.
var ErrDuplicateFilenames = errors.New("index: duplicate filenames detected")

// DB wraps a sql.DB with index-specific operations.
//
// rebuild is the Rebuild Lock: ordinary operations hold the read side,
// Engine.Recreate holds the write side for the whole rebuild so that no
// reader observes a half-built table.
type DB struct {
	path    string
	rebuild sync.RWMutex
	conn    *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(path string) (*DB, error) {
	conn, err := openConn(path)
	if err != nil {
		return nil, err
	}
	if err := applySchema(context.Background(), conn); err != nil {
		conn.Close()
		return nil, err
	}
	if err := checkDuplicates(context.Background(), conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{path: path, conn: conn}, nil
}

// OpenOrReset opens the database at path. If it cannot be opened or fails
// its integrity checks, the file is removed and a fresh, empty index is
// created; the caller is expected to rebuild it.
func OpenOrReset(path string, logger *slog.Logger) (*DB, error) {
	db, err := Open(path)
	if err == nil {
		return db, nil
	}
	logger.Warn("index: unusable database, recreating",
		slog.String("path", path),
		slog.String("error", err.Error()))
	if err := removeFiles(path); err != nil {
		return nil, err
	}
	return Open(path)
}

func removeFiles(path string) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("index: remove corrupt db: %w", err)
		}
	}
	return nil
}

func openConn(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", errors.Join(apperr.ErrIndexConnection, err))
	}
	conn.SetMaxOpenConns(8)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", errors.Join(apperr.ErrIndexConnection, err))
	}
	return conn, nil
}

func applySchema(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, notesSchemaSQL); err != nil {
		return fmt.Errorf("index: apply schema: %w", errors.Join(apperr.ErrIndexQuery, err))
	}
	return nil
}

func checkDuplicates(ctx context.Context, conn *sql.DB) error {
	var name string
	var n int
	err := conn.QueryRowContext(ctx, `
		SELECT filename, count(*) AS c
		FROM notes
		GROUP BY filename
		HAVING c > 1
		LIMIT 1
	`).Scan(&name, &n)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("index: duplicate check: %w", errors.Join(apperr.ErrIndexQuery, err))
	default:
		return fmt.Errorf("%w (%d rows for one filename)", ErrDuplicateFilenames, n)
	}
}

// reset drops and recreates the schema. If the database file is unusable it
// is removed and recreated from scratch. The caller must hold the write side
// of the rebuild lock.
func (db *DB) reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := db.conn.ExecContext(ctx, `DROP TABLE IF EXISTS notes`)
	if err == nil {
		err = applySchema(ctx, db.conn)
	}
	if err == nil || ctx.Err() != nil {
		return err
	}

	_ = db.conn.Close()
	if err := removeFiles(db.path); err != nil {
		return err
	}
	conn, err := openConn(db.path)
	if err != nil {
		return err
	}
	db.conn = conn
	return applySchema(ctx, conn)
}

// FullText reports whether the notes table is an FTS5 virtual table.
func (db *DB) FullText() bool { return ftsEnabled }

// Close closes the underlying database connection.
func (db *DB) Close() error {
	db.rebuild.Lock()
	defer db.rebuild.Unlock()
	return db.conn.Close()
}
