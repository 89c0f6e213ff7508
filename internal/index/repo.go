package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/tessera/internal/apperr"
)

// Row is one note in the index.
type Row struct {
	Filename string
	Content  string
	HTML     string
	Modified int64 // unix seconds
	Indexed  bool
}

// Candidate is a note returned by the candidate filter for rescoring.
type Candidate struct {
	Filename string
	Content  string
	Modified int64
}

type state struct {
	modified int64
	indexed  bool
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryErr(op string, err error) error {
	return fmt.Errorf("index: %s: %w", op, errors.Join(apperr.ErrIndexQuery, err))
}

// Upsert replaces the row for r.Filename.
func (db *DB) Upsert(ctx context.Context, r Row) error {
	db.rebuild.RLock()
	defer db.rebuild.RUnlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", errors.Join(apperr.ErrIndexConnection, err))
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit
	if err := upsertRow(ctx, tx, r); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return queryErr("commit upsert", err)
	}
	return nil
}

// upsertRow deletes then inserts, since FTS5 tables carry no unique key.
func upsertRow(ctx context.Context, ex execer, r Row) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM notes WHERE filename = ?`, r.Filename); err != nil {
		return queryErr("upsert delete", err)
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO notes (filename, content, html_render, modified, is_indexed)
		VALUES (?, ?, ?, ?, ?)
	`, r.Filename, r.Content, r.HTML, r.Modified, boolInt(r.Indexed))
	if err != nil {
		return queryErr("upsert insert", err)
	}
	return nil
}

// Delete removes the row for filename. A missing row is not an error.
func (db *DB) Delete(ctx context.Context, filename string) error {
	db.rebuild.RLock()
	defer db.rebuild.RUnlock()

	if _, err := db.conn.ExecContext(ctx, `DELETE FROM notes WHERE filename = ?`, filename); err != nil {
		return queryErr("delete", err)
	}
	return nil
}

// Rename moves the row for oldName to newName in one transaction. Any stale
// row already at newName is replaced.
func (db *DB) Rename(ctx context.Context, oldName, newName string) error {
	db.rebuild.RLock()
	defer db.rebuild.RUnlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", errors.Join(apperr.ErrIndexConnection, err))
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE filename = ?`, newName); err != nil {
		return queryErr("rename clear", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE notes SET filename = ? WHERE filename = ?`, newName, oldName)
	if err != nil {
		return queryErr("rename", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index: rename %s: %w", oldName, apperr.ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return queryErr("commit rename", err)
	}
	return nil
}

// Get returns the row for filename.
func (db *DB) Get(ctx context.Context, filename string) (Row, error) {
	db.rebuild.RLock()
	defer db.rebuild.RUnlock()
	return getRow(ctx, db.conn, filename)
}

func getRow(ctx context.Context, ex execer, filename string) (Row, error) {
	r := Row{Filename: filename}
	var indexed int
	err := ex.QueryRowContext(ctx, `
		SELECT content, html_render, modified, is_indexed
		FROM notes
		WHERE filename = ?
	`, filename).Scan(&r.Content, &r.HTML, &r.Modified, &indexed)
	if errors.Is(err, sql.ErrNoRows) {
		return Row{}, fmt.Errorf("index: get %s: %w", filename, apperr.ErrNotFound)
	}
	if err != nil {
		return Row{}, queryErr("get", err)
	}
	r.Indexed = indexed != 0
	return r, nil
}

// CacheHTML stores rendered HTML for filename and marks it indexed.
func (db *DB) CacheHTML(ctx context.Context, filename, html string) error {
	db.rebuild.RLock()
	defer db.rebuild.RUnlock()
	return cacheHTML(ctx, db.conn, filename, html)
}

func cacheHTML(ctx context.Context, ex execer, filename, html string) error {
	_, err := ex.ExecContext(ctx,
		`UPDATE notes SET html_render = ?, is_indexed = 1 WHERE filename = ?`, html, filename)
	if err != nil {
		return queryErr("cache html", err)
	}
	return nil
}

// List returns every indexed filename, most recently modified first.
func (db *DB) List(ctx context.Context) ([]string, error) {
	db.rebuild.RLock()
	defer db.rebuild.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `SELECT filename FROM notes ORDER BY modified DESC, filename ASC`)
	if err != nil {
		return nil, queryErr("list", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, queryErr("list scan", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Count returns the number of rows.
func (db *DB) Count(ctx context.Context) (int, error) {
	db.rebuild.RLock()
	defer db.rebuild.RUnlock()

	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM notes`).Scan(&n); err != nil {
		return 0, queryErr("count", err)
	}
	return n, nil
}

// Recent returns the n most recently modified notes.
func (db *DB) Recent(ctx context.Context, n int) ([]Candidate, error) {
	db.rebuild.RLock()
	defer db.rebuild.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT filename, content, modified
		FROM notes
		ORDER BY modified DESC, filename ASC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, queryErr("recent", err)
	}
	return scanCandidates(rows)
}

// Candidates runs the full-text candidate filter for query, returning at
// most limit rows. Errors carry a fixed message and never include the query.
func (db *DB) Candidates(ctx context.Context, query string, limit int) ([]Candidate, error) {
	words := strings.Fields(query)
	if len(words) == 0 {
		return nil, nil
	}

	db.rebuild.RLock()
	defer db.rebuild.RUnlock()

	q, args := candidateQuery(words, limit)
	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "fts5") {
			return nil, fmt.Errorf("index: search: %w", apperr.ErrSearchQuery)
		}
		return nil, fmt.Errorf("index: search: %w", apperr.ErrSearchIndex)
	}
	out, err := scanCandidates(rows)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", apperr.ErrSearchIndex)
	}
	return out, nil
}

func scanCandidates(rows *sql.Rows) ([]Candidate, error) {
	defer rows.Close()
	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.Filename, &c.Content, &c.Modified); err != nil {
			return nil, queryErr("scan", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("rows", err)
	}
	return out, nil
}

// loadStates returns filename → (modified, is_indexed) for every row.
func loadStates(ctx context.Context, conn *sql.DB) (map[string]state, error) {
	rows, err := conn.QueryContext(ctx, `SELECT filename, modified, is_indexed FROM notes`)
	if err != nil {
		return nil, queryErr("load states", err)
	}
	defer rows.Close()

	out := make(map[string]state)
	for rows.Next() {
		var name string
		var st state
		var indexed int
		if err := rows.Scan(&name, &st.modified, &indexed); err != nil {
			return nil, queryErr("load states scan", err)
		}
		st.indexed = indexed != 0
		out[name] = st
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
