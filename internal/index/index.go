package index

import "context"

// NoteIndex defines the row operations consumers need from the index.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type NoteIndex interface {
	Upsert(ctx context.Context, r Row) error
	Delete(ctx context.Context, filename string) error
	Rename(ctx context.Context, oldName, newName string) error
	Get(ctx context.Context, filename string) (Row, error)
	CacheHTML(ctx context.Context, filename, html string) error
	List(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	Recent(ctx context.Context, n int) ([]Candidate, error)
	Candidates(ctx context.Context, query string, limit int) ([]Candidate, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
