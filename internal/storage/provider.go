// Package storage is the note filesystem: identifier validation, discovery
// walks, exclusive creation, moves, deletes and the atomic write path.
package storage

import "github.com/starford/tessera/internal/models"

// Provider is the interface for note file operations. All paths are note
// identifiers relative to the notes root.
type Provider interface {
	// List returns every eligible note file, most recently modified first.
	List() ([]models.FileMeta, error)
	// Read returns the raw bytes of the note.
	Read(path string) ([]byte, error)
	// Stat returns the modification time in unix seconds.
	Stat(path string) (int64, error)
	// Create creates an empty note, failing if it already exists.
	Create(path string) error
	// SafeWrite replaces the note's content through the atomic write path.
	SafeWrite(path string, content []byte) error
	// Delete removes the note. It reports whether the note existed.
	Delete(path string) (bool, error)
	// Move renames oldPath to newPath without overwriting newPath.
	Move(oldPath, newPath string) error
}

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)
