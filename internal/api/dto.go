package api

import (
	"time"

	"github.com/starford/tessera/internal/index"
	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/ranker"
)

// CreateNoteRequest is the request body for creating a note. Content is
// optional; without it the note is created empty.
type CreateNoteRequest struct {
	Path    string `json:"path" example:"notes/hello.md" validate:"required"`
	Content string `json:"content" example:"# Hello\nWorld"`
}

// SaveNoteRequest is the request body for saving a note. LastSeen is the
// content the client last read; a mismatch with disk is a conflict.
type SaveNoteRequest struct {
	Content  string `json:"content" example:"# Updated\nContent"`
	LastSeen string `json:"last_seen" example:"# Hello\nWorld"`
}

// RenameRequest is the request body for renaming a note.
type RenameRequest struct {
	From string `json:"from" example:"notes/hello.md" validate:"required"`
	To   string `json:"to" example:"notes/greeting.md" validate:"required"`
}

// RestoreRequest is the request body for restoring a version.
type RestoreRequest struct {
	Path    string `json:"path" example:"notes/hello.md" validate:"required"`
	Version string `json:"version" example:"notes/hello.rollback.1718000000.md" validate:"required"`
}

// NoteDetail is the full note response type.
type NoteDetail = models.Note

// RenderedNote is a note rendered to HTML.
type RenderedNote struct {
	Path string `json:"path" validate:"required"`
	HTML string `json:"html" validate:"required"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []string `json:"notes" validate:"required"`
	Total int      `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps ranked search hits.
type SearchResponse struct {
	Results []ranker.Hit `json:"results" validate:"required"`
}

// VersionListResponse wraps the backups of one note.
type VersionListResponse struct {
	Versions []models.Version `json:"versions" validate:"required"`
}

// VersionContent is the content of one backup.
type VersionContent struct {
	Name    string `json:"name" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// ResyncResponse reports the outcome of a resync or rebuild.
type ResyncResponse struct {
	Stats   index.Stats `json:"stats"`
	Rebuild bool        `json:"rebuild"`
	Took    string      `json:"took" example:"120ms"`
}

// CheckResponse reports whether the index agrees with the notes root.
type CheckResponse struct {
	InSync    bool      `json:"in_sync"`
	CheckedAt time.Time `json:"checked_at"`
}

type warningResponse struct {
	Warning string `json:"warning"`
}
