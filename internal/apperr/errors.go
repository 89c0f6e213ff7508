// Package apperr defines the error kinds shared by the storage, index and
// service layers. Callers classify failures with errors.Is.
package apperr

import "errors"

// Filesystem.
var (
	ErrNotFound    = errors.New("not found")
	ErrPermission  = errors.New("permission denied")
	ErrWriteFailed = errors.New("write failed")
	ErrReadFailed  = errors.New("read failed")
)

// Conflicts.
var (
	ErrAlreadyExists        = errors.New("already exists")
	ErrExternalModification = errors.New("external modification detected")
)

// Index.
var (
	ErrIndexConnection = errors.New("index connection error")
	ErrIndexQuery      = errors.New("index query error")
	ErrRebuildFailed   = errors.New("index rebuild failed")
	// ErrNotSearchable is the soft outcome: the note is durable on disk and
	// the index is still being rebuilt in the background.
	ErrNotSearchable = errors.New("note saved, but not searchable until rebuild completes")
)

// Validation.
var (
	ErrInvalidName   = errors.New("invalid note name")
	ErrPathTraversal = errors.New("path traversal")
	ErrInvalidPath   = errors.New("invalid path")
)

// Search.
var (
	ErrSearchIndex = errors.New("search index unavailable")
	ErrSearchQuery = errors.New("invalid search query")
)

// IsValidation reports whether err is a validation failure. Validation
// failures surface immediately and never trigger index recovery.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrPathTraversal) ||
		errors.Is(err, ErrInvalidPath)
}

// IsSoft reports whether err only means the note is not searchable yet. A
// failed rebuild is never soft.
func IsSoft(err error) bool {
	return errors.Is(err, ErrNotSearchable) && !errors.Is(err, ErrRebuildFailed)
}

// Message returns a fixed, client-safe description of err's kind. It never
// includes paths or query text carried by the wrapped error.
func Message(err error) string {
	switch {
	case IsValidation(err):
		return "invalid note name"
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrAlreadyExists):
		return "note already exists"
	case errors.Is(err, ErrExternalModification):
		return "note was modified externally"
	case errors.Is(err, ErrRebuildFailed):
		return "search index rebuild failed; notes on disk are unaffected"
	case errors.Is(err, ErrNotSearchable):
		return ErrNotSearchable.Error()
	case errors.Is(err, ErrSearchQuery):
		return "invalid search query"
	case errors.Is(err, ErrPermission):
		return "permission denied"
	case errors.Is(err, ErrSearchIndex):
		return "search index unavailable"
	}
	return "internal error"
}
