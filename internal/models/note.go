// Package models defines the domain types for Tessera.
package models

import "time"

// Note is a note as stored in the index: its root-relative identity, raw
// content, modification time and rendered-HTML cache.
type Note struct {
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	HTML      string    `json:"-"`
	Indexed   bool      `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileMeta is what a filesystem walk records for one eligible note file.
type FileMeta struct {
	Path    string // relative to the notes root, slash separated
	AbsPath string
	ModTime int64 // unix seconds
}

// Version describes one backup of a note.
type Version struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
}

// Change kinds.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
	ChangeRenamed = "renamed"
)

// Change describes a note mutation made through the service. From is set
// for renames only.
type Change struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
	From string `json:"from,omitempty"`
}
