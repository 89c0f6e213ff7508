package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/tessera/internal/apperr"
	"github.com/starford/tessera/internal/backup"
	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/storage"
)

// List returns every note, most recently modified first. It reads the index
// and falls back to walking the notes root when the index is unavailable.
func (s *Service) List(ctx context.Context) ([]string, error) {
	names, err := s.idx.List(ctx)
	if err == nil {
		return names, nil
	}
	s.logger.Warn("noteservice: index list failed, walking notes root", slog.String("error", err.Error()))
	s.RebuildAsync("list failed")

	metas, ferr := s.store.List()
	if ferr != nil {
		return nil, ferr
	}
	names = make([]string, len(metas))
	for i, m := range metas {
		names[i] = m.Path
	}
	return names, nil
}

// Read returns a note's content.
func (s *Service) Read(_ context.Context, name string) (string, error) {
	if err := storage.ValidateName(name); err != nil {
		return "", err
	}
	data, err := s.store.Read(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Get returns a note's content with its modification time.
func (s *Service) Get(_ context.Context, name string) (*models.Note, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}
	data, err := s.store.Read(name)
	if err != nil {
		return nil, err
	}
	mod, err := s.store.Stat(name)
	if err != nil {
		return nil, err
	}
	return &models.Note{Path: name, Content: string(data), UpdatedAt: time.Unix(mod, 0)}, nil
}

// ReadRendered returns a note's HTML, rendering and caching it on first
// access. A note that exists on disk but not yet in the index is indexed
// first.
func (s *Service) ReadRendered(ctx context.Context, name string) (string, error) {
	if err := storage.ValidateName(name); err != nil {
		return "", err
	}
	html, err := s.engine.Rendered(ctx, name)
	if !errors.Is(err, apperr.ErrNotFound) {
		return html, err
	}
	if err := s.engine.Update(ctx, name); err != nil {
		return "", err
	}
	return s.engine.Rendered(ctx, name)
}

// Create creates an empty note. It fails with ErrAlreadyExists if the note
// exists.
func (s *Service) Create(ctx context.Context, name string) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	s.raise()
	if err := s.store.Create(name); err != nil {
		return err
	}
	s.logger.Info("noteservice: created", slog.String("path", name))
	s.notify(models.ChangeCreated, name, "")
	return s.reindex(ctx, name, func(ctx context.Context) error {
		return s.engine.Update(ctx, name)
	})
}

// Save replaces a note's content. lastSeen is the content the caller based
// its edit on; if the note on disk no longer matches it the save is refused
// with ErrExternalModification, after the attempted content has been kept
// as a save-failure backup.
func (s *Service) Save(ctx context.Context, name, content, lastSeen string) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}

	current, err := s.store.Read(name)
	exists := err == nil
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if (exists && string(current) != lastSeen) || (!exists && lastSeen != "") {
		return s.refuse(name, content, exists)
	}
	if exists && string(current) == content {
		return nil
	}

	s.raise()
	if err := s.store.SafeWrite(name, []byte(content)); err != nil {
		return err
	}
	kind := models.ChangeUpdated
	if !exists {
		kind = models.ChangeCreated
	}
	s.notify(kind, name, "")
	return s.reindex(ctx, name, func(ctx context.Context) error {
		return s.engine.Update(ctx, name)
	})
}

// refuse records a rejected save: the attempted content and, when present,
// what is now on disk.
func (s *Service) refuse(name, content string, exists bool) error {
	s.logger.Warn("noteservice: external modification detected", slog.String("path", name))

	errs := []error{apperr.ErrExternalModification}
	if _, err := s.backups.Create(name, backup.KindSaveFailure, []byte(content)); err != nil {
		s.logger.Error("noteservice: save-failure backup failed",
			slog.String("path", name),
			slog.String("error", err.Error()))
		errs = append(errs, apperr.ErrWriteFailed)
	}
	if exists {
		if _, err := s.backups.Create(name, backup.KindExternalChange, nil); err != nil {
			s.logger.Warn("noteservice: external-change backup failed",
				slog.String("path", name),
				slog.String("error", err.Error()))
		}
	}
	return fmt.Errorf("noteservice: save %s: %w", name, errors.Join(errs...))
}

// Rename moves a note. It never overwrites an existing note.
func (s *Service) Rename(ctx context.Context, oldName, newName string) error {
	if err := storage.ValidateName(oldName); err != nil {
		return err
	}
	if err := storage.ValidateName(newName); err != nil {
		return err
	}
	s.raise()
	if err := s.store.Move(oldName, newName); err != nil {
		return err
	}
	s.logger.Info("noteservice: renamed", slog.String("from", oldName), slog.String("to", newName))
	s.notify(models.ChangeRenamed, newName, oldName)
	return s.reindex(ctx, newName, func(ctx context.Context) error {
		return s.engine.Move(ctx, oldName, newName)
	})
}

// Delete removes a note. Deleting a missing note succeeds and only
// reconciles the index.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	s.raise()
	existed, err := s.store.Delete(name)
	if err != nil {
		return err
	}
	if existed {
		s.logger.Info("noteservice: deleted", slog.String("path", name))
		s.notify(models.ChangeDeleted, name, "")
	}
	return s.reindex(ctx, name, func(ctx context.Context) error {
		return s.engine.Remove(ctx, name)
	})
}
