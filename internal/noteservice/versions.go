package noteservice

import (
	"context"
	"log/slog"

	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/storage"
)

// ListVersions returns the backups of a note, newest first.
func (s *Service) ListVersions(_ context.Context, name string) ([]models.Version, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}
	return s.backups.List(name)
}

// ReadVersion returns the content of a backup by its name.
func (s *Service) ReadVersion(_ context.Context, backupName string) (string, error) {
	data, err := s.backups.Read(backupName)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RestoreVersion writes a backup's content back over the note through the
// atomic write path, so the content being replaced gets its own rollback
// backup.
func (s *Service) RestoreVersion(ctx context.Context, name, backupName string) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	data, err := s.backups.Read(backupName)
	if err != nil {
		return err
	}
	s.raise()
	if err := s.store.SafeWrite(name, data); err != nil {
		return err
	}
	s.logger.Info("noteservice: restored version",
		slog.String("path", name),
		slog.String("version", backupName))
	s.notify(models.ChangeUpdated, name, "")
	return s.reindex(ctx, name, func(ctx context.Context) error {
		return s.engine.Update(ctx, name)
	})
}
