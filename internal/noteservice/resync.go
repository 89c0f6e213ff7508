package noteservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/tessera/internal/index"
)

// Resync reconciles the index with the notes root. The incremental pass
// keys on modification times, so it is followed by a quick check; if either
// the pass fails or the check still disagrees with disk (an edit within the
// same second as the last index update) the index is rebuilt.
func (s *Service) Resync(ctx context.Context) (index.Stats, error) {
	start := time.Now()
	stats, err := s.engine.FullResync(ctx, s.progress)
	if err != nil {
		if ctx.Err() != nil {
			return stats, err
		}
		s.logger.Warn("noteservice: resync failed, rebuilding", slog.String("error", err.Error()))
		return s.engine.Recreate(ctx, "resync failed", s.progress)
	}

	ok, err := s.engine.QuickCheck(ctx)
	if err != nil || !ok {
		return s.engine.Recreate(ctx, "index out of sync after resync", s.progress)
	}
	s.logger.Info("noteservice: resync complete",
		slog.Int("scanned", stats.Scanned),
		slog.Int("updated", stats.Updated),
		slog.Int("removed", stats.Removed),
		slog.Duration("took", time.Since(start)))
	return stats, nil
}

// Rebuild drops the index and rebuilds it from the notes root.
func (s *Service) Rebuild(ctx context.Context, reason string) (index.Stats, error) {
	return s.engine.Recreate(ctx, reason, s.progress)
}

// ResyncAsync schedules a Resync on the background pool and returns at
// once. Calls made while a resync is queued or running are coalesced into
// one follow-up pass.
func (s *Service) ResyncAsync(reason string) {
	s.dirty.Store(true)
	if s.bgCtx.Err() != nil || !s.resyncOn.CompareAndSwap(false, true) {
		return
	}
	ok := s.enqueue(func(ctx context.Context) {
		defer func() {
			s.resyncOn.Store(false)
			if s.dirty.Load() && ctx.Err() == nil {
				s.ResyncAsync(reason)
			}
		}()
		for s.dirty.Swap(false) {
			if _, err := s.Resync(ctx); err != nil {
				s.logger.Error("noteservice: background resync failed", slog.String("error", err.Error()))
				return
			}
		}
	})
	if !ok {
		s.resyncOn.Store(false)
		s.logger.Warn("noteservice: background queue full, resync deferred", slog.String("reason", reason))
		return
	}
	s.logger.Debug("noteservice: resync scheduled", slog.String("reason", reason))
}

// RebuildAsync schedules a full rebuild on the background pool and returns
// at once. At most one rebuild waits in the queue; a request made while a
// rebuild is running queues another.
func (s *Service) RebuildAsync(reason string) {
	if s.bgCtx.Err() != nil || !s.rebuildOn.CompareAndSwap(false, true) {
		return
	}
	ok := s.enqueue(func(ctx context.Context) {
		s.rebuildOn.Store(false)
		if _, err := s.engine.Recreate(ctx, reason, s.progress); err != nil {
			s.logger.Error("noteservice: background rebuild failed", slog.String("error", err.Error()))
		}
	})
	if !ok {
		s.rebuildOn.Store(false)
		s.logger.Warn("noteservice: background queue full, rebuild dropped", slog.String("reason", reason))
		return
	}
	s.logger.Debug("noteservice: rebuild scheduled", slog.String("reason", reason))
}

// QuickCheck reports whether a sample of recent notes matches the index.
func (s *Service) QuickCheck(ctx context.Context) (bool, error) {
	return s.engine.QuickCheck(ctx)
}

// Startup probes the index and schedules a rebuild when it is out of sync
// or cannot be checked.
func (s *Service) Startup(ctx context.Context) {
	ok, err := s.engine.QuickCheck(ctx)
	switch {
	case err != nil:
		s.logger.Warn("noteservice: startup check failed", slog.String("error", err.Error()))
		s.RebuildAsync("startup check failed")
	case !ok:
		s.logger.Info("noteservice: index out of sync at startup")
		s.RebuildAsync("index out of sync at startup")
	default:
		s.logger.Info("noteservice: index in sync")
	}
}

// ExternalChange is the watcher trigger: paths changed outside the service
// schedule a resync.
func (s *Service) ExternalChange(paths []string) {
	s.logger.Info("noteservice: external changes detected", slog.Int("paths", len(paths)))
	s.ResyncAsync("external change")
}
