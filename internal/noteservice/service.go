// Package noteservice is the commands layer: every note operation goes
// through here so that filesystem mutations, index maintenance, backups and
// change notifications stay in step.
package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/tessera/internal/apperr"
	"github.com/starford/tessera/internal/backup"
	"github.com/starford/tessera/internal/index"
	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/storage"
)

const (
	// DefaultSelfWriteWindow is how long the programmatic-operation flag
	// stays raised after a write made by the service.
	DefaultSelfWriteWindow = 3 * time.Second
	DefaultMaxCandidates   = 500

	backgroundWorkers = 2
	backgroundQueue   = 8
)

// Events receives change notifications. *sse.Broker satisfies it.
type Events interface {
	NoteChanged(c models.Change)
	ResyncProgress(done, total int)
}

type nopEvents struct{}

func (nopEvents) NoteChanged(models.Change) {}
func (nopEvents) ResyncProgress(_, _ int)   {}

// Service coordinates storage, backups and the index.
type Service struct {
	store   storage.Provider
	backups *backup.Manager
	engine  *index.Engine
	idx     index.NoteIndex
	logger  *slog.Logger
	events  Events

	maxCandidates int
	window        time.Duration

	// Programmatic-operation flag. selfGen invalidates timers from earlier
	// raises so that only the latest one clears the flag.
	flagMu   sync.Mutex
	selfGen  uint64
	selfBusy bool

	// Background resyncs and rebuilds run on a fixed worker pool fed by
	// jobs. Scheduling never blocks; resyncOn and rebuildOn coalesce
	// repeated requests into one queued job each.
	bg        *errgroup.Group
	bgCtx     context.Context
	cancel    context.CancelFunc
	jobs      chan func(context.Context)
	resyncOn  atomic.Bool
	rebuildOn atomic.Bool
	dirty     atomic.Bool
}

// Option configures a Service.
type Option func(*Service)

// WithEvents sets the change-notification sink.
func WithEvents(e Events) Option {
	return func(s *Service) {
		if e != nil {
			s.events = e
		}
	}
}

// WithSelfWriteWindow sets how long the programmatic-operation flag stays
// raised after each write.
func WithSelfWriteWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithMaxCandidates caps the full-text candidates rescored per search.
func WithMaxCandidates(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxCandidates = n
		}
	}
}

// NewService creates a new note service. Close must be called to stop
// background work.
func NewService(store storage.Provider, backups *backup.Manager, engine *index.Engine, logger *slog.Logger, opts ...Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	g, gCtx := errgroup.WithContext(ctx)

	s := &Service{
		store:         store,
		backups:       backups,
		engine:        engine,
		idx:           engine.DB(),
		logger:        logger,
		events:        nopEvents{},
		maxCandidates: DefaultMaxCandidates,
		window:        DefaultSelfWriteWindow,
		bg:            g,
		bgCtx:         gCtx,
		cancel:        cancel,
		jobs:          make(chan func(context.Context), backgroundQueue),
	}
	for _, o := range opts {
		o(s)
	}
	for range backgroundWorkers {
		g.Go(s.work)
	}
	return s
}

func (s *Service) work() error {
	for {
		select {
		case <-s.bgCtx.Done():
			return nil
		case job := <-s.jobs:
			job(s.bgCtx)
		}
	}
}

// enqueue hands job to the worker pool without waiting. It reports false
// when the service is closed or the queue is full.
func (s *Service) enqueue(job func(context.Context)) bool {
	if s.bgCtx.Err() != nil {
		return false
	}
	select {
	case s.jobs <- job:
		return true
	default:
		return false
	}
}

// Close cancels background resyncs and waits for them to finish. Queued
// jobs that have not started are dropped.
func (s *Service) Close() error {
	s.cancel()
	return s.bg.Wait()
}

// SelfWriting reports whether the service wrote to the notes root within
// the self-write window. The watcher uses it to ignore its own echoes.
func (s *Service) SelfWriting() bool {
	s.flagMu.Lock()
	defer s.flagMu.Unlock()
	return s.selfBusy
}

// raise sets the programmatic-operation flag and schedules its clearing.
// It must be called before the filesystem is touched.
func (s *Service) raise() {
	s.flagMu.Lock()
	s.selfGen++
	gen := s.selfGen
	s.selfBusy = true
	s.flagMu.Unlock()

	time.AfterFunc(s.window, func() {
		s.flagMu.Lock()
		defer s.flagMu.Unlock()
		if s.selfGen == gen {
			s.selfBusy = false
		}
	})
}

// reindex runs an index update that follows a successful filesystem
// mutation. On failure the index is rebuilt from disk and a successful
// rebuild is silent. A rebuild cut short by ctx continues in the background
// and is reported as ErrNotSearchable; any other rebuild failure is
// returned as is and matches ErrRebuildFailed.
func (s *Service) reindex(ctx context.Context, path string, update func(context.Context) error) error {
	err := update(ctx)
	if err == nil {
		return nil
	}
	s.logger.Warn("noteservice: index update failed, rebuilding",
		slog.String("path", path),
		slog.String("error", err.Error()))

	if _, rerr := s.engine.Recreate(ctx, "index update failed for "+path, s.progress); rerr != nil {
		if ctx.Err() != nil {
			s.RebuildAsync("interrupted rebuild for " + path)
			return fmt.Errorf("noteservice: %s: %w", path, apperr.ErrNotSearchable)
		}
		return fmt.Errorf("noteservice: %s: %w", path, rerr)
	}
	s.logger.Info("noteservice: index recovered", slog.String("path", path))
	return nil
}

func (s *Service) progress(done, total int, _ string) {
	s.events.ResyncProgress(done, total)
}

func (s *Service) notify(kind, path, from string) {
	s.events.NoteChanged(models.Change{Kind: kind, Path: path, From: from})
}
