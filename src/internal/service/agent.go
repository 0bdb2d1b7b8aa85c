// FILE: src/internal/service/agent.go
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"logpulse/src/internal/auth"
	"logpulse/src/internal/config"
	"logpulse/src/internal/core"
	"logpulse/src/internal/discovery"
	"logpulse/src/internal/scheduler"
	"logpulse/src/internal/store"
	"logpulse/src/internal/syncer"
	"logpulse/src/internal/tail"

	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// TargetAll watches every discovered log file.
const TargetAll = "all"

// Service owns the store, discovery engine, scheduler, and sync engine
// and exposes the operations the CLI consumes.
type Service struct {
	config *config.Config
	db     *store.Store
	disc   *discovery.Engine
	logger *log.Logger

	mu         sync.Mutex
	sched      *scheduler.Scheduler
	collectors map[string]*collector

	recordsBuffered atomic.Uint64
	recordsDropped  atomic.Uint64
	warnLimiter     *rate.Limiter
}

// collector accumulates one tailer's records between step and flush.
// A tailer's step and the flush that follows run on the same worker,
// so the slice needs no lock of its own.
type collector struct {
	pending []*store.LogRecord
}

// New opens the store and prepares a service.
func New(cfg *config.Config, logger *log.Logger) (*Service, error) {
	db, err := store.Open(store.Options{
		Path:          cfg.Store.Path,
		BusyTimeoutMS: cfg.Store.BusyTimeoutMS,
	})
	if err != nil {
		return nil, err
	}

	return &Service{
		config:      cfg,
		db:          db,
		disc:        discovery.NewEngine(cfg.Discovery.Roots, cfg.Discovery.ExcludeDirs, cfg.Discovery.Recursive, logger),
		logger:      logger,
		collectors:  make(map[string]*collector),
		warnLimiter: rate.NewLimiter(rate.Every(30*time.Second), 2),
	}, nil
}

// Close releases the store.
func (s *Service) Close() error {
	return s.db.Close()
}

// Store exposes the underlying store for status queries.
func (s *Service) Store() *store.Store {
	return s.db
}

// Scan runs discovery without starting any watches.
func (s *Service) Scan(ctx context.Context, shallow bool) ([]discovery.Found, []discovery.Problem) {
	return s.disc.Scan(ctx, shallow)
}

// Watch discovers files (or resolves a single target path), backfills
// new ones, and tails them until ctx is cancelled. In-flight tail
// steps complete before teardown; the final offsets are persisted by
// the last flush of each file.
func (s *Service) Watch(ctx context.Context, target string) error {
	pid := os.Getpid()
	if err := s.db.Sessions.Register(pid, "watch", target); err != nil {
		return fmt.Errorf("failed to register session: %w", err)
	}
	defer func() {
		if err := s.db.Sessions.Deregister(pid); err != nil {
			s.logger.Warn("msg", "Failed to deregister session",
				"component", "service",
				"pid", pid,
				"error", err)
		}
	}()

	found, problems := s.resolveTargets(ctx, target)
	if len(found) == 0 {
		return fmt.Errorf("no log files to watch for target %q", target)
	}
	for _, p := range problems {
		s.logger.Warn("msg", "Discovery problem",
			"component", "service",
			"path", p.Path,
			"corrupt", p.Corrupt,
			"error", p.Err)
	}

	sched, err := scheduler.New(scheduler.Options{
		Config:     s.config.Scheduler,
		Logger:     s.logger,
		OnProgress: s.flushProgress,
		OnClosed:   s.watchClosed,
	})
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	s.mu.Lock()
	s.sched = sched
	s.mu.Unlock()

	active := 0
	for _, f := range found {
		if err := s.attach(f, sched); err != nil {
			s.logger.Warn("msg", "Failed to attach file",
				"component", "service",
				"path", f.Path,
				"error", err)
			continue
		}
		if !f.Archive {
			active++
		}
	}

	s.logger.Info("msg", "Watch started",
		"component", "service",
		"target", target,
		"files", active,
		"pid", pid)

	sched.Run(ctx)

	s.logger.Info("msg", "Watch stopped",
		"component", "service",
		"records_buffered", s.recordsBuffered.Load(),
		"records_dropped", s.recordsDropped.Load())
	return nil
}

// resolveTargets maps the CLI target to concrete files: "all" (or
// empty) runs full discovery, anything else is classified as a single
// explicit path.
func (s *Service) resolveTargets(ctx context.Context, target string) ([]discovery.Found, []discovery.Problem) {
	if target == "" || target == TargetAll {
		return s.disc.Scan(ctx, false)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, []discovery.Problem{{Path: target, Err: err}}
	}
	return []discovery.Found{{
		Path:  target,
		Size:  info.Size(),
		Class: discovery.Classify(target),
	}}, nil
}

// attach sets up one discovered file: upsert its watched row, backfill
// when it is new, and register a tailer unless it is an archive.
// Archives contribute backfill records only.
func (s *Service) attach(f discovery.Found, sched *scheduler.Scheduler) error {
	level := core.LevelFor(f.Class)

	existing, err := s.db.Watched.FindByPath(f.Path)
	isNew := errors.Is(err, store.ErrNotWatched)
	if err != nil && !isNew {
		return err
	}

	if err := s.db.Watched.Upsert(&store.WatchedFile{
		Path:        f.Path,
		Level:       int(level),
		Category:    f.Class.Category,
		Subcategory: f.Class.Subcategory,
	}); err != nil {
		return err
	}

	if isNew {
		s.backfill(f)
	}

	if f.Archive {
		// Historical archives are read once, never tailed.
		return s.db.Watched.SetState(f.Path, store.StateClosed, false)
	}

	resume := tail.ResumeAtEnd
	if !isNew {
		resume = existing.Offset
	}

	t := tail.New(tail.Options{
		Path:         f.Path,
		Class:        f.Class,
		ResumeOffset: resume,
		AbsentGrace:  time.Duration(s.config.Scheduler.AbsentGraceSec) * time.Second,
		StepTimeout:  time.Duration(s.config.Scheduler.StepTimeoutMS) * time.Millisecond,
		Emit:         s.collectorFor(f.Path).add,
		Logger:       s.logger,
	})
	if err := t.Open(); err != nil {
		if errors.Is(err, os.ErrPermission) {
			// Stays registered; the scheduler keeps retrying the open
			// and status reporting shows the denial.
			s.db.Watched.SetState(f.Path, store.StatePermissionDenied, true)
			sched.Register(t, level)
			return nil
		}
		return err
	}

	sched.Register(t, level)
	return nil
}

// backfill captures the most recent lines of a newly discovered file
// so history written before the agent existed is not lost. Backfilled
// records use synthetic negative offsets in their dedup keys so they
// can never collide with live tail offsets.
func (s *Service) backfill(f discovery.Found) {
	maxLines := int(s.config.Discovery.BackfillLines)
	maxArchive := s.config.Discovery.MaxArchiveSizeMB * 1024 * 1024

	lines, err := s.disc.Backfill(f.Path, maxLines, maxArchive)
	if err != nil {
		if errors.Is(err, discovery.ErrArchiveTooLarge) {
			s.logger.Info("msg", "Archive too large for backfill, skipped",
				"component", "service",
				"path", f.Path,
				"size", f.Size)
			return
		}
		s.logger.Warn("msg", "Backfill failed",
			"component", "service",
			"path", f.Path,
			"error", err)
		return
	}
	if len(lines) == 0 {
		return
	}

	var inode uint64
	if info, err := os.Stat(f.Path); err == nil {
		if stat, ok := info.Sys().(*syscall.Stat_t); ok {
			inode = stat.Ino
		}
	}

	now := time.Now()
	recs := make([]*store.LogRecord, 0, len(lines))
	for i, line := range lines {
		recs = append(recs, &store.LogRecord{
			DedupKey:    core.ComputeDedupKey(f.Path, inode, int64(-(i + 1)), line),
			Source:      f.Path,
			Level:       core.InferLevel(line),
			Message:     line,
			Timestamp:   core.ExtractTimestamp(line, now),
			Category:    f.Class.Category,
			Subcategory: f.Class.Subcategory,
		})
	}

	if err := s.insertWithRetry(recs); err != nil {
		s.logger.Warn("msg", "Failed to buffer backfill records",
			"component", "service",
			"path", f.Path,
			"count", len(recs),
			"error", err)
		return
	}
	s.recordsBuffered.Add(uint64(len(recs)))

	s.logger.Info("msg", "Backfilled new file",
		"component", "service",
		"path", f.Path,
		"lines", len(recs),
		"category", f.Class.Category)
}

func (s *Service) collectorFor(path string) *collector {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collectors[path]
	if !ok {
		c = &collector{}
		s.collectors[path] = c
	}
	return c
}

func (c *collector) add(r core.Record) {
	c.pending = append(c.pending, &store.LogRecord{
		DedupKey:    r.DedupKey,
		Source:      r.Source,
		Level:       r.Level,
		Message:     r.Message,
		Timestamp:   r.Time,
		Category:    r.Category,
		Subcategory: r.Subcategory,
	})
}

// flushProgress runs after each successful tail step: buffer the
// step's records first, then persist the advanced offset. Crashing
// between the two replays already-buffered lines, which the dedup
// keys absorb; the reverse order could lose lines.
func (s *Service) flushProgress(info tail.Info) {
	s.mu.Lock()
	c := s.collectors[info.Path]
	s.mu.Unlock()

	if c != nil && len(c.pending) > 0 {
		recs := c.pending
		c.pending = nil
		if err := s.insertWithRetry(recs); err != nil {
			s.recordsDropped.Add(uint64(len(recs)))
			if s.warnLimiter.Allow() {
				s.logger.Warn("msg", "Dropped records after store write failure",
					"component", "service",
					"path", info.Path,
					"count", len(recs),
					"dropped_total", s.recordsDropped.Load(),
					"error", err)
			}
		} else {
			s.recordsBuffered.Add(uint64(len(recs)))
		}
	}

	if err := s.db.Watched.UpdateTracking(info.Path, info.Inode, info.Offset, info.Size, info.State.String()); err != nil {
		if s.warnLimiter.Allow() {
			s.logger.Warn("msg", "Failed to persist tail position",
				"component", "service",
				"path", info.Path,
				"error", err)
		}
	}
}

// insertWithRetry tries a batch insert twice before reporting failure.
func (s *Service) insertWithRetry(recs []*store.LogRecord) error {
	if err := s.db.Records.InsertBatch(recs); err == nil {
		return nil
	}
	return s.db.Records.InsertBatch(recs)
}

func (s *Service) watchClosed(path string) {
	s.mu.Lock()
	delete(s.collectors, path)
	s.mu.Unlock()

	if err := s.db.Watched.SetState(path, store.StateClosed, false); err != nil {
		s.logger.Warn("msg", "Failed to mark watch closed",
			"component", "service",
			"path", path,
			"error", err)
	}
}

// SyncOnce performs a single sync pass with the stored credentials.
func (s *Service) SyncOnce(ctx context.Context) (syncer.Result, error) {
	creds, err := auth.Load()
	if err != nil {
		return syncer.Result{}, err
	}
	return syncer.New(&s.config.Sync, s.db, creds, s.logger).RunOnce(ctx)
}

// SyncContinuous runs sync passes on the given interval until ctx is
// cancelled, registering a session so the run is visible and stoppable
// from other invocations.
func (s *Service) SyncContinuous(ctx context.Context, interval time.Duration) error {
	creds, err := auth.Load()
	if err != nil {
		return err
	}

	pid := os.Getpid()
	if err := s.db.Sessions.Register(pid, "sync", creds.EndpointURL); err != nil {
		return fmt.Errorf("failed to register session: %w", err)
	}
	defer s.db.Sessions.Deregister(pid)

	cfg := s.config.Sync
	if interval > 0 {
		cfg.IntervalSeconds = int64(interval / time.Second)
	}
	return syncer.New(&cfg, s.db, creds, s.logger).Run(ctx)
}

// Status is the agent-wide snapshot consumed by the status command.
type Status struct {
	Sessions      []*store.AgentSession
	Watched       []*store.WatchedFile
	Unsynced      int64
	Cursor        *store.SyncState
	Authenticated bool
	ServerID      string
	EndpointURL   string
}

// GetStatus assembles the snapshot: live sessions, per-file tail
// state, buffer depth, and the sync cursor.
func (s *Service) GetStatus() (*Status, error) {
	st := &Status{}

	var err error
	if st.Sessions, err = s.db.Sessions.List(pidAlive); err != nil {
		return nil, err
	}
	if st.Watched, err = s.db.Watched.FindAll(); err != nil {
		return nil, err
	}
	if st.Unsynced, err = s.db.Records.UnsyncedCount(); err != nil {
		return nil, err
	}
	if st.Cursor, err = s.db.SyncCursor(); err != nil {
		return nil, err
	}

	if creds, err := auth.Load(); err == nil {
		st.Authenticated = true
		st.ServerID = creds.ServerID
		st.EndpointURL = creds.EndpointURL
	}
	return st, nil
}

// StopSessions signals running agent sessions. Target "all" (or empty)
// stops every live session; anything else stops sessions watching that
// target. Returns the number of processes signalled.
func (s *Service) StopSessions(target string) (int, error) {
	var sessions []*store.AgentSession
	var err error
	if target == "" || target == TargetAll {
		sessions, err = s.db.Sessions.List(pidAlive)
	} else {
		sessions, err = s.db.Sessions.FindByTarget(target, pidAlive)
	}
	if err != nil {
		return 0, err
	}

	stopped := 0
	for _, sess := range sessions {
		if sess.PID == os.Getpid() {
			continue
		}
		if err := syscall.Kill(sess.PID, syscall.SIGTERM); err != nil {
			s.logger.Warn("msg", "Failed to signal session",
				"component", "service",
				"pid", sess.PID,
				"error", err)
			continue
		}
		stopped++
		s.logger.Info("msg", "Session signalled to stop",
			"component", "service",
			"pid", sess.PID,
			"mode", sess.Mode,
			"target", sess.Target)
	}
	return stopped, nil
}

// GetStats aggregates per-component counters.
func (s *Service) GetStats() map[string]any {
	stats := map[string]any{
		"records_buffered": s.recordsBuffered.Load(),
		"records_dropped":  s.recordsDropped.Load(),
	}
	s.mu.Lock()
	sched := s.sched
	s.mu.Unlock()
	if sched != nil {
		stats["scheduler"] = sched.GetStats()
	}
	return stats
}

// pidAlive reports whether the process still exists; signal 0 probes
// without delivering.
func pidAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
