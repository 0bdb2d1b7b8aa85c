// FILE: src/internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"errors"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"logpulse/src/internal/config"
	"logpulse/src/internal/core"
	"logpulse/src/internal/tail"

	"github.com/lixenwraith/log"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"
)

// entry is a registered file inside the scheduler.
type entry struct {
	tailer   *tail.Tailer
	level    core.PriorityLevel
	push     atomic.Bool
	inFlight atomic.Bool
	// Rotation count at the last watch refresh; kernel watches follow
	// the inode, so a rotated file needs its watch re-added.
	watchedRotations atomic.Uint64
}

// Options configures a scheduler.
type Options struct {
	Config config.SchedulerConfig
	Logger *log.Logger
	// OnProgress fires after every successful step so the caller can
	// persist offsets.
	OnProgress func(tail.Info)
	// OnClosed fires when a watch ends (absent beyond grace).
	OnClosed func(path string)
}

// Scheduler drives all tailers through four priority levels. Every
// level has its own cadence; a shared worker pool executes steps so a
// slow file blocks at most one worker, never a level.
type Scheduler struct {
	cfg        config.SchedulerConfig
	budget     Budget
	pool       *ants.Pool
	notifier   *Notifier
	onProgress func(tail.Info)
	onClosed   func(string)

	mu      sync.RWMutex
	entries map[string]*entry

	stepsTotal  atomic.Uint64
	stepErrors  atomic.Uint64
	permDenied  atomic.Uint64
	degraded    atomic.Uint64
	warnLimiter *rate.Limiter
	logger      *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a scheduler sized to the host: worker pool at the CPU
// count unless configured, kernel notify budget from detected limits.
// Notify setup failure is not fatal, the scheduler then runs pure-poll.
func New(opts Options) (*Scheduler, error) {
	workers := int(opts.Config.Workers)
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pool, err := ants.NewPool(workers, ants.WithNonblocking(false))
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		cfg:         opts.Config,
		budget:      DetectBudget(opts.Logger),
		pool:        pool,
		onProgress:  opts.OnProgress,
		onClosed:    opts.OnClosed,
		entries:     make(map[string]*entry),
		warnLimiter: rate.NewLimiter(rate.Every(30*time.Second), 2),
		logger:      opts.Logger,
	}

	if opts.Config.PushEnabled {
		n, err := NewNotifier(s.budget.WatchBudget(), int(opts.Config.EventQueueSize), opts.Logger)
		if err != nil {
			opts.Logger.Warn("msg", "Kernel file notification unavailable, polling only",
				"component", "scheduler",
				"error", err)
		} else {
			s.notifier = n
		}
	}
	return s, nil
}

// Register adds a tailer at the given priority level. Push notification
// is attached when the watch budget allows; when it does not, critical
// and high levels evict a lower level's watch rather than degrade.
func (s *Scheduler) Register(t *tail.Tailer, level core.PriorityLevel) {
	e := &entry{tailer: t, level: level}

	s.mu.Lock()
	s.entries[t.Path()] = e
	s.mu.Unlock()

	s.attachWatch(e)

	s.logger.Debug("msg", "File registered",
		"component", "scheduler",
		"path", t.Path(),
		"level", level.String(),
		"push", e.push.Load())
}

// Remove detaches and closes the file's watch.
func (s *Scheduler) Remove(path string) {
	s.mu.Lock()
	e, ok := s.entries[path]
	if ok {
		delete(s.entries, path)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	if s.notifier != nil && e.push.Load() {
		s.notifier.Unwatch(path)
	}
	e.tailer.Close()
}

func (s *Scheduler) attachWatch(e *entry) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Watch(e.tailer.Path())
	if err == nil {
		e.push.Store(true)
		return
	}
	if errors.Is(err, ErrWatchBudget) && e.level <= core.LevelHigh {
		if s.evictLowPriorityWatch() {
			if s.notifier.Watch(e.tailer.Path()) == nil {
				e.push.Store(true)
				return
			}
		}
	}
	e.push.Store(false)
	s.degraded.Add(1)
	if s.warnLimiter.Allow() {
		s.logger.Warn("msg", "Watch budget exceeded, file degraded to polling",
			"component", "scheduler",
			"path", e.tailer.Path(),
			"level", e.level.String(),
			"degraded_total", s.degraded.Load())
	}
}

// evictLowPriorityWatch frees one watch unit from the lowest-priority
// push entry so a critical or high file can take it.
func (s *Scheduler) evictLowPriorityWatch() bool {
	s.mu.RLock()
	var victim *entry
	for _, e := range s.entries {
		if !e.push.Load() || e.level <= core.LevelHigh {
			continue
		}
		if victim == nil || e.level > victim.level {
			victim = e
		}
	}
	s.mu.RUnlock()

	if victim == nil {
		return false
	}
	s.notifier.Unwatch(victim.tailer.Path())
	victim.push.Store(false)
	s.degraded.Add(1)
	s.logger.Info("msg", "Watch reassigned to higher priority file",
		"component", "scheduler",
		"evicted", victim.tailer.Path(),
		"evicted_level", victim.level.String())
	return true
}

// Run starts the level tickers and the push event consumer, blocking
// until ctx is cancelled. Push events only add latency wins: every
// entry is still stepped on its level's tick, which also catches
// rotations that move a kernel watch off the path.
func (s *Scheduler) Run(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.notifier != nil {
		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			s.notifier.Run()
		}()
		go func() {
			defer s.wg.Done()
			s.consumeEvents()
		}()
	}

	for level := core.PriorityLevel(0); level < core.NumLevels; level++ {
		s.wg.Add(1)
		go func(l core.PriorityLevel) {
			defer s.wg.Done()
			s.runLevel(l)
		}(level)
	}

	<-s.ctx.Done()
	if s.notifier != nil {
		s.notifier.Close()
	}
	s.wg.Wait()
	s.pool.Release()
}

// Stop cancels a running scheduler.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Scheduler) runLevel(level core.PriorityLevel) {
	ticker := time.NewTicker(level.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			for _, e := range s.entries {
				if e.level == level {
					s.submit(e)
				}
			}
			s.mu.RUnlock()
		}
	}
}

func (s *Scheduler) consumeEvents() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case path, ok := <-s.notifier.Events():
			if !ok {
				return
			}
			s.mu.RLock()
			e := s.entries[path]
			s.mu.RUnlock()
			if e != nil {
				s.submit(e)
			}
		}
	}
}

// submit schedules one step on the worker pool. At most one step per
// file runs at a time; a tick arriving while a step is in flight is
// dropped, the next tick reads the same bytes.
func (s *Scheduler) submit(e *entry) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return
	}
	err := s.pool.Submit(func() {
		defer e.inFlight.Store(false)
		s.step(e)
	})
	if err != nil {
		e.inFlight.Store(false)
		s.stepErrors.Add(1)
		if s.warnLimiter.Allow() {
			s.logger.Warn("msg", "Worker pool rejected step",
				"component", "scheduler",
				"error", err)
		}
	}
}

func (s *Scheduler) step(e *entry) {
	s.stepsTotal.Add(1)
	err := e.tailer.Step(s.ctx)
	if err != nil {
		switch {
		case errors.Is(err, tail.ErrClosed):
			s.Remove(e.tailer.Path())
			if s.onClosed != nil {
				s.onClosed(e.tailer.Path())
			}
		case errors.Is(err, os.ErrPermission):
			s.permDenied.Add(1)
			if s.warnLimiter.Allow() {
				s.logger.Warn("msg", "Permission denied reading file",
					"component", "scheduler",
					"path", e.tailer.Path())
			}
		case errors.Is(err, context.Canceled):
		default:
			s.stepErrors.Add(1)
			if s.warnLimiter.Allow() {
				s.logger.Warn("msg", "Tail step failed",
					"component", "scheduler",
					"path", e.tailer.Path(),
					"error", err)
			}
		}
		return
	}

	info := e.tailer.GetInfo()
	s.refreshWatch(e, info)
	if s.onProgress != nil {
		s.onProgress(info)
	}
}

// refreshWatch re-adds the kernel watch after a rotation so push
// notification follows the new inode.
func (s *Scheduler) refreshWatch(e *entry, info tail.Info) {
	if s.notifier == nil || !e.push.Load() {
		return
	}
	last := e.watchedRotations.Load()
	if info.Rotations == last {
		return
	}
	if e.watchedRotations.CompareAndSwap(last, info.Rotations) {
		s.notifier.Unwatch(info.Path)
		if err := s.notifier.Watch(info.Path); err != nil {
			e.push.Store(false)
			s.degraded.Add(1)
		}
	}
}

// Size returns the number of registered files.
func (s *Scheduler) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Infos snapshots every registered tailer for status reporting.
func (s *Scheduler) Infos() []tail.Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tail.Info, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.tailer.GetInfo())
	}
	return out
}

// GetStats reports scheduler counters.
func (s *Scheduler) GetStats() map[string]any {
	s.mu.RLock()
	files := len(s.entries)
	pushed := 0
	for _, e := range s.entries {
		if e.push.Load() {
			pushed++
		}
	}
	s.mu.RUnlock()

	stats := map[string]any{
		"files":          files,
		"push_files":     pushed,
		"steps_total":    s.stepsTotal.Load(),
		"step_errors":    s.stepErrors.Load(),
		"perm_denied":    s.permDenied.Load(),
		"degraded_total": s.degraded.Load(),
		"workers":        s.pool.Cap(),
		"watch_budget":   s.budget.WatchBudget(),
	}
	if s.notifier != nil {
		stats["events_dropped"] = s.notifier.Dropped()
	}
	return stats
}
