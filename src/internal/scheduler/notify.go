// FILE: src/internal/scheduler/notify.go
package scheduler

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// ErrWatchBudget is returned by Watch when the kernel notify budget is
// exhausted. Callers fall back to interval polling for that file.
var ErrWatchBudget = errors.New("notify watch budget exhausted")

// Notifier wraps a kernel file watcher behind a fixed watch budget and
// a bounded event queue. Overflowing the queue drops events rather than
// blocking the kernel reader; dropped events are harmless because a
// later poll tick reads the same bytes.
type Notifier struct {
	watcher *fsnotify.Watcher
	budget  int
	events  chan string

	mu      sync.Mutex
	watched map[string]struct{}

	dropped     atomic.Uint64
	warnLimiter *rate.Limiter
	logger      *log.Logger
}

// NewNotifier creates a notifier with the given watch budget and event
// queue size. Returns an error when the kernel watcher itself cannot be
// created (instance limit reached); the scheduler then runs pure-poll.
func NewNotifier(budget, queueSize int, logger *log.Logger) (*Notifier, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Notifier{
		watcher:     w,
		budget:      budget,
		events:      make(chan string, queueSize),
		watched:     make(map[string]struct{}),
		warnLimiter: rate.NewLimiter(rate.Every(60*time.Second), 1),
		logger:      logger,
	}, nil
}

// Watch registers a path for change notification, consuming one unit
// of the budget.
func (n *Notifier) Watch(path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.watched[path]; ok {
		return nil
	}
	if len(n.watched) >= n.budget {
		return ErrWatchBudget
	}
	if err := n.watcher.Add(path); err != nil {
		return err
	}
	n.watched[path] = struct{}{}
	return nil
}

// Unwatch releases the path's budget unit. Unknown paths are a no-op.
func (n *Notifier) Unwatch(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.watched[path]; !ok {
		return
	}
	// Remove can fail when the file is already gone; the kernel has
	// dropped the watch either way.
	_ = n.watcher.Remove(path)
	delete(n.watched, path)
}

// WatchCount returns the number of active watches.
func (n *Notifier) WatchCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.watched)
}

// Events is the stream of paths with pending changes.
func (n *Notifier) Events() <-chan string {
	return n.events
}

// Run pumps kernel events into the bounded queue until the watcher is
// closed. Only write and create events matter for tailing.
func (n *Notifier) Run() {
	for {
		select {
		case ev, ok := <-n.watcher.Events:
			if !ok {
				close(n.events)
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			select {
			case n.events <- ev.Name:
			default:
				n.dropped.Add(1)
				if n.warnLimiter.Allow() {
					n.logger.Warn("msg", "Notify event queue full, falling back to next poll",
						"component", "scheduler",
						"dropped_total", n.dropped.Load())
				}
			}
		case err, ok := <-n.watcher.Errors:
			if !ok {
				continue
			}
			if n.warnLimiter.Allow() {
				n.logger.Warn("msg", "File watcher error",
					"component", "scheduler",
					"error", err)
			}
		}
	}
}

// Close shuts the kernel watcher down; Run exits once the event channel
// drains.
func (n *Notifier) Close() error {
	return n.watcher.Close()
}

// Dropped returns the count of events dropped to queue overflow.
func (n *Notifier) Dropped() uint64 {
	return n.dropped.Load()
}
