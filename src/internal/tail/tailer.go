// FILE: src/internal/tail/tailer.go
package tail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"logpulse/src/internal/core"

	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// State of a tailer. Transitions:
// INIT → OPEN → TAILING → {ROTATED|TRUNCATED} → TAILING,
// any → PERMISSION_DENIED (retried), any → CLOSED (terminal).
type State int

const (
	StateInit State = iota
	StateOpen
	StateTailing
	StateRotated
	StateTruncated
	StatePermissionDenied
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateOpen:
		return "OPEN"
	case StateTailing:
		return "TAILING"
	case StateRotated:
		return "ROTATED"
	case StateTruncated:
		return "TRUNCATED"
	case StatePermissionDenied:
		return "PERMISSION_DENIED"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrClosed is returned by Step after the tailer has been closed.
var ErrClosed = errors.New("tailer is closed")

// ResumeAtEnd makes a new watch start at end-of-file instead of a
// stored offset.
const ResumeAtEnd int64 = -1

// Read at most this much per step so one busy file cannot monopolize a
// level worker.
const maxStepBytes = 1 << 20

// Tailer is the per-file state machine reading incremental bytes and
// emitting normalized records. The open handle is kept between steps
// so unread bytes on a rotated-away inode can still be drained.
type Tailer struct {
	path  string
	class core.Classification
	emit  func(core.Record)

	mu     sync.Mutex
	state  State
	file   *os.File
	inode  uint64
	offset int64
	size   int64
	// Offset only advances through complete lines; an incomplete
	// trailing line is re-read on the next step so a crash never
	// skips buffered bytes.
	absentSince time.Time
	grace       time.Duration
	stepTimeout time.Duration
	resumeAt    int64

	rotations   atomic.Uint64
	recordsRead atomic.Uint64
	warnLimiter *rate.Limiter
	logger      *log.Logger
}

// Info is a snapshot of tailer state for status reporting.
type Info struct {
	Path      string
	State     State
	Inode     uint64
	Offset    int64
	Size      int64
	Rotations uint64
	Records   uint64
}

// Options configures a tailer.
type Options struct {
	Path         string
	Class        core.Classification
	ResumeOffset int64 // ResumeAtEnd for a new watch
	AbsentGrace  time.Duration
	StepTimeout  time.Duration
	Emit         func(core.Record)
	Logger       *log.Logger
}

// New creates a tailer in INIT state; Open or the first Step attaches
// it to the file.
func New(opts Options) *Tailer {
	if opts.AbsentGrace <= 0 {
		opts.AbsentGrace = 5 * time.Minute
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 2 * time.Second
	}
	return &Tailer{
		path:        opts.Path,
		class:       opts.Class,
		emit:        opts.Emit,
		state:       StateInit,
		resumeAt:    opts.ResumeOffset,
		grace:       opts.AbsentGrace,
		stepTimeout: opts.StepTimeout,
		warnLimiter: rate.NewLimiter(rate.Every(30*time.Second), 1),
		logger:      opts.Logger,
	}
}

// CanRead is the capability check exposed to callers deciding whether
// to re-invoke with elevated rights. The privilege decision itself
// stays outside the tailing logic.
func CanRead(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// Open transitions INIT → OPEN: stat the path, record inode and size,
// and position at end-of-file for new watches or the stored offset for
// resumed ones.
func (t *Tailer) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.openLocked()
}

func (t *Tailer) openLocked() error {
	if t.state == StateClosed {
		return ErrClosed
	}

	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			t.state = StatePermissionDenied
		}
		return err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	newInode := inodeOf(info)
	switch {
	case t.state == StateInit:
		if t.resumeAt == ResumeAtEnd {
			t.offset = info.Size()
		} else {
			t.offset = t.resumeAt
			if t.offset > info.Size() {
				// Stored offset beyond the file: it shrank while we
				// were away, start over.
				t.offset = 0
			}
		}
	case newInode != t.inode:
		// The path was replaced while unreadable. The successor is a
		// fresh inode and must be read from its first byte.
		t.offset = 0
		t.rotations.Add(1)
	default:
		// Recovery on the same inode resumes at the current offset.
		if t.offset > info.Size() {
			t.offset = 0
		}
	}

	if t.file != nil {
		t.file.Close()
	}
	t.file = f
	t.inode = newInode
	t.size = info.Size()
	t.state = StateOpen
	t.absentSince = time.Time{}

	t.logger.Debug("msg", "Tailer opened",
		"component", "tailer",
		"path", t.path,
		"inode", t.inode,
		"offset", t.offset,
		"size", t.size)
	return nil
}

// Step performs one tail cycle: detect rotation/truncation, read new
// bytes from the stored offset, emit one record per complete line.
// Per-file failures stay inside this tailer; the error return is for
// the scheduler's bookkeeping (permission escalation, retry pacing).
func (t *Tailer) Step(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case StateClosed:
		return ErrClosed
	case StateInit, StatePermissionDenied:
		if err := t.openLocked(); err != nil {
			if os.IsNotExist(err) {
				return t.noteAbsentLocked()
			}
			return err
		}
	}

	info, err := os.Stat(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			// The path vanished, but unread bytes may remain on the
			// open handle (rename-based rotation with no successor
			// yet). Drain them before starting the grace clock.
			if t.file != nil {
				t.drainOldHandleLocked()
			}
			return t.noteAbsentLocked()
		}
		if errors.Is(err, os.ErrPermission) {
			t.state = StatePermissionDenied
		}
		return err
	}
	t.absentSince = time.Time{}

	currentInode := inodeOf(info)
	currentSize := info.Size()

	if currentInode != t.inode {
		// Rename-based rotation. Drain what is still readable on the
		// old handle first so the logical sequence has no gap, then
		// reopen at the new inode from byte 0.
		t.drainOldHandleLocked()
		if err := t.reopenLocked(); err != nil {
			if errors.Is(err, os.ErrPermission) {
				t.state = StatePermissionDenied
			}
			return err
		}
		t.offset = 0
		t.rotations.Add(1)
		t.state = StateRotated
		t.logger.Info("msg", "Rotation detected",
			"component", "tailer",
			"path", t.path,
			"old_inode", t.inode,
			"new_inode", currentInode,
			"sequence", t.rotations.Load())
		t.inode = currentInode
		currentSize = t.size
	} else if currentSize < t.size {
		// In-place truncation: the inode shrank since the last
		// observation, so bytes before the offset are gone. Restart
		// from byte 0. A truncate-and-regrow that lands at or above
		// the last observed size between two steps is not detectable
		// from metadata alone.
		t.state = StateTruncated
		t.offset = 0
		t.logger.Info("msg", "Truncation detected",
			"component", "tailer",
			"path", t.path,
			"size", currentSize)
	}

	t.size = currentSize
	if err := t.readNewBytesLocked(ctx, currentSize, false); err != nil {
		return err
	}
	t.state = StateTailing
	return nil
}

// drainOldHandleLocked reads everything left on the currently open
// handle, emitting even the final unterminated line: the rotated-away
// inode will never receive its newline.
func (t *Tailer) drainOldHandleLocked() {
	if t.file == nil {
		return
	}
	info, err := t.file.Stat()
	if err == nil && info.Size() > t.offset {
		if err := t.readNewBytesLocked(context.Background(), info.Size(), true); err != nil {
			if t.warnLimiter.Allow() {
				t.logger.Warn("msg", "Failed to drain rotated file",
					"component", "tailer",
					"path", t.path,
					"error", err)
			}
		}
	}
}

func (t *Tailer) reopenLocked() error {
	f, err := os.Open(t.path)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	if t.file != nil {
		t.file.Close()
	}
	t.file = f
	t.size = info.Size()
	return nil
}

// readNewBytesLocked reads [offset, limit) off the open handle, splits
// on line boundaries, and emits a record per complete line. The offset
// advances only through the last newline unless final is set (rotation
// drain), where the trailing partial line is emitted too. Reads are
// chunked and bounded by the step timeout so one stalled file cannot
// starve its level.
func (t *Tailer) readNewBytesLocked(ctx context.Context, limit int64, final bool) error {
	if t.file == nil || limit <= t.offset {
		return nil
	}

	toRead := limit - t.offset
	if !final && toRead > maxStepBytes {
		toRead = maxStepBytes
	}

	deadline := time.Now().Add(t.stepTimeout)
	buf := make([]byte, toRead)
	read := 0
	for read < len(buf) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !final && time.Now().After(deadline) {
			break
		}
		chunk := len(buf) - read
		if chunk > 64*1024 {
			chunk = 64 * 1024
		}
		n, err := t.file.ReadAt(buf[read:read+chunk], t.offset+int64(read))
		read += n
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
	}
	buf = buf[:read]

	consumed := 0
	for {
		idx := bytes.IndexByte(buf[consumed:], '\n')
		if idx < 0 {
			break
		}
		line := buf[consumed : consumed+idx]
		t.emitLineLocked(line, t.offset+int64(consumed))
		consumed += idx + 1
	}

	if final && consumed < len(buf) {
		t.emitLineLocked(buf[consumed:], t.offset+int64(consumed))
		consumed = len(buf)
	}

	t.offset += int64(consumed)
	return nil
}

func (t *Tailer) emitLineLocked(raw []byte, startOffset int64) {
	line := string(bytes.TrimRight(raw, "\r"))
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}

	now := time.Now()
	t.recordsRead.Add(1)
	t.emit(core.Record{
		Time:        core.ExtractTimestamp(trimmed, now),
		Source:      t.path,
		Level:       core.InferLevel(trimmed),
		Message:     trimmed,
		Category:    t.class.Category,
		Subcategory: t.class.Subcategory,
		DedupKey:    core.ComputeDedupKey(t.path, t.inode, startOffset, trimmed),
		RawSize:     int64(len(raw)),
	})
}

func (t *Tailer) noteAbsentLocked() error {
	now := time.Now()
	if t.absentSince.IsZero() {
		t.absentSince = now
		return nil
	}
	if now.Sub(t.absentSince) > t.grace {
		t.closeLocked()
		t.logger.Info("msg", "File absent beyond grace window, closing watch",
			"component", "tailer",
			"path", t.path,
			"grace", t.grace.String())
		return ErrClosed
	}
	return nil
}

// Close transitions to the terminal CLOSED state. The current step, if
// any, completes first (both hold the tailer lock).
func (t *Tailer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked()
}

func (t *Tailer) closeLocked() {
	if t.state == StateClosed {
		return
	}
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
	t.state = StateClosed
}

// GetInfo returns a snapshot for status reporting and persistence.
func (t *Tailer) GetInfo() Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Info{
		Path:      t.path,
		State:     t.state,
		Inode:     t.inode,
		Offset:    t.offset,
		Size:      t.size,
		Rotations: t.rotations.Load(),
		Records:   t.recordsRead.Load(),
	}
}

// State returns the current state.
func (t *Tailer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Path returns the watched path.
func (t *Tailer) Path() string {
	return t.path
}

func inodeOf(info os.FileInfo) uint64 {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return stat.Ino
	}
	return 0
}
