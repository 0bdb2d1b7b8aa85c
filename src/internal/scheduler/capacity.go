// FILE: src/internal/scheduler/capacity.go
package scheduler

import (
	"bytes"
	"os"
	"strconv"

	"github.com/lixenwraith/log"
	"golang.org/x/sys/unix"
)

// Headroom kept out of the descriptor budget for the database, sync
// sockets, and the process's own housekeeping.
const reservedDescriptors = 64

// Budget is the detected host capacity the scheduler plans against.
// Detection degrades, it never fails: a host where limits cannot be
// read gets conservative defaults and keeps running.
type Budget struct {
	MaxOpenFiles    uint64
	MaxWatches      int
	MaxInstances    int
	RaisedFileLimit bool
}

// TailBudget is the number of files that may be tailed concurrently.
func (b Budget) TailBudget() int {
	if b.MaxOpenFiles <= reservedDescriptors {
		return 1
	}
	return int(b.MaxOpenFiles - reservedDescriptors)
}

// WatchBudget is the number of kernel notify watches available to this
// process after headroom.
func (b Budget) WatchBudget() int {
	budget := b.MaxWatches / 2
	if tails := b.TailBudget(); budget > tails {
		budget = tails
	}
	if budget < 0 {
		budget = 0
	}
	return budget
}

// DetectBudget reads RLIMIT_NOFILE and the kernel inotify limits,
// attempting to raise the soft descriptor limit toward the hard limit
// first. Failures to raise are logged and tolerated.
func DetectBudget(logger *log.Logger) Budget {
	b := Budget{
		MaxOpenFiles: 1024,
		MaxWatches:   8192,
		MaxInstances: 128,
	}

	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		logger.Warn("msg", "Failed to read file descriptor limit, using defaults",
			"component", "scheduler",
			"error", err)
	} else {
		if lim.Cur < lim.Max {
			raised := lim
			raised.Cur = lim.Max
			if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &raised); err != nil {
				logger.Debug("msg", "Could not raise file descriptor limit",
					"component", "scheduler",
					"soft", lim.Cur,
					"hard", lim.Max,
					"error", err)
			} else {
				lim = raised
				b.RaisedFileLimit = true
			}
		}
		b.MaxOpenFiles = lim.Cur
	}

	if v, ok := readProcInt("/proc/sys/fs/inotify/max_user_watches"); ok {
		b.MaxWatches = v
	}
	if v, ok := readProcInt("/proc/sys/fs/inotify/max_user_instances"); ok {
		b.MaxInstances = v
	}

	logger.Info("msg", "Host capacity detected",
		"component", "scheduler",
		"max_open_files", b.MaxOpenFiles,
		"max_watches", b.MaxWatches,
		"max_instances", b.MaxInstances,
		"raised_limit", b.RaisedFileLimit)
	return b
}

func readProcInt(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	v, err := strconv.Atoi(string(bytes.TrimSpace(data)))
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
