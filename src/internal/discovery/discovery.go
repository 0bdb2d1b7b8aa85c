// FILE: src/internal/discovery/discovery.go
package discovery

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"logpulse/src/internal/core"

	"github.com/lixenwraith/log"
)

// Found is one discovered log file.
type Found struct {
	Path    string
	Size    int64
	Archive bool // gzip-compressed rotated file
	Class   core.Classification
}

// Problem records a per-file failure during a scan. Problems never
// abort the scan; they are reported alongside the results.
type Problem struct {
	Path    string
	Err     error
	Corrupt bool
}

// Engine walks configured roots and classifies log files.
type Engine struct {
	roots       []string
	excludeDirs map[string]bool
	recursive   bool
	logger      *log.Logger
}

// Well-known paths checked by a shallow scan. No traversal happens in
// shallow mode.
var wellKnownPaths = []string{
	"/var/log/syslog",
	"/var/log/messages",
	"/var/log/auth.log",
	"/var/log/secure",
	"/var/log/kern.log",
	"/var/log/dmesg",
	"/var/log/dpkg.log",
	"/var/log/ufw.log",
	"/var/log/nginx/access.log",
	"/var/log/nginx/error.log",
	"/var/log/apache2/access.log",
	"/var/log/apache2/error.log",
	"/var/log/mysql/error.log",
	"/var/log/postgresql/postgresql.log",
}

// NewEngine creates a discovery engine over the given roots. With
// recursive disabled a full scan only lists each root's immediate
// entries.
func NewEngine(roots, excludeDirs []string, recursive bool, logger *log.Logger) *Engine {
	excluded := make(map[string]bool, len(excludeDirs))
	for _, d := range excludeDirs {
		excluded[strings.ToLower(d)] = true
	}
	return &Engine{
		roots:       roots,
		excludeDirs: excluded,
		recursive:   recursive,
		logger:      logger,
	}
}

// Scan walks the roots and returns discovered log files. In shallow
// mode only the well-known path list is checked. In recursive mode
// excluded directory names are pruned before descent so the walk cost
// stays bounded.
func (e *Engine) Scan(ctx context.Context, shallow bool) ([]Found, []Problem) {
	if shallow {
		return e.scanShallow()
	}

	var found []Found
	var problems []Problem

	for _, root := range e.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				// Permission failure or vanished path: record against
				// this single entry, keep walking.
				problems = append(problems, Problem{Path: path, Err: err})
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				if path != root && (!e.recursive || e.excludeDirs[strings.ToLower(d.Name())]) {
					return fs.SkipDir
				}
				return nil
			}

			if !looksLikeLog(d.Name()) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				problems = append(problems, Problem{Path: path, Err: err})
				return nil
			}

			found = append(found, Found{
				Path:    path,
				Size:    info.Size(),
				Archive: isArchive(d.Name()),
				Class:   Classify(path),
			})
			return nil
		})
		if err != nil && err != ctx.Err() {
			problems = append(problems, Problem{Path: root, Err: err})
		}
	}

	e.logger.Info("msg", "Scan complete",
		"component", "discovery",
		"roots", len(e.roots),
		"found", len(found),
		"problems", len(problems))

	return found, problems
}

func (e *Engine) scanShallow() ([]Found, []Problem) {
	var found []Found
	var problems []Problem

	for _, path := range wellKnownPaths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			problems = append(problems, Problem{Path: path, Err: err})
			continue
		}
		if info.IsDir() {
			continue
		}
		found = append(found, Found{
			Path:  path,
			Size:  info.Size(),
			Class: Classify(path),
		})
	}

	e.logger.Info("msg", "Shallow scan complete",
		"component", "discovery",
		"checked", len(wellKnownPaths),
		"found", len(found))

	return found, problems
}

// looksLikeLog reports whether the file name resembles a log file or a
// rotated/archived log.
func looksLikeLog(name string) bool {
	lower := strings.ToLower(name)

	switch lower {
	case "syslog", "messages", "dmesg", "lastlog", "faillog", "btmp", "wtmp":
		return true
	}

	if strings.HasSuffix(lower, ".log") || strings.Contains(lower, ".log.") {
		return true
	}
	// Rotated without the .log infix: "syslog.1", "messages.2.gz"
	base := strings.TrimSuffix(lower, ".gz")
	if i := strings.LastIndex(base, "."); i > 0 {
		suffix := base[i+1:]
		if isDigits(suffix) {
			return looksLikeLog(base[:i])
		}
	}
	return false
}

func isArchive(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".gz")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
