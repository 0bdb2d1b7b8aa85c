// FILE: src/internal/core/record.go
package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Record is a single captured log line flowing through the pipeline.
type Record struct {
	Time        time.Time       `json:"timestamp"`
	Source      string          `json:"source"`
	Level       string          `json:"level"`
	Message     string          `json:"message"`
	Meta        json.RawMessage `json:"meta,omitempty"`
	Category    string          `json:"log_type"`
	Subcategory string          `json:"-"`
	DedupKey    string          `json:"-"`
	RawSize     int64           `json:"-"`
}

// Classification is the category/subcategory pair assigned to a watched
// path. The mapping from classification to priority level is total:
// every classification resolves to exactly one level.
type Classification struct {
	Category    string
	Subcategory string
}

// Categories assigned by discovery. CategoryOther is the fallback and
// is always returned when no keyword rule matches.
const (
	CategorySecurity    = "Security"
	CategoryWebServer   = "Web Server"
	CategoryDatabase    = "Database"
	CategoryKernel      = "Kernel/System"
	CategoryPackageMgmt = "Package Mgmt"
	CategoryApplication = "Application"
	CategoryOther       = "Other"
)

// PriorityLevel identifies one of the scheduler's multilevel queues.
type PriorityLevel int

const (
	LevelCritical PriorityLevel = iota // Security
	LevelHigh                          // Web Server, Database
	LevelMedium                        // Kernel/System, Application
	LevelLow                           // everything else
)

// NumLevels is the count of scheduler queues.
const NumLevels = 4

func (l PriorityLevel) String() string {
	switch l {
	case LevelCritical:
		return "critical"
	case LevelHigh:
		return "high"
	case LevelMedium:
		return "medium"
	case LevelLow:
		return "low"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Interval returns the polling cadence of the level.
func (l PriorityLevel) Interval() time.Duration {
	switch l {
	case LevelCritical:
		return 1 * time.Second
	case LevelHigh:
		return 2 * time.Second
	case LevelMedium:
		return 5 * time.Second
	default:
		return 10 * time.Second
	}
}

// LevelFor maps a classification to its priority level. Deterministic
// and total: unknown categories land on LevelLow.
func LevelFor(c Classification) PriorityLevel {
	switch c.Category {
	case CategorySecurity:
		return LevelCritical
	case CategoryWebServer, CategoryDatabase:
		return LevelHigh
	case CategoryKernel, CategoryApplication:
		return LevelMedium
	default:
		return LevelLow
	}
}

// ComputeDedupKey derives the stable identifying key carried by every
// record so that re-sending a batch after an ambiguous network failure
// does not create remote duplicates. The key is bound to the physical
// file (inode), the byte offset the line started at, and the line
// content itself.
func ComputeDedupKey(source string, inode uint64, offset int64, line string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|", source, inode, offset)
	h.Write([]byte(line))
	return hex.EncodeToString(h.Sum(nil))[:32]
}
