// FILE: src/internal/store/models.go
package store

import (
	"time"
)

// Tail states persisted per watched file.
const (
	StateInit             = "INIT"
	StateOpen             = "OPEN"
	StateTailing          = "TAILING"
	StateRotated          = "ROTATED"
	StateTruncated        = "TRUNCATED"
	StatePermissionDenied = "PERMISSION_DENIED"
	StateClosed           = "CLOSED"
)

// WatchedFile is the durable tail position of one logical file. The
// (path, inode) pair identifies the position; offset only moves
// backwards on an explicit rotation or truncation reset.
type WatchedFile struct {
	ID          uint   `gorm:"primaryKey"`
	Path        string `gorm:"uniqueIndex;not null"`
	Inode       uint64 `gorm:"default:0"`
	Offset      int64  `gorm:"default:0"`
	LastSize    int64  `gorm:"default:0"`
	Level       int    `gorm:"index;default:3"`
	Category    string `gorm:"index"`
	Subcategory string
	State       string `gorm:"default:INIT"`
	PermDenied  bool   `gorm:"default:false"`
	LastSeenAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (WatchedFile) TableName() string {
	return "watched_files"
}

// LogRecord is one buffered log line. Insert-once: message, timestamp
// and source never change after insert; only the synced flag and
// synced-at time mutate, written by the sync engine.
type LogRecord struct {
	ID          uint   `gorm:"primaryKey"`
	DedupKey    string `gorm:"uniqueIndex;size:32"`
	Source      string `gorm:"not null;index"`
	Level       string
	Message     string
	Timestamp   time.Time `gorm:"index"`
	Meta        string    `gorm:"default:'{}'"`
	Category    string    `gorm:"index"`
	Subcategory string
	Synced      bool `gorm:"index;default:false"`
	SyncedAt    *time.Time
	ServerID    string
	CreatedAt   time.Time
}

func (LogRecord) TableName() string {
	return "log_records"
}

// SyncState is the single-row sync cursor.
type SyncState struct {
	ID         uint `gorm:"primaryKey"`
	LastSyncAt *time.Time
	LastError  string
	FatalAuth  bool `gorm:"default:false"`
	UpdatedAt  time.Time
}

func (SyncState) TableName() string {
	return "sync_state"
}

// AgentSession is the explicit registry of running agent processes,
// populated on start and pruned on stop or when the PID is no longer
// alive. It replaces reading ambient process state.
type AgentSession struct {
	ID        uint   `gorm:"primaryKey"`
	PID       int    `gorm:"column:pid;index;not null"`
	Mode      string `gorm:"not null"` // "watch" or "sync"
	Target    string
	StartedAt time.Time
}

func (AgentSession) TableName() string {
	return "agent_sessions"
}
