// FILE: src/internal/store/store.go
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the embedded database holding watched-file state,
// buffered records, the sync cursor, and the session registry. It is
// the single source of truth for the rest of the pipeline; every
// logical write goes through its own short transaction so the many
// small independent writers (one per watched file plus the sync loop)
// never serialize behind one long-lived lock.
type Store struct {
	db *gorm.DB

	Records  RecordRepository
	Watched  WatchedFileRepository
	Sessions SessionRepository
}

// Options configures the embedded database.
type Options struct {
	Path          string
	BusyTimeoutMS int64
}

// Open creates or opens the database file and migrates the schema.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("store path cannot be empty")
	}
	if opts.BusyTimeoutMS <= 0 {
		opts.BusyTimeoutMS = 5000
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	// WAL keeps concurrent short writers from blocking readers;
	// busy_timeout covers the remaining write/write contention.
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		opts.Path, opts.BusyTimeoutMS)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", opts.Path, err)
	}

	if err := db.AutoMigrate(
		&WatchedFile{},
		&LogRecord{},
		&SyncState{},
		&AgentSession{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate store schema: %w", err)
	}

	s := &Store{db: db}
	s.Records = &recordRepo{db: db}
	s.Watched = &watchedFileRepo{db: db}
	s.Sessions = &sessionRepo{db: db}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SyncCursor returns the single sync-state row, creating it on first
// access. Mutated only by the sync engine.
func (s *Store) SyncCursor() (*SyncState, error) {
	state := &SyncState{}
	err := s.db.FirstOrCreate(state, SyncState{ID: 1}).Error
	if err != nil {
		return nil, err
	}
	return state, nil
}

// UpdateSyncCursor persists the sync-state row.
func (s *Store) UpdateSyncCursor(state *SyncState) error {
	state.ID = 1
	return s.db.Save(state).Error
}
