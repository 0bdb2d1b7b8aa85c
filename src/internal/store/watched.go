// FILE: src/internal/store/watched.go
package store

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WatchedFileRepository persists tail positions and scheduler state.
type WatchedFileRepository interface {
	// Upsert inserts the file or refreshes its classification and
	// last-seen time, keyed by path. Tail position is never clobbered
	// by a re-discovery.
	Upsert(wf *WatchedFile) error

	FindByPath(path string) (*WatchedFile, error)
	FindAll() ([]*WatchedFile, error)

	// UpdateTracking records the position after a successful tail step.
	UpdateTracking(path string, inode uint64, offset, size int64, state string) error

	// SetState transitions the persisted state without touching the
	// tail position.
	SetState(path, state string, permDenied bool) error

	Remove(path string) error
}

// ErrNotWatched indicates the path has no watched-file row.
var ErrNotWatched = errors.New("file is not watched")

type watchedFileRepo struct {
	db *gorm.DB
}

func (r *watchedFileRepo) Upsert(wf *WatchedFile) error {
	now := time.Now()
	wf.LastSeenAt = &now
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"level", "category", "subcategory", "last_seen_at", "updated_at",
		}),
	}).Create(wf).Error
}

func (r *watchedFileRepo) FindByPath(path string) (*WatchedFile, error) {
	wf := &WatchedFile{}
	err := r.db.Where("path = ?", path).First(wf).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotWatched
	}
	if err != nil {
		return nil, err
	}
	return wf, nil
}

func (r *watchedFileRepo) FindAll() ([]*WatchedFile, error) {
	var files []*WatchedFile
	err := r.db.Order("path ASC").Find(&files).Error
	return files, err
}

func (r *watchedFileRepo) UpdateTracking(path string, inode uint64, offset, size int64, state string) error {
	now := time.Now()
	return r.db.Model(&WatchedFile{}).
		Where("path = ?", path).
		Updates(map[string]any{
			"inode":        inode,
			"offset":       offset,
			"last_size":    size,
			"state":        state,
			"last_seen_at": now,
		}).Error
}

func (r *watchedFileRepo) SetState(path, state string, permDenied bool) error {
	return r.db.Model(&WatchedFile{}).
		Where("path = ?", path).
		Updates(map[string]any{"state": state, "perm_denied": permDenied}).Error
}

func (r *watchedFileRepo) Remove(path string) error {
	return r.db.Where("path = ?", path).Delete(&WatchedFile{}).Error
}
