// FILE: src/internal/store/records.go
package store

import (
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordRepository buffers log records durably until the sync engine
// delivers them.
type RecordRepository interface {
	// Insert stores one record with synced=false. Inserting a record
	// whose dedup key already exists is a silent no-op.
	Insert(rec *LogRecord) error

	// InsertBatch stores a tail step's records in one transaction.
	InsertBatch(recs []*LogRecord) error

	// UnsyncedBatch returns the oldest unsynced records, capped at limit.
	UnsyncedBatch(limit int) ([]*LogRecord, error)

	// MarkSynced flips the synced flag for the whole batch atomically.
	MarkSynced(ids []uint, at time.Time) error

	// UnsyncedCount reports how many records still await delivery.
	UnsyncedCount() (int64, error)

	// Sources lists the distinct source paths seen so far.
	Sources() ([]string, error)
}

type recordRepo struct {
	db *gorm.DB
}

func (r *recordRepo) Insert(rec *LogRecord) error {
	sanitizeRecord(rec)
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoNothing: true,
	}).Create(rec).Error
}

func (r *recordRepo) InsertBatch(recs []*LogRecord) error {
	if len(recs) == 0 {
		return nil
	}
	for _, rec := range recs {
		sanitizeRecord(rec)
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoNothing: true,
	}).CreateInBatches(recs, 200).Error
}

func (r *recordRepo) UnsyncedBatch(limit int) ([]*LogRecord, error) {
	var recs []*LogRecord
	err := r.db.Where("synced = ?", false).
		Order("timestamp ASC, id ASC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

func (r *recordRepo) MarkSynced(ids []uint, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&LogRecord{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"synced": true, "synced_at": at}).Error
}

func (r *recordRepo) UnsyncedCount() (int64, error) {
	var count int64
	err := r.db.Model(&LogRecord{}).Where("synced = ?", false).Count(&count).Error
	return count, err
}

func (r *recordRepo) Sources() ([]string, error) {
	var sources []string
	err := r.db.Model(&LogRecord{}).Distinct("source").Pluck("source", &sources).Error
	return sources, err
}

// sanitizeRecord strips NUL bytes; the remote store rejects them.
func sanitizeRecord(rec *LogRecord) {
	rec.Message = strings.ReplaceAll(rec.Message, "\x00", "")
	rec.Source = strings.ReplaceAll(rec.Source, "\x00", "")
	if rec.Meta == "" {
		rec.Meta = "{}"
	}
}
