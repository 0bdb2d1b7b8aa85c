// FILE: src/internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"logpulse/src/internal/auth"
	"logpulse/src/internal/config"
	"logpulse/src/internal/store"

	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// sender abstracts batch delivery so the engine tests against a fake
// endpoint.
type sender interface {
	SendBatch(recs []*store.LogRecord) error
}

// Result summarizes one sync pass.
type Result struct {
	Batches   int
	Records   int
	Remaining int64
}

// Syncer drains the local buffer toward the server in batches. Each
// batch is delivered then marked synced; an ambiguous failure between
// the two leaves the batch unsynced and the dedup keys absorb the
// re-send.
type Syncer struct {
	config *config.SyncConfig
	db     *store.Store
	client sender
	logger *log.Logger

	batchesSent   atomic.Uint64
	recordsSynced atomic.Uint64
	failedPasses  atomic.Uint64
	warnLimiter   *rate.Limiter
}

// New builds a syncer from loaded credentials.
func New(cfg *config.SyncConfig, db *store.Store, creds *auth.Credentials, logger *log.Logger) *Syncer {
	return &Syncer{
		config:      cfg,
		db:          db,
		client:      NewClient(cfg, creds, logger),
		logger:      logger,
		warnLimiter: rate.NewLimiter(rate.Every(time.Minute), 2),
	}
}

// RunOnce performs a single full pass: repeated fetch-send-mark cycles
// until the buffer has no unsynced records or an error stops the pass.
// An ErrAuth from the server aborts immediately and is recorded on the
// sync cursor so status reporting can surface it.
func (s *Syncer) RunOnce(ctx context.Context) (Result, error) {
	var res Result

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		batch, err := s.db.Records.UnsyncedBatch(int(s.config.BatchSize))
		if err != nil {
			return res, err
		}
		if len(batch) == 0 {
			break
		}

		if err := s.client.SendBatch(batch); err != nil {
			s.failedPasses.Add(1)
			s.recordOutcome(err)
			res.Remaining, _ = s.db.Records.UnsyncedCount()
			return res, err
		}

		ids := make([]uint, len(batch))
		for i, rec := range batch {
			ids[i] = rec.ID
		}
		if err := s.markSynced(ids); err != nil {
			// The server has the batch but the local flags did not
			// stick; the next pass re-sends and the server dedups.
			s.recordOutcome(err)
			return res, err
		}

		res.Batches++
		res.Records += len(batch)
		s.batchesSent.Add(1)
		s.recordsSynced.Add(uint64(len(batch)))

		if len(batch) < int(s.config.BatchSize) {
			break
		}
	}

	s.recordOutcome(nil)
	res.Remaining, _ = s.db.Records.UnsyncedCount()

	s.logger.Info("msg", "Sync pass complete",
		"component", "syncer",
		"batches", res.Batches,
		"records", res.Records,
		"remaining", res.Remaining)
	return res, nil
}

// Run executes sync passes on the configured interval until ctx ends.
// Authentication rejection stops the loop: every later pass would fail
// the same way until the operator replaces the key.
func (s *Syncer) Run(ctx context.Context) error {
	interval := time.Duration(s.config.IntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("msg", "Continuous sync started",
		"component", "syncer",
		"interval", interval.String(),
		"batch_size", s.config.BatchSize)

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			if errors.Is(err, ErrAuth) {
				return err
			}
			if !errors.Is(err, context.Canceled) && s.warnLimiter.Allow() {
				s.logger.Warn("msg", "Sync pass failed, will retry next interval",
					"component", "syncer",
					"error", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// markSynced flips the batch's flags, retrying once on a transient
// store failure before giving up on the pass.
func (s *Syncer) markSynced(ids []uint) error {
	now := time.Now()
	err := s.db.Records.MarkSynced(ids, now)
	if err == nil {
		return nil
	}
	s.logger.Warn("msg", "Failed to mark batch synced, retrying",
		"component", "syncer",
		"batch_size", len(ids),
		"error", err)
	return s.db.Records.MarkSynced(ids, now)
}

func (s *Syncer) recordOutcome(passErr error) {
	cursor, err := s.db.SyncCursor()
	if err != nil {
		return
	}
	if passErr == nil {
		now := time.Now()
		cursor.LastSyncAt = &now
		cursor.LastError = ""
		cursor.FatalAuth = false
	} else {
		cursor.LastError = passErr.Error()
		cursor.FatalAuth = errors.Is(passErr, ErrAuth)
	}
	if err := s.db.UpdateSyncCursor(cursor); err != nil {
		s.logger.Warn("msg", "Failed to persist sync cursor",
			"component", "syncer",
			"error", err)
	}
}

// GetStats reports sync counters.
func (s *Syncer) GetStats() map[string]any {
	unsynced, _ := s.db.Records.UnsyncedCount()
	return map[string]any{
		"batches_sent":   s.batchesSent.Load(),
		"records_synced": s.recordsSynced.Load(),
		"failed_passes":  s.failedPasses.Load(),
		"unsynced":       unsynced,
	}
}
