// FILE: src/internal/store/sessions.go
package store

import (
	"time"

	"gorm.io/gorm"
)

// SessionRepository is the process-scoped registry of running agent
// sessions. Callers receive it by handle; nothing reads ambient global
// state to learn what is running.
type SessionRepository interface {
	// Register records this process on watch/sync start.
	Register(pid int, mode, target string) error

	// Deregister prunes the row on clean shutdown.
	Deregister(pid int) error

	// List returns live sessions, pruning rows whose PID fails the
	// supplied liveness check.
	List(alive func(pid int) bool) ([]*AgentSession, error)

	// FindByTarget returns live sessions watching the given target.
	FindByTarget(target string, alive func(pid int) bool) ([]*AgentSession, error)
}

type sessionRepo struct {
	db *gorm.DB
}

func (r *sessionRepo) Register(pid int, mode, target string) error {
	// A crashed run may have left a stale row for the same PID.
	if err := r.db.Where("pid = ?", pid).Delete(&AgentSession{}).Error; err != nil {
		return err
	}
	return r.db.Create(&AgentSession{
		PID:       pid,
		Mode:      mode,
		Target:    target,
		StartedAt: time.Now(),
	}).Error
}

func (r *sessionRepo) Deregister(pid int) error {
	return r.db.Where("pid = ?", pid).Delete(&AgentSession{}).Error
}

func (r *sessionRepo) List(alive func(pid int) bool) ([]*AgentSession, error) {
	var sessions []*AgentSession
	if err := r.db.Order("started_at ASC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return r.prune(sessions, alive)
}

func (r *sessionRepo) FindByTarget(target string, alive func(pid int) bool) ([]*AgentSession, error) {
	var sessions []*AgentSession
	if err := r.db.Where("target = ?", target).Find(&sessions).Error; err != nil {
		return nil, err
	}
	return r.prune(sessions, alive)
}

// prune drops rows whose process is gone and deletes them from the
// registry so the table tracks reality.
func (r *sessionRepo) prune(sessions []*AgentSession, alive func(pid int) bool) ([]*AgentSession, error) {
	if alive == nil {
		return sessions, nil
	}
	live := sessions[:0]
	for _, s := range sessions {
		if alive(s.PID) {
			live = append(live, s)
			continue
		}
		if err := r.db.Delete(s).Error; err != nil {
			return nil, err
		}
	}
	return live, nil
}
