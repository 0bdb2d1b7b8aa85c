// FILE: src/internal/service/agent_test.go
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"logpulse/src/internal/config"
	"logpulse/src/internal/core"
	"logpulse/src/internal/discovery"
	"logpulse/src/internal/scheduler"
	"logpulse/src/internal/store"
	"logpulse/src/internal/tail"

	"github.com/klauspost/compress/gzip"
	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService(t *testing.T, roots ...string) *Service {
	t.Helper()
	cfg := &config.Config{
		Discovery: config.DiscoveryConfig{
			Roots:            roots,
			Recursive:        true,
			BackfillLines:    50,
			MaxArchiveSizeMB: 16,
		},
		Scheduler: config.SchedulerConfig{
			PushEnabled:    false,
			EventQueueSize: 64,
			StepTimeoutMS:  2000,
			AbsentGraceSec: 300,
		},
		Store: config.StoreConfig{
			Path: filepath.Join(t.TempDir(), "agent.db"),
		},
		Sync: config.SyncConfig{BatchSize: 100},
	}
	svc, err := New(cfg, log.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func testScheduler(t *testing.T, svc *Service) *scheduler.Scheduler {
	t.Helper()
	sched, err := scheduler.New(scheduler.Options{
		Config:     svc.config.Scheduler,
		Logger:     log.NewLogger(),
		OnProgress: svc.flushProgress,
		OnClosed:   svc.watchClosed,
	})
	require.NoError(t, err)
	return sched
}

func tailInfo(path string, inode uint64, offset, size int64) tail.Info {
	return tail.Info{Path: path, State: tail.StateTailing, Inode: inode, Offset: offset, Size: size}
}

func writeLines(t *testing.T, path string, n int) {
	t.Helper()
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "entry number %d\n", i)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}

func writeGzipLines(t *testing.T, path string, n int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := gzip.NewWriter(f)
	for i := 0; i < n; i++ {
		fmt.Fprintf(zw, "archived entry %d\n", i)
	}
	require.NoError(t, zw.Close())
}

func TestAttachNewFileBackfillsRecentLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	writeLines(t, path, 60)

	svc := testService(t, dir)
	sched := testScheduler(t, svc)

	found := discovery.Found{Path: path, Class: discovery.Classify(path)}
	require.NoError(t, svc.attach(found, sched))

	count, err := svc.db.Records.UnsyncedCount()
	require.NoError(t, err)
	assert.Equal(t, int64(50), count, "only the most recent lines backfill")

	recs, err := svc.db.Records.UnsyncedBatch(100)
	require.NoError(t, err)
	assert.Equal(t, "entry number 10", recs[0].Message)
	assert.Equal(t, "entry number 59", recs[len(recs)-1].Message)

	assert.Equal(t, 1, sched.Size(), "plain file gets a tailer")

	wf, err := svc.db.Watched.FindByPath(path)
	require.NoError(t, err)
	assert.Equal(t, core.CategoryOther, wf.Category)
}

func TestAttachArchiveBackfillsWithoutTailing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log.1.gz")
	writeGzipLines(t, path, 200)

	svc := testService(t, dir)
	sched := testScheduler(t, svc)

	found := discovery.Found{Path: path, Archive: true, Class: discovery.Classify(path)}
	require.NoError(t, svc.attach(found, sched))

	count, err := svc.db.Records.UnsyncedCount()
	require.NoError(t, err)
	assert.Equal(t, int64(50), count)

	assert.Equal(t, 0, sched.Size(), "archives are never tailed")

	wf, err := svc.db.Watched.FindByPath(path)
	require.NoError(t, err)
	assert.Equal(t, store.StateClosed, wf.State)
}

func TestAttachKnownFileSkipsBackfillAndResumes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	writeLines(t, path, 10)

	svc := testService(t, dir)
	sched := testScheduler(t, svc)

	offset := int64(len("entry number 0\n"))
	require.NoError(t, svc.db.Watched.Upsert(&store.WatchedFile{Path: path}))
	require.NoError(t, svc.db.Watched.UpdateTracking(path, 0, offset, 0, store.StateTailing))

	found := discovery.Found{Path: path, Class: discovery.Classify(path)}
	require.NoError(t, svc.attach(found, sched))

	count, err := svc.db.Records.UnsyncedCount()
	require.NoError(t, err)
	assert.Zero(t, count, "known files never re-backfill")

	infos := sched.Infos()
	require.Len(t, infos, 1)
	assert.Equal(t, offset, infos[0].Offset, "tail resumes at the stored offset")
}

func TestFlushProgressBuffersBeforeOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	writeLines(t, path, 1)

	svc := testService(t, dir)
	require.NoError(t, svc.db.Watched.Upsert(&store.WatchedFile{Path: path}))

	c := svc.collectorFor(path)
	c.add(core.Record{
		DedupKey: core.ComputeDedupKey(path, 1, 0, "hello"),
		Source:   path,
		Level:    "INFO",
		Message:  "hello",
		Time:     time.Now(),
		Category: core.CategoryOther,
	})

	svc.flushProgress(tailInfo(path, 42, 6, 6))

	count, err := svc.db.Records.UnsyncedCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	wf, err := svc.db.Watched.FindByPath(path)
	require.NoError(t, err)
	assert.Equal(t, int64(6), wf.Offset)
	assert.Equal(t, uint64(42), wf.Inode)
	assert.Equal(t, store.StateTailing, wf.State)
}

func TestResolveSingleTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nginx", "access.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	writeLines(t, path, 3)

	svc := testService(t, dir)

	found, problems := svc.resolveTargets(context.Background(), path)
	require.Empty(t, problems)
	require.Len(t, found, 1)
	assert.Equal(t, core.CategoryWebServer, found[0].Class.Category)

	_, problems = svc.resolveTargets(context.Background(), filepath.Join(dir, "missing.log"))
	require.Len(t, problems, 1)
}

func TestWatchBuffersAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.log")
	writeLines(t, path, 2)

	svc := testService(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Watch(ctx, path) }()

	// Wait for the watch session to register, then append.
	require.Eventually(t, func() bool {
		sessions, err := svc.db.Sessions.List(func(int) bool { return true })
		return err == nil && len(sessions) == 1
	}, 5*time.Second, 50*time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("sudo session opened for root\n")
	require.NoError(t, err)
	f.Close()

	assert.Eventually(t, func() bool {
		recs, err := svc.db.Records.UnsyncedBatch(100)
		if err != nil {
			return false
		}
		for _, r := range recs {
			if r.Message == "sudo session opened for root" {
				return true
			}
		}
		return false
	}, 10*time.Second, 100*time.Millisecond, "appended line reaches the buffer")

	cancel()
	require.NoError(t, <-done)

	sessions, err := svc.db.Sessions.List(func(int) bool { return true })
	require.NoError(t, err)
	assert.Empty(t, sessions, "session deregisters on stop")
}

func TestGetStatusSnapshot(t *testing.T) {
	dir := t.TempDir()
	svc := testService(t, dir)

	require.NoError(t, svc.db.Records.Insert(&store.LogRecord{
		DedupKey: core.ComputeDedupKey("/x", 1, 0, "a"),
		Source:   "/x", Message: "a", Timestamp: time.Now(),
	}))

	st, err := svc.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Unsynced)
	assert.NotNil(t, st.Cursor)
}
