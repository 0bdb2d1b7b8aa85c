// FILE: src/internal/discovery/discovery_test.go
package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"logpulse/src/internal/core"

	"github.com/klauspost/compress/gzip"
	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func writeGzip(t *testing.T, path string, lines int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := gzip.NewWriter(f)
	for i := 0; i < lines; i++ {
		fmt.Fprintf(zw, "archived line %d\n", i)
	}
	require.NoError(t, zw.Close())
}

func TestScanFindsLogsAndPrunesExcluded(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "auth.log"), "x\n")
	writeFile(t, filepath.Join(dir, "nginx", "access.log"), "x\n")
	writeFile(t, filepath.Join(dir, "syslog.1"), "x\n")
	writeFile(t, filepath.Join(dir, "app.log.2.gz"), "x\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "x\n")
	writeFile(t, filepath.Join(dir, "node_modules", "dep.log"), "x\n")
	writeFile(t, filepath.Join(dir, ".cache", "trace.log"), "x\n")

	e := NewEngine([]string{dir}, []string{"node_modules", ".cache"}, true, log.NewLogger())
	found, problems := e.Scan(context.Background(), false)
	require.Empty(t, problems)

	paths := make(map[string]Found)
	for _, f := range found {
		paths[strings.TrimPrefix(f.Path, dir+"/")] = f
	}

	assert.Len(t, found, 4)
	assert.Contains(t, paths, "auth.log")
	assert.Contains(t, paths, "nginx/access.log")
	assert.Contains(t, paths, "syslog.1", "rotated files without .log suffix are found")
	assert.Contains(t, paths, "app.log.2.gz")
	assert.NotContains(t, paths, "notes.txt")
	assert.NotContains(t, paths, "node_modules/dep.log", "excluded dirs are pruned")
	assert.NotContains(t, paths, ".cache/trace.log")

	assert.True(t, paths["app.log.2.gz"].Archive)
	assert.False(t, paths["auth.log"].Archive)
	assert.Equal(t, core.CategorySecurity, paths["auth.log"].Class.Category)
	assert.Equal(t, core.CategoryWebServer, paths["nginx/access.log"].Class.Category)
}

func TestScanNonRecursiveStaysAtRootLevel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "auth.log"), "x\n")
	writeFile(t, filepath.Join(dir, "nginx", "access.log"), "x\n")

	e := NewEngine([]string{dir}, nil, false, log.NewLogger())
	found, problems := e.Scan(context.Background(), false)
	require.Empty(t, problems)

	require.Len(t, found, 1)
	assert.Equal(t, filepath.Join(dir, "auth.log"), found[0].Path)
}

func TestScanUnreadableDirIsProblemNotFailure(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ok.log"), "x\n")
	locked := filepath.Join(dir, "locked")
	require.NoError(t, os.MkdirAll(locked, 0755))
	writeFile(t, filepath.Join(locked, "hidden.log"), "x\n")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	e := NewEngine([]string{dir}, nil, true, log.NewLogger())
	found, problems := e.Scan(context.Background(), false)

	require.Len(t, found, 1, "readable files still discovered")
	assert.Equal(t, filepath.Join(dir, "ok.log"), found[0].Path)
	require.NotEmpty(t, problems, "denied subtree reported, not fatal")
}

func TestClassifyOrderedRules(t *testing.T) {
	cases := []struct {
		path        string
		category    string
		subcategory string
	}{
		{"/var/log/auth.log", core.CategorySecurity, "Login Attempts"},
		{"/var/log/ufw.log", core.CategorySecurity, "Firewall"},
		{"/var/log/fail2ban.log", core.CategorySecurity, "Failed Authentication"},
		{"/var/log/audit/audit.log", core.CategorySecurity, "Policy Violations"},
		{"/var/log/nginx/access.log", core.CategoryWebServer, "Web Server"},
		{"/var/log/nginx/error.log", core.CategoryWebServer, "Web Server Errors"},
		{"/var/log/mysql/error.log", core.CategoryDatabase, "Database Errors"},
		{"/var/log/postgresql/postgresql.log", core.CategoryDatabase, "Database"},
		{"/var/log/kern.log", core.CategoryKernel, "System"},
		{"/var/log/syslog", core.CategoryKernel, "System"},
		{"/var/log/dpkg.log", core.CategoryPackageMgmt, "Configuration Changes"},
		{"/var/log/cron.log", core.CategoryApplication, "Application"},
		{"/var/log/app.log", core.CategoryOther, "Other"},
		{"/tmp/random.log", core.CategoryOther, "Other"},
	}
	for _, tc := range cases {
		got := Classify(tc.path)
		assert.Equal(t, tc.category, got.Category, "path %s", tc.path)
		assert.Equal(t, tc.subcategory, got.Subcategory, "path %s", tc.path)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	first := Classify("/var/log/nginx/error.log")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify("/var/log/nginx/error.log"))
	}
}

func TestLooksLikeLog(t *testing.T) {
	yes := []string{"app.log", "APP.LOG", "syslog", "messages", "syslog.1", "app.log.1", "app.log.2.gz", "messages.10.gz", "btmp"}
	no := []string{"notes.txt", "archive.tar.gz", "config.toml", "data.1", "binary"}

	for _, name := range yes {
		assert.True(t, looksLikeLog(name), "expected %q to look like a log", name)
	}
	for _, name := range no {
		assert.False(t, looksLikeLog(name), "expected %q not to look like a log", name)
	}
}

func TestBackfillPlainTakesLastLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	var b strings.Builder
	for i := 0; i < 80; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	writeFile(t, path, b.String())

	e := NewEngine(nil, nil, true, log.NewLogger())
	lines, err := e.Backfill(path, 50, 1<<20)
	require.NoError(t, err)

	require.Len(t, lines, 50)
	assert.Equal(t, "line 30", lines[0])
	assert.Equal(t, "line 79", lines[49])
}

func TestBackfillShortFileReturnsAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	writeFile(t, path, "one\ntwo\nthree\n")

	e := NewEngine(nil, nil, true, log.NewLogger())
	lines, err := e.Backfill(path, 50, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, lines)
}

func TestBackfillArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log.1.gz")
	writeGzip(t, path, 200)

	e := NewEngine(nil, nil, true, log.NewLogger())
	lines, err := e.Backfill(path, 50, 1<<20)
	require.NoError(t, err)

	require.Len(t, lines, 50)
	assert.Equal(t, "archived line 150", lines[0])
	assert.Equal(t, "archived line 199", lines[49])
}

func TestBackfillArchiveSizeCeiling(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.log.1.gz")
	writeGzip(t, path, 10)

	info, err := os.Stat(path)
	require.NoError(t, err)

	e := NewEngine(nil, nil, true, log.NewLogger())
	_, err = e.Backfill(path, 50, info.Size()-1)
	assert.ErrorIs(t, err, ErrArchiveTooLarge)
}

func TestBackfillCorruptArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.log.1.gz")
	writeFile(t, path, "this is not gzip data")

	e := NewEngine(nil, nil, true, log.NewLogger())
	_, err := e.Backfill(path, 50, 1<<20)
	assert.Error(t, err)
}
