// FILE: src/internal/core/record_test.go
package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLevelForIsTotal(t *testing.T) {
	cases := []struct {
		category string
		level    PriorityLevel
	}{
		{CategorySecurity, LevelCritical},
		{CategoryWebServer, LevelHigh},
		{CategoryDatabase, LevelHigh},
		{CategoryKernel, LevelMedium},
		{CategoryApplication, LevelMedium},
		{CategoryPackageMgmt, LevelLow},
		{CategoryOther, LevelLow},
		{"made-up-category", LevelLow},
		{"", LevelLow},
	}
	for _, tc := range cases {
		got := LevelFor(Classification{Category: tc.category})
		assert.Equal(t, tc.level, got, "category %q", tc.category)
	}
}

func TestIntervalsAreOrdered(t *testing.T) {
	var prev time.Duration
	for level := PriorityLevel(0); level < NumLevels; level++ {
		interval := level.Interval()
		assert.Greater(t, interval, prev, "intervals grow with level number")
		prev = interval
	}
}

func TestComputeDedupKeyStability(t *testing.T) {
	key := ComputeDedupKey("/var/log/auth.log", 123, 4096, "failed password")
	assert.Len(t, key, 32)
	assert.Equal(t, key, ComputeDedupKey("/var/log/auth.log", 123, 4096, "failed password"),
		"same inputs always produce the same key")

	// Each input dimension must change the key.
	assert.NotEqual(t, key, ComputeDedupKey("/var/log/sudo.log", 123, 4096, "failed password"))
	assert.NotEqual(t, key, ComputeDedupKey("/var/log/auth.log", 124, 4096, "failed password"))
	assert.NotEqual(t, key, ComputeDedupKey("/var/log/auth.log", 123, 4097, "failed password"))
	assert.NotEqual(t, key, ComputeDedupKey("/var/log/auth.log", 123, 4096, "failed password "))
}

func TestInferLevel(t *testing.T) {
	cases := []struct {
		line  string
		level string
	}{
		{"ERROR connection refused", "ERROR"},
		{"kernel panic - not syncing", "ERROR"},
		{"fatal: repository not found", "ERROR"},
		{"CRITICAL disk failure", "ERROR"},
		{"WARNING: deprecated option", "WARN"},
		{"warn low memory", "WARN"},
		{"DEBUG entering handler", "DEBUG"},
		{"trace span started", "DEBUG"},
		{"Accepted publickey for root", "INFO"},
		{"", "INFO"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.level, InferLevel(tc.line), "line %q", tc.line)
	}
}

func TestInferLevelErrorBeatsWarn(t *testing.T) {
	assert.Equal(t, "ERROR", InferLevel("warning escalated to error"))
}

func TestExtractTimestamp(t *testing.T) {
	capture := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		line string
		want time.Time
	}{
		{
			"2026-03-01T12:30:45Z server started",
			time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC),
		},
		{
			"2026-03-01T12:30:45.125Z flush complete",
			time.Date(2026, 3, 1, 12, 30, 45, 125_000_000, time.UTC),
		},
		{
			"2026-03-01T12:30:45+02:00 session opened",
			time.Date(2026, 3, 1, 12, 30, 45, 0, time.FixedZone("", 2*60*60)),
		},
		{
			"2026-03-01 12:30:45 server started",
			time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC),
		},
		{
			"2026/03/01 12:30:45 server started",
			time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC),
		},
		{
			"[01/Mar/2026:12:30:45 +0000] GET / 200",
			time.Date(2026, 3, 1, 12, 30, 45, 0, time.FixedZone("", 0)),
		},
	}
	for _, tc := range cases {
		got := ExtractTimestamp(tc.line, capture)
		assert.True(t, got.Equal(tc.want), "line %q: got %v want %v", tc.line, got, tc.want)
	}
}

func TestExtractTimestampSyslogBorrowsYear(t *testing.T) {
	capture := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	got := ExtractTimestamp("Mar  1 12:30:45 host sshd[123]: accepted", capture)
	assert.Equal(t, 2026, got.Year())
	assert.Equal(t, time.March, got.Month())
	assert.Equal(t, 12, got.Hour())
}

func TestExtractTimestampFallsBackToCapture(t *testing.T) {
	capture := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, capture, ExtractTimestamp("no timestamp here", capture))
	assert.Equal(t, capture, ExtractTimestamp("", capture))
}
