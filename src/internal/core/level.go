// FILE: src/internal/core/level.go
package core

import (
	"strings"
	"time"
)

// InferLevel derives a log level from keyword tokens in the line.
// Fatal/critical/error terms win over warn terms; anything without a
// recognizable token is INFO.
func InferLevel(line string) string {
	upper := strings.ToUpper(line)

	groups := []struct {
		tokens []string
		level  string
	}{
		{[]string{"FATAL", "CRITICAL", "PANIC", "ERROR", "ERR:", "[ERR]"}, "ERROR"},
		{[]string{"WARN", "WARNING"}, "WARN"},
		{[]string{"DEBUG", "[DBG]", "DBG:", "TRACE"}, "DEBUG"},
	}

	for _, g := range groups {
		for _, tok := range g.tokens {
			if strings.Contains(upper, tok) {
				return g.level
			}
		}
	}
	return "INFO"
}

// Timestamp layouts recognized at the start of log lines. Ordered most
// to least specific; the first that parses wins.
var embeddedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"02/Jan/2006:15:04:05 -0700", // web server access log format
}

// ExtractTimestamp tries to parse an embedded timestamp from the start
// of the line. Candidates are whitespace-delimited tokens, not fixed
// layout-length slices: RFC3339 strings are shorter than their layout
// when the zone is "Z" or the fraction is short. Returns the capture
// time when nothing parses.
func ExtractTimestamp(line string, capture time.Time) time.Time {
	fields := strings.Fields(strings.TrimLeft(line, " \t["))
	if len(fields) == 0 {
		return capture
	}

	for _, layout := range embeddedLayouts {
		n := len(strings.Fields(layout))
		if len(fields) < n {
			continue
		}
		candidate := strings.TrimRight(strings.Join(fields[:n], " "), "]")
		if ts, err := time.Parse(layout, candidate); err == nil {
			return ts
		}
	}

	// Syslog style "Jan  2 15:04:05" carries no year; borrow the
	// capture time's.
	if len(fields) >= 3 {
		if ts, err := time.Parse(time.Stamp, strings.Join(fields[:3], " ")); err == nil {
			return ts.AddDate(capture.Year(), 0, 0)
		}
	}

	return capture
}
