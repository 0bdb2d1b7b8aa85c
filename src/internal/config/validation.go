// FILE: src/internal/config/validation.go
package config

import (
	"fmt"
)

func (c *Config) validate() error {
	if err := c.Logging.validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if len(c.Discovery.Roots) == 0 {
		return fmt.Errorf("discovery config: no scan roots configured")
	}
	if c.Discovery.BackfillLines < 0 {
		return fmt.Errorf("discovery config: backfill_lines cannot be negative")
	}
	if c.Discovery.MaxArchiveSizeMB <= 0 {
		return fmt.Errorf("discovery config: max_archive_size_mb must be positive")
	}

	if c.Scheduler.EventQueueSize <= 0 {
		return fmt.Errorf("scheduler config: event_queue_size must be positive")
	}
	if c.Scheduler.StepTimeoutMS <= 0 {
		return fmt.Errorf("scheduler config: step_timeout_ms must be positive")
	}
	if c.Scheduler.Workers < 0 {
		return fmt.Errorf("scheduler config: workers cannot be negative")
	}

	if c.Store.BusyTimeoutMS <= 0 {
		return fmt.Errorf("store config: busy_timeout_ms must be positive")
	}

	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync config: batch_size must be positive")
	}
	if c.Sync.IntervalSeconds <= 0 {
		return fmt.Errorf("sync config: interval_seconds must be positive")
	}
	if c.Sync.TimeoutSeconds <= 0 {
		return fmt.Errorf("sync config: timeout_seconds must be positive")
	}
	if c.Sync.MaxRetries < 0 {
		return fmt.Errorf("sync config: max_retries cannot be negative")
	}
	if c.Sync.RetryBackoff < 1.0 {
		return fmt.Errorf("sync config: retry_backoff must be >= 1.0")
	}

	return nil
}

func (lc *LogConfig) validate() error {
	validOutputs := map[string]bool{
		"file": true, "stdout": true, "stderr": true,
		"both": true, "none": true,
	}
	if !validOutputs[lc.Output] {
		return fmt.Errorf("invalid log output mode: %s", lc.Output)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[lc.Level] {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	if lc.Output == "file" || lc.Output == "both" {
		if lc.Directory == "" {
			return fmt.Errorf("log directory required for output mode %q", lc.Output)
		}
	}

	return nil
}
