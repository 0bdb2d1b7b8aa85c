// FILE: src/internal/config/config.go
package config

// Config is the root agent configuration, assembled from defaults, the
// TOML config file, environment, and CLI arguments.
type Config struct {
	Discovery DiscoveryConfig `toml:"discovery"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Store     StoreConfig     `toml:"store"`
	Sync      SyncConfig      `toml:"sync"`
	Logging   LogConfig       `toml:"logging"`
	Quiet     bool            `toml:"quiet"`
}

type DiscoveryConfig struct {
	Roots         []string `toml:"roots"`
	Recursive     bool     `toml:"recursive"`
	ExcludeDirs   []string `toml:"exclude_dirs"`
	BackfillLines int64    `toml:"backfill_lines"`
	// Archives larger than this are skipped during backfill rather
	// than fully decoded.
	MaxArchiveSizeMB int64 `toml:"max_archive_size_mb"`
}

type SchedulerConfig struct {
	PushEnabled bool `toml:"push_enabled"`
	// Shared queue drained by the level workers; bounded so a burst of
	// notifications cannot grow memory without limit.
	EventQueueSize int64 `toml:"event_queue_size"`
	StepTimeoutMS  int64 `toml:"step_timeout_ms"`
	// Grace window before a vanished file's watch is closed.
	AbsentGraceSec int64 `toml:"absent_grace_sec"`
	// 0 sizes the worker pool to the CPU count.
	Workers int64 `toml:"workers"`
}

type StoreConfig struct {
	Path          string `toml:"path"`
	BusyTimeoutMS int64  `toml:"busy_timeout_ms"`
}

type SyncConfig struct {
	BatchSize       int64   `toml:"batch_size"`
	IntervalSeconds int64   `toml:"interval_seconds"`
	TimeoutSeconds  int64   `toml:"timeout_seconds"`
	MaxRetries      int64   `toml:"max_retries"`
	RetryDelayMS    int64   `toml:"retry_delay_ms"`
	RetryBackoff    float64 `toml:"retry_backoff"`
}

type LogConfig struct {
	Output    string `toml:"output"` // file, stdout, stderr, both, none
	Level     string `toml:"level"`  // debug, info, warn, error
	Directory string `toml:"directory"`
	Name      string `toml:"name"`
	MaxSizeMB int64  `toml:"max_size_mb"`
}

func defaults() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			Roots:     []string{"/var/log"},
			Recursive: true,
			ExcludeDirs: []string{
				".git", ".svn", ".hg",
				"node_modules", "__pycache__", ".cache",
				"tmp", "temp", ".tmp",
				"build", "dist", "target", ".venv",
			},
			BackfillLines:    50,
			MaxArchiveSizeMB: 256,
		},
		Scheduler: SchedulerConfig{
			PushEnabled:    true,
			EventQueueSize: 1024,
			StepTimeoutMS:  2000,
			AbsentGraceSec: 300,
		},
		Store: StoreConfig{
			BusyTimeoutMS: 5000,
		},
		Sync: SyncConfig{
			BatchSize:       100,
			IntervalSeconds: 300,
			TimeoutSeconds:  30,
			MaxRetries:      3,
			RetryDelayMS:    500,
			RetryBackoff:    2.0,
		},
		Logging: LogConfig{
			Output:    "stderr",
			Level:     "info",
			Name:      "logpulse",
			MaxSizeMB: 100,
		},
	}
}
