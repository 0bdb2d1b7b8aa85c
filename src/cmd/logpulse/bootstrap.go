// FILE: src/cmd/logpulse/bootstrap.go
package main

import (
	"fmt"
	"strings"
	"time"

	"logpulse/src/internal/config"
	"logpulse/src/internal/service"

	"github.com/lixenwraith/log"
)

var logger *log.Logger

// loadRuntime is the shared setup for commands that need the full
// agent: layered config, logger, store-backed service.
func loadRuntime(quiet bool) (*config.Config, *service.Service, error) {
	cfg, err := config.LoadWithCLI(nil)
	if err != nil {
		return nil, nil, err
	}
	if quiet {
		cfg.Quiet = true
	}

	if err := initializeLogger(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	svc, err := service.New(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, svc, nil
}

// initializeLogger sets up the logger based on configuration
func initializeLogger(cfg *config.Config) error {
	logger = log.NewLogger()

	var configArgs []string

	if cfg.Quiet {
		// In quiet mode, disable ALL logging output
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=false",
			"level=255")

		if err := logger.ApplyConfigString(configArgs...); err != nil {
			return err
		}
		return logger.Start()
	}

	levelValue, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	configArgs = append(configArgs, fmt.Sprintf("level=%d", levelValue))

	switch cfg.Logging.Output {
	case "none":
		configArgs = append(configArgs, "disable_file=true", "enable_stdout=false")

	case "stdout":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target=stdout")

	case "stderr", "":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target=stderr")

	case "file":
		configArgs = append(configArgs, "enable_stdout=false")
		configureFileLogging(&configArgs, cfg)

	case "both":
		configArgs = append(configArgs,
			"enable_stdout=true",
			"stdout_target=stderr")
		configureFileLogging(&configArgs, cfg)

	default:
		return fmt.Errorf("invalid log output mode: %s", cfg.Logging.Output)
	}

	if err := logger.ApplyConfigString(configArgs...); err != nil {
		return err
	}
	return logger.Start()
}

// configureFileLogging sets up file-based logging parameters
func configureFileLogging(configArgs *[]string, cfg *config.Config) {
	*configArgs = append(*configArgs,
		fmt.Sprintf("directory=%s", cfg.Logging.Directory),
		fmt.Sprintf("name=%s", cfg.Logging.Name),
		fmt.Sprintf("max_size_mb=%d", cfg.Logging.MaxSizeMB))
}

func parseLogLevel(level string) (int, error) {
	switch strings.ToLower(level) {
	case "debug":
		return int(log.LevelDebug), nil
	case "info", "":
		return int(log.LevelInfo), nil
	case "warn", "warning":
		return int(log.LevelWarn), nil
	case "error":
		return int(log.LevelError), nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}

func shutdownLogger() {
	if logger != nil {
		if err := logger.Shutdown(2 * time.Second); err != nil {
			// Best effort - can't log the shutdown error
			Error("Logger shutdown error: %v\n", err)
		}
	}
}
