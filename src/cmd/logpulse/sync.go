// FILE: src/cmd/logpulse/sync.go
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"logpulse/src/internal/auth"
	"logpulse/src/internal/syncer"

	"github.com/pterm/pterm"
)

type syncCommand struct{}

func (c *syncCommand) Execute(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	once := fs.Bool("once", false, "Run a single sync pass and exit")
	background := fs.Bool("background", false, "Run continuous sync as a detached background process")
	interval := fs.Int("interval", 0, "Sync interval in seconds (overrides config)")
	quiet := fs.Bool("quiet", false, "Suppress operator output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *background && !*once && !isBackgroundProcess() {
		pid, err := runInBackground()
		if err != nil {
			return err
		}
		Print("Sync started in background (pid %d)\n", pid)
		return nil
	}

	_, svc, err := loadRuntime(*quiet || isBackgroundProcess())
	if err != nil {
		return err
	}
	defer svc.Close()
	defer shutdownLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if *once {
		res, err := svc.SyncOnce(ctx)
		if err != nil {
			return describeSyncError(err)
		}
		if !output.IsQuiet() {
			pterm.Success.Printfln("Synced %d records in %d batches (%d remaining)",
				res.Records, res.Batches, res.Remaining)
		}
		return nil
	}

	if !isBackgroundProcess() {
		Print("Continuous sync running (press q to stop, b to detach)\n")
		go runInteractiveKeys(ctx, cancel, func() {
			if pid, err := runInBackground(); err != nil {
				Error("Failed to detach: %v\n", err)
			} else {
				Print("\nDetached to background (pid %d)\n", pid)
				cancel()
			}
		})
	}

	err = svc.SyncContinuous(ctx, time.Duration(*interval)*time.Second)
	if err != nil && !errors.Is(err, context.Canceled) {
		return describeSyncError(err)
	}
	return nil
}

// describeSyncError maps the two operator-actionable failures to clear
// messages.
func describeSyncError(err error) error {
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		return errors.New("not authenticated, run 'logpulse auth add-key' first")
	case errors.Is(err, syncer.ErrAuth):
		return errors.New("connection key rejected by server, run 'logpulse auth add-key' with a fresh key")
	default:
		return err
	}
}

func (c *syncCommand) Description() string {
	return "Deliver buffered records to the server"
}
