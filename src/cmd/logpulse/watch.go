// FILE: src/cmd/logpulse/watch.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
)

type watchCommand struct{}

func (c *watchCommand) Execute(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	background := fs.Bool("background", false, "Run the watcher as a detached background process")
	quiet := fs.Bool("quiet", false, "Suppress operator output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// No target: report what is already running instead of starting
	// anything.
	if fs.NArg() == 0 {
		return c.listSessions(*quiet)
	}
	target := fs.Arg(0)

	if *background && !isBackgroundProcess() {
		pid, err := runInBackground()
		if err != nil {
			return err
		}
		Print("Watcher started in background (pid %d)\n", pid)
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

	if !isBackgroundProcess() {
		Print("Watching %s (press q to stop, b to detach)\n", target)
		go runInteractiveKeys(ctx, cancel, func() {
			if pid, err := runInBackground(); err != nil {
				Error("Failed to detach: %v\n", err)
			} else {
				Print("\nDetached to background (pid %d)\n", pid)
				cancel()
			}
		})
	}

	return svc.Watch(ctx, target)
}

func (c *watchCommand) listSessions(quiet bool) error {
	_, svc, err := loadRuntime(quiet)
	if err != nil {
		return err
	}
	defer svc.Close()
	defer shutdownLogger()

	st, err := svc.GetStatus()
	if err != nil {
		return err
	}

	if output.IsQuiet() {
		return nil
	}
	if len(st.Sessions) == 0 {
		pterm.Info.Println("No active sessions")
		return nil
	}

	data := pterm.TableData{{"PID", "Mode", "Target", "Started"}}
	for _, sess := range st.Sessions {
		data = append(data, []string{
			pterm.Sprintf("%d", sess.PID),
			sess.Mode,
			sess.Target,
			sess.StartedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func (c *watchCommand) Description() string {
	return "Tail log files into the local buffer"
}
