// FILE: src/cmd/logpulse/stop.go
package main

import (
	"flag"

	"logpulse/src/internal/service"

	"github.com/pterm/pterm"
)

type stopCommand struct{}

func (c *stopCommand) Execute(args []string) error {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	quiet := fs.Bool("quiet", false, "Suppress operator output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	target := service.TargetAll
	if fs.NArg() > 0 {
		target = fs.Arg(0)
	}

	_, svc, err := loadRuntime(*quiet)
	if err != nil {
		return err
	}
	defer svc.Close()
	defer shutdownLogger()

	stopped, err := svc.StopSessions(target)
	if err != nil {
		return err
	}

	if !output.IsQuiet() {
		if stopped == 0 {
			pterm.Info.Println("No matching sessions to stop")
		} else {
			pterm.Success.Printfln("Signalled %d session(s) to stop", stopped)
		}
	}
	return nil
}

func (c *stopCommand) Description() string {
	return "Stop running background sessions"
}
