// FILE: src/cmd/logpulse/status.go
package main

import (
	"flag"

	"logpulse/src/internal/store"

	"github.com/pterm/pterm"
)

type statusCommand struct{}

func (c *statusCommand) Execute(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	quiet := fs.Bool("quiet", false, "Suppress operator output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, svc, err := loadRuntime(*quiet)
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

	if st.Authenticated {
		pterm.Success.Printfln("Authenticated as %s -> %s", st.ServerID, st.EndpointURL)
	} else {
		pterm.Warning.Println("Not authenticated (run 'logpulse auth add-key')")
	}

	if len(st.Sessions) == 0 {
		pterm.Info.Println("No active sessions")
	} else {
		data := pterm.TableData{{"PID", "Mode", "Target", "Started"}}
		for _, sess := range st.Sessions {
			data = append(data, []string{
				pterm.Sprintf("%d", sess.PID),
				sess.Mode,
				sess.Target,
				sess.StartedAt.Format("2006-01-02 15:04:05"),
			})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
	}

	byState := make(map[string]int)
	denied := 0
	for _, wf := range st.Watched {
		byState[wf.State]++
		if wf.PermDenied {
			denied++
		}
	}
	pterm.Info.Printfln("Watched files: %d (tailing %d, closed %d, permission denied %d)",
		len(st.Watched), byState[store.StateTailing], byState[store.StateClosed], denied)

	pterm.Info.Printfln("Buffered records awaiting sync: %d", st.Unsynced)

	switch {
	case st.Cursor.FatalAuth:
		pterm.Error.Printfln("Last sync failed: %s", st.Cursor.LastError)
	case st.Cursor.LastError != "":
		pterm.Warning.Printfln("Last sync error: %s", st.Cursor.LastError)
	case st.Cursor.LastSyncAt != nil:
		pterm.Success.Printfln("Last successful sync: %s", st.Cursor.LastSyncAt.Format("2006-01-02 15:04:05"))
	default:
		pterm.Info.Println("No sync has run yet")
	}
	return nil
}

func (c *statusCommand) Description() string {
	return "Show agent sessions, watches and buffer depth"
}
