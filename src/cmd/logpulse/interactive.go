// FILE: src/cmd/logpulse/interactive.go
package main

import (
	"context"
	"os"

	"golang.org/x/term"
)

// runInteractiveKeys reads single keystrokes while a foreground run is
// active: q (or Ctrl-C) cancels, b detaches. Does nothing when stdin
// is not a terminal, such as under a pipe or service manager.
func runInteractiveKeys(ctx context.Context, cancel func(), detach func()) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return
	}
	defer term.Restore(fd, oldState)

	keys := make(chan byte, 1)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n > 0 {
				select {
				case keys <- buf[0]:
				default:
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case key := <-keys:
			switch key {
			case 'q', 'Q', 3: // 3 = Ctrl-C in raw mode
				term.Restore(fd, oldState)
				cancel()
				return
			case 'b', 'B':
				term.Restore(fd, oldState)
				detach()
				return
			}
		}
	}
}
