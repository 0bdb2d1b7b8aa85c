// FILE: src/cmd/logpulse/output.go
package main

import (
	"fmt"
	"os"
	"sync/atomic"
)

// Operator-facing output for the CLI commands. Quiet mode silences
// everything routed through here; structured logging is configured
// separately in bootstrap and is not affected.
type OutputHandler struct {
	quiet atomic.Bool
}

var output = &OutputHandler{}

// InitOutputHandler sets quiet mode before any command runs.
func InitOutputHandler(quiet bool) {
	output.quiet.Store(quiet)
}

func (o *OutputHandler) IsQuiet() bool {
	return o.quiet.Load()
}

// Print writes operator output to stdout unless quiet.
func Print(format string, args ...any) {
	if !output.IsQuiet() {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// Error writes operator diagnostics to stderr unless quiet.
func Error(format string, args ...any) {
	if !output.IsQuiet() {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// FatalError reports and exits with the given code. Quiet mode still
// suppresses the message; the exit code carries the outcome.
func FatalError(code int, format string, args ...any) {
	Error(format, args...)
	os.Exit(code)
}
