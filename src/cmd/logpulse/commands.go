// FILE: src/cmd/logpulse/commands.go
package main

import (
	"fmt"
	"os"

	"logpulse/src/internal/version"
)

// Handles subcommand routing before main app initialization
type CommandRouter struct {
	commands map[string]CommandHandler
}

// Defines the interface for subcommands
type CommandHandler interface {
	Execute(args []string) error
	Description() string
}

// Creates and initializes the command router
func NewCommandRouter() *CommandRouter {
	router := &CommandRouter{
		commands: make(map[string]CommandHandler),
	}

	// Register available commands
	router.commands["scan"] = &scanCommand{}
	router.commands["watch"] = &watchCommand{}
	router.commands["sync"] = &syncCommand{}
	router.commands["status"] = &statusCommand{}
	router.commands["stop"] = &stopCommand{}
	router.commands["auth"] = &authCommand{}
	router.commands["version"] = &versionCommand{}
	router.commands["help"] = &helpCommand{}

	return router
}

// Checks for and executes subcommands
func (r *CommandRouter) Route(args []string) {
	if len(args) < 2 {
		r.commands["help"].Execute(nil)
		os.Exit(0)
	}

	cmdName := args[1]

	if cmdName == "-h" || cmdName == "--help" {
		r.commands["help"].Execute(nil)
		os.Exit(0)
	}

	if handler, exists := r.commands[cmdName]; exists {
		if err := handler.Execute(args[2:]); err != nil {
			FatalError(1, "Error: %v\n", err)
		}
		os.Exit(0)
	}

	fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmdName)
	fmt.Fprintln(os.Stderr, "\nAvailable commands:")
	r.ShowCommands()
	os.Exit(1)
}

// Displays available subcommands
func (r *CommandRouter) ShowCommands() {
	fmt.Fprintln(os.Stderr, "  scan       Discover log files without watching them")
	fmt.Fprintln(os.Stderr, "  watch      Tail log files into the local buffer")
	fmt.Fprintln(os.Stderr, "  sync       Deliver buffered records to the server")
	fmt.Fprintln(os.Stderr, "  status     Show agent sessions, watches and buffer depth")
	fmt.Fprintln(os.Stderr, "  stop       Stop running background sessions")
	fmt.Fprintln(os.Stderr, "  auth       Manage the server connection key")
	fmt.Fprintln(os.Stderr, "  version    Show version information")
	fmt.Fprintln(os.Stderr, "  help       Display help information")
	fmt.Fprintln(os.Stderr, "\nUse 'logpulse <command> --help' for command-specific help")
}

type helpCommand struct{}

func (c *helpCommand) Execute(args []string) error {
	fmt.Print(helpText)
	return nil
}

func (c *helpCommand) Description() string {
	return "Display help information"
}

type versionCommand struct{}

func (c *versionCommand) Execute(args []string) error {
	fmt.Println(version.String())
	return nil
}

func (c *versionCommand) Description() string {
	return "Show version information"
}
