// FILE: src/cmd/logpulse/authcmd.go
package main

import (
	"errors"
	"flag"
	"fmt"

	"logpulse/src/internal/auth"

	"github.com/pterm/pterm"
)

type authCommand struct{}

func (c *authCommand) Execute(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("auth requires a subcommand: add-key, status, logout")
	}

	switch args[0] {
	case "add-key":
		return c.addKey(args[1:])
	case "status":
		return c.status()
	case "logout":
		return c.logout()
	default:
		return fmt.Errorf("unknown auth subcommand: %s (valid: add-key, status, logout)", args[0])
	}
}

func (c *authCommand) addKey(args []string) error {
	fs := flag.NewFlagSet("auth add-key", flag.ExitOnError)
	serverID := fs.String("server-id", "", "Identity reported with every record (defaults to hostname)")
	endpoint := fs.String("endpoint", "", "Ingestion endpoint URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: logpulse auth add-key <connection-key> [-server-id id] [-endpoint url]")
	}

	creds, err := auth.AddKey(fs.Arg(0), *serverID, *endpoint)
	if err != nil {
		return err
	}

	pterm.Success.Printfln("Connection key stored for %s -> %s", creds.ServerID, creds.EndpointURL)
	c.printClaims(creds.ConnectionKey)
	return nil
}

func (c *authCommand) status() error {
	creds, err := auth.Load()
	if err != nil {
		if errors.Is(err, auth.ErrNotAuthenticated) {
			pterm.Warning.Println("Not authenticated")
			return nil
		}
		return err
	}

	pterm.Success.Printfln("Authenticated as %s", creds.ServerID)
	pterm.Info.Printfln("Endpoint: %s", creds.EndpointURL)
	if creds.LastSync != nil {
		pterm.Info.Printfln("Last sync: %s", creds.LastSync.Format("2006-01-02 15:04:05"))
	}
	c.printClaims(creds.ConnectionKey)
	return nil
}

func (c *authCommand) printClaims(key string) {
	claims, err := auth.InspectKey(key)
	if err != nil || claims == nil {
		return
	}
	if claims.Subject != "" {
		pterm.Info.Printfln("Key subject: %s", claims.Subject)
	}
	if claims.Role != "" {
		pterm.Info.Printfln("Key role: %s", claims.Role)
	}
	if claims.ExpiresAt != nil {
		pterm.Info.Printfln("Key expires: %s", claims.ExpiresAt.Format("2006-01-02 15:04:05"))
	}
}

func (c *authCommand) logout() error {
	if err := auth.Clear(); err != nil {
		return err
	}
	pterm.Success.Println("Credentials removed")
	return nil
}

func (c *authCommand) Description() string {
	return "Manage the server connection key"
}
