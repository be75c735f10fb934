package commands

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"deltactl/internal/cli"
)

// Admin subcommands.
const (
	adminList = "ls"
	adminGet  = "get"
)

// AdminCommand browses the admin file store
type AdminCommand struct {
	*BaseCommand

	mu    sync.Mutex
	known []string // paths from the last listing, for completion
}

// NewAdminCommand creates a new admin command
func NewAdminCommand(base *BaseCommand) *AdminCommand {
	return &AdminCommand{BaseCommand: base}
}

// Execute lists the admin store or reads one file from it
func (a *AdminCommand) Execute(ctx context.Context, args []string) error {
	if _, err := a.parseArgs(args, 1, a.Usage()); err != nil {
		return err
	}

	switch strings.ToLower(args[0]) {
	case adminList, "list":
		paths, err := a.app.AdminList(ctx)
		if err != nil {
			return err
		}
		a.mu.Lock()
		a.known = paths
		a.mu.Unlock()
		return cli.RenderPaths(a.printer, paths)
	case adminGet, "cat":
		if _, err := a.parseArgs(args, 2, "admin get <path>"); err != nil {
			return err
		}
		payload, err := a.app.AdminGet(ctx, stripQuotes(a.joinArgsFrom(args, 1)))
		if err != nil {
			return err
		}
		return cli.RenderPayload(a.printer, payload)
	default:
		return fmt.Errorf("unknown admin command: %s. Valid commands: %s, %s", args[0], adminList, adminGet)
	}
}

// Usage returns the usage string
func (a *AdminCommand) Usage() string {
	return "admin <ls|get <path>>"
}

// Description returns the command description
func (a *AdminCommand) Description() string {
	return "List or read admin files (admin role required)"
}

// Completions offers the subcommands and, after "get", the paths of the
// last listing
func (a *AdminCommand) Completions(input string) []string {
	if fields := strings.Fields(input); argIndex(input) > 0 && fields[1] == adminGet {
		a.mu.Lock()
		defer a.mu.Unlock()
		return completeFrom(input, a.known)
	}
	return completeFrom(input, []string{adminList, adminGet})
}

// Aliases returns command aliases
func (a *AdminCommand) Aliases() []string {
	return []string{}
}
