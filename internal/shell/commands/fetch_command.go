package commands

import (
	"context"
	"fmt"
	"strings"

	"deltactl/internal/cli"
	"deltactl/internal/dataclient"
)

// Fetch targets.
const (
	targetPrimary = "primary"
	targetUser    = "user"
)

// FetchCommand reads the primary or user data
type FetchCommand struct {
	*BaseCommand
}

// NewFetchCommand creates a new fetch command
func NewFetchCommand(base *BaseCommand) *FetchCommand {
	return &FetchCommand{BaseCommand: base}
}

// Execute fetches and prints one payload. Cached data is returned unless
// --force is given.
func (f *FetchCommand) Execute(ctx context.Context, args []string) error {
	args, force := splitForce(args)
	if _, err := f.parseArgs(args, 1, f.Usage()); err != nil {
		return err
	}

	var (
		payload *dataclient.Payload
		err     error
	)
	switch strings.ToLower(args[0]) {
	case targetPrimary:
		payload, err = f.app.FetchPrimary(ctx, force)
	case targetUser, "delta":
		payload, err = f.app.FetchUser(ctx, force)
	default:
		return fmt.Errorf("unknown target: %s. Valid targets: %s, %s", args[0], targetPrimary, targetUser)
	}
	if err != nil {
		return err
	}
	return cli.RenderPayload(f.printer, payload)
}

// Usage returns the usage string
func (f *FetchCommand) Usage() string {
	return "fetch <primary|user> [--force]"
}

// Description returns the command description
func (f *FetchCommand) Description() string {
	return "Fetch primary or user data, from cache unless forced"
}

// Completions returns possible completions
func (f *FetchCommand) Completions(input string) []string {
	if argIndex(input) > 0 {
		return completeFrom(input, forceFlags[:1])
	}
	return completeFrom(input, []string{targetPrimary, targetUser})
}

// Aliases returns command aliases
func (f *FetchCommand) Aliases() []string {
	return []string{"get"}
}
