package commands

import (
	"context"

	"deltactl/internal/cli"
)

// StatusCommand shows the session and cache state
type StatusCommand struct {
	*BaseCommand
}

// NewStatusCommand creates a new status command
func NewStatusCommand(base *BaseCommand) *StatusCommand {
	return &StatusCommand{BaseCommand: base}
}

// Execute prints the current view
func (s *StatusCommand) Execute(ctx context.Context, args []string) error {
	return cli.RenderView(s.printer, s.app.View())
}

// Usage returns the usage string
func (s *StatusCommand) Usage() string {
	return "status"
}

// Description returns the command description
func (s *StatusCommand) Description() string {
	return "Show the signed-in account and data status"
}

// Completions returns possible completions
func (s *StatusCommand) Completions(input string) []string {
	return []string{}
}

// Aliases returns command aliases
func (s *StatusCommand) Aliases() []string {
	return []string{"whoami"}
}
