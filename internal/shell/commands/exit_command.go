package commands

import (
	"context"
	"errors"
)

// ErrExit is returned by the exit command to end the shell.
var ErrExit = errors.New("exit")

// ExitCommand handles shell exit
type ExitCommand struct {
	*BaseCommand
}

// NewExitCommand creates a new exit command
func NewExitCommand(base *BaseCommand) *ExitCommand {
	return &ExitCommand{BaseCommand: base}
}

// Execute exits the shell
func (e *ExitCommand) Execute(ctx context.Context, args []string) error {
	return ErrExit
}

// Usage returns the usage string
func (e *ExitCommand) Usage() string {
	return "exit"
}

// Description returns the command description
func (e *ExitCommand) Description() string {
	return "Exit the shell"
}

// Completions returns possible completions
func (e *ExitCommand) Completions(input string) []string {
	return []string{}
}

// Aliases returns command aliases
func (e *ExitCommand) Aliases() []string {
	return []string{"quit", "q"}
}
