// Package commands provides the commands of the deltactl shell.
//
// Every command implements the Command interface and is registered in a
// Registry under its name and aliases. Commands drive the application through
// the Coordinator interface and print results with a cli.Printer.
package commands

import (
	"context"
	"slices"

	"github.com/samber/lo"

	"deltactl/internal/app"
	"deltactl/internal/dataclient"
	"deltactl/internal/identity"
)

// Command represents a shell command that can be executed interactively.
type Command interface {
	// Execute runs the command with the given arguments
	Execute(ctx context.Context, args []string) error

	// Usage returns the usage string for the command
	Usage() string

	// Description returns a brief description of what the command does
	Description() string

	// Completions returns possible completions for the command
	// The input parameter is the current partial input for context
	Completions(input string) []string

	// Aliases returns alternative names for this command
	Aliases() []string
}

// RawCommand is implemented by commands whose argument is free text, such as
// a JSON document, that must reach them with its whitespace intact.
type RawCommand interface {
	Command
	ExecuteRaw(ctx context.Context, raw string) error
}

// Coordinator is what commands need from *app.App.
type Coordinator interface {
	SignIn(ctx context.Context) error
	SignOut(ctx context.Context) error
	Profile(ctx context.Context) (*identity.UserProfile, error)
	Claims() (*identity.Claims, error)
	FetchPrimary(ctx context.Context, force bool) (*dataclient.Payload, error)
	FetchUser(ctx context.Context, force bool) (*dataclient.Payload, error)
	SaveJSON(ctx context.Context, raw []byte) (*dataclient.Payload, error)
	AdminList(ctx context.Context) ([]string, error)
	AdminGet(ctx context.Context, path string) (*dataclient.Payload, error)
	ClearCache()
	View() app.View
}

// OutputLogger defines the interface for user-facing status messages.
// Command results go through the cli.Printer instead.
type OutputLogger interface {
	Output(format string, args ...interface{})
	OutputLine(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Success(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Registry manages available commands for the shell.
type Registry struct {
	commands map[string]Command
	aliases  map[string]string // alias -> primary command name
}

// NewRegistry creates a new command registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
		aliases:  make(map[string]string),
	}
}

// Register adds a command to the registry.
func (r *Registry) Register(name string, cmd Command) {
	r.commands[name] = cmd
	for _, alias := range cmd.Aliases() {
		r.aliases[alias] = name
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) (Command, bool) {
	if cmd, exists := r.commands[name]; exists {
		return cmd, true
	}
	if primary, exists := r.aliases[name]; exists {
		if cmd, exists := r.commands[primary]; exists {
			return cmd, true
		}
	}
	return nil, false
}

// List returns all registered command names, sorted.
func (r *Registry) List() []string {
	names := lo.Keys(r.commands)
	slices.Sort(names)
	return names
}

// AllCompletions returns all command names and aliases, sorted.
func (r *Registry) AllCompletions() []string {
	completions := append(lo.Keys(r.commands), lo.Keys(r.aliases)...)
	slices.Sort(completions)
	return completions
}
