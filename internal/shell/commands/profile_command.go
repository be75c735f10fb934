package commands

import (
	"context"

	"deltactl/internal/cli"
)

// ProfileCommand shows the provider's profile for the signed-in user
type ProfileCommand struct {
	*BaseCommand
}

// NewProfileCommand creates a new profile command
func NewProfileCommand(base *BaseCommand) *ProfileCommand {
	return &ProfileCommand{BaseCommand: base}
}

// Execute fetches and prints the profile
func (p *ProfileCommand) Execute(ctx context.Context, args []string) error {
	profile, err := p.app.Profile(ctx)
	if err != nil {
		return err
	}
	return cli.RenderProfile(p.printer, profile)
}

// Usage returns the usage string
func (p *ProfileCommand) Usage() string {
	return "profile"
}

// Description returns the command description
func (p *ProfileCommand) Description() string {
	return "Show the user profile from the identity provider"
}

// Completions returns possible completions
func (p *ProfileCommand) Completions(input string) []string {
	return []string{}
}

// Aliases returns command aliases
func (p *ProfileCommand) Aliases() []string {
	return []string{"me"}
}
