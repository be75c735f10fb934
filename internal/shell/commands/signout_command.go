package commands

import (
	"context"
)

// SignOutCommand ends the session
type SignOutCommand struct {
	*BaseCommand
}

// NewSignOutCommand creates a new sign-out command
func NewSignOutCommand(base *BaseCommand) *SignOutCommand {
	return &SignOutCommand{BaseCommand: base}
}

// Execute signs out. Local credentials and cached data are gone even when
// the provider reports an error.
func (s *SignOutCommand) Execute(ctx context.Context, args []string) error {
	if err := s.app.SignOut(ctx); err != nil {
		s.output.Warning("Signed out locally, but the provider sign-out failed")
		return err
	}
	s.output.Success("Signed out")
	return nil
}

// Usage returns the usage string
func (s *SignOutCommand) Usage() string {
	return "signout"
}

// Description returns the command description
func (s *SignOutCommand) Description() string {
	return "Sign out and clear cached data"
}

// Completions returns possible completions
func (s *SignOutCommand) Completions(input string) []string {
	return []string{}
}

// Aliases returns command aliases
func (s *SignOutCommand) Aliases() []string {
	return []string{"logout"}
}
