package commands

import (
	"context"

	"github.com/samber/lo"

	"deltactl/internal/cli"
	"deltactl/internal/identity"
)

// SignInCommand starts an interactive sign-in
type SignInCommand struct {
	*BaseCommand
	quiet bool
}

// NewSignInCommand creates a new sign-in command. A quiet command shows no
// spinner while the browser flow runs.
func NewSignInCommand(base *BaseCommand, quiet bool) *SignInCommand {
	return &SignInCommand{BaseCommand: base, quiet: quiet}
}

// Execute runs the sign-in
func (s *SignInCommand) Execute(ctx context.Context, args []string) error {
	if v := s.app.View(); v.State == identity.StateAuthenticated && v.Account != nil {
		s.output.Info("Already signed in as %s; signing in again", accountName(v.Account))
	}

	progress := cli.StartProgress(s.printer.Out(), "Waiting for sign-in in the browser...", s.quiet)
	err := s.app.SignIn(ctx)
	if err != nil {
		progress.Fail("Sign-in failed")
		return err
	}
	progress.Stop()

	v := s.app.View()
	switch {
	case v.State == identity.StatePending:
		s.output.Info("Sign-in started; finish it in the browser")
	case v.Account != nil:
		s.output.Success("Signed in as %s", accountName(v.Account))
	}
	return nil
}

// Usage returns the usage string
func (s *SignInCommand) Usage() string {
	return "signin"
}

// Description returns the command description
func (s *SignInCommand) Description() string {
	return "Sign in with the identity provider"
}

// Completions returns possible completions
func (s *SignInCommand) Completions(input string) []string {
	return []string{}
}

// Aliases returns command aliases
func (s *SignInCommand) Aliases() []string {
	return []string{"login"}
}

func accountName(a *identity.Account) string {
	return lo.CoalesceOrEmpty(a.Username, a.Name, a.Subject)
}
