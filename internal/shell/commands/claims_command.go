package commands

import (
	"context"

	"deltactl/internal/cli"
)

// ClaimsCommand shows the decoded ID token
type ClaimsCommand struct {
	*BaseCommand
}

// NewClaimsCommand creates a new claims command
func NewClaimsCommand(base *BaseCommand) *ClaimsCommand {
	return &ClaimsCommand{BaseCommand: base}
}

// Execute prints the ID token claims
func (c *ClaimsCommand) Execute(ctx context.Context, args []string) error {
	claims, err := c.app.Claims()
	if err != nil {
		return err
	}
	return cli.RenderClaims(c.printer, claims)
}

// Usage returns the usage string
func (c *ClaimsCommand) Usage() string {
	return "claims"
}

// Description returns the command description
func (c *ClaimsCommand) Description() string {
	return "Show the claims of the current ID token"
}

// Completions returns possible completions
func (c *ClaimsCommand) Completions(input string) []string {
	return []string{}
}

// Aliases returns command aliases
func (c *ClaimsCommand) Aliases() []string {
	return []string{"token"}
}
