package commands

import (
	"context"
	"fmt"

	"deltactl/internal/cli"
)

// CacheCommand shows or clears the data cache
type CacheCommand struct {
	*BaseCommand
}

// NewCacheCommand creates a new cache command
func NewCacheCommand(base *BaseCommand) *CacheCommand {
	return &CacheCommand{BaseCommand: base}
}

// Execute prints the cache state, or clears it with "clear"
func (c *CacheCommand) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return cli.RenderCache(c.printer, c.app.View().Cache)
	}
	if args[0] != "clear" {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	c.app.ClearCache()
	c.output.Success("Cache cleared")
	return nil
}

// Usage returns the usage string
func (c *CacheCommand) Usage() string {
	return "cache [clear]"
}

// Description returns the command description
func (c *CacheCommand) Description() string {
	return "Show or clear the data cache"
}

// Completions returns possible completions
func (c *CacheCommand) Completions(input string) []string {
	return completeFrom(input, []string{"clear"})
}

// Aliases returns command aliases
func (c *CacheCommand) Aliases() []string {
	return []string{}
}
