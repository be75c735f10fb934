package commands

import (
	"context"

	"github.com/samber/lo"

	"deltactl/internal/cli"
)

// OutputCommand switches the output format
type OutputCommand struct {
	*BaseCommand
}

// NewOutputCommand creates a new output command
func NewOutputCommand(base *BaseCommand) *OutputCommand {
	return &OutputCommand{BaseCommand: base}
}

// Execute prints or sets the output format
func (o *OutputCommand) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		o.output.OutputLine("Output format: %s", o.printer.Format())
		return nil
	}
	if err := cli.ValidateOutputFormat(args[0]); err != nil {
		return err
	}
	o.printer.SetFormat(cli.OutputFormat(args[0]))
	o.output.Success("Output format set to %s", args[0])
	return nil
}

// Usage returns the usage string
func (o *OutputCommand) Usage() string {
	return "output [table|json|yaml]"
}

// Description returns the command description
func (o *OutputCommand) Description() string {
	return "Show or change the output format"
}

// Completions returns possible completions
func (o *OutputCommand) Completions(input string) []string {
	return completeFrom(input, lo.Map(cli.ValidOutputFormats, func(f cli.OutputFormat, _ int) string { return string(f) }))
}

// Aliases returns command aliases
func (o *OutputCommand) Aliases() []string {
	return []string{"format"}
}
