package commands

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"deltactl/internal/cli"
)

// forceFlags bypass the data cache.
var forceFlags = []string{"--force", "-f"}

// BaseCommand carries the dependencies every command shares.
type BaseCommand struct {
	app     Coordinator
	output  OutputLogger
	printer *cli.Printer
}

// NewBaseCommand creates a new base command with the specified dependencies.
func NewBaseCommand(coord Coordinator, output OutputLogger, printer *cli.Printer) *BaseCommand {
	return &BaseCommand{
		app:     coord,
		output:  output,
		printer: printer,
	}
}

// parseArgs checks that at least minArgs arguments were given.
func (b *BaseCommand) parseArgs(args []string, minArgs int, usage string) ([]string, error) {
	if len(args) < minArgs {
		return nil, fmt.Errorf("usage: %s", usage)
	}
	return args, nil
}

// joinArgsFrom joins arguments starting from index into a single string.
func (b *BaseCommand) joinArgsFrom(args []string, index int) string {
	if index >= len(args) {
		return ""
	}
	return strings.Join(args[index:], " ")
}

// splitForce removes the force flags from args and reports whether one was present.
func splitForce(args []string) ([]string, bool) {
	rest := lo.Reject(args, func(a string, _ int) bool { return lo.Contains(forceFlags, a) })
	return rest, len(rest) != len(args)
}

// stripQuotes removes surrounding single or double quotes from a string.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') ||
			(s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// completeFrom returns the candidates that extend the last word of input.
func completeFrom(input string, candidates []string) []string {
	fields := strings.Fields(input)
	last := ""
	if len(fields) > 0 && !strings.HasSuffix(input, " ") {
		last = fields[len(fields)-1]
	}
	return lo.Filter(candidates, func(c string, _ int) bool { return strings.HasPrefix(c, last) })
}

// argIndex returns the position of the argument being completed in input,
// the full line including the command name.
func argIndex(input string) int {
	n := len(strings.Fields(input)) - 1
	if !strings.HasSuffix(input, " ") {
		n--
	}
	return max(n, 0)
}
