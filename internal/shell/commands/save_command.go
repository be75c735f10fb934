package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// SaveCommand replaces the user's delta document
type SaveCommand struct {
	*BaseCommand
}

// NewSaveCommand creates a new save command
func NewSaveCommand(base *BaseCommand) *SaveCommand {
	return &SaveCommand{BaseCommand: base}
}

// Execute saves the joined arguments.
func (s *SaveCommand) Execute(ctx context.Context, args []string) error {
	return s.ExecuteRaw(ctx, s.joinArgsFrom(args, 0))
}

// ExecuteRaw saves a JSON object given inline or, with an @ prefix, read
// from a file.
func (s *SaveCommand) ExecuteRaw(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return fmt.Errorf("usage: %s", s.Usage())
	}

	raw := []byte(stripQuotes(input))
	if path, ok := strings.CutPrefix(input, "@"); ok && !strings.ContainsAny(path, " \t") {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		raw = data
	}

	if _, err := s.app.SaveJSON(ctx, raw); err != nil {
		return err
	}
	s.output.Success("User data saved")
	return nil
}

// Usage returns the usage string
func (s *SaveCommand) Usage() string {
	return "save <json-object|@file>"
}

// Description returns the command description
func (s *SaveCommand) Description() string {
	return "Save the user data document"
}

// Completions returns possible completions
func (s *SaveCommand) Completions(input string) []string {
	return []string{}
}

// Aliases returns command aliases
func (s *SaveCommand) Aliases() []string {
	return []string{"put"}
}
