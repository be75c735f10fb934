package commands

import (
	"context"
	"strings"
)

// HelpCommand shows available commands and usage information
type HelpCommand struct {
	*BaseCommand
	registry *Registry
}

// NewHelpCommand creates a new help command
func NewHelpCommand(base *BaseCommand, registry *Registry) *HelpCommand {
	return &HelpCommand{
		BaseCommand: base,
		registry:    registry,
	}
}

// Execute shows help information
func (h *HelpCommand) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		h.showGeneralHelp()
		return nil
	}

	commandName := strings.ToLower(args[0])
	command, exists := h.registry.Get(commandName)
	if !exists {
		h.output.Error("Unknown command: %s", commandName)
		h.output.OutputLine("Use 'help' to see all available commands.")
		return nil
	}

	h.showCommandHelp(commandName, command)
	return nil
}

// showGeneralHelp lists every registered command with its usage
func (h *HelpCommand) showGeneralHelp() {
	h.output.OutputLine("Available commands:")
	for _, name := range h.registry.List() {
		cmd, _ := h.registry.Get(name)
		h.output.OutputLine("  %-30s - %s", cmd.Usage(), cmd.Description())
	}
	h.output.OutputLine("")
	h.output.OutputLine("Keyboard shortcuts:")
	h.output.OutputLine("  TAB                            - Auto-complete commands and arguments")
	h.output.OutputLine("  ↑/↓ (arrow keys)               - Navigate command history")
	h.output.OutputLine("  Ctrl+R                         - Search command history")
	h.output.OutputLine("  Ctrl+C                         - Cancel current line")
	h.output.OutputLine("  Ctrl+D                         - Exit the shell")
	h.output.OutputLine("")
	h.output.OutputLine("Examples:")
	h.output.OutputLine("  signin")
	h.output.OutputLine("  fetch primary --force")
	h.output.OutputLine("  save {\"theme\": \"dark\"}")
	h.output.OutputLine("  admin get site/config.json")
}

// showCommandHelp displays help for a specific command
func (h *HelpCommand) showCommandHelp(commandName string, cmd Command) {
	h.output.OutputLine("Command: %s", commandName)
	h.output.OutputLine("Description: %s", cmd.Description())
	h.output.OutputLine("Usage: %s", cmd.Usage())

	aliases := cmd.Aliases()
	if len(aliases) > 0 {
		h.output.OutputLine("Aliases: %s", strings.Join(aliases, ", "))
	}
}

// Usage returns the usage string
func (h *HelpCommand) Usage() string {
	return "help [command]"
}

// Description returns the command description
func (h *HelpCommand) Description() string {
	return "Show help information for commands"
}

// Completions returns possible completions
func (h *HelpCommand) Completions(input string) []string {
	return completeFrom(input, h.registry.AllCompletions())
}

// Aliases returns command aliases
func (h *HelpCommand) Aliases() []string {
	return []string{"?"}
}
