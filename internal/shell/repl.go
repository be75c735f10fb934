package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"deltactl/internal/app"
	"deltactl/internal/cli"
	"deltactl/internal/identity"
	"deltactl/internal/shell/commands"
	"deltactl/pkg/logging"
)

const (
	promptName           = "deltactl"
	promptChevronUnicode = "»"
	promptChevronASCII   = ">"
)

// Prompt markers for states that need the user's attention.
const (
	StatePendingMarker = "[SIGN-IN PENDING]"
	StateExpiredMarker = "[SESSION EXPIRED]"
	AdminMarker        = "[ADMIN]"
)

// commandExecutionTimeout bounds a single command. Interactive sign-in has
// its own, shorter, callback timeout.
const commandExecutionTimeout = 15 * time.Minute

// Options configures a REPL.
type Options struct {
	// HistoryFile stores command history. Defaults to $HOME/.deltactl_history.
	HistoryFile string
	// Quiet disables spinners.
	Quiet bool
	// Stdin and Stdout replace the terminal.
	Stdin  io.ReadCloser
	Stdout io.Writer
}

// REPL is the interactive deltactl shell.
type REPL struct {
	app      commands.Coordinator
	logger   *Logger
	printer  *cli.Printer
	registry *commands.Registry
	opts     Options
	rl       *readline.Instance

	useUnicode bool

	mu   sync.RWMutex
	view app.View
}

// NewREPL creates a shell over coord printing results with printer.
func NewREPL(coord commands.Coordinator, printer *cli.Printer, opts Options) *REPL {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	r := &REPL{
		app:        coord,
		logger:     NewLogger(opts.Stdout),
		printer:    printer,
		registry:   commands.NewRegistry(),
		opts:       opts,
		useUnicode: detectUnicodeSupport(),
	}
	r.registerCommands()
	return r
}

// registerCommands registers all available commands with the command registry.
func (r *REPL) registerCommands() {
	base := commands.NewBaseCommand(r.app, r.logger, r.printer)

	r.registry.Register("help", commands.NewHelpCommand(base, r.registry))
	r.registry.Register("signin", commands.NewSignInCommand(base, r.opts.Quiet))
	r.registry.Register("signout", commands.NewSignOutCommand(base))
	r.registry.Register("status", commands.NewStatusCommand(base))
	r.registry.Register("claims", commands.NewClaimsCommand(base))
	r.registry.Register("profile", commands.NewProfileCommand(base))
	r.registry.Register("fetch", commands.NewFetchCommand(base))
	r.registry.Register("save", commands.NewSaveCommand(base))
	r.registry.Register("admin", commands.NewAdminCommand(base))
	r.registry.Register("cache", commands.NewCacheCommand(base))
	r.registry.Register("output", commands.NewOutputCommand(base))
	r.registry.Register("exit", commands.NewExitCommand(base))
}

// OnView receives every view the coordinator publishes. It refreshes the
// prompt and announces sign-ins that completed in the background.
func (r *REPL) OnView(v app.View) {
	r.mu.Lock()
	prev := r.view
	r.view = v
	r.mu.Unlock()

	if prev.State == identity.StatePending && v.State == identity.StateAuthenticated && v.Account != nil {
		r.interrupt(func() {
			r.logger.Success("Signed in as %s", accountName(v.Account))
		})
	}
	r.updatePrompt()
}

// interrupt prints above the current input line.
func (r *REPL) interrupt(print func()) {
	if r.rl == nil {
		print()
		return
	}
	_, _ = r.rl.Stdout().Write([]byte("\r\033[K"))
	print()
	r.rl.Refresh()
}

// buildPrompt creates the prompt for the current view.
// Format examples:
//   - "deltactl » " - not signed in
//   - "deltactl ada [ADMIN] » " - signed in with an admin role
//   - "deltactl [SIGN-IN PENDING] » " - redirect sign-in in flight
func (r *REPL) buildPrompt() string {
	r.mu.RLock()
	v := r.view
	r.mu.RUnlock()

	chevron := promptChevronASCII
	if r.useUnicode {
		chevron = promptChevronUnicode
	}

	parts := []string{promptName}
	if v.Account != nil && v.State != identity.StateUnauthenticated {
		parts = append(parts, accountName(v.Account))
	}
	switch v.State {
	case identity.StatePending:
		parts = append(parts, StatePendingMarker)
	case identity.StateStaleCredential:
		parts = append(parts, StateExpiredMarker)
	case identity.StateAuthenticated:
		if v.CanViewAdmin {
			parts = append(parts, AdminMarker)
		}
	}
	parts = append(parts, chevron)

	return strings.Join(parts, " ") + " "
}

func (r *REPL) updatePrompt() {
	if r.rl != nil {
		r.rl.SetPrompt(r.buildPrompt())
	}
}

// executeCommand parses and executes a command using the registry.
// Empty input is ignored.
func (r *REPL) executeCommand(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	name, rest, _ := strings.Cut(input, " ")
	if name == "" {
		return nil
	}

	command, exists := r.registry.Get(strings.ToLower(name))
	if !exists {
		return fmt.Errorf("unknown command: %s. Type 'help' for available commands", name)
	}

	commandCtx, commandCancel := context.WithTimeout(ctx, commandExecutionTimeout)
	defer commandCancel()

	logging.Debug("Shell", "executing %s", name)
	if raw, ok := command.(commands.RawCommand); ok {
		return raw.ExecuteRaw(commandCtx, rest)
	}
	return command.Execute(commandCtx, strings.Fields(rest))
}

// RunScript executes lines in order without a prompt and stops at the first
// failing command. An exit command ends the script successfully.
func (r *REPL) RunScript(ctx context.Context, lines []string) error {
	r.mu.Lock()
	r.view = r.app.View()
	r.mu.Unlock()

	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := r.executeCommand(ctx, line)
		if errors.Is(err, commands.ErrExit) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", strings.TrimSpace(line), err)
		}
	}
	return nil
}

// Run starts the shell and processes commands until exit, Ctrl+D or ctx is
// done. Command errors are printed and the loop continues.
func (r *REPL) Run(ctx context.Context) error {
	r.mu.Lock()
	r.view = r.app.View()
	r.mu.Unlock()

	historyFile := r.opts.HistoryFile
	if historyFile == "" {
		historyFile = defaultHistoryFile()
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          r.buildPrompt(),
		HistoryFile:     historyFile,
		AutoComplete:    &completer{registry: r.registry},
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           r.opts.Stdin,
		Stdout:          r.opts.Stdout,

		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	r.logger.Info("deltactl shell. Type 'help' for available commands. Use TAB for completion.")
	if v := r.app.View(); v.InitError != "" {
		r.logger.Warning("Sign-in is unavailable: %s", v.InitError)
	}
	fmt.Fprintln(r.opts.Stdout)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Shutting down...")
			return nil
		default:
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		} else if errors.Is(err, io.EOF) {
			r.logger.Info("Goodbye!")
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		if err := r.executeCommand(ctx, line); err != nil {
			if errors.Is(err, commands.ErrExit) {
				r.logger.Info("Goodbye!")
				return nil
			}
			r.logger.Failure(err)
		}
		fmt.Fprintln(r.opts.Stdout)
	}
}

func defaultHistoryFile() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".deltactl_history")
	}
	return filepath.Join(os.TempDir(), ".deltactl_history")
}

// detectUnicodeSupport checks if the terminal likely supports unicode characters.
func detectUnicodeSupport() bool {
	term := strings.ToLower(os.Getenv("TERM"))
	if term == "" || term == "dumb" || term == "vt100" {
		return false
	}
	for _, v := range []string{os.Getenv("LC_ALL"), os.Getenv("LANG")} {
		lower := strings.ToLower(v)
		if strings.Contains(lower, "utf-8") || strings.Contains(lower, "utf8") {
			return true
		}
	}
	return true
}

func accountName(a *identity.Account) string {
	switch {
	case a.Username != "":
		return a.Username
	case a.Name != "":
		return a.Name
	default:
		return a.Subject
	}
}
