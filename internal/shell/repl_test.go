package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deltactl/internal/app"
	"deltactl/internal/cli"
	"deltactl/internal/dataclient"
	"deltactl/internal/identity"
	"deltactl/internal/shell/commands"
)

func TestMain(m *testing.M) {
	text.DisableColors()
	os.Exit(m.Run())
}

// stubCoordinator serves a fixed view and records saves.
type stubCoordinator struct {
	commands.Coordinator
	view  app.View
	saved string
}

func (s *stubCoordinator) View() app.View { return s.view }

func (s *stubCoordinator) SaveJSON(_ context.Context, raw []byte) (*dataclient.Payload, error) {
	s.saved = string(raw)
	return dataclient.NewPayload(raw), nil
}

func newTestREPL(t *testing.T) (*REPL, *stubCoordinator, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	coord := &stubCoordinator{}
	r := NewREPL(coord, cli.NewPrinter(out, cli.OutputFormatTable), Options{Quiet: true, Stdout: out})
	r.useUnicode = false
	return r, coord, out
}

func TestBuildPrompt(t *testing.T) {
	ada := &identity.Account{Username: "ada", Subject: "u-1"}
	tests := []struct {
		name string
		view app.View
		want string
	}{
		{"signed out", app.View{State: identity.StateUnauthenticated}, "deltactl > "},
		{"signed in", app.View{State: identity.StateAuthenticated, Account: ada}, "deltactl ada > "},
		{"admin", app.View{State: identity.StateAuthenticated, Account: ada, CanViewAdmin: true}, "deltactl ada [ADMIN] > "},
		{"pending", app.View{State: identity.StatePending}, "deltactl [SIGN-IN PENDING] > "},
		{"stale", app.View{State: identity.StateStaleCredential, Account: ada}, "deltactl ada [SESSION EXPIRED] > "},
		{"known account, signed out", app.View{State: identity.StateUnauthenticated, Account: ada}, "deltactl > "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTestREPL(t)
			r.OnView(tt.view)
			assert.Equal(t, tt.want, r.buildPrompt())
		})
	}
}

func TestOnView_AnnouncesBackgroundSignIn(t *testing.T) {
	r, _, out := newTestREPL(t)

	r.OnView(app.View{State: identity.StatePending})
	assert.Empty(t, out.String())

	r.OnView(app.View{State: identity.StateAuthenticated, Account: &identity.Account{Username: "ada"}})
	assert.Equal(t, "✓ Signed in as ada\n", out.String())

	out.Reset()
	r.OnView(app.View{State: identity.StateAuthenticated, Account: &identity.Account{Username: "ada"}})
	assert.Empty(t, out.String())
}

func TestExecuteCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("empty input", func(t *testing.T) {
		r, _, _ := newTestREPL(t)
		assert.NoError(t, r.executeCommand(ctx, "   "))
	})

	t.Run("unknown command", func(t *testing.T) {
		r, _, _ := newTestREPL(t)
		err := r.executeCommand(ctx, "launch rockets")
		assert.EqualError(t, err, "unknown command: launch. Type 'help' for available commands")
	})

	t.Run("aliases and case", func(t *testing.T) {
		r, _, _ := newTestREPL(t)
		assert.True(t, errors.Is(r.executeCommand(ctx, "QUIT"), commands.ErrExit))
	})

	t.Run("help", func(t *testing.T) {
		r, _, out := newTestREPL(t)
		require.NoError(t, r.executeCommand(ctx, "?"))
		assert.Contains(t, out.String(), "signin")
		assert.Contains(t, out.String(), "admin <ls|get <path>>")
	})

	t.Run("raw arguments", func(t *testing.T) {
		r, coord, _ := newTestREPL(t)
		require.NoError(t, r.executeCommand(ctx, `save {"note": "a  b"}`))
		assert.Equal(t, `{"note": "a  b"}`, coord.saved)
	})
}

func TestRunScript(t *testing.T) {
	ctx := context.Background()

	t.Run("runs every line", func(t *testing.T) {
		r, coord, out := newTestREPL(t)
		require.NoError(t, r.RunScript(ctx, []string{"status", `save {"a":1}`}))
		assert.Equal(t, `{"a":1}`, coord.saved)
		assert.Contains(t, out.String(), "User data saved")
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		r, coord, _ := newTestREPL(t)
		err := r.RunScript(ctx, []string{"launch", `save {"a":1}`})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "launch: unknown command")
		assert.Empty(t, coord.saved)
	})

	t.Run("exit ends the script", func(t *testing.T) {
		r, coord, _ := newTestREPL(t)
		require.NoError(t, r.RunScript(ctx, []string{"exit", `save {"a":1}`}))
		assert.Empty(t, coord.saved)
	})
}

func TestCompleter(t *testing.T) {
	r, _, _ := newTestREPL(t)
	c := &completer{registry: r.registry}

	complete := func(line string) ([]string, int) {
		got, n := c.Do([]rune(line), len([]rune(line)))
		out := make([]string, len(got))
		for i, g := range got {
			out[i] = string(g)
		}
		return out, n
	}

	got, n := complete("sig")
	assert.Equal(t, []string{"nin ", "nout "}, got)
	assert.Equal(t, 3, n)

	got, n = complete("fetch p")
	assert.Equal(t, []string{"rimary "}, got)
	assert.Equal(t, 1, n)

	got, _ = complete("output ")
	assert.Equal(t, []string{"table ", "json ", "yaml "}, got)

	got, _ = complete("nosuch ")
	assert.Empty(t, got)
}
