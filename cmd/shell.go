package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"deltactl/internal/app"
	"deltactl/internal/cli"
	"deltactl/internal/metrics"
	"deltactl/internal/shell"
	"deltactl/pkg/logging"
)

const flagQuiet = "quiet"

func newShellCmd(opts *rootOptions) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive shell",
		Long: `Starts the interactive shell. This is also what deltactl does when run
without a subcommand. Type 'help' inside the shell for the command list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd, opts, quiet)
		},
	}
	cmd.Flags().BoolVarP(&quiet, flagQuiet, "q", false, "disable progress spinners")
	return cmd
}

func runShell(cmd *cobra.Command, opts *rootOptions, quiet bool) error {
	repl, cleanup, err := startSession(cmd, opts, quiet)
	if err != nil {
		return err
	}
	defer cleanup()
	return repl.Run(cmd.Context())
}

// startSession validates the configuration, builds the services and starts
// the coordinator. A provider that cannot be initialized is logged and the
// session continues in degraded mode.
func startSession(cmd *cobra.Command, opts *rootOptions, quiet bool) (*shell.REPL, func(), error) {
	cfg := opts.cfg
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	services := app.InitializeServices(cfg, app.ServiceOptions{Out: cmd.ErrOrStderr()})

	if cfg.MetricsListen != "" {
		if _, err := metrics.Serve(ctx, cfg.MetricsListen, services.Registry); err != nil {
			cancel()
			return nil, nil, err
		}
	}

	// The view handler is registered before the REPL exists; views published
	// before that are picked up by the REPL on start.
	var repl *shell.REPL
	coordinator := services.NewApp(cfg, app.WithViewHandler(func(v app.View) {
		if repl != nil {
			repl.OnView(v)
		}
	}))

	printer := cli.NewPrinter(cmd.OutOrStdout(), cli.OutputFormat(cfg.Output))
	repl = shell.NewREPL(coordinator, printer, shell.Options{
		Quiet:  quiet,
		Stdout: cmd.OutOrStdout(),
	})

	if err := coordinator.Start(ctx); err != nil {
		logging.Warn("CLI", "Starting without sign-in: %v", err)
	}

	cleanup := func() {
		coordinator.Close()
		cancel()
	}
	return repl, cleanup, nil
}
