package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"deltactl/internal/apperr"
	"deltactl/internal/cli"
	"deltactl/internal/config"
	"deltactl/pkg/logging"
)

// Exit codes for CLI commands. Scripts driving `deltactl exec` rely on them.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates a command needed a signed-in account and
	// none was available, or the session could not be renewed silently.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the sign-in itself failed or could not start.
	ExitCodeAuthFailed = 3
	// ExitCodeForbidden indicates the account lacks the admin roles.
	ExitCodeForbidden = 4
)

const flagConfig = "config"

// rootOptions carries the configuration state shared by every subcommand.
type rootOptions struct {
	cfgFile string
	v       *viper.Viper

	cfg     config.Config
	cfgUsed string
}

// rootCmd represents the base command. Without a subcommand it starts the
// interactive shell.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: config.NewViper()}

	cmd := &cobra.Command{
		Use:   "deltactl",
		Short: "Sign in with OIDC and work with primary, delta and admin data",
		Long: `deltactl signs you in to an OpenID Connect provider and uses the ID token
to read the primary data set, read and save your own delta document and,
for accounts with an admin role, browse the admin file store.

Settings come from flags, DELTACTL_* environment variables and
$HOME/.deltactl.yaml, in that order of precedence.`,
		// SilenceUsage keeps usage text out of runtime failures.
		SilenceUsage: true,
		// Errors are printed by Execute together with a hint.
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.initConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd, opts, false)
		},
	}

	addConfigFlags(cmd.PersistentFlags(), &opts.cfgFile)

	cmd.AddCommand(newShellCmd(opts))
	cmd.AddCommand(newExecCmd(opts))
	cmd.AddCommand(newDecodeTokenCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// addConfigFlags declares one persistent flag per configuration key. Flag
// defaults mirror config.Default so --help shows the effective fallback.
func addConfigFlags(fs *pflag.FlagSet, cfgFile *string) {
	d := config.Default()

	fs.StringVar(cfgFile, flagConfig, "", "config file (default is $HOME/.deltactl.yaml)")

	fs.String(config.KeyClientID, "", "OIDC client ID")
	fs.String(config.KeyAuthority, "", "OIDC issuer URL")
	fs.String(config.KeyRedirectURI, d.RedirectURI, "redirect URI registered with the provider")
	fs.StringSlice(config.KeyScopes, d.Scopes, "scopes to request")
	fs.String(config.KeySignInStrategy, d.SignInStrategy, "sign-in strategy (popup or redirect)")
	fs.String(config.KeyProfileEndpoint, "", "user profile endpoint (default: the provider's userinfo endpoint)")
	fs.String(config.KeyPostLogoutRedirectURI, "", "where the provider returns after sign-out")
	fs.Duration(config.KeyCallbackTimeout, d.CallbackTimeout, "how long to wait for the sign-in callback")
	fs.Bool(config.KeySkipSignatureCheck, false, "accept ID tokens without verifying their signature")

	fs.String(config.KeyPrimaryEndpoint, "", "primary data endpoint")
	fs.String(config.KeyDeltaEndpoint, "", "user delta endpoint")
	fs.String(config.KeyAdminEndpoint, "", "admin file store endpoint")
	fs.StringSlice(config.KeyAdminRoles, d.AdminRoles, "role claims that unlock admin commands")
	fs.Duration(config.KeyHTTPTimeout, d.HTTPTimeout, "timeout for provider and data requests")

	fs.StringP(config.KeyOutput, "o", d.Output, "output format (table, json, yaml)")
	fs.String(config.KeyLogLevel, d.LogLevel, "log level (debug, info, warn, error)")
	fs.String(config.KeyLogFormat, d.LogFormat, "log format (text or json)")
	fs.String(config.KeyMetricsListen, "", "serve Prometheus metrics on this address, e.g. localhost:9464")
}

// initConfig reads the config file, binds the flags and sets up logging.
func (o *rootOptions) initConfig(cmd *cobra.Command) error {
	used, err := config.ReadFile(o.v, o.cfgFile)
	if err != nil {
		return apperr.Wrap(apperr.KindConfig, "read config", err)
	}
	if err := bindFlags(cmd, o.v); err != nil {
		return apperr.Wrap(apperr.KindConfig, "bind flags", err)
	}

	cfg, err := config.Load(o.v)
	if err != nil {
		return apperr.Wrap(apperr.KindConfig, "load config", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return apperr.Wrap(apperr.KindConfig, "load config", err)
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return apperr.Wrap(apperr.KindConfig, "load config", err)
	}
	logging.InitForCLI(level, format, cmd.ErrOrStderr())
	if used != "" {
		logging.Debug("CLI", "Using config file: %s", used)
	}

	o.cfg = cfg
	o.cfgUsed = used
	return nil
}

// bindFlags makes every flag of cmd a viper key, so an explicit flag beats
// the environment, which beats the config file.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var errs []error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		switch f.Name {
		case flagConfig, "help", "version":
			return
		}
		if err := v.BindPFlag(f.Name, f); err != nil {
			errs = append(errs, fmt.Errorf("flag --%s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application. It is called by
// main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "deltactl version %s\n" .Version}}`)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), cli.FormatError(err))
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps an error onto the documented exit codes.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	switch apperr.KindOf(err) {
	case apperr.KindUnauthenticated, apperr.KindSilentAcquisition:
		return ExitCodeAuthRequired
	case apperr.KindInteraction, apperr.KindUninitialized:
		return ExitCodeAuthFailed
	case apperr.KindForbidden:
		return ExitCodeForbidden
	default:
		return ExitCodeError
	}
}
