package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"deltactl/internal/cli"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration",
		Long: `Prints the configuration after flags, environment variables and the config
file have been merged. YAML is printed unless --output json is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if cli.OutputFormat(opts.cfg.Output) == cli.OutputFormatJSON {
				// The yaml tags carry the key names; round-trip through a map so
				// JSON uses them too.
				raw, err := yaml.Marshal(opts.cfg)
				if err != nil {
					return err
				}
				var generic map[string]any
				if err := yaml.Unmarshal(raw, &generic); err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(generic)
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(opts.cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file in use",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if opts.cfgUsed == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No config file found")
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), opts.cfgUsed)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check that the configuration can start a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Configuration is valid"))
			return nil
		},
	})

	return cmd
}
