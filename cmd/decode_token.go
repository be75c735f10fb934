package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"deltactl/internal/cli"
	"deltactl/internal/identity"
)

func newDecodeTokenCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decode-token [token|-]",
		Short: "Print the claims of an ID token",
		Long: `Decodes the claims of a JWT without verifying its signature. The token is
read from stdin when it is "-" or omitted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.ValidateOutputFormat(opts.cfg.Output); err != nil {
				return err
			}

			token := ""
			if len(args) == 1 {
				token = args[0]
			}
			if token == "" || token == "-" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read token: %w", err)
				}
				token = string(raw)
			}

			claims, err := identity.DecodeClaims(strings.TrimSpace(token))
			if err != nil {
				return err
			}
			printer := cli.NewPrinter(cmd.OutOrStdout(), cli.OutputFormat(opts.cfg.Output))
			return cli.RenderClaims(printer, claims)
		},
	}
}
