package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newExecCmd(opts *rootOptions) *cobra.Command {
	var (
		quiet bool
		file  string
	)
	cmd := &cobra.Command{
		Use:   "exec [command]...",
		Short: "Run shell commands without a prompt",
		Long: `Runs each argument as one shell command, in order, and stops at the first
failure. With --file the commands are read one per line from a file, or from
stdin when the file is "-". Blank lines and lines starting with # are skipped.

The exit code tells scripts why a command failed: 2 when sign-in is
required, 3 when sign-in failed, 4 when the account lacks the admin roles.`,
		Example: `  deltactl exec signin "fetch user" 'save {"theme":"dark"}'
  deltactl exec --file nightly.txt -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lines := args
			if file != "" {
				fromFile, err := readScript(cmd, file)
				if err != nil {
					return err
				}
				lines = append(lines, fromFile...)
			}
			if len(lines) == 0 {
				return fmt.Errorf("nothing to run: pass commands as arguments or use --file")
			}

			repl, cleanup, err := startSession(cmd, opts, quiet)
			if err != nil {
				return err
			}
			defer cleanup()
			return repl.RunScript(cmd.Context(), lines)
		},
	}
	cmd.Flags().BoolVarP(&quiet, flagQuiet, "q", false, "disable progress spinners")
	cmd.Flags().StringVarP(&file, "file", "f", "", `read commands from a file ("-" for stdin)`)
	return cmd
}

func readScript(cmd *cobra.Command, path string) ([]string, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open script: %w", err)
		}
		defer f.Close()
		r = f
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return lines, nil
}
