package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	neoerrors "github.com/Aman-CERP/neodb/internal/errors"
	"github.com/Aman-CERP/neodb/internal/watcher"
)

const shellPrompt = "(neo) "

const shellHelp = `Commands:
  inspect (--pdes D | --name N) [--verbose]   Show one NEO
  query [filters] [--limit N] [--outfile P]   Query close approaches
  help                                        Show this help
  quit, exit                                  Leave the shell

Run 'inspect --help' or 'query --help' for the full flag list.
`

func newShellCmd(a *app) *cobra.Command {
	var aggressive bool

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive session",
		Long: `Start an interactive session that loads the dataset once and accepts
inspect and query commands until quit, exit or end of input.

The data files are watched while the session runs. When one changes on disk
the loaded dataset is stale: a warning is printed before each command, and
with --aggressive the session ends instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd, a, aggressive)
		},
	}

	cmd.Flags().BoolVar(&aggressive, "aggressive", false, "Exit as soon as a data file changes")

	return cmd
}

func runShell(cmd *cobra.Command, a *app, aggressive bool) error {
	ctx := cmd.Context()
	if _, err := a.database(ctx); err != nil {
		return err
	}

	w, err := watcher.Watch(ctx, []string{a.cfg.Data.NEOs, a.cfg.Data.Approaches}, watcher.Options{
		Logger: a.logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	warn := a.output(stderr)
	fmt.Fprintln(stdout, "Explore close approaches of near-Earth objects. Type 'help' for a list of commands.")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(stdout, shellPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(stdout)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		args, err := splitArgs(scanner.Text())
		if err != nil {
			warn.Error(err.Error())
			continue
		}
		if len(args) == 0 {
			continue
		}

		if w.Changed() {
			if aggressive {
				warn.Warning("The data files were modified. Exiting the session.")
				return nil
			}
			warn.Warning("The data files were modified. Restart the session to see the changes.")
		}

		switch args[0] {
		case "quit", "exit":
			return nil
		case "help", "?":
			fmt.Fprint(stdout, shellHelp)
		case "inspect":
			runShellCommand(ctx, newInspectCmd(a), args[1:], stdout, stderr, a.logger)
		case "query":
			runShellCommand(ctx, newQueryCmd(a), args[1:], stdout, stderr, a.logger)
		default:
			warn.Errorf("Unrecognized command: %s. Type 'help' for a list of commands.", args[0])
		}
	}
}

// runShellCommand executes one subcommand line, reporting errors without
// ending the session.
func runShellCommand(ctx context.Context, sub *cobra.Command, args []string, stdout, stderr io.Writer, logger *slog.Logger) {
	sub.SetArgs(args)
	sub.SetOut(stdout)
	sub.SetErr(stderr)
	sub.SilenceErrors = true
	sub.SilenceUsage = true

	if err := sub.ExecuteContext(ctx); err != nil {
		logger.Debug("shell_command_failed",
			slog.String("command", sub.Name()),
			slog.String("error", err.Error()))
		fmt.Fprint(stderr, neoerrors.FormatForCLI(err))
	}
}

// splitArgs splits a line into words with POSIX shell quoting: single and
// double quotes group text and a backslash escapes the next character.
func splitArgs(line string) ([]string, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return nil, neoerrors.ValidationError("unterminated quote or escape", err).
			WithSuggestion("Close the quote or remove the trailing backslash")
	}
	if len(args) == 0 {
		return nil, nil
	}
	return args, nil
}
