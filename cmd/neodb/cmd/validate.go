package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	neoerrors "github.com/Aman-CERP/neodb/internal/errors"
	"github.com/Aman-CERP/neodb/internal/mcp"
	"github.com/Aman-CERP/neodb/internal/validation"
)

func newValidateCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "validate SUITE",
		Short: "Check the dataset against a suite of expected answers",
		Long: `Run every case of a YAML suite through the MCP tools and report which
answers no longer match.

Each case names a tool (query_approaches by default), its arguments, and
any of expect_count, expect_min, expect (designations that must appear) or
expect_error. Cases under "negative" only need to answer without crashing.`,
		Example: `  neodb validate checks.yaml
  neodb validate checks.yaml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, a, args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")

	return cmd
}

func runValidate(cmd *cobra.Command, a *app, path string, jsonOutput bool) error {
	suite, err := validation.LoadSuite(path)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := a.database(ctx)
	if err != nil {
		return err
	}
	server, err := mcp.NewServer(db, a.cfg)
	if err != nil {
		return neoerrors.InternalError("cannot start tool server", err)
	}

	report := validation.New(server).RunAll(ctx, suite)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		out := a.output(cmd.OutOrStdout())
		out.Header("neodb Validation")
		for _, res := range report.Results {
			label := res.Case.ID
			if res.Case.Name != "" {
				label += " (" + res.Case.Name + ")"
			}
			if res.Passed {
				out.Successf("%s: %d results in %s", label, res.Count, res.Duration.Round(time.Microsecond))
				continue
			}
			out.Errorf("%s: %s", label, res.Failure)
		}
		out.Newline()
		out.Linef("%d/%d cases passed", report.Passed, report.Total)
	}

	if failed := len(report.Failed()); failed > 0 {
		return neoerrors.ValidationError(fmt.Sprintf("%d of %d cases failed", failed, report.Total), nil).
			WithSuggestion("Review the failed cases; the dataset or the suite may be out of date")
	}
	return nil
}
