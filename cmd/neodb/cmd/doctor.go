package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	neoerrors "github.com/Aman-CERP/neodb/internal/errors"
	"github.com/Aman-CERP/neodb/internal/preflight"
)

func newDoctorCmd(a *app) *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
		load       bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check data files and environment",
		Long: `Run diagnostics to ensure neodb can load its data and write results.

Checks:
  - NEO CSV exists and has pdes, name, pha and diameter columns
  - Close-approach JSON exists and lists des, cd, dist and v_rel
  - Combined data size (warning above 1 GiB)
  - Free disk space and write permission in the working directory

With --load the dataset is also fully loaded and linked, which validates
every record.`,
		Example: `  # Run diagnostics
  neodb doctor

  # Validate every record too
  neodb doctor --load

  # JSON output for scripting
  neodb doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, a, verbose, jsonOutput, load)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&load, "load", false, "Load and link the full dataset")

	return cmd
}

// doctorReport is the JSON form of a doctor run.
type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func runDoctor(cmd *cobra.Command, a *app, verbose, jsonOutput, load bool) error {
	ctx := cmd.Context()
	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)

	results := checker.RunAll(ctx, preflight.Target{
		NEOFile:   a.cfg.Data.NEOs,
		CADFile:   a.cfg.Data.Approaches,
		OutputDir: ".",
	})
	if load && !checker.HasCriticalFailures(results) {
		results = append(results, a.checkDataset(ctx))
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(doctorReport{
			Status: checker.SummaryStatus(results),
			Checks: results,
		}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return neoerrors.ValidationError("system check failed", nil).
			WithSuggestion("Fix the FAIL items and run neodb doctor again")
	}
	return nil
}

// checkDataset loads the dataset and reports its shape.
func (a *app) checkDataset(ctx context.Context) preflight.CheckResult {
	result := preflight.CheckResult{
		Name:     "dataset",
		Required: true,
	}

	db, err := a.database(ctx)
	if err != nil {
		result.Status = preflight.StatusFail
		result.Message = "dataset failed to load"
		if ne, ok := neoerrors.As(err); ok {
			result.Message = ne.Message
		}
		result.Details = err.Error()
		return result
	}

	stats := db.Stats()
	result.Status = preflight.StatusPass
	result.Message = fmt.Sprintf("%d NEOs, %d close approaches (%d linked, %d orphaned)",
		stats.NEOs, stats.Approaches, stats.LinkedApproaches, stats.OrphanedApproaches)
	if stats.DuplicateDesignations > 0 {
		result.Status = preflight.StatusWarn
		result.Details = fmt.Sprintf("%d duplicate designations; the last row of each wins", stats.DuplicateDesignations)
	}
	return result
}
