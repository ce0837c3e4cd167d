package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	neoerrors "github.com/Aman-CERP/neodb/internal/errors"
	"github.com/Aman-CERP/neodb/internal/filter"
	"github.com/Aman-CERP/neodb/internal/write"
)

// queryOptions holds CLI flags for query. Numeric bounds are read through
// Flags().Changed so that zero is a valid bound.
type queryOptions struct {
	date         string
	startDate    string
	endDate      string
	hazardous    bool
	notHazardous bool
	designation  string
	limit        int
	outfile      string
}

// boundFlags maps each numeric flag to its filter.Options field.
var boundFlags = []struct {
	name  string
	usage string
	field func(*filter.Options) **float64
}{
	{"min-distance", "Minimum approach distance (au)", func(o *filter.Options) **float64 { return &o.DistanceMin }},
	{"max-distance", "Maximum approach distance (au)", func(o *filter.Options) **float64 { return &o.DistanceMax }},
	{"min-velocity", "Minimum relative velocity (km/s)", func(o *filter.Options) **float64 { return &o.VelocityMin }},
	{"max-velocity", "Maximum relative velocity (km/s)", func(o *filter.Options) **float64 { return &o.VelocityMax }},
	{"min-diameter", "Minimum NEO diameter (km)", func(o *filter.Options) **float64 { return &o.DiameterMin }},
	{"max-diameter", "Maximum NEO diameter (km)", func(o *filter.Options) **float64 { return &o.DiameterMax }},
}

func newQueryCmd(a *app) *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query close approaches",
		Long: `Find close approaches matching every given criterion, in input order.

Without --outfile, at most query.default_limit results are printed unless
--limit is given. With --outfile, all matches (or --limit of them) are
written as CSV, JSON or SQLite depending on the file extension.`,
		Example: `  neodb query --date 2020-01-01
  neodb query --start-date 2020-01-01 --max-distance 0.05 --limit 20
  neodb query --hazardous --min-diameter 1 --outfile big.json
  neodb query --designation 433 --outfile eros.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(cmd, a, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.date, "date", "d", "", "Only approaches on this date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&opts.startDate, "start-date", "s", "", "Only approaches on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&opts.endDate, "end-date", "e", "", "Only approaches on or before this date (YYYY-MM-DD)")
	for _, f := range boundFlags {
		cmd.Flags().Float64(f.name, 0, f.usage)
	}
	cmd.Flags().BoolVar(&opts.hazardous, "hazardous", false, "Only approaches of potentially hazardous NEOs")
	cmd.Flags().BoolVar(&opts.notHazardous, "not-hazardous", false, "Only approaches of NEOs that are not potentially hazardous")
	cmd.Flags().StringVar(&opts.designation, "designation", "", "Only approaches of this designation")
	cmd.Flags().IntVarP(&opts.limit, "limit", "l", 0, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.outfile, "outfile", "o", "", "Write results to a .csv, .json, .db, .sqlite or .sqlite3 file")
	cmd.MarkFlagsMutuallyExclusive("hazardous", "not-hazardous")
	cmd.MarkFlagsMutuallyExclusive("date", "start-date")
	cmd.MarkFlagsMutuallyExclusive("date", "end-date")

	return cmd
}

func runQuery(cmd *cobra.Command, a *app, opts queryOptions) error {
	criteria, err := buildCriteria(cmd, opts)
	if err != nil {
		return err
	}

	limit := opts.limit
	if cmd.Flags().Changed("limit") {
		if limit <= 0 {
			return neoerrors.New(neoerrors.ErrCodeInvalidFilter,
				fmt.Sprintf("limit must be positive, got %d", limit), nil).
				WithDetail("filter", "limit")
		}
	} else if opts.outfile == "" {
		limit = a.cfg.Query.DefaultLimit
	}

	db, err := a.database(cmd.Context())
	if err != nil {
		return err
	}
	results := filter.Limit(db.Query(filter.Create(criteria)...), limit)

	out := a.output(cmd.OutOrStdout())
	if opts.outfile != "" {
		n, err := write.WriteFile(cmd.Context(), opts.outfile, results)
		if err != nil {
			return err
		}
		out.Successf("Wrote %d results to %s", n, opts.outfile)
		return nil
	}

	count := 0
	for ca := range results {
		out.Line(ca.String())
		count++
	}
	if count == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No matching close approaches exist in the database.")
	}
	return nil
}

// buildCriteria converts flags into validated filter options.
func buildCriteria(cmd *cobra.Command, opts queryOptions) (filter.Options, error) {
	var criteria filter.Options

	dates := []struct {
		value string
		into  **time.Time
	}{
		{opts.date, &criteria.Date},
		{opts.startDate, &criteria.StartDate},
		{opts.endDate, &criteria.EndDate},
	}
	for _, d := range dates {
		if d.value == "" {
			continue
		}
		t, err := filter.ParseDate(d.value)
		if err != nil {
			return filter.Options{}, err
		}
		*d.into = &t
	}

	for _, f := range boundFlags {
		if !cmd.Flags().Changed(f.name) {
			continue
		}
		v, err := cmd.Flags().GetFloat64(f.name)
		if err != nil {
			return filter.Options{}, err
		}
		*f.field(&criteria) = &v
	}

	if opts.hazardous || opts.notHazardous {
		hazardous := opts.hazardous
		criteria.Hazardous = &hazardous
	}
	criteria.Designation = opts.designation

	if err := criteria.Validate(); err != nil {
		return filter.Options{}, err
	}
	return criteria, nil
}
