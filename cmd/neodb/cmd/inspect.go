package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/neodb/internal/models"
)

// inspectOptions holds CLI flags for inspect.
type inspectOptions struct {
	designation string
	name        string
	verbose     bool
}

func newInspectCmd(a *app) *cobra.Command {
	var opts inspectOptions

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show one near-Earth object",
		Long: `Look up a single NEO by primary designation or by name.

With --verbose, every close approach of the object is listed as well.`,
		Example: `  neodb inspect --pdes 433
  neodb inspect --name Apophis --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd, a, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.designation, "pdes", "p", "", "Primary designation of the object")
	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "IAU name of the object")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Also list the object's close approaches")
	cmd.MarkFlagsMutuallyExclusive("pdes", "name")
	cmd.MarkFlagsOneRequired("pdes", "name")

	return cmd
}

func runInspect(cmd *cobra.Command, a *app, opts inspectOptions) error {
	db, err := a.database(cmd.Context())
	if err != nil {
		return err
	}

	var (
		neo   *models.NearEarthObject
		found bool
	)
	if opts.designation != "" {
		neo, found = db.GetByDesignation(opts.designation)
	} else {
		neo, found = db.GetByName(opts.name)
	}
	if !found {
		fmt.Fprintln(cmd.ErrOrStderr(), NotFoundMessage)
		return nil
	}

	out := a.output(cmd.OutOrStdout())
	out.Line(neo.String())
	if opts.verbose {
		for _, ca := range neo.Approaches {
			out.Linef("- %s", ca)
		}
	}
	return nil
}
