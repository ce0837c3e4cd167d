// Package preflight checks that neodb can load its data files and write
// results before any real work starts.
//
// The package validates:
//   - The NEO CSV exists and carries the required header columns
//   - The close-approach JSON exists and lists the required fields
//   - The dataset is small enough to hold in memory comfortably
//   - Free disk space and write permission where results are written
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, preflight.Target{NEOFile: "data/neos.csv", CADFile: "data/cad.json", OutputDir: "."})
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
