// Package cmd implements the neodb command tree.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/neodb/internal/config"
	"github.com/Aman-CERP/neodb/internal/database"
	neoerrors "github.com/Aman-CERP/neodb/internal/errors"
	"github.com/Aman-CERP/neodb/internal/extract"
	"github.com/Aman-CERP/neodb/internal/logging"
	"github.com/Aman-CERP/neodb/internal/output"
	"github.com/Aman-CERP/neodb/internal/profiling"
	"github.com/Aman-CERP/neodb/internal/ui"
	"github.com/Aman-CERP/neodb/pkg/version"
)

// NotFoundMessage is printed to stderr when a lookup has no match.
const NotFoundMessage = "No matching NEOs exist in the database."

// app holds the state shared by every subcommand of one invocation.
type app struct {
	neoFile    string
	cadFile    string
	configPath string
	debug      bool
	progress   string
	profile    profiling.Options

	profiler *profiling.Session
	cfg      *config.Config
	logger   *slog.Logger
	cleanup  func()
	renderer ui.Renderer
	db       *database.NEODatabase
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "neodb",
		Short: "Explore near-Earth objects and their close approaches",
		Long: `neodb loads a NEO catalogue (CSV) and a close-approach feed (JSON),
links them in memory and answers lookups and filtered queries.

Data files default to data/neos.csv and data/cad.json and can be set in
.neodb.yaml, ~/.config/neodb/config.yaml, NEODB_NEOS/NEODB_APPROACHES or
the --neofile/--cadfile flags.`,
		Example: `  # Look up an object by designation
  neodb inspect --pdes 433

  # Hazardous approaches in 2020, written to a file
  neodb query --start-date 2020-01-01 --end-date 2020-12-31 --hazardous --outfile out.csv

  # Serve the dataset to an MCP client
  neodb serve`,
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.SetVersionTemplate("neodb version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&a.neoFile, "neofile", "", "Path to the NEO CSV file (overrides config)")
	cmd.PersistentFlags().StringVar(&a.cadFile, "cadfile", "", "Path to the close-approach JSON file (overrides config)")
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file to use instead of .neodb.yaml")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging to ~/.neodb/logs/")
	cmd.PersistentFlags().StringVar(&a.progress, "progress", "", "Show load progress on stderr: auto, always or never (overrides config)")

	// Profiling flags (hidden, for development)
	cmd.PersistentFlags().StringVar(&a.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&a.profile.Heap, "profile-mem", "", "Write heap profile to file on exit")
	cmd.PersistentFlags().StringVar(&a.profile.Trace, "profile-trace", "", "Write execution trace to file")
	for _, name := range []string{"profile-cpu", "profile-mem", "profile-trace"} {
		_ = cmd.PersistentFlags().MarkHidden(name)
	}

	cmd.PersistentPreRunE = a.setup
	cmd.PersistentPostRunE = a.teardown

	cmd.AddCommand(newInspectCmd(a))
	cmd.AddCommand(newQueryCmd(a))
	cmd.AddCommand(newShellCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newDoctorCmd(a))
	cmd.AddCommand(newValidateCmd(a))
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newLogsCmd())

	return cmd
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprint(root.ErrOrStderr(), neoerrors.FormatForCLI(err))
	}
	return err
}

// setup loads configuration, installs the logger and starts profiling.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFrom(".", a.configPath)
	if err != nil {
		return err
	}
	if a.neoFile != "" {
		cfg.Data.NEOs = a.neoFile
	}
	if a.cadFile != "" {
		cfg.Data.Approaches = a.cadFile
	}
	if a.progress != "" {
		cfg.Output.Progress = a.progress
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg
	a.renderer = a.progressRenderer(cmd)

	logger, cleanup, err := logging.Setup(a.loggingConfig(cmd))
	if err != nil {
		// File logging is best effort; fall back to stderr.
		logger, cleanup, _ = logging.Setup(logging.StderrConfig("warn"))
	}
	a.logger = logger
	a.cleanup = cleanup
	slog.SetDefault(logger)

	a.logger.Debug("config_loaded",
		slog.String("command", cmd.CommandPath()),
		slog.Any("sources", cfg.Sources),
		slog.String("neos", cfg.Data.NEOs),
		slog.String("approaches", cfg.Data.Approaches))

	if a.profile.Enabled() {
		a.profiler, err = profiling.Start(a.profile)
		if err != nil {
			return err
		}
	}
	return nil
}

// teardown stops profiling, then flushes the log file.
func (a *app) teardown(_ *cobra.Command, _ []string) error {
	err := a.profiler.Stop()
	a.profiler = nil
	if a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
	return err
}

// loggingConfig picks the log sink for cmd. The stdio MCP server keeps
// stdout clean and logs to file only.
func (a *app) loggingConfig(cmd *cobra.Command) logging.Config {
	if a.debug {
		return logging.DebugConfig()
	}
	if cmd.Name() == "serve" {
		if transport, _ := cmd.Flags().GetString("transport"); a.transport(transport) == "stdio" {
			return logging.ServeConfig(a.cfg.Logging.Level)
		}
		cfg := logging.StderrConfig(a.cfg.Logging.Level)
		if a.cfg.Logging.File {
			cfg.FilePath = logging.DefaultLogPath()
			cfg.MaxSizeMB, cfg.MaxFiles = 10, 5
		}
		return cfg
	}
	if a.cfg.Logging.File {
		return logging.ServeConfig(a.cfg.Logging.Level)
	}
	return logging.StderrConfig("warn")
}

// progressRenderer returns the load progress display for cmd, or nil. In
// auto mode progress is drawn only on an interactive stderr, and never for
// serve.
func (a *app) progressRenderer(cmd *cobra.Command) ui.Renderer {
	out := cmd.ErrOrStderr()
	switch strings.ToLower(a.cfg.Output.Progress) {
	case "never":
		return nil
	case "auto":
		if cmd.Name() == "serve" || !ui.IsTTY(out) {
			return nil
		}
	}
	noColor := !output.ShouldColor(out, a.cfg.Output.Color)
	return ui.NewRenderer(ui.NewConfig(out, ui.WithNoColor(noColor)))
}

// transport returns flag, or the configured transport when flag is empty.
func (a *app) transport(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.Server.Transport
}

// database loads and links both data files on first use.
func (a *app) database(ctx context.Context) (*database.NEODatabase, error) {
	if a.db != nil {
		return a.db, nil
	}

	start := time.Now()
	r := a.renderer
	var loadOpts []extract.LoadOption
	if r != nil {
		_ = r.Start(ctx)
		defer func() { _ = r.Stop() }()
		loadOpts = append(loadOpts, extract.WithProgress(func(path string, read, size int64) {
			stage := ui.StageApproaches
			if path == a.cfg.Data.NEOs {
				stage = ui.StageNEOs
			}
			r.UpdateProgress(ui.ProgressEvent{Stage: stage, Current: read, Total: size, Source: path})
		}))
	}

	ds, err := extract.Load(ctx, a.cfg.Data.NEOs, a.cfg.Data.Approaches, loadOpts...)
	if err != nil {
		return nil, err
	}

	if r != nil {
		r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageLinking})
	}
	opts := []database.Option{database.WithLogger(a.logger)}
	if a.cfg.Database.StrictDesignations {
		opts = append(opts, database.WithStrictDesignations())
	}
	db, err := database.New(ds.NEOs, ds.Approaches, opts...)
	if err != nil {
		return nil, err
	}

	stats := db.Stats()
	duration := time.Since(start)
	if r != nil {
		r.Complete(ui.LoadStats{
			NEOs:       stats.NEOs,
			Approaches: stats.Approaches,
			Orphaned:   stats.OrphanedApproaches,
			Duration:   duration,
		})
	}
	a.logger.Info("dataset_loaded",
		slog.Int("neos", stats.NEOs),
		slog.Int("approaches", stats.Approaches),
		slog.Int("orphaned", stats.OrphanedApproaches),
		slog.Duration("duration", duration),
		slog.String("heap", profiling.FormatBytes(profiling.HeapInUse())))
	a.db = db
	return db, nil
}

// output returns a terminal writer honoring the configured color mode.
func (a *app) output(w io.Writer) *output.Writer {
	return output.NewWithColor(w, a.cfg.Output.Color)
}
