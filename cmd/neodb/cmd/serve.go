package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/neodb/internal/api"
	neoerrors "github.com/Aman-CERP/neodb/internal/errors"
	"github.com/Aman-CERP/neodb/internal/mcp"
	"github.com/Aman-CERP/neodb/internal/watcher"
)

// serveOptions holds CLI flags for serve.
type serveOptions struct {
	transport string
	addr      string
}

func newServeCmd(a *app) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dataset over MCP or HTTP",
		Long: `Load the dataset once and serve it until interrupted.

Transports:
  stdio  MCP server on stdin/stdout (logs go to ~/.neodb/logs/neodb.log)
  http   read-only JSON API on --addr

The data files are watched; a change is logged as dataset_stale and the
server keeps serving the loaded data until restarted.`,
		Example: `  # MCP server for an AI client
  neodb serve

  # HTTP API
  neodb serve --transport http --addr 127.0.0.1:8765`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "", "Transport: stdio or http (default from config)")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address for the http transport (default from config)")

	return cmd
}

func runServe(ctx context.Context, a *app, opts serveOptions) error {
	transport := a.transport(opts.transport)
	addr := opts.addr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}
	if transport != "stdio" && transport != "http" {
		return neoerrors.ValidationError(fmt.Sprintf("unknown transport %q", transport), nil).
			WithSuggestion("Use --transport stdio or --transport http")
	}

	db, err := a.database(ctx)
	if err != nil {
		return err
	}

	w, err := watcher.Watch(ctx, []string{a.cfg.Data.NEOs, a.cfg.Data.Approaches}, watcher.Options{
		Logger: a.logger,
		OnChange: func(batch []watcher.FileEvent) {
			a.logger.Warn("dataset_stale",
				slog.Int("files", len(batch)),
				slog.String("action", "restart neodb serve to reload"))
		},
	})
	if err != nil {
		// Serving does not depend on the watcher.
		a.logger.Warn("watcher_unavailable", slog.String("error", err.Error()))
	} else {
		defer func() { _ = w.Close() }()
	}

	a.logger.Info("serve_started",
		slog.String("transport", transport),
		slog.String("addr", addr))

	if transport == "http" {
		return api.NewServer(db, a.cfg, a.logger).ListenAndServe(ctx, addr)
	}

	srv, err := mcp.NewServer(db, a.cfg)
	if err != nil {
		return err
	}
	srv.SetLogger(a.logger)
	return srv.Serve(ctx, transport)
}
