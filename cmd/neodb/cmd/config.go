package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/neodb/configs"
	"github.com/Aman-CERP/neodb/internal/config"
	neoerrors "github.com/Aman-CERP/neodb/internal/errors"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Show or create neodb configuration files.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/neodb/config.yaml)
  3. Project config (.neodb.yaml) or --config
  4. Environment variables (NEODB_*)
  5. --neofile and --cadfile`,
		Example: `  # Show effective configuration
  neodb config show

  # Create the user config
  neodb config init

  # Create .neodb.yaml in the current directory
  neodb config init --project`,
	}

	cmd.AddCommand(newConfigShowCmd(a))
	cmd.AddCommand(newConfigInitCmd(a))
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, a, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, defaults")

	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force, project, current bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file with defaults",
		Long: `Write the commented default configuration to the user config file,
or with --project to .neodb.yaml in the current directory. With --current
the effective configuration is written instead, without comments.

An existing file is left alone unless --force is given, in which case it is
backed up next to itself before being replaced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.GetUserConfigPath()
			if project {
				path = config.ProjectFileNames[0]
			}
			return runConfigInit(cmd, a, path, force, current)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing file (a backup is kept)")
	cmd.Flags().BoolVar(&project, "project", false, "Write .neodb.yaml in the current directory")
	cmd.Flags().BoolVar(&current, "current", false, "Write the effective configuration instead of the template")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func runConfigShow(cmd *cobra.Command, a *app, jsonOutput bool, source string) error {
	var cfg *config.Config
	switch source {
	case "merged":
		cfg = a.cfg
	case "defaults":
		cfg = config.NewConfig()
	default:
		return neoerrors.ValidationError(fmt.Sprintf("invalid source: %s", source), nil).
			WithSuggestion("Use --source merged or --source defaults")
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	data, err := cfg.YAML()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(cfg.Sources) > 0 {
		fmt.Fprintf(w, "# sources: %s\n", strings.Join(cfg.Sources, ", "))
	}
	_, err = w.Write(data)
	return err
}

func runConfigInit(cmd *cobra.Command, a *app, path string, force, current bool) error {
	out := a.output(cmd.OutOrStdout())

	if _, err := os.Stat(path); err == nil && !force {
		out.Warning("Configuration already exists")
		out.Statusf("📁", "Location: %s", path)
		out.Status("💡", "Use --force to replace it with defaults (a backup is kept)")
		return nil
	}

	backupPath, err := config.Backup(path)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return neoerrors.IOError(fmt.Sprintf("failed to create config directory %s", dir), err)
		}
	}
	if current {
		err = a.cfg.WriteYAML(path)
	} else if err = os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
		err = neoerrors.IOError(fmt.Sprintf("failed to write config file %s", path), err)
	}
	if err != nil {
		return err
	}

	out.Success("Created configuration")
	out.Statusf("📁", "Location: %s", path)
	if backupPath != "" {
		out.Statusf("💾", "Backup: %s", backupPath)
	}
	return nil
}
