// Package ui renders dataset load progress on a terminal.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is a step of loading the dataset.
type Stage int

const (
	// StageNEOs reads the NEO CSV.
	StageNEOs Stage = iota
	// StageApproaches reads the close approach JSON.
	StageApproaches
	// StageLinking connects approaches to their NEOs.
	StageLinking
	// StageComplete indicates the dataset is ready.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageNEOs:
		return "NEOs"
	case StageApproaches:
		return "Approaches"
	case StageLinking:
		return "Linking"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageNEOs:
		return "NEO"
	case StageApproaches:
		return "CAD"
	case StageLinking:
		return "LINK"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent represents a progress update. Current and Total are bytes
// for the read stages; Total is zero when unknown.
type ProgressEvent struct {
	Stage   Stage
	Current int64
	Total   int64
	Source  string
}

// LoadStats summarizes a finished load.
type LoadStats struct {
	NEOs       int
	Approaches int
	Orphaned   int
	Duration   time.Duration
}

// String renders the one-line summary shared by both renderers.
func (s LoadStats) String() string {
	msg := fmt.Sprintf("Loaded %d NEOs and %d close approaches in %s",
		s.NEOs, s.Approaches, s.Duration.Round(time.Millisecond))
	if s.Orphaned > 0 {
		msg += fmt.Sprintf(" (%d without a matching NEO)", s.Orphaned)
	}
	return msg
}

// Renderer defines the interface for progress display.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress records a progress update. It is safe to call from
	// several goroutines.
	UpdateProgress(event ProgressEvent)

	// Complete marks rendering as complete with summary.
	Complete(stats LoadStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns a TUI renderer for interactive terminals and a plain
// text renderer for CI, pipes, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
