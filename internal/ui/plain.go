package ui

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
)

// plainSteps is how many lines a read stage prints at most, besides its start.
const plainSteps = 4

// PlainRenderer outputs plain text progress (for CI/pipes). Read stages
// print when they start and each time they cross a quarter of their input.
type PlainRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	reported map[Stage]int
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:      cfg.Output,
		reported: make(map[Stage]int),
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	step := 0
	if event.Total > 0 {
		step = int(min(event.Current*plainSteps/event.Total, plainSteps))
	}
	if last, seen := r.reported[event.Stage]; seen && step <= last {
		return
	}
	r.reported[event.Stage] = step

	name := filepath.Base(event.Source)
	switch {
	case event.Stage == StageLinking:
		_, _ = fmt.Fprintf(r.out, "[%s] linking close approaches to NEOs\n", event.Stage.Icon())
	case event.Total > 0:
		pct := min(event.Current*100/event.Total, 100)
		_, _ = fmt.Fprintf(r.out, "[%s] %3d%% %s (%s of %s)\n", event.Stage.Icon(), pct, name,
			humanize.Bytes(uint64(event.Current)), humanize.Bytes(uint64(event.Total)))
	default:
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), name)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats LoadStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintln(r.out, stats.String())
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)
