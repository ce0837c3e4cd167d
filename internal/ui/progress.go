package ui

import (
	"sync"
	"time"
)

// StageProgress is a snapshot of one stage.
type StageProgress struct {
	Started bool
	Current int64
	Total   int64
	Source  string
}

// Done reports whether a read stage has consumed its whole input.
func (p StageProgress) Done() bool {
	return p.Started && p.Total > 0 && p.Current >= p.Total
}

// Fraction returns progress in [0, 1], or 0 when the total is unknown.
func (p StageProgress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Current) / float64(p.Total)
	return min(max(f, 0), 1)
}

// ProgressTracker holds per-stage progress. The two read stages run
// concurrently, so each is tracked on its own. It is safe for concurrent use.
type ProgressTracker struct {
	mu     sync.RWMutex
	stages map[Stage]StageProgress
	latest Stage
	start  time.Time
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		stages: make(map[Stage]StageProgress),
		start:  time.Now(),
	}
}

// Update records an event for its stage.
func (p *ProgressTracker) Update(event ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stages[event.Stage] = StageProgress{
		Started: true,
		Current: event.Current,
		Total:   event.Total,
		Source:  event.Source,
	}
	if event.Stage > p.latest {
		p.latest = event.Stage
	}
}

// Stage returns the snapshot for stage s.
func (p *ProgressTracker) Stage(s Stage) StageProgress {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stages[s]
}

// Latest returns the furthest stage that has started.
func (p *ProgressTracker) Latest() Stage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// Elapsed returns time since the tracker was created.
func (p *ProgressTracker) Elapsed() time.Duration {
	return time.Since(p.start)
}
