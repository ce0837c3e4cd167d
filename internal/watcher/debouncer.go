package watcher

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Debouncer merges bursts of events per path into one batch emitted after
// the window has been quiet.
//
// Merging keeps what a reader of the file would observe:
//   - CREATE then MODIFY stays CREATE
//   - CREATE then DELETE drops the path
//   - DELETE then CREATE becomes MODIFY
//   - anything else keeps the latest operation
type Debouncer struct {
	window time.Duration
	output chan []FileEvent

	mu      sync.Mutex
	pending map[string]pendingEvent
	timer   *time.Timer
	stopped bool
	dropped int
}

type pendingEvent struct {
	first  Operation
	latest FileEvent
}

// NewDebouncer creates a debouncer whose output channel holds up to buffer
// batches.
func NewDebouncer(window time.Duration, buffer int) *Debouncer {
	return &Debouncer{
		window:  window,
		output:  make(chan []FileEvent, max(buffer, 1)),
		pending: make(map[string]pendingEvent),
	}
}

// Add records an event and restarts the quiet window.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	prev, ok := d.pending[event.Path]
	switch {
	case !ok:
		d.pending[event.Path] = pendingEvent{first: event.Operation, latest: event}
	case prev.first == OpCreate && event.Operation == OpDelete:
		delete(d.pending, event.Path)
	case prev.first == OpCreate && event.Operation == OpModify:
		prev.latest.Timestamp = event.Timestamp
		d.pending[event.Path] = prev
	case prev.first == OpDelete && event.Operation == OpCreate:
		event.Operation = OpModify
		d.pending[event.Path] = pendingEvent{first: OpModify, latest: event}
	default:
		prev.latest = event
		d.pending[event.Path] = prev
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush emits pending events sorted by path. A full output drops the batch.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	events := make([]FileEvent, 0, len(d.pending))
	for _, path := range slices.Sorted(maps.Keys(d.pending)) {
		events = append(events, d.pending[path].latest)
	}
	clear(d.pending)

	select {
	case d.output <- events:
	default:
		d.dropped++
	}
}

// Output returns the channel of debounced batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Dropped returns the number of batches lost to a full output channel.
func (d *Debouncer) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Stop discards pending events and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
