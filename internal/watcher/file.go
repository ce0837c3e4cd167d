package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches an explicit set of files.
type FileWatcher struct {
	targets   map[string]struct{}
	fsWatcher *fsnotify.Watcher
	poller    *poller
	debouncer *Debouncer
	opts      Options
	logger    *slog.Logger

	events  chan []FileEvent
	errors  chan error
	changed atomic.Bool

	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	stopped  bool
	watching string
}

// Watch starts watching paths until ctx is canceled or Close is called.
// Paths that do not exist yet are watched for creation.
func Watch(ctx context.Context, paths []string, opts Options) (*FileWatcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("no files to watch")
	}
	opts = opts.WithDefaults()

	w := &FileWatcher{
		targets:   make(map[string]struct{}, len(paths)),
		debouncer: NewDebouncer(opts.DebounceWindow, opts.EventBufferSize),
		opts:      opts,
		logger:    opts.Logger,
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve absolute path: %w", err)
		}
		w.targets[filepath.Clean(abs)] = struct{}{}
	}

	if err := w.start(); err != nil {
		return nil, err
	}

	w.wg.Add(1)
	go w.forward(ctx)

	w.logger.Debug("watcher_started",
		slog.String("mode", w.watching),
		slog.Any("files", w.Files()))
	return w, nil
}

// start prefers fsnotify and falls back to polling.
func (w *FileWatcher) start() error {
	if !w.opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			if err = w.addParents(fsw); err == nil {
				w.fsWatcher = fsw
				w.watching = "fsnotify"
				w.wg.Add(1)
				go w.runFsnotify()
				return nil
			}
			_ = fsw.Close()
		}
		w.logger.Warn("fsnotify unavailable, polling data files",
			slog.String("error", err.Error()))
	}

	w.poller = newPoller(w.Files())
	w.watching = "polling"
	w.wg.Add(1)
	go w.runPolling()
	return nil
}

func (w *FileWatcher) addParents(fsw *fsnotify.Watcher) error {
	seen := make(map[string]bool)
	for path := range w.targets {
		dir := filepath.Dir(path)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return nil
}

func (w *FileWatcher) runFsnotify() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleFsnotifyEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.emitError(err)
		}
	}
}

// handleFsnotifyEvent keeps events for watched files and drops chmod-only ones.
func (w *FileWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if _, ok := w.targets[path]; !ok {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	w.debouncer.Add(FileEvent{Path: path, Operation: op, Timestamp: time.Now()})
}

func (w *FileWatcher) runPolling() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			for _, event := range w.poller.detectChanges() {
				w.debouncer.Add(event)
			}
		}
	}
}

// forward marks the watcher stale and delivers debounced batches.
func (w *FileWatcher) forward(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			go func() { _ = w.Close() }()
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.changed.Store(true)
			for _, e := range batch {
				w.logger.Info("data_file_changed",
					slog.String("path", e.Path),
					slog.String("op", e.Operation.String()))
			}
			if w.opts.OnChange != nil {
				w.opts.OnChange(batch)
			}
			select {
			case w.events <- batch:
			default:
			}
		}
	}
}

func (w *FileWatcher) emitError(err error) {
	w.logger.Warn("watcher_error", slog.String("error", err.Error()))
	select {
	case w.errors <- err:
	default:
	}
}

// Changed reports whether any watched file changed since Watch or Reset.
func (w *FileWatcher) Changed() bool {
	return w.changed.Load()
}

// Reset clears the changed flag.
func (w *FileWatcher) Reset() {
	w.changed.Store(false)
}

// Events returns the channel of debounced batches. Batches are dropped when
// nobody reads it.
func (w *FileWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns the channel of non-fatal watcher errors.
func (w *FileWatcher) Errors() <-chan error {
	return w.errors
}

// Files returns the watched absolute paths, sorted.
func (w *FileWatcher) Files() []string {
	files := make([]string, 0, len(w.targets))
	for path := range w.targets {
		files = append(files, path)
	}
	slices.Sort(files)
	return files
}

// Mode returns "fsnotify" or "polling".
func (w *FileWatcher) Mode() string {
	return w.watching
}

// Close stops the watcher and releases resources. Safe to call multiple times.
func (w *FileWatcher) Close() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.mu.Unlock()

	var err error
	if w.fsWatcher != nil {
		err = w.fsWatcher.Close()
	}
	w.wg.Wait()
	w.debouncer.Stop()
	return err
}
