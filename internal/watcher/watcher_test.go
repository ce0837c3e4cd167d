package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpCreate, "CREATE"},
		{OpModify, "MODIFY"},
		{OpDelete, "DELETE"},
		{OpRename, "RENAME"},
		{Operation(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.String())
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{DebounceWindow: time.Second}.WithDefaults()

	assert.Equal(t, time.Second, opts.DebounceWindow)
	assert.Equal(t, 2*time.Second, opts.PollInterval)
	assert.Equal(t, 16, opts.EventBufferSize)
	assert.NotNil(t, opts.Logger)
}

// ============================================================================
// Debouncer
// ============================================================================

func TestDebouncer_Coalescing(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		want []Operation
	}{
		{"single modify", []Operation{OpModify}, []Operation{OpModify}},
		{"create then modify", []Operation{OpCreate, OpModify}, []Operation{OpCreate}},
		{"create then delete", []Operation{OpCreate, OpDelete}, nil},
		{"delete then create", []Operation{OpDelete, OpCreate}, []Operation{OpModify}},
		{"modify then delete", []Operation{OpModify, OpDelete}, []Operation{OpDelete}},
		{"rename then create", []Operation{OpRename, OpCreate}, []Operation{OpCreate}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a debouncer with a short window
			d := NewDebouncer(20*time.Millisecond, 4)
			defer d.Stop()

			// When: a burst of events arrives for one path, plus a marker path
			for _, op := range tt.ops {
				d.Add(FileEvent{Path: "/data/neos.csv", Operation: op})
			}
			d.Add(FileEvent{Path: "/data/zz.marker", Operation: OpModify})

			// Then: one batch holds the merged result
			select {
			case batch := <-d.Output():
				var got []Operation
				for _, e := range batch {
					if e.Path == "/data/neos.csv" {
						got = append(got, e.Operation)
					}
				}
				assert.Equal(t, tt.want, got)
				assert.Equal(t, "/data/zz.marker", batch[len(batch)-1].Path)
			case <-time.After(2 * time.Second):
				t.Fatal("no batch emitted")
			}
		})
	}
}

func TestDebouncer_SortsBatchByPath(t *testing.T) {
	d := NewDebouncer(10*time.Millisecond, 1)
	defer d.Stop()

	d.Add(FileEvent{Path: "/b", Operation: OpModify})
	d.Add(FileEvent{Path: "/a", Operation: OpModify})

	batch := <-d.Output()
	require.Len(t, batch, 2)
	assert.Equal(t, "/a", batch[0].Path)
	assert.Equal(t, "/b", batch[1].Path)
}

func TestDebouncer_StopIsIdempotent(t *testing.T) {
	d := NewDebouncer(time.Hour, 1)
	d.Add(FileEvent{Path: "/a", Operation: OpModify})

	d.Stop()
	d.Stop()
	d.Add(FileEvent{Path: "/b", Operation: OpModify})

	_, ok := <-d.Output()
	assert.False(t, ok)
	assert.Zero(t, d.Dropped())
}

// ============================================================================
// Poller
// ============================================================================

func TestPoller_DetectChanges(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "neos.csv")
	missing := filepath.Join(dir, "cad.json")
	require.NoError(t, os.WriteFile(existing, []byte("pdes\n"), 0o644))

	p := newPoller([]string{existing, missing})
	assert.Empty(t, p.detectChanges())

	// Given: one file grows and the other appears
	require.NoError(t, os.WriteFile(existing, []byte("pdes,name\n"), 0o644))
	require.NoError(t, os.WriteFile(missing, []byte("{}"), 0o644))

	// When: polling
	events := p.detectChanges()

	// Then: a modify and a create are reported once
	ops := map[string]Operation{}
	for _, e := range events {
		ops[e.Path] = e.Operation
	}
	assert.Equal(t, map[string]Operation{existing: OpModify, missing: OpCreate}, ops)
	assert.Empty(t, p.detectChanges())

	require.NoError(t, os.Remove(existing))
	events = p.detectChanges()
	require.Len(t, events, 1)
	assert.Equal(t, OpDelete, events[0].Operation)
}

// ============================================================================
// FileWatcher
// ============================================================================

func TestWatch_RequiresPaths(t *testing.T) {
	_, err := Watch(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func testWatcherDetectsChange(t *testing.T, opts Options) {
	t.Helper()

	// Given: two data files and an unrelated neighbour
	dir := t.TempDir()
	neos := filepath.Join(dir, "neos.csv")
	cad := filepath.Join(dir, "cad.json")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(neos, []byte("pdes,name,pha,diameter\n"), 0o644))
	require.NoError(t, os.WriteFile(cad, []byte(`{"fields":[],"data":[]}`), 0o644))

	var calls atomic.Int32
	opts.DebounceWindow = 20 * time.Millisecond
	opts.OnChange = func([]FileEvent) { calls.Add(1) }

	w, err := Watch(context.Background(), []string{neos, cad}, opts)
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, []string{cad, neos}, w.Files())

	// When: the unrelated file changes
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	time.Sleep(150 * time.Millisecond)

	// Then: nothing is reported
	assert.False(t, w.Changed())

	// When: a data file changes
	require.NoError(t, os.WriteFile(cad, []byte(`{"fields":["des"],"data":[]}`), 0o644))

	// Then: a batch naming it arrives and the watcher is stale
	select {
	case batch := <-w.Events():
		require.NotEmpty(t, batch)
		assert.Equal(t, cad, batch[0].Path)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	assert.True(t, w.Changed())
	assert.GreaterOrEqual(t, calls.Load(), int32(1))

	w.Reset()
	assert.False(t, w.Changed())
}

func TestFileWatcher_Fsnotify(t *testing.T) {
	testWatcherDetectsChange(t, Options{})
}

func TestFileWatcher_Polling(t *testing.T) {
	testWatcherDetectsChange(t, Options{ForcePolling: true, PollInterval: 20 * time.Millisecond})
}

func TestFileWatcher_ModeAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neos.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	w, err := Watch(context.Background(), []string{path}, Options{ForcePolling: true})
	require.NoError(t, err)

	assert.Equal(t, "polling", w.Mode())
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}

func TestFileWatcher_StopsWithContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neos.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	ctx, cancel := context.WithCancel(context.Background())

	w, err := Watch(ctx, []string{path}, Options{})
	require.NoError(t, err)
	cancel()

	assert.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.stopped
	}, 2*time.Second, 10*time.Millisecond)
}
