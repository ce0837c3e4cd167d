package watcher

import (
	"os"
	"time"
)

// poller detects changes by comparing size and modification time.
// Used as a fallback when fsnotify is not available.
type poller struct {
	state map[string]fileSnapshot
}

type fileSnapshot struct {
	exists  bool
	modTime time.Time
	size    int64
}

func newPoller(paths []string) *poller {
	p := &poller{state: make(map[string]fileSnapshot, len(paths))}
	for _, path := range paths {
		p.state[path] = snapshot(path)
	}
	return p
}

func snapshot(path string) fileSnapshot {
	info, err := os.Stat(path)
	if err != nil {
		return fileSnapshot{}
	}
	return fileSnapshot{exists: true, modTime: info.ModTime(), size: info.Size()}
}

func (s fileSnapshot) equal(o fileSnapshot) bool {
	return s.exists == o.exists && s.size == o.size && s.modTime.Equal(o.modTime)
}

// detectChanges compares every file with its previous snapshot.
func (p *poller) detectChanges() []FileEvent {
	var events []FileEvent
	now := time.Now()
	for path, prev := range p.state {
		cur := snapshot(path)
		if cur.equal(prev) {
			continue
		}
		p.state[path] = cur

		op := OpModify
		switch {
		case !prev.exists:
			op = OpCreate
		case !cur.exists:
			op = OpDelete
		}
		events = append(events, FileEvent{Path: path, Operation: op, Timestamp: now})
	}
	return events
}
