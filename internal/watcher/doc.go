// Package watcher reports changes to a fixed set of data files.
//
// A FileWatcher watches the parent directory of every file with fsnotify and
// keeps only events for the files themselves, so editors that save by
// writing a temporary file and renaming it over the original are still
// seen. When fsnotify cannot be initialized the watcher polls the files'
// size and modification time instead.
//
// Events are debounced so a burst of writes yields one batch:
//
//	w, err := watcher.Watch(ctx, []string{"data/neos.csv", "data/cad.json"}, watcher.Options{
//	    OnChange: func(events []watcher.FileEvent) { ... },
//	})
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
//	if w.Changed() {
//	    // reload
//	}
package watcher
