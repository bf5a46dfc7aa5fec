// Package watcher reports changes to the asset directory and the cache
// manifest so a running server can pick up a new cache version.
package watcher

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	// OpCreate indicates a new file was created.
	OpCreate EventOp = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file was deleted or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Kind says what changed.
type Kind int

const (
	// KindAsset is a file under the asset directory.
	KindAsset Kind = iota
	// KindManifest is the cache manifest file.
	KindManifest
)

func (k Kind) String() string {
	if k == KindManifest {
		return "manifest"
	}
	return "asset"
}

// Event is one relevant file change.
type Event struct {
	Path string
	Kind Kind
	Op   EventOp
}

// Watcher watches the asset directory, its images/ subdirectory and,
// optionally, the manifest file.
type Watcher struct {
	watcher  *fsnotify.Watcher
	events   chan Event
	errors   chan error
	done     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	assetDir string
	manifest string
}

// New creates a Watcher. It must be started with Start.
func New() (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		watcher: w,
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching. manifestFile may be empty when the built-in
// manifest is used. The manifest's directory is watched rather than the
// file so that editors replacing the file by rename are seen.
func (w *Watcher) Start(assetDir, manifestFile string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	absAssets, err := filepath.Abs(assetDir)
	if err != nil {
		return err
	}
	w.assetDir = absAssets

	dirs := []string{absAssets}
	if images := filepath.Join(absAssets, "images"); dirExists(images) {
		dirs = append(dirs, images)
	}
	if manifestFile != "" {
		abs, err := filepath.Abs(manifestFile)
		if err != nil {
			return err
		}
		w.manifest = abs
		if dir := filepath.Dir(abs); dir != absAssets {
			dirs = append(dirs, dir)
		}
	}

	for i, dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			for _, added := range dirs[:i] {
				_ = w.watcher.Remove(added)
			}
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop stops watching and closes the Events and Errors channels.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of relevant changes.
func (w *Watcher) Events() <-chan Event { return w.events }

// Errors returns the channel of watch errors.
func (w *Watcher) Errors() <-chan error { return w.errors }

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if e, ok := w.convert(ev); ok {
				select {
				case w.events <- e:
				case <-w.done:
					return
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

func (w *Watcher) convert(ev fsnotify.Event) (Event, bool) {
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return Event{}, false
	}

	var op EventOp
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return Event{}, false
	}

	if w.manifest != "" && abs == w.manifest {
		return Event{Path: abs, Kind: KindManifest, Op: op}, true
	}

	base := filepath.Base(abs)
	if base == "" || base[0] == '.' || filepath.Ext(base) == ".tmp" {
		return Event{}, false
	}
	dir := filepath.Dir(abs)
	if dir == w.assetDir || dir == filepath.Join(w.assetDir, "images") {
		return Event{Path: abs, Kind: KindAsset, Op: op}, true
	}
	return Event{}, false
}
