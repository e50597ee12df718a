// Package watch turns a non-recursive directory scan plus an fsnotify
// subscription into the three event kinds the supervisor reacts to:
// Create, Remove, Modify. Hidden paths (dotfiles, per I2) never reach the
// supervisor. See claude_jsonl_watcher.go in the examples pack for the
// fsnotify.Watcher-plus-retry-ticker shape this is grounded on.
package watch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/banksean/deskicond/internal/iconclass"
)

// EventKind classifies a reported directory change.
type EventKind string

const (
	Create EventKind = "Create"
	Remove EventKind = "Remove"
	Modify EventKind = "Modify"
)

// Event is one classified, non-hidden directory change.
type Event struct {
	Kind EventKind
	Path string
}

// retryInterval bounds how often Watcher retries adding its watch if the
// directory didn't exist (or vanished) at Start time.
const retryInterval = 5 * time.Second

// Watcher watches one directory non-recursively and emits classified,
// hidden-path-filtered Events.
type Watcher struct {
	dir     string
	fsw     *fsnotify.Watcher
	Events  chan Event
	Errors  chan error
	closeCh chan struct{}

	// Disconnected is closed exactly once, the moment the underlying
	// fsnotify source's Events or Errors channel closes out from under
	// the loop — i.e. the watch is gone and nothing will ever re-add
	// it. A normal Close() also closes it, so callers can always select
	// on it unconditionally without distinguishing shutdown from loss.
	Disconnected     chan struct{}
	disconnectedOnce sync.Once
	closeOnce        sync.Once
}

// New creates a Watcher for dir. Call Start to begin watching.
func New(dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	return &Watcher{
		dir:          dir,
		fsw:          fsw,
		Events:       make(chan Event, 64),
		Errors:       make(chan error, 8),
		closeCh:      make(chan struct{}),
		Disconnected: make(chan struct{}),
	}, nil
}

// Scan lists dir's immediate, non-hidden entries as a startup baseline,
// matching the supervisor's startup scan described in §4.E.
func (w *Watcher) Scan() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("watch: scan %s: %w", w.dir, err)
	}
	var paths []string
	for _, e := range entries {
		path := filepath.Join(w.dir, e.Name())
		if iconclass.Hidden(path) {
			continue
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Start begins watching. If the directory can't be watched yet (doesn't
// exist), Start still succeeds and a retry ticker attempts to re-add it.
func (w *Watcher) Start() error {
	if err := w.fsw.Add(w.dir); err != nil {
		slog.Warn("watch: initial Add failed, will retry", "dir", w.dir, "error", err)
	}
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	retry := time.NewTicker(retryInterval)
	defer retry.Stop()

	for {
		select {
		case <-w.closeCh:
			w.signalDisconnected()
			return
		case <-retry.C:
			_ = w.fsw.Add(w.dir)
		case ev, ok := <-w.fsw.Events:
			if !ok {
				slog.Error("watch: fsnotify events channel closed, watcher disconnected", "dir", w.dir)
				w.signalDisconnected()
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				slog.Error("watch: fsnotify errors channel closed, watcher disconnected", "dir", w.dir)
				w.signalDisconnected()
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		}
	}
}

// signalDisconnected closes Disconnected exactly once, whether the loop
// exited via a clean Close() or because the fsnotify source died.
func (w *Watcher) signalDisconnected() {
	w.disconnectedOnce.Do(func() { close(w.Disconnected) })
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if iconclass.Hidden(ev.Name) {
		return
	}

	var kind EventKind
	switch {
	case ev.Op&fsnotify.Create != 0:
		kind = Create
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		kind = Remove
	case ev.Op&(fsnotify.Write|fsnotify.Chmod) != 0:
		kind = Modify
	default:
		return
	}

	select {
	case w.Events <- Event{Kind: kind, Path: ev.Name}:
	default:
		slog.Warn("watch: events channel full, dropping event", "path", ev.Name, "kind", kind)
	}
}

// Close stops watching and releases the underlying fsnotify handle.
// Idempotent: safe to call after the loop has already signaled
// Disconnected on its own (e.g. the supervisor's killAll runs after a
// disconnect it detected itself).
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeCh)
		err = w.fsw.Close()
	})
	return err
}
