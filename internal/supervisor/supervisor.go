// Package supervisor owns the session table and runs the single-threaded
// reactor that reacts to filesystem events, drives the render tick, and
// serves admin/adapter requests — all serialized onto one goroutine so
// the session table is never touched concurrently (§5's "session table
// mutated only from the reactor thread" rule). Grounded on sand/mux.go's
// Mux, whose HTTP handlers become thin request producers here instead of
// touching sandbox state directly.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/banksean/deskicond/internal/iconclass"
	"github.com/banksean/deskicond/internal/sandbox"
	"github.com/banksean/deskicond/internal/session"
	"github.com/banksean/deskicond/internal/wire"
	"github.com/banksean/deskicond/internal/watch"
)

// tickInterval is the render-tick / liveness-sweep cadence.
const tickInterval = 16 * time.Millisecond

// ErrWatcherDisconnected is returned by Run when the underlying fsnotify
// source is lost (its Events or Errors channel closed out from under the
// watcher). Per the error taxonomy this is fatal to the Supervisor: Run
// tears down every session cleanly and returns, and the daemon exits.
var ErrWatcherDisconnected = errors.New("supervisor: watcher disconnected")

// SessionInfo is the admin-surface projection of one session, per
// SPEC_FULL.md §6.2's GET /list.
type SessionInfo struct {
	Key        string
	Kind       wire.IconKind
	State      session.State
	Generation int
}

// request is a serialized operation handed to the reactor goroutine from
// an external caller (admin socket, window adapter).
type request struct {
	run  func(s *Supervisor)
	done chan struct{}
}

// Supervisor owns path -> *session.Session and runs the reactor loop.
type Supervisor struct {
	watchDir      string
	handler       string
	widgetForKind func(kind wire.IconKind) string
	sandboxOpt    sandbox.Options
	spawn         session.Spawner

	watcher  *watch.Watcher
	sessions map[string]*session.Session

	requests chan request
	stop     chan struct{}
	stopped  chan struct{}
}

// Config bundles the inputs a Supervisor needs to build sessions.
type Config struct {
	WatchDir      string
	HandlerPath   string
	WidgetForKind func(kind wire.IconKind) string
	SandboxOpts   sandbox.Options
	Spawn         session.Spawner
}

// New constructs a Supervisor. Call Run to start its reactor loop.
func New(cfg Config) (*Supervisor, error) {
	w, err := watch.New(cfg.WatchDir)
	if err != nil {
		return nil, err
	}
	widgetForKind := cfg.WidgetForKind
	if widgetForKind == nil {
		widgetForKind = func(kind wire.IconKind) string { return string(kind) }
	}
	return &Supervisor{
		watchDir:      cfg.WatchDir,
		handler:       cfg.HandlerPath,
		widgetForKind: widgetForKind,
		sandboxOpt:    cfg.SandboxOpts,
		spawn:         cfg.Spawn,
		watcher:       w,
		sessions:      make(map[string]*session.Session),
		requests:      make(chan request, 64),
		stop:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}, nil
}

// Run performs the startup scan (creating one session per non-hidden
// top-level entry, per I2), begins watching, and blocks running the
// reactor loop until Stop is called or ctx is cancelled.
func (sv *Supervisor) Run(ctx context.Context) error {
	paths, err := sv.watcher.Scan()
	if err != nil {
		return err
	}
	for _, p := range paths {
		sv.createSession(ctx, p)
	}
	if err := sv.watcher.Start(); err != nil {
		return err
	}

	defer close(sv.stopped)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sv.killAll(ctx)
			return ctx.Err()
		case <-sv.stop:
			sv.killAll(ctx)
			return nil
		case <-sv.watcher.Disconnected:
			slog.ErrorContext(ctx, "supervisor: watcher disconnected, terminating")
			sv.killAll(ctx)
			return ErrWatcherDisconnected
		case werr := <-sv.watcher.Errors:
			slog.WarnContext(ctx, "supervisor: watcher reported an error", "error", werr)
		case ev := <-sv.watcher.Events:
			sv.handleWatchEvent(ctx, ev)
		case <-ticker.C:
			sv.livenessSweep(ctx)
		case req := <-sv.requests:
			req.run(sv)
			close(req.done)
		}
	}
}

// Stop asks the reactor loop to terminate and kill every session.
func (sv *Supervisor) Stop() {
	close(sv.stop)
	<-sv.stopped
}

func (sv *Supervisor) handleWatchEvent(ctx context.Context, ev watch.Event) {
	switch ev.Kind {
	case watch.Create:
		if _, exists := sv.sessions[ev.Path]; !exists {
			sv.createSession(ctx, ev.Path)
		}
	case watch.Remove:
		sv.destroySession(ctx, ev.Path)
	case watch.Modify:
		if _, exists := sv.sessions[ev.Path]; exists {
			sv.destroySession(ctx, ev.Path)
			sv.createSession(ctx, ev.Path)
		}
	}
}

func (sv *Supervisor) createSession(ctx context.Context, path string) {
	kind := iconclass.ClassifyPath(path)
	widget := sv.widgetForKind(kind)
	s := session.New(path, sv.handler, widget, kind, sv.sandboxOpt, sv.spawn)
	if err := s.Start(ctx); err != nil {
		slog.WarnContext(ctx, "supervisor: session start failed", "path", path, "error", err)
	}
	sv.sessions[path] = s
}

func (sv *Supervisor) destroySession(ctx context.Context, path string) {
	if s, ok := sv.sessions[path]; ok {
		s.Kill(ctx)
		delete(sv.sessions, path)
	}
}

func (sv *Supervisor) killAll(ctx context.Context) {
	for path, s := range sv.sessions {
		s.Kill(ctx)
		delete(sv.sessions, path)
	}
	sv.watcher.Close()
}

func (sv *Supervisor) livenessSweep(ctx context.Context) {
	for path, s := range sv.sessions {
		if s.State() != session.StateTerminated && !s.IsChildAlive() {
			slog.WarnContext(ctx, "supervisor: session child exited, removing", "path", path)
			s.Kill(ctx)
			delete(sv.sessions, path)
		}
	}
}

// dispatch serializes fn onto the reactor goroutine and blocks until it
// has run, the pattern every admin/adapter-facing method below uses to
// honor the "session table is reactor-owned" invariant.
func (sv *Supervisor) dispatch(fn func(s *Supervisor)) {
	done := make(chan struct{})
	sv.requests <- request{run: fn, done: done}
	<-done
}

// List returns a snapshot of every live session, for the admin surface.
func (sv *Supervisor) List() []SessionInfo {
	var out []SessionInfo
	sv.dispatch(func(s *Supervisor) {
		for path, sess := range s.sessions {
			out = append(out, SessionInfo{
				Key:        path,
				Kind:       iconclass.ClassifyPath(path),
				State:      sess.State(),
				Generation: sess.Generation(),
			})
		}
	})
	return out
}

// Count returns the number of live sessions, for the admin surface's
// GET /status.
func (sv *Supervisor) Count() int {
	var n int
	sv.dispatch(func(s *Supervisor) { n = len(s.sessions) })
	return n
}

// RequestRender renders one session by key, for the window adapter.
func (sv *Supervisor) RequestRender(ctx context.Context, key string, size uint32, dpr float32) []wire.DrawingCommand {
	var out []wire.DrawingCommand
	sv.dispatch(func(s *Supervisor) {
		if sess, ok := s.sessions[key]; ok {
			out = sess.RequestRender(ctx, size, dpr)
		}
	})
	return out
}

// RequestPosition positions one session by key, for the window adapter.
func (sv *Supervisor) RequestPosition(ctx context.Context, key string, in wire.PositionInput) wire.Position {
	var out wire.Position
	sv.dispatch(func(s *Supervisor) {
		if sess, ok := s.sessions[key]; ok {
			out = sess.RequestPosition(ctx, in)
		} else {
			out = session.DefaultPosition(in)
		}
	})
	return out
}

// DeliverEvent forwards an event to one session by key, for the window
// adapter.
func (sv *Supervisor) DeliverEvent(ctx context.Context, key string, ev wire.Event) *wire.EventAction {
	var out *wire.EventAction
	sv.dispatch(func(s *Supervisor) {
		if sess, ok := s.sessions[key]; ok {
			out = sess.DeliverEvent(ctx, ev)
		}
	})
	return out
}

// Reload re-scans the watched directory, creating sessions for paths
// that appeared since startup and leaving existing sessions untouched,
// for the admin surface's POST /reload.
func (sv *Supervisor) Reload(ctx context.Context) {
	sv.dispatch(func(s *Supervisor) {
		paths, err := s.watcher.Scan()
		if err != nil {
			slog.ErrorContext(ctx, "supervisor: reload scan failed", "error", err)
			return
		}
		seen := make(map[string]bool, len(paths))
		for _, p := range paths {
			seen[p] = true
			if _, exists := s.sessions[p]; !exists {
				s.createSession(ctx, p)
			}
		}
	})
}
