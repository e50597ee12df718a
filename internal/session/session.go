// Package session binds one backing filesystem path to one sandboxed
// child and presents a narrow, synchronous surface to the supervisor:
// render, position, deliver-event, kill. It owns the per-request restart
// policy and the fallback render/position behavior that keeps a
// misbehaving script from taking down its icon. See box.go's Box in the
// examples pack for the "owns a narrow backend interface, degrades
// gracefully instead of propagating every backend error" shape this
// generalizes.
package session

import (
	"context"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/banksean/deskicond/internal/iconclass"
	"github.com/banksean/deskicond/internal/sandbox"
	"github.com/banksean/deskicond/internal/wire"
)

// State is the session's lifecycle state, per the New -> Handshaking ->
// Ready -> Restarting -> Terminated machine.
type State string

const (
	StateNew         State = "New"
	StateHandshaking State = "Handshaking"
	StateReady       State = "Ready"
	StateRestarting  State = "Restarting"
	StateTerminated  State = "Terminated"
)

// renderTimeout bounds request_render's IPC round trip.
const renderTimeout = 500 * time.Millisecond

const (
	defaultCellSize = 96
	gridMargin      = 20
)

// fallbackPalette maps an icon kind to its built-in fallback fill color,
// used when a script can't be reached and no cached render exists.
var fallbackPalette = map[wire.IconKind]string{
	wire.KindDirectory:  "#4A90D9",
	wire.KindExecutable: "#73D216",
	wire.KindImage:      "#F57900",
	wire.KindDocument:   "#EDD400",
	wire.KindArchive:    "#75507B",
	wire.KindVideo:      "#C17D11",
	wire.KindAudio:      "#CC0000",
}

const defaultFallbackColor = "#888888"

// Channel is the narrow IPC surface a Session depends on. ipc.Channel
// satisfies it; tests substitute a fake.
type Channel interface {
	SendRequest(req wire.Request) error
	ReceiveResponseWithTimeout(timeout time.Duration) (wire.Response, error)
	IsRunning() bool
	Kill(ctx context.Context) error
}

// Spawner constructs a fresh Channel for a (re)start. Bound to
// ipc.Spawn in production; faked in tests so restart can be exercised
// without a real bwrap/python3 toolchain.
type Spawner func(ctx context.Context, handlerPath, widgetPath string, opts sandbox.Options) (Channel, error)

// Session owns one path's child process across its lifetime, including
// any transparent restarts.
type Session struct {
	mu sync.Mutex

	key        string
	handler    string
	widget     string
	opts       sandbox.Options
	kind       wire.IconKind
	spawn      Spawner
	generation int

	state   State
	channel Channel

	cachedCommands []wire.DrawingCommand
	position       wire.Position
	hasPosition    bool
	selected       bool
	hovered        bool
}

// New creates a session in state New; call Start to spawn its child.
func New(key, handlerPath, widgetPath string, kind wire.IconKind, opts sandbox.Options, spawn Spawner) *Session {
	return &Session{
		key:     key,
		handler: handlerPath,
		widget:  widgetPath,
		kind:    kind,
		opts:    opts,
		spawn:   spawn,
		state:   StateNew,
	}
}

// Start spawns the child and performs the handshake, moving the session
// from New/Restarting through Handshaking to Ready (or Terminated on
// failure, per the state diagram's failure edge).
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

func (s *Session) startLocked(ctx context.Context) error {
	s.state = StateHandshaking
	s.generation++
	ch, err := s.spawn(ctx, s.handler, s.widget, s.opts)
	if err != nil {
		slog.WarnContext(ctx, "session.Start failed", "key", s.key, "generation", s.generation, "error", err)
		s.state = StateTerminated
		return err
	}
	s.channel = ch
	s.state = StateReady
	return nil
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Generation returns how many times this session's child has been
// (re)started, for admin-surface reporting.
func (s *Session) Generation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// RequestRender asks the child to render at the given canvas size. On
// success it caches the returned commands as the fallback for future
// failures. On error or channel failure it attempts one restart, then
// falls back to the cache, then to the built-in palette render. A restart
// is attempted on every call whose primary attempt fails, as long as the
// handler and widget paths are known and the session is not Terminated.
// A restart whose spawn succeeds but whose render still fails leaves the
// next call free to restart again; a restart whose spawn fails moves the
// session to StateTerminated, as Kill does, and from then on every call
// returns the built-in palette render without restarting.
func (s *Session) RequestRender(ctx context.Context, size uint32, dpr float32) []wire.DrawingCommand {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		return s.builtinFallback(size)
	}

	if s.state == StateReady {
		if cmds, ok := s.tryRenderLocked(ctx, size, dpr); ok {
			return cmds
		}
	}

	if s.handler != "" && s.widget != "" {
		slog.WarnContext(ctx, "session restarting after render failure", "key", s.key)
		if err := s.startLocked(ctx); err == nil {
			if cmds, ok := s.tryRenderLocked(ctx, size, dpr); ok {
				return cmds
			}
		}
	}

	if s.cachedCommands != nil {
		return s.cachedCommands
	}
	return s.builtinFallback(size)
}

func (s *Session) tryRenderLocked(ctx context.Context, size uint32, dpr float32) ([]wire.DrawingCommand, bool) {
	md := s.metadataLocked(size)
	rc := wire.RenderContext{CanvasWidth: size, CanvasHeight: size, DevicePixelRatio: dpr}

	if err := s.channel.SendRequest(wire.NewRender(md, rc)); err != nil {
		slog.ErrorContext(ctx, "session render send failed", "key", s.key, "error", err)
		s.state = StateRestarting
		return nil, false
	}
	resp, err := s.channel.ReceiveResponseWithTimeout(renderTimeout)
	if err != nil {
		slog.WarnContext(ctx, "session render timed out or peer closed", "key", s.key, "error", err)
		s.state = StateRestarting
		return nil, false
	}
	if resp.Type != wire.RespRender || resp.Render == nil {
		slog.ErrorContext(ctx, "session render returned error", "key", s.key)
		s.state = StateRestarting
		return nil, false
	}

	s.cachedCommands = resp.Render.Commands
	return resp.Render.Commands, true
}

// metadataLocked builds the Metadata sent with every render request. Size
// is a best-effort stat (nil when the path can't be stat'd, e.g. removed
// mid-render); width/height mirror the icon's configured render size,
// since the protocol has no separate concept of a draw size distinct from
// the requested canvas.
func (s *Session) metadataLocked(size uint32) wire.Metadata {
	md := wire.Metadata{
		Path:        s.key,
		DisplayName: iconclass.DisplayName(s.key),
		MimeGuess:   iconclass.MimeGuess(s.key),
		IsDirectory: s.kind == wire.KindDirectory,
		Width:       size,
		Height:      size,
		Kind:        s.kind,
		Selected:    s.selected,
		Hovered:     s.hovered,
	}
	if info, err := os.Stat(s.key); err == nil && !info.IsDir() {
		sz := uint64(info.Size())
		md.Size = &sz
	}
	return md
}

func (s *Session) builtinFallback(size uint32) []wire.DrawingCommand {
	color, ok := fallbackPalette[s.kind]
	if !ok {
		color = defaultFallbackColor
	}
	inset := int32(4)
	inner := size - 8
	return []wire.DrawingCommand{
		wire.Clear("#00000000"),
		wire.FillRect(inset, inset, inner, inner, color),
	}
}

// RequestPosition asks the child for its preferred grid coordinates. On
// any failure it attempts one restart (the same per-request policy as
// RequestRender) before falling back to the default grid layout.
func (s *Session) RequestPosition(ctx context.Context, in wire.PositionInput) wire.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		return DefaultPosition(in)
	}

	if s.state == StateReady {
		if pos, ok := s.tryPositionLocked(ctx, in); ok {
			return pos
		}
	}

	if s.handler != "" && s.widget != "" {
		slog.WarnContext(ctx, "session restarting after position failure", "key", s.key)
		if err := s.startLocked(ctx); err == nil {
			if pos, ok := s.tryPositionLocked(ctx, in); ok {
				return pos
			}
		}
	}

	return DefaultPosition(in)
}

func (s *Session) tryPositionLocked(ctx context.Context, in wire.PositionInput) (wire.Position, bool) {
	if err := s.channel.SendRequest(wire.NewPosition(in)); err != nil {
		slog.ErrorContext(ctx, "session position send failed", "key", s.key, "error", err)
		s.state = StateRestarting
		return wire.Position{}, false
	}
	resp, err := s.channel.ReceiveResponseWithTimeout(renderTimeout)
	if err != nil || resp.Type != wire.RespPosition || resp.Position == nil {
		slog.WarnContext(ctx, "session position timed out or failed", "key", s.key, "error", err)
		s.state = StateRestarting
		return wire.Position{}, false
	}
	s.position = resp.Position.Position
	s.hasPosition = true
	return s.position, true
}

// DefaultPosition implements the grid-layout fallback: cell sizes
// default to 96, margin is fixed at 20, and icons are laid out in
// row-major order across as many columns as fit the screen width.
func DefaultPosition(in wire.PositionInput) wire.Position {
	cellW := uint32(defaultCellSize)
	if in.CellWidth != nil {
		cellW = *in.CellWidth
	}
	cellH := uint32(defaultCellSize)
	if in.CellHeight != nil {
		cellH = *in.CellHeight
	}
	margin := uint32(gridMargin)

	cols := 1
	if in.ScreenWidth > 2*margin && cellW > 0 {
		if c := int((in.ScreenWidth - 2*margin) / cellW); c > 1 {
			cols = c
		}
	}

	idx := int(in.IconIndex)
	col := idx % cols
	row := int(math.Floor(float64(idx) / float64(cols)))

	return wire.Position{
		X: int32(margin) + int32(col)*int32(cellW),
		Y: int32(margin) + int32(row)*int32(cellH),
	}
}

// DeliverEvent forwards an event to the child. Delivery is
// fire-and-report: any failure silently drops the event. Selected/hovered
// state is tracked locally regardless of delivery outcome, since it
// describes the icon as the window adapter sees it, not the child.
func (s *Session) DeliverEvent(ctx context.Context, ev wire.Event) *wire.EventAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case wire.EventSelected:
		s.selected = true
	case wire.EventDeselected:
		s.selected = false
	case wire.EventHoverEnter:
		s.hovered = true
	case wire.EventHoverExit:
		s.hovered = false
	case wire.EventClick:
		if ev.Click != nil && ev.Click.Button == 1 {
			s.selected = !s.selected
		}
	}

	if s.state != StateReady {
		return nil
	}
	if err := s.channel.SendRequest(wire.NewEvent(ev)); err != nil {
		slog.WarnContext(ctx, "session event delivery failed", "key", s.key, "error", err)
		return nil
	}
	resp, err := s.channel.ReceiveResponseWithTimeout(renderTimeout)
	if err != nil || resp.Type != wire.RespEvent || resp.Event == nil || !resp.Event.Handled {
		return nil
	}
	return resp.Event.Action
}

// Kill transitions the session to Terminated and ensures the child is
// gone. Idempotent.
func (s *Session) Kill(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTerminated {
		return
	}
	if s.channel != nil {
		s.channel.Kill(ctx)
	}
	s.state = StateTerminated
}

// IsChildAlive reports whether the backing child process is still
// running, for the supervisor's liveness sweep.
func (s *Session) IsChildAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTerminated || s.channel == nil {
		return false
	}
	return s.channel.IsRunning()
}
