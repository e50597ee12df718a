// Package ipc owns the pipes to one sandboxed child: it sends one request
// at a time, waits for the matching response with a timeout, detects peer
// death, and tears the child down gracefully or forcibly. See
// sand/mux.go's MuxClient in the examples pack for the request/response
// client shape this generalizes from HTTP-over-unix-socket to
// framed-JSON-over-pipes.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goombaio/namegenerator"

	"github.com/banksean/deskicond/internal/sandbox"
	"github.com/banksean/deskicond/internal/wire"
)

// Errors surfaced by the IPC channel (component C).
var (
	ErrSpawnFailed       = errors.New("ipc: spawn failed")
	ErrHandshakeFailed   = errors.New("ipc: handshake failed")
	ErrVersionMismatch   = errors.New("ipc: protocol version mismatch")
	ErrWriteFailed       = errors.New("ipc: write failed")
	ErrTimeout           = errors.New("ipc: timeout")
	ErrPeerClosed        = errors.New("ipc: peer closed")
)

// handshakeTimeout bounds the initial version handshake performed during
// Spawn.
const handshakeTimeout = 2 * time.Second

// shutdownAckTimeout is the bounded wait for ShutdownAck before Kill falls
// back to SIGKILL, per spec §4.C/§5.
const shutdownAckTimeout = 100 * time.Millisecond

var debugNameGen = namegenerator.NewNameGenerator(1)

type frameResult struct {
	body []byte
	err  error
}

// Channel owns a single child process's stdin/stdout.
type Channel struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   io.ReadCloser
	frames   chan frameResult
	debugTag string

	mu            sync.Mutex
	handshakeDone bool
	killed        bool

	exited   chan struct{}
	exitOnce sync.Once
	running  atomic.Bool
}

// Spawn constructs the launch description via the sandbox package, starts
// the child with piped stdin/stdout (stderr is left as a free-form log
// stream per §6 and discarded by the core), and performs the version
// handshake before returning.
func Spawn(ctx context.Context, handlerPath, widgetPath string, opts sandbox.Options) (*Channel, error) {
	spec, err := sandbox.BuildLaunchSpec(handlerPath, widgetPath, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	cmd := exec.CommandContext(ctx, spec.Program, spec.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrSpawnFailed, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrSpawnFailed, err)
	}
	cmd.Stderr = nil

	debugTag := debugNameGen.Generate()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	ch := &Channel{
		cmd:      cmd,
		stdin:    stdin,
		stdout:   stdout,
		frames:   make(chan frameResult, 1),
		debugTag: debugTag,
		exited:   make(chan struct{}),
	}
	ch.running.Store(true)

	go ch.readLoop()
	go ch.waitLoop()

	slog.InfoContext(ctx, "ipc.Spawn", "debugTag", debugTag, "pid", cmd.Process.Pid, "program", spec.Program)

	if err := ch.handshake(ctx); err != nil {
		ch.forceKill()
		return nil, err
	}

	return ch, nil
}

func (c *Channel) readLoop() {
	for {
		body, err := wire.ReadFrame(c.stdout)
		c.frames <- frameResult{body: body, err: err}
		if err != nil {
			return
		}
	}
}

func (c *Channel) waitLoop() {
	c.cmd.Wait()
	c.running.Store(false)
	c.exitOnce.Do(func() { close(c.exited) })
}

func (c *Channel) handshake(ctx context.Context) error {
	if err := c.SendRequest(wire.NewHandshake()); err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	resp, err := c.ReceiveResponseWithTimeout(handshakeTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if resp.Type != wire.RespHandshakeAck || resp.HandshakeAck == nil || !resp.HandshakeAck.Success {
		return fmt.Errorf("%w: child did not ack handshake", ErrHandshakeFailed)
	}
	if resp.HandshakeAck.Version != wire.ProtocolVersion {
		return fmt.Errorf("%w: child speaks version %d, daemon speaks %d",
			ErrVersionMismatch, resp.HandshakeAck.Version, wire.ProtocolVersion)
	}
	c.mu.Lock()
	c.handshakeDone = true
	c.mu.Unlock()
	return nil
}

// SendRequest encodes req and writes it, length-prefixed, to the child's
// stdin.
func (c *Channel) SendRequest(req wire.Request) error {
	if err := wire.WriteRequest(c.stdin, req); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// ReceiveResponseWithTimeout waits up to timeout for the next framed
// response. A timeout with no data pending returns ErrTimeout; a peer
// hangup (possibly after partial data) returns ErrPeerClosed.
func (c *Channel) ReceiveResponseWithTimeout(timeout time.Duration) (wire.Response, error) {
	if timeout <= 0 {
		select {
		case res := <-c.frames:
			return decodeFrame(res)
		default:
			return wire.Response{}, ErrTimeout
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-c.frames:
		return decodeFrame(res)
	case <-timer.C:
		return wire.Response{}, ErrTimeout
	}
}

func decodeFrame(res frameResult) (wire.Response, error) {
	if res.err != nil {
		return wire.Response{}, fmt.Errorf("%w: %v", ErrPeerClosed, res.err)
	}
	resp, err := wire.DecodeResponse(res.body)
	if err != nil {
		return wire.Response{}, err
	}
	return resp, nil
}

// IsRunning is a non-blocking liveness check.
func (c *Channel) IsRunning() bool {
	return c.running.Load()
}

// Kill tears the child down: if the handshake completed, it asks nicely
// (Shutdown/ShutdownAck) within a bounded window, then falls back to
// SIGKILL. Idempotent and always returns after bounded time (I6).
func (c *Channel) Kill(ctx context.Context) error {
	c.mu.Lock()
	if c.killed {
		c.mu.Unlock()
		return nil
	}
	c.killed = true
	handshakeDone := c.handshakeDone
	c.mu.Unlock()

	if handshakeDone && c.running.Load() {
		if err := c.SendRequest(wire.NewShutdown()); err == nil {
			resp, err := c.ReceiveResponseWithTimeout(shutdownAckTimeout)
			if err == nil && resp.Type == wire.RespShutdownAck {
				select {
				case <-c.exited:
					return nil
				case <-time.After(shutdownAckTimeout):
					// fall through to force kill below
				}
			}
		}
	}

	c.forceKill()
	return nil
}

func (c *Channel) forceKill() {
	if c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
	<-c.exited
}

// DebugTag is the human-readable name assigned to this child for log
// correlation (grounded on cmd/sand/new_cmd.go's sandbox-naming pattern).
func (c *Channel) DebugTag() string {
	return c.debugTag
}

// PID returns the child's process ID.
func (c *Channel) PID() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}
