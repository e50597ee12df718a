package ipc

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"testing"
	"time"

	"github.com/banksean/deskicond/internal/wire"
)

// newFakeChannel wires a Channel to in-memory pipes so the protocol logic
// (handshake, send/receive, timeouts) can be exercised without spawning a
// real sandboxed child. A short-lived real process backs Kill()/IsRunning()
// so those still exercise actual process-table behavior.
func newFakeChannel(t *testing.T) (ch *Channel, toChild *io.PipeReader, fromChild *io.PipeWriter) {
	t.Helper()
	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()

	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("sleep not available: %v", err)
	}
	t.Cleanup(func() { cmd.Process.Kill() })

	ch = &Channel{
		cmd:      cmd,
		stdin:    stdinW,
		stdout:   stdoutR,
		frames:   make(chan frameResult, 1),
		debugTag: "test-channel",
		exited:   make(chan struct{}),
	}
	ch.running.Store(true)
	go ch.readLoop()
	go ch.waitLoop()

	return ch, stdinR, stdoutW
}

func TestChannelHandshakeSuccess(t *testing.T) {
	ch, toChild, fromChild := newFakeChannel(t)
	defer fromChild.Close()

	go func() {
		req, err := wire.ReadRequest(toChild)
		if err != nil || req.Type != wire.ReqHandshake {
			return
		}
		wire.WriteResponse(fromChild, wire.NewHandshakeAck(wire.ProtocolVersion, true))
	}()

	if err := ch.handshake(context.Background()); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	if !ch.handshakeDone {
		t.Fatal("expected handshakeDone")
	}
}

func TestChannelHandshakeVersionMismatch(t *testing.T) {
	ch, toChild, fromChild := newFakeChannel(t)
	defer fromChild.Close()

	go func() {
		wire.ReadRequest(toChild)
		wire.WriteResponse(fromChild, wire.NewHandshakeAck(2, true))
	}()

	err := ch.handshake(context.Background())
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("err = %v, want ErrVersionMismatch", err)
	}
}

func TestChannelHandshakeRejectedAck(t *testing.T) {
	ch, toChild, fromChild := newFakeChannel(t)
	defer fromChild.Close()

	go func() {
		wire.ReadRequest(toChild)
		wire.WriteResponse(fromChild, wire.NewHandshakeAck(wire.ProtocolVersion, false))
	}()

	err := ch.handshake(context.Background())
	if !errors.Is(err, ErrHandshakeFailed) {
		t.Fatalf("err = %v, want ErrHandshakeFailed", err)
	}
}

func TestChannelSendReceiveRoundTrip(t *testing.T) {
	ch, toChild, fromChild := newFakeChannel(t)
	defer fromChild.Close()

	want := wire.NewRenderResp([]wire.DrawingCommand{wire.Clear("#00000000")})
	go func() {
		req, _ := wire.ReadRequest(toChild)
		if req.Type != wire.ReqRender {
			return
		}
		wire.WriteResponse(fromChild, want)
	}()

	if err := ch.SendRequest(wire.NewRender(wire.Metadata{}, wire.RenderContext{})); err != nil {
		t.Fatal(err)
	}
	got, err := ch.ReceiveResponseWithTimeout(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != want.Type || len(got.Render.Commands) != len(want.Render.Commands) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestChannelReceiveTimeout(t *testing.T) {
	ch, _, fromChild := newFakeChannel(t)
	defer fromChild.Close()

	start := time.Now()
	_, err := ch.ReceiveResponseWithTimeout(100 * time.Millisecond)
	elapsed := time.Since(start)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed < 100*time.Millisecond || elapsed > 250*time.Millisecond {
		t.Fatalf("elapsed = %v, want within [100ms, 250ms]", elapsed)
	}
}

func TestChannelReceiveZeroTimeoutNoDataPending(t *testing.T) {
	ch, _, fromChild := newFakeChannel(t)
	defer fromChild.Close()

	_, err := ch.ReceiveResponseWithTimeout(0)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestChannelReceivePeerClosed(t *testing.T) {
	ch, _, fromChild := newFakeChannel(t)
	fromChild.Close()

	_, err := ch.ReceiveResponseWithTimeout(time.Second)
	if !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("err = %v, want ErrPeerClosed", err)
	}
}

func TestChannelKillForciblyWithoutHandshake(t *testing.T) {
	ch, _, fromChild := newFakeChannel(t)
	defer fromChild.Close()

	if !ch.IsRunning() {
		t.Fatal("expected running before kill")
	}
	if err := ch.Kill(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ch.IsRunning() {
		t.Fatal("expected not running after kill")
	}
}

func TestChannelKillIdempotent(t *testing.T) {
	ch, _, fromChild := newFakeChannel(t)
	defer fromChild.Close()

	if err := ch.Kill(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := ch.Kill(context.Background()); err != nil {
		t.Fatalf("second Kill should be a no-op, got %v", err)
	}
}

func TestChannelKillGracefulAfterHandshake(t *testing.T) {
	ch, toChild, fromChild := newFakeChannel(t)
	defer fromChild.Close()

	go func() {
		wire.ReadRequest(toChild)
		wire.WriteResponse(fromChild, wire.NewHandshakeAck(wire.ProtocolVersion, true))
	}()
	if err := ch.handshake(context.Background()); err != nil {
		t.Fatal(err)
	}

	go func() {
		req, _ := wire.ReadRequest(toChild)
		if req.Type == wire.ReqShutdown {
			wire.WriteResponse(fromChild, wire.NewShutdownAck())
		}
	}()

	if err := ch.Kill(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ch.IsRunning() {
		t.Fatal("expected not running after graceful kill")
	}
}
