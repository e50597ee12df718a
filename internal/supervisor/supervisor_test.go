package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banksean/deskicond/internal/sandbox"
	"github.com/banksean/deskicond/internal/session"
	"github.com/banksean/deskicond/internal/wire"
)

type fakeSessionChannel struct{}

func (fakeSessionChannel) SendRequest(req wire.Request) error { return nil }
func (fakeSessionChannel) ReceiveResponseWithTimeout(timeout time.Duration) (wire.Response, error) {
	return wire.NewRenderResp(nil), nil
}
func (fakeSessionChannel) IsRunning() bool             { return true }
func (fakeSessionChannel) Kill(ctx context.Context) error { return nil }

func fakeSpawn(ctx context.Context, handlerPath, widgetPath string, opts sandbox.Options) (session.Channel, error) {
	return fakeSessionChannel{}, nil
}

func newTestSupervisor(t *testing.T, dir string) *Supervisor {
	t.Helper()
	sv, err := New(Config{
		WatchDir:    dir,
		HandlerPath: "/opt/handler.py",
		Spawn:       fakeSpawn,
	})
	if err != nil {
		t.Fatal(err)
	}
	return sv
}

func TestRunCreatesSessionsForVisibleEntriesOnly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"visible.txt", ".hidden"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	sv := newTestSupervisor(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	go sv.Run(ctx)
	defer cancel()

	// Give the reactor a moment to complete its startup scan before
	// querying it through List (which itself serializes onto the
	// reactor, so no further sleep is needed after the first request
	// succeeds).
	time.Sleep(20 * time.Millisecond)

	infos := sv.List()
	if len(infos) != 1 {
		t.Fatalf("got %d sessions, want 1 (hidden entry must be excluded): %+v", len(infos), infos)
	}
	if filepath.Base(infos[0].Key) != "visible.txt" {
		t.Fatalf("got session for %q, want visible.txt", infos[0].Key)
	}
}

func TestCreateThenRemoveThenRecreate(t *testing.T) {
	dir := t.TempDir()
	sv := newTestSupervisor(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	go sv.Run(ctx)
	defer cancel()
	time.Sleep(20 * time.Millisecond)

	path := filepath.Join(dir, "icon.png")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	waitForSessionCount(t, sv, 1)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitForSessionCount(t, sv, 0)

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	waitForSessionCount(t, sv, 1)
}

func TestRequestRenderUnknownKeyReturnsNil(t *testing.T) {
	dir := t.TempDir()
	sv := newTestSupervisor(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	go sv.Run(ctx)
	defer cancel()
	time.Sleep(20 * time.Millisecond)

	got := sv.RequestRender(context.Background(), "/no/such/path", 64, 1.0)
	if got != nil {
		t.Fatalf("got %+v, want nil for unknown key", got)
	}
}

func TestRequestPositionUnknownKeyReturnsDefaultGrid(t *testing.T) {
	dir := t.TempDir()
	sv := newTestSupervisor(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	go sv.Run(ctx)
	defer cancel()
	time.Sleep(20 * time.Millisecond)

	cw := uint32(96)
	in := wire.PositionInput{ScreenWidth: 1920, ScreenHeight: 1080, IconCount: 1, IconIndex: 0, CellWidth: &cw, CellHeight: &cw}
	got := sv.RequestPosition(context.Background(), "/no/such/path", in)
	want := session.DefaultPosition(in)
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestStopKillsAllSessions(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	sv := newTestSupervisor(t, dir)
	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- sv.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)

	sv.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestRunReturnsWatcherDisconnectedAndKillsSessions(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	sv := newTestSupervisor(t, dir)
	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- sv.Run(ctx) }()
	waitForSessionCount(t, sv, 1)

	// Closing the watcher directly (rather than via Stop()/ctx-cancel)
	// signals Disconnected the same way a dead fsnotify source would,
	// exercising Run's fatal-disconnect path instead of its clean-shutdown
	// paths.
	sv.watcher.Close()

	select {
	case err := <-done:
		if err != ErrWatcherDisconnected {
			t.Fatalf("Run returned %v, want ErrWatcherDisconnected", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the watcher disconnected")
	}
	// Run has already returned, so the reactor is no longer draining
	// sv.requests; read the session table directly instead of through
	// Count()/dispatch(), which would block forever waiting on it.
	if got := len(sv.sessions); got != 0 {
		t.Fatalf("sessions after watcher disconnect = %d, want 0", got)
	}
}

func waitForSessionCount(t *testing.T, sv *Supervisor, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if sv.Count() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session count never reached %d, last was %d", want, sv.Count())
}
