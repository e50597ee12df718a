package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/banksean/deskicond/internal/admin"
)

// DaemonCmd manages a background instance of the daemon over its admin
// control surface, the same start/stop/restart/status shape as
// cmd/sand/daemon_cmd.go.
type DaemonCmd struct {
	Action string `arg:"" optional:"" default:"status" enum:"start,stop,restart,status" help:"Action to perform: start, stop, restart, or status (default)."`
}

func (c *DaemonCmd) Run(cctx *Context) error {
	ctx := context.Background()
	switch c.Action {
	case "start":
		return c.start(ctx, cctx)
	case "stop":
		return c.stop(ctx, cctx)
	case "restart":
		return c.restart(ctx, cctx)
	default:
		return c.status(ctx, cctx)
	}
}

func (c *DaemonCmd) status(ctx context.Context, cctx *Context) error {
	if !admin.IsDaemonRunning(cctx.AppBaseDir) {
		fmt.Println("Daemon is not running")
		return nil
	}
	client := admin.NewClient(cctx.AppBaseDir)
	st, err := client.Status(ctx)
	if err != nil {
		fmt.Println("Daemon is not running")
		return nil
	}
	fmt.Printf("Daemon is running (pid %d, %d sessions, up %ds)\n", st.PID, st.SessionCount, st.UptimeSecond)
	return nil
}

func (c *DaemonCmd) start(ctx context.Context, cctx *Context) error {
	if admin.IsDaemonRunning(cctx.AppBaseDir) {
		fmt.Println("Daemon is already running")
		return nil
	}
	return spawnDetached(cctx)
}

func (c *DaemonCmd) stop(ctx context.Context, cctx *Context) error {
	if !admin.IsDaemonRunning(cctx.AppBaseDir) {
		fmt.Println("Daemon is not running")
		return nil
	}
	// The admin surface has no shutdown endpoint of its own; its
	// lifecycle is the daemon process's lifecycle, so the stop path
	// signals the process directly via its lock file's recorded pid.
	pid, err := readLockedPID(cctx.AppBaseDir)
	if err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	fmt.Println("Daemon stopped")
	return nil
}

func (c *DaemonCmd) restart(ctx context.Context, cctx *Context) error {
	if admin.IsDaemonRunning(cctx.AppBaseDir) {
		if err := c.stop(ctx, cctx); err != nil {
			return err
		}
	}
	return spawnDetached(cctx)
}

func spawnDetached(cctx *Context) error {
	args := []string{"run"}
	if cctx.Config.WatchDir != "" {
		args = append([]string{cctx.Config.WatchDir}, args...)
	}
	cmd := exec.Command(os.Args[0], args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	socketPath := cctx.AppBaseDir + "/deskicond.sock"
	for i := 0; i < 20; i++ {
		time.Sleep(100 * time.Millisecond)
		conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			fmt.Println("Daemon started")
			return nil
		}
	}
	return fmt.Errorf("daemon failed to start")
}

func readLockedPID(baseDir string) (int, error) {
	data, err := os.ReadFile(baseDir + "/deskicond.lock")
	if err != nil {
		return 0, err
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, err
	}
	return pid, nil
}
