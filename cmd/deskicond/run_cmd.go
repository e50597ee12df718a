package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/banksean/deskicond/internal/admin"
	"github.com/banksean/deskicond/internal/supervisor"
)

// RunCmd runs the daemon in the foreground: scan the watch directory,
// spawn a session per icon, and serve the admin control surface until
// interrupted.
type RunCmd struct{}

func (c *RunCmd) Run(cctx *Context) error {
	if cctx.Config.WatchDir == "" {
		return fmt.Errorf("deskicond: a watch directory is required (argument or config's watch_dir)")
	}

	sv, err := supervisor.New(supervisor.Config{
		WatchDir:      cctx.Config.WatchDir,
		HandlerPath:   defaultHandlerPath(cctx.Config),
		WidgetForKind: widgetForKind(cctx.Config),
		SandboxOpts:   cctx.Config.ToSandboxOptions(),
		Spawn:         spawner(),
	})
	if err != nil {
		return fmt.Errorf("deskicond: failed to initialize supervisor: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adminServer := admin.NewServer(cctx.AppBaseDir, sv)
	adminErrCh := make(chan error, 1)
	go func() { adminErrCh <- adminServer.ListenAndServe(ctx) }()

	runErr := sv.Run(ctx)
	adminErr := <-adminErrCh

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("deskicond: supervisor exited: %w", runErr)
	}
	if adminErr != nil && !errors.Is(adminErr, context.Canceled) {
		return fmt.Errorf("deskicond: admin server exited: %w", adminErr)
	}
	return nil
}
