package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"

	"github.com/banksean/deskicond/internal/config"
	"github.com/banksean/deskicond/internal/ipc"
	"github.com/banksean/deskicond/internal/logging"
	"github.com/banksean/deskicond/internal/sandbox"
	"github.com/banksean/deskicond/internal/session"
	"github.com/banksean/deskicond/internal/wire"
)

// Context carries the resolved runtime configuration into each
// subcommand's Run method, the same role cmd/sand/main.go's Context
// plays for its own subcommands.
type Context struct {
	AppBaseDir string
	Config     config.Config
}

// CLI is the daemon's top-level flag and subcommand set.
type CLI struct {
	WatchDir string `arg:"" optional:"" placeholder:"<desktop-dir>" help:"directory to watch for icons (overrides config's watch_dir)"`
	Config   string `default:"" placeholder:"<config-file-path>" help:"path to a deskicond.yaml config file"`
	LogFile  string `default:"" placeholder:"<log-file-path>" help:"location of the rotated log file (leave empty for a temp path)"`
	LogLevel string `default:"info" placeholder:"<debug|info|warn|error>" help:"the logging level (debug, info, warn, error)"`
	Verbose  bool   `default:"false" help:"force debug-level logging"`

	Run        RunCmd        `cmd:"" default:"1" help:"run the daemon in the foreground"`
	Daemon     DaemonCmd     `cmd:"" help:"start, stop, restart, or query the background daemon"`
	Completion CompletionCmd `cmd:"" help:"output shell completion script"`
}

func appBaseDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %w", err)
	}
	dir := filepath.Join(homeDir, ".local", "state", "deskicond")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating state directory: %w", err)
	}
	return dir, nil
}

func resolveConfig(cli *CLI) (config.Config, error) {
	cfg := config.Default()
	if cli.Config != "" {
		var err error
		cfg, err = config.Load(cli.Config)
		if err != nil {
			return config.Config{}, err
		}
	}
	if cli.WatchDir != "" {
		cfg.WatchDir = cli.WatchDir
	}
	if cli.LogFile != "" {
		cfg.LogFile = cli.LogFile
	}
	if cli.LogLevel != "info" {
		cfg.LogLevel = cli.LogLevel
	}
	if cli.Verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

func main() {
	var cli CLI
	parser := kong.Must(&cli,
		kong.Configuration(kongyaml.Loader, "/etc/deskicond/deskicond.yaml", "~/.config/deskicond/deskicond.yaml"),
		kong.Description("Watch a desktop directory and run a sandboxed icon script per entry."))
	registerCompletion(parser, &cli)

	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	cfg, err := resolveConfig(&cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deskicond: %v\n", err)
		os.Exit(1)
	}

	_, rotator, err := logging.Init(logging.Options{
		LogFile: cfg.LogFile,
		Level:   cfg.LogLevel,
		Verbose: cfg.Verbose,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "deskicond: logging init failed: %v\n", err)
		os.Exit(1)
	}
	if rotator != nil {
		defer rotator.Close()
	}

	baseDir, err := appBaseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "deskicond: %v\n", err)
		os.Exit(1)
	}

	runErr := kctx.Run(&Context{AppBaseDir: baseDir, Config: cfg})
	kctx.FatalIfErrorf(runErr)
}

// defaultHandlerPath locates the packaged icon-script handler, the
// single opaque interpreter entrypoint every session spawns into the
// sandbox. Resolved relative to ScriptSearchPath, falling back to the
// conventional install location.
func defaultHandlerPath(cfg config.Config) string {
	for _, dir := range cfg.ScriptSearchPath {
		candidate := filepath.Join(dir, "handler.py")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "/usr/share/deskicond/scripts/handler.py"
}

// widgetFilenames maps an icon's kind to the widget script the handler
// loads for it, one file per IconType the way find_script_for_icon picks
// among folder.lua/file.lua/image.lua/... in the original daemon.
var widgetFilenames = map[wire.IconKind]string{
	wire.KindDirectory:  "directory.py",
	wire.KindFile:       "file.py",
	wire.KindSymlink:    "symlink.py",
	wire.KindExecutable: "executable.py",
	wire.KindImage:      "image.py",
	wire.KindDocument:   "document.py",
	wire.KindArchive:    "archive.py",
	wire.KindVideo:      "video.py",
	wire.KindAudio:      "audio.py",
}

const defaultWidgetFilename = "default.py"

// widgetForKind maps an icon's kind to the per-icon-type widget script
// the sandboxed handler loads, resolved against the configured script
// search path's widgets/ subdirectory and falling back to a shared
// default widget when no kind-specific script is installed.
func widgetForKind(cfg config.Config) func(kind wire.IconKind) string {
	return func(kind wire.IconKind) string {
		name, ok := widgetFilenames[kind]
		if !ok {
			name = defaultWidgetFilename
		}
		for _, dir := range cfg.ScriptSearchPath {
			if candidate := filepath.Join(dir, "widgets", name); fileExists(candidate) {
				return candidate
			}
		}
		for _, dir := range cfg.ScriptSearchPath {
			if candidate := filepath.Join(dir, "widgets", defaultWidgetFilename); fileExists(candidate) {
				return candidate
			}
		}
		return filepath.Join("/usr/share/deskicond/scripts/widgets", defaultWidgetFilename)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func spawner() session.Spawner {
	return func(ctx context.Context, handlerPath, widgetPath string, opts sandbox.Options) (session.Channel, error) {
		ch, err := ipc.Spawn(ctx, handlerPath, widgetPath, opts)
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
}
