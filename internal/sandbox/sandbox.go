// Package sandbox builds the fully-specified bubblewrap launch
// description for a per-icon child process. It is a pure function: it
// never spawns anything, never touches the filesystem beyond existence
// checks, and never mutates caller state. See hugbox.go in the examples
// pack (cypherbits-sandboxed-tor-browser) for the bubblewrap argument
// conventions this mirrors.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Options configures the isolation applied to one child process.
type Options struct {
	AllowNetwork  bool
	ReadOnlyPaths []string
	ReadWritePaths []string
	EnvVars       []EnvVar
	WorkDir       string
}

// EnvVar is a caller-supplied environment override, applied after the
// essential environment so it may shadow it.
type EnvVar struct {
	Key   string
	Value string
}

// LaunchSpec is the fully-specified description of how to start the
// sandboxed child. Spawning it is the IPC channel's job (component C);
// this package only ever produces the spec.
type LaunchSpec struct {
	Program string
	Args    []string
	Env     []string
}

// wrapperProgram is the container wrapper invoked to construct the
// sandbox. Overridable in tests.
var wrapperProgram = "bwrap"

const (
	interpreterExecutable = "python3"
)

// fileExists is overridable in tests so BuildLaunchSpec's silent-skip
// behavior for missing extra bind paths can be exercised deterministically.
var fileExists = func(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// BuildLaunchSpec constructs the launch description for a child that will
// run handlerPath (the stable wire-protocol entry point) with widgetPath
// exposed to it via CVH_ICON_SCRIPT. The argument order below is the
// contract: --clearenv must precede every --setenv, and opts.EnvVars must
// be applied after the essential environment so overrides take effect.
func BuildLaunchSpec(handlerPath, widgetPath string, opts Options) (*LaunchSpec, error) {
	if handlerPath == "" {
		return nil, fmt.Errorf("sandbox: handler path is required")
	}
	if widgetPath == "" {
		return nil, fmt.Errorf("sandbox: widget path is required")
	}

	var args []string

	// 1. lifetime + session isolation.
	args = append(args, "--die-with-parent", "--new-session")

	// 2. namespace unshare.
	if opts.AllowNetwork {
		args = append(args, "--unshare-user", "--unshare-pid", "--unshare-uts", "--unshare-cgroup")
	} else {
		args = append(args, "--unshare-all")
	}

	// 3. read-only bind of /usr, /lib, /lib64, symlinking where the host
	// path is already a symlink into /usr.
	for _, libDir := range []string{"/usr", "/lib", "/lib64"} {
		if !fileExists(libDir) {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(libDir); err == nil && resolved != libDir && strings.HasPrefix(resolved, "/usr") {
			args = append(args, "--symlink", resolved, libDir)
		} else {
			args = append(args, "--ro-bind", libDir, libDir)
		}
	}

	// 4. /bin and /sbin symlinks into /usr.
	args = append(args, "--symlink", "usr/bin", "/bin")
	args = append(args, "--symlink", "usr/sbin", "/sbin")

	// 5. proc, dev, tmp, run, home.
	args = append(args, "--proc", "/proc")
	args = append(args, "--dev", "/dev")
	args = append(args, "--tmpfs", "/tmp")
	args = append(args, "--tmpfs", "/run")
	args = append(args, "--tmpfs", "/home")

	// 6. extra read-only binds, silent-skip if missing (preserves the
	// source's silent-skip policy; see SPEC_FULL.md Open Questions).
	for _, p := range opts.ReadOnlyPaths {
		if fileExists(p) {
			args = append(args, "--ro-bind", p, p)
		}
	}

	// 7. extra read-write binds, silent-skip if missing.
	for _, p := range opts.ReadWritePaths {
		if fileExists(p) {
			args = append(args, "--bind", p, p)
		}
	}

	// 8. read-only bind of the handler's parent dir, and the widget's
	// parent dir too when it differs.
	handlerDir := filepath.Dir(handlerPath)
	args = append(args, "--ro-bind", handlerDir, handlerDir)
	if widgetDir := filepath.Dir(widgetPath); widgetDir != handlerDir {
		args = append(args, "--ro-bind", widgetDir, widgetDir)
	}

	// 9. optional chdir.
	if opts.WorkDir != "" {
		args = append(args, "--chdir", opts.WorkDir)
	}

	// 10. clearenv before any setenv.
	args = append(args, "--clearenv")

	// 11. essential environment.
	args = append(args, "--setenv", "PATH", "/usr/bin:/bin")
	args = append(args, "--setenv", "HOME", "/tmp")
	args = append(args, "--setenv", "LANG", "C.UTF-8")

	// 12. widget script path.
	widgetAbs, err := filepath.Abs(widgetPath)
	if err != nil {
		return nil, fmt.Errorf("sandbox: resolve widget path: %w", err)
	}
	args = append(args, "--setenv", "CVH_ICON_SCRIPT", widgetAbs)

	// 13. caller-supplied overrides, applied last so they may shadow 11-12.
	for _, kv := range opts.EnvVars {
		args = append(args, "--setenv", kv.Key, kv.Value)
	}

	// 14. separator, interpreter, handler path.
	args = append(args, "--", interpreterExecutable, handlerPath)

	return &LaunchSpec{
		Program: wrapperProgram,
		Args:    args,
	}, nil
}

// ClearEnvIndex returns the index of "--clearenv" in args, or -1.
func ClearEnvIndex(args []string) int {
	for i, a := range args {
		if a == "--clearenv" {
			return i
		}
	}
	return -1
}

// FirstSetEnvIndex returns the index of the first "--setenv" in args, or -1.
func FirstSetEnvIndex(args []string) int {
	for i, a := range args {
		if a == "--setenv" {
			return i
		}
	}
	return -1
}

// SetEnvIndexForKey returns the index of the "--setenv" flag whose key
// equals key, or -1 if none is present.
func SetEnvIndexForKey(args []string, key string) int {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "--setenv" && args[i+1] == key {
			return i
		}
	}
	return -1
}
