// Package shutdown handles process signals and fatal-exit diagnostics. A
// fatal startup or runtime failure leaves a crash dump under the data root
// so operators can see what the process was doing when it died.
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"contextdb/pkg/logger"
)

// SetupSignalHandler installs handlers for SIGINT and SIGTERM and returns a
// context cancelled when either arrives. SIGPIPE additionally dumps
// goroutine stacks before cancelling, to aid diagnostics of broken pipes to
// log sinks.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
		cancel()
	}()

	sigpipe := make(chan os.Signal, 1)
	signal.Notify(sigpipe, syscall.SIGPIPE)
	go func() {
		s := <-sigpipe
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		logger.Warn("signal_received", "signal", s.String(), "stacks", string(buf[:n]))
		cancel()
	}()

	return ctx, cancel
}

// Abort logs a fatal error, writes a crash dump and exits with status 2.
// dataRoot may be empty, in which case the dump lands in ./crash.
func Abort(contextMsg string, err error, dataRoot string) {
	logger.Error("startup_fatal", "msg", contextMsg, "error", err)
	if path, derr := writeCrashDump(dataRoot, contextMsg, err); derr != nil {
		fmt.Fprintf(os.Stderr, "failed to write crash dump: %v\n", derr)
	} else {
		logger.Error("crash_dump_written", "path", path)
		fmt.Fprintf(os.Stderr, "crash dump written: %s\n", path)
	}
	os.Exit(2)
}

// writeCrashDump stages the dump in a temp file and renames it into place,
// mirroring how the stores commit rewrites.
func writeCrashDump(dataRoot, reason string, cause error) (string, error) {
	dir := "./crash"
	if dataRoot != "" {
		dir = filepath.Join(dataRoot, "state", "crash")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create crash dir: %w", err)
	}

	f, err := os.CreateTemp(dir, ".crash-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp crash file: %w", err)
	}
	tmpName := f.Name()
	defer os.Remove(tmpName)

	fmt.Fprintf(f, "time: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(f, "reason: %s\n", reason)
	fmt.Fprintf(f, "error: %v\n", cause)
	fmt.Fprintf(f, "\n--- goroutine stacks ---\n")
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	_, _ = f.Write(buf[:n])
	_ = f.Sync()
	_ = f.Close()

	path := filepath.Join(dir, fmt.Sprintf("crash-%d.log", time.Now().UnixNano()))
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("commit crash dump: %w", err)
	}
	_ = os.Chmod(path, 0o600)
	return path, nil
}
