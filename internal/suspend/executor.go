// Package suspend requests a host suspend through the platform's power command.
package suspend

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"plexsleep/internal/logging"
)

// Executor asks the host to suspend. A nil error only means the request was
// issued; it does not confirm the machine went to sleep.
type Executor interface {
	Name() string
	Suspend(ctx context.Context) error
}

// runner executes a command and returns its combined output
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() // #nosec G204 -- fixed per-platform command table
}

var platformCommands = map[string][]string{
	"windows": {"rundll32.exe", "powrprof.dll,SetSuspendState", "0", "1", "0"},
	"linux":   {"systemctl", "suspend"},
	"darwin":  {"pmset", "sleepnow"},
}

// ForPlatform selects the executor for goos once at startup
func ForPlatform(goos string, logger *logging.Logger) Executor {
	argv, ok := platformCommands[goos]
	if !ok {
		return &unsupportedExecutor{goos: goos, logger: logger}
	}
	return &commandExecutor{
		argv:   argv,
		run:    execRunner,
		logger: logger,
	}
}

// commandExecutor runs a fixed suspend command
type commandExecutor struct {
	argv   []string
	run    runner
	logger *logging.Logger
}

func (e *commandExecutor) Name() string {
	return strings.Join(e.argv, " ")
}

func (e *commandExecutor) Suspend(ctx context.Context) error {
	e.logger.Info("power.suspend.requested", "Requesting host suspend", map[string]interface{}{
		"command": e.Name(),
	})

	out, err := e.run(ctx, e.argv[0], e.argv[1:]...)
	if err != nil {
		e.logger.Error("power.suspend.failed", "Suspend command failed", map[string]interface{}{
			"command": e.Name(),
			"error":   err.Error(),
			"output":  strings.TrimSpace(string(out)),
		})
		return fmt.Errorf("execute %s: %w", e.argv[0], err)
	}
	return nil
}

// unsupportedExecutor is selected on platforms without a known suspend command
type unsupportedExecutor struct {
	goos   string
	logger *logging.Logger
}

func (e *unsupportedExecutor) Name() string {
	return "unsupported"
}

func (e *unsupportedExecutor) Suspend(_ context.Context) error {
	e.logger.Warn("power.suspend.unsupported", "Suspend is not supported on this platform", map[string]interface{}{
		"os": e.goos,
	})
	return nil
}

// DryRun wraps an executor so that suspend requests are only logged
func DryRun(inner Executor, logger *logging.Logger) Executor {
	return &dryRunExecutor{inner: inner, logger: logger}
}

type dryRunExecutor struct {
	inner  Executor
	logger *logging.Logger
}

func (e *dryRunExecutor) Name() string {
	return "dry-run(" + e.inner.Name() + ")"
}

func (e *dryRunExecutor) Suspend(_ context.Context) error {
	e.logger.Info("power.suspend.dry_run", "Dry-run mode: would suspend now", map[string]interface{}{
		"command": e.inner.Name(),
	})
	return nil
}
