//go:build darwin

package activity

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"plexsleep/internal/logging"
)

func newPlatformSource(opts Options, logger *logging.Logger) Source {
	if _, err := exec.LookPath("ioreg"); err != nil {
		logger.Warn("activity.unsupported", "ioreg not found", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return newIdlePoller("IOHIDSystem", opts.PollInterval, hidIdleTime, logger)
}

func hidIdleTime(ctx context.Context) (time.Duration, error) {
	out, err := exec.CommandContext(ctx, "ioreg", "-c", "IOHIDSystem").Output()
	if err != nil {
		return 0, fmt.Errorf("ioreg: %w", err)
	}
	return parseHIDIdleTime(string(out))
}
