package activity

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"plexsleep/internal/logging"
)

// idleQuery asks the OS how long the user has been idle
type idleQuery func(ctx context.Context) (time.Duration, error)

// idlePoller converts an OS idle timer into activity timestamps
type idlePoller struct {
	name     string
	interval time.Duration
	query    idleQuery
	now      func() time.Time
	logger   *logging.Logger
}

func newIdlePoller(name string, interval time.Duration, query idleQuery, logger *logging.Logger) *idlePoller {
	return &idlePoller{
		name:     name,
		interval: interval,
		query:    query,
		now:      time.Now,
		logger:   logger,
	}
}

func (p *idlePoller) Name() string {
	return p.name
}

func (p *idlePoller) Run(ctx context.Context, rec Recorder) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.poll(ctx, rec)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *idlePoller) poll(ctx context.Context, rec Recorder) {
	idle, err := p.query(ctx)
	if err != nil {
		p.logger.Debug("activity.poll.failed", "Idle timer query failed", map[string]interface{}{
			"source": p.name,
			"error":  err.Error(),
		})
		return
	}
	rec.Record(p.now().Add(-idle))
}

// parseHIDIdleTime extracts HIDIdleTime (nanoseconds) from `ioreg -c IOHIDSystem` output
func parseHIDIdleTime(output string) (time.Duration, error) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "HIDIdleTime") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			break
		}
		ns, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse HIDIdleTime: %w", err)
		}
		return time.Duration(ns), nil
	}
	return 0, fmt.Errorf("HIDIdleTime not found in ioreg output")
}

// parseMillis parses xprintidle output
func parseMillis(output string) (time.Duration, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(output), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse idle milliseconds: %w", err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
