// Package activity tracks local human input (pointer motion, clicks and key
// presses) and exposes the time elapsed since the last one.
package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plexsleep/internal/logging"
)

const (
	// MovementThreshold is the minimum pointer displacement on either axis
	// that counts as activity.
	MovementThreshold = 3

	// DefaultPollInterval is used by sources that query the OS idle timer.
	DefaultPollInterval = 5 * time.Second
)

// ErrUnavailable is returned by Serve when no input source exists on this host
var ErrUnavailable = errors.New("no local input source available")

// Source produces activity timestamps until ctx is cancelled
type Source interface {
	Name() string
	Run(ctx context.Context, rec Recorder) error
}

// Options tune source selection
type Options struct {
	// Devices lists evdev device paths; empty means auto-discovery (Linux only)
	Devices []string
	// PollInterval is used by idle-timer based sources
	PollInterval time.Duration
}

// Sampler owns the activity cell and the platform input source feeding it
type Sampler struct {
	cell   *Cell
	source Source
	logger *logging.Logger
}

// NewSampler selects the input source for this platform.
// The sampler is disabled when none is usable.
func NewSampler(opts Options, logger *logging.Logger) *Sampler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return New(newPlatformSource(opts, logger), logger)
}

// New creates a sampler around an explicit source; a nil source disables it
func New(source Source, logger *logging.Logger) *Sampler {
	return &Sampler{
		cell:   NewCell(),
		source: source,
		logger: logger,
	}
}

// Available reports whether a local input source is active
func (s *Sampler) Available() bool {
	return s.source != nil
}

// SourceName names the active source, or "none"
func (s *Sampler) SourceName() string {
	if s.source == nil {
		return "none"
	}
	return s.source.Name()
}

// SinceLastActivity returns the time since the last local input.
// ok is false when the sampler is disabled or nothing was seen yet.
func (s *Sampler) SinceLastActivity() (since time.Duration, ok bool) {
	if s.source == nil {
		return 0, false
	}
	return s.cell.SinceLastActivity()
}

// Serve runs the input source until ctx is cancelled
func (s *Sampler) Serve(ctx context.Context) error {
	if s.source == nil {
		s.logger.Warn("activity.disabled", "No local input source available, local activity is ignored", nil)
		return ErrUnavailable
	}

	s.logger.Info("activity.started", "Local input listener started", map[string]interface{}{
		"source": s.source.Name(),
	})

	err := s.source.Run(ctx, s.cell)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		err = errors.New("source stopped")
	}

	s.logger.Warn("activity.source.failed", "Local input listener stopped", map[string]interface{}{
		"source": s.source.Name(),
		"error":  err.Error(),
	})
	return fmt.Errorf("input source %s: %w", s.source.Name(), err)
}
