// Package idle decides on a fixed tick whether the host has been inactive long
// enough to be suspended.
package idle

import (
	"context"
	"time"

	"plexsleep/internal/plex"
	"plexsleep/internal/primetime"
)

const (
	// TickInterval is the period of the decision loop
	TickInterval = 60 * time.Second

	// TickSeconds is what one inactive tick adds to the counter
	TickSeconds = int(TickInterval / time.Second)

	// LocalActivityWindow is how recent local input must be to count for a tick
	LocalActivityWindow = 60 * time.Second

	// DefaultTimeoutSeconds applies when sleepTimer is not configured
	DefaultTimeoutSeconds = 900
)

// Status values reported per tick
const (
	StatusActive           = "active"
	StatusIdle             = "idle"
	StatusPrimeTime        = "prime_time"
	StatusSuspendTriggered = "suspend_triggered"
)

// Config is the immutable input of the state machine
type Config struct {
	// TimeoutSeconds is the inactivity required before a suspend request
	TimeoutSeconds int
	// PrimeTime is the daily blackout window
	PrimeTime primetime.Window
}

// Counters is the only state carried between ticks
type Counters struct {
	InactiveSeconds int  `json:"inactive_seconds"`
	SuspendPending  bool `json:"suspend_pending"`
}

// SessionLister returns the active remote playback sessions
type SessionLister interface {
	Sessions(ctx context.Context) ([]plex.Session, error)
}

// ActivityReader exposes the local input signal
type ActivityReader interface {
	Available() bool
	SinceLastActivity() (since time.Duration, ok bool)
}

// Report describes the outcome of one tick
type Report struct {
	At               time.Time      `json:"at"`
	Status           string         `json:"status"`
	PrimeTime        bool           `json:"prime_time"`
	Sessions         []plex.Session `json:"sessions"`
	InactiveSeconds  int            `json:"inactive_seconds"`
	TimeoutSeconds   int            `json:"timeout_seconds"`
	SuspendRequested bool           `json:"suspend_requested"`
	SuspendPending   bool           `json:"suspend_pending"`
	// LocalActivity is true when local input within LocalActivityWindow was seen
	LocalActivity  bool   `json:"local_activity"`
	LocalAvailable bool   `json:"local_available"`
	ProbeError     string `json:"probe_error,omitempty"`
}

// RemainingSeconds is the inactivity still needed before a suspend request
func (r Report) RemainingSeconds() int {
	remaining := r.TimeoutSeconds - r.InactiveSeconds
	if remaining < 0 {
		return 0
	}
	return remaining
}
