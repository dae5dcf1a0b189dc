package activity

import (
	"sync"
	"time"
)

// Recorder accepts local activity timestamps
type Recorder interface {
	Record(at time.Time)
}

// Cell holds the timestamp of the last qualifying local input.
// Input sources write it, the idle loop reads it.
type Cell struct {
	mu   sync.RWMutex
	last time.Time
	now  func() time.Time
}

// NewCell creates an empty cell; no activity has been seen yet
func NewCell() *Cell {
	return &Cell{now: time.Now}
}

// Record stores at if it is newer than the stored timestamp
func (c *Cell) Record(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if at.After(c.last) {
		c.last = at
	}
}

// LastActivity returns the stored timestamp, zero if none
func (c *Cell) LastActivity() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// SinceLastActivity returns the time elapsed since the last activity.
// ok is false when no activity has ever been recorded.
func (c *Cell) SinceLastActivity() (since time.Duration, ok bool) {
	c.mu.RLock()
	last := c.last
	c.mu.RUnlock()

	if last.IsZero() {
		return 0, false
	}
	return c.now().Sub(last), true
}
