// Package instancelock keeps a second agent on the same host from running
// its own idle loop. The lock is a lease file renewed while the agent runs;
// a lease that is not renewed in time, or whose process has exited, is
// treated as abandoned.
package instancelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"plexsleep/internal/fsutil"
	"plexsleep/internal/logging"
)

const (
	// LockFileName is the name of the lease file inside the state directory
	LockFileName = "agent.lock"

	// DefaultLeaseTimeout is how long an unrenewed lease stays valid
	DefaultLeaseTimeout = 3 * time.Minute
)

// ErrHeld is returned when another agent owns a valid lease
var ErrHeld = errors.New("another plexsleep agent is running")

// Lease is the content of the lock file
type Lease struct {
	Owner     string    `json:"owner"`
	PID       int       `json:"pid"`
	RenewedAt time.Time `json:"renewed_at"`
}

// Manager acquires, renews and releases the agent lease
type Manager struct {
	path         string
	owner        string
	leaseTimeout time.Duration
	now          func() time.Time
	alive        func(pid int) bool
	logger       *logging.Logger
}

// NewManager creates a lease manager with a fresh owner identity
func NewManager(stateDir string, logger *logging.Logger) *Manager {
	return &Manager{
		path:         filepath.Join(stateDir, LockFileName),
		owner:        uuid.NewString(),
		leaseTimeout: DefaultLeaseTimeout,
		now:          time.Now,
		alive:        processAlive,
		logger:       logger,
	}
}

// Path returns the lease file location
func (m *Manager) Path() string {
	return m.path
}

// Acquire takes the lease unless another owner holds a valid one. A lease
// left behind by a process that is no longer running is taken over at once.
func (m *Manager) Acquire() error {
	existing, err := m.load()
	if err != nil && !os.IsNotExist(err) {
		m.logger.Warn("agent.lock.corrupt", "Unreadable lock file, taking over", map[string]interface{}{
			"path":  m.path,
			"error": err.Error(),
		})
	}

	if existing != nil && existing.Owner != m.owner {
		age := m.now().Sub(existing.RenewedAt)
		switch {
		case !m.alive(existing.PID):
			m.logger.Warn("agent.lock.orphan_detected", "Agent lock left by exited process taken over", map[string]interface{}{
				"previous_pid": existing.PID,
				"age_seconds":  age.Seconds(),
			})
		case age <= m.leaseTimeout:
			return fmt.Errorf("%w (pid %d, renewed %s ago, lock %s)", ErrHeld, existing.PID, age.Round(time.Second), m.path)
		default:
			m.logger.Warn("agent.lock.stale_detected", "Stale agent lock taken over", map[string]interface{}{
				"previous_pid": existing.PID,
				"age_seconds":  age.Seconds(),
			})
		}
	}

	if err := m.save(); err != nil {
		return err
	}
	m.logger.Info("agent.lock.acquired", "Agent lock acquired", map[string]interface{}{
		"path": m.path,
	})
	return nil
}

// Renew refreshes the lease timestamp. It fails if the lease was taken over.
func (m *Manager) Renew() error {
	existing, err := m.load()
	if err != nil {
		return fmt.Errorf("failed to read lock: %w", err)
	}
	if existing.Owner != m.owner {
		return fmt.Errorf("%w: lease taken over by pid %d", ErrHeld, existing.PID)
	}
	return m.save()
}

// Release removes the lease if this manager still owns it
func (m *Manager) Release() error {
	existing, err := m.load()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read lock: %w", err)
	}
	if existing.Owner != m.owner {
		return nil
	}
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	m.logger.Info("agent.lock.released", "Agent lock released", nil)
	return nil
}

// Serve renews the lease until ctx is cancelled, then releases it
func (m *Manager) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.leaseTimeout / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := m.Release(); err != nil {
				m.logger.Warn("agent.lock.release_failed", "Failed to release agent lock", map[string]interface{}{
					"error": err.Error(),
				})
			}
			return ctx.Err()
		case <-ticker.C:
			if err := m.Renew(); err != nil {
				return err
			}
		}
	}
}

func (m *Manager) load() (*Lease, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	var lease Lease
	if err := json.Unmarshal(data, &lease); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lock: %w", err)
	}
	return &lease, nil
}

func (m *Manager) save() error {
	if err := fsutil.EnsureDir(filepath.Dir(m.path)); err != nil {
		return err
	}
	data, err := json.Marshal(Lease{
		Owner:     m.owner,
		PID:       os.Getpid(),
		RenewedAt: m.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal lock: %w", err)
	}
	return fsutil.AtomicWriteFile(m.path, data, fsutil.DefaultFilePermissions, m.logger)
}
