package idle

import (
	"context"
	"sync"
	"time"

	"plexsleep/internal/logging"
	"plexsleep/internal/plex"
	"plexsleep/internal/suspend"
)

// Machine is the idle state machine. Tick must only be called from one
// goroutine; Last and Counters may be read concurrently.
type Machine struct {
	config   Config
	probe    SessionLister
	activity ActivityReader
	executor suspend.Executor
	logger   *logging.Logger

	counters  Counters
	observers []func(Report)

	mu      sync.RWMutex
	last    Report
	hasLast bool
}

// NewMachine creates a state machine with zeroed counters
func NewMachine(config Config, probe SessionLister, activity ActivityReader, executor suspend.Executor, logger *logging.Logger) *Machine {
	return &Machine{
		config:   config,
		probe:    probe,
		activity: activity,
		executor: executor,
		logger:   logger,
	}
}

// OnReport registers fn to receive every tick report. Observers run on the
// tick goroutine and must not block. Register before Serve.
func (m *Machine) OnReport(fn func(Report)) {
	m.observers = append(m.observers, fn)
}

// Last returns the most recent report
func (m *Machine) Last() (Report, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last, m.hasLast
}

// Counters returns the counters after the most recent tick
func (m *Machine) Counters() Counters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Counters{InactiveSeconds: m.last.InactiveSeconds, SuspendPending: m.last.SuspendPending}
}

// Serve runs the first tick immediately and then one per TickInterval
// until ctx is cancelled.
func (m *Machine) Serve(ctx context.Context) error {
	m.logger.Info("idle.loop.started", "Idle loop started", map[string]interface{}{
		"timeout_s":  m.config.TimeoutSeconds,
		"prime_time": m.config.PrimeTime.String(),
		"interval_s": TickSeconds,
	})

	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		m.Tick(ctx, time.Now())

		select {
		case <-ctx.Done():
			m.logger.Info("idle.loop.stopped", "Idle loop stopped", nil)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick evaluates one decision step at now
func (m *Machine) Tick(ctx context.Context, now time.Time) Report {
	sessions, probeErr := m.probe.Sessions(ctx)
	if probeErr != nil {
		// fail-open: an unreachable server counts as no sessions
		m.logger.Warn("plex.probe.failed", "Session probe failed, assuming no active sessions", map[string]interface{}{
			"error": probeErr.Error(),
		})
		sessions = nil
	}
	if sessions == nil {
		sessions = []plex.Session{}
	}
	m.logSessions(sessions)

	report := Report{
		At:             now,
		Sessions:       sessions,
		TimeoutSeconds: m.config.TimeoutSeconds,
		LocalAvailable: m.activity.Available(),
	}
	if probeErr != nil {
		report.ProbeError = probeErr.Error()
	}

	if m.config.PrimeTime.Contains(now) {
		report.PrimeTime = true
		m.finish(&report)
		return report
	}

	wasPending := m.counters.SuspendPending

	if !wasPending && m.counters.InactiveSeconds >= m.config.TimeoutSeconds && len(sessions) == 0 {
		m.logger.Info("idle.timeout.reached", "Inactivity timeout reached, requesting suspend", map[string]interface{}{
			"inactive_s": m.counters.InactiveSeconds,
			"timeout_s":  m.config.TimeoutSeconds,
		})
		if err := m.executor.Suspend(ctx); err != nil {
			m.logger.Error("idle.suspend.failed", "Suspend request failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		m.counters.SuspendPending = true
		report.SuspendRequested = true
	}

	if since, ok := m.activity.SinceLastActivity(); ok && since < LocalActivityWindow {
		report.LocalActivity = true
	}

	if len(sessions) > 0 || report.LocalActivity {
		m.counters.InactiveSeconds = 0
	} else {
		m.counters.InactiveSeconds += TickSeconds
	}

	if wasPending {
		// the tick after a suspend request is treated as a fresh wake-up
		m.counters.SuspendPending = false
		m.counters.InactiveSeconds = 0
	}

	m.finish(&report)
	return report
}

func (m *Machine) finish(report *Report) {
	report.InactiveSeconds = m.counters.InactiveSeconds
	report.SuspendPending = m.counters.SuspendPending
	report.Status = status(*report)

	m.logger.Info("idle.tick", "Idle tick evaluated", map[string]interface{}{
		"status":            report.Status,
		"prime_time":        report.PrimeTime,
		"sessions":          len(report.Sessions),
		"inactive_s":        report.InactiveSeconds,
		"remaining_s":       report.RemainingSeconds(),
		"local_activity":    report.LocalActivity,
		"suspend_requested": report.SuspendRequested,
	})

	m.mu.Lock()
	m.last = *report
	m.hasLast = true
	m.mu.Unlock()

	for _, fn := range m.observers {
		fn(*report)
	}
}

func (m *Machine) logSessions(sessions []plex.Session) {
	for _, s := range sessions {
		payload := map[string]interface{}{
			"user":   s.User,
			"type":   string(s.MediaType),
			"title":  s.Title,
			"player": s.PlayerName,
		}
		if s.Artist != "" {
			payload["artist"] = s.Artist
		}
		m.logger.Info("plex.session", "Active session", payload)
	}
}

func status(r Report) string {
	switch {
	case r.PrimeTime:
		return StatusPrimeTime
	case r.SuspendRequested:
		return StatusSuspendTriggered
	case r.InactiveSeconds == 0:
		return StatusActive
	default:
		return StatusIdle
	}
}
