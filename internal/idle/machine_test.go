package idle

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"plexsleep/internal/logging"
	"plexsleep/internal/plex"
	"plexsleep/internal/primetime"
)

type fakeProbe struct {
	mu       sync.Mutex
	sessions []plex.Session
	err      error
	calls    int
}

func (p *fakeProbe) Sessions(context.Context) ([]plex.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.sessions, p.err
}

func (p *fakeProbe) set(sessions []plex.Session, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions, p.err = sessions, err
}

type fakeActivity struct {
	available bool
	since     time.Duration
	known     bool
}

func (a *fakeActivity) Available() bool { return a.available }

func (a *fakeActivity) SinceLastActivity() (time.Duration, bool) {
	return a.since, a.known
}

type fakeExecutor struct {
	calls int
	err   error
}

func (e *fakeExecutor) Name() string { return "fake" }

func (e *fakeExecutor) Suspend(context.Context) error {
	e.calls++
	return e.err
}

var video = plex.Session{User: "alice", Title: "Film", MediaType: plex.MediaVideo, PlayerName: "TV"}

// morning is outside the 19:00-23:00 window used by these tests
var morning = time.Date(2026, 5, 4, 8, 0, 0, 0, time.Local)

type harness struct {
	machine  *Machine
	probe    *fakeProbe
	activity *fakeActivity
	executor *fakeExecutor
}

func newHarness(t *testing.T, timeout int) *harness {
	t.Helper()
	window, err := primetime.ParseWindow("19:00", "23:00")
	if err != nil {
		t.Fatalf("parse window: %v", err)
	}
	h := &harness{
		probe:    &fakeProbe{},
		activity: &fakeActivity{},
		executor: &fakeExecutor{},
	}
	logger := logging.NewWriterLogger(logging.LevelError, logging.FormatText, &bytes.Buffer{})
	h.machine = NewMachine(Config{TimeoutSeconds: timeout, PrimeTime: window}, h.probe, h.activity, h.executor, logger)
	return h
}

// tick runs tick number n (1-based) of a sequence starting at morning
func (h *harness) tick(n int) Report {
	return h.machine.Tick(context.Background(), morning.Add(time.Duration(n-1)*TickInterval))
}

func TestMachine_TimeoutScenario(t *testing.T) {
	h := newHarness(t, 900)

	for n := 1; n <= 14; n++ {
		h.tick(n)
	}
	if got := h.machine.Counters().InactiveSeconds; got != 840 {
		t.Fatalf("after 14 ticks expected 840, got %d", got)
	}

	r := h.tick(15)
	if r.InactiveSeconds != 900 || r.SuspendRequested {
		t.Fatalf("tick 15: expected 900 without suspend, got %+v", r)
	}
	if h.executor.calls != 0 {
		t.Fatalf("suspend must not fire before the counter reached the timeout on entry")
	}

	r = h.tick(16)
	if !r.SuspendRequested || !r.SuspendPending || r.Status != StatusSuspendTriggered {
		t.Fatalf("tick 16: expected suspend request, got %+v", r)
	}
	if h.executor.calls != 1 {
		t.Fatalf("expected exactly one suspend, got %d", h.executor.calls)
	}

	r = h.tick(17)
	if r.InactiveSeconds != 0 || r.SuspendPending || r.SuspendRequested {
		t.Fatalf("tick 17: expected reset after wake, got %+v", r)
	}
	if h.executor.calls != 1 {
		t.Fatalf("suspend fired again on the wake tick")
	}

	r = h.tick(18)
	if r.InactiveSeconds != TickSeconds {
		t.Errorf("tick 18: expected counting to resume at %d, got %d", TickSeconds, r.InactiveSeconds)
	}
}

func TestMachine_SessionResetsCounter(t *testing.T) {
	h := newHarness(t, 900)

	for n := 1; n <= 9; n++ {
		h.tick(n)
	}
	h.probe.set([]plex.Session{video}, nil)

	r := h.tick(10)
	if r.InactiveSeconds != 0 {
		t.Errorf("expected reset on session, got %d", r.InactiveSeconds)
	}
	if len(r.Sessions) != 1 || r.Status != StatusActive {
		t.Errorf("unexpected report %+v", r)
	}
}

func TestMachine_SessionBlocksSuspend(t *testing.T) {
	h := newHarness(t, 120)
	for n := 1; n <= 2; n++ {
		h.tick(n)
	}

	h.probe.set([]plex.Session{video}, nil)
	r := h.tick(3)
	if r.SuspendRequested || h.executor.calls != 0 {
		t.Fatal("suspend must not fire while a session is active")
	}
	if r.InactiveSeconds != 0 {
		t.Errorf("expected reset, got %d", r.InactiveSeconds)
	}
}

func TestMachine_PrimeTimeFreezesCounters(t *testing.T) {
	h := newHarness(t, 180)
	h.tick(1)
	h.tick(2)
	h.tick(3) // counter reached the timeout

	before := h.machine.Counters()
	evening := time.Date(2026, 5, 4, 20, 0, 0, 0, time.Local)

	tests := []struct {
		name     string
		sessions []plex.Session
		activity bool
	}{
		{name: "idle"},
		{name: "session", sessions: []plex.Session{video}},
		{name: "local input", activity: true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.probe.set(tt.sessions, nil)
			h.activity.known, h.activity.since = tt.activity, time.Second

			r := h.machine.Tick(context.Background(), evening.Add(time.Duration(i)*TickInterval))
			if !r.PrimeTime || r.Status != StatusPrimeTime {
				t.Errorf("expected prime time report, got %+v", r)
			}
			if got := h.machine.Counters(); got != before {
				t.Errorf("counters changed during prime time: %+v -> %+v", before, got)
			}
			if h.executor.calls != 0 {
				t.Error("suspend fired during prime time")
			}
		})
	}

	// first tick after prime time evaluates the frozen counter
	h.probe.set(nil, nil)
	h.activity.known = false
	r := h.tick(4)
	if !r.SuspendRequested {
		t.Error("expected suspend once prime time is over")
	}
}

func TestMachine_ProbeErrorFailsOpen(t *testing.T) {
	h := newHarness(t, 60)
	h.probe.set([]plex.Session{video}, errors.New("connection refused"))

	r := h.tick(1)
	if r.ProbeError == "" {
		t.Error("expected probe error in report")
	}
	if len(r.Sessions) != 0 {
		t.Errorf("failed probe must count as no sessions, got %d", len(r.Sessions))
	}
	if r.InactiveSeconds != TickSeconds {
		t.Errorf("expected counter to advance, got %d", r.InactiveSeconds)
	}

	r = h.tick(2)
	if !r.SuspendRequested {
		t.Error("expected suspend with failing probe")
	}

	h.probe.set(nil, nil)
	r = h.tick(3)
	if r.ProbeError != "" || r.InactiveSeconds != 0 {
		t.Errorf("loop did not continue normally: %+v", r)
	}
}

func TestMachine_LocalActivity(t *testing.T) {
	tests := []struct {
		name      string
		known     bool
		since     time.Duration
		wantReset bool
	}{
		{name: "recent input", known: true, since: 10 * time.Second, wantReset: true},
		{name: "just under window", known: true, since: 59*time.Second + 999*time.Millisecond, wantReset: true},
		{name: "exactly window", known: true, since: 60 * time.Second},
		{name: "old input", known: true, since: 10 * time.Minute},
		{name: "never seen", known: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 900)
			h.tick(1)
			h.tick(2)

			h.activity.known, h.activity.since = tt.known, tt.since
			r := h.tick(3)

			if tt.wantReset && r.InactiveSeconds != 0 {
				t.Errorf("expected reset, got %d", r.InactiveSeconds)
			}
			if !tt.wantReset && r.InactiveSeconds != 3*TickSeconds {
				t.Errorf("expected %d, got %d", 3*TickSeconds, r.InactiveSeconds)
			}
			if r.LocalActivity != tt.wantReset {
				t.Errorf("expected LocalActivity=%v", tt.wantReset)
			}
		})
	}
}

func TestMachine_SuspendAndResetSameTick(t *testing.T) {
	h := newHarness(t, 60)
	h.tick(1)

	// input arrives on the tick that requests suspend; both branches apply
	h.activity.known, h.activity.since = true, time.Second
	r := h.tick(2)
	if !r.SuspendRequested {
		t.Fatal("expected suspend request")
	}
	if r.InactiveSeconds != 0 || !r.SuspendPending {
		t.Errorf("expected counter reset with pending flag, got %+v", r)
	}
}

func TestMachine_SuspendErrorStillSetsPending(t *testing.T) {
	h := newHarness(t, 0)
	h.executor.err = errors.New("permission denied")

	r := h.tick(1)
	if !r.SuspendRequested || !r.SuspendPending {
		t.Errorf("expected pending after failed request, got %+v", r)
	}
	r = h.tick(2)
	if r.SuspendRequested || r.SuspendPending {
		t.Errorf("expected guard tick without request, got %+v", r)
	}
	r = h.tick(3)
	if !r.SuspendRequested {
		t.Error("expected the next request once the guard tick passed")
	}
}

func TestMachine_ObserversAndLast(t *testing.T) {
	h := newHarness(t, 900)

	if _, ok := h.machine.Last(); ok {
		t.Error("expected no report before the first tick")
	}

	var got []Report
	h.machine.OnReport(func(r Report) { got = append(got, r) })

	h.tick(1)
	h.tick(2)

	if len(got) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(got))
	}
	last, ok := h.machine.Last()
	if !ok || last.InactiveSeconds != 2*TickSeconds {
		t.Errorf("unexpected last report %+v", last)
	}
	if last.RemainingSeconds() != 900-2*TickSeconds {
		t.Errorf("unexpected remaining %d", last.RemainingSeconds())
	}
}

func TestMachine_ServeTicksImmediately(t *testing.T) {
	h := newHarness(t, 900)

	ticked := make(chan struct{}, 1)
	h.machine.OnReport(func(Report) {
		select {
		case ticked <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.machine.Serve(ctx) }()

	select {
	case <-ticked:
	case <-time.After(2 * time.Second):
		t.Fatal("first tick did not run immediately")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}
