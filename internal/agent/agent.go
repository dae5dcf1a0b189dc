// Package agent wires the idle loop, the local input sampler and the status
// server into one supervised background process.
package agent

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"plexsleep/internal/activity"
	"plexsleep/internal/config"
	"plexsleep/internal/configdir"
	"plexsleep/internal/idle"
	"plexsleep/internal/instancelock"
	"plexsleep/internal/logging"
	"plexsleep/internal/metrics"
	"plexsleep/internal/plex"
	"plexsleep/internal/server"
	"plexsleep/internal/suspend"
)

const (
	supervisorName   = "plexsleep"
	failureThreshold = 5.0
	failureDecay     = 30.0
	failureBackoff   = 15 * time.Second
	shutdownTimeout  = 10 * time.Second
)

// Agent represents the background service
type Agent struct {
	config  config.Config
	logger  *logging.Logger
	version string

	sampler  *activity.Sampler
	probe    *plex.Client
	executor suspend.Executor
	machine  *idle.Machine
	metrics  *metrics.Metrics
	server   *server.Server
	lock     *instancelock.Manager
}

// New builds every component from cfg. Nothing runs until Run is called.
func New(cfg config.Config, logger *logging.Logger, version string) *Agent {
	a := &Agent{
		config:  cfg,
		logger:  logger,
		version: version,
	}

	a.probe = plex.NewClient(plex.Config{
		Address: cfg.ServerAddress,
		Port:    cfg.ServerPort,
		Token:   cfg.Token,
		Timeout: cfg.ProbeTimeout,
	}, logger)

	a.sampler = activity.NewSampler(activity.Options{Devices: cfg.InputDevices}, logger)

	a.executor = suspend.ForPlatform(runtime.GOOS, logger)
	if cfg.DryRun {
		a.executor = suspend.DryRun(a.executor, logger)
	}

	a.machine = idle.NewMachine(idle.Config{
		TimeoutSeconds: cfg.TimeoutSeconds,
		PrimeTime:      cfg.PrimeTime,
	}, a.probe, a.sampler, a.executor, logger)

	a.metrics = metrics.New()
	a.machine.OnReport(a.metrics.Observe)

	if cfg.MetricsListen != "" {
		a.server = server.New(cfg.MetricsListen, a.machine, a.metrics.Registry(), version, logger)
	}

	a.lock = instancelock.NewManager(configdir.StateDir(), logger)

	return a
}

// Machine exposes the idle state machine, mainly to register observers
// before Run.
func (a *Agent) Machine() *idle.Machine {
	return a.machine
}

// Endpoint is the Plex sessions URL being probed
func (a *Agent) Endpoint() string {
	return a.probe.Endpoint()
}

// InputSource names the local input source, or "none"
func (a *Agent) InputSource() string {
	return a.sampler.SourceName()
}

// ExecutorName names the suspend mechanism in use
func (a *Agent) ExecutorName() string {
	return a.executor.Name()
}

// Run starts all services and blocks until ctx is cancelled or SIGINT/SIGTERM
// is received. A requested shutdown returns nil. Run fails immediately when
// another agent holds the instance lock.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.lock.Acquire(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go a.ignoreReload(ctx, hup)

	a.logStartup()

	err := a.supervisor().Serve(ctx)
	if ctx.Err() != nil {
		a.logger.Info("agent.shutdown", "Agent stopped", nil)
		return nil
	}
	return err
}

func (a *Agent) logStartup() {
	a.logger.Info("agent.started", "Agent service started", map[string]interface{}{
		"pid":          os.Getpid(),
		"version":      a.version,
		"config":       a.config.Path,
		"plex":         a.probe.Endpoint(),
		"timeout_s":    a.config.TimeoutSeconds,
		"prime_time":   a.config.PrimeTime.String(),
		"input_source": a.sampler.SourceName(),
		"executor":     a.executor.Name(),
	})

	for _, w := range a.config.Warnings {
		a.logger.Warn("config.warning", w, nil)
	}
	if a.config.PrimeTime.Overnight() {
		a.logger.Info("config.prime_time.overnight", "Prime time window wraps past midnight", map[string]interface{}{
			"window": a.config.PrimeTime.String(),
		})
	}
}

func (a *Agent) ignoreReload(ctx context.Context, hup <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-hup:
			a.logger.Info("agent.signal_received", "Configuration is read once at startup, restart to apply changes", map[string]interface{}{
				"signal": sig.String(),
			})
		}
	}
}

func (a *Agent) supervisor() *suture.Supervisor {
	sup := suture.New(supervisorName, suture.Spec{
		EventHook:        eventHook(a.logger),
		FailureThreshold: failureThreshold,
		FailureDecay:     failureDecay,
		FailureBackoff:   failureBackoff,
		Timeout:          shutdownTimeout,
	})

	sup.Add(newService("instance-lock", a.lock.Serve))
	sup.Add(newService("activity-sampler", a.sampler.Serve))
	sup.Add(newService("idle-loop", a.machine.Serve))
	if a.server != nil {
		sup.Add(newService("status-server", a.server.Serve))
	}
	return sup
}

// service adapts a Serve function to suture.Service
type service struct {
	name  string
	serve func(ctx context.Context) error
}

func newService(name string, serve func(ctx context.Context) error) *service {
	return &service{name: name, serve: serve}
}

func (s *service) String() string {
	return s.name
}

// Serve runs the wrapped function. A missing input source is permanent and
// must not be restarted. Losing the instance lock stops the whole agent.
// Errors after cancellation are dropped.
func (s *service) Serve(ctx context.Context) error {
	err := s.serve(ctx)
	switch {
	case ctx.Err() != nil:
		return nil
	case errors.Is(err, activity.ErrUnavailable):
		return suture.ErrDoNotRestart
	case errors.Is(err, instancelock.ErrHeld):
		return suture.ErrTerminateSupervisorTree
	default:
		return err
	}
}

func eventHook(logger *logging.Logger) suture.EventHook {
	return func(e suture.Event) {
		payload := make(map[string]interface{}, len(e.Map()))
		for k, v := range e.Map() {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			payload[k] = v
		}

		switch e.Type() {
		case suture.EventTypeServicePanic, suture.EventTypeBackoff:
			logger.Error("agent.supervisor.event", e.String(), payload)
		default:
			logger.Warn("agent.supervisor.event", e.String(), payload)
		}
	}
}
