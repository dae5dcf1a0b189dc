//go:build linux

package activity

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"plexsleep/internal/logging"
)

const inputDeviceGlob = "/dev/input/event*"

// timevalSize is the size of the timestamp that heads every input_event
var timevalSize = int(unsafe.Sizeof(unix.Timeval{}))

func newPlatformSource(opts Options, logger *logging.Logger) Source {
	paths := opts.Devices
	glob := ""
	if len(paths) == 0 {
		glob = inputDeviceGlob
		paths, _ = filepath.Glob(glob)
	}

	readable := readableDevices(paths, logger)
	if len(readable) > 0 {
		return &evdevSource{
			paths:     readable,
			glob:      glob,
			threshold: MovementThreshold,
			logger:    logger,
		}
	}

	if os.Getenv("DISPLAY") != "" {
		if _, err := exec.LookPath("xprintidle"); err == nil {
			return newIdlePoller("xprintidle", opts.PollInterval, xprintidle, logger)
		}
	}

	return nil
}

func readableDevices(paths []string, logger *logging.Logger) []string {
	readable := make([]string, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(filepath.Clean(p)) // #nosec G304 -- input device paths come from config or /dev/input
		if err != nil {
			logger.Debug("activity.device.skipped", "Input device not readable", map[string]interface{}{
				"path":  p,
				"error": err.Error(),
			})
			continue
		}
		_ = f.Close()
		readable = append(readable, p)
	}
	return readable
}

// evdevSource reads raw kernel input events from /dev/input. With a glob
// set, the device list is rediscovered on every Run so devices plugged in
// since the last start are picked up after a restart.
type evdevSource struct {
	paths     []string
	glob      string
	threshold int
	logger    *logging.Logger
}

func (s *evdevSource) Name() string {
	return "evdev"
}

// devicePaths returns the devices to open on this run
func (s *evdevSource) devicePaths() []string {
	if s.glob == "" {
		return s.paths
	}
	found, err := filepath.Glob(s.glob)
	if err != nil {
		return s.paths
	}
	if readable := readableDevices(found, s.logger); len(readable) > 0 {
		s.paths = readable
	}
	return s.paths
}

func (s *evdevSource) Run(ctx context.Context, rec Recorder) error {
	paths := s.devicePaths()
	files := make([]*os.File, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(filepath.Clean(p)) // #nosec G304 -- see readableDevices
		if err != nil {
			s.logger.Warn("activity.device.open_failed", "Failed to open input device", map[string]interface{}{
				"path":  p,
				"error": err.Error(),
			})
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return fmt.Errorf("no input device could be opened")
	}

	s.logger.Debug("activity.devices.opened", "Listening on input devices", map[string]interface{}{
		"count": len(files),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(files))
	for _, f := range files {
		go s.readDevice(f, rec, errCh)
	}

	go func() {
		<-ctx.Done()
		for _, f := range files {
			_ = f.Close()
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *evdevSource) readDevice(f *os.File, rec Recorder, errCh chan<- error) {
	filter := newPointerFilter(s.threshold)
	record := make([]byte, timevalSize+8)

	for {
		if _, err := io.ReadFull(f, record); err != nil {
			errCh <- fmt.Errorf("read %s: %w", f.Name(), err)
			return
		}
		if filter.handle(decodeEvent(record, timevalSize)) {
			rec.Record(time.Now())
		}
	}
}

func xprintidle(ctx context.Context) (time.Duration, error) {
	out, err := exec.CommandContext(ctx, "xprintidle").Output()
	if err != nil {
		return 0, fmt.Errorf("xprintidle: %w", err)
	}
	return parseMillis(string(out))
}
