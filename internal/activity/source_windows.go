//go:build windows

package activity

import (
	"context"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"plexsleep/internal/logging"
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procGetLastInputInfo = user32.NewProc("GetLastInputInfo")
)

type lastInputInfo struct {
	cbSize uint32
	dwTime uint32
}

func newPlatformSource(opts Options, logger *logging.Logger) Source {
	if err := procGetLastInputInfo.Find(); err != nil {
		logger.Warn("activity.unsupported", "GetLastInputInfo not available", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return newIdlePoller("GetLastInputInfo", opts.PollInterval, lastInputIdle, logger)
}

func lastInputIdle(_ context.Context) (time.Duration, error) {
	info := lastInputInfo{cbSize: uint32(unsafe.Sizeof(lastInputInfo{}))}

	ret, _, err := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info)))
	if ret == 0 {
		return 0, fmt.Errorf("GetLastInputInfo: %w", err)
	}

	// both counters are milliseconds since boot; uint32 arithmetic handles wraparound
	tick := uint32(windows.GetTickCount64())
	return time.Duration(tick-info.dwTime) * time.Millisecond, nil
}
