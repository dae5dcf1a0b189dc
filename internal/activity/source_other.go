//go:build !linux && !windows && !darwin

package activity

import "plexsleep/internal/logging"

func newPlatformSource(_ Options, _ *logging.Logger) Source {
	return nil
}
