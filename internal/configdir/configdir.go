package configdir

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigDir = "/etc/plexsleep"
	defaultStateDir  = "/var/lib/plexsleep"

	// ConfigDirEnv overrides the configuration directory
	ConfigDirEnv = "PLEXSLEEP_CONFIG_DIR"
	// StateDirEnv overrides the state directory
	StateDirEnv = "PLEXSLEEP_STATE_DIR"
)

// ConfigDir resolves the configuration directory respecting overrides
func ConfigDir() string {
	if env := os.Getenv(ConfigDirEnv); env != "" {
		if abs, err := filepath.Abs(env); err == nil {
			return abs
		}
	}
	return defaultConfigDir
}

// StateDir resolves the directory holding secrets and the log file.
// Non-root users fall back to ~/.local/state/plexsleep.
func StateDir() string {
	if env := os.Getenv(StateDirEnv); env != "" {
		if abs, err := filepath.Abs(env); err == nil {
			return abs
		}
		return env
	}
	if os.Geteuid() == 0 {
		return defaultStateDir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "plexsleep")
	}
	return filepath.Join(os.TempDir(), "plexsleep")
}
