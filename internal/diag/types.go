// Package diag bundles the config, the agent log and host facts into a ZIP
// that can be attached to a bug report without leaking the Plex token.
package diag

import (
	"path/filepath"
	"time"
)

// DefaultMaxLogBytes caps how much of the log tail goes into a package
const DefaultMaxLogBytes = 2 << 20

// Manifest represents the diagnostic package manifest
type Manifest struct {
	Timestamp string         `json:"timestamp"`
	Host      string         `json:"host"`
	Version   string         `json:"plexsleep_version"`
	Files     []ManifestFile `json:"files"`
}

// ManifestFile represents a file in the diagnostic package
type ManifestFile struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
}

// Config configures diagnostic collection
type Config struct {
	// LogFile is the agent log; empty skips log collection
	LogFile string
	// ConfigPath is the config file; empty skips config collection
	ConfigPath string
	// StatusURL is the status server's /status endpoint; empty skips it
	StatusURL   string
	OutputPath  string
	MaxLogBytes int64
	Version     string
}

// NewConfig creates a diagnostic config writing into outputDir
func NewConfig(version, outputDir string) *Config {
	return &Config{
		OutputPath:  filepath.Join(outputDir, generateOutputName(time.Now())),
		MaxLogBytes: DefaultMaxLogBytes,
		Version:     version,
	}
}

func generateOutputName(now time.Time) string {
	return "plexsleep-diag-" + now.UTC().Format("20060102-150405") + ".zip"
}
