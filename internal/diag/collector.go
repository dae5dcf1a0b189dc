package diag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/goccy/go-json"

	"plexsleep/internal/logging"
)

const statusTimeout = 3 * time.Second

// Collector gathers diagnostic artifacts
type Collector struct {
	config     *Config
	redactor   *Redactor
	httpClient *http.Client
	logger     *logging.Logger
}

// NewCollector creates a new diagnostic collector
func NewCollector(config *Config, logger *logging.Logger) *Collector {
	return &Collector{
		config:     config,
		redactor:   NewRedactor(),
		httpClient: &http.Client{Timeout: statusTimeout},
		logger:     logger,
	}
}

// CollectLog returns the redacted tail of the agent log
func (c *Collector) CollectLog() (map[string][]byte, error) {
	files := make(map[string][]byte)
	if c.config.LogFile == "" {
		return files, nil
	}

	f, err := os.Open(c.config.LogFile)
	if err != nil {
		if os.IsNotExist(err) {
			c.logger.Warn("diag.collect.log.missing", "Log file not found", map[string]interface{}{
				"path": c.config.LogFile,
			})
			return files, nil
		}
		return files, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return files, fmt.Errorf("failed to stat log file: %w", err)
	}
	if limit := c.config.MaxLogBytes; limit > 0 && info.Size() > limit {
		if _, err := f.Seek(-limit, io.SeekEnd); err != nil {
			return files, fmt.Errorf("failed to seek log file: %w", err)
		}
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return files, fmt.Errorf("failed to read log file: %w", err)
	}

	files["logs/plexsleep.log"] = []byte(c.redactor.Redact(string(content)))
	c.logger.Info("diag.collect.log.complete", "Log collection complete", map[string]interface{}{
		"bytes":     len(content),
		"truncated": c.config.MaxLogBytes > 0 && info.Size() > c.config.MaxLogBytes,
	})
	return files, nil
}

// CollectConfig gathers and redacts the configuration file
func (c *Collector) CollectConfig() (map[string][]byte, error) {
	files := make(map[string][]byte)
	if c.config.ConfigPath == "" {
		return files, nil
	}

	content, err := os.ReadFile(c.config.ConfigPath)
	if err != nil {
		if os.IsNotExist(err) {
			c.logger.Warn("diag.collect.config.missing", "Config file not found", map[string]interface{}{
				"path": c.config.ConfigPath,
			})
			return files, nil
		}
		return files, fmt.Errorf("failed to read config: %w", err)
	}

	files["config/config.txt"] = []byte(c.redactor.Redact(string(content)))
	c.logger.Info("diag.collect.config.complete", "Config collection complete", map[string]interface{}{
		"redacted": true,
	})
	return files, nil
}

// CollectStatus fetches the live tick report from the status server
func (c *Collector) CollectStatus(ctx context.Context) (map[string][]byte, error) {
	files := make(map[string][]byte)
	if c.config.StatusURL == "" {
		return files, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.StatusURL, nil)
	if err != nil {
		return files, fmt.Errorf("build status request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return files, fmt.Errorf("fetch status: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return files, fmt.Errorf("read status: %w", err)
	}
	files["status.json"] = body
	return files, nil
}

// CollectSystemInfo gathers host and build facts
func (c *Collector) CollectSystemInfo() (map[string][]byte, error) {
	files := make(map[string][]byte)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	sysInfo := map[string]interface{}{
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"host":              hostname,
		"plexsleep_version": c.config.Version,
		"goos":              runtime.GOOS,
		"goarch":            runtime.GOARCH,
		"go_version":        runtime.Version(),
		"uid":               os.Getuid(),
		"display_set":       os.Getenv("DISPLAY") != "",
	}

	sysInfoJSON, err := json.MarshalIndent(sysInfo, "", "  ")
	if err != nil {
		return files, fmt.Errorf("failed to marshal system info: %w", err)
	}
	files["system_info.json"] = sysInfoJSON
	return files, nil
}

// CalculateSHA256 computes SHA256 hash of data
func CalculateSHA256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
