package diag

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"plexsleep/internal/logging"
)

// ManifestName is the manifest entry inside every package
const ManifestName = "diag_manifest.json"

// Packager creates diagnostic ZIP packages
type Packager struct {
	config    *Config
	collector *Collector
	logger    *logging.Logger
}

// NewPackager creates a new diagnostic packager
func NewPackager(config *Config, logger *logging.Logger) *Packager {
	return &Packager{
		config:    config,
		collector: NewCollector(config, logger),
		logger:    logger,
	}
}

// CreatePackage collects every artifact and writes the ZIP. A failing
// collector is logged and skipped so a partial package is still produced.
func (p *Packager) CreatePackage(ctx context.Context) (string, error) {
	p.logger.Info("diag.package.start", "Creating diagnostic package", map[string]interface{}{
		"output": p.config.OutputPath,
	})

	allFiles := make(map[string][]byte)
	collectors := []struct {
		name    string
		collect func() (map[string][]byte, error)
	}{
		{"log", p.collector.CollectLog},
		{"config", p.collector.CollectConfig},
		{"status", func() (map[string][]byte, error) { return p.collector.CollectStatus(ctx) }},
		{"sysinfo", p.collector.CollectSystemInfo},
	}
	for _, col := range collectors {
		files, err := col.collect()
		if err != nil {
			p.logger.Warn("diag.package.collect_failed", "Collector failed, continuing with a partial package", map[string]interface{}{
				"collector": col.name,
				"error":     err.Error(),
			})
		}
		for path, content := range files {
			allFiles[path] = content
		}
	}

	manifestJSON, err := json.MarshalIndent(p.createManifest(allFiles), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}
	allFiles[ManifestName] = manifestJSON

	if err := p.createZIP(allFiles); err != nil {
		return "", fmt.Errorf("failed to create ZIP: %w", err)
	}

	p.logger.Info("diag.package.complete", "Diagnostic package created", map[string]interface{}{
		"output":     p.config.OutputPath,
		"file_count": len(allFiles),
	})
	return p.config.OutputPath, nil
}

func (p *Packager) createManifest(files map[string][]byte) *Manifest {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	manifest := &Manifest{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Host:      hostname,
		Version:   p.config.Version,
		Files:     make([]ManifestFile, 0, len(files)),
	}
	for _, path := range sortedPaths(files) {
		manifest.Files = append(manifest.Files, ManifestFile{
			Path:      path,
			SizeBytes: int64(len(files[path])),
			SHA256:    CalculateSHA256(files[path]),
		})
	}
	return manifest
}

func (p *Packager) createZIP(files map[string][]byte) (err error) {
	zipFile, err := os.OpenFile(p.config.OutputPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if closeErr := zipFile.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	zipWriter := zip.NewWriter(zipFile)
	for _, path := range sortedPaths(files) {
		w, err := zipWriter.Create(path)
		if err != nil {
			return fmt.Errorf("add %s: %w", path, err)
		}
		if _, err := w.Write(files[path]); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return zipWriter.Close()
}

func sortedPaths(files map[string][]byte) []string {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
