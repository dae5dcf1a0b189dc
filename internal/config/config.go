// Package config loads and validates the plexsleep configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"plexsleep/internal/configdir"
)

const (
	configFileName = "config.yaml"

	// PathEnv names a config file directly
	PathEnv = "PLEXSLEEP_CONFIG"
)

// SecretResolver turns a "secret:<name>" reference into its stored value
type SecretResolver func(ref string) (string, error)

// ErrNotFound is returned when no configuration file exists in any lookup location
var ErrNotFound = errors.New("no configuration file found")

// ResolvePath picks the config file. Priority: explicit path, PLEXSLEEP_CONFIG,
// the config directory, then the working directory.
func ResolvePath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv(PathEnv); env != "" {
		return env, nil
	}

	candidates := []string{
		filepath.Join(configdir.ConfigDir(), configFileName),
		configFileName,
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w (looked in %s)", ErrNotFound, strings.Join(candidates, ", "))
}

// Load resolves the config path and loads it
func Load(explicit string, resolve SecretResolver) (Config, error) {
	path, err := ResolvePath(explicit)
	if err != nil {
		return Config{}, err
	}
	return LoadFrom(path, resolve)
}

// LoadFrom reads, decodes and validates a specific file
func LoadFrom(path string, resolve SecretResolver) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path is chosen by the operator
	if err != nil {
		return Config{}, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	file, err := decode(path, data)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg, validationErrors := build(file, resolve)
	cfg.Path = path
	if len(validationErrors) > 0 {
		return cfg, fmt.Errorf("config.validation.error: %v", formatValidationErrors(validationErrors))
	}
	return cfg, nil
}

// decode picks TOML for .toml files and YAML otherwise
func decode(path string, data []byte) (File, error) {
	var file File

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &file); err != nil {
			return file, fmt.Errorf("toml: %w", err)
		}
		return file, nil
	}

	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("yaml: %w", err)
	}
	return file, nil
}

// formatValidationErrors formats validation errors for display
func formatValidationErrors(errs []ValidationError) string {
	if len(errs) == 0 {
		return ""
	}
	if len(errs) == 1 {
		return errs[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation errors:\n", len(errs))
	for _, err := range errs {
		b.WriteString("  - " + err.Error() + "\n")
	}
	return b.String()
}
