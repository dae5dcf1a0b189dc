package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"plexsleep/internal/logging"
	"plexsleep/internal/primetime"
)

// Scalar is a config value that may be written as a string, number or bool
type Scalar string

// UnmarshalYAML accepts any scalar node
func (s *Scalar) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar value", node.Line)
	}
	if node.Tag == "!!null" {
		*s = ""
		return nil
	}
	*s = Scalar(node.Value)
	return nil
}

// UnmarshalTOML accepts strings, integers, floats and booleans
func (s *Scalar) UnmarshalTOML(v interface{}) error {
	switch val := v.(type) {
	case string:
		*s = Scalar(val)
	case int64, float64, bool:
		*s = Scalar(fmt.Sprint(val))
	default:
		return fmt.Errorf("expected a scalar value, got %T", v)
	}
	return nil
}

func (s Scalar) String() string {
	return string(s)
}

// File mirrors the flat key layout of config.yaml / config.toml
type File struct {
	ServerIP            Scalar   `yaml:"serverIp" toml:"serverIp"`
	ServerPort          Scalar   `yaml:"serverPort" toml:"serverPort"`
	PlexToken           Scalar   `yaml:"plexToken" toml:"plexToken"`
	SleepTimer          Scalar   `yaml:"sleepTimer" toml:"sleepTimer"`
	PrimeTimeStart      Scalar   `yaml:"primeTimeStart" toml:"primeTimeStart"`
	PrimeTimeEnd        Scalar   `yaml:"primeTimeEnd" toml:"primeTimeEnd"`
	LogLevel            Scalar   `yaml:"logLevel" toml:"logLevel"`
	LogFormat           Scalar   `yaml:"logFormat" toml:"logFormat"`
	LogFile             Scalar   `yaml:"logFile" toml:"logFile"`
	DryRun              Scalar   `yaml:"dryRun" toml:"dryRun"`
	ProbeTimeoutSeconds Scalar   `yaml:"probeTimeoutSeconds" toml:"probeTimeoutSeconds"`
	MetricsListen       Scalar   `yaml:"metricsListen" toml:"metricsListen"`
	InputDevices        []string `yaml:"inputDevices" toml:"inputDevices"`
}

// Config is the validated, immutable runtime configuration
type Config struct {
	// Path is the file the configuration was read from
	Path string

	ServerAddress  string
	ServerPort     int
	Token          string
	TimeoutSeconds int
	PrimeTime      primetime.Window

	LogLevel      logging.Level
	LogFormat     logging.Format
	LogFile       string
	DryRun        bool
	ProbeTimeout  time.Duration
	MetricsListen string
	InputDevices  []string

	// Warnings are non-fatal problems found while loading
	Warnings []string
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Path + ": " + e.Message
}
