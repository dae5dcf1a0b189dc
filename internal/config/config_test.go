package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"plexsleep/internal/configdir"
	"plexsleep/internal/logging"
)

const validYAML = `serverIp: 192.168.1.10
serverPort: 32400
plexToken: abc123
sleepTimer: 20
primeTimeStart: "19:00"
primeTimeEnd: "23:00"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFrom_ValidYAML(t *testing.T) {
	cfg, err := LoadFrom(writeFile(t, "config.yaml", validYAML), nil)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"ServerAddress", cfg.ServerAddress, "192.168.1.10"},
		{"ServerPort", cfg.ServerPort, 32400},
		{"Token", cfg.Token, "abc123"},
		{"TimeoutSeconds", cfg.TimeoutSeconds, 1200},
		{"PrimeTime", cfg.PrimeTime.String(), "19:00-23:00"},
		{"LogLevel", cfg.LogLevel, logging.LevelInfo},
		{"LogFormat", cfg.LogFormat, logging.FormatText},
		{"DryRun", cfg.DryRun, false},
		{"ProbeTimeout", cfg.ProbeTimeout, 10 * time.Second},
		{"MetricsListen", cfg.MetricsListen, ""},
		{"Warnings", len(cfg.Warnings), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestLoadFrom_ScalarsAsStrings(t *testing.T) {
	content := `serverIp: "10.0.0.2"
serverPort: "32400"
plexToken: "tok"
sleepTimer: "5"
primeTimeStart: "20:00"
primeTimeEnd: "02:00"
dryRun: "yes"
`
	_, err := LoadFrom(writeFile(t, "config.yaml", content), nil)
	if err == nil || !strings.Contains(err.Error(), "dryRun") {
		t.Fatalf("expected dryRun validation error, got %v", err)
	}

	content = strings.Replace(content, `"yes"`, `"true"`, 1)
	cfg, err := LoadFrom(writeFile(t, "config.yaml", content), nil)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.ServerPort != 32400 || cfg.TimeoutSeconds != 300 || !cfg.DryRun {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.PrimeTime.Overnight() {
		t.Error("expected overnight prime time window")
	}
}

func TestLoadFrom_TOML(t *testing.T) {
	content := `serverIp = "192.168.1.10"
serverPort = 32400
plexToken = "abc123"
sleepTimer = 30
primeTimeStart = "18:30"
primeTimeEnd = "22:15"
logFormat = "json"
dryRun = true
metricsListen = "127.0.0.1:9731"
inputDevices = ["/dev/input/event3"]
`
	cfg, err := LoadFrom(writeFile(t, "config.toml", content), nil)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.ServerPort != 32400 || cfg.TimeoutSeconds != 1800 {
		t.Errorf("unexpected numbers: port=%d timeout=%d", cfg.ServerPort, cfg.TimeoutSeconds)
	}
	if cfg.LogFormat != logging.FormatJSON || !cfg.DryRun || cfg.MetricsListen != "127.0.0.1:9731" {
		t.Errorf("unexpected optional keys %+v", cfg)
	}
	if len(cfg.InputDevices) != 1 || cfg.InputDevices[0] != "/dev/input/event3" {
		t.Errorf("unexpected input devices %v", cfg.InputDevices)
	}
}

func TestLoadFrom_SleepTimerDefault(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "missing", value: ""},
		{name: "non-numeric", value: "sleepTimer: soon\n"},
		{name: "fractional", value: "sleepTimer: 2.5\n"},
		{name: "negative", value: "sleepTimer: -5\n"},
		{name: "quoted negative", value: "sleepTimer: \"-5\"\n"},
		{name: "explicit plus sign", value: "sleepTimer: \"+5\"\n"},
	}

	base := strings.Replace(validYAML, "sleepTimer: 20\n", "", 1)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFrom(writeFile(t, "config.yaml", base+tt.value), nil)
			if err != nil {
				t.Fatalf("LoadFrom() error = %v", err)
			}
			if cfg.TimeoutSeconds != DefaultSleepTimerMinutes*60 {
				t.Errorf("TimeoutSeconds = %d, want %d", cfg.TimeoutSeconds, DefaultSleepTimerMinutes*60)
			}
			if len(cfg.Warnings) != 1 {
				t.Errorf("expected one warning, got %v", cfg.Warnings)
			}
		})
	}
}

func TestLoadFrom_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		replace  [2]string
		wantPath string
	}{
		{name: "missing server", replace: [2]string{"serverIp: 192.168.1.10\n", ""}, wantPath: "serverIp"},
		{name: "empty token", replace: [2]string{"plexToken: abc123", "plexToken: \"\""}, wantPath: "plexToken"},
		{name: "port out of range", replace: [2]string{"32400", "70000"}, wantPath: "serverPort"},
		{name: "port not a number", replace: [2]string{"32400", "plex"}, wantPath: "serverPort"},
		{name: "bad prime time", replace: [2]string{`"19:00"`, `"7pm"`}, wantPath: "primeTimeStart"},
		{name: "missing prime end", replace: [2]string{"primeTimeEnd: \"23:00\"\n", ""}, wantPath: "primeTimeEnd"},
		{name: "bad log level", replace: [2]string{"sleepTimer: 20", "sleepTimer: 20\nlogLevel: loud"}, wantPath: "logLevel"},
		{name: "bad log format", replace: [2]string{"sleepTimer: 20", "sleepTimer: 20\nlogFormat: xml"}, wantPath: "logFormat"},
		{name: "probe timeout too long", replace: [2]string{"sleepTimer: 20", "sleepTimer: 20\nprobeTimeoutSeconds: 60"}, wantPath: "probeTimeoutSeconds"},
		{name: "bad listen address", replace: [2]string{"sleepTimer: 20", "sleepTimer: 20\nmetricsListen: nope"}, wantPath: "metricsListen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := strings.Replace(validYAML, tt.replace[0], tt.replace[1], 1)
			_, err := LoadFrom(writeFile(t, "config.yaml", content), nil)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantPath+":") {
				t.Errorf("error %q does not mention %s", err, tt.wantPath)
			}
		})
	}
}

func TestLoadFrom_CollectsAllErrors(t *testing.T) {
	_, err := LoadFrom(writeFile(t, "config.yaml", "logLevel: info\n"), nil)
	if err == nil {
		t.Fatal("expected error for empty config")
	}
	if !strings.Contains(err.Error(), "5 validation errors") {
		t.Errorf("expected all required keys reported, got %q", err)
	}
}

func TestLoadFrom_SecretReference(t *testing.T) {
	content := strings.Replace(validYAML, "plexToken: abc123", `plexToken: "secret:plex_token"`, 1)
	path := writeFile(t, "config.yaml", content)

	resolve := func(ref string) (string, error) {
		if ref != "secret:plex_token" {
			return "", errors.New("unexpected ref")
		}
		return "from-store", nil
	}
	cfg, err := LoadFrom(path, resolve)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Token != "from-store" {
		t.Errorf("Token = %q", cfg.Token)
	}

	if _, err := LoadFrom(path, nil); err == nil {
		t.Error("expected error without resolver")
	}

	failing := func(string) (string, error) { return "", errors.New("secret not found") }
	if _, err := LoadFrom(path, failing); err == nil || !strings.Contains(err.Error(), "plexToken") {
		t.Errorf("expected plexToken error, got %v", err)
	}
}

func TestLoadFrom_Errors(t *testing.T) {
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadFrom(writeFile(t, "config.yaml", "serverIp: [unclosed"), nil); err == nil {
		t.Error("expected error for malformed YAML")
	}
	if _, err := LoadFrom(writeFile(t, "config.yaml", "serverIp:\n  nested: map\n"), nil); err == nil {
		t.Error("expected error for non-scalar value")
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(configdir.ConfigDirEnv, dir)
	t.Setenv(PathEnv, "")

	if got, _ := ResolvePath("/explicit.yaml"); got != "/explicit.yaml" {
		t.Errorf("explicit path ignored: %q", got)
	}

	t.Setenv(PathEnv, "/from/env.yaml")
	if got, _ := ResolvePath(""); got != "/from/env.yaml" {
		t.Errorf("env path ignored: %q", got)
	}
	t.Setenv(PathEnv, "")

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(wd, configFileName)); err == nil {
		t.Skip("working directory contains a config.yaml")
	}

	if _, err := ResolvePath(""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	want := filepath.Join(dir, configFileName)
	if err := os.WriteFile(want, []byte(validYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	if got, err := ResolvePath(""); err != nil || got != want {
		t.Errorf("ResolvePath() = %q, %v; want %q", got, err, want)
	}
}
