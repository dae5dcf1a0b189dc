package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"plexsleep/internal/logging"
	"plexsleep/internal/primetime"
	"plexsleep/internal/secrets"
)

// build validates a decoded file and converts it into a Config.
// Every problem is collected before returning.
func build(f File, resolve SecretResolver) (Config, []ValidationError) {
	var errs []ValidationError
	cfg := Config{
		LogFile:      strings.TrimSpace(f.LogFile.String()),
		InputDevices: append([]string(nil), f.InputDevices...),
	}

	cfg.ServerAddress, errs = required(errs, "serverIp", f.ServerIP)
	cfg.ServerPort, errs = validatePort(errs, f.ServerPort)
	cfg.Token, errs = validateToken(errs, f.PlexToken, resolve)
	cfg.TimeoutSeconds, cfg.Warnings = sleepTimer(f.SleepTimer)
	cfg.PrimeTime, errs = validatePrimeTime(errs, f.PrimeTimeStart, f.PrimeTimeEnd)
	cfg.LogLevel, cfg.LogFormat, errs = validateLogging(errs, f.LogLevel, f.LogFormat)
	cfg.DryRun, errs = validateBool(errs, "dryRun", f.DryRun)
	cfg.ProbeTimeout, errs = validateProbeTimeout(errs, f.ProbeTimeoutSeconds)
	cfg.MetricsListen, errs = validateListen(errs, f.MetricsListen)

	return cfg, errs
}

func required(errs []ValidationError, path string, v Scalar) (string, []ValidationError) {
	s := strings.TrimSpace(v.String())
	if s == "" {
		errs = append(errs, ValidationError{Path: path, Message: "is required"})
	}
	return s, errs
}

func validatePort(errs []ValidationError, v Scalar) (int, []ValidationError) {
	s, errs := required(errs, "serverPort", v)
	if s == "" {
		return 0, errs
	}
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, append(errs, ValidationError{
			Path:    "serverPort",
			Message: fmt.Sprintf("must be an integer between 1 and 65535, got '%s'", s),
		})
	}
	return port, errs
}

func validateToken(errs []ValidationError, v Scalar, resolve SecretResolver) (string, []ValidationError) {
	s, errs := required(errs, "plexToken", v)
	if s == "" {
		return "", errs
	}
	if _, ok := secrets.ParseRef(s); !ok {
		return s, errs
	}
	if resolve == nil {
		return "", append(errs, ValidationError{Path: "plexToken", Message: "secret references are not supported here"})
	}

	token, err := resolve(s)
	if err != nil {
		return "", append(errs, ValidationError{Path: "plexToken", Message: err.Error()})
	}
	if token == "" {
		return "", append(errs, ValidationError{Path: "plexToken", Message: "referenced secret is empty"})
	}
	return token, errs
}

// sleepTimer converts minutes to seconds. A missing value, or one that is not
// made of ASCII digits only (signs included), falls back to the default with
// a warning.
func sleepTimer(v Scalar) (int, []string) {
	s := strings.TrimSpace(v.String())
	if s == "" {
		return DefaultSleepTimerMinutes * 60, []string{
			fmt.Sprintf("sleepTimer not set, using default of %d minutes", DefaultSleepTimerMinutes),
		}
	}
	minutes, err := strconv.Atoi(s)
	if err != nil || !allDigits(s) {
		return DefaultSleepTimerMinutes * 60, []string{
			fmt.Sprintf("sleepTimer '%s' is not a whole number of minutes, using default of %d minutes", s, DefaultSleepTimerMinutes),
		}
	}
	return minutes * 60, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func validatePrimeTime(errs []ValidationError, start, end Scalar) (primetime.Window, []ValidationError) {
	var w primetime.Window
	var ok = true

	startStr, errs := required(errs, "primeTimeStart", start)
	endStr, errs := required(errs, "primeTimeEnd", end)

	if startStr != "" {
		t, err := primetime.ParseTimeOfDay(startStr)
		if err != nil {
			errs = append(errs, ValidationError{Path: "primeTimeStart", Message: err.Error()})
			ok = false
		}
		w.Start = t
	}
	if endStr != "" {
		t, err := primetime.ParseTimeOfDay(endStr)
		if err != nil {
			errs = append(errs, ValidationError{Path: "primeTimeEnd", Message: err.Error()})
			ok = false
		}
		w.End = t
	}
	if !ok {
		return primetime.Window{}, errs
	}
	return w, errs
}

func validateLogging(errs []ValidationError, level, format Scalar) (logging.Level, logging.Format, []ValidationError) {
	levelStr := strings.TrimSpace(level.String())
	if levelStr == "" {
		levelStr = defaultLogLevel
	}
	lvl, err := logging.ParseLevel(levelStr)
	if err != nil {
		errs = append(errs, ValidationError{
			Path:    "logLevel",
			Message: fmt.Sprintf("must be one of [debug info warn error], got '%s'", levelStr),
		})
	}

	formatStr := strings.ToLower(strings.TrimSpace(format.String()))
	if formatStr == "" {
		formatStr = defaultLogFormat
	}
	f := logging.Format(formatStr)
	if f != logging.FormatJSON && f != logging.FormatText {
		errs = append(errs, ValidationError{
			Path:    "logFormat",
			Message: fmt.Sprintf("must be one of [json text], got '%s'", formatStr),
		})
		f = logging.FormatText
	}
	return lvl, f, errs
}

func validateBool(errs []ValidationError, path string, v Scalar) (bool, []ValidationError) {
	s := strings.TrimSpace(v.String())
	if s == "" {
		return false, errs
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, append(errs, ValidationError{Path: path, Message: fmt.Sprintf("must be true or false, got '%s'", s)})
	}
	return b, errs
}

func validateProbeTimeout(errs []ValidationError, v Scalar) (time.Duration, []ValidationError) {
	s := strings.TrimSpace(v.String())
	if s == "" {
		return DefaultProbeTimeoutSeconds * time.Second, errs
	}
	secs, err := strconv.Atoi(s)
	if err != nil || secs < minProbeTimeoutSeconds || secs > maxProbeTimeoutSeconds {
		return DefaultProbeTimeoutSeconds * time.Second, append(errs, ValidationError{
			Path:    "probeTimeoutSeconds",
			Message: fmt.Sprintf("must be an integer between %d and %d, got '%s'", minProbeTimeoutSeconds, maxProbeTimeoutSeconds, s),
		})
	}
	return time.Duration(secs) * time.Second, errs
}

func validateListen(errs []ValidationError, v Scalar) (string, []ValidationError) {
	s := strings.TrimSpace(v.String())
	if s == "" {
		return "", errs
	}
	if _, _, err := net.SplitHostPort(s); err != nil {
		return "", append(errs, ValidationError{Path: "metricsListen", Message: fmt.Sprintf("must be host:port, got '%s'", s)})
	}
	return s, errs
}
