package config

const (
	// DefaultSleepTimerMinutes applies when sleepTimer is missing or not a number
	DefaultSleepTimerMinutes = 15

	// DefaultProbeTimeoutSeconds bounds one sessions request
	DefaultProbeTimeoutSeconds = 10

	minProbeTimeoutSeconds = 1
	// a probe must finish well inside one 60 s tick
	maxProbeTimeoutSeconds = 59

	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)
