package tui

import (
	"time"

	"plexsleep/internal/idle"
)

// Screen represents different dashboard screens
type Screen string

const (
	// ScreenStatus shows the idle counter and the last tick outcome
	ScreenStatus Screen = "status"
	// ScreenSessions lists active playback sessions
	ScreenSessions Screen = "sessions"
	// ScreenHelp shows key bindings
	ScreenHelp Screen = "help"
)

// KeyBinding maps a key to a screen
type KeyBinding struct {
	Key    string
	Label  string
	Screen Screen
}

// DefaultKeyBindings returns the screen switch keys
func DefaultKeyBindings() []KeyBinding {
	return []KeyBinding{
		{Key: "1", Label: "Status", Screen: ScreenStatus},
		{Key: "2", Label: "Sessions", Screen: ScreenSessions},
		{Key: "?", Label: "Help", Screen: ScreenHelp},
	}
}

// UIState represents the persisted dashboard state
type UIState struct {
	CurrentScreen Screen    `json:"screen"`
	Updated       time.Time `json:"updated"`
}

// Header describes the running agent, shown above every screen
type Header struct {
	Version     string
	Endpoint    string
	PrimeTime   string
	InputSource string
	Executor    string
	DryRun      bool
}

// ReportMsg delivers a tick report to the dashboard
type ReportMsg struct {
	Report idle.Report
}

type clockMsg time.Time
