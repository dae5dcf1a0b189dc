// Package tui renders a live dashboard of the idle loop for `plexsleep watch`.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"plexsleep/internal/idle"
	"plexsleep/internal/logging"
)

const clockInterval = time.Second

// Model represents the dashboard state
type Model struct {
	startTime time.Time
	now       time.Time
	quitting  bool

	logger       *logging.Logger
	header       Header
	stateManager *UIStateManager

	currentScreen Screen
	lastError     string

	report    idle.Report
	hasReport bool
	ticks     int
	suspends  int
}

// NewModel creates the dashboard. stateDir may be empty to disable
// persistence of the last viewed screen.
func NewModel(logger *logging.Logger, header Header, stateDir string) Model {
	now := time.Now()
	m := Model{
		startTime:     now,
		now:           now,
		logger:        logger,
		header:        header,
		currentScreen: ScreenStatus,
	}

	if stateDir != "" {
		m.stateManager = NewUIStateManager(stateDir, logger)
		if state, err := m.stateManager.Load(); err == nil {
			m.currentScreen = state.CurrentScreen
		} else {
			m.lastError = err.Error()
		}
	}

	return m
}

// Init starts the clock that refreshes relative times
func (m Model) Init() tea.Cmd {
	return clockTick()
}

func clockTick() tea.Cmd {
	return tea.Tick(clockInterval, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ReportMsg:
		m.report = msg.Report
		m.hasReport = true
		m.ticks++
		if msg.Report.SuspendRequested {
			m.suspends++
		}
		return m, nil

	case clockMsg:
		m.now = time.Time(msg)
		return m, clockTick()

	case tea.KeyMsg:
		return m.handleKey(msg.String())
	}

	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		m.saveState()
		return m, tea.Quit
	case "esc":
		m.currentScreen = ScreenStatus
		return m, nil
	}

	for _, kb := range DefaultKeyBindings() {
		if kb.Key == key {
			m.currentScreen = kb.Screen
			return m, nil
		}
	}
	return m, nil
}

// View renders the current screen
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	switch m.currentScreen {
	case ScreenSessions:
		return m.renderSessionsScreen()
	case ScreenHelp:
		return m.renderHelpScreen()
	default:
		return m.renderStatusScreen()
	}
}

func (m *Model) saveState() {
	if m.stateManager == nil {
		return
	}
	if err := m.stateManager.Save(&UIState{CurrentScreen: m.currentScreen}); err != nil {
		m.logger.Warn("tui.state.save_failed", "Failed to save UI state", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
