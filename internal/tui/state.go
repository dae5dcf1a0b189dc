package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"plexsleep/internal/fsutil"
	"plexsleep/internal/logging"
)

const (
	// UIStateFileName is the name of the dashboard state file
	UIStateFileName = "watch_state.json"
)

// UIStateManager persists the last viewed screen between watch sessions
type UIStateManager struct {
	stateDir string
	logger   *logging.Logger
}

// NewUIStateManager creates a new UI state manager
func NewUIStateManager(stateDir string, logger *logging.Logger) *UIStateManager {
	return &UIStateManager{
		stateDir: stateDir,
		logger:   logger,
	}
}

func (m *UIStateManager) getStatePath() string {
	return filepath.Join(m.stateDir, UIStateFileName)
}

// Load loads the UI state from disk, defaulting to the status screen
func (m *UIStateManager) Load() (*UIState, error) {
	data, err := os.ReadFile(m.getStatePath())
	if err != nil {
		if os.IsNotExist(err) {
			return &UIState{
				CurrentScreen: ScreenStatus,
				Updated:       time.Now().UTC(),
			}, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state UIState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if !knownScreen(state.CurrentScreen) {
		state.CurrentScreen = ScreenStatus
	}

	return &state, nil
}

// Save saves the UI state to disk
func (m *UIStateManager) Save(state *UIState) error {
	if err := fsutil.EnsureDir(m.stateDir); err != nil {
		return err
	}

	state.Updated = time.Now().UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := fsutil.AtomicWriteFile(m.getStatePath(), data, fsutil.DefaultFilePermissions, m.logger); err != nil {
		return err
	}

	m.logger.Debug("tui.state.saved", "UI state saved", map[string]interface{}{
		"screen": state.CurrentScreen,
	})
	return nil
}

func knownScreen(s Screen) bool {
	for _, kb := range DefaultKeyBindings() {
		if kb.Screen == s {
			return true
		}
	}
	return false
}
