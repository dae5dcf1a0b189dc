package tui

import (
	"os"
	"path/filepath"
	"testing"

	"plexsleep/internal/logging"
)

func TestUIStateManager_SaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	manager := NewUIStateManager(dir, logging.NewLogger(logging.LevelError))

	if err := manager.Save(&UIState{CurrentScreen: ScreenHelp}); err != nil {
		t.Fatalf("Failed to save state: %v", err)
	}

	loaded, err := manager.Load()
	if err != nil {
		t.Fatalf("Failed to load state: %v", err)
	}
	if loaded.CurrentScreen != ScreenHelp {
		t.Errorf("Expected screen help, got %s", loaded.CurrentScreen)
	}
	if loaded.Updated.IsZero() {
		t.Error("Expected Updated to be set")
	}
}

func TestUIStateManager_Load(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantScreen Screen
		wantErr    bool
	}{
		{name: "missing file", wantScreen: ScreenStatus},
		{name: "unknown screen", content: `{"screen":"menu"}`, wantScreen: ScreenStatus},
		{name: "sessions", content: `{"screen":"sessions"}`, wantScreen: ScreenSessions},
		{name: "corrupt", content: `{not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.content != "" {
				if err := os.WriteFile(filepath.Join(dir, UIStateFileName), []byte(tt.content), 0o600); err != nil {
					t.Fatal(err)
				}
			}

			state, err := NewUIStateManager(dir, logging.NewLogger(logging.LevelError)).Load()
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error for corrupt state file")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if state.CurrentScreen != tt.wantScreen {
				t.Errorf("screen = %s, want %s", state.CurrentScreen, tt.wantScreen)
			}
		})
	}
}

func TestNewModel_CorruptStateShowsError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, UIStateFileName), []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}

	m := NewModel(logging.NewLogger(logging.LevelError), Header{}, dir)
	if m.lastError == "" {
		t.Error("Expected lastError to be set")
	}
	if m.currentScreen != ScreenStatus {
		t.Errorf("Expected fallback to status screen, got %s", m.currentScreen)
	}
}
