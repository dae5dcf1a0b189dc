package fsutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"plexsleep/internal/logging"
)

func TestEnsureDir(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{
			name: "creates new directory",
			setup: func(t *testing.T) string {
				t.Helper()
				return filepath.Join(t.TempDir(), "newdir")
			},
		},
		{
			name: "succeeds if directory exists",
			setup: func(t *testing.T) string {
				t.Helper()
				return t.TempDir()
			},
		},
		{
			name: "creates nested directories",
			setup: func(t *testing.T) string {
				t.Helper()
				return filepath.Join(t.TempDir(), "a", "b", "c")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup(t)
			if err := EnsureDir(path); err != nil {
				t.Fatalf("EnsureDir() error = %v", err)
			}
			info, err := os.Stat(path)
			if err != nil || !info.IsDir() {
				t.Errorf("directory not created: %v", err)
			}
		})
	}
}

func TestAtomicWriteFile(t *testing.T) {
	logger := logging.NewWriterLogger(logging.LevelWarn, logging.FormatText, &bytes.Buffer{})

	tests := []struct {
		name    string
		setup   func(t *testing.T) (string, []byte)
		wantErr bool
	}{
		{
			name: "writes new file atomically",
			setup: func(t *testing.T) (string, []byte) {
				t.Helper()
				return filepath.Join(t.TempDir(), "test.txt"), []byte("test content")
			},
		},
		{
			name: "overwrites existing file",
			setup: func(t *testing.T) (string, []byte) {
				t.Helper()
				path := filepath.Join(t.TempDir(), "existing.txt")
				_ = os.WriteFile(path, []byte("old content"), 0o600)
				return path, []byte("new content")
			},
		},
		{
			name: "missing parent directory",
			setup: func(t *testing.T) (string, []byte) {
				t.Helper()
				return filepath.Join(t.TempDir(), "missing", "file.txt"), []byte("x")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, data := tt.setup(t)

			err := AtomicWriteFile(path, data, DefaultFilePermissions, logger)
			if (err != nil) != tt.wantErr {
				t.Fatalf("AtomicWriteFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			got, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("failed to read file: %v", err)
			}
			if string(got) != string(data) {
				t.Errorf("file content = %q, want %q", got, data)
			}
			if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
				t.Errorf("temp file still exists")
			}
		})
	}
}
