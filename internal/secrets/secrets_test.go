package secrets

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"plexsleep/internal/logging"
)

func newTestStore(t *testing.T) (*Store, Config) {
	t.Helper()
	config := DefaultConfig(t.TempDir())
	logger := logging.NewWriterLogger(logging.LevelError, logging.FormatText, &bytes.Buffer{})
	store, err := NewStore(config, logger)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store, config
}

func TestSealOpen(t *testing.T) {
	k := deriveKey("test-passphrase")

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"token", []byte("xYz-plex-token")},
		{"empty", []byte("")},
		{"binary", []byte{0x00, 0x01, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := seal(tt.plaintext, &k)
			if err != nil {
				t.Fatalf("seal() error = %v", err)
			}
			got, err := open(sealed, &k)
			if err != nil {
				t.Fatalf("open() error = %v", err)
			}
			if !bytes.Equal(got, tt.plaintext) {
				t.Errorf("open() = %q, want %q", got, tt.plaintext)
			}
		})
	}
}

func TestOpen_Failures(t *testing.T) {
	k := deriveKey("right")
	wrong := deriveKey("wrong")

	sealed, err := seal([]byte("secret"), &k)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := open(sealed, &wrong); !errors.Is(err, ErrDecrypt) {
		t.Errorf("wrong key: expected ErrDecrypt, got %v", err)
	}

	corrupted := append([]byte(nil), sealed...)
	corrupted[nonceSize+2] ^= 0xFF
	if _, err := open(corrupted, &k); !errors.Is(err, ErrDecrypt) {
		t.Errorf("corrupted: expected ErrDecrypt, got %v", err)
	}

	if _, err := open([]byte("short"), &k); err == nil {
		t.Error("expected error for short input")
	}
}

func TestStore_PutGet(t *testing.T) {
	store, config := newTestStore(t)

	if err := store.Put(PlexTokenName, []byte("abc123")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(PlexTokenName)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "abc123" {
		t.Errorf("Get() = %q", got)
	}

	info, err := os.Stat(filepath.Join(config.SecretsDir, PlexTokenName+".enc"))
	if err != nil {
		t.Fatalf("stat secret: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("secret permissions = %o, want 600", info.Mode().Perm())
	}

	raw, _ := os.ReadFile(filepath.Join(config.SecretsDir, PlexTokenName+".enc"))
	if bytes.Contains(raw, []byte("abc123")) {
		t.Error("secret stored in plaintext")
	}
}

func TestStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_InvalidName(t *testing.T) {
	store, _ := newTestStore(t)
	for _, name := range []string{"", "../escape", "a/b", "with space"} {
		if err := store.Put(name, []byte("x")); err == nil {
			t.Errorf("Put(%q) should fail", name)
		}
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	store, _ := newTestStore(t)

	for _, name := range []string{"one", "two", "one"} {
		if err := store.Put(name, []byte("v")); err != nil {
			t.Fatalf("Put(%s) error = %v", name, err)
		}
	}

	names, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 2 || names[0] != "one" || names[1] != "two" {
		t.Errorf("List() = %v", names)
	}

	if err := store.Delete("one"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete("one"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() expected ErrNotFound, got %v", err)
	}

	names, _ = store.List()
	if len(names) != 1 || names[0] != "two" {
		t.Errorf("List() after delete = %v", names)
	}
}

func TestStore_PersistentPassphrase(t *testing.T) {
	store, config := newTestStore(t)
	if err := store.Put(PlexTokenName, []byte("persisted")); err != nil {
		t.Fatal(err)
	}

	logger := logging.NewWriterLogger(logging.LevelError, logging.FormatText, &bytes.Buffer{})
	reopened, err := NewStore(config, logger)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	got, err := reopened.Get(PlexTokenName)
	if err != nil || string(got) != "persisted" {
		t.Errorf("reopened Get() = %q, %v", got, err)
	}
}

func TestStore_Resolve(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.Put(PlexTokenName, []byte("tok\n")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		value   string
		want    string
		wantErr bool
	}{
		{value: "plain-token", want: "plain-token"},
		{value: "secret:plex_token", want: "tok"},
		{value: "secret:missing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := store.Resolve(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}
