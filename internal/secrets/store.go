// Package secrets keeps credentials such as the Plex token encrypted at rest
// with NaCl secretbox.
package secrets

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"plexsleep/internal/fsutil"
	"plexsleep/internal/logging"
)

const (
	// RefPrefix marks a config value that names a stored secret
	RefPrefix = "secret:"

	// PlexTokenName is the secret written by `plexsleep token set`
	PlexTokenName = "plex_token"

	indexFile = "secrets_index.json"
)

// ErrNotFound is returned for unknown secret names
var ErrNotFound = errors.New("secret not found")

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Config locates the secrets directory and passphrase file
type Config struct {
	SecretsDir     string
	PassphraseFile string
}

// DefaultConfig places secrets under stateDir
func DefaultConfig(stateDir string) Config {
	return Config{
		SecretsDir:     filepath.Join(stateDir, "secrets"),
		PassphraseFile: filepath.Join(stateDir, ".passphrase"),
	}
}

type index struct {
	Entries []indexEntry `json:"entries"`
}

type indexEntry struct {
	Name        string    `json:"name"`
	LastRotated time.Time `json:"last_rotated"`
}

// Store handles encrypted secret files
type Store struct {
	config Config
	key    *key
	logger *logging.Logger
}

// NewStore opens the store, generating a passphrase on first use
func NewStore(config Config, logger *logging.Logger) (*Store, error) {
	if err := fsutil.EnsureDir(config.SecretsDir); err != nil {
		return nil, err
	}

	passphrase, err := loadOrGeneratePassphrase(config.PassphraseFile, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load passphrase: %w", err)
	}

	k := deriveKey(passphrase)
	return &Store{config: config, key: &k, logger: logger}, nil
}

// ParseRef returns the secret name of a "secret:<name>" reference
func ParseRef(value string) (name string, ok bool) {
	if !strings.HasPrefix(value, RefPrefix) {
		return "", false
	}
	return strings.TrimPrefix(value, RefPrefix), true
}

// Resolve returns value unchanged unless it is a secret reference,
// in which case the stored secret is returned.
func (s *Store) Resolve(value string) (string, error) {
	name, ok := ParseRef(value)
	if !ok {
		return value, nil
	}
	secret, err := s.Get(name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}

// Put encrypts and stores a secret, replacing any previous value
func (s *Store) Put(name string, value []byte) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid secret name %q", name)
	}

	sealed, err := seal(value, s.key)
	if err != nil {
		return fmt.Errorf("encryption failed: %w", err)
	}

	if err := fsutil.AtomicWriteFile(s.path(name), sealed, fsutil.DefaultFilePermissions, s.logger); err != nil {
		return fmt.Errorf("failed to write secret: %w", err)
	}

	if err := s.touchIndex(name); err != nil {
		s.logger.Warn("secrets.index.update_failed", "Failed to update secrets index", map[string]interface{}{
			"name":  name,
			"error": err.Error(),
		})
	}

	s.logger.Info("secrets.stored", "Secret stored", map[string]interface{}{
		"name": name,
	})
	return nil
}

// Get decrypts a stored secret
func (s *Store) Get(name string) ([]byte, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("invalid secret name %q", name)
	}

	path := s.path(name)
	sealed, err := os.ReadFile(path) // #nosec G304 -- name is validated, dir is controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	if info, err := os.Stat(path); err == nil && info.Mode().Perm() != fsutil.DefaultFilePermissions {
		s.logger.Warn("secrets.permissions.warning", "Secret file permissions should be 600", map[string]interface{}{
			"path": path,
			"mode": fmt.Sprintf("%o", info.Mode().Perm()),
		})
	}

	plaintext, err := open(sealed, s.key)
	if err != nil {
		return nil, fmt.Errorf("secret %s: %w", name, err)
	}
	return plaintext, nil
}

// Delete removes a stored secret
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("failed to delete secret: %w", err)
	}

	idx, err := s.loadIndex()
	if err == nil {
		kept := idx.Entries[:0]
		for _, e := range idx.Entries {
			if e.Name != name {
				kept = append(kept, e)
			}
		}
		idx.Entries = kept
		err = s.saveIndex(idx)
	}
	if err != nil {
		s.logger.Warn("secrets.index.remove_failed", "Failed to remove from secrets index", map[string]interface{}{
			"name":  name,
			"error": err.Error(),
		})
	}
	return nil
}

// List returns stored secret names in insertion order
func (s *Store) List() ([]string, error) {
	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(idx.Entries))
	for i, e := range idx.Entries {
		names[i] = e.Name
	}
	return names, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.config.SecretsDir, name+".enc")
}

func (s *Store) touchIndex(name string) error {
	idx, err := s.loadIndex()
	if err != nil {
		idx = &index{}
	}

	now := time.Now().UTC()
	for i := range idx.Entries {
		if idx.Entries[i].Name == name {
			idx.Entries[i].LastRotated = now
			return s.saveIndex(idx)
		}
	}
	idx.Entries = append(idx.Entries, indexEntry{Name: name, LastRotated: now})
	return s.saveIndex(idx)
}

func (s *Store) loadIndex() (*index, error) {
	data, err := os.ReadFile(filepath.Join(s.config.SecretsDir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &index{}, nil
		}
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}
	return &idx, nil
}

func (s *Store) saveIndex(idx *index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	return fsutil.AtomicWriteFile(filepath.Join(s.config.SecretsDir, indexFile), data, fsutil.DefaultFilePermissions, s.logger)
}

func loadOrGeneratePassphrase(path string, logger *logging.Logger) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is derived from the state dir
	if err == nil {
		return string(data), nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read passphrase file: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := hex.EncodeToString(raw)

	if err := fsutil.EnsureDir(filepath.Dir(path)); err != nil {
		return "", err
	}
	if err := fsutil.AtomicWriteFile(path, []byte(passphrase), fsutil.DefaultFilePermissions, logger); err != nil {
		return "", fmt.Errorf("failed to write passphrase: %w", err)
	}
	return passphrase, nil
}
