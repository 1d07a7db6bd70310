package connection_history

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"

	"github.com/0xataru/dfox/internal/models"
	"github.com/99designs/keyring"
)

const serviceName = "dfox"

// ErrSecretNotFound is returned when no secret is stored for a connection
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore keeps connection secrets out of the history file
type SecretStore interface {
	Save(key, secret string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// PasswordStore stores secrets in the OS keyring with an encrypted file fallback
type PasswordStore struct {
	ring          keyring.Keyring
	usingFallback bool
}

// NewPasswordStore opens the platform keyring
func NewPasswordStore(configDir string) (*PasswordStore, error) {
	return openPasswordStore(configDir, backendsForPlatform())
}

func openPasswordStore(configDir string, backends []keyring.BackendType) (*PasswordStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:     serviceName,
		AllowedBackends: backends,
		FileDir:         filepath.Join(configDir, "keyring"),
		FilePasswordFunc: func(_ string) (string, error) {
			return deriveFilePassword()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}

	return &PasswordStore{
		ring:          ring,
		usingFallback: onlyFileBackend(backends),
	}, nil
}

func backendsForPlatform() []keyring.BackendType {
	switch runtime.GOOS {
	case "darwin":
		return []keyring.BackendType{keyring.KeychainBackend, keyring.FileBackend}
	case "linux":
		return []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.FileBackend}
	case "windows":
		return []keyring.BackendType{keyring.WinCredBackend, keyring.FileBackend}
	default:
		return []keyring.BackendType{keyring.FileBackend}
	}
}

func onlyFileBackend(requested []keyring.BackendType) bool {
	if len(requested) == 1 && requested[0] == keyring.FileBackend {
		return true
	}
	for _, b := range keyring.AvailableBackends() {
		if b != keyring.FileBackend {
			return false
		}
	}
	return true
}

// IsUsingFallback reports whether secrets land in the encrypted file backend
func (ps *PasswordStore) IsUsingFallback() bool {
	return ps.usingFallback
}

// Save stores secret under key. Empty secrets are not stored.
func (ps *PasswordStore) Save(key, secret string) error {
	if secret == "" {
		return nil
	}
	err := ps.ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(secret),
		Label:       "dfox: " + key,
		Description: "database connection secret for dfox",
	})
	if err != nil {
		return fmt.Errorf("failed to save secret to keyring: %w", err)
	}
	return nil
}

// Get returns the secret stored under key
func (ps *PasswordStore) Get(key string) (string, error) {
	item, err := ps.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, fs.ErrNotExist) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("failed to read secret from keyring: %w", err)
	}
	return string(item.Data), nil
}

// Delete removes the secret stored under key; a missing key is not an error
func (ps *PasswordStore) Delete(key string) error {
	err := ps.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete secret from keyring: %w", err)
	}
	return nil
}

// SecretKey identifies a connection's secret: engine, address, database and user
func SecretKey(engine models.EngineKind, params models.ConnectionParams) string {
	return fmt.Sprintf("%s:%s:%d:%s:%s", engine.Key(), params.Host, params.Port, params.Database, params.Username)
}
