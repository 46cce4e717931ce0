package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"bridgypoll/pkg/logger"
	"bridgypoll/pkg/store"

	"github.com/google/uuid"
)

// Credential is a Bridgy token together with where and when it was obtained
type Credential struct {
	Token        string    `json:"token"`
	Source       string    `json:"source,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving the Bridgy token
type CredentialStore interface {
	// Name identifies the store in logs
	Name() string

	// Store saves the credential
	Store(cred *Credential) error

	// Retrieve gets the stored credential
	Retrieve() (*Credential, error)

	// Delete removes the stored credential
	Delete() error

	// Exists checks if a credential is stored
	Exists() bool
}

// Manager resolves the Bridgy token, falling back through its stores
type Manager struct {
	area     store.Area
	stores   []CredentialStore
	logger   logger.Logger
	newToken func() string
}

// NewManager creates a manager backed by the sync area and the system
// credential stores: keyring when available, the encrypted file, then the
// environment.
func NewManager(area store.Area, log logger.Logger) (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	} else if log != nil {
		log.WithError(err).Debug("System keyring unavailable")
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "token.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewEnvironmentStore())

	return NewManagerWithStores(area, log, stores...), nil
}

// NewManagerWithStores creates a manager with an explicit store chain
func NewManagerWithStores(area store.Area, log logger.Logger, stores ...CredentialStore) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{
		area:     area,
		stores:   stores,
		logger:   log.WithField("component", "auth"),
		newToken: uuid.NewString,
	}
}

// Login returns the Bridgy token, generating and persisting one on first use.
// The token always ends up in the sync area, where the silos read it.
func (m *Manager) Login(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var token string
	ok, err := m.area.Get(ctx, store.TokenKey, &token)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	if ok && token != "" {
		m.logger.Debug("Using token from sync storage")
		return token, nil
	}

	cred := m.retrieve()
	if cred == nil {
		cred = &Credential{Token: m.newToken(), LastModified: time.Now()}
		if err := m.persist(cred); err != nil {
			m.logger.WithError(err).Warn("Generated token is only kept in sync storage")
		}
		m.logger.Info("Generated new Bridgy token")
	} else {
		m.logger.InfoWithFields("Using stored Bridgy token", map[string]interface{}{
			"source": cred.Source,
		})
	}

	if err := m.area.Set(ctx, store.TokenKey, cred.Token); err != nil {
		return "", fmt.Errorf("failed to save token: %w", err)
	}
	return cred.Token, nil
}

// Token returns the current token without generating one
func (m *Manager) Token(ctx context.Context) (string, error) {
	var token string
	ok, err := m.area.Get(ctx, store.TokenKey, &token)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	if ok && token != "" {
		return token, nil
	}
	if cred := m.retrieve(); cred != nil {
		return cred.Token, nil
	}
	return "", ErrCredentialsNotFound
}

// SetToken stores a token supplied by the user, replacing any existing one
func (m *Manager) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidCredentials
	}
	if err := m.persist(&Credential{Token: token, LastModified: time.Now()}); err != nil {
		return err
	}
	return m.area.Set(ctx, store.TokenKey, token)
}

// Logout removes the token from sync storage and every credential store
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.area.Remove(ctx, store.TokenKey); err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	for _, s := range m.stores {
		if err := s.Delete(); err != nil && !errors.Is(err, ErrCredentialsNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			m.logger.WithError(err).WarnWithFields("Failed to delete token", map[string]interface{}{
				"store": s.Name(),
			})
		}
	}
	return nil
}

// retrieve gets the credential from the first store that has one
func (m *Manager) retrieve() *Credential {
	for _, s := range m.stores {
		if cred, err := s.Retrieve(); err == nil && cred != nil && cred.Token != "" {
			cred.Source = s.Name()
			return cred
		}
	}
	return nil
}

// persist saves the credential using the first store that accepts it
func (m *Manager) persist(cred *Credential) error {
	var lastErr error
	for _, s := range m.stores {
		err := s.Store(cred)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return fmt.Errorf("failed to store token: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "bridgypoll")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "bridgypoll")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "bridgypoll")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "bridgypoll")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// MaskToken masks all but the first 4 and last 4 characters of a token
func MaskToken(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
