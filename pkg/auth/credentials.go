package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// DefaultScheme is used when a credential does not name one
const DefaultScheme = "Bearer"

// AnyHost matches every host. Only the environment store produces it.
const AnyHost = "*"

// Credential is an Authorization value bound to one host
type Credential struct {
	Host         string    `json:"host"`
	Scheme       string    `json:"scheme"`
	Token        string    `json:"token"`
	LastModified time.Time `json:"last_modified"`
}

// HeaderValue renders the Authorization header
func (c *Credential) HeaderValue() string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = DefaultScheme
	}
	return scheme + " " + c.Token
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves the credential for its host
	Store(cred *Credential) error

	// Retrieve gets the credential for a host
	Retrieve(host string) (*Credential, error)

	// List returns all stored credentials
	List() ([]*Credential, error)

	// Delete removes the credential for a host
	Delete(host string) error

	// Exists checks if a credential exists for a host
	Exists(host string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager over the system keychain when available, an
// encrypted file in the config directory, and the environment.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over the given stores, tried in order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// NormalizeHost lower-cases a host and strips a trailing dot
func NormalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}

// Store saves the credential in the first store that accepts it
func (m *Manager) Store(cred *Credential) error {
	if cred == nil || cred.Host == "" {
		return errors.New("host is required")
	}
	if cred.Token == "" {
		return errors.New("token is required")
	}

	cred.Host = NormalizeHost(cred.Host)
	if cred.Scheme == "" {
		cred.Scheme = DefaultScheme
	}
	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(cred)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets the credential for host from the first store that has one.
// An AnyHost credential matches when no host-specific one exists.
func (m *Manager) Retrieve(host string) (*Credential, error) {
	host = NormalizeHost(host)
	for _, store := range m.stores {
		if cred, err := store.Retrieve(host); err == nil && cred != nil {
			return cred, nil
		}
	}
	for _, store := range m.stores {
		if cred, err := store.Retrieve(AnyHost); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w for host: %s", ErrCredentialsNotFound, host)
}

// Header returns the Authorization value for host
func (m *Manager) Header(host string) (string, bool) {
	cred, err := m.Retrieve(host)
	if err != nil {
		return "", false
	}
	return cred.HeaderValue(), true
}

// List returns all credentials across stores sorted by host; the most
// recently modified copy of each host wins.
func (m *Manager) List() ([]*Credential, error) {
	byHost := make(map[string]*Credential)

	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, cred := range creds {
			if existing, ok := byHost[cred.Host]; !ok || cred.LastModified.After(existing.LastModified) {
				byHost[cred.Host] = cred
			}
		}
	}

	result := make([]*Credential, 0, len(byHost))
	for _, cred := range byHost {
		result = append(result, cred)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Host < result[j].Host })

	return result, nil
}

// Delete removes the credential for host from all stores
func (m *Manager) Delete(host string) error {
	host = NormalizeHost(host)
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(host); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil && !errors.Is(lastErr, ErrCredentialsNotFound) && !errors.Is(lastErr, ErrStoreUnavailable) {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w for host: %s", ErrCredentialsNotFound, host)
	}

	return nil
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
		configDir = filepath.Join(home, "Library", "Application Support", "httpretry")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "httpretry")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "httpretry")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "httpretry")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Sanitize returns a copy of cred with the token masked
func Sanitize(cred *Credential) *Credential {
	if cred == nil {
		return nil
	}

	return &Credential{
		Host:         cred.Host,
		Scheme:       cred.Scheme,
		Token:        maskString(cred.Token),
		LastModified: cred.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
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
