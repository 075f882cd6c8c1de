package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/zalando/go-keyring"
)

const (
	keyringService  = "httpretry"
	keyringPrefix   = "host_"
	keyringIndexKey = "index"
)

// KeyringStore implements CredentialStore using the system keychain. The
// keychain cannot enumerate entries, so the store keeps its own host index
// under a separate key.
type KeyringStore struct{}

// NewKeyringStore creates a new keyring-based credential store
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves the credential to the system keychain
func (k *KeyringStore) Store(cred *Credential) error {
	if cred == nil || cred.Host == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	if err := keyring.Set(keyringService, keyringPrefix+cred.Host, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return k.updateIndex(func(hosts map[string]bool) { hosts[cred.Host] = true })
}

// Retrieve gets the credential for host from the system keychain
func (k *KeyringStore) Retrieve(host string) (*Credential, error) {
	if host == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(keyringService, keyringPrefix+host)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}

	return &cred, nil
}

// List returns the credentials named by the host index
func (k *KeyringStore) List() ([]*Credential, error) {
	hosts, err := k.readIndex()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(hosts))
	for host := range hosts {
		names = append(names, host)
	}
	sort.Strings(names)

	creds := make([]*Credential, 0, len(names))
	for _, host := range names {
		cred, err := k.Retrieve(host)
		if err != nil {
			continue
		}
		creds = append(creds, cred)
	}
	return creds, nil
}

// Delete removes the credential for host from the system keychain
func (k *KeyringStore) Delete(host string) error {
	if host == "" {
		return ErrInvalidCredentials
	}

	if err := keyring.Delete(keyringService, keyringPrefix+host); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	return k.updateIndex(func(hosts map[string]bool) { delete(hosts, host) })
}

// Exists checks if a credential exists in the keychain
func (k *KeyringStore) Exists(host string) bool {
	if host == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+host)
	return err == nil
}

func (k *KeyringStore) readIndex() (map[string]bool, error) {
	hosts := make(map[string]bool)

	data, err := keyring.Get(keyringService, keyringIndexKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return hosts, nil
		}
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}

	var list []string
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, fmt.Errorf("failed to parse keyring index: %w", err)
	}
	for _, host := range list {
		hosts[host] = true
	}
	return hosts, nil
}

func (k *KeyringStore) updateIndex(mutate func(map[string]bool)) error {
	hosts, err := k.readIndex()
	if err != nil {
		return err
	}
	mutate(hosts)

	list := make([]string, 0, len(hosts))
	for host := range hosts {
		list = append(list, host)
	}
	sort.Strings(list)

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to marshal keyring index: %w", err)
	}
	if err := keyring.Set(keyringService, keyringIndexKey, string(data)); err != nil {
		return fmt.Errorf("failed to write keyring index: %w", err)
	}
	return nil
}
