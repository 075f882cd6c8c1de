package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	EnvToken  = "HTTPRETRY_TOKEN"
	EnvHost   = "HTTPRETRY_TOKEN_HOST"
	EnvScheme = "HTTPRETRY_TOKEN_SCHEME"
)

// EnvironmentStore implements CredentialStore over HTTPRETRY_TOKEN. Without
// HTTPRETRY_TOKEN_HOST the token applies to every host.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment credential when it applies to host
func (e *EnvironmentStore) Retrieve(host string) (*Credential, error) {
	cred := e.current()
	if cred == nil {
		return nil, ErrCredentialsNotFound
	}
	if cred.Host != AnyHost && cred.Host != NormalizeHost(host) {
		return nil, ErrCredentialsNotFound
	}
	return cred, nil
}

// List returns the environment credential if one is set
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred := e.current()
	if cred == nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(host string) error {
	return ErrStoreUnavailable
}

// Exists checks if the environment credential applies to host
func (e *EnvironmentStore) Exists(host string) bool {
	_, err := e.Retrieve(host)
	return err == nil
}

func (e *EnvironmentStore) current() *Credential {
	token := os.Getenv(EnvToken)
	if token == "" {
		return nil
	}

	host := NormalizeHost(os.Getenv(EnvHost))
	if host == "" {
		host = AnyHost
	}
	scheme := os.Getenv(EnvScheme)
	if scheme == "" {
		scheme = DefaultScheme
	}

	return &Credential{
		Host:         host,
		Scheme:       scheme,
		Token:        token,
		LastModified: time.Now(),
	}
}
