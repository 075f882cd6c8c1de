package auth

import (
	"sort"
	"sync"
)

// MemoryStore implements CredentialStore in memory. Tests use it directly
// and inject failures through the error fields.
type MemoryStore struct {
	creds map[string]Credential
	mu    sync.RWMutex

	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]Credential)}
}

// Store saves a copy of cred
func (m *MemoryStore) Store(cred *Credential) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if cred == nil || cred.Host == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[cred.Host] = *cred
	return nil
}

// Retrieve returns a copy of the credential for host
func (m *MemoryStore) Retrieve(host string) (*Credential, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}
	if host == "" {
		return nil, ErrInvalidCredentials
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	cred, ok := m.creds[host]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &cred, nil
}

// List returns copies of all credentials sorted by host
func (m *MemoryStore) List() ([]*Credential, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Credential, 0, len(m.creds))
	for _, cred := range m.creds {
		c := cred
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	return out, nil
}

// Delete removes the credential for host
func (m *MemoryStore) Delete(host string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	if host == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[host]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.creds, host)
	return nil
}

// Exists checks if a credential exists for host
func (m *MemoryStore) Exists(host string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.creds[host]
	return ok
}

// Count returns the number of stored credentials
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.creds)
}
