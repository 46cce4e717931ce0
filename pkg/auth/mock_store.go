package auth

import "sync"

// MockStore implements CredentialStore in memory for tests
type MockStore struct {
	cred *Credential
	mu   sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	DeleteError   error
}

// NewMockStore creates a new mock credential store
func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) Name() string { return "mock" }

// Store saves a copy of the credential
func (m *MockStore) Store(cred *Credential) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if cred == nil || cred.Token == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := *cred
	m.cred = &c
	return nil
}

// Retrieve returns a copy of the stored credential
func (m *MockStore) Retrieve() (*Credential, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.cred == nil {
		return nil, ErrCredentialsNotFound
	}
	c := *m.cred
	return &c, nil
}

// Delete removes the stored credential
func (m *MockStore) Delete() error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cred == nil {
		return ErrCredentialsNotFound
	}
	m.cred = nil
	return nil
}

// Exists checks if a credential is stored
func (m *MockStore) Exists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred != nil
}
