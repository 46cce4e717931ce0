package auth

import (
	"os"
	"time"
)

// TokenEnvVar supplies the Bridgy token from the environment
const TokenEnvVar = "BRIDGYPOLL_TOKEN"

// EnvironmentStore implements CredentialStore using environment variables.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Name() string { return "environment" }

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve gets the token from BRIDGYPOLL_TOKEN
func (e *EnvironmentStore) Retrieve() (*Credential, error) {
	token := os.Getenv(TokenEnvVar)
	if token == "" {
		return nil, ErrCredentialsNotFound
	}
	return &Credential{Token: token, LastModified: time.Now()}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete() error {
	return ErrStoreUnavailable
}

// Exists checks if the environment carries a token
func (e *EnvironmentStore) Exists() bool {
	return os.Getenv(TokenEnvVar) != ""
}
