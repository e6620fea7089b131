// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"

	"github.com/bejocbrian/bringYourKey/internal/domain/model"
)

// CredentialStore defines the driven port for encrypted credential persistence.
// It only ever sees ciphertext; encryption happens in the vault.
type CredentialStore interface {
	// Put stores or replaces the credential for cred.Provider.
	Put(ctx context.Context, cred model.StoredCredential) error

	// Get returns the stored credential for provider, or (nil, nil) if none exists.
	Get(ctx context.Context, provider model.ProviderID) (*model.StoredCredential, error)

	// List returns all stored credentials ordered by provider.
	List(ctx context.Context) ([]model.StoredCredential, error)

	// Delete removes the credential for provider. Deleting a missing
	// credential is not an error.
	Delete(ctx context.Context, provider model.ProviderID) error

	// DeleteAll removes every stored credential.
	DeleteAll(ctx context.Context) error
}
