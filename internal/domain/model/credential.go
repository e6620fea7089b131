package model

import "time"

// StoredCredential is the at-rest form of a provider API key. Ciphertext is
// the only representation of the key that is ever persisted.
type StoredCredential struct {
	Provider    ProviderID
	Ciphertext  string
	DisplayName string
	CreatedAt   time.Time
}

// CredentialStatus describes whether a usable key is stored for a provider.
type CredentialStatus string

const (
	CredentialStatusUnset   CredentialStatus = "unset"
	CredentialStatusValid   CredentialStatus = "valid"
	CredentialStatusInvalid CredentialStatus = "invalid"
)

// CredentialSummary is the plaintext-free view of a provider's credential.
type CredentialSummary struct {
	Provider    ProviderID
	DisplayName string
	CreatedAt   time.Time
	Status      CredentialStatus
}
