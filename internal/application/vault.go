package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bejocbrian/bringYourKey/internal/domain/model"
	"github.com/bejocbrian/bringYourKey/internal/domain/port/driven"
)

// Vault keeps provider API keys encrypted at rest under a single
// device-local key. Add and remove report misuse as errors; reading a key
// never fails loudly and instead reports the credential as unusable.
type Vault struct {
	keys   driven.KeyStore
	creds  driven.CredentialStore
	logger *slog.Logger
	now    func() time.Time

	// mu serializes key creation within the process. Cross-process races are
	// settled by KeyStore.CreateIfAbsent.
	mu sync.Mutex
}

// NewVault creates a Vault over the given stores.
func NewVault(keys driven.KeyStore, creds driven.CredentialStore, logger *slog.Logger) *Vault {
	return &Vault{
		keys:   keys,
		creds:  creds,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// EnsureKey returns the persisted encryption key, creating one on first use.
func (v *Vault) EnsureKey(ctx context.Context) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	encoded, err := v.keys.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load encryption key: %w", err)
	}

	if encoded == "" {
		candidate, err := newEncryptionKey()
		if err != nil {
			return nil, err
		}
		encoded, err = v.keys.CreateIfAbsent(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("store encryption key: %w", err)
		}
		if encoded == candidate {
			v.logger.Info("encryption key created")
		}
	}

	return decodeEncryptionKey(encoded)
}

// AddCredential encrypts the trimmed rawKey and stores it for provider,
// replacing any existing credential. displayName defaults to the provider id.
func (v *Vault) AddCredential(ctx context.Context, provider model.ProviderID, rawKey, displayName string) error {
	if !provider.Valid() {
		return fmt.Errorf("%w: unknown provider %q", model.ErrValidation, provider)
	}
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		return fmt.Errorf("%w: API key must not be empty", model.ErrValidation)
	}

	key, err := v.EnsureKey(ctx)
	if err != nil {
		return err
	}

	ciphertext, err := sealCredential(key, provider, rawKey)
	if err != nil {
		return fmt.Errorf("encrypt credential %q: %w", provider, err)
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = provider.String()
	}

	err = v.creds.Put(ctx, model.StoredCredential{
		Provider:    provider,
		Ciphertext:  ciphertext,
		DisplayName: name,
		CreatedAt:   v.now(),
	})
	if err != nil {
		return fmt.Errorf("store credential %q: %w", provider, err)
	}

	v.logger.Info("credential stored", "provider", provider, "name", name)
	return nil
}

// RemoveCredential deletes the stored credential. Removing an absent
// credential is a no-op.
func (v *Vault) RemoveCredential(ctx context.Context, provider model.ProviderID) error {
	if err := v.creds.Delete(ctx, provider); err != nil {
		return fmt.Errorf("remove credential %q: %w", provider, err)
	}
	return nil
}

// ClearCredentials removes every stored credential. The encryption key is kept.
func (v *Vault) ClearCredentials(ctx context.Context) error {
	if err := v.creds.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	v.logger.Info("all credentials cleared")
	return nil
}

// HasCredential reports whether a credential is stored, without decrypting it.
func (v *Vault) HasCredential(ctx context.Context, provider model.ProviderID) (bool, error) {
	cred, err := v.creds.Get(ctx, provider)
	if err != nil {
		return false, fmt.Errorf("get credential %q: %w", provider, err)
	}
	return cred != nil, nil
}

// DecryptedCredential returns the plaintext key for provider. The second
// result is false when nothing is stored or the stored value cannot be
// decrypted (lost or replaced encryption key, corrupted ciphertext).
func (v *Vault) DecryptedCredential(ctx context.Context, provider model.ProviderID) (string, bool) {
	cred, err := v.creds.Get(ctx, provider)
	if err != nil {
		v.logger.Warn("credential lookup failed", "provider", provider, "error", err)
		return "", false
	}
	if cred == nil {
		return "", false
	}

	key, err := v.currentKey(ctx)
	if err != nil {
		v.logger.Warn("credential undecryptable", "provider", provider, "error", err)
		return "", false
	}

	return v.open(key, *cred)
}

// Status classifies the stored credential for provider.
func (v *Vault) Status(ctx context.Context, provider model.ProviderID) model.CredentialStatus {
	cred, err := v.creds.Get(ctx, provider)
	if err != nil {
		v.logger.Warn("credential lookup failed", "provider", provider, "error", err)
		return model.CredentialStatusInvalid
	}
	if cred == nil {
		return model.CredentialStatusUnset
	}
	key, err := v.currentKey(ctx)
	if err != nil {
		return model.CredentialStatusInvalid
	}
	if _, ok := v.open(key, *cred); !ok {
		return model.CredentialStatusInvalid
	}
	return model.CredentialStatusValid
}

// Credentials returns one summary per known provider, unset ones included.
func (v *Vault) Credentials(ctx context.Context) ([]model.CredentialSummary, error) {
	stored, err := v.creds.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}

	byProvider := make(map[model.ProviderID]model.StoredCredential, len(stored))
	for _, c := range stored {
		byProvider[c.Provider] = c
	}

	// A missing key leaves key nil; every stored credential then reads as invalid.
	key, keyErr := v.currentKey(ctx)

	summaries := make([]model.CredentialSummary, 0, len(model.Providers()))
	for _, p := range model.Providers() {
		cred, ok := byProvider[p]
		if !ok {
			summaries = append(summaries, model.CredentialSummary{Provider: p, Status: model.CredentialStatusUnset})
			continue
		}

		status := model.CredentialStatusInvalid
		if keyErr == nil {
			if _, ok := v.open(key, cred); ok {
				status = model.CredentialStatusValid
			}
		}

		summaries = append(summaries, model.CredentialSummary{
			Provider:    p,
			DisplayName: cred.DisplayName,
			CreatedAt:   cred.CreatedAt,
			Status:      status,
		})
	}

	return summaries, nil
}

// currentKey loads the key without creating one.
func (v *Vault) currentKey(ctx context.Context) ([]byte, error) {
	encoded, err := v.keys.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load encryption key: %w", err)
	}
	return decodeEncryptionKey(encoded)
}

func (v *Vault) open(key []byte, cred model.StoredCredential) (string, bool) {
	plaintext, err := openCredential(key, cred.Provider, cred.Ciphertext)
	if err != nil {
		v.logger.Warn("credential undecryptable", "provider", cred.Provider, "error", err)
		return "", false
	}
	if plaintext == "" {
		return "", false
	}
	return plaintext, true
}
