package application

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/bejocbrian/bringYourKey/internal/domain/model"
)

// encryptionKeySize is the AES-256 key length in bytes.
const encryptionKeySize = 32

var errNoEncryptionKey = errors.New("encryption key not created")

// newEncryptionKey returns a hex-encoded random AES-256 key.
func newEncryptionKey() (string, error) {
	key := make([]byte, encryptionKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("rand key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// decodeEncryptionKey parses the stored key representation.
func decodeEncryptionKey(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, errNoEncryptionKey
	}
	key, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("hex decode key: %w", err)
	}
	if len(key) != encryptionKeySize {
		return nil, fmt.Errorf("encryption key has %d bytes, want %d", len(key), encryptionKeySize)
	}
	return key, nil
}

// sealCredential encrypts plaintext using AES-256-GCM and returns a
// base64-encoded string containing the nonce (12 bytes) prepended to the
// ciphertext. The provider id is bound as additional data so a ciphertext
// cannot be replayed under another provider.
func sealCredential(key []byte, provider model.ProviderID, plaintext string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), []byte(provider))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// openCredential decrypts a value produced by sealCredential.
func openCredential(key []byte, provider model.ProviderID, encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(provider))
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
