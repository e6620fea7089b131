package application

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bejocbrian/bringYourKey/internal/domain/model"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	encoded, err := newEncryptionKey()
	require.NoError(t, err)
	key, err := decodeEncryptionKey(encoded)
	require.NoError(t, err)
	return key
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := testKey(t)

	sealed, err := sealCredential(key, model.ProviderGoogleVeo, "sk-live-abc")
	require.NoError(t, err)

	got, err := openCredential(key, model.ProviderGoogleVeo, sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk-live-abc", got)
}

func TestSeal_FreshNoncePerCall(t *testing.T) {
	key := testKey(t)

	a, err := sealCredential(key, model.ProviderGoogleVeo, "same")
	require.NoError(t, err)
	b, err := sealCredential(key, model.ProviderGoogleVeo, "same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpen_Rejects(t *testing.T) {
	key := testKey(t)
	sealed, err := sealCredential(key, model.ProviderGoogleVeo, "secret")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name     string
		key      []byte
		provider model.ProviderID
		value    string
	}{
		{name: "tampered tag", key: key, provider: model.ProviderGoogleVeo, value: tampered},
		{name: "wrong key", key: testKey(t), provider: model.ProviderGoogleVeo, value: sealed},
		{name: "wrong provider", key: key, provider: model.ProviderRunwayGen3, value: sealed},
		{name: "not base64", key: key, provider: model.ProviderGoogleVeo, value: "%%%"},
		{name: "too short", key: key, provider: model.ProviderGoogleVeo, value: base64.StdEncoding.EncodeToString([]byte("abc"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := openCredential(tt.key, tt.provider, tt.value)
			assert.Error(t, err)
		})
	}
}

func TestDecodeEncryptionKey(t *testing.T) {
	_, err := decodeEncryptionKey("")
	require.ErrorIs(t, err, errNoEncryptionKey)

	_, err = decodeEncryptionKey("zz")
	require.Error(t, err)

	_, err = decodeEncryptionKey("abcd")
	require.Error(t, err, "short keys are rejected")
}
