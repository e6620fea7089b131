package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bejocbrian/bringYourKey/internal/domain/model"
)

func TestCredentialRepo_PutAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()
	created := time.Date(2026, 2, 3, 4, 5, 6, 789, time.UTC)

	err := repo.Put(ctx, model.StoredCredential{
		Provider:    model.ProviderGoogleVeo,
		Ciphertext:  "bm9uY2UtY3Q=",
		DisplayName: "Work",
		CreatedAt:   created,
	})
	require.NoError(t, err)

	got, err := repo.Get(ctx, model.ProviderGoogleVeo)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ProviderGoogleVeo, got.Provider)
	assert.Equal(t, "bm9uY2UtY3Q=", got.Ciphertext)
	assert.Equal(t, "Work", got.DisplayName)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestCredentialRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)

	got, err := repo.Get(context.Background(), model.ProviderRunwayGen3)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCredentialRepo_PutOverwrites(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, model.StoredCredential{Provider: model.ProviderGoogleVeo, Ciphertext: "old", DisplayName: "a"}))
	require.NoError(t, repo.Put(ctx, model.StoredCredential{Provider: model.ProviderGoogleVeo, Ciphertext: "new", DisplayName: "b"}))

	got, err := repo.Get(ctx, model.ProviderGoogleVeo)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Ciphertext)
	assert.Equal(t, "b", got.DisplayName)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCredentialRepo_ListOrderedByProvider(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, model.StoredCredential{Provider: model.ProviderRunwayGen3, Ciphertext: "r"}))
	require.NoError(t, repo.Put(ctx, model.StoredCredential{Provider: model.ProviderGoogleVeo, Ciphertext: "g"}))
	require.NoError(t, repo.Put(ctx, model.StoredCredential{Provider: model.ProviderMetaMovieGen, Ciphertext: "m"}))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.ProviderGoogleVeo, all[0].Provider)
	assert.Equal(t, model.ProviderMetaMovieGen, all[1].Provider)
	assert.Equal(t, model.ProviderRunwayGen3, all[2].Provider)
}

func TestCredentialRepo_DeleteAndDeleteAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, model.StoredCredential{Provider: model.ProviderGoogleVeo, Ciphertext: "g"}))
	require.NoError(t, repo.Put(ctx, model.StoredCredential{Provider: model.ProviderRunwayGen3, Ciphertext: "r"}))

	require.NoError(t, repo.Delete(ctx, model.ProviderGoogleVeo))
	require.NoError(t, repo.Delete(ctx, model.ProviderGoogleVeo), "deleting a missing credential is not an error")

	got, err := repo.Get(ctx, model.ProviderGoogleVeo)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.DeleteAll(ctx))
	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
