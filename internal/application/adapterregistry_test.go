package application_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bejocbrian/bringYourKey/internal/application"
	"github.com/bejocbrian/bringYourKey/internal/domain/model"
)

func TestAdapterRegistry_RegisterAndGet(t *testing.T) {
	registry := application.NewAdapterRegistry()

	_, ok := registry.Get(model.ProviderGoogleVeo)
	require.False(t, ok)
	require.False(t, registry.Has(model.ProviderGoogleVeo))

	adapter := &mockAdapter{}
	registry.Register(model.ProviderGoogleVeo, adapter)

	got, ok := registry.Get(model.ProviderGoogleVeo)
	require.True(t, ok)
	assert.Same(t, adapter, got)
	assert.Equal(t, []model.ProviderID{model.ProviderGoogleVeo}, registry.Supported())
}

func TestAdapterRegistry_ReplaceSwapsAdapter(t *testing.T) {
	original := &mockAdapter{}
	replacement := &mockAdapter{}

	registry := application.NewAdapterRegistry()
	registry.Register(model.ProviderRunwayGen3, original)
	registry.Register(model.ProviderRunwayGen3, replacement)

	got, _ := registry.Get(model.ProviderRunwayGen3)
	assert.Same(t, replacement, got)
}

func TestAdapterRegistry_SupportedInDisplayOrder(t *testing.T) {
	registry := application.NewAdapterRegistry()
	registry.Register(model.ProviderRunwayGen3, &mockAdapter{})
	registry.Register(model.ProviderGoogleVeo, &mockAdapter{})

	assert.Equal(t, []model.ProviderID{model.ProviderGoogleVeo, model.ProviderRunwayGen3}, registry.Supported())
}

func TestAdapterRegistry_ConcurrentGetRegisterSafety(t *testing.T) {
	first := &mockAdapter{}
	second := &mockAdapter{}
	registry := application.NewAdapterRegistry()
	registry.Register(model.ProviderGoogleVeo, first)

	const goroutines = 100
	var wg sync.WaitGroup
	wg.Add(goroutines * 2)

	for range goroutines {
		go func() {
			defer wg.Done()
			got, ok := registry.Get(model.ProviderGoogleVeo)
			assert.True(t, ok)
			assert.NotNil(t, got)
		}()
		go func() {
			defer wg.Done()
			registry.Register(model.ProviderGoogleVeo, second)
		}()
	}

	wg.Wait()

	got, _ := registry.Get(model.ProviderGoogleVeo)
	assert.Same(t, second, got)
}

func TestAllowList(t *testing.T) {
	ctx := context.Background()

	all := application.NewAllowList(nil)
	for _, p := range model.Providers() {
		assert.True(t, all.IsProviderAllowed(ctx, "anyone", p), p)
	}
	assert.False(t, all.IsProviderAllowed(ctx, "anyone", "sora"))

	only := application.NewAllowList([]model.ProviderID{model.ProviderRunwayGen3})
	assert.False(t, only.IsProviderAllowed(ctx, "local", model.ProviderGoogleVeo))
	assert.True(t, only.IsProviderAllowed(ctx, "local", model.ProviderRunwayGen3))
	assert.Equal(t, []model.ProviderID{model.ProviderRunwayGen3}, only.Allowed())
}
