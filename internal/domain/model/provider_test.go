package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProviderID(t *testing.T) {
	for _, p := range Providers() {
		got, err := ParseProviderID(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := ParseProviderID("sora")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ParseProviderID("")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestProviderID_UnmarshalText(t *testing.T) {
	var p ProviderID
	require.NoError(t, p.UnmarshalText([]byte("runway-gen3")))
	assert.Equal(t, ProviderRunwayGen3, p)

	assert.Error(t, p.UnmarshalText([]byte("Google-Veo")))
}

func TestCapabilities_DurationOptions(t *testing.T) {
	catalog := DefaultCatalog()

	veo, ok := catalog.Capabilities(ProviderGoogleVeo)
	require.True(t, ok)
	assert.Equal(t, []int{4, 6, 8}, veo.DurationOptions())

	runway, ok := catalog.Capabilities(ProviderRunwayGen3)
	require.True(t, ok)
	opts := runway.DurationOptions()
	assert.Len(t, opts, 10)
	assert.Equal(t, 1, opts[0])
	assert.Equal(t, 10, opts[9])

	// The returned slice is a copy.
	opts = veo.DurationOptions()
	opts[0] = 99
	assert.Equal(t, []int{4, 6, 8}, veo.DurationOptions())
}

func TestCapabilities_Validate(t *testing.T) {
	catalog := DefaultCatalog()

	tests := []struct {
		name     string
		provider ProviderID
		settings Settings
		wantErr  bool
	}{
		{name: "veo max", provider: ProviderGoogleVeo, settings: Settings{Duration: 8, AspectRatio: AspectRatioLandscape}},
		{name: "veo discrete", provider: ProviderGoogleVeo, settings: Settings{Duration: 4, AspectRatio: AspectRatioSquare}},
		{name: "veo off grid", provider: ProviderGoogleVeo, settings: Settings{Duration: 5, AspectRatio: AspectRatioLandscape}, wantErr: true},
		{name: "veo too long", provider: ProviderGoogleVeo, settings: Settings{Duration: 10, AspectRatio: AspectRatioLandscape}, wantErr: true},
		{name: "meta max", provider: ProviderMetaMovieGen, settings: Settings{Duration: 16, AspectRatio: AspectRatioPortrait}},
		{name: "meta square unsupported", provider: ProviderMetaMovieGen, settings: Settings{Duration: 8, AspectRatio: AspectRatioSquare}, wantErr: true},
		{name: "runway over max", provider: ProviderRunwayGen3, settings: Settings{Duration: 11, AspectRatio: AspectRatioLandscape}, wantErr: true},
		{name: "zero duration", provider: ProviderRunwayGen3, settings: Settings{Duration: 0, AspectRatio: AspectRatioLandscape}, wantErr: true},
		{name: "negative duration", provider: ProviderRunwayGen3, settings: Settings{Duration: -1, AspectRatio: AspectRatioLandscape}, wantErr: true},
		{name: "unknown ratio", provider: ProviderRunwayGen3, settings: Settings{Duration: 5, AspectRatio: "4:3"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps, ok := catalog.Capabilities(tt.provider)
			require.True(t, ok)

			err := caps.Validate(tt.settings)

			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDefaultCatalog_CoversEveryProvider(t *testing.T) {
	catalog := DefaultCatalog()
	for _, p := range Providers() {
		caps, ok := catalog.Capabilities(p)
		require.True(t, ok, p)
		assert.Equal(t, p, caps.Provider)
		assert.NotEmpty(t, caps.Name)
		assert.Positive(t, caps.MaxDuration)
		assert.NotEmpty(t, caps.SupportedAspectRatios)
	}
}

func TestProviderError(t *testing.T) {
	err := error(&ProviderError{Message: "Quota exceeded.", StatusCode: 429})

	assert.ErrorIs(t, err, ErrProvider)
	assert.Equal(t, "Quota exceeded.", ProviderMessage(err, "fallback"))
	assert.Equal(t, "fallback", ProviderMessage(errors.New("boom"), "fallback"))
	assert.Contains(t, err.Error(), "429")

	assert.ErrorIs(t, ErrUnsupportedProvider, ErrProvider)
}
