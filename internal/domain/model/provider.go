package model

import (
	"fmt"
	"slices"
)

// ProviderID identifies a video-generation vendor.
type ProviderID string

const (
	ProviderGoogleVeo    ProviderID = "google-veo"
	ProviderMetaMovieGen ProviderID = "meta-moviegen"
	ProviderRunwayGen3   ProviderID = "runway-gen3"
)

// Providers returns every known provider in display order.
func Providers() []ProviderID {
	return []ProviderID{ProviderGoogleVeo, ProviderMetaMovieGen, ProviderRunwayGen3}
}

// Valid reports whether p is one of the known providers.
func (p ProviderID) Valid() bool {
	return slices.Contains(Providers(), p)
}

func (p ProviderID) String() string {
	return string(p)
}

// UnmarshalText implements encoding.TextUnmarshaler so provider lists can be
// read straight from configuration.
func (p *ProviderID) UnmarshalText(text []byte) error {
	parsed, err := ParseProviderID(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParseProviderID converts s to a ProviderID, rejecting unknown identifiers.
func ParseProviderID(s string) (ProviderID, error) {
	p := ProviderID(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown provider %q", ErrValidation, s)
	}
	return p, nil
}

// AspectRatio is the output frame shape of a generated video.
type AspectRatio string

const (
	AspectRatioLandscape AspectRatio = "16:9"
	AspectRatioPortrait  AspectRatio = "9:16"
	AspectRatioSquare    AspectRatio = "1:1"
)

// Valid reports whether a is one of the known aspect ratios.
func (a AspectRatio) Valid() bool {
	switch a {
	case AspectRatioLandscape, AspectRatioPortrait, AspectRatioSquare:
		return true
	default:
		return false
	}
}

// Capabilities is the read-only reference data for one provider.
type Capabilities struct {
	Provider    ProviderID
	Name        string
	Description string
	DocsURL     string
	MaxDuration int
	// SupportedDurations lists the discrete durations, in seconds, the
	// provider accepts. Nil means every whole second from 1 to MaxDuration.
	SupportedDurations    []int
	SupportedAspectRatios []AspectRatio
}

// DurationOptions returns the durations a request may use, in ascending order.
func (c Capabilities) DurationOptions() []int {
	if len(c.SupportedDurations) > 0 {
		return slices.Clone(c.SupportedDurations)
	}
	opts := make([]int, 0, c.MaxDuration)
	for d := 1; d <= c.MaxDuration; d++ {
		opts = append(opts, d)
	}
	return opts
}

// Validate checks settings against the provider's declared capabilities.
// Out-of-range values are rejected, never clamped.
func (c Capabilities) Validate(s Settings) error {
	if s.Duration <= 0 {
		return fmt.Errorf("%w: duration must be a positive number of seconds", ErrValidation)
	}
	if s.Duration > c.MaxDuration {
		return fmt.Errorf("%w: duration %ds exceeds %s maximum of %ds", ErrValidation, s.Duration, c.Provider, c.MaxDuration)
	}
	if len(c.SupportedDurations) > 0 && !slices.Contains(c.SupportedDurations, s.Duration) {
		return fmt.Errorf("%w: duration %ds is not supported by %s (supported: %v)", ErrValidation, s.Duration, c.Provider, c.SupportedDurations)
	}
	if !s.AspectRatio.Valid() {
		return fmt.Errorf("%w: unknown aspect ratio %q", ErrValidation, s.AspectRatio)
	}
	if !slices.Contains(c.SupportedAspectRatios, s.AspectRatio) {
		return fmt.Errorf("%w: aspect ratio %s is not supported by %s", ErrValidation, s.AspectRatio, c.Provider)
	}
	return nil
}

// Catalog maps providers to their capabilities.
type Catalog map[ProviderID]Capabilities

// Capabilities returns the entry for p.
func (c Catalog) Capabilities(p ProviderID) (Capabilities, bool) {
	caps, ok := c[p]
	return caps, ok
}

// DefaultCatalog returns the built-in capability table.
func DefaultCatalog() Catalog {
	return Catalog{
		ProviderGoogleVeo: {
			Provider:              ProviderGoogleVeo,
			Name:                  "Google Veo 3.1 Fast",
			Description:           "Google's Veo fast video generation model",
			DocsURL:               "https://cloud.google.com/vertex-ai/docs/generative-ai/video/overview",
			MaxDuration:           8,
			SupportedDurations:    []int{4, 6, 8},
			SupportedAspectRatios: []AspectRatio{AspectRatioLandscape, AspectRatioPortrait, AspectRatioSquare},
		},
		ProviderMetaMovieGen: {
			Provider:              ProviderMetaMovieGen,
			Name:                  "Meta Movie Gen",
			Description:           "Meta's AI video generation model",
			DocsURL:               "https://ai.meta.com/",
			MaxDuration:           16,
			SupportedAspectRatios: []AspectRatio{AspectRatioLandscape, AspectRatioPortrait},
		},
		ProviderRunwayGen3: {
			Provider:              ProviderRunwayGen3,
			Name:                  "Runway Gen-3",
			Description:           "Runway's latest video generation model",
			DocsURL:               "https://runwayml.com/",
			MaxDuration:           10,
			SupportedAspectRatios: []AspectRatio{AspectRatioLandscape, AspectRatioPortrait, AspectRatioSquare},
		},
	}
}
