package driven

import "context"

// ArtifactStore persists generated media that a provider returned inline and
// hands back a playable reference (URL or path) for it.
type ArtifactStore interface {
	Save(ctx context.Context, name, contentType string, data []byte) (string, error)
}
