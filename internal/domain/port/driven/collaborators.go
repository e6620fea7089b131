package driven

import (
	"context"

	"github.com/bejocbrian/bringYourKey/internal/domain/model"
)

// Authorizer decides whether a user may generate with a provider.
type Authorizer interface {
	IsProviderAllowed(ctx context.Context, user string, provider model.ProviderID) bool
}

// CapabilityCatalog serves the read-only per-provider capability table.
type CapabilityCatalog interface {
	Capabilities(provider model.ProviderID) (model.Capabilities, bool)
}
