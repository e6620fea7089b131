package application

import (
	"context"

	"github.com/bejocbrian/bringYourKey/internal/domain/model"
	"github.com/bejocbrian/bringYourKey/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Authorizer = (*AllowList)(nil)

// AllowList is a static Authorizer. On a single device every user shares
// the same list.
type AllowList struct {
	allowed map[model.ProviderID]bool
}

// NewAllowList creates an AllowList. An empty list allows every known provider.
func NewAllowList(providers []model.ProviderID) *AllowList {
	if len(providers) == 0 {
		providers = model.Providers()
	}
	allowed := make(map[model.ProviderID]bool, len(providers))
	for _, p := range providers {
		allowed[p] = true
	}
	return &AllowList{allowed: allowed}
}

// IsProviderAllowed reports whether provider is on the list.
func (a *AllowList) IsProviderAllowed(_ context.Context, _ string, provider model.ProviderID) bool {
	return a.allowed[provider]
}

// Allowed returns the allowed providers in display order.
func (a *AllowList) Allowed() []model.ProviderID {
	var out []model.ProviderID
	for _, p := range model.Providers() {
		if a.allowed[p] {
			out = append(out, p)
		}
	}
	return out
}
