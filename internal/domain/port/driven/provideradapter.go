package driven

import (
	"context"

	"github.com/bejocbrian/bringYourKey/internal/domain/model"
)

// ProviderAdapter is the uniform contract every video-generation vendor
// integration implements. Vendors that finish in a single call and vendors
// that expose a long-running operation are both driven through Start then
// CheckStatus.
type ProviderAdapter interface {
	// Start submits the generation and returns the vendor's job handle.
	// Rejections are reported as errors wrapping model.ErrProvider, ideally a
	// *model.ProviderError carrying the vendor message.
	Start(ctx context.Context, prompt string, settings model.Settings, credential string) (model.JobHandle, error)

	// CheckStatus reports the current state of the job identified by handle.
	// A returned error means the status call itself failed.
	CheckStatus(ctx context.Context, handle model.JobHandle, credential string) (model.PollResult, error)
}
