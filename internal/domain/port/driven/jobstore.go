package driven

import (
	"context"

	"github.com/bejocbrian/bringYourKey/internal/domain/model"
)

// JobStore defines the driven port for generation job persistence.
// List methods return jobs newest first.
type JobStore interface {
	Create(ctx context.Context, job model.GenerationJob) error
	// Update overwrites the stored job with the same ID. Returns
	// model.ErrJobNotFound if it does not exist.
	Update(ctx context.Context, job model.GenerationJob) error
	// Get returns (nil, nil) if the job does not exist.
	Get(ctx context.Context, id string) (*model.GenerationJob, error)
	List(ctx context.Context) ([]model.GenerationJob, error)
	ListByStatus(ctx context.Context, statuses ...model.JobStatus) ([]model.GenerationJob, error)
	ListByProvider(ctx context.Context, provider model.ProviderID) ([]model.GenerationJob, error)
	// Delete removes the job. Deleting a missing job is not an error.
	Delete(ctx context.Context, id string) error
}
