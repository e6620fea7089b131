// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bejocbrian/bringYourKey/internal/domain/model"
	"github.com/bejocbrian/bringYourKey/internal/domain/port/driven"
)

// Reference polling policy: one status check every 3s, at most 80 checks
// (about four minutes).
const (
	DefaultPollInterval    = 3 * time.Second
	DefaultMaxPollAttempts = 80
)

// MaxPromptLength is the longest prompt accepted, in characters.
const MaxPromptLength = 500

// User-facing failure messages.
const (
	msgStartFailed     = "Failed to start video generation."
	msgPollFailed      = "Failed to poll video generation."
	msgGenerationError = "Video generation failed."
	msgNoOutput        = "Video generation completed without output."
	msgTimedOut        = "Video generation timed out."
	msgCancelled       = "Generation cancelled."
	msgInterrupted     = "Generation was interrupted before the provider accepted it."
	msgCredentialLost  = "API key is no longer available; add it again to generate."
)

// CredentialSource yields decrypted provider keys. *Vault satisfies it.
type CredentialSource interface {
	DecryptedCredential(ctx context.Context, provider model.ProviderID) (string, bool)
}

// PollConfig controls the status polling loop.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPollConfig returns the reference polling policy.
func DefaultPollConfig() PollConfig {
	return PollConfig{Interval: DefaultPollInterval, MaxAttempts: DefaultMaxPollAttempts}
}

// SubmitRequest is one generation request from the UI.
type SubmitRequest struct {
	User     string
	Provider model.ProviderID
	Prompt   string
	Settings model.Settings
}

// pollTask is the single active polling loop for one job.
type pollTask struct {
	jobID      string
	handle     model.JobHandle
	credential string
	adapter    driven.ProviderAdapter
	cancel     context.CancelFunc
}

// GenerationService drives generation jobs from submission to a terminal
// state. Each processing job owns exactly one polling goroutine, tracked in
// tasks. All job writes happen under mu after confirming the writing task is
// still the active one for its job, so a cancelled or removed job is never
// touched by a late poll response.
type GenerationService struct {
	jobs        driven.JobStore
	credentials CredentialSource
	adapters    *AdapterRegistry
	catalog     driven.CapabilityCatalog
	authorizer  driven.Authorizer
	poll        PollConfig
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string

	mu    sync.Mutex
	tasks map[string]*pollTask

	root     context.Context
	stopAll  context.CancelFunc
	inflight sync.WaitGroup
}

// NewGenerationService creates a GenerationService with all required dependencies.
func NewGenerationService(
	jobs driven.JobStore,
	credentials CredentialSource,
	adapters *AdapterRegistry,
	catalog driven.CapabilityCatalog,
	authorizer driven.Authorizer,
	poll PollConfig,
	logger *slog.Logger,
) *GenerationService {
	if poll.Interval <= 0 {
		poll.Interval = DefaultPollInterval
	}
	if poll.MaxAttempts <= 0 {
		poll.MaxAttempts = DefaultMaxPollAttempts
	}

	root, stop := context.WithCancel(context.Background())

	return &GenerationService{
		jobs:        jobs,
		credentials: credentials,
		adapters:    adapters,
		catalog:     catalog,
		authorizer:  authorizer,
		poll:        poll,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return "gen-" + uuid.NewString() },
		tasks:       make(map[string]*pollTask),
		root:        root,
		stopAll:     stop,
	}
}

// Submit validates the request, starts the job with the provider and begins
// polling. The job id is returned as soon as the provider acknowledges; the
// terminal outcome arrives through the polling loop.
//
// Validation, permission, unsupported-provider and credential failures are
// returned before any job is created. A provider rejection of the start call
// produces a failed job, and Submit returns both its id and the error.
func (s *GenerationService) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	prompt, err := s.validate(req)
	if err != nil {
		return "", err
	}

	if !s.authorizer.IsProviderAllowed(ctx, req.User, req.Provider) {
		return "", fmt.Errorf("%w: %s is not enabled for this account", model.ErrPermission, req.Provider)
	}

	adapter, ok := s.adapters.Get(req.Provider)
	if !ok {
		return "", fmt.Errorf("%w: %s", model.ErrUnsupportedProvider, req.Provider)
	}

	credential, ok := s.credentials.DecryptedCredential(ctx, req.Provider)
	if !ok {
		return "", fmt.Errorf("%w: add a valid API key for %s first", model.ErrCredential, req.Provider)
	}

	now := s.now()
	job := model.GenerationJob{
		ID:        s.newID(),
		Provider:  req.Provider,
		Prompt:    prompt,
		Settings:  req.Settings,
		Status:    model.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create generation job: %w", err)
	}

	s.logger.Info("generation submitted", "job_id", job.ID, "provider", job.Provider,
		"duration", job.Settings.Duration, "aspect_ratio", job.Settings.AspectRatio)

	handle, startErr := adapter.Start(ctx, prompt, req.Settings, credential)

	// The job record must outlive the caller's request.
	writeCtx := context.WithoutCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.jobs.Get(writeCtx, job.ID)
	if err != nil {
		return job.ID, fmt.Errorf("reload generation job %s: %w", job.ID, err)
	}
	if current == nil || current.Status != model.JobStatusPending {
		// Removed or cancelled while the start call was in flight.
		s.logger.Info("generation abandoned during start", "job_id", job.ID)
		return job.ID, nil
	}

	if startErr != nil {
		if !errors.Is(startErr, model.ErrProvider) {
			startErr = fmt.Errorf("%w: %w", model.ErrProvider, startErr)
		}
		s.failLocked(writeCtx, current, model.FailureProvider, model.ProviderMessage(startErr, msgStartFailed))
		return job.ID, fmt.Errorf("start generation %s: %w", job.ID, startErr)
	}

	if err := current.MarkProcessing(handle, s.now()); err != nil {
		return job.ID, err
	}
	if err := s.jobs.Update(writeCtx, *current); err != nil {
		return job.ID, fmt.Errorf("update generation job %s: %w", job.ID, err)
	}

	s.startPollLocked(current.ID, handle, credential, adapter)
	return job.ID, nil
}

// Cancel stops the polling loop for id without contacting the provider. A job
// that has not reached a terminal state is marked failed as cancelled; the
// provider may keep working on it.
func (s *GenerationService) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopPollLocked(id)

	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get generation job %s: %w", id, err)
	}
	if job == nil {
		return fmt.Errorf("%w: %s", model.ErrJobNotFound, id)
	}
	if job.IsTerminal() {
		return nil
	}

	return s.failLocked(ctx, job, model.FailureCancelled, msgCancelled)
}

// Remove stops any polling loop for id and deletes the job. Removing an
// unknown id is a no-op.
func (s *GenerationService) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopPollLocked(id)

	if err := s.jobs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete generation job %s: %w", id, err)
	}
	s.logger.Info("generation removed", "job_id", id)
	return nil
}

// ListJobs returns every job, newest first.
func (s *GenerationService) ListJobs(ctx context.Context) ([]model.GenerationJob, error) {
	return s.jobs.List(ctx)
}

// JobsByProvider returns the jobs for one provider, newest first.
func (s *GenerationService) JobsByProvider(ctx context.Context, provider model.ProviderID) ([]model.GenerationJob, error) {
	return s.jobs.ListByProvider(ctx, provider)
}

// Job returns a single job, or model.ErrJobNotFound.
func (s *GenerationService) Job(ctx context.Context, id string) (*model.GenerationJob, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get generation job %s: %w", id, err)
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrJobNotFound, id)
	}
	return job, nil
}

// ActiveJobIDs returns the ids with a running polling loop, sorted.
func (s *GenerationService) ActiveJobIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Resume restarts polling for jobs left processing by a previous run and
// fails jobs that never got past pending. Jobs that already have a loop are
// skipped. It returns the number of loops started.
func (s *GenerationService) Resume(ctx context.Context) (int, error) {
	jobs, err := s.jobs.ListByStatus(ctx, model.JobStatusPending, model.JobStatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("list unfinished jobs: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var resumed int
	for i := range jobs {
		job := &jobs[i]
		if _, running := s.tasks[job.ID]; running {
			continue
		}

		if job.Status == model.JobStatusPending || job.Handle == "" {
			s.failLocked(ctx, job, model.FailureInterrupted, msgInterrupted)
			continue
		}

		adapter, ok := s.adapters.Get(job.Provider)
		if !ok {
			s.failLocked(ctx, job, model.FailureProvider, fmt.Sprintf("Provider %s is not supported.", job.Provider))
			continue
		}

		credential, ok := s.credentials.DecryptedCredential(ctx, job.Provider)
		if !ok {
			s.failLocked(ctx, job, model.FailureCredential, msgCredentialLost)
			continue
		}

		if s.startPollLocked(job.ID, job.Handle, credential, adapter) {
			resumed++
		}
	}

	if resumed > 0 {
		s.logger.Info("generation polling resumed", "jobs", resumed)
	}
	return resumed, nil
}

// Shutdown stops every polling loop and waits for them to exit. Jobs keep
// their last persisted state so Resume can pick them up later.
func (s *GenerationService) Shutdown() {
	s.mu.Lock()
	s.stopAll()
	for id, task := range s.tasks {
		task.cancel()
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	s.inflight.Wait()
	s.logger.Info("generation service stopped")
}

// validate checks the request against the provider's capabilities and
// returns the trimmed prompt.
func (s *GenerationService) validate(req SubmitRequest) (string, error) {
	if !req.Provider.Valid() {
		return "", fmt.Errorf("%w: unknown provider %q", model.ErrValidation, req.Provider)
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt is required", model.ErrValidation)
	}
	if n := utf8.RuneCountInString(prompt); n > MaxPromptLength {
		return "", fmt.Errorf("%w: prompt is %d characters, limit is %d", model.ErrValidation, n, MaxPromptLength)
	}

	caps, ok := s.catalog.Capabilities(req.Provider)
	if !ok {
		return "", fmt.Errorf("%w: no capabilities declared for %s", model.ErrValidation, req.Provider)
	}
	if err := caps.Validate(req.Settings); err != nil {
		return "", err
	}

	return prompt, nil
}

// startPollLocked registers and launches the polling loop for a job. It is a
// no-op returning false if the job already has a loop or the service has been
// shut down. Callers hold mu.
func (s *GenerationService) startPollLocked(jobID string, handle model.JobHandle, credential string, adapter driven.ProviderAdapter) bool {
	if _, exists := s.tasks[jobID]; exists {
		return false
	}
	if s.root.Err() != nil {
		s.logger.Debug("service stopped, job left for resume", "job_id", jobID)
		return false
	}

	ctx, cancel := context.WithCancel(s.root)
	task := &pollTask{
		jobID:      jobID,
		handle:     handle,
		credential: credential,
		adapter:    adapter,
		cancel:     cancel,
	}
	s.tasks[jobID] = task

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		s.run(ctx, task)
	}()

	s.logger.Debug("polling started", "job_id", jobID, "interval", s.poll.Interval, "max_attempts", s.poll.MaxAttempts)
	return true
}

// stopPollLocked cancels and forgets the loop for id, if any. Callers hold mu.
func (s *GenerationService) stopPollLocked(id string) {
	if task, ok := s.tasks[id]; ok {
		task.cancel()
		delete(s.tasks, id)
		s.logger.Debug("polling stopped", "job_id", id)
	}
}

// run is the polling loop. Each check is issued only after the previous one
// has resolved, and the loop ends after MaxAttempts checks at the latest.
func (s *GenerationService) run(ctx context.Context, task *pollTask) {
	timer := time.NewTimer(s.poll.Interval)
	defer timer.Stop()

	for attempt := 1; attempt <= s.poll.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		result, err := task.adapter.CheckStatus(ctx, task.handle, task.credential)
		if ctx.Err() != nil {
			return
		}

		if s.handlePollResult(task, attempt, result, err) {
			return
		}

		timer.Reset(s.poll.Interval)
	}

	s.logger.Warn("poll budget exhausted", "job_id", task.jobID, "attempts", s.poll.MaxAttempts, "error", model.ErrTimeout)
	s.settle(task, func(job *model.GenerationJob, now time.Time) error {
		return job.Fail(model.FailureTimeout, msgTimedOut, now)
	})
}

// handlePollResult interprets one status check. It returns true when the
// loop must end.
func (s *GenerationService) handlePollResult(task *pollTask, attempt int, result model.PollResult, err error) bool {
	if err != nil {
		s.logger.Warn("status check failed", "job_id", task.jobID, "attempt", attempt, "error", err)
		message := model.ProviderMessage(err, msgPollFailed)
		s.settle(task, func(job *model.GenerationJob, now time.Time) error {
			return job.Fail(model.FailureProvider, message, now)
		})
		return true
	}

	switch result.State {
	case model.PollRunning:
		s.logger.Debug("generation still running", "job_id", task.jobID, "attempt", attempt)
		return false
	case model.PollCompleted:
		s.settle(task, func(job *model.GenerationJob, now time.Time) error {
			if result.ResultReference == "" {
				return job.Fail(model.FailureProvider, msgNoOutput, now)
			}
			return job.Complete(result.ResultReference, now)
		})
		return true
	case model.PollFailed:
		reason := result.Reason
		if reason == "" {
			reason = msgGenerationError
		}
		s.settle(task, func(job *model.GenerationJob, now time.Time) error {
			return job.Fail(model.FailureProvider, reason, now)
		})
		return true
	default:
		message := fmt.Sprintf("Provider reported unknown status %q.", result.State)
		s.settle(task, func(job *model.GenerationJob, now time.Time) error {
			return job.Fail(model.FailureProvider, message, now)
		})
		return true
	}
}

// settle applies a terminal transition on behalf of task, provided task is
// still the active loop for its job. Stale results are dropped.
func (s *GenerationService) settle(task *pollTask, apply func(job *model.GenerationJob, now time.Time) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tasks[task.jobID] != task {
		s.logger.Debug("discarding stale poll result", "job_id", task.jobID)
		return
	}
	delete(s.tasks, task.jobID)

	ctx := context.WithoutCancel(s.root)
	job, err := s.jobs.Get(ctx, task.jobID)
	if err != nil {
		s.logger.Error("reload job failed", "job_id", task.jobID, "error", err)
		return
	}
	if job == nil {
		return
	}

	if err := apply(job, s.now()); err != nil {
		s.logger.Error("job transition rejected", "job_id", task.jobID, "error", err)
		return
	}
	if err := s.jobs.Update(ctx, *job); err != nil {
		s.logger.Error("persist job failed", "job_id", task.jobID, "error", err)
		return
	}

	s.logJobOutcome(job)
}

// failLocked marks job failed and persists it. Callers hold mu.
func (s *GenerationService) failLocked(ctx context.Context, job *model.GenerationJob, kind model.FailureKind, message string) error {
	if err := job.Fail(kind, message, s.now()); err != nil {
		return err
	}
	if err := s.jobs.Update(ctx, *job); err != nil {
		s.logger.Error("persist job failed", "job_id", job.ID, "error", err)
		return fmt.Errorf("update generation job %s: %w", job.ID, err)
	}
	s.logJobOutcome(job)
	return nil
}

func (s *GenerationService) logJobOutcome(job *model.GenerationJob) {
	if job.Status == model.JobStatusCompleted {
		s.logger.Info("generation completed", "job_id", job.ID, "provider", job.Provider)
		return
	}
	s.logger.Info("generation failed",
		"job_id", job.ID,
		"provider", job.Provider,
		"kind", job.FailureKind,
		"reason", job.ErrorMessage,
	)
}
