// Package memory provides in-process implementations of the driven storage
// ports. State lives only as long as the process; it backs ephemeral runs
// (BYOK_STORAGE=memory) and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/bejocbrian/bringYourKey/internal/domain/model"
	"github.com/bejocbrian/bringYourKey/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.KeyStore        = (*KeyStore)(nil)
	_ driven.CredentialStore = (*CredentialStore)(nil)
	_ driven.JobStore        = (*JobStore)(nil)
)

// KeyStore holds the encryption key in memory.
type KeyStore struct {
	mu  sync.Mutex
	key string
}

// NewKeyStore creates an empty KeyStore.
func NewKeyStore() *KeyStore {
	return &KeyStore{}
}

// Load returns the stored key, or "" if none exists.
func (s *KeyStore) Load(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key, nil
}

// CreateIfAbsent stores candidate unless a key already exists.
func (s *KeyStore) CreateIfAbsent(_ context.Context, candidate string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == "" {
		s.key = candidate
	}
	return s.key, nil
}

// CredentialStore holds ciphertext credentials keyed by provider.
type CredentialStore struct {
	mu    sync.RWMutex
	creds map[model.ProviderID]model.StoredCredential
}

// NewCredentialStore creates an empty CredentialStore.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{creds: make(map[model.ProviderID]model.StoredCredential)}
}

// Put stores or replaces the credential for cred.Provider.
func (s *CredentialStore) Put(_ context.Context, cred model.StoredCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.Provider] = cred
	return nil
}

// Get returns the credential for provider, or (nil, nil).
func (s *CredentialStore) Get(_ context.Context, provider model.ProviderID) (*model.StoredCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[provider]
	if !ok {
		return nil, nil
	}
	return &cred, nil
}

// List returns every credential ordered by provider.
func (s *CredentialStore) List(_ context.Context) ([]model.StoredCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.StoredCredential, 0, len(s.creds))
	for _, c := range s.creds {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out, nil
}

// Delete removes the credential for provider.
func (s *CredentialStore) Delete(_ context.Context, provider model.ProviderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, provider)
	return nil
}

// DeleteAll removes every credential.
func (s *CredentialStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.creds)
	return nil
}

// JobStore holds generation jobs. Reads return copies so callers cannot
// mutate stored state.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]model.GenerationJob
	// seq records insertion order to break CreatedAt ties.
	seq  map[string]uint64
	next uint64
}

// NewJobStore creates an empty JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]model.GenerationJob),
		seq:  make(map[string]uint64),
	}
}

// Create inserts a new job.
func (s *JobStore) Create(_ context.Context, job model.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("create job %s: already exists", job.ID)
	}
	s.next++
	s.seq[job.ID] = s.next
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// Update overwrites an existing job.
func (s *JobStore) Update(_ context.Context, job model.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; !exists {
		return fmt.Errorf("%w: %s", model.ErrJobNotFound, job.ID)
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// Get returns the job with id, or (nil, nil).
func (s *JobStore) Get(_ context.Context, id string) (*model.GenerationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	job = cloneJob(job)
	return &job, nil
}

// List returns every job, newest first.
func (s *JobStore) List(_ context.Context) ([]model.GenerationJob, error) {
	return s.filter(func(model.GenerationJob) bool { return true }), nil
}

// ListByStatus returns jobs in any of the given statuses, newest first.
func (s *JobStore) ListByStatus(_ context.Context, statuses ...model.JobStatus) ([]model.GenerationJob, error) {
	return s.filter(func(j model.GenerationJob) bool {
		return slices.Contains(statuses, j.Status)
	}), nil
}

// ListByProvider returns jobs for provider, newest first.
func (s *JobStore) ListByProvider(_ context.Context, provider model.ProviderID) ([]model.GenerationJob, error) {
	return s.filter(func(j model.GenerationJob) bool { return j.Provider == provider }), nil
}

// Delete removes a job. Missing ids are ignored.
func (s *JobStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	delete(s.seq, id)
	return nil
}

func (s *JobStore) filter(keep func(model.GenerationJob) bool) []model.GenerationJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.GenerationJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		if keep(j) {
			out = append(out, cloneJob(j))
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.After(out[b].CreatedAt)
		}
		return s.seq[out[a].ID] > s.seq[out[b].ID]
	})
	return out
}

func cloneJob(j model.GenerationJob) model.GenerationJob {
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		j.CompletedAt = &t
	}
	return j
}
