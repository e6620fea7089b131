package model

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a generation job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ParseJobStatus converts a stored status string. "generating" is accepted as
// a synonym for processing.
func ParseJobStatus(s string) (JobStatus, error) {
	switch s {
	case string(JobStatusPending):
		return JobStatusPending, nil
	case string(JobStatusProcessing), "generating":
		return JobStatusProcessing, nil
	case string(JobStatusCompleted):
		return JobStatusCompleted, nil
	case string(JobStatusFailed):
		return JobStatusFailed, nil
	default:
		return "", fmt.Errorf("unknown job status %q", s)
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether moving from s to next is allowed.
// pending -> processing -> {completed|failed}, and pending -> failed.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next == JobStatusFailed
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// FailureKind classifies why a job failed.
type FailureKind string

const (
	FailureProvider    FailureKind = "provider"
	FailureTimeout     FailureKind = "timeout"
	FailureCancelled   FailureKind = "cancelled"
	FailureCredential  FailureKind = "credential"
	FailureInterrupted FailureKind = "interrupted"
)

// Settings are the user-chosen output parameters of a generation.
type Settings struct {
	Duration    int
	AspectRatio AspectRatio
}

// JobHandle is the opaque identifier a provider returns from a start call.
type JobHandle string

// GenerationJob is one video-generation request and its outcome.
// ResultReference is set iff Status is completed; ErrorMessage and
// FailureKind are set iff Status is failed.
type GenerationJob struct {
	ID              string
	Provider        ProviderID
	Prompt          string
	Settings        Settings
	Status          JobStatus
	Handle          JobHandle
	ResultReference string
	ErrorMessage    string
	FailureKind     FailureKind
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// IsTerminal reports whether the job is completed or failed.
func (j *GenerationJob) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// MarkProcessing records the provider handle and moves a pending job to processing.
func (j *GenerationJob) MarkProcessing(handle JobHandle, now time.Time) error {
	if err := j.transition(JobStatusProcessing); err != nil {
		return err
	}
	j.Handle = handle
	j.UpdatedAt = now
	return nil
}

// Complete records the playable artifact reference.
func (j *GenerationJob) Complete(resultReference string, now time.Time) error {
	if resultReference == "" {
		return fmt.Errorf("complete job %s: empty result reference", j.ID)
	}
	if err := j.transition(JobStatusCompleted); err != nil {
		return err
	}
	j.ResultReference = resultReference
	j.UpdatedAt = now
	j.CompletedAt = &now
	return nil
}

// Fail records a failure. An empty message is replaced so a failed job always
// carries a human-readable reason.
func (j *GenerationJob) Fail(kind FailureKind, message string, now time.Time) error {
	if err := j.transition(JobStatusFailed); err != nil {
		return err
	}
	if message == "" {
		message = "Video generation failed."
	}
	j.ErrorMessage = message
	j.FailureKind = kind
	j.UpdatedAt = now
	j.CompletedAt = &now
	return nil
}

func (j *GenerationJob) transition(next JobStatus) error {
	if !j.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: job %s %s -> %s", ErrInvalidTransition, j.ID, j.Status, next)
	}
	j.Status = next
	return nil
}

// PollState is the provider-reported state of a running job.
type PollState string

const (
	PollRunning   PollState = "running"
	PollCompleted PollState = "completed"
	PollFailed    PollState = "failed"
)

// PollResult is the outcome of one status check.
type PollResult struct {
	State           PollState
	ResultReference string
	Reason          string
}
