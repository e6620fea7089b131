package httphandler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/bejocbrian/bringYourKey/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body. ID is set when the
// error concerns a job that was nevertheless created.
type errorResponse struct {
	Error string `json:"error"`
	ID    string `json:"id,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status     string `json:"status"`
	Time       string `json:"time"`
	ActiveJobs int    `json:"active_jobs"`
}

// ProviderResponse describes a provider, its limits and whether it can be
// used right now.
type ProviderResponse struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	DocsURL          string   `json:"docs_url"`
	MaxDuration      int      `json:"max_duration"`
	Durations        []int    `json:"durations"`
	AspectRatios     []string `json:"aspect_ratios"`
	CredentialStatus string   `json:"credential_status"`
	Allowed          bool     `json:"allowed"`
	Supported        bool     `json:"supported"`
}

// CredentialResponse is the plaintext-free view of a stored key.
type CredentialResponse struct {
	Provider  string `json:"provider"`
	Name      string `json:"name,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at,omitempty"`
}

// PutCredentialRequest is the JSON body for storing an API key.
type PutCredentialRequest struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// SubmitGenerationRequest is the JSON body for starting a generation.
type SubmitGenerationRequest struct {
	Provider    string `json:"provider"`
	Prompt      string `json:"prompt"`
	Duration    int    `json:"duration"`
	AspectRatio string `json:"aspect_ratio"`
}

// SubmitGenerationResponse carries the id of the accepted job.
type SubmitGenerationResponse struct {
	ID string `json:"id"`
}

// JobResponse is the JSON representation of a generation job.
type JobResponse struct {
	ID              string `json:"id"`
	Provider        string `json:"provider"`
	Prompt          string `json:"prompt"`
	Duration        int    `json:"duration"`
	AspectRatio     string `json:"aspect_ratio"`
	Status          string `json:"status"`
	ResultReference string `json:"result_reference,omitempty"`
	Error           string `json:"error,omitempty"`
	FailureKind     string `json:"failure_kind,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
	CompletedAt     string `json:"completed_at,omitempty"`
}

func toProviderResponse(caps model.Capabilities, status model.CredentialStatus, allowed, supported bool) ProviderResponse {
	ratios := make([]string, 0, len(caps.SupportedAspectRatios))
	for _, a := range caps.SupportedAspectRatios {
		ratios = append(ratios, string(a))
	}

	return ProviderResponse{
		ID:               string(caps.Provider),
		Name:             caps.Name,
		Description:      caps.Description,
		DocsURL:          caps.DocsURL,
		MaxDuration:      caps.MaxDuration,
		Durations:        caps.DurationOptions(),
		AspectRatios:     ratios,
		CredentialStatus: string(status),
		Allowed:          allowed,
		Supported:        supported,
	}
}

func toCredentialResponse(s model.CredentialSummary) CredentialResponse {
	resp := CredentialResponse{
		Provider: string(s.Provider),
		Name:     s.DisplayName,
		Status:   string(s.Status),
	}
	if !s.CreatedAt.IsZero() {
		resp.CreatedAt = s.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toJobResponse(j model.GenerationJob) JobResponse {
	resp := JobResponse{
		ID:              j.ID,
		Provider:        string(j.Provider),
		Prompt:          j.Prompt,
		Duration:        j.Settings.Duration,
		AspectRatio:     string(j.Settings.AspectRatio),
		Status:          string(j.Status),
		ResultReference: j.ResultReference,
		Error:           j.ErrorMessage,
		FailureKind:     string(j.FailureKind),
		CreatedAt:       j.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       j.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if j.CompletedAt != nil {
		resp.CompletedAt = j.CompletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func displayName(name string, provider model.ProviderID) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return string(provider)
}
