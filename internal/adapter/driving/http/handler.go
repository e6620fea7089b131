// Package httphandler is the JSON REST driving adapter.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/bejocbrian/bringYourKey/internal/application"
	"github.com/bejocbrian/bringYourKey/internal/domain/model"
	"github.com/bejocbrian/bringYourKey/internal/domain/port/driven"
)

// maxBodyBytes bounds request bodies; API keys and prompts are small.
const maxBodyBytes = 64 << 10

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	vault       *application.Vault
	generations *application.GenerationService
	adapters    *application.AdapterRegistry
	catalog     driven.CapabilityCatalog
	authorizer  driven.Authorizer
	userID      string
	logger      *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	vault *application.Vault,
	generations *application.GenerationService,
	adapters *application.AdapterRegistry,
	catalog driven.CapabilityCatalog,
	authorizer driven.Authorizer,
	userID string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		vault:       vault,
		generations: generations,
		adapters:    adapters,
		catalog:     catalog,
		authorizer:  authorizer,
		userID:      userID,
		logger:      logger,
	}
}

// RegisterRoutes registers all API routes on mux.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/providers", h.ListProviders)

	mux.HandleFunc("GET /api/v1/credentials", h.ListCredentials)
	mux.HandleFunc("PUT /api/v1/credentials/{provider}", h.PutCredential)
	mux.HandleFunc("DELETE /api/v1/credentials/{provider}", h.DeleteCredential)
	mux.HandleFunc("DELETE /api/v1/credentials", h.ClearCredentials)

	mux.HandleFunc("GET /api/v1/generations", h.ListGenerations)
	mux.HandleFunc("POST /api/v1/generations", h.SubmitGeneration)
	mux.HandleFunc("GET /api/v1/generations/{id}", h.GetGeneration)
	mux.HandleFunc("POST /api/v1/generations/{id}/cancel", h.CancelGeneration)
	mux.HandleFunc("DELETE /api/v1/generations/{id}", h.DeleteGeneration)
}

// NewServeMux creates an http.Handler with the API routes registered and
// wrapped with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	RegisterRoutes(mux, h)
	return Wrap(mux, logger)
}

// Wrap applies the standard middleware chain to next. Unsafe requests sent
// by another site are rejected with 403 before they reach a handler.
func Wrap(next http.Handler, logger *slog.Logger) http.Handler {
	wrapped := http.NewCrossOriginProtection().Handler(next)
	// Recovery inside logging so panics are caught before logging.
	wrapped = recoveryMiddleware(logger, wrapped)
	wrapped = loggingMiddleware(logger, wrapped)
	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339),
		ActiveJobs: len(h.generations.ActiveJobIDs()),
	})
}

// ListProviders returns every provider with its capabilities and the state
// of its credential.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := make([]ProviderResponse, 0, len(model.Providers()))
	for _, p := range model.Providers() {
		caps, ok := h.catalog.Capabilities(p)
		if !ok {
			continue
		}
		resp = append(resp, toProviderResponse(
			caps,
			h.vault.Status(ctx, p),
			h.authorizer.IsProviderAllowed(ctx, h.userID, p),
			h.adapters.Has(p),
		))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListCredentials returns one plaintext-free summary per provider.
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.vault.Credentials(r.Context())
	if err != nil {
		h.writeServiceError(w, "failed to list credentials", err)
		return
	}

	resp := make([]CredentialResponse, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, toCredentialResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

// PutCredential encrypts and stores the API key for a provider.
func (h *Handler) PutCredential(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providerParam(w, r)
	if !ok {
		return
	}

	var req PutCredentialRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.vault.AddCredential(r.Context(), provider, req.Key, req.Name); err != nil {
		h.writeServiceError(w, "failed to store credential", err)
		return
	}

	writeJSON(w, http.StatusOK, CredentialResponse{
		Provider: string(provider),
		Status:   string(h.vault.Status(r.Context(), provider)),
		Name:     displayName(req.Name, provider),
	})
}

// DeleteCredential removes the API key for a provider. Removing a key that
// is not stored still succeeds.
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providerParam(w, r)
	if !ok {
		return
	}

	if err := h.vault.RemoveCredential(r.Context(), provider); err != nil {
		h.writeServiceError(w, "failed to remove credential", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClearCredentials removes every stored API key.
func (h *Handler) ClearCredentials(w http.ResponseWriter, r *http.Request) {
	if err := h.vault.ClearCredentials(r.Context()); err != nil {
		h.writeServiceError(w, "failed to clear credentials", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListGenerations returns all jobs newest first, optionally filtered by
// ?provider=.
func (h *Handler) ListGenerations(w http.ResponseWriter, r *http.Request) {
	var (
		jobs []model.GenerationJob
		err  error
	)

	if raw := r.URL.Query().Get("provider"); raw != "" {
		provider, perr := model.ParseProviderID(raw)
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		jobs, err = h.generations.JobsByProvider(r.Context(), provider)
	} else {
		jobs, err = h.generations.ListJobs(r.Context())
	}
	if err != nil {
		h.writeServiceError(w, "failed to list generations", err)
		return
	}

	resp := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp = append(resp, toJobResponse(j))
	}

	writeJSON(w, http.StatusOK, resp)
}

// SubmitGeneration starts a new generation and returns its id with 202.
// Polling continues in the background; clients read progress from
// GET /api/v1/generations/{id}.
func (h *Handler) SubmitGeneration(w http.ResponseWriter, r *http.Request) {
	var req SubmitGenerationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := h.generations.Submit(r.Context(), application.SubmitRequest{
		User:     h.userID,
		Provider: model.ProviderID(req.Provider),
		Prompt:   req.Prompt,
		Settings: model.Settings{
			Duration:    req.Duration,
			AspectRatio: model.AspectRatio(req.AspectRatio),
		},
	})
	if err != nil {
		if id != "" {
			// The provider rejected the start; the failed job exists.
			h.logger.Warn("generation start rejected", "job_id", id, "error", err)
			writeJSON(w, statusFor(err), errorResponse{Error: messageFor(err), ID: id})
			return
		}
		h.writeServiceError(w, "failed to submit generation", err)
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitGenerationResponse{ID: id})
}

// GetGeneration returns a single job.
func (h *Handler) GetGeneration(w http.ResponseWriter, r *http.Request) {
	job, err := h.generations.Job(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, "failed to get generation", err)
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(*job))
}

// CancelGeneration stops polling and marks the job cancelled.
func (h *Handler) CancelGeneration(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.generations.Cancel(r.Context(), id); err != nil {
		h.writeServiceError(w, "failed to cancel generation", err)
		return
	}

	job, err := h.generations.Job(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "failed to get generation", err)
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(*job))
}

// DeleteGeneration stops polling and deletes the job.
func (h *Handler) DeleteGeneration(w http.ResponseWriter, r *http.Request) {
	if err := h.generations.Remove(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, "failed to delete generation", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) providerParam(w http.ResponseWriter, r *http.Request) (model.ProviderID, bool) {
	provider, err := model.ParseProviderID(r.PathValue("provider"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return provider, true
}

// writeServiceError maps a service error to its HTTP status. Internal errors
// are logged and hidden from the client.
func (h *Handler) writeServiceError(w http.ResponseWriter, logMsg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(logMsg, "error", err)
	}
	writeError(w, status, messageFor(err))
}

// statusFor maps domain error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrCredential):
		return http.StatusPreconditionFailed
	case errors.Is(err, model.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, model.ErrUnsupportedProvider):
		return http.StatusNotImplemented
	case errors.Is(err, model.ErrProvider):
		return http.StatusBadGateway
	case errors.Is(err, model.ErrJobNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	switch statusFor(err) {
	case http.StatusInternalServerError:
		return "internal server error"
	case http.StatusBadGateway:
		return model.ProviderMessage(err, err.Error())
	default:
		return err.Error()
	}
}

// decodeBody requires a JSON content type, which browsers cannot send
// cross-site without a preflight.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		writeError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
