// Package web implements the HTML dashboard driving adapter using templ components.
package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	vm "github.com/bejocbrian/bringYourKey/internal/adapter/driving/web/viewmodel"
	"github.com/bejocbrian/bringYourKey/internal/application"
	"github.com/bejocbrian/bringYourKey/internal/domain/model"
	"github.com/bejocbrian/bringYourKey/internal/domain/port/driven"
)

const pageTitle = "BYOK Video Studio"

// ArtifactFiles resolves locally stored artifact names to file paths.
type ArtifactFiles interface {
	Path(name string) (string, error)
}

// Handler is the web GUI driving adapter that serves HTML via templ components.
type Handler struct {
	vault       *application.Vault
	generations *application.GenerationService
	adapters    *application.AdapterRegistry
	catalog     driven.CapabilityCatalog
	authorizer  driven.Authorizer
	files       ArtifactFiles
	userID      string
	logger      *slog.Logger
	now         func() time.Time
}

// NewHandler creates a Handler with all required dependencies. files may be
// nil when artifacts are not stored on local disk.
func NewHandler(
	vault *application.Vault,
	generations *application.GenerationService,
	adapters *application.AdapterRegistry,
	catalog driven.CapabilityCatalog,
	authorizer driven.Authorizer,
	files ArtifactFiles,
	userID string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		vault:       vault,
		generations: generations,
		adapters:    adapters,
		catalog:     catalog,
		authorizer:  authorizer,
		files:       files,
		userID:      userID,
		logger:      logger,
		now:         time.Now,
	}
}

// Dashboard renders the main dashboard page with the full HTML layout.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := csrfToken(w, r)
	flash := popFlash(w, r)

	summaries, err := h.vault.Credentials(ctx)
	if err != nil {
		h.logger.Error("failed to load credentials for dashboard", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	jobs, err := h.generations.ListJobs(ctx)
	if err != nil {
		h.logger.Error("failed to load generations for dashboard", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	d := vm.DashboardViewModel{
		Flash:     flash,
		CSRFToken: token,
		MaxPrompt: application.MaxPromptLength,
	}

	names := make(map[model.ProviderID]string)
	for _, s := range summaries {
		caps, ok := h.catalog.Capabilities(s.Provider)
		if !ok {
			continue
		}
		names[s.Provider] = caps.Name

		st := providerState{
			summary:   s,
			allowed:   h.authorizer.IsProviderAllowed(ctx, h.userID, s.Provider),
			supported: h.adapters.Has(s.Provider),
		}
		d.Providers = append(d.Providers, toProviderCardViewModel(caps, st))

		if st.allowed && st.supported && s.Status == model.CredentialStatusValid {
			d.Generatable = append(d.Generatable, toProviderOptionViewModel(caps))
		}
	}

	now := h.now()
	for _, j := range jobs {
		name := names[j.Provider]
		if name == "" {
			name = j.Provider.String()
		}
		row := toJobRowViewModel(j, name, now)
		d.AutoRefresh = d.AutoRefresh || row.Running
		d.Jobs = append(d.Jobs, row)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := Layout(pageTitle, d.AutoRefresh, Dashboard(d)).Render(ctx, w); err != nil {
		h.logger.Error("failed to render dashboard", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// SaveCredential stores or replaces the API key posted from a provider card.
func (h *Handler) SaveCredential(w http.ResponseWriter, r *http.Request) {
	if !h.checkCSRF(w, r) {
		return
	}

	provider, err := model.ParseProviderID(r.PostFormValue("provider"))
	if err != nil {
		redirectHome(w, r, flashError, "Unknown provider.")
		return
	}

	if err := h.vault.AddCredential(r.Context(), provider, r.PostFormValue("key"), r.PostFormValue("name")); err != nil {
		h.redirectError(w, r, "failed to store credential", err)
		return
	}
	redirectHome(w, r, flashOK, "API key saved for "+h.providerName(provider)+".")
}

// RemoveCredential deletes the API key for the provider in the path.
func (h *Handler) RemoveCredential(w http.ResponseWriter, r *http.Request) {
	if !h.checkCSRF(w, r) {
		return
	}

	provider, err := model.ParseProviderID(r.PathValue("provider"))
	if err != nil {
		redirectHome(w, r, flashError, "Unknown provider.")
		return
	}

	if err := h.vault.RemoveCredential(r.Context(), provider); err != nil {
		h.redirectError(w, r, "failed to remove credential", err)
		return
	}
	redirectHome(w, r, flashOK, "API key removed for "+h.providerName(provider)+".")
}

// SubmitGeneration starts a generation from the dashboard form.
func (h *Handler) SubmitGeneration(w http.ResponseWriter, r *http.Request) {
	if !h.checkCSRF(w, r) {
		return
	}

	duration, err := strconv.Atoi(r.PostFormValue("duration"))
	if err != nil {
		redirectHome(w, r, flashError, "Choose a duration.")
		return
	}

	_, err = h.generations.Submit(r.Context(), application.SubmitRequest{
		User:     h.userID,
		Provider: model.ProviderID(r.PostFormValue("provider")),
		Prompt:   r.PostFormValue("prompt"),
		Settings: model.Settings{
			Duration:    duration,
			AspectRatio: model.AspectRatio(r.PostFormValue("aspect_ratio")),
		},
	})
	if err != nil {
		h.redirectError(w, r, "failed to submit generation", err)
		return
	}
	redirectHome(w, r, flashOK, "Generation started.")
}

// CancelGeneration stops polling for a running job.
func (h *Handler) CancelGeneration(w http.ResponseWriter, r *http.Request) {
	if !h.checkCSRF(w, r) {
		return
	}

	if err := h.generations.Cancel(r.Context(), r.PathValue("id")); err != nil {
		h.redirectError(w, r, "failed to cancel generation", err)
		return
	}
	redirectHome(w, r, flashOK, "Generation cancelled.")
}

// DeleteGeneration removes a job from the list.
func (h *Handler) DeleteGeneration(w http.ResponseWriter, r *http.Request) {
	if !h.checkCSRF(w, r) {
		return
	}

	if err := h.generations.Remove(r.Context(), r.PathValue("id")); err != nil {
		h.redirectError(w, r, "failed to delete generation", err)
		return
	}
	redirectHome(w, r, flashOK, "Generation deleted.")
}

// Artifact serves a video saved by the local file artifact store.
func (h *Handler) Artifact(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		http.NotFound(w, r)
		return
	}

	path, err := h.files.Path(r.PathValue("name"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func (h *Handler) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	if validateCSRF(r) {
		return true
	}
	h.logger.Warn("rejected form post with invalid csrf token", "path", r.URL.Path)
	http.Error(w, "invalid csrf token", http.StatusForbidden)
	return false
}

// redirectError turns a service error into a flash message. Internal errors
// are logged and replaced with a generic message.
func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, logMsg string, err error) {
	var msg string
	switch {
	case errors.Is(err, model.ErrValidation),
		errors.Is(err, model.ErrCredential),
		errors.Is(err, model.ErrPermission),
		errors.Is(err, model.ErrUnsupportedProvider),
		errors.Is(err, model.ErrJobNotFound):
		msg = err.Error()
	case errors.Is(err, model.ErrProvider):
		msg = model.ProviderMessage(err, "The provider rejected the request.")
	default:
		h.logger.Error(logMsg, "error", err)
		msg = "Something went wrong. Check the server log."
	}
	redirectHome(w, r, flashError, msg)
}

func (h *Handler) providerName(p model.ProviderID) string {
	if caps, ok := h.catalog.Capabilities(p); ok {
		return caps.Name
	}
	return p.String()
}
