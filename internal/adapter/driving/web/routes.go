package web

import (
	"io/fs"
	"net/http"

	"github.com/bejocbrian/bringYourKey/internal/adapter/driven/artifact"
)

// RegisterRoutes registers all web GUI routes on the provided mux.
// Static assets are served from the embedded filesystem at /static/*.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	// Static assets (embedded via go:embed).
	staticFS, _ := fs.Sub(StaticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	// Locally stored generation output.
	mux.HandleFunc("GET "+artifact.URLPrefix+"{name}", h.Artifact)

	// Page routes.
	mux.HandleFunc("GET /{$}", h.Dashboard)

	// Form posts; each redirects back to the dashboard.
	mux.HandleFunc("POST /credentials", h.SaveCredential)
	mux.HandleFunc("POST /credentials/{provider}/delete", h.RemoveCredential)
	mux.HandleFunc("POST /generations", h.SubmitGeneration)
	mux.HandleFunc("POST /generations/{id}/cancel", h.CancelGeneration)
	mux.HandleFunc("POST /generations/{id}/delete", h.DeleteGeneration)
}
