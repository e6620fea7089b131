package web

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bejocbrian/bringYourKey/internal/adapter/driven/artifact"
	"github.com/bejocbrian/bringYourKey/internal/adapter/driven/memory"
	"github.com/bejocbrian/bringYourKey/internal/application"
	"github.com/bejocbrian/bringYourKey/internal/domain/model"
)

const testToken = "test-csrf-token"

type stubAdapter struct{}

func (stubAdapter) Start(_ context.Context, _ string, _ model.Settings, _ string) (model.JobHandle, error) {
	return "operations/op-1", nil
}

func (stubAdapter) CheckStatus(_ context.Context, _ model.JobHandle, _ string) (model.PollResult, error) {
	return model.PollResult{State: model.PollRunning}, nil
}

type webFixture struct {
	mux         *http.ServeMux
	vault       *application.Vault
	creds       *memory.CredentialStore
	jobs        *memory.JobStore
	generations *application.GenerationService
	artifactDir string
}

func newWebFixture(t *testing.T) *webFixture {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	creds := memory.NewCredentialStore()
	jobs := memory.NewJobStore()
	vault := application.NewVault(memory.NewKeyStore(), creds, logger)

	registry := application.NewAdapterRegistry()
	registry.Register(model.ProviderGoogleVeo, stubAdapter{})
	catalog := model.DefaultCatalog()
	authorizer := application.NewAllowList(nil)

	generations := application.NewGenerationService(jobs, vault, registry, catalog, authorizer,
		application.PollConfig{Interval: time.Hour, MaxAttempts: 1}, logger)
	t.Cleanup(generations.Shutdown)

	dir := t.TempDir()
	files, err := artifact.NewFileStore(dir)
	require.NoError(t, err)

	h := NewHandler(vault, generations, registry, catalog, authorizer, files, "testuser", logger)
	mux := http.NewServeMux()
	RegisterRoutes(mux, h)

	return &webFixture{
		mux:         mux,
		vault:       vault,
		creds:       creds,
		jobs:        jobs,
		generations: generations,
		artifactDir: dir,
	}
}

func (f *webFixture) get(t *testing.T, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

// post submits a form with a matching CSRF cookie and field unless token is empty.
func (f *webFixture) post(t *testing.T, path string, form url.Values, token string) *httptest.ResponseRecorder {
	t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if token != "" {
		form.Set(csrfFormField, token)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: testToken})
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func flashFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == flashCookieName {
			return c
		}
	}
	t.Fatalf("no flash cookie set")
	return nil
}

func flashMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	raw, err := url.QueryUnescape(flashFrom(t, rec).Value)
	require.NoError(t, err)
	return raw
}

func TestDashboard_RendersProviders(t *testing.T) {
	f := newWebFixture(t)

	rec := f.get(t, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "Google Veo 3.1 Fast")
	assert.Contains(t, body, "Meta Movie Gen")
	assert.Contains(t, body, "Runway Gen-3")
	assert.Contains(t, body, "No key")
	assert.Contains(t, body, "Coming soon")
	assert.Contains(t, body, "Add a valid API key")
	assert.Contains(t, body, "No generations yet.")
	assert.NotContains(t, body, `http-equiv="refresh"`)

	var csrf *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == csrfCookieName {
			csrf = c
		}
	}
	require.NotNil(t, csrf)
	assert.Contains(t, body, `value="`+csrf.Value+`"`)
}

func TestDashboard_ReusesExistingCSRFCookie(t *testing.T) {
	f := newWebFixture(t)

	rec := f.get(t, "/", &http.Cookie{Name: csrfCookieName, Value: testToken})

	assert.Empty(t, rec.Result().Cookies())
	assert.Contains(t, rec.Body.String(), `value="`+testToken+`"`)
}

func TestDashboard_InvalidKeyPromptsReentry(t *testing.T) {
	f := newWebFixture(t)
	ctx := context.Background()
	require.NoError(t, f.vault.AddCredential(ctx, model.ProviderRunwayGen3, "rw-key", ""))
	require.NoError(t, f.creds.Put(ctx, model.StoredCredential{
		Provider:   model.ProviderRunwayGen3,
		Ciphertext: "bm90LWNpcGhlcnRleHQ=",
		CreatedAt:  time.Now(),
	}))

	body := f.get(t, "/").Body.String()

	assert.Contains(t, body, "badge-invalid")
	assert.Contains(t, body, "Enter it again")
}

func TestDashboard_AutoRefreshWhileRunning(t *testing.T) {
	f := newWebFixture(t)
	require.NoError(t, f.vault.AddCredential(context.Background(), model.ProviderGoogleVeo, "AIza", ""))

	_, err := f.generations.Submit(context.Background(), application.SubmitRequest{
		User:     "testuser",
		Provider: model.ProviderGoogleVeo,
		Prompt:   "**neon** city",
		Settings: model.Settings{Duration: 8, AspectRatio: model.AspectRatioLandscape},
	})
	require.NoError(t, err)

	body := f.get(t, "/").Body.String()

	assert.Contains(t, body, `http-equiv="refresh"`)
	assert.Contains(t, body, "Generating")
	assert.Contains(t, body, "<strong>neon</strong> city")
	assert.Contains(t, body, ">Cancel</button>")
	assert.Contains(t, body, `<select name="provider">`)
}

func TestDashboard_CompletedAndFailedJobs(t *testing.T) {
	f := newWebFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, f.jobs.Create(ctx, model.GenerationJob{
		ID: "gen-done", Provider: model.ProviderGoogleVeo, Prompt: "waves",
		Settings: model.Settings{Duration: 4, AspectRatio: model.AspectRatioSquare},
		Status:   model.JobStatusCompleted, ResultReference: "/artifacts/veo-1.mp4",
		CreatedAt: now, UpdatedAt: now, CompletedAt: &now,
	}))
	require.NoError(t, f.jobs.Create(ctx, model.GenerationJob{
		ID: "gen-bad", Provider: model.ProviderGoogleVeo, Prompt: "storm",
		Settings: model.Settings{Duration: 4, AspectRatio: model.AspectRatioSquare},
		Status:   model.JobStatusFailed, ErrorMessage: "<b>Quota</b> exceeded.", FailureKind: model.FailureProvider,
		CreatedAt: now, UpdatedAt: now, CompletedAt: &now,
	}))

	body := f.get(t, "/").Body.String()

	assert.NotContains(t, body, `http-equiv="refresh"`)
	assert.Contains(t, body, `<video controls preload="metadata" src="/artifacts/veo-1.mp4">`)
	assert.Contains(t, body, "Quota exceeded.")
	assert.NotContains(t, body, "<b>Quota</b>")
	assert.NotContains(t, body, ">Cancel</button>")
}

func TestDashboard_UnsafeResultReferenceIsNotLinked(t *testing.T) {
	f := newWebFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	refs := map[string]string{
		"gen-js":  "javascript:alert(document.cookie)",
		"gen-gcs": "gs://bucket/out/sample_0.mp4",
	}
	for id, ref := range refs {
		require.NoError(t, f.jobs.Create(ctx, model.GenerationJob{
			ID: id, Provider: model.ProviderGoogleVeo, Prompt: "waves",
			Settings: model.Settings{Duration: 4, AspectRatio: model.AspectRatioSquare},
			Status:   model.JobStatusCompleted, ResultReference: ref,
			CreatedAt: now, UpdatedAt: now, CompletedAt: &now,
		}))
	}

	body := f.get(t, "/").Body.String()

	assert.NotContains(t, body, `href="javascript:`)
	assert.NotContains(t, body, `href="gs://`)
	assert.NotContains(t, body, "Open video")
	assert.Contains(t, body, "<code>javascript:alert(document.cookie)</code>")
	assert.Contains(t, body, "<code>gs://bucket/out/sample_0.mp4</code>")
}

func TestFormPosts_RejectMissingCSRF(t *testing.T) {
	f := newWebFixture(t)

	paths := []string{
		"/credentials",
		"/credentials/google-veo/delete",
		"/generations",
		"/generations/gen-1/cancel",
		"/generations/gen-1/delete",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			rec := f.post(t, path, nil, "")
			assert.Equal(t, http.StatusForbidden, rec.Code)
		})
	}

	rec := f.post(t, "/credentials", url.Values{"provider": {"google-veo"}, "key": {"k"}}, "wrong-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, model.CredentialStatusUnset, f.vault.Status(context.Background(), model.ProviderGoogleVeo))
}

func TestSaveAndRemoveCredential(t *testing.T) {
	f := newWebFixture(t)
	ctx := context.Background()

	rec := f.post(t, "/credentials", url.Values{
		"provider": {"google-veo"},
		"key":      {"AIza-secret"},
		"name":     {"studio"},
	}, testToken)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, "ok:API key saved for Google Veo 3.1 Fast.", flashMessage(t, rec))
	assert.Equal(t, model.CredentialStatusValid, f.vault.Status(ctx, model.ProviderGoogleVeo))

	page := f.get(t, "/", flashFrom(t, rec)).Body.String()
	assert.Contains(t, page, "API key saved for Google Veo 3.1 Fast.")
	assert.Contains(t, page, "studio")
	assert.NotContains(t, page, "AIza-secret")

	rec = f.post(t, "/credentials/google-veo/delete", nil, testToken)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, model.CredentialStatusUnset, f.vault.Status(ctx, model.ProviderGoogleVeo))
}

func TestSaveCredential_Errors(t *testing.T) {
	f := newWebFixture(t)

	rec := f.post(t, "/credentials", url.Values{"provider": {"sora"}, "key": {"k"}}, testToken)
	assert.Equal(t, "error:Unknown provider.", flashMessage(t, rec))

	rec = f.post(t, "/credentials", url.Values{"provider": {"google-veo"}, "key": {" "}}, testToken)
	assert.Contains(t, flashMessage(t, rec), "error:")
	assert.Contains(t, flashMessage(t, rec), "API key must not be empty")
}

func TestSubmitGeneration(t *testing.T) {
	f := newWebFixture(t)
	require.NoError(t, f.vault.AddCredential(context.Background(), model.ProviderGoogleVeo, "AIza", ""))

	rec := f.post(t, "/generations", url.Values{
		"provider":     {"google-veo"},
		"prompt":       {"a paper boat"},
		"duration":     {"6"},
		"aspect_ratio": {"9:16"},
	}, testToken)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "ok:Generation started.", flashMessage(t, rec))

	jobs, err := f.generations.ListJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, model.JobStatusProcessing, jobs[0].Status)
	assert.Equal(t, model.AspectRatioPortrait, jobs[0].Settings.AspectRatio)
}

func TestSubmitGeneration_Errors(t *testing.T) {
	tests := []struct {
		name    string
		form    url.Values
		wantMsg string
	}{
		{
			name:    "missing duration",
			form:    url.Values{"provider": {"google-veo"}, "prompt": {"x"}, "aspect_ratio": {"16:9"}},
			wantMsg: "error:Choose a duration.",
		},
		{
			name:    "missing key",
			form:    url.Values{"provider": {"google-veo"}, "prompt": {"x"}, "duration": {"8"}, "aspect_ratio": {"16:9"}},
			wantMsg: "credential unavailable",
		},
		{
			name:    "unsupported provider",
			form:    url.Values{"provider": {"runway-gen3"}, "prompt": {"x"}, "duration": {"5"}, "aspect_ratio": {"16:9"}},
			wantMsg: "provider not supported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWebFixture(t)

			rec := f.post(t, "/generations", tt.form, testToken)

			require.Equal(t, http.StatusSeeOther, rec.Code)
			msg := flashMessage(t, rec)
			assert.True(t, strings.HasPrefix(msg, "error:"), msg)
			assert.Contains(t, msg, tt.wantMsg)
		})
	}
}

func TestCancelAndDeleteGeneration(t *testing.T) {
	f := newWebFixture(t)
	ctx := context.Background()
	require.NoError(t, f.vault.AddCredential(ctx, model.ProviderGoogleVeo, "AIza", ""))
	id, err := f.generations.Submit(ctx, application.SubmitRequest{
		User:     "testuser",
		Provider: model.ProviderGoogleVeo,
		Prompt:   "fireflies",
		Settings: model.Settings{Duration: 4, AspectRatio: model.AspectRatioLandscape},
	})
	require.NoError(t, err)

	rec := f.post(t, "/generations/"+id+"/cancel", nil, testToken)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "ok:Generation cancelled.", flashMessage(t, rec))

	job, err := f.generations.Job(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.FailureCancelled, job.FailureKind)
	assert.Contains(t, f.get(t, "/").Body.String(), "Cancelled")

	rec = f.post(t, "/generations/gen-missing/cancel", nil, testToken)
	assert.Contains(t, flashMessage(t, rec), "generation job not found")

	rec = f.post(t, "/generations/"+id+"/delete", nil, testToken)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	_, err = f.generations.Job(ctx, id)
	assert.ErrorIs(t, err, model.ErrJobNotFound)
}

func TestArtifact(t *testing.T) {
	f := newWebFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.artifactDir, "veo-1.mp4"), []byte("mp4-bytes"), 0o600))

	rec := f.get(t, "/artifacts/veo-1.mp4")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mp4-bytes", rec.Body.String())

	rec = f.get(t, "/artifacts/missing.mp4")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, os.WriteFile(filepath.Join(f.artifactDir, ".hidden"), []byte("x"), 0o600))
	rec = f.get(t, "/artifacts/.hidden")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaticAssets(t *testing.T) {
	f := newWebFixture(t)

	rec := f.get(t, "/static/style.css")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".badge-invalid")
}
