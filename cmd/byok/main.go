package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/bejocbrian/bringYourKey/internal/adapter/driven/artifact"
	"github.com/bejocbrian/bringYourKey/internal/adapter/driven/memory"
	sqliteadapter "github.com/bejocbrian/bringYourKey/internal/adapter/driven/sqlite"
	"github.com/bejocbrian/bringYourKey/internal/adapter/driven/veo"
	httphandler "github.com/bejocbrian/bringYourKey/internal/adapter/driving/http"
	webhandler "github.com/bejocbrian/bringYourKey/internal/adapter/driving/web"
	"github.com/bejocbrian/bringYourKey/internal/application"
	"github.com/bejocbrian/bringYourKey/internal/config"
	"github.com/bejocbrian/bringYourKey/internal/domain/model"
	"github.com/bejocbrian/bringYourKey/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// stores groups the persistence ports chosen by BYOK_STORAGE.
type stores struct {
	keys        driven.KeyStore
	credentials driven.CredentialStore
	jobs        driven.JobStore
	close       func() error
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"storage", cfg.Storage,
		"artifacts", cfg.Artifacts.Backend,
		"poll_interval", cfg.Poll.Interval,
		"poll_max_attempts", cfg.Poll.MaxAttempts,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open storage.
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.close(); closeErr != nil {
			slog.Error("error closing storage", "error", closeErr)
		}
	}()

	// 4. Vault: create the device key up front so the first save is not racing it.
	vault := application.NewVault(st.keys, st.credentials, slog.Default())
	if _, err := vault.EnsureKey(ctx); err != nil {
		return err
	}

	// 5. Artifact store for inline provider output.
	artifacts, files, err := openArtifacts(ctx, cfg)
	if err != nil {
		return err
	}

	// 6. Provider adapters.
	registry := application.NewAdapterRegistry()
	if cfg.HasVeo() {
		registry.Register(model.ProviderGoogleVeo, veo.NewClient(veo.Options{
			Project:  cfg.Veo.Project,
			Location: cfg.Veo.Location,
			Model:    cfg.Veo.Model,
			BaseURL:  cfg.Veo.BaseURL,
		}, artifacts, slog.Default()))
		slog.Info("veo adapter registered", "project", cfg.Veo.Project, "location", cfg.Veo.Location, "model", cfg.Veo.Model)
	} else {
		slog.Info("no veo project configured, google veo generation disabled")
	}

	catalog := model.DefaultCatalog()
	authorizer := application.NewAllowList(cfg.AllowedProviders)

	// 7. Generation service; pick up jobs left running by the previous process.
	generations := application.NewGenerationService(
		st.jobs,
		vault,
		registry,
		catalog,
		authorizer,
		application.PollConfig{Interval: cfg.Poll.Interval, MaxAttempts: cfg.Poll.MaxAttempts},
		slog.Default(),
	)
	defer generations.Shutdown()

	resumed, err := generations.Resume(ctx)
	if err != nil {
		return err
	}
	slog.Info("generations resumed", "count", resumed)

	// 8. HTTP handlers: JSON API and dashboard on one mux.
	mux := http.NewServeMux()
	apiHandler := httphandler.NewHandler(vault, generations, registry, catalog, authorizer, cfg.UserID, slog.Default())
	httphandler.RegisterRoutes(mux, apiHandler)

	webHandler := webhandler.NewHandler(vault, generations, registry, catalog, authorizer, files, cfg.UserID, slog.Default())
	webhandler.RegisterRoutes(mux, webHandler)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.Wrap(mux, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	slog.Info("byok started",
		"listen_addr", cfg.ListenAddr,
		"providers", registry.Supported(),
		"allowed", authorizer.Allowed(),
	)

	// 9. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout for HTTP drain. Polling loops stop
	// via the deferred Shutdown; their jobs resume on next start.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Storage == config.StorageMemory {
		slog.Warn("using in-memory storage, keys and jobs are lost on exit")
		return &stores{
			keys:        memory.NewKeyStore(),
			credentials: memory.NewCredentialStore(),
			jobs:        memory.NewJobStore(),
			close:       func() error { return nil },
		}, nil
	}

	// Dual reader/writer with WAL mode.
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Info("database opened", "path", cfg.DBPath)

	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("migrations complete")

	return &stores{
		keys:        sqliteadapter.NewKeyRepo(db),
		credentials: sqliteadapter.NewCredentialRepo(db),
		jobs:        sqliteadapter.NewJobRepo(db),
		close:       db.Close,
	}, nil
}

// openArtifacts returns the configured artifact store and, for the local
// file backend, the same store for the dashboard to serve files from.
func openArtifacts(ctx context.Context, cfg *config.Config) (driven.ArtifactStore, webhandler.ArtifactFiles, error) {
	switch cfg.Artifacts.Backend {
	case config.ArtifactsMinio:
		client, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
			Secure: cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create minio client: %w", err)
		}
		store, err := artifact.NewMinioStore(ctx, client, cfg.Minio.Bucket, cfg.Minio.PresignExpiry)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("minio artifact store ready", "endpoint", cfg.Minio.Endpoint, "bucket", cfg.Minio.Bucket)
		return store, nil, nil
	default:
		store, err := artifact.NewFileStore(cfg.Artifacts.Dir)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("file artifact store ready", "dir", cfg.Artifacts.Dir)
		return store, store, nil
	}
}
