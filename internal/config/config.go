// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/bejocbrian/bringYourKey/internal/domain/model"
)

// EnvPrefix is prepended to every variable name below.
const EnvPrefix = "BYOK_"

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Artifact backends.
const (
	ArtifactsFS    = "fs"
	ArtifactsMinio = "minio"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string     `env:"LISTEN_ADDR" envDefault:"127.0.0.1:8080"`
	DBPath     string     `env:"DB_PATH" envDefault:"byok.db"`
	Storage    string     `env:"STORAGE" envDefault:"sqlite"`
	LogLevel   slog.Level `env:"LOG_LEVEL" envDefault:"info"`

	// UserID is the identity passed to the authorizer. A single device has one user.
	UserID string `env:"USER_ID" envDefault:"local"`
	// AllowedProviders limits which providers may be used. Empty allows all.
	AllowedProviders []model.ProviderID `env:"ALLOWED_PROVIDERS"`

	Poll      Poll      `envPrefix:"POLL_"`
	Veo       Veo       `envPrefix:"VEO_"`
	Artifacts Artifacts `envPrefix:"ARTIFACTS_"`
	Minio     Minio     `envPrefix:"MINIO_"`
}

// Poll contains generation polling parameters.
type Poll struct {
	Interval    time.Duration `env:"INTERVAL" envDefault:"3s"`
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"80"`
}

// Veo contains Vertex AI parameters for the Google Veo adapter.
type Veo struct {
	Project  string `env:"PROJECT"`
	Location string `env:"LOCATION" envDefault:"asia-south1"`
	Model    string `env:"MODEL" envDefault:"veo-3.1-fast-generate-001"`
	BaseURL  string `env:"BASE_URL"`
}

// Artifacts selects where inline video output is stored.
type Artifacts struct {
	Backend string `env:"BACKEND" envDefault:"fs"`
	Dir     string `env:"DIR" envDefault:"artifacts"`
}

// Minio contains object storage parameters for the minio artifact backend.
type Minio struct {
	Endpoint      string        `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey     string        `env:"ACCESS_KEY"`
	SecretKey     string        `env:"SECRET_KEY"`
	Bucket        string        `env:"BUCKET" envDefault:"byok-videos"`
	UseSSL        bool          `env:"USE_SSL" envDefault:"false"`
	PresignExpiry time.Duration `env:"PRESIGN_EXPIRY" envDefault:"168h"`
}

// HasVeo reports whether the Veo adapter can be registered. The project id is
// part of every Vertex AI URL, so without it there is nothing to call.
func (c *Config) HasVeo() bool {
	return c.Veo.Project != ""
}

// Load reads BYOK_* environment variables and returns a validated Config.
// Every setting has a default except the Veo project (optional, disables the
// Veo adapter when absent) and the MinIO keys (required only with
// BYOK_ARTIFACTS_BACKEND=minio).
func Load() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	cfg.Artifacts.Backend = strings.ToLower(strings.TrimSpace(cfg.Artifacts.Backend))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, errors.New(EnvPrefix+"LISTEN_ADDR must not be empty"))
	}

	switch c.Storage {
	case StorageSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New(EnvPrefix+"DB_PATH must not be empty with sqlite storage"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("%sSTORAGE has unknown backend %q (want sqlite or memory)", EnvPrefix, c.Storage))
	}

	if c.Poll.Interval <= 0 {
		errs = append(errs, fmt.Errorf("%sPOLL_INTERVAL must be positive, got %s", EnvPrefix, c.Poll.Interval))
	}
	if c.Poll.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("%sPOLL_MAX_ATTEMPTS must be positive, got %d", EnvPrefix, c.Poll.MaxAttempts))
	}

	switch c.Artifacts.Backend {
	case ArtifactsFS:
		if c.Artifacts.Dir == "" {
			errs = append(errs, errors.New(EnvPrefix+"ARTIFACTS_DIR must not be empty with fs artifacts"))
		}
	case ArtifactsMinio:
		if c.Minio.AccessKey == "" || c.Minio.SecretKey == "" {
			errs = append(errs, errors.New(EnvPrefix+"MINIO_ACCESS_KEY and "+EnvPrefix+"MINIO_SECRET_KEY are required with minio artifacts"))
		}
		if c.Minio.Bucket == "" {
			errs = append(errs, errors.New(EnvPrefix+"MINIO_BUCKET must not be empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("%sARTIFACTS_BACKEND has unknown backend %q (want fs or minio)", EnvPrefix, c.Artifacts.Backend))
	}

	return errors.Join(errs...)
}
