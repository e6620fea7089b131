// Package artifact implements the ArtifactStore port for generated media
// that a provider returns inline instead of as a hosted URL.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bejocbrian/bringYourKey/internal/domain/port/driven"
)

// URLPrefix is where the web adapter serves FileStore artifacts.
const URLPrefix = "/artifacts/"

// ErrInvalidName is returned for artifact names that are empty or would
// escape the store directory.
var ErrInvalidName = errors.New("invalid artifact name")

// Compile-time interface satisfaction check.
var _ driven.ArtifactStore = (*FileStore)(nil)

// FileStore writes artifacts into a local directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes data under name and returns its URL path. The file appears
// atomically; a reader never sees a partial artifact.
func (s *FileStore) Save(_ context.Context, name, _ string, data []byte) (string, error) {
	target, err := s.Path(name)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write artifact %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close artifact %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return "", fmt.Errorf("move artifact %s: %w", name, err)
	}

	return URLPrefix + name, nil
}

// Path resolves name to a file inside the store directory.
func (s *FileStore) Path(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

func validateName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
