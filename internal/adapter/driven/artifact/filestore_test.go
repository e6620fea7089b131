package artifact_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bejocbrian/bringYourKey/internal/adapter/driven/artifact"
)

func TestFileStore_SaveWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	store, err := artifact.NewFileStore(dir)
	require.NoError(t, err)

	ref, err := store.Save(context.Background(), "veo-op-1.mp4", "video/mp4", []byte("video-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/artifacts/veo-op-1.mp4", ref)

	data, err := os.ReadFile(filepath.Join(dir, "veo-op-1.mp4"))
	require.NoError(t, err)
	assert.Equal(t, []byte("video-bytes"), data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.NewFileStore(dir)
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "a.mp4", "video/mp4", []byte("one"))
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "a.mp4", "video/mp4", []byte("two"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "a.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestFileStore_RejectsEscapingNames(t *testing.T) {
	store, err := artifact.NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../etc/passwd", "sub/file.mp4", ".hidden", ".."} {
		_, err := store.Save(context.Background(), name, "video/mp4", []byte("x"))
		assert.ErrorIs(t, err, artifact.ErrInvalidName, name)

		_, err = store.Path(name)
		assert.ErrorIs(t, err, artifact.ErrInvalidName, name)
	}
}
