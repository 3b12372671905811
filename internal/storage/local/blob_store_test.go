package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/url-frontier/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ExistingDir", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "archive", "batches")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsAFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})

	t.Run("BaseDirNotWritable", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("root ignores directory permissions")
		}
		dir := t.TempDir()
		// #nosec G302 -- directory permissions adjusted intentionally for test coverage.
		require.NoError(t, os.Chmod(dir, 0o500))
		t.Cleanup(func() {
			// #nosec G302 -- restore permissions so the temp dir can be removed.
			_ = os.Chmod(dir, 0o700)
		})
		_, err := local.New(local.Config{BaseDir: dir})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	t.Run("NestedPath", func(t *testing.T) {
		path := "batches/2024-03-01/abc/0001.json"
		data := []byte(`{"items":[]}`)
		uri, err := store.PutObject(context.Background(), path, "application/json", bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(dir, path), uri)

		// #nosec G304 -- test reads from the controlled temp directory.
		got, err := os.ReadFile(filepath.Join(dir, path))
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "", "", bytes.NewReader(nil))
		assert.Error(t, err)
	})

	t.Run("Traversal", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "../outside.json", "", bytes.NewReader([]byte("x")))
		assert.ErrorContains(t, err, "escapes base directory")
	})
}
