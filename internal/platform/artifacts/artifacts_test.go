package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeye-server-go/internal/platform/config"
)

func TestFileStore_RoundTrip(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	key := "fundus_images/report_1.jpg"
	require.NoError(t, store.Put(ctx, key, []byte{0xFF, 0xD8}, "image/jpeg"))

	_, err = os.Stat(filepath.Join(root, "fundus_images", "report_1.jpg"))
	require.NoError(t, err)

	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, data)

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Join(root, "fundus_images"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStore_RejectsEscapingKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../outside.jpg", "/etc/passwd", ""} {
		assert.Error(t, store.Put(context.Background(), key, []byte("x"), ""), key)
	}
}

func TestFileStore_PutHonoursCancelledContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Put(ctx, "a.jpg", []byte("x"), ""), context.Canceled)
}

func TestNew(t *testing.T) {
	store, err := New(context.Background(), config.ArtifactsConfig{Driver: "local", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	_, err = New(context.Background(), config.ArtifactsConfig{Driver: "tape"})
	assert.Error(t, err)
}

func TestNewObjectStore_ParsesEndpointURL(t *testing.T) {
	store, err := NewObjectStore(config.MinIOConfig{
		Endpoint:  "https://minio.example.com:9000",
		AccessKey: "ak",
		SecretKey: "sk",
		Bucket:    "fundus-images",
	})
	require.NoError(t, err)
	assert.Equal(t, "minio.example.com:9000", store.Client().EndpointURL().Host)
	assert.Equal(t, "https", store.Client().EndpointURL().Scheme)
}
