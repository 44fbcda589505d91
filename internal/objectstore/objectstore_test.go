package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutDeleteRoundTrip(t *testing.T) {
	root := t.TempDir()
	l, err := NewLocal(root, "http://media.test/media/")
	require.NoError(t, err)
	ctx := context.Background()

	key := ProductImageKey("owner-1", "prod-1", "Foto.JPG")
	assert.True(t, strings.HasPrefix(key, "owner-1/products/prod-1/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))

	url, err := l.Put(ctx, key, strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "http://media.test/media/"+key, url)

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	parsed, err := l.KeyFromURL(url)
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	require.NoError(t, l.Delete(ctx, parsed))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(key)))
	assert.True(t, os.IsNotExist(err))

	// deleting twice is not an error
	require.NoError(t, l.Delete(ctx, parsed))
}

func TestLocalRejectsForeignAndTraversalKeys(t *testing.T) {
	l, err := NewLocal(t.TempDir(), "http://media.test/media")
	require.NoError(t, err)

	_, err = l.KeyFromURL("http://elsewhere.test/media/a/b.png")
	assert.ErrorIs(t, err, ErrForeignURL)

	_, err = l.KeyFromURL("http://media.test/media/../secret")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = l.Put(context.Background(), "../escape.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestProductImageKeyFallsBackForUnknownExtensions(t *testing.T) {
	key := ProductImageKey("o", "p", "payload.exe")
	assert.True(t, strings.HasSuffix(key, ".bin"))
}
