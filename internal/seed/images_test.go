package seed

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/amankumarsingh77/directory_pipeline/internal/storage"
	"github.com/amankumarsingh77/directory_pipeline/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fakeImages struct {
	mu    sync.Mutex
	calls map[string]int
	data  map[string][]byte
}

func newFakeImages() *fakeImages {
	return &fakeImages{calls: map[string]int{}, data: map[string][]byte{}}
}

func (f *fakeImages) GetBytes(_ context.Context, url string, _ int64) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if data, ok := f.data[url]; ok {
		return data, "", nil
	}
	return nil, "", errors.New("connection refused")
}

func (f *fakeImages) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func newUploader(t *testing.T, fetcher imageFetcher) (*imageUploader, *storage.LocalStore) {
	t.Helper()
	objects, err := storage.NewLocalStore(t.TempDir(), "https://cdn.example.com")
	require.NoError(t, err)
	return &imageUploader{
		fetcher:  fetcher,
		objects:  objects,
		retries:  3,
		maxBytes: 1 << 20,
		logger:   logger.NewNop(),
	}, objects
}

func TestUpload_StoresDetectedImage(t *testing.T) {
	fetcher := newFakeImages()
	fetcher.data["https://npmjs.com/logo"] = pngHeader
	u, _ := newUploader(t, fetcher)

	got, fellBack, err := u.upload(context.Background(), "npm", "https://npmjs.com/logo")
	require.NoError(t, err)
	assert.False(t, fellBack)
	assert.Equal(t, "https://cdn.example.com/logos/npm.png", got)
	assert.Equal(t, 1, fetcher.count("https://npmjs.com/logo"))
}

func TestUpload_FallsBackAfterRetries(t *testing.T) {
	fetcher := newFakeImages()
	u, _ := newUploader(t, fetcher)

	got, fellBack, err := u.upload(context.Background(), "ghost", "https://ghost.example/logo.png")
	require.NoError(t, err)
	assert.True(t, fellBack)
	assert.Equal(t, "https://cdn.example.com/logos/ghost.png", got)
	assert.Equal(t, 4, fetcher.count("https://ghost.example/logo.png"))
}

func TestUpload_EmptySourceUsesPlaceholder(t *testing.T) {
	fetcher := newFakeImages()
	u, _ := newUploader(t, fetcher)

	got, fellBack, err := u.upload(context.Background(), "Empty", "")
	require.NoError(t, err)
	assert.True(t, fellBack)
	assert.Equal(t, "https://cdn.example.com/logos/empty.png", got)
	assert.Empty(t, fetcher.calls)
}

func TestUpload_RejectsNonImages(t *testing.T) {
	fetcher := newFakeImages()
	fetcher.data["https://site.example/logo"] = []byte("<html><body>not found</body></html>")
	u, _ := newUploader(t, fetcher)

	_, fellBack, err := u.upload(context.Background(), "site", "https://site.example/logo")
	require.NoError(t, err)
	assert.True(t, fellBack)
	assert.Equal(t, 4, fetcher.count("https://site.example/logo"))
}

func TestImageType(t *testing.T) {
	ct, ext, err := imageType(pngHeader, "image/png; charset=binary", "x")
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, "png", ext)

	ct, ext, err = imageType([]byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`), "text/plain", "https://a.b/logo.SVG")
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", ct)
	assert.Equal(t, "svg", ext)

	_, _, err = imageType([]byte("hello"), "text/plain", "https://a.b/logo")
	assert.ErrorIs(t, err, errNotImage)
}
