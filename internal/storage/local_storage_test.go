package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir(), DefaultMountPath)
	require.NoError(t, err)
	return s
}

func TestLocalStorage_Store_ShouldWriteVideoWithOriginalExtension(t *testing.T) {
	// given
	s := newTestLocalStorage(t)
	content := []byte("fake mov payload")

	// when
	localPath, err := s.Store(context.Background(), bytes.NewReader(content), "clip.MOV", "video/quicktime")

	// then
	require.NoError(t, err)
	assert.Equal(t, ".mov", filepath.Ext(localPath))
	assert.Equal(t, s.BasePath(), filepath.Dir(localPath))
	written, err := os.ReadFile(localPath)
	require.NoError(t, err)
	assert.Equal(t, content, written)
}

func TestLocalStorage_Store_ShouldRejectNonVideoBeforeWriting(t *testing.T) {
	// given
	s := newTestLocalStorage(t)

	// when
	localPath, err := s.Store(context.Background(), strings.NewReader("png"), "poster.png", "image/png")

	// then
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)
	assert.Empty(t, localPath)
	entries, readErr := os.ReadDir(s.BasePath())
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestLocalStorage_Store_ShouldProduceDistinctNamesUnderConcurrency(t *testing.T) {
	// given
	s := newTestLocalStorage(t)
	const uploads = 50

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		paths = make(map[string]bool)
	)

	// when
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := s.Store(context.Background(), strings.NewReader("x"), "a.mp4", "video/mp4")
			assert.NoError(t, err)
			mu.Lock()
			paths[p] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	// then
	assert.Len(t, paths, uploads)
}

func TestResolveExtension(t *testing.T) {
	tests := []struct {
		name         string
		originalName string
		mimeType     string
		expected     string
	}{
		{"original extension wins", "movie.webm", "video/mp4", ".webm"},
		{"extension is lowercased", "MOVIE.MKV", "video/x-matroska", ".mkv"},
		{"falls back to mime type", "movie", "video/quicktime", ".mov"},
		{"mime parameters are ignored", "movie", "video/mp4; codecs=avc1", ".mp4"},
		{"unusable extension falls back", "movie.m p4", "video/webm", ".webm"},
		{"unknown mime falls back to default", "movie", "video/x-unknown-thing", defaultExtension},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveExtension(tt.originalName, tt.mimeType))
		})
	}
}

func TestLocalStorage_PublicURL_ShouldRoundTripEscapedFilenames(t *testing.T) {
	s := newTestLocalStorage(t)
	names := []string{
		"1700000000000-42.mp4",
		"my clip #1 (final).mov",
		"100% done?.webm",
		"ünïcødé+plus&amp.mkv",
	}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			// given
			publicURL := s.PublicURL("https", "media.example.com:8443", filepath.Join(s.BasePath(), name))

			// when
			extracted, ok := s.FilenameFromPublicURL(publicURL)

			// then
			require.True(t, ok, publicURL)
			assert.Equal(t, name, extracted)
			assert.True(t, strings.HasPrefix(publicURL, "https://media.example.com:8443/uploads/"))
		})
	}
}

func TestLocalStorage_FilenameFromPublicURL(t *testing.T) {
	s := newTestLocalStorage(t)

	tests := []struct {
		name     string
		raw      string
		expected string
		ok       bool
	}{
		{"absolute url", "http://localhost:1090/uploads/a%20b.mp4", "a b.mp4", true},
		{"bare path", "/uploads/a%20b.mp4", "a b.mp4", true},
		{"bare path with query", "/uploads/clip.mp4?t=10", "clip.mp4", true},
		{"segment stops at next slash", "http://h/uploads/clip.mp4/extra", "clip.mp4", true},
		{"no marker", "https://cdn.example.com/video/upload/clip.mp4", "", false},
		{"empty segment", "http://localhost/uploads/", "", false},
		{"empty input", "  ", "", false},
		{"dot dot is refused", "/uploads/..", "", false},
		{"encoded separator is refused", "/uploads/..%2Fsecret", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, ok := s.FilenameFromPublicURL(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, name)
		})
	}
}

func TestLocalStorage_DeleteByPublicURL_ShouldBeIdempotent(t *testing.T) {
	// given
	s := newTestLocalStorage(t)
	ctx := context.Background()
	localPath, err := s.Store(ctx, strings.NewReader("video"), "clip.mp4", "video/mp4")
	require.NoError(t, err)
	publicURL := s.PublicURL("http", "localhost:1090", localPath)

	// when
	firstErr := s.DeleteByPublicURL(ctx, publicURL)
	secondErr := s.DeleteByPublicURL(ctx, publicURL)

	// then
	assert.NoError(t, firstErr)
	assert.NoError(t, secondErr)
	exists, err := s.Exists(localPath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_DeleteByPublicURL_ShouldIgnoreURLsWithoutMarker(t *testing.T) {
	// given
	s := newTestLocalStorage(t)
	localPath, err := s.Store(context.Background(), strings.NewReader("video"), "clip.mp4", "video/mp4")
	require.NoError(t, err)

	// when
	err = s.DeleteByPublicURL(context.Background(), "https://cdn.example.com/"+filepath.Base(localPath))

	// then
	assert.NoError(t, err)
	exists, _ := s.Exists(localPath)
	assert.True(t, exists)
}

func TestLocalStorage_DeleteByPublicURL_ShouldPropagateOtherIOErrors(t *testing.T) {
	// given
	s := newTestLocalStorage(t)
	dirPath := filepath.Join(s.BasePath(), "not-a-file")
	require.NoError(t, os.Mkdir(dirPath, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dirPath, "child"), []byte("x"), 0644))

	// when
	err := s.DeleteByPublicURL(context.Background(), "/uploads/not-a-file")

	// then
	require.Error(t, err)
	assert.False(t, errors.Is(err, os.ErrNotExist))
}
