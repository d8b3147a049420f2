package storage

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	root := t.TempDir()
	s, err := NewFileStore(filepath.Join(root, "uploads"), filepath.Join(root, "processed"))
	require.NoError(t, err)
	s.now = func() time.Time {
		return time.Date(2025, 7, 6, 14, 20, 58, 0, time.UTC)
	}
	return s
}

func TestStoreProcessedDatedLayout(t *testing.T) {
	s := newTestStore(t)

	stored, err := s.StoreProcessed(strings.NewReader("png-bytes"), "trade.png")
	require.NoError(t, err)

	assert.Equal(t, "processed/2025-07-06/142058_trade.png", stored.RelPath)
	assert.Equal(t, "142058_trade.png", stored.Filename)
	assert.FileExists(t, stored.AbsPath)
}

func TestStoreProcessedCollisionSuffix(t *testing.T) {
	s := newTestStore(t)

	first, err := s.StoreProcessed(strings.NewReader("one"), "trade.png")
	require.NoError(t, err)
	second, err := s.StoreProcessed(strings.NewReader("two"), "trade.png")
	require.NoError(t, err)
	third, err := s.StoreProcessed(strings.NewReader("three"), "trade.png")
	require.NoError(t, err)

	assert.Equal(t, "142058_trade.png", first.Filename)
	assert.Equal(t, "142058_trade_1.png", second.Filename)
	assert.Equal(t, "142058_trade_2.png", third.Filename)
}

func TestStoreUpload(t *testing.T) {
	s := newTestStore(t)

	stored, err := s.StoreUpload(strings.NewReader("bytes"), "screen shot (1).png")
	require.NoError(t, err)
	assert.Equal(t, "uploads/20250706_142058_screen_shot__1_.png", stored.RelPath)
	assert.FileExists(t, stored.AbsPath)
}

func TestListImages(t *testing.T) {
	s := newTestStore(t)

	_, err := s.StoreProcessed(strings.NewReader("a"), "alpha.png")
	require.NoError(t, err)
	_, err = s.StoreProcessed(strings.NewReader("b"), "beta.jpg")
	require.NoError(t, err)
	_, err = s.StoreUpload(strings.NewReader("c"), "gamma.jpeg")
	require.NoError(t, err)
	// Non-image files never show up in the gallery.
	_, err = s.StoreProcessed(strings.NewReader("x"), "notes.txt")
	require.NoError(t, err)

	entries, err := s.ListImages()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{
		"processed/2025-07-06/142058_alpha.png",
		"processed/2025-07-06/142058_beta.jpg",
		"uploads/20250706_142058_gamma.jpeg",
	}, paths)
}

func TestResolveUploadRejectsTraversal(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"", "..", "../secret.png", "a/b.png", `a\b.png`, "..secret..png"} {
		_, err := s.ResolveUpload(name)
		assert.Error(t, err, "name %q should be rejected", name)
	}

	abs, err := s.ResolveUpload("trade.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.uploadsDir, "trade.png"), abs)
}

func TestResolveProcessed(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ResolveProcessed("not-a-date", "trade.png")
	assert.Error(t, err)
	_, err = s.ResolveProcessed("2025-07-06", "../escape.png")
	assert.Error(t, err)

	abs, err := s.ResolveProcessed("2025-07-06", "trade.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.processedDir, "2025-07-06", "trade.png"), abs)
}

func TestSanitizeFilename(t *testing.T) {
	testCases := []struct{ in, out string }{
		{"trade.png", "trade.png"},
		{"screen shot (1).png", "screen_shot__1_.png"},
		{"../../etc/passwd", "passwd"},
		{"événement.png", "_v_nement.png"},
		{"", "image"},
		{"...", "image"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.out, SanitizeFilename(tc.in), "input %q", tc.in)
	}
}
