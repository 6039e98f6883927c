package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/taskforge/internal/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	s.newID = func() string { return "f00d" }
	return s
}

func TestLocalStore_SaveAndRemove(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	url, err := s.Save(ctx, "../notes.txt", "text/plain", strings.NewReader("hello"), 5)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/f00d-notes.txt", url)

	b, err := os.ReadFile(filepath.Join(s.Dir(), "f00d-notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	dl, err := s.DownloadURL(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, url, dl)

	require.NoError(t, s.Remove(ctx, url))
	_, err = os.Stat(filepath.Join(s.Dir(), "f00d-notes.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStore_RemoveMissingIsNotAnError(t *testing.T) {
	s := newLocal(t)
	require.NoError(t, s.Remove(context.Background(), "/uploads/gone.txt"))
}

func TestLocalStore_RejectsForeignURLs(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	for _, url := range []string{"/etc/passwd", "/uploads/../secret", "/uploads/", "https://cdn/x"} {
		err := s.Remove(ctx, url)
		assert.ErrorIs(t, err, common.ErrStorage, url)
	}
}

func TestLocalStore_SameNameTwiceFails(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "a.txt", "", strings.NewReader("1"), 1)
	require.NoError(t, err)
	_, err = s.Save(ctx, "a.txt", "", strings.NewReader("2"), 1)
	assert.ErrorIs(t, err, common.ErrStorage)
}

func TestLocalStore_NamesAreRandom(t *testing.T) {
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	ctx := context.Background()

	first, err := s.Save(ctx, "a.txt", "", strings.NewReader("1"), 1)
	require.NoError(t, err)
	second, err := s.Save(ctx, "a.txt", "", strings.NewReader("2"), 1)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	for _, url := range []string{first, second} {
		name := strings.TrimPrefix(url, LocalURLPrefix)
		require.True(t, strings.HasSuffix(name, "-a.txt"), url)
		_, err := uuid.Parse(strings.TrimSuffix(name, "-a.txt"))
		assert.NoError(t, err, url)
	}
}
