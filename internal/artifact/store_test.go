package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetscribe/api/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "jobs"))
	require.NoError(t, err)
	return s
}

func TestAllocateIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	dir1, err := s.Allocate("job-1")
	require.NoError(t, err)
	dir2, err := s.Allocate("job-1")
	require.NoError(t, err)

	assert.Equal(t, dir1, dir2)
	assert.Equal(t, s.Dir("job-1"), dir1)

	info, err := os.Stat(dir1)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSaveUpload(t *testing.T) {
	s := newTestStore(t)

	path, err := s.SaveUpload("job-1", ".png", strings.NewReader("image-bytes"), 1024)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir("job-1"), "input.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
}

func TestSaveUploadEnforcesSizeCap(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SaveUpload("job-1", ".png", strings.NewReader("0123456789"), 5)
	assert.ErrorIs(t, err, ErrTooLarge)

	// The partial spool must not survive.
	_, statErr := os.Stat(filepath.Join(s.Dir("job-1"), "input.png"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSaveUploadAtExactLimit(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SaveUpload("job-1", ".png", strings.NewReader("12345"), 5)
	assert.NoError(t, err)
}

func TestCopyIn(t *testing.T) {
	s := newTestStore(t)

	src := filepath.Join(t.TempDir(), "source.musicxml")
	require.NoError(t, os.WriteFile(src, []byte("<score/>"), 0o644))

	dest, err := s.CopyIn("job-1", src, "output.musicxml")
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "<score/>", string(data))
}

func TestPathForAndHas(t *testing.T) {
	s := newTestStore(t)
	dir, err := s.Allocate("job-1")
	require.NoError(t, err)

	_, err = s.PathFor("job-1", model.ArtifactMIDI)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, s.Has("job-1", model.ArtifactMIDI))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "output.mid"), []byte("MThd"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "preview.jpg"), []byte("jpg"), 0o644))

	path, err := s.PathFor("job-1", model.ArtifactMIDI)
	require.NoError(t, err)
	assert.Equal(t, s.MIDIPath("job-1"), path)

	path, err = s.PathFor("job-1", model.ArtifactPreview)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "preview.jpg"), path)

	assert.False(t, s.Has("job-1", model.ArtifactMusicXML))

	_, err = s.PathFor("job-1", model.ArtifactKind("bogus"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurge(t *testing.T) {
	s := newTestStore(t)
	dir, err := s.Allocate("job-1")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output.mid"), []byte("x"), 0o644))

	s.Purge("job-1")

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}
