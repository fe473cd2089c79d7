package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sheetscribe/api/internal/model"
)

// ErrNotFound is returned when no file exists for the requested kind.
var ErrNotFound = errors.New("artifact not available")

// ErrTooLarge is returned when an upload exceeds the configured size cap.
var ErrTooLarge = errors.New("upload exceeds size limit")

// Output filenames are fixed per kind so existence on disk is the single
// source of truth for "is this artifact ready".
const (
	midiFilename     = "output.mid"
	musicxmlFilename = "output.musicxml"
	scoreFilename    = "score.musicxml"
)

var previewExtensions = []string{".jpg", ".jpeg", ".png"}

// Store owns one private working directory per job under a common root.
// Directories are keyed by the opaque job id, so no two jobs ever share a
// mutable path. A job's directory is written only by its pipeline run until
// the job is terminal, after which it is read-only for download handlers.
type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the directory all job workdirs live under.
func (s *Store) Root() string {
	return s.root
}

// Allocate creates (idempotently) and returns the job's working directory.
func (s *Store) Allocate(jobID string) (string, error) {
	dir := filepath.Join(s.root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("allocate workdir: %w", err)
	}
	return dir, nil
}

// Dir returns the job's working directory without creating it.
func (s *Store) Dir(jobID string) string {
	return filepath.Join(s.root, jobID)
}

// SaveUpload spools the uploaded input into the job's workdir as
// "input<ext>", enforcing maxBytes during the copy so an oversized body is
// cut off rather than fully buffered.
func (s *Store) SaveUpload(jobID, ext string, r io.Reader, maxBytes int64) (string, error) {
	dir, err := s.Allocate(jobID)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(dir, "input"+ext)
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, io.LimitReader(r, maxBytes+1))
	if err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if written > maxBytes {
		os.Remove(dest)
		return "", ErrTooLarge
	}
	return dest, nil
}

// CopyIn copies an existing file into the job's workdir under name,
// returning the destination path. Copying a file onto itself is a no-op.
func (s *Store) CopyIn(jobID, src, name string) (string, error) {
	dir, err := s.Allocate(jobID)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(dir, name)
	if sameFile(src, dest) {
		return dest, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", fmt.Errorf("copy to %s: %w", dest, err)
	}
	return dest, nil
}

// MIDIPath returns the destination path for the audio-score artifact.
func (s *Store) MIDIPath(jobID string) string {
	return filepath.Join(s.Dir(jobID), midiFilename)
}

// ScorePath returns the destination path for the recognizer's MusicXML.
func (s *Store) ScorePath(jobID string) string {
	return filepath.Join(s.Dir(jobID), scoreFilename)
}

// PathFor resolves the on-disk file for an artifact kind. ErrNotFound means
// the producing stage has not succeeded (or the job never existed).
func (s *Store) PathFor(jobID string, kind model.ArtifactKind) (string, error) {
	dir := s.Dir(jobID)
	switch kind {
	case model.ArtifactMIDI:
		return existing(filepath.Join(dir, midiFilename))
	case model.ArtifactMusicXML:
		return existing(filepath.Join(dir, musicxmlFilename))
	case model.ArtifactPreview:
		for _, ext := range previewExtensions {
			if path, err := existing(filepath.Join(dir, "preview"+ext)); err == nil {
				return path, nil
			}
		}
		return "", ErrNotFound
	default:
		return "", ErrNotFound
	}
}

// Has reports whether the artifact file exists.
func (s *Store) Has(jobID string, kind model.ArtifactKind) bool {
	_, err := s.PathFor(jobID, kind)
	return err == nil
}

// Purge deletes the job's working directory and everything in it. Callers
// must not purge a job whose pipeline has not reached a terminal state.
func (s *Store) Purge(jobID string) {
	_ = os.RemoveAll(s.Dir(jobID))
}

// PurgeAll removes the whole artifact root. Used at shutdown; artifacts are
// not retained across process lifetimes.
func (s *Store) PurgeAll() {
	_ = os.RemoveAll(s.root)
}

func existing(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrNotFound
	}
	return path, nil
}

func sameFile(a, b string) bool {
	ra, err := filepath.Abs(a)
	if err != nil {
		return false
	}
	rb, err := filepath.Abs(b)
	if err != nil {
		return false
	}
	return ra == rb
}
