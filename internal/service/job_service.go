package service

import (
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/sheetscribe/api/internal/artifact"
	"github.com/sheetscribe/api/internal/model"
	"github.com/sheetscribe/api/internal/pipeline"
	"github.com/sheetscribe/api/internal/store"
	"github.com/sheetscribe/api/internal/worker"
)

// ErrUnsupportedType rejects uploads whose extension is not an accepted
// image/PDF kind. Surfaced before any job is created.
var ErrUnsupportedType = errors.New("Unsupported file format. Upload JPG, PNG, or PDF.")

// JobService glues upload handling to the job store, artifact store, and
// worker dispatch. It is the only component that creates jobs; all later
// mutation belongs to the pipeline.
type JobService struct {
	store     *store.Store
	artifacts *artifact.Store
	pool      *worker.Pool
	maxBytes  int64
	ttl       time.Duration
}

func NewJobService(jobs *store.Store, artifacts *artifact.Store, pool *worker.Pool, maxBytes int64, ttl time.Duration) *JobService {
	return &JobService{
		store:     jobs,
		artifacts: artifacts,
		pool:      pool,
		maxBytes:  maxBytes,
		ttl:       ttl,
	}
}

// Submit validates the upload, creates the job record, spools the input into
// the job's working directory, and schedules the pipeline. It returns with
// the job still queued; it never waits on recognition.
func (s *JobService) Submit(rawFilename string, file io.Reader) (model.Job, error) {
	s.sweepStale()

	filename := SanitizeFilename(rawFilename)
	ext := strings.ToLower(filepath.Ext(filename))
	if !pipeline.AllowedExtensions[ext] {
		return model.Job{}, ErrUnsupportedType
	}

	job := s.store.Create(filename)

	if _, err := s.artifacts.SaveUpload(job.ID, ext, file, s.maxBytes); err != nil {
		s.abort(job.ID, err)
		return model.Job{}, err
	}

	if err := s.pool.Submit(job.ID); err != nil {
		s.abort(job.ID, err)
		return model.Job{}, err
	}

	// Return the queued snapshot from the store: the pipeline may already
	// be running, but the caller is promised at least status=queued.
	return job, nil
}

// Get returns a consistent snapshot of the job.
func (s *JobService) Get(id string) (model.Job, bool) {
	return s.store.Get(id)
}

// ArtifactFile resolves the file backing a downloads entry. downloadName is
// empty for inline artifacts (the preview image).
func (s *JobService) ArtifactFile(id string, kind model.ArtifactKind) (path, downloadName string, err error) {
	job, ok := s.store.Get(id)
	if !ok {
		return "", "", store.ErrNotFound
	}

	path, err = s.artifacts.PathFor(id, kind)
	if err != nil {
		return "", "", err
	}

	stem := strings.TrimSuffix(job.Filename, filepath.Ext(job.Filename))
	if stem == "" {
		stem = "transcription"
	}
	switch kind {
	case model.ArtifactMIDI:
		downloadName = stem + ".mid"
	case model.ArtifactMusicXML:
		downloadName = stem + ".musicxml"
	}
	return path, downloadName, nil
}

// ActiveJobs reports the registry size for the health endpoint.
func (s *JobService) ActiveJobs() int {
	return s.store.Len()
}

// abort terminally fails a job that never reached its pipeline and reclaims
// its working directory.
func (s *JobService) abort(jobID string, cause error) {
	updateErr := s.store.Update(jobID, func(j *model.Job) {
		j.Status = model.JobStatusError
		j.Message = "Submission failed"
		msg := cause.Error()
		j.Error = &msg
	})
	if updateErr != nil {
		log.Printf("service: could not abort job %s: %v", jobID, updateErr)
	}
	s.artifacts.Purge(jobID)
}

// sweepStale evicts jobs idle past the TTL, original-style: triggered on
// submission rather than a background timer.
func (s *JobService) sweepStale() {
	for _, id := range s.store.Sweep(s.ttl) {
		s.artifacts.Purge(id)
	}
}

// SanitizeFilename strips path components and unsafe characters from a
// client-supplied filename.
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "upload"
	}

	var b strings.Builder
	for _, ch := range base {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch == '-' || ch == '_' || ch == '.':
			b.WriteRune(ch)
		default:
			b.WriteRune('_')
		}
	}

	safe := strings.Trim(b.String(), "._")
	if safe == "" {
		return "upload"
	}
	return safe
}
