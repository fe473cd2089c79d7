package store

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sheetscribe/api/internal/model"
)

var (
	// ErrNotFound is returned when no job exists for an id.
	ErrNotFound = errors.New("job not found")
	// ErrTerminal is returned when a mutation is attempted on a job that
	// already reached complete or error. Such calls are programming errors
	// in the caller; the store refuses them and leaves the job untouched.
	ErrTerminal = errors.New("job is terminal")
)

// Store is the concurrent in-memory job registry. It is the only component
// mutated by more than one actor: the pipeline writes, pollers read. Writes
// for the same job are serialized under the mutex; reads return deep
// snapshots so no caller ever observes a partially applied transition.
//
// Job state is ephemeral by design and lost on restart.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

func New() *Store {
	return &Store{jobs: make(map[string]*model.Job)}
}

// Create registers a new queued job and returns its snapshot.
func (s *Store) Create(filename string) model.Job {
	now := time.Now()
	job := &model.Job{
		ID:        uuid.New().String(),
		Filename:  filename,
		Status:    model.JobStatusQueued,
		Stage:     model.StageQueued,
		Progress:  0,
		Message:   "Queued for processing",
		Downloads: make(map[model.ArtifactKind]string),
		Log:       []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job.Clone()
}

// Get returns a consistent snapshot of the job.
func (s *Store) Get(id string) (model.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return model.Job{}, false
	}
	return job.Clone(), true
}

// Update applies a state transition atomically. The mutator runs under the
// store lock and must not block. Terminal jobs reject every mutation.
//
// Two invariants are enforced here rather than trusted to callers: the stage
// index never moves backward and progress never decreases while the job is
// not in error.
func (s *Store) Update(id string, mutate func(*model.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Terminal() {
		log.Printf("store: rejected mutation of terminal job %s", id)
		return ErrTerminal
	}

	prevStage := job.Stage
	prevProgress := job.Progress

	mutate(job)

	if job.Stage.Index() < prevStage.Index() {
		job.Stage = prevStage
	}
	if job.Status != model.JobStatusError && job.Progress < prevProgress {
		job.Progress = prevProgress
	}
	job.UpdatedAt = time.Now()
	return nil
}

// AppendLog appends one timestamped line to the job's log. Log entries are
// never removed or reordered, and terminal jobs accept no further lines; a
// run's closing line belongs inside the same Update that commits the
// terminal status.
func (s *Store) AppendLog(id string, line string) {
	entry := model.LogLine(line)
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	if job.Terminal() {
		log.Printf("store: rejected log append to terminal job %s", id)
		return
	}
	job.Log = append(job.Log, entry)
	job.UpdatedAt = time.Now()
}

// Len returns the number of registered jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Sweep removes jobs whose last update is older than ttl and returns their
// ids so the caller can purge the backing working directories. Jobs still
// in flight are never older than ttl in practice; retention beyond ttl is
// not guaranteed.
func (s *Store) Sweep(ttl time.Duration) []string {
	cutoff := time.Now().Add(-ttl)
	var stale []string

	s.mu.Lock()
	for id, job := range s.jobs {
		if job.UpdatedAt.Before(cutoff) {
			stale = append(stale, id)
			delete(s.jobs, id)
		}
	}
	s.mu.Unlock()
	return stale
}
