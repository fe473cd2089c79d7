package model

import "time"

// Job is one submitted transcription request and its tracked lifecycle state.
// It is created at upload time, mutated only by the pipeline, and becomes
// immutable once Status is terminal.
type Job struct {
	ID               string                  `json:"id"`
	Filename         string                  `json:"filename"`
	Status           JobStatus               `json:"status"`
	Stage            Stage                   `json:"stage"`
	Progress         float64                 `json:"progress"`
	Message          string                  `json:"message"`
	Error            *string                 `json:"error"`
	ABCText          string                  `json:"abc_text"`
	ConciseNotesText string                  `json:"concise_notes_text"`
	Downloads        map[ArtifactKind]string `json:"downloads"`
	PreviewURL       *string                 `json:"preview_url"`
	Log              []string                `json:"log"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// Terminal reports whether the job reached a final state.
func (j *Job) Terminal() bool {
	return j.Status.Terminal()
}

// LogLine formats one timestamped job log entry.
func LogLine(message string) string {
	return "[" + time.Now().Format("15:04:05") + "] " + message
}

// Clone returns a deep copy so callers never share the store's slices/maps.
func (j *Job) Clone() Job {
	copied := *j
	copied.Log = append([]string(nil), j.Log...)
	copied.Downloads = make(map[ArtifactKind]string, len(j.Downloads))
	for kind, url := range j.Downloads {
		copied.Downloads[kind] = url
	}
	if j.Error != nil {
		msg := *j.Error
		copied.Error = &msg
	}
	if j.PreviewURL != nil {
		url := *j.PreviewURL
		copied.PreviewURL = &url
	}
	return copied
}
