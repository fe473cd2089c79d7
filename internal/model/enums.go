package model

// Job status
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusError      JobStatus = "error"
)

// Terminal reports whether no further mutation of a job is permitted.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusError
}

// Stage is the fine-grained pipeline position of a job.
type Stage string

const (
	StageQueued             Stage = "queued"
	StageValidating         Stage = "validating"
	StagePreparing          Stage = "preparing"
	StageRecognizing        Stage = "recognizing"
	StageConvertingNotation Stage = "converting_notation"
	StageConvertingAudio    Stage = "converting_audio"
	StagePackaging          Stage = "packaging"
	StageComplete           Stage = "complete"
)

// StageOrder lists all stages in pipeline order.
var StageOrder = []Stage{
	StageQueued,
	StageValidating,
	StagePreparing,
	StageRecognizing,
	StageConvertingNotation,
	StageConvertingAudio,
	StagePackaging,
	StageComplete,
}

// Index returns the position of the stage in the pipeline, or -1 for an
// unknown stage.
func (s Stage) Index() int {
	for i, stage := range StageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// ArtifactKind identifies one downloadable output of a job.
type ArtifactKind string

const (
	ArtifactMIDI     ArtifactKind = "midi"
	ArtifactMusicXML ArtifactKind = "musicxml"
	ArtifactPreview  ArtifactKind = "preview"
)

var ValidArtifactKinds = []ArtifactKind{
	ArtifactMIDI, ArtifactMusicXML, ArtifactPreview,
}

// ParseArtifactKind maps a URL path segment to an artifact kind.
func ParseArtifactKind(raw string) (ArtifactKind, bool) {
	for _, kind := range ValidArtifactKinds {
		if string(kind) == raw {
			return kind, true
		}
	}
	return "", false
}
