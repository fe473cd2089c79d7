package notation

import "fmt"

// Converter derives the output artifacts from recognized MusicXML. It is an
// interface so the pipeline can run against a fake in tests.
type Converter interface {
	// Notation returns the ABC text and the concise note stream.
	Notation(musicxmlPath string) (abc string, concise string, err error)
	// MIDI writes the audio-score artifact to outPath.
	MIDI(musicxmlPath, outPath string) error
}

// Library is the in-process converter implementation.
type Library struct{}

func NewLibrary() *Library {
	return &Library{}
}

func (l *Library) Notation(musicxmlPath string) (string, string, error) {
	score, err := Parse(musicxmlPath)
	if err != nil {
		return "", "", fmt.Errorf("notation conversion: %w", err)
	}
	return ABC(score), ConciseNotes(score), nil
}

func (l *Library) MIDI(musicxmlPath, outPath string) error {
	score, err := Parse(musicxmlPath)
	if err != nil {
		return fmt.Errorf("midi conversion: %w", err)
	}
	if err := WriteMIDI(score, outPath); err != nil {
		return fmt.Errorf("midi conversion: %w", err)
	}
	return nil
}

var _ Converter = (*Library)(nil)
