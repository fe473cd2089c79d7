// Package notation converts the recognizer's MusicXML output into the
// derived artifacts: ABC text, a concise note stream, and a playable MIDI
// file.
package notation

import (
	"encoding/xml"
	"fmt"
	"math/big"
	"os"
)

// Pitch is one named pitch with chromatic alteration and octave.
type Pitch struct {
	Step   string
	Alter  int
	Octave int
}

// PS returns the pitch-space value (MIDI note number) used for sorting and
// synthesis. C4 = 60.
func (p Pitch) PS() int {
	semitones := map[string]int{"C": 0, "D": 2, "E": 4, "F": 5, "G": 7, "A": 9, "B": 11}
	return (p.Octave+1)*12 + semitones[p.Step] + p.Alter
}

// Label renders the pitch as a readable name with octave, e.g. G3 or Bb4.
func (p Pitch) Label() string {
	accidental := ""
	switch {
	case p.Alter > 0:
		accidental = "#"
	case p.Alter < 0:
		accidental = "b"
	}
	return fmt.Sprintf("%s%s%d", p.Step, accidental, p.Octave)
}

// Event is one note, chord, or rest with a duration in quarter notes.
type Event struct {
	Rest     bool
	Pitches  []Pitch
	Quarters *big.Rat
}

// Measure is an ordered run of events.
type Measure struct {
	Events []Event
}

// Score is the parsed subset of MusicXML the converters need.
type Score struct {
	Title       string
	BeatsPerBar int
	BeatUnit    int
	KeyTonic    string
	KeyMinor    bool
	Measures    []Measure
}

// Raw MusicXML document shapes (score-partwise).
type xmlScore struct {
	WorkTitle     string    `xml:"work>work-title"`
	MovementTitle string    `xml:"movement-title"`
	Parts         []xmlPart `xml:"part"`
}

type xmlPart struct {
	Measures []xmlMeasure `xml:"measure"`
}

type xmlMeasure struct {
	Attributes []xmlAttributes `xml:"attributes"`
	Notes      []xmlNote       `xml:"note"`
}

type xmlAttributes struct {
	Divisions int      `xml:"divisions"`
	Key       *xmlKey  `xml:"key"`
	Time      *xmlTime `xml:"time"`
}

type xmlKey struct {
	Fifths int    `xml:"fifths"`
	Mode   string `xml:"mode"`
}

type xmlTime struct {
	Beats    int `xml:"beats"`
	BeatType int `xml:"beat-type"`
}

type xmlNote struct {
	Chord    *struct{} `xml:"chord"`
	Rest     *struct{} `xml:"rest"`
	Pitch    *xmlPitch `xml:"pitch"`
	Duration int       `xml:"duration"`
}

type xmlPitch struct {
	Step   string `xml:"step"`
	Alter  int    `xml:"alter"`
	Octave int    `xml:"octave"`
}

var majorTonics = map[int]string{
	-7: "Cb", -6: "Gb", -5: "Db", -4: "Ab", -3: "Eb", -2: "Bb", -1: "F",
	0: "C", 1: "G", 2: "D", 3: "A", 4: "E", 5: "B", 6: "F#", 7: "C#",
}

var minorTonics = map[int]string{
	-7: "Ab", -6: "Eb", -5: "Bb", -4: "F", -3: "C", -2: "G", -1: "D",
	0: "A", 1: "E", 2: "B", 3: "F#", 4: "C#", 5: "G#", 6: "D#", 7: "A#",
}

// Parse reads a MusicXML file into a Score. The first part carries the
// event stream; title, time, and key come from the document header.
func Parse(path string) (*Score, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read musicxml: %w", err)
	}

	var doc xmlScore
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse musicxml: %w", err)
	}
	if len(doc.Parts) == 0 {
		return nil, fmt.Errorf("musicxml has no parts")
	}

	score := &Score{
		Title:       firstNonEmpty(doc.WorkTitle, doc.MovementTitle),
		BeatsPerBar: 4,
		BeatUnit:    4,
		KeyTonic:    "C",
	}

	divisions := 1
	timeSeen := false
	keySeen := false

	for _, rawMeasure := range doc.Parts[0].Measures {
		for _, attrs := range rawMeasure.Attributes {
			if attrs.Divisions > 0 {
				divisions = attrs.Divisions
			}
			if attrs.Time != nil && attrs.Time.Beats > 0 && attrs.Time.BeatType > 0 && !timeSeen {
				score.BeatsPerBar = attrs.Time.Beats
				score.BeatUnit = attrs.Time.BeatType
				timeSeen = true
			}
			if attrs.Key != nil && !keySeen {
				score.KeyMinor = attrs.Key.Mode == "minor"
				tonics := majorTonics
				if score.KeyMinor {
					tonics = minorTonics
				}
				if tonic, ok := tonics[attrs.Key.Fifths]; ok {
					score.KeyTonic = tonic
					keySeen = true
				}
			}
		}

		var measure Measure
		for _, note := range rawMeasure.Notes {
			quarters := big.NewRat(int64(note.Duration), int64(divisions))
			switch {
			case note.Rest != nil:
				measure.Events = append(measure.Events, Event{Rest: true, Quarters: quarters})
			case note.Pitch != nil:
				pitch := Pitch{Step: note.Pitch.Step, Alter: note.Pitch.Alter, Octave: note.Pitch.Octave}
				if note.Chord != nil && len(measure.Events) > 0 && !measure.Events[len(measure.Events)-1].Rest {
					last := &measure.Events[len(measure.Events)-1]
					last.Pitches = insertSorted(last.Pitches, pitch)
				} else {
					measure.Events = append(measure.Events, Event{Pitches: []Pitch{pitch}, Quarters: quarters})
				}
			}
		}
		score.Measures = append(score.Measures, measure)
	}

	return score, nil
}

// insertSorted keeps chord pitches ordered low to high.
func insertSorted(pitches []Pitch, pitch Pitch) []Pitch {
	for i, existing := range pitches {
		if pitch.PS() < existing.PS() {
			pitches = append(pitches[:i], append([]Pitch{pitch}, pitches[i:]...)...)
			return pitches
		}
	}
	return append(pitches, pitch)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
