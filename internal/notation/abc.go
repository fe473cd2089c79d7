package notation

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// ABC renders the score as ABC notation followed by a simplified
// pitch+octave list. ABC conversion is a readable approximation; the
// MusicXML artifact stays the accurate representation.
func ABC(score *Score) string {
	title := score.Title
	if title == "" {
		title = "Transcribed Sheet Music"
	}
	key := score.KeyTonic
	if score.KeyMinor {
		key += "m"
	}

	lines := []string{
		"X:1",
		"T:" + title,
		fmt.Sprintf("M:%d/%d", score.BeatsPerBar, score.BeatUnit),
		"L:1/4",
		"K:" + key,
		"",
		"% Standard ABC notation (with octaves):",
		"",
	}

	for _, measure := range score.Measures {
		var items []string
		for _, event := range measure.Events {
			duration := abcDuration(event.Quarters)
			switch {
			case event.Rest:
				items = append(items, "z"+duration)
			case len(event.Pitches) > 1:
				var notes []string
				for _, pitch := range event.Pitches {
					notes = append(notes, abcPitch(pitch))
				}
				items = append(items, "["+strings.Join(notes, "")+"]"+duration)
			case len(event.Pitches) == 1:
				items = append(items, abcPitch(event.Pitches[0])+duration)
			}
		}
		if len(items) > 0 {
			lines = append(lines, strings.Join(items, " ")+" |")
		}
	}

	lines = append(lines, "", "% Simplified chord/note list (pitch + octave):")
	var simplified []string
	for _, measure := range score.Measures {
		for _, event := range measure.Events {
			if event.Rest || len(event.Pitches) == 0 {
				continue
			}
			var labels []string
			for _, pitch := range event.Pitches {
				labels = append(labels, pitch.Label())
			}
			simplified = append(simplified, strings.Join(labels, "/"))
		}
	}
	if len(simplified) > 0 {
		lines = append(lines, strings.Join(simplified, " | "))
	}

	return strings.Join(lines, "\n")
}

// abcPitch renders octave placement: octave 4 is the plain uppercase
// letter, 5 and up lowercase with apostrophes, below 4 uppercase with
// commas. Accidentals are carried by the key line.
func abcPitch(pitch Pitch) string {
	switch {
	case pitch.Octave >= 5:
		return strings.ToLower(pitch.Step) + strings.Repeat("'", pitch.Octave-5)
	case pitch.Octave == 4:
		return strings.ToUpper(pitch.Step)
	default:
		return strings.ToUpper(pitch.Step) + strings.Repeat(",", 4-pitch.Octave)
	}
}

// abcDuration renders a quarter-note length against the L:1/4 unit.
func abcDuration(quarters *big.Rat) string {
	num := quarters.Num().Int64()
	den := quarters.Denom().Int64()

	switch {
	case den == 1 && num == 1:
		return ""
	case den == 1:
		return strconv.FormatInt(num, 10)
	case num == 3 && den == 2:
		return "3/2"
	case num == 3 && den == 4:
		return "3/4"
	case num == 1:
		return "/" + strconv.FormatInt(den, 10)
	default:
		return fmt.Sprintf("%d/%d", num, den)
	}
}
