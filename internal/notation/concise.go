package notation

import (
	"fmt"
	"math/big"
	"strings"
)

// ConciseNotes builds an ordered concise note stream.
// Format: NOTE_OR_CHORD:DURATION with measures separated by '|', durations
// as whole-note fractions. Examples: C4:1/4, [C4,E4,G4]:1/2, R:1/8.
func ConciseNotes(score *Score) string {
	var chunks []string
	for _, measure := range score.Measures {
		var tokens []string
		for _, event := range measure.Events {
			if token := conciseToken(event); token != "" {
				tokens = append(tokens, token)
			}
		}
		if len(tokens) > 0 {
			chunks = append(chunks, strings.Join(tokens, " "))
		}
	}
	if len(chunks) == 0 {
		return "No note events detected."
	}
	return strings.Join(chunks, " | ")
}

func conciseToken(event Event) string {
	duration := wholeNoteFraction(event.Quarters)

	if event.Rest {
		return "R:" + duration
	}
	if len(event.Pitches) == 0 {
		return ""
	}
	if len(event.Pitches) == 1 {
		return event.Pitches[0].Label() + ":" + duration
	}

	var labels []string
	for _, pitch := range event.Pitches {
		labels = append(labels, pitch.Label())
	}
	return "[" + strings.Join(labels, ",") + "]:" + duration
}

// wholeNoteFraction renders a quarter-note length as a fraction of a whole
// note, e.g. one quarter -> "1/4", dotted half -> "3/4".
func wholeNoteFraction(quarters *big.Rat) string {
	if quarters.Sign() <= 0 {
		return "0"
	}
	whole := new(big.Rat).Quo(quarters, big.NewRat(4, 1))
	if whole.IsInt() {
		return whole.Num().String()
	}
	return fmt.Sprintf("%s/%s", whole.Num(), whole.Denom())
}
