package notation

import (
	"fmt"
	"math/big"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	ticksPerQuarter = 480
	noteVelocity    = 64
)

// WriteMIDI renders the score as a single-track Standard MIDI File at 120
// BPM. Chord pitches start and stop together; rests advance the clock
// without emitting notes.
func WriteMIDI(score *Score, outPath string) error {
	var track smf.Track
	track.Add(0, smf.MetaTempo(120))
	track.Add(0, smf.MetaMeter(uint8(score.BeatsPerBar), uint8(score.BeatUnit)))

	pending := uint32(0)
	for _, measure := range score.Measures {
		for _, event := range measure.Events {
			ticks := quartersToTicks(event.Quarters)
			if event.Rest || len(event.Pitches) == 0 {
				pending += ticks
				continue
			}

			for i, pitch := range event.Pitches {
				delta := uint32(0)
				if i == 0 {
					delta = pending
				}
				track.Add(delta, midi.NoteOn(0, clampNote(pitch.PS()), noteVelocity))
			}
			for i, pitch := range event.Pitches {
				delta := uint32(0)
				if i == 0 {
					delta = ticks
				}
				track.Add(delta, midi.NoteOff(0, clampNote(pitch.PS())))
			}
			pending = 0
		}
	}
	track.Close(0)

	file := smf.New()
	file.TimeFormat = smf.MetricTicks(ticksPerQuarter)
	if err := file.Add(track); err != nil {
		return fmt.Errorf("write midi: %w", err)
	}
	if err := file.WriteFile(outPath); err != nil {
		return fmt.Errorf("write midi: %w", err)
	}
	return nil
}

func quartersToTicks(quarters *big.Rat) uint32 {
	ticks := new(big.Rat).Mul(quarters, big.NewRat(ticksPerQuarter, 1))
	num := ticks.Num().Int64()
	den := ticks.Denom().Int64()
	if den == 0 {
		return 0
	}
	// Round to nearest tick.
	rounded := (num + den/2) / den
	if rounded < 0 {
		return 0
	}
	return uint32(rounded)
}

func clampNote(ps int) uint8 {
	if ps < 0 {
		return 0
	}
	if ps > 127 {
		return 127
	}
	return uint8(ps)
}
