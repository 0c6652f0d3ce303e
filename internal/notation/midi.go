package notation

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/Yates-Labs/partimento/internal/score"
)

const (
	ticksPerQuarter = 960
	measureTicks    = 4 * ticksPerQuarter
	defaultTempo    = 80.0
	noteVelocity    = 80
)

// midiTrack is one voice to render on its own channel.
type midiTrack struct {
	name    string
	program uint8
	music   []score.Measure
}

// writeMIDI writes a format 1 file: a conductor track with tempo and meter,
// then one track per voice. Unreadable pitches become silence.
func writeMIDI(path, title string, tracks []midiTrack, skip func(part string, measure int, pitch string, err error)) error {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)

	var conductor smf.Track
	if title != "" {
		conductor.Add(0, smf.MetaTrackSequenceName(title))
	}
	conductor.Add(0, smf.MetaMeter(4, 4))
	conductor.Add(0, smf.MetaTempo(defaultTempo))
	conductor.Close(0)
	if err := s.Add(conductor); err != nil {
		return fmt.Errorf("add conductor track: %w", err)
	}

	for i, t := range tracks {
		ch := uint8(i % 16)
		var tr smf.Track
		tr.Add(0, smf.MetaTrackSequenceName(t.name))
		tr.Add(0, midi.ProgramChange(ch, t.program))

		var pending uint32
		for mi, m := range t.music {
			lengths := tickLengths(len(m))
			if len(m) == 0 {
				pending += measureTicks
				continue
			}
			for j, raw := range m {
				p, err := score.ParsePitch(raw)
				if err != nil || p.MIDI() < 0 || p.MIDI() > 127 {
					if skip != nil {
						if err == nil {
							err = fmt.Errorf("%w: %q outside the MIDI range", score.ErrInvalidPitch, raw)
						}
						skip(t.name, mi+1, raw, err)
					}
					pending += lengths[j]
					continue
				}
				key := uint8(p.MIDI())
				tr.Add(pending, midi.NoteOn(ch, key, noteVelocity))
				tr.Add(lengths[j], midi.NoteOff(ch, key))
				pending = 0
			}
		}
		tr.Close(pending)
		if err := s.Add(tr); err != nil {
			return fmt.Errorf("add track %s: %w", t.name, err)
		}
	}

	if err := s.WriteFile(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// tickLengths splits a measure of measureTicks into n near-equal notes.
func tickLengths(n int) []uint32 {
	if n <= 0 {
		return nil
	}
	each := measureTicks / n
	out := make([]uint32, n)
	for i := range out {
		out[i] = uint32(each)
	}
	out[n-1] += uint32(measureTicks - each*n)
	return out
}
