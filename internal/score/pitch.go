package score

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidPitch = errors.New("invalid pitch")

// Pitch is a spelled pitch in scientific notation (C4 is middle C).
type Pitch struct {
	Step   byte // 'A'..'G'
	Alter  int  // -2..2 semitones
	Octave int
}

var stepSemitones = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// NormalizePitch rewrites Unicode accidentals into their ASCII spelling.
func NormalizePitch(s string) string {
	r := strings.NewReplacer("♯", "#", "♭", "b", "𝄪", "##", "𝄫", "bb", "♮", "")
	return strings.TrimSpace(r.Replace(s))
}

// ParsePitch parses strings such as "C4", "F#3", "Bb2", "E-5" or "G♯3".
// A '-' counts as a flat except directly before a trailing "1", where it is
// the sign of octave -1: "C-1" is MIDI 0, and E-flat 1 is spelled "Eb1".
func ParsePitch(s string) (Pitch, error) {
	n := NormalizePitch(s)
	if n == "" {
		return Pitch{}, fmt.Errorf("%w: empty", ErrInvalidPitch)
	}

	step := n[0]
	if step >= 'a' && step <= 'g' {
		step -= 'a' - 'A'
	}
	if _, ok := stepSemitones[step]; !ok {
		return Pitch{}, fmt.Errorf("%w: %q has no note letter", ErrInvalidPitch, s)
	}

	rest := n[1:]
	alter := 0
accidentals:
	for len(rest) > 0 {
		switch rest[0] {
		case '#':
			alter++
		case '-':
			if rest == "-1" {
				break accidentals
			}
			alter--
		case 'b':
			alter--
		default:
			break accidentals
		}
		rest = rest[1:]
	}
	if alter < -2 || alter > 2 {
		return Pitch{}, fmt.Errorf("%w: %q has too many accidentals", ErrInvalidPitch, s)
	}
	oct, err := strconv.Atoi(rest)
	if err != nil {
		return Pitch{}, fmt.Errorf("%w: %q has no octave", ErrInvalidPitch, s)
	}
	return Pitch{Step: step, Alter: alter, Octave: oct}, nil
}

// MIDI returns the MIDI key number, with C4 = 60.
func (p Pitch) MIDI() int {
	return (p.Octave+1)*12 + stepSemitones[p.Step] + p.Alter
}

func (p Pitch) String() string {
	acc := ""
	switch {
	case p.Alter > 0:
		acc = strings.Repeat("#", p.Alter)
	case p.Alter < 0:
		acc = strings.Repeat("b", -p.Alter)
	}
	return fmt.Sprintf("%c%s%d", p.Step, acc, p.Octave)
}

// Key is a tonal centre parsed from strings like "C major" or "F# minor".
type Key struct {
	Tonic  string
	Minor  bool
	Fifths int
}

var majorFifths = map[string]int{
	"Cb": -7, "Gb": -6, "Db": -5, "Ab": -4, "Eb": -3, "Bb": -2, "F": -1,
	"C": 0, "G": 1, "D": 2, "A": 3, "E": 4, "B": 5, "F#": 6, "C#": 7,
}

var minorFifths = map[string]int{
	"Ab": -7, "Eb": -6, "Bb": -5, "F": -4, "C": -3, "G": -2, "D": -1,
	"A": 0, "E": 1, "B": 2, "F#": 3, "C#": 4, "G#": 5, "D#": 6, "A#": 7,
}

// ParseKey parses a key description. Unknown tonics fall back to C major so
// exports never fail on a creative key name.
func ParseKey(s string) Key {
	fields := strings.Fields(NormalizePitch(s))
	if len(fields) == 0 {
		return Key{Tonic: "C"}
	}
	tonic := fields[0]
	if len(tonic) > 0 {
		tonic = strings.ToUpper(tonic[:1]) + strings.ReplaceAll(tonic[1:], "-", "b")
	}
	minor := len(fields) > 1 && strings.EqualFold(fields[1], "minor")

	table := majorFifths
	if minor {
		table = minorFifths
	}
	fifths, ok := table[tonic]
	if !ok {
		return Key{Tonic: "C"}
	}
	return Key{Tonic: tonic, Minor: minor, Fifths: fifths}
}
