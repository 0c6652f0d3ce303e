// Package score defines the structured music data exchanged between the
// generation, review and export steps of a chain: partimenti, four-voice
// realizations, reviews and the sparse measure patches reviews suggest.
package score

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRealization = errors.New("invalid realization")
	ErrInvalidPartimento  = errors.New("invalid partimento")
)

// Voice names of a four-part realization, top to bottom.
const (
	VoiceSoprano = "soprano"
	VoiceAlto    = "alto"
	VoiceTenor   = "tenor"
	VoiceBass    = "bass"
)

// Partimento part names addressable by a patch.
const (
	PartBassline = "bassline"
	PartFigures  = "figures"
)

// VoiceOrder lists the realization voices in score order.
var VoiceOrder = []string{VoiceSoprano, VoiceAlto, VoiceTenor, VoiceBass}

// Measure is an ordered sequence of pitch strings such as "C2" or "F#3".
type Measure []string

// FigureSet holds the figured-bass symbols for a single bass note, e.g. ["6", "4"].
type FigureSet []string

// Partimento is a bass line with optional figures, the starting skeleton of a chain.
type Partimento struct {
	Title       string        `json:"title"`
	Key         string        `json:"key"`
	Bassline    []Measure     `json:"bassline"`
	Figures     [][]FigureSet `json:"figures"`
	Cadences    []string      `json:"cadences"`
	Style       string        `json:"style"`
	Modulations []string      `json:"modulations"`
}

// Validate checks the structural invariants a partimento must satisfy before
// it is realized or exported.
func (p Partimento) Validate() error {
	if len(p.Bassline) == 0 {
		return fmt.Errorf("%w: bassline is empty", ErrInvalidPartimento)
	}
	if len(p.Figures) > len(p.Bassline) {
		return fmt.Errorf("%w: %d figure measures for %d bass measures",
			ErrInvalidPartimento, len(p.Figures), len(p.Bassline))
	}
	for i, figs := range p.Figures {
		// Figures may be sparse, but never longer than the measure they annotate.
		if len(figs) > len(p.Bassline[i]) {
			return fmt.Errorf("%w: measure %d has %d figure sets for %d notes",
				ErrInvalidPartimento, i, len(figs), len(p.Bassline[i]))
		}
	}
	return nil
}

// FiguresAt returns the figure set for note j of measure i, or nil when the
// figures are sparse at that position.
func (p Partimento) FiguresAt(i, j int) FigureSet {
	if i >= len(p.Figures) || j >= len(p.Figures[i]) {
		return nil
	}
	return p.Figures[i][j]
}

// Realization is a four-voice expansion of a partimento.
type Realization struct {
	Title   string    `json:"title,omitempty"`
	Key     string    `json:"key,omitempty"`
	Soprano []Measure `json:"soprano"`
	Alto    []Measure `json:"alto"`
	Tenor   []Measure `json:"tenor"`
	Bass    []Measure `json:"bass"`
}

// Voice returns the measures of the named voice.
func (r Realization) Voice(name string) []Measure {
	switch name {
	case VoiceSoprano:
		return r.Soprano
	case VoiceAlto:
		return r.Alto
	case VoiceTenor:
		return r.Tenor
	case VoiceBass:
		return r.Bass
	}
	return nil
}

// Validate checks that every voice is present and has exactly measures measures.
func (r Realization) Validate(measures int) error {
	var problems []string
	for _, name := range VoiceOrder {
		v := r.Voice(name)
		if v == nil {
			problems = append(problems, name+" is missing")
			continue
		}
		if len(v) != measures {
			problems = append(problems, fmt.Sprintf("%s has %d measures, want %d", name, len(v), measures))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRealization, strings.Join(problems, "; "))
	}
	return nil
}

// EqualMeasures reports whether two measure sequences hold the same pitches
// with the same measure grouping.
func EqualMeasures(a, b []Measure) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

// CloneMeasures returns a deep copy of ms.
func CloneMeasures(ms []Measure) []Measure {
	if ms == nil {
		return nil
	}
	out := make([]Measure, len(ms))
	for i, m := range ms {
		out[i] = append(Measure{}, m...)
	}
	return out
}

// Remark is a single strength or issue from a review. Models return either
// plain strings or small objects such as {"aspect": ..., "description": ...};
// both are flattened to text.
type Remark string

func (r *Remark) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = Remark(s)
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("remark must be a string or object: %w", err)
	}

	aspect, _ := obj["aspect"].(string)
	for _, key := range []string{"description", "note", "text", "message"} {
		if text, ok := obj[key].(string); ok && text != "" {
			if aspect != "" {
				*r = Remark(aspect + ": " + text)
			} else {
				*r = Remark(text)
			}
			return nil
		}
	}

	compact, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	*r = Remark(compact)
	return nil
}

// Review is the outcome of one review pass over a partimento or realization.
type Review struct {
	Message        string   `json:"message"`
	Strengths      []Remark `json:"strengths"`
	Issues         []Remark `json:"issues"`
	SuggestedPatch Patch    `json:"suggested_patch,omitempty"`
}

// HasPatch reports whether the review asks for any edit.
func (r Review) HasPatch() bool {
	return !r.SuggestedPatch.Empty()
}
