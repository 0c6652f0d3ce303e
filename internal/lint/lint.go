// Package lint runs deterministic voice-leading checks over a four-part
// realization. It is the cheap local gate in front of the realization review.
package lint

import (
	"fmt"
	"sort"

	"github.com/Yates-Labs/partimento/internal/score"
)

// measureTicks is the length of every measure on the shared onset grid.
const measureTicks = 3360

// Range is an inclusive MIDI key range.
type Range struct {
	Low  int
	High int
}

func (r Range) contains(key int) bool {
	return key >= r.Low && key <= r.High
}

// DefaultRanges are the customary Baroque SATB ranges.
func DefaultRanges() map[string]Range {
	return map[string]Range{
		score.VoiceSoprano: {Low: 60, High: 81}, // C4-A5
		score.VoiceAlto:    {Low: 55, High: 74}, // G3-D5
		score.VoiceTenor:   {Low: 48, High: 67}, // C3-G4
		score.VoiceBass:    {Low: 40, High: 60}, // E2-C4
	}
}

// Report is the linter's verdict.
type Report struct {
	Issues    []string `json:"issues"`
	Strengths []string `json:"strengths"`
}

// Clean reports whether no issue was found.
func (r Report) Clean() bool {
	return len(r.Issues) == 0
}

// Linter checks voice ranges and parallel perfect intervals between the
// outer voices.
type Linter struct {
	Ranges map[string]Range
}

// New returns a linter using DefaultRanges.
func New() *Linter {
	return &Linter{Ranges: DefaultRanges()}
}

// Lint checks r. Structural problems (missing voices, mismatched measure
// counts) are errors; musical problems are issues in the report.
func (l *Linter) Lint(r score.Realization) (Report, error) {
	if err := r.Validate(len(r.Bass)); err != nil {
		return Report{}, err
	}

	ranges := l.Ranges
	if ranges == nil {
		ranges = DefaultRanges()
	}

	issues := []string{}
	for _, name := range score.VoiceOrder {
		issues = append(issues, rangeIssues(name, r.Voice(name), ranges[name])...)
	}
	issues = append(issues, parallelIssues(r.Soprano, r.Bass)...)

	report := Report{Issues: issues, Strengths: []string{}}
	if report.Clean() {
		report.Strengths = append(report.Strengths, "No obvious voice-leading violations")
	}
	return report, nil
}

func voiceLabel(name string) string {
	switch name {
	case score.VoiceSoprano:
		return "S"
	case score.VoiceAlto:
		return "A"
	case score.VoiceTenor:
		return "T"
	case score.VoiceBass:
		return "B"
	}
	return name
}

func rangeIssues(name string, measures []score.Measure, rng Range) []string {
	var out []string
	label := voiceLabel(name)
	for i, m := range measures {
		outOfRange, unreadable := false, false
		for _, note := range m {
			p, err := score.ParsePitch(note)
			if err != nil {
				unreadable = true
				continue
			}
			if rng != (Range{}) && !rng.contains(p.MIDI()) {
				outOfRange = true
			}
		}
		if outOfRange {
			out = append(out, fmt.Sprintf("%s m%d out of range", label, i+1))
		}
		if unreadable {
			out = append(out, fmt.Sprintf("%s m%d unreadable pitch", label, i+1))
		}
	}
	return out
}

// event is a note onset on the shared grid.
type event struct {
	tick    int
	key     int
	measure int
}

// onsets places every readable note of a voice on a grid where each measure
// lasts measureTicks and its notes share it equally.
func onsets(measures []score.Measure) []event {
	var out []event
	for i, m := range measures {
		n := len(m)
		for j, note := range m {
			p, err := score.ParsePitch(note)
			if err != nil {
				continue
			}
			out = append(out, event{
				tick:    i*measureTicks + j*measureTicks/n,
				key:     p.MIDI(),
				measure: i + 1,
			})
		}
	}
	return out
}

// vertical is the soprano and bass pitch sounding from a given tick.
type vertical struct {
	soprano event
	bass    event
}

// verticals returns the soprano/bass pairs at every tick where either voice
// has an onset, once both voices have sounded.
func verticals(soprano, bass []event) []vertical {
	ticks := map[int]bool{}
	for _, e := range soprano {
		ticks[e.tick] = true
	}
	for _, e := range bass {
		ticks[e.tick] = true
	}
	ordered := make([]int, 0, len(ticks))
	for t := range ticks {
		ordered = append(ordered, t)
	}
	sort.Ints(ordered)

	var out []vertical
	si, bi := -1, -1
	for _, t := range ordered {
		for si+1 < len(soprano) && soprano[si+1].tick <= t {
			si++
		}
		for bi+1 < len(bass) && bass[bi+1].tick <= t {
			bi++
		}
		if si < 0 || bi < 0 {
			continue
		}
		out = append(out, vertical{soprano: soprano[si], bass: bass[bi]})
	}
	return out
}

func perfectName(semitones int) string {
	switch ((semitones % 12) + 12) % 12 {
	case 7:
		return "P5"
	case 0:
		return "P8"
	}
	return ""
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

// parallelIssues finds consecutive soprano/bass verticals forming the same
// perfect interval with both voices moving in the same direction.
func parallelIssues(soprano, bass []score.Measure) []string {
	vs := verticals(onsets(soprano), onsets(bass))
	var out []string
	for i := 1; i < len(vs); i++ {
		prev, cur := vs[i-1], vs[i]
		name := perfectName(prev.soprano.key - prev.bass.key)
		if name == "" || name != perfectName(cur.soprano.key-cur.bass.key) {
			continue
		}
		sMove := sign(cur.soprano.key - prev.soprano.key)
		bMove := sign(cur.bass.key - prev.bass.key)
		if sMove == 0 || sMove != bMove {
			continue
		}
		measure := prev.soprano.measure
		if prev.bass.measure > measure {
			measure = prev.bass.measure
		}
		out = append(out, fmt.Sprintf("S/B m%d parallel %s", measure, name))
	}
	return out
}
