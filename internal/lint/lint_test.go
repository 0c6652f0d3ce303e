package lint

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yates-Labs/partimento/internal/score"
)

func realization(s, a, t, b []score.Measure) score.Realization {
	return score.Realization{Soprano: s, Alto: a, Tenor: t, Bass: b}
}

func TestLint(t *testing.T) {
	tests := []struct {
		name string
		r    score.Realization
		want []string
	}{
		{
			name: "clean cadence",
			r: realization(
				[]score.Measure{{"E5"}, {"D5"}},
				[]score.Measure{{"C4"}, {"B3"}},
				[]score.Measure{{"G3"}, {"F3"}},
				[]score.Measure{{"C3"}, {"G2"}},
			),
			want: []string{},
		},
		{
			name: "parallel fifths",
			r: realization(
				[]score.Measure{{"G4"}, {"A4"}},
				[]score.Measure{{"E4"}, {"F4"}},
				[]score.Measure{{"C4"}, {"D4"}},
				[]score.Measure{{"C3"}, {"D3"}},
			),
			want: []string{"S/B m1 parallel P5"},
		},
		{
			name: "parallel octaves",
			r: realization(
				[]score.Measure{{"C5"}, {"D5"}},
				[]score.Measure{{"E4"}, {"F4"}},
				[]score.Measure{{"G3"}, {"A3"}},
				[]score.Measure{{"C3"}, {"D3"}},
			),
			want: []string{"S/B m1 parallel P8"},
		},
		{
			name: "fifths in contrary motion are fine",
			r: realization(
				[]score.Measure{{"G4"}, {"D5"}},
				[]score.Measure{{"E4"}, {"D4"}},
				[]score.Measure{{"C4"}, {"B3"}},
				[]score.Measure{{"C3"}, {"G2"}},
			),
			want: []string{},
		},
		{
			name: "fifths separated by another interval",
			r: realization(
				[]score.Measure{{"G4", "F4"}, {"A4"}},
				[]score.Measure{{"E4"}, {"F4"}},
				[]score.Measure{{"C4"}, {"D4"}},
				[]score.Measure{{"C3"}, {"D3"}},
			),
			want: []string{},
		},
		{
			name: "parallel across a held bass",
			r: realization(
				[]score.Measure{{"E5"}, {"G4", "A4"}},
				[]score.Measure{{"C4"}, {"E4"}},
				[]score.Measure{{"G3"}, {"C4"}},
				[]score.Measure{{"C3"}, {"C3", "D3"}},
			),
			want: []string{"S/B m2 parallel P5"},
		},
		{
			name: "out of range",
			r: realization(
				[]score.Measure{{"E5"}, {"A3"}},
				[]score.Measure{{"C4"}, {"B3"}},
				[]score.Measure{{"G3"}, {"F3"}},
				[]score.Measure{{"C3"}, {"C2"}},
			),
			want: []string{"S m2 out of range", "B m2 out of range"},
		},
		{
			name: "unreadable pitch",
			r: realization(
				[]score.Measure{{"E5"}, {"H5"}},
				[]score.Measure{{"C4"}, {"B3"}},
				[]score.Measure{{"G3"}, {"F3"}},
				[]score.Measure{{"C3"}, {"G2"}},
			),
			want: []string{"S m2 unreadable pitch"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := New().Lint(tt.r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, report.Issues)
			assert.Equal(t, len(tt.want) == 0, report.Clean())
			if report.Clean() {
				assert.Equal(t, []string{"No obvious voice-leading violations"}, report.Strengths)
			}
		})
	}
}

func TestLint_StructuralErrors(t *testing.T) {
	missingAlto := score.Realization{
		Soprano: []score.Measure{{"E5"}},
		Tenor:   []score.Measure{{"G3"}},
		Bass:    []score.Measure{{"C3"}},
	}
	_, err := New().Lint(missingAlto)
	assert.True(t, errors.Is(err, score.ErrInvalidRealization))

	ragged := realization(
		[]score.Measure{{"E5"}, {"D5"}},
		[]score.Measure{{"C4"}},
		[]score.Measure{{"G3"}, {"F3"}},
		[]score.Measure{{"C3"}, {"G2"}},
	)
	_, err = New().Lint(ragged)
	assert.True(t, errors.Is(err, score.ErrInvalidRealization))
}

func TestLint_CustomRanges(t *testing.T) {
	l := &Linter{Ranges: map[string]Range{score.VoiceSoprano: {Low: 75, High: 84}}}
	r := realization(
		[]score.Measure{{"E5"}, {"D5"}},
		[]score.Measure{{"C4"}, {"B3"}},
		[]score.Measure{{"G3"}, {"F3"}},
		[]score.Measure{{"C3"}, {"G2"}},
	)

	report, err := l.Lint(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"S m2 out of range"}, report.Issues)
}
