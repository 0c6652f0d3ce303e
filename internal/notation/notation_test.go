package notation

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/Yates-Labs/partimento/internal/chain"
	"github.com/Yates-Labs/partimento/internal/score"
)

func writeArtifact(t *testing.T, dir, name string, payload any) string {
	t.Helper()
	store, err := chain.NewStore(dir)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	_, err = store.WriteArtifact(path, payload, "test", "", "")
	require.NoError(t, err)
	return path
}

func testPartimento() score.Partimento {
	return score.Partimento{
		Title:    "Partimento in D",
		Key:      "D major",
		Bassline: []score.Measure{{"D3"}, {"G2", "A2"}, {"F#2", "G2", "A2"}, {"D2"}},
		Figures:  [][]score.FigureSet{{{}}, {{"6"}, {"7"}}, {{"6"}, {}, {"5", "3"}}},
	}
}

func testRealization() score.Realization {
	return score.Realization{
		Title:   "Realized in A minor",
		Key:     "A minor",
		Soprano: []score.Measure{{"E5"}, {"D5", "C5"}},
		Alto:    []score.Measure{{"C5"}, {"B4", "A4"}},
		Tenor:   []score.Measure{{"A3"}, {"G#3"}},
		Bass:    []score.Measure{{"A2"}, {"E2"}},
	}
}

func TestDurations(t *testing.T) {
	for n := 1; n <= 9; n++ {
		ds := durations(n)
		require.Len(t, ds, n)
		sum := 0
		for _, d := range ds {
			sum += d
		}
		assert.Equal(t, measureDivisions, sum, "n=%d", n)
	}
	assert.Equal(t, []int{1120, 1120, 1120}, durations(3))
	assert.Equal(t, []int{480, 480, 480, 480, 480, 480, 480}, durations(7))
	assert.Nil(t, durations(0))
}

func TestPartimentoToMusicXML(t *testing.T) {
	dir := t.TempDir()
	in := writeArtifact(t, dir, "partimento_01.json", testPartimento())
	out := filepath.Join(dir, "partimento.musicxml")

	require.NoError(t, NewExporter(nil).PartimentoToMusicXML(in, out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	text := string(raw)
	assert.True(t, strings.HasPrefix(text, "<?xml"))
	assert.Contains(t, text, "<!DOCTYPE score-partwise")
	assert.Contains(t, text, "<sign>F</sign>")
	assert.Contains(t, text, "<text>5 3</text>")
	assert.Contains(t, text, "<alter>1</alter>")

	summary, err := Inspect(out)
	require.NoError(t, err)
	assert.Equal(t, "Partimento in D", summary.Title)
	assert.Equal(t, 1, summary.Parts)
	assert.Equal(t, 4, summary.Measures)
	require.NotNil(t, summary.KeyFifths)
	assert.Equal(t, 2, *summary.KeyFifths)
	assert.Equal(t, "4/4", summary.Time)
	assert.Equal(t, []string{"Bass"}, summary.PartNames)
	assert.Empty(t, summary.Warnings)
}

func TestRealizationToMusicXML(t *testing.T) {
	dir := t.TempDir()
	in := writeArtifact(t, dir, "realized_01.json", testRealization())
	out := filepath.Join(dir, "realized.musicxml")

	require.NoError(t, NewExporter(nil).RealizationToMusicXML(in, out))

	summary, err := Inspect(out)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Parts)
	assert.Equal(t, 2, summary.Measures)
	assert.Equal(t, []string{"Soprano", "Alto", "Tenor", "Bass"}, summary.PartNames)
	require.NotNil(t, summary.KeyFifths)
	assert.Equal(t, 0, *summary.KeyFifths)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<clef-octave-change>-1</clef-octave-change>")
	assert.Contains(t, string(raw), "<mode>minor</mode>")
}

func TestExport_SkipsUnreadableNotes(t *testing.T) {
	dir := t.TempDir()
	p := testPartimento()
	p.Bassline[0] = score.Measure{"X9"}
	in := writeArtifact(t, dir, "partimento_01.json", p)
	out := filepath.Join(dir, "partimento.musicxml")

	var logs bytes.Buffer
	exp := NewExporter(slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, exp.PartimentoToMusicXML(in, out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `<rest measure="yes">`)
	assert.Contains(t, logs.String(), "skipping unreadable note")
	assert.Contains(t, logs.String(), "pitch=X9")
}

func TestRealizationExport_MissingVoice(t *testing.T) {
	dir := t.TempDir()
	r := testRealization()
	r.Alto = nil
	in := writeArtifact(t, dir, "realized_01.json", r)

	exp := NewExporter(nil)
	err := exp.RealizationToMusicXML(in, filepath.Join(dir, "realized.musicxml"))
	assert.True(t, errors.Is(err, score.ErrInvalidRealization))

	err = exp.RealizationToMIDI(in, filepath.Join(dir, "realized.mid"))
	assert.True(t, errors.Is(err, score.ErrInvalidRealization))

	_, statErr := os.Stat(filepath.Join(dir, "realized.musicxml"))
	assert.True(t, os.IsNotExist(statErr))
}

func countNoteStarts(t *testing.T, path string) (tracks int, notes int) {
	t.Helper()
	s, err := smf.ReadFile(path)
	require.NoError(t, err)
	for _, tr := range s.Tracks {
		for _, ev := range tr {
			var ch, key, vel uint8
			if midi.Message(ev.Message).GetNoteStart(&ch, &key, &vel) {
				notes++
			}
		}
	}
	return len(s.Tracks), notes
}

func TestMIDIExport(t *testing.T) {
	dir := t.TempDir()

	pIn := writeArtifact(t, dir, "partimento_01.json", testPartimento())
	pOut := filepath.Join(dir, "partimento.mid")
	require.NoError(t, NewExporter(nil).PartimentoToMIDI(pIn, pOut))
	tracks, notes := countNoteStarts(t, pOut)
	assert.Equal(t, 2, tracks)
	assert.Equal(t, 7, notes)

	rIn := writeArtifact(t, dir, "realized_01.json", testRealization())
	rOut := filepath.Join(dir, "realized.mid")
	require.NoError(t, NewExporter(nil).RealizationToMIDI(rIn, rOut))
	tracks, notes = countNoteStarts(t, rOut)
	assert.Equal(t, 5, tracks)
	assert.Equal(t, 10, notes)
}

func TestTickLengths(t *testing.T) {
	assert.Equal(t, []uint32{1280, 1280, 1280}, tickLengths(3))
	assert.Equal(t, []uint32{3840}, tickLengths(1))
	seven := tickLengths(7)
	var sum uint32
	for _, l := range seven {
		sum += l
	}
	assert.Equal(t, uint32(measureTicks), sum)
}

func TestInspect_Warnings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.musicxml")
	require.NoError(t, os.WriteFile(path, []byte(`<?xml version="1.0"?><score-partwise version="4.0"><part-list/></score-partwise>`), 0o644))

	summary, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"no parts found", "no measures found"}, summary.Warnings)
	assert.Nil(t, summary.KeyFifths)
}

func TestInspect_Unsupported(t *testing.T) {
	_, err := Inspect("score.mxl")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	bad := filepath.Join(t.TempDir(), "bad.musicxml")
	require.NoError(t, os.WriteFile(bad, []byte("not xml <"), 0o644))
	_, err = Inspect(bad)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func fakeConverter(lookErr, runErr error, writeOutput bool) *AudioConverter {
	a := NewAudioConverter("")
	a.lookPath = func(name string) (string, error) {
		if lookErr != nil {
			return "", lookErr
		}
		return "/usr/bin/" + name, nil
	}
	a.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if runErr != nil {
			return []byte("cannot open soundfont"), runErr
		}
		if writeOutput {
			out := args[len(args)-1]
			if err := os.WriteFile(out, []byte("OggS"), 0o644); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	return a
}

func TestAudioConverter(t *testing.T) {
	dir := t.TempDir()
	midiPath := filepath.Join(dir, "realized.mid")
	require.NoError(t, os.WriteFile(midiPath, []byte("MThd"), 0o644))
	out := filepath.Join(dir, "realized.ogg")
	ctx := context.Background()

	t.Run("tool missing", func(t *testing.T) {
		res := fakeConverter(errors.New("not found"), nil, false).Convert(ctx, midiPath, out)
		assert.Equal(t, AudioToolMissing, res.Status)
		assert.NoError(t, res.Err)
	})

	t.Run("tool fails", func(t *testing.T) {
		res := fakeConverter(nil, errors.New("exit status 1"), false).Convert(ctx, midiPath, out)
		assert.Equal(t, AudioFailed, res.Status)
		require.Error(t, res.Err)
		assert.Contains(t, res.Err.Error(), "cannot open soundfont")
	})

	t.Run("no output written", func(t *testing.T) {
		res := fakeConverter(nil, nil, false).Convert(ctx, midiPath, filepath.Join(dir, "missing.ogg"))
		assert.Equal(t, AudioFailed, res.Status)
	})

	t.Run("missing input", func(t *testing.T) {
		res := fakeConverter(nil, nil, true).Convert(ctx, filepath.Join(dir, "nope.mid"), out)
		assert.Equal(t, AudioFailed, res.Status)
	})

	t.Run("succeeded", func(t *testing.T) {
		res := fakeConverter(nil, nil, true).Convert(ctx, midiPath, out)
		assert.Equal(t, AudioSucceeded, res.Status)
		assert.Equal(t, DefaultAudioTool, res.Tool)
		assert.FileExists(t, out)
	})
}
