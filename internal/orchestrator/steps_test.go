package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yates-Labs/partimento/internal/chain"
	"github.com/Yates-Labs/partimento/internal/notation"
	"github.com/Yates-Labs/partimento/internal/score"
)

func TestGeneratePartimento_Flat(t *testing.T) {
	rig := newRig(t)

	res, err := rig.orch.GeneratePartimento(context.Background(), "C major", "")
	require.NoError(t, err)

	stem := filepath.Join(rig.root, "json", "partimento_2025-03-01_120000")
	assert.Equal(t, stem+".json", res.Path)
	assert.FileExists(t, stem+".musicxml")
	assert.FileExists(t, stem+".mid")
	assert.Nil(t, res.Manifest)
	require.NotNil(t, res.Audio)
	assert.Equal(t, notation.AudioToolMissing, res.Audio.Status)

	art, err := chain.ReadArtifact(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "generate-partimento", art.Mode)
	assert.Equal(t, chain.NoSource, art.Source)
	assert.Equal(t, "C major", art.Prompt)
}

func TestGeneratePartimento_ChainDirectory(t *testing.T) {
	rig := newRig(t)
	rig.audio.status = notation.AudioSucceeded
	out := filepath.Join(rig.root, "mine")

	res, err := rig.orch.GeneratePartimento(context.Background(), "C major", out)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "partimento_01.json"), res.Path)
	require.NotNil(t, res.Manifest)
	m, err := chain.ReadManifest(out)
	require.NoError(t, err)
	assert.Equal(t, "generate-partimento", m.Mode)
	assert.Equal(t, []string{"partimento_01.json"}, m.FileNames("partimento"))
	assert.Equal(t, []string{"partimento.ogg"}, m.FileNames("ogg"))

	// A second run appends instead of overwriting.
	res, err = rig.orch.GeneratePartimento(context.Background(), "C major", out)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "partimento_02.json"), res.Path)
}

func TestGeneratePartimento_FileOutput(t *testing.T) {
	rig := newRig(t)
	out := filepath.Join(rig.root, "nested", "bach.json")

	res, err := rig.orch.GeneratePartimento(context.Background(), "C major", out)
	require.NoError(t, err)
	assert.Equal(t, out, res.Path)
	assert.FileExists(t, filepath.Join(rig.root, "nested", "bach.musicxml"))
}

func TestRealizePartimento_Chain(t *testing.T) {
	rig := newRig(t)
	input := seed(t, filepath.Join(rig.root, "elsewhere"), "partimento", fourBars())
	out := filepath.Join(rig.root, "run")

	res, err := rig.orch.RealizePartimento(context.Background(), input, out)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "realized_01.json"), res.Path)
	copied := readPartimento(t, filepath.Join(out, "partimento_01.json"))
	assert.Equal(t, fourBars().Bassline, copied.Bassline)
	assert.Equal(t, fourBars().Bassline, readRealization(t, res.Path).Bass)

	m, err := chain.ReadManifest(out)
	require.NoError(t, err)
	assert.Equal(t, "realize-partimento", m.Mode)
	assert.Equal(t, input, m.SourceFile)
	assert.Equal(t, "C major, four bars", m.Prompt)

	// The chain keeps its own partimento_01 on later runs.
	res, err = rig.orch.RealizePartimento(context.Background(), input, out)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "realized_02.json"), res.Path)
	assert.ElementsMatch(t, []string{"partimento_01.json", "realized_01.json", "realized_02.json", "metadata.json"}, jsonFiles(t, out))
}

func TestRealizePartimento_Flat(t *testing.T) {
	rig := newRig(t)
	input := seed(t, t.TempDir(), "partimento", fourBars())

	res, err := rig.orch.RealizePartimento(context.Background(), input, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(rig.root, "json", "realized_partimento_2025-03-01_120000.json"), res.Path)

	art, err := chain.ReadArtifact(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "realize-partimento", art.Mode)
	assert.Equal(t, input, art.Source)
}

func TestRealizePartimento_RejectsInvalidInput(t *testing.T) {
	rig := newRig(t)
	input := seed(t, t.TempDir(), "partimento", score.Partimento{Title: "empty"})

	_, err := rig.orch.RealizePartimento(context.Background(), input, "")
	assert.ErrorIs(t, err, score.ErrInvalidPartimento)
	assert.Zero(t, rig.composer.realizeCalls)
}

func TestReview_Partimento(t *testing.T) {
	rig := newRig(t)
	rig.composer.partReviews = []score.Review{patchReview(t, `{"bassline":{"3":["C2"]}}`)}
	input := seed(t, t.TempDir(), "partimento", fourBars())
	out := filepath.Join(rig.root, "run")

	res, err := rig.orch.Review(context.Background(), KindPartimento, input, out)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "review_partimento_01.json"), res.Path)
	require.NotNil(t, res.Review)
	assert.True(t, res.Review.HasPatch())
	m, err := chain.ReadManifest(out)
	require.NoError(t, err)
	assert.Equal(t, "review-partimento", m.Mode)
}

func TestReview_RealizationGetsLintIssues(t *testing.T) {
	rig := newRig(t)
	rig.linter.issues = []string{"Soprano out of range in measure 1: A5"}
	r := upperVoices()
	r.Bass = fourBars().Bassline
	input := seed(t, t.TempDir(), "realized", r)

	res, err := rig.orch.Review(context.Background(), KindRealization, input, "")
	require.NoError(t, err)

	assert.Equal(t, [][]string{rig.linter.issues}, rig.composer.lintSeen)
	assert.Equal(t, filepath.Join(rig.root, "review", "review_2025-03-01_120000.json"), res.Path)
	art, err := chain.ReadArtifact(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "review-score", art.Mode)
}

func TestReview_UnknownKind(t *testing.T) {
	rig := newRig(t)
	_, err := rig.orch.Review(context.Background(), "fugue", "x.json", "")
	assert.Error(t, err)
}

func TestRevise_NoPatch(t *testing.T) {
	rig := newRig(t)
	dir := t.TempDir()
	input := seed(t, dir, "partimento", fourBars())
	review := seed(t, dir, "review_partimento", score.Review{Message: "Fine as it is."})

	_, err := rig.orch.Revise(context.Background(), KindPartimento, input, review, "")
	assert.ErrorIs(t, err, ErrNoPatch)
}

func TestRevise_Partimento(t *testing.T) {
	rig := newRig(t)
	dir := t.TempDir()
	input := seed(t, dir, "partimento", fourBars())
	review := seed(t, dir, "review_partimento", patchReview(t, `{"bassline":{"3":["C2"]}}`))

	res, err := rig.orch.Revise(context.Background(), KindPartimento, input, review, dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "partimento_02.json"), res.Path)
	assert.Equal(t, 1, res.Patch.Applied)
	assert.Equal(t, score.Measure{"C2"}, readPartimento(t, res.Path).Bassline[3])

	art, err := chain.ReadArtifact(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "revise-partimento", art.Mode)
}

func TestRevise_RealizationKeepsBass(t *testing.T) {
	rig := newRig(t)
	dir := t.TempDir()
	r := upperVoices()
	r.Bass = fourBars().Bassline
	input := seed(t, dir, "realized", r)
	review := seed(t, dir, "review_realization", patchReview(t, `{"bass":{"0":["A2"]},"alto":{"0":["A4"]}}`))

	res, err := rig.orch.Revise(context.Background(), KindRealization, input, review, "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(rig.root, "json", "revised_realization_2025-03-01_120000.json"), res.Path)
	revised := readRealization(t, res.Path)
	assert.Equal(t, fourBars().Bassline, revised.Bass)
	assert.Equal(t, score.Measure{"A4"}, revised.Alto[0])
	assert.Len(t, res.Patch.Dropped, 1)
}

func TestExport_Realization(t *testing.T) {
	rig := newRig(t)
	dir := t.TempDir()
	r := upperVoices()
	r.Bass = fourBars().Bassline
	input := seed(t, dir, "realized", r)

	res, err := rig.orch.Export(context.Background(), KindRealization, input, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "realized_01.musicxml"), res.Output.XML)
	assert.FileExists(t, res.Output.XML)
	assert.FileExists(t, res.Output.MIDI)

	out := filepath.Join(dir, "exports")
	res, err = rig.orch.Export(context.Background(), KindRealization, input, out)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "realized.musicxml"))
	assert.Equal(t, []string{"realized_01.ogg", "realized.ogg"}, rig.audio.calls)
}

func TestExport_PartimentoToFile(t *testing.T) {
	rig := newRig(t)
	input := seed(t, t.TempDir(), "partimento", fourBars())
	out := filepath.Join(t.TempDir(), "bass.musicxml")

	res, err := rig.orch.Export(context.Background(), KindPartimento, input, out)
	require.NoError(t, err)
	assert.Equal(t, out, res.Output.XML)
	assert.FileExists(t, out)
	assert.FileExists(t, filepath.Join(filepath.Dir(out), "bass.mid"))
}

func TestExportAudio(t *testing.T) {
	rig := newRig(t)
	rig.audio.status = notation.AudioSucceeded
	dir := t.TempDir()
	midi := filepath.Join(dir, "realized.mid")
	require.NoError(t, os.WriteFile(midi, []byte("MThd"), 0o644))

	res, err := rig.orch.ExportAudio(context.Background(), midi, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "realized.ogg"), res.Path)

	res, err = rig.orch.ExportAudio(context.Background(), midi, filepath.Join(dir, "audio"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "audio", "realized.ogg"), res.Path)
	assert.FileExists(t, res.Path)

	_, err = rig.orch.ExportAudio(context.Background(), filepath.Join(dir, "missing.mid"), "")
	assert.Error(t, err)
}
