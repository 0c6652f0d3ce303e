package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yates-Labs/partimento/internal/chain"
	"github.com/Yates-Labs/partimento/internal/score"
)

func partimentoLoop(t *testing.T, fc *fakeComposer, budget int) (string, LoopResult, error) {
	t.Helper()
	dir := t.TempDir()
	input := seed(t, dir, "partimento", fourBars())
	store, err := chain.NewStore(dir)
	require.NoError(t, err)
	res, err := RunReviewLoop(context.Background(), store, input, fc.ReviewPartimento, LoopConfig{
		Kind:          KindPartimento,
		VersionBase:   "partimento",
		MaxIterations: budget,
		Prompt:        "C major, four bars",
	})
	return dir, res, err
}

func TestRunReviewLoop_StopsWithoutPatch(t *testing.T) {
	fc := newFakeComposer()
	dir, res, err := partimentoLoop(t, fc, 3)
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 1, fc.partCalls)
	assert.Equal(t, 1, res.Iterations)
	assert.Empty(t, res.ArtifactVersions)
	assert.False(t, res.Patched)
	assert.Equal(t, filepath.Join(dir, "partimento_01.json"), res.FinalPath)
	assert.ElementsMatch(t, []string{"partimento_01.json", "review_partimento_01.json"}, jsonFiles(t, dir))

	art, err := chain.ReadArtifact(res.ReviewVersions[0])
	require.NoError(t, err)
	assert.Equal(t, "review-partimento-pass-1", art.Mode)
	assert.Equal(t, "partimento_01.json", art.Source)
}

func TestRunReviewLoop_BudgetExhausted(t *testing.T) {
	fc := newFakeComposer()
	for _, bar := range []string{"G2", "E2", "D2"} {
		fc.partReviews = append(fc.partReviews, patchReview(t, `{"bassline":{"2":["`+bar+`"]}}`))
	}
	dir, res, err := partimentoLoop(t, fc, 3)
	require.NoError(t, err)

	assert.Equal(t, StateBudgetSpent, res.State)
	assert.Equal(t, 3, fc.partCalls)
	assert.Equal(t, 3, res.Applied)
	assert.True(t, res.Patched)
	assert.Len(t, res.ArtifactVersions, 3)
	assert.Len(t, res.ReviewVersions, 3)
	assert.Equal(t, filepath.Join(dir, "partimento_04.json"), res.FinalPath)

	// Every pass reviews the version the previous pass wrote.
	assert.Equal(t, []string{"partimento_01.json", "partimento_02.json", "partimento_03.json"}, fc.reviewed)

	final := readPartimento(t, res.FinalPath)
	assert.Equal(t, score.Measure{"D2"}, final.Bassline[2])
	assert.Equal(t, fourBars().Figures, final.Figures)

	art, err := chain.ReadArtifact(res.FinalPath)
	require.NoError(t, err)
	assert.Equal(t, "patched-partimento", art.Mode)
	assert.Equal(t, "partimento_03.json", art.Source)
	assert.Equal(t, "C major, four bars", art.Prompt)
}

func TestRunReviewLoop_ZeroBudget(t *testing.T) {
	fc := newFakeComposer()
	dir, res, err := partimentoLoop(t, fc, 0)
	require.NoError(t, err)

	assert.Equal(t, StateBudgetSpent, res.State)
	assert.Zero(t, fc.partCalls)
	assert.Equal(t, filepath.Join(dir, "partimento_01.json"), res.FinalPath)
}

func TestRunReviewLoop_DroppedEditsStillWriteVersion(t *testing.T) {
	fc := newFakeComposer()
	fc.partReviews = []score.Review{patchReview(t, `{"bassline":{"9":["C2"]},"melody":{"0":["C5"]}}`)}
	dir, res, err := partimentoLoop(t, fc, 2)
	require.NoError(t, err)

	assert.False(t, res.Patched)
	assert.Equal(t, 1, res.Applied)
	assert.Len(t, res.Dropped, 2)
	assert.Equal(t, filepath.Join(dir, "partimento_02.json"), res.FinalPath)
	assert.Equal(t, fourBars().Bassline, readPartimento(t, res.FinalPath).Bassline)
	assert.Equal(t, StateDone, res.State, "second review suggests nothing")
}

func TestRunReviewLoop_NonObjectPatchEntryIsDropped(t *testing.T) {
	fc := newFakeComposer()
	fc.partReviews = []score.Review{patchReview(t, `[{"bassline":{"3":["C2"]}},"oops"]`)}
	_, res, err := partimentoLoop(t, fc, 1)
	require.NoError(t, err)

	assert.True(t, res.Patched)
	assert.Equal(t, []score.DroppedEdit{{Part: "[1]", Reason: score.DropNotObject}}, res.Dropped)
	assert.Equal(t, score.Measure{"C2"}, readPartimento(t, res.FinalPath).Bassline[3])
}

func TestRunReviewLoop_LockedBass(t *testing.T) {
	dir := t.TempDir()
	r := upperVoices()
	r.Bass = fourBars().Bassline
	input := seed(t, dir, "realized", r)
	store, err := chain.NewStore(dir)
	require.NoError(t, err)

	fc := newFakeComposer()
	fc.realReviews = []score.Review{patchReview(t, `{"bass":{"0":["D3"]},"soprano":{"2":["B4"]}}`)}
	var exported []string
	res, err := RunReviewLoop(context.Background(), store, input,
		func(ctx context.Context, path string) (score.Review, error) {
			return fc.ReviewRealization(ctx, path, nil)
		},
		LoopConfig{
			Kind:          KindRealization,
			VersionBase:   "realized",
			MaxIterations: 1,
			LockedParts:   []string{score.VoiceBass},
			OnVersion: func(ctx context.Context, path string) error {
				exported = append(exported, filepath.Base(path))
				return nil
			},
		})
	require.NoError(t, err)

	assert.True(t, res.Patched)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, score.DroppedEdit{Part: "bass", Reason: score.DropLockedPart}, res.Dropped[0])

	final := readRealization(t, res.FinalPath)
	assert.Equal(t, fourBars().Bassline, final.Bass)
	assert.Equal(t, score.Measure{"B4"}, final.Soprano[2])
	assert.Equal(t, []string{"realized_02.json"}, exported)

	art, err := chain.ReadArtifact(res.FinalPath)
	require.NoError(t, err)
	assert.Equal(t, "realize-partimento-pass-1", art.Mode)
	assert.Len(t, jsonFiles(t, dir), 3)
	assert.FileExists(t, filepath.Join(dir, "review_realization_01.json"))
}

func TestRunReviewLoop_ReviewFailureAborts(t *testing.T) {
	fc := newFakeComposer()
	fc.partReviews = []score.Review{patchReview(t, `{"bassline":{"3":["C2"]}}`)}
	fc.reviewErr = errors.New("model unavailable")
	fc.reviewErrAt = 2

	dir, res, err := partimentoLoop(t, fc, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, fc.reviewErr)
	assert.Equal(t, StateReviewing, res.State)
	assert.Equal(t, filepath.Join(dir, "partimento_02.json"), res.FinalPath)
	assert.ElementsMatch(t, []string{"partimento_01.json", "partimento_02.json", "review_partimento_01.json"}, jsonFiles(t, dir))
}

func TestRunReviewLoop_OnVersionErrorAborts(t *testing.T) {
	dir := t.TempDir()
	input := seed(t, dir, "partimento", fourBars())
	store, err := chain.NewStore(dir)
	require.NoError(t, err)
	fc := newFakeComposer()
	fc.partReviews = []score.Review{patchReview(t, `{"bassline":{"3":["C2"]}}`)}

	boom := errors.New("disk full")
	_, err = RunReviewLoop(context.Background(), store, input, fc.ReviewPartimento, LoopConfig{
		Kind:          KindPartimento,
		MaxIterations: 2,
		OnVersion:     func(context.Context, string) error { return boom },
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, fc.partCalls)
}

func TestRunReviewLoop_Cancelled(t *testing.T) {
	dir := t.TempDir()
	input := seed(t, dir, "partimento", fourBars())
	store, err := chain.NewStore(dir)
	require.NoError(t, err)
	fc := newFakeComposer()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = RunReviewLoop(ctx, store, input, fc.ReviewPartimento, LoopConfig{Kind: KindPartimento, MaxIterations: 2})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, fc.partCalls)
}
