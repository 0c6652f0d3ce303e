package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Yates-Labs/partimento/internal/chain"
	"github.com/Yates-Labs/partimento/internal/lint"
	"github.com/Yates-Labs/partimento/internal/notation"
	"github.com/Yates-Labs/partimento/internal/score"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fourBars() score.Partimento {
	return score.Partimento{
		Title:    "Partimento in C",
		Key:      "C major",
		Bassline: []score.Measure{{"C3"}, {"F2", "G2"}, {"G2"}, {"C3"}},
		Figures:  [][]score.FigureSet{{{}}, {{"6"}, {}}, {{"7"}}, {{}}},
		Style:    "J. S. Bach",
	}
}

func upperVoices() score.Realization {
	return score.Realization{
		Soprano: []score.Measure{{"E5"}, {"A4", "B4"}, {"D5"}, {"C5"}},
		Alto:    []score.Measure{{"G4"}, {"F4", "D4"}, {"B3"}, {"E4"}},
		Tenor:   []score.Measure{{"C4"}, {"C4", "B3"}, {"F3"}, {"G3"}},
	}
}

// fakeComposer replays scripted reviews; once a script runs out every review
// suggests nothing.
type fakeComposer struct {
	mu sync.Mutex

	partimento    score.Partimento
	generateErr   error
	driftBass     bool
	partReviews   []score.Review
	realReviews   []score.Review
	reviewErrAt   int
	reviewErr     error
	generateCalls int
	realizeCalls  int
	partCalls     int
	realCalls     int
	reviewed      []string
	lintSeen      [][]string
}

func newFakeComposer() *fakeComposer {
	return &fakeComposer{partimento: fourBars()}
}

func (f *fakeComposer) GeneratePartimento(ctx context.Context, request string) (score.Partimento, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateCalls++
	if f.generateErr != nil {
		return score.Partimento{}, f.generateErr
	}
	return f.partimento, nil
}

func (f *fakeComposer) Realize(ctx context.Context, p score.Partimento) (score.Realization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.realizeCalls++
	r := upperVoices()
	r.Title = p.Title
	r.Bass = score.CloneMeasures(p.Bassline)
	if f.driftBass {
		r.Bass[0] = score.Measure{"D3"}
	}
	return r, nil
}

func (f *fakeComposer) ReviewPartimento(ctx context.Context, path string) (score.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partCalls++
	f.reviewed = append(f.reviewed, filepath.Base(path))
	if f.reviewErr != nil && f.partCalls == f.reviewErrAt {
		return score.Review{}, f.reviewErr
	}
	return next(&f.partReviews), nil
}

func (f *fakeComposer) ReviewRealization(ctx context.Context, path string, lintIssues []string) (score.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.realCalls++
	f.reviewed = append(f.reviewed, filepath.Base(path))
	f.lintSeen = append(f.lintSeen, lintIssues)
	return next(&f.realReviews), nil
}

func next(script *[]score.Review) score.Review {
	if len(*script) == 0 {
		return score.Review{Message: "Looks good."}
	}
	rev := (*script)[0]
	*script = (*script)[1:]
	return rev
}

type fakeLinter struct {
	issues []string
	calls  int
}

func (l *fakeLinter) Lint(r score.Realization) (lint.Report, error) {
	l.calls++
	return lint.Report{Issues: l.issues, Strengths: []string{}}, nil
}

// fakeAudio writes a placeholder file when configured to succeed.
type fakeAudio struct {
	status notation.AudioStatus
	calls  []string
}

func (a *fakeAudio) Convert(ctx context.Context, midiPath, outPath string) notation.AudioResult {
	a.calls = append(a.calls, filepath.Base(outPath))
	res := notation.AudioResult{Status: a.status, Path: outPath, Tool: "fake"}
	switch a.status {
	case notation.AudioSucceeded:
		if err := os.WriteFile(outPath, []byte("OggS"), 0o644); err != nil {
			res.Status, res.Err = notation.AudioFailed, err
		}
	case notation.AudioFailed:
		res.Err = errors.New("synth crashed")
	}
	return res
}

type testRig struct {
	orch     *Orchestrator
	composer *fakeComposer
	linter   *fakeLinter
	audio    *fakeAudio
	root     string
	logs     *bytes.Buffer
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	rig := &testRig{
		composer: newFakeComposer(),
		linter:   &fakeLinter{},
		audio:    &fakeAudio{status: notation.AudioToolMissing},
		root:     t.TempDir(),
		logs:     &bytes.Buffer{},
	}
	resolver := chain.NewResolver(rig.root)
	resolver.Now = func() time.Time { return testNow }
	logger := slog.New(slog.NewTextHandler(rig.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rig.orch = New(rig.composer,
		WithLinter(rig.linter),
		WithAudio(rig.audio),
		WithResolver(resolver),
		WithStoreOptions(chain.WithClock(func() time.Time { return testNow })),
		WithLogger(logger),
	)
	return rig
}

func patchOf(t *testing.T, s string) score.Patch {
	t.Helper()
	var p score.Patch
	require.NoError(t, json.Unmarshal([]byte(s), &p))
	return p
}

func patchReview(t *testing.T, s string) score.Review {
	t.Helper()
	return score.Review{
		Message:        "One fix.",
		Issues:         []score.Remark{"weak cadence"},
		SuggestedPatch: patchOf(t, s),
	}
}

func readPartimento(t *testing.T, path string) score.Partimento {
	t.Helper()
	art, err := chain.ReadArtifact(path)
	require.NoError(t, err)
	var p score.Partimento
	require.NoError(t, art.Decode(&p))
	return p
}

func readRealization(t *testing.T, path string) score.Realization {
	t.Helper()
	art, err := chain.ReadArtifact(path)
	require.NoError(t, err)
	var r score.Realization
	require.NoError(t, art.Decode(&r))
	return r
}

func jsonFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	return names
}

// seed writes v into dir as the first version of base.
func seed(t *testing.T, dir, base string, v any) string {
	t.Helper()
	store, err := chain.NewStore(dir)
	require.NoError(t, err)
	path, _, err := store.Append(base, v, "seed", "", "C major, four bars")
	require.NoError(t, err)
	return path
}
