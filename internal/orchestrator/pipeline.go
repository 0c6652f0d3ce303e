package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Yates-Labs/partimento/internal/chain"
	"github.com/Yates-Labs/partimento/internal/lint"
	"github.com/Yates-Labs/partimento/internal/notation"
	"github.com/Yates-Labs/partimento/internal/score"
)

// Manifest modes of the two chain workflows.
const (
	ModeChainPartimentoOnly = "generate-and-review-partimento"
	ModeChainRealization    = "chain-partimento"
)

// ChainOptions are the inputs of a chain run.
type ChainOptions struct {
	Prompt string
	// Output is the chain directory. Empty means a fresh timestamped
	// directory under the resolver root.
	Output string
	// Iterations is the review budget of each review-revise loop.
	Iterations int
}

// ChainResult reports a finished (or aborted) chain run. On error the fields
// describe what was written before the failure.
type ChainResult struct {
	Dir         string
	Manifest    chain.Manifest
	Partimento  LoopResult
	Realization LoopResult
	// RealizationReviewed is false when the linter gate skipped the
	// realization review.
	RealizationReviewed bool
	Lint                lint.Report
	Audio               []notation.AudioResult
}

// ChainPartimentoOnly generates a partimento, runs the partimento
// review-revise loop, exports the final version and writes the manifest.
func (o *Orchestrator) ChainPartimentoOnly(ctx context.Context, opts ChainOptions) (ChainResult, error) {
	var res ChainResult
	store, first, err := o.startChain(ctx, opts, &res)
	if err != nil {
		return res, err
	}

	loop, err := o.reviewPartimento(ctx, store, first, opts)
	res.Partimento = loop
	if err != nil {
		return res, err
	}

	xmlPath := filepath.Join(res.Dir, "partimento.musicxml")
	midiPath := filepath.Join(res.Dir, "partimento.mid")
	oggPath := filepath.Join(res.Dir, "partimento.ogg")
	if err := o.exportPartimento(loop.FinalPath, xmlPath, midiPath); err != nil {
		return res, err
	}
	audio := o.convertAudio(ctx, midiPath, oggPath)
	res.Audio = append(res.Audio, audio)

	m := chain.NewManifest(ModeChainPartimentoOnly, opts.Prompt)
	m.SetFiles("partimento_versions", append([]string{first}, loop.ArtifactVersions...))
	m.SetFiles("review_versions", loop.ReviewVersions)
	m.SetFile("musicxml", xmlPath)
	m.SetFile("midi", midiPath)
	if audio.Status == notation.AudioSucceeded {
		m.SetFile("ogg", oggPath)
	}
	m.Patched = map[string]bool{"partimento": loop.Patched}

	if err := chain.WriteManifest(res.Dir, m); err != nil {
		return res, err
	}
	res.Manifest = m
	o.logger.Info("chain complete", "dir", res.Dir, "mode", m.Mode)
	return res, nil
}

// ChainRealization runs the full chain: generate, review-revise the
// partimento, realize the final partimento in four parts, lint, review-revise
// the realization only if the linter found issues, export and write the
// manifest.
func (o *Orchestrator) ChainRealization(ctx context.Context, opts ChainOptions) (ChainResult, error) {
	var res ChainResult
	store, first, err := o.startChain(ctx, opts, &res)
	if err != nil {
		return res, err
	}

	ploop, err := o.reviewPartimento(ctx, store, first, opts)
	res.Partimento = ploop
	if err != nil {
		return res, err
	}

	partMIDI := filepath.Join(res.Dir, "partimento.mid")
	partOGG := filepath.Join(res.Dir, "partimento.ogg")
	if err := o.exporter.PartimentoToMIDI(ploop.FinalPath, partMIDI); err != nil {
		return res, fmt.Errorf("export partimento: %w", err)
	}
	partAudio := o.convertAudio(ctx, partMIDI, partOGG)
	res.Audio = append(res.Audio, partAudio)

	p, err := loadPartimento(ploop.FinalPath)
	if err != nil {
		return res, err
	}
	r, err := o.realize(ctx, p)
	if err != nil {
		return res, err
	}
	realized, _, err := store.Append("realized", r, "realize-partimento", filepath.Base(ploop.FinalPath), opts.Prompt)
	if err != nil {
		return res, fmt.Errorf("save realization: %w", err)
	}

	report, err := o.linter.Lint(r)
	if err != nil {
		return res, fmt.Errorf("lint realization: %w", err)
	}
	res.Lint = report

	rloop := LoopResult{FinalPath: realized, State: StateDone}
	if report.Clean() {
		o.logger.Info("linter clean; skipping realization review")
	} else {
		o.logger.Warn("linter found issues", "count", len(report.Issues))
		res.RealizationReviewed = true
		review := func(ctx context.Context, path string) (score.Review, error) {
			return o.composer.ReviewRealization(ctx, path, report.Issues)
		}
		rloop, err = RunReviewLoop(ctx, store, realized, review, LoopConfig{
			Kind:          KindRealization,
			VersionBase:   "realized",
			MaxIterations: opts.Iterations,
			Prompt:        opts.Prompt,
			LockedParts:   []string{score.VoiceBass},
			OnVersion:     o.exportVersion,
			Logger:        o.logger,
		})
	}
	res.Realization = rloop
	if err != nil {
		return res, err
	}

	xmlPath := filepath.Join(res.Dir, "realized.musicxml")
	midiPath := filepath.Join(res.Dir, "realized.mid")
	oggPath := filepath.Join(res.Dir, "realized.ogg")
	if err := o.exportRealization(rloop.FinalPath, xmlPath, midiPath); err != nil {
		return res, err
	}
	audio := o.convertAudio(ctx, midiPath, oggPath)
	res.Audio = append(res.Audio, audio)

	m := chain.NewManifest(ModeChainRealization, opts.Prompt)
	m.SetFiles("partimento_versions", append([]string{first}, ploop.ArtifactVersions...))
	m.SetFiles("review_partimento_versions", ploop.ReviewVersions)
	m.SetFile("partimento_midi", partMIDI)
	if partAudio.Status == notation.AudioSucceeded {
		m.SetFile("partimento_ogg", partOGG)
	}
	m.SetFile("realized", realized)
	m.SetFiles("realization_versions", append([]string{realized}, rloop.ArtifactVersions...))
	m.SetFiles("review_realization_versions", rloop.ReviewVersions)
	m.SetFile("musicxml", xmlPath)
	m.SetFile("midi", midiPath)
	if audio.Status == notation.AudioSucceeded {
		m.SetFile("ogg", oggPath)
	}
	m.Patched = map[string]bool{"partimento": ploop.Patched, "realized": rloop.Patched}
	m.LintIssues = report.Issues

	if err := chain.WriteManifest(res.Dir, m); err != nil {
		return res, err
	}
	res.Manifest = m
	o.logger.Info("chain complete", "dir", res.Dir, "mode", m.Mode)
	return res, nil
}

// startChain creates the chain directory, generates the first partimento and
// stores it.
func (o *Orchestrator) startChain(ctx context.Context, opts ChainOptions, res *ChainResult) (*chain.Store, string, error) {
	if strings.TrimSpace(opts.Prompt) == "" {
		return nil, "", ErrEmptyPrompt
	}
	if opts.Iterations < 0 {
		return nil, "", fmt.Errorf("iterations must not be negative, got %d", opts.Iterations)
	}
	dir, err := o.resolver.ChainDir("partimento", opts.Output)
	if err != nil {
		return nil, "", err
	}
	res.Dir = dir
	store, err := o.store(dir)
	if err != nil {
		return nil, "", err
	}

	o.logger.Info("generating partimento", "dir", dir)
	p, err := o.composer.GeneratePartimento(ctx, opts.Prompt)
	if err != nil {
		return nil, "", fmt.Errorf("generate partimento: %w", err)
	}
	first, _, err := store.Append("partimento", p, "generate-partimento", "", opts.Prompt)
	if err != nil {
		return nil, "", fmt.Errorf("save partimento: %w", err)
	}
	return store, first, nil
}

func (o *Orchestrator) reviewPartimento(ctx context.Context, store *chain.Store, first string, opts ChainOptions) (LoopResult, error) {
	return RunReviewLoop(ctx, store, first, o.composer.ReviewPartimento, LoopConfig{
		Kind:          KindPartimento,
		VersionBase:   "partimento",
		MaxIterations: opts.Iterations,
		Prompt:        opts.Prompt,
		Logger:        o.logger,
	})
}

// realize asks the composer for a realization and holds it to the bassline:
// the bass voice always equals the partimento bassline.
func (o *Orchestrator) realize(ctx context.Context, p score.Partimento) (score.Realization, error) {
	o.logger.Info("realizing partimento", "measures", len(p.Bassline))
	r, err := o.composer.Realize(ctx, p)
	if err != nil {
		return score.Realization{}, fmt.Errorf("realize partimento: %w", err)
	}
	if !score.EqualMeasures(r.Bass, p.Bassline) {
		o.logger.Warn("realization bass differs from the bassline; restoring it")
		r.Bass = score.CloneMeasures(p.Bassline)
	}
	if r.Key == "" {
		r.Key = p.Key
	}
	if err := r.Validate(len(p.Bassline)); err != nil {
		return score.Realization{}, fmt.Errorf("realize partimento: %w", err)
	}
	return r, nil
}

// exportVersion writes MIDI and audio next to an intermediate realization.
func (o *Orchestrator) exportVersion(ctx context.Context, path string) error {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	if err := o.exporter.RealizationToMIDI(path, stem+".mid"); err != nil {
		return fmt.Errorf("export %s: %w", filepath.Base(path), err)
	}
	o.convertAudio(ctx, stem+".mid", stem+".ogg")
	return nil
}

func (o *Orchestrator) exportPartimento(jsonPath, xmlPath, midiPath string) error {
	if err := o.exporter.PartimentoToMusicXML(jsonPath, xmlPath); err != nil {
		return fmt.Errorf("export partimento: %w", err)
	}
	if err := o.exporter.PartimentoToMIDI(jsonPath, midiPath); err != nil {
		return fmt.Errorf("export partimento: %w", err)
	}
	return nil
}

func (o *Orchestrator) exportRealization(jsonPath, xmlPath, midiPath string) error {
	if err := o.exporter.RealizationToMusicXML(jsonPath, xmlPath); err != nil {
		return fmt.Errorf("export realization: %w", err)
	}
	if err := o.exporter.RealizationToMIDI(jsonPath, midiPath); err != nil {
		return fmt.Errorf("export realization: %w", err)
	}
	return nil
}

func loadPartimento(path string) (score.Partimento, error) {
	art, err := chain.ReadArtifact(path)
	if err != nil {
		return score.Partimento{}, err
	}
	var p score.Partimento
	if err := art.Decode(&p); err != nil {
		return score.Partimento{}, err
	}
	if err := p.Validate(); err != nil {
		return score.Partimento{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return p, nil
}

func loadRealization(path string) (score.Realization, error) {
	art, err := chain.ReadArtifact(path)
	if err != nil {
		return score.Realization{}, err
	}
	var r score.Realization
	if err := art.Decode(&r); err != nil {
		return score.Realization{}, err
	}
	return r, nil
}
