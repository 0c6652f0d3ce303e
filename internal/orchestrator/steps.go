package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Yates-Labs/partimento/internal/chain"
	"github.com/Yates-Labs/partimento/internal/notation"
	"github.com/Yates-Labs/partimento/internal/score"
)

// StepResult reports the files a single-step command wrote.
type StepResult struct {
	// Path is the JSON artifact written, or the input for exports.
	Path   string
	Output chain.Output
	// Manifest is set when the step ran in chain mode and wrote one.
	Manifest *chain.Manifest
	Review   *score.Review
	Patch    score.PatchResult
	Audio    *notation.AudioResult
}

// GeneratePartimento generates a partimento and writes it with its MusicXML,
// MIDI and audio. A directory-like output becomes a chain directory with a
// manifest; otherwise flat files are written.
func (o *Orchestrator) GeneratePartimento(ctx context.Context, request, output string) (StepResult, error) {
	if strings.TrimSpace(request) == "" {
		return StepResult{}, ErrEmptyPrompt
	}
	out, err := o.resolver.Resolve("partimento", output)
	if err != nil {
		return StepResult{}, err
	}

	p, err := o.composer.GeneratePartimento(ctx, request)
	if err != nil {
		return StepResult{}, fmt.Errorf("generate partimento: %w", err)
	}

	path, err := o.writeStep(out, "partimento", p, "generate-partimento", "", request)
	if err != nil {
		return StepResult{}, err
	}
	res := StepResult{Path: path, Output: out}

	if err := o.exportPartimento(path, out.XML, out.MIDI); err != nil {
		return res, err
	}
	audio := o.convertAudio(ctx, out.MIDI, out.OGG)
	res.Audio = &audio

	if out.IsChain {
		m := chain.NewManifest("generate-partimento", request)
		m.SetFile("partimento", path)
		m.SetFile("musicxml", out.XML)
		m.SetFile("midi", out.MIDI)
		if audio.Status == notation.AudioSucceeded {
			m.SetFile("ogg", out.OGG)
		}
		if err := chain.WriteManifest(out.ChainDir, m); err != nil {
			return res, err
		}
		res.Manifest = &m
	}
	return res, nil
}

// RealizePartimento realizes the partimento stored at input. With a
// directory-like output the realization is appended to that chain directory
// as the next realized_NN.json; the input is copied in as partimento_01.json
// when the chain has no partimento yet.
func (o *Orchestrator) RealizePartimento(ctx context.Context, input, output string) (StepResult, error) {
	art, err := chain.ReadArtifact(input)
	if err != nil {
		return StepResult{}, err
	}
	var p score.Partimento
	if err := art.Decode(&p); err != nil {
		return StepResult{}, err
	}
	if err := p.Validate(); err != nil {
		return StepResult{}, fmt.Errorf("%s: %w", filepath.Base(input), err)
	}

	r, err := o.realize(ctx, p)
	if err != nil {
		return StepResult{}, err
	}

	if output == "" || !chain.IsLikelyDirectory(output) {
		out, err := o.resolver.ResolveIn("json", "realized_partimento", output)
		if err != nil {
			return StepResult{}, err
		}
		path, err := o.writeStep(out, "realized", r, "realize-partimento", input, art.Prompt)
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{Path: path, Output: out}, nil
	}

	store, err := o.store(output)
	if err != nil {
		return StepResult{}, err
	}
	partPath := filepath.Join(output, chain.VersionedName("partimento", 1))
	if _, err := os.Stat(partPath); errors.Is(err, fs.ErrNotExist) {
		if _, err := store.WriteArtifact(partPath, p, "partimento", input, art.Prompt); err != nil {
			return StepResult{}, fmt.Errorf("copy partimento into chain: %w", err)
		}
	} else if err != nil {
		return StepResult{}, err
	}

	path, _, err := store.Append("realized", r, "realize-partimento", input, art.Prompt)
	if err != nil {
		return StepResult{}, fmt.Errorf("save realization: %w", err)
	}

	m := chain.NewManifest("realize-partimento", art.Prompt)
	m.SourceFile = input
	m.SetFile("partimento", partPath)
	m.SetFile("realized", path)
	if err := chain.WriteManifest(output, m); err != nil {
		return StepResult{}, err
	}
	return StepResult{
		Path:     path,
		Output:   chain.Output{JSON: path, ChainDir: output, IsChain: true},
		Manifest: &m,
	}, nil
}

// Review runs one review of the artifact at input. Realizations are linted
// first and the linter's findings are handed to the reviewer.
func (o *Orchestrator) Review(ctx context.Context, kind, input, output string) (StepResult, error) {
	var (
		rev  score.Review
		mode string
		err  error
	)
	switch kind {
	case KindPartimento:
		mode = "review-partimento"
		rev, err = o.composer.ReviewPartimento(ctx, input)
	case KindRealization:
		mode = "review-score"
		rev, err = o.composer.ReviewRealization(ctx, input, o.lintFile(input))
	default:
		return StepResult{}, fmt.Errorf("unknown review kind %q", kind)
	}
	if err != nil {
		return StepResult{}, fmt.Errorf("review %s: %w", kind, err)
	}
	prompt := artifactPrompt(input)

	res := StepResult{Review: &rev}
	if output == "" || !chain.IsLikelyDirectory(output) {
		out, err := o.resolver.ResolveIn("review", "review", output)
		if err != nil {
			return res, err
		}
		path, err := o.writeStep(out, "review", rev, mode, input, prompt)
		if err != nil {
			return res, err
		}
		res.Path, res.Output = path, out
		return res, nil
	}

	store, err := o.store(output)
	if err != nil {
		return res, err
	}
	path, _, err := store.Append("review_"+kind, rev, mode, input, prompt)
	if err != nil {
		return res, fmt.Errorf("save review: %w", err)
	}
	m := chain.NewManifest(mode, prompt)
	m.SourceFile = input
	m.SetFile("review", path)
	if err := chain.WriteManifest(output, m); err != nil {
		return res, err
	}
	res.Path = path
	res.Output = chain.Output{JSON: path, ChainDir: output, IsChain: true}
	res.Manifest = &m
	return res, nil
}

// Revise applies the suggested_patch of the review at reviewPath to the
// artifact at input. It fails with ErrNoPatch when the review suggests none.
// A realization's bass is never patched.
func (o *Orchestrator) Revise(ctx context.Context, kind, input, reviewPath, output string) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	var (
		base   string
		locked []string
	)
	switch kind {
	case KindPartimento:
		base = "partimento"
	case KindRealization:
		base = "realized"
		locked = []string{score.VoiceBass}
	default:
		return StepResult{}, fmt.Errorf("unknown revise kind %q", kind)
	}

	revArt, err := chain.ReadArtifact(reviewPath)
	if err != nil {
		return StepResult{}, err
	}
	var rev score.Review
	if err := revArt.Decode(&rev); err != nil {
		return StepResult{}, err
	}
	if !rev.HasPatch() {
		return StepResult{}, fmt.Errorf("%w: %s", ErrNoPatch, reviewPath)
	}

	art, err := chain.ReadArtifact(input)
	if err != nil {
		return StepResult{}, err
	}
	var data score.Payload
	if err := art.Decode(&data); err != nil {
		return StepResult{}, err
	}
	patched, result := score.ApplyPatch(data, rev.SuggestedPatch, score.WithLockedParts(locked...))
	logDropped(o.logger.With("kind", kind), result.Dropped)

	mode := "revise-" + kind
	res := StepResult{Review: &rev, Patch: result}
	if output == "" || !chain.IsLikelyDirectory(output) {
		out, err := o.resolver.ResolveIn("json", "revised_"+kind, output)
		if err != nil {
			return res, err
		}
		path, err := o.writeStep(out, base, patched, mode, input, art.Prompt)
		if err != nil {
			return res, err
		}
		res.Path, res.Output = path, out
		return res, nil
	}

	store, err := o.store(output)
	if err != nil {
		return res, err
	}
	path, _, err := store.Append(base, patched, mode, input, art.Prompt)
	if err != nil {
		return res, fmt.Errorf("save revised %s: %w", kind, err)
	}
	res.Path = path
	res.Output = chain.Output{JSON: path, ChainDir: output, IsChain: true}
	o.logger.Info("patch applied", "edits", result.Applied, "dropped", len(result.Dropped), "artifact", filepath.Base(path))
	return res, nil
}

// Export renders the artifact at input to MusicXML, MIDI and audio. Output
// follows the export resolution rules: a directory holds {kind}.musicxml and
// friends, a file names their stem, and empty writes next to input.
func (o *Orchestrator) Export(ctx context.Context, kind, input, output string) (StepResult, error) {
	var base string
	var export func(jsonPath, xmlPath, midiPath string) error
	switch kind {
	case KindPartimento:
		base, export = "partimento", o.exportPartimento
	case KindRealization:
		base, export = "realized", o.exportRealization
	default:
		return StepResult{}, fmt.Errorf("unknown export kind %q", kind)
	}

	out, err := o.resolver.ResolveExport(base, input, output)
	if err != nil {
		return StepResult{}, err
	}
	if err := export(input, out.XML, out.MIDI); err != nil {
		return StepResult{}, err
	}
	audio := o.convertAudio(ctx, out.MIDI, out.OGG)
	return StepResult{Path: input, Output: out, Audio: &audio}, nil
}

// ExportAudio renders a MIDI file to audio. An empty output writes a sibling
// .ogg; a directory-like output holds {stem}.ogg.
func (o *Orchestrator) ExportAudio(ctx context.Context, midiPath, output string) (notation.AudioResult, error) {
	if _, err := os.Stat(midiPath); err != nil {
		return notation.AudioResult{}, fmt.Errorf("midi input: %w", err)
	}
	stem := strings.TrimSuffix(filepath.Base(midiPath), filepath.Ext(midiPath))
	target := output
	switch {
	case target == "":
		target = strings.TrimSuffix(midiPath, filepath.Ext(midiPath)) + ".ogg"
	case chain.IsLikelyDirectory(target):
		if err := os.MkdirAll(target, 0o755); err != nil {
			return notation.AudioResult{}, err
		}
		target = filepath.Join(target, stem+".ogg")
	}
	return o.convertAudio(ctx, midiPath, target), nil
}

// writeStep stores payload at the resolved JSON target: appended as the next
// version of base in chain mode, written in place otherwise.
func (o *Orchestrator) writeStep(out chain.Output, base string, payload any, mode, source, prompt string) (string, error) {
	store, err := o.store(out.Dir())
	if err != nil {
		return "", err
	}
	if out.IsChain {
		path, _, err := store.Append(base, payload, mode, source, prompt)
		if err != nil {
			return "", fmt.Errorf("save %s: %w", base, err)
		}
		return path, nil
	}
	if _, err := store.WriteArtifact(out.JSON, payload, mode, source, prompt); err != nil {
		return "", fmt.Errorf("save %s: %w", base, err)
	}
	return out.JSON, nil
}

// lintFile lints the realization at path for the reviewer. A file that cannot
// be linted yields no findings.
func (o *Orchestrator) lintFile(path string) []string {
	r, err := loadRealization(path)
	if err != nil {
		o.logger.Warn("cannot lint realization", "path", path, "error", err)
		return nil
	}
	report, err := o.linter.Lint(r)
	if err != nil {
		o.logger.Warn("cannot lint realization", "path", path, "error", err)
		return nil
	}
	return report.Issues
}

func artifactPrompt(path string) string {
	art, err := chain.ReadArtifact(path)
	if err != nil {
		return ""
	}
	return art.Prompt
}
