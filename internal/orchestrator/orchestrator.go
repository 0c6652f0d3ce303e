// Package orchestrator drives partimento chains: generation, review-revise
// loops, realization, the linter gate, export and the chain manifest. Each
// step runs to completion before the next; a failed step aborts the run and
// leaves the artifacts written so far on disk without a manifest.
package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/Yates-Labs/partimento/internal/chain"
	"github.com/Yates-Labs/partimento/internal/lint"
	"github.com/Yates-Labs/partimento/internal/notation"
	"github.com/Yates-Labs/partimento/internal/score"
)

// DefaultIterations is the review budget when none is given.
const DefaultIterations = 1

var (
	ErrNoPatch     = errors.New("review has no suggested_patch")
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// Composer is the language-model side of a chain.
type Composer interface {
	GeneratePartimento(ctx context.Context, request string) (score.Partimento, error)
	Realize(ctx context.Context, p score.Partimento) (score.Realization, error)
	ReviewPartimento(ctx context.Context, path string) (score.Review, error)
	ReviewRealization(ctx context.Context, path string, lintIssues []string) (score.Review, error)
}

// Linter checks a realization without a model.
type Linter interface {
	Lint(r score.Realization) (lint.Report, error)
}

// Exporter renders artifacts to notation files.
type Exporter interface {
	PartimentoToMusicXML(jsonPath, out string) error
	PartimentoToMIDI(jsonPath, out string) error
	RealizationToMusicXML(jsonPath, out string) error
	RealizationToMIDI(jsonPath, out string) error
}

// AudioConverter renders MIDI to audio on a best-effort basis.
type AudioConverter interface {
	Convert(ctx context.Context, midiPath, outPath string) notation.AudioResult
}

// Orchestrator wires the collaborators of a chain together.
type Orchestrator struct {
	composer  Composer
	linter    Linter
	exporter  Exporter
	audio     AudioConverter
	resolver  *chain.Resolver
	storeOpts []chain.StoreOption
	logger    *slog.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLinter replaces the default voice-leading linter.
func WithLinter(l Linter) Option {
	return func(o *Orchestrator) {
		o.linter = l
	}
}

// WithExporter replaces the default notation exporter.
func WithExporter(e Exporter) Option {
	return func(o *Orchestrator) {
		o.exporter = e
	}
}

// WithAudio replaces the default audio converter.
func WithAudio(a AudioConverter) Option {
	return func(o *Orchestrator) {
		o.audio = a
	}
}

// WithResolver sets the output resolver and so the generated-output root.
func WithResolver(r *chain.Resolver) Option {
	return func(o *Orchestrator) {
		o.resolver = r
	}
}

// WithStoreOptions is passed to every chain.Store the orchestrator opens.
func WithStoreOptions(opts ...chain.StoreOption) Option {
	return func(o *Orchestrator) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}

// WithLogger sets the logger for progress and warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New returns an orchestrator around composer with the local linter, the
// notation exporter and the default audio tool.
func New(composer Composer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		composer: composer,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.linter == nil {
		o.linter = lint.New()
	}
	if o.exporter == nil {
		o.exporter = notation.NewExporter(o.logger)
	}
	if o.audio == nil {
		o.audio = notation.NewAudioConverter("")
	}
	if o.resolver == nil {
		o.resolver = chain.NewResolver("")
	}
	return o
}

func (o *Orchestrator) store(dir string) (*chain.Store, error) {
	return chain.NewStore(dir, o.storeOpts...)
}

// convertAudio runs the audio collaborator and reports whether the file exists.
// Neither a missing tool nor a failed conversion stops a chain.
func (o *Orchestrator) convertAudio(ctx context.Context, midiPath, oggPath string) notation.AudioResult {
	res := o.audio.Convert(ctx, midiPath, oggPath)
	switch res.Status {
	case notation.AudioSucceeded:
		o.logger.Info("audio written", "path", oggPath)
	case notation.AudioToolMissing:
		o.logger.Warn("audio converter not found; skipping audio", "tool", res.Tool)
	default:
		o.logger.Warn("audio conversion failed; continuing without audio", "path", oggPath, "error", res.Err)
	}
	return res
}
