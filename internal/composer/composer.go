// Package composer implements the language-model collaborators of a chain:
// generating a partimento, realizing it in four parts and reviewing either.
// Each call builds its prompt, invokes the model once (retries live in the
// llm package) and decodes the JSON reply into score types.
package composer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Yates-Labs/partimento/internal/chain"
	"github.com/Yates-Labs/partimento/internal/llm"
	"github.com/Yates-Labs/partimento/internal/prompt"
	"github.com/Yates-Labs/partimento/internal/score"
)

var (
	ErrParse = errors.New("could not parse model output")
)

// Composer talks to a language model on behalf of the orchestrator.
type Composer struct {
	model  llm.LLM
	style  *prompt.StyleCard
	logger *slog.Logger
}

// Option customizes a Composer.
type Option func(*Composer)

// WithStyle injects a style card into every generation prompt.
func WithStyle(card prompt.StyleCard) Option {
	return func(c *Composer) {
		c.style = &card
	}
}

// WithLogger sets the logger for model-divergence warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a composer backed by model.
func New(model llm.LLM, opts ...Option) *Composer {
	c := &Composer{
		model:  model,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GeneratePartimento composes a new partimento from a free-text request.
func (c *Composer) GeneratePartimento(ctx context.Context, request string) (score.Partimento, error) {
	user, err := prompt.Partimento(request, c.style)
	if err != nil {
		return score.Partimento{}, err
	}

	var p score.Partimento
	if err := c.call(ctx, prompt.PartimentoSystem, user, &p); err != nil {
		return score.Partimento{}, fmt.Errorf("generate partimento: %w", err)
	}
	if err := p.Validate(); err != nil {
		return score.Partimento{}, fmt.Errorf("generate partimento: %w: %w", ErrParse, err)
	}
	return p, nil
}

// Realize expands p into four voices. The result always has exactly as many
// measures per voice as p's bassline, and its bass equals the bassline; a
// model that altered the bass is overruled and logged.
func (c *Composer) Realize(ctx context.Context, p score.Partimento) (score.Realization, error) {
	if err := p.Validate(); err != nil {
		return score.Realization{}, err
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return score.Realization{}, fmt.Errorf("encode partimento: %w", err)
	}
	user, err := prompt.Realize(payload)
	if err != nil {
		return score.Realization{}, err
	}

	var r score.Realization
	if err := c.call(ctx, prompt.RealizeSystem, user, &r); err != nil {
		return score.Realization{}, fmt.Errorf("realize partimento: %w", err)
	}

	if !score.EqualMeasures(r.Bass, p.Bassline) {
		c.logger.Warn("model altered the bass; restoring the partimento bassline",
			"bass_measures", len(r.Bass), "bassline_measures", len(p.Bassline))
	}
	r.Bass = score.CloneMeasures(p.Bassline)
	if r.Title == "" {
		r.Title = p.Title
	}
	if r.Key == "" {
		r.Key = p.Key
	}

	if err := r.Validate(len(p.Bassline)); err != nil {
		return score.Realization{}, fmt.Errorf("realize partimento: %w: %w", ErrParse, err)
	}
	return r, nil
}

// ReviewPartimento critiques the partimento stored in the artifact at path.
func (c *Composer) ReviewPartimento(ctx context.Context, path string) (score.Review, error) {
	art, err := chain.ReadArtifact(path)
	if err != nil {
		return score.Review{}, err
	}
	user, err := prompt.ReviewPartimento(art.Data)
	if err != nil {
		return score.Review{}, err
	}
	return c.review(ctx, prompt.ReviewPartimentoSystem, user)
}

// ReviewRealization critiques the realization stored in the artifact at path.
// lintIssues, if any, are shown to the model alongside the music.
func (c *Composer) ReviewRealization(ctx context.Context, path string, lintIssues []string) (score.Review, error) {
	art, err := chain.ReadArtifact(path)
	if err != nil {
		return score.Review{}, err
	}
	user, err := prompt.ReviewRealization(art.Data, lintIssues)
	if err != nil {
		return score.Review{}, err
	}
	return c.review(ctx, prompt.ReviewRealizationSystem, user)
}

func (c *Composer) review(ctx context.Context, system, user string) (score.Review, error) {
	var r score.Review
	if err := c.call(ctx, system, user, &r); err != nil {
		return score.Review{}, fmt.Errorf("review: %w", err)
	}
	// A patch without a stated issue is noise from the model.
	if len(r.Issues) == 0 && r.HasPatch() {
		c.logger.Warn("review suggested a patch without issues; ignoring the patch",
			"parts", len(r.SuggestedPatch))
		r.SuggestedPatch = nil
	}
	return r, nil
}

func (c *Composer) call(ctx context.Context, system, user string, v any) error {
	raw, err := c.model.Generate(ctx, system, user)
	if err != nil {
		return err
	}
	body, err := llm.ExtractJSON(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}
	return nil
}
