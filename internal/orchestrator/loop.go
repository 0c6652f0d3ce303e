package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/Yates-Labs/partimento/internal/chain"
	"github.com/Yates-Labs/partimento/internal/score"
)

// Artifact kinds reviewed by the loop.
const (
	KindPartimento  = "partimento"
	KindRealization = "realization"
)

// State is a position in the review-revise state machine.
type State string

// A failed loop reports the state it failed in.
const (
	StateReviewing   State = "REVIEWING"
	StateApplying    State = "APPLYING"
	StateDone        State = "DONE"
	StateBudgetSpent State = "BUDGET_EXHAUSTED"
)

// ReviewFunc reviews the artifact at path.
type ReviewFunc func(ctx context.Context, path string) (score.Review, error)

// VersionFunc is called with every artifact version the loop writes.
type VersionFunc func(ctx context.Context, path string) error

// LoopConfig parameterises one review-revise loop.
type LoopConfig struct {
	// Kind names what is reviewed; reviews are stored as review_{Kind}_NN.json.
	Kind string
	// VersionBase is the base name for patched versions, e.g. "partimento"
	// or "realized".
	VersionBase string
	// MaxIterations bounds the number of review calls.
	MaxIterations int
	// Prompt is recorded in every artifact envelope.
	Prompt string
	// LockedParts are parts that patches may not touch.
	LockedParts []string
	// OnVersion, if set, runs after each patched version is written. An
	// error aborts the loop.
	OnVersion VersionFunc
	Logger    *slog.Logger
}

// LoopResult describes what a loop did.
type LoopResult struct {
	// FinalPath is the last artifact written by the loop, or the loop's
	// input when no version was written.
	FinalPath string
	// ArtifactVersions are the patched versions written, oldest first.
	ArtifactVersions []string
	// ReviewVersions are the persisted reviews, oldest first.
	ReviewVersions []string
	Reviews        []score.Review
	// Patched reports whether any edit was actually applied.
	Patched    bool
	Iterations int
	Applied    int
	Dropped    []score.DroppedEdit
	State      State
}

// RunReviewLoop alternates review and patch on the artifact at input, always
// reviewing the latest version, until a review suggests no patch or
// MaxIterations reviews have run. A failed review aborts the loop with its
// error; everything written before it stays on disk.
func RunReviewLoop(ctx context.Context, store *chain.Store, input string, review ReviewFunc, cfg LoopConfig) (LoopResult, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("kind", cfg.Kind)
	base := cfg.VersionBase
	if base == "" {
		base = cfg.Kind
	}

	res := LoopResult{FinalPath: input, State: StateBudgetSpent}
	current := input

	for pass := 1; pass <= cfg.MaxIterations; pass++ {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("review loop cancelled before pass %d: %w", pass, err)
		}

		res.State = StateReviewing
		logger.Info("reviewing", "pass", pass, "artifact", filepath.Base(current))
		rev, err := review(ctx, current)
		if err != nil {
			return res, fmt.Errorf("review %s pass %d: %w", cfg.Kind, pass, err)
		}
		res.Iterations++

		reviewPath, _, err := store.Append("review_"+cfg.Kind, rev, reviewMode(cfg.Kind, pass), filepath.Base(current), cfg.Prompt)
		if err != nil {
			return res, fmt.Errorf("save review: %w", err)
		}
		res.ReviewVersions = append(res.ReviewVersions, reviewPath)
		res.Reviews = append(res.Reviews, rev)

		if !rev.HasPatch() {
			logger.Info("no patch suggested; stopping", "pass", pass)
			res.State = StateDone
			return res, nil
		}

		res.State = StateApplying
		next, applied, err := applyAndStore(store, current, base, rev.SuggestedPatch, patchMode(cfg.Kind, pass), cfg, logger)
		if err != nil {
			return res, err
		}
		res.Applied++
		if applied.Applied > 0 {
			res.Patched = true
		}
		res.Dropped = append(res.Dropped, applied.Dropped...)
		res.ArtifactVersions = append(res.ArtifactVersions, next)
		res.FinalPath = next
		current = next

		if cfg.OnVersion != nil {
			if err := cfg.OnVersion(ctx, next); err != nil {
				return res, err
			}
		}
	}

	res.State = StateBudgetSpent
	if cfg.MaxIterations > 0 {
		logger.Info("iteration budget exhausted", "iterations", cfg.MaxIterations)
	}
	return res, nil
}

// applyAndStore patches the payload of the artifact at current and appends it
// as the next version of base.
func applyAndStore(store *chain.Store, current, base string, patch score.Patch, mode string, cfg LoopConfig, logger *slog.Logger) (string, score.PatchResult, error) {
	art, err := chain.ReadArtifact(current)
	if err != nil {
		return "", score.PatchResult{}, err
	}
	var data score.Payload
	if err := json.Unmarshal(art.Data, &data); err != nil {
		return "", score.PatchResult{}, fmt.Errorf("%w: %s payload is not an object: %w", chain.ErrInvalidArtifact, current, err)
	}

	patched, result := score.ApplyPatch(data, patch, score.WithLockedParts(cfg.LockedParts...))
	logDropped(logger, result.Dropped)

	next, _, err := store.Append(base, patched, mode, filepath.Base(current), cfg.Prompt)
	if err != nil {
		return "", result, fmt.Errorf("save patched %s: %w", cfg.Kind, err)
	}
	logger.Info("patch applied", "edits", result.Applied, "dropped", len(result.Dropped), "artifact", filepath.Base(next))
	return next, result, nil
}

func logDropped(logger *slog.Logger, dropped []score.DroppedEdit) {
	for _, d := range dropped {
		logger.Warn("dropped patch edit", "part", d.Part, "measure", d.Measure, "reason", string(d.Reason))
	}
}

func reviewMode(kind string, pass int) string {
	return fmt.Sprintf("review-%s-pass-%d", kind, pass)
}

func patchMode(kind string, pass int) string {
	if kind == KindRealization {
		return fmt.Sprintf("realize-partimento-pass-%d", pass)
	}
	return "patched-partimento"
}
