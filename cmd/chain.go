package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/partimento/internal/orchestrator"
)

var (
	chainOutput     string
	chainIterations int
)

var chainPartimentoOnlyCmd = &cobra.Command{
	Use:   "chain-partimento-only [prompt]",
	Short: "Generate a partimento and refine it through review passes",
	Long: `Generate a partimento from a prompt, then alternate model review and patch
application until a review suggests no change or the iteration budget is
spent. The final version is exported to MusicXML, MIDI and audio.

Examples:
  partimento chain-partimento-only "C major, 8 bars, cadence at the end"
  partimento chain-partimento-only "D minor, rule of the octave" -o generated/chains/dminor --iterations 3`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChainPartimentoOnly,
}

var chainRealizationCmd = &cobra.Command{
	Use:     "chain-partimento-realization [prompt]",
	Aliases: []string{"chain-realization"},
	Short:   "Run the full chain: partimento, review, realization, lint, export",
	Long: `Generate and refine a partimento, realize it in four voices, lint the
realization and, only when the linter finds issues, refine the realization
through review passes. The bass voice always equals the partimento bassline.

Examples:
  partimento chain-partimento-realization "G major minuet bass, 8 bars"
  partimento chain-realization "A minor, 4 bars" -o generated/chains/aminor --iterations 2`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChainRealization,
}

func init() {
	for _, c := range []*cobra.Command{chainPartimentoOnlyCmd, chainRealizationCmd} {
		rootCmd.AddCommand(c)
		c.Flags().StringVarP(&chainOutput, "output", "o", "", "Chain directory (default: <output-root>/chains/partimento_<timestamp>)")
		c.Flags().IntVar(&chainIterations, "iterations", orchestrator.DefaultIterations, "Maximum review passes per loop")
	}
}

func runChainPartimentoOnly(cmd *cobra.Command, args []string) error {
	orch, err := newOrchestrator()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	opts := chainOptions(args)
	printNote(out, "Running partimento chain...")

	res, err := orch.ChainPartimentoOnly(cmd.Context(), opts)
	if err != nil {
		return chainFailed(res, err)
	}

	printHeader(out, "Partimento chain")
	printField(out, "Directory", res.Dir)
	printLoop(out, "Partimento", res.Partimento)
	for i := range res.Audio {
		printAudio(out, &res.Audio[i])
	}
	printSuccess(out, "Manifest written to "+filepath.Join(res.Dir, "metadata.json"))
	return nil
}

func runChainRealization(cmd *cobra.Command, args []string) error {
	orch, err := newOrchestrator()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	opts := chainOptions(args)
	printNote(out, "Running full partimento chain...")

	res, err := orch.ChainRealization(cmd.Context(), opts)
	if err != nil {
		return chainFailed(res, err)
	}

	printHeader(out, "Partimento chain")
	printField(out, "Directory", res.Dir)
	printLoop(out, "Partimento", res.Partimento)
	printList(out, "Lint issues", res.Lint.Issues)
	if res.RealizationReviewed {
		printLoop(out, "Realization", res.Realization)
	} else {
		printNote(out, "Linter clean, realization review skipped")
	}
	for i := range res.Audio {
		printAudio(out, &res.Audio[i])
	}
	printSuccess(out, "Manifest written to "+filepath.Join(res.Dir, "metadata.json"))
	return nil
}

func chainOptions(args []string) orchestrator.ChainOptions {
	return orchestrator.ChainOptions{
		Prompt:     strings.Join(args, " "),
		Output:     chainOutput,
		Iterations: chainIterations,
	}
}

func chainFailed(res orchestrator.ChainResult, err error) error {
	if res.Dir != "" {
		return fmt.Errorf("chain aborted, partial artifacts left in %s: %w", res.Dir, err)
	}
	return err
}

func printLoop(w io.Writer, name string, loop orchestrator.LoopResult) {
	printField(w, name, fmt.Sprintf("%s after %s review(s), patched: %s",
		string(loop.State), numberStyle.Render(fmt.Sprint(loop.Iterations)), yesNo(loop.Patched)))
	printField(w, "Final", filepath.Base(loop.FinalPath))
	if n := len(loop.Dropped); n > 0 {
		printNote(w, fmt.Sprintf("%d patch edit(s) dropped, see log", n))
	}
}
