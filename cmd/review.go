package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/partimento/internal/orchestrator"
	"github.com/Yates-Labs/partimento/internal/score"
)

var reviewOutput string

var reviewPartimentoCmd = &cobra.Command{
	Use:   "review-partimento [partimento.json]",
	Short: "Have the model review a partimento",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReview(cmd, orchestrator.KindPartimento, args[0])
	},
}

var reviewRealizationCmd = &cobra.Command{
	Use:   "review-realization [realized.json]",
	Short: "Lint a realization and have the model review it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReview(cmd, orchestrator.KindRealization, args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{reviewPartimentoCmd, reviewRealizationCmd} {
		rootCmd.AddCommand(c)
		c.Flags().StringVarP(&reviewOutput, "output", "o", "", "Chain directory or review JSON file (default: <output-root>/review)")
	}
}

func runReview(cmd *cobra.Command, kind, input string) error {
	orch, err := newOrchestrator()
	if err != nil {
		return err
	}
	res, err := orch.Review(cmd.Context(), kind, input, reviewOutput)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printReview(out, *res.Review)
	printSuccess(out, "Review written to "+res.Path)
	return nil
}

func printReview(w io.Writer, rev score.Review) {
	printHeader(w, "Review")
	printField(w, "Message", rev.Message)
	printList(w, "Strengths", remarks(rev.Strengths))
	printList(w, "Issues", remarks(rev.Issues))
	printField(w, "Patch", yesNo(rev.HasPatch()))
}

func remarks(rs []score.Remark) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}
