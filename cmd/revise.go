package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/partimento/internal/orchestrator"
)

var reviseOutput string

var revisePartimentoCmd = &cobra.Command{
	Use:   "revise-partimento [partimento.json] [review.json]",
	Short: "Apply a review's suggested patch to a partimento",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRevise(cmd, orchestrator.KindPartimento, args[0], args[1])
	},
}

var reviseRealizationCmd = &cobra.Command{
	Use:   "revise-realization [realized.json] [review.json]",
	Short: "Apply a review's suggested patch to a realization (bass is locked)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRevise(cmd, orchestrator.KindRealization, args[0], args[1])
	},
}

func init() {
	for _, c := range []*cobra.Command{revisePartimentoCmd, reviseRealizationCmd} {
		rootCmd.AddCommand(c)
		c.Flags().StringVarP(&reviseOutput, "output", "o", "", "Chain directory or JSON file (default: <output-root>/json)")
	}
}

func runRevise(cmd *cobra.Command, kind, input, review string) error {
	orch := newOfflineOrchestrator()
	res, err := orch.Revise(cmd.Context(), kind, input, review, reviseOutput)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printSuccess(out, "Revision written to "+res.Path)
	printField(out, "Applied", numberStyle.Render(fmt.Sprint(res.Patch.Applied)))
	for _, d := range res.Patch.Dropped {
		printNote(out, fmt.Sprintf("dropped %s %s: %s", d.Part, d.Measure, d.Reason))
	}
	return nil
}
