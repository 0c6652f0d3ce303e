package cmd

import (
	"github.com/spf13/cobra"
)

var realizeOutput string

var realizeCmd = &cobra.Command{
	Use:   "realize-partimento [partimento.json]",
	Short: "Realize a partimento in four voices",
	Long: `Realize an enveloped partimento JSON file as a four-voice score. The bass
voice is the partimento bassline.

With a directory output the realization is appended to that chain as
realized_NN.json and the input is copied in as partimento_01.json if the
chain has none yet.

Examples:
  partimento realize-partimento generated/chains/run/partimento_02.json -o generated/chains/run
  partimento realize-partimento exercises/eminor.json`,
	Args: cobra.ExactArgs(1),
	RunE: runRealize,
}

func init() {
	rootCmd.AddCommand(realizeCmd)
	realizeCmd.Flags().StringVarP(&realizeOutput, "output", "o", "", "Output directory or JSON file")
}

func runRealize(cmd *cobra.Command, args []string) error {
	orch, err := newOrchestrator()
	if err != nil {
		return err
	}
	res, err := orch.RealizePartimento(cmd.Context(), args[0], realizeOutput)
	if err != nil {
		return err
	}
	printSuccess(cmd.OutOrStdout(), "Realization written to "+res.Path)
	return nil
}
