package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var generateOutput string

var generateCmd = &cobra.Command{
	Use:   "generate-partimento [prompt]",
	Short: "Generate a single partimento",
	Long: `Generate a partimento from a prompt and export it to MusicXML, MIDI and audio.

A directory output becomes a chain directory with partimento_NN.json and a
manifest; a file output names the JSON file and its siblings; without an
output the files go under <output-root>/json.

Examples:
  partimento generate-partimento "C major, 4 bars"
  partimento generate-partimento "F major, Fenaroli style" -o generated/chains/fmajor
  partimento generate-partimento "E minor" -o exercises/eminor.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "Output directory or JSON file")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	orch, err := newOrchestrator()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	res, err := orch.GeneratePartimento(cmd.Context(), strings.Join(args, " "), generateOutput)
	if err != nil {
		return err
	}
	printSuccess(out, "Partimento written to "+res.Path)
	printField(out, "MusicXML", res.Output.XML)
	printField(out, "MIDI", res.Output.MIDI)
	printAudio(out, res.Audio)
	return nil
}
