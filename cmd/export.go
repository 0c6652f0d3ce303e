package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/partimento/internal/notation"
	"github.com/Yates-Labs/partimento/internal/orchestrator"
)

var audioOutput string

var exportPartimentoCmd = &cobra.Command{
	Use:   "export-partimento [partimento.json] [output]",
	Short: "Export a partimento to MusicXML, MIDI and audio",
	Long: `Export an enveloped partimento. The optional output is a directory (holding
partimento.musicxml and friends) or a file whose stem names the outputs;
without it the files are written next to the input.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, orchestrator.KindPartimento, args)
	},
}

var exportRealizationCmd = &cobra.Command{
	Use:   "export-realization [realized.json] [output]",
	Short: "Export a realization to MusicXML, MIDI and audio",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, orchestrator.KindRealization, args)
	},
}

var exportAudioCmd = &cobra.Command{
	Use:   "export-audio [file.mid]",
	Short: "Render a MIDI file to Ogg Vorbis",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportAudio,
}

func init() {
	rootCmd.AddCommand(exportPartimentoCmd, exportRealizationCmd, exportAudioCmd)
	exportAudioCmd.Flags().StringVarP(&audioOutput, "output", "o", "", "Output directory or .ogg file (default: next to the input)")
}

func runExport(cmd *cobra.Command, kind string, args []string) error {
	var output string
	if len(args) > 1 {
		output = args[1]
	}
	res, err := newOfflineOrchestrator().Export(cmd.Context(), kind, args[0], output)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printSuccess(out, "MusicXML written to "+res.Output.XML)
	printSuccess(out, "MIDI written to "+res.Output.MIDI)
	printAudio(out, res.Audio)
	return nil
}

func runExportAudio(cmd *cobra.Command, args []string) error {
	res, err := newOfflineOrchestrator().ExportAudio(cmd.Context(), args[0], audioOutput)
	if err != nil {
		return err
	}
	printAudio(cmd.OutOrStdout(), &res)
	if res.Status == notation.AudioFailed {
		return res.Err
	}
	return nil
}
