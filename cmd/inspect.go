package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/partimento/internal/notation"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect-musicxml [file.musicxml]",
	Short: "Summarize a MusicXML file",
	Long: `Print the title, composer, parts, measure count, key and time signature of
an uncompressed MusicXML file, with warnings for empty scores.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	sum, err := notation.Inspect(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printHeader(out, args[0])
	printField(out, "Title", orNone(sum.Title))
	printField(out, "Composer", orNone(sum.Composer))
	printField(out, "Parts", numberStyle.Render(fmt.Sprint(sum.Parts)))
	printField(out, "Measures", numberStyle.Render(fmt.Sprint(sum.Measures)))
	if sum.KeyFifths != nil {
		printField(out, "Key fifths", numberStyle.Render(fmt.Sprint(*sum.KeyFifths)))
	} else {
		printField(out, "Key fifths", orNone(""))
	}
	printField(out, "Time", orNone(sum.Time))
	printField(out, "Part names", orNone(strings.Join(sum.PartNames, ", ")))
	for _, w := range sum.Warnings {
		fmt.Fprintln(out, errorStyle.Render("warning: ")+valueStyle.Render(w))
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return mutedStyle.Render("none")
	}
	return s
}
