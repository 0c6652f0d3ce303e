package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/partimento/internal/chain"
)

var describeCmd = &cobra.Command{
	Use:   "describe-chain [chain-dir]",
	Short: "Show the manifest of a chain directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

func init() {
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	m, err := chain.ReadManifest(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printHeader(out, "Chain "+args[0])
	printField(out, "ID", m.ID)
	printField(out, "Created", m.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	printField(out, "Mode", m.Mode)
	printField(out, "Prompt", promptStyle.Render(orNone(m.Prompt)))
	printField(out, "Version", m.Version)
	if m.SourceFile != "" {
		printField(out, "Source", m.SourceFile)
	}
	if m.ExportedMusicXMLURL != "" {
		printField(out, "Published", m.ExportedMusicXMLURL)
	}

	printHeader(out, "Files")
	for _, role := range m.Roles() {
		printList(out, role, m.FileNames(role))
	}

	if len(m.Patched) > 0 {
		printHeader(out, "Patched")
		keys := make([]string, 0, len(m.Patched))
		for k := range m.Patched {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			printField(out, k, yesNo(m.Patched[k]))
		}
	}
	if len(m.LintIssues) > 0 {
		printHeader(out, "Lint issues")
		fmt.Fprintln(out, valueStyle.Render(strings.Join(m.LintIssues, "\n")))
	}
	return nil
}
