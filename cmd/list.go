package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/partimento/internal/catalog"
)

var listCmd = &cobra.Command{
	Use:   "list-realizations",
	Short: "List chains published to the catalog",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cat, err := catalog.New(cfg.Catalog, logger)
	if err != nil {
		return err
	}
	docs, err := cat.List(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintln(out, "No realizations found in catalog")
		return nil
	}
	fmt.Fprint(out, renderDocuments(docs))
	return nil
}

// Column widths
const (
	idWidth      = 38
	promptWidth  = 48
	createdWidth = 22
)

func renderDocuments(docs []catalog.Document) string {
	var b strings.Builder
	cell := lipgloss.NewStyle().Padding(0, 1)
	head := headerStyle.Padding(0, 1)

	headers := []string{
		head.Width(idWidth).Render("ID"),
		head.Width(promptWidth).Render("PROMPT"),
		head.Width(createdWidth).Render("CREATED"),
	}
	b.WriteString(strings.Join(headers, borderStyle.Render("│")) + "\n")
	separator := []string{
		strings.Repeat("─", idWidth),
		strings.Repeat("─", promptWidth),
		strings.Repeat("─", createdWidth),
	}
	b.WriteString(borderStyle.Render(strings.Join(separator, "┼")) + "\n")

	for _, d := range docs {
		cells := []string{
			cell.Foreground(accentColor).Width(idWidth).Render(d.ID()),
			cell.Foreground(cyanColor).Width(promptWidth).Render(truncate(d.Prompt(), promptWidth-2)),
			cell.Foreground(textColor).Width(createdWidth).Render(d.CreatedAt()),
		}
		b.WriteString(strings.Join(cells, borderStyle.Render("│")) + "\n")
	}

	summary := lipgloss.NewStyle().Foreground(cyanColor).Italic(true)
	b.WriteString("\n" + summary.Render(fmt.Sprintf("%d realization(s)", len(docs))) + "\n")
	return b.String()
}
