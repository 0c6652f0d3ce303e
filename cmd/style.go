package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Yates-Labs/partimento/internal/notation"
)

// LipGloss signature purple/pink palette
var (
	headerColor  = lipgloss.Color("#F780FF") // Bright pink/magenta
	accentColor  = lipgloss.Color("#BD93F9") // Purple
	numberColor  = lipgloss.Color("#FF79C6") // Pink
	textColor    = lipgloss.Color("#E9E9F4") // Light purple/white
	mutedColor   = lipgloss.Color("#6272A4") // Muted purple
	cyanColor    = lipgloss.Color("#8BE9FD") // Cyan accent
	errorColor   = lipgloss.Color("#FF5555") // Red
	successColor = lipgloss.Color("#50FA7B") // Green
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(headerColor).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(accentColor)
	valueStyle   = lipgloss.NewStyle().Foreground(textColor)
	numberStyle  = lipgloss.NewStyle().Foreground(numberColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	promptStyle  = lipgloss.NewStyle().Foreground(cyanColor).Italic(true)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	borderStyle  = lipgloss.NewStyle().Foreground(mutedColor)
)

const labelWidth = 14

func printHeader(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render(title))
}

func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", labelStyle.Width(labelWidth).Render(label+":"), valueStyle.Render(value))
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		printField(w, label, mutedStyle.Render("none"))
		return
	}
	printField(w, label, items[0])
	pad := strings.Repeat(" ", labelWidth+1)
	for _, item := range items[1:] {
		fmt.Fprintln(w, pad+valueStyle.Render(item))
	}
}

func printSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, successStyle.Render("✓ "+msg))
}

func printNote(w io.Writer, msg string) {
	fmt.Fprintln(w, mutedStyle.Render("→ "+msg))
}

func printAudio(w io.Writer, res *notation.AudioResult) {
	if res == nil {
		return
	}
	switch res.Status {
	case notation.AudioSucceeded:
		printSuccess(w, "Audio written to "+res.Path)
	case notation.AudioToolMissing:
		printNote(w, fmt.Sprintf("Audio skipped (%s not installed)", res.Tool))
	default:
		printNote(w, fmt.Sprintf("Audio failed: %v", res.Err))
	}
}

func yesNo(b bool) string {
	if b {
		return successStyle.Render("yes")
	}
	return mutedStyle.Render("no")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
