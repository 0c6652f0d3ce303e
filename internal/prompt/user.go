package prompt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyPrompt = errors.New("prompt is empty")

// Partimento assembles the user prompt for generating a partimento. The style
// card, when given, is embedded as a STYLE_CARD JSON line.
func Partimento(request string, card *StyleCard) (string, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return "", ErrEmptyPrompt
	}

	var b strings.Builder
	if card != nil {
		encoded, err := json.Marshal(card)
		if err != nil {
			return "", fmt.Errorf("encode style card: %w", err)
		}
		b.WriteString("STYLE_CARD: ")
		b.Write(encoded)
		b.WriteString("\n\n")
	}
	b.WriteString("USER_PROMPT: ")
	b.WriteString(request)
	b.WriteString("\n")
	return b.String(), nil
}

// Realize assembles the user prompt that asks for a four-part realization of
// the partimento payload.
func Realize(partimento json.RawMessage) (string, error) {
	body, err := indent(partimento)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Realize this partimento in four parts. ")
	b.WriteString("Copy its bassline into \"bass\" unchanged.\n\n")
	b.WriteString(body)
	b.WriteString("\n")
	return b.String(), nil
}

// ReviewPartimento assembles the user prompt for critiquing a partimento.
func ReviewPartimento(partimento json.RawMessage) (string, error) {
	body, err := indent(partimento)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Here is a partimento with bassline and figures.\n\n")
	b.WriteString("# Reference examples\n")
	b.WriteString("## GOOD (clear harmonic motion)\n")
	b.WriteString(`{"bassline":[["C2"],["G2"]],"figures":[[[]],[["6"]]],"cadences":["measure 2: half cadence"]}` + "\n\n")
	b.WriteString("## BAD (awkward leaps and no cadence)\n")
	b.WriteString(`{"bassline":[["C2"],["C3"]],"figures":[[[]],[[]]],"cadences":[]}` + "\n\n")
	b.WriteString("# Student submission\n")
	b.WriteString(body)
	b.WriteString("\n\n")
	b.WriteString("Critique this partimento for cadential logic, style and idiomatic clarity. Return JSON only.\n")
	return b.String(), nil
}

// ReviewRealization assembles the user prompt for critiquing a realization.
// Linter findings, when present, are listed so the model can address them.
func ReviewRealization(realization json.RawMessage, lintIssues []string) (string, error) {
	body, err := indent(realization)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Here is a four-part realization of a partimento.\n\n")
	b.WriteString("# Reference examples\n")
	b.WriteString("## GOOD (no issues)\n")
	b.WriteString(`{"soprano":[["C5"]],"alto":[["E4"]],"tenor":[["G3"]],"bass":[["C3"]]}` + "\n\n")
	b.WriteString("## BAD (parallel fifths between soprano and bass, m.1 to m.2)\n")
	b.WriteString(`{"soprano":[["G4"],["A4"]],"alto":[["E4"],["F4"]],"tenor":[["C4"],["D4"]],"bass":[["C3"],["D3"]]}` + "\n\n")
	b.WriteString("# Student submission\n")
	b.WriteString(body)
	b.WriteString("\n\n")
	if len(lintIssues) > 0 {
		b.WriteString("# Automated checks reported\n")
		for _, issue := range lintIssues {
			b.WriteString(fmt.Sprintf("- %s\n", issue))
		}
		b.WriteString("\n")
	}
	b.WriteString("Review the music above. List any stylistic issues, voice-leading problems or strengths. Return JSON only.\n")
	return b.String(), nil
}

func indent(data json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", fmt.Errorf("%w: no data to send", ErrEmptyPrompt)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return "", fmt.Errorf("format payload: %w", err)
	}
	return buf.String(), nil
}
