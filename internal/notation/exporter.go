// Package notation renders partimenti and realizations to MusicXML and
// Standard MIDI Files, inspects MusicXML scores and converts MIDI to audio.
package notation

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Yates-Labs/partimento/internal/chain"
	"github.com/Yates-Labs/partimento/internal/score"
)

const (
	defaultPartimentoTitle  = "Partimento"
	defaultRealizationTitle = "Realized Partimento"

	programPiano = 0
)

// Exporter writes notation files from enveloped JSON artifacts.
type Exporter struct {
	logger *slog.Logger
}

// NewExporter returns an exporter that reports skipped notes to logger.
func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Exporter{logger: logger}
}

func (e *Exporter) skip(part string, measure int, pitch string, err error) {
	e.logger.Warn("skipping unreadable note", "part", part, "measure", measure, "pitch", pitch, "error", err)
}

// PartimentoToMusicXML renders the partimento at jsonPath as a single bass
// staff with figures as lyrics.
func (e *Exporter) PartimentoToMusicXML(jsonPath, out string) error {
	p, err := loadPartimento(jsonPath)
	if err != nil {
		return err
	}
	doc := buildScore(titleOr(p.Title, defaultPartimentoTitle), "", score.ParseKey(p.Key), []voicePart{{
		id:      "P1",
		name:    "Bass",
		clef:    bassClef(),
		music:   p.Bassline,
		figures: p.FiguresAt,
	}}, e.skip)
	return writeMusicXML(out, doc)
}

// PartimentoToMIDI renders the partimento bass line at jsonPath.
func (e *Exporter) PartimentoToMIDI(jsonPath, out string) error {
	p, err := loadPartimento(jsonPath)
	if err != nil {
		return err
	}
	return writeMIDI(out, titleOr(p.Title, defaultPartimentoTitle), []midiTrack{
		{name: "Bass", program: programPiano, music: p.Bassline},
	}, e.skip)
}

// RealizationToMusicXML renders the realization at jsonPath as four staves.
func (e *Exporter) RealizationToMusicXML(jsonPath, out string) error {
	r, err := loadRealization(jsonPath)
	if err != nil {
		return err
	}
	clefs := map[string]clefSign{
		score.VoiceSoprano: trebleClef(),
		score.VoiceAlto:    trebleClef(),
		score.VoiceTenor:   tenorClef(),
		score.VoiceBass:    bassClef(),
	}
	var parts []voicePart
	for i, name := range score.VoiceOrder {
		parts = append(parts, voicePart{
			id:    fmt.Sprintf("P%d", i+1),
			name:  partName(name),
			clef:  clefs[name],
			music: r.Voice(name),
		})
	}
	doc := buildScore(titleOr(r.Title, defaultRealizationTitle), "", score.ParseKey(r.Key), parts, e.skip)
	return writeMusicXML(out, doc)
}

// RealizationToMIDI renders the realization at jsonPath, one track per voice.
func (e *Exporter) RealizationToMIDI(jsonPath, out string) error {
	r, err := loadRealization(jsonPath)
	if err != nil {
		return err
	}
	var tracks []midiTrack
	for _, name := range score.VoiceOrder {
		tracks = append(tracks, midiTrack{name: partName(name), program: programPiano, music: r.Voice(name)})
	}
	return writeMIDI(out, titleOr(r.Title, defaultRealizationTitle), tracks, e.skip)
}

func loadPartimento(path string) (score.Partimento, error) {
	art, err := chain.ReadArtifact(path)
	if err != nil {
		return score.Partimento{}, err
	}
	var p score.Partimento
	if err := art.Decode(&p); err != nil {
		return score.Partimento{}, fmt.Errorf("%w: %w", score.ErrInvalidPartimento, err)
	}
	if err := p.Validate(); err != nil {
		return score.Partimento{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func loadRealization(path string) (score.Realization, error) {
	art, err := chain.ReadArtifact(path)
	if err != nil {
		return score.Realization{}, err
	}
	var r score.Realization
	if err := art.Decode(&r); err != nil {
		return score.Realization{}, fmt.Errorf("%w: %w", score.ErrInvalidRealization, err)
	}
	if err := r.Validate(len(r.Bass)); err != nil {
		return score.Realization{}, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func titleOr(title, fallback string) string {
	if strings.TrimSpace(title) == "" {
		return fallback
	}
	return title
}

func partName(voice string) string {
	return strings.ToUpper(voice[:1]) + voice[1:]
}
