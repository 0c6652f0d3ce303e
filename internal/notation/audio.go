package notation

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// DefaultAudioTool renders MIDI through a General MIDI soundfont.
const DefaultAudioTool = "timidity"

// AudioStatus is the outcome of a conversion attempt.
type AudioStatus string

const (
	AudioSucceeded   AudioStatus = "succeeded"
	AudioToolMissing AudioStatus = "skipped-tool-missing"
	AudioFailed      AudioStatus = "failed"
)

// AudioResult reports what happened to one conversion. Err is set only when
// Status is AudioFailed.
type AudioResult struct {
	Status AudioStatus
	Path   string
	Tool   string
	Err    error
}

// AudioConverter turns MIDI files into Ogg Vorbis with an external tool.
// A missing tool is not an error; callers log the skip and carry on.
type AudioConverter struct {
	tool     string
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewAudioConverter returns a converter using tool, or DefaultAudioTool when empty.
func NewAudioConverter(tool string) *AudioConverter {
	if strings.TrimSpace(tool) == "" {
		tool = DefaultAudioTool
	}
	return &AudioConverter{
		tool:     tool,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// Tool returns the configured converter command.
func (a *AudioConverter) Tool() string {
	return a.tool
}

// Convert renders midiPath to outPath.
func (a *AudioConverter) Convert(ctx context.Context, midiPath, outPath string) AudioResult {
	res := AudioResult{Path: outPath, Tool: a.tool}

	bin, err := a.lookPath(a.tool)
	if err != nil {
		res.Status = AudioToolMissing
		return res
	}
	if _, err := os.Stat(midiPath); err != nil {
		res.Status = AudioFailed
		res.Err = fmt.Errorf("audio: input %s: %w", midiPath, err)
		return res
	}

	output, err := a.run(ctx, bin, midiPath, "-Ov", "-o", outPath)
	if err != nil {
		res.Status = AudioFailed
		msg := strings.TrimSpace(string(output))
		if msg != "" {
			res.Err = fmt.Errorf("audio: %s: %w: %s", a.tool, err, msg)
		} else {
			res.Err = fmt.Errorf("audio: %s: %w", a.tool, err)
		}
		return res
	}
	if _, err := os.Stat(outPath); err != nil {
		res.Status = AudioFailed
		res.Err = fmt.Errorf("audio: %s produced no output: %w", a.tool, err)
		return res
	}

	res.Status = AudioSucceeded
	return res
}
