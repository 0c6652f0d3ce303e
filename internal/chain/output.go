package chain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotDirectory is returned when a chain run is pointed at a file-like path.
var ErrNotDirectory = errors.New("chain output must be a directory")

// TimestampLayout is the filesystem-safe timestamp used in generated names.
const TimestampLayout = "2006-01-02_150405"

// artifactExtensions are the suffixes that mark an output argument as a file.
var artifactExtensions = map[string]bool{
	".json":     true,
	".musicxml": true,
	".xml":      true,
	".mxl":      true,
	".mid":      true,
	".midi":     true,
	".ogg":      true,
	".wav":      true,
}

// IsLikelyDirectory decides from the text of path alone whether the user meant
// a directory: a path ending in a recognised artifact extension is a file
// target, anything else (including a trailing separator) is a directory
// target. The path need not exist.
func IsLikelyDirectory(path string) bool {
	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, string(os.PathSeparator)) {
		return true
	}
	return !artifactExtensions[strings.ToLower(filepath.Ext(path))]
}

// Output is the set of sibling paths a command writes.
type Output struct {
	JSON     string
	XML      string
	MIDI     string
	OGG      string
	ChainDir string
	IsChain  bool
}

// Dir returns the directory holding the outputs.
func (o Output) Dir() string {
	if o.IsChain {
		return o.ChainDir
	}
	return filepath.Dir(o.JSON)
}

// Resolver turns a single user output argument into concrete output paths.
// All commands share it so "directory versus file" behaves the same everywhere.
type Resolver struct {
	// Root is the generated-output root used when no argument is given.
	Root string
	Now  func() time.Time
}

// NewResolver returns a resolver rooted at root.
func NewResolver(root string) *Resolver {
	if root == "" {
		root = "generated"
	}
	return &Resolver{Root: root, Now: time.Now}
}

func (r *Resolver) timestamp() string {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return now().Format(TimestampLayout)
}

// Resolve maps output to paths for an artifact named base.
//
//   - directory-like output: a chain directory (created) holding
//     {base}_01.json, {base}.musicxml, {base}.mid and {base}.ogg
//   - file-like output: flat siblings of output's stem
//   - empty output: flat files under {Root}/json/{base}_{timestamp}
func (r *Resolver) Resolve(base, output string) (Output, error) {
	return r.ResolveIn("json", base, output)
}

// ResolveIn is Resolve with a custom subdirectory of Root for the empty-output case.
func (r *Resolver) ResolveIn(subdir, base, output string) (Output, error) {
	if output != "" && IsLikelyDirectory(output) {
		return chainOutput(output, base)
	}

	stem := output
	if stem == "" {
		stem = filepath.Join(r.Root, subdir, base+"_"+r.timestamp())
	} else {
		stem = strings.TrimSuffix(stem, filepath.Ext(stem))
	}
	if err := os.MkdirAll(filepath.Dir(stem), 0o755); err != nil {
		return Output{}, fmt.Errorf("chain: create output directory: %w", err)
	}
	return flatOutput(stem), nil
}

// ResolveExport maps an export destination. A directory-like output holds
// {base}.musicxml and friends; otherwise siblings of output's stem, or of the
// input's stem when output is empty.
func (r *Resolver) ResolveExport(base, input, output string) (Output, error) {
	if output != "" && IsLikelyDirectory(output) {
		return chainOutput(output, base)
	}
	src := output
	if src == "" {
		src = input
	}
	stem := strings.TrimSuffix(src, filepath.Ext(src))
	if err := os.MkdirAll(filepath.Dir(stem), 0o755); err != nil {
		return Output{}, fmt.Errorf("chain: create output directory: %w", err)
	}
	out := flatOutput(stem)
	if output == "" {
		// Never point the JSON slot back at the input file.
		out.JSON = input
	}
	return out, nil
}

// ChainDir returns the directory for a full chain run: output when given,
// otherwise {Root}/chains/{prefix}_{timestamp}. The directory is created.
// A file-like output is rejected with ErrNotDirectory.
func (r *Resolver) ChainDir(prefix, output string) (string, error) {
	if output != "" && !IsLikelyDirectory(output) {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, output)
	}
	dir := output
	if dir == "" {
		dir = filepath.Join(r.Root, "chains", prefix+"_"+r.timestamp())
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("chain: create chain directory %s: %w", dir, err)
	}
	return dir, nil
}

func chainOutput(dir, base string) (Output, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Output{}, fmt.Errorf("chain: create chain directory %s: %w", dir, err)
	}
	return Output{
		JSON:     filepath.Join(dir, VersionedName(base, 1)),
		XML:      filepath.Join(dir, base+".musicxml"),
		MIDI:     filepath.Join(dir, base+".mid"),
		OGG:      filepath.Join(dir, base+".ogg"),
		ChainDir: dir,
		IsChain:  true,
	}, nil
}

func flatOutput(stem string) Output {
	return Output{
		JSON: stem + ".json",
		XML:  stem + ".musicxml",
		MIDI: stem + ".mid",
		OGG:  stem + ".ogg",
	}
}
