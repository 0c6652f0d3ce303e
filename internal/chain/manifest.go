package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ManifestFile is the name of the per-chain summary.
const ManifestFile = "metadata.json"

var (
	ErrManifestNotFound  = errors.New("metadata.json not found")
	ErrDanglingReference = errors.New("manifest references a missing file")
)

// Manifest is the canonical index of one chain run. Files maps a logical
// role (partimento_versions, musicxml, ...) to a file name or a list of file
// names relative to the chain directory.
type Manifest struct {
	ID                  string          `json:"id"`
	CreatedAt           time.Time       `json:"created_at"`
	Mode                string          `json:"mode"`
	Prompt              string          `json:"prompt,omitempty"`
	SourceFile          string          `json:"source_file,omitempty"`
	Files               map[string]any  `json:"files"`
	Patched             map[string]bool `json:"patched,omitempty"`
	LintIssues          []string        `json:"lint_issues,omitempty"`
	ExportedMusicXMLURL string          `json:"exported_musicxml_url,omitempty"`
	Version             string          `json:"version"`
}

// NewManifest starts a manifest with a fresh id and a second-precision UTC timestamp.
func NewManifest(mode, prompt string) Manifest {
	return Manifest{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Mode:      mode,
		Prompt:    prompt,
		Files:     map[string]any{},
		Version:   EnvelopeVersion,
	}
}

// SetFile records a single file for role, by base name.
func (m *Manifest) SetFile(role, path string) {
	if m.Files == nil {
		m.Files = map[string]any{}
	}
	m.Files[role] = filepath.Base(path)
}

// SetFiles records a list of files for role, by base name.
func (m *Manifest) SetFiles(role string, paths []string) {
	if m.Files == nil {
		m.Files = map[string]any{}
	}
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	m.Files[role] = names
}

// FileNames returns the files recorded for role whether it holds one name or a list.
func (m Manifest) FileNames(role string) []string {
	switch v := m.Files[role].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Roles returns the manifest's file roles in sorted order.
func (m Manifest) Roles() []string {
	roles := make([]string, 0, len(m.Files))
	for r := range m.Files {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

// WriteManifest writes m as metadata.json in dir, replacing any previous
// manifest. Every referenced file must already exist so a manifest never
// points at an artifact that was not written. The write holds the chain
// directory lock.
func WriteManifest(dir string, m Manifest) error {
	for _, role := range m.Roles() {
		for _, name := range m.FileNames(role) {
			if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
				return fmt.Errorf("%w: %s (%s): %w", ErrDanglingReference, name, role, err)
			}
		}
	}

	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("chain: encode manifest: %w", err)
	}
	return WithDirLock(context.Background(), dir, func() error {
		tmp, err := writeTemp(dir, append(body, '\n'))
		if err != nil {
			return err
		}
		path := filepath.Join(dir, ManifestFile)
		if err := os.Rename(tmp, path); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("chain: write %s: %w", path, err)
		}
		return nil
	})
}

// ReadManifest loads metadata.json from dir.
func ReadManifest(dir string) (Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Manifest{}, fmt.Errorf("%w in %s", ErrManifestNotFound, dir)
		}
		return Manifest{}, fmt.Errorf("chain: read %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("chain: parse %s: %w", path, err)
	}
	return m, nil
}

// AsMap returns the manifest as a generic document for catalog storage.
func (m Manifest) AsMap() (map[string]any, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
