// Package chain manages a chain directory: the append-only set of versioned
// JSON artifacts one orchestration run produces, its metadata.json manifest,
// and the resolution of user output arguments into chain or flat targets.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// EnvelopeVersion is the schema version written into every artifact.
	EnvelopeVersion = "0.1.0"

	// NoSource marks an artifact that was not derived from another file.
	NoSource = "unknown"

	maxAllocateAttempts = 64
)

var (
	ErrInvalidArtifact = errors.New("invalid artifact")
)

// Artifact is the envelope wrapped around every JSON file in a chain.
type Artifact struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Mode      string          `json:"mode"`
	Source    string          `json:"source"`
	Prompt    string          `json:"user_prompt,omitempty"`
	Version   string          `json:"version"`
	Data      json.RawMessage `json:"data"`
}

// Decode unmarshals the artifact payload into v.
func (a *Artifact) Decode(v any) error {
	if len(a.Data) == 0 {
		return fmt.Errorf("%w: artifact %s has no data", ErrInvalidArtifact, a.ID)
	}
	if err := json.Unmarshal(a.Data, v); err != nil {
		return fmt.Errorf("%w: decode data of %s: %w", ErrInvalidArtifact, a.ID, err)
	}
	return nil
}

// Store writes versioned artifacts into a single chain directory. Writes
// through one Store are serialised; separate processes writing the same
// directory are kept from clobbering each other by Append's link-based
// filename reservation.
type Store struct {
	dir   string
	now   func() time.Time
	newID func() string
	mu    sync.Mutex
}

// StoreOption customizes a Store during construction.
type StoreOption func(*Store)

// WithClock overrides the clock used for artifact timestamps.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = clock
	}
}

// WithIDGenerator overrides how artifact ids are minted.
func WithIDGenerator(gen func() string) StoreOption {
	return func(s *Store) {
		s.newID = gen
	}
}

// NewStore creates the chain directory if needed and returns a store rooted at it.
func NewStore(dir string, opts ...StoreOption) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("chain: create directory %s: %w", dir, err)
	}
	s := &Store{
		dir:   dir,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the chain directory.
func (s *Store) Dir() string {
	return s.dir
}

// NextVersionedPath returns the next free path for base in the store's directory.
func (s *Store) NextVersionedPath(base string) (string, error) {
	return NextVersionedPath(s.dir, base)
}

// NextVersionedPath scans dir for files named {base}_{N}.json (any digit
// count) and returns the path for max(N)+1, zero-padded to two digits. With no
// matching file it returns {base}_01.json. Deleted versions leave gaps that are
// never reused.
func NextVersionedPath(dir, base string) (string, error) {
	n, err := maxVersion(dir, base)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, VersionedName(base, n+1)), nil
}

// VersionedName formats the file name of version n of base.
func VersionedName(base string, n int) string {
	return fmt.Sprintf("%s_%02d.json", base, n)
}

func maxVersion(dir, base string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("chain: scan %s: %w", dir, err)
	}

	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `_(\d+)\.json$`)
	highest := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := pattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest, nil
}

// WriteArtifact wraps payload in a fresh envelope and writes it to path,
// replacing anything already there. The write goes through a temporary file
// and a rename so readers never observe a partial artifact.
func (s *Store) WriteArtifact(path string, payload any, mode, source, prompt string) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	art, body, err := s.envelope(payload, mode, source, prompt)
	if err != nil {
		return nil, err
	}
	tmp, err := writeTemp(filepath.Dir(path), body)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("chain: write %s: %w", path, err)
	}
	return art, nil
}

// Append writes payload as the next version of base and returns its path.
// It holds the directory lock while allocating. The target name is reserved with a hard link, which fails if another writer
// took the same version first; in that case the next free version is tried.
func (s *Store) Append(base string, payload any, mode, source, prompt string) (string, *Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	art, body, err := s.envelope(payload, mode, source, prompt)
	if err != nil {
		return "", nil, err
	}
	tmp, err := writeTemp(s.dir, body)
	if err != nil {
		return "", nil, err
	}
	defer os.Remove(tmp)

	lock := NewDirLock(s.dir)
	if err := lock.Acquire(context.Background()); err != nil {
		return "", nil, err
	}
	defer lock.Release()

	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		path, err := NextVersionedPath(s.dir, base)
		if err != nil {
			return "", nil, err
		}
		err = os.Link(tmp, path)
		if err == nil {
			return path, art, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", nil, fmt.Errorf("chain: reserve %s: %w", path, err)
		}
	}
	return "", nil, fmt.Errorf("chain: could not allocate a version of %s after %d attempts", base, maxAllocateAttempts)
}

func (s *Store) envelope(payload any, mode, source, prompt string) (*Artifact, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("chain: encode payload: %w", err)
	}
	if source == "" {
		source = NoSource
	}
	art := &Artifact{
		ID:        s.newID(),
		CreatedAt: s.now().UTC(),
		Mode:      mode,
		Source:    source,
		Prompt:    prompt,
		Version:   EnvelopeVersion,
		Data:      data,
	}
	body, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("chain: encode envelope: %w", err)
	}
	return art, append(body, '\n'), nil
}

// ReadArtifact loads an enveloped artifact from disk.
func ReadArtifact(path string) (*Artifact, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("chain: read %s: %w", path, err)
	}
	var art Artifact
	if err := json.Unmarshal(b, &art); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArtifact, path, err)
	}
	if len(art.Data) == 0 {
		return nil, fmt.Errorf("%w: %s has no data block", ErrInvalidArtifact, path)
	}
	return &art, nil
}

func writeTemp(dir string, body []byte) (string, error) {
	f, err := os.CreateTemp(dir, ".artifact-*.tmp")
	if err != nil {
		return "", fmt.Errorf("chain: create temp file in %s: %w", dir, err)
	}
	name := f.Name()
	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("chain: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("chain: close temp file: %w", err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("chain: chmod temp file: %w", err)
	}
	return name, nil
}
