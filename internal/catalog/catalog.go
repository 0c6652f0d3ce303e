// Package catalog publishes finished chains to a shared collection: exported
// scores are uploaded under outputs/ and chain manifests are stored as JSON
// documents under the collection directory of a GitHub or local git repository.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	BackendGitHub = "github"
	BackendGit    = "git"

	DefaultCollection = "realizations_v1"
	DefaultBranch     = "main"

	outputsDir = "outputs"
)

var (
	ErrInvalidConfig = errors.New("invalid catalog configuration")
	ErrUploadFailed  = errors.New("catalog upload failed")
	ErrSaveFailed    = errors.New("catalog save failed")
	ErrListFailed    = errors.New("catalog list failed")
)

// Catalog is the remote collection a chain can be pushed to.
type Catalog interface {
	// Upload copies localPath to outputs/remoteName and returns its public URL.
	Upload(ctx context.Context, localPath, remoteName string) (string, error)
	// SaveMetadata stores doc as a new document and returns its id.
	SaveMetadata(ctx context.Context, doc Document) (string, error)
	// List returns every document in the collection, newest first.
	List(ctx context.Context) ([]Document, error)
}

// Config selects and configures a catalog backend.
type Config struct {
	Backend    string
	Owner      string
	Repo       string
	Branch     string
	Path       string
	Collection string
	Token      string
}

func (c Config) withDefaults() Config {
	if c.Branch == "" {
		c.Branch = DefaultBranch
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.Backend == "" {
		c.Backend = BackendGitHub
	}
	return c
}

// New builds the catalog named by cfg.Backend. It is constructed once by the
// command that needs it and passed down.
func New(cfg Config, logger *slog.Logger) (Catalog, error) {
	if logger == nil {
		logger = discardLogger()
	}
	cfg = cfg.withDefaults()
	switch strings.ToLower(cfg.Backend) {
	case BackendGitHub:
		if cfg.Owner == "" || cfg.Repo == "" {
			return nil, fmt.Errorf("%w: github backend needs catalog.owner and catalog.repo", ErrInvalidConfig)
		}
		if cfg.Token == "" {
			return nil, fmt.Errorf("%w: GITHUB_TOKEN not set", ErrInvalidConfig)
		}
		return NewGitHubCatalog(NewGitHubClient(cfg.Token), cfg, logger), nil
	case BackendGit:
		if cfg.Path == "" {
			return nil, fmt.Errorf("%w: git backend needs catalog.path", ErrInvalidConfig)
		}
		return OpenGitCatalog(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Document is one stored chain manifest plus catalog bookkeeping.
type Document map[string]any

// ID returns the document id, or "" when unset.
func (d Document) ID() string {
	return d.str("id")
}

// Prompt returns the originating prompt, or "" when unset.
func (d Document) Prompt() string {
	return d.str("prompt")
}

// CreatedAt returns the catalog timestamp, or "" when unset.
func (d Document) CreatedAt() string {
	return d.str("created_at")
}

func (d Document) str(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

// stamp returns a copy of doc with a fresh id and created_at, and the id.
func stamp(doc Document, now time.Time) (Document, string) {
	out := make(Document, len(doc)+2)
	for k, v := range doc {
		out[k] = v
	}
	id := uuid.NewString()
	out["id"] = id
	out["created_at"] = now.UTC().Format(time.RFC3339)
	return out, id
}

func documentPath(collection, id string) string {
	return path.Join(collection, id+".json")
}

// RemoteName is the upload name of a chain file: the chain id prefixed to the
// file's base name, so chains never overwrite each other's exports.
func RemoteName(chainID, localPath string) string {
	base := path.Base(strings.ReplaceAll(localPath, "\\", "/"))
	if chainID == "" {
		return base
	}
	return chainID + "_" + base
}

func outputPath(remoteName string) string {
	return path.Join(outputsDir, path.Base(strings.ReplaceAll(remoteName, "\\", "/")))
}

func decodeDocument(name string, body []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if doc.ID() == "" {
		doc["id"] = strings.TrimSuffix(path.Base(name), ".json")
	}
	return doc, nil
}

func sortDocuments(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].CreatedAt() != docs[j].CreatedAt() {
			return docs[i].CreatedAt() > docs[j].CreatedAt()
		}
		return docs[i].ID() < docs[j].ID()
	})
}
