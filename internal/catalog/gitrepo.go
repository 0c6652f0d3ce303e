package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
)

const (
	commitAuthorName  = "partimento"
	commitAuthorEmail = "partimento@localhost"
)

// GitCatalog keeps the collection in a local repository, one commit per
// write. Pushing to a remote is left to the user's git tooling.
type GitCatalog struct {
	repo   *git.Repository
	root   string
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// OpenGitCatalog opens the repository at cfg.Path, initialising it when the
// directory holds no repository yet.
func OpenGitCatalog(cfg Config, logger *slog.Logger) (*GitCatalog, error) {
	if logger == nil {
		logger = discardLogger()
	}
	cfg = cfg.withDefaults()
	root, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	repo, err := git.PlainOpen(root)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", root, err)
		}
		repo, err = git.PlainInit(root, false)
	}
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", root, err)
	}
	return &GitCatalog{repo: repo, root: root, cfg: cfg, logger: logger, now: time.Now}, nil
}

// Upload copies localPath into outputs/ and commits it.
func (g *GitCatalog) Upload(ctx context.Context, localPath, remoteName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	target := outputPath(remoteName)
	g.logger.Info("uploading file", "local", localPath, "remote", target)
	if err := g.commitFile(target, body, "Upload "+target); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	return g.publicURL(target), nil
}

// SaveMetadata writes doc as <collection>/<id>.json and commits it.
func (g *GitCatalog) SaveMetadata(ctx context.Context, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stamped, id := stamp(doc, g.now())
	body, err := json.MarshalIndent(stamped, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	target := documentPath(g.cfg.Collection, id)
	if err := g.commitFile(target, body, "Add "+target); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	g.logger.Info("metadata saved", "id", id)
	return id, nil
}

// List reads the collection from the HEAD commit, so uncommitted files in
// the worktree are not listed.
func (g *GitCatalog) List(ctx context.Context) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	head, err := g.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListFailed, err)
	}
	commit, err := g.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListFailed, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListFailed, err)
	}
	sub, err := tree.Tree(g.cfg.Collection)
	if errors.Is(err, object.ErrDirectoryNotFound) || errors.Is(err, object.ErrEntryNotFound) {
		return []Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListFailed, err)
	}

	docs := []Document{}
	err = sub.Files().ForEach(func(f *object.File) error {
		if strings.Contains(f.Name, "/") || !strings.HasSuffix(f.Name, ".json") {
			return nil
		}
		content, err := f.Contents()
		if err != nil {
			return err
		}
		doc, err := decodeDocument(f.Name, []byte(content))
		if err != nil {
			g.logger.Warn("skipping unreadable document", "path", f.Name, "error", err)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListFailed, err)
	}
	sortDocuments(docs)
	return docs, nil
}

func (g *GitCatalog) commitFile(rel string, body []byte, message string) error {
	abs := filepath.Join(g.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(abs, body, 0o644); err != nil {
		return err
	}

	wt, err := g.repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	if _, err := wt.Add(rel); err != nil {
		return fmt.Errorf("stage %s: %w", rel, err)
	}
	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if st, ok := status[rel]; !ok || st.Staging == git.Unmodified {
		g.logger.Debug("content unchanged, nothing to commit", "path", rel)
		return nil
	}
	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: commitAuthorName, Email: commitAuthorEmail, When: g.now()},
	})
	if err != nil {
		return fmt.Errorf("commit %s: %w", rel, err)
	}
	return nil
}

// publicURL points at the raw file on GitHub when the repository is known,
// otherwise at the local copy.
func (g *GitCatalog) publicURL(rel string) string {
	if g.cfg.Owner != "" && g.cfg.Repo != "" {
		return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", g.cfg.Owner, g.cfg.Repo, g.cfg.Branch, rel)
	}
	return "file://" + filepath.ToSlash(filepath.Join(g.root, filepath.FromSlash(rel)))
}
