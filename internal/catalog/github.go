package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/go-github/v77/github"
)

// NewGitHubClient creates a GitHub API client with authentication
// token: GitHub personal access token
func NewGitHubClient(token string) *github.Client {
	return github.NewClient(nil).WithAuthToken(token)
}

// GitHubCatalog stores uploads and documents in a repository through the
// contents API. Every write is one commit on the configured branch.
type GitHubCatalog struct {
	client *github.Client
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewGitHubCatalog wraps an existing client.
func NewGitHubCatalog(client *github.Client, cfg Config, logger *slog.Logger) *GitHubCatalog {
	if logger == nil {
		logger = discardLogger()
	}
	return &GitHubCatalog{client: client, cfg: cfg.withDefaults(), logger: logger, now: time.Now}
}

// Upload commits localPath to outputs/remoteName and returns its raw URL.
func (g *GitHubCatalog) Upload(ctx context.Context, localPath, remoteName string) (string, error) {
	body, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	target := outputPath(remoteName)
	g.logger.Info("uploading file", "local", localPath, "remote", target)

	res, err := g.put(ctx, target, body, "Upload "+target)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	url := ""
	if res != nil && res.Content != nil {
		url = res.Content.GetDownloadURL()
	}
	if url == "" {
		url = fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", g.cfg.Owner, g.cfg.Repo, g.cfg.Branch, target)
	}
	g.logger.Info("upload successful", "url", url)
	return url, nil
}

// SaveMetadata commits doc as <collection>/<id>.json.
func (g *GitHubCatalog) SaveMetadata(ctx context.Context, doc Document) (string, error) {
	stamped, id := stamp(doc, g.now())
	body, err := json.MarshalIndent(stamped, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	target := documentPath(g.cfg.Collection, id)
	if _, err := g.put(ctx, target, body, "Add "+target); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	g.logger.Info("metadata saved", "id", id)
	return id, nil
}

// List reads every JSON document in the collection directory. A collection
// that does not exist yet is empty.
func (g *GitHubCatalog) List(ctx context.Context) ([]Document, error) {
	_, entries, resp, err := g.client.Repositories.GetContents(ctx, g.cfg.Owner, g.cfg.Repo, g.cfg.Collection, g.ref())
	if isNotFound(resp) {
		return []Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListFailed, handleAPIError(err, "list collection"))
	}

	docs := make([]Document, 0, len(entries))
	for _, entry := range entries {
		if entry.GetType() != "file" || !strings.HasSuffix(entry.GetName(), ".json") {
			continue
		}
		file, _, _, err := g.client.Repositories.GetContents(ctx, g.cfg.Owner, g.cfg.Repo, entry.GetPath(), g.ref())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrListFailed, handleAPIError(err, "get "+entry.GetPath()))
		}
		content, err := file.GetContent()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrListFailed, err)
		}
		doc, err := decodeDocument(entry.GetName(), []byte(content))
		if err != nil {
			g.logger.Warn("skipping unreadable document", "path", entry.GetPath(), "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	sortDocuments(docs)
	g.logger.Info("retrieved documents", "count", len(docs))
	return docs, nil
}

// put creates or replaces target, fetching the current blob SHA when the
// file already exists.
func (g *GitHubCatalog) put(ctx context.Context, target string, body []byte, message string) (*github.RepositoryContentResponse, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: body,
		Branch:  github.Ptr(g.cfg.Branch),
	}
	existing, _, resp, err := g.client.Repositories.GetContents(ctx, g.cfg.Owner, g.cfg.Repo, target, g.ref())
	switch {
	case isNotFound(resp):
	case err != nil:
		return nil, handleAPIError(err, "get "+target)
	case existing != nil:
		opts.SHA = github.Ptr(existing.GetSHA())
	}

	res, _, err := g.client.Repositories.CreateFile(ctx, g.cfg.Owner, g.cfg.Repo, target, opts)
	if err != nil {
		return nil, handleAPIError(err, "write "+target)
	}
	return res, nil
}

func (g *GitHubCatalog) ref() *github.RepositoryContentGetOptions {
	return &github.RepositoryContentGetOptions{Ref: g.cfg.Branch}
}

func isNotFound(resp *github.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}

// handleAPIError wraps API errors with context and detects rate limiting
func handleAPIError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return fmt.Errorf("%s: hit primary rate limit (used %d of %d, resets at %v): %w",
			msg, rateLimitErr.Rate.Used, rateLimitErr.Rate.Limit, rateLimitErr.Rate.Reset.Time, err)
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%s: hit secondary rate limit (retry after %v): %w",
			msg, abuseErr.GetRetryAfter(), err)
	}

	return fmt.Errorf("%s: %w", msg, err)
}
