package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"
)

// GitHubHost reads repositories through the GitHub REST API.
type GitHubHost struct {
	client *github.Client
}

// NewGitHubHost creates a GitHub host. An empty token uses anonymous access; baseURL
// overrides the API endpoint (GitHub Enterprise or tests).
func NewGitHubHost(ctx context.Context, token, baseURL string) (*GitHubHost, error) {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	}
	client := github.NewClient(httpClient)

	if baseURL != "" {
		u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL: %w", err)
		}
		client.BaseURL = u
	}

	return &GitHubHost{client: client}, nil
}

// ReadFile returns the decoded contents of a file.
func (h *GitHubHost) ReadFile(ctx context.Context, repo Repo, path string) (string, error) {
	owner, name := githubRepo(repo)
	file, _, resp, err := h.client.Repositories.GetContents(ctx, owner, name, path, nil)
	if err != nil {
		return "", githubError(resp, err)
	}
	if file == nil {
		return "", ErrNotExist
	}

	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return content, nil
}

// ListDir lists one directory level. dir "" is the repository root.
func (h *GitHubHost) ListDir(ctx context.Context, repo Repo, dir string) ([]Entry, error) {
	owner, name := githubRepo(repo)
	_, contents, resp, err := h.client.Repositories.GetContents(ctx, owner, name, dir, nil)
	if err != nil {
		return nil, githubError(resp, err)
	}

	entries := make([]Entry, 0, len(contents))
	for _, c := range contents {
		entries = append(entries, Entry{Path: c.GetPath(), IsDir: c.GetType() == "dir"})
	}
	return entries, nil
}

// githubRepo takes owner and name from the first two path segments, dropping browser
// suffixes such as /tree/main.
func githubRepo(repo Repo) (string, string) {
	segments := strings.SplitN(repo.Path, "/", 3)
	if len(segments) < 2 {
		return repo.Path, ""
	}
	return segments[0], segments[1]
}

func githubError(resp *github.Response, err error) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return fmt.Errorf("GitHub rate limit exceeded: %w", err)
	}
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return ErrNotExist
	}
	return err
}
