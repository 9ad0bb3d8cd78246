package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLabHost reads repositories through the GitLab REST API.
type GitLabHost struct {
	client *gitlab.Client
}

// NewGitLabHost creates a GitLab host for the instance at baseURL.
func NewGitLabHost(token, baseURL string) (*GitLabHost, error) {
	opts := []gitlab.ClientOptionFunc{gitlab.WithoutRetries()}
	if baseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(baseURL))
	}

	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}
	return &GitLabHost{client: client}, nil
}

// ReadFile returns the raw contents of a file on the default branch.
func (h *GitLabHost) ReadFile(ctx context.Context, repo Repo, path string) (string, error) {
	raw, resp, err := h.client.RepositoryFiles.GetRawFile(repo.Path, path, &gitlab.GetRawFileOptions{}, gitlab.WithContext(ctx))
	if err != nil {
		return "", gitlabError(resp, err)
	}
	return string(raw), nil
}

// ListDir lists one directory level. dir "" is the repository root.
func (h *GitLabHost) ListDir(ctx context.Context, repo Repo, dir string) ([]Entry, error) {
	opts := &gitlab.ListTreeOptions{ListOptions: gitlab.ListOptions{PerPage: 100}}
	if dir != "" {
		opts.Path = gitlab.Ptr(dir)
	}

	nodes, resp, err := h.client.Repositories.ListTree(repo.Path, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, gitlabError(resp, err)
	}

	entries := make([]Entry, 0, len(nodes))
	for _, n := range nodes {
		entries = append(entries, Entry{Path: n.Path, IsDir: n.Type == "tree"})
	}
	return entries, nil
}

func gitlabError(resp *gitlab.Response, err error) error {
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return ErrNotExist
		case http.StatusTooManyRequests:
			return fmt.Errorf("GitLab rate limit exceeded: %w", err)
		}
	}
	var errResp *gitlab.ErrorResponse
	if errors.As(err, &errResp) {
		return fmt.Errorf("GitLab API error: %w", err)
	}
	return err
}
