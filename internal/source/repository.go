package source

import (
	"fmt"
	"net/url"
	"strings"
)

// Repo identifies a repository on a code host.
type Repo struct {
	Host string // lower-case hostname, e.g. "github.com"
	Path string // "owner/name" on GitHub, full namespace path on GitLab
}

func (r Repo) String() string {
	return r.Host + "/" + r.Path
}

// ParseRepositoryURL extracts the host and repository path from a browser or clone URL.
func ParseRepositoryURL(raw string) (Repo, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Repo{}, fmt.Errorf("repository URL is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Repo{}, fmt.Errorf("invalid repository URL: %w", err)
	}
	if u.Hostname() == "" {
		return Repo{}, fmt.Errorf("repository URL has no host")
	}

	path := strings.Trim(u.Path, "/")
	// GitLab browser URLs put views behind "/-/", e.g. group/project/-/tree/main.
	if i := strings.Index(path, "/-/"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSuffix(path, ".git")

	segments := strings.Split(path, "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return Repo{}, fmt.Errorf("repository URL %q has no owner/name path", raw)
	}

	return Repo{Host: strings.ToLower(u.Hostname()), Path: path}, nil
}
