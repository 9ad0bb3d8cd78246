// Package source reads the parts of a component repository that AI review looks at.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/aimd54/component-directory/internal/config"
	"github.com/aimd54/component-directory/pkg/logger"
)

// DefinitionCandidates are the conventional locations of a component definition file,
// in lookup order.
var DefinitionCandidates = []string{
	"convex.config.ts",
	"src/component/convex.config.ts",
	"src/convex.config.ts",
	"component/convex.config.ts",
	"convex/convex.config.ts",
}

const truncationMarker = "\n// ... truncated ..."

// File is one file read from the repository.
type File struct {
	Path      string
	Content   string
	Truncated bool
}

// Snapshot is the subset of a repository used to build a review prompt.
type Snapshot struct {
	Repo         Repo
	Definition   *File
	ComponentDir string
	Files        []File
}

// Fetcher resolves repository URLs to a host and reads a Snapshot.
type Fetcher struct {
	hosts        map[string]Host
	maxFiles     int
	maxFileBytes int
	log          *logger.Logger
}

// NewFetcher creates a fetcher for GitHub and GitLab using the configured credentials.
func NewFetcher(ctx context.Context, cfg *config.RepositoryHostsConfig, log *logger.Logger) (*Fetcher, error) {
	gh, err := NewGitHubHost(ctx, cfg.GitHub.Token, cfg.GitHub.BaseURL)
	if err != nil {
		return nil, err
	}
	gl, err := NewGitLabHost(cfg.GitLab.Token, cfg.GitLab.BaseURL)
	if err != nil {
		return nil, err
	}

	hosts := map[string]Host{
		"github.com": gh,
		"gitlab.com": gl,
	}
	if h := hostname(cfg.GitHub.BaseURL); h != "" && h != "api.github.com" {
		hosts[h] = gh
	}
	if h := hostname(cfg.GitLab.BaseURL); h != "" {
		hosts[h] = gl
	}

	return NewFetcherWithHosts(hosts, cfg.MaxFiles, cfg.MaxFileBytes, log), nil
}

// NewFetcherWithHosts creates a fetcher over explicit hosts keyed by hostname.
func NewFetcherWithHosts(hosts map[string]Host, maxFiles, maxFileBytes int, log *logger.Logger) *Fetcher {
	if maxFiles <= 0 {
		maxFiles = 20
	}
	if maxFileBytes <= 0 {
		maxFileBytes = 32 * 1024
	}
	return &Fetcher{
		hosts:        hosts,
		maxFiles:     maxFiles,
		maxFileBytes: maxFileBytes,
		log:          log,
	}
}

// Fetch reads the component definition and source files of the repository at repoURL.
func (f *Fetcher) Fetch(ctx context.Context, repoURL string) (*Snapshot, error) {
	if strings.TrimSpace(repoURL) == "" {
		return nil, &RepositoryAccessError{URL: repoURL, Reason: "no repository URL"}
	}

	repo, err := ParseRepositoryURL(repoURL)
	if err != nil {
		return nil, &RepositoryAccessError{URL: repoURL, Reason: "unrecognized repository URL", Err: err}
	}

	host, ok := f.hosts[repo.Host]
	if !ok {
		return nil, &RepositoryAccessError{URL: repoURL, Reason: fmt.Sprintf("unsupported host %s", repo.Host)}
	}

	snapshot := &Snapshot{Repo: repo}

	for _, candidate := range DefinitionCandidates {
		content, err := host.ReadFile(ctx, repo, candidate)
		if errors.Is(err, ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, &RepositoryAccessError{URL: repoURL, Reason: "failed to read " + candidate, Err: err}
		}
		def := f.truncate(candidate, content)
		snapshot.Definition = &def
		snapshot.ComponentDir = path.Dir(candidate)
		if snapshot.ComponentDir == "." {
			snapshot.ComponentDir = ""
		}
		break
	}

	dirs := []string{"", "src"}
	if snapshot.Definition != nil {
		dirs = []string{snapshot.ComponentDir}
	}

	for _, dir := range dirs {
		if len(snapshot.Files) >= f.maxFiles {
			break
		}
		if err := f.readSources(ctx, host, repo, dir, snapshot); err != nil {
			return nil, &RepositoryAccessError{URL: repoURL, Reason: "failed to list " + displayDir(dir), Err: err}
		}
	}

	if snapshot.Definition == nil && len(snapshot.Files) == 0 {
		return nil, &RepositoryAccessError{URL: repoURL, Reason: "no component definition or source files found"}
	}

	f.log.Debug().
		Str("repo", repo.String()).
		Bool("has_definition", snapshot.Definition != nil).
		Int("files", len(snapshot.Files)).
		Msg("Fetched repository snapshot")

	return snapshot, nil
}

func (f *Fetcher) readSources(ctx context.Context, host Host, repo Repo, dir string, snapshot *Snapshot) error {
	entries, err := host.ListDir(ctx, repo, dir)
	if errors.Is(err, ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir || !isSourceFile(e.Path) {
			continue
		}
		if snapshot.Definition != nil && e.Path == snapshot.Definition.Path {
			continue
		}
		paths = append(paths, e.Path)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if len(snapshot.Files) >= f.maxFiles {
			break
		}
		content, err := host.ReadFile(ctx, repo, p)
		if errors.Is(err, ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		snapshot.Files = append(snapshot.Files, f.truncate(p, content))
	}
	return nil
}

func (f *Fetcher) truncate(p, content string) File {
	if len(content) <= f.maxFileBytes {
		return File{Path: p, Content: content}
	}
	// Cut on a rune boundary so the prompt stays valid UTF-8.
	n := f.maxFileBytes
	for n > 0 && !utf8.RuneStart(content[n]) {
		n--
	}
	return File{Path: p, Content: content[:n] + truncationMarker, Truncated: true}
}

func isSourceFile(p string) bool {
	name := path.Base(p)
	if strings.Contains(p, "_generated/") || strings.HasSuffix(name, ".d.ts") {
		return false
	}
	if strings.Contains(name, ".test.") || strings.Contains(name, ".spec.") {
		return false
	}
	switch path.Ext(name) {
	case ".ts", ".js":
		return true
	}
	return false
}

func displayDir(dir string) string {
	if dir == "" {
		return "repository root"
	}
	return dir
}

func hostname(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
