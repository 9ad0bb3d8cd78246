package source

import "context"

// Entry is one item of a directory listing.
type Entry struct {
	Path  string
	IsDir bool
}

// Host reads repository contents from one code host. Missing paths are reported as
// ErrNotExist so callers can try candidate locations.
type Host interface {
	ReadFile(ctx context.Context, repo Repo, path string) (string, error)
	ListDir(ctx context.Context, repo Repo, dir string) ([]Entry, error)
}
