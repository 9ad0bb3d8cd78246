// Package npm fetches package metadata from the npm registry and downloads API.
package npm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aimd54/component-directory/internal/config"
)

const maxResponseBytes = 16 << 20

// PackageInfo is the denormalized registry data stored on a package.
type PackageInfo struct {
	Name            string
	Description     string
	Version         string
	License         string
	RepositoryURL   string
	HomepageURL     string
	NpmURL          string
	InstallCommand  string
	Collaborators   []string
	UnpackedSize    int64
	TotalFiles      int
	WeeklyDownloads int64
	LastPublish     *time.Time
}

// Client reads the npm registry.
type Client struct {
	registryURL  string
	downloadsURL string
	timeout      time.Duration
	httpClient   *http.Client
}

// NewClient creates a new npm client.
func NewClient(cfg *config.NPMConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		registryURL:  strings.TrimRight(cfg.RegistryURL, "/"),
		downloadsURL: strings.TrimRight(cfg.DownloadsURL, "/"),
		timeout:      timeout,
		httpClient:   &http.Client{},
	}
}

type registryDocument struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	DistTags    map[string]string          `json:"dist-tags"`
	Versions    map[string]registryVersion `json:"versions"`
	Time        map[string]string          `json:"time"`
	Maintainers []struct {
		Name string `json:"name"`
	} `json:"maintainers"`
	Repository json.RawMessage `json:"repository"`
	Homepage   string          `json:"homepage"`
	License    json.RawMessage `json:"license"`
}

type registryVersion struct {
	Description string          `json:"description"`
	License     json.RawMessage `json:"license"`
	Homepage    string          `json:"homepage"`
	Repository  json.RawMessage `json:"repository"`
	Dist        struct {
		UnpackedSize int64 `json:"unpackedSize"`
		FileCount    int   `json:"fileCount"`
	} `json:"dist"`
}

type downloadsPoint struct {
	Downloads int64 `json:"downloads"`
}

// Fetch returns the current registry metadata and last-week downloads for name.
func (c *Client) Fetch(ctx context.Context, name string) (*PackageInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &FetchError{Kind: KindMalformed, Package: name, Err: errors.New("empty package name")}
	}

	var doc registryDocument
	if err := c.getJSON(ctx, name, c.registryURL+"/"+url.PathEscape(name), &doc); err != nil {
		return nil, err
	}

	info, err := buildInfo(name, &doc)
	if err != nil {
		return nil, err
	}

	downloads, err := c.weeklyDownloads(ctx, name)
	if err != nil {
		return nil, err
	}
	info.WeeklyDownloads = downloads

	return info, nil
}

func (c *Client) weeklyDownloads(ctx context.Context, name string) (int64, error) {
	if c.downloadsURL == "" {
		return 0, nil
	}

	var point downloadsPoint
	err := c.getJSON(ctx, name, c.downloadsURL+"/downloads/point/last-week/"+name, &point)
	if err != nil {
		var fetchErr *FetchError
		// New packages have no download stats yet.
		if errors.As(err, &fetchErr) && fetchErr.IsNotFound() {
			return 0, nil
		}
		return 0, err
	}
	return point.Downloads, nil
}

func (c *Client) getJSON(ctx context.Context, name, endpoint string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &FetchError{Kind: KindMalformed, Package: name, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{Kind: KindTransient, Package: name, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &FetchError{Kind: KindNotFound, Package: name, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &FetchError{Kind: KindTransient, Package: name, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &FetchError{Kind: KindStatus, Package: name, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &FetchError{Kind: KindTransient, Package: name, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{Kind: KindMalformed, Package: name, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func buildInfo(name string, doc *registryDocument) (*PackageInfo, error) {
	if doc.Name == "" {
		return nil, &FetchError{Kind: KindMalformed, Package: name, Err: errors.New("registry document has no name")}
	}
	latest := doc.DistTags["latest"]
	if latest == "" {
		return nil, &FetchError{Kind: KindMalformed, Package: name, Err: errors.New("registry document has no latest version")}
	}
	version, ok := doc.Versions[latest]
	if !ok {
		return nil, &FetchError{Kind: KindMalformed, Package: name, Err: fmt.Errorf("latest version %s missing from versions", latest)}
	}

	info := &PackageInfo{
		Name:           doc.Name,
		Description:    firstNonEmpty(doc.Description, version.Description),
		Version:        latest,
		License:        firstNonEmpty(parseLicense(version.License), parseLicense(doc.License)),
		HomepageURL:    firstNonEmpty(doc.Homepage, version.Homepage),
		NpmURL:         "https://www.npmjs.com/package/" + doc.Name,
		InstallCommand: "npm install " + doc.Name,
		Collaborators:  make([]string, 0, len(doc.Maintainers)),
		UnpackedSize:   version.Dist.UnpackedSize,
		TotalFiles:     version.Dist.FileCount,
	}

	repo := parseRepository(doc.Repository)
	if repo == "" {
		repo = parseRepository(version.Repository)
	}
	info.RepositoryURL = NormalizeRepositoryURL(repo)

	for _, m := range doc.Maintainers {
		if m.Name != "" {
			info.Collaborators = append(info.Collaborators, m.Name)
		}
	}

	published := doc.Time[latest]
	if published == "" {
		published = doc.Time["modified"]
	}
	if published != "" {
		if t, err := time.Parse(time.RFC3339, published); err == nil {
			t = t.UTC()
			info.LastPublish = &t
		}
	}

	return info, nil
}

// parseLicense accepts both "MIT" and the legacy {"type": "MIT"} form.
func parseLicense(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.Type
	}
	return ""
}

// parseRepository accepts both a string and the {"type", "url"} object form.
func parseRepository(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		URL string `json:"url"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.URL
	}
	return ""
}

// NormalizeRepositoryURL turns the many package.json repository spellings into a plain
// https URL. Unrecognized values are returned trimmed.
func NormalizeRepositoryURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}

	for _, prefix := range []string{"github:", "gitlab:"} {
		if strings.HasPrefix(u, prefix) {
			host := strings.TrimSuffix(prefix, ":") + ".com"
			return "https://" + host + "/" + strings.TrimSuffix(strings.TrimPrefix(u, prefix), ".git")
		}
	}

	u = strings.TrimPrefix(u, "git+")
	switch {
	case strings.HasPrefix(u, "ssh://git@"):
		u = "https://" + strings.TrimPrefix(u, "ssh://git@")
	case strings.HasPrefix(u, "git@"):
		u = "https://" + strings.Replace(strings.TrimPrefix(u, "git@"), ":", "/", 1)
	case strings.HasPrefix(u, "git://"):
		u = "https://" + strings.TrimPrefix(u, "git://")
	case !strings.Contains(u, "://") && strings.Count(u, "/") == 1 && !strings.HasPrefix(u, "@"):
		// "owner/repo" shorthand defaults to GitHub.
		u = "https://github.com/" + u
	}

	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, ".git")
	return u
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
