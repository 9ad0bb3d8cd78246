package source

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitHubHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/repos/acme/widget/contents/convex.config.ts":
			_ = json.NewEncoder(w).Encode(map[string]string{
				"type":     "file",
				"path":     "convex.config.ts",
				"encoding": "base64",
				"content":  base64.StdEncoding.EncodeToString([]byte("defineComponent(\"widget\")")),
			})
		case "/repos/acme/widget/contents/src":
			_ = json.NewEncoder(w).Encode([]map[string]string{
				{"type": "file", "path": "src/lib.ts"},
				{"type": "dir", "path": "src/component"},
			})
		case "/repos/acme/private/contents/convex.config.ts":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"Resource not accessible"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
		}
	}))
	defer server.Close()

	host, err := NewGitHubHost(context.Background(), "token", server.URL)
	require.NoError(t, err)

	ctx := context.Background()
	repo := Repo{Host: "github.com", Path: "acme/widget/tree/main"}

	content, err := host.ReadFile(ctx, repo, "convex.config.ts")
	require.NoError(t, err)
	assert.Equal(t, "defineComponent(\"widget\")", content)

	entries, err := host.ListDir(ctx, repo, "src")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Path: "src/lib.ts"}, {Path: "src/component", IsDir: true}}, entries)

	_, err = host.ReadFile(ctx, repo, "missing.ts")
	assert.True(t, errors.Is(err, ErrNotExist))

	_, err = host.ReadFile(ctx, Repo{Host: "github.com", Path: "acme/private"}, "convex.config.ts")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotExist))
}

func TestGitLabHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.EscapedPath() {
		case "/api/v4/projects/group%2Fwidget/repository/files/src%2Fcomponent%2Fconvex.config.ts/raw":
			_, _ = w.Write([]byte("defineComponent(\"widget\")"))
		case "/api/v4/projects/group%2Fwidget/repository/tree":
			assert.Equal(t, "src/component", r.URL.Query().Get("path"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[
				{"id": "a1", "name": "lib.ts", "type": "blob", "path": "src/component/lib.ts", "mode": "100644"},
				{"id": "b2", "name": "_generated", "type": "tree", "path": "src/component/_generated", "mode": "040000"}
			]`))
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"404 File Not Found"}`))
		}
	}))
	defer server.Close()

	host, err := NewGitLabHost("token", server.URL)
	require.NoError(t, err)

	ctx := context.Background()
	repo := Repo{Host: "gitlab.com", Path: "group/widget"}

	content, err := host.ReadFile(ctx, repo, "src/component/convex.config.ts")
	require.NoError(t, err)
	assert.Equal(t, "defineComponent(\"widget\")", content)

	entries, err := host.ListDir(ctx, repo, "src/component")
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Path: "src/component/lib.ts"},
		{Path: "src/component/_generated", IsDir: true},
	}, entries)

	_, err = host.ReadFile(ctx, repo, "convex.config.ts")
	assert.True(t, errors.Is(err, ErrNotExist))
}
