package mocks

import (
	"context"
	"sync"

	"github.com/aimd54/component-directory/internal/ai"
	"github.com/aimd54/component-directory/internal/models"
	"github.com/aimd54/component-directory/internal/npm"
	"github.com/aimd54/component-directory/internal/service/policy"
	"github.com/aimd54/component-directory/internal/source"
)

// MockNPMClient is a simple mock for the npm registry client.
type MockNPMClient struct {
	FetchFunc func(ctx context.Context, name string) (*npm.PackageInfo, error)

	mu    sync.Mutex
	calls []string
}

func (m *MockNPMClient) Fetch(ctx context.Context, name string) (*npm.PackageInfo, error) {
	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()

	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, name)
	}
	return &npm.PackageInfo{Name: name, Version: "1.0.0"}, nil
}

// Calls returns the package names fetched so far.
func (m *MockNPMClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockSourceFetcher is a simple mock for the repository snapshot fetcher.
type MockSourceFetcher struct {
	FetchFunc func(ctx context.Context, repoURL string) (*source.Snapshot, error)
}

func (m *MockSourceFetcher) Fetch(ctx context.Context, repoURL string) (*source.Snapshot, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, repoURL)
	}
	return &source.Snapshot{
		Definition: &source.File{Path: "convex.config.ts", Content: "export default defineComponent(\"mock\");"},
	}, nil
}

// MockGenerator is a simple mock for the AI adapter.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, req ai.Request) (*ai.Result, error)
	Requests     []ai.Request
}

func (m *MockGenerator) Generate(ctx context.Context, req ai.Request) (*ai.Result, error) {
	m.Requests = append(m.Requests, req)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return &ai.Result{Text: "", Provider: "mock", Model: "mock-model"}, nil
}

// MockNotifier records notifications instead of sending them.
type MockNotifier struct {
	mu        sync.Mutex
	Reviews   []policy.Decision
	Runs      []models.RefreshLog
	ReturnErr error
}

func (m *MockNotifier) NotifyReview(_ *models.Package, decision policy.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reviews = append(m.Reviews, decision)
	return m.ReturnErr
}

func (m *MockNotifier) NotifyRefreshRun(log *models.RefreshLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Runs = append(m.Runs, *log)
	return m.ReturnErr
}
