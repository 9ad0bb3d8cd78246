//nolint:noctx // Test file uses http.NewRequest for simplicity
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/component-directory/internal/ai"
	"github.com/aimd54/component-directory/internal/config"
	"github.com/aimd54/component-directory/internal/models"
	"github.com/aimd54/component-directory/internal/npm"
	"github.com/aimd54/component-directory/internal/repository"
	"github.com/aimd54/component-directory/internal/service/catalog"
	"github.com/aimd54/component-directory/internal/service/refresh"
	"github.com/aimd54/component-directory/internal/service/review"
	"github.com/aimd54/component-directory/internal/service/settings"
	"github.com/aimd54/component-directory/pkg/logger"
	"github.com/aimd54/component-directory/test/mocks"
)

type testEnv struct {
	router    *gin.Engine
	packages  *repository.PackageRepository
	logs      *repository.RefreshLogRepository
	settings  *repository.SettingsRepository
	generator *mocks.MockGenerator
	npm       *mocks.MockNPMClient
	cache     *mocks.MockCache
}

func passingVerdict() string {
	var b strings.Builder
	b.WriteString("SUMMARY: Follows the component conventions.\n")
	for _, key := range review.DefaultRubric().CriticalKeys() {
		fmt.Fprintf(&b, "CRITERION: %s | PASS | ok\n", key)
	}
	return b.String()
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := mocks.NewTestDB(t)
	log := logger.Nop()
	env := &testEnv{
		packages: repository.NewPackageRepository(db),
		logs:     repository.NewRefreshLogRepository(db),
		settings: repository.NewSettingsRepository(db),
		generator: &mocks.MockGenerator{
			GenerateFunc: func(_ context.Context, req ai.Request) (*ai.Result, error) {
				return &ai.Result{Text: passingVerdict(), Provider: "anthropic", Model: "claude-test"}, nil
			},
		},
		npm:   &mocks.MockNPMClient{},
		cache: mocks.NewMockCache(),
	}

	notifier := &mocks.MockNotifier{}
	catalogService := catalog.NewServiceWithInterfaces(env.packages, env.npm, log)
	reviewService := review.NewServiceWithInterfaces(env.packages, env.settings, &mocks.MockSourceFetcher{}, env.generator, notifier, review.DefaultRubric(), log)
	refreshService := refresh.NewServiceWithInterfaces(&config.RefreshConfig{Concurrency: 2}, env.packages, env.logs, env.settings, env.npm, env.cache, notifier, log)
	settingsService := settings.NewServiceWithStore(env.settings, log)

	handler := NewHandlerWithInterfaces(catalogService, reviewService, refreshService, env.logs, settingsService, log)

	gin.SetMode(gin.TestMode)
	env.router = gin.New()
	handler.Register(env.router.Group("/api/v1/admin"))
	return env
}

func (e *testEnv) seed(t *testing.T, name string, mutate func(*models.Package)) *models.Package {
	t.Helper()
	pkg := &models.Package{
		Name:           name,
		RepositoryURL:  "https://github.com/acme/" + name,
		SubmittedAt:    time.Now().UTC(),
		ReviewStatus:   models.ReviewStatusPending,
		Visibility:     models.VisibilityVisible,
		AIReviewStatus: models.AIReviewNotReviewed,
	}
	if mutate != nil {
		mutate(pkg)
	}
	require.NoError(t, e.packages.Create(context.Background(), pkg))
	return pkg
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestListPackages_Filters(t *testing.T) {
	env := setupTestEnv(t)
	env.seed(t, "pending-one", nil)
	env.seed(t, "approved-one", func(p *models.Package) { p.ReviewStatus = models.ReviewStatusApproved })

	w := env.do(t, "GET", "/api/v1/admin/packages?reviewStatus=pending", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Packages []models.Package `json:"packages"`
		Total    int64            `json:"total"`
	}
	decode(t, w, &response)
	assert.Equal(t, int64(1), response.Total)
	assert.Equal(t, "pending-one", response.Packages[0].Name)

	w = env.do(t, "GET", "/api/v1/admin/packages?reviewStatus=published", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetStatus_RecordsAdminUser(t *testing.T) {
	env := setupTestEnv(t)
	pkg := env.seed(t, "pkg", nil)

	w := env.do(t, "POST", fmt.Sprintf("/api/v1/admin/packages/%d/status", pkg.ID),
		`{"status":"approved","notes":"looks good"}`, "X-Admin-User", "alice")
	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Package models.Package `json:"package"`
	}
	decode(t, w, &response)
	assert.Equal(t, models.ReviewStatusApproved, response.Package.ReviewStatus)
	assert.Equal(t, "alice", response.Package.ReviewedBy)

	w = env.do(t, "POST", fmt.Sprintf("/api/v1/admin/packages/%d/status", pkg.ID), `{"status":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "POST", "/api/v1/admin/packages/999/status", `{"status":"approved"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetFeaturedAndVisibility(t *testing.T) {
	env := setupTestEnv(t)
	pending := env.seed(t, "pending", nil)
	listed := env.seed(t, "listed", func(p *models.Package) { p.ReviewStatus = models.ReviewStatusApproved })

	w := env.do(t, "POST", fmt.Sprintf("/api/v1/admin/packages/%d/featured", pending.ID), `{"featured":true}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(t, "POST", fmt.Sprintf("/api/v1/admin/packages/%d/featured", listed.ID), `{"featured":true}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "POST", fmt.Sprintf("/api/v1/admin/packages/%d/featured", listed.ID), `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "POST", fmt.Sprintf("/api/v1/admin/packages/%d/visibility", listed.ID), `{"visibility":"hidden"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	got, err := env.packages.GetByID(context.Background(), listed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityHidden, got.Visibility)
	assert.False(t, got.Featured)
}

func TestDeletePackage(t *testing.T) {
	env := setupTestEnv(t)
	pkg := env.seed(t, "pkg", nil)

	w := env.do(t, "DELETE", fmt.Sprintf("/api/v1/admin/packages/%d", pkg.ID), "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, "DELETE", fmt.Sprintf("/api/v1/admin/packages/%d", pkg.ID), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type verdictBody struct {
	Status string `json:"status"`
}

type decisionBody struct {
	Changed bool   `json:"changed"`
	To      string `json:"to"`
}

func TestReviewPackage(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.settings.Set(ctx, map[string]any{models.SettingAutoApproveOnPass: true}, "admin"))
	pkg := env.seed(t, "pkg", nil)

	w := env.do(t, "POST", fmt.Sprintf("/api/v1/admin/packages/%d/review", pkg.ID),
		`{"provider":"anthropic","apiKey":"sk-test"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response struct {
		Package  models.Package `json:"package"`
		Verdict  verdictBody    `json:"verdict"`
		Decision decisionBody   `json:"decision"`
	}
	decode(t, w, &response)
	assert.Equal(t, models.AIReviewPassed, response.Verdict.Status)
	assert.True(t, response.Decision.Changed)
	assert.Equal(t, models.ReviewStatusApproved, response.Decision.To)
	assert.Equal(t, models.ReviewStatusApproved, response.Package.ReviewStatus)
	assert.Equal(t, models.AutomationReviewer, response.Package.ReviewedBy)

	require.Len(t, env.generator.Requests, 1)
	assert.Equal(t, "sk-test", env.generator.Requests[0].APIKey)
}

func TestReviewPackage_Errors(t *testing.T) {
	env := setupTestEnv(t)
	noRepo := env.seed(t, "no-repo", func(p *models.Package) { p.RepositoryURL = "" })
	started := time.Now().UTC()
	busy := env.seed(t, "busy", func(p *models.Package) {
		p.AIReviewStatus = models.AIReviewReviewing
		p.AIReviewStarted = &started
	})
	broken := env.seed(t, "broken", nil)

	w := env.do(t, "POST", fmt.Sprintf("/api/v1/admin/packages/%d/review", noRepo.ID), "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(t, "POST", fmt.Sprintf("/api/v1/admin/packages/%d/review", busy.ID), "")
	assert.Equal(t, http.StatusConflict, w.Code)

	env.generator.GenerateFunc = func(_ context.Context, req ai.Request) (*ai.Result, error) {
		return nil, &ai.ProviderError{Provider: "anthropic", StatusCode: 529, Err: errors.New("overloaded")}
	}
	w = env.do(t, "POST", fmt.Sprintf("/api/v1/admin/packages/%d/review", broken.ID), "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	got, err := env.packages.GetByID(context.Background(), broken.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AIReviewError, got.AIReviewStatus)
	assert.Equal(t, models.ReviewStatusPending, got.ReviewStatus)
}

func TestRunRefreshAndLogs(t *testing.T) {
	env := setupTestEnv(t)
	env.seed(t, "one", nil)
	env.seed(t, "two", nil)
	env.npm.FetchFunc = func(_ context.Context, name string) (*npm.PackageInfo, error) {
		if name == "two" {
			return nil, &npm.FetchError{Kind: npm.KindNotFound, Package: name, StatusCode: 404}
		}
		return &npm.PackageInfo{Name: name, Version: "3.0.0"}, nil
	}

	w := env.do(t, "POST", "/api/v1/admin/refresh", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var runResponse struct {
		Run models.RefreshLog `json:"run"`
	}
	decode(t, w, &runResponse)
	assert.Equal(t, models.RefreshStatusCompleted, runResponse.Run.Status)
	assert.Equal(t, 2, runResponse.Run.PackagesProcessed)
	assert.Equal(t, 1, runResponse.Run.PackagesFailed)

	w = env.do(t, "GET", "/api/v1/admin/refresh-logs", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var listResponse struct {
		Runs  []models.RefreshLog `json:"runs"`
		Total int64               `json:"total"`
	}
	decode(t, w, &listResponse)
	assert.Equal(t, int64(1), listResponse.Total)

	w = env.do(t, "GET", fmt.Sprintf("/api/v1/admin/refresh-logs/%d", runResponse.Run.ID), "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/api/v1/admin/refresh-logs/999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunRefresh_InProgress(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	acquired, err := env.cache.AcquireLock(ctx, "refresh:run-lock", "someone-else", time.Hour)
	require.NoError(t, err)
	require.True(t, acquired)

	w := env.do(t, "POST", "/api/v1/admin/refresh", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRefreshPackage(t *testing.T) {
	env := setupTestEnv(t)
	pkg := env.seed(t, "pkg", nil)

	w := env.do(t, "POST", fmt.Sprintf("/api/v1/admin/packages/%d/refresh", pkg.ID), "")
	assert.Equal(t, http.StatusOK, w.Code)

	env.npm.FetchFunc = func(_ context.Context, name string) (*npm.PackageInfo, error) {
		return nil, &npm.FetchError{Kind: npm.KindTransient, Package: name, Err: errors.New("timeout")}
	}
	w = env.do(t, "POST", fmt.Sprintf("/api/v1/admin/packages/%d/refresh", pkg.ID), "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSettings(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, "GET", "/api/v1/admin/settings", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Settings models.AdminSettings `json:"settings"`
	}
	decode(t, w, &response)
	assert.Equal(t, models.DefaultAdminSettings(), response.Settings)

	w = env.do(t, "PUT", "/api/v1/admin/settings", `{"autoApproveOnPass":true,"refreshIntervalDays":2}`, "X-Admin-User", "bob")
	assert.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &response)
	assert.True(t, response.Settings.AutoApproveOnPass)
	assert.Equal(t, 2, response.Settings.RefreshIntervalDays)

	w = env.do(t, "PUT", "/api/v1/admin/settings", `{"refreshIntervalDays":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "PUT", "/api/v1/admin/settings", `{"unknown":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStats(t *testing.T) {
	env := setupTestEnv(t)
	env.seed(t, "a", nil)
	env.seed(t, "b", func(p *models.Package) { p.ReviewStatus = models.ReviewStatusApproved })

	w := env.do(t, "GET", "/api/v1/admin/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Stats repository.PackageStats `json:"stats"`
	}
	decode(t, w, &response)
	assert.Equal(t, int64(2), response.Stats.Total)
	assert.Equal(t, int64(1), response.Stats.Listed)
}

func TestAdminUserMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(AdminUser())
	router.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, adminUser(c))
	})

	req, _ := http.NewRequest("GET", "/whoami", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "admin", w.Body.String())

	req, _ = http.NewRequest("GET", "/whoami", http.NoBody)
	req.Header.Set("X-Admin-User", "  carol ")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "carol", w.Body.String())
}
