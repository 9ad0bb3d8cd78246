// Package admin provides the moderation REST API: package moderation, AI reviews,
// refresh runs, settings and stats.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimd54/component-directory/internal/api"
	"github.com/aimd54/component-directory/internal/models"
	"github.com/aimd54/component-directory/internal/repository"
	"github.com/aimd54/component-directory/internal/service/catalog"
	"github.com/aimd54/component-directory/internal/service/refresh"
	"github.com/aimd54/component-directory/internal/service/review"
	"github.com/aimd54/component-directory/internal/service/settings"
	"github.com/aimd54/component-directory/pkg/logger"
)

const (
	adminUserHeader = "X-Admin-User"
	adminUserKey    = "admin_user"
	defaultAdmin    = "admin"
)

// CatalogService is the moderation functionality of the catalog.
type CatalogService interface {
	List(ctx context.Context, filter repository.PackageFilter) ([]models.Package, int64, error)
	Get(ctx context.Context, id uint) (*models.Package, error)
	SetStatus(ctx context.Context, id uint, status, reviewer, notes string) (*models.Package, error)
	SetFeatured(ctx context.Context, id uint, featured bool) (*models.Package, error)
	SetVisibility(ctx context.Context, id uint, visibility string) (*models.Package, error)
	Delete(ctx context.Context, id uint) error
	Stats(ctx context.Context) (*repository.PackageStats, error)
}

// ReviewService runs AI reviews.
type ReviewService interface {
	Review(ctx context.Context, packageID uint, opts review.Options) (*review.Outcome, error)
}

// RefreshService runs npm refreshes.
type RefreshService interface {
	RunManual(ctx context.Context) (*models.RefreshLog, error)
	RefreshPackage(ctx context.Context, id uint) (*models.Package, error)
}

// RefreshLogStore reads run records.
type RefreshLogStore interface {
	List(ctx context.Context, limit, offset int) ([]models.RefreshLog, int64, error)
	GetByID(ctx context.Context, id uint) (*models.RefreshLog, error)
}

// SettingsService reads and updates admin settings.
type SettingsService interface {
	Get(ctx context.Context) (models.AdminSettings, error)
	Update(ctx context.Context, raw map[string]json.RawMessage, updatedBy string) (models.AdminSettings, error)
}

// Handler handles admin API requests.
type Handler struct {
	catalog  CatalogService
	review   ReviewService
	refresh  RefreshService
	logs     RefreshLogStore
	settings SettingsService
	log      *logger.Logger
}

// NewHandler creates a new admin handler.
func NewHandler(
	catalogService *catalog.Service,
	reviewService *review.Service,
	refreshService *refresh.Service,
	logs *repository.RefreshLogRepository,
	settingsService *settings.Service,
	log *logger.Logger,
) *Handler {
	return NewHandlerWithInterfaces(catalogService, reviewService, refreshService, logs, settingsService, log)
}

// NewHandlerWithInterfaces creates a new admin handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(
	catalogService CatalogService,
	reviewService ReviewService,
	refreshService RefreshService,
	logs RefreshLogStore,
	settingsService SettingsService,
	log *logger.Logger,
) *Handler {
	return &Handler{
		catalog:  catalogService,
		review:   reviewService,
		refresh:  refreshService,
		logs:     logs,
		settings: settingsService,
		log:      log,
	}
}

// Register mounts the admin routes on the given group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.Use(AdminUser())

	rg.GET("/packages", h.ListPackages)
	rg.GET("/packages/:id", h.GetPackage)
	rg.POST("/packages/:id/status", h.SetStatus)
	rg.POST("/packages/:id/featured", h.SetFeatured)
	rg.POST("/packages/:id/visibility", h.SetVisibility)
	rg.DELETE("/packages/:id", h.DeletePackage)
	rg.POST("/packages/:id/review", h.ReviewPackage)
	rg.POST("/packages/:id/refresh", h.RefreshPackage)

	rg.POST("/refresh", h.RunRefresh)
	rg.GET("/refresh-logs", h.ListRefreshLogs)
	rg.GET("/refresh-logs/:id", h.GetRefreshLog)

	rg.GET("/settings", h.GetSettings)
	rg.PUT("/settings", h.UpdateSettings)
	rg.GET("/stats", h.GetStats)
}

// AdminUser records the acting reviewer from the X-Admin-User header.
func AdminUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := strings.TrimSpace(c.GetHeader(adminUserHeader))
		if user == "" {
			user = defaultAdmin
		}
		c.Set(adminUserKey, user)
		c.Next()
	}
}

func adminUser(c *gin.Context) string {
	if user := c.GetString(adminUserKey); user != "" {
		return user
	}
	return defaultAdmin
}

// respondError maps a service error to a response, logging unexpected ones.
func (h *Handler) respondError(c *gin.Context, err error, msg string) {
	status, clientMsg := api.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
	}
	api.ErrorResponse(c, status, clientMsg)
}

// ListPackages returns packages in any state.
// GET /api/v1/admin/packages?reviewStatus=pending&aiReviewStatus=failed&visibility=visible&search=x&sort=name&limit=50&offset=0.
func (h *Handler) ListPackages(c *gin.Context) {
	limit, err := api.ParseLimit(c, 50)
	if err != nil {
		api.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := api.ParseOffset(c)
	if err != nil {
		api.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	filter := repository.PackageFilter{
		ReviewStatus:   c.Query("reviewStatus"),
		Visibility:     c.Query("visibility"),
		AIReviewStatus: c.Query("aiReviewStatus"),
		Search:         strings.TrimSpace(c.Query("search")),
		Sort:           c.Query("sort"),
		Limit:          limit,
		Offset:         offset,
	}
	if filter.ReviewStatus != "" && !models.ValidReviewStatus(filter.ReviewStatus) {
		api.ErrorResponse(c, http.StatusBadRequest, "invalid reviewStatus: "+filter.ReviewStatus)
		return
	}
	if filter.Visibility != "" && !models.ValidVisibility(filter.Visibility) {
		api.ErrorResponse(c, http.StatusBadRequest, "invalid visibility: "+filter.Visibility)
		return
	}

	packages, total, err := h.catalog.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err, "Failed to list packages")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"packages":     packages,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
		"generated_at": time.Now().UTC(),
	})
}

// GetPackage returns one package with its AI review details.
// GET /api/v1/admin/packages/:id.
func (h *Handler) GetPackage(c *gin.Context) {
	id, err := api.ParseID(c)
	if err != nil {
		api.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	pkg, err := h.catalog.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to get package")
		return
	}

	c.JSON(http.StatusOK, gin.H{"package": pkg})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// SetStatus records a moderation decision.
// POST /api/v1/admin/packages/:id/status.
func (h *Handler) SetStatus(c *gin.Context) {
	id, err := api.ParseID(c)
	if err != nil {
		api.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	pkg, err := h.catalog.SetStatus(c.Request.Context(), id, req.Status, adminUser(c), req.Notes)
	if err != nil {
		h.respondError(c, err, "Failed to set review status")
		return
	}

	c.JSON(http.StatusOK, gin.H{"package": pkg})
}

type featuredRequest struct {
	Featured *bool `json:"featured" binding:"required"`
}

// SetFeatured toggles the featured flag.
// POST /api/v1/admin/packages/:id/featured.
func (h *Handler) SetFeatured(c *gin.Context) {
	id, err := api.ParseID(c)
	if err != nil {
		api.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req featuredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	pkg, err := h.catalog.SetFeatured(c.Request.Context(), id, *req.Featured)
	if err != nil {
		h.respondError(c, err, "Failed to set featured")
		return
	}

	c.JSON(http.StatusOK, gin.H{"package": pkg})
}

type visibilityRequest struct {
	Visibility string `json:"visibility" binding:"required"`
}

// SetVisibility changes a package's visibility.
// POST /api/v1/admin/packages/:id/visibility.
func (h *Handler) SetVisibility(c *gin.Context) {
	id, err := api.ParseID(c)
	if err != nil {
		api.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	pkg, err := h.catalog.SetVisibility(c.Request.Context(), id, req.Visibility)
	if err != nil {
		h.respondError(c, err, "Failed to set visibility")
		return
	}

	c.JSON(http.StatusOK, gin.H{"package": pkg})
}

// DeletePackage removes a package.
// DELETE /api/v1/admin/packages/:id.
func (h *Handler) DeletePackage(c *gin.Context) {
	id, err := api.ParseID(c)
	if err != nil {
		api.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.catalog.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err, "Failed to delete package")
		return
	}

	h.log.Info().Uint("package_id", id).Str("admin", adminUser(c)).Msg("Deleted package")
	c.Status(http.StatusNoContent)
}

type reviewRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"apiKey"`
}

// ReviewPackage runs an AI review synchronously. The review is not cancelled if the
// client disconnects.
// POST /api/v1/admin/packages/:id/review.
func (h *Handler) ReviewPackage(c *gin.Context) {
	id, err := api.ParseID(c)
	if err != nil {
		api.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req reviewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			api.ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	ctx := context.WithoutCancel(c.Request.Context())
	outcome, err := h.review.Review(ctx, id, review.Options{
		Provider: req.Provider,
		Model:    req.Model,
		APIKey:   req.APIKey,
	})
	if err != nil {
		h.respondError(c, err, "AI review failed")
		return
	}

	h.log.Info().
		Uint("package_id", id).
		Str("admin", adminUser(c)).
		Str("verdict", outcome.Verdict.Status).
		Bool("status_changed", outcome.Decision.Changed).
		Msg("AI review completed")

	c.JSON(http.StatusOK, gin.H{
		"package": outcome.Package,
		"verdict": gin.H{
			"status":   outcome.Verdict.Status,
			"summary":  outcome.Verdict.Summary,
			"criteria": outcome.Verdict.Criteria,
		},
		"decision": gin.H{
			"changed": outcome.Decision.Changed,
			"from":    outcome.Decision.From,
			"to":      outcome.Decision.To,
			"reason":  outcome.Decision.Reason,
		},
	})
}

// RefreshPackage refreshes one package from npm.
// POST /api/v1/admin/packages/:id/refresh.
func (h *Handler) RefreshPackage(c *gin.Context) {
	id, err := api.ParseID(c)
	if err != nil {
		api.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	pkg, err := h.refresh.RefreshPackage(context.WithoutCancel(c.Request.Context()), id)
	if err != nil {
		h.respondError(c, err, "Failed to refresh package")
		return
	}

	c.JSON(http.StatusOK, gin.H{"package": pkg})
}

// RunRefresh runs a manual refresh of every non-archived package and returns the
// finished run log.
// POST /api/v1/admin/refresh.
func (h *Handler) RunRefresh(c *gin.Context) {
	h.log.Info().Str("admin", adminUser(c)).Msg("Manual refresh requested")

	runLog, err := h.refresh.RunManual(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		h.respondError(c, err, "Manual refresh failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"run": runLog})
}

// ListRefreshLogs returns recent refresh runs, newest first.
// GET /api/v1/admin/refresh-logs?limit=20&offset=0.
func (h *Handler) ListRefreshLogs(c *gin.Context) {
	limit, err := api.ParseLimit(c, 20)
	if err != nil {
		api.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := api.ParseOffset(c)
	if err != nil {
		api.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	logs, total, err := h.logs.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err, "Failed to list refresh logs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":   logs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetRefreshLog returns one refresh run.
// GET /api/v1/admin/refresh-logs/:id.
func (h *Handler) GetRefreshLog(c *gin.Context) {
	id, err := api.ParseID(c)
	if err != nil {
		api.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	runLog, err := h.logs.GetByID(c.Request.Context(), id)
	if err != nil {
		status, msg := api.StatusFor(err)
		if status == http.StatusNotFound {
			msg = "refresh log not found"
		}
		api.ErrorResponse(c, status, msg)
		return
	}

	c.JSON(http.StatusOK, gin.H{"run": runLog})
}

// GetSettings returns the admin settings.
// GET /api/v1/admin/settings.
func (h *Handler) GetSettings(c *gin.Context) {
	snapshot, err := h.settings.Get(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to load settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": snapshot})
}

// UpdateSettings applies a partial settings update.
// PUT /api/v1/admin/settings.
func (h *Handler) UpdateSettings(c *gin.Context) {
	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		api.ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	snapshot, err := h.settings.Update(c.Request.Context(), raw, adminUser(c))
	if err != nil {
		h.respondError(c, err, "Failed to update settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": snapshot})
}

// GetStats returns package counts by state.
// GET /api/v1/admin/stats.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.catalog.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to compute stats")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":        stats,
		"generated_at": time.Now().UTC(),
	})
}
