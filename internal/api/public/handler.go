// Package public provides the unauthenticated REST API of the directory: listed
// packages, submissions and the CSV export.
package public

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimd54/component-directory/internal/api"
	"github.com/aimd54/component-directory/internal/models"
	"github.com/aimd54/component-directory/internal/repository"
	"github.com/aimd54/component-directory/internal/service/catalog"
	"github.com/aimd54/component-directory/internal/service/export"
	"github.com/aimd54/component-directory/pkg/logger"
)

// CatalogService is the catalog functionality the public API needs.
type CatalogService interface {
	Submit(ctx context.Context, req catalog.SubmitRequest) (*models.Package, error)
	List(ctx context.Context, filter repository.PackageFilter) ([]models.Package, int64, error)
	ListListed(ctx context.Context) ([]models.Package, error)
	GetListed(ctx context.Context, id uint) (*models.Package, error)
}

// Handler handles public API requests.
type Handler struct {
	catalog CatalogService
	log     *logger.Logger
}

// NewHandler creates a new public handler.
func NewHandler(catalogService *catalog.Service, log *logger.Logger) *Handler {
	return NewHandlerWithInterfaces(catalogService, log)
}

// NewHandlerWithInterfaces creates a new public handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(catalogService CatalogService, log *logger.Logger) *Handler {
	return &Handler{catalog: catalogService, log: log}
}

// Register mounts the public routes on the given group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/packages", h.ListPackages)
	rg.GET("/packages/:id", h.GetPackage)
	rg.POST("/packages", h.SubmitPackage)
	rg.GET("/export/packages.csv", h.ExportCSV)
}

// ListPackages returns listed packages.
// GET /api/v1/packages?search=rate&sort=downloads&featured=true&limit=50&offset=0.
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
		ListedOnly: true,
		Search:     strings.TrimSpace(c.Query("search")),
		Sort:       c.DefaultQuery("sort", "name"),
		Limit:      limit,
		Offset:     offset,
	}
	if c.Query("featured") == "true" {
		featured := true
		filter.Featured = &featured
	}

	packages, total, err := h.catalog.List(c.Request.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list packages")
		api.ErrorResponse(c, http.StatusInternalServerError, "Failed to retrieve packages")
		return
	}

	views := make([]models.Package, len(packages))
	for i := range packages {
		views[i] = publicView(packages[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"packages":     views,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
		"generated_at": time.Now().UTC(),
	})
}

// GetPackage returns one listed package.
// GET /api/v1/packages/:id.
func (h *Handler) GetPackage(c *gin.Context) {
	id, err := api.ParseID(c)
	if err != nil {
		api.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	pkg, err := h.catalog.GetListed(c.Request.Context(), id)
	if err != nil {
		status, msg := api.StatusFor(err)
		api.ErrorResponse(c, status, msg)
		return
	}

	c.JSON(http.StatusOK, gin.H{"package": publicView(*pkg)})
}

// SubmitPackage accepts a package for review.
// POST /api/v1/packages.
func (h *Handler) SubmitPackage(c *gin.Context) {
	var req catalog.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	pkg, err := h.catalog.Submit(c.Request.Context(), req)
	if err != nil {
		status, msg := api.StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("package", req.Name).Msg("Failed to submit package")
		}
		api.ErrorResponse(c, status, msg)
		return
	}

	h.log.Info().Uint("package_id", pkg.ID).Str("package", pkg.Name).Msg("Accepted package submission")
	c.JSON(http.StatusCreated, gin.H{"package": publicView(*pkg)})
}

// ExportCSV streams every listed package as CSV.
// GET /api/v1/export/packages.csv.
func (h *Handler) ExportCSV(c *gin.Context) {
	packages, err := h.catalog.ListListed(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load packages for export")
		api.ErrorResponse(c, http.StatusInternalServerError, "Failed to export packages")
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="packages.csv"`)
	c.Status(http.StatusOK)

	if err := export.WriteCSV(c.Writer, packages); err != nil {
		h.log.Error().Err(err).Msg("Failed to write CSV export")
		return
	}

	h.log.Info().Int("packages", len(packages)).Msg("Exported packages")
}

// publicView strips submitter and moderation internals.
func publicView(pkg models.Package) models.Package {
	pkg.SubmitterEmail = ""
	pkg.ReviewNotes = ""
	pkg.AIReviewError = ""
	pkg.RefreshError = ""
	pkg.AIReviewStarted = nil
	return pkg
}
