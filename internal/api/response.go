// Package api holds helpers shared by the public and admin HTTP handlers.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimd54/component-directory/internal/ai"
	"github.com/aimd54/component-directory/internal/npm"
	"github.com/aimd54/component-directory/internal/repository"
	"github.com/aimd54/component-directory/internal/service/catalog"
	"github.com/aimd54/component-directory/internal/service/refresh"
	"github.com/aimd54/component-directory/internal/service/review"
	"github.com/aimd54/component-directory/internal/service/settings"
	"github.com/aimd54/component-directory/internal/source"
)

// ErrorResponse sends a standardized error response.
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}

// StatusFor maps a service error to an HTTP status and a client-facing message.
// Unrecognized errors become 500 with a generic message.
func StatusFor(err error) (int, string) {
	var (
		parseErr    *review.ParseError
		providerErr *ai.ProviderError
		accessErr   *source.RepositoryAccessError
		fetchErr    *npm.FetchError
	)

	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "package not found"
	case errors.Is(err, catalog.ErrDuplicatePackage),
		errors.Is(err, review.ErrReviewInProgress),
		errors.Is(err, refresh.ErrRunInProgress):
		return http.StatusConflict, err.Error()
	case errors.Is(err, catalog.ErrUnknownPackage),
		errors.Is(err, catalog.ErrNotFeaturable),
		errors.Is(err, review.ErrNoRepositoryURL):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, catalog.ErrInvalidName),
		errors.Is(err, catalog.ErrInvalidStatus),
		errors.Is(err, catalog.ErrInvalidVisibility),
		errors.Is(err, settings.ErrInvalidSetting):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &parseErr),
		errors.As(err, &providerErr),
		errors.As(err, &accessErr),
		errors.As(err, &fetchErr):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// ParseID extracts and validates the numeric ID URL parameter.
func ParseID(c *gin.Context) (uint, error) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid ID: %s", idStr)
	}
	return uint(id), nil
}

// ParseLimit extracts and validates the limit query parameter.
func ParseLimit(c *gin.Context, defaultLimit int) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %s", limitStr)
	}

	if limit < 1 {
		return 0, fmt.Errorf("limit must be greater than 0")
	}

	if limit > 1000 {
		return 0, fmt.Errorf("limit cannot exceed 1000")
	}

	return limit, nil
}

// ParseOffset extracts and validates the offset query parameter.
func ParseOffset(c *gin.Context) (int, error) {
	offsetStr := c.Query("offset")
	if offsetStr == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(offsetStr)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid offset parameter: %s", offsetStr)
	}
	return offset, nil
}
