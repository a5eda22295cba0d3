package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leozw/mantenapp/internal/api/middleware"
	"github.com/leozw/mantenapp/internal/core"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the unauthenticated operational endpoints.
type Handler struct {
	database Pinger
	cache    Pinger
	logger   *zap.Logger
}

func NewHandler(database, cache Pinger, logger *zap.Logger) *Handler {
	return &Handler{
		database: database,
		cache:    cache,
		logger:   logger,
	}
}

type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalCount  int  `json:"totalCount"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// pageParams reads page and limit query parameters, clamping them to sane
// bounds, and returns the matching offset.
func pageParams(c *gin.Context) (page, limit, offset int) {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err = strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit, (page - 1) * limit
}

func newPagination(page, limit, total int) Pagination {
	totalPages := (total + limit - 1) / limit
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalCount:  total,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// intQuery parses a positive integer query parameter, falling back to def
// and capping at max.
func intQuery(c *gin.Context, key string, def, max int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 1 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func currentUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserID)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// auditor writes audit_logs rows for mutations. A failed write is logged and
// never fails the request.
type auditor struct {
	store  AuditStore
	logger *zap.Logger
}

func (a auditor) record(c *gin.Context, action, resource, resourceID string, details core.JSONB) {
	entry := &core.AuditLog{
		ID:         uuid.New().String(),
		UserID:     currentUserID(c),
		Action:     action,
		Resource:   resource,
		ResourceID: optionalString(resourceID),
		Details:    details,
		IPAddress:  optionalString(c.ClientIP()),
		UserAgent:  optionalString(c.Request.UserAgent()),
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.store.CreateAuditLog(c.Request.Context(), entry); err != nil {
		a.logger.Warn("Failed to write audit log",
			zap.String("action", action),
			zap.String("resource", resource),
			zap.Error(err),
		)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.database.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.String("dependency", "database"), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  "database connection failed",
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", "redis"), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  "cache connection failed",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
	})
}
