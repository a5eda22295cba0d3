package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leozw/mantenapp/internal/api/respond"
	"github.com/leozw/mantenapp/internal/core"
	"github.com/leozw/mantenapp/internal/db"
	"github.com/leozw/mantenapp/internal/storage/redis"
)

const recentAlertWindow = 24 * time.Hour

// AlertHandler exposes alerts to operators. Status changes only ever happen
// here; ingestion never modifies an existing alert.
type AlertHandler struct {
	store  AlertStore
	audit  auditor
	cache  *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewAlertHandler(store AlertStore, audit AuditStore, cache *redis.Client, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		store:  store,
		audit:  auditor{store: audit, logger: logger},
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

type UpdateAlertRequest struct {
	Status core.AlertStatus `json:"status" binding:"required,oneof=active resolved dismissed"`
}

type BulkUpdateAlertsRequest struct {
	AlertIDs []string         `json:"alertIds" binding:"required,min=1,max=100,dive,uuid"`
	Status   core.AlertStatus `json:"status" binding:"required,oneof=active resolved dismissed"`
}

func (h *AlertHandler) List(c *gin.Context) {
	page, limit, offset := pageParams(c)

	filters := core.AlertFilters{
		UserID:   currentUserID(c),
		ClientID: c.Query("clientId"),
		Status:   core.AlertStatus(c.Query("status")),
		Severity: core.Severity(c.Query("severity")),
		Type:     core.AlertType(c.Query("type")),
		Limit:    limit,
		Offset:   offset,
	}

	var details []respond.FieldError
	if filters.Status != "" && !filters.Status.Valid() {
		details = append(details, respond.FieldError{Field: "status", Message: "must be one of active, resolved, dismissed", Code: "oneof"})
	}
	if filters.Severity != "" && filters.Severity.Rank() == 0 {
		details = append(details, respond.FieldError{Field: "severity", Message: "must be one of low, medium, high, critical", Code: "oneof"})
	}
	if filters.Type != "" && !filters.Type.Valid() {
		details = append(details, respond.FieldError{Field: "type", Message: "must be one of core_update, plugin_update, security, performance", Code: "oneof"})
	}
	if len(details) > 0 {
		respond.ErrorWithDetails(c, http.StatusBadRequest, "Invalid filters", details)
		return
	}

	alerts, total, err := h.store.ListAlerts(c.Request.Context(), filters)
	if err != nil {
		h.logger.Error("Failed to list alerts", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to list alerts")
		return
	}

	respond.OK(c, "", gin.H{
		"alerts":     alerts,
		"pagination": newPagination(page, limit, total),
	})
}

func (h *AlertHandler) Stats(c *gin.Context) {
	stats, err := h.store.AlertStats(c.Request.Context(), currentUserID(c), h.now().Add(-recentAlertWindow))
	if err != nil {
		h.logger.Error("Failed to compute alert stats", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to load alert statistics")
		return
	}

	respond.OK(c, "", gin.H{"stats": stats})
}

func (h *AlertHandler) Get(c *gin.Context) {
	alert, err := h.store.GetAlert(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		h.storeError(c, err, "Failed to load alert")
		return
	}

	respond.OK(c, "", gin.H{"alert": alert})
}

func (h *AlertHandler) UpdateStatus(c *gin.Context) {
	var req UpdateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	userID := currentUserID(c)

	if err := h.store.UpdateAlertStatus(ctx, id, userID, req.Status, h.now().UTC()); err != nil {
		h.storeError(c, err, "Failed to update alert")
		return
	}

	alert, err := h.store.GetAlert(ctx, id, userID)
	if err != nil {
		h.storeError(c, err, "Failed to load alert")
		return
	}

	h.audit.record(c, "update_status", "alert", id, core.JSONB{"status": req.Status})
	h.invalidateDashboard(c)

	respond.OK(c, "Alert updated successfully", gin.H{"alert": alert})
}

func (h *AlertHandler) BulkUpdate(c *gin.Context) {
	var req BulkUpdateAlertsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}

	updated, err := h.store.BulkUpdateAlertStatus(c.Request.Context(), req.AlertIDs, currentUserID(c), req.Status, h.now().UTC())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "One or more alerts not found")
			return
		}
		h.storeError(c, err, "Failed to update alerts")
		return
	}

	h.audit.record(c, "bulk_update_status", "alert", "", core.JSONB{
		"alertIds": req.AlertIDs,
		"status":   req.Status,
	})
	h.invalidateDashboard(c)

	respond.OK(c, "Alerts updated successfully", gin.H{"updatedCount": updated})
}

func (h *AlertHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.DeleteAlert(c.Request.Context(), id, currentUserID(c)); err != nil {
		h.storeError(c, err, "Failed to delete alert")
		return
	}

	h.audit.record(c, "delete", "alert", id, core.JSONB{})
	h.invalidateDashboard(c)

	respond.OK(c, "Alert deleted successfully", nil)
}

func (h *AlertHandler) storeError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "Alert not found")
	case errors.Is(err, db.ErrConflict):
		respond.Error(c, http.StatusConflict, "An active alert of this type already exists for the client")
	default:
		h.logger.Error(message, zap.String("alert_id", c.Param("id")), zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, message)
	}
}

func (h *AlertHandler) invalidateDashboard(c *gin.Context) {
	if err := h.cache.InvalidateDashboard(c.Request.Context(), currentUserID(c)); err != nil {
		h.logger.Warn("Failed to invalidate dashboard cache", zap.Error(err))
	}
}
