package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leozw/mantenapp/internal/api/respond"
	"github.com/leozw/mantenapp/internal/auth"
	"github.com/leozw/mantenapp/internal/core"
	"github.com/leozw/mantenapp/internal/db"
	"github.com/leozw/mantenapp/internal/queue"
	"github.com/leozw/mantenapp/internal/storage/redis"
)

const (
	clientAlertPreview = 10
	siteDataHistory    = 50
	probeTimeout       = 30 * time.Second
)

type SiteProber interface {
	Probe(ctx context.Context, clientID, siteURL string) (*core.SiteProbe, error)
}

type ProbeSink interface {
	ProbeCompleted(ctx context.Context, probe *core.SiteProbe)
}

type ProbeQueue interface {
	Push(ctx context.Context, job *queue.Job) error
}

type ClientHandler struct {
	store  ClientStore
	audit  auditor
	prober SiteProber
	sink   ProbeSink
	jobs   ProbeQueue
	cache  *redis.Client
	logger *zap.Logger
}

// NewClientHandler builds the client endpoints. jobs may be nil, in which case
// asynchronous probes are unavailable.
func NewClientHandler(store ClientStore, audit AuditStore, prober SiteProber, sink ProbeSink, jobs ProbeQueue, cache *redis.Client, logger *zap.Logger) *ClientHandler {
	return &ClientHandler{
		store:  store,
		audit:  auditor{store: audit, logger: logger},
		prober: prober,
		sink:   sink,
		jobs:   jobs,
		cache:  cache,
		logger: logger,
	}
}

type CreateClientRequest struct {
	SiteName     string  `json:"siteName" binding:"required,min=1,max=255"`
	SiteURL      string  `json:"siteUrl" binding:"required,url,max=500"`
	Description  *string `json:"description" binding:"omitempty,max=1000"`
	ContactName  *string `json:"contactName" binding:"omitempty,max=255"`
	ContactEmail *string `json:"contactEmail" binding:"omitempty,email"`
}

// UpdateClientRequest is a partial update; nil fields are left unchanged.
type UpdateClientRequest struct {
	SiteName     *string `json:"siteName" binding:"omitempty,min=1,max=255"`
	SiteURL      *string `json:"siteUrl" binding:"omitempty,url,max=500"`
	Status       *string `json:"status" binding:"omitempty,oneof=active inactive suspended"`
	Description  *string `json:"description" binding:"omitempty,max=1000"`
	ContactName  *string `json:"contactName" binding:"omitempty,max=255"`
	ContactEmail *string `json:"contactEmail" binding:"omitempty,email"`
}

func (h *ClientHandler) List(c *gin.Context) {
	page, limit, offset := pageParams(c)

	status := core.ClientStatus(c.Query("status"))
	switch status {
	case "", core.ClientStatusActive, core.ClientStatusInactive, core.ClientStatusSuspended:
	default:
		respond.Error(c, http.StatusBadRequest, "Invalid status filter")
		return
	}

	clients, total, err := h.store.ListClients(c.Request.Context(), core.ClientFilters{
		UserID: currentUserID(c),
		Status: status,
		Search: strings.TrimSpace(c.Query("search")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.logger.Error("Failed to list clients", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to list clients")
		return
	}

	respond.OK(c, "", gin.H{
		"clients":    clients,
		"pagination": newPagination(page, limit, total),
	})
}

func (h *ClientHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	client, ok := h.loadClient(c)
	if !ok {
		return
	}

	activeAlerts, err := h.store.ListActiveAlertsForClient(ctx, client.ID, clientAlertPreview)
	if err != nil {
		h.logger.Error("Failed to load client alerts", zap.String("client_id", client.ID), zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to load client")
		return
	}

	var latest *core.SiteData
	latest, err = h.store.LatestSiteData(ctx, client.ID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		h.logger.Error("Failed to load site data", zap.String("client_id", client.ID), zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to load client")
		return
	}

	respond.OK(c, "", gin.H{
		"client":         client,
		"activeAlerts":   activeAlerts,
		"latestSiteData": latest,
	})
}

func (h *ClientHandler) Create(c *gin.Context) {
	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}

	apiKey, err := auth.GenerateAPIKey()
	if err != nil {
		h.logger.Error("Failed to generate API key", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to create client")
		return
	}

	now := time.Now().UTC()
	client := &core.Client{
		ID:           uuid.New().String(),
		UserID:       currentUserID(c),
		SiteName:     strings.TrimSpace(req.SiteName),
		SiteURL:      strings.TrimRight(req.SiteURL, "/"),
		APIKey:       apiKey,
		Status:       core.ClientStatusActive,
		Description:  req.Description,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.store.CreateClient(c.Request.Context(), client); err != nil {
		if errors.Is(err, db.ErrConflict) {
			respond.Error(c, http.StatusConflict, "A client with this site URL already exists")
			return
		}
		h.logger.Error("Failed to create client", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to create client")
		return
	}

	h.audit.record(c, "create", "client", client.ID, core.JSONB{
		"siteName": client.SiteName,
		"siteUrl":  client.SiteURL,
	})
	h.invalidateDashboard(c)

	respond.Created(c, "Client created successfully", gin.H{"client": client})
}

func (h *ClientHandler) Update(c *gin.Context) {
	var req UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}

	client, ok := h.loadClient(c)
	if !ok {
		return
	}

	changes := core.JSONB{}
	if req.SiteName != nil {
		client.SiteName = strings.TrimSpace(*req.SiteName)
		changes["siteName"] = client.SiteName
	}
	if req.SiteURL != nil {
		client.SiteURL = strings.TrimRight(*req.SiteURL, "/")
		changes["siteUrl"] = client.SiteURL
	}
	if req.Status != nil {
		client.Status = core.ClientStatus(*req.Status)
		changes["status"] = client.Status
	}
	if req.Description != nil {
		client.Description = req.Description
		changes["description"] = *req.Description
	}
	if req.ContactName != nil {
		client.ContactName = req.ContactName
		changes["contactName"] = *req.ContactName
	}
	if req.ContactEmail != nil {
		client.ContactEmail = req.ContactEmail
		changes["contactEmail"] = *req.ContactEmail
	}
	client.UpdatedAt = time.Now().UTC()

	if err := h.store.UpdateClient(c.Request.Context(), client); err != nil {
		switch {
		case errors.Is(err, db.ErrConflict):
			respond.Error(c, http.StatusConflict, "A client with this site URL already exists")
		case errors.Is(err, db.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "Client not found")
		default:
			h.logger.Error("Failed to update client", zap.String("client_id", client.ID), zap.Error(err))
			respond.Error(c, http.StatusInternalServerError, "Failed to update client")
		}
		return
	}

	h.audit.record(c, "update", "client", client.ID, changes)
	h.invalidateDashboard(c)

	respond.OK(c, "Client updated successfully", gin.H{"client": client})
}

func (h *ClientHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.DeleteClient(c.Request.Context(), id, currentUserID(c)); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "Client not found")
			return
		}
		h.logger.Error("Failed to delete client", zap.String("client_id", id), zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to delete client")
		return
	}

	h.audit.record(c, "delete", "client", id, core.JSONB{})
	h.invalidateDashboard(c)

	respond.OK(c, "Client deleted successfully", nil)
}

func (h *ClientHandler) RegenerateAPIKey(c *gin.Context) {
	id := c.Param("id")

	apiKey, err := auth.GenerateAPIKey()
	if err != nil {
		h.logger.Error("Failed to generate API key", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to regenerate API key")
		return
	}

	if err := h.store.UpdateClientAPIKey(c.Request.Context(), id, currentUserID(c), apiKey); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "Client not found")
			return
		}
		h.logger.Error("Failed to update API key", zap.String("client_id", id), zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to regenerate API key")
		return
	}

	h.audit.record(c, "regenerate_api_key", "client", id, core.JSONB{})

	respond.OK(c, "API key regenerated successfully", gin.H{"apiKey": apiKey})
}

func (h *ClientHandler) SiteData(c *gin.Context) {
	client, ok := h.loadClient(c)
	if !ok {
		return
	}

	dataType := c.Query("type")
	switch dataType {
	case "", core.SiteDataFullSync, core.SiteDataWebhook:
	default:
		respond.Error(c, http.StatusBadRequest, "Invalid data type")
		return
	}

	records, err := h.store.ListSiteData(c.Request.Context(), client.ID, dataType, siteDataHistory)
	if err != nil {
		h.logger.Error("Failed to list site data", zap.String("client_id", client.ID), zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to load site data")
		return
	}

	respond.OK(c, "", gin.H{"siteData": records})
}

// Probe checks the site from the server side and caches the outcome. With
// ?async=true the probe is queued for the worker instead.
func (h *ClientHandler) Probe(c *gin.Context) {
	client, ok := h.loadClient(c)
	if !ok {
		return
	}

	if c.Query("async") == "true" {
		h.enqueueProbe(c, client)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	result, err := h.prober.Probe(ctx, client.ID, client.SiteURL)
	if err != nil {
		respond.Error(c, http.StatusUnprocessableEntity, "Site URL cannot be probed: "+err.Error())
		return
	}

	h.sink.ProbeCompleted(ctx, result)

	h.logger.Info("Probed client site",
		zap.String("client_id", client.ID),
		zap.String("host", result.Host),
		zap.Int("health_score", result.HealthScore),
	)

	respond.OK(c, "", gin.H{"probe": result})
}

func (h *ClientHandler) enqueueProbe(c *gin.Context, client *core.Client) {
	if h.jobs == nil {
		respond.Error(c, http.StatusServiceUnavailable, "Asynchronous probes require Redis")
		return
	}

	job := &queue.Job{
		ID:        uuid.New().String(),
		Type:      queue.JobTypeSiteProbe,
		ClientID:  client.ID,
		UserID:    client.UserID,
		SiteURL:   client.SiteURL,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.jobs.Push(c.Request.Context(), job); err != nil {
		h.logger.Error("Failed to queue probe", zap.String("client_id", client.ID), zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to queue probe")
		return
	}

	respond.Accepted(c, "Probe queued", gin.H{"jobId": job.ID})
}

func (h *ClientHandler) LatestProbe(c *gin.Context) {
	client, ok := h.loadClient(c)
	if !ok {
		return
	}

	var result core.SiteProbe
	if err := h.cache.GetCachedProbe(c.Request.Context(), client.ID, &result); err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			h.logger.Warn("Failed to read cached probe", zap.String("client_id", client.ID), zap.Error(err))
		}
		respond.Error(c, http.StatusNotFound, "No recent probe for this client")
		return
	}

	respond.OK(c, "", gin.H{"probe": result})
}

func (h *ClientHandler) loadClient(c *gin.Context) (*core.Client, bool) {
	client, err := h.store.GetClient(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "Client not found")
			return nil, false
		}
		h.logger.Error("Failed to load client", zap.String("client_id", c.Param("id")), zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to load client")
		return nil, false
	}
	return client, true
}

func (h *ClientHandler) invalidateDashboard(c *gin.Context) {
	if err := h.cache.InvalidateDashboard(c.Request.Context(), currentUserID(c)); err != nil {
		h.logger.Warn("Failed to invalidate dashboard cache", zap.Error(err))
	}
}
