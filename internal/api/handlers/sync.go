package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leozw/mantenapp/internal/alerts"
	"github.com/leozw/mantenapp/internal/api/middleware"
	"github.com/leozw/mantenapp/internal/api/respond"
	"github.com/leozw/mantenapp/internal/core"
	"github.com/leozw/mantenapp/internal/db"
	"github.com/leozw/mantenapp/internal/metrics"
	"github.com/leozw/mantenapp/internal/storage/redis"
)

const (
	sourceSync    = "sync"
	sourceWebhook = "webhook"

	maxPayloadBytes = 5 << 20
)

// SyncHandler accepts telemetry pushed by the WordPress plugin and turns it
// into alerts.
type SyncHandler struct {
	store     SyncStore
	engine    *alerts.Engine
	processor *alerts.Processor
	collector *metrics.Collector
	cache     *redis.Client
	logger    *zap.Logger
	now       func() time.Time
}

func NewSyncHandler(store SyncStore, engine *alerts.Engine, processor *alerts.Processor, collector *metrics.Collector, cache *redis.Client, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		store:     store,
		engine:    engine,
		processor: processor,
		collector: collector,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
}

// WebhookPayload is a telemetry snapshot that may carry its own API key.
type WebhookPayload struct {
	core.TelemetrySnapshot
	APIKey string `json:"apiKey,omitempty"`
}

type SyncResult struct {
	ClientID         string    `json:"clientId"`
	SiteName         string    `json:"siteName"`
	LastSync         time.Time `json:"lastSync"`
	AlertsCreated    int       `json:"alertsCreated"`
	AlertsSuppressed int       `json:"alertsSuppressed"`
}

// Sync handles a full sync authenticated with "Authorization: Bearer <apiKey>".
func (h *SyncHandler) Sync(c *gin.Context) {
	start := time.Now()

	client, ok := h.authenticate(c, middleware.BearerToken(c), sourceSync)
	if !ok {
		h.record(sourceSync, "unauthorized", start)
		return
	}

	raw, ok := h.readBody(c, sourceSync, start)
	if !ok {
		return
	}
	var snapshot core.TelemetrySnapshot
	if err := binding.JSON.BindBody(raw, &snapshot); err != nil {
		h.record(sourceSync, "invalid", start)
		respond.BindError(c, err)
		return
	}

	content, err := withoutAPIKey(raw)
	if err != nil {
		h.record(sourceSync, "invalid", start)
		respond.Error(c, http.StatusBadRequest, "Request body must be a JSON object")
		return
	}

	result, err := h.ingest(c, client, &snapshot, content, core.SiteDataFullSync)
	if err != nil {
		h.record(sourceSync, "error", start)
		respond.Error(c, http.StatusInternalServerError, "Failed to process sync data")
		return
	}

	h.record(sourceSync, "ok", start)
	respond.OK(c, "Data synchronized successfully", result)
}

// TestConnection lets the plugin verify its API key without sending data.
func (h *SyncHandler) TestConnection(c *gin.Context) {
	client, ok := h.authenticate(c, middleware.BearerToken(c), sourceSync)
	if !ok {
		return
	}

	respond.OK(c, "Connection successful", gin.H{
		"clientId":   client.ID,
		"siteName":   client.SiteName,
		"siteUrl":    client.SiteURL,
		"serverTime": h.now().UTC(),
	})
}

// Webhook handles pushes carrying the key in X-API-Key or the apiKey field.
func (h *SyncHandler) Webhook(c *gin.Context) {
	start := time.Now()

	raw, ok := h.readBody(c, sourceWebhook, start)
	if !ok {
		return
	}

	apiKey := c.GetHeader("X-API-Key")
	if apiKey == "" {
		apiKey = middleware.BodyAPIKey(raw)
	}
	client, ok := h.authenticate(c, apiKey, sourceWebhook)
	if !ok {
		h.record(sourceWebhook, "unauthorized", start)
		return
	}

	var payload WebhookPayload
	if err := binding.JSON.BindBody(raw, &payload); err != nil {
		h.record(sourceWebhook, "invalid", start)
		respond.BindError(c, err)
		return
	}

	content, err := withoutAPIKey(raw)
	if err != nil {
		h.record(sourceWebhook, "invalid", start)
		respond.Error(c, http.StatusBadRequest, "Request body must be a JSON object")
		return
	}

	result, err := h.ingest(c, client, &payload.TelemetrySnapshot, content, core.SiteDataWebhook)
	if err != nil {
		h.record(sourceWebhook, "error", start)
		respond.Error(c, http.StatusInternalServerError, "Failed to process webhook data")
		return
	}

	h.record(sourceWebhook, "ok", start)
	respond.OK(c, "Webhook processed successfully", result)
}

// authenticate resolves apiKey to an active client, writing the error
// response itself when it cannot.
func (h *SyncHandler) authenticate(c *gin.Context, apiKey, source string) (*core.Client, bool) {
	if apiKey == "" {
		respond.Error(c, http.StatusUnauthorized, "API key required")
		return nil, false
	}

	client, err := h.store.GetClientByAPIKey(c.Request.Context(), apiKey)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			h.logger.Error("Failed to look up API key", zap.String("source", source), zap.Error(err))
			respond.Error(c, http.StatusInternalServerError, "Failed to validate API key")
			return nil, false
		}
		respond.Error(c, http.StatusUnauthorized, "Invalid API key")
		return nil, false
	}

	if client.Status != core.ClientStatusActive {
		if source == sourceWebhook {
			respond.Error(c, http.StatusForbidden, "Client is not active")
		} else {
			respond.Error(c, http.StatusUnauthorized, "Invalid API key or inactive client")
		}
		return nil, false
	}

	return client, true
}

func (h *SyncHandler) readBody(c *gin.Context, source string, start time.Time) ([]byte, bool) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes+1))
	if err != nil {
		h.record(source, "invalid", start)
		respond.Error(c, http.StatusBadRequest, "Failed to read request body")
		return nil, false
	}
	if len(raw) > maxPayloadBytes {
		h.record(source, "invalid", start)
		respond.Error(c, http.StatusRequestEntityTooLarge, "Payload too large")
		return nil, false
	}
	return raw, true
}

// withoutAPIKey drops the credential from a request body so it is never
// persisted. Every other field is kept as sent.
func withoutAPIKey(raw []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("null body")
	}
	if _, ok := fields["apiKey"]; !ok {
		return raw, nil
	}
	delete(fields, "apiKey")
	return json.Marshal(fields)
}

// ingest stores the payload as received, stamps the client's last sync and
// derives alerts. Only storage of the payload and sync stamp can fail the
// request.
func (h *SyncHandler) ingest(c *gin.Context, client *core.Client, snapshot *core.TelemetrySnapshot, content []byte, dataType string) (*SyncResult, error) {
	ctx := c.Request.Context()
	now := h.now().UTC()

	record := &core.SiteData{
		ID:          uuid.New().String(),
		ClientID:    client.ID,
		DataType:    dataType,
		DataContent: core.RawJSON(content),
		CollectedAt: now,
	}
	if err := h.store.CreateSiteData(ctx, record); err != nil {
		h.logger.Error("Failed to store site data", zap.String("client_id", client.ID), zap.Error(err))
		return nil, err
	}

	var siteName, siteURL string
	if snapshot.SiteInfo != nil {
		siteName = snapshot.SiteInfo.Name
		siteURL = snapshot.SiteInfo.URL
	}
	err := h.store.RecordSync(ctx, client.ID, siteName, siteURL, now)
	if errors.Is(err, db.ErrConflict) && siteURL != "" {
		h.logger.Warn("Reported site URL already registered, keeping current URL",
			zap.String("client_id", client.ID),
			zap.String("site_url", siteURL),
		)
		err = h.store.RecordSync(ctx, client.ID, siteName, "", now)
	}
	if err != nil {
		h.logger.Error("Failed to record sync", zap.String("client_id", client.ID), zap.Error(err))
		return nil, err
	}

	result := h.processor.Process(ctx, client.ID, h.engine.Derive(snapshot))
	if result.Failed > 0 {
		h.logger.Warn("Some alerts could not be processed",
			zap.String("client_id", client.ID),
			zap.Int("failed", result.Failed),
		)
	}

	if err := h.cache.InvalidateDashboard(ctx, client.UserID); err != nil {
		h.logger.Warn("Failed to invalidate dashboard cache", zap.Error(err))
	}

	if siteName == "" {
		siteName = client.SiteName
	}
	h.logger.Info("Telemetry ingested",
		zap.String("client_id", client.ID),
		zap.String("data_type", dataType),
		zap.Int("alerts_created", len(result.Created)),
		zap.Int("alerts_suppressed", result.Suppressed),
	)

	return &SyncResult{
		ClientID:         client.ID,
		SiteName:         siteName,
		LastSync:         now,
		AlertsCreated:    len(result.Created),
		AlertsSuppressed: result.Suppressed,
	}, nil
}

func (h *SyncHandler) record(source, outcome string, start time.Time) {
	if h.collector != nil {
		h.collector.RecordIngestion(source, outcome, time.Since(start))
	}
}
