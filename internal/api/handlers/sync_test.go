package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/leozw/mantenapp/internal/alerts"
	"github.com/leozw/mantenapp/internal/core"
	"github.com/leozw/mantenapp/internal/metrics"
)

const fullTelemetry = `{
	"siteInfo": {"name": "Renamed Site", "url": "https://renamed.example.com"},
	"core": {"currentVersion": "6.1", "availableUpdates": [{"version": "6.8", "isSecurityUpdate": true}]},
	"plugins": {"updatable": [{"name": "akismet", "version": "5.0", "newVersion": "5.3"}]},
	"security": {"hasSSL": false, "vulnerablePlugins": ["revslider"]},
	"performance": {"averageLoadTimeSeconds": 4.5, "phpMemoryLimitMB": 128}
}`

func syncRouter(t *testing.T, store *memStore) (*gin.Engine, *SyncHandler) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	collector := metrics.NewCollector(nil)
	processor := alerts.NewProcessor(store, collector, logger)
	h := NewSyncHandler(store, alerts.NewEngine(alerts.DefaultRules()), processor, collector, nil, logger)
	h.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }

	r := gin.New()
	r.POST("/api/v1/sync", h.Sync)
	r.GET("/api/v1/sync/test", h.TestConnection)
	r.POST("/api/v1/webhooks/client-data", h.Webhook)
	return r, h
}

func bearer(key string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + key}
}

func TestSyncCreatesAlertsOncePerType(t *testing.T) {
	store := newMemStore()
	store.addClient("c1", "key-1", core.ClientStatusActive)
	r, _ := syncRouter(t, store)

	rec, env := doRequest(t, r, http.MethodPost, "/api/v1/sync", fullTelemetry, bearer("key-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)

	var result SyncResult
	decodeData(t, env, &result)
	assert.Equal(t, "c1", result.ClientID)
	assert.Equal(t, "Renamed Site", result.SiteName)
	assert.Equal(t, 4, result.AlertsCreated)
	assert.Equal(t, 3, result.AlertsSuppressed)
	assert.Len(t, store.alerts, 4)

	// A second identical sync must not add or change anything.
	rec, env = doRequest(t, r, http.MethodPost, "/api/v1/sync", fullTelemetry, bearer("key-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, env, &result)
	assert.Equal(t, 0, result.AlertsCreated)
	assert.Equal(t, 7, result.AlertsSuppressed)
	assert.Len(t, store.alerts, 4)

	require.Len(t, store.siteData, 2)
	assert.Equal(t, core.SiteDataFullSync, store.siteData[0].DataType)
	require.Len(t, store.syncs, 2)
	assert.Equal(t, syncCall{ClientID: "c1", SiteName: "Renamed Site", SiteURL: "https://renamed.example.com"}, store.syncs[0])
	assert.NotNil(t, store.clients["c1"].LastSync)
}

func TestSyncAuthentication(t *testing.T) {
	store := newMemStore()
	store.addClient("c1", "key-1", core.ClientStatusActive)
	store.addClient("c2", "key-2", core.ClientStatusInactive)
	r, _ := syncRouter(t, store)

	tests := []struct {
		name    string
		headers map[string]string
		status  int
	}{
		{name: "missing key", headers: nil, status: http.StatusUnauthorized},
		{name: "unknown key", headers: bearer("nope"), status: http.StatusUnauthorized},
		{name: "inactive client", headers: bearer("key-2"), status: http.StatusUnauthorized},
		{name: "valid key", headers: bearer("key-1"), status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := doRequest(t, r, http.MethodPost, "/api/v1/sync", `{}`, tt.headers)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status == http.StatusOK, env.Success)
		})
	}
	assert.Empty(t, store.alerts)
}

func TestSyncRejectsInvalidPayload(t *testing.T) {
	store := newMemStore()
	store.addClient("c1", "key-1", core.ClientStatusActive)
	r, _ := syncRouter(t, store)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"core":`},
		{name: "core section of the wrong type", body: `{"core": "6.4"}`},
		{name: "negative load time", body: `{"performance": {"averageLoadTimeSeconds": -1}}`},
		{name: "plugin update without name", body: `{"plugins": {"updatable": [{"version": "1.0"}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := doRequest(t, r, http.MethodPost, "/api/v1/sync", tt.body, bearer("key-1"))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error.Details)
		})
	}
	assert.Empty(t, store.siteData)
}

// pluginSyncPayload is what the WordPress plugin's manual sync sends.
const pluginSyncPayload = `{
	"site_info": {"name": "Blog", "url": "https://blog.example.com", "admin_email": "owner@example.com"},
	"core": {"wp_version": "6.4", "php_version": "8.2.10", "theme_name": "Twenty Twenty-Four"},
	"timestamp": 1700000000
}`

func TestSyncAcceptsPluginPayload(t *testing.T) {
	store := newMemStore()
	store.addClient("c1", "key-1", core.ClientStatusActive)
	r, _ := syncRouter(t, store)

	rec, env := doRequest(t, r, http.MethodPost, "/api/v1/sync", pluginSyncPayload, bearer("key-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)

	require.Len(t, store.siteData, 1)
	assert.JSONEq(t, pluginSyncPayload, string(store.siteData[0].DataContent))
	require.Len(t, store.syncs, 1)
}

func TestSyncPartialCoreKeepsOtherRules(t *testing.T) {
	store := newMemStore()
	store.addClient("c1", "key-1", core.ClientStatusActive)
	r, _ := syncRouter(t, store)

	body := `{
		"core": {"availableUpdates": [{"version": "6.5"}]},
		"plugins": {"updatable": [{"name": "akismet"}]},
		"performance": {"phpMemoryLimitMB": 128}
	}`
	rec, env := doRequest(t, r, http.MethodPost, "/api/v1/sync", body, bearer("key-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result SyncResult
	decodeData(t, env, &result)
	assert.Equal(t, 3, result.AlertsCreated)
}

func TestSyncStoresPayloadAsReceived(t *testing.T) {
	store := newMemStore()
	store.addClient("c1", "key-1", core.ClientStatusActive)
	r, _ := syncRouter(t, store)

	body := `{"siteInfo": {"name": "Blog"}, "timestamp": 1700000000, "updates": {"plugins": 2}}`
	rec, _ := doRequest(t, r, http.MethodPost, "/api/v1/sync", body, bearer("key-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, store.siteData, 1)
	assert.JSONEq(t, body, string(store.siteData[0].DataContent))

	rec, _ = doRequest(t, r, http.MethodPost, "/api/v1/sync", `null`, bearer("key-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, store.siteData, 1)
}

func TestSyncStorageFailure(t *testing.T) {
	store := newMemStore()
	store.addClient("c1", "key-1", core.ClientStatusActive)
	store.siteDataErr = errStoreDown
	r, _ := syncRouter(t, store)

	rec, env := doRequest(t, r, http.MethodPost, "/api/v1/sync", fullTelemetry, bearer("key-1"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, env.Success)
	assert.Empty(t, store.alerts)
}

func TestSyncKeepsURLWhenReportedURLIsTaken(t *testing.T) {
	store := newMemStore()
	store.addClient("c1", "key-1", core.ClientStatusActive)
	store.takenURLs["https://renamed.example.com"] = true
	r, _ := syncRouter(t, store)

	rec, _ := doRequest(t, r, http.MethodPost, "/api/v1/sync", fullTelemetry, bearer("key-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, store.syncs, 2)
	assert.Equal(t, "", store.syncs[1].SiteURL)
	assert.Equal(t, "Renamed Site", store.clients["c1"].SiteName)
	assert.Equal(t, "https://c1.example.com", store.clients["c1"].SiteURL)
}

func TestSyncTestConnection(t *testing.T) {
	store := newMemStore()
	store.addClient("c1", "key-1", core.ClientStatusActive)
	r, _ := syncRouter(t, store)

	rec, env := doRequest(t, r, http.MethodGet, "/api/v1/sync/test", nil, bearer("key-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var data map[string]interface{}
	decodeData(t, env, &data)
	assert.Equal(t, "c1", data["clientId"])
	assert.Equal(t, "https://c1.example.com", data["siteUrl"])
	assert.Empty(t, store.siteData)
}

func TestWebhookAPIKeySources(t *testing.T) {
	store := newMemStore()
	store.addClient("c1", "key-1", core.ClientStatusActive)
	r, _ := syncRouter(t, store)

	body := `{"apiKey": "key-1", "security": {"vulnerablePlugins": ["a", "b"]}}`
	rec, env := doRequest(t, r, http.MethodPost, "/api/v1/webhooks/client-data", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result SyncResult
	decodeData(t, env, &result)
	assert.Equal(t, 1, result.AlertsCreated)

	require.Len(t, store.siteData, 1)
	assert.Equal(t, core.SiteDataWebhook, store.siteData[0].DataType)
	assert.NotContains(t, string(store.siteData[0].DataContent), "key-1")

	var stored map[string]interface{}
	require.NoError(t, json.Unmarshal(store.siteData[0].DataContent, &stored))
	assert.NotContains(t, stored, "apiKey")
	assert.Equal(t, map[string]interface{}{"vulnerablePlugins": []interface{}{"a", "b"}}, stored["security"])

	// Header wins over the body and the same finding is suppressed.
	rec, env = doRequest(t, r, http.MethodPost, "/api/v1/webhooks/client-data",
		`{"apiKey": "wrong", "security": {"vulnerablePlugins": ["a"]}}`,
		map[string]string{"X-API-Key": "key-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, env, &result)
	assert.Equal(t, 0, result.AlertsCreated)
	assert.Equal(t, 1, result.AlertsSuppressed)
}

func TestWebhookInactiveClientForbidden(t *testing.T) {
	store := newMemStore()
	store.addClient("c1", "key-1", core.ClientStatusSuspended)
	r, _ := syncRouter(t, store)

	rec, env := doRequest(t, r, http.MethodPost, "/api/v1/webhooks/client-data", `{}`,
		map[string]string{"X-API-Key": "key-1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Client is not active", env.Error.Message)

	rec, _ = doRequest(t, r, http.MethodPost, "/api/v1/webhooks/client-data", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookAuthenticatesBeforeValidating(t *testing.T) {
	store := newMemStore()
	store.addClient("c1", "key-1", core.ClientStatusActive)
	r, _ := syncRouter(t, store)

	invalid := `{"performance": {"averageLoadTimeSeconds": -1}}`

	rec, env := doRequest(t, r, http.MethodPost, "/api/v1/webhooks/client-data", invalid, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, env.Error.Details)

	rec, env = doRequest(t, r, http.MethodPost, "/api/v1/webhooks/client-data", invalid,
		map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, env.Error.Details)

	rec, env = doRequest(t, r, http.MethodPost, "/api/v1/webhooks/client-data", `{"core":`,
		map[string]string{"X-API-Key": "key-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, env.Error.Details)

	rec, env = doRequest(t, r, http.MethodPost, "/api/v1/webhooks/client-data",
		`{"apiKey": "key-1", "performance": {"averageLoadTimeSeconds": -1}}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, env.Error.Details)
	assert.Empty(t, store.siteData)
}

func TestWebhookStoresUnknownFields(t *testing.T) {
	store := newMemStore()
	store.addClient("c1", "key-1", core.ClientStatusActive)
	r, _ := syncRouter(t, store)

	body := `{"apiKey": "key-1", "timestamp": 1700000000, "site_info": {"admin_email": "owner@example.com"}}`
	rec, _ := doRequest(t, r, http.MethodPost, "/api/v1/webhooks/client-data", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, store.siteData, 1)
	assert.JSONEq(t, `{"timestamp": 1700000000, "site_info": {"admin_email": "owner@example.com"}}`,
		string(store.siteData[0].DataContent))
}
