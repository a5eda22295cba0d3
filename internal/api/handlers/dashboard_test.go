package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/leozw/mantenapp/internal/core"
	"github.com/leozw/mantenapp/internal/db"
)

func dashboardRouter(t *testing.T, store *memStore) *gin.Engine {
	t.Helper()
	h := NewDashboardHandler(store, nil, zaptest.NewLogger(t))

	r := gin.New()
	r.Use(asUser)
	r.GET("/dashboard/stats", h.Stats)
	r.GET("/dashboard/recent-activity", h.RecentActivity)
	r.GET("/dashboard/charts/sync-activity", h.SyncActivity)
	r.GET("/dashboard/charts/alerts-distribution", h.AlertsDistribution)
	r.GET("/dashboard/system-health", h.SystemHealth)
	return r
}

func TestDashboardStats(t *testing.T) {
	store := newMemStore()
	store.dashboard = db.DashboardCounts{
		TotalClients:      8,
		ActiveClients:     6,
		InactiveClients:   2,
		RecentSyncs:       5,
		ClientsWithAlerts: 3,
		TotalAlerts:       12,
		ActiveAlerts:      7,
		CriticalAlerts:    1,
	}
	r := dashboardRouter(t, store)

	rec, env := doRequest(t, r, http.MethodGet, "/dashboard/stats", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats core.DashboardStats
	decodeData(t, env, &stats)
	assert.Equal(t, 75, stats.Clients.ActivePercentage)
	assert.Equal(t, 38, stats.Alerts.AlertsPercentage)
	assert.Equal(t, 63, stats.Sync.SyncPercentage)
	assert.Equal(t, 7, stats.Alerts.Active)
	assert.Equal(t, 3, stats.Clients.WithAlerts)
}

func TestDashboardStatsWithoutClients(t *testing.T) {
	stats := buildDashboardStats(&db.DashboardCounts{})
	assert.Zero(t, stats.Clients.ActivePercentage)
	assert.Zero(t, stats.Sync.SyncPercentage)
}

func TestDashboardCharts(t *testing.T) {
	r := dashboardRouter(t, newMemStore())

	rec, env := doRequest(t, r, http.MethodGet, "/dashboard/charts/sync-activity?days=7", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var activity struct {
		ChartData []core.SyncActivityPoint `json:"chartData"`
	}
	decodeData(t, env, &activity)
	assert.Equal(t, []core.SyncActivityPoint{{Date: "2026-10-15", Syncs: 3}}, activity.ChartData)

	rec, env = doRequest(t, r, http.MethodGet, "/dashboard/charts/alerts-distribution", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dist struct {
		ByType     []core.TypeCount     `json:"byType"`
		BySeverity []core.SeverityCount `json:"bySeverity"`
	}
	decodeData(t, env, &dist)
	assert.Equal(t, 2, dist.ByType[0].Count)
	assert.Equal(t, "critical", dist.BySeverity[0].Severity)

	rec, _ = doRequest(t, r, http.MethodGet, "/dashboard/recent-activity?limit=500", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSystemHealthScore(t *testing.T) {
	tests := []struct {
		name    string
		counts  db.HealthCounts
		score   int
		status  string
		recType []string
	}{
		{
			name:    "no clients",
			counts:  db.HealthCounts{},
			score:   100,
			status:  "excellent",
			recType: []string{"info"},
		},
		{
			name:    "all healthy",
			counts:  db.HealthCounts{ActiveClients: 10},
			score:   100,
			status:  "excellent",
			recType: []string{"success"},
		},
		{
			name:    "some stale",
			counts:  db.HealthCounts{ActiveClients: 10, StaleClients: 2},
			score:   90,
			status:  "good",
			recType: []string{"warning"},
		},
		{
			name:    "stale and critical",
			counts:  db.HealthCounts{ActiveClients: 10, StaleClients: 4, CriticalClients: 2},
			score:   50,
			status:  "poor",
			recType: []string{"warning", "critical"},
		},
		{
			name:    "floored at zero",
			counts:  db.HealthCounts{ActiveClients: 2, StaleClients: 2, CriticalClients: 2},
			score:   0,
			status:  "poor",
			recType: []string{"warning", "critical"},
		},
		{
			name:    "fair band",
			counts:  db.HealthCounts{ActiveClients: 10, CriticalClients: 2},
			score:   70,
			status:  "fair",
			recType: []string{"critical"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			health := systemHealth(&tt.counts)
			assert.Equal(t, tt.score, health.HealthScore)
			assert.Equal(t, tt.status, health.Status)

			types := make([]string, 0, len(health.Recommendations))
			for _, rec := range health.Recommendations {
				types = append(types, rec.Type)
			}
			assert.Equal(t, tt.recType, types)
		})
	}
}

func TestSystemHealthEndpoint(t *testing.T) {
	store := newMemStore()
	store.health = db.HealthCounts{ActiveClients: 4, StaleClients: 1}
	r := dashboardRouter(t, store)

	rec, env := doRequest(t, r, http.MethodGet, "/dashboard/system-health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health core.SystemHealth
	decodeData(t, env, &health)
	assert.Equal(t, 88, health.HealthScore)
	assert.Equal(t, "good", health.Status)
	assert.Equal(t, 1, health.Issues.StaleClients)
}
