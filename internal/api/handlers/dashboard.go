package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leozw/mantenapp/internal/api/respond"
	"github.com/leozw/mantenapp/internal/core"
	"github.com/leozw/mantenapp/internal/db"
	"github.com/leozw/mantenapp/internal/storage/redis"
)

const (
	recentSyncWindow = 24 * time.Hour
	defaultActivity  = 10
	maxActivity      = 50
	defaultChartDays = 30
	maxChartDays     = 365
)

type DashboardHandler struct {
	store  DashboardStore
	cache  *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewDashboardHandler(store DashboardStore, cache *redis.Client, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		store:  store,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

func (h *DashboardHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	var stats core.DashboardStats
	err := h.cache.GetCachedDashboardStats(ctx, userID, &stats)
	if err == nil {
		respond.OK(c, "", stats)
		return
	}
	if !errors.Is(err, redis.ErrCacheMiss) {
		h.logger.Warn("Failed to read cached dashboard stats", zap.Error(err))
	}

	counts, err := h.store.DashboardCounts(ctx, userID, h.now().Add(-recentSyncWindow))
	if err != nil {
		h.logger.Error("Failed to load dashboard counts", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to load dashboard statistics")
		return
	}

	stats = buildDashboardStats(counts)
	if err := h.cache.CacheDashboardStats(ctx, userID, stats); err != nil {
		h.logger.Warn("Failed to cache dashboard stats", zap.Error(err))
	}

	respond.OK(c, "", stats)
}

func buildDashboardStats(counts *db.DashboardCounts) core.DashboardStats {
	var stats core.DashboardStats

	stats.Clients.Total = counts.TotalClients
	stats.Clients.Active = counts.ActiveClients
	stats.Clients.Inactive = counts.InactiveClients
	stats.Clients.WithAlerts = counts.ClientsWithAlerts
	stats.Clients.ActivePercentage = percentage(counts.ActiveClients, counts.TotalClients)

	stats.Alerts.Total = counts.TotalAlerts
	stats.Alerts.Active = counts.ActiveAlerts
	stats.Alerts.Critical = counts.CriticalAlerts
	stats.Alerts.AlertsPercentage = percentage(counts.ClientsWithAlerts, counts.TotalClients)

	stats.Sync.Recent = counts.RecentSyncs
	stats.Sync.SyncPercentage = percentage(counts.RecentSyncs, counts.TotalClients)

	return stats
}

func percentage(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

func (h *DashboardHandler) RecentActivity(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)
	limit := intQuery(c, "limit", defaultActivity, maxActivity)

	clients, err := h.store.RecentlySyncedClients(ctx, userID, limit)
	if err != nil {
		h.logger.Error("Failed to load recent clients", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to load recent activity")
		return
	}

	alerts, err := h.store.ListRecentAlerts(ctx, userID, limit)
	if err != nil {
		h.logger.Error("Failed to load recent alerts", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to load recent activity")
		return
	}

	respond.OK(c, "", gin.H{
		"recentClients": clients,
		"recentAlerts":  alerts,
	})
}

func (h *DashboardHandler) SyncActivity(c *gin.Context) {
	days := intQuery(c, "days", defaultChartDays, maxChartDays)
	since := h.now().AddDate(0, 0, -days)

	points, err := h.store.SyncActivity(c.Request.Context(), currentUserID(c), since)
	if err != nil {
		h.logger.Error("Failed to load sync activity", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to load sync activity")
		return
	}

	respond.OK(c, "", gin.H{"chartData": points})
}

func (h *DashboardHandler) AlertsDistribution(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	byType, err := h.store.ActiveAlertsByType(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to group alerts by type", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to load alerts distribution")
		return
	}

	bySeverity, err := h.store.ActiveAlertsBySeverity(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to group alerts by severity", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to load alerts distribution")
		return
	}

	respond.OK(c, "", gin.H{
		"byType":     byType,
		"bySeverity": bySeverity,
	})
}

func (h *DashboardHandler) SystemHealth(c *gin.Context) {
	counts, err := h.store.SystemHealthCounts(c.Request.Context(), currentUserID(c), h.now().Add(-recentSyncWindow))
	if err != nil {
		h.logger.Error("Failed to load system health counts", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "Failed to load system health")
		return
	}

	respond.OK(c, "", systemHealth(counts))
}

// systemHealth scores the fleet: stale sites cost half a point per percent of
// active clients, sites with critical alerts a point and a half.
func systemHealth(counts *db.HealthCounts) core.SystemHealth {
	score := 100.0
	if counts.ActiveClients > 0 {
		stale := float64(counts.StaleClients) / float64(counts.ActiveClients) * 100
		critical := float64(counts.CriticalClients) / float64(counts.ActiveClients) * 100
		score = math.Max(0, 100-stale*0.5-critical*1.5)
	}

	health := core.SystemHealth{
		HealthScore:     int(math.Round(score)),
		Status:          healthStatus(score),
		Recommendations: recommendations(counts),
	}
	health.Issues.StaleClients = counts.StaleClients
	health.Issues.CriticalClients = counts.CriticalClients
	return health
}

func healthStatus(score float64) string {
	switch {
	case score >= 95:
		return "excellent"
	case score >= 80:
		return "good"
	case score >= 60:
		return "fair"
	default:
		return "poor"
	}
}

func recommendations(counts *db.HealthCounts) []core.Recommendation {
	var recs []core.Recommendation

	if counts.StaleClients > 0 {
		recs = append(recs, core.Recommendation{
			Type:    "warning",
			Message: fmt.Sprintf("%d client(s) have not synced in the last 24 hours", counts.StaleClients),
			Action:  "Check connectivity and plugin configuration for these sites",
		})
	}
	if counts.CriticalClients > 0 {
		recs = append(recs, core.Recommendation{
			Type:    "critical",
			Message: fmt.Sprintf("%d client(s) have critical alerts", counts.CriticalClients),
			Action:  "Review and resolve critical alerts immediately",
		})
	}
	if counts.ActiveClients == 0 {
		recs = append(recs, core.Recommendation{
			Type:    "info",
			Message: "No clients configured",
			Action:  "Add your first client to start monitoring",
		})
	}
	if len(recs) == 0 {
		recs = append(recs, core.Recommendation{
			Type:    "success",
			Message: "All systems operating normally",
			Action:  "Keep monitoring regularly",
		})
	}
	return recs
}
