package db

import (
	"context"
	"fmt"
	"time"

	"github.com/leozw/mantenapp/internal/core"
)

// DashboardCounts are the raw figures behind the dashboard overview.
type DashboardCounts struct {
	TotalClients      int `db:"total_clients"`
	ActiveClients     int `db:"active_clients"`
	InactiveClients   int `db:"inactive_clients"`
	RecentSyncs       int `db:"recent_syncs"`
	ClientsWithAlerts int `db:"clients_with_alerts"`
	TotalAlerts       int `db:"total_alerts"`
	ActiveAlerts      int `db:"active_alerts"`
	CriticalAlerts    int `db:"critical_alerts"`
}

func (r *Repository) DashboardCounts(ctx context.Context, userID string, syncedSince time.Time) (*DashboardCounts, error) {
	query := `
        SELECT
            (SELECT COUNT(*) FROM clients WHERE user_id = $1) AS total_clients,
            (SELECT COUNT(*) FROM clients WHERE user_id = $1 AND status = 'active') AS active_clients,
            (SELECT COUNT(*) FROM clients WHERE user_id = $1 AND status = 'inactive') AS inactive_clients,
            (SELECT COUNT(*) FROM clients WHERE user_id = $1 AND last_sync >= $2) AS recent_syncs,
            (SELECT COUNT(DISTINCT c.id) FROM clients c
                JOIN alerts a ON a.client_id = c.id AND a.status = 'active'
                WHERE c.user_id = $1) AS clients_with_alerts,
            (SELECT COUNT(*) FROM alerts a JOIN clients c ON c.id = a.client_id
                WHERE c.user_id = $1) AS total_alerts,
            (SELECT COUNT(*) FROM alerts a JOIN clients c ON c.id = a.client_id
                WHERE c.user_id = $1 AND a.status = 'active') AS active_alerts,
            (SELECT COUNT(*) FROM alerts a JOIN clients c ON c.id = a.client_id
                WHERE c.user_id = $1 AND a.status = 'active' AND a.severity = 'critical') AS critical_alerts`

	var counts DashboardCounts
	if err := r.db.GetContext(ctx, &counts, query, userID, syncedSince); err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}
	return &counts, nil
}

// RecentlySyncedClients lists clients by most recent sync, with their active
// alert counts.
func (r *Repository) RecentlySyncedClients(ctx context.Context, userID string, limit int) ([]*core.Client, error) {
	query := `SELECT ` + clientColumns + `, ` + activeAlertCount + `
        FROM clients c
        WHERE c.user_id = $1 AND c.last_sync IS NOT NULL
        ORDER BY c.last_sync DESC
        LIMIT $2`

	clients := []*core.Client{}
	if err := r.db.SelectContext(ctx, &clients, query, userID, limit); err != nil {
		return nil, fmt.Errorf("recently synced clients: %w", err)
	}
	return clients, nil
}

// SyncActivity counts clients by the day of their last sync since the given time.
func (r *Repository) SyncActivity(ctx context.Context, userID string, since time.Time) ([]core.SyncActivityPoint, error) {
	query := `
        SELECT TO_CHAR(DATE(last_sync), 'YYYY-MM-DD') AS date, COUNT(*) AS syncs
        FROM clients
        WHERE user_id = $1 AND last_sync IS NOT NULL AND last_sync >= $2
        GROUP BY DATE(last_sync)
        ORDER BY DATE(last_sync) ASC`

	points := []core.SyncActivityPoint{}
	if err := r.db.SelectContext(ctx, &points, query, userID, since); err != nil {
		return nil, fmt.Errorf("sync activity: %w", err)
	}
	return points, nil
}

// HealthCounts are the inputs of the system health score.
type HealthCounts struct {
	ActiveClients   int `db:"active_clients"`
	StaleClients    int `db:"stale_clients"`
	CriticalClients int `db:"critical_clients"`
}

// SystemHealthCounts counts active clients, those that have not synced since
// staleBefore, and those with an active critical alert.
func (r *Repository) SystemHealthCounts(ctx context.Context, userID string, staleBefore time.Time) (*HealthCounts, error) {
	query := `
        SELECT
            (SELECT COUNT(*) FROM clients
                WHERE user_id = $1 AND status = 'active') AS active_clients,
            (SELECT COUNT(*) FROM clients
                WHERE user_id = $1 AND status = 'active'
                  AND (last_sync IS NULL OR last_sync < $2)) AS stale_clients,
            (SELECT COUNT(DISTINCT c.id) FROM clients c
                JOIN alerts a ON a.client_id = c.id
                WHERE c.user_id = $1 AND a.status = 'active' AND a.severity = 'critical') AS critical_clients`

	var counts HealthCounts
	if err := r.db.GetContext(ctx, &counts, query, userID, staleBefore); err != nil {
		return nil, fmt.Errorf("system health counts: %w", err)
	}
	return &counts, nil
}
