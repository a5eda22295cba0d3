package handlers

import (
	"context"
	"time"

	"github.com/leozw/mantenapp/internal/core"
	"github.com/leozw/mantenapp/internal/db"
)

// The interfaces below are the slices of *db.Repository each handler uses.

type UserStore interface {
	CreateUser(ctx context.Context, u *core.User) error
	GetUser(ctx context.Context, id string) (*core.User, error)
	GetUserByEmail(ctx context.Context, email string) (*core.User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
}

type AuditStore interface {
	CreateAuditLog(ctx context.Context, l *core.AuditLog) error
	ListAuditLogs(ctx context.Context, userID string, limit int) ([]*core.AuditLog, error)
}

type SyncStore interface {
	GetClientByAPIKey(ctx context.Context, apiKey string) (*core.Client, error)
	CreateSiteData(ctx context.Context, d *core.SiteData) error
	RecordSync(ctx context.Context, id, siteName, siteURL string, at time.Time) error
}

type AlertStore interface {
	ListAlerts(ctx context.Context, f core.AlertFilters) ([]*core.Alert, int, error)
	GetAlert(ctx context.Context, id, userID string) (*core.Alert, error)
	UpdateAlertStatus(ctx context.Context, id, userID string, status core.AlertStatus, at time.Time) error
	BulkUpdateAlertStatus(ctx context.Context, ids []string, userID string, status core.AlertStatus, at time.Time) (int, error)
	DeleteAlert(ctx context.Context, id, userID string) error
	AlertStats(ctx context.Context, userID string, since time.Time) (*core.AlertStats, error)
}

type ClientStore interface {
	ListClients(ctx context.Context, f core.ClientFilters) ([]*core.Client, int, error)
	GetClient(ctx context.Context, id, userID string) (*core.Client, error)
	CreateClient(ctx context.Context, c *core.Client) error
	UpdateClient(ctx context.Context, c *core.Client) error
	DeleteClient(ctx context.Context, id, userID string) error
	UpdateClientAPIKey(ctx context.Context, id, userID, apiKey string) error
	ListActiveAlertsForClient(ctx context.Context, clientID string, limit int) ([]*core.Alert, error)
	LatestSiteData(ctx context.Context, clientID string) (*core.SiteData, error)
	ListSiteData(ctx context.Context, clientID, dataType string, limit int) ([]*core.SiteData, error)
}

type DashboardStore interface {
	DashboardCounts(ctx context.Context, userID string, syncedSince time.Time) (*db.DashboardCounts, error)
	RecentlySyncedClients(ctx context.Context, userID string, limit int) ([]*core.Client, error)
	ListRecentAlerts(ctx context.Context, userID string, limit int) ([]*core.Alert, error)
	SyncActivity(ctx context.Context, userID string, since time.Time) ([]core.SyncActivityPoint, error)
	ActiveAlertsByType(ctx context.Context, userID string) ([]core.TypeCount, error)
	ActiveAlertsBySeverity(ctx context.Context, userID string) ([]core.SeverityCount, error)
	SystemHealthCounts(ctx context.Context, userID string, staleBefore time.Time) (*db.HealthCounts, error)
}

var (
	_ UserStore      = (*db.Repository)(nil)
	_ AuditStore     = (*db.Repository)(nil)
	_ SyncStore      = (*db.Repository)(nil)
	_ AlertStore     = (*db.Repository)(nil)
	_ ClientStore    = (*db.Repository)(nil)
	_ DashboardStore = (*db.Repository)(nil)
)
