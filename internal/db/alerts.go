package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/leozw/mantenapp/internal/core"
)

const severityOrder = `
        CASE a.severity
            WHEN 'critical' THEN 4
            WHEN 'high' THEN 3
            WHEN 'medium' THEN 2
            WHEN 'low' THEN 1
            ELSE 0
        END`

// alertRow carries an alert together with the columns of its owning client.
type alertRow struct {
	core.Alert
	ClientSiteName string            `db:"client_site_name"`
	ClientSiteURL  string            `db:"client_site_url"`
	ClientStatus   core.ClientStatus `db:"client_status"`
}

func (row *alertRow) toAlert() *core.Alert {
	a := row.Alert
	a.Client = &core.ClientSummary{
		ID:       a.ClientID,
		SiteName: row.ClientSiteName,
		SiteURL:  row.ClientSiteURL,
		Status:   row.ClientStatus,
	}
	return &a
}

const alertSelect = `
        SELECT a.id, a.client_id, a.alert_type, a.severity, a.title, a.message,
               a.status, a.metadata, a.created_at, a.updated_at,
               a.resolved_at, a.resolved_by,
               c.site_name AS client_site_name,
               c.site_url AS client_site_url,
               c.status AS client_status
        FROM alerts a
        JOIN clients c ON c.id = a.client_id`

func (r *Repository) HasActiveAlert(ctx context.Context, clientID string, alertType core.AlertType) (bool, error) {
	var exists bool
	query := `
        SELECT EXISTS(
            SELECT 1 FROM alerts
            WHERE client_id = $1 AND alert_type = $2 AND status = 'active'
        )`
	if err := r.db.GetContext(ctx, &exists, query, clientID, alertType); err != nil {
		return false, fmt.Errorf("check active alert: %w", err)
	}
	return exists, nil
}

// CreateAlert inserts an alert. It reports false without error when an active
// alert of the same type already exists for the client.
func (r *Repository) CreateAlert(ctx context.Context, a *core.Alert) (bool, error) {
	query := `
        INSERT INTO alerts (
            id, client_id, alert_type, severity, title, message,
            status, metadata, created_at, updated_at
        ) VALUES (
            :id, :client_id, :alert_type, :severity, :title, :message,
            :status, :metadata, :created_at, :updated_at
        )
        ON CONFLICT (client_id, alert_type) WHERE status = 'active' DO NOTHING`

	res, err := r.db.NamedExecContext(ctx, query, a)
	if err != nil {
		return false, fmt.Errorf("insert alert: %w", translate(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func alertWhere(f core.AlertFilters) (string, []interface{}) {
	conds := []string{"c.user_id = $1"}
	args := []interface{}{f.UserID}

	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("a.status = $%d", f.Status)
	}
	if f.Severity != "" {
		add("a.severity = $%d", f.Severity)
	}
	if f.Type != "" {
		add("a.alert_type = $%d", f.Type)
	}
	if f.ClientID != "" {
		add("a.client_id = $%d", f.ClientID)
	}

	return strings.Join(conds, " AND "), args
}

// ListAlerts returns one page of alerts, most severe first, and the total
// number of alerts matching the filters.
func (r *Repository) ListAlerts(ctx context.Context, f core.AlertFilters) ([]*core.Alert, int, error) {
	where, args := alertWhere(f)

	var total int
	countQuery := `SELECT COUNT(*) FROM alerts a JOIN clients c ON c.id = a.client_id WHERE ` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`%s
        WHERE %s
        ORDER BY %s DESC, a.created_at DESC
        LIMIT $%d OFFSET $%d`, alertSelect, where, severityOrder, len(args)-1, len(args))

	rows := []*alertRow{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", err)
	}

	alerts := make([]*core.Alert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, row.toAlert())
	}
	return alerts, total, nil
}

// ListActiveAlertsForClient returns up to limit active alerts, most severe first.
func (r *Repository) ListActiveAlertsForClient(ctx context.Context, clientID string, limit int) ([]*core.Alert, error) {
	query := `
        SELECT a.* FROM alerts a
        WHERE a.client_id = $1 AND a.status = 'active'
        ORDER BY ` + severityOrder + ` DESC, a.created_at DESC
        LIMIT $2`

	alerts := []*core.Alert{}
	if err := r.db.SelectContext(ctx, &alerts, query, clientID, limit); err != nil {
		return nil, fmt.Errorf("list client alerts: %w", err)
	}
	return alerts, nil
}

func (r *Repository) ListRecentAlerts(ctx context.Context, userID string, limit int) ([]*core.Alert, error) {
	query := alertSelect + `
        WHERE c.user_id = $1 AND a.status = 'active'
        ORDER BY a.created_at DESC
        LIMIT $2`

	rows := []*alertRow{}
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list recent alerts: %w", err)
	}
	alerts := make([]*core.Alert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, row.toAlert())
	}
	return alerts, nil
}

func (r *Repository) GetAlert(ctx context.Context, id, userID string) (*core.Alert, error) {
	var row alertRow
	query := alertSelect + ` WHERE a.id = $1 AND c.user_id = $2`
	if err := r.db.GetContext(ctx, &row, query, id, userID); err != nil {
		return nil, translate(err)
	}
	return row.toAlert(), nil
}

// UpdateAlertStatus changes the status of one alert owned by userID. Resolving
// stamps resolved_at and resolved_by; any other status clears them.
// Reactivating an alert whose type already has an active alert for the same
// client returns ErrConflict.
func (r *Repository) UpdateAlertStatus(ctx context.Context, id, userID string, status core.AlertStatus, at time.Time) error {
	query := `
        UPDATE alerts a SET
            status = $1,
            updated_at = $2,
            resolved_at = CASE WHEN $1 = 'resolved' THEN $2 ELSE NULL END,
            resolved_by = CASE WHEN $1 = 'resolved' THEN $3::uuid ELSE NULL END
        FROM clients c
        WHERE a.client_id = c.id AND a.id = $4 AND c.user_id = $3`

	res, err := r.db.ExecContext(ctx, query, status, at, userID, id)
	if err != nil {
		return translate(err)
	}
	return expectRows(res)
}

// BulkUpdateAlertStatus applies a status change to every id, atomically. It
// returns ErrNotFound unless all ids belong to userID.
func (r *Repository) BulkUpdateAlertStatus(ctx context.Context, ids []string, userID string, status core.AlertStatus, at time.Time) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	owned, err := countOwnedAlerts(ctx, tx, ids, userID)
	if err != nil {
		return 0, err
	}
	if owned != len(ids) {
		return 0, ErrNotFound
	}

	query, args, err := sqlx.In(`
        UPDATE alerts SET
            status = ?,
            updated_at = ?,
            resolved_at = CASE WHEN ? = 'resolved' THEN ?::timestamptz ELSE NULL END,
            resolved_by = CASE WHEN ? = 'resolved' THEN ?::uuid ELSE NULL END
        WHERE id IN (?)`, status, at, status, at, status, userID, ids)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(n), nil
}

func countOwnedAlerts(ctx context.Context, tx *sqlx.Tx, ids []string, userID string) (int, error) {
	query, args, err := sqlx.In(`
        SELECT COUNT(DISTINCT a.id) FROM alerts a
        JOIN clients c ON c.id = a.client_id
        WHERE c.user_id = ? AND a.id IN (?)`, userID, ids)
	if err != nil {
		return 0, err
	}

	var n int
	if err := tx.GetContext(ctx, &n, tx.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("count owned alerts: %w", err)
	}
	return n, nil
}

func (r *Repository) DeleteAlert(ctx context.Context, id, userID string) error {
	query := `
        DELETE FROM alerts a
        USING clients c
        WHERE a.client_id = c.id AND a.id = $1 AND c.user_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	return expectRows(res)
}

func (r *Repository) AlertStats(ctx context.Context, userID string, since time.Time) (*core.AlertStats, error) {
	stats := &core.AlertStats{
		ByStatus: map[string]int{
			string(core.AlertStatusActive):    0,
			string(core.AlertStatusResolved):  0,
			string(core.AlertStatusDismissed): 0,
		},
		BySeverity: map[string]int{},
		ByType:     []core.TypeCount{},
	}
	for _, s := range core.Severities {
		stats.BySeverity[string(s)] = 0
	}

	var byStatus []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	statusQuery := `
        SELECT a.status, COUNT(*) AS count
        FROM alerts a JOIN clients c ON c.id = a.client_id
        WHERE c.user_id = $1
        GROUP BY a.status`
	if err := r.db.SelectContext(ctx, &byStatus, statusQuery, userID); err != nil {
		return nil, fmt.Errorf("alert stats by status: %w", err)
	}
	for _, s := range byStatus {
		stats.ByStatus[s.Status] = s.Count
		stats.Total += s.Count
	}

	severities, err := r.ActiveAlertsBySeverity(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, s := range severities {
		stats.BySeverity[s.Severity] = s.Count
	}

	if stats.ByType, err = r.ActiveAlertsByType(ctx, userID); err != nil {
		return nil, err
	}

	recentQuery := `
        SELECT COUNT(*) FROM alerts a JOIN clients c ON c.id = a.client_id
        WHERE c.user_id = $1 AND a.created_at >= $2`
	if err := r.db.GetContext(ctx, &stats.Recent, recentQuery, userID, since); err != nil {
		return nil, fmt.Errorf("recent alert count: %w", err)
	}

	return stats, nil
}

// ActiveAlertsByType groups active alerts by type. An empty userID counts
// across all users.
func (r *Repository) ActiveAlertsByType(ctx context.Context, userID string) ([]core.TypeCount, error) {
	query := `
        SELECT a.alert_type AS type, COUNT(*) AS count
        FROM alerts a JOIN clients c ON c.id = a.client_id
        WHERE a.status = 'active' AND ($1 = '' OR c.user_id::text = $1)
        GROUP BY a.alert_type
        ORDER BY count DESC`

	counts := []core.TypeCount{}
	if err := r.db.SelectContext(ctx, &counts, query, userID); err != nil {
		return nil, fmt.Errorf("active alerts by type: %w", err)
	}
	return counts, nil
}

// ActiveAlertsBySeverity groups active alerts by severity. An empty userID
// counts across all users.
func (r *Repository) ActiveAlertsBySeverity(ctx context.Context, userID string) ([]core.SeverityCount, error) {
	query := `
        SELECT a.severity, COUNT(*) AS count
        FROM alerts a JOIN clients c ON c.id = a.client_id
        WHERE a.status = 'active' AND ($1 = '' OR c.user_id::text = $1)
        GROUP BY a.severity`

	counts := []core.SeverityCount{}
	if err := r.db.SelectContext(ctx, &counts, query, userID); err != nil {
		return nil, fmt.Errorf("active alerts by severity: %w", err)
	}
	return counts, nil
}
