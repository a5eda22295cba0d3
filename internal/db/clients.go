package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/leozw/mantenapp/internal/core"
)

const clientColumns = `
        c.id, c.user_id, c.site_name, c.site_url, c.api_key, c.status,
        c.description, c.contact_name, c.contact_email, c.last_sync,
        c.created_at, c.updated_at`

const activeAlertCount = `
        (SELECT COUNT(*) FROM alerts a WHERE a.client_id = c.id AND a.status = 'active') AS alert_count`

func clientWhere(f core.ClientFilters) (string, []interface{}) {
	conds := []string{"c.user_id = $1"}
	args := []interface{}{f.UserID}

	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("c.status = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(c.site_name ILIKE $%d OR c.site_url ILIKE $%d OR c.contact_name ILIKE $%d)", n, n, n))
	}

	return strings.Join(conds, " AND "), args
}

func (r *Repository) ListClients(ctx context.Context, f core.ClientFilters) ([]*core.Client, int, error) {
	where, args := clientWhere(f)

	var total int
	countQuery := `SELECT COUNT(*) FROM clients c WHERE ` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`
        SELECT %s, %s
        FROM clients c
        WHERE %s
        ORDER BY c.created_at DESC
        LIMIT $%d OFFSET $%d`, clientColumns, activeAlertCount, where, len(args)-1, len(args))

	clients := []*core.Client{}
	if err := r.db.SelectContext(ctx, &clients, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}
	return clients, total, nil
}

func (r *Repository) GetClient(ctx context.Context, id, userID string) (*core.Client, error) {
	var c core.Client
	query := `SELECT ` + clientColumns + `, ` + activeAlertCount + `
        FROM clients c
        WHERE c.id = $1 AND c.user_id = $2`
	if err := r.db.GetContext(ctx, &c, query, id, userID); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// GetClientByAPIKey resolves a plugin credential regardless of client status;
// callers decide how to treat inactive sites.
func (r *Repository) GetClientByAPIKey(ctx context.Context, apiKey string) (*core.Client, error) {
	var c core.Client
	query := `SELECT ` + clientColumns + ` FROM clients c WHERE c.api_key = $1`
	if err := r.db.GetContext(ctx, &c, query, apiKey); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *Repository) CreateClient(ctx context.Context, c *core.Client) error {
	query := `
        INSERT INTO clients (
            id, user_id, site_name, site_url, api_key, status,
            description, contact_name, contact_email, created_at, updated_at
        ) VALUES (
            :id, :user_id, :site_name, :site_url, :api_key, :status,
            :description, :contact_name, :contact_email, :created_at, :updated_at
        )`

	_, err := r.db.NamedExecContext(ctx, query, c)
	return translate(err)
}

func (r *Repository) UpdateClient(ctx context.Context, c *core.Client) error {
	query := `
        UPDATE clients SET
            site_name = :site_name,
            site_url = :site_url,
            status = :status,
            description = :description,
            contact_name = :contact_name,
            contact_email = :contact_email,
            updated_at = :updated_at
        WHERE id = :id AND user_id = :user_id`

	res, err := r.db.NamedExecContext(ctx, query, c)
	if err != nil {
		return translate(err)
	}
	return expectRows(res)
}

// DeleteClient removes the site; alerts and site data go with it.
func (r *Repository) DeleteClient(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return expectRows(res)
}

func (r *Repository) UpdateClientAPIKey(ctx context.Context, id, userID, apiKey string) error {
	query := `UPDATE clients SET api_key = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3`
	res, err := r.db.ExecContext(ctx, query, apiKey, id, userID)
	if err != nil {
		return translate(err)
	}
	return expectRows(res)
}

// RecordSync stamps last_sync and refreshes the site identity reported by the
// plugin. Empty name or URL keep the stored values.
func (r *Repository) RecordSync(ctx context.Context, id, siteName, siteURL string, at time.Time) error {
	query := `
        UPDATE clients SET
            last_sync = $1,
            site_name = COALESCE(NULLIF($2, ''), site_name),
            site_url = COALESCE(NULLIF($3, ''), site_url),
            updated_at = $1
        WHERE id = $4`

	res, err := r.db.ExecContext(ctx, query, at, siteName, siteURL, id)
	if err != nil {
		return translate(err)
	}
	return expectRows(res)
}
