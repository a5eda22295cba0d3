package db

import (
	"context"
	"fmt"
	"time"

	"github.com/leozw/mantenapp/internal/core"
)

func (r *Repository) CreateSiteData(ctx context.Context, d *core.SiteData) error {
	query := `
        INSERT INTO site_data (id, client_id, data_type, data_content, collected_at)
        VALUES (:id, :client_id, :data_type, :data_content, :collected_at)`

	_, err := r.db.NamedExecContext(ctx, query, d)
	if err != nil {
		return fmt.Errorf("insert site data: %w", err)
	}
	return nil
}

// ListSiteData returns the newest records for a client, optionally of one type.
func (r *Repository) ListSiteData(ctx context.Context, clientID, dataType string, limit int) ([]*core.SiteData, error) {
	query := `
        SELECT * FROM site_data
        WHERE client_id = $1 AND ($2 = '' OR data_type = $2)
        ORDER BY collected_at DESC
        LIMIT $3`

	records := []*core.SiteData{}
	if err := r.db.SelectContext(ctx, &records, query, clientID, dataType, limit); err != nil {
		return nil, fmt.Errorf("list site data: %w", err)
	}
	return records, nil
}

func (r *Repository) LatestSiteData(ctx context.Context, clientID string) (*core.SiteData, error) {
	var d core.SiteData
	query := `
        SELECT * FROM site_data
        WHERE client_id = $1
        ORDER BY collected_at DESC
        LIMIT 1`
	if err := r.db.GetContext(ctx, &d, query, clientID); err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

// PruneSiteData deletes records collected before cutoff, always keeping the
// newest record of every client.
func (r *Repository) PruneSiteData(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
        DELETE FROM site_data s
        WHERE s.collected_at < $1
          AND s.id <> (
              SELECT latest.id FROM site_data latest
              WHERE latest.client_id = s.client_id
              ORDER BY latest.collected_at DESC, latest.id DESC
              LIMIT 1
          )`

	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune site data: %w", err)
	}
	return res.RowsAffected()
}
