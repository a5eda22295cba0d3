package db

import (
	"context"
	"fmt"

	"github.com/leozw/mantenapp/internal/core"
)

func (r *Repository) CreateAuditLog(ctx context.Context, l *core.AuditLog) error {
	query := `
        INSERT INTO audit_logs (
            id, user_id, action, resource, resource_id, details,
            ip_address, user_agent, created_at
        ) VALUES (
            :id, :user_id, :action, :resource, :resource_id, :details,
            :ip_address, :user_agent, :created_at
        )`

	if _, err := r.db.NamedExecContext(ctx, query, l); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (r *Repository) ListAuditLogs(ctx context.Context, userID string, limit int) ([]*core.AuditLog, error) {
	query := `
        SELECT * FROM audit_logs
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2`

	logs := []*core.AuditLog{}
	if err := r.db.SelectContext(ctx, &logs, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
