package db

import (
	"context"
	"strings"

	"github.com/leozw/mantenapp/internal/core"
)

func (r *Repository) CreateUser(ctx context.Context, u *core.User) error {
	query := `
        INSERT INTO users (
            id, name, email, password_hash, role, is_active, created_at, updated_at
        ) VALUES (
            :id, :name, :email, :password_hash, :role, :is_active, :created_at, :updated_at
        )`

	u.Email = strings.ToLower(u.Email)
	_, err := r.db.NamedExecContext(ctx, query, u)
	return translate(err)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	var u core.User
	query := `SELECT * FROM users WHERE email = $1`
	if err := r.db.GetContext(ctx, &u, query, strings.ToLower(email)); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *Repository) GetUser(ctx context.Context, id string) (*core.User, error) {
	var u core.User
	query := `SELECT * FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &u, query, id); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *Repository) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		return err
	}
	return expectRows(res)
}
