package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leozw/mantenapp/internal/auth"
	"github.com/leozw/mantenapp/internal/config"
	"github.com/leozw/mantenapp/internal/core"
	"github.com/leozw/mantenapp/internal/db"
)

type seedOptions struct {
	name     string
	email    string
	password string
	role     string
}

func main() {
	if err := newSeedCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newSeedCmd() *cobra.Command {
	opts := seedOptions{}
	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Create the initial administrator account",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.password == "" {
				opts.password = os.Getenv("MANTENAPP_ADMIN_PASSWORD")
			}
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "Administrator", "display name of the admin user")
	cmd.Flags().StringVar(&opts.email, "email", "admin@mantenapp.local", "login email of the admin user")
	cmd.Flags().StringVar(&opts.password, "password", "", "password (defaults to $MANTENAPP_ADMIN_PASSWORD)")
	cmd.Flags().StringVar(&opts.role, "role", core.RoleSuperAdmin, "role to grant")
	return cmd
}

func run(ctx context.Context, opts seedOptions) error {
	if err := auth.ValidatePasswordStrength(opts.password); err != nil {
		return err
	}
	if opts.role != core.RoleAdmin && opts.role != core.RoleSuperAdmin {
		return fmt.Errorf("unknown role %q", opts.role)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	database, err := db.NewConnection(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return err
	}

	repo := db.NewRepository(database)
	if _, err := repo.GetUserByEmail(ctx, opts.email); err == nil {
		logger.Info("Admin user already exists, nothing to do", zap.String("email", opts.email))
		return nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(opts.password, cfg.Auth.BcryptRounds)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	user := &core.User{
		ID:           uuid.New().String(),
		Name:         opts.name,
		Email:        opts.email,
		PasswordHash: hash,
		Role:         opts.role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	logger.Info("Admin user created", zap.String("id", user.ID), zap.String("email", user.Email))
	return nil
}
