package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/conecta-ies/solicitation-service/internal/auth"
	"github.com/conecta-ies/solicitation-service/internal/config"
	"github.com/conecta-ies/solicitation-service/internal/domain"
	"github.com/conecta-ies/solicitation-service/internal/repository"
)

// SeedAdminUser creates the bootstrap administrator account when absent.
// Skipped when no seed password is configured.
func SeedAdminUser(ctx context.Context, users repository.UserRepository, cfg config.AuthConfig, logger *zap.Logger) error {
	if cfg.SeedAdminPassword == "" {
		logger.Info("SEED_ADMIN_PASSWORD not set; skipping admin seed")
		return nil
	}

	if _, err := users.GetByEmail(ctx, cfg.SeedAdminEmail); err == nil {
		logger.Info("admin user already exists", zap.String("email", cfg.SeedAdminEmail))
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(cfg.SeedAdminPassword, cfg.BcryptCost)
	if err != nil {
		return err
	}

	admin := &domain.User{
		Name:         "Administrador",
		Email:        cfg.SeedAdminEmail,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
	}
	if err := users.Create(ctx, admin); err != nil {
		return err
	}

	logger.Info("admin user created", zap.String("email", cfg.SeedAdminEmail))
	return nil
}
