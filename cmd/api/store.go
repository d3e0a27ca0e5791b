package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/melih/lighthouse-panel/internal/adapters/auth"
	"github.com/melih/lighthouse-panel/internal/adapters/storage/memory"
	"github.com/melih/lighthouse-panel/internal/adapters/storage/postgres"
	"github.com/melih/lighthouse-panel/internal/config"
	"github.com/melih/lighthouse-panel/internal/core/ports"
	"github.com/melih/lighthouse-panel/internal/core/services"
)

// openStore returns the configured registry and a function releasing it.
func openStore(cfg *config.Config, log *zap.Logger, migrate bool) (ports.Store, func(), error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn("using the in-memory store, data is lost on restart")
		return memory.New(), func() {}, nil
	}

	db, err := postgres.Open(postgres.Config{
		DSN:             cfg.DB.GetDSN(),
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		LogLevel:        cfg.DB.LogLevel,
	})
	if err != nil {
		return nil, nil, err
	}
	if migrate {
		if err := postgres.Migrate(db); err != nil {
			return nil, nil, err
		}
	}
	closer := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return postgres.New(db), closer, nil
}

// newAuthService builds the auth use cases; the CLI commands and the server
// share it.
func newAuthService(cfg *config.Config, common services.Common, users ports.UserStore) (*services.AuthService, error) {
	tokens, err := auth.NewJWTIssuer(cfg.JWT.Secret, cfg.TokenTTL())
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}
	return services.NewAuthService(services.AuthServiceDeps{
		Common: common,
		Users:  users,
		Hasher: auth.BcryptHasher{},
		Tokens: tokens,
	}), nil
}
