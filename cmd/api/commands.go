package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/melih/lighthouse-panel/internal/adapters/storage/postgres"
	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/services"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the default application catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		store, closeStore, err := openStore(cfg, log, true)
		if err != nil {
			return err
		}
		defer closeStore()

		catalog := services.NewCatalogService(services.Common{Logger: log}, store)
		created, skipped, err := catalog.Seed(cmd.Context(), services.SystemSubject)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "catalog seeded: %d created, %d already present\n", created, skipped)
		return nil
	},
}

var (
	userEmail    string
	userPassword string
	userName     string
	userRole     string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage panel users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user, typically the first admin",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		store, closeStore, err := openStore(cfg, log, true)
		if err != nil {
			return err
		}
		defer closeStore()

		authSvc, err := newAuthService(cfg, services.Common{Logger: log}, store)
		if err != nil {
			return err
		}
		u, created, err := authSvc.Bootstrap(cmd.Context(), services.NewUser{
			Email:    userEmail,
			Password: userPassword,
			Name:     userName,
			Role:     domain.Role(userRole),
		})
		if err != nil {
			return err
		}
		if !created {
			fmt.Fprintf(cmd.OutOrStdout(), "user %s already exists\n", u.Email)
			return nil
		}
		log.Info("user created", zap.String("email", u.Email), zap.String("role", string(u.Role)))
		fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s\n", u.Role, u.Email)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		if cfg.Storage.Driver != "postgres" {
			return fmt.Errorf("migrate needs STORAGE_DRIVER=postgres, got %q", cfg.Storage.Driver)
		}
		db, err := postgres.Open(postgres.Config{DSN: cfg.DB.GetDSN(), LogLevel: cfg.DB.LogLevel})
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := postgres.Migrate(db); err != nil {
			return err
		}
		log.Info("database migrated", zap.String("db", cfg.DB.DBName))
		return nil
	},
}

func init() {
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "email address")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "password, at least 8 characters")
	userCreateCmd.Flags().StringVar(&userName, "name", "", "display name")
	userCreateCmd.Flags().StringVar(&userRole, "role", string(domain.RoleAdmin), "admin or user")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(seedCmd, userCmd, migrateCmd)
}
