package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hms/hms/internal/config"
	"github.com/hms/hms/internal/domain/account"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/logging"
	"github.com/hms/hms/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hms-server",
		Short: "Hospital management scheduling API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(adminCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// setup loads configuration, builds the logger and opens the pool shared
// by every subcommand.
func setup(ctx context.Context) (*config.Config, zerolog.Logger, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}
	logger := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Development: cfg.IsDev(),
		File:        cfg.LogFile,
		MaxSizeMB:   cfg.LogFileMaxSizeMB,
		MaxBackups:  cfg.LogFileMaxBackups,
		MaxAgeDays:  cfg.LogFileMaxAgeDays,
	})
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		return nil, logger, nil, err
	}
	return cfg, logger, pool, nil
}

func migrationFiles(cfg *config.Config) fs.FS {
	if cfg.MigrationsDir != "" {
		return os.DirFS(cfg.MigrationsDir)
	}
	return migrations.FS
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, logger, pool, err := setup(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationFiles(cfg), logger).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, logger, pool, err := setup(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationFiles(cfg), logger).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println(strings.Repeat("-", 10) + " " + strings.Repeat("-", 40) + " " + strings.Repeat("-", 10) + " " + strings.Repeat("-", 20))
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin user if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			username, _ := cmd.Flags().GetString("username")
			fullName, _ := cmd.Flags().GetString("full-name")
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				return fmt.Errorf("--password is required")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			cfg, logger, pool, err := setup(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if email == "" {
				email = cfg.AdminEmail
			}
			if username == "" {
				username = cfg.AdminUsername
			}
			tokens := auth.NewTokenIssuer([]byte(cfg.SecretKey), cfg.TokenIssuer, cfg.AccessTokenTTL())
			accounts := account.NewService(account.NewUserRepoPG(pool), tokens, nil, logger)

			created, err := accounts.EnsureAdmin(ctx, account.NewUser{
				Email:    email,
				Username: username,
				FullName: fullName,
				Password: password,
			})
			if err != nil {
				return err
			}
			if created {
				fmt.Printf("Admin %s created.\n", email)
			} else {
				fmt.Printf("Admin %s already exists.\n", email)
			}
			return nil
		},
	}
	createCmd.Flags().String("email", "", "Admin email (defaults to ADMIN_EMAIL)")
	createCmd.Flags().String("username", "", "Admin username (defaults to ADMIN_USERNAME)")
	createCmd.Flags().String("full-name", "", "Display name")
	createCmd.Flags().String("password", "", "Admin password")
	cmd.AddCommand(createCmd)

	return cmd
}
