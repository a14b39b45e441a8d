package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/creditshare/creditshare/internal/auth"
	"github.com/creditshare/creditshare/internal/config"
	"github.com/creditshare/creditshare/internal/database"
	"github.com/creditshare/creditshare/internal/logger"
	"github.com/creditshare/creditshare/internal/model"
	"github.com/creditshare/creditshare/internal/repository"
)

var migrationsPath string

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration and bootstrap tool for CreditShare",
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Run all pending migrations",
	RunE:  runUp,
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Rollback the last migration",
	RunE:  runDown,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE:  runStatus,
}

var createCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new migration file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreate,
}

var setupAdminCmd = &cobra.Command{
	Use:   "setup-admin",
	Short: "Create the super-admin account named by admin.email",
	Long: `Creates the single administrative account. The email comes from
admin.email; the password is read from CREDITSHARE_ADMIN_PASSWORD.
Running it again for an existing account is a no-op.`,
	RunE: runSetupAdmin,
}

var (
	adminName    string
	adminCredits int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&migrationsPath, "path", "migrations", "directory containing migration files")

	setupAdminCmd.Flags().StringVar(&adminName, "name", "Administrator", "display name of the admin account")
	setupAdminCmd.Flags().IntVar(&adminCredits, "credits", 10000, "initial credit balance")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(setupAdminCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getMigrator() (*migrate.Migrate, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://"+migrationsPath,
		"postgres",
		driver,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

func runUp(cmd *cobra.Command, args []string) error {
	log := logger.New("info", "text")
	log.Info().Msg("running migrations...")

	m, err := getMigrator()
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info().Msg("migrations completed successfully")
	return nil
}

func runDown(cmd *cobra.Command, args []string) error {
	log := logger.New("info", "text")
	log.Info().Msg("rolling back last migration...")

	m, err := getMigrator()
	if err != nil {
		return err
	}

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	log.Info().Msg("rollback completed successfully")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	m, err := getMigrator()
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get version: %w", err)
	}

	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Println("No migrations have been applied")
	} else {
		fmt.Printf("Current version: %d\n", version)
		fmt.Printf("Dirty: %v\n", dirty)
	}

	return nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	name := args[0]

	if err := os.MkdirAll(migrationsPath, 0755); err != nil {
		return fmt.Errorf("failed to create migrations directory: %w", err)
	}

	entries, err := os.ReadDir(migrationsPath)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	files := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			files++
		}
	}
	version := files/2 + 1

	upFile := fmt.Sprintf("%s/%06d_%s.up.sql", migrationsPath, version, name)
	downFile := fmt.Sprintf("%s/%06d_%s.down.sql", migrationsPath, version, name)

	if err := os.WriteFile(upFile, []byte("-- Add migration SQL here\n"), 0644); err != nil {
		return fmt.Errorf("failed to create up migration: %w", err)
	}
	if err := os.WriteFile(downFile, []byte("-- Add rollback SQL here\n"), 0644); err != nil {
		return fmt.Errorf("failed to create down migration: %w", err)
	}

	fmt.Printf("Created migration files:\n  %s\n  %s\n", upFile, downFile)
	return nil
}

func runSetupAdmin(cmd *cobra.Command, args []string) error {
	log := logger.New("info", "text")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	email, err := auth.NormalizeEmail(cfg.Admin.Email)
	if err != nil {
		return fmt.Errorf("admin.email: %w", err)
	}

	password := os.Getenv("CREDITSHARE_ADMIN_PASSWORD")
	if err := auth.ValidatePassword(password, auth.MinAdminPasswordLength); err != nil {
		return fmt.Errorf("CREDITSHARE_ADMIN_PASSWORD: %w", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	accounts := repository.NewAccountRepository(db)

	existing, err := accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.IsAdmin() {
			return fmt.Errorf("account %s exists without the admin role; refusing to modify it", email)
		}
		log.Info().Str("email", email).Str("user_id", existing.ID).Msg("admin account already exists")
		return nil
	case !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("failed to look up admin account: %w", err)
	}

	hash, err := auth.HashPassword(password, nil)
	if err != nil {
		return err
	}

	account := &model.Account{
		ID:           repository.NewID("acc"),
		Name:         adminName,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		Credits:      adminCredits,
		ReferralCode: repository.NewID("")[:8],
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := accounts.Create(ctx, account, model.TransactionAdminSetup); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	log.Info().Str("email", email).Str("user_id", account.ID).Int("credits", adminCredits).Msg("admin account created")
	return nil
}
