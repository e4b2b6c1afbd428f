package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"skinscan/config"
	"skinscan/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured database and tunes the pool.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres", "":
		if cfg.DBDSN == "" {
			return nil, errors.New("DB_DSN is not set; a Postgres DSN is required for DB_DRIVER=postgres")
		}
		dialector = postgres.Open(cfg.DBDSN)
	case "sqlite":
		dsn := cfg.DBDSN
		if dsn == "" {
			dsn = "skinscan.db"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	gormLogger := logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("gorm open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db.DB(): %w", err)
	}
	if cfg.DBDriver == "sqlite" {
		// sqlite serializes writers; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(25)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	slog.Info("database connection established", "driver", cfg.DBDriver)
	return db, nil
}

// Migrate creates or updates the schema. Tables are migrated one by one so a
// failure on one (e.g. missing privileges) is logged without blocking the rest.
func Migrate(db *gorm.DB) {
	for _, m := range []struct {
		table string
		model any
	}{
		{"users", &models.User{}},
		{"images", &models.Image{}},
		{"image_features", &models.ImageFeatures{}},
		{"classifications", &models.Classification{}},
	} {
		if err := db.AutoMigrate(m.model); err != nil {
			slog.Warn("migration warning", "table", m.table, "error", err)
		}
	}
}

// Bootstrap runs the startup sequence shared by the server and `migrate`:
// optional migrations, admin seeding and upload directories.
func Bootstrap(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	if cfg.AutoMigrate {
		Migrate(db)
	}
	if err := SeedAdmin(ctx, db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	EnsureUploadDirs(cfg.UploadBase)
	return nil
}

// SeedAdmin creates an admin account when credentials are configured and no
// admin exists yet. Nothing is seeded without explicit credentials.
func SeedAdmin(ctx context.Context, db *gorm.DB, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := &models.User{Name: "Administrator", Email: email, Password: string(hash), Role: models.RoleAdmin}
	if err := NewUserRepo(db).Create(ctx, admin); err != nil {
		return err
	}
	slog.Info("seeded admin user", "id", admin.ID, "email", admin.Email)
	return nil
}

// EnsureUploadDirs creates the upload base and its degrees/ subdirectory.
func EnsureUploadDirs(base string) {
	for _, dir := range []string{base, filepath.Join(base, "degrees")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("failed to create upload dir", "dir", dir, "error", err)
		}
	}
}
