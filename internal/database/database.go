package database

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/schedulesync/backend/internal/config"
	"github.com/schedulesync/backend/internal/models"
	"github.com/schedulesync/backend/internal/services"
)

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	// TranslateError maps driver unique-violation errors onto
	// gorm.ErrDuplicatedKey, which the race-tolerant create paths rely on.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMembership{},
	)
}

// SeedSuperuser provisions the configured privileged account once. Seeding
// is skipped when no credentials are configured or the account exists.
func SeedSuperuser(db *gorm.DB, cfg config.SuperuserConfig) error {
	if cfg.Email == "" || cfg.Password == "" {
		return nil
	}

	accounts := services.NewAccountService(db)

	existing, err := accounts.GetOrNone(context.Background(), "email = ?", cfg.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	_, err = accounts.CreateSuperuser(context.Background(), cfg.FirstName, cfg.LastName, cfg.Email, cfg.Password)
	return err
}
