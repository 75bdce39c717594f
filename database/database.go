package database

import (
	"fmt"

	"github.com/anjiri1684/social_messaging/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectDB opens the Postgres store used in production.
func ConnectDB(dsn string) (*gorm.DB, error) {
	return Open(postgres.Open(dsn))
}

// Open connects through any gorm dialector; tests pass an in-memory sqlite one.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		PrepareStmt:                              false,
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Friendship{},
		&models.Group{},
		&models.Message{},
		&models.MessageTombstone{},
		&models.Notification{},
		&models.OutboxEvent{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
