package db

import (
	"fmt"

	"github.com/inkawebai/inkaweb-backend/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Order{},
		&models.ChatInstance{},
		&models.ChatMessage{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: auto migrate: %w", errAutoMigrate)
	}

	if !IsSQLite(conn) {
		// Composite index backing the recency-ordered instance listing.
		if errIndex := conn.Exec(
			`CREATE INDEX IF NOT EXISTS idx_chat_instances_user_updated ON chat_instances (user_id, updated_at DESC)`,
		).Error; errIndex != nil {
			return fmt.Errorf("db: create chat index: %w", errIndex)
		}
	}
	return nil
}
