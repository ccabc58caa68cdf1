package repositories

import (
	"taskify/backend/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate creates the schema from the models. It is used against
// sqlite in tests; postgres goes through RunMigrations.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Task{}, &models.Contact{})
}
