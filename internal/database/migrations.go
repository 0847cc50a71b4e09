package database

import (
	"gorm.io/gorm"

	"github.com/agrigpt/backend/internal/models"
)

// GuestAccountID is the fixed account used for unauthenticated chat and
// report requests. The value must be a well-formed UUID: the id column
// migrates as a native uuid type on Postgres, which rejects arbitrary
// strings on insert.
const GuestAccountID = "00000000-0000-0000-0000-000000000001"

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Account{},
		&models.OTPCode{},
		&models.DeveloperGrant{},
		&models.ChatSession{},
		&models.ChatMessage{},
		&models.Report{},
		&models.Feedback{},
	)
}

// SeedData ensures the guest account exists.
func SeedData(db *gorm.DB) error {
	guest := models.Account{
		BaseModel:     models.BaseModel{ID: GuestAccountID},
		Email:         "guest@agrigpt.internal",
		AuthProviders: models.ProviderSet(),
		DisplayName:   "Guest",
	}

	return db.Where(models.Account{BaseModel: models.BaseModel{ID: guest.ID}}).
		Attrs(guest).
		FirstOrCreate(&models.Account{}).Error
}
