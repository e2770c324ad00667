package db

import (
	"palpiteiros/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil {
		return nil
	}
	return db.Gorm.AutoMigrate(
		&models.Market{},
		&models.PriceHistoryPoint{},
		&models.NewsletterSubscription{},
		&models.SyncState{},
	)
}
