package database

import (
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/stagesync/internal/entities"
	"github.com/mrlokans/stagesync/internal/registry"
)

type Database struct {
	DB *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto-migrate all entities
	err = db.AutoMigrate(
		&entities.Platform{},
		&entities.SyncRecord{},
		&entities.PlatformCredential{},
		&entities.AggregateSlice{},
		&entities.AuditEvent{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Printf("Database initialized at %s", dbPath)

	return &Database{DB: db}, nil
}

// SeedPlatforms creates a state row for every registry platform that does
// not have one yet. Connection type comes from the registry and is never
// changed afterwards.
func (d *Database) SeedPlatforms(reg *registry.Registry) error {
	for _, caps := range reg.All() {
		var existing entities.Platform
		result := d.DB.Where("id = ?", caps.ID).First(&existing)
		if result.Error == gorm.ErrRecordNotFound {
			platform := entities.Platform{
				ID:             caps.ID,
				Name:           caps.Name,
				ConnectionType: caps.ConnectionType,
			}
			if err := d.DB.Create(&platform).Error; err != nil {
				return fmt.Errorf("failed to seed platform %s: %w", caps.ID, err)
			}
			log.Printf("Registered platform: %s (%s)", caps.Name, caps.ConnectionType)
		} else if result.Error != nil {
			return result.Error
		}
	}
	return nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
