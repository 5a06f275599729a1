package testutil

import (
	"testing"

	"progression-service/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTestDB opens an in-memory SQLite database and migrates all tables.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	// A single connection so every session sees the same in-memory database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.UserProgress{},
		&models.LevelDefinition{},
		&models.Path{},
		&models.UserPath{},
		&models.AdjustmentLog{},
		&models.LeaderboardEntry{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return db
}
