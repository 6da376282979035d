package db

import (
	"fmt"

	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/coach"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens the Postgres database, migrates the schema and seeds the
// built-in scenarios.
func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&coach.Scenario{},
		&coach.Session{},
		&coach.Message{},
		&coach.Feedback{},
		&coach.FeedbackJob{},
	); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	if err := coach.SeedScenarios(gdb); err != nil {
		return nil, fmt.Errorf("seed scenarios: %w", err)
	}

	return gdb, nil
}
